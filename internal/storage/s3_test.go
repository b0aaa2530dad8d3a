package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// fakeS3 is an in-memory bucket.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newFakeS3(objects map[string]string) *fakeS3 {
	f := &fakeS3{objects: make(map[string][]byte)}
	for k, v := range objects {
		f.objects[k] = []byte(v)
	}
	return f
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &s3.ListObjectsV2Output{}
	for k, v := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(k), Size: aws.Int64(int64(len(v)))})
		}
	}
	return out, nil
}

func TestMirror_UploadUsesPrefix(t *testing.T) {
	fake := newFakeS3(nil)
	m := NewMirrorWithClient(fake, "bucket", "mastr")

	local := filepath.Join(t.TempDir(), "Gesamtdatenexport_20230615_23.2.zip")
	if err := os.WriteFile(local, []byte("zip-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := m.Upload(context.Background(), local); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	got, ok := fake.objects["mastr/Gesamtdatenexport_20230615_23.2.zip"]
	if !ok || string(got) != "zip-bytes" {
		t.Errorf("objects = %v", fake.objects)
	}
}

func TestMirror_UploadErrors(t *testing.T) {
	fake := newFakeS3(nil)
	fake.putErr = errors.New("access denied")
	m := NewMirrorWithClient(fake, "bucket", "mastr/")

	local := filepath.Join(t.TempDir(), "a.zip")
	os.WriteFile(local, []byte("x"), 0o644)

	if err := m.Upload(context.Background(), local); !errors.Is(err, ErrUploadFailed) {
		t.Errorf("put failure: error = %v, want ErrUploadFailed", err)
	}
	if err := m.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.zip")); !errors.Is(err, ErrUploadFailed) {
		t.Errorf("missing file: error = %v, want ErrUploadFailed", err)
	}
}

func TestMirror_Latest(t *testing.T) {
	tests := []struct {
		name    string
		objects map[string]string
		want    string
		wantErr error
	}{
		{
			name: "newest date wins",
			objects: map[string]string{
				"mastr/Gesamtdatenexport_20230101_23.1.zip": "a",
				"mastr/Gesamtdatenexport_20230615_23.2.zip": "b",
				"mastr/notes.txt":                           "c",
				"other/Gesamtdatenexport_20240101_24.1.zip": "d",
			},
			want: "mastr/Gesamtdatenexport_20230615_23.2.zip",
		},
		{
			name:    "empty prefix",
			objects: map[string]string{"mastr/undated.zip": "a"},
			wantErr: ErrObjectNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMirrorWithClient(newFakeS3(tt.objects), "bucket", "mastr/")
			obj, err := m.Latest(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Latest() error = %v, want %v", err, tt.wantErr)
			}
			if obj.Key != tt.want {
				t.Errorf("Key = %q, want %q", obj.Key, tt.want)
			}
			if tt.want != "" && !obj.PublishDate.Equal(time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC)) {
				t.Errorf("PublishDate = %v", obj.PublishDate)
			}
		})
	}
}

func TestMirror_Download(t *testing.T) {
	m := NewMirrorWithClient(newFakeS3(map[string]string{
		"mastr/Gesamtdatenexport_20230615_23.2.zip": "zip-bytes",
	}), "bucket", "mastr/")
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "downloads")

	obj, err := m.Latest(ctx)
	if err != nil {
		t.Fatal(err)
	}
	path, err := m.Download(ctx, obj, dir)
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if filepath.Base(path) != "Gesamtdatenexport_20230615_23.2.zip" {
		t.Errorf("path = %q", path)
	}
	if data, _ := os.ReadFile(path); string(data) != "zip-bytes" {
		t.Errorf("content = %q", data)
	}

	_, err = m.Download(ctx, Object{Key: "mastr/gone.zip", Name: "gone.zip"}, dir)
	if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("missing object: error = %v, want ErrObjectNotFound", err)
	}
}
