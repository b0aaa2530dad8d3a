package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dustin/go-humanize"

	"github.com/JonMunkholm/mastr-ingest/internal/archive"
	"github.com/JonMunkholm/mastr-ingest/internal/config"
	"github.com/JonMunkholm/mastr-ingest/internal/logging"
)

// Mirror keeps copies of export archives under a bucket prefix.
type Mirror struct {
	client ObjectAPI
	bucket string
	prefix string
}

// Object is a mirrored archive.
type Object struct {
	Key         string
	Name        string
	PublishDate time.Time
	Size        int64
}

// NewMirror creates an S3 client from the default AWS credential chain.
func NewMirror(ctx context.Context, cfg config.MirrorConfig) (*Mirror, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.PathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return NewMirrorWithClient(s3.NewFromConfig(awsCfg, s3Opts...), cfg.Bucket, cfg.Prefix), nil
}

// NewMirrorWithClient wraps a pre-configured client.
func NewMirrorWithClient(client ObjectAPI, bucket, prefix string) *Mirror {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Mirror{client: client, bucket: bucket, prefix: prefix}
}

// Key returns the object key for a local archive file.
func (m *Mirror) Key(localPath string) string {
	return m.prefix + filepath.Base(localPath)
}

// Upload copies a local archive into the bucket.
func (m *Mirror) Upload(ctx context.Context, localPath string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	key := m.Key(localPath)
	start := time.Now()
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(key),
		Body:          file,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String("application/zip"),
	})
	if err != nil {
		return fmt.Errorf("%w: put s3://%s/%s: %w", ErrUploadFailed, m.bucket, key, err)
	}

	logging.FromContext(ctx).Info("archive mirrored",
		"bucket", m.bucket,
		"key", key,
		"size", humanize.Bytes(uint64(info.Size())),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Latest returns the mirrored archive with the newest publication date.
// Objects whose names carry no date are ignored.
func (m *Mirror) Latest(ctx context.Context) (Object, error) {
	paginator := s3.NewListObjectsV2Paginator(m.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(m.bucket),
		Prefix: aws.String(m.prefix),
	})

	var (
		best  Object
		found bool
	)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return Object{}, fmt.Errorf("failed to list objects: %w", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			name := path.Base(key)
			if !strings.HasSuffix(strings.ToLower(name), ".zip") {
				continue
			}
			date, ok := archive.ParsePublishDate(name)
			if !ok {
				continue
			}
			if !found || date.After(best.PublishDate) {
				best = Object{Key: key, Name: name, PublishDate: date, Size: aws.ToInt64(obj.Size)}
				found = true
			}
		}
	}

	if !found {
		return Object{}, ErrObjectNotFound
	}
	return best, nil
}

// Download writes obj into dir and returns the local path. The file only
// appears under its final name once fully written.
func (m *Mirror) Download(ctx context.Context, obj Object, dir string) (string, error) {
	resp, err := m.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(obj.Key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return "", ErrObjectNotFound
		}
		return "", fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}

	final := filepath.Join(dir, obj.Name)
	partial := final + ".part"
	file, err := os.Create(partial)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}

	n, err := io.Copy(file, resp.Body)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(partial)
		return "", fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}
	if err := os.Rename(partial, final); err != nil {
		return "", fmt.Errorf("%w: %w", ErrDownloadFailed, err)
	}

	logging.FromContext(ctx).Info("archive restored from mirror",
		"key", obj.Key,
		"path", final,
		"size", humanize.Bytes(uint64(n)),
	)
	return final, nil
}
