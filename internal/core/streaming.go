package core

// streaming.go provides reader wrappers for archive payloads.
//
//   - NewPayloadReader: detects UTF-16 (with or without BOM) and decodes to UTF-8
//   - StreamingCountingReader: tracks bytes read for progress reporting

import (
	"bufio"
	"bytes"
	"io"
	"sync/atomic"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// NewPayloadReader returns a reader yielding UTF-8 for a registry payload.
//
// Exports are UTF-16; the byte order is taken from the BOM, or guessed from the
// position of the zero byte around the leading '<' when the BOM is missing.
// Anything else is treated as UTF-8 and only a UTF-8 BOM is dropped.
func NewPayloadReader(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	head, _ := br.Peek(3)

	switch {
	case len(head) >= 2 && head[0] == 0xFF && head[1] == 0xFE,
		len(head) >= 2 && head[0] == 0xFE && head[1] == 0xFF:
		dec := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder()
		return transform.NewReader(br, dec)
	case len(head) >= 2 && head[0] == '<' && head[1] == 0x00:
		dec := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
		return transform.NewReader(br, dec)
	case len(head) >= 2 && head[0] == 0x00 && head[1] == '<':
		dec := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
		return transform.NewReader(br, dec)
	case bytes.HasPrefix(head, utf8BOM):
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// DecodePayload reads r to the end and returns the UTF-8 content.
func DecodePayload(r io.Reader) ([]byte, error) {
	return io.ReadAll(NewPayloadReader(r))
}

// StreamingCountingReader wraps an io.Reader to track bytes read.
// BytesRead may be called from another goroutine while reads are in progress.
type StreamingCountingReader struct {
	reader io.Reader
	read   atomic.Int64
	Total  int64 // If known (0 if unknown)
}

// NewStreamingCountingReader creates a counting reader with optional total size.
func NewStreamingCountingReader(r io.Reader, total int64) *StreamingCountingReader {
	return &StreamingCountingReader{
		reader: r,
		Total:  total,
	}
}

// Read implements io.Reader.
func (r *StreamingCountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.read.Add(int64(n))
	return n, err
}

// BytesRead returns the number of bytes read so far.
func (r *StreamingCountingReader) BytesRead() int64 {
	return r.read.Load()
}

// Progress returns the read progress as a percentage (0-100).
// Returns 0 if total is unknown.
func (r *StreamingCountingReader) Progress() int {
	if r.Total <= 0 {
		return 0
	}
	return int(r.BytesRead() * 100 / r.Total)
}
