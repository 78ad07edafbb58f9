// Package codec implements gzip compression and SHA-256 hashing (spec.md §4.1).
package codec

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Compress gzip-compresses data at the fast compression level.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compress: %w", err)
	}
	return buf.Bytes(), nil
}

// ErrDecompression is returned when gzip payload is malformed.
var ErrDecompression = fmt.Errorf("decompression failed")

// Decompress gzip-decompresses data, wrapping any failure in ErrDecompression.
func Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompression, err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompression, err)
	}
	return out, nil
}

// Hash returns the lowercase hex-encoded SHA-256 digest of data.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Compressor bounds concurrent CPU-bound compressions with a buffered-channel
// semaphore, the same shape as a per-key concurrency gate elsewhere in this
// corpus, simplified to a single global pool since compression has no tenant
// dimension to key on.
type Compressor struct {
	slots chan struct{}
}

// NewCompressor builds a Compressor allowing up to max concurrent
// acquisitions (spec.md's MAX_CONCURRENT_COMPRESSIONS).
func NewCompressor(max int) *Compressor {
	if max <= 0 {
		max = 1
	}
	return &Compressor{slots: make(chan struct{}, max)}
}

// TryAcquire claims a slot without blocking, returning false if the pool is
// saturated.
func (c *Compressor) TryAcquire() bool {
	select {
	case c.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees a slot claimed by TryAcquire.
func (c *Compressor) Release() {
	select {
	case <-c.slots:
	default:
	}
}
