package blobstore

import (
	"context"
	"encoding/hex"
	"hash"
	"io"

	"golang.org/x/crypto/blake2b"
)

const checksumPrefix = "blake2b-256:"

// checksumWriter counts and hashes everything written through it.
type checksumWriter struct {
	h hash.Hash
	n int64
}

func newChecksumWriter() *checksumWriter {
	// blake2b.New256 only fails for keys longer than 64 bytes.
	h, _ := blake2b.New256(nil)
	return &checksumWriter{h: h}
}

func (w *checksumWriter) Write(p []byte) (int, error) {
	n, _ := w.h.Write(p)
	w.n += int64(n)
	return n, nil
}

func (w *checksumWriter) Sum() string {
	return checksumPrefix + hex.EncodeToString(w.h.Sum(nil))
}

// Checksum returns the digest of r in the format stored on blobs.
func Checksum(r io.Reader) (string, error) {
	w := newChecksumWriter()
	if _, err := io.Copy(w, r); err != nil {
		return "", err
	}
	return w.Sum(), nil
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (r contextReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
