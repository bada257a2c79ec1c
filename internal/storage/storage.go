// Package storage implements the FTP-backed object store: path resolution under a
// configured root, remote directory provisioning, and the write/delete/resolve
// operations together with their thumbnail variants.
package storage

import (
	"bytes"
	"context"
	"io"
	"os"

	"github.com/charlesng35/ftpstore/internal/thumbnail"
)

// OriginalKey names the original object in the map returned by Resolve.
const OriginalKey = "original"

// Storage is the contract shared by storage backends.
type Storage interface {
	// Resolve maps OriginalKey and every size key to a public URL. It performs no I/O.
	Resolve(objectPath string, sizes thumbnail.Sizes) map[string]string
	// Put stores src at objectPath and generates one variant per size.
	Put(ctx context.Context, objectPath string, src Source, sizes thumbnail.Sizes) (*WriteResult, error)
	// Remove deletes objectPath and its variants, tolerating absent targets.
	Remove(ctx context.Context, objectPath string, sizes thumbnail.Sizes) (*DeleteResult, error)
	// Write is Put reduced to whether the original object was stored.
	Write(ctx context.Context, objectPath string, src Source, sizes thumbnail.Sizes) bool
	// Delete is Remove reduced to a boolean.
	Delete(ctx context.Context, objectPath string, sizes thumbnail.Sizes) bool
	// Ping round-trips a no-op to the backend.
	Ping(ctx context.Context) error
	Close() error
}

// Source is a re-openable byte source. Each Open streams the content from the start,
// so the original can be uploaded and then handed to the thumbnail generator.
type Source interface {
	Open() (io.ReadCloser, error)
}

// FileSource streams a local file, typically an upload's temp file.
type FileSource string

// Open implements Source.
func (f FileSource) Open() (io.ReadCloser, error) {
	return os.Open(string(f))
}

// BytesSource serves an in-memory payload.
type BytesSource []byte

// Open implements Source.
func (b BytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b)), nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
