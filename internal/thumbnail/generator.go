package thumbnail

import (
	"context"
	"io"
)

// Opener yields a fresh reader over a byte source each time it is called.
type Opener interface {
	Open() (io.ReadCloser, error)
}

// SinkFunc receives one produced variant and the remote path it belongs at.
type SinkFunc func(ctx context.Context, variant Opener, remotePath string) error

// Generator produces resized variants of a source. For every key in sizes it calls sink
// with the variant and Location(basePath, key). A failure for one size must not stop the
// others; the returned error combines every failure.
type Generator interface {
	Generate(ctx context.Context, src Opener, sizes Sizes, basePath string, sink SinkFunc) error
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, src Opener, sizes Sizes, basePath string, sink SinkFunc) error

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, src Opener, sizes Sizes, basePath string, sink SinkFunc) error {
	return f(ctx, src, sizes, basePath, sink)
}
