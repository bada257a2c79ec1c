package remote

import (
	"context"
	"io"
)

// Session exposes the primitive remote-filesystem operations of one authenticated
// connection. A Session holds a working-directory cursor and supports a single
// in-flight transfer, so it must not be used concurrently.
type Session interface {
	// ChangeDir moves into path, relative to the current working directory unless
	// path is absolute. A non-nil error means the directory could not be entered.
	ChangeDir(path string) error
	// MakeDir creates a single directory. Callers treat failure as best-effort.
	MakeDir(path string) error
	// CurrentDir reports the remote working directory.
	CurrentDir() (string, error)
	// Put uploads r to path using binary transfer mode.
	Put(path string, r io.Reader) error
	// Delete removes the file at path.
	Delete(path string) error
	// NoOp round-trips a no-op command to keep the control connection alive.
	NoOp() error
	// Close releases the connection. It is safe to call more than once.
	Close() error
}

// Dialer establishes authenticated sessions.
type Dialer interface {
	Dial(ctx context.Context, cfg Config) (Session, error)
}

// DialFunc adapts a function to the Dialer interface.
type DialFunc func(ctx context.Context, cfg Config) (Session, error)

// Dial calls f(ctx, cfg).
func (f DialFunc) Dial(ctx context.Context, cfg Config) (Session, error) {
	return f(ctx, cfg)
}
