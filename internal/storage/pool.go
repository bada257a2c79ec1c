package storage

import (
	"context"
	"sync"

	"go.uber.org/multierr"

	"github.com/charlesng35/ftpstore/internal/thumbnail"
	apperrors "github.com/charlesng35/ftpstore/pkg/errors"
)

var _ Storage = (*Pool)(nil)

// Pool spreads calls over independently connected adapters. Each call checks one
// adapter out, so concurrent callers never share a session.
type Pool struct {
	resolver Resolver
	members  []*FTPStorage
	idle     chan *FTPStorage

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewPool connects size adapters with the same configuration. If any of them fails,
// the ones already connected are closed and the error is returned.
func NewPool(ctx context.Context, cfg Config, size int, opts ...Option) (*Pool, error) {
	if size < 1 {
		size = 1
	}

	members := make([]*FTPStorage, 0, size)
	for i := 0; i < size; i++ {
		member, err := NewFTPStorage(ctx, cfg, opts...)
		if err != nil {
			for _, m := range members {
				err = multierr.Append(err, m.Close())
			}
			return nil, err
		}
		members = append(members, member)
	}

	p := &Pool{
		resolver: members[0].Resolver(),
		members:  members,
		idle:     make(chan *FTPStorage, size),
		done:     make(chan struct{}),
	}
	for _, m := range members {
		p.idle <- m
	}
	return p, nil
}

// Size is the number of sessions held by the pool.
func (p *Pool) Size() int {
	return len(p.members)
}

// Resolve implements Storage. It needs no session.
func (p *Pool) Resolve(objectPath string, sizes thumbnail.Sizes) map[string]string {
	return p.resolver.Resolve(objectPath, sizes)
}

// Put implements Storage on a checked-out adapter.
func (p *Pool) Put(ctx context.Context, objectPath string, src Source, sizes thumbnail.Sizes) (*WriteResult, error) {
	member, err := p.acquire(ctx)
	if err != nil {
		full := p.resolver.ApplyPrefix(objectPath)
		return &WriteResult{Path: full, Original: StepResult{Path: full, Err: err}}, err
	}
	defer p.release(member)
	return member.Put(ctx, objectPath, src, sizes)
}

// Remove implements Storage on a checked-out adapter.
func (p *Pool) Remove(ctx context.Context, objectPath string, sizes thumbnail.Sizes) (*DeleteResult, error) {
	member, err := p.acquire(ctx)
	if err != nil {
		full := p.resolver.ApplyPrefix(objectPath)
		return &DeleteResult{Path: full, Original: StepResult{Path: full, Err: err}}, err
	}
	defer p.release(member)
	return member.Remove(ctx, objectPath, sizes)
}

// Write implements Storage.
func (p *Pool) Write(ctx context.Context, objectPath string, src Source, sizes thumbnail.Sizes) bool {
	res, err := p.Put(ctx, objectPath, src, sizes)
	return err == nil && res.OK()
}

// Delete implements Storage.
func (p *Pool) Delete(ctx context.Context, objectPath string, sizes thumbnail.Sizes) bool {
	res, err := p.Remove(ctx, objectPath, sizes)
	return err == nil && res.OK()
}

// Ping sends NOOP on every idle session. Sessions busy with a call count as alive.
func (p *Pool) Ping(ctx context.Context) error {
	if p.isClosed() {
		return apperrors.ErrClosed
	}
	var errs error
	for _, m := range p.members {
		errs = multierr.Append(errs, m.Ping(ctx))
	}
	return errs
}

// Close closes every adapter once. Calls in flight finish first.
func (p *Pool) Close() error {
	p.closeOnce.Do(func() {
		close(p.done)
		for _, m := range p.members {
			p.closeErr = multierr.Append(p.closeErr, m.Close())
		}
	})
	return p.closeErr
}

func (p *Pool) acquire(ctx context.Context) (*FTPStorage, error) {
	if p.isClosed() {
		return nil, apperrors.ErrClosed
	}
	select {
	case m := <-p.idle:
		return m, nil
	case <-p.done:
		return nil, apperrors.ErrClosed
	case <-ctx.Done():
		return nil, apperrors.ErrTransfer.WithMessage("storage: waiting for a free session").WithInternal(ctx.Err())
	}
}

func (p *Pool) release(m *FTPStorage) {
	p.idle <- m
}

func (p *Pool) isClosed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}
