package storage

import (
	"context"
	"errors"
	"path"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/charlesng35/ftpstore/internal/monitoring"
	"github.com/charlesng35/ftpstore/internal/remote"
	"github.com/charlesng35/ftpstore/internal/thumbnail"
	apperrors "github.com/charlesng35/ftpstore/pkg/errors"
	"github.com/charlesng35/ftpstore/pkg/logger"
	"github.com/charlesng35/ftpstore/pkg/validator"
)

// Config is everything an FTPStorage needs at construction. It is not read again
// afterwards.
type Config struct {
	Remote remote.Config `mapstructure:"ftp"`
	// Root is prepended to every object path. It may be empty or absolute.
	Root string `mapstructure:"root"`
}

// Option customises an FTPStorage.
type Option func(*FTPStorage)

// WithDialer replaces the FTP dialer, mostly for tests.
func WithDialer(d remote.Dialer) Option {
	return func(s *FTPStorage) {
		s.dialer = d
	}
}

// WithThumbnailer sets the collaborator producing thumbnail variants. Nil disables
// thumbnail generation.
func WithThumbnailer(g thumbnail.Generator) Option {
	return func(s *FTPStorage) {
		s.thumbs = g
	}
}

// WithURLBuilder sets the helper used by Resolve.
func WithURLBuilder(u URLBuilder) Option {
	return func(s *FTPStorage) {
		s.urls = u
	}
}

// WithLogger overrides the module logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *FTPStorage) {
		if l != nil {
			s.log = l
		}
	}
}

var _ Storage = (*FTPStorage)(nil)

// FTPStorage stores objects on one FTP session. Calls are serialised on the session;
// waiting for it honours the caller's context.
type FTPStorage struct {
	resolver Resolver
	dialer   remote.Dialer
	thumbs   thumbnail.Generator
	urls     URLBuilder
	log      *zap.Logger

	// sem holds one token while the session is in use.
	sem  chan struct{}
	sess remote.Session
	// closed is readable without the token.
	closed atomic.Bool
}

// NewFTPStorage validates cfg and opens the session. Either a fully connected adapter
// or an error is returned; on failure no connection is left open.
func NewFTPStorage(ctx context.Context, cfg Config, opts ...Option) (*FTPStorage, error) {
	s := &FTPStorage{
		dialer: remote.FTPDialer{},
		thumbs: thumbnail.NewResizer("", 0),
		log:    logger.WithModule("storage.ftp"),
		sem:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := validator.ValidateStruct(cfg); err != nil {
		return nil, apperrors.ErrConfiguration.WithMessage("storage: invalid ftp configuration").WithInternal(err)
	}
	if s.dialer == nil {
		return nil, apperrors.ErrConfiguration.WithMessage("storage: no ftp dialer available")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	s.resolver = NewResolver(cfg.Root, s.urls)
	s.log = s.log.With(zap.String("addr", cfg.Remote.Address()), zap.String("root", s.resolver.Prefix()))

	sess, err := s.dialer.Dial(ctx, cfg.Remote)
	if err != nil {
		switch apperrors.KindOf(err) {
		case apperrors.KindConfiguration, apperrors.KindConnection:
			return nil, err
		}
		return nil, apperrors.ErrConnection.WithMessage("storage: connect to %s", cfg.Remote.Address()).WithInternal(err)
	}
	if sess == nil {
		return nil, apperrors.ErrConnection.WithMessage("storage: dialer returned no session")
	}
	s.sess = sess

	s.log.Info("ftp storage ready")
	return s, nil
}

// Resolver exposes the path math of the adapter.
func (s *FTPStorage) Resolver() Resolver {
	return s.resolver
}

// Resolve implements Storage.
func (s *FTPStorage) Resolve(objectPath string, sizes thumbnail.Sizes) map[string]string {
	return s.resolver.Resolve(objectPath, sizes)
}

// Put uploads src under the root prefix and then one thumbnail per size. The returned
// error is non-nil only when the original object was not stored; thumbnail failures
// are reported in the result.
func (s *FTPStorage) Put(ctx context.Context, objectPath string, src Source, sizes thumbnail.Sizes) (*WriteResult, error) {
	start := time.Now()
	full := s.resolver.ApplyPrefix(objectPath)
	res := &WriteResult{Path: full, Original: StepResult{Path: full}, Thumbnails: map[string]StepResult{}}
	defer func() {
		monitoring.RecordOperation("write", string(res.Outcome()), time.Since(start))
	}()

	log := s.log.With(zap.String("op_id", uuid.NewString()), zap.String("path", full))

	if err := s.lock(ctx); err != nil {
		res.Original.Err = err
		return res, err
	}
	defer s.unlock()

	if err := s.usable(ctx); err != nil {
		res.Original.Err = err
		return res, err
	}
	if src == nil {
		res.Original.Err = apperrors.ErrTransfer.WithMessage("storage: no source for %s", full)
		return res, res.Original.Err
	}

	dir := path.Dir(full)
	if err := EnsureDirectory(s.sess, dir, log); err != nil {
		log.Warn("provision directory failed", zap.String("dir", dir), zap.Error(err))
		res.Original.Err = err
		return res, err
	}

	if err := s.upload(ctx, log, "original", full, src); err != nil {
		res.Original.Err = err
		return res, err
	}

	if len(sizes) > 0 && s.thumbs != nil {
		s.putThumbnails(ctx, log, res, src, sizes, dir)
	}

	if res.Outcome() == OutcomePartial {
		log.Warn("object stored with thumbnail failures", zap.Error(res.Err()))
	} else {
		log.Debug("object stored", zap.Int("thumbnails", len(res.Thumbnails)))
	}
	return res, nil
}

func (s *FTPStorage) putThumbnails(ctx context.Context, log *zap.Logger, res *WriteResult, src Source, sizes thumbnail.Sizes, ensuredDir string) {
	keyByPath := make(map[string]string, len(sizes))
	for _, key := range sizes.Keys() {
		loc := s.resolver.ThumbnailLocation(res.Path, key)
		keyByPath[loc] = key
		res.Thumbnails[key] = StepResult{Path: loc}
	}

	sunk := map[string]bool{}
	ensured := map[string]bool{ensuredDir: true}
	sink := func(ctx context.Context, variant thumbnail.Opener, remotePath string) error {
		key, ok := keyByPath[remotePath]
		if !ok {
			return apperrors.ErrThumbnail.WithMessage("storage: unexpected thumbnail path %s", remotePath)
		}
		sunk[key] = true

		err := s.usable(ctx)
		if dir := path.Dir(remotePath); err == nil && !ensured[dir] {
			if err = EnsureDirectory(s.sess, dir, log); err == nil {
				ensured[dir] = true
			}
		}
		if err == nil {
			err = s.upload(ctx, log, "thumbnail", remotePath, variant)
		}
		if err != nil {
			err = apperrors.ErrThumbnail.WithMessage("storage: thumbnail %q", key).WithInternal(err)
		}
		res.Thumbnails[key] = StepResult{Path: remotePath, Err: err}
		return err
	}

	genErr := s.thumbs.Generate(ctx, src, sizes, res.Path, sink)
	if genErr == nil {
		return
	}
	for key, step := range res.Thumbnails {
		if !sunk[key] {
			step.Err = apperrors.ErrThumbnail.WithMessage("storage: thumbnail %q not produced", key).WithInternal(genErr)
			res.Thumbnails[key] = step
		}
	}
}

func (s *FTPStorage) upload(ctx context.Context, log *zap.Logger, variant, remotePath string, src thumbnail.Opener) error {
	if err := ctx.Err(); err != nil {
		return apperrors.ErrTransfer.WithMessage("storage: upload %s", remotePath).WithInternal(err)
	}

	rc, err := src.Open()
	if err != nil {
		monitoring.RecordTransfer(variant, "error", 0)
		return apperrors.ErrTransfer.WithMessage("storage: open source for %s", remotePath).WithInternal(err)
	}
	defer rc.Close()

	body := &countingReader{r: rc}
	if err := s.sess.Put(remotePath, body); err != nil {
		monitoring.RecordTransfer(variant, "error", body.n)
		log.Warn("upload failed", zap.String("variant", variant), zap.String("remote", remotePath), zap.Error(err))
		return apperrors.ErrTransfer.WithMessage("storage: upload %s", remotePath).WithInternal(err)
	}

	monitoring.RecordTransfer(variant, "success", body.n)
	log.Debug("uploaded", zap.String("variant", variant), zap.String("remote", remotePath), zap.Int64("bytes", body.n))
	return nil
}

// Remove deletes the original and every thumbnail location. Missing targets and other
// delete failures are tolerated and reported as StepResult.Ignored; only cancellation
// or a closed adapter yields an error.
func (s *FTPStorage) Remove(ctx context.Context, objectPath string, sizes thumbnail.Sizes) (*DeleteResult, error) {
	start := time.Now()
	full := s.resolver.ApplyPrefix(objectPath)
	res := &DeleteResult{Path: full, Original: StepResult{Path: full}, Thumbnails: map[string]StepResult{}}
	defer func() {
		monitoring.RecordOperation("delete", string(res.Outcome()), time.Since(start))
	}()

	log := s.log.With(zap.String("op_id", uuid.NewString()), zap.String("path", full))

	if err := s.lock(ctx); err != nil {
		res.Original.Err = err
		return res, err
	}
	defer s.unlock()

	if err := s.usable(ctx); err != nil {
		res.Original.Err = err
		return res, err
	}

	res.Original = s.remove(ctx, log, full)
	for _, key := range sizes.Keys() {
		res.Thumbnails[key] = s.remove(ctx, log, s.resolver.ThumbnailLocation(full, key))
	}

	if ignored := res.Ignored(); len(ignored) > 0 {
		log.Debug("delete tolerated missing targets", zap.Strings("targets", ignored))
	}
	return res, res.Err()
}

func (s *FTPStorage) remove(ctx context.Context, log *zap.Logger, remotePath string) StepResult {
	step := StepResult{Path: remotePath}
	if err := ctx.Err(); err != nil {
		step.Err = apperrors.ErrTransfer.WithMessage("storage: delete %s", remotePath).WithInternal(err)
		return step
	}
	if err := s.sess.Delete(remotePath); err != nil {
		log.Debug("delete ignored", zap.String("remote", remotePath), zap.Error(err))
		monitoring.RecordBestEffortFailure("delete")
		step.Ignored = err
	}
	return step
}

// Write stores the object and reports whether the original was uploaded.
func (s *FTPStorage) Write(ctx context.Context, objectPath string, src Source, sizes thumbnail.Sizes) bool {
	res, err := s.Put(ctx, objectPath, src, sizes)
	return err == nil && res.OK()
}

// Delete removes the object and its variants. Deleting an object that was never
// written succeeds.
func (s *FTPStorage) Delete(ctx context.Context, objectPath string, sizes thumbnail.Sizes) bool {
	res, err := s.Remove(ctx, objectPath, sizes)
	return err == nil && res.OK()
}

// Ping sends NOOP on the session. A session busy with another call is reported alive
// without waiting: its transfer already proves the connection.
func (s *FTPStorage) Ping(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
	default:
		if s.closed.Load() {
			return apperrors.ErrClosed
		}
		s.log.Debug("noop skipped, session busy")
		return nil
	}
	defer s.unlock()

	if err := s.usable(ctx); err != nil {
		return err
	}
	if err := s.sess.NoOp(); err != nil {
		return apperrors.ErrConnection.WithMessage("storage: noop").WithInternal(err)
	}
	return nil
}

// Close releases the session. It is idempotent; later calls to other methods return
// ErrClosed. A failing QUIT is logged and returned, but the adapter is closed anyway.
func (s *FTPStorage) Close() error {
	if s == nil {
		return nil
	}
	s.sem <- struct{}{}
	defer s.unlock()

	if s.closed.Swap(true) {
		return nil
	}
	if s.sess == nil {
		return nil
	}

	err := s.sess.Close()
	if err != nil {
		s.log.Warn("ftp session close failed", zap.Error(err))
	} else {
		s.log.Info("ftp storage closed")
	}
	return err
}

// lock takes the session, giving up when ctx ends first.
func (s *FTPStorage) lock(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return apperrors.ErrTransfer.WithMessage("storage: waiting for the session").WithInternal(ctx.Err())
	}
}

func (s *FTPStorage) unlock() {
	<-s.sem
}

// usable must be called while holding the session token.
func (s *FTPStorage) usable(ctx context.Context) error {
	if s.closed.Load() || s.sess == nil {
		return apperrors.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return apperrors.ErrConnection.WithMessage("storage: deadline exceeded").WithInternal(err)
		}
		return apperrors.ErrTransfer.WithMessage("storage: canceled").WithInternal(err)
	}
	return nil
}
