package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/ftpstore/internal/monitoring"
	"github.com/charlesng35/ftpstore/internal/remote"
	"github.com/charlesng35/ftpstore/internal/remote/remotetest"
	"github.com/charlesng35/ftpstore/internal/thumbnail"
	apperrors "github.com/charlesng35/ftpstore/pkg/errors"
)

var thumbSizes = thumbnail.Sizes{"thumb": {Width: 64, Height: 64}}

// copyGenerator hands the source bytes to the sink unchanged for every size.
var copyGenerator = thumbnail.GeneratorFunc(func(ctx context.Context, src thumbnail.Opener, sizes thumbnail.Sizes, basePath string, sink thumbnail.SinkFunc) error {
	var errs []error
	for _, key := range sizes.Keys() {
		if err := sink(ctx, src, thumbnail.Location(basePath, key)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
})

func testConfig(root string) Config {
	return Config{
		Remote: remote.Config{Host: "ftp.test", Username: "demo", Passive: true},
		Root:   root,
	}
}

func newTestStorage(t *testing.T, srv *remotetest.Server, root string, opts ...Option) *FTPStorage {
	t.Helper()
	opts = append([]Option{WithDialer(srv.Dialer()), WithThumbnailer(copyGenerator)}, opts...)
	st, err := NewFTPStorage(context.Background(), testConfig(root), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestFTPStorage_WriteEndToEnd(t *testing.T) {
	srv := remotetest.NewServer()
	st := newTestStorage(t, srv, "uploads")
	payload := BytesSource("0123456789")

	res, err := st.Put(context.Background(), "2024/img.png", payload, thumbSizes)
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, res.Outcome())
	require.Equal(t, "uploads/2024/img.png", res.Path)
	require.Equal(t, "uploads/2024/img-thumb.png", res.Thumbnails["thumb"].Path)

	puts := srv.CallsOf(remotetest.OpPut)
	require.Len(t, puts, 2)
	require.Equal(t, "uploads/2024/img.png", puts[0].Path)
	require.Equal(t, "uploads/2024/img-thumb.png", puts[1].Path)

	firstPut, lastEnsure := -1, -1
	for i, call := range srv.Calls() {
		switch {
		case call.Op == remotetest.OpPut && firstPut == -1:
			firstPut = i
		case (call.Op == remotetest.OpMakeDir || call.Op == remotetest.OpChangeDir) && call.Abs == "/uploads/2024":
			lastEnsure = i
		}
	}
	require.NotEqual(t, -1, lastEnsure)
	require.Less(t, lastEnsure, firstPut)

	data, ok := srv.File("/uploads/2024/img.png")
	require.True(t, ok)
	require.Len(t, data, 10)
	_, ok = srv.File("/uploads/2024/img-thumb.png")
	require.True(t, ok)
}

func TestFTPStorage_WriteRestoresWorkingDirectory(t *testing.T) {
	srv := remotetest.NewServer()
	srv.HomeDir = "/home/demo"
	st := newTestStorage(t, srv, "uploads")

	require.True(t, st.Write(context.Background(), "a/b/c.txt", BytesSource("x"), nil))

	sessions := srv.Sessions()
	require.Len(t, sessions, 1)
	require.Equal(t, "/home/demo", sessions[0].WorkingDir())
	require.True(t, srv.DirExists("/home/demo/uploads/a/b"))
}

func TestFTPStorage_AbsoluteRoot(t *testing.T) {
	srv := remotetest.NewServer()
	srv.HomeDir = "/home/demo"
	st := newTestStorage(t, srv, "/srv/media")

	require.True(t, st.Write(context.Background(), "/x.bin", BytesSource("x"), nil))
	_, ok := srv.File("/srv/media/x.bin")
	require.True(t, ok)
}

func TestFTPStorage_DeleteNeverWritten(t *testing.T) {
	srv := remotetest.NewServer()
	st := newTestStorage(t, srv, "uploads")

	require.True(t, st.Delete(context.Background(), "missing/file.png", thumbSizes))

	res, err := st.Remove(context.Background(), "missing/file.png", thumbSizes)
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, res.Outcome())
	require.NoError(t, res.Err())
	require.Equal(t, []string{"uploads/missing/file.png", "uploads/missing/file-thumb.png"}, res.Ignored())
}

func TestFTPStorage_WriteDeleteResolve(t *testing.T) {
	srv := remotetest.NewServer()
	base, err := NewBaseURL("https://cdn.example.com")
	require.NoError(t, err)
	st := newTestStorage(t, srv, "uploads", WithURLBuilder(base))
	ctx := context.Background()

	require.True(t, st.Write(ctx, "2024/img.png", BytesSource("0123456789"), thumbSizes))
	require.Len(t, srv.Files(), 2)

	res, err := st.Remove(ctx, "2024/img.png", thumbSizes)
	require.NoError(t, err)
	require.Empty(t, res.Ignored())
	require.Empty(t, srv.Files())

	urls := st.Resolve("2024/img.png", thumbSizes)
	require.Equal(t, "https://cdn.example.com/2024/img.png", urls[OriginalKey])
	require.Equal(t, "https://cdn.example.com/2024/img-thumb.png", urls["thumb"])
	for _, u := range urls {
		require.NotContains(t, u, "uploads")
	}
}

func TestFTPStorage_ResolvePerformsNoIO(t *testing.T) {
	srv := remotetest.NewServer()
	st := newTestStorage(t, srv, "uploads")
	srv.ResetCalls()

	urls := st.Resolve("2024/img.png", thumbnail.Sizes{"small": {Width: 10, Height: 10}})

	require.Len(t, urls, 2)
	require.Contains(t, urls, OriginalKey)
	require.Contains(t, urls, "small")
	require.Empty(t, srv.Calls())
}

func TestFTPStorage_PrimaryFailureGatesResult(t *testing.T) {
	srv := remotetest.NewServer()
	srv.FailPut["/uploads/a.png"] = errors.New("552 quota exceeded")
	st := newTestStorage(t, srv, "uploads")

	require.False(t, st.Write(context.Background(), "a.png", BytesSource("abc"), thumbSizes))

	res, err := st.Put(context.Background(), "a.png", BytesSource("abc"), thumbSizes)
	require.ErrorIs(t, err, apperrors.ErrTransfer)
	require.False(t, res.OK())
	require.Equal(t, OutcomeFailure, res.Outcome())
	require.Empty(t, res.Thumbnails)
	for _, call := range srv.CallsOf(remotetest.OpPut) {
		require.Equal(t, "uploads/a.png", call.Path)
	}
}

func TestFTPStorage_ThumbnailFailureIsPartial(t *testing.T) {
	srv := remotetest.NewServer()
	srv.FailPut["/uploads/a-thumb.png"] = errors.New("553 denied")
	st := newTestStorage(t, srv, "uploads")

	res, err := st.Put(context.Background(), "a.png", BytesSource("abc"), thumbSizes)
	require.NoError(t, err)
	require.True(t, res.OK())
	require.Equal(t, OutcomePartial, res.Outcome())
	require.ErrorIs(t, res.Err(), apperrors.ErrThumbnail)
	require.ErrorIs(t, res.Thumbnails["thumb"].Err, apperrors.ErrTransfer)

	require.True(t, st.Write(context.Background(), "a.png", BytesSource("abc"), thumbSizes))
}

func TestFTPStorage_GeneratorErrorMarksMissingVariants(t *testing.T) {
	srv := remotetest.NewServer()
	failing := thumbnail.GeneratorFunc(func(context.Context, thumbnail.Opener, thumbnail.Sizes, string, thumbnail.SinkFunc) error {
		return errors.New("unsupported image")
	})
	st := newTestStorage(t, srv, "", WithThumbnailer(failing))

	sizes := thumbnail.Sizes{"small": {Width: 10}, "large": {Width: 100}}
	res, err := st.Put(context.Background(), "doc.pdf", BytesSource("%PDF"), sizes)
	require.NoError(t, err)
	require.Equal(t, OutcomePartial, res.Outcome())
	require.Len(t, res.Thumbnails, 2)
	for key, step := range res.Thumbnails {
		require.ErrorIs(t, step.Err, apperrors.ErrThumbnail, key)
	}
	require.Len(t, srv.CallsOf(remotetest.OpPut), 1)
}

func TestFTPStorage_NilThumbnailerSkipsVariants(t *testing.T) {
	srv := remotetest.NewServer()
	st := newTestStorage(t, srv, "uploads", WithThumbnailer(nil))

	res, err := st.Put(context.Background(), "a.png", BytesSource("abc"), thumbSizes)
	require.NoError(t, err)
	require.Empty(t, res.Thumbnails)
	require.Len(t, srv.CallsOf(remotetest.OpPut), 1)
}

func TestFTPStorage_DefaultResizerProducesThumbnail(t *testing.T) {
	srv := remotetest.NewServer()
	st := newTestStorage(t, srv, "uploads", WithThumbnailer(thumbnail.NewResizer(t.TempDir(), 0)))

	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		for y := 0; y < 20; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	res, err := st.Put(context.Background(), "pics/red.png", BytesSource(buf.Bytes()), thumbnail.Sizes{"small": {Width: 10, Height: 10}})
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, res.Outcome())

	data, ok := srv.File("/uploads/pics/red-small.png")
	require.True(t, ok)
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, 10, cfg.Width)
	require.Equal(t, 5, cfg.Height)
}

func TestFTPStorage_DirectoryFailureFailsWrite(t *testing.T) {
	srv := remotetest.NewServer()
	srv.MkdirAll("/uploads/locked")
	srv.DenyChangeDir["/uploads/locked"] = true
	st := newTestStorage(t, srv, "uploads")

	res, err := st.Put(context.Background(), "locked/a.png", BytesSource("abc"), nil)
	require.ErrorIs(t, err, apperrors.ErrDirectory)
	require.Equal(t, OutcomeFailure, res.Outcome())
	require.Empty(t, srv.CallsOf(remotetest.OpPut))
}

func TestFTPStorage_NilSource(t *testing.T) {
	srv := remotetest.NewServer()
	st := newTestStorage(t, srv, "uploads")
	srv.ResetCalls()

	_, err := st.Put(context.Background(), "a.png", nil, nil)
	require.ErrorIs(t, err, apperrors.ErrTransfer)
	require.Empty(t, srv.Calls())
}

func TestFTPStorage_CanceledContext(t *testing.T) {
	srv := remotetest.NewServer()
	st := newTestStorage(t, srv, "uploads")
	srv.ResetCalls()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.False(t, st.Write(ctx, "a.png", BytesSource("abc"), nil))
	require.False(t, st.Delete(ctx, "a.png", nil))
	require.Empty(t, srv.Calls())
}

func TestFTPStorage_CloseIsIdempotent(t *testing.T) {
	srv := remotetest.NewServer()
	st := newTestStorage(t, srv, "uploads")

	require.NoError(t, st.Close())
	require.NoError(t, st.Close())
	require.Equal(t, 1, srv.Sessions()[0].QuitCount())

	require.False(t, st.Write(context.Background(), "a.png", BytesSource("abc"), nil))
	require.False(t, st.Delete(context.Background(), "a.png", nil))
	require.ErrorIs(t, st.Ping(context.Background()), apperrors.ErrClosed)

	_, err := st.Put(context.Background(), "a.png", BytesSource("abc"), nil)
	require.ErrorIs(t, err, apperrors.ErrClosed)

	urls := st.Resolve("a.png", nil)
	require.Equal(t, "a.png", urls[OriginalKey])
}

func TestFTPStorage_CloseReportsQuitFailure(t *testing.T) {
	srv := remotetest.NewServer()
	srv.CloseErr = errors.New("421 timeout")
	st := newTestStorage(t, srv, "uploads")

	require.Error(t, st.Close())
	require.NoError(t, st.Close())
	require.True(t, srv.Sessions()[0].Closed())
}

func TestFTPStorage_Ping(t *testing.T) {
	srv := remotetest.NewServer()
	st := newTestStorage(t, srv, "uploads")

	require.NoError(t, st.Ping(context.Background()))
	require.Len(t, srv.CallsOf(remotetest.OpNoOp), 1)

	srv.NoOpErr = errors.New("421 closing")
	require.ErrorIs(t, st.Ping(context.Background()), apperrors.ErrConnection)
}

func TestNewFTPStorage_Failures(t *testing.T) {
	srv := remotetest.NewServer()
	srv.DialErr = errors.New("connection refused")

	_, err := NewFTPStorage(context.Background(), testConfig("uploads"), WithDialer(srv.Dialer()))
	require.ErrorIs(t, err, apperrors.ErrConnection)

	_, err = NewFTPStorage(context.Background(), Config{Root: "uploads"}, WithDialer(srv.Dialer()))
	require.ErrorIs(t, err, apperrors.ErrConfiguration)
	require.ErrorContains(t, err, "ftp.host")

	_, err = NewFTPStorage(context.Background(), testConfig("uploads"), WithDialer(nil))
	require.ErrorIs(t, err, apperrors.ErrConfiguration)

	nilSession := remote.DialFunc(func(context.Context, remote.Config) (remote.Session, error) {
		return nil, nil
	})
	_, err = NewFTPStorage(context.Background(), testConfig("uploads"), WithDialer(nilSession))
	require.ErrorIs(t, err, apperrors.ErrConnection)
}

func TestNewFTPStorage_PassesThroughTypedDialErrors(t *testing.T) {
	dialer := remote.DialFunc(func(context.Context, remote.Config) (remote.Session, error) {
		return nil, apperrors.ErrConfiguration.WithMessage("remote: host is required")
	})

	_, err := NewFTPStorage(context.Background(), testConfig(""), WithDialer(dialer))
	require.ErrorIs(t, err, apperrors.ErrConfiguration)
	require.NotErrorIs(t, err, apperrors.ErrConnection)
}

func TestFTPStorage_ConcurrentCallsAreSerialised(t *testing.T) {
	srv := remotetest.NewServer()
	st := newTestStorage(t, srv, "uploads")

	var wg sync.WaitGroup
	results := make([]bool, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = st.Write(context.Background(), fmt.Sprintf("dir%d/file.bin", i%3), BytesSource("data"), thumbSizes)
		}(i)
	}
	wg.Wait()

	for i, ok := range results {
		require.True(t, ok, "write %d", i)
	}
	require.Len(t, srv.Files(), 6)
	require.Equal(t, "/", srv.Sessions()[0].WorkingDir())
}

func TestFTPStorage_RecordsMetrics(t *testing.T) {
	module, err := monitoring.NewModule(monitoring.Options{})
	require.NoError(t, err)
	monitoring.SetModule(module)
	t.Cleanup(func() { monitoring.SetModule(nil) })

	srv := remotetest.NewServer()
	st := newTestStorage(t, srv, "uploads")

	require.True(t, st.Write(context.Background(), "a.png", BytesSource("0123456789"), thumbSizes))
	require.True(t, st.Delete(context.Background(), "never.png", nil))

	summary := monitoring.Snapshot()
	require.Equal(t, uint64(20), summary.BytesUploaded)
	require.Equal(t, uint64(1), summary.BestEffort["delete"])

	outcomes := map[string]map[string]uint64{}
	for _, op := range summary.Operations {
		outcomes[op.Operation] = op.Outcomes
	}
	require.Equal(t, uint64(1), outcomes["write"]["success"])
	require.Equal(t, uint64(1), outcomes["delete"]["success"])
}

// heldSource blocks the first Read until release is closed, keeping the session busy.
type heldSource struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newHeldSource() *heldSource {
	return &heldSource{started: make(chan struct{}), release: make(chan struct{})}
}

func (h *heldSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(io.MultiReader(readerFunc(func(p []byte) (int, error) {
		h.once.Do(func() { close(h.started) })
		<-h.release
		return 0, io.EOF
	}), strings.NewReader("late"))), nil
}

type readerFunc func(p []byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }

func TestFTPStorage_BusySessionHonoursDeadlines(t *testing.T) {
	srv := remotetest.NewServer()
	st := newTestStorage(t, srv, "uploads", WithThumbnailer(nil))

	src := newHeldSource()
	done := make(chan error, 1)
	go func() {
		_, err := st.Put(context.Background(), "slow.bin", src, nil)
		done <- err
	}()
	<-src.started

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	require.NoError(t, st.Ping(ctx))
	require.Less(t, time.Since(start), time.Second)

	_, err := st.Put(ctx, "other.bin", BytesSource("x"), nil)
	require.ErrorIs(t, err, apperrors.ErrTransfer)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = st.Remove(ctx, "other.bin", nil)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(src.release)
	require.NoError(t, <-done)
	data, ok := srv.File("/uploads/slow.bin")
	require.True(t, ok)
	require.Equal(t, "late", string(data))
	require.NoError(t, st.Ping(context.Background()))
}

func TestFTPStorage_BackslashRootProvisionsNestedDirectories(t *testing.T) {
	srv := remotetest.NewServer()
	st := newTestStorage(t, srv, `uploads\`, WithThumbnailer(nil))

	require.True(t, st.Write(context.Background(), "2024/img.png", BytesSource("abc"), nil))

	require.True(t, srv.DirExists("/uploads/2024"))
	_, ok := srv.File("/uploads/2024/img.png")
	require.True(t, ok)
}
