package remote

import (
	"context"
	"crypto/tls"
	"io"
	"strings"
	"sync"

	"github.com/jlaffaye/ftp"
	"go.uber.org/zap"

	"github.com/charlesng35/ftpstore/internal/monitoring"
	apperrors "github.com/charlesng35/ftpstore/pkg/errors"
	"github.com/charlesng35/ftpstore/pkg/logger"
)

var (
	_ Dialer  = FTPDialer{}
	_ Session = (*ftpSession)(nil)
)

// FTPDialer opens sessions with github.com/jlaffaye/ftp.
type FTPDialer struct {
	// Options are appended after the options derived from Config.
	Options []ftp.DialOption
}

// Dial connects, authenticates and switches the session to binary mode. The returned
// session is always fully initialised; on any failure the connection is closed.
func (d FTPDialer) Dial(ctx context.Context, cfg Config) (Session, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, apperrors.ErrConfiguration.WithMessage("remote: host is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	addr := cfg.Address()
	log := logger.WithModule("remote.ftp").With(zap.String("addr", addr))

	opts := append(dialOptions(ctx, cfg), d.Options...)
	conn, err := ftp.Dial(addr, opts...)
	if err != nil {
		monitoring.RecordConnect("dial_error")
		return nil, apperrors.ErrConnection.WithMessage("remote: dial %s", addr).WithInternal(err)
	}

	if err := conn.Login(cfg.Username, cfg.Password); err != nil {
		if quitErr := conn.Quit(); quitErr != nil {
			log.Debug("quit after failed login", zap.Error(quitErr))
		}
		monitoring.RecordConnect("login_error")
		return nil, apperrors.ErrConnection.WithMessage("remote: login to %s as %q", addr, cfg.Username).WithInternal(err)
	}

	if err := conn.Type(ftp.TransferTypeBinary); err != nil {
		if quitErr := conn.Quit(); quitErr != nil {
			log.Debug("quit after failed TYPE I", zap.Error(quitErr))
		}
		monitoring.RecordConnect("type_error")
		return nil, apperrors.ErrConnection.WithMessage("remote: switch %s to binary mode", addr).WithInternal(err)
	}

	// The library only speaks passive (EPSV falling back to PASV); an active-mode
	// preference is reported and otherwise ignored.
	if !cfg.Passive {
		log.Warn("active transfer mode requested but unsupported; continuing in passive mode")
		monitoring.RecordBestEffortFailure("passive")
	}

	monitoring.RecordConnect("success")
	monitoring.AdjustOpenSessions(1)
	log.Debug("ftp session established", zap.String("user", cfg.Username), zap.Bool("tls", cfg.UseTLS))

	return &ftpSession{conn: conn, log: log}, nil
}

func dialOptions(ctx context.Context, cfg Config) []ftp.DialOption {
	opts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(cfg.EffectiveTimeout()),
	}
	if cfg.UseTLS {
		opts = append(opts, ftp.DialWithExplicitTLS(tlsConfig(cfg)))
	}
	return opts
}

func tlsConfig(cfg Config) *tls.Config {
	return &tls.Config{
		ServerName:         strings.TrimSpace(cfg.Host),
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // opt-in for self-signed servers
		MinVersion:         tls.VersionTLS12,
	}
}

type ftpSession struct {
	conn *ftp.ServerConn
	log  *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

func (s *ftpSession) ChangeDir(path string) error {
	return s.conn.ChangeDir(path)
}

func (s *ftpSession) MakeDir(path string) error {
	return s.conn.MakeDir(path)
}

func (s *ftpSession) CurrentDir() (string, error) {
	return s.conn.CurrentDir()
}

func (s *ftpSession) Put(path string, r io.Reader) error {
	return s.conn.Stor(path, r)
}

func (s *ftpSession) Delete(path string) error {
	return s.conn.Delete(path)
}

func (s *ftpSession) NoOp() error {
	return s.conn.NoOp()
}

// Close sends QUIT and drops the connection. Failures are logged and returned but the
// session is considered released either way.
func (s *ftpSession) Close() error {
	if s == nil || s.conn == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Quit()
		if s.closeErr != nil {
			s.log.Debug("ftp quit failed", zap.Error(s.closeErr))
			monitoring.RecordBestEffortFailure("close")
		}
		monitoring.AdjustOpenSessions(-1)
	})
	return s.closeErr
}
