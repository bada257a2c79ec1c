// Package remotetest provides an in-memory FTP server double that records every
// primitive issued against it.
package remotetest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/charlesng35/ftpstore/internal/remote"
)

// Operation names recorded in Call.Op.
const (
	OpChangeDir  = "CWD"
	OpMakeDir    = "MKD"
	OpCurrentDir = "PWD"
	OpPut        = "STOR"
	OpDelete     = "DELE"
	OpNoOp       = "NOOP"
	OpQuit       = "QUIT"
)

// ErrSessionClosed is returned by primitives invoked after Close.
var ErrSessionClosed = errors.New("remotetest: session closed")

// Call is one recorded primitive. Path is the argument as issued and Abs the
// absolute path it resolved to.
type Call struct {
	Session int
	Op      string
	Path    string
	Abs     string
}

// Server is a shared in-memory filesystem. Each Dial yields an independent session
// with its own working directory.
type Server struct {
	mu       sync.Mutex
	dirs     map[string]bool
	files    map[string][]byte
	calls    []Call
	sessions []*Session

	// DialErr fails every Dial when set.
	DialErr error
	// HomeDir is the working directory of new sessions. Defaults to "/".
	HomeDir string
	// FailMakeDir injects MKD failures keyed by absolute path.
	FailMakeDir map[string]error
	// DenyChangeDir makes existing directories impossible to enter.
	DenyChangeDir map[string]bool
	// FailPut injects STOR failures keyed by absolute path.
	FailPut map[string]error
	// NoOpErr is returned by every NOOP when set.
	NoOpErr error
	// CloseErr is returned by every QUIT when set.
	CloseErr error
}

// NewServer returns an empty server containing only "/".
func NewServer() *Server {
	return &Server{
		dirs:          map[string]bool{"/": true},
		files:         map[string][]byte{},
		FailMakeDir:   map[string]error{},
		DenyChangeDir: map[string]bool{},
		FailPut:       map[string]error{},
	}
}

// Dialer returns a remote.Dialer producing sessions on s.
func (s *Server) Dialer() remote.Dialer {
	return remote.DialFunc(func(ctx context.Context, _ remote.Config) (remote.Session, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return s.Dial()
	})
}

// Dial opens a new session.
func (s *Server) Dial() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.DialErr != nil {
		return nil, s.DialErr
	}
	home := s.HomeDir
	if home == "" {
		home = "/"
	}
	home = path.Clean("/" + home)
	s.mkdirAllLocked(home)

	sess := &Session{server: s, id: len(s.sessions) + 1, cwd: home}
	s.sessions = append(s.sessions, sess)
	return sess, nil
}

// Sessions returns every session dialled so far.
func (s *Server) Sessions() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Session(nil), s.sessions...)
}

// MkdirAll seeds a directory chain.
func (s *Server) MkdirAll(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mkdirAllLocked(path.Clean("/" + p))
}

// WriteFile seeds a file, creating its parents.
func (s *Server) WriteFile(p string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	abs := path.Clean("/" + p)
	s.mkdirAllLocked(path.Dir(abs))
	s.files[abs] = append([]byte(nil), data...)
}

// File returns the stored content of p.
func (s *Server) File(p string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[path.Clean("/"+p)]
	return data, ok
}

// DirExists reports whether p is a directory.
func (s *Server) DirExists(p string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirs[path.Clean("/"+p)]
}

// Files lists stored file paths in sorted order.
func (s *Server) Files() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.files))
	for p := range s.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Calls returns a copy of the recorded call log.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsOf filters the call log by operation.
func (s *Server) CallsOf(op string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls clears the call log.
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

func (s *Server) mkdirAllLocked(abs string) {
	for p := abs; ; p = path.Dir(p) {
		s.dirs[p] = true
		if p == "/" {
			return
		}
	}
}

// Session is one fake connection implementing remote.Session.
type Session struct {
	server *Server
	id     int
	cwd    string
	closed bool
	quits  int
}

var _ remote.Session = (*Session)(nil)

// ID is the 1-based dial order of the session.
func (c *Session) ID() int { return c.id }

// Closed reports whether Close has been called.
func (c *Session) Closed() bool {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	return c.closed
}

// QuitCount reports how many times Close was invoked.
func (c *Session) QuitCount() int {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	return c.quits
}

// WorkingDir returns the session's working directory without recording a call.
func (c *Session) WorkingDir() string {
	c.server.mu.Lock()
	defer c.server.mu.Unlock()
	return c.cwd
}

func (c *Session) ChangeDir(p string) error {
	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()

	abs := c.record(OpChangeDir, p)
	if c.closed {
		return ErrSessionClosed
	}
	if !s.dirs[abs] || s.DenyChangeDir[abs] {
		return fmt.Errorf("550 %s: no such directory", p)
	}
	c.cwd = abs
	return nil
}

func (c *Session) MakeDir(p string) error {
	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()

	abs := c.record(OpMakeDir, p)
	if c.closed {
		return ErrSessionClosed
	}
	if err := s.FailMakeDir[abs]; err != nil {
		return err
	}
	if s.dirs[abs] {
		return fmt.Errorf("550 %s: directory exists", p)
	}
	if !s.dirs[path.Dir(abs)] {
		return fmt.Errorf("550 %s: parent does not exist", p)
	}
	s.dirs[abs] = true
	return nil
}

func (c *Session) CurrentDir() (string, error) {
	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()

	c.record(OpCurrentDir, "")
	if c.closed {
		return "", ErrSessionClosed
	}
	return c.cwd, nil
}

func (c *Session) Put(p string, r io.Reader) error {
	s := c.server
	s.mu.Lock()
	abs := c.record(OpPut, p)
	closed := c.closed
	injected := s.FailPut[abs]
	parentOK := s.dirs[path.Dir(abs)]
	s.mu.Unlock()

	if closed {
		return ErrSessionClosed
	}
	if injected != nil {
		return injected
	}
	if !parentOK {
		return fmt.Errorf("553 %s: parent directory missing", p)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("426 %s: %w", p, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[abs] = data
	return nil
}

func (c *Session) Delete(p string) error {
	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()

	abs := c.record(OpDelete, p)
	if c.closed {
		return ErrSessionClosed
	}
	if _, ok := s.files[abs]; !ok {
		return fmt.Errorf("550 %s: no such file", p)
	}
	delete(s.files, abs)
	return nil
}

func (c *Session) NoOp() error {
	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()

	c.record(OpNoOp, "")
	if c.closed {
		return ErrSessionClosed
	}
	return s.NoOpErr
}

func (c *Session) Close() error {
	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()

	c.record(OpQuit, "")
	c.quits++
	c.closed = true
	return s.CloseErr
}

// record must be called with the server lock held.
func (c *Session) record(op, p string) string {
	abs := ""
	if p != "" {
		if strings.HasPrefix(p, "/") {
			abs = path.Clean(p)
		} else {
			abs = path.Clean(path.Join(c.cwd, p))
		}
	}
	c.server.calls = append(c.server.calls, Call{Session: c.id, Op: op, Path: p, Abs: abs})
	return abs
}
