package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/jlaffaye/ftp"
)

// ftpSession is the part of *ftp.ServerConn the store uses
type ftpSession interface {
	MakeDir(path string) error
	FileSize(path string) (int64, error)
	Stor(path string, r io.Reader) error
	List(path string) ([]*ftp.Entry, error)
	Delete(path string) error
	NoOp() error
	Quit() error
}

// FTPStore keeps attachments on an FTP server below root.
// A single control connection is shared and guarded by a mutex.
type FTPStore struct {
	mu       sync.Mutex
	addr     string
	user     string
	password string
	root     string
	timeout  time.Duration
	conn     ftpSession
}

// NewFTPStore creates a lazily connecting FTP store
func NewFTPStore(addr, user, password, root string) *FTPStore {
	return &FTPStore{
		addr:     addr,
		user:     user,
		password: password,
		root:     strings.TrimRight(root, "/"),
		timeout:  10 * time.Second,
	}
}

// connect establishes the connection; callers hold mu
func (s *FTPStore) connect(ctx context.Context) error {
	if s.conn != nil {
		return nil
	}

	conn, err := ftp.Dial(s.addr, ftp.DialWithTimeout(s.timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to connect to FTP: %w", err)
	}

	if err := conn.Login(s.user, s.password); err != nil {
		conn.Quit()
		return fmt.Errorf("failed to login to FTP: %w", err)
	}

	s.conn = conn
	return nil
}

// reset drops a connection after a transport error so the next call redials
func (s *FTPStore) reset() {
	if s.conn != nil {
		s.conn.Quit()
		s.conn = nil
	}
}

func (s *FTPStore) full(key string) string {
	if s.root == "" {
		return key
	}
	return s.root + "/" + key
}

// Upload creates missing parent directories and stores the file.
// An existing file is never overwritten.
func (s *FTPStore) Upload(ctx context.Context, p, contentType string, r io.Reader) error {
	key, err := CleanPath(p)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.connect(ctx); err != nil {
		return err
	}

	exists, err := s.exists(s.full(key))
	if err != nil {
		s.reset()
		return fmt.Errorf("failed to check %s: %w", key, err)
	}
	if exists {
		return fmt.Errorf("%w: %s", ErrObjectExists, key)
	}

	if err := s.makeDirs(key); err != nil {
		return err
	}

	if err := s.conn.Stor(s.full(key), r); err != nil {
		s.reset()
		return fmt.Errorf("failed to upload file: %w", err)
	}
	return nil
}

// exists reports whether SIZE succeeds for p. Any server reply other than
// success, including an unsupported SIZE, counts as missing.
func (s *FTPStore) exists(p string) (bool, error) {
	_, err := s.conn.FileSize(p)
	if err == nil {
		return true, nil
	}
	var protoErr *textproto.Error
	if errors.As(err, &protoErr) {
		return false, nil
	}
	return false, err
}

// makeDirs creates every parent directory of key. Servers answer MKD on an
// existing directory with 550 (or 521), which is not an error here.
func (s *FTPStore) makeDirs(key string) error {
	for _, dir := range parentDirs(s.full(key)) {
		err := s.conn.MakeDir(dir)
		if err == nil {
			continue
		}
		var protoErr *textproto.Error
		if errors.As(err, &protoErr) && (protoErr.Code == ftp.StatusFileUnavailable || protoErr.Code == 521) {
			continue
		}
		if !errors.As(err, &protoErr) {
			s.reset()
		}
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// ListFolders lists sub-directories of prefix. A missing prefix yields no folders.
func (s *FTPStore) ListFolders(ctx context.Context, prefix string) ([]string, error) {
	dir, err := CleanPath(prefix)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	entries, err := s.conn.List(s.full(dir))
	if err != nil {
		var protoErr *textproto.Error
		if errors.As(err, &protoErr) && protoErr.Code == ftp.StatusFileUnavailable {
			return []string{}, nil
		}
		s.reset()
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	folders := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type == ftp.EntryTypeFolder && e.Name != "." && e.Name != ".." {
			folders = append(folders, e.Name)
		}
	}
	return folders, nil
}

// Delete removes files, collecting every failure
func (s *FTPStore) Delete(ctx context.Context, paths ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.connect(ctx); err != nil {
		return err
	}

	var errs []error
	for _, p := range paths {
		key, err := CleanPath(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.conn.Delete(s.full(key)); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

// Ping sends NOOP on the control connection
func (s *FTPStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.connect(ctx); err != nil {
		return err
	}
	if err := s.conn.NoOp(); err != nil {
		s.reset()
		return fmt.Errorf("ftp noop failed: %w", err)
	}
	return nil
}

// Close quits the FTP session
func (s *FTPStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	err := s.conn.Quit()
	s.conn = nil
	return err
}

// parentDirs returns every ancestor directory of p, shallowest first
func parentDirs(p string) []string {
	var dirs []string
	dir := path.Dir(p)
	for dir != "." && dir != "/" && dir != "" {
		dirs = append([]string{dir}, dirs...)
		dir = path.Dir(dir)
	}
	return dirs
}
