package docstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

const (
	docExt     = ".json"
	tmpSuffix  = ".tmp"
	denyMarker = ".htaccess"
	dirMode    = 0o775
	fileMode   = 0o660
)

var (
	roomFile    = regexp.MustCompile(`^\d+\.json$`)
	counterFile = regexp.MustCompile(`^[0-9A-Za-z_.:-]+\.json$`)
	tmpFile     = regexp.MustCompile(`\.json\.tmp$`)
)

// FS stores one file per document beneath a root directory. Rooms live at
// <root>/<key>.json, rate-limit counters at <root>/_ip/<key>.json.
type FS struct {
	root        string
	lockTimeout time.Duration
}

// NewFS prepares root (creating it if needed) and drops a deny-all marker so
// a web server pointed at the parent never serves the documents.
func NewFS(root string, lockTimeout time.Duration) (*FS, error) {
	if root == "" {
		return nil, errors.New("docstore: empty root")
	}
	if lockTimeout <= 0 {
		lockTimeout = 50 * time.Millisecond
	}
	if err := os.MkdirAll(root, dirMode); err != nil {
		return nil, fmt.Errorf("docstore: create root: %w", err)
	}
	marker := filepath.Join(root, denyMarker)
	if _, err := os.Stat(marker); os.IsNotExist(err) {
		if err := os.WriteFile(marker, []byte("Require all denied\n"), fileMode); err != nil {
			log.Warn().Err(err).Str("path", marker).Msg("docstore: could not write deny marker")
		}
	}
	return &FS{root: root, lockTimeout: lockTimeout}, nil
}

func (f *FS) Name() string { return "fs" }

func (f *FS) Close() error { return nil }

func (f *FS) dir(ns Namespace) string {
	if ns == RateLimit {
		return filepath.Join(f.root, "_ip")
	}
	return f.root
}

func (f *FS) path(ns Namespace, key string) (string, error) {
	if !ValidKey(key) {
		return "", ErrInvalidKey
	}
	return filepath.Join(f.dir(ns), key+docExt), nil
}

func (f *FS) Get(ctx context.Context, ns Namespace, key string) ([]byte, error) {
	p, err := f.path(ns, key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return b, err
}

func (f *FS) Exists(ctx context.Context, ns Namespace, key string) (bool, error) {
	p, err := f.path(ns, key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return err == nil, err
}

// Put writes data through a sibling temp file held under an exclusive flock,
// then renames it over the final path. On any failure the temp file is
// removed and the previous document is left untouched.
func (f *FS) Put(ctx context.Context, ns Namespace, key string, data []byte) error {
	start := time.Now()
	final, err := f.path(ns, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(final), dirMode); err != nil {
		return fmt.Errorf("docstore: mkdir: %w", err)
	}
	tmp := final + tmpSuffix

	fh, err := f.openLocked(ctx, tmp)
	if err != nil {
		writeResults.WithLabelValues(f.Name(), "locked").Inc()
		return err
	}
	fail := func(err error) error {
		_ = os.Remove(tmp)
		_ = unix.Flock(int(fh.Fd()), unix.LOCK_UN)
		_ = fh.Close()
		writeResults.WithLabelValues(f.Name(), "error").Inc()
		return err
	}

	if err := fh.Truncate(0); err != nil {
		return fail(fmt.Errorf("docstore: truncate: %w", err))
	}
	if _, err := fh.WriteAt(data, 0); err != nil {
		return fail(fmt.Errorf("docstore: write: %w", err))
	}
	if err := fh.Sync(); err != nil {
		return fail(fmt.Errorf("docstore: sync: %w", err))
	}
	_ = fh.Chmod(fileMode)
	// rename while still holding the lock so no other writer reuses this inode
	if err := os.Rename(tmp, final); err != nil {
		return fail(fmt.Errorf("docstore: rename: %w", err))
	}
	_ = unix.Flock(int(fh.Fd()), unix.LOCK_UN)
	_ = fh.Close()

	writeResults.WithLabelValues(f.Name(), "ok").Inc()
	writeSeconds.Observe(time.Since(start).Seconds())
	return nil
}

// openLocked opens path and takes a non-blocking exclusive lock, retrying
// until lockTimeout. A lock won on an inode that has since been renamed away
// is dropped and the open retried.
func (f *FS) openLocked(ctx context.Context, path string) (*os.File, error) {
	deadline := time.Now().Add(f.lockTimeout)
	for {
		fh, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, fileMode)
		if err != nil {
			return nil, fmt.Errorf("docstore: open temp: %w", err)
		}
		err = unix.Flock(int(fh.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			held, statErr := fh.Stat()
			onDisk, pathErr := os.Stat(path)
			if statErr == nil && pathErr == nil && os.SameFile(held, onDisk) {
				return fh, nil
			}
			_ = unix.Flock(int(fh.Fd()), unix.LOCK_UN)
		}
		_ = fh.Close()
		if err != nil && !errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("docstore: flock: %w", err)
		}
		if time.Now().After(deadline) {
			return nil, ErrLocked
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (f *FS) Delete(ctx context.Context, ns Namespace, key string) error {
	p, err := f.path(ns, key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Sweep deletes documents (and abandoned temp files) whose mtime is before
// cutoff. A missing directory simply means nothing to sweep.
func (f *FS) Sweep(ctx context.Context, ns Namespace, cutoff time.Time) (int, error) {
	dir := f.dir(ns)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	match := roomFile
	if ns == RateLimit {
		match = counterFile
	}
	removed := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		name := e.Name()
		if e.IsDir() || !(match.MatchString(name) || tmpFile.MatchString(name)) {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, name)); err == nil {
			if !strings.HasSuffix(name, tmpSuffix) {
				removed++
			}
		}
	}
	return removed, nil
}

// Check verifies the root is a writable directory.
func (f *FS) Check(ctx context.Context) error {
	fh, err := os.CreateTemp(f.root, ".probe-*")
	if err != nil {
		return fmt.Errorf("docstore: root not writable: %w", err)
	}
	name := fh.Name()
	_ = fh.Close()
	return os.Remove(name)
}
