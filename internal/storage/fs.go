package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// DefaultDeleteConcurrency bounds simultaneous unlinks.
const DefaultDeleteConcurrency = 20

// FSStore keeps the mirror in a directory tree.
type FSStore struct {
	fs                afero.Fs
	deleteConcurrency int
	logger            *slog.Logger
}

// NewFSStore creates a filesystem backend. Keys are resolved against the working
// directory of fs; use afero.NewBasePathFs to confine them.
func NewFSStore(fs afero.Fs, deleteConcurrency int, logger *slog.Logger) *FSStore {
	if deleteConcurrency <= 0 {
		deleteConcurrency = DefaultDeleteConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FSStore{fs: fs, deleteConcurrency: deleteConcurrency, logger: logger}
}

func (s *FSStore) Name() string { return "local" }

func (s *FSStore) Exists(_ context.Context, key string) (bool, error) {
	return afero.Exists(s.fs, filepath.FromSlash(key))
}

// Put writes to a temporary sibling and renames it into place.
func (s *FSStore) Put(_ context.Context, key string, data []byte) error {
	p := filepath.FromSlash(key)
	dir := filepath.Dir(p)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create folder %s: %w", dir, err)
	}
	tmp, err := afero.TempFile(s.fs, dir, "."+filepath.Base(p)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := s.fs.Rename(tmpName, p); err != nil {
		s.fs.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", p, err)
	}
	return nil
}

// List skips directories and dot files, which includes interrupted temp files.
func (s *FSStore) List(_ context.Context, dir string) ([]string, error) {
	entries, err := afero.ReadDir(s.fs, filepath.FromSlash(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// Delete unlinks each key on its own goroutine, at most deleteConcurrency at a time.
// A key that is already gone counts as deleted.
func (s *FSStore) Delete(ctx context.Context, keys []string) DeleteReport {
	var (
		mu  sync.Mutex
		rep DeleteReport
		g   errgroup.Group
	)
	g.SetLimit(s.deleteConcurrency)
	for _, key := range keys {
		g.Go(func() error {
			err := s.fs.Remove(filepath.FromSlash(key))
			mu.Lock()
			defer mu.Unlock()
			if err != nil && !os.IsNotExist(err) {
				s.logger.Error("delete failed", "path", key, "error", err)
				rep.Failures = append(rep.Failures, deleteFailure(key, err))
				return nil
			}
			s.logger.Debug("deleted", "path", key)
			rep.Deleted++
			return nil
		})
	}
	g.Wait()
	return rep
}
