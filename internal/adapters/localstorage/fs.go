package localstorage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocalStorage implements ports.TempStore on the local filesystem.
type LocalStorage struct {
	BaseDir string
	now     func() time.Time
}

// NewLocalStorage creates a new LocalStorage instance. An empty baseDir
// means the OS temp directory.
func NewLocalStorage(baseDir string) *LocalStorage {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &LocalStorage{BaseDir: baseDir, now: time.Now}
}

// Init creates the base directory.
func (s *LocalStorage) Init() error {
	if err := os.MkdirAll(s.BaseDir, 0o755); err != nil {
		return fmt.Errorf("failed to create temp directory %s: %w", s.BaseDir, err)
	}
	return nil
}

// NewPath returns a unique path of the form ytdl_<nanos>_<random>.<ext>.
func (s *LocalStorage) NewPath(ext string) string {
	ext = strings.TrimPrefix(ext, ".")
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	name := fmt.Sprintf("ytdl_%d_%s", s.now().UnixNano(), suffix)
	if ext != "" {
		name += "." + ext
	}
	return filepath.Join(s.BaseDir, name)
}

// Remove deletes a scratch file. A missing file is not an error.
func (s *LocalStorage) Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// RemoveAll deletes path and every sibling named <stem>.*, where stem is
// path without its extension. yt-dlp leaves <stem>.f<id>.<ext> track files
// and .part files next to the output when it is killed before merging.
func (s *LocalStorage) RemoveAll(path string) error {
	dir, base := filepath.Split(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base)) + "."
	entries, err := os.ReadDir(filepath.Clean(dir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var errs []error
	for _, e := range entries {
		if e.IsDir() || (e.Name() != base && !strings.HasPrefix(e.Name(), stem)) {
			continue
		}
		if err := s.Remove(filepath.Join(dir, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SaveFile writes data to name under dir (relative to BaseDir) and returns
// the full path. It is used for small private files such as cookie jars.
func (s *LocalStorage) SaveFile(dir, name string, data []byte) (string, error) {
	full := filepath.Join(s.BaseDir, dir)
	if err := os.MkdirAll(full, 0o700); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", full, err)
	}
	path := filepath.Join(full, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to save %s: %w", name, err)
	}
	return path, nil
}
