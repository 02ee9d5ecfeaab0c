package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileSystemStore keeps files in a local directory served under a public path.
type FileSystemStore struct {
	dir        string
	publicPath string
}

// NewFileSystemStore creates dir when missing.
func NewFileSystemStore(dir, publicPath string) (*FileSystemStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create avatar dir: %w", err)
	}
	return &FileSystemStore{dir: dir, publicPath: strings.TrimRight(publicPath, "/")}, nil
}

// Dir returns the backing directory.
func (s *FileSystemStore) Dir() string {
	return s.dir
}

func (s *FileSystemStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	if !validKey(key) {
		return "", ErrInvalidKey
	}
	path := filepath.Join(s.dir, key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("rename %s: %w", key, err)
	}
	return s.publicPath + "/" + key, nil
}

func (s *FileSystemStore) Delete(_ context.Context, key string) error {
	if !validKey(key) {
		return ErrInvalidKey
	}
	if err := os.Remove(filepath.Join(s.dir, key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *FileSystemStore) KeyFromURL(url string) (string, bool) {
	key, ok := strings.CutPrefix(url, s.publicPath+"/")
	if !ok || !validKey(key) {
		return "", false
	}
	return key, true
}
