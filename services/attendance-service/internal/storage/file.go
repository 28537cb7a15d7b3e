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

// FileMedium keeps each key in its own JSON file under dir.
type FileMedium struct {
	dir string
}

func NewFileMedium(dir string) (*FileMedium, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("file medium: directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file medium: %w", err)
	}
	return &FileMedium{dir: dir}, nil
}

func (m *FileMedium) path(key string) string {
	return filepath.Join(m.dir, filepath.Base(key)+".json")
}

func (m *FileMedium) Get(_ context.Context, key string) (string, bool, error) {
	raw, err := os.ReadFile(m.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(raw), true, nil
}

// Set writes through a temp file and renames it over the target, so a reader
// never sees a half-written collection.
func (m *FileMedium) Set(_ context.Context, key, value string) error {
	tmp, err := os.CreateTemp(m.dir, filepath.Base(key)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, m.path(key)); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

func (m *FileMedium) Delete(_ context.Context, key string) error {
	err := os.Remove(m.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (m *FileMedium) Ping(_ context.Context) error {
	info, err := os.Stat(m.dir)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", m.dir)
	}
	return nil
}
