package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var (
	// ErrNotFound is returned when no attachment exists under a name.
	ErrNotFound = errors.New("attachment not found")
	// ErrInvalidName is returned for names that could escape the store or hit its temp files.
	ErrInvalidName = errors.New("invalid attachment name")
)

// LocalStore implements Store on the local filesystem.
type LocalStore struct {
	basePath string
}

// NewLocalStore creates the uploads directory if needed.
func NewLocalStore(basePath string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}

	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve uploads dir: %w", err)
	}

	return &LocalStore{basePath: absPath}, nil
}

// BasePath returns the directory attachments are written to.
func (s *LocalStore) BasePath() string {
	return s.basePath
}

func (s *LocalStore) fullPath(name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, name), nil
}

// Put writes content to a temp file and renames it into place.
func (s *LocalStore) Put(ctx context.Context, name string, r io.Reader, _ int64, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path, err := s.fullPath(name)
	if err != nil {
		return "", err
	}

	tmpFile, err := os.CreateTemp(s.basePath, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmpFile, r); err != nil {
		tmpFile.Close()
		return "", fmt.Errorf("write content: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	// Write-once: refuse to replace an existing attachment.
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("attachment %q already exists", name)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return "", fmt.Errorf("rename temp file: %w", err)
	}

	success = true
	return URLPrefix + name, nil
}

// Open returns the stored file.
func (s *LocalStore) Open(_ context.Context, name string) (io.ReadCloser, error) {
	path, err := s.fullPath(name)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open attachment: %w", err)
	}
	return file, nil
}

// Delete removes the stored file.
func (s *LocalStore) Delete(_ context.Context, name string) error {
	path, err := s.fullPath(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete attachment: %w", err)
	}
	return nil
}
