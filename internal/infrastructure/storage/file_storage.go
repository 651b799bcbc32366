// internal/infrastructure/storage/file_storage.go
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/garyjia/contract-approvals/internal/application/port"
	"go.uber.org/zap"
)

// LocalFileStorage implements port.FileStorage for a local directory tree
type LocalFileStorage struct {
	baseDir string
	logger  *zap.Logger
}

// NewLocalFileStorage creates a new LocalFileStorage rooted at baseDir
func NewLocalFileStorage(baseDir string, logger *zap.Logger) port.FileStorage {
	return &LocalFileStorage{
		baseDir: baseDir,
		logger:  logger,
	}
}

// Resolve returns the absolute path of a path relative to the base directory.
// Absolute inputs are accepted only when they already lie under the base.
func (s *LocalFileStorage) Resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("empty path")
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}

	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(absBase, path)
	}
	full = filepath.Clean(full)

	if !strings.HasPrefix(full, absBase+string(filepath.Separator)) && full != absBase {
		return "", fmt.Errorf("path escapes base directory: %s", path)
	}
	return full, nil
}

// Read reads content from the specified path
func (s *LocalFileStorage) Read(ctx context.Context, path string) ([]byte, error) {
	fullPath, err := s.Resolve(path)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(fullPath)
	if err != nil {
		s.logger.Error("Failed to read file",
			zap.String("path", fullPath),
			zap.Error(err))
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	s.logger.Debug("File read",
		zap.String("path", fullPath),
		zap.Int("size", len(content)))

	return content, nil
}

// Exists checks if a regular file exists at the specified path
func (s *LocalFileStorage) Exists(ctx context.Context, path string) bool {
	fullPath, err := s.Resolve(path)
	if err != nil {
		return false
	}
	info, err := os.Stat(fullPath)
	return err == nil && !info.IsDir()
}

// Delete removes a file. Missing files are not an error.
func (s *LocalFileStorage) Delete(ctx context.Context, path string) error {
	fullPath, err := s.Resolve(path)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		s.logger.Error("Failed to delete file",
			zap.String("path", fullPath),
			zap.Error(err))
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// EnsureDir creates a directory under the base and returns its absolute path
func (s *LocalFileStorage) EnsureDir(ctx context.Context, name string) (string, error) {
	dir, err := s.Resolve(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		s.logger.Error("Failed to create directory",
			zap.String("path", dir),
			zap.Error(err))
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	return dir, nil
}

var _ port.FileStorage = (*LocalFileStorage)(nil)
