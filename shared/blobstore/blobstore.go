package blobstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Store is the blob storage contract consumed by the pipeline: raw upload
// retrieval (required) and forecast CSV mirroring (optional).
type Store interface {
	Get(ctx context.Context, path string) ([]byte, error)
	Put(ctx context.Context, data []byte, path string) (string, error)
}

// FileStore is a filesystem-backed Store rooted at a data directory.
type FileStore struct {
	root   string
	logger *slog.Logger
}

// NewFileStore creates the store and its root directory.
func NewFileStore(root string, logger *slog.Logger) (*FileStore, error) {
	if root == "" {
		return nil, fmt.Errorf("blob store root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob root: %w", err)
	}
	return &FileStore{root: root, logger: logger}, nil
}

// Get reads a blob's raw bytes.
func (s *FileStore) Get(_ context.Context, path string) ([]byte, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("failed to read blob %s: %w", path, err)
	}
	return data, nil
}

// Put writes a blob and returns its store path.
func (s *FileStore) Put(_ context.Context, data []byte, path string) (string, error) {
	full, err := s.resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("failed to create blob directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write blob %s: %w", path, err)
	}
	s.logger.Debug("Blob written",
		slog.String("path", path),
		slog.Int("bytes", len(data)),
	)
	return path, nil
}

// resolve keeps all paths inside the root.
func (s *FileStore) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + path)
	if strings.Contains(clean, "..") {
		return "", fmt.Errorf("invalid blob path: %s", path)
	}
	return filepath.Join(s.root, clean), nil
}
