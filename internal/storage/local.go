package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalBackend stores objects under a base directory, mirroring object names
// as relative paths. It serves both as the fallback behind GCS and as the
// sole backend in development.
type LocalBackend struct {
	baseDir string
}

func NewLocalBackend(baseDir string) (*LocalBackend, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalBackend{baseDir: baseDir}, nil
}

func (l *LocalBackend) path(objectName string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(objectName))
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid object name %q", objectName)
	}
	return filepath.Join(l.baseDir, cleaned), nil
}

func (l *LocalBackend) Upload(ctx context.Context, reader io.Reader, objectName, contentType string) (*UploadResult, error) {
	path, err := l.path(objectName)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create object directory: %w", err)
	}

	out, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create object file: %w", err)
	}
	defer out.Close()

	size, err := io.Copy(out, reader)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to write object file: %w", err)
	}

	return &UploadResult{ObjectName: objectName, Size: size}, nil
}

func (l *LocalBackend) Read(ctx context.Context, objectName string) (io.ReadCloser, error) {
	path, err := l.path(objectName)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

func (l *LocalBackend) Delete(ctx context.Context, objectName string) error {
	path, err := l.path(objectName)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
