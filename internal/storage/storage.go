// Package storage stores plant photos on the local filesystem.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// ImageStore writes and removes plant images under a base directory.
type ImageStore struct {
	dir string
}

// NewImageStore creates the image directory if needed.
func NewImageStore(dir string) (*ImageStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create image directory: %w", err)
	}
	return &ImageStore{dir: dir}, nil
}

// Dir returns the base directory images are stored under.
func (s *ImageStore) Dir() string {
	return s.dir
}

// SaveImage writes image data under the given filename and returns the full
// path.
func (s *ImageStore) SaveImage(data []byte, filename string) (string, error) {
	path := filepath.Join(s.dir, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	return path, nil
}

// DeleteImage removes a stored image. Missing files are not an error.
func (s *ImageStore) DeleteImage(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete image: %w", err)
	}
	return nil
}
