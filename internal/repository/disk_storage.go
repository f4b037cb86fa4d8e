package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mansoorceksport/imagedrop/internal/domain"
)

// DiskStorage implements domain.FileStorage on a flat local directory
type DiskStorage struct {
	dir   string
	names NameGenerator
}

// NewDiskStorage creates the upload directory if needed
func NewDiskStorage(dir string, names NameGenerator) (*DiskStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", dir, err)
	}
	return &DiskStorage{dir: dir, names: names}, nil
}

// Dir returns the directory files are written to
func (s *DiskStorage) Dir() string {
	return s.dir
}

// Save writes the file under a freshly generated name.
// O_EXCL makes a name collision an error instead of a silent overwrite.
func (s *DiskStorage) Save(ctx context.Context, file *domain.UploadedFile) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := StoredName(s.names, file.Filename)
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", name, err)
	}

	if _, err := f.Write(file.Data); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close %s: %w", name, err)
	}

	return name, nil
}

// Delete removes a stored file
func (s *DiskStorage) Delete(ctx context.Context, name string) error {
	// Base keeps a crafted name inside the upload dir
	err := os.Remove(filepath.Join(s.dir, filepath.Base(name)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	return nil
}

// List returns every entry of the upload directory in name order.
// Entries are not filtered; whatever sits in the directory is listed.
func (s *DiskStorage) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}
