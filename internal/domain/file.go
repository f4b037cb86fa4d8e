package domain

import (
	"context"
	"path/filepath"
)

// UploadedFile is one in-flight file part of a multipart request
type UploadedFile struct {
	Filename    string // original name as sent by the client
	ContentType string
	Data        []byte
}

// Size returns the number of bytes in the file
func (f *UploadedFile) Size() int64 {
	return int64(len(f.Data))
}

// Ext returns the extension of the original filename, including the dot
func (f *UploadedFile) Ext() string {
	return filepath.Ext(f.Filename)
}

// FileStorage defines the interface for the storage backend.
// Implementations assign every saved file a collision-resistant name.
type FileStorage interface {
	// Save writes the file and returns the name it was stored under
	Save(ctx context.Context, file *UploadedFile) (string, error)

	// Delete removes a stored file; deleting a missing file is not an error
	Delete(ctx context.Context, name string) error

	// List returns the names of every stored entry, in backend order
	List(ctx context.Context) ([]string, error)
}
