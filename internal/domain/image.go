package domain

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// allowedImageType matches the subtype of an accepted MIME type
var allowedImageType = regexp.MustCompile(`/(jpg|jpeg|png|gif)$`)

// IsAllowedImageType reports whether contentType is one of the accepted image types
func IsAllowedImageType(contentType string) bool {
	return allowedImageType.MatchString(strings.ToLower(strings.TrimSpace(contentType)))
}

// Labels carries the label data of an upload: either one label for every
// image or one label per image, paired by position.
type Labels struct {
	values []string
	list   bool
}

// SingleLabel applies the same label to every image
func SingleLabel(label string) Labels {
	return Labels{values: []string{label}}
}

// LabelList pairs labels[i] with image i
func LabelList(labels []string) Labels {
	return Labels{values: labels, list: true}
}

// LabelsFromForm builds Labels from the raw values of a form field.
// A form cannot tell one value from a one-element list, so a single
// value is treated as the single-label form.
func LabelsFromForm(values []string) Labels {
	switch len(values) {
	case 0:
		return Labels{}
	case 1:
		return SingleLabel(values[0])
	default:
		return LabelList(values)
	}
}

// Validate checks the labels against the number of files they describe
func (l Labels) Validate(fileCount int) error {
	if len(l.values) == 0 {
		return ErrMissingLabel
	}
	for _, v := range l.values {
		if strings.TrimSpace(v) == "" {
			return ErrMissingLabel
		}
	}
	if l.list && len(l.values) != 1 && len(l.values) != fileCount {
		return fmt.Errorf("%w: got %d labels for %d images", ErrLabelCountMismatch, len(l.values), fileCount)
	}
	return nil
}

// For returns the label of the image at index i. Call Validate first.
func (l Labels) For(i int) string {
	if len(l.values) == 1 {
		return l.values[0]
	}
	return l.values[i]
}

// StoredImage is one persisted image as returned to the client
type StoredImage struct {
	Name  string `json:"-"`
	URL   string `json:"url"`
	Label string `json:"label"`
}

// UploadResult is the response body of a successful upload
type UploadResult struct {
	Success bool          `json:"success"`
	Images  []StoredImage `json:"images"`
}

// ListedImage is one entry of the image listing
type ListedImage struct {
	URL   string `json:"url"`
	Label string `json:"label,omitempty"`
}

// ListResult is the response body of the image listing
type ListResult struct {
	Success bool          `json:"success"`
	Images  []ListedImage `json:"images"`
}

// ImageRecord is the metadata kept for every stored image
type ImageRecord struct {
	ID           string    `bson:"_id,omitempty" json:"id"`
	Name         string    `bson:"name" json:"name"`
	URL          string    `bson:"url" json:"url"`
	Label        string    `bson:"label" json:"label"`
	OriginalName string    `bson:"original_name" json:"original_name"`
	ContentType  string    `bson:"content_type" json:"content_type"`
	Size         int64     `bson:"size" json:"size"`
	UploadedAt   time.Time `bson:"uploaded_at" json:"uploaded_at"`
}

// ImageRepository defines the interface for image metadata persistence
// Implementations should handle MongoDB operations
type ImageRepository interface {
	// CreateMany saves the records of one upload
	CreateMany(ctx context.Context, records []*ImageRecord) error

	// GetLabelsByNames returns name -> label for the names it knows
	GetLabelsByNames(ctx context.Context, names []string) (map[string]string, error)
}

// ListCache defines the interface for caching the image listing
// Implementations should handle Redis operations
type ListCache interface {
	// GetImageList returns nil on a cache miss
	GetImageList(ctx context.Context) ([]ListedImage, error)

	// ImageListVersion returns the listing generation; read it before enumerating
	ImageListVersion(ctx context.Context) (int64, error)

	// SetImageList stores the listing unless the generation moved past version
	SetImageList(ctx context.Context, version int64, images []ListedImage, ttl time.Duration) error

	// InvalidateImageList bumps the generation and drops the cached listing
	InvalidateImageList(ctx context.Context) error
}

// UploadService defines the business logic behind the upload endpoints
type UploadService interface {
	// Upload validates and stores files, pairing each with its label
	Upload(ctx context.Context, files []*UploadedFile, labels Labels) (*UploadResult, error)

	// List enumerates every stored image
	List(ctx context.Context) (*ListResult, error)
}
