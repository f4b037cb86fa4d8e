package domain

import "errors"

// Upload validation errors, surfaced to clients as 400s
var (
	ErrEmptyUpload          = errors.New("No image file provided.")
	ErrMissingLabel         = errors.New("All images must have a non-empty label.")
	ErrLabelCountMismatch   = errors.New("Number of labels must match number of images.")
	ErrUnsupportedMediaType = errors.New("Only image files (jpg, jpeg, png, gif) are allowed!")
	ErrTooManyFiles         = errors.New("Too many image files in one request.")
	ErrFileTooLarge         = errors.New("Image file exceeds the size limit.")
	ErrUploadTooLarge       = errors.New("Upload exceeds the request size limit.")
)

// Storage errors, surfaced as 500s without detail
var (
	ErrStorageWrite = errors.New("Failed to store image.")
	ErrEnumeration  = errors.New("Unable to scan files!")
)

var validationErrors = []error{
	ErrEmptyUpload,
	ErrMissingLabel,
	ErrLabelCountMismatch,
	ErrUnsupportedMediaType,
	ErrTooManyFiles,
	ErrFileTooLarge,
	ErrUploadTooLarge,
}

// IsValidationError reports whether err is caused by bad client input
func IsValidationError(err error) bool {
	return ClientMessage(err) != ""
}

// ClientMessage returns the message of the validation error err wraps,
// without the detail added while wrapping. Empty if err is not one.
func ClientMessage(err error) string {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return target.Error()
		}
	}
	return ""
}
