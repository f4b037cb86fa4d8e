package handler

import (
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/imagedrop/internal/domain"
	"github.com/mansoorceksport/imagedrop/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Multipart field names
const (
	imagesField      = "images"
	labelsField      = "labels"
	labelsArrayField = "labels[]"
)

// UploadHandler handles HTTP requests for image uploads
type UploadHandler struct {
	uploadService domain.UploadService
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(uploadService domain.UploadService) *UploadHandler {
	return &UploadHandler{
		uploadService: uploadService,
	}
}

// UploadImages handles POST /api/upload
func (h *UploadHandler) UploadImages(c *fiber.Ctx) error {
	var (
		files  []*domain.UploadedFile
		labels domain.Labels
	)

	// A body that is not multipart carries no files; the service reports that
	if strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": "invalid multipart form: " + err.Error(),
			})
		}

		files, err = readFiles(form.File[imagesField])
		if err != nil {
			log.Printf("Error reading uploaded file: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"success": false,
				"message": "failed to read uploaded file",
			})
		}

		values := append(append([]string{}, form.Value[labelsField]...), form.Value[labelsArrayField]...)
		labels = domain.LabelsFromForm(values)
	}

	telemetry.AddSpanEvent(c, "upload.parsed", attribute.Int("upload.files", len(files)))

	result, err := h.uploadService.Upload(c.UserContext(), files, labels)
	if err != nil {
		if msg := domain.ClientMessage(err); msg != "" {
			log.Printf("Upload rejected: %v", err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"message": msg,
			})
		}
		log.Printf("Error storing upload: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": domain.ErrStorageWrite.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// ListImages handles GET /api/upload/list
func (h *UploadHandler) ListImages(c *fiber.Ctx) error {
	result, err := h.uploadService.List(c.UserContext())
	if err != nil {
		log.Printf("Error listing images: %v", err)
		// no internal detail leaves the server
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"message": domain.ErrEnumeration.Error(),
		})
	}

	return c.Status(fiber.StatusOK).JSON(result)
}

// readFiles loads every multipart file part into memory.
// The Fiber body limit bounds the total size.
func readFiles(headers []*multipart.FileHeader) ([]*domain.UploadedFile, error) {
	files := make([]*domain.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		data, err := readFile(fh)
		if err != nil {
			return nil, err
		}
		files = append(files, &domain.UploadedFile{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Data:        data,
		})
	}
	return files, nil
}

func readFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
	}
	return data, nil
}
