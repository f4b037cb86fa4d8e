package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/mansoorceksport/imagedrop/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubUploadService records what the handler passed in
type stubUploadService struct {
	gotFiles  []*domain.UploadedFile
	gotLabels domain.Labels
	uploadErr error
	listRes   *domain.ListResult
	listErr   error
}

func (s *stubUploadService) Upload(ctx context.Context, files []*domain.UploadedFile, labels domain.Labels) (*domain.UploadResult, error) {
	s.gotFiles = files
	s.gotLabels = labels
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	images := make([]domain.StoredImage, len(files))
	for i := range files {
		name := fmt.Sprintf("stored-%d", i)
		images[i] = domain.StoredImage{Name: name, URL: "http://host/uploads/" + name, Label: labels.For(i)}
	}
	return &domain.UploadResult{Success: true, Images: images}, nil
}

func (s *stubUploadService) List(ctx context.Context) (*domain.ListResult, error) {
	return s.listRes, s.listErr
}

type part struct {
	field, filename, contentType, body string
}

func multipartRequest(t *testing.T, parts []part, fields map[string][]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, p.field, p.filename))
		h.Set("Content-Type", p.contentType)
		pw, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = pw.Write([]byte(p.body))
		require.NoError(t, err)
	}
	for name, values := range fields {
		for _, v := range values {
			require.NoError(t, w.WriteField(name, v))
		}
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func newTestApp(svc domain.UploadService) *fiber.App {
	h := NewUploadHandler(svc)
	app := fiber.New()
	app.Post("/api/upload", h.UploadImages)
	app.Get("/api/upload/list", h.ListImages)
	return app
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestUploadImagesSuccess(t *testing.T) {
	svc := &stubUploadService{}
	app := newTestApp(svc)

	req := multipartRequest(t, []part{
		{field: "images", filename: "a.png", contentType: "image/png", body: "png-data"},
		{field: "images", filename: "b.jpg", contentType: "image/jpeg", body: "jpg-data"},
	}, map[string][]string{"labels": {"cat", "dog"}})

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.Len(t, svc.gotFiles, 2)
	assert.Equal(t, "a.png", svc.gotFiles[0].Filename)
	assert.Equal(t, "image/png", svc.gotFiles[0].ContentType)
	assert.Equal(t, "png-data", string(svc.gotFiles[0].Data))
	assert.Equal(t, "image/jpeg", svc.gotFiles[1].ContentType)

	body := decode(t, resp)
	assert.Equal(t, true, body["success"])
	images := body["images"].([]interface{})
	require.Len(t, images, 2)
	first := images[0].(map[string]interface{})
	assert.Equal(t, "cat", first["label"])
	assert.Equal(t, "http://host/uploads/stored-0", first["url"])
	assert.NotContains(t, first, "Name")
	assert.Equal(t, "dog", images[1].(map[string]interface{})["label"])
}

func TestUploadImagesArrayLabelField(t *testing.T) {
	svc := &stubUploadService{}
	app := newTestApp(svc)

	req := multipartRequest(t, []part{
		{field: "images", filename: "a.gif", contentType: "image/gif", body: "g"},
		{field: "images", filename: "b.gif", contentType: "image/gif", body: "g"},
	}, map[string][]string{"labels[]": {"one", "two"}})

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "two", svc.gotLabels.For(1))
}

func TestUploadImagesValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"empty", domain.ErrEmptyUpload, "No image file provided."},
		{"missing label", domain.ErrMissingLabel, "All images must have a non-empty label."},
		{"unsupported", fmt.Errorf("%w: notes.txt", domain.ErrUnsupportedMediaType), "Only image files (jpg, jpeg, png, gif) are allowed!"},
		{"mismatch", fmt.Errorf("%w: got 2 labels for 3 images", domain.ErrLabelCountMismatch), "Number of labels must match number of images."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(&stubUploadService{uploadErr: tt.err})
			req := multipartRequest(t, []part{{field: "images", filename: "a.png", contentType: "image/png", body: "x"}}, nil)

			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

			body := decode(t, resp)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.want, body["message"])
		})
	}
}

func TestUploadImagesStorageError(t *testing.T) {
	app := newTestApp(&stubUploadService{
		uploadErr: fmt.Errorf("%w a.png: %w", domain.ErrStorageWrite, errors.New("open /srv/uploads/x: read-only file system")),
	})
	req := multipartRequest(t, []part{{field: "images", filename: "a.png", contentType: "image/png", body: "x"}}, map[string][]string{"labels": {"cat"}})

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, "Failed to store image.", body["message"])
	assert.NotContains(t, body["message"], "/srv/uploads")
}

func TestUploadImagesNotMultipart(t *testing.T) {
	svc := &stubUploadService{uploadErr: domain.ErrEmptyUpload}
	app := newTestApp(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader(`{"labels":"cat"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, svc.gotFiles)
}

func TestUploadImagesIgnoresOtherFileFields(t *testing.T) {
	svc := &stubUploadService{}
	app := newTestApp(svc)

	req := multipartRequest(t, []part{
		{field: "avatar", filename: "me.png", contentType: "image/png", body: "x"},
		{field: "images", filename: "a.png", contentType: "image/png", body: "y"},
	}, map[string][]string{"labels": {"cat"}})

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Len(t, svc.gotFiles, 1)
	assert.Equal(t, "a.png", svc.gotFiles[0].Filename)
}

func TestListImages(t *testing.T) {
	app := newTestApp(&stubUploadService{listRes: &domain.ListResult{
		Success: true,
		Images:  []domain.ListedImage{{URL: "http://host/uploads/1.png", Label: "cat"}, {URL: "http://host/uploads/2.png"}},
	}})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/upload/list", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, true, body["success"])
	images := body["images"].([]interface{})
	require.Len(t, images, 2)
	assert.Equal(t, "http://host/uploads/1.png", images[0].(map[string]interface{})["url"])
	assert.NotContains(t, images[1].(map[string]interface{}), "label")
}

func TestListImagesFailure(t *testing.T) {
	app := newTestApp(&stubUploadService{
		listErr: fmt.Errorf("%w: %w", domain.ErrEnumeration, errors.New("open /srv/uploads: permission denied")),
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/upload/list", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	body := decode(t, resp)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Unable to scan files!", body["message"])
}
