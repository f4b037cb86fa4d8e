package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mansoorceksport/imagedrop/internal/domain"
	"github.com/mansoorceksport/imagedrop/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

// UploadServiceConfig holds the limits and addressing of the upload service
type UploadServiceConfig struct {
	BaseURL          string // prefix of every public URL, ends with "/"
	MaxFiles         int
	MaxFileBytes     int64
	ListCacheTTL     time.Duration
	WriteConcurrency int
}

// UploadServiceImpl implements domain.UploadService
type UploadServiceImpl struct {
	storage domain.FileStorage
	images  domain.ImageRepository
	cache   domain.ListCache
	metrics *telemetry.UploadMetrics
	cfg     UploadServiceConfig
}

// NewUploadService creates a new upload service.
// images and cache are optional and may be nil.
func NewUploadService(
	storage domain.FileStorage,
	images domain.ImageRepository,
	cache domain.ListCache,
	metrics *telemetry.UploadMetrics,
	cfg UploadServiceConfig,
) *UploadServiceImpl {
	if metrics == nil {
		metrics = telemetry.NewUploadMetrics(nil)
	}
	return &UploadServiceImpl{
		storage: storage,
		images:  images,
		cache:   cache,
		metrics: metrics,
		cfg:     cfg,
	}
}

// Upload validates the whole request, stores every file and pairs each
// stored file with its label. Nothing is written unless validation passes,
// and a failed write removes the files this request already stored.
func (s *UploadServiceImpl) Upload(ctx context.Context, files []*domain.UploadedFile, labels domain.Labels) (*domain.UploadResult, error) {
	if err := s.validate(files, labels); err != nil {
		s.metrics.Rejected(ctx, rejectReason(err))
		return nil, err
	}

	names, err := s.store(ctx, files)
	if err != nil {
		s.metrics.Rejected(ctx, "storage_error")
		return nil, err
	}

	images := make([]domain.StoredImage, len(files))
	records := make([]*domain.ImageRecord, len(files))
	now := time.Now()
	for i, file := range files {
		images[i] = domain.StoredImage{
			Name:  names[i],
			URL:   s.cfg.BaseURL + names[i],
			Label: labels.For(i),
		}
		records[i] = &domain.ImageRecord{
			Name:         names[i],
			URL:          images[i].URL,
			Label:        images[i].Label,
			OriginalName: file.Filename,
			ContentType:  file.ContentType,
			Size:         file.Size(),
			UploadedAt:   now,
		}
		s.metrics.Stored(ctx, file.ContentType, file.Size())
	}

	// Metadata and cache are best effort: the files are already stored
	if s.images != nil {
		if err := s.images.CreateMany(ctx, records); err != nil {
			log.Printf("Warning: failed to save image metadata: %v", err)
		}
	}
	if s.cache != nil {
		if err := s.cache.InvalidateImageList(ctx); err != nil {
			log.Printf("Warning: failed to invalidate image list cache: %v", err)
		}
	}

	return &domain.UploadResult{
		Success: true,
		Images:  images,
	}, nil
}

// List enumerates the storage backend and maps every entry to its URL
func (s *UploadServiceImpl) List(ctx context.Context) (*domain.ListResult, error) {
	var (
		version   int64
		cacheable bool
	)
	if s.cache != nil {
		cached, err := s.cache.GetImageList(ctx)
		if err != nil {
			log.Printf("Warning: failed to read image list cache: %v", err)
		} else if cached != nil {
			return &domain.ListResult{Success: true, Images: cached}, nil
		}

		// The generation is read before enumerating; an upload finishing
		// in between bumps it and the result below is not cached.
		if s.cfg.ListCacheTTL > 0 {
			if version, err = s.cache.ImageListVersion(ctx); err != nil {
				log.Printf("Warning: failed to read image list version: %v", err)
			} else {
				cacheable = true
			}
		}
	}

	names, err := s.storage.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrEnumeration, err)
	}

	var labels map[string]string
	if s.images != nil && len(names) > 0 {
		labels, err = s.images.GetLabelsByNames(ctx, names)
		if err != nil {
			log.Printf("Warning: failed to load image labels: %v", err)
		}
	}

	images := make([]domain.ListedImage, 0, len(names))
	for _, name := range names {
		images = append(images, domain.ListedImage{
			URL:   s.cfg.BaseURL + name,
			Label: labels[name],
		})
	}

	if cacheable {
		if err := s.cache.SetImageList(ctx, version, images, s.cfg.ListCacheTTL); err != nil {
			log.Printf("Warning: failed to cache image list: %v", err)
		}
	}

	return &domain.ListResult{Success: true, Images: images}, nil
}

// validate runs every stateless check; the first failure wins
func (s *UploadServiceImpl) validate(files []*domain.UploadedFile, labels domain.Labels) error {
	if len(files) == 0 {
		return domain.ErrEmptyUpload
	}
	if err := labels.Validate(len(files)); err != nil {
		return err
	}
	if s.cfg.MaxFiles > 0 && len(files) > s.cfg.MaxFiles {
		return fmt.Errorf("%w: at most %d allowed", domain.ErrTooManyFiles, s.cfg.MaxFiles)
	}
	for _, file := range files {
		if s.cfg.MaxFileBytes > 0 && file.Size() > s.cfg.MaxFileBytes {
			return fmt.Errorf("%w: %s", domain.ErrFileTooLarge, file.Filename)
		}
	}
	for _, file := range files {
		if !domain.IsAllowedImageType(file.ContentType) {
			return fmt.Errorf("%w: %s", domain.ErrUnsupportedMediaType, file.Filename)
		}
	}
	return nil
}

// store writes files concurrently, keeping names in input order
func (s *UploadServiceImpl) store(ctx context.Context, files []*domain.UploadedFile) ([]string, error) {
	names := make([]string, len(files))

	g, gCtx := errgroup.WithContext(ctx)
	if s.cfg.WriteConcurrency > 0 {
		g.SetLimit(s.cfg.WriteConcurrency)
	}
	for i, file := range files {
		g.Go(func() error {
			name, err := s.storage.Save(gCtx, file)
			if err != nil {
				return fmt.Errorf("%w %s: %w", domain.ErrStorageWrite, file.Filename, err)
			}
			names[i] = name
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.discard(ctx, names)
		return nil, err
	}
	return names, nil
}

// discard removes files stored by a request that failed part-way
func (s *UploadServiceImpl) discard(ctx context.Context, names []string) {
	ctx = context.WithoutCancel(ctx)
	for _, name := range names {
		if name == "" {
			continue
		}
		if err := s.storage.Delete(ctx, name); err != nil {
			log.Printf("Warning: failed to remove %s after failed upload: %v", name, err)
			s.metrics.CleanupFailed(ctx)
		}
	}
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyUpload):
		return "empty_upload"
	case errors.Is(err, domain.ErrMissingLabel):
		return "missing_label"
	case errors.Is(err, domain.ErrLabelCountMismatch):
		return "label_count_mismatch"
	case errors.Is(err, domain.ErrTooManyFiles):
		return "too_many_files"
	case errors.Is(err, domain.ErrFileTooLarge):
		return "file_too_large"
	case errors.Is(err, domain.ErrUnsupportedMediaType):
		return "unsupported_media_type"
	default:
		return "other"
	}
}
