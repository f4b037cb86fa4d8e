package server

import (
	"log"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/mansoorceksport/imagedrop/internal/config"
	"github.com/mansoorceksport/imagedrop/internal/domain"
	"github.com/mansoorceksport/imagedrop/internal/handler"
	"github.com/mansoorceksport/imagedrop/internal/middleware"
	"github.com/mansoorceksport/imagedrop/internal/repository"
	"github.com/mansoorceksport/imagedrop/internal/service"
	"github.com/mansoorceksport/imagedrop/internal/telemetry"
	"github.com/redis/go-redis/v9"
)

// formOverheadBytes leaves room for labels and multipart framing on top of the files
const formOverheadBytes = 1 << 20

// AppDependencies holds the dependencies required to start the application
type AppDependencies struct {
	Config  *config.Config
	Storage domain.FileStorage

	// Optional
	Images      domain.ImageRepository
	RedisClient *redis.Client
	StaticDir   string // served under the public URL path when set
}

// NewApp creates and configures the Fiber application with the given dependencies
func NewApp(deps AppDependencies) *fiber.App {
	cfg := deps.Config

	var cache domain.ListCache
	if deps.RedisClient != nil {
		cache = repository.NewRedisCacheRepository(deps.RedisClient)
	}

	// Initialize services
	uploadService := service.NewUploadService(
		deps.Storage,
		deps.Images,
		cache,
		telemetry.NewUploadMetrics(nil),
		service.UploadServiceConfig{
			BaseURL:          cfg.Upload.PublicBaseURL,
			MaxFiles:         cfg.Server.MaxUploadFiles,
			MaxFileBytes:     cfg.Server.MaxUploadBytes(),
			ListCacheTTL:     cfg.Upload.ListCacheTTL,
			WriteConcurrency: cfg.Upload.WriteConcurrent,
		},
	)

	// Initialize handlers
	uploadHandler := handler.NewUploadHandler(uploadService)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Image Upload API",
		BodyLimit:    int(cfg.Server.MaxUploadBytes())*cfg.Server.MaxUploadFiles + formOverheadBytes,
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(telemetry.FiberMiddleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, X-Correlation-ID",
		AllowMethods: "GET, POST, OPTIONS",
	}))

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "image-upload",
		})
	})

	uploadChain := []fiber.Handler{}
	if deps.RedisClient != nil {
		uploadChain = append(uploadChain, middleware.IdempotencyMiddleware(deps.RedisClient, cfg.Upload.IdempotencyTTL))
	}
	uploadChain = append(uploadChain, uploadHandler.UploadImages)

	api := app.Group("/api")
	api.Post("/upload", uploadChain...)
	api.Get("/upload/list", uploadHandler.ListImages)

	// Stored files are public static content under the base URL path
	if deps.StaticDir != "" {
		prefix := staticPrefix(cfg.Upload.PublicBaseURL)
		app.Static(prefix, deps.StaticDir)
		log.Printf("Serving %s under %s", deps.StaticDir, prefix)
	}

	return app
}

// staticPrefix extracts the route prefix from the public base URL
func staticPrefix(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "/uploads"
	}
	p := strings.TrimSuffix(u.Path, "/")
	if p == "" {
		return "/uploads"
	}
	return p
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}
	log.Printf("Error: %v", err)

	// An oversized upload is rejected by fasthttp before any handler runs
	if code == fiber.StatusRequestEntityTooLarge {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": domain.ErrUploadTooLarge.Error(),
		})
	}

	message := err.Error()
	if code >= fiber.StatusInternalServerError {
		message = "internal server error"
	}
	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}
