package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mansoorceksport/imagedrop/internal/config"
	"github.com/mansoorceksport/imagedrop/internal/domain"
	"github.com/mansoorceksport/imagedrop/internal/repository"
	"github.com/mansoorceksport/imagedrop/internal/server"
	"github.com/mansoorceksport/imagedrop/internal/telemetry"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Println("Starting Image Upload Service...")

	ctx := context.Background()

	// Initialize OpenTelemetry
	otelProvider, err := telemetry.Initialize(ctx, cfg.OTEL)
	if err != nil {
		log.Printf("Warning: Failed to initialize OpenTelemetry: %v", err)
	}
	if otelProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := otelProvider.Shutdown(shutdownCtx); err != nil {
				log.Printf("Error shutting down OpenTelemetry: %v", err)
			}
		}()
	}

	// Storage backend
	names, err := repository.NewNameGenerator(cfg.Upload.NameStrategy)
	if err != nil {
		log.Fatalf("Failed to create name generator: %v", err)
	}

	deps := server.AppDependencies{Config: cfg}

	switch cfg.Upload.StorageBackend {
	case config.StorageBackendS3:
		s3Storage, err := repository.NewS3Storage(ctx, cfg.S3, names)
		if err != nil {
			log.Fatalf("Failed to initialize S3 storage: %v", err)
		}
		deps.Storage = s3Storage
		log.Printf("✓ S3 storage ready (bucket: %s)", cfg.S3.Bucket)
	default:
		diskStorage, err := repository.NewDiskStorage(cfg.Upload.Dir, names)
		if err != nil {
			log.Fatalf("Failed to initialize disk storage: %v", err)
		}
		deps.Storage = diskStorage
		deps.StaticDir = diskStorage.Dir()
		log.Printf("✓ Disk storage ready (%s)", diskStorage.Dir())
	}

	// Connect to MongoDB with OpenTelemetry instrumentation
	if cfg.MongoDB.Enabled {
		ctxMongo, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		mongoOpts := options.Client().ApplyURI(cfg.MongoDB.URI)
		if cfg.OTEL.Enabled {
			mongoOpts.SetMonitor(otelmongo.NewMonitor())
		}

		mongoClient, err := mongo.Connect(ctxMongo, mongoOpts)
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer func() {
			if err := mongoClient.Disconnect(context.Background()); err != nil {
				log.Printf("Error disconnecting from MongoDB: %v", err)
			}
		}()

		if err := mongoClient.Ping(ctxMongo, nil); err != nil {
			log.Fatalf("Failed to ping MongoDB: %v", err)
		}
		log.Println("✓ MongoDB connected")

		var images domain.ImageRepository = repository.NewMongoImageRepository(mongoClient.Database(cfg.MongoDB.Database))
		deps.Images = images
	}

	// Connect to Redis
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       0,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		log.Println("✓ Redis connected")
		deps.RedisClient = redisClient
	}

	app := server.NewApp(deps)

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("Shutting down gracefully...")
		app.Shutdown()
	}()

	// Start server
	log.Printf("🚀 Server starting on port %s", cfg.Server.Port)
	if err := app.Listen(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
