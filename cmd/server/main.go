package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/filecrate/dedup-service/cmd/middleware"
	"github.com/filecrate/dedup-service/internal/api"
	"github.com/filecrate/dedup-service/internal/api/handlers"
	"github.com/filecrate/dedup-service/internal/configuration"
	"github.com/filecrate/dedup-service/internal/dedup"
	"github.com/filecrate/dedup-service/internal/services"
	"github.com/filecrate/dedup-service/internal/storage"
)

func main() {
	cfg := configuration.Load()

	tracer.Start(tracer.WithService("dedup-service"))
	defer tracer.Stop()

	// Record store
	var records storage.RecordStore
	switch cfg.StorageBackend {
	case "memory":
		log.Println("Using in-memory record store")
		records = storage.NewMemoryRecordStore()
	default:
		pg, err := storage.NewPostgresStore(cfg.Database.ConnectionString())
		if err != nil {
			log.Fatalf("Failed to initialize PostgreSQL: %v", err)
		}
		defer pg.Close()
		records = pg
	}

	// Blob store
	var blobs storage.BlobStore
	if cfg.StorageBackend == "memory" {
		blobs = storage.NewMemoryBlobStore()
	} else {
		mb, err := storage.NewMinioBlobStore(
			cfg.MinIO.Endpoint,
			cfg.MinIO.AccessKey,
			cfg.MinIO.SecretKey,
			cfg.MinIO.BucketName,
			cfg.MinIO.UseSSL,
		)
		if err != nil {
			log.Fatalf("Failed to initialize MinIO: %v", err)
		}
		blobs = mb
	}

	// NATS is optional; the service still works without events.
	if _, _, err := services.ConnectNATS(cfg.NATSURL); err != nil {
		log.Printf("Warning: failed to connect to NATS: %v", err)
	}
	defer services.CloseNATS()

	var scanner *services.Scanner
	if cfg.ScanEnabled {
		scanner = services.NewScanner(cfg.CLAMAVURL)
		if err := scanner.Ping(); err != nil {
			log.Printf("Warning: ClamAV unreachable, continuing without scanning: %v", err)
			scanner = nil
		}
	}

	engine := dedup.NewEngine(records, blobs)
	cache := dedup.NewQueryCache(cfg.CacheSize, 5*time.Minute)
	engine.OnMutation(cache.InvalidateAll)

	var extra []gin.HandlerFunc
	if cfg.AuthEnabled {
		if err := middleware.InitAuth(cfg.KeycloakUrl); err != nil {
			log.Fatalf("Failed to initialize auth: %v", err)
		}
		extra = append(extra, middleware.RequireAuth())
	}

	setupGracefulShutdown()

	r := gin.Default()
	h := handlers.NewFileHandler(engine, records, blobs, cache, scanner, cfg.MaxUploadBytes)
	api.RegisterRoutes(r, h, extra...)

	log.Printf("Server starting on :%s", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func setupGracefulShutdown() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("Shutting down gracefully...")
		services.CloseNATS()
		os.Exit(0)
	}()
}
