package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"certforge/internal"
	"certforge/internal/config"
	"certforge/internal/fields"
	"certforge/internal/handlers"
	"certforge/internal/services"
	"certforge/internal/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := internal.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer internal.CloseDB(db)

	ctx := context.Background()

	local, err := storage.NewLocalBackend(cfg.Storage.LocalDir)
	if err != nil {
		log.Fatalf("Failed to initialize local storage: %v", err)
	}
	var store storage.Backend = local
	if cfg.GCS.BucketName != "" {
		gcs, err := storage.NewGCSBackend(ctx, cfg.GCS.BucketName, cfg.GCS.CredentialsPath)
		if err != nil {
			log.Fatalf("Failed to initialize GCS storage: %v", err)
		}
		defer gcs.Close()
		store = storage.NewFallback(gcs, local)
	} else {
		log.Println("GCS_BUCKET_NAME not set, using local storage only")
	}

	pdfService, err := services.NewPDFService(cfg.Gotenberg.URL, cfg.Gotenberg.Timeout)
	if err != nil {
		log.Fatalf("Failed to initialize PDF service: %v", err)
	}

	registry := fields.DefaultRegistry()
	templateService := services.NewTemplateService(db, store, registry)
	resolver := services.NewDataResolver(registry)
	codes := services.NewCodeGenerator()
	generator := services.NewBatchGenerator(db, store, templateService, resolver, codes, pdfService,
		cfg.Generation.Workers, cfg.Generation.ItemTimeout)
	verificationService := services.NewVerificationService(db, store)
	activityLogService := services.NewActivityLogService(db)

	templateHandler := handlers.NewTemplateHandler(templateService, registry)
	generationHandler := handlers.NewGenerationHandler(generator, verificationService)
	verificationHandler := handlers.NewVerificationHandler(verificationService)
	logsHandler := handlers.NewLogsHandler(activityLogService)

	cleanupService := handlers.NewFileCleanupService(24*time.Hour, os.TempDir(), filepath.Join(cfg.Storage.LocalDir, "tmp"))
	cleanupService.Start()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Println("Shutting down server...")
		cleanupService.Stop()
		internal.CloseDB(db)
		os.Exit(0)
	}()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	r.Use(activityLogService.LoggingMiddleware())

	v1 := r.Group("/api/v1")
	{
		certificates := v1.Group("/certificates")
		{
			certificates.GET("/data-fields", templateHandler.ListDataFields)
			certificates.POST("/templates", templateHandler.UploadTemplate)
			certificates.GET("/templates/:id", templateHandler.GetTemplate)
			certificates.PUT("/templates/:id/mapping", templateHandler.SetMapping)
			certificates.POST("/events/:eventId/generate", generationHandler.Generate)
			certificates.GET("/events/:eventId/certificates", generationHandler.ListEventCertificates)
			certificates.GET("/verify/:code", verificationHandler.Verify)
			certificates.GET("/download/:code", verificationHandler.Download)
		}
		v1.GET("/logs", logsHandler.GetLogs)
	}

	log.Printf("Starting server on :%s", cfg.Server.Port)
	if err := r.Run(":" + cfg.Server.Port); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
