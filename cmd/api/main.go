package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/resume-builder/internal/auth"
	"github.com/justsurfingit/resume-builder/internal/config"
	"github.com/justsurfingit/resume-builder/internal/database"
	"github.com/justsurfingit/resume-builder/internal/handlers"
	"github.com/justsurfingit/resume-builder/internal/logging"
	"github.com/justsurfingit/resume-builder/internal/metrics"
	"github.com/justsurfingit/resume-builder/internal/services"
	"github.com/justsurfingit/resume-builder/internal/storage"
	"go.uber.org/zap"
	"google.golang.org/api/gmail/v1"
)

func main() {
	// 1. Load configuration (.env, config.yaml, environment)
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Database connection and migrations
	db, err := database.Connect(cfg.Database.Driver, cfg.Database.URL, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	// 3. Storage backend
	var store storage.Store
	switch cfg.Storage.Driver {
	case "s3":
		store, err = storage.NewS3(ctx, cfg.Storage.S3)
	default:
		store, err = storage.NewLocal(cfg.Storage.LocalDir)
	}
	if err != nil {
		logger.Fatal("failed to initialize storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}

	// 4. Gmail integration for outgoing mail. Without it mails are logged.
	var gmailService *gmail.Service
	if cfg.Mail.Enabled {
		gmailService, err = auth.NewGmailService(ctx, cfg.Mail.CredentialsFile, cfg.Mail.TokenFile)
		if err != nil {
			logger.Warn("failed to create gmail service, mails will be logged", zap.Error(err))
		} else {
			logger.Info("gmail service connected")
		}
	}

	// 5. Core services
	grants := auth.NewSigner(cfg.App.Secret)
	storageService := services.NewStorageService(store, cfg.App.URL, logger)
	emailService := services.NewEmailService(gmailService, cfg.Mail.From, logger)
	resumeService := services.NewResumeService(db, grants, logger)
	authService := services.NewAuthService(db, cfg, emailService, storageService, grants, logger)
	renderService, err := services.NewRenderService()
	if err != nil {
		logger.Fatal("failed to load templates", zap.Error(err))
	}
	printerService := services.NewPrinterService(cfg.Printer.Enabled, cfg.Printer.BrowserURL, cfg.Printer.Bin, logger)
	defer printerService.Close()
	llmService, err := services.NewLLMService(ctx, cfg.AI.Enabled, cfg.AI.APIKey, cfg.AI.Model, logger)
	if err != nil {
		logger.Fatal("failed to initialize ai model", zap.Error(err))
	}

	// 6. Router with CORS
	gin.SetMode(gin.ReleaseMode)
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", handlers.APIKeyHeader}

	router, err := handlers.NewRouter(handlers.Deps{
		DB:                 db,
		AppURL:             cfg.App.URL,
		Resumes:            resumeService,
		Auth:               authService,
		Storage:            storageService,
		Render:             renderService,
		Printer:            printerService,
		LLM:                llmService,
		Metrics:            metrics.New(),
		Log:                logger,
		RateLimitPerMinute: cfg.Auth.RateLimitPerMinute,
		TrustedProxies:     cfg.Server.TrustedProxies,
		Middleware:         []gin.HandlerFunc{cors.New(corsConfig)},
	})
	if err != nil {
		logger.Fatal("failed to build router", zap.Error(err))
	}

	// 7. Serve until interrupted
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("server starting", zap.String("addr", cfg.Server.Addr), zap.String("app_url", cfg.App.URL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed to start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
