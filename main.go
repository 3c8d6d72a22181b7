package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"campsite/config"
	cronWorker "campsite/cron"
	"campsite/database"
	"campsite/handlers"
	"campsite/middleware"
	"campsite/routes"
	"campsite/services/booking"
	"campsite/services/calendar"
	"campsite/services/notification"
	"campsite/services/sheets"
	"campsite/utils"
)

func main() {
	config.LoadConfig()
	utils.InitializeLogger()
	logger := utils.GetLogger()

	mappings, err := config.LoadFieldMappings(config.AppConfig.FieldMappingsPath)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to load field mappings: %v", err)
	}

	ctx := context.Background()

	calendarClient, err := calendar.NewGoogleClient(ctx,
		config.AppConfig.ServiceAccountPath,
		config.AppConfig.GoogleCalendarID,
		config.AppConfig.Timezone,
	)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize calendar client: %v", err)
	}

	sheetCache, err := sheets.NewCache(ctx)
	if err != nil {
		logger.Warn("Sheet cache unavailable, every pull will fetch", zap.Error(err))
		sheetCache = nil
	}
	sheetSource, err := sheets.NewGoogleSource(ctx,
		config.AppConfig.ServiceAccountPath,
		config.AppConfig.SpreadsheetID,
		config.AppConfig.SpreadsheetRange,
		"",
		sheetCache,
	)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to initialize sheet source: %v", err)
	}

	notifier := notification.NewDefaultNotificationService(
		notification.NewSMTPMailer(),
		config.AppConfig.EmailEnabled,
		config.AppConfig.SiteName,
	)

	store := database.NewStore(
		filepath.Join(config.AppConfig.DataDir, config.AppConfig.LiveFileName),
		filepath.Join(config.AppConfig.DataDir, config.AppConfig.ArchiveFileName),
		config.AppConfig.MaxBackupsToKeep,
		mappings,
		utils.SiteLocation(),
	)

	bookingService, err := booking.NewDefaultBookingService(
		store,
		booking.DefaultTransitions(),
		mappings,
		calendarClient,
		notifier,
		config.AppConfig.ArchiveAfterDays,
	)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to load booking data: %v", err)
	}

	// Create the Gin router.
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.RateLimitMiddleware())

	bookingHandler := handlers.NewBookingHandler(bookingService, sheetSource)
	routes.RegisterRoutes(router, bookingHandler)

	worker := cronWorker.NewWorker(bookingService, sheetSource)
	if err := worker.Start(); err != nil {
		logger.Sugar().Fatalf("main: failed to start cron worker: %v", err)
	}

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	worker.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
