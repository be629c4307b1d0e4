package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmu-dashboard-go/internal/config"
	"github.com/danmu-dashboard-go/internal/handlers"
	"github.com/danmu-dashboard-go/internal/i18n"
	"github.com/danmu-dashboard-go/internal/middleware"
	"github.com/danmu-dashboard-go/internal/services/api"
	"github.com/danmu-dashboard-go/internal/services/cache"
	"github.com/danmu-dashboard-go/internal/services/rooms"
	"github.com/danmu-dashboard-go/internal/services/storage"
	"github.com/danmu-dashboard-go/internal/web"
	"github.com/danmu-dashboard-go/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "configs/config.yaml", "Path to configuration file")
	envFile := flag.String("env", ".env", "Path to .env file")
	flag.Parse()

	// Load .env file if exists
	if err := godotenv.Load(*envFile); err != nil {
		// It's okay if .env doesn't exist
		fmt.Printf("Warning: .env file not found: %v\n", err)
	}

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.WithFields(logrus.Fields{
		"api":       cfg.API.BaseURL,
		"streamers": len(cfg.Streamers),
	}).Info("Starting danmu dashboard...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize metrics
	metrics := middleware.NewMetrics()

	// Initialize storage
	storageManager, err := storage.NewManager(cfg, metrics, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize storage")
	}
	defer storageManager.Close()

	// Initialize query cache and upstream client
	queryCache := cache.NewQueryCache(cfg, metrics, log)
	apiClient := api.NewClient(&cfg.API, queryCache, metrics, log)

	// Initialize i18n
	localizer, err := i18n.NewLocalizer(&cfg.I18n)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize i18n")
	}

	renderer, err := web.NewRenderer(localizer, cfg.Server.TimeLocation())
	if err != nil {
		log.WithError(err).Fatal("Failed to parse templates")
	}

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter(cfg, log)

	// Start metrics server if enabled
	if cfg.Monitoring.Metrics.Enabled {
		go func() {
			log.WithFields(logrus.Fields{
				"port": cfg.Monitoring.Metrics.Port,
				"path": cfg.Monitoring.Metrics.Path,
			}).Info("Starting metrics server")

			if err := middleware.StartMetricsServer(cfg.Monitoring.Metrics.Port, cfg.Monitoring.Metrics.Path); err != nil {
				log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	server := handlers.NewServer(
		cfg,
		apiClient,
		queryCache,
		storageManager,
		rooms.NewDirectory(cfg),
		renderer,
		localizer,
		rateLimiter,
		metrics,
		log,
	)

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	// Start periodic tasks
	go startPeriodicTasks(ctx, storageManager, queryCache, metrics, log)

	// Wait for shutdown signal
	select {
	case <-sigChan:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		if err != nil {
			log.WithError(err).Error("Dashboard server failed")
		}
	}

	// Cancel context to stop all goroutines
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Failed to shut down dashboard server")
	}

	log.Info("Dashboard stopped")
}

// startPeriodicTasks starts periodic background tasks
func startPeriodicTasks(ctx context.Context, storage *storage.Manager, queryCache *cache.QueryCache, metrics *middleware.Metrics, log *logrus.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := storage.CountSessions(ctx)
			if err != nil {
				log.WithError(err).Warn("Failed to count sessions")
			} else {
				metrics.SetActiveSessions(float64(count))
			}
			metrics.SetCachedQueries(float64(queryCache.ItemCount()))
		}
	}
}
