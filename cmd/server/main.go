package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ahsanj/local-log-analyzer/internal/config"
	"github.com/ahsanj/local-log-analyzer/internal/db"
	"github.com/ahsanj/local-log-analyzer/internal/logger"
	"github.com/ahsanj/local-log-analyzer/internal/routes"
	"github.com/ahsanj/local-log-analyzer/internal/services"
	"github.com/ahsanj/local-log-analyzer/internal/storage"
	"github.com/gin-gonic/gin"
)

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		conn, err := db.Connect(ctx, cfg.DatabaseURL, cfg.DB.LogLevel, cfg.Retry)
		if err != nil {
			return nil, err
		}
		if err := db.AutoMigrate(conn); err != nil {
			return nil, err
		}
		return storage.NewPostgresStore(conn), nil
	case config.DriverMongo:
		return storage.NewMongoStore(ctx, cfg.Mongo)
	default:
		return storage.NewMemoryStore(), nil
	}
}

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Initialize(logger.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to open storage", map[string]interface{}{
			"driver": cfg.Storage.Driver,
			"error":  err.Error(),
		})
	}
	defer store.Close()

	analyzer := services.NewLogAnalyzer(store, cfg.AnalyzerConfig())
	files := services.NewFileService(store, cfg.Limits, cfg.Analysis.AllowedExtensions)

	var queue *services.AnalysisQueue
	if cfg.Queue.AutoAnalyze {
		queue = services.NewAnalysisQueue(analyzer, cfg.Queue.Workers, cfg.Queue.Size)
	}

	gin.SetMode(cfg.GinMode)
	r := routes.NewRouter(routes.Deps{
		Store:       store,
		Files:       files,
		Analyzer:    analyzer,
		Queue:       queue,
		MaxFileSize: cfg.Limits.MaxFileSize,
		CORSOrigins: cfg.CORSOrigins,
		JWTSecret:   cfg.JWTSecret,
	})
	r.MaxMultipartMemory = 8 << 20

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	logger.Info("Starting log analyzer server", map[string]interface{}{
		"port":         cfg.Port,
		"gin_mode":     gin.Mode(),
		"storage":      cfg.Storage.Driver,
		"auto_analyze": cfg.Queue.AutoAnalyze,
		"auth_enabled": cfg.JWTSecret != "",
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server gracefully...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if queue != nil {
		queue.Stop()
	}
	logger.Info("Server exited", nil)
}
