package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"textbook-rag-be/internal/bootstrap"
	"textbook-rag-be/internal/config"
	"textbook-rag-be/internal/pkg/logger"
	"textbook-rag-be/internal/server"
	"textbook-rag-be/internal/tracer"
	"textbook-rag-be/pkg/database"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	defer sysLogger.Sync()

	// 2. Tracing
	shutdownTracer := tracer.InitTracer(cfg.Tracing, sysLogger)
	defer shutdownTracer(context.Background())

	// 3. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection, cfg.IsProduction())
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}
	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(gormDB); err != nil {
			log.Panicf("Unable to migrate database: %v", err)
		}
	}

	// 4. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(gormDB, cfg, sysLogger)
	if err != nil {
		log.Panicf("Unable to build container: %v", err)
	}
	defer container.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Start Background Services
	if err := container.Start(ctx); err != nil {
		log.Panicf("Unable to start background services: %v", err)
	}

	// 6. Run Server
	srv := server.New(cfg, container, sysLogger)
	go func() {
		if err := srv.Run(); err != nil {
			sysLogger.Error("HTTP", "Server stopped", map[string]interface{}{"error": err.Error()})
			stop()
		}
	}()

	<-ctx.Done()
	sysLogger.Info("HTTP", "Shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sysLogger.Error("HTTP", "Graceful shutdown failed", map[string]interface{}{"error": err.Error()})
	}
}
