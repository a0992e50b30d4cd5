package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/policygraph/policygraph/internal/config"
	"github.com/policygraph/policygraph/internal/database"
	"github.com/policygraph/policygraph/internal/logger"
	"github.com/policygraph/policygraph/internal/server"
	"github.com/policygraph/policygraph/internal/services"
	"github.com/policygraph/policygraph/internal/version"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Setup logging with rotation
	if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
		log.Fatalf("ensure log directory: %v", err)
	}
	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, "policyd.log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	logger.Init(cfg.Environment == "development", io.MultiWriter(os.Stdout, rotator))

	logger.Log().Infof("starting %s %s", version.Name, version.Full())

	if cfg.JWTSecret == "" {
		log.Fatal("PG_JWT_SECRET must be set")
	}

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}

	srv, err := server.New(db, cfg)
	if err != nil {
		log.Fatalf("build server: %v", err)
	}

	// Bootstrap the first administrator when configured and none exists.
	if email, password := os.Getenv("PG_ADMIN_EMAIL"), os.Getenv("PG_ADMIN_PASSWORD"); email != "" && password != "" {
		created, err := services.NewAuthService(db, cfg).EnsureAdmin(email, password)
		if err != nil {
			log.Fatalf("bootstrap admin: %v", err)
		}
		if created {
			logger.WithFields(map[string]interface{}{"email": email}).Info("created bootstrap administrator")
		}
	}

	sweeper, err := services.NewSweeperService(db, cfg.SweepSchedule)
	if err != nil {
		log.Fatalf("schedule sweeper: %v", err)
	}
	sweeper.Start()
	defer sweeper.Stop()

	// Age out threat records past retention once per start.
	if removed, err := services.NewThreatHistoryService(db).CleanupOld(0); err != nil {
		logger.Log().WithError(err).Warn("threat history cleanup failed")
	} else if removed > 0 {
		logger.WithFields(map[string]interface{}{"removed": removed}).Info("aged out old threat records")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithFields(map[string]interface{}{"port": cfg.HTTPPort}).Info("listening")
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
