package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hijjiri/todo-api/internal/config"
	"github.com/hijjiri/todo-api/internal/logger"
	"github.com/hijjiri/todo-api/internal/server"

	"go.uber.org/zap"
)

//----------------------
// main
//----------------------

func main() {
	// ---- Config 読み込み ----
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// ---- Logger ----
	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}
	defer log.Sync()

	log.Info("loaded config",
		zap.String("env", cfg.Env),
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("health_addr", cfg.HealthAddr),
		zap.String("metrics_addr", cfg.MetricsAddr),
		zap.String("db_driver", cfg.DB.Driver),
		zap.String("db_host", cfg.DB.Host),
		zap.String("db_port", cfg.DB.Port),
		zap.String("db_name", cfg.DB.Name),
		zap.Duration("request_timeout", cfg.RequestTimeout),
		zap.Duration("shutdown_timeout", cfg.ShutdownTimeout),
		zap.Bool("tracing_enabled", cfg.TracingEnabled),
	)

	// ---- シグナルで ctx をキャンセル ----
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	// ---- 依存の組み立て（DB 接続はリトライ付き）----
	srv, err := server.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to initialize server", zap.Error(err))
	}

	// ---- serve（シグナルまでブロック）----
	if err := srv.Run(ctx); err != nil {
		log.Error("server exited with error", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}
