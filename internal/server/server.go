// Package server はプロセス単位のアプリケーションコンテナ。
//
// New で DB プール・トレーサ・HTTP/metrics/health の各サーバを用意し、
// Run が ctx の終了まで待ってから Shutdown で逆順に解放する。
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/hijjiri/todo-api/internal/config"
	"github.com/hijjiri/todo-api/internal/infrastructure/database"
	grpcadapter "github.com/hijjiri/todo-api/internal/interface/grpc"
	httpadapter "github.com/hijjiri/todo-api/internal/interface/http"
	"github.com/hijjiri/todo-api/internal/observability"
	todo_usecase "github.com/hijjiri/todo-api/internal/usecase/todo"

	"go.uber.org/zap"
)

const (
	healthCheckInterval = 5 * time.Second

	readHeaderTimeout = 5 * time.Second
	idleTimeout       = 60 * time.Second
)

type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	pool            *database.Pool
	metrics         *observability.Metrics
	shutdownTracing observability.ShutdownFunc

	httpServer    *http.Server
	metricsServer *http.Server              // metrics_addr が空なら nil
	health        *grpcadapter.HealthServer // health_addr が空なら nil

	httpLis    net.Listener
	metricsLis net.Listener
	healthLis  net.Listener

	shutdownOnce sync.Once
}

// New は依存を全部組み立てる。listen はまだしない。
// DB に繋がらなければ（リトライ後）エラーを返す。
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	shutdownTracing, err := observability.InitTracing(cfg.TracingEnabled, cfg.Env, os.Stdout)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	metrics := observability.NewMetrics()

	pool, err := database.Open(ctx, cfg.DB, logger, database.WithObserver(metrics))
	if err != nil {
		_ = shutdownTracing(ctx)
		return nil, fmt.Errorf("open database: %w", err)
	}

	uc := todo_usecase.New(database.NewTodoRepository(pool), logger)

	router := httpadapter.NewRouter(httpadapter.RouterConfig{
		Logger:             logger,
		Usecase:            uc,
		Metrics:            metrics,
		RequestTimeout:     cfg.RequestTimeout,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	s := &Server{
		cfg:             cfg,
		logger:          logger,
		pool:            pool,
		metrics:         metrics,
		shutdownTracing: shutdownTracing,
		httpServer: &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           router,
			ReadHeaderTimeout: readHeaderTimeout,
			IdleTimeout:       idleTimeout,
		},
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		s.metricsServer = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
		}
	}

	if cfg.HealthAddr != "" {
		s.health = grpcadapter.NewHealthServer(logger)
	}

	return s, nil
}

// Listen は各ポートを開く。Run から呼ばれるが、先に呼んでアドレスを知ることもできる。
func (s *Server) Listen() error {
	if s.httpLis != nil {
		return nil
	}

	var err error
	if s.httpLis, err = net.Listen("tcp", s.cfg.HTTPAddr); err != nil {
		return fmt.Errorf("listen http %s: %w", s.cfg.HTTPAddr, err)
	}
	if s.metricsServer != nil {
		if s.metricsLis, err = net.Listen("tcp", s.cfg.MetricsAddr); err != nil {
			s.closeListeners()
			return fmt.Errorf("listen metrics %s: %w", s.cfg.MetricsAddr, err)
		}
	}
	if s.health != nil {
		if s.healthLis, err = net.Listen("tcp", s.cfg.HealthAddr); err != nil {
			s.closeListeners()
			return fmt.Errorf("listen health %s: %w", s.cfg.HealthAddr, err)
		}
	}
	return nil
}

func (s *Server) closeListeners() {
	for _, lis := range []net.Listener{s.httpLis, s.metricsLis, s.healthLis} {
		if lis != nil {
			_ = lis.Close()
		}
	}
	s.httpLis, s.metricsLis, s.healthLis = nil, nil, nil
}

// HTTPAddr は Listen 後の実アドレス（:0 指定時に使う）。
func (s *Server) HTTPAddr() net.Addr {
	if s.httpLis == nil {
		return nil
	}
	return s.httpLis.Addr()
}

func (s *Server) MetricsAddr() net.Addr {
	if s.metricsLis == nil {
		return nil
	}
	return s.metricsLis.Addr()
}

func (s *Server) HealthAddr() net.Addr {
	if s.healthLis == nil {
		return nil
	}
	return s.healthLis.Addr()
}

// Run は ctx がキャンセルされるかサーバが異常終了するまでブロックし、
// 最後に必ず Shutdown する。
func (s *Server) Run(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		s.Shutdown(context.Background())
		return err
	}

	errCh := make(chan error, 3)

	// ---- HTTP API ----
	go func() {
		s.logger.Info("http server started", zap.String("addr", s.httpLis.Addr().String()))
		if err := s.httpServer.Serve(s.httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	// ---- metrics HTTP サーバ (/metrics) ----
	if s.metricsServer != nil {
		go func() {
			s.logger.Info("metrics server started", zap.String("addr", s.metricsLis.Addr().String()))
			if err := s.metricsServer.Serve(s.metricsLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	// ---- gRPC health ----
	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	watchDone := make(chan struct{})

	if s.health != nil {
		go func() {
			defer close(watchDone)
			s.health.Watch(watchCtx, s.pool, healthCheckInterval)
		}()
		go func() {
			s.logger.Info("health server started", zap.String("addr", s.healthLis.Addr().String()))
			if err := s.health.Serve(s.healthLis); err != nil {
				errCh <- fmt.Errorf("health server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		s.logger.Error("server exited unexpectedly", zap.Error(runErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	// 実行中の疎通確認が終わってから止める
	stopWatch()
	if s.health != nil {
		s.health.BeginShutdown()
		select {
		case <-watchDone:
		case <-shutdownCtx.Done():
		}
	}

	s.Shutdown(shutdownCtx)

	return runErr
}

// Shutdown は health → HTTP → DB → metrics → gRPC → tracer の順に止める。
// 2 回目以降は何もしない。
func (s *Server) Shutdown(ctx context.Context) {
	s.shutdownOnce.Do(func() {
		if s.health != nil {
			s.health.BeginShutdown()
		}

		if s.httpLis != nil {
			if err := s.httpServer.Shutdown(ctx); err != nil {
				s.logger.Error("http server shutdown failed", zap.Error(err))
			}
		}

		s.pool.Shutdown()

		if s.metricsServer != nil && s.metricsLis != nil {
			if err := s.metricsServer.Shutdown(ctx); err != nil {
				s.logger.Error("metrics server shutdown failed", zap.Error(err))
			}
		}

		if s.health != nil && s.healthLis != nil {
			s.health.Stop(ctx)
		}

		if err := s.shutdownTracing(ctx); err != nil {
			s.logger.Error("tracer shutdown failed", zap.Error(err))
		}

		s.logger.Info("server stopped")
	})
}
