package grpcadapter

import (
	"context"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// TodoServiceName は health で個別に問い合わせできるサービス名。
const TodoServiceName = "todo.TodoAPI"

// Pinger は疎通確認できるもの（database.Pool）。
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer は grpc.health.v1 だけを載せた gRPC サーバ。
// 起動直後は NOT_SERVING。BeginShutdown 以降は SERVING に戻らない。
type HealthServer struct {
	server *grpc.Server
	health *health.Server
	logger *zap.Logger

	mu       sync.Mutex
	draining bool
}

func NewHealthServer(logger *zap.Logger) *HealthServer {
	if logger == nil {
		logger = zap.NewNop()
	}

	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			NewRecoveryUnaryInterceptor(logger),
			NewLoggingUnaryInterceptor(logger),
		),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	h := &HealthServer{
		server: srv,
		health: hs,
		logger: logger,
	}
	h.SetServing(false)
	return h
}

func (h *HealthServer) SetServing(serving bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.draining {
		return
	}
	h.setStatus(serving)
}

// BeginShutdown は NOT_SERVING に固定する。以後の SetServing(true) は無視される。
func (h *HealthServer) BeginShutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.draining = true
	h.setStatus(false)
}

func (h *HealthServer) setStatus(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", st)
	h.health.SetServingStatus(TodoServiceName, st)
}

// Watch は interval ごとに p.Ping して状態を更新する。ctx 終了で戻る。
// 実行中の Ping が終わるまでは戻らないので、呼び出し側は戻りを待ってから止めること。
func (h *HealthServer) Watch(ctx context.Context, p Pinger, interval time.Duration) {
	check := func() {
		pingCtx, cancel := context.WithTimeout(ctx, interval)
		defer cancel()

		if err := p.Ping(pingCtx); err != nil {
			if ctx.Err() == nil {
				h.logger.Warn("health check failed", zap.Error(err))
			}
			h.SetServing(false)
			return
		}
		if ctx.Err() != nil {
			return
		}
		h.SetServing(true)
	}

	check()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}

func (h *HealthServer) Serve(lis net.Listener) error {
	return h.server.Serve(lis)
}

// Stop は全サービスを NOT_SERVING にしてから止める（BeginShutdown を含む）。
// ctx が先に切れたら Watch ストリームごと強制停止する。
func (h *HealthServer) Stop(ctx context.Context) {
	h.BeginShutdown()
	h.health.Shutdown()

	done := make(chan struct{})
	go func() {
		h.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		h.logger.Warn("health server graceful stop timed out, forcing stop")
		h.server.Stop()
	}
}
