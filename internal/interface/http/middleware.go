package httpadapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const RequestIDHeader = "X-Request-ID"

// NewRequestIDMiddleware は X-Request-ID を引き継ぐか、無ければ UUID を振る。
func NewRequestIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(RequestIDHeader)
			if rid == "" {
				rid = uuid.NewString()
			}
			c.Response().Header().Set(RequestIDHeader, rid)
			c.SetRequest(c.Request().WithContext(WithRequestID(c.Request().Context(), rid)))
			return next(c)
		}
	}
}

// RequestObserver はリクエスト単位のメトリクス記録先。
type RequestObserver interface {
	ObserveRequest(method, route string, status int, duration time.Duration)
}

func NewMetricsMiddleware(obs RequestObserver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if obs == nil {
			return next
		}
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			obs.ObserveRequest(c.Request().Method, route, c.Response().Status, time.Since(start))
			return err
		}
	}
}

// NewTracingMiddleware は 1 リクエスト 1 server span を張る。
func NewTracingMiddleware() echo.MiddlewareFunc {
	tracer := otel.Tracer("github.com/hijjiri/todo-api/internal/interface/http")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := otel.GetTextMapPropagator().Extract(req.Context(), propagation.HeaderCarrier(req.Header))

			route := c.Path()
			ctx, span := tracer.Start(ctx, req.Method+" "+route,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.request.method", req.Method),
					attribute.String("http.route", route),
				),
			)
			defer span.End()

			if rid, ok := RequestIDFromContext(ctx); ok {
				span.SetAttributes(attribute.String("request.id", rid))
			}

			c.SetRequest(req.WithContext(ctx))
			err := next(c)

			status := c.Response().Status
			span.SetAttributes(attribute.Int("http.response.status_code", status))
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}
			return err
		}
	}
}

// NewLoggingMiddleware logs each request with method, path, status, duration and request_id(あれば).
// ハンドラのエラーはここで ErrorHandler に渡して応答を確定させ、確定後の status をログに出す。
func NewLoggingMiddleware(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			if err := next(c); err != nil {
				c.Error(err)
			}

			duration := time.Since(start)
			req := c.Request()
			status := c.Response().Status

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Int("status", status),
				zap.Duration("duration", duration),
			}
			if rid, ok := RequestIDFromContext(req.Context()); ok {
				fields = append(fields, zap.String("request_id", rid))
			}

			switch {
			case status >= http.StatusInternalServerError:
				logger.Error("HTTP request", fields...)
			case status >= http.StatusBadRequest:
				logger.Warn("HTTP request", fields...)
			default:
				logger.Info("HTTP request", fields...)
			}
			return nil
		}
	}
}

// NewRecoveryMiddleware は handler の panic を 500 に変換する。
func NewRecoveryMiddleware(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					if r == http.ErrAbortHandler {
						panic(r)
					}
					logger.Error("panic recovered in http handler",
						zap.Any("panic", r),
						zap.String("route", c.Path()),
						zap.ByteString("stacktrace", debug.Stack()),
					)
					err = serverError(fmt.Errorf("panic: %v", r))
				}
			}()

			return next(c)
		}
	}
}

// NewTimeoutMiddleware は各リクエストの ctx に deadline を付ける。
// - timeout <= 0 の場合は何もしない
// - 既に ctx に deadline がある場合は「より短い方」を優先
func NewTimeoutMiddleware(logger *zap.Logger, timeout time.Duration) echo.MiddlewareFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if timeout <= 0 {
				return next(c)
			}

			ctx := c.Request().Context()
			if dl, ok := ctx.Deadline(); ok && time.Until(dl) <= timeout {
				return next(c)
			}

			ctx2, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			c.SetRequest(c.Request().WithContext(ctx2))

			err := next(c)
			if errors.Is(ctx2.Err(), context.DeadlineExceeded) {
				logger.Warn("request timeout",
					zap.String("route", c.Path()),
					zap.Duration("timeout", timeout),
				)
			}
			return err
		}
	}
}
