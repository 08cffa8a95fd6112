package httpadapter

import (
	"net/http"
	"time"

	todo_usecase "github.com/hijjiri/todo-api/internal/usecase/todo"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Logger             *zap.Logger
	Usecase            todo_usecase.Usecase
	Metrics            RequestObserver // nil なら計測しない
	RequestTimeout     time.Duration
	CORSAllowedOrigins []string
}

// NewRouter は middleware と /todos のルートを組み立てた echo.Echo を返す。
func NewRouter(cfg RouterConfig) *echo.Echo {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = NewErrorHandler(logger)

	// 外側から順に実行される
	e.Use(
		NewRequestIDMiddleware(),
		middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:  cfg.CORSAllowedOrigins,
			AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders:  []string{echo.HeaderContentType, RequestIDHeader},
			ExposeHeaders: []string{RequestIDHeader},
		}),
		NewMetricsMiddleware(cfg.Metrics),
		NewTracingMiddleware(),
		NewLoggingMiddleware(logger),
		NewRecoveryMiddleware(logger),
		NewTimeoutMiddleware(logger, cfg.RequestTimeout),
	)

	NewTodoHandler(cfg.Usecase).Register(e)

	return e
}
