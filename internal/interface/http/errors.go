package httpadapter

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const msgInternal = "internal server error"

// apiError はハンドラが返すエラー。Message だけがクライアントに見える。
type apiError struct {
	Status  int
	Message string
	Err     error
}

func (e *apiError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *apiError) Unwrap() error {
	return e.Err
}

// serverError は 500 を作る。message 省略時は汎用メッセージ。
func serverError(err error, message ...string) *apiError {
	msg := msgInternal
	if len(message) > 0 && message[0] != "" {
		msg = message[0]
	}
	return &apiError{Status: http.StatusInternalServerError, Message: msg, Err: err}
}

func notFound(message string) *apiError {
	return &apiError{Status: http.StatusNotFound, Message: message}
}

func badRequest(message string, err error) *apiError {
	return &apiError{Status: http.StatusBadRequest, Message: message, Err: err}
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewErrorHandler は全エラーの出口。
// 元のエラーはサーバ側ログにだけ残し、クライアントには {"error": message} を返す。
func NewErrorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		message := msgInternal

		var ae *apiError
		var he *echo.HTTPError
		switch {
		case errors.As(err, &ae):
			status = ae.Status
			message = ae.Message
		case errors.As(err, &he):
			status = he.Code
			message = http.StatusText(he.Code)
			if msg, ok := he.Message.(string); ok && status < http.StatusInternalServerError {
				message = msg
			}
		}

		req := c.Request()
		fields := []zap.Field{
			zap.Int("status", status),
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
		}
		if rid, ok := RequestIDFromContext(req.Context()); ok {
			fields = append(fields, zap.String("request_id", rid))
		}

		if status >= http.StatusInternalServerError {
			logger.Error(message, append(fields, zap.Error(err))...)
		} else {
			logger.Warn(message, fields...)
		}

		var werr error
		if req.Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, errorResponse{Error: message})
		}
		if werr != nil {
			logger.Error("failed to write error response", zap.Error(werr))
		}
	}
}
