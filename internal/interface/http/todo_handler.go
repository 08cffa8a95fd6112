package httpadapter

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"

	domain_todo "github.com/hijjiri/todo-api/internal/domain/todo"
	todo_usecase "github.com/hijjiri/todo-api/internal/usecase/todo"

	"github.com/labstack/echo/v4"
)

const (
	msgInvalidBody    = "invalid request body"
	msgCreateFailed   = "create failed"
	msgUpdateFailed   = "update failed"
	msgDeleteFailed   = "delete failed"
	msgUpdateNotFound = "update target not found"
	msgDeleteNotFound = "delete target not found"
	msgDeleted        = "todo deleted"
)

type TodoHandler struct {
	uc todo_usecase.Usecase
}

func NewTodoHandler(uc todo_usecase.Usecase) *TodoHandler {
	return &TodoHandler{uc: uc}
}

func (h *TodoHandler) Register(e *echo.Echo) {
	e.POST("/todos", h.CreateTodo)
	e.GET("/todos", h.ListTodos)
	e.PUT("/todos/:id", h.UpdateTodo)
	e.DELETE("/todos/:id", h.DeleteTodo)
}

// priority / status は省略・null・"" のどれでも既定値になる
type todoRequest struct {
	Title    string `json:"title"`
	Priority string `json:"priority"`
	Status   string `json:"status"`
}

type todoResponse struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Priority string `json:"priority"`
	Status   string `json:"status"`
}

// PUT はパスの id をそのまま文字列で返す
type updatedTodoResponse struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Priority string `json:"priority"`
	Status   string `json:"status"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// --- Create ---
func (h *TodoHandler) CreateTodo(c echo.Context) error {
	req, err := bindTodoRequest(c)
	if err != nil {
		return err
	}

	t, err := h.uc.Create(c.Request().Context(), req.Title, req.Priority, req.Status)
	if err != nil {
		return serverError(err, msgCreateFailed)
	}
	return c.JSON(http.StatusCreated, toTodoResponse(t))
}

// --- List ---
func (h *TodoHandler) ListTodos(c echo.Context) error {
	list, err := h.uc.List(c.Request().Context())
	if err != nil {
		return serverError(err)
	}

	resp := make([]todoResponse, 0, len(list))
	for _, t := range list {
		resp = append(resp, toTodoResponse(t))
	}
	return c.JSON(http.StatusOK, resp)
}

// --- Update ---
func (h *TodoHandler) UpdateTodo(c echo.Context) error {
	rawID := c.Param("id")

	req, err := bindTodoRequest(c)
	if err != nil {
		return err
	}

	id, err := parseID(rawID)
	if err != nil {
		return toHTTPError(err, msgUpdateNotFound, msgUpdateFailed)
	}

	t, err := h.uc.Update(c.Request().Context(), id, req.Title, req.Priority, req.Status)
	if err != nil {
		return toHTTPError(err, msgUpdateNotFound, msgUpdateFailed)
	}

	return c.JSON(http.StatusOK, updatedTodoResponse{
		ID:       rawID,
		Title:    t.Title,
		Priority: t.Priority,
		Status:   t.Status,
	})
}

// --- Delete ---
func (h *TodoHandler) DeleteTodo(c echo.Context) error {
	id, err := parseID(c.Param("id"))
	if err != nil {
		return toHTTPError(err, msgDeleteNotFound, msgDeleteFailed)
	}

	if err := h.uc.Delete(c.Request().Context(), id); err != nil {
		return toHTTPError(err, msgDeleteNotFound, msgDeleteFailed)
	}
	return c.JSON(http.StatusOK, messageResponse{Message: msgDeleted})
}

// bindTodoRequest は JSON ボディだけを受け付ける。
// フォーム等は黙って空の title で保存されてしまうので 400 にする。
func bindTodoRequest(c echo.Context) (todoRequest, error) {
	var req todoRequest

	ctype := c.Request().Header.Get(echo.HeaderContentType)
	if mediaType, _, err := mime.ParseMediaType(ctype); err != nil || mediaType != echo.MIMEApplicationJSON {
		return req, badRequest(msgInvalidBody, fmt.Errorf("unsupported content type %q", ctype))
	}

	if err := (&echo.DefaultBinder{}).BindBody(c, &req); err != nil {
		return req, badRequest(msgInvalidBody, err)
	}
	return req, nil
}

// 数値でない id はどの行にも一致しないので「不正な id」として扱う
func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, todo_usecase.ErrInvalidID
	}
	return id, nil
}

// --- converter (domain -> response) ---
func toTodoResponse(t *domain_todo.Todo) todoResponse {
	return todoResponse{
		ID:       t.ID,
		Title:    t.Title,
		Priority: t.Priority,
		Status:   t.Status,
	}
}

// --- error mapper ---
// 不正な id / 対象なし は 404、それ以外は 500（詳細はログ側にだけ残す）
func toHTTPError(err error, notFoundMsg, failedMsg string) error {
	switch {
	case errors.Is(err, todo_usecase.ErrInvalidID), errors.Is(err, todo_usecase.ErrNotFound):
		return notFound(notFoundMsg)
	default:
		return serverError(err, failedMsg)
	}
}
