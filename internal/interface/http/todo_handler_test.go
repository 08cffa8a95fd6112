package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	domain_todo "github.com/hijjiri/todo-api/internal/domain/todo"
	"github.com/hijjiri/todo-api/internal/infrastructure/database"
	"github.com/hijjiri/todo-api/internal/testutil"
	todo_usecase "github.com/hijjiri/todo-api/internal/usecase/todo"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) (*echo.Echo, *database.Pool) {
	t.Helper()

	pool := testutil.NewSQLitePool(t)
	uc := todo_usecase.New(database.NewTodoRepository(pool), zap.NewNop())
	return NewRouter(RouterConfig{Logger: zap.NewNop(), Usecase: uc}), pool
}

func do(t *testing.T, e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func TestCreateTodo_DefaultsApplied(t *testing.T) {
	e, _ := newTestRouter(t)

	rec := do(t, e, http.MethodPost, "/todos", `{"title":"Buy milk"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	got := decode[map[string]any](t, rec)
	assert.Equal(t, map[string]any{
		"id":       float64(1),
		"title":    "Buy milk",
		"priority": "medium",
		"status":   "not started",
	}, got)
}

func TestCreateTodo_EmptyAndNullUseDefaults(t *testing.T) {
	e, _ := newTestRouter(t)

	for _, body := range []string{
		`{"title":"a","priority":"","status":""}`,
		`{"title":"b","priority":null,"status":null}`,
	} {
		rec := do(t, e, http.MethodPost, "/todos", body)
		require.Equal(t, http.StatusCreated, rec.Code)

		got := decode[todoResponse](t, rec)
		assert.Equal(t, "medium", got.Priority)
		assert.Equal(t, "not started", got.Status)
	}
}

func TestCreateTodo_ExplicitValuesVerbatim(t *testing.T) {
	e, _ := newTestRouter(t)

	rec := do(t, e, http.MethodPost, "/todos", `{"title":"Pay rent","priority":"high","status":"in progress"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	got := decode[todoResponse](t, rec)
	assert.Equal(t, "high", got.Priority)
	assert.Equal(t, "in progress", got.Status)

	list := decode[[]todoResponse](t, do(t, e, http.MethodGet, "/todos", ""))
	require.Len(t, list, 1)
	assert.Equal(t, got, list[0])
}

func TestCreateTodo_InvalidBody(t *testing.T) {
	e, pool := newTestRouter(t)

	rec := do(t, e, http.MethodPost, "/todos", `{"title":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errorResponse{Error: "invalid request body"}, decode[errorResponse](t, rec))
	assert.Equal(t, 0, testutil.CountTodos(t, pool))
}

func TestCreateAndUpdate_RejectNonJSONBody(t *testing.T) {
	e, pool := newTestRouter(t)
	do(t, e, http.MethodPost, "/todos", `{"title":"keep"}`)

	for _, ctype := range []string{echo.MIMEApplicationForm, echo.MIMETextPlain, ""} {
		for _, tt := range []struct{ method, path, body string }{
			{http.MethodPost, "/todos", "title=Buy+milk"},
			{http.MethodPut, "/todos/1", "title=changed"},
		} {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if ctype != "" {
				req.Header.Set(echo.HeaderContentType, ctype)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code, "%s %s (%q)", tt.method, tt.path, ctype)
			assert.Equal(t, errorResponse{Error: "invalid request body"}, decode[errorResponse](t, rec))
		}
	}

	list := decode[[]todoResponse](t, do(t, e, http.MethodGet, "/todos", ""))
	require.Len(t, list, 1)
	assert.Equal(t, "keep", list[0].Title)
	assert.Equal(t, 1, testutil.CountTodos(t, pool))
}

func TestCreateTodo_JSONWithCharset(t *testing.T) {
	e, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/todos", strings.NewReader(`{"title":"Buy milk"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSONCharsetUTF8)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Buy milk", decode[todoResponse](t, rec).Title)
}

func TestListTodos_Empty(t *testing.T) {
	e, _ := newTestRouter(t)

	rec := do(t, e, http.MethodGet, "/todos", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestRoundTrip_CreateThenList(t *testing.T) {
	e, _ := newTestRouter(t)

	created := decode[todoResponse](t, do(t, e, http.MethodPost, "/todos", `{"title":"Buy milk","status":"done"}`))

	rec := do(t, e, http.MethodGet, "/todos", "")
	require.Equal(t, http.StatusOK, rec.Code)

	list := decode[[]todoResponse](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, todoResponse{ID: created.ID, Title: "Buy milk", Priority: "medium", Status: "done"}, list[0])
}

func TestUpdateTodo_Success(t *testing.T) {
	e, _ := newTestRouter(t)
	do(t, e, http.MethodPost, "/todos", `{"title":"Buy milk"}`)

	rec := do(t, e, http.MethodPut, "/todos/1", `{"title":"Buy milk","priority":"high","status":"done"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// id はパスの文字列がそのまま返る
	assert.JSONEq(t, `{"id":"1","title":"Buy milk","priority":"high","status":"done"}`, rec.Body.String())

	list := decode[[]todoResponse](t, do(t, e, http.MethodGet, "/todos", ""))
	require.Len(t, list, 1)
	assert.Equal(t, todoResponse{ID: 1, Title: "Buy milk", Priority: "high", Status: "done"}, list[0])
}

func TestUpdateTodo_DefaultsApplied(t *testing.T) {
	e, _ := newTestRouter(t)
	do(t, e, http.MethodPost, "/todos", `{"title":"x","priority":"high","status":"done"}`)

	rec := do(t, e, http.MethodPut, "/todos/1", `{"title":"y"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"1","title":"y","priority":"medium","status":"not started"}`, rec.Body.String())
}

func TestUpdateTodo_NotFoundLeavesStoreUnchanged(t *testing.T) {
	e, _ := newTestRouter(t)
	do(t, e, http.MethodPost, "/todos", `{"title":"keep"}`)

	for _, path := range []string{"/todos/999", "/todos/0", "/todos/abc"} {
		rec := do(t, e, http.MethodPut, path, `{"title":"changed"}`)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, errorResponse{Error: "update target not found"}, decode[errorResponse](t, rec))
	}

	list := decode[[]todoResponse](t, do(t, e, http.MethodGet, "/todos", ""))
	require.Len(t, list, 1)
	assert.Equal(t, "keep", list[0].Title)
}

func TestDeleteTodo_NotFound(t *testing.T) {
	e, pool := newTestRouter(t)
	do(t, e, http.MethodPost, "/todos", `{"title":"keep"}`)

	rec := do(t, e, http.MethodDelete, "/todos/999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"delete target not found"}`, rec.Body.String())
	assert.Equal(t, 1, testutil.CountTodos(t, pool))
}

func TestDeleteTodo_RemovesExactlyThatRow(t *testing.T) {
	e, _ := newTestRouter(t)
	do(t, e, http.MethodPost, "/todos", `{"title":"a"}`)
	do(t, e, http.MethodPost, "/todos", `{"title":"b"}`)

	rec := do(t, e, http.MethodDelete, "/todos/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, messageResponse{Message: "todo deleted"}, decode[messageResponse](t, rec))

	list := decode[[]todoResponse](t, do(t, e, http.MethodGet, "/todos", ""))
	require.Len(t, list, 1)
	assert.Equal(t, int64(2), list[0].ID)

	// 2 回目は対象なし
	assert.Equal(t, http.StatusNotFound, do(t, e, http.MethodDelete, "/todos/1", "").Code)
}

func TestRequestIDHeader(t *testing.T) {
	e, _ := newTestRouter(t)

	rec := do(t, e, http.MethodGet, "/todos", "")
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/todos", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get(RequestIDHeader))
}

func TestUnknownRoute(t *testing.T) {
	e, _ := newTestRouter(t)

	rec := do(t, e, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Not Found"}`, rec.Body.String())
}

// ---- store 障害系（モック usecase） ----

var errStore = errors.New("dial tcp 127.0.0.1:3306: connect: connection refused")

type failingUsecase struct{}

func (failingUsecase) Create(context.Context, string, string, string) (*domain_todo.Todo, error) {
	return nil, errStore
}

func (failingUsecase) List(context.Context) ([]*domain_todo.Todo, error) {
	return nil, errStore
}

func (failingUsecase) Update(context.Context, int64, string, string, string) (*domain_todo.Todo, error) {
	return nil, errStore
}

func (failingUsecase) Delete(context.Context, int64) error {
	return errStore
}

func TestStoreFailures_Return500WithoutDetail(t *testing.T) {
	e := NewRouter(RouterConfig{Logger: zap.NewNop(), Usecase: failingUsecase{}})

	tests := []struct {
		method, path, body string
		want               string
	}{
		{http.MethodPost, "/todos", `{"title":"x"}`, "create failed"},
		{http.MethodGet, "/todos", "", "internal server error"},
		{http.MethodPut, "/todos/1", `{"title":"x"}`, "update failed"},
		{http.MethodDelete, "/todos/1", "", "delete failed"},
	}

	for _, tt := range tests {
		rec := do(t, e, tt.method, tt.path, tt.body)
		assert.Equal(t, http.StatusInternalServerError, rec.Code, tt.method)
		assert.Equal(t, errorResponse{Error: tt.want}, decode[errorResponse](t, rec))
		assert.NotContains(t, rec.Body.String(), "connection refused")
	}
}

type panickingUsecase struct{ failingUsecase }

func (panickingUsecase) List(context.Context) ([]*domain_todo.Todo, error) {
	panic("boom")
}

func TestRecovery_PanicBecomes500(t *testing.T) {
	e := NewRouter(RouterConfig{Logger: zap.NewNop(), Usecase: panickingUsecase{}})

	rec := do(t, e, http.MethodGet, "/todos", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

type recordingObserver struct {
	routes   []string
	statuses []int
}

func (r *recordingObserver) ObserveRequest(_ string, route string, status int, _ time.Duration) {
	r.routes = append(r.routes, route)
	r.statuses = append(r.statuses, status)
}

func TestMetricsMiddleware_SeesFinalStatus(t *testing.T) {
	obs := &recordingObserver{}
	e := NewRouter(RouterConfig{Logger: zap.NewNop(), Usecase: failingUsecase{}, Metrics: obs})

	do(t, e, http.MethodDelete, "/todos/1", "")

	require.Len(t, obs.routes, 1)
	assert.Equal(t, "/todos/:id", obs.routes[0])
	assert.Equal(t, http.StatusInternalServerError, obs.statuses[0])
}
