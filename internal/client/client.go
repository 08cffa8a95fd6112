// Package client は todo HTTP API のクライアント（todoctl 用）。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const DefaultTimeout = 5 * time.Second

type Todo struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Priority string `json:"priority"`
	Status   string `json:"status"`
}

// TodoInput の空文字はサーバ側で既定値になる。
type TodoInput struct {
	Title    string `json:"title"`
	Priority string `json:"priority,omitempty"`
	Status   string `json:"status,omitempty"`
}

// APIError は 2xx 以外のレスポンス。
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

func (c *Client) Create(ctx context.Context, in TodoInput) (*Todo, error) {
	var out Todo
	if err := c.do(ctx, http.MethodPost, "/todos", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) List(ctx context.Context) ([]Todo, error) {
	var out []Todo
	if err := c.do(ctx, http.MethodGet, "/todos", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Update のレスポンスは id が文字列なので、ここで Todo に詰め直す。
func (c *Client) Update(ctx context.Context, id int64, in TodoInput) (*Todo, error) {
	var out struct {
		ID       string `json:"id"`
		Title    string `json:"title"`
		Priority string `json:"priority"`
		Status   string `json:"status"`
	}
	if err := c.do(ctx, http.MethodPut, todoPath(id), in, &out); err != nil {
		return nil, err
	}

	parsed, err := strconv.ParseInt(out.ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("unexpected id %q in response: %w", out.ID, err)
	}
	return &Todo{ID: parsed, Title: out.Title, Priority: out.Priority, Status: out.Status}, nil
}

// Delete はサーバの確認メッセージを返す。
func (c *Client) Delete(ctx context.Context, id int64) (string, error) {
	var out struct {
		Message string `json:"message"`
	}
	if err := c.do(ctx, http.MethodDelete, todoPath(id), nil, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func todoPath(id int64) string {
	return "/todos/" + strconv.FormatInt(id, 10)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var payload struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil {
			apiErr.Message = payload.Error
		} else {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
