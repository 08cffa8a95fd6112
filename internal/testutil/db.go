// Package testutil はテスト用の SQLite (in-memory) プールを用意する。
package testutil

import (
	"context"
	"database/sql"
	"testing"

	"github.com/hijjiri/todo-api/internal/infrastructure/database"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SchemaSQLite は schema.sql の SQLite 版。
const SchemaSQLite = `
CREATE TABLE IF NOT EXISTS todos (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	priority TEXT NOT NULL,
	status TEXT NOT NULL
);`

// NewSQLitePool は todos テーブル付きの in-memory Pool を返す。
// テスト終了時に Shutdown される。
func NewSQLitePool(t testing.TB, opts ...database.Option) *database.Pool {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	// :memory: は接続ごとに別 DB になるので 1 本に固定する
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), SchemaSQLite); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	pool := database.New(db, "sqlite", zap.NewNop(), opts...)
	t.Cleanup(pool.Shutdown)
	return pool
}

// CountTodos は todos の行数を直接数える（Pool 経由）。
func CountTodos(t testing.TB, pool *database.Pool) int {
	t.Helper()

	rows, err := pool.Query(context.Background(), "SELECT COUNT(*) FROM todos")
	if err != nil {
		t.Fatalf("count todos: %v", err)
	}
	defer rows.Close()

	var n int
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			t.Fatalf("scan count: %v", err)
		}
	}
	return n
}
