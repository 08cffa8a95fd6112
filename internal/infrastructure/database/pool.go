// Package database は接続プールの所有と、パラメータ付き SQL の実行を担当する。
//
// Pool は Open → Closed の一方向の状態を持つ。Shutdown 後の Exec / Query は
// ErrPoolClosed を返す。再接続はしない。
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hijjiri/todo-api/internal/config"

	"github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

var ErrPoolClosed = errors.New("connection pool is closed")

// Observer は文の実行結果を受け取る（メトリクス用）。
type Observer interface {
	ObserveStatement(kind string, duration time.Duration, err error)
}

type Option func(*Pool)

func WithObserver(o Observer) Option {
	return func(p *Pool) {
		p.observer = o
	}
}

type Pool struct {
	db       *sql.DB
	driver   string
	logger   *zap.Logger
	tracer   trace.Tracer
	observer Observer

	closed    atomic.Bool
	closeOnce sync.Once
}

// New は既に開いている *sql.DB を Pool として包む。
func New(db *sql.DB, driver string, logger *zap.Logger, opts ...Option) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{
		db:     db,
		driver: driver,
		logger: logger,
		tracer: otel.Tracer("github.com/hijjiri/todo-api/internal/infrastructure/database"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Open は cfg に従って接続プールを作り、疎通確認（リトライ付き）まで行う。
func Open(ctx context.Context, cfg config.DBConfig, logger *zap.Logger, opts ...Option) (*Pool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	driverName, dsn, err := dataSource(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := pingWithRetry(ctx, db, logger, DefaultPingRetry); err != nil {
		if cerr := db.Close(); cerr != nil {
			logger.Error("failed to close db after ping failure", zap.Error(cerr))
		}
		return nil, fmt.Errorf("connect db: %w", err)
	}

	return New(db, driverName, logger, opts...), nil
}

// dataSource は driver 名と DSN を返す。
func dataSource(cfg config.DBConfig) (string, string, error) {
	switch cfg.Driver {
	case "mysql":
		mc := mysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.Host, cfg.Port)
		mc.DBName = cfg.Name
		mc.ParseTime = true
		mc.Timeout = 5 * time.Second
		// UPDATE で値が変わらなくても「一致した行」を affected rows に数える
		mc.ClientFoundRows = true
		mc.Params = map[string]string{"charset": "utf8mb4"}
		return "mysql", mc.FormatDSN(), nil
	case "sqlite":
		return "sqlite", cfg.Path, nil
	default:
		return "", "", fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}
}

// Exec は INSERT / UPDATE / DELETE を実行し、affected rows / insert id を返す。
// 失敗はログに残したうえで呼び出し元へそのまま返す（リトライ無し）。
func (p *Pool) Exec(ctx context.Context, stmt string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := p.run(ctx, stmt, func(ctx context.Context) error {
		var err error
		res, err = p.db.ExecContext(ctx, stmt, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Query は SELECT を実行する。rows の Close は呼び出し側の責務。
func (p *Pool) Query(ctx context.Context, stmt string, args ...any) (*sql.Rows, error) {
	var rows *sql.Rows
	err := p.run(ctx, stmt, func(ctx context.Context) error {
		var err error
		rows, err = p.db.QueryContext(ctx, stmt, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (p *Pool) run(ctx context.Context, stmt string, fn func(ctx context.Context) error) error {
	kind := statementKind(stmt)

	if p.closed.Load() {
		p.logger.Warn("statement rejected: pool closed", zap.String("kind", kind))
		return ErrPoolClosed
	}

	ctx, span := p.tracer.Start(ctx, "db."+strings.ToLower(kind),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", p.driver),
			attribute.String("db.statement", stmt),
		),
	)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	if p.observer != nil {
		p.observer.ObserveStatement(kind, duration, err)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Error("statement failed",
			zap.String("kind", kind),
			zap.String("statement", stmt),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// Ping はヘルスチェック用。
func (p *Pool) Ping(ctx context.Context) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	return p.db.PingContext(ctx)
}

// Closed は Shutdown 済みかどうか。
func (p *Pool) Closed() bool {
	return p.closed.Load()
}

// Shutdown はプールを閉じる。何度呼んでもよい。
// 終了処理中に呼ばれる前提なので、失敗はログに残すだけで返さない。
func (p *Pool) Shutdown() {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		if err := p.db.Close(); err != nil {
			p.logger.Error("failed to close database pool", zap.Error(err))
			return
		}
		p.logger.Info("database pool closed")
	})
}

// statementKind は先頭キーワード（INSERT / SELECT / ...）を返す。
func statementKind(stmt string) string {
	fields := strings.Fields(stmt)
	if len(fields) == 0 {
		return "UNKNOWN"
	}
	return strings.ToUpper(fields[0])
}
