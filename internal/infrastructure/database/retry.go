package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"syscall"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// RetryPolicy は「何回・どのくらい待つか」をまとめた設定。
// 使うのは起動時の疎通確認だけで、文の実行はリトライしない。
type RetryPolicy struct {
	MaxAttempts int           // 例: 20（合計20回試す）
	BaseBackoff time.Duration // 例: 500ms
	MaxBackoff  time.Duration // 例: 3s
}

// ER_CON_COUNT_ERROR。起動直後に接続が殺到したときに返る。
const mysqlTooManyConnections = 1040

// DefaultPingRetry は DB コンテナの起動待ちを想定した値。
var DefaultPingRetry = RetryPolicy{
	MaxAttempts: 20,
	BaseBackoff: 500 * time.Millisecond,
	MaxBackoff:  3 * time.Second,
}

func pingWithRetry(ctx context.Context, db *sql.DB, logger *zap.Logger, policy RetryPolicy) error {
	return doWithRetry(ctx, policy,
		func() error { return db.PingContext(ctx) },
		func(attempt int, err error) {
			logger.Warn("failed to ping db",
				zap.Int("attempt", attempt),
				zap.Int("maxAttempts", policy.MaxAttempts),
				zap.Error(err),
			)
		},
	)
}

// doWithRetry は、retryable なエラーのみをバックオフ付きで再実行する。
// - ctx の deadline/cancel を尊重して即中断する
func doWithRetry(ctx context.Context, policy RetryPolicy, fn func() error, onRetry func(attempt int, err error)) error {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.BaseBackoff <= 0 {
		policy.BaseBackoff = 10 * time.Millisecond
	}
	if policy.MaxBackoff <= 0 {
		policy.MaxBackoff = 200 * time.Millisecond
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		// retry 対象外 / 最終試行なら即返す
		if !isRetryablePingErr(err) || attempt == policy.MaxAttempts {
			return err
		}

		if onRetry != nil {
			onRetry(attempt, err)
		}

		if err := sleepWithContext(ctx, policy.delay(attempt)); err != nil {
			return err
		}
	}

	return lastErr
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// delay は attempt 回目（1 始まり）の失敗後の待ち時間。倍々で増やし MaxBackoff で頭打ち。
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.BaseBackoff
	for i := 1; i < attempt && d < p.MaxBackoff; i++ {
		d *= 2
	}
	return min(d, p.MaxBackoff)
}

// isRetryablePingErr は「DB がまだ受け付けていない」系の接続エラーだけ true。
// 認証失敗や DB 不在のように MySQL が明示的に返すエラーは待っても直らない。
func isRetryablePingErr(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlTooManyConnections
	}

	// dial 失敗・DNS 未解決・ハンドシェイク途中の切断
	var ne net.Error
	return errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, mysql.ErrInvalidConn) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.As(err, &ne)
}
