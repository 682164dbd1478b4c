// Package cleanup は期限切れセッションの定期削除ジョブを提供する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Recorder は削除件数を記録する。
type Recorder interface {
	RecordSessionsPurged(count int)
}

// CleanupJob は有効期限を過ぎたセッションを削除するジョブ。
// 削除対象がない場合もエラーにならず、何度実行しても結果は同じ。
type CleanupJob struct {
	db       Executor
	logger   *slog.Logger
	recorder Recorder
	// Grace は期限切れ後も残しておく期間。リフレッシュ直前のセッションを保護する。
	Grace time.Duration
}

// NewCleanupJob は新しいCleanupJobを生成する。recorderはnilでもよい。
func NewCleanupJob(db Executor, logger *slog.Logger, recorder Recorder) *CleanupJob {
	return &CleanupJob{
		db:       db,
		logger:   logger,
		recorder: recorder,
	}
}

// Name はジョブ名を返す。
func (j *CleanupJob) Name() string { return "session_cleanup" }

// Run は expires_at が now() - Grace 以前のセッションを削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	grace := fmt.Sprintf("%d seconds", int64(j.Grace/time.Second))

	query := `DELETE FROM sessions WHERE expires_at <= now() - $1::interval`
	result, err := j.db.ExecContext(ctx, query, grace)
	if err != nil {
		return fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read deleted session count: %w", err)
	}

	if j.recorder != nil {
		j.recorder.RecordSessionsPurged(int(deletedCount))
	}

	j.logger.Info("expired sessions purged",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}
