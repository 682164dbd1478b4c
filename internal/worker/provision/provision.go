// Package provision はサインアップ済みユーザーのプロフィールを作成するジョブを提供する。
// サインアップ時にはプロフィールを作らず、このジョブが後から非同期に作成する。
package provision

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Recorder は作成件数を記録する。
type Recorder interface {
	RecordProfilesProvisioned(count int)
}

// provisionQuery はプロフィールのないユーザーにプロフィールを作成する。
// ロールヒントが organizer の場合のみ organizer、それ以外は user とし、admin は作らない。
// 既に作成済みの行は上書きしない。
const provisionQuery = `INSERT INTO profiles (id, full_name, role)
SELECT u.id,
       COALESCE(u.metadata->>'full_name', ''),
       CASE WHEN u.metadata->>'role' = 'organizer' THEN 'organizer' ELSE 'user' END
FROM users u
LEFT JOIN profiles p ON p.id = u.id
WHERE p.id IS NULL
ORDER BY u.created_at
LIMIT $1
ON CONFLICT (id) DO NOTHING`

// ProvisionJob はプロフィール未作成のユーザーを一定件数ずつ処理するジョブ。
type ProvisionJob struct {
	db       Executor
	logger   *slog.Logger
	recorder Recorder
	// BatchSize は1回の実行で作成する最大件数。
	BatchSize int
}

// NewProvisionJob はProvisionJobを生成する。recorderはnilでもよい。
func NewProvisionJob(db Executor, logger *slog.Logger, recorder Recorder) *ProvisionJob {
	return &ProvisionJob{
		db:        db,
		logger:    logger,
		recorder:  recorder,
		BatchSize: 500,
	}
}

// Name はジョブ名を返す。
func (j *ProvisionJob) Name() string { return "profile_provision" }

// Run は最大BatchSize件のプロフィールを作成する。
func (j *ProvisionJob) Run(ctx context.Context) error {
	result, err := j.db.ExecContext(ctx, provisionQuery, j.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to provision profiles: %w", err)
	}

	created, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read provisioned profile count: %w", err)
	}

	if j.recorder != nil {
		j.recorder.RecordProfilesProvisioned(int(created))
	}
	if created > 0 {
		j.logger.Info("profiles provisioned", slog.Int64("created_count", created))
	} else {
		j.logger.Debug("no profiles to provision")
	}
	return nil
}
