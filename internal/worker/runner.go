// Package worker はバックグラウンドジョブの定期実行を提供する。
package worker

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Job は定期実行されるバッチジョブ。
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Schedule はジョブと実行間隔の組。
type Schedule struct {
	Job      Job
	Interval time.Duration
}

// Start は起動直後に1回、その後intervalごとにジョブを実行する。
// 失敗はログに記録して次の周期へ進む。ctxがキャンセルされるまで戻らない。
func Start(ctx context.Context, job Job, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger = logger.With(slog.String("job", job.Name()))
	logger.Info("worker started", slog.Duration("interval", interval))

	runOnce(ctx, job, logger)
	for {
		select {
		case <-ctx.Done():
			logger.Info("worker stopped")
			return
		case <-ticker.C:
			runOnce(ctx, job, logger)
		}
	}
}

// StartAll は全ジョブを並行に起動し、ctxのキャンセル後に全ジョブの停止を待つ。
func StartAll(ctx context.Context, logger *slog.Logger, schedules ...Schedule) {
	var g errgroup.Group
	for _, s := range schedules {
		s := s
		g.Go(func() error {
			Start(ctx, s.Job, s.Interval, logger)
			return nil
		})
	}
	_ = g.Wait()
}

func runOnce(ctx context.Context, job Job, logger *slog.Logger) {
	if ctx.Err() != nil {
		return
	}
	if err := job.Run(ctx); err != nil {
		logger.Error("worker run failed", slog.String("error", err.Error()))
	}
}
