// Package cleanup は放棄されたアセスメントの自動削除ジョブを提供する。
// ファイルが1件も添付されないまま保持期間（デフォルト30日）を超過した
// 開始状態のアセスメントを日次バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gncompass/serverfront/internal/metrics"
)

// AbandonedDeleter は放棄アセスメントの削除を抽象化するインターフェース。
// repository.AssessmentRepositoryが実装する。
type AbandonedDeleter interface {
	DeleteAbandoned(ctx context.Context, olderThan time.Time) (int, error)
}

// CleanupJob は放棄されたアセスメントの自動削除ジョブ。
// 冪等な削除処理を保証する。
type CleanupJob struct {
	repo          AbandonedDeleter
	metrics       metrics.MetricsCollector
	logger        *slog.Logger
	now           func() time.Time
	RetentionDays int // 放棄アセスメントの保持日数（デフォルト: 30）
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(repo AbandonedDeleter, collector metrics.MetricsCollector, logger *slog.Logger) *CleanupJob {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &CleanupJob{
		repo:          repo,
		metrics:       collector,
		logger:        logger,
		now:           time.Now,
		RetentionDays: 30,
	}
}

// Run は保持期間を超過した放棄アセスメントを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	cutoff := j.now().AddDate(0, 0, -j.RetentionDays)

	deleted, err := j.repo.DeleteAbandoned(ctx, cutoff)
	if err != nil {
		j.logger.Error("アセスメントクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("アセスメントクリーンアップの実行に失敗: %w", err)
	}

	j.metrics.RecordAbandonedDeleted(deleted)
	j.logger.Info("アセスメントクリーンアップジョブが完了しました",
		slog.Int("deleted_count", deleted),
		slog.Int("retention_days", j.RetentionDays),
		slog.Time("cutoff", cutoff),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Start はinterval間隔でRunを繰り返す。コンテキストがキャンセルされるまで実行を継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップジョブを開始しました", slog.Duration("interval", interval))

	_ = j.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
