// Package review は審査待ちアセスメントのバックグラウンド審査を提供する。
// スケジューラと、失敗したアセスメントのバックオフ管理を含む。
package review

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gncompass/serverfront/internal/model"
)

// Reviewer は審査の実行インターフェース。assessment.Serviceが実装する。
type Reviewer interface {
	// ReviewPending は審査待ちのアセスメントをexcludeを除いて最大limit件返す。
	ReviewPending(ctx context.Context, limit int, exclude []int64) ([]*model.Assessment, error)
	// Review は1件のアセスメントを判定し、結果を適用する。
	Review(ctx context.Context, a *model.Assessment) error
}

// Scheduler は審査待ちアセスメントの定期審査と並列制御を行う。
// ティッカーで審査待ちを取得し、semaphoreパターンで最大並列数を制御しながら審査する。
type Scheduler struct {
	reviewer       Reviewer
	logger         *slog.Logger
	maxConcurrency int
	batchSize      int
	backoff        *backoffTracker
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合は5、batchSizeが0以下の場合は100を使用する。
func NewScheduler(reviewer Reviewer, logger *slog.Logger, maxConcurrency, batchSize int) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 5
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Scheduler{
		reviewer:       reviewer,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		batchSize:      batchSize,
		backoff:        newBackoffTracker(time.Now),
	}
}

// Start はinterval間隔でスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("審査スケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("審査サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("審査スケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("審査サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は審査待ちアセスメントを1回取得し、並列で審査する。
// バックオフ中のアセスメントは取得時点で除外するため、失敗し続ける古い審査待ちが
// バッチを占有して新しい審査待ちが取得されなくなることはない。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	pending, err := s.reviewer.ReviewPending(ctx, s.batchSize, s.backoff.backingOff())
	if err != nil {
		return err
	}

	due := make([]*model.Assessment, 0, len(pending))
	for _, a := range pending {
		if s.backoff.due(a.ID) {
			due = append(due, a)
		}
	}

	if len(due) == 0 {
		s.logger.Debug("審査対象のアセスメントはありません",
			slog.Int("backing_off", len(pending)),
		)
		return nil
	}

	s.logger.Info("審査サイクルを開始します",
		slog.Int("assessment_count", len(due)),
	)

	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, a := range due {
		wg.Add(1)
		sem <- struct{}{}

		go func(a *model.Assessment) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := s.reviewer.Review(ctx, a); err != nil {
				delay := s.backoff.fail(a.ID)
				s.logger.Error("アセスメントの審査に失敗しました",
					slog.String("reference", a.Reference.String()),
					slog.Duration("retry_after", delay),
					slog.String("error", err.Error()),
				)
				return
			}
			s.backoff.succeed(a.ID)
		}(a)
	}

	wg.Wait()

	s.logger.Info("審査サイクルが完了しました",
		slog.Int("assessment_count", len(due)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}
