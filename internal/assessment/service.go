// Package assessment は融資審査（アセスメント）のドメインロジックを提供する。
package assessment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/gncompass/serverfront/internal/metrics"
	"github.com/gncompass/serverfront/internal/model"
	"github.com/gncompass/serverfront/internal/repository"
	"github.com/gncompass/serverfront/internal/storage"
)

// ErrNotReviewable は審査結果を適用できない状態のアセスメントを審査しようとした場合のエラー。
var ErrNotReviewable = errors.New("assessment: not pending review")

// Options はサービスの動作設定。
type Options struct {
	// ReviewInline がtrueの場合、提出直後に同じリクエスト内で審査ポリシーを適用する。
	ReviewInline bool
}

// Service はアセスメントのサービス層。
type Service struct {
	repo    repository.AssessmentRepository
	uploads storage.UploadIssuer
	policy  ReviewPolicy
	metrics metrics.MetricsCollector
	logger  *slog.Logger
	opts    Options
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	repo repository.AssessmentRepository,
	uploads storage.UploadIssuer,
	policy ReviewPolicy,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	opts Options,
) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:    repo,
		uploads: uploads,
		policy:  policy,
		metrics: collector,
		logger:  logger,
		opts:    opts,
	}
}

// uploadURL は開始状態の場合のみアップロードURLを発行する。
func (s *Service) uploadURL(a *model.Assessment) (string, error) {
	if !a.CanUpload() {
		return "", nil
	}
	return s.uploads.UploadURL(a.Reference.String(), a.UploadCallback())
}

func (s *Service) info(a *model.Assessment, includeReference bool) (*model.AssessmentInfo, error) {
	u, err := s.uploadURL(a)
	if err != nil {
		return nil, err
	}
	info := a.APIInfo(includeReference, u)
	return &info, nil
}

// find はborrowerIDの所有するアセスメントを取得する。不正なリファレンスや未検出はNotFoundエラーになる。
func (s *Service) find(ctx context.Context, borrowerID int64, reference string) (*model.Assessment, error) {
	ref, err := uuid.Parse(reference)
	if err != nil {
		return nil, model.NewAssessmentNotFoundError(reference)
	}
	a, err := s.repo.FindByReference(ctx, borrowerID, ref)
	if err != nil {
		return nil, fmt.Errorf("アセスメントの取得に失敗しました: %w", err)
	}
	if a == nil {
		return nil, model.NewAssessmentNotFoundError(reference)
	}
	return a, nil
}

// Create は借り手に新しいアセスメントを作成し、アップロードURL付きの詳細を返す。
func (s *Service) Create(ctx context.Context, borrowerID int64) (*model.AssessmentInfo, error) {
	a, err := s.repo.Create(ctx, borrowerID)
	if err != nil {
		return nil, fmt.Errorf("アセスメントの作成に失敗しました: %w", err)
	}
	if a == nil {
		return nil, fmt.Errorf("作成したアセスメントを再取得できませんでした (borrower=%d)", borrowerID)
	}

	s.metrics.RecordAssessmentTransition(a.Status.String())
	s.logger.Info("アセスメントを作成しました",
		slog.String("reference", a.Reference.String()),
		slog.Int64("borrower_id", borrowerID),
	)
	return s.info(a, true)
}

// Get はアセスメントの詳細を返す。
func (s *Service) Get(ctx context.Context, borrowerID int64, reference string, includeReference bool) (*model.AssessmentInfo, error) {
	a, err := s.find(ctx, borrowerID, reference)
	if err != nil {
		return nil, err
	}
	return s.info(a, includeReference)
}

// List は借り手のアセスメント一覧を新しい順に返す。
func (s *Service) List(ctx context.Context, borrowerID int64) ([]model.AssessmentSummary, error) {
	list, err := s.repo.ListByBorrower(ctx, borrowerID)
	if err != nil {
		return nil, fmt.Errorf("アセスメント一覧の取得に失敗しました: %w", err)
	}

	out := make([]model.AssessmentSummary, 0, len(list))
	for _, a := range list {
		out = append(out, a.APISummary())
	}
	return out, nil
}

// LastApproved は最新の承認済みアセスメントを返す。存在しない場合はNotFoundエラー。
func (s *Service) LastApproved(ctx context.Context, borrowerID int64) (*model.AssessmentInfo, error) {
	a, err := s.repo.FindLastApproved(ctx, borrowerID)
	if err != nil {
		return nil, fmt.Errorf("承認済みアセスメントの取得に失敗しました: %w", err)
	}
	if a == nil {
		return nil, model.NewAssessmentNotFoundError("approved")
	}
	return s.info(a, true)
}

// Submit はアセスメントを提出する。提出条件を満たさない場合はNotSubmittableエラー。
// ReviewInlineが有効な場合は続けて審査を行い、審査の失敗は提出結果に影響させない。
func (s *Service) Submit(ctx context.Context, borrowerID int64, reference string) (*model.AssessmentInfo, error) {
	a, err := s.find(ctx, borrowerID, reference)
	if err != nil {
		return nil, err
	}

	ok, err := s.repo.Submit(ctx, a)
	if err != nil {
		return nil, fmt.Errorf("アセスメントの提出に失敗しました: %w", err)
	}
	if !ok {
		return nil, model.NewAssessmentNotSubmittableError()
	}

	s.metrics.RecordAssessmentTransition(a.Status.String())
	s.logger.Info("アセスメントを提出しました",
		slog.String("reference", a.Reference.String()),
		slog.Int("file_count", len(a.Files)),
	)

	if s.opts.ReviewInline {
		if err := s.Review(ctx, a); err != nil {
			s.logger.Error("提出直後の審査に失敗しました",
				slog.String("reference", a.Reference.String()),
				slog.String("error", err.Error()),
			)
		}
	}

	return s.info(a, true)
}

// AttachUpload はストレージからのアップロード完了通知を受けてファイルを添付する。
// 同じblobが既に添付されている場合は何もしない。提出済みの場合はLockedエラー。
func (s *Service) AttachUpload(ctx context.Context, reference string, file *model.AssessmentFile) (*model.AssessmentInfo, error) {
	a, err := s.find(ctx, 0, reference)
	if err != nil {
		return nil, err
	}

	if existing := a.FileThatMatches(file); existing != nil {
		*file = *existing
		return s.info(a, true)
	}

	ok, err := s.repo.AddFile(ctx, a, file)
	if err != nil {
		return nil, fmt.Errorf("ファイルの添付に失敗しました: %w", err)
	}
	if !ok {
		return nil, model.NewAssessmentLockedError()
	}

	s.logger.Info("ファイルを添付しました",
		slog.String("reference", a.Reference.String()),
		slog.String("blob_key", file.BlobKey),
	)
	return s.info(a, true)
}

// Review は審査ポリシーで判定し、結果をアセスメントに適用する。
// 審査待ちでない場合はErrNotReviewableを返す。
func (s *Service) Review(ctx context.Context, a *model.Assessment) error {
	if !a.CanBeReviewed() {
		return ErrNotReviewable
	}

	outcome, err := s.policy.Decide(ctx, a)
	if err != nil {
		return fmt.Errorf("審査ポリシーの判定に失敗しました: %w", err)
	}
	if !outcome.Valid() {
		return fmt.Errorf("審査ポリシーが不正な判定を返しました: status=%s rating=%d", outcome.Status, outcome.RatingID)
	}
	s.metrics.RecordReviewDecision(outcome.Status.String())

	ok, err := s.repo.ApplyOutcome(ctx, a, outcome)
	if err != nil {
		return fmt.Errorf("審査結果の適用に失敗しました: %w", err)
	}
	if !ok {
		return ErrNotReviewable
	}

	s.metrics.RecordAssessmentTransition(a.Status.String())
	s.logger.Info("アセスメントを審査しました",
		slog.String("reference", a.Reference.String()),
		slog.String("status", a.Status.String()),
		slog.Int64("rating_id", a.RatingID),
	)
	return nil
}

// ReviewPending は審査待ちのアセスメントをexcludeを除いて最大limit件取得する。審査ワーカーが使う。
func (s *Service) ReviewPending(ctx context.Context, limit int, exclude []int64) ([]*model.Assessment, error) {
	list, err := s.repo.ListPending(ctx, limit, exclude)
	if err != nil {
		return nil, fmt.Errorf("審査待ちアセスメントの取得に失敗しました: %w", err)
	}
	return list, nil
}
