// Package loan は返済期間テンプレートと格付けの参照サービスを提供する。
package loan

import (
	"context"
	"fmt"

	"github.com/gncompass/serverfront/internal/model"
	"github.com/gncompass/serverfront/internal/repository"
)

// Service は融資条件マスタの参照サービス。
type Service struct {
	amortizations repository.AmortizationRepository
	ratings       repository.RatingRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(amortizations repository.AmortizationRepository, ratings repository.RatingRepository) *Service {
	return &Service{amortizations: amortizations, ratings: ratings}
}

// Amortizations は全ての返済期間テンプレートを期間の短い順に返す。
func (s *Service) Amortizations(ctx context.Context) ([]model.AmortizationInfo, error) {
	list, err := s.amortizations.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("返済期間一覧の取得に失敗しました: %w", err)
	}
	out := make([]model.AmortizationInfo, 0, len(list))
	for _, a := range list {
		out = append(out, a.APIModel())
	}
	return out, nil
}

// Amortization はIDで返済期間テンプレートを返す。存在しない場合はNotFoundエラー。
func (s *Service) Amortization(ctx context.Context, id int64) (*model.AmortizationInfo, error) {
	a, err := s.amortizations.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("返済期間の取得に失敗しました: %w", err)
	}
	if a == nil {
		return nil, model.NewAmortizationNotFoundError(id)
	}
	info := a.APIModel()
	return &info, nil
}

// Ratings は格付けの一覧を返す。
func (s *Service) Ratings(ctx context.Context) ([]model.RatingInfo, error) {
	list, err := s.ratings.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("格付け一覧の取得に失敗しました: %w", err)
	}
	out := make([]model.RatingInfo, 0, len(list))
	for _, r := range list {
		out = append(out, r.Info())
	}
	return out, nil
}
