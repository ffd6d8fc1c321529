package assessment

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/gncompass/serverfront/internal/model"
)

// ReviewPolicy は審査待ちアセスメントの判定方法。
// 人手による審査など別の判定手段に差し替える場合はこのインターフェースを実装する。
type ReviewPolicy interface {
	Decide(ctx context.Context, a *model.Assessment) (model.ReviewOutcome, error)
}

// RandomPolicy は常に承認し、格付けを[MinRating, MaxRating]から一様に選ぶ暫定ポリシー。
type RandomPolicy struct {
	MinRating int64
	MaxRating int64

	int64N func(n int64) int64
}

// NewRandomPolicy は格付けIDの範囲を指定してRandomPolicyを生成する。
func NewRandomPolicy(minRating, maxRating int64) *RandomPolicy {
	return &RandomPolicy{MinRating: minRating, MaxRating: maxRating, int64N: rand.Int64N}
}

// Decide は承認と格付けIDを返す。
func (p *RandomPolicy) Decide(_ context.Context, a *model.Assessment) (model.ReviewOutcome, error) {
	if p.MinRating <= 0 || p.MaxRating < p.MinRating {
		return model.ReviewOutcome{}, fmt.Errorf("invalid rating range [%d, %d]", p.MinRating, p.MaxRating)
	}
	return model.ReviewOutcome{
		Status:   model.AssessmentApproved,
		RatingID: p.MinRating + p.int64N(p.MaxRating-p.MinRating+1),
	}, nil
}

// compile-time interface check
var _ ReviewPolicy = (*RandomPolicy)(nil)
