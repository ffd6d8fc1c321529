// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
//
// 各実装はsqlbのビルダーでSQLを組み立て、操作ごとにプールから1本の接続を取得して
// 実行する。「見つからない」はnil（またはfalse）で表し、ストレージ障害のみをエラーとして返す。
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gncompass/serverfront/internal/model"
)

// AssessmentRepository はアセスメントの永続化インターフェース。
type AssessmentRepository interface {
	// Create は借り手に開始状態のアセスメントを作成する。
	Create(ctx context.Context, borrowerID int64) (*model.Assessment, error)

	// FindByReference はリファレンスでアセスメントを取得する。borrowerIDが0の場合は所有者で絞り込まない。
	// 見つからない場合はnilを返す。
	FindByReference(ctx context.Context, borrowerID int64, reference uuid.UUID) (*model.Assessment, error)

	// ListByBorrower は借り手のアセスメントを新しい順に返す。
	ListByBorrower(ctx context.Context, borrowerID int64) ([]*model.Assessment, error)

	// FindLastApproved は最新の承認済みアセスメントを返す。見つからない場合はnilを返す。
	FindLastApproved(ctx context.Context, borrowerID int64) (*model.Assessment, error)

	// ListPending は審査待ちのアセスメントを最大limit件返す。excludeのIDは対象外とする。
	ListPending(ctx context.Context, limit int, exclude []int64) ([]*model.Assessment, error)

	// Submit は提出条件を満たす場合のみ審査待ちに遷移させる。
	Submit(ctx context.Context, a *model.Assessment) (bool, error)

	// ApplyOutcome は審査待ちのアセスメントに審査結果を適用する。
	ApplyOutcome(ctx context.Context, a *model.Assessment, outcome model.ReviewOutcome) (bool, error)

	// AddFile は開始状態のアセスメントにファイルを添付する。
	AddFile(ctx context.Context, a *model.Assessment, file *model.AssessmentFile) (bool, error)

	// DeleteAbandoned はファイルのない古い開始状態のアセスメントを削除する。
	DeleteAbandoned(ctx context.Context, olderThan time.Time) (int, error)
}

// UserRepository はユーザー（借り手・投資家）の永続化インターフェース。
type UserRepository interface {
	FindByReference(ctx context.Context, t model.UserType, reference uuid.UUID) (*model.User, error)
	FindByEmail(ctx context.Context, t model.UserType, email string) (*model.User, error)

	// Create は親子テーブルに同一トランザクションでユーザーを作成する。
	Create(ctx context.Context, u *model.User) (bool, error)

	// UpdateProfile は編集可能項目を保存する。
	UpdateProfile(ctx context.Context, u *model.User) (bool, error)

	// FetchConnectedInfo は銀行口座接続などの付随情報を読み込む。
	FetchConnectedInfo(ctx context.Context, u *model.User) error
}

// CountryRepository は国マスタの参照インターフェース。
type CountryRepository interface {
	FindByID(ctx context.Context, id int64) (*model.Country, error)
	FindByCode(ctx context.Context, code string) (*model.Country, error)
	List(ctx context.Context) ([]*model.Country, error)
}

// RatingRepository は格付けの参照インターフェース。
type RatingRepository interface {
	FindByID(ctx context.Context, id int64) (*model.Rating, error)
	List(ctx context.Context) ([]*model.Rating, error)
}

// BankConnectionRepository は銀行口座接続の永続化インターフェース。
type BankConnectionRepository interface {
	ListByUser(ctx context.Context, userID int64) ([]model.BankConnection, error)
	Create(ctx context.Context, b *model.BankConnection) (bool, error)
}

// AmortizationRepository は返済期間テンプレートの参照インターフェース。
type AmortizationRepository interface {
	FindByID(ctx context.Context, id int64) (*model.LoanAmortization, error)
	List(ctx context.Context) ([]*model.LoanAmortization, error)
}
