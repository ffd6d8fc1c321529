// Package user は借り手・投資家アカウントのサービス層を提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gncompass/serverfront/internal/auth"
	"github.com/gncompass/serverfront/internal/model"
	"github.com/gncompass/serverfront/internal/repository"
	"github.com/gncompass/serverfront/internal/security"
)

// AccessTokenIssuer はログイン成功時のアクセストークン発行インターフェース。
// auth.TokenManagerが実装する。
type AccessTokenIssuer interface {
	MintAccess(userType, reference string) (string, time.Time, error)
}

// RegisterInput は新規登録リクエストのボディ。
type RegisterInput struct {
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	Name        string  `json:"name"`
	Address1    string  `json:"address1"`
	Address2    *string `json:"address2"`
	Address3    *string `json:"address3"`
	City        string  `json:"city"`
	Province    *string `json:"province"`
	PostCode    *string `json:"post_code"`
	CountryCode string  `json:"country"`
	Phone       *string `json:"phone"`
	Employer    *string `json:"employer"`
	JobTitle    *string `json:"job_title"`
}

// BankConnectionInput は銀行口座接続の登録リクエストのボディ。
type BankConnectionInput struct {
	Institution string `json:"institution"`
	Transit     string `json:"transit"`
	Account     string `json:"account"`
}

// LoginResult はログイン成功時のレスポンス。
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Reference string    `json:"reference"`
	Type      string    `json:"type"`
}

// Service はユーザー関連のビジネスロジックを提供する。
type Service struct {
	users     repository.UserRepository
	countries repository.CountryRepository
	banks     repository.BankConnectionRepository
	tokens    AccessTokenIssuer
	sanitizer security.TextSanitizer
	logger    *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	users repository.UserRepository,
	countries repository.CountryRepository,
	banks repository.BankConnectionRepository,
	tokens AccessTokenIssuer,
	sanitizer security.TextSanitizer,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:     users,
		countries: countries,
		banks:     banks,
		tokens:    tokens,
		sanitizer: sanitizer,
		logger:    logger,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (in RegisterInput) validate() error {
	addr, err := mail.ParseAddress(in.Email)
	if err != nil || addr.Address != strings.TrimSpace(in.Email) {
		return model.NewInvalidRequestError("メールアドレスの形式が不正です")
	}
	if len(in.Password) < auth.MinPasswordLength {
		return model.NewInvalidRequestError(fmt.Sprintf("パスワードは%d文字以上にしてください", auth.MinPasswordLength))
	}
	if strings.TrimSpace(in.CountryCode) == "" {
		return model.NewInvalidRequestError("国コードは必須です")
	}
	return nil
}

// Register は新しいユーザーを登録する。
func (s *Service) Register(ctx context.Context, t model.UserType, in RegisterInput) (*model.UserViewable, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	email := normalizeEmail(in.Email)

	code := strings.ToUpper(strings.TrimSpace(in.CountryCode))
	country, err := s.countries.FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("国の取得に失敗しました: %w", err)
	}
	if country == nil {
		return nil, model.NewCountryNotFoundError(code)
	}

	existing, err := s.users.FindByEmail(ctx, t, email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateUserError()
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	u := model.NewUser(t, s.sanitizer.Sanitize(in.Name), email, hash, country.ID)
	u.Address1 = s.sanitizer.Sanitize(in.Address1)
	u.City = s.sanitizer.Sanitize(in.City)
	u.Address2 = security.SanitizePtr(s.sanitizer, in.Address2)
	u.Address3 = security.SanitizePtr(s.sanitizer, in.Address3)
	u.Province = security.SanitizePtr(s.sanitizer, in.Province)
	u.PostCode = security.SanitizePtr(s.sanitizer, in.PostCode)
	if u.Borrower != nil {
		u.Borrower.Phone = security.SanitizePtr(s.sanitizer, in.Phone)
		u.Borrower.Employer = security.SanitizePtr(s.sanitizer, in.Employer)
		u.Borrower.JobTitle = security.SanitizePtr(s.sanitizer, in.JobTitle)
	}

	ok, err := s.users.Create(ctx, u)
	if errors.Is(err, repository.ErrDuplicateEmail) {
		return nil, model.NewDuplicateUserError()
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}
	if !ok {
		return nil, model.NewInvalidProfileError()
	}

	s.logger.Info("ユーザーを登録しました",
		slog.String("type", t.String()),
		slog.String("user_ref", u.Reference().String()),
	)

	v := u.Viewable(country.Code, false)
	return &v, nil
}

// Authenticate はメールアドレスとパスワードを検証し、アクセストークンを発行する。
// ユーザーが存在しない場合と無効化されている場合もパスワード不一致と同じエラーを返す。
func (s *Service) Authenticate(ctx context.Context, t model.UserType, email, password string) (*LoginResult, error) {
	u, err := s.users.FindByEmail(ctx, t, normalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if u == nil || !u.Enabled {
		return nil, model.NewInvalidCredentialsError()
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, model.NewInvalidCredentialsError()
		}
		return nil, fmt.Errorf("パスワードの検証に失敗しました: %w", err)
	}

	ref := u.Reference().String()
	token, expiresAt, err := s.tokens.MintAccess(t.PathSegment(), ref)
	if err != nil {
		return nil, fmt.Errorf("トークンの発行に失敗しました: %w", err)
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, Reference: ref, Type: t.String()}, nil
}

// Resolve はリファレンス文字列からユーザーを取得する。不正な形式や未検出はUserNotFoundエラー。
func (s *Service) Resolve(ctx context.Context, t model.UserType, reference string) (*model.User, error) {
	ref, err := uuid.Parse(reference)
	if err != nil {
		return nil, model.NewUserNotFoundError()
	}
	u, err := s.users.FindByReference(ctx, t, ref)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil || !u.Enabled {
		return nil, model.NewUserNotFoundError()
	}
	return u, nil
}

func (s *Service) viewable(ctx context.Context, u *model.User, connected bool) (*model.UserViewable, error) {
	country, err := s.countries.FindByID(ctx, u.CountryID)
	if err != nil {
		return nil, fmt.Errorf("国の取得に失敗しました: %w", err)
	}
	code := ""
	if country != nil {
		code = country.Code
	}
	v := u.Viewable(code, connected)
	return &v, nil
}

// Profile はユーザーのプロフィールを返す。connectedがtrueの場合は銀行口座接続も含める。
func (s *Service) Profile(ctx context.Context, t model.UserType, reference string, connected bool) (*model.UserViewable, error) {
	u, err := s.Resolve(ctx, t, reference)
	if err != nil {
		return nil, err
	}
	if connected {
		if err := s.users.FetchConnectedInfo(ctx, u); err != nil {
			return nil, fmt.Errorf("接続情報の取得に失敗しました: %w", err)
		}
	}
	return s.viewable(ctx, u, connected)
}

// UpdateProfile は編集可能項目を検証・サニタイズして保存する。
// 省略されたオプション項目はNULLになる。
func (s *Service) UpdateProfile(ctx context.Context, t model.UserType, reference string, editable model.UserEditable) (*model.UserViewable, error) {
	clean := model.UserEditable{
		Name:     security.SanitizePtr(s.sanitizer, editable.Name),
		Address1: security.SanitizePtr(s.sanitizer, editable.Address1),
		Address2: security.SanitizePtr(s.sanitizer, editable.Address2),
		Address3: security.SanitizePtr(s.sanitizer, editable.Address3),
		City:     security.SanitizePtr(s.sanitizer, editable.City),
		Province: security.SanitizePtr(s.sanitizer, editable.Province),
		PostCode: security.SanitizePtr(s.sanitizer, editable.PostCode),
		Phone:    security.SanitizePtr(s.sanitizer, editable.Phone),
		Employer: security.SanitizePtr(s.sanitizer, editable.Employer),
		JobTitle: security.SanitizePtr(s.sanitizer, editable.JobTitle),
	}
	if err := clean.Validate(); err != nil {
		return nil, err
	}

	u, err := s.Resolve(ctx, t, reference)
	if err != nil {
		return nil, err
	}
	u.ApplyEditable(clean)

	ok, err := s.users.UpdateProfile(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}
	if !ok {
		return nil, model.NewUserNotFoundError()
	}
	return s.viewable(ctx, u, false)
}

// AddBankConnection はユーザーに銀行口座接続を追加し、接続情報込みのプロフィールを返す。
func (s *Service) AddBankConnection(ctx context.Context, t model.UserType, reference string, in BankConnectionInput) (*model.UserViewable, error) {
	b := &model.BankConnection{
		Institution: s.sanitizer.Sanitize(in.Institution),
		Transit:     s.sanitizer.Sanitize(in.Transit),
		Account:     s.sanitizer.Sanitize(in.Account),
	}
	if b.Institution == "" || b.Transit == "" || b.Account == "" {
		return nil, model.NewInvalidRequestError("institution, transit, account は必須です")
	}

	u, err := s.Resolve(ctx, t, reference)
	if err != nil {
		return nil, err
	}
	b.UserID = u.ID

	ok, err := s.banks.Create(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("銀行口座接続の登録に失敗しました: %w", err)
	}
	if !ok {
		return nil, model.NewInvalidRequestError("銀行口座接続を登録できませんでした")
	}

	s.logger.Info("銀行口座接続を登録しました",
		slog.String("user_ref", reference),
		slog.String("bank_ref", b.Reference.String()),
	)

	if err := s.users.FetchConnectedInfo(ctx, u); err != nil {
		return nil, fmt.Errorf("接続情報の取得に失敗しました: %w", err)
	}
	return s.viewable(ctx, u, true)
}
