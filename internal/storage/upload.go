// Package storage はBlobストレージへのアップロードURLの発行と、
// アップロード完了コールバックの検証を提供する。
package storage

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gncompass/serverfront/internal/auth"
)

// ErrCallbackMismatch はコールバックトークンが対象のアセスメント宛てでない場合のエラー。
var ErrCallbackMismatch = errors.New("storage: upload token does not match callback target")

// UploadIssuer はアップロードURLの発行とコールバックトークンの検証を行うインターフェース。
type UploadIssuer interface {
	// UploadURL はcallbackPathへ完了通知する1回限りのアップロードURLを返す。
	UploadURL(reference, callbackPath string) (string, error)
	// VerifyCallback はコールバックに付与されたトークンがreference宛てであることを検証する。
	VerifyCallback(token, reference, callbackPath string) error
}

// tokenSigner はauth.TokenManagerのうちアップロードトークンに関わる部分。
type tokenSigner interface {
	MintUpload(reference, callback, bucket string, ttl time.Duration) (string, error)
	ParseUpload(tokenString string) (*auth.UploadClaims, error)
}

// Config はアップロードURL発行の設定。
type Config struct {
	BaseURL    string        // アップロード受付サービスのベースURL
	Bucket     string        // 本番環境で使用するバケット名
	Production bool          // falseの場合はバケット名を指定せずデフォルトバケットを使う
	TokenTTL   time.Duration // アップロードトークンの有効期間
}

// SignedUploadIssuer は署名付きトークンを埋め込んだURLを発行するUploadIssuer。
type SignedUploadIssuer struct {
	signer tokenSigner
	config Config
}

// NewSignedUploadIssuer はSignedUploadIssuerを生成する。
func NewSignedUploadIssuer(signer tokenSigner, config Config) *SignedUploadIssuer {
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &SignedUploadIssuer{signer: signer, config: config}
}

// Bucket は発行するトークンに埋め込むバケット名を返す。本番環境以外では空文字。
func (s *SignedUploadIssuer) Bucket() string {
	if s.config.Production {
		return s.config.Bucket
	}
	return ""
}

// UploadURL は "<BaseURL>/upload/<token>" 形式のURLを返す。
func (s *SignedUploadIssuer) UploadURL(reference, callbackPath string) (string, error) {
	token, err := s.signer.MintUpload(reference, callbackPath, s.Bucket(), s.config.TokenTTL)
	if err != nil {
		return "", fmt.Errorf("failed to issue upload url: %w", err)
	}
	return s.config.BaseURL + "/upload/" + url.PathEscape(token), nil
}

// VerifyCallback はトークンの署名・有効期限と、宛先リファレンスおよびコールバックパスを検証する。
func (s *SignedUploadIssuer) VerifyCallback(token, reference, callbackPath string) error {
	claims, err := s.signer.ParseUpload(token)
	if err != nil {
		return err
	}
	if claims.Subject != reference || claims.Callback != callbackPath {
		return ErrCallbackMismatch
	}
	return nil
}

// compile-time interface check
var _ UploadIssuer = (*SignedUploadIssuer)(nil)
