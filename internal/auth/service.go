// Package auth はパスワードの検証と、アクセストークン・アップロードトークンの発行を提供する。
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenTypeAccess = "access"
	tokenTypeUpload = "upload"
)

var (
	// ErrInvalidToken は署名・発行者・種別・有効期限のいずれかが不正なトークン。
	ErrInvalidToken = errors.New("auth: invalid token")
)

// AccessClaims はログイン済みユーザーを表すアクセストークンのクレーム。
// Subjectにユーザーのリファレンス、UserTypeに種別のパス名（borrowers / investors）を持つ。
type AccessClaims struct {
	UserType string `json:"utp"`
	Type     string `json:"typ"`
	jwt.RegisteredClaims
}

// UploadClaims はストレージへの1回限りのアップロードを許可するトークンのクレーム。
// Subjectにアセスメントのリファレンスを持つ。
type UploadClaims struct {
	Callback string `json:"cb"`
	Bucket   string `json:"bkt,omitempty"`
	Type     string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenManager はHS256で署名したJWTを発行・検証する。
type TokenManager struct {
	issuer    string
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
}

// NewTokenManager はTokenManagerを生成する。
func NewTokenManager(issuer, secret string, accessTTL time.Duration) *TokenManager {
	return &TokenManager{
		issuer:    issuer,
		secret:    []byte(secret),
		accessTTL: accessTTL,
		now:       time.Now,
	}
}

func (m *TokenManager) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := m.now().UTC()
	return jwt.RegisteredClaims{
		Issuer:    m.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (m *TokenManager) sign(claims jwt.Claims) (string, error) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (m *TokenManager) parse(tokenString string, claims jwt.Claims) error {
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return nil
}

// MintAccess はユーザーのアクセストークンを発行する。
func (m *TokenManager) MintAccess(userType, reference string) (string, time.Time, error) {
	claims := AccessClaims{
		UserType:         userType,
		Type:             tokenTypeAccess,
		RegisteredClaims: m.registered(reference, m.accessTTL),
	}
	token, err := m.sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, claims.ExpiresAt.Time, nil
}

// ParseAccess はアクセストークンを検証してクレームを返す。
func (m *TokenManager) ParseAccess(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := m.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.Type != tokenTypeAccess || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// MintUpload はアセスメントへのアップロードトークンを発行する。
func (m *TokenManager) MintUpload(reference, callback, bucket string, ttl time.Duration) (string, error) {
	return m.sign(UploadClaims{
		Callback:         callback,
		Bucket:           bucket,
		Type:             tokenTypeUpload,
		RegisteredClaims: m.registered(reference, ttl),
	})
}

// ParseUpload はアップロードトークンを検証してクレームを返す。
func (m *TokenManager) ParseUpload(tokenString string) (*UploadClaims, error) {
	claims := &UploadClaims{}
	if err := m.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.Type != tokenTypeUpload || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
