// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/gncompass/serverfront/internal/auth"
	"github.com/gncompass/serverfront/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// principalContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
var principalContextKey = contextKey("principal")

// Principal はアクセストークンで認証されたユーザー。
type Principal struct {
	// UserType はユーザー種別のパス名（borrowers / investors）。
	UserType  string
	Reference string
}

// TokenVerifier はアクセストークンの検証インターフェース。
// auth.TokenManagerが実装する。
type TokenVerifier interface {
	ParseAccess(token string) (*auth.AccessClaims, error)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}

// NewBearerAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証し、
// 認証済みユーザーをリクエストコンテキストに注入するミドルウェアを返す。
// トークンがない、または無効な場合は401 Unauthorizedを返す。
func NewBearerAuthMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			claims, err := verifier.ParseAccess(token)
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			noteUserRef(r.Context(), claims.Subject)
			ctx := ContextWithPrincipal(r.Context(), Principal{
				UserType:  claims.UserType,
				Reference: claims.Subject,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewOwnerMiddleware はURLパラメータ{userType}と{userRef}が認証済みユーザー本人を
// 指しているかを検証するミドルウェアを返す。一致しない場合は403 Forbiddenを返す。
// NewBearerAuthMiddlewareの後に配置すること。
func NewOwnerMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFromContext(r.Context())
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			userType := chi.URLParam(r, "userType")
			userRef := chi.URLParam(r, "userRef")
			if p.UserType != userType || !strings.EqualFold(p.Reference, userRef) {
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// PrincipalFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// NewBearerAuthMiddlewareを通過したリクエストでのみ有効。
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalContextKey).(Principal)
	if !ok || p.Reference == "" {
		return Principal{}, false
	}
	return p, true
}

// ContextWithPrincipal はコンテキストに認証済みユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}
