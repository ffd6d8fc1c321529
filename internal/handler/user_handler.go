package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gncompass/serverfront/internal/model"
	"github.com/gncompass/serverfront/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Register は新規ユーザーを登録する。
	Register(ctx context.Context, t model.UserType, in user.RegisterInput) (*model.UserViewable, error)
	// Authenticate はメールアドレスとパスワードを検証し、アクセストークンを発行する。
	Authenticate(ctx context.Context, t model.UserType, email, password string) (*user.LoginResult, error)
	// Resolve はリファレンスから有効なユーザーを取得する。
	Resolve(ctx context.Context, t model.UserType, reference string) (*model.User, error)
	// Profile はユーザーのプロフィールを返す。
	Profile(ctx context.Context, t model.UserType, reference string, connected bool) (*model.UserViewable, error)
	// UpdateProfile はプロフィールを更新する。
	UpdateProfile(ctx context.Context, t model.UserType, reference string, editable model.UserEditable) (*model.UserViewable, error)
	// AddBankConnection は銀行口座接続を追加する。
	AddBankConnection(ctx context.Context, t model.UserType, reference string, in user.BankConnectionInput) (*model.UserViewable, error)
}

// UserHandler はユーザー登録・ログイン・プロフィールのHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register はユーザー登録を処理する。
// POST /core/v1/{userType}
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	t, ok := userTypeParam(w, chi.URLParam(r, "userType"))
	if !ok {
		return
	}

	var req user.RegisterInput
	if !decodeJSON(w, r, &req) {
		return
	}

	view, err := h.service.Register(r.Context(), t, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", r.URL.Path+"/"+view.Reference)
	writeJSON(w, http.StatusCreated, view)
}

// Login はログインを処理する。
// POST /core/v1/{userType}/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	t, ok := userTypeParam(w, chi.URLParam(r, "userType"))
	if !ok {
		return
	}

	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("メールアドレスとパスワードを指定してください。"))
		return
	}

	result, err := h.service.Authenticate(r.Context(), t, req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetProfile はプロフィールを取得する。
// GET /core/v1/{userType}/{userRef}?connected=true
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	t, ok := userTypeParam(w, chi.URLParam(r, "userType"))
	if !ok {
		return
	}

	connected, _ := strconv.ParseBool(r.URL.Query().Get("connected"))

	view, err := h.service.Profile(r.Context(), t, chi.URLParam(r, "userRef"), connected)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// UpdateProfile はプロフィールを更新する。
// PUT /core/v1/{userType}/{userRef}
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	t, ok := userTypeParam(w, chi.URLParam(r, "userType"))
	if !ok {
		return
	}

	var req model.UserEditable
	if !decodeJSON(w, r, &req) {
		return
	}

	view, err := h.service.UpdateProfile(r.Context(), t, chi.URLParam(r, "userRef"), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// AddBankConnection は銀行口座接続を追加する。
// POST /core/v1/{userType}/{userRef}/banks
func (h *UserHandler) AddBankConnection(w http.ResponseWriter, r *http.Request) {
	t, ok := userTypeParam(w, chi.URLParam(r, "userType"))
	if !ok {
		return
	}

	var req user.BankConnectionInput
	if !decodeJSON(w, r, &req) {
		return
	}

	view, err := h.service.AddBankConnection(r.Context(), t, chi.URLParam(r, "userRef"), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, view)
}
