package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gncompass/serverfront/internal/model"
)

// AssessmentServiceInterface はアセスメントハンドラーが必要とするサービスインターフェース。
type AssessmentServiceInterface interface {
	Create(ctx context.Context, borrowerID int64) (*model.AssessmentInfo, error)
	Get(ctx context.Context, borrowerID int64, reference string, includeReference bool) (*model.AssessmentInfo, error)
	List(ctx context.Context, borrowerID int64) ([]model.AssessmentSummary, error)
	LastApproved(ctx context.Context, borrowerID int64) (*model.AssessmentInfo, error)
	Submit(ctx context.Context, borrowerID int64, reference string) (*model.AssessmentInfo, error)
	// AttachUpload はアップロード完了したファイルをアセスメントに添付する。
	AttachUpload(ctx context.Context, reference string, file *model.AssessmentFile) (*model.AssessmentInfo, error)
}

// BorrowerResolver はパス上の借り手リファレンスから内部IDを引くためのインターフェース。
type BorrowerResolver interface {
	Resolve(ctx context.Context, t model.UserType, reference string) (*model.User, error)
}

// UploadVerifier はストレージからのコールバックトークンを検証するインターフェース。
// storage.SignedUploadIssuerが実装する。
type UploadVerifier interface {
	VerifyCallback(token, reference, callbackPath string) error
}

// AssessmentHandler は信用審査アセスメントのHTTPハンドラー。
type AssessmentHandler struct {
	service   AssessmentServiceInterface
	borrowers BorrowerResolver
	uploads   UploadVerifier
}

// NewAssessmentHandler はAssessmentHandlerを生成する。
func NewAssessmentHandler(service AssessmentServiceInterface, borrowers BorrowerResolver, uploads UploadVerifier) *AssessmentHandler {
	return &AssessmentHandler{
		service:   service,
		borrowers: borrowers,
		uploads:   uploads,
	}
}

// uploadCallbackRequest はストレージからのアップロード完了通知のボディ。
type uploadCallbackRequest struct {
	BlobKey     string `json:"blob_key"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// borrowerID は{userRef}の借り手を解決し内部IDを返す。
// 失敗した場合はエラーレスポンスを書き込みfalseを返す。
func (h *AssessmentHandler) borrowerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	u, err := h.borrowers.Resolve(r.Context(), model.UserTypeBorrower, chi.URLParam(r, "userRef"))
	if err != nil {
		handleServiceError(w, r, err)
		return 0, false
	}
	return u.ID, true
}

// List は借り手のアセスメント一覧を返す。
// GET /core/v1/borrowers/{userRef}/assessments
func (h *AssessmentHandler) List(w http.ResponseWriter, r *http.Request) {
	id, ok := h.borrowerID(w, r)
	if !ok {
		return
	}

	summaries, err := h.service.List(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, summaries)
}

// Create は新しいアセスメントを開始する。
// POST /core/v1/borrowers/{userRef}/assessments
func (h *AssessmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := h.borrowerID(w, r)
	if !ok {
		return
	}

	info, err := h.service.Create(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Location", strings.TrimRight(r.URL.Path, "/")+"/"+info.Reference)
	writeJSON(w, http.StatusCreated, info)
}

// LastApproved は最新の承認済みアセスメントを返す。
// GET /core/v1/borrowers/{userRef}/assessments/approved
func (h *AssessmentHandler) LastApproved(w http.ResponseWriter, r *http.Request) {
	id, ok := h.borrowerID(w, r)
	if !ok {
		return
	}

	info, err := h.service.LastApproved(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// Get はアセスメント詳細を返す。
// GET /core/v1/borrowers/{userRef}/assessments/{ref}
func (h *AssessmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.borrowerID(w, r)
	if !ok {
		return
	}

	info, err := h.service.Get(r.Context(), id, chi.URLParam(r, "ref"), false)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// Submit はアセスメントを審査待ちにする。
// POST /core/v1/borrowers/{userRef}/assessments/{ref}/submit
func (h *AssessmentHandler) Submit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.borrowerID(w, r)
	if !ok {
		return
	}

	info, err := h.service.Submit(r.Context(), id, chi.URLParam(r, "ref"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// UploadCallback はストレージからのアップロード完了通知を処理する。
// POST /core/v1/uploads/assessments/{ref}
//
// トークンはクエリパラメータtokenまたはAuthorizationヘッダーで渡される。
func (h *AssessmentHandler) UploadCallback(w http.ResponseWriter, r *http.Request) {
	reference := chi.URLParam(r, "ref")

	token := r.URL.Query().Get("token")
	if token == "" {
		if v := r.Header.Get("Authorization"); len(v) > 7 && strings.EqualFold(v[:7], "Bearer ") {
			token = strings.TrimSpace(v[7:])
		}
	}
	if token == "" {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	if err := h.uploads.VerifyCallback(token, reference, model.UploadCallbackPath+reference); err != nil {
		slog.WarnContext(r.Context(), "アップロードコールバックの検証に失敗しました",
			slog.String("reference", reference),
			slog.String("error", err.Error()),
		)
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req uploadCallbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.BlobKey == "" || req.FileName == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("blob_keyとfile_nameは必須です。"))
		return
	}

	file := &model.AssessmentFile{
		BlobKey:     req.BlobKey,
		FileName:    req.FileName,
		ContentType: req.ContentType,
		Size:        req.Size,
	}
	info, err := h.service.AttachUpload(r.Context(), reference, file)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}
