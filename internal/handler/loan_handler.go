package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gncompass/serverfront/internal/model"
)

// LoanServiceInterface は返済期間テンプレートと格付けの参照サービス。
type LoanServiceInterface interface {
	Amortizations(ctx context.Context) ([]model.AmortizationInfo, error)
	Amortization(ctx context.Context, id int64) (*model.AmortizationInfo, error)
	Ratings(ctx context.Context) ([]model.RatingInfo, error)
}

// LoanHandler は参照データのHTTPハンドラー。
type LoanHandler struct {
	service LoanServiceInterface
}

// NewLoanHandler はLoanHandlerを生成する。
func NewLoanHandler(service LoanServiceInterface) *LoanHandler {
	return &LoanHandler{service: service}
}

// ListAmortizations は返済期間テンプレートの一覧を返す。
// GET /core/v1/amortizations
func (h *LoanHandler) ListAmortizations(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Amortizations(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GetAmortization は返済期間テンプレートを1件返す。
// GET /core/v1/amortizations/{id}
func (h *LoanHandler) GetAmortization(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest,
			model.NewInvalidRequestError("idは正の整数で指定してください。"))
		return
	}

	info, err := h.service.Amortization(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// ListRatings は格付けの一覧を返す。
// GET /core/v1/ratings
func (h *LoanHandler) ListRatings(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Ratings(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
