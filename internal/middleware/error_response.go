package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/gncompass/serverfront/internal/model"
)

// bearerRealm はWWW-Authenticateヘッダーのrealm。
const bearerRealm = `Bearer realm="serverfront"`

// ErrorResponseBody はAPIエラーレスポンスの本文。
// model.APIErrorをそのままJSONにした形で、原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// newErrorResponseBody はAPIErrorからレスポンス本文を組み立てる。
func newErrorResponseBody(apiErr *model.APIError) ErrorResponseBody {
	return ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	}
}

// WriteErrorResponse はAPIErrorをstatusCodeで書き込む。
// 401の場合はベアラートークンを要求するWWW-Authenticateヘッダーを付与する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	if statusCode == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", bearerRealm)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(newErrorResponseBody(apiErr))
}

// WriteInternalServerError は500 INTERNAL_ERRORを書き込む。
// 原因はログにのみ残し、クライアントには返さない。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
