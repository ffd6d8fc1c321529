package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/gncompass/serverfront/internal/model"
)

func TestNewRouter_Health(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/health", "", "", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}

	env.health.err = errors.New("connection refused")
	w = env.do(t, http.MethodGet, "/health", "", "", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
}

func TestNewRouter_Metrics(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/metrics", "", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "# metrics") {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestNewRouter_PublicRoutes_NoAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/core/v1/amortizations", "", http.StatusOK},
		{http.MethodGet, "/core/v1/amortizations/2", "", http.StatusOK},
		{http.MethodGet, "/core/v1/ratings", "", http.StatusOK},
		{http.MethodPost, "/core/v1/borrowers", `{"email":"a@b.c"}`, http.StatusCreated},
		{http.MethodPost, "/core/v1/investors/login", `{"email":"a@b.c","password":"longenough"}`, http.StatusOK},
		{http.MethodPost, "/core/v1/uploads/assessments/" + testAssessRef + "?token=t", `{"blob_key":"k","file_name":"f"}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := env.do(t, tt.method, tt.path, tt.body, "", "")
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestNewRouter_UserRoutes_RequireBearer(t *testing.T) {
	env := newTestEnv(t)

	paths := []string{
		"/core/v1/borrowers/" + testBorrowerRef,
		"/core/v1/borrowers/" + testBorrowerRef + "/assessments",
		"/core/v1/borrowers/" + testBorrowerRef + "/assessments/approved",
	}
	for _, p := range paths {
		w := env.do(t, http.MethodGet, p, "", "", "")
		if w.Code != http.StatusUnauthorized {
			t.Errorf("GET %s status = %d, want %d", p, w.Code, http.StatusUnauthorized)
		}
		if got := parseAPIErrorResponse(t, w)["code"]; got != model.ErrCodeUnauthorized {
			t.Errorf("GET %s code = %q", p, got)
		}
		if got := w.Header().Get("WWW-Authenticate"); !strings.HasPrefix(got, "Bearer") {
			t.Errorf("GET %s WWW-Authenticate = %q", p, got)
		}
	}
}

func TestNewRouter_UserRoutes_OwnerOnly(t *testing.T) {
	env := newTestEnv(t)

	// 別ユーザーのトークン
	w := env.do(t, http.MethodGet, "/core/v1/borrowers/"+testBorrowerRef, "", "borrowers", testInvestorRef)
	if w.Code != http.StatusForbidden {
		t.Errorf("other user status = %d, want %d", w.Code, http.StatusForbidden)
	}

	// 同じリファレンスでも種別が異なる
	w = env.do(t, http.MethodGet, "/core/v1/investors/"+testBorrowerRef, "", "borrowers", testBorrowerRef)
	if w.Code != http.StatusForbidden {
		t.Errorf("other type status = %d, want %d", w.Code, http.StatusForbidden)
	}

	w = env.do(t, http.MethodGet, "/core/v1/borrowers/"+testBorrowerRef, "", "borrowers", testBorrowerRef)
	if w.Code != http.StatusOK {
		t.Errorf("owner status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestNewRouter_AssessmentRoutes(t *testing.T) {
	env := newTestEnv(t)
	var submitted string
	env.assessments.submitFn = func(ctx context.Context, borrowerID int64, reference string) (*model.AssessmentInfo, error) {
		submitted = reference
		return &model.AssessmentInfo{Status: 2, StatusName: "pending"}, nil
	}

	base := "/core/v1/borrowers/" + testBorrowerRef + "/assessments"
	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, base, http.StatusOK},
		{http.MethodPost, base, http.StatusCreated},
		{http.MethodGet, base + "/approved", http.StatusOK},
		{http.MethodGet, base + "/" + testAssessRef, http.StatusOK},
		{http.MethodPost, base + "/" + testAssessRef + "/submit", http.StatusOK},
	}
	for _, tt := range tests {
		w := env.do(t, tt.method, tt.path, "", "borrowers", testBorrowerRef)
		if w.Code != tt.want {
			t.Errorf("%s %s status = %d, want %d", tt.method, tt.path, w.Code, tt.want)
		}
	}
	if submitted != testAssessRef {
		t.Errorf("submitted reference = %q", submitted)
	}
}

func TestNewRouter_AssessmentRoutes_InvestorsRejected(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/core/v1/investors/"+testInvestorRef+"/assessments", "", "investors", testInvestorRef)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if got := parseAPIErrorResponse(t, w)["code"]; got != model.ErrCodeInvalidUserType {
		t.Errorf("code = %q", got)
	}
}

func TestNewRouter_SetsSecurityAndCORSHeaders(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/core/v1/ratings", "", "", "")
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
	if got := w.Header().Get("Strict-Transport-Security"); got != "" {
		t.Errorf("HSTS outside production = %q", got)
	}
}

func TestMapAPIErrorToHTTPStatus_CoversAllCodes(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{model.ErrCodeInvalidRequest, http.StatusBadRequest},
		{model.ErrCodeInvalidProfile, http.StatusBadRequest},
		{model.ErrCodeInvalidUserType, http.StatusNotFound},
		{model.ErrCodeInvalidCredentials, http.StatusUnauthorized},
		{model.ErrCodeUnauthorized, http.StatusUnauthorized},
		{model.ErrCodeForbidden, http.StatusForbidden},
		{model.ErrCodeDuplicateUser, http.StatusConflict},
		{model.ErrCodeUserNotFound, http.StatusNotFound},
		{model.ErrCodeCountryNotFound, http.StatusUnprocessableEntity},
		{model.ErrCodeAssessmentNotFound, http.StatusNotFound},
		{model.ErrCodeAssessmentNotSubmittable, http.StatusUnprocessableEntity},
		{model.ErrCodeAssessmentLocked, http.StatusConflict},
		{model.ErrCodeAmortizationNotFound, http.StatusNotFound},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := mapAPIErrorToHTTPStatus(&model.APIError{Code: tt.code}); got != tt.want {
			t.Errorf("%s → %d, want %d", tt.code, got, tt.want)
		}
	}
}
