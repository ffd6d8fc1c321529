package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gncompass/serverfront/internal/auth"
	"github.com/gncompass/serverfront/internal/middleware"
	"github.com/gncompass/serverfront/internal/model"
	"github.com/gncompass/serverfront/internal/user"
)

// --- モック定義 ---

// mockUserService はUserServiceInterfaceのモック実装。
type mockUserService struct {
	registerFn          func(ctx context.Context, t model.UserType, in user.RegisterInput) (*model.UserViewable, error)
	authenticateFn      func(ctx context.Context, t model.UserType, email, password string) (*user.LoginResult, error)
	resolveFn           func(ctx context.Context, t model.UserType, reference string) (*model.User, error)
	profileFn           func(ctx context.Context, t model.UserType, reference string, connected bool) (*model.UserViewable, error)
	updateProfileFn     func(ctx context.Context, t model.UserType, reference string, editable model.UserEditable) (*model.UserViewable, error)
	addBankConnectionFn func(ctx context.Context, t model.UserType, reference string, in user.BankConnectionInput) (*model.UserViewable, error)
}

func (m *mockUserService) Register(ctx context.Context, t model.UserType, in user.RegisterInput) (*model.UserViewable, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, t, in)
	}
	return &model.UserViewable{}, nil
}

func (m *mockUserService) Authenticate(ctx context.Context, t model.UserType, email, password string) (*user.LoginResult, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, t, email, password)
	}
	return &user.LoginResult{}, nil
}

func (m *mockUserService) Resolve(ctx context.Context, t model.UserType, reference string) (*model.User, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, t, reference)
	}
	return &model.User{ID: 1, Type: t}, nil
}

func (m *mockUserService) Profile(ctx context.Context, t model.UserType, reference string, connected bool) (*model.UserViewable, error) {
	if m.profileFn != nil {
		return m.profileFn(ctx, t, reference, connected)
	}
	return &model.UserViewable{Reference: reference}, nil
}

func (m *mockUserService) UpdateProfile(ctx context.Context, t model.UserType, reference string, editable model.UserEditable) (*model.UserViewable, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, t, reference, editable)
	}
	return &model.UserViewable{Reference: reference}, nil
}

func (m *mockUserService) AddBankConnection(ctx context.Context, t model.UserType, reference string, in user.BankConnectionInput) (*model.UserViewable, error) {
	if m.addBankConnectionFn != nil {
		return m.addBankConnectionFn(ctx, t, reference, in)
	}
	return &model.UserViewable{Reference: reference}, nil
}

// mockAssessmentService はAssessmentServiceInterfaceのモック実装。
type mockAssessmentService struct {
	createFn       func(ctx context.Context, borrowerID int64) (*model.AssessmentInfo, error)
	getFn          func(ctx context.Context, borrowerID int64, reference string, includeReference bool) (*model.AssessmentInfo, error)
	listFn         func(ctx context.Context, borrowerID int64) ([]model.AssessmentSummary, error)
	lastApprovedFn func(ctx context.Context, borrowerID int64) (*model.AssessmentInfo, error)
	submitFn       func(ctx context.Context, borrowerID int64, reference string) (*model.AssessmentInfo, error)
	attachUploadFn func(ctx context.Context, reference string, file *model.AssessmentFile) (*model.AssessmentInfo, error)
}

func (m *mockAssessmentService) Create(ctx context.Context, borrowerID int64) (*model.AssessmentInfo, error) {
	if m.createFn != nil {
		return m.createFn(ctx, borrowerID)
	}
	return &model.AssessmentInfo{}, nil
}

func (m *mockAssessmentService) Get(ctx context.Context, borrowerID int64, reference string, includeReference bool) (*model.AssessmentInfo, error) {
	if m.getFn != nil {
		return m.getFn(ctx, borrowerID, reference, includeReference)
	}
	return &model.AssessmentInfo{}, nil
}

func (m *mockAssessmentService) List(ctx context.Context, borrowerID int64) ([]model.AssessmentSummary, error) {
	if m.listFn != nil {
		return m.listFn(ctx, borrowerID)
	}
	return []model.AssessmentSummary{}, nil
}

func (m *mockAssessmentService) LastApproved(ctx context.Context, borrowerID int64) (*model.AssessmentInfo, error) {
	if m.lastApprovedFn != nil {
		return m.lastApprovedFn(ctx, borrowerID)
	}
	return &model.AssessmentInfo{}, nil
}

func (m *mockAssessmentService) Submit(ctx context.Context, borrowerID int64, reference string) (*model.AssessmentInfo, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, borrowerID, reference)
	}
	return &model.AssessmentInfo{}, nil
}

func (m *mockAssessmentService) AttachUpload(ctx context.Context, reference string, file *model.AssessmentFile) (*model.AssessmentInfo, error) {
	if m.attachUploadFn != nil {
		return m.attachUploadFn(ctx, reference, file)
	}
	return &model.AssessmentInfo{}, nil
}

// mockLoanService はLoanServiceInterfaceのモック実装。
type mockLoanService struct {
	amortizationsFn func(ctx context.Context) ([]model.AmortizationInfo, error)
	amortizationFn  func(ctx context.Context, id int64) (*model.AmortizationInfo, error)
	ratingsFn       func(ctx context.Context) ([]model.RatingInfo, error)
}

func (m *mockLoanService) Amortizations(ctx context.Context) ([]model.AmortizationInfo, error) {
	if m.amortizationsFn != nil {
		return m.amortizationsFn(ctx)
	}
	return []model.AmortizationInfo{}, nil
}

func (m *mockLoanService) Amortization(ctx context.Context, id int64) (*model.AmortizationInfo, error) {
	if m.amortizationFn != nil {
		return m.amortizationFn(ctx, id)
	}
	return &model.AmortizationInfo{ID: id}, nil
}

func (m *mockLoanService) Ratings(ctx context.Context) ([]model.RatingInfo, error) {
	if m.ratingsFn != nil {
		return m.ratingsFn(ctx)
	}
	return []model.RatingInfo{}, nil
}

// mockUploadVerifier はUploadVerifierのモック実装。
type mockUploadVerifier struct {
	verifyFn func(token, reference, callbackPath string) error
}

func (m *mockUploadVerifier) VerifyCallback(token, reference, callbackPath string) error {
	if m.verifyFn != nil {
		return m.verifyFn(token, reference, callbackPath)
	}
	return nil
}

// mockHealthChecker はHealthCheckerのモック実装。
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error {
	return m.err
}

// --- テストヘルパー ---

const (
	testBorrowerRef = "3f1c2a9e-5b7d-4e21-9a0c-6d8e7f1b2c3d"
	testInvestorRef = "9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d"
	testAssessRef   = "0b1c2d3e-4f5a-4b6c-8d7e-9f0a1b2c3d4e"
)

// withChiURLParams はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// testEnv はルーター経由のテストに必要な依存一式。
type testEnv struct {
	tokens      *auth.TokenManager
	users       *mockUserService
	assessments *mockAssessmentService
	loans       *mockLoanService
	uploads     *mockUploadVerifier
	health      *mockHealthChecker
	router      http.Handler
}

// newTestEnv はモックを組み込んだルーターを構築する。
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(), logger)
	t.Cleanup(limiter.Stop)

	env := &testEnv{
		tokens:      auth.NewTokenManager("serverfront-test", "test-secret-test-secret-test-sec", time.Hour),
		users:       &mockUserService{},
		assessments: &mockAssessmentService{},
		loans:       &mockLoanService{},
		uploads:     &mockUploadVerifier{},
		health:      &mockHealthChecker{},
	}
	env.router = NewRouter(&RouterDeps{
		Logger:            logger,
		TokenVerifier:     env.tokens,
		RateLimiter:       limiter,
		CORSAllowedOrigin: "http://localhost:3000",
		HealthChecker:     env.health,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "# metrics\n")
		}),
		UserService:       env.users,
		AssessmentService: env.assessments,
		LoanService:       env.loans,
		UploadVerifier:    env.uploads,
	})
	return env
}

// do はルーターにリクエストを送り、レスポンスを返す。
// userTypeが空でない場合はそのユーザーのアクセストークンを付与する。
func (e *testEnv) do(t *testing.T, method, path, body, userType, ref string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userType != "" {
		token, _, err := e.tokens.MintAccess(userType, ref)
		if err != nil {
			t.Fatalf("MintAccess() error = %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}
