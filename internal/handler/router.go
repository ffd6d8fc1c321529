package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gncompass/serverfront/internal/middleware"
	"github.com/gncompass/serverfront/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	StatusRecorder    middleware.StatusRecorder
	TokenVerifier     middleware.TokenVerifier
	RateLimiter       *middleware.RateLimiter
	CORSAllowedOrigin string
	Production        bool

	// 運用エンドポイント
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// ドメイン
	UserService       UserServiceInterface
	AssessmentService AssessmentServiceInterface
	LoanService       LoanServiceInterface
	UploadVerifier    UploadVerifier
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → Logging → Metrics → SecurityHeaders → CORS → RateLimit(General)
//
// ユーザー配下のルートにはさらに BearerAuth → Owner を適用する。
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.Production))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	userHandler := NewUserHandler(deps.UserService)
	assessmentHandler := NewAssessmentHandler(deps.AssessmentService, deps.UserService, deps.UploadVerifier)
	loanHandler := NewLoanHandler(deps.LoanService)

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	r.Route(model.BasePath, func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 参照データ（認証不要）
		r.Get("/amortizations", loanHandler.ListAmortizations)
		r.Get("/amortizations/{id}", loanHandler.GetAmortization)
		r.Get("/ratings", loanHandler.ListRatings)

		// ストレージからのコールバック（アップロードトークンで認証）
		r.Post("/uploads/assessments/{ref}", assessmentHandler.UploadCallback)

		r.Route("/{userType}", func(r chi.Router) {
			r.With(deps.RateLimiter.RegistrationMiddleware()).Post("/", userHandler.Register)
			r.Post("/login", userHandler.Login)

			// --- 認証が必要なルート ---
			r.Route("/{userRef}", func(r chi.Router) {
				r.Use(middleware.NewBearerAuthMiddleware(deps.TokenVerifier))
				r.Use(middleware.NewOwnerMiddleware())

				r.Get("/", userHandler.GetProfile)
				r.Put("/", userHandler.UpdateProfile)
				r.Post("/banks", userHandler.AddBankConnection)

				r.Route("/assessments", func(r chi.Router) {
					r.Use(borrowersOnly)

					r.Get("/", assessmentHandler.List)
					r.Post("/", assessmentHandler.Create)
					r.Get("/approved", assessmentHandler.LastApproved)
					r.Get("/{ref}", assessmentHandler.Get)
					r.Post("/{ref}/submit", assessmentHandler.Submit)
				})
			})
		})
	})

	return r
}

// borrowersOnly は借り手以外のユーザー種別へのアクセスを404にする。
func borrowersOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		segment := chi.URLParam(r, "userType")
		if segment != model.UserTypeBorrower.PathSegment() {
			writeAPIErrorResponse(w, http.StatusNotFound, model.NewInvalidUserTypeError(segment))
			return
		}
		next.ServeHTTP(w, r)
	})
}
