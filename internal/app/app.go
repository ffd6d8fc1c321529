package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/gncompass/serverfront/internal/assessment"
	"github.com/gncompass/serverfront/internal/auth"
	"github.com/gncompass/serverfront/internal/config"
	"github.com/gncompass/serverfront/internal/database"
	"github.com/gncompass/serverfront/internal/handler"
	"github.com/gncompass/serverfront/internal/loan"
	"github.com/gncompass/serverfront/internal/logger"
	"github.com/gncompass/serverfront/internal/metrics"
	"github.com/gncompass/serverfront/internal/middleware"
	"github.com/gncompass/serverfront/internal/repository"
	"github.com/gncompass/serverfront/internal/security"
	"github.com/gncompass/serverfront/internal/storage"
	"github.com/gncompass/serverfront/internal/user"
	"github.com/gncompass/serverfront/internal/worker/cleanup"
	"github.com/gncompass/serverfront/internal/worker/review"
)

// tokenIssuer はアクセストークン・アップロードトークンのiss。
const tokenIssuer = "serverfront"

// 審査ポリシーが付与する格付けIDの範囲。
const (
	reviewMinRating = 1
	reviewMaxRating = 5
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck("http://localhost:" + port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("environment", cfg.Environment),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// services はHTTPサーバーとワーカーが共有するドメインサービス群。
type services struct {
	tokens      *auth.TokenManager
	uploads     *storage.SignedUploadIssuer
	users       *user.Service
	assessments *assessment.Service
	loans       *loan.Service
}

// newServices はリポジトリとドメインサービスをワイヤリングする。
func newServices(cfg *config.Config, db *sql.DB, collector *metrics.Collector, log *slog.Logger) (*services, error) {
	// 1. リポジトリの初期化（クエリレイテンシをメトリクスに記録する）
	recorder := repository.WithQueryRecorder(collector)
	userRepo := repository.NewPostgresUserRepo(db, recorder)
	countryRepo := repository.NewPostgresCountryRepo(db, recorder)
	ratingRepo := repository.NewPostgresRatingRepo(db, recorder)
	bankRepo := repository.NewPostgresBankConnectionRepo(db, recorder)
	assessmentRepo := repository.NewPostgresAssessmentRepo(db, recorder)
	amortizationRepo := repository.NewPostgresAmortizationRepo(db, recorder)

	// 2. トークンとアップロードURL
	tokens := auth.NewTokenManager(tokenIssuer, cfg.TokenSecret, cfg.TokenTTL)
	uploads := storage.NewSignedUploadIssuer(tokens, storage.Config{
		BaseURL:    cfg.UploadBaseURL,
		Bucket:     cfg.UploadBucket,
		Production: cfg.IsProduction(),
		TokenTTL:   cfg.UploadTokenTTL,
	})

	// 3. ドメインサービスの初期化
	policy := assessment.NewRandomPolicy(reviewMinRating, reviewMaxRating)

	return &services{
		tokens:  tokens,
		uploads: uploads,
		users: user.NewService(
			userRepo, countryRepo, bankRepo, tokens,
			security.NewTextSanitizer(), log,
		),
		assessments: assessment.NewService(
			assessmentRepo, uploads, policy, collector, log,
			assessment.Options{ReviewInline: cfg.ReviewInline},
		),
		loans: loan.NewService(amortizationRepo, ratingRepo),
	}, nil
}

// newMetrics はアプリケーション専用のレジストリとCollectorを生成する。
func newMetrics() (*metrics.Collector, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return metrics.NewCollector(reg), reg
}

// newAPIHandler はAPIサーバーのhttp.Handlerを構築する。
// 返されるRateLimiterはシャットダウン時にStopすること。
func newAPIHandler(cfg *config.Config, db *sql.DB, collector *metrics.Collector, gatherer prometheus.Gatherer, log *slog.Logger) (http.Handler, *middleware.RateLimiter, error) {
	svc, err := newServices(cfg, db, collector, log)
	if err != nil {
		return nil, nil, err
	}

	limiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitRegistration),
		log,
	)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		StatusRecorder:    collector,
		TokenVerifier:     svc.tokens,
		RateLimiter:       limiter,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		Production:        cfg.IsProduction(),

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(gatherer),

		UserService:       svc.users,
		AssessmentService: svc.assessments,
		LoanService:       svc.loans,
		UploadVerifier:    svc.uploads,
	})

	return router, limiter, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	collector, registry := newMetrics()
	router, limiter, err := newAPIHandler(cfg, db, collector, registry, slog.Default())
	if err != nil {
		return err
	}
	defer limiter.Stop()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
			slog.Bool("review_inline", cfg.ReviewInline),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 審査待ちアセスメントの審査スケジューラと、放棄アセスメントのクリーンアップを実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	// ワーカーはスクレイプされないため、メトリクスはプロセス内でのみ集計する
	collector, _ := newMetrics()
	svc, err := newServices(cfg, db, collector, slog.Default())
	if err != nil {
		return err
	}

	scheduler := review.NewScheduler(svc.assessments, slog.Default(), cfg.ReviewMaxConcurrent, cfg.ReviewBatchSize)

	cleanupJob := cleanup.NewCleanupJob(
		repository.NewPostgresAssessmentRepo(db, repository.WithQueryRecorder(collector)),
		collector, slog.Default(),
	)
	cleanupJob.RetentionDays = cfg.AbandonedRetentionDays

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("review_interval", cfg.ReviewInterval),
		slog.Int("max_concurrent", cfg.ReviewMaxConcurrent),
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
	)

	// クリーンアップジョブをバックグラウンドで実行
	go cleanupJob.Start(ctx, cfg.CleanupInterval)

	// 審査スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.ReviewInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	status, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(status.Version)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(baseURL string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
