package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/kakeibo/internal/metrics"
	"github.com/hitoshi/kakeibo/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 支出
	ExpenseService ExpenseServiceInterface
	ExpenseConfig  ExpenseHandlerConfig

	// ダッシュボード
	DashboardService DashboardServiceInterface

	// ユーザー
	UserService UserServiceInterface

	// 運用系
	DB         DBPinger
	MetricsReg *prometheus.Registry
	Metrics    middleware.HTTPStatusRecorder
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → CSRF
//	認証が必要なルートはさらに Session → RateLimit(General)
//
// 認証ルート（/auth/*）はセッションミドルウェアの外に配置し、
// IPキーの認証レート制限を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	expenseHandler := NewExpenseHandler(deps.ExpenseService, deps.ExpenseConfig)
	dashboardHandler := NewDashboardHandler(deps.DashboardService)
	userHandler := NewUserHandler(deps.UserService)

	// --- 認証不要のルート ---

	if deps.DB != nil {
		r.Get("/health", NewHealthHandler(deps.DB))
	}
	if deps.MetricsReg != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsReg))
	}
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// 認証ルート（セッション確立前のためIPキーのレート制限を適用）
	r.Route("/auth", func(r chi.Router) {
		r.Use(deps.RateLimiter.AuthMiddleware())

		r.Post("/signup", authHandler.Signup)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
		r.Post("/forgot-password", authHandler.ForgotPassword)
		r.Post("/reset-password", authHandler.ResetPassword)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 支出管理
		r.Route("/api/expenses", func(r chi.Router) {
			r.Get("/", expenseHandler.ListExpenses)
			r.Post("/", expenseHandler.CreateExpense)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", expenseHandler.GetExpense)
				r.Put("/", expenseHandler.UpdateExpense)
				r.Delete("/", expenseHandler.DeleteExpense)
			})
		})

		// ダッシュボード
		r.Get("/api/dashboard", dashboardHandler.GetDashboard)

		// ユーザー管理
		r.Route("/api/users", func(r chi.Router) {
			r.Get("/me", userHandler.GetProfile)
			r.Put("/me", userHandler.UpdateProfile)
			r.Delete("/me", userHandler.Withdraw)
		})
	})

	return r
}
