package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/kakeibo/internal/expense"
	"github.com/hitoshi/kakeibo/internal/middleware"
	"github.com/hitoshi/kakeibo/internal/model"
)

// mockSessionFinderForRouter はRouter統合テスト用のSessionFinderモック。
type mockSessionFinderForRouter struct {
	sessions map[string]*model.Session
}

func (m *mockSessionFinderForRouter) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if s, ok := m.sessions[id]; ok {
		return s, nil
	}
	return nil, nil
}

// createTestRouter はテスト用の完全なルーターを構築するヘルパー。
func createTestRouter() http.Handler {
	sessionFinder := &mockSessionFinderForRouter{
		sessions: map[string]*model.Session{
			"valid-session": {
				ID:        "valid-session",
				UserID:    "user-test-1",
				ExpiresAt: time.Now().Add(1 * time.Hour),
			},
		},
	}

	deps := &RouterDeps{
		SessionFinder: sessionFinder,
		CSRFConfig:    middleware.CSRFConfig{CookieSecure: false},
		RateLimiter:   middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig()),
		AuthService: &mockAuthService{
			loginFn: func(ctx context.Context, email, password string) (*model.User, *model.Session, error) {
				return testUser("user-test-1"), testSession("user-test-1"), nil
			},
			getCurrentUserFn: func(ctx context.Context, sessionID string) (*model.User, error) {
				return testUser("user-test-1"), nil
			},
		},
		AuthConfig: AuthHandlerConfig{SessionMaxAge: 86400},
		ExpenseService: &mockExpenseService{
			listFn: func(ctx context.Context, q *model.ExpenseQuery) (*model.ExpensePage, error) {
				return &model.ExpensePage{
					Expenses:   []*model.Expense{},
					Pagination: model.NewPagination(0, q.Page, q.Limit),
				}, nil
			},
			createFn: func(ctx context.Context, ownerID string, input expense.CreateInput) (*model.Expense, error) {
				return testExpense("exp-router-1", ownerID), nil
			},
			updateFn: func(ctx context.Context, ownerID, expenseID string, input expense.CreateInput) (*model.Expense, error) {
				return testExpense(expenseID, ownerID), nil
			},
			getFn: func(ctx context.Context, ownerID, expenseID string) (*model.Expense, error) {
				return testExpense(expenseID, ownerID), nil
			},
		},
		ExpenseConfig:    ExpenseHandlerConfig{MaxPageSize: 200},
		DashboardService: &mockDashboardService{},
		UserService:      &mockUserService{},
	}

	return NewRouter(deps)
}

// TestNewRouter_CSRFTokenEndpoint_NoAuthRequired は
// CSRFトークン取得エンドポイントが認証不要であることを検証する。
func TestNewRouter_CSRFTokenEndpoint_NoAuthRequired(t *testing.T) {
	router := createTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("GET /api/csrf-token status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	var body map[string]string
	json.NewDecoder(w.Result().Body).Decode(&body)
	if body["token"] == "" {
		t.Error("expected non-empty CSRF token")
	}
}

// TestNewRouter_AuthRoutes_LoginEndpoint はログインルートが正しく設定されていることを検証する。
func TestNewRouter_AuthRoutes_LoginEndpoint(t *testing.T) {
	router := createTestRouter()

	body := `{"email": "taro@example.com", "password": "password123"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "test-token"})
	req.Header.Set("X-CSRF-Token", "test-token")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("POST /auth/login status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

// TestNewRouter_AuthRoutes_MeEndpoint はGET /auth/meが正しくルーティングされることを検証する。
func TestNewRouter_AuthRoutes_MeEndpoint(t *testing.T) {
	router := createTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("GET /auth/me status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

// TestNewRouter_ProtectedRoute_NoSession_Returns401 は
// 認証保護ルートにセッションなしでアクセスすると401が返ることを検証する。
func TestNewRouter_ProtectedRoute_NoSession_Returns401(t *testing.T) {
	router := createTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/expenses", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("GET /api/expenses (no session) status = %d, want %d",
			w.Result().StatusCode, http.StatusUnauthorized)
	}
}

// TestNewRouter_ProtectedRoute_WithSession_GET_Succeeds は
// 認証保護ルートにセッション付きGETリクエストが成功することを検証する。
func TestNewRouter_ProtectedRoute_WithSession_GET_Succeeds(t *testing.T) {
	router := createTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/expenses", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("GET /api/expenses status = %d, want %d",
			w.Result().StatusCode, http.StatusOK)
	}
}

// TestNewRouter_ProtectedRoute_POST_RequiresCSRF は
// POSTリクエストにCSRFトークンが必須であることを検証する。
func TestNewRouter_ProtectedRoute_POST_RequiresCSRF(t *testing.T) {
	router := createTestRouter()

	body := `{"amount_cents": 100, "category": "Food", "description": "ランチ", "date": "2026-08-15"}`
	req := httptest.NewRequest(http.MethodPost, "/api/expenses", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("POST /api/expenses (no CSRF) status = %d, want %d",
			w.Result().StatusCode, http.StatusForbidden)
	}
}

// TestNewRouter_ProtectedRoute_POST_WithCSRF_Succeeds は
// POSTリクエストにCSRFトークン付きでアクセスが成功することを検証する。
func TestNewRouter_ProtectedRoute_POST_WithCSRF_Succeeds(t *testing.T) {
	router := createTestRouter()

	body := `{"amount_cents": 100, "category": "Food", "description": "ランチ", "date": "2026-08-15"}`
	req := httptest.NewRequest(http.MethodPost, "/api/expenses", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "test-token"})
	req.Header.Set("X-CSRF-Token", "test-token")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusCreated {
		t.Errorf("POST /api/expenses (with CSRF) status = %d, want %d",
			w.Result().StatusCode, http.StatusCreated)
	}
}

// TestNewRouter_ExpenseRoutes_AllEndpoints は支出関連の全エンドポイントが登録されていることを検証する。
func TestNewRouter_ExpenseRoutes_AllEndpoints(t *testing.T) {
	router := createTestRouter()

	tests := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/api/expenses", ""},
		{http.MethodPost, "/api/expenses", `{"amount_cents": 100, "category": "Food", "description": "ランチ", "date": "2026-08-15"}`},
		{http.MethodGet, "/api/expenses/exp-1", ""},
		{http.MethodPut, "/api/expenses/exp-1", `{"amount_cents": 200, "category": "Food", "description": "ランチ", "date": "2026-08-15"}`},
		{http.MethodDelete, "/api/expenses/exp-1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
			req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "test-token"})
			req.Header.Set("X-CSRF-Token", "test-token")
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Result().StatusCode == http.StatusNotFound {
				t.Errorf("%s %s returned 404, route not found", tt.method, tt.path)
			}
		})
	}
}

// TestNewRouter_DashboardRoute はダッシュボードエンドポイントが登録されていることを検証する。
func TestNewRouter_DashboardRoute(t *testing.T) {
	router := createTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("GET /api/dashboard status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
}

// TestNewRouter_UserRoutes_WithdrawEndpoint は退会エンドポイントが登録されていることを検証する。
func TestNewRouter_UserRoutes_WithdrawEndpoint(t *testing.T) {
	router := createTestRouter()

	req := httptest.NewRequest(http.MethodDelete, "/api/users/me", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	req.AddCookie(&http.Cookie{Name: "csrf_token", Value: "test-token"})
	req.Header.Set("X-CSRF-Token", "test-token")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNoContent {
		t.Errorf("DELETE /api/users/me status = %d, want %d", w.Result().StatusCode, http.StatusNoContent)
	}
}

// TestNewRouter_CSRFAppliesBeforeSession は
// セッションなしのPOSTでもCSRF検証が先に実行されることを検証する。
func TestNewRouter_CSRFAppliesBeforeSession(t *testing.T) {
	router := createTestRouter()

	body := `{"amount_cents": 100, "category": "Food", "description": "ランチ", "date": "2026-08-15"}`
	req := httptest.NewRequest(http.MethodPost, "/api/expenses", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	// CSRFはルーター全体にかかっているため、セッションなしのPOSTは403で弾かれる
	if w.Result().StatusCode != http.StatusForbidden {
		t.Errorf("POST (no session, no CSRF) status = %d, want %d",
			w.Result().StatusCode, http.StatusForbidden)
	}
}

// TestNewRouter_SecurityHeaders は全レスポンスにセキュリティヘッダーが付与されることを検証する。
func TestNewRouter_SecurityHeaders(t *testing.T) {
	router := createTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if got := w.Result().Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}
