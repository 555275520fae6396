package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/kakeibo/internal/expense"
	"github.com/hitoshi/kakeibo/internal/middleware"
)

// DashboardServiceInterface はダッシュボードハンドラーが必要とするサービスインターフェース。
type DashboardServiceInterface interface {
	Dashboard(ctx context.Context, ownerID string) (*expense.DashboardSummary, error)
}

// DashboardHandler はダッシュボードのHTTPハンドラー。
type DashboardHandler struct {
	service DashboardServiceInterface
}

// NewDashboardHandler はDashboardHandlerを生成する。
func NewDashboardHandler(service DashboardServiceInterface) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// categoryTotalResponse はカテゴリ別合計のレスポンス。
type categoryTotalResponse struct {
	Category   string `json:"category"`
	TotalCents int64  `json:"total_cents"`
	Count      int    `json:"count"`
}

// dashboardResponse はダッシュボードのレスポンス。
type dashboardResponse struct {
	Recent         []expenseResponse       `json:"recent"`
	CategoryTotals []categoryTotalResponse `json:"category_totals"`
}

// GetDashboard は直近の支出とカテゴリ別合計を返す。
// GET /api/dashboard
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	summary, err := h.service.Dashboard(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	recent := make([]expenseResponse, len(summary.Recent))
	for i, e := range summary.Recent {
		recent[i] = toExpenseResponse(e)
	}

	totals := make([]categoryTotalResponse, len(summary.CategoryTotals))
	for i, ct := range summary.CategoryTotals {
		totals[i] = categoryTotalResponse{
			Category:   ct.Category,
			TotalCents: ct.TotalCents,
			Count:      ct.Count,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(dashboardResponse{
		Recent:         recent,
		CategoryTotals: totals,
	})
}
