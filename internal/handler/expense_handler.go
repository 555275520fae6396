package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/kakeibo/internal/expense"
	"github.com/hitoshi/kakeibo/internal/middleware"
	"github.com/hitoshi/kakeibo/internal/model"
	"github.com/hitoshi/kakeibo/internal/query"
)

// defaultExpensesPerPage は支出一覧の1ページあたりのデフォルト件数。
const defaultExpensesPerPage = 50

// expenseDateLayout はリクエスト・レスポンスの日付フォーマット。
const expenseDateLayout = "2006-01-02"

// ExpenseServiceInterface は支出ハンドラーが必要とするサービスインターフェース。
type ExpenseServiceInterface interface {
	List(ctx context.Context, q *model.ExpenseQuery) (*model.ExpensePage, error)
	Get(ctx context.Context, ownerID, expenseID string) (*model.Expense, error)
	Create(ctx context.Context, ownerID string, input expense.CreateInput) (*model.Expense, error)
	Update(ctx context.Context, ownerID, expenseID string, input expense.CreateInput) (*model.Expense, error)
	Delete(ctx context.Context, ownerID, expenseID string) error
}

// ExpenseHandlerConfig は支出ハンドラーの設定。
type ExpenseHandlerConfig struct {
	MaxPageSize int // limitパラメータの上限
}

// ExpenseHandler は支出管理のHTTPハンドラー。
type ExpenseHandler struct {
	service ExpenseServiceInterface
	config  ExpenseHandlerConfig
}

// NewExpenseHandler はExpenseHandlerを生成する。
func NewExpenseHandler(service ExpenseServiceInterface, config ExpenseHandlerConfig) *ExpenseHandler {
	if config.MaxPageSize <= 0 {
		config.MaxPageSize = 200
	}
	return &ExpenseHandler{
		service: service,
		config:  config,
	}
}

// --- リクエスト・レスポンス型 ---

// expenseRequest は支出の作成・更新リクエストのボディ。
// 必須フィールドの欠落を検出するため、ポインタで受ける。
type expenseRequest struct {
	AmountCents *int64  `json:"amount_cents"`
	Category    *string `json:"category"`
	Description *string `json:"description"`
	Date        *string `json:"date"`
}

// expenseResponse は支出1件のレスポンス。
type expenseResponse struct {
	ID          string `json:"id"`
	AmountCents int64  `json:"amount_cents"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Date        string `json:"date"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// expenseListResponse は支出一覧のレスポンス。
type expenseListResponse struct {
	Data       []expenseResponse `json:"data"`
	Pagination model.Pagination  `json:"pagination"`
}

func toExpenseResponse(e *model.Expense) expenseResponse {
	return expenseResponse{
		ID:          e.ID,
		AmountCents: e.AmountCents,
		Category:    e.Category,
		Description: e.Description,
		Date:        e.Date.Format(expenseDateLayout),
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   e.UpdatedAt.Format(time.RFC3339),
	}
}

// ListExpenses は支出一覧をフィルタ・ソート・ページネーション付きで取得する。
// GET /api/expenses?page=&limit=&category=&startDate=&endDate=&sortBy=&order=
func (h *ExpenseHandler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	q, err := query.Build(userID, r.URL.Query(), query.Options{
		DefaultLimit: defaultExpensesPerPage,
		MaxLimit:     h.config.MaxPageSize,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	page, err := h.service.List(r.Context(), q)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	data := make([]expenseResponse, len(page.Expenses))
	for i, e := range page.Expenses {
		data[i] = toExpenseResponse(e)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(expenseListResponse{
		Data:       data,
		Pagination: page.Pagination,
	})
}

// GetExpense は支出1件を取得する。
// GET /api/expenses/{id}
func (h *ExpenseHandler) GetExpense(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	expenseID := chi.URLParam(r, "id")

	result, err := h.service.Get(r.Context(), userID, expenseID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toExpenseResponse(result))
}

// CreateExpense は支出を作成する。
// POST /api/expenses
func (h *ExpenseHandler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	input, apiErr := parseExpenseRequest(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	created, err := h.service.Create(r.Context(), userID, *input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toExpenseResponse(created))
}

// UpdateExpense は支出を更新する。
// PUT /api/expenses/{id}
func (h *ExpenseHandler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	expenseID := chi.URLParam(r, "id")

	input, apiErr := parseExpenseRequest(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	updated, err := h.service.Update(r.Context(), userID, expenseID, *input)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toExpenseResponse(updated))
}

// DeleteExpense は支出を削除する。
// DELETE /api/expenses/{id}
func (h *ExpenseHandler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	expenseID := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), userID, expenseID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseExpenseRequest はリクエストボディを検証しCreateInputに変換する。
// 全フィールド必須。descriptionのみ空文字を許容する。
func parseExpenseRequest(r *http.Request) (*expense.CreateInput, *model.APIError) {
	var req expenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, &model.APIError{
			Code:     model.ErrCodeInvalidRequest,
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		}
	}

	// 金額は符号付き。返金や訂正のマイナス値も受け付ける。
	if req.AmountCents == nil {
		return nil, model.NewMissingFieldError("amount_cents")
	}
	if req.Category == nil || *req.Category == "" {
		return nil, model.NewMissingFieldError("category")
	}
	// 空文字は許容するが、キー自体の欠落はエラー
	if req.Description == nil {
		return nil, model.NewMissingFieldError("description")
	}
	if req.Date == nil || *req.Date == "" {
		return nil, model.NewMissingFieldError("date")
	}

	date, err := time.Parse(expenseDateLayout, *req.Date)
	if err != nil {
		return nil, model.NewInvalidParamError("date", "YYYY-MM-DD形式で指定してください")
	}

	return &expense.CreateInput{
		AmountCents: *req.AmountCents,
		Category:    *req.Category,
		Description: *req.Description,
		Date:        date,
	}, nil
}
