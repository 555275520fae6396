// Package expense は支出の検索・記録とキャッシュ管理のビジネスロジックを提供する。
package expense

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/kakeibo/internal/cache"
	"github.com/hitoshi/kakeibo/internal/model"
	"github.com/hitoshi/kakeibo/internal/repository"
)

// ResultCache は支出サービスが必要とするキャッシュ操作のインターフェース。
// cache.Storeの部分集合として定義する。
type ResultCache interface {
	Get(key string) (interface{}, bool)
	Put(key, ownerID string, value interface{}, ttl time.Duration)
	InvalidateOwner(ownerID string) int
}

// MetricsRecorder はキャッシュとクエリのメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordCacheHit(endpoint string)
	RecordCacheMiss(endpoint string)
	RecordCacheInvalidation(removed int)
	RecordQueryLatency(duration time.Duration)
}

// noopMetrics はメトリクス未設定時のレコーダー。
type noopMetrics struct{}

func (noopMetrics) RecordCacheHit(string)            {}
func (noopMetrics) RecordCacheMiss(string)           {}
func (noopMetrics) RecordCacheInvalidation(int)      {}
func (noopMetrics) RecordQueryLatency(time.Duration) {}

// ServiceConfig は支出サービスの設定。
type ServiceConfig struct {
	CacheTTL          time.Duration // 一覧エンドポイントのキャッシュTTL
	DashboardCacheTTL time.Duration // ダッシュボードのキャッシュTTL
}

// Service は支出の検索・作成・更新・削除を提供する。
// 読み取りはResult Cacheを経由し、すべての変更は成功直後に
// 所有者のキャッシュエントリを同期的に無効化する。
type Service struct {
	repo    repository.ExpenseRepository
	cache   ResultCache
	metrics MetricsRecorder
	config  ServiceConfig
}

// NewService はServiceを生成する。
// cacheにnilを渡すとキャッシュなしで動作する（テスト用）。
// metricsにnilを渡すと記録を行わない。
func NewService(
	repo repository.ExpenseRepository,
	resultCache ResultCache,
	metrics MetricsRecorder,
	config ServiceConfig,
) *Service {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Service{
		repo:    repo,
		cache:   resultCache,
		metrics: metrics,
		config:  config,
	}
}

// DashboardSummary はダッシュボード表示用の集計結果。
type DashboardSummary struct {
	Recent         []*model.Expense
	CategoryTotals []model.CategoryTotal
}

// List はディスクリプタに従って支出の1ページを返す。
// 有効なキャッシュエントリがあればストレージに問い合わせず同一の
// 結果を返す。ミス時はクエリを実行し、結果をTTL付きで格納する。
// キャッシュの失敗は利用者に見せず、常に直接クエリにフォールバックする。
func (s *Service) List(ctx context.Context, q *model.ExpenseQuery) (*model.ExpensePage, error) {
	key := cache.QueryKey(q)

	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			if page, ok := v.(*model.ExpensePage); ok {
				s.metrics.RecordCacheHit("list")
				return page, nil
			}
			// 型が合わないエントリは無視してクエリにフォールバック
		}
		s.metrics.RecordCacheMiss("list")
	}

	page, err := s.executeList(ctx, q)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Put(key, q.OwnerID, page, s.config.CacheTTL)
	}

	return page, nil
}

// executeList はストレージに対してディスクリプタを実行する。
// ストレージエラーは詳細をログに記録し、汎用のクエリ失敗エラーとして返す。
func (s *Service) executeList(ctx context.Context, q *model.ExpenseQuery) (*model.ExpensePage, error) {
	start := time.Now()
	rows, total, err := s.repo.List(ctx, q)
	s.metrics.RecordQueryLatency(time.Since(start))
	if err != nil {
		slog.Error("expense query failed",
			slog.String("owner_id", q.OwnerID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewQueryFailedError()
	}

	if rows == nil {
		rows = []*model.Expense{}
	}

	return &model.ExpensePage{
		Expenses:   rows,
		Pagination: model.NewPagination(total, q.Page, q.Limit),
	}, nil
}

// Dashboard は直近の支出（最大10件）とカテゴリ別合計を返す。
// 一覧と同じ所有者スコープのキャッシュを使用する。
func (s *Service) Dashboard(ctx context.Context, ownerID string) (*DashboardSummary, error) {
	key := cache.DashboardKey(ownerID)

	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			if summary, ok := v.(*DashboardSummary); ok {
				s.metrics.RecordCacheHit("dashboard")
				return summary, nil
			}
		}
		s.metrics.RecordCacheMiss("dashboard")
	}

	recentQuery := &model.ExpenseQuery{
		OwnerID: ownerID,
		Page:    1,
		Limit:   10,
		SortBy:  model.SortFieldDate,
		Order:   model.SortOrderDesc,
	}

	start := time.Now()
	recent, _, err := s.repo.List(ctx, recentQuery)
	if err == nil {
		var totals []model.CategoryTotal
		totals, err = s.repo.SumByCategory(ctx, ownerID)
		if err == nil {
			s.metrics.RecordQueryLatency(time.Since(start))
			if recent == nil {
				recent = []*model.Expense{}
			}
			if totals == nil {
				totals = []model.CategoryTotal{}
			}
			summary := &DashboardSummary{
				Recent:         recent,
				CategoryTotals: totals,
			}
			if s.cache != nil {
				s.cache.Put(key, ownerID, summary, s.config.DashboardCacheTTL)
			}
			return summary, nil
		}
	}

	slog.Error("dashboard query failed",
		slog.String("owner_id", ownerID),
		slog.String("error", err.Error()),
	)
	return nil, model.NewQueryFailedError()
}

// CreateInput は支出作成の入力。
type CreateInput struct {
	AmountCents int64
	Category    string
	Description string
	Date        time.Time
}

// Create は支出を作成する。
// 成功直後、レスポンス構築より前に所有者のキャッシュを無効化する。
func (s *Service) Create(ctx context.Context, ownerID string, input CreateInput) (*model.Expense, error) {
	now := time.Now()
	expense := &model.Expense{
		ID:          uuid.New().String(),
		OwnerID:     ownerID,
		AmountCents: input.AmountCents,
		Category:    input.Category,
		Description: input.Description,
		Date:        normalizeDate(input.Date),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, expense); err != nil {
		slog.Error("expense create failed",
			slog.String("owner_id", ownerID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewQueryFailedError()
	}

	s.invalidateOwner(ownerID)

	return expense, nil
}

// Update は支出を所有者スコープで更新する。
// 対象が存在しない（または他ユーザーの所有）場合は未検出エラーを返す。
func (s *Service) Update(ctx context.Context, ownerID, expenseID string, input CreateInput) (*model.Expense, error) {
	expense := &model.Expense{
		ID:          expenseID,
		OwnerID:     ownerID,
		AmountCents: input.AmountCents,
		Category:    input.Category,
		Description: input.Description,
		Date:        normalizeDate(input.Date),
		UpdatedAt:   time.Now(),
	}

	found, err := s.repo.Update(ctx, expense)
	if err != nil {
		slog.Error("expense update failed",
			slog.String("owner_id", ownerID),
			slog.String("expense_id", expenseID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewQueryFailedError()
	}
	if !found {
		return nil, model.NewExpenseNotFoundError(expenseID)
	}

	s.invalidateOwner(ownerID)

	// 更新後の完全な行を返す
	updated, err := s.repo.FindByIDAndOwner(ctx, expenseID, ownerID)
	if err != nil || updated == nil {
		// 取得に失敗しても更新自体は完了している
		return expense, nil
	}
	return updated, nil
}

// Delete は支出を所有者スコープで削除する。
func (s *Service) Delete(ctx context.Context, ownerID, expenseID string) error {
	found, err := s.repo.Delete(ctx, expenseID, ownerID)
	if err != nil {
		slog.Error("expense delete failed",
			slog.String("owner_id", ownerID),
			slog.String("expense_id", expenseID),
			slog.String("error", err.Error()),
		)
		return model.NewQueryFailedError()
	}
	if !found {
		return model.NewExpenseNotFoundError(expenseID)
	}

	s.invalidateOwner(ownerID)

	return nil
}

// Get はIDと所有者IDで支出を1件取得する。
func (s *Service) Get(ctx context.Context, ownerID, expenseID string) (*model.Expense, error) {
	expense, err := s.repo.FindByIDAndOwner(ctx, expenseID, ownerID)
	if err != nil {
		slog.Error("expense get failed",
			slog.String("owner_id", ownerID),
			slog.String("expense_id", expenseID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewQueryFailedError()
	}
	if expense == nil {
		return nil, model.NewExpenseNotFoundError(expenseID)
	}
	return expense, nil
}

// invalidateOwner は所有者のキャッシュエントリをすべて削除する。
// 変更成功時に同期的に呼ばれ、同一プロセス内のread-after-write
// 一貫性を保証する。
func (s *Service) invalidateOwner(ownerID string) {
	if s.cache == nil {
		return
	}
	removed := s.cache.InvalidateOwner(ownerID)
	s.metrics.RecordCacheInvalidation(removed)
}

// normalizeDate は日付を00:00 UTCに正規化する。
// 日付のみが意味を持つフィールドのため、時刻成分を落とす。
func normalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
