// Package model はドメインモデルを定義する。
package model

import "time"

// Expense はユーザーが記録した支出を表す。
// 金額は通貨非依存の符号付き整数（最小単位、例: 円やセント）で保持する。
type Expense struct {
	ID          string
	OwnerID     string
	AmountCents int64
	Category    string
	Description string
	Date        time.Time // 日付のみ意味を持つ（時刻は00:00 UTCに正規化）
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SortField は支出一覧のソート対象フィールドを表す。
// 許可リスト外の値をSQLに渡さないための閉じた列挙。
type SortField string

const (
	// SortFieldDate は日付でソートする（デフォルト）。
	SortFieldDate SortField = "date"
	// SortFieldCategory はカテゴリでソートする。
	SortFieldCategory SortField = "category"
	// SortFieldAmount は金額でソートする。
	SortFieldAmount SortField = "amount"
	// SortFieldDescription は説明文でソートする。
	SortFieldDescription SortField = "description"
)

// SortOrder はソート方向を表す。
type SortOrder string

const (
	// SortOrderAsc は昇順ソート。
	SortOrderAsc SortOrder = "asc"
	// SortOrderDesc は降順ソート（デフォルト）。
	SortOrderDesc SortOrder = "desc"
)

// ExpenseQuery は1回の支出検索の正規化済みディスクリプタを表す。
// リクエストパラメータと所有者IDのみで完全に決定され、
// サーバー側の隠れた状態には依存しない。
type ExpenseQuery struct {
	OwnerID   string
	Page      int // 1始まり
	Limit     int
	Category  string     // 空文字は全カテゴリ
	StartDate *time.Time // 含む
	EndDate   *time.Time // 含む
	SortBy    SortField
	Order     SortOrder
}

// Pagination はページネーションのメタデータを表す。
// Pages = ceil(Total/Limit)。Total=0のときPages=0。
type Pagination struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Pages int `json:"pages"`
}

// NewPagination はページネーションメタデータを計算する。
func NewPagination(total, page, limit int) Pagination {
	pages := 0
	if total > 0 && limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{
		Total: total,
		Page:  page,
		Limit: limit,
		Pages: pages,
	}
}

// ExpensePage は支出検索の1ページ分の結果を表す。
type ExpensePage struct {
	Expenses   []*Expense
	Pagination Pagination
}

// CategoryTotal はカテゴリごとの支出合計を表す。
type CategoryTotal struct {
	Category   string
	TotalCents int64
	Count      int
}
