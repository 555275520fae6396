// Package cache は支出検索結果の短命インプロセスキャッシュを提供する。
package cache

import (
	"strconv"
	"strings"

	"github.com/hitoshi/kakeibo/internal/model"
)

// keyDateLayout はキャッシュキー内の日付表現。
const keyDateLayout = "2006-01-02"

// QueryKey は所有者IDと正規化済みディスクリプタの全フィールドから
// 決定的なキャッシュキーを導出する。
// フィールド順は固定で、意味的に同一のリクエストは必ず同じキーに、
// どれか1つでも異なるパラメータは必ず別のキーになる。
// カテゴリは自由形式文字列のためクオートして区切り文字との衝突を防ぐ。
func QueryKey(q *model.ExpenseQuery) string {
	start := "-"
	if q.StartDate != nil {
		start = q.StartDate.Format(keyDateLayout)
	}
	end := "-"
	if q.EndDate != nil {
		end = q.EndDate.Format(keyDateLayout)
	}

	var b strings.Builder
	b.WriteString(q.OwnerID)
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(q.Page))
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(q.Limit))
	b.WriteByte('|')
	b.WriteString(strconv.Quote(q.Category))
	b.WriteByte('|')
	b.WriteString(start)
	b.WriteByte('|')
	b.WriteString(end)
	b.WriteByte('|')
	b.WriteString(string(q.SortBy))
	b.WriteByte('|')
	b.WriteString(string(q.Order))
	return b.String()
}

// DashboardKey はダッシュボード集計用のキャッシュキーを導出する。
// ダッシュボードはパラメータを持たないため所有者IDのみで決まる。
func DashboardKey(ownerID string) string {
	return "dashboard|" + ownerID
}
