// Package query はリクエストパラメータから正規化済み検索ディスクリプタを構築する。
package query

import (
	"net/url"
	"strconv"
	"time"

	"github.com/hitoshi/kakeibo/internal/model"
)

// dateLayout はstartDate/endDateパラメータの日付フォーマット。
const dateLayout = "2006-01-02"

// Options はエンドポイントごとのビルダー設定。
type Options struct {
	DefaultLimit int // limit未指定時のページサイズ
	MaxLimit     int // limitの上限（キャッシュエントリサイズとクエリコストを制限する）
}

// allowedSortFields はソート対象フィールドの許可リスト。
// 許可リスト外の値はデフォルト（date）にフォールバックし、
// 生の文字列をSQLに流さない。
var allowedSortFields = map[model.SortField]bool{
	model.SortFieldDate:        true,
	model.SortFieldCategory:    true,
	model.SortFieldAmount:      true,
	model.SortFieldDescription: true,
}

// Build は未検証のリクエストパラメータからExpenseQueryを構築する。
// 純粋な変換であり副作用を持たない。数値・日付の不正入力は
// 問題フィールドを特定したバリデーションエラーを返す。
func Build(ownerID string, params url.Values, opts Options) (*model.ExpenseQuery, error) {
	q := &model.ExpenseQuery{
		OwnerID: ownerID,
		Page:    1,
		Limit:   opts.DefaultLimit,
		SortBy:  model.SortFieldDate,
		Order:   model.SortOrderDesc,
	}

	if v := params.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return nil, model.NewInvalidParamError("page", "1以上の整数を指定してください")
		}
		q.Page = page
	}

	if v := params.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 {
			return nil, model.NewInvalidParamError("limit", "1以上の整数を指定してください")
		}
		if limit > opts.MaxLimit {
			limit = opts.MaxLimit
		}
		q.Limit = limit
	}

	// カテゴリは自由形式のラベルなのでそのまま通す。空は全カテゴリ。
	q.Category = params.Get("category")

	if v := params.Get("startDate"); v != "" {
		d, err := time.Parse(dateLayout, v)
		if err != nil {
			return nil, model.NewInvalidParamError("startDate", "YYYY-MM-DD形式で指定してください")
		}
		q.StartDate = &d
	}

	if v := params.Get("endDate"); v != "" {
		d, err := time.Parse(dateLayout, v)
		if err != nil {
			return nil, model.NewInvalidParamError("endDate", "YYYY-MM-DD形式で指定してください")
		}
		q.EndDate = &d
	}

	if v := params.Get("sortBy"); v != "" {
		field := model.SortField(v)
		if allowedSortFields[field] {
			q.SortBy = field
		}
		// 許可リスト外はデフォルトのままにする（エラーにはしない）
	}

	if v := params.Get("order"); v != "" {
		switch model.SortOrder(v) {
		case model.SortOrderAsc:
			q.Order = model.SortOrderAsc
		case model.SortOrderDesc:
			q.Order = model.SortOrderDesc
		default:
			return nil, model.NewInvalidParamError("order", "ascまたはdescを指定してください")
		}
	}

	return q, nil
}
