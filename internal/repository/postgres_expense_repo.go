package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/kakeibo/internal/model"
)

// PostgresExpenseRepo はPostgreSQLを使用した支出リポジトリ。
type PostgresExpenseRepo struct {
	db *sql.DB
}

// NewPostgresExpenseRepo はPostgresExpenseRepoを生成する。
func NewPostgresExpenseRepo(db *sql.DB) *PostgresExpenseRepo {
	return &PostgresExpenseRepo{db: db}
}

// sortColumns はSortFieldからSQLカラム名への閉じたマッピング。
// ソート指定は必ずこのマップを経由し、リクエスト由来の文字列を
// そのままSQLに連結することはない。
var sortColumns = map[model.SortField]string{
	model.SortFieldDate:        "date",
	model.SortFieldCategory:    "category",
	model.SortFieldAmount:      "amount_cents",
	model.SortFieldDescription: "description",
}

const expenseColumns = `id, owner_id, amount_cents, category, description, date, created_at, updated_at`

// Create は支出を作成する。
func (r *PostgresExpenseRepo) Create(ctx context.Context, expense *model.Expense) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (id, owner_id, amount_cents, category, description, date, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		expense.ID, expense.OwnerID, expense.AmountCents, expense.Category,
		expense.Description, expense.Date, expense.CreatedAt, expense.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("支出の作成に失敗しました: %w", err)
	}
	return nil
}

// FindByIDAndOwner はIDと所有者IDで支出を取得する。
// 所有者が一致しない場合も見つからない扱いでnilを返す。
func (r *PostgresExpenseRepo) FindByIDAndOwner(ctx context.Context, id, ownerID string) (*model.Expense, error) {
	expense := &model.Expense{}
	err := r.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	).Scan(
		&expense.ID, &expense.OwnerID, &expense.AmountCents, &expense.Category,
		&expense.Description, &expense.Date, &expense.CreatedAt, &expense.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("支出の取得に失敗しました: %w", err)
	}

	return expense, nil
}

// Update は支出を所有者スコープで上書き更新する。
// 対象行が存在しない場合はfalseを返す。
func (r *PostgresExpenseRepo) Update(ctx context.Context, expense *model.Expense) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET
		    amount_cents = $3, category = $4, description = $5, date = $6, updated_at = $7
		 WHERE id = $1 AND owner_id = $2`,
		expense.ID, expense.OwnerID, expense.AmountCents, expense.Category,
		expense.Description, expense.Date, expense.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("支出の更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("更新件数の取得に失敗しました: %w", err)
	}
	return rowsAffected > 0, nil
}

// Delete はIDと所有者IDで支出を削除する。
// 対象行が存在しない場合はfalseを返す。
func (r *PostgresExpenseRepo) Delete(ctx context.Context, id, ownerID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM expenses WHERE id = $1 AND owner_id = $2`,
		id, ownerID,
	)
	if err != nil {
		return false, fmt.Errorf("支出の削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return rowsAffected > 0, nil
}

// buildListConditions はディスクリプタからWHERE句と引数リストを構築する。
// 所有者フィルタ（$1）は無条件に先頭へ置き、カテゴリ・日付範囲は
// AND条件として追加する。
func buildListConditions(q *model.ExpenseQuery) (string, []interface{}) {
	conditions := []string{"owner_id = $1"}
	args := []interface{}{q.OwnerID}
	argIndex := 2

	if q.Category != "" {
		conditions = append(conditions, fmt.Sprintf("category = $%d", argIndex))
		args = append(args, q.Category)
		argIndex++
	}
	if q.StartDate != nil {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", argIndex))
		args = append(args, *q.StartDate)
		argIndex++
	}
	if q.EndDate != nil {
		conditions = append(conditions, fmt.Sprintf("date <= $%d", argIndex))
		args = append(args, *q.EndDate)
		argIndex++
	}

	return strings.Join(conditions, " AND "), args
}

// List はディスクリプタに従って支出を検索し、ページ分の行と
// ページネーション前の総件数を返す。
// 総件数を先に数えた上で、OFFSET (page-1)*limit / LIMIT limit で
// 1ページ分のみを取得する。
func (r *PostgresExpenseRepo) List(ctx context.Context, q *model.ExpenseQuery) ([]*model.Expense, int, error) {
	where, args := buildListConditions(q)

	// 1. ページネーション前の総件数
	var total int
	countQuery := `SELECT count(*) FROM expenses WHERE ` + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("支出件数の取得に失敗しました: %w", err)
	}

	// 2. 1ページ分の取得
	column, ok := sortColumns[q.SortBy]
	if !ok {
		// ディスクリプタはQuery Builderで正規化済みだが、二重の防御として
		// 未知のフィールドはデフォルトに落とす
		column = sortColumns[model.SortFieldDate]
	}
	direction := "DESC"
	if q.Order == model.SortOrderAsc {
		direction = "ASC"
	}

	offset := (q.Page - 1) * q.Limit
	listQuery := fmt.Sprintf(
		`SELECT `+expenseColumns+` FROM expenses WHERE %s ORDER BY %s %s, id LIMIT $%d OFFSET $%d`,
		where, column, direction, len(args)+1, len(args)+2,
	)
	args = append(args, q.Limit, offset)

	rows, err := r.db.QueryContext(ctx, listQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("支出一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var expenses []*model.Expense
	for rows.Next() {
		expense := &model.Expense{}
		if err := rows.Scan(
			&expense.ID, &expense.OwnerID, &expense.AmountCents, &expense.Category,
			&expense.Description, &expense.Date, &expense.CreatedAt, &expense.UpdatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("支出行の読み取りに失敗しました: %w", err)
		}
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("支出一覧の走査に失敗しました: %w", err)
	}

	return expenses, total, nil
}

// SumByCategory は所有者のカテゴリごとの支出合計を返す。
func (r *PostgresExpenseRepo) SumByCategory(ctx context.Context, ownerID string) ([]model.CategoryTotal, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT category, COALESCE(sum(amount_cents), 0), count(*)
		 FROM expenses
		 WHERE owner_id = $1
		 GROUP BY category
		 ORDER BY sum(amount_cents) DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("カテゴリ別集計の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var totals []model.CategoryTotal
	for rows.Next() {
		var t model.CategoryTotal
		if err := rows.Scan(&t.Category, &t.TotalCents, &t.Count); err != nil {
			return nil, fmt.Errorf("カテゴリ別集計行の読み取りに失敗しました: %w", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("カテゴリ別集計の走査に失敗しました: %w", err)
	}

	return totals, nil
}

// compile-time interface check
var _ ExpenseRepository = (*PostgresExpenseRepo)(nil)
