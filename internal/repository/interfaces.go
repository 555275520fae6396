// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/kakeibo/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// UpdateName は表示名を更新する。
	UpdateName(ctx context.Context, id, name string) error

	// SetResetOTP はパスワードリセットOTPと有効期限を設定する。
	// OTPと有効期限は常にペアで更新される。
	SetResetOTP(ctx context.Context, id, otp string, expires time.Time) error

	// UpdatePassword はパスワードハッシュを更新し、同一ステートメントで
	// リセットOTPをクリアする。
	UpdatePassword(ctx context.Context, id, passwordHash string) error

	// ClearExpiredResetOTPs は有効期限切れのリセットOTPを一括クリアし、
	// 対象件数を返す。メンテナンスジョブから呼ばれる。
	ClearExpiredResetOTPs(ctx context.Context) (int64, error)

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するsessions、expensesはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れセッションを一括削除し、削除件数を返す。
	// メンテナンスジョブから呼ばれる。
	DeleteExpired(ctx context.Context) (int64, error)
}

// ExpenseRepository は支出データの永続化インターフェース。
// すべての読み取りは所有者スコープで行い、他ユーザーの行を返さない。
type ExpenseRepository interface {
	// Create は支出を作成する。
	Create(ctx context.Context, expense *model.Expense) error

	// FindByIDAndOwner はIDと所有者IDで支出を取得する。
	// 所有者が一致しない場合も見つからない扱いでnilを返す。
	FindByIDAndOwner(ctx context.Context, id, ownerID string) (*model.Expense, error)

	// Update は支出を所有者スコープで上書き更新する。
	// 対象行が存在しない場合はfalseを返す。
	Update(ctx context.Context, expense *model.Expense) (bool, error)

	// Delete はIDと所有者IDで支出を削除する。
	// 対象行が存在しない場合はfalseを返す。
	Delete(ctx context.Context, id, ownerID string) (bool, error)

	// List はディスクリプタに従って支出を検索し、
	// ページ分の行とページネーション前の総件数を返す。
	// 所有者フィルタは無条件に適用される。
	List(ctx context.Context, q *model.ExpenseQuery) ([]*model.Expense, int, error)

	// SumByCategory は所有者のカテゴリごとの支出合計を返す。
	SumByCategory(ctx context.Context, ownerID string) ([]model.CategoryTotal, error)
}
