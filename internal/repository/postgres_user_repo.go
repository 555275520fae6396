package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/kakeibo/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

const userColumns = `id, email, name, password_hash, reset_otp, reset_otp_expires, created_at, updated_at`

// scanUser は1行をmodel.Userに読み取る。
func scanUser(row interface {
	Scan(dest ...interface{}) error
}) (*model.User, error) {
	user := &model.User{}
	var resetOTP sql.NullString
	var resetOTPExpires sql.NullTime

	err := row.Scan(
		&user.ID, &user.Email, &user.Name, &user.PasswordHash,
		&resetOTP, &resetOTPExpires, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if resetOTP.Valid {
		user.ResetOTP = &resetOTP.String
	}
	if resetOTPExpires.Valid {
		user.ResetOTPExpires = &resetOTPExpires.Time
	}

	return user, nil
}

// Create はユーザーを作成する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, password_hash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.Email, user.Name, user.PasswordHash, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("メールアドレスによるユーザー検索に失敗しました: %w", err)
	}
	return user, nil
}

// UpdateName は表示名を更新する。
func (r *PostgresUserRepo) UpdateName(ctx context.Context, id, name string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET name = $2, updated_at = now() WHERE id = $1`,
		id, name,
	)
	if err != nil {
		return fmt.Errorf("表示名の更新に失敗しました: %w", err)
	}
	return nil
}

// SetResetOTP はパスワードリセットOTPと有効期限を設定する。
func (r *PostgresUserRepo) SetResetOTP(ctx context.Context, id, otp string, expires time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET reset_otp = $2, reset_otp_expires = $3, updated_at = now()
		 WHERE id = $1`,
		id, otp, expires,
	)
	if err != nil {
		return fmt.Errorf("リセットOTPの設定に失敗しました: %w", err)
	}
	return nil
}

// UpdatePassword はパスワードハッシュを更新し、同一ステートメントで
// リセットOTPをクリアする。
func (r *PostgresUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, reset_otp = NULL, reset_otp_expires = NULL,
		        updated_at = now()
		 WHERE id = $1`,
		id, passwordHash,
	)
	if err != nil {
		return fmt.Errorf("パスワードの更新に失敗しました: %w", err)
	}
	return nil
}

// ClearExpiredResetOTPs は有効期限切れのリセットOTPを一括クリアし、対象件数を返す。
func (r *PostgresUserRepo) ClearExpiredResetOTPs(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET reset_otp = NULL, reset_otp_expires = NULL
		 WHERE reset_otp_expires IS NOT NULL AND reset_otp_expires < now()`,
	)
	if err != nil {
		return 0, fmt.Errorf("期限切れOTPのクリアに失敗しました: %w", err)
	}
	cleared, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("対象件数の取得に失敗しました: %w", err)
	}
	return cleared, nil
}

// DeleteByID は指定IDのユーザーを削除する。
// 関連するsessions、expensesはCASCADE削除される。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("user not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
