// Package maintenance は期限切れデータの定期削除ジョブを提供する。
// 期限切れセッションの削除と、有効期限を過ぎたパスワードリセットOTPの
// クリアをまとめて実行する。どちらも冪等な処理として設計されている。
package maintenance

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// SessionCleaner は期限切れセッションの一括削除インターフェース。
type SessionCleaner interface {
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// OTPCleaner は期限切れリセットOTPの一括クリアインターフェース。
type OTPCleaner interface {
	// ClearExpiredResetOTPs は期限切れOTPをクリアし、対象件数を返す。
	ClearExpiredResetOTPs(ctx context.Context) (int64, error)
}

// Job は期限切れセッションとリセットOTPの定期削除ジョブ。
// 片方が失敗してももう片方は実行し、エラーはまとめて返す。
type Job struct {
	sessions SessionCleaner
	users    OTPCleaner
	logger   *slog.Logger
}

// NewJob は新しいメンテナンスジョブを生成する。
func NewJob(sessions SessionCleaner, users OTPCleaner, logger *slog.Logger) *Job {
	return &Job{
		sessions: sessions,
		users:    users,
		logger:   logger,
	}
}

// Run は期限切れデータの削除を1回実行する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *Job) Run(ctx context.Context) error {
	start := time.Now()

	var errs []error

	sessionCount, err := j.sessions.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("期限切れセッションの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		errs = append(errs, err)
	}

	otpCount, err := j.users.ClearExpiredResetOTPs(ctx)
	if err != nil {
		j.logger.Error("期限切れリセットOTPのクリアに失敗しました",
			slog.String("error", err.Error()),
		)
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	duration := time.Since(start)
	j.logger.Info("メンテナンスジョブが完了しました",
		slog.Int64("expired_sessions", sessionCount),
		slog.Int64("cleared_otps", otpCount),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は指定間隔のティッカーでジョブを起動する。
// 起動直後に1回実行し、以降はコンテキストがキャンセルされるまで
// interval間隔で実行を継続する。
func (j *Job) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("メンテナンスジョブを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	if err := j.Run(ctx); err != nil {
		j.logger.Error("メンテナンスサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("メンテナンスジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("メンテナンスサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
