// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// ResetOTPとResetOTPExpiresは必ず両方設定されるか両方nilになる。
// 有効期限を過ぎたOTPは未設定として扱う。
type User struct {
	ID              string
	Email           string
	Name            string
	PasswordHash    string
	ResetOTP        *string
	ResetOTPExpires *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasValidResetOTP は有効期限内のリセットOTPが設定されているかを返す。
func (u *User) HasValidResetOTP(now time.Time) bool {
	if u.ResetOTP == nil || u.ResetOTPExpires == nil {
		return false
	}
	return now.Before(*u.ResetOTPExpires)
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
