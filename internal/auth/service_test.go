package auth

import (
	"context"
	"regexp"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/kakeibo/internal/model"
	"github.com/hitoshi/kakeibo/internal/repository"
)

// mockUserRepo はfnフィールドで挙動を差し替えるモック。
type mockUserRepo struct {
	createFn         func(ctx context.Context, user *model.User) error
	findByIDFn       func(ctx context.Context, id string) (*model.User, error)
	findByEmailFn    func(ctx context.Context, email string) (*model.User, error)
	updateNameFn     func(ctx context.Context, id, name string) error
	setResetOTPFn    func(ctx context.Context, id, otp string, expires time.Time) error
	updatePasswordFn func(ctx context.Context, id, passwordHash string) error
	deleteByIDFn     func(ctx context.Context, id string) error
}

var _ repository.UserRepository = (*mockUserRepo)(nil)

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) UpdateName(ctx context.Context, id, name string) error {
	if m.updateNameFn != nil {
		return m.updateNameFn(ctx, id, name)
	}
	return nil
}

func (m *mockUserRepo) SetResetOTP(ctx context.Context, id, otp string, expires time.Time) error {
	if m.setResetOTPFn != nil {
		return m.setResetOTPFn(ctx, id, otp, expires)
	}
	return nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if m.updatePasswordFn != nil {
		return m.updatePasswordFn(ctx, id, passwordHash)
	}
	return nil
}

func (m *mockUserRepo) ClearExpiredResetOTPs(ctx context.Context) (int64, error) {
	return 0, nil
}

func (m *mockUserRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

// mockSessionRepo はfnフィールドで挙動を差し替えるモック。
type mockSessionRepo struct {
	createFn         func(ctx context.Context, session *model.Session) error
	findByIDFn       func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn     func(ctx context.Context, id string) error
	deleteByUserIDFn func(ctx context.Context, userID string) error
}

var _ repository.SessionRepository = (*mockSessionRepo)(nil)

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if m.deleteByUserIDFn != nil {
		return m.deleteByUserIDFn(ctx, userID)
	}
	return nil
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

func testConfig() ServiceConfig {
	return ServiceConfig{
		SessionMaxAge: 86400,
		OTPTTL:        10 * time.Minute,
	}
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("パスワードハッシュの生成に失敗: %v", err)
	}
	return string(hash)
}

func TestSignup(t *testing.T) {
	var created *model.User
	userRepo := &mockUserRepo{
		createFn: func(ctx context.Context, user *model.User) error {
			created = user
			return nil
		},
	}
	sessionRepo := &mockSessionRepo{}
	service := NewService(userRepo, sessionRepo, testConfig())

	user, session, err := service.Signup(context.Background(), "hanako@example.com", "花子", "secret-password")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if user.ID == "" {
		t.Error("ユーザーIDが採番されていない")
	}
	if created == nil {
		t.Fatal("ユーザーが永続化されていない")
	}
	if created.PasswordHash == "secret-password" {
		t.Error("パスワードが平文のまま保存されている")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(created.PasswordHash), []byte("secret-password")); err != nil {
		t.Errorf("パスワードハッシュが検証できない: %v", err)
	}
	if session == nil || session.ID == "" {
		t.Error("セッションが発行されていない")
	}
}

func TestSignup_EmailTaken(t *testing.T) {
	userRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: "existing", Email: email}, nil
		},
	}
	service := NewService(userRepo, &mockSessionRepo{}, testConfig())

	_, _, err := service.Signup(context.Background(), "taken@example.com", "太郎", "password")
	if err == nil {
		t.Fatal("エラーが返るべき")
	}
	apiErr, ok := err.(*model.APIError)
	if !ok || apiErr.Code != model.ErrCodeEmailTaken {
		t.Errorf("EMAIL_TAKENが返るべき: %v", err)
	}
}

func TestLogin(t *testing.T) {
	hash := hashPassword(t, "correct-password")
	userRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: "user-1", Email: email, PasswordHash: hash}, nil
		},
	}
	var savedSession *model.Session
	sessionRepo := &mockSessionRepo{
		createFn: func(ctx context.Context, session *model.Session) error {
			savedSession = session
			return nil
		},
	}
	service := NewService(userRepo, sessionRepo, testConfig())

	user, session, err := service.Login(context.Background(), "hanako@example.com", "correct-password")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("ユーザーIDが異なる: got %s", user.ID)
	}
	if savedSession == nil {
		t.Fatal("セッションが永続化されていない")
	}
	if len(session.ID) != 64 {
		t.Errorf("セッションIDは32バイトのhexであるべき: len=%d", len(session.ID))
	}
	if session.UserID != "user-1" {
		t.Errorf("セッションのユーザーIDが異なる: got %s", session.UserID)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	hash := hashPassword(t, "correct-password")

	tests := []struct {
		name          string
		findByEmailFn func(ctx context.Context, email string) (*model.User, error)
		password      string
	}{
		{
			name: "未登録メールアドレス",
			findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
				return nil, nil
			},
			password: "correct-password",
		},
		{
			name: "パスワード不一致",
			findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
				return &model.User{ID: "user-1", PasswordHash: hash}, nil
			},
			password: "wrong-password",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userRepo := &mockUserRepo{findByEmailFn: tt.findByEmailFn}
			service := NewService(userRepo, &mockSessionRepo{}, testConfig())

			_, _, err := service.Login(context.Background(), "someone@example.com", tt.password)
			if err == nil {
				t.Fatal("エラーが返るべき")
			}
			// どちらのケースも同一のエラーコードを返す
			apiErr, ok := err.(*model.APIError)
			if !ok || apiErr.Code != model.ErrCodeInvalidCredentials {
				t.Errorf("INVALID_CREDENTIALSが返るべき: %v", err)
			}
		})
	}
}

func TestGetCurrentUser(t *testing.T) {
	sessionRepo := &mockSessionRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return &model.Session{ID: id, UserID: "user-1", ExpiresAt: time.Now().Add(time.Hour)}, nil
		},
	}
	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Email: "hanako@example.com"}, nil
		},
	}
	service := NewService(userRepo, sessionRepo, testConfig())

	user, err := service.GetCurrentUser(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if user.ID != "user-1" {
		t.Errorf("ユーザーIDが異なる: got %s", user.ID)
	}
}

func TestGetCurrentUser_Unauthorized(t *testing.T) {
	tests := []struct {
		name        string
		sessionID   string
		sessionRepo *mockSessionRepo
	}{
		{
			name:        "セッションIDなし",
			sessionID:   "",
			sessionRepo: &mockSessionRepo{},
		},
		{
			name:      "セッションが存在しないか期限切れ",
			sessionID: "expired-session",
			sessionRepo: &mockSessionRepo{
				findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
					return nil, nil
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := NewService(&mockUserRepo{}, tt.sessionRepo, testConfig())

			_, err := service.GetCurrentUser(context.Background(), tt.sessionID)
			if err == nil {
				t.Fatal("エラーが返るべき")
			}
			apiErr, ok := err.(*model.APIError)
			if !ok || apiErr.Code != model.ErrCodeUnauthorized {
				t.Errorf("UNAUTHORIZEDが返るべき: %v", err)
			}
		})
	}
}

func TestForgotPassword(t *testing.T) {
	var gotOTP string
	var gotExpires time.Time
	userRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{ID: "user-1", Email: email}, nil
		},
		setResetOTPFn: func(ctx context.Context, id, otp string, expires time.Time) error {
			gotOTP = otp
			gotExpires = expires
			return nil
		},
	}
	service := NewService(userRepo, &mockSessionRepo{}, testConfig())

	before := time.Now()
	if err := service.ForgotPassword(context.Background(), "hanako@example.com"); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}

	if !regexp.MustCompile(`^\d{6}$`).MatchString(gotOTP) {
		t.Errorf("リセットコードは6桁の数字であるべき: %q", gotOTP)
	}
	wantExpires := before.Add(10 * time.Minute)
	if gotExpires.Before(wantExpires.Add(-time.Second)) || gotExpires.After(wantExpires.Add(time.Minute)) {
		t.Errorf("有効期限が設定と一致しない: %v", gotExpires)
	}
}

func TestForgotPassword_UnknownEmail(t *testing.T) {
	otpSet := false
	userRepo := &mockUserRepo{
		setResetOTPFn: func(ctx context.Context, id, otp string, expires time.Time) error {
			otpSet = true
			return nil
		},
	}
	service := NewService(userRepo, &mockSessionRepo{}, testConfig())

	// 未登録メールアドレスでも成功として扱う（存在有無を漏らさない）
	if err := service.ForgotPassword(context.Background(), "unknown@example.com"); err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if otpSet {
		t.Error("未登録メールアドレスにリセットコードを設定してはいけない")
	}
}

func TestResetPassword(t *testing.T) {
	otp := "123456"
	expires := time.Now().Add(5 * time.Minute)
	oldHash := hashPassword(t, "old-password")

	var newHash string
	userRepo := &mockUserRepo{
		findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
			return &model.User{
				ID:              "user-1",
				Email:           email,
				PasswordHash:    oldHash,
				ResetOTP:        &otp,
				ResetOTPExpires: &expires,
			}, nil
		},
		updatePasswordFn: func(ctx context.Context, id, passwordHash string) error {
			newHash = passwordHash
			return nil
		},
	}
	sessionsDeleted := false
	sessionRepo := &mockSessionRepo{
		deleteByUserIDFn: func(ctx context.Context, userID string) error {
			sessionsDeleted = true
			return nil
		},
	}
	service := NewService(userRepo, sessionRepo, testConfig())

	err := service.ResetPassword(context.Background(), "hanako@example.com", "123456", "new-password")
	if err != nil {
		t.Fatalf("予期しないエラー: %v", err)
	}
	if newHash == "" {
		t.Fatal("パスワードが更新されていない")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(newHash), []byte("new-password")); err != nil {
		t.Errorf("新しいパスワードハッシュが検証できない: %v", err)
	}
	if !sessionsDeleted {
		t.Error("リセット成功時は既存セッションが破棄されるべき")
	}
}

func TestResetPassword_InvalidOTP(t *testing.T) {
	validOTP := "123456"
	validExpires := time.Now().Add(5 * time.Minute)
	expiredAt := time.Now().Add(-time.Minute)

	tests := []struct {
		name string
		user *model.User
		otp  string
	}{
		{
			name: "ユーザーが存在しない",
			user: nil,
			otp:  "123456",
		},
		{
			name: "リセットコード未設定",
			user: &model.User{ID: "user-1"},
			otp:  "123456",
		},
		{
			name: "リセットコード期限切れ",
			user: &model.User{ID: "user-1", ResetOTP: &validOTP, ResetOTPExpires: &expiredAt},
			otp:  "123456",
		},
		{
			name: "リセットコード不一致",
			user: &model.User{ID: "user-1", ResetOTP: &validOTP, ResetOTPExpires: &validExpires},
			otp:  "654321",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updated := false
			userRepo := &mockUserRepo{
				findByEmailFn: func(ctx context.Context, email string) (*model.User, error) {
					return tt.user, nil
				},
				updatePasswordFn: func(ctx context.Context, id, passwordHash string) error {
					updated = true
					return nil
				},
			}
			service := NewService(userRepo, &mockSessionRepo{}, testConfig())

			err := service.ResetPassword(context.Background(), "hanako@example.com", tt.otp, "new-password")
			if err == nil {
				t.Fatal("エラーが返るべき")
			}
			apiErr, ok := err.(*model.APIError)
			if !ok || apiErr.Code != model.ErrCodeInvalidOTP {
				t.Errorf("INVALID_OTPが返るべき: %v", err)
			}
			if updated {
				t.Error("無効なコードでパスワードを更新してはいけない")
			}
		})
	}
}

func TestGenerateOTP(t *testing.T) {
	pattern := regexp.MustCompile(`^\d{6}$`)
	for i := 0; i < 20; i++ {
		otp, err := generateOTP()
		if err != nil {
			t.Fatalf("予期しないエラー: %v", err)
		}
		if !pattern.MatchString(otp) {
			t.Errorf("リセットコードは6桁の数字であるべき: %q", otp)
		}
	}
}
