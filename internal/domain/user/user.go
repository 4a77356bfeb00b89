package user

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	ErrUserNotFound      = errors.New("ユーザーが見つかりません")
	ErrEmailRequired     = errors.New("メールアドレスは必須です")
	ErrEmailAlreadyTaken = errors.New("メールアドレスは既に登録されています")
)

// User は予約者を表す。認証はこのサービスの外側で行われ、ここでは参照のみ
type User struct {
	ID        int64
	Email     string
	FirstName string
	LastName  string
	CreatedAt time.Time
}

// FullName は表示名を返す
func (u *User) FullName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// NormalizeEmail は照合用のキーを返す。メールアドレスは大文字小文字を区別せずに照合する
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Repository はユーザーリポジトリのインターフェース
type Repository interface {
	// GetByID はIDからユーザーを取得する
	GetByID(ctx context.Context, id int64) (*User, error)

	// GetByEmail はメールアドレスからユーザーを取得する（大文字小文字は区別しない）
	GetByEmail(ctx context.Context, email string) (*User, error)

	// Create はユーザーを登録する（開発用ストアとテスト用）
	Create(ctx context.Context, user *User) error
}
