package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-event-seat-booking/internal/domain/user"
)

type userRow struct {
	ID        int64     `db:"id"`
	Email     string    `db:"email"`
	FirstName string    `db:"first_name"`
	LastName  string    `db:"last_name"`
	CreatedAt time.Time `db:"created_at"`
}

func (r *userRow) toEntity() *user.User {
	return &user.User{
		ID:        r.ID,
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		CreatedAt: r.CreatedAt,
	}
}

// UserRepository はユーザーリポジトリのPostgreSQL実装
type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*user.User, error) {
	return r.getOne(ctx, `SELECT id, email, first_name, last_name, created_at FROM users WHERE id = $1`, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.getOne(ctx, `SELECT id, email, first_name, last_name, created_at FROM users WHERE lower(email) = $1`, user.NormalizeEmail(email))
}

func (r *UserRepository) getOne(ctx context.Context, query string, arg any) (*user.User, error) {
	var row userRow
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrUserNotFound
		}
		return nil, fmt.Errorf("ユーザー取得に失敗しました: %w", err)
	}
	return row.toEntity(), nil
}

// Create はユーザーを登録する。大文字小文字だけが異なるメールアドレスは重複として扱う
func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	u.Email = strings.TrimSpace(u.Email)
	query := `
		INSERT INTO users (email, first_name, last_name, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	err := r.db.QueryRowContext(ctx, query, u.Email, u.FirstName, u.LastName, u.CreatedAt).Scan(&u.ID)
	if err != nil {
		if code, ok := pqCode(err); ok && code == codeUniqueViolation {
			return user.ErrEmailAlreadyTaken
		}
		return fmt.Errorf("ユーザー作成に失敗しました: %w", err)
	}
	return nil
}

var _ user.Repository = (*UserRepository)(nil)
