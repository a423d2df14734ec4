package repository

import (
	"context"
	"fmt"
	"strings"

	"parksync/internal/db"
)

type UserRepo struct {
	DB Querier
}

func NewUserRepo(q Querier) *UserRepo {
	return &UserRepo{DB: q}
}

func (r *UserRepo) Create(ctx context.Context, u *db.User) error {
	query := `
		INSERT INTO users (username, email, phone, password_hash, is_admin)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	err := r.DB.QueryRowContext(ctx, query,
		u.Username, strings.ToLower(u.Email), u.Phone, u.PasswordHash, u.IsAdmin,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating user: %w", translate(err))
	}
	return nil
}

const userColumns = `id, username, email, phone, password_hash, is_admin, created_at`

func (r *UserRepo) GetByID(ctx context.Context, id int64) (*db.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*db.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(email))
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*db.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *UserRepo) getOne(ctx context.Context, query string, arg any) (*db.User, error) {
	var u db.User
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(
		&u.ID, &u.Username, &u.Email, &u.Phone, &u.PasswordHash, &u.IsAdmin, &u.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("error querying user: %w", translate(err))
	}
	return &u, nil
}
