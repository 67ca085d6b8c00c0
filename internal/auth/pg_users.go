package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PGUsers struct{ DB *pgxpool.Pool }

var _ UserStore = (*PGUsers)(nil)

func (r *PGUsers) CreateUser(ctx context.Context, u *User) error {
	err := r.DB.QueryRow(ctx, `
		INSERT INTO users(id, email, name, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		u.ID, strings.ToLower(u.Email), u.Name, u.PasswordHash, u.Role,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrEmailTaken
	}
	return err
}

func (r *PGUsers) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	return r.getOne(ctx, `WHERE email=$1`, strings.ToLower(email))
}

func (r *PGUsers) GetUserByID(ctx context.Context, id string) (*User, error) {
	if !validID(id) {
		return nil, ErrUserNotFound
	}
	return r.getOne(ctx, `WHERE id=$1`, id)
}

func (r *PGUsers) getOne(ctx context.Context, where string, arg any) (*User, error) {
	var u User
	err := r.DB.QueryRow(ctx, `
		SELECT id, email, name, password_hash, role, created_at, updated_at
		FROM users `+where, arg).
		Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *PGUsers) UpdatePassword(ctx context.Context, id, hash string) error {
	if !validID(id) {
		return ErrUserNotFound
	}
	ct, err := r.DB.Exec(ctx, `UPDATE users SET password_hash=$2, updated_at=now() WHERE id=$1`, id, hash)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrUserNotFound
	}
	return nil
}

func (r *PGUsers) UpdateRole(ctx context.Context, id string, role Role) error {
	if !validID(id) {
		return ErrUserNotFound
	}
	ct, err := r.DB.Exec(ctx, `UPDATE users SET role=$2, updated_at=now() WHERE id=$1`, id, role)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrUserNotFound
	}
	return nil
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
