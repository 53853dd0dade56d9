package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"github.com/das622/appointment-booking-api/internal/domain"
	"github.com/das622/appointment-booking-api/internal/store"
)

type UserRepo struct {
	db *bun.DB
}

func NewUserRepo(db *bun.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	m := user
	_, err := r.db.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.User{}, store.ErrConflict
		}
		return domain.User{}, err
	}
	return m, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	var u domain.User
	err := r.db.NewSelect().
		Model(&u).
		Where("email = ?", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, store.ErrNotFound
		}
		return domain.User{}, err
	}
	return u, nil
}

func (r *UserRepo) GetByID(ctx context.Context, userID uuid.UUID) (domain.User, error) {
	var u domain.User
	err := r.db.NewSelect().
		Model(&u).
		Where("id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, store.ErrNotFound
		}
		return domain.User{}, err
	}
	return u, nil
}
