package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/das622/appointment-booking-api/internal/domain"
)

type UserRepository interface {
	// Create returns ErrConflict when the email is already registered.
	Create(ctx context.Context, user domain.User) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, userID uuid.UUID) (domain.User, error)
}
