package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Role string

const (
	RoleProvider Role = "provider"
	RoleClient   Role = "client"
)

func (r Role) Valid() bool {
	return r == RoleProvider || r == RoleClient
}

type User struct {
	bun.BaseModel `bun:"table:users"`

	ID           uuid.UUID `bun:"id,pk,type:uuid"`
	Email        string    `bun:"email,notnull,unique"`
	PasswordHash string    `bun:"password_hash,notnull"`
	Role         Role      `bun:"role,notnull"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
	UpdatedAt    time.Time `bun:"updated_at,notnull"`
}

func (u *User) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if u.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			u.ID = id
		}
		if u.CreatedAt.IsZero() {
			u.CreatedAt = now
		}
		if u.UpdatedAt.IsZero() {
			u.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		u.UpdatedAt = now
	}
	return nil
}

// Principal is the authenticated identity attached to a request by the
// transport layer.
type Principal struct {
	UserID uuid.UUID
	Role   Role
}
