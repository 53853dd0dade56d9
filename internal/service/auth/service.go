package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/das622/appointment-booking-api/internal/domain"
	"github.com/das622/appointment-booking-api/internal/service"
	"github.com/das622/appointment-booking-api/internal/store"
)

// ErrInvalidCredentials covers both unknown email and wrong password;
// callers are not told which.
var ErrInvalidCredentials = errors.New("invalid credentials")

func validationError(msg string) error {
	return service.NewValidationError(msg)
}

type Service struct {
	users    store.UserRepository
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

func NewService(users store.UserRepository, secret []byte, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 30 * time.Minute
	}
	return &Service{
		users:    users,
		secret:   secret,
		tokenTTL: tokenTTL,
		now:      time.Now,
	}
}

type RegisterInput struct {
	Email    string
	Password string
	Role     domain.Role
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.User{}, validationError("a valid email is required")
	}
	// bcrypt rejects inputs over 72 bytes.
	if len(in.Password) < 8 || len(in.Password) > 72 {
		return domain.User{}, validationError("password must be between 8 and 72 characters")
	}
	if !in.Role.Valid() {
		return domain.User{}, validationError("role must be provider or client")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return domain.User{}, err
	}

	return s.users.Create(ctx, domain.User{
		Email:        email,
		PasswordHash: string(hash),
		Role:         in.Role,
	})
}

// Login verifies the credentials and issues a signed access token.
func (s *Service) Login(ctx context.Context, email, password string) (string, domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", domain.User{}, ErrInvalidCredentials
		}
		return "", domain.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", domain.User{}, ErrInvalidCredentials
	}

	now := s.now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   user.ID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		RegisteredClaims: claims,
		Role:             string(user.Role),
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", domain.User{}, err
	}
	return signed, user, nil
}

func (s *Service) GetUser(ctx context.Context, userID uuid.UUID) (domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

type tokenClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}
