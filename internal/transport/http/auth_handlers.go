package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/das622/appointment-booking-api/internal/domain"
	"github.com/das622/appointment-booking-api/internal/service/auth"
	"github.com/das622/appointment-booking-api/internal/store"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{ID: u.ID.String(), Email: u.Email, Role: string(u.Role)}
}

func (s *Server) handleRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	user, err := s.auth.Register(c.Context(), auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Role:     domain.Role(req.Role),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "email already registered"})
		}
		return s.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(toUserResponse(user))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	token, _, err := s.auth.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return s.respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"access_token": token,
		"token_type":   "bearer",
	})
}

func (s *Server) handleMe(c *fiber.Ctx) error {
	p, ok := principalFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "authentication required"})
	}

	user, err := s.auth.GetUser(c.Context(), p.UserID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(toUserResponse(user))
}
