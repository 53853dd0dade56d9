package http

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/das622/appointment-booking-api/internal/domain"
	"github.com/das622/appointment-booking-api/internal/service"
	"github.com/das622/appointment-booking-api/internal/service/auth"
	"github.com/das622/appointment-booking-api/internal/service/booking"
	"github.com/das622/appointment-booking-api/internal/store"
)

type authService interface {
	Register(ctx context.Context, in auth.RegisterInput) (domain.User, error)
	Login(ctx context.Context, email, password string) (string, domain.User, error)
	GetUser(ctx context.Context, userID uuid.UUID) (domain.User, error)
}

type bookingService interface {
	ComputeAvailability(ctx context.Context, providerID uuid.UUID, date time.Time) ([]domain.Slot, error)
	Book(ctx context.Context, in booking.BookInput) (domain.Appointment, error)
	Cancel(ctx context.Context, caller domain.Principal, appointmentID uuid.UUID) (domain.Appointment, error)
	SetSchedule(ctx context.Context, providerID uuid.UUID, sched domain.WeeklySchedule) ([]domain.ScheduleWindow, error)
	GetSchedule(ctx context.Context, providerID uuid.UUID) (domain.WeeklySchedule, error)
	AddException(ctx context.Context, in booking.ExceptionInput) (domain.Exception, error)
	ListProviderAppointments(ctx context.Context, providerID uuid.UUID, status string, date *time.Time) ([]domain.Appointment, error)
	ListClientAppointments(ctx context.Context, clientID uuid.UUID, status string) ([]domain.Appointment, error)
}

type Server struct {
	app     *fiber.App
	log     *slog.Logger
	auth    authService
	booking bookingService
	db      *bun.DB
}

func NewServer(jwtSecret []byte, authSvc authService, bookingSvc bookingService, db *bun.DB, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		app:     fiber.New(fiber.Config{DisableStartupMessage: true}),
		log:     log.With(slog.String("component", "http")),
		auth:    authSvc,
		booking: bookingSvc,
		db:      db,
	}

	s.app.Use(cors.New(cors.Config{AllowOrigins: "*"}))

	s.app.Get("/healthz", s.handleHealth)
	s.app.Get("/services", s.handleListServices)

	s.app.Post("/auth/register", s.handleRegister)
	s.app.Post("/auth/login", s.handleLogin)

	authed := s.app.Group("", protected(jwtSecret))
	authed.Get("/me", s.handleMe)

	authed.Put("/providers/me/schedule", requireRole(domain.RoleProvider), s.handleSetSchedule)
	authed.Get("/providers/me/schedule", requireRole(domain.RoleProvider), s.handleGetSchedule)
	authed.Post("/providers/me/exceptions", requireRole(domain.RoleProvider), s.handleAddException)
	authed.Get("/providers/me/appointments", requireRole(domain.RoleProvider), s.handleListProviderAppointments)

	authed.Get("/providers/:providerID/availability", s.handleAvailability)
	authed.Post("/providers/:providerID/appointments", requireRole(domain.RoleClient), s.handleClientBook)
	authed.Get("/clients/me/appointments", requireRole(domain.RoleClient), s.handleListClientAppointments)

	authed.Post("/appointments", requireRole(domain.RoleProvider), s.handleProviderBook)
	authed.Patch("/appointments/:appointmentID/cancel", s.handleCancel)

	return s
}

func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(timeout time.Duration) error {
	return s.app.ShutdownWithTimeout(timeout)
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	if s.db != nil {
		if err := s.db.PingContext(c.Context()); err != nil {
			s.log.Error("health check failed", slog.Any("err", err))
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded"})
		}
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// respondError maps every expected rejection to a specific status and
// message; anything unrecognized is a 500 and gets logged.
func (s *Server) respondError(c *fiber.Ctx, err error) error {
	var vErr *service.ValidationError
	if errors.As(err, &vErr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": vErr.Error()})
	}

	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid credentials"})
	case errors.Is(err, domain.ErrNotConfigured):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "schedule not configured"})
	case errors.Is(err, domain.ErrUnknownService):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "service not available"})
	case errors.Is(err, domain.ErrMisalignedTime):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "time must align to the slot grid"})
	case errors.Is(err, domain.ErrPastTime):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "cannot book in the past"})
	case errors.Is(err, domain.ErrOutsideSchedule):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "outside working hours"})
	case errors.Is(err, domain.ErrBlockedByException):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "blocked by a schedule exception"})
	case errors.Is(err, domain.ErrSlotTaken):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "slot already taken"})
	case errors.Is(err, domain.ErrAlreadyCanceled):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "appointment already canceled"})
	case errors.Is(err, domain.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
	case errors.Is(err, store.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "conflicts with existing record"})
	case errors.Is(err, store.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	}

	s.log.Error("request failed", slog.Any("err", err), slog.String("path", c.Path()))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}
