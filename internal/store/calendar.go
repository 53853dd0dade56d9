package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/das622/appointment-booking-api/internal/domain"
)

// CalendarReader reads the three inputs of a provider-day snapshot. Both the
// repository (plain reads) and CalendarTx (reads inside the provider's
// transaction) satisfy it, so the advisory pre-check and the authoritative
// commit-time check share one code path.
type CalendarReader interface {
	ScheduleWindows(ctx context.Context, providerID uuid.UUID) ([]domain.ScheduleWindow, error)
	ExceptionsOn(ctx context.Context, providerID uuid.UUID, date time.Time) ([]domain.Exception, error)
	BookedAppointmentsOn(ctx context.Context, providerID uuid.UUID, date time.Time) ([]domain.Appointment, error)
}

// CalendarTx is the write surface available inside a per-provider
// transaction. The transaction holds the provider's advisory lock, so
// everything read through it is stable until commit.
type CalendarTx interface {
	CalendarReader

	ReplaceScheduleWindows(ctx context.Context, providerID uuid.UUID, windows []domain.ScheduleWindow) error
	CreateException(ctx context.Context, ex domain.Exception) (domain.Exception, error)
	CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	GetAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error)
	UpdateAppointmentStatus(ctx context.Context, appointmentID uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error)
}
