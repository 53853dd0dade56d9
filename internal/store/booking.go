package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/das622/appointment-booking-api/internal/domain"
)

// AppointmentFilter narrows appointment listings. Zero value means all
// statuses, any date.
type AppointmentFilter struct {
	Status domain.AppointmentStatus
	Date   *time.Time
}

type BookingRepository interface {
	CalendarReader

	GetAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error)
	ListProviderAppointments(ctx context.Context, providerID uuid.UUID, filter AppointmentFilter) ([]domain.Appointment, error)
	ListClientAppointments(ctx context.Context, clientID uuid.UUID, filter AppointmentFilter) ([]domain.Appointment, error)

	// InProviderTransaction runs fn inside a transaction that serializes all
	// writes to one provider's calendar.
	InProviderTransaction(ctx context.Context, providerID uuid.UUID, fn func(ctx context.Context, tx CalendarTx) error) error
}
