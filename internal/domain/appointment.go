package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type AppointmentStatus string

const (
	StatusBooked   AppointmentStatus = "booked"
	StatusCanceled AppointmentStatus = "canceled"
)

// Appointment is a committed booking. Status only ever moves booked→canceled;
// records are kept forever for history and canceled ones stop blocking
// availability.
type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID         uuid.UUID         `bun:"id,pk,type:uuid"`
	ProviderID uuid.UUID         `bun:"provider_id,notnull,type:uuid"`
	ClientID   uuid.UUID         `bun:"client_id,notnull,type:uuid"`
	Service    string            `bun:"service,notnull"`
	StartTime  time.Time         `bun:"start_time,notnull"`
	EndTime    time.Time         `bun:"end_time,notnull"`
	Status     AppointmentStatus `bun:"status,notnull"`
	CreatedAt  time.Time         `bun:"created_at,notnull"`
	UpdatedAt  time.Time         `bun:"updated_at,notnull"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.Status == "" {
			a.Status = StatusBooked
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

// CanCancel reports whether the caller is a party to the appointment.
func (a Appointment) CanCancel(caller Principal) bool {
	return caller.UserID == a.ClientID || caller.UserID == a.ProviderID
}

// IntervalOn projects the appointment onto date's minute-of-day grid, clamped
// to the day's bounds. ok is false when the appointment does not touch the
// date at all.
func (a Appointment) IntervalOn(date time.Time) (Interval, bool) {
	dayStart := DateOf(date)
	dayEnd := dayStart.Add(24 * time.Hour)
	if !a.StartTime.Before(dayEnd) || !a.EndTime.After(dayStart) {
		return Interval{}, false
	}

	start := 0
	if a.StartTime.After(dayStart) {
		start = MinuteOfDay(a.StartTime)
	}
	end := MinutesPerDay
	if a.EndTime.Before(dayEnd) {
		end = MinuteOfDay(a.EndTime)
	}
	return Interval{Start: start, End: end}, true
}

// BookedIntervalsOn projects booked appointments onto one date.
func BookedIntervalsOn(date time.Time, appts []Appointment) []Interval {
	out := make([]Interval, 0, len(appts))
	for _, a := range appts {
		if a.Status != StatusBooked {
			continue
		}
		if iv, ok := a.IntervalOn(date); ok {
			out = append(out, iv)
		}
	}
	return out
}
