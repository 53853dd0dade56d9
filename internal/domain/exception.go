package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ExceptionKind string

const (
	ExceptionKindDayOff ExceptionKind = "day_off"
	ExceptionKindBreak  ExceptionKind = "break"
)

// Exception is a one-off subtraction from a provider's recurring schedule,
// scoped to a single calendar date. A day_off zeroes the whole date; a break
// removes its literal interval. Exceptions are validated against the schedule
// when created and tolerated as stale if the schedule changes afterwards.
type Exception struct {
	bun.BaseModel `bun:"table:schedule_exceptions"`

	ID          uuid.UUID     `bun:"id,pk,type:uuid"`
	ProviderID  uuid.UUID     `bun:"provider_id,notnull,type:uuid"`
	Date        time.Time     `bun:"date,notnull,type:date"`
	Kind        ExceptionKind `bun:"kind,notnull"`
	StartMinute int           `bun:"start_minute,notnull"`
	EndMinute   int           `bun:"end_minute,notnull"`
	CreatedAt   time.Time     `bun:"created_at,notnull"`
}

func (e *Exception) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		if e.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			e.ID = id
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = time.Now().UTC()
		}
	}
	return nil
}

// Interval expands the exception to the minutes it removes. A day_off covers
// the whole day regardless of its stored bounds, so it keeps zeroing the date
// even after the schedule it was created against is replaced.
func (e Exception) Interval() Interval {
	if e.Kind == ExceptionKindDayOff {
		return Interval{Start: 0, End: MinutesPerDay}
	}
	return Interval{Start: e.StartMinute, End: e.EndMinute}
}

// ExceptionIntervals unions the exceptions on one date into sorted, disjoint
// blocked intervals.
func ExceptionIntervals(exs []Exception) []Interval {
	ivs := make([]Interval, 0, len(exs))
	for _, e := range exs {
		ivs = append(ivs, e.Interval())
	}
	return MergeIntervals(ivs)
}
