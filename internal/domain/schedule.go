package domain

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ScheduleWindow is one open interval of a provider's recurring weekly
// schedule. A provider owns zero or more windows per weekday; together they
// form the weekly schedule, replaced as a whole.
type ScheduleWindow struct {
	bun.BaseModel `bun:"table:schedule_windows"`

	ID          uuid.UUID    `bun:"id,pk,type:uuid"`
	ProviderID  uuid.UUID    `bun:"provider_id,notnull,type:uuid"`
	Weekday     time.Weekday `bun:"weekday,notnull"`
	StartMinute int          `bun:"start_minute,notnull"`
	EndMinute   int          `bun:"end_minute,notnull"`
	CreatedAt   time.Time    `bun:"created_at,notnull"`
}

func (w *ScheduleWindow) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	if _, ok := query.(*bun.InsertQuery); ok {
		if w.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			w.ID = id
		}
		if w.CreatedAt.IsZero() {
			w.CreatedAt = time.Now().UTC()
		}
	}
	return nil
}

func (w ScheduleWindow) Interval() Interval {
	return Interval{Start: w.StartMinute, End: w.EndMinute}
}

// WeeklySchedule maps each weekday to its open windows.
type WeeklySchedule map[time.Weekday][]Interval

// Normalize sorts each weekday's windows and enforces the schedule
// invariants: boundaries inside the day and aligned to the slot granularity,
// start before end, no overlapping windows on a weekday. Touching windows are
// allowed (half-open).
func (s WeeklySchedule) Normalize(granularity int) error {
	for wd, windows := range s {
		if wd < time.Sunday || wd > time.Saturday {
			return fmt.Errorf("invalid weekday %d", wd)
		}
		sorted := make([]Interval, len(windows))
		copy(sorted, windows)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

		for i, iv := range sorted {
			if iv.Start < 0 || iv.End > MinutesPerDay {
				return fmt.Errorf("%s window %d outside day bounds", wd, i)
			}
			if iv.Empty() {
				return fmt.Errorf("%s window %d start must be before end", wd, i)
			}
			if iv.Start%granularity != 0 || iv.End%granularity != 0 {
				return fmt.Errorf("%s window %d not aligned to %d-minute grid", wd, i, granularity)
			}
			if i > 0 && sorted[i-1].End > iv.Start {
				return fmt.Errorf("%s windows %d and %d overlap", wd, i-1, i)
			}
		}
		s[wd] = sorted
	}
	return nil
}

// Windows returns the weekday's open windows, sorted. Nil when not working
// that day.
func (s WeeklySchedule) Windows(wd time.Weekday) []Interval {
	return s[wd]
}
