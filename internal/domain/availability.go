package domain

import (
	"time"

	"github.com/google/uuid"
)

// Slot is a transient, bookable candidate interval of exactly one granularity
// width. Never persisted; recomputed per query.
type Slot struct {
	ProviderID uuid.UUID
	Date       time.Time
	Start      time.Time
	End        time.Time
	Available  bool
}

// DaySheet is a snapshot of everything that shapes one provider-day:
// the weekday's schedule windows, the date's exception intervals, and the
// booked appointment intervals, all as minute-of-day ranges. The availability
// and validation functions are pure over this snapshot.
type DaySheet struct {
	Windows []Interval
	Blocks  []Interval
	Booked  []Interval
}

// FreeWindows subtracts exceptions and booked appointments from the schedule
// windows. Empty on a non-working day.
func (d DaySheet) FreeWindows() []Interval {
	free := SubtractIntervals(d.Windows, d.Blocks)
	return SubtractIntervals(free, d.Booked)
}

// SlotIntervals discretizes the free windows onto the granularity grid.
// Slots are never merged back into ranges; each is independently bookable.
func (d DaySheet) SlotIntervals(granularity int) []Interval {
	return DiscretizeIntervals(d.FreeWindows(), granularity)
}

// BookingRequest is one candidate range checked against a DaySheet. The range
// need not equal a discretized slot; a client may request any aligned span.
type BookingRequest struct {
	Now         time.Time
	Start       time.Time
	End         time.Time
	Granularity int
}

// Validate applies the rejection checks in order, first failure winning:
// alignment, past start, schedule coverage, exceptions, existing bookings.
// The result is advisory under concurrency; the commit re-runs the same check
// inside the provider's transaction.
func (r BookingRequest) Validate(sheet DaySheet) error {
	if !r.Start.Before(r.End) {
		return ErrMisalignedTime
	}
	if !alignedToGrid(r.Start, r.Granularity) || !alignedToGrid(r.End, r.Granularity) {
		return ErrMisalignedTime
	}
	if r.Start.Before(r.Now) {
		return ErrPastTime
	}

	span, ok := r.spanInterval()
	if !ok {
		// Crosses midnight; no single-day window can cover it.
		return ErrOutsideSchedule
	}

	// Coalesce before checking coverage: a span crossing the shared boundary
	// of two touching windows is fully inside working hours.
	covered := false
	for _, w := range MergeIntervals(sheet.Windows) {
		if w.Contains(span) {
			covered = true
			break
		}
	}
	if !covered {
		return ErrOutsideSchedule
	}

	for _, b := range sheet.Blocks {
		if span.Overlaps(b) {
			return ErrBlockedByException
		}
	}
	for _, a := range sheet.Booked {
		if span.Overlaps(a) {
			return ErrSlotTaken
		}
	}
	return nil
}

// spanInterval projects [Start, End) onto Start's day as minutes. An end at
// exactly the following midnight maps to the end of Start's day.
func (r BookingRequest) spanInterval() (Interval, bool) {
	startMin := MinuteOfDay(r.Start)
	endMin := startMin + int(r.End.Sub(r.Start)/time.Minute)
	if endMin > MinutesPerDay {
		return Interval{}, false
	}
	return Interval{Start: startMin, End: endMin}, true
}

// MinuteOfDay returns t's offset from its UTC midnight in whole minutes.
func MinuteOfDay(t time.Time) int {
	t = t.UTC()
	return t.Hour()*60 + t.Minute()
}

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// AtMinute places a minute-of-day on a calendar date.
func AtMinute(date time.Time, minute int) time.Time {
	return DateOf(date).Add(time.Duration(minute) * time.Minute)
}

func alignedToGrid(t time.Time, granularity int) bool {
	if granularity <= 0 {
		return false
	}
	t = t.UTC()
	if t.Second() != 0 || t.Nanosecond() != 0 {
		return false
	}
	return MinuteOfDay(t)%granularity == 0
}

// BuildSlots lifts slot intervals onto a concrete provider and date.
func BuildSlots(providerID uuid.UUID, date time.Time, ivs []Interval) []Slot {
	out := make([]Slot, 0, len(ivs))
	for _, iv := range ivs {
		out = append(out, Slot{
			ProviderID: providerID,
			Date:       DateOf(date),
			Start:      AtMinute(date, iv.Start),
			End:        AtMinute(date, iv.End),
			Available:  true,
		})
	}
	return out
}
