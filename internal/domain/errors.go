package domain

import "errors"

// Booking rejections are expected outcomes, not failures. Each carries a
// distinct identity so callers can map it to a precise response; none of them
// should ever be collapsed into a generic error.
var (
	// ErrNotConfigured means the provider has never set a weekly schedule.
	// Distinct from "not working that day", which is an empty result.
	ErrNotConfigured = errors.New("provider schedule not configured")

	// ErrMisalignedTime means a requested time is not on the slot grid.
	ErrMisalignedTime = errors.New("time not aligned to slot granularity")

	// ErrPastTime means the requested start is before the current time.
	ErrPastTime = errors.New("start time is in the past")

	// ErrOutsideSchedule means the requested range is not fully covered by a
	// working window on that weekday.
	ErrOutsideSchedule = errors.New("outside working hours")

	// ErrBlockedByException means the requested range overlaps a day-off or
	// break exception on that date.
	ErrBlockedByException = errors.New("blocked by schedule exception")

	// ErrSlotTaken means the requested range overlaps an existing booked
	// appointment. Also the authoritative outcome of a lost commit race.
	ErrSlotTaken = errors.New("slot already taken")

	// ErrForbidden means the caller is neither party to the appointment.
	ErrForbidden = errors.New("forbidden")

	// ErrAlreadyCanceled means the appointment is in its terminal state.
	ErrAlreadyCanceled = errors.New("appointment already canceled")

	// ErrUnknownService means a booking named a service not in the catalog.
	ErrUnknownService = errors.New("unknown service")
)
