package booking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/das622/appointment-booking-api/internal/domain"
	"github.com/das622/appointment-booking-api/internal/service"
	"github.com/das622/appointment-booking-api/internal/store"
)

func validationError(msg string) error {
	return service.NewValidationError(msg)
}

// AvailabilityCache memoizes computed slot lists per provider-day. A nil
// cache is fine; correctness never depends on it.
type AvailabilityCache interface {
	GetSlots(ctx context.Context, providerID uuid.UUID, date time.Time) ([]domain.Slot, bool)
	SetSlots(ctx context.Context, providerID uuid.UUID, date time.Time, slots []domain.Slot)
	InvalidateDay(ctx context.Context, providerID uuid.UUID, date time.Time)
	InvalidateProvider(ctx context.Context, providerID uuid.UUID)
}

type Service struct {
	repo        store.BookingRepository
	cache       AvailabilityCache
	granularity int
	now         func() time.Time
}

// NewService wires the booking pipeline. granularity is the global slot width
// in minutes; cache may be nil.
func NewService(repo store.BookingRepository, cache AvailabilityCache, granularity int) *Service {
	if granularity <= 0 {
		granularity = 15
	}
	return &Service{
		repo:        repo,
		cache:       cache,
		granularity: granularity,
		now:         time.Now,
	}
}

func (s *Service) Granularity() int {
	return s.granularity
}

// ComputeAvailability derives the bookable slots for one provider-day.
// Returns domain.ErrNotConfigured when the provider has no schedule at all;
// a configured provider who is off that weekday gets an empty list.
func (s *Service) ComputeAvailability(ctx context.Context, providerID uuid.UUID, date time.Time) ([]domain.Slot, error) {
	if providerID == uuid.Nil {
		return nil, validationError("provider_id is required")
	}
	date = domain.DateOf(date)

	if s.cache != nil {
		if slots, ok := s.cache.GetSlots(ctx, providerID, date); ok {
			return slots, nil
		}
	}

	sheet, configured, err := loadDaySheet(ctx, s.repo, providerID, date)
	if err != nil {
		return nil, err
	}
	if !configured {
		return nil, domain.ErrNotConfigured
	}

	slots := domain.BuildSlots(providerID, date, sheet.SlotIntervals(s.granularity))

	if s.cache != nil {
		s.cache.SetSlots(ctx, providerID, date, slots)
	}
	return slots, nil
}

type BookInput struct {
	ProviderID uuid.UUID
	ClientID   uuid.UUID
	Service    string
	StartTime  time.Time
	// EndTime is optional; when zero it is derived from the service duration.
	EndTime time.Time
}

// Book validates and commits one booking. The first validation pass is the
// fast advisory rejection; the decisive pass runs again inside the provider's
// transaction, so two racing requests for overlapping ranges cannot both
// commit. A race that slips past both is still caught by the appointments
// exclusion constraint.
func (s *Service) Book(ctx context.Context, in BookInput) (domain.Appointment, error) {
	if in.ProviderID == uuid.Nil {
		return domain.Appointment{}, validationError("provider_id is required")
	}
	if in.ClientID == uuid.Nil {
		return domain.Appointment{}, validationError("client_id is required")
	}
	if in.StartTime.IsZero() {
		return domain.Appointment{}, validationError("start_time is required")
	}

	duration, err := domain.ServiceDuration(in.Service)
	if err != nil {
		return domain.Appointment{}, err
	}

	start := in.StartTime.UTC()
	end := in.EndTime.UTC()
	if in.EndTime.IsZero() {
		end = start.Add(duration)
	}

	req := domain.BookingRequest{
		Now:         s.now().UTC(),
		Start:       start,
		End:         end,
		Granularity: s.granularity,
	}
	date := domain.DateOf(start)

	// Advisory pre-check without the provider lock.
	sheet, configured, err := loadDaySheet(ctx, s.repo, in.ProviderID, date)
	if err != nil {
		return domain.Appointment{}, err
	}
	if !configured {
		return domain.Appointment{}, domain.ErrNotConfigured
	}
	if err := req.Validate(sheet); err != nil {
		return domain.Appointment{}, err
	}

	var out domain.Appointment
	err = s.repo.InProviderTransaction(ctx, in.ProviderID, func(ctx context.Context, tx store.CalendarTx) error {
		sheet, configured, err := loadDaySheet(ctx, tx, in.ProviderID, date)
		if err != nil {
			return err
		}
		if !configured {
			return domain.ErrNotConfigured
		}
		if err := req.Validate(sheet); err != nil {
			return err
		}

		appt, err := tx.CreateAppointment(ctx, domain.Appointment{
			ProviderID: in.ProviderID,
			ClientID:   in.ClientID,
			Service:    in.Service,
			StartTime:  start,
			EndTime:    end,
			Status:     domain.StatusBooked,
		})
		if err != nil {
			return err
		}
		out = appt
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	if s.cache != nil {
		s.cache.InvalidateDay(ctx, in.ProviderID, date)
	}
	return out, nil
}

// Cancel moves a booked appointment to its terminal canceled state and frees
// the interval. Allowed only to the appointment's client or provider.
func (s *Service) Cancel(ctx context.Context, caller domain.Principal, appointmentID uuid.UUID) (domain.Appointment, error) {
	if appointmentID == uuid.Nil {
		return domain.Appointment{}, validationError("appointment_id is required")
	}

	appt, err := s.repo.GetAppointment(ctx, appointmentID)
	if err != nil {
		return domain.Appointment{}, err
	}

	var out domain.Appointment
	err = s.repo.InProviderTransaction(ctx, appt.ProviderID, func(ctx context.Context, tx store.CalendarTx) error {
		cur, err := tx.GetAppointment(ctx, appointmentID)
		if err != nil {
			return err
		}
		if cur.Status == domain.StatusCanceled {
			return domain.ErrAlreadyCanceled
		}
		if !cur.CanCancel(caller) {
			return domain.ErrForbidden
		}

		updated, err := tx.UpdateAppointmentStatus(ctx, appointmentID, domain.StatusCanceled)
		if err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	if s.cache != nil {
		s.cache.InvalidateDay(ctx, appt.ProviderID, domain.DateOf(appt.StartTime))
	}
	return out, nil
}

// SetSchedule replaces the provider's whole weekly schedule. Existing
// appointments are untouched; future availability changes immediately.
func (s *Service) SetSchedule(ctx context.Context, providerID uuid.UUID, sched domain.WeeklySchedule) ([]domain.ScheduleWindow, error) {
	if providerID == uuid.Nil {
		return nil, validationError("provider_id is required")
	}

	total := 0
	for _, windows := range sched {
		total += len(windows)
	}
	if total == 0 {
		return nil, validationError("at least one window is required")
	}
	if err := sched.Normalize(s.granularity); err != nil {
		return nil, validationError(err.Error())
	}

	rows := make([]domain.ScheduleWindow, 0, total)
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		for _, iv := range sched.Windows(wd) {
			rows = append(rows, domain.ScheduleWindow{
				ProviderID:  providerID,
				Weekday:     wd,
				StartMinute: iv.Start,
				EndMinute:   iv.End,
			})
		}
	}

	err := s.repo.InProviderTransaction(ctx, providerID, func(ctx context.Context, tx store.CalendarTx) error {
		return tx.ReplaceScheduleWindows(ctx, providerID, rows)
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.InvalidateProvider(ctx, providerID)
	}
	return rows, nil
}

// GetSchedule returns the provider's weekly schedule, or
// domain.ErrNotConfigured when none was ever set.
func (s *Service) GetSchedule(ctx context.Context, providerID uuid.UUID) (domain.WeeklySchedule, error) {
	if providerID == uuid.Nil {
		return nil, validationError("provider_id is required")
	}
	rows, err := s.repo.ScheduleWindows(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrNotConfigured
	}

	sched := make(domain.WeeklySchedule)
	for _, w := range rows {
		sched[w.Weekday] = append(sched[w.Weekday], w.Interval())
	}
	return sched, nil
}

type ExceptionInput struct {
	ProviderID uuid.UUID
	Date       time.Time
	Kind       domain.ExceptionKind
	// Interval is the blocked range for a break; ignored for a day_off.
	Interval domain.Interval
}

// AddException records a date-scoped subtraction. It is validated against the
// current schedule at creation time and never re-validated afterwards; a
// later schedule change leaves stale exceptions in place.
func (s *Service) AddException(ctx context.Context, in ExceptionInput) (domain.Exception, error) {
	if in.ProviderID == uuid.Nil {
		return domain.Exception{}, validationError("provider_id is required")
	}
	if in.Date.IsZero() {
		return domain.Exception{}, validationError("date is required")
	}
	if in.Kind != domain.ExceptionKindDayOff && in.Kind != domain.ExceptionKindBreak {
		return domain.Exception{}, validationError("kind must be day_off or break")
	}
	date := domain.DateOf(in.Date)

	var out domain.Exception
	err := s.repo.InProviderTransaction(ctx, in.ProviderID, func(ctx context.Context, tx store.CalendarTx) error {
		windows, err := tx.ScheduleWindows(ctx, in.ProviderID)
		if err != nil {
			return err
		}
		if len(windows) == 0 {
			return domain.ErrNotConfigured
		}

		dayWindows := windowsForWeekday(windows, date.Weekday())
		if len(dayWindows) == 0 {
			return domain.ErrOutsideSchedule
		}

		ex := domain.Exception{
			ProviderID: in.ProviderID,
			Date:       date,
			Kind:       in.Kind,
		}
		switch in.Kind {
		case domain.ExceptionKindDayOff:
			ex.StartMinute = 0
			ex.EndMinute = domain.MinutesPerDay
		case domain.ExceptionKindBreak:
			if in.Interval.Empty() {
				return validationError("break interval is required")
			}
			if in.Interval.Start%s.granularity != 0 || in.Interval.End%s.granularity != 0 {
				return domain.ErrMisalignedTime
			}
			inside := false
			for _, w := range dayWindows {
				if w.Contains(in.Interval) {
					inside = true
					break
				}
			}
			if !inside {
				return domain.ErrOutsideSchedule
			}
			ex.StartMinute = in.Interval.Start
			ex.EndMinute = in.Interval.End
		}

		existing, err := tx.ExceptionsOn(ctx, in.ProviderID, date)
		if err != nil {
			return err
		}
		for _, e := range existing {
			if e.Interval().Overlaps(ex.Interval()) {
				return store.ErrConflict
			}
		}

		created, err := tx.CreateException(ctx, ex)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return domain.Exception{}, err
	}

	if s.cache != nil {
		s.cache.InvalidateDay(ctx, in.ProviderID, date)
	}
	return out, nil
}

// ListProviderAppointments returns a provider's appointments, newest-start
// last. status is "booked", "canceled" or "all".
func (s *Service) ListProviderAppointments(ctx context.Context, providerID uuid.UUID, status string, date *time.Time) ([]domain.Appointment, error) {
	filter, err := statusFilter(status, date)
	if err != nil {
		return nil, err
	}
	return s.repo.ListProviderAppointments(ctx, providerID, filter)
}

func (s *Service) ListClientAppointments(ctx context.Context, clientID uuid.UUID, status string) ([]domain.Appointment, error) {
	filter, err := statusFilter(status, nil)
	if err != nil {
		return nil, err
	}
	return s.repo.ListClientAppointments(ctx, clientID, filter)
}

func statusFilter(status string, date *time.Time) (store.AppointmentFilter, error) {
	f := store.AppointmentFilter{Date: date}
	switch status {
	case "", "booked":
		f.Status = domain.StatusBooked
	case "canceled":
		f.Status = domain.StatusCanceled
	case "all":
	default:
		return store.AppointmentFilter{}, validationError("status must be booked, canceled or all")
	}
	return f, nil
}

// loadDaySheet assembles the snapshot the kernel computes over. configured is
// false when the provider has no schedule rows at all.
func loadDaySheet(ctx context.Context, r store.CalendarReader, providerID uuid.UUID, date time.Time) (domain.DaySheet, bool, error) {
	windows, err := r.ScheduleWindows(ctx, providerID)
	if err != nil {
		return domain.DaySheet{}, false, err
	}
	if len(windows) == 0 {
		return domain.DaySheet{}, false, nil
	}

	exs, err := r.ExceptionsOn(ctx, providerID, date)
	if err != nil {
		return domain.DaySheet{}, false, err
	}
	appts, err := r.BookedAppointmentsOn(ctx, providerID, date)
	if err != nil {
		return domain.DaySheet{}, false, err
	}

	return domain.DaySheet{
		Windows: windowsForWeekday(windows, date.Weekday()),
		Blocks:  domain.ExceptionIntervals(exs),
		Booked:  domain.BookedIntervalsOn(date, appts),
	}, true, nil
}

func windowsForWeekday(rows []domain.ScheduleWindow, wd time.Weekday) []domain.Interval {
	var out []domain.Interval
	for _, w := range rows {
		if w.Weekday == wd {
			out = append(out, w.Interval())
		}
	}
	return out
}
