package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/das622/appointment-booking-api/internal/domain"
	"github.com/das622/appointment-booking-api/internal/service/booking"
)

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

type windowPayload struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type schedulePayload struct {
	Windows map[string][]windowPayload `json:"windows"`
}

func (s *Server) handleSetSchedule(c *fiber.Ctx) error {
	p, _ := principalFrom(c)

	var req schedulePayload
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	sched := make(domain.WeeklySchedule, len(req.Windows))
	for name, windows := range req.Windows {
		wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": fmt.Sprintf("unknown weekday %q", name)})
		}
		for _, w := range windows {
			iv, err := parseWindow(w)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
			}
			sched[wd] = append(sched[wd], iv)
		}
	}

	rows, err := s.booking.SetSchedule(c.Context(), p.UserID, sched)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(scheduleResponse(rows))
}

func (s *Server) handleGetSchedule(c *fiber.Ctx) error {
	p, _ := principalFrom(c)

	sched, err := s.booking.GetSchedule(c.Context(), p.UserID)
	if err != nil {
		return s.respondError(c, err)
	}

	out := schedulePayload{Windows: make(map[string][]windowPayload)}
	for name, wd := range weekdayNames {
		for _, iv := range sched.Windows(wd) {
			out.Windows[name] = append(out.Windows[name], windowPayload{
				Start: minuteClock(iv.Start),
				End:   minuteClock(iv.End),
			})
		}
	}
	return c.JSON(out)
}

type exceptionPayload struct {
	Date  string `json:"date"`
	Kind  string `json:"kind"`
	Start string `json:"start"`
	End   string `json:"end"`
}

func (s *Server) handleAddException(c *fiber.Ctx) error {
	p, _ := principalFrom(c)

	var req exceptionPayload
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "date must be YYYY-MM-DD"})
	}

	in := booking.ExceptionInput{
		ProviderID: p.UserID,
		Date:       date,
		Kind:       domain.ExceptionKind(req.Kind),
	}
	if in.Kind == domain.ExceptionKindBreak {
		iv, err := parseWindow(windowPayload{Start: req.Start, End: req.End})
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		in.Interval = iv
	}

	ex, err := s.booking.AddException(c.Context(), in)
	if err != nil {
		return s.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":    ex.ID.String(),
		"date":  ex.Date.Format("2006-01-02"),
		"kind":  string(ex.Kind),
		"start": minuteClock(ex.StartMinute),
		"end":   minuteClock(ex.EndMinute),
	})
}

type slotResponse struct {
	Start     time.Time `json:"start_time"`
	End       time.Time `json:"end_time"`
	Available bool      `json:"available"`
}

func (s *Server) handleAvailability(c *fiber.Ctx) error {
	providerID, err := uuid.Parse(c.Params("providerID"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "provider id must be a UUID"})
	}
	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "date query must be YYYY-MM-DD"})
	}

	slots, err := s.booking.ComputeAvailability(c.Context(), providerID, date)
	if err != nil {
		return s.respondError(c, err)
	}

	out := make([]slotResponse, 0, len(slots))
	for _, slot := range slots {
		out = append(out, slotResponse{Start: slot.Start, End: slot.End, Available: slot.Available})
	}
	return c.JSON(fiber.Map{
		"provider_id": providerID.String(),
		"date":        c.Query("date"),
		"slots":       out,
	})
}

type bookRequest struct {
	ClientID  string    `json:"client_id,omitempty"`
	Service   string    `json:"service"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time,omitempty"`
}

type appointmentResponse struct {
	ID         string    `json:"id"`
	ProviderID string    `json:"provider_id"`
	ClientID   string    `json:"client_id"`
	Service    string    `json:"service"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Status     string    `json:"status"`
}

func toAppointmentResponse(a domain.Appointment) appointmentResponse {
	return appointmentResponse{
		ID:         a.ID.String(),
		ProviderID: a.ProviderID.String(),
		ClientID:   a.ClientID.String(),
		Service:    a.Service,
		StartTime:  a.StartTime,
		EndTime:    a.EndTime,
		Status:     string(a.Status),
	}
}

// handleClientBook books the authenticated client into a provider's slot.
func (s *Server) handleClientBook(c *fiber.Ctx) error {
	p, _ := principalFrom(c)

	providerID, err := uuid.Parse(c.Params("providerID"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "provider id must be a UUID"})
	}

	var req bookRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	appt, err := s.booking.Book(c.Context(), booking.BookInput{
		ProviderID: providerID,
		ClientID:   p.UserID,
		Service:    req.Service,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toAppointmentResponse(appt))
}

// handleProviderBook lets a provider book a named client into their own
// calendar, e.g. for walk-ins taken over the phone.
func (s *Server) handleProviderBook(c *fiber.Ctx) error {
	p, _ := principalFrom(c)

	var req bookRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "client_id must be a UUID"})
	}

	appt, err := s.booking.Book(c.Context(), booking.BookInput{
		ProviderID: p.UserID,
		ClientID:   clientID,
		Service:    req.Service,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toAppointmentResponse(appt))
}

func (s *Server) handleCancel(c *fiber.Ctx) error {
	p, ok := principalFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "authentication required"})
	}

	appointmentID, err := uuid.Parse(c.Params("appointmentID"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "appointment id must be a UUID"})
	}

	appt, err := s.booking.Cancel(c.Context(), p, appointmentID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(toAppointmentResponse(appt))
}

func (s *Server) handleListProviderAppointments(c *fiber.Ctx) error {
	p, _ := principalFrom(c)

	var date *time.Time
	if raw := c.Query("date"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "date query must be YYYY-MM-DD"})
		}
		date = &d
	}

	appts, err := s.booking.ListProviderAppointments(c.Context(), p.UserID, c.Query("status"), date)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(appointmentList(appts))
}

func (s *Server) handleListClientAppointments(c *fiber.Ctx) error {
	p, _ := principalFrom(c)

	appts, err := s.booking.ListClientAppointments(c.Context(), p.UserID, c.Query("status"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(appointmentList(appts))
}

func (s *Server) handleListServices(c *fiber.Ctx) error {
	out := make([]fiber.Map, 0, len(domain.ServiceCatalog))
	for _, name := range domain.ServiceNames() {
		out = append(out, fiber.Map{
			"name":             name,
			"duration_minutes": int(domain.ServiceCatalog[name] / time.Minute),
		})
	}
	return c.JSON(out)
}

func appointmentList(appts []domain.Appointment) []appointmentResponse {
	out := make([]appointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}

func scheduleResponse(rows []domain.ScheduleWindow) schedulePayload {
	out := schedulePayload{Windows: make(map[string][]windowPayload)}
	for _, w := range rows {
		name := strings.ToLower(w.Weekday.String())
		out.Windows[name] = append(out.Windows[name], windowPayload{
			Start: minuteClock(w.StartMinute),
			End:   minuteClock(w.EndMinute),
		})
	}
	return out
}

// parseWindow reads an "HH:MM" pair into a minute-of-day interval. "24:00"
// is accepted as end-of-day.
func parseWindow(w windowPayload) (domain.Interval, error) {
	start, err := parseClock(w.Start)
	if err != nil {
		return domain.Interval{}, fmt.Errorf("invalid start %q: must be HH:MM", w.Start)
	}
	end, err := parseClock(w.End)
	if err != nil {
		return domain.Interval{}, fmt.Errorf("invalid end %q: must be HH:MM", w.End)
	}
	return domain.Interval{Start: start, End: end}, nil
}

func parseClock(s string) (int, error) {
	if s == "24:00" {
		return domain.MinutesPerDay, nil
	}
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func minuteClock(minute int) string {
	if minute == domain.MinutesPerDay {
		return "24:00"
	}
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
