package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"github.com/das622/appointment-booking-api/internal/domain"
	"github.com/das622/appointment-booking-api/internal/store"
)

type BookingRepo struct {
	db *bun.DB
}

func NewBookingRepo(db *bun.DB) *BookingRepo {
	return &BookingRepo{db: db}
}

type calendarTx struct {
	tx bun.Tx
}

func (r *BookingRepo) ScheduleWindows(ctx context.Context, providerID uuid.UUID) ([]domain.ScheduleWindow, error) {
	return scheduleWindows(ctx, r.db, providerID)
}

func (r *BookingRepo) ExceptionsOn(ctx context.Context, providerID uuid.UUID, date time.Time) ([]domain.Exception, error) {
	return exceptionsOn(ctx, r.db, providerID, date)
}

func (r *BookingRepo) BookedAppointmentsOn(ctx context.Context, providerID uuid.UUID, date time.Time) ([]domain.Appointment, error) {
	return bookedAppointmentsOn(ctx, r.db, providerID, date)
}

func (r *BookingRepo) GetAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	return getAppointment(ctx, r.db, appointmentID)
}

func (r *BookingRepo) ListProviderAppointments(ctx context.Context, providerID uuid.UUID, filter store.AppointmentFilter) ([]domain.Appointment, error) {
	return listAppointments(ctx, r.db, "provider_id", providerID, filter)
}

func (r *BookingRepo) ListClientAppointments(ctx context.Context, clientID uuid.UUID, filter store.AppointmentFilter) ([]domain.Appointment, error) {
	return listAppointments(ctx, r.db, "client_id", clientID, filter)
}

func (r *BookingRepo) InProviderTransaction(ctx context.Context, providerID uuid.UUID, fn func(ctx context.Context, tx store.CalendarTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockProviderCalendar(ctx, tx, providerID); err != nil {
			return err
		}
		return fn(ctx, calendarTx{tx: tx})
	})
}

// lockProviderCalendar serializes writes per provider for the duration of the
// transaction. Readers never take it.
func lockProviderCalendar(ctx context.Context, tx bun.Tx, providerID uuid.UUID) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", providerID.String()).Exec(ctx)
	return err
}

func (t calendarTx) ScheduleWindows(ctx context.Context, providerID uuid.UUID) ([]domain.ScheduleWindow, error) {
	return scheduleWindows(ctx, t.tx, providerID)
}

func (t calendarTx) ExceptionsOn(ctx context.Context, providerID uuid.UUID, date time.Time) ([]domain.Exception, error) {
	return exceptionsOn(ctx, t.tx, providerID, date)
}

func (t calendarTx) BookedAppointmentsOn(ctx context.Context, providerID uuid.UUID, date time.Time) ([]domain.Appointment, error) {
	return bookedAppointmentsOn(ctx, t.tx, providerID, date)
}

func (t calendarTx) ReplaceScheduleWindows(ctx context.Context, providerID uuid.UUID, windows []domain.ScheduleWindow) error {
	_, err := t.tx.NewDelete().
		Model((*domain.ScheduleWindow)(nil)).
		Where("provider_id = ?", providerID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if len(windows) == 0 {
		return nil
	}
	_, err = t.tx.NewInsert().Model(&windows).Exec(ctx)
	return err
}

func (t calendarTx) CreateException(ctx context.Context, ex domain.Exception) (domain.Exception, error) {
	m := ex
	_, err := t.tx.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		return domain.Exception{}, err
	}
	return m, nil
}

func (t calendarTx) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := appt
	_, err := t.tx.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			// The exclusion constraint is the authoritative overlap check; a
			// raced insert fails closed here even after the advisory
			// pre-check passed.
			if pgErr.Code == "23P01" && pgErr.ConstraintName == "appointments_no_overlap" {
				return domain.Appointment{}, domain.ErrSlotTaken
			}
			if pgErr.Code == "23505" {
				return domain.Appointment{}, store.ErrConflict
			}
		}
		return domain.Appointment{}, err
	}
	return m, nil
}

func (t calendarTx) GetAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	return getAppointment(ctx, t.tx, appointmentID)
}

func (t calendarTx) UpdateAppointmentStatus(ctx context.Context, appointmentID uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error) {
	var m domain.Appointment
	res, err := t.tx.NewUpdate().
		Model(&m).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", appointmentID).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return domain.Appointment{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, err
	}
	if affected == 0 {
		return domain.Appointment{}, store.ErrNotFound
	}
	return m, nil
}

func scheduleWindows(ctx context.Context, db bun.IDB, providerID uuid.UUID) ([]domain.ScheduleWindow, error) {
	var rows []domain.ScheduleWindow
	err := db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		OrderExpr("weekday ASC, start_minute ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func exceptionsOn(ctx context.Context, db bun.IDB, providerID uuid.UUID, date time.Time) ([]domain.Exception, error) {
	var rows []domain.Exception
	err := db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		Where("date = ?", domain.DateOf(date)).
		OrderExpr("start_minute ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func bookedAppointmentsOn(ctx context.Context, db bun.IDB, providerID uuid.UUID, date time.Time) ([]domain.Appointment, error) {
	dayStart := domain.DateOf(date)
	dayEnd := dayStart.Add(24 * time.Hour)

	var rows []domain.Appointment
	err := db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		Where("status = ?", domain.StatusBooked).
		Where("start_time < ?", dayEnd).
		Where("end_time > ?", dayStart).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func getAppointment(ctx context.Context, db bun.IDB, appointmentID uuid.UUID) (domain.Appointment, error) {
	var a domain.Appointment
	err := db.NewSelect().
		Model(&a).
		Where("id = ?", appointmentID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	return a, nil
}

func listAppointments(ctx context.Context, db bun.IDB, partyColumn string, partyID uuid.UUID, filter store.AppointmentFilter) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	q := db.NewSelect().
		Model(&rows).
		Where("? = ?", bun.Ident(partyColumn), partyID)

	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Date != nil {
		dayStart := domain.DateOf(*filter.Date)
		q = q.Where("start_time >= ?", dayStart).
			Where("start_time < ?", dayStart.Add(24*time.Hour))
	}

	err := q.OrderExpr("start_time ASC").Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
