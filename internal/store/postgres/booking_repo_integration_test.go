package postgres

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/das622/appointment-booking-api/internal/domain"
	"github.com/das622/appointment-booking-api/internal/store"
)

func TestPostgresIntegration_BookingFlow(t *testing.T) {
	databaseURL := strings.TrimSpace(os.Getenv("BOOKING_TEST_DATABASE_URL"))
	if databaseURL == "" {
		t.Skip("BOOKING_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	// One connection so the session search_path sticks for the whole test.
	db, err := Open(ctx, databaseURL, PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() {
		_ = Close(db)
	})

	schema := "booking_test_" + randomHex(t, 8)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = db.NewRaw("DROP SCHEMA IF EXISTS " + schema + " CASCADE").Exec(ctx)
	})

	if _, err := db.NewRaw("CREATE SCHEMA " + schema).Exec(ctx); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	if _, err := db.NewRaw("SET search_path TO " + schema + ", public").Exec(ctx); err != nil {
		t.Fatalf("set search_path: %v", err)
	}
	if err := applyMigrations(ctx, db); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}

	users := NewUserRepo(db)
	repo := NewBookingRepo(db)

	provider, err := users.Create(ctx, domain.User{
		Email:        "barber@example.com",
		PasswordHash: "hash",
		Role:         domain.RoleProvider,
	})
	if err != nil {
		t.Fatalf("create provider: %v", err)
	}
	if provider.ID == uuid.Nil {
		t.Fatalf("provider ID not assigned")
	}
	client, err := users.Create(ctx, domain.User{
		Email:        "client@example.com",
		PasswordHash: "hash",
		Role:         domain.RoleClient,
	})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	_, err = users.Create(ctx, domain.User{
		Email:        "barber@example.com",
		PasswordHash: "hash",
		Role:         domain.RoleClient,
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("duplicate email err = %v, want store.ErrConflict", err)
	}

	if _, err := users.GetByEmail(ctx, "barber@example.com"); err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if _, err := users.GetByID(ctx, uuid.Must(uuid.NewV7())); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("GetByID missing err = %v, want store.ErrNotFound", err)
	}

	// Monday 09:00-17:00.
	err = repo.InProviderTransaction(ctx, provider.ID, func(ctx context.Context, tx store.CalendarTx) error {
		return tx.ReplaceScheduleWindows(ctx, provider.ID, []domain.ScheduleWindow{
			{ProviderID: provider.ID, Weekday: time.Monday, StartMinute: 9 * 60, EndMinute: 17 * 60},
		})
	})
	if err != nil {
		t.Fatalf("set schedule: %v", err)
	}
	windows, err := repo.ScheduleWindows(ctx, provider.ID)
	if err != nil {
		t.Fatalf("ScheduleWindows: %v", err)
	}
	if len(windows) != 1 || windows[0].ID == uuid.Nil {
		t.Fatalf("windows = %+v, want one persisted row", windows)
	}

	monday := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

	err = repo.InProviderTransaction(ctx, provider.ID, func(ctx context.Context, tx store.CalendarTx) error {
		_, err := tx.CreateException(ctx, domain.Exception{
			ProviderID:  provider.ID,
			Date:        monday,
			Kind:        domain.ExceptionKindBreak,
			StartMinute: 12 * 60,
			EndMinute:   12*60 + 30,
		})
		return err
	})
	if err != nil {
		t.Fatalf("create exception: %v", err)
	}
	exs, err := repo.ExceptionsOn(ctx, provider.ID, monday)
	if err != nil {
		t.Fatalf("ExceptionsOn: %v", err)
	}
	if len(exs) != 1 {
		t.Fatalf("len(exceptions) = %d, want 1", len(exs))
	}

	book := func(startMin, endMin int) (domain.Appointment, error) {
		var out domain.Appointment
		err := repo.InProviderTransaction(ctx, provider.ID, func(ctx context.Context, tx store.CalendarTx) error {
			appt, err := tx.CreateAppointment(ctx, domain.Appointment{
				ProviderID: provider.ID,
				ClientID:   client.ID,
				Service:    "haircut",
				StartTime:  domain.AtMinute(monday, startMin),
				EndTime:    domain.AtMinute(monday, endMin),
				Status:     domain.StatusBooked,
			})
			if err != nil {
				return err
			}
			out = appt
			return nil
		})
		return out, err
	}

	a1, err := book(10*60, 10*60+30)
	if err != nil {
		t.Fatalf("book 10:00: %v", err)
	}

	// The exclusion constraint rejects the overlap and the tx rolls back.
	if _, err := book(10*60+15, 10*60+45); !errors.Is(err, domain.ErrSlotTaken) {
		t.Fatalf("overlap err = %v, want domain.ErrSlotTaken", err)
	}

	// Half-open ranges: touching is allowed.
	if _, err := book(10*60+30, 11*60); err != nil {
		t.Fatalf("book adjacent 10:30: %v", err)
	}

	booked, err := repo.BookedAppointmentsOn(ctx, provider.ID, monday)
	if err != nil {
		t.Fatalf("BookedAppointmentsOn: %v", err)
	}
	if len(booked) != 2 {
		t.Fatalf("len(booked) = %d, want 2", len(booked))
	}
	if !booked[0].StartTime.Before(booked[1].StartTime) {
		t.Fatalf("booked rows not ordered by start_time")
	}

	got, err := repo.GetAppointment(ctx, a1.ID)
	if err != nil {
		t.Fatalf("GetAppointment: %v", err)
	}
	if got.Service != "haircut" || got.Status != domain.StatusBooked {
		t.Fatalf("got = %+v", got)
	}
	if _, err := repo.GetAppointment(ctx, uuid.Must(uuid.NewV7())); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("missing appointment err = %v, want store.ErrNotFound", err)
	}

	err = repo.InProviderTransaction(ctx, provider.ID, func(ctx context.Context, tx store.CalendarTx) error {
		updated, err := tx.UpdateAppointmentStatus(ctx, a1.ID, domain.StatusCanceled)
		if err != nil {
			return err
		}
		if updated.Status != domain.StatusCanceled {
			return fmt.Errorf("status = %q, want canceled", updated.Status)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}

	err = repo.InProviderTransaction(ctx, provider.ID, func(ctx context.Context, tx store.CalendarTx) error {
		_, err := tx.UpdateAppointmentStatus(ctx, uuid.Must(uuid.NewV7()), domain.StatusCanceled)
		return err
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("update missing err = %v, want store.ErrNotFound", err)
	}

	// The constraint only covers booked rows, so the canceled slot is free.
	if _, err := book(10*60, 10*60+30); err != nil {
		t.Fatalf("rebook canceled slot: %v", err)
	}

	bookedList, err := repo.ListProviderAppointments(ctx, provider.ID, store.AppointmentFilter{Status: domain.StatusBooked})
	if err != nil {
		t.Fatalf("ListProviderAppointments: %v", err)
	}
	if len(bookedList) != 2 {
		t.Fatalf("booked list = %d rows, want 2", len(bookedList))
	}

	all, err := repo.ListClientAppointments(ctx, client.ID, store.AppointmentFilter{Date: &monday})
	if err != nil {
		t.Fatalf("ListClientAppointments: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("client list = %d rows, want 3", len(all))
	}

	canceled, err := repo.ListClientAppointments(ctx, client.ID, store.AppointmentFilter{Status: domain.StatusCanceled})
	if err != nil {
		t.Fatalf("ListClientAppointments canceled: %v", err)
	}
	if len(canceled) != 1 || canceled[0].ID != a1.ID {
		t.Fatalf("canceled list = %+v, want just the canceled booking", canceled)
	}
}

func randomHex(t *testing.T, bytesLen int) string {
	t.Helper()
	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read error: %v", err)
	}
	return hex.EncodeToString(b)
}

type rawExecutor interface {
	NewRaw(query string, args ...any) *bun.RawQuery
}

func applyMigrations(ctx context.Context, exec rawExecutor) error {
	dir, err := migrationsDir()
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	type mig struct {
		name string
		path string
	}
	migs := make([]mig, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		migs = append(migs, mig{name: e.Name(), path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(migs, func(i, j int) bool { return migs[i].name < migs[j].name })

	for _, m := range migs {
		b, err := os.ReadFile(m.path)
		if err != nil {
			return err
		}
		upSQL, err := extractGooseUp(string(b))
		if err != nil {
			return err
		}
		for _, stmt := range splitSQLStatements(upSQL) {
			if normalized, ok := normalizeExtensionStatement(stmt); ok {
				stmt = normalized
			}
			if _, err := exec.NewRaw(stmt).Exec(ctx); err != nil {
				return err
			}
		}
	}

	return nil
}

func migrationsDir() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("runtime.Caller failed")
	}
	base := filepath.Dir(file)
	return filepath.Clean(filepath.Join(base, "..", "..", "..", "migrations")), nil
}

func extractGooseUp(sql string) (string, error) {
	upMarker := "-- +goose Up"
	downMarker := "-- +goose Down"

	upIdx := strings.Index(sql, upMarker)
	if upIdx < 0 {
		return "", fmt.Errorf("missing goose up marker")
	}
	afterUp := sql[upIdx+len(upMarker):]
	afterUp = strings.TrimLeft(afterUp, "\r\n")

	downIdx := strings.Index(afterUp, downMarker)
	if downIdx < 0 {
		return strings.TrimSpace(afterUp), nil
	}
	return strings.TrimSpace(afterUp[:downIdx]), nil
}

// The btree_gist extension has to live in a stable schema; the test schema is
// dropped afterwards.
func normalizeExtensionStatement(stmt string) (string, bool) {
	s := strings.TrimSpace(stmt)
	upper := strings.ToUpper(s)
	if !strings.HasPrefix(upper, "CREATE EXTENSION") {
		return "", false
	}
	if !strings.Contains(upper, "BTREE_GIST") {
		return "", false
	}
	if strings.Contains(upper, " SCHEMA ") {
		return "", false
	}
	return s + " SCHEMA public", true
}

func splitSQLStatements(sql string) []string {
	parts := strings.Split(sql, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		s := strings.TrimSpace(p)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
