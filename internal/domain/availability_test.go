package domain

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

// Monday 09:00-17:00, one booked appointment 12:00-13:00, 60-minute slots:
// seven slots with a gap at noon.
func TestDaySheetSlotIntervals_BookedGap(t *testing.T) {
	sheet := DaySheet{
		Windows: []Interval{{Start: 9 * 60, End: 17 * 60}},
		Booked:  []Interval{{Start: 12 * 60, End: 13 * 60}},
	}

	got := sheet.SlotIntervals(60)
	want := []Interval{
		{Start: 540, End: 600},
		{Start: 600, End: 660},
		{Start: 660, End: 720},
		{Start: 780, End: 840},
		{Start: 840, End: 900},
		{Start: 900, End: 960},
		{Start: 960, End: 1020},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("SlotIntervals = %v, want %v", got, want)
	}
}

func TestDaySheetSlotIntervals(t *testing.T) {
	tests := []struct {
		name        string
		sheet       DaySheet
		granularity int
		want        []Interval
	}{
		{
			name:        "non-working day is empty",
			sheet:       DaySheet{},
			granularity: 30,
			want:        nil,
		},
		{
			name: "exception covering a whole window zeroes it",
			sheet: DaySheet{
				Windows: []Interval{{Start: 540, End: 720}, {Start: 780, End: 1020}},
				Blocks:  []Interval{{Start: 540, End: 720}},
			},
			granularity: 60,
			want: []Interval{
				{Start: 780, End: 840},
				{Start: 840, End: 900},
				{Start: 900, End: 960},
				{Start: 960, End: 1020},
			},
		},
		{
			name: "day off zeroes everything",
			sheet: DaySheet{
				Windows: []Interval{{Start: 540, End: 1020}},
				Blocks:  []Interval{{Start: 0, End: MinutesPerDay}},
			},
			granularity: 30,
			want:        nil,
		},
		{
			name: "break and booking both subtracted",
			sheet: DaySheet{
				Windows: []Interval{{Start: 540, End: 720}},
				Blocks:  []Interval{{Start: 600, End: 630}},
				Booked:  []Interval{{Start: 660, End: 690}},
			},
			granularity: 30,
			want: []Interval{
				{Start: 540, End: 570},
				{Start: 570, End: 600},
				{Start: 630, End: 660},
				{Start: 690, End: 720},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.sheet.SlotIntervals(tt.granularity)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("SlotIntervals = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBookingRequestValidate(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC) // a Monday
	sheet := DaySheet{
		Windows: []Interval{{Start: 9 * 60, End: 17 * 60}},
		Blocks:  []Interval{{Start: 14 * 60, End: 14*60 + 30}},
		Booked:  []Interval{{Start: 12 * 60, End: 13 * 60}},
	}
	at := func(h, m int) time.Time {
		return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC)
	}

	tests := []struct {
		name       string
		start, end time.Time
		want       error
	}{
		{name: "aligned free range ok", start: at(10, 0), end: at(10, 30), want: nil},
		{name: "end before start", start: at(10, 30), end: at(10, 0), want: ErrMisalignedTime},
		{name: "start equals end", start: at(10, 0), end: at(10, 0), want: ErrMisalignedTime},
		{name: "start off grid", start: at(10, 15), end: at(10, 45), want: ErrMisalignedTime},
		{name: "end off grid", start: at(10, 0), end: at(10, 45), want: ErrMisalignedTime},
		{name: "start in the past", start: at(7, 30), end: at(8, 0), want: ErrPastTime},
		{name: "before opening", start: at(8, 30), end: at(9, 0), want: ErrOutsideSchedule},
		{name: "runs past closing", start: at(16, 30), end: at(17, 30), want: ErrOutsideSchedule},
		{name: "overlaps break", start: at(14, 0), end: at(14, 30), want: ErrBlockedByException},
		{name: "overlaps booked appointment", start: at(12, 30), end: at(13, 30), want: ErrSlotTaken},
		{name: "straddles booked appointment", start: at(11, 30), end: at(12, 30), want: ErrSlotTaken},
		{name: "touching booked end is free", start: at(13, 0), end: at(13, 30), want: nil},
		{name: "touching booked start is free", start: at(11, 30), end: at(12, 0), want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := BookingRequest{Now: now, Start: tt.start, End: tt.end, Granularity: 30}
			err := req.Validate(sheet)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Validate error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("Validate error = %v, want %v", err, tt.want)
			}
		})
	}
}

// Alignment outranks the past check, and schedule coverage outranks
// exceptions and bookings; the first failing check wins.
func TestBookingRequestValidate_CheckOrder(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	sheet := DaySheet{
		Windows: []Interval{{Start: 9 * 60, End: 17 * 60}},
		Booked:  []Interval{{Start: 10 * 60, End: 11 * 60}},
	}

	req := BookingRequest{
		Now:         now,
		Start:       time.Date(2026, 3, 2, 10, 15, 0, 0, time.UTC),
		End:         time.Date(2026, 3, 2, 10, 45, 0, 0, time.UTC),
		Granularity: 30,
	}
	if err := req.Validate(sheet); !errors.Is(err, ErrMisalignedTime) {
		t.Fatalf("Validate error = %v, want %v", err, ErrMisalignedTime)
	}

	req = BookingRequest{
		Now:         now,
		Start:       time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		End:         time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC),
		Granularity: 30,
	}
	if err := req.Validate(sheet); !errors.Is(err, ErrPastTime) {
		t.Fatalf("Validate error = %v, want %v", err, ErrPastTime)
	}
}

func TestBookingRequestValidate_CrossesMidnight(t *testing.T) {
	req := BookingRequest{
		Now:         time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
		Start:       time.Date(2026, 3, 2, 23, 30, 0, 0, time.UTC),
		End:         time.Date(2026, 3, 3, 0, 30, 0, 0, time.UTC),
		Granularity: 30,
	}
	sheet := DaySheet{Windows: []Interval{{Start: 0, End: MinutesPerDay}}}
	if err := req.Validate(sheet); !errors.Is(err, ErrOutsideSchedule) {
		t.Fatalf("Validate error = %v, want %v", err, ErrOutsideSchedule)
	}
}

// Two touching windows and their merged equivalent produce the same
// availability, so the validator must accept a span crossing the shared
// boundary too.
func TestBookingRequestValidate_SpansTouchingWindows(t *testing.T) {
	sched := WeeklySchedule{
		time.Monday: {{Start: 540, End: 720}, {Start: 720, End: 900}},
	}
	if err := sched.Normalize(30); err != nil {
		t.Fatalf("Normalize error = %v, want nil", err)
	}

	split := DaySheet{Windows: sched.Windows(time.Monday)}
	merged := DaySheet{Windows: []Interval{{Start: 540, End: 900}}}

	splitSlots := split.SlotIntervals(30)
	mergedSlots := merged.SlotIntervals(30)
	if len(splitSlots) != len(mergedSlots) {
		t.Fatalf("slot count %d != %d for identical schedules", len(splitSlots), len(mergedSlots))
	}
	for i := range splitSlots {
		if splitSlots[i] != mergedSlots[i] {
			t.Fatalf("slot[%d] = %v, merged schedule gives %v", i, splitSlots[i], mergedSlots[i])
		}
	}

	// [11:30,12:30) straddles the 12:00 boundary between the two windows.
	req := BookingRequest{
		Now:         time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
		Start:       time.Date(2026, 3, 2, 11, 30, 0, 0, time.UTC),
		End:         time.Date(2026, 3, 2, 12, 30, 0, 0, time.UTC),
		Granularity: 30,
	}
	if err := req.Validate(split); err != nil {
		t.Fatalf("Validate error = %v, want nil", err)
	}
	if err := req.Validate(merged); err != nil {
		t.Fatalf("Validate against merged window error = %v, want nil", err)
	}
}

// Every interval returned as a slot must itself validate: availability and
// the validator agree.
func TestSlotsValidateAgainstSameSheet(t *testing.T) {
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	now := date
	sheet := DaySheet{
		Windows: []Interval{{Start: 540, End: 720}, {Start: 780, End: 1020}},
		Blocks:  []Interval{{Start: 600, End: 630}},
		Booked:  []Interval{{Start: 840, End: 900}},
	}

	for _, iv := range sheet.SlotIntervals(30) {
		req := BookingRequest{
			Now:         now,
			Start:       AtMinute(date, iv.Start),
			End:         AtMinute(date, iv.End),
			Granularity: 30,
		}
		if err := req.Validate(sheet); err != nil {
			t.Fatalf("slot %v failed validation: %v", iv, err)
		}
	}
}

func TestExceptionInterval(t *testing.T) {
	dayOff := Exception{Kind: ExceptionKindDayOff, StartMinute: 540, EndMinute: 1020}
	if got := dayOff.Interval(); got != (Interval{Start: 0, End: MinutesPerDay}) {
		t.Fatalf("day_off interval = %v, want full day", got)
	}

	brk := Exception{Kind: ExceptionKindBreak, StartMinute: 720, EndMinute: 750}
	if got := brk.Interval(); got != (Interval{Start: 720, End: 750}) {
		t.Fatalf("break interval = %v, want literal bounds", got)
	}
}

func TestWeeklyScheduleNormalize(t *testing.T) {
	tests := []struct {
		name    string
		sched   WeeklySchedule
		wantErr bool
	}{
		{
			name:  "valid sorted disjoint",
			sched: WeeklySchedule{time.Monday: {{Start: 540, End: 720}, {Start: 780, End: 1020}}},
		},
		{
			name:  "unsorted input gets sorted",
			sched: WeeklySchedule{time.Monday: {{Start: 780, End: 1020}, {Start: 540, End: 720}}},
		},
		{
			name:    "overlapping windows rejected",
			sched:   WeeklySchedule{time.Monday: {{Start: 540, End: 800}, {Start: 780, End: 1020}}},
			wantErr: true,
		},
		{
			name:    "misaligned boundary rejected",
			sched:   WeeklySchedule{time.Monday: {{Start: 545, End: 720}}},
			wantErr: true,
		},
		{
			name:    "start after end rejected",
			sched:   WeeklySchedule{time.Monday: {{Start: 720, End: 540}}},
			wantErr: true,
		},
		{
			name:    "outside day bounds rejected",
			sched:   WeeklySchedule{time.Monday: {{Start: 540, End: MinutesPerDay + 15}}},
			wantErr: true,
		},
		{
			name:  "touching windows allowed",
			sched: WeeklySchedule{time.Monday: {{Start: 540, End: 720}, {Start: 720, End: 1020}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sched.Normalize(15)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize error: %v", err)
			}
			windows := tt.sched.Windows(time.Monday)
			for i := 1; i < len(windows); i++ {
				if windows[i-1].Start >= windows[i].Start {
					t.Fatalf("windows not sorted: %v", windows)
				}
			}
		})
	}
}
