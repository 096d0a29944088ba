// Calendar-aware arithmetic: translates between elapsed work minutes and
// wall-clock time, skipping non-working intervals (nights, weekends,
// holidays, daily breaks).

package prodsched_internal

import (
	"fmt"
	"sort"
	"time"
)

const (
	// WORK_MINUTES_TOLERANCE bounds the float accumulation error in
	// AddWorkMinutes/WorkMinutesBetween; loops terminate once the remaining
	// delta is within this many minutes of zero.
	WORK_MINUTES_TOLERANCE = 1e-6
)

var calendarLog = NewCompLogger("calendar")

// TimeOfDay is a wall-clock time of day, with minute resolution, used for
// work_start/work_end/break boundaries. It deliberately does not carry a
// date or a monotonic reading.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Before reports whether t occurs earlier in the day than other.
func (t TimeOfDay) Before(other TimeOfDay) bool {
	return t.Hour < other.Hour || (t.Hour == other.Hour && t.Minute < other.Minute)
}

func (t TimeOfDay) equalOrAfter(other TimeOfDay) bool {
	return !t.Before(other)
}

// ParseTimeOfDay parses an "HH:MM" string.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time-of-day %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return TimeOfDay{}, fmt.Errorf("invalid time-of-day %q: out of range", s)
	}
	return TimeOfDay{Hour: h, Minute: m}, nil
}

func timeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

func combine(date time.Time, tod TimeOfDay) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), tod.Hour, tod.Minute, 0, 0, date.Location())
}

// WorkBreak is one daily break interval, e.g. the lunch break.
type WorkBreak struct {
	Start TimeOfDay
	End   TimeOfDay
}

// WorkCalendar holds the working-day configuration (shift boundaries,
// breaks, holidays) and implements the calendar-aware time arithmetic of
// spec §4.1. Immutable once built; safe for concurrent reads.
type WorkCalendar struct {
	WorkStart TimeOfDay
	WorkEnd   TimeOfDay
	Breaks    []WorkBreak
	holidays  map[time.Time]struct{}
}

// NewWorkCalendar builds a WorkCalendar. Breaks need not be pre-sorted;
// they are sorted by start time here. Holiday dates are normalized to
// midnight, dropping any time-of-day component.
func NewWorkCalendar(workStart, workEnd TimeOfDay, breaks []WorkBreak, holidays []time.Time) (*WorkCalendar, error) {
	if !workStart.Before(workEnd) {
		return nil, fmt.Errorf("work_start (%s) must be before work_end (%s)", workStart, workEnd)
	}
	sorted := make([]WorkBreak, len(breaks))
	copy(sorted, breaks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })
	for i, b := range sorted {
		if !b.Start.Before(b.End) {
			return nil, fmt.Errorf("break %d: start (%s) must be before end (%s)", i, b.Start, b.End)
		}
	}
	holidaySet := make(map[time.Time]struct{}, len(holidays))
	for _, h := range holidays {
		holidaySet[dateOnly(h)] = struct{}{}
	}
	return &WorkCalendar{WorkStart: workStart, WorkEnd: workEnd, Breaks: sorted, holidays: holidaySet}, nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// IsWorkday reports whether date is a working day: Monday-Friday and not
// a configured holiday.
func (wc *WorkCalendar) IsWorkday(date time.Time) bool {
	wd := date.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	_, holiday := wc.holidays[dateOnly(date)]
	return !holiday
}

// NextWorkday returns the smallest workday >= date (at midnight, same
// location as date).
func (wc *WorkCalendar) NextWorkday(date time.Time) time.Time {
	d := dateOnly(date)
	for !wc.IsWorkday(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// SnapToWorking moves dt forward to the next instant that is on a
// workday, within [WorkStart, WorkEnd) and not inside a break.
func (wc *WorkCalendar) SnapToWorking(dt time.Time) time.Time {
	workDate := wc.NextWorkday(dt)
	if !sameDate(workDate, dt) {
		return combine(workDate, wc.WorkStart)
	}

	tod := timeOfDayOf(dt)
	if tod.Before(wc.WorkStart) {
		return combine(workDate, wc.WorkStart)
	}
	if tod.equalOrAfter(wc.WorkEnd) {
		next := wc.NextWorkday(workDate.AddDate(0, 0, 1))
		return combine(next, wc.WorkStart)
	}
	for _, b := range wc.Breaks {
		if !tod.Before(b.Start) && tod.Before(b.End) {
			return combine(workDate, b.End)
		}
	}
	return dt
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// segmentEnd returns the end of the current uninterrupted work segment
// starting at "from" (same day as from): the sooner of the next break
// start or the shift end, capped at "cap" if provided and earlier.
func (wc *WorkCalendar) segmentEnd(from time.Time, cap time.Time) time.Time {
	endOfDay := combine(from, wc.WorkEnd)
	next := endOfDay
	for _, b := range wc.Breaks {
		breakStart := combine(from, b.Start)
		if from.Before(breakStart) && breakStart.Before(next) {
			next = breakStart
		}
	}
	if !cap.IsZero() && cap.Before(next) {
		next = cap
	}
	return next
}

// AddWorkMinutes advances dt by m work-minutes, skipping non-working
// time. m must be >= 0. This is the forward half of spec §4.1's pair of
// inverse operations.
func (wc *WorkCalendar) AddWorkMinutes(dt time.Time, m float64) time.Time {
	if m < 0 {
		calendarLog.Warnf("AddWorkMinutes: negative minutes %v, treating as 0", m)
		m = 0
	}
	current := wc.SnapToWorking(dt)
	if m == 0 {
		return current
	}
	remaining := m
	for remaining > WORK_MINUTES_TOLERANCE {
		segEnd := wc.segmentEnd(current, time.Time{})
		available := segEnd.Sub(current).Minutes()
		if available >= remaining {
			return current.Add(time.Duration(remaining * float64(time.Minute)))
		}
		remaining -= available
		current = wc.SnapToWorking(segEnd)
	}
	return current
}

// WorkMinutesBetween computes the exact working minutes between a and b,
// the inverse of AddWorkMinutes: WorkMinutesBetween(t, AddWorkMinutes(t,
// m)) == m for all non-negative m.
func (wc *WorkCalendar) WorkMinutesBetween(a, b time.Time) float64 {
	if !a.Before(b) {
		return 0
	}
	current := wc.SnapToWorking(a)
	if !current.Before(b) {
		return 0
	}
	total := 0.0
	for current.Before(b) {
		segEnd := wc.segmentEnd(current, b)
		if segEnd.After(current) {
			total += segEnd.Sub(current).Minutes()
		}
		if !segEnd.Before(b) {
			break
		}
		next := wc.SnapToWorking(segEnd)
		if !next.After(current) {
			// Defensive: guarantee forward progress even under a
			// pathological configuration (e.g. a zero-length shift).
			break
		}
		current = next
	}
	return total
}

// CountWorkdays returns the number of workdays in [a.Date(), b.Date()]
// inclusive.
func (wc *WorkCalendar) CountWorkdays(a, b time.Time) int {
	if a.After(b) {
		return 0
	}
	count := 0
	d := dateOnly(a)
	end := dateOnly(b)
	for !d.After(end) {
		if wc.IsWorkday(d) {
			count++
		}
		d = d.AddDate(0, 0, 1)
	}
	return count
}
