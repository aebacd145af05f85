package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind discriminates the supported schedule shapes.
type Kind int

const (
	// KindOnce fires at the next occurrence of the given time and is then
	// cleared.
	KindOnce Kind = iota
	// KindDaily fires every day at the given time.
	KindDaily
	// KindMonthly fires on the given day of month at the given time.
	KindMonthly
)

// DefaultSpec is the schedule applied when a user enables appending
// without choosing one.
var DefaultSpec = Spec{Kind: KindDaily, Hour: 23, Minute: 59}

// Spec is a parsed append schedule. The zero value is not valid; use
// ParseSpec or DefaultSpec.
type Spec struct {
	Kind   Kind
	Day    int // day of month, monthly only
	Hour   int
	Minute int
}

// ParseSpec parses a user-supplied schedule:
//
//	now              append immediately, once
//	HH:MM            once, at the next occurrence of HH:MM
//	daily HH:MM      every day at HH:MM
//	monthly DD HH:MM every month on day DD at HH:MM
func ParseSpec(s string) (Spec, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(s)))

	switch {
	case len(fields) == 0:
		return Spec{}, fmt.Errorf("empty schedule")
	case fields[0] == "now":
		if len(fields) != 1 {
			return Spec{}, fmt.Errorf("unexpected arguments after %q", "now")
		}
		now := time.Now()
		return Spec{Kind: KindOnce, Hour: now.Hour(), Minute: now.Minute()}, nil
	case fields[0] == "daily":
		if len(fields) != 2 {
			return Spec{}, fmt.Errorf("daily schedule needs a time, e.g. %q", "daily 21:30")
		}
		hour, minute, err := parseClock(fields[1])
		if err != nil {
			return Spec{}, err
		}
		return Spec{Kind: KindDaily, Hour: hour, Minute: minute}, nil
	case fields[0] == "monthly":
		if len(fields) != 3 {
			return Spec{}, fmt.Errorf("monthly schedule needs a day and a time, e.g. %q", "monthly 1 09:00")
		}
		day, err := strconv.Atoi(fields[1])
		if err != nil || day < 1 || day > 31 {
			return Spec{}, fmt.Errorf("invalid day of month %q", fields[1])
		}
		hour, minute, err := parseClock(fields[2])
		if err != nil {
			return Spec{}, err
		}
		return Spec{Kind: KindMonthly, Day: day, Hour: hour, Minute: minute}, nil
	case len(fields) == 1:
		hour, minute, err := parseClock(fields[0])
		if err != nil {
			return Spec{}, err
		}
		return Spec{Kind: KindOnce, Hour: hour, Minute: minute}, nil
	default:
		return Spec{}, fmt.Errorf("unrecognized schedule %q", s)
	}
}

func parseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	return t.Hour(), t.Minute(), nil
}

// String renders the spec in the canonical form accepted by ParseSpec.
func (s Spec) String() string {
	switch s.Kind {
	case KindDaily:
		return fmt.Sprintf("daily %02d:%02d", s.Hour, s.Minute)
	case KindMonthly:
		return fmt.Sprintf("monthly %d %02d:%02d", s.Day, s.Hour, s.Minute)
	default:
		return fmt.Sprintf("%02d:%02d", s.Hour, s.Minute)
	}
}

// Next returns the first firing time strictly after the given instant.
func (s Spec) Next(after time.Time) time.Time {
	switch s.Kind {
	case KindMonthly:
		// Day one keeps AddDate month arithmetic stable.
		base := time.Date(after.Year(), after.Month(), 1, 0, 0, 0, 0, after.Location())
		for m := 0; ; m++ {
			month := base.AddDate(0, m, 0)
			next := time.Date(month.Year(), month.Month(), s.Day, s.Hour, s.Minute, 0, 0, after.Location())
			// Months without the requested day (e.g. the 31st in
			// February) are skipped; normalization would roll over.
			if next.Month() == month.Month() && next.After(after) {
				return next
			}
		}
	default:
		next := time.Date(after.Year(), after.Month(), after.Day(), s.Hour, s.Minute, 0, 0, after.Location())
		if !next.After(after) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	}
}

// Once reports whether the schedule should be cleared after it fires.
func (s Spec) Once() bool {
	return s.Kind == KindOnce
}
