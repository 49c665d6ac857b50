package period

import (
	"fmt"
	"time"
)

// Type identifies one of the three concurrently-live scoring windows.
type Type string

const (
	Weekly  Type = "WEEKLY"
	Monthly Type = "MONTHLY"
	AllTime Type = "ALLTIME"

	// AllTimeKey is the fixed period key of the ALLTIME window
	AllTimeKey = "alltime"
)

// All lists every period type, in the order standings are reported.
var All = []Type{Weekly, Monthly, AllTime}

// Parse maps the external API period parameter (weekly|monthly|all) to a Type.
// Unknown values are a client input error, not a server fault.
func Parse(s string) (Type, error) {
	switch s {
	case "weekly", "WEEKLY":
		return Weekly, nil
	case "monthly", "MONTHLY":
		return Monthly, nil
	case "all", "alltime", "ALLTIME":
		return AllTime, nil
	}
	return "", fmt.Errorf("unsupported period type: %q", s)
}

// Valid reports whether t is one of the three known period types.
func (t Type) Valid() bool {
	return t == Weekly || t == Monthly || t == AllTime
}

// Expires reports whether windows of this type carry a time-to-live.
func (t Type) Expires() bool {
	return t == Weekly || t == Monthly
}

// External returns the representation used in API responses and push events.
func (t Type) External() string {
	switch t {
	case Weekly:
		return "weekly"
	case Monthly:
		return "monthly"
	default:
		return "all"
	}
}

// KeyAt returns the period key for t at the given instant.
// Weekly keys use the ISO week-based year, so dates near a calendar year
// boundary that fall in the same ISO week always map to the same key.
func (t Type) KeyAt(now time.Time) string {
	switch t {
	case Weekly:
		year, week := now.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case Monthly:
		return now.Format("2006-01")
	default:
		return AllTimeKey
	}
}

// CurrentKey returns the period key for t right now.
func (t Type) CurrentKey() string {
	return t.KeyAt(time.Now())
}

// CurrentWeekKey returns the key of the current ISO week, e.g. "2026-W03".
func CurrentWeekKey() string {
	return Weekly.CurrentKey()
}

// CurrentMonthKey returns the key of the current month, e.g. "2026-01".
func CurrentMonthKey() string {
	return Monthly.CurrentKey()
}
