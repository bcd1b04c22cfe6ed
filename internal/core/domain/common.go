package domain

import (
	"fmt"
	"strings"
	"time"
)

// DisplayDateLayout is the layout expense dates are stored and shown in.
const DisplayDateLayout = "02/01/2006"

// inputDateLayouts are the day-first forms accepted from callers.
var inputDateLayouts = []string{"2/1/2006", "2-1-2006"}

// ParseDisplayDate parses a day-first date such as 1/9/2025, 01/09/2025 or 1-9-2025.
func ParseDisplayDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range inputDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: expected dd/MM/yyyy or d-M-yyyy", raw)
}

// NormalizeDisplayDate rewrites an accepted input date into DisplayDateLayout.
func NormalizeDisplayDate(raw string) (string, error) {
	t, err := ParseDisplayDate(raw)
	if err != nil {
		return "", err
	}
	return t.Format(DisplayDateLayout), nil
}

// CanonicalDate returns the sortable ISO (yyyy-MM-dd) form of a display date.
// Storage adapters keep it alongside the display string for range queries.
func CanonicalDate(display string) (string, error) {
	t, err := ParseDisplayDate(display)
	if err != nil {
		return "", err
	}
	return t.Format(time.DateOnly), nil
}
