package goals

import (
	"fmt"
	"strings"
	"time"
)

const monthLayout = "2006-01"

// NormalizeMonth turns a "YYYY-MM" or a long month name ("February") into "YYYY-MM".
// A bare month name resolves to the year of now.
func NormalizeMonth(month string, now time.Time) (string, error) {
	month = strings.TrimSpace(month)
	if t, err := time.Parse(monthLayout, month); err == nil {
		return t.Format(monthLayout), nil
	}
	for m := time.January; m <= time.December; m++ {
		if strings.EqualFold(month, m.String()) {
			return time.Date(now.Year(), m, 1, 0, 0, 0, 0, time.UTC).Format(monthLayout), nil
		}
	}
	return "", fmt.Errorf("invalid month: %q", month)
}

// MatchesMonth reports whether the goal month denotes the calendar month of now.
// Both the long month name and the "YYYY-MM" form are accepted.
func MatchesMonth(goalMonth string, now time.Time) bool {
	goalMonth = strings.TrimSpace(goalMonth)
	if goalMonth == now.Month().String() {
		return true
	}
	t, err := time.Parse(monthLayout, goalMonth)
	if err != nil {
		return false
	}
	return t.Year() == now.Year() && t.Month() == now.Month()
}

// CurrentMonth returns now formatted as stored goal months are.
func CurrentMonth(now time.Time) string {
	return now.Format(monthLayout)
}
