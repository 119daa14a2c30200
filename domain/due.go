package domain

import (
	"strconv"
	"strings"
	"time"
)

// ParseDueDate parses a Y-M-D due date. The second result is false when the
// value is not a real calendar date.
func ParseDueDate(s string) (time.Time, bool) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	var n [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return time.Time{}, false
		}
		n[i] = v
	}
	y, m, d := n[0], n[1], n[2]
	if y < 1 || y > 9999 || m < 1 || m > 12 || d < 1 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Month() != time.Month(m) || t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

// IsOverdue reports whether an open task's due date lies strictly before the
// calendar day of today. Missing or malformed due dates are never overdue.
func IsOverdue(v TaskView, today time.Time) bool {
	if v.Completed || v.DueDate == nil {
		return false
	}
	due, ok := ParseDueDate(*v.DueDate)
	if !ok {
		return false
	}
	y, m, d := today.Date()
	return due.Before(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}
