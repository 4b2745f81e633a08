package entity

import (
	"fmt"
	"strings"
)

// Status is the repair progress of a booking.
type Status string

const (
	StatusBooked     Status = "Booked"
	StatusDiagnosing Status = "Diagnosing"
	StatusRepairing  Status = "Repairing"
	StatusReady      Status = "Ready"
	StatusCompleted  Status = "Completed"
)

var statuses = []Status{
	StatusBooked,
	StatusDiagnosing,
	StatusRepairing,
	StatusReady,
	StatusCompleted,
}

// Statuses returns the workflow statuses in order.
func Statuses() []Status {
	out := make([]Status, len(statuses))
	copy(out, statuses)
	return out
}

// IsValid reports whether s is one of the workflow statuses.
func (s Status) IsValid() bool {
	for _, candidate := range statuses {
		if s == candidate {
			return true
		}
	}
	return false
}

// ParseStatus converts raw input into a Status. Matching is exact.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.TrimSpace(raw))
	if !s.IsValid() {
		return "", fmt.Errorf("invalid status %q, allowed: %s", raw, allowedList())
	}
	return s, nil
}

func allowedList() string {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
