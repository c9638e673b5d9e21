package models

import "fmt"

// EventKind classifies why an availability event was produced.
type EventKind string

const (
	// Reopened means a date that had zero remaining now has some (a cancellation).
	Reopened EventKind = "reopened"
	// NewDate means a date not seen before in an already known section has availability.
	NewDate EventKind = "new_date"
	// NewSection means a section not seen before has availability on this date.
	NewSection EventKind = "new_section"
)

// AvailabilityEvent is one actionable result of diffing two snapshots.
// Events are informational only; nothing acknowledges or stores them.
type AvailabilityEvent struct {
	Section   string    `json:"section"`
	Date      string    `json:"date"`
	Remaining int       `json:"remaining"`
	Kind      EventKind `json:"kind"`
}

// String renders the event as the human-readable line used in alerts.
func (e AvailabilityEvent) String() string {
	line := fmt.Sprintf("%s - %s - %d permits available", e.Section, e.Date, e.Remaining)
	switch e.Kind {
	case NewDate:
		return line + " (new listing)"
	case NewSection:
		return line + " (new section)"
	default:
		return line
	}
}
