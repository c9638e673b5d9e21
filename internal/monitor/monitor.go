// Package monitor turns two availability snapshots into actionable events.
//
// Diff only walks the sections and dates of the new snapshot. It reports:
//
//	reopened     old[s][d] == 0 and new[s][d] > 0
//	new listing  s in old, d not in old[s], new[s][d] > 0
//	new section  s not in old, new[s][d] > 0
//
// A section or date that disappears from the new snapshot never produces an event.
package monitor

import (
	"github.com/owenriverk/recgov-permit-checker/internal/models"
)

// Diff compares the previous and current snapshots and returns newly available
// permits, ordered by section name then date.
func Diff(old, current models.Snapshot) []models.AvailabilityEvent {
	var events []models.AvailabilityEvent

	for _, section := range current.Sections() {
		dates := current[section]
		oldDates, sectionKnown := old[section]

		for _, date := range dates.Dates() {
			remaining := dates[date]
			if remaining <= 0 {
				continue
			}

			if !sectionKnown {
				events = append(events, newEvent(section, date, remaining, models.NewSection))
				continue
			}

			previous, dateKnown := oldDates[date]
			switch {
			case !dateKnown:
				events = append(events, newEvent(section, date, remaining, models.NewDate))
			case previous == 0:
				events = append(events, newEvent(section, date, remaining, models.Reopened))
			}
		}
	}

	return events
}

func newEvent(section, date string, remaining int, kind models.EventKind) models.AvailabilityEvent {
	return models.AvailabilityEvent{
		Section:   section,
		Date:      date,
		Remaining: remaining,
		Kind:      kind,
	}
}
