package models

import (
	"fmt"
	"sort"
)

// DateAvailability maps a calendar date (ISO string) to the remaining permit count.
// Zero means the date was observed with nothing remaining.
type DateAvailability map[string]int

// Snapshot maps a section name to its date availability.
// An absent section or date means "not observed", which is distinct from zero.
type Snapshot map[string]DateAvailability

// Validate checks that every remaining count is non-negative.
func (s Snapshot) Validate() error {
	for section, dates := range s {
		for date, remaining := range dates {
			if remaining < 0 {
				return fmt.Errorf("section %q date %s: remaining must not be negative, got %d", section, date, remaining)
			}
		}
	}
	return nil
}

// Sections returns the section names in ascending order.
func (s Snapshot) Sections() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dates returns the dates in ascending order. ISO dates sort chronologically.
func (d DateAvailability) Dates() []string {
	dates := make([]string, 0, len(d))
	for date := range d {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}
