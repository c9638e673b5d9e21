// Package models defines the core domain entities for the permit checker.
// These models represent monitored river sections, availability snapshots, the
// events produced by diffing two snapshots, and user notification preferences.
//
// Terminology (matching recreation.gov's own naming):
//   - Permit: a recreation.gov permit id, which groups one or more divisions.
//   - Division: a bookable allocation under a permit. One section maps to one division.
//   - Section: a river stretch we monitor. Its Name is the snapshot key.
package models

import (
	"errors"
	"time"
)

// Section represents a single monitored river permit unit.
// Sections are statically configured and never created at runtime.
type Section struct {
	Permit    string `mapstructure:"permit" json:"permit"`         // recreation.gov permit id
	Division  string `mapstructure:"division" json:"division"`     // Optional division id; empty selects the first division
	River     string `mapstructure:"river" json:"river"`           // River name, e.g. "Salmon"
	Name      string `mapstructure:"name" json:"name"`             // Section name, unique across configured sections
	PutIn     string `mapstructure:"put_in" json:"put_in"`         // Launch point, informational only
	TakeOut   string `mapstructure:"take_out" json:"take_out"`     // Take-out point, informational only
	StartDate string `mapstructure:"start_date" json:"start_date"` // ISO-8601 date-time, passed to the API verbatim
	EndDate   string `mapstructure:"end_date" json:"end_date"`     // ISO-8601 date-time, passed to the API verbatim
}

// Label returns "River - Name", the form used in logs.
func (s Section) Label() string {
	return s.River + " - " + s.Name
}

// Validate checks that all section fields are valid.
func (s *Section) Validate() error {
	if s.Permit == "" {
		return errors.New("section permit must not be empty")
	}
	if s.Name == "" {
		return errors.New("section name must not be empty")
	}
	if s.StartDate == "" || s.EndDate == "" {
		return errors.New("section start_date and end_date must not be empty")
	}
	start, err := time.Parse(time.RFC3339, s.StartDate)
	if err != nil {
		return errors.New("section start_date must be an RFC3339 date-time")
	}
	end, err := time.Parse(time.RFC3339, s.EndDate)
	if err != nil {
		return errors.New("section end_date must be an RFC3339 date-time")
	}
	if end.Before(start) {
		return errors.New("section end_date must not be before start_date")
	}
	return nil
}
