package models

import (
	"errors"
	"net/mail"
	"time"
)

// preferenceDateLayout is the calendar date format accepted for preference ranges.
const preferenceDateLayout = "2006-01-02"

// Preference records a user's interest in sections over a date range.
// Preferences are stored by the intake service; the checker does not read them.
type Preference struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Sections  []string  `json:"sections"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks that all preference fields are valid.
func (p *Preference) Validate() error {
	if p.Email == "" {
		return errors.New("email must not be empty")
	}
	if _, err := mail.ParseAddress(p.Email); err != nil {
		return errors.New("email must be a valid address")
	}
	if len(p.Sections) == 0 {
		return errors.New("at least one section is required")
	}
	for _, s := range p.Sections {
		if s == "" {
			return errors.New("section names must not be empty")
		}
	}
	start, err := time.Parse(preferenceDateLayout, p.StartDate)
	if err != nil {
		return errors.New("start_date must be formatted as YYYY-MM-DD")
	}
	end, err := time.Parse(preferenceDateLayout, p.EndDate)
	if err != nil {
		return errors.New("end_date must be formatted as YYYY-MM-DD")
	}
	if end.Before(start) {
		return errors.New("end_date must not be before start_date")
	}
	return nil
}
