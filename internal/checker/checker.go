// Package checker runs one permit check cycle: load the previous snapshot,
// fetch every section, persist the new snapshot, diff, and alert.
//
// Check never returns an error. Cycle-level failures are classified, reported
// through the rate-limited error path, and the cycle yields no events.
package checker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/owenriverk/recgov-permit-checker/internal/logger"
	"github.com/owenriverk/recgov-permit-checker/internal/models"
	"github.com/owenriverk/recgov-permit-checker/internal/monitor"
	"github.com/owenriverk/recgov-permit-checker/internal/notify"
	"github.com/owenriverk/recgov-permit-checker/internal/recgov"
)

// Store persists the single most recent snapshot.
type Store interface {
	Load() models.Snapshot
	Save(snapshot models.Snapshot)
}

// Fetcher retrieves availability for every configured section.
type Fetcher interface {
	FetchAll(ctx context.Context, sections []models.Section) (models.Snapshot, []recgov.SectionError)
}

// Notifier delivers alerts and error notifications.
type Notifier interface {
	Alert(ctx context.Context, events []models.AvailabilityEvent) bool
	NotifyError(ctx context.Context, err error, message string, severity notify.Severity, cooldown time.Duration) bool
}

// Cooldowns are the error-notification cooldowns per failure class.
type Cooldowns struct {
	Connectivity time.Duration
	DataFormat   time.Duration
	Other        time.Duration
}

// DefaultCooldowns returns 60m for connectivity, 15m for data format, 10m otherwise.
func DefaultCooldowns() Cooldowns {
	return Cooldowns{
		Connectivity: 60 * time.Minute,
		DataFormat:   15 * time.Minute,
		Other:        10 * time.Minute,
	}
}

// Checker performs check cycles.
type Checker struct {
	store     Store
	fetcher   Fetcher
	notifier  Notifier
	sections  []models.Section
	cooldowns Cooldowns
}

// New creates a Checker. Zero cooldowns fall back to DefaultCooldowns.
func New(store Store, fetcher Fetcher, notifier Notifier, sections []models.Section, cooldowns Cooldowns) *Checker {
	defaults := DefaultCooldowns()
	if cooldowns.Connectivity <= 0 {
		cooldowns.Connectivity = defaults.Connectivity
	}
	if cooldowns.DataFormat <= 0 {
		cooldowns.DataFormat = defaults.DataFormat
	}
	if cooldowns.Other <= 0 {
		cooldowns.Other = defaults.Other
	}

	return &Checker{
		store:     store,
		fetcher:   fetcher,
		notifier:  notifier,
		sections:  sections,
		cooldowns: cooldowns,
	}
}

// Check runs one cycle and returns the availability events it found.
func (c *Checker) Check(ctx context.Context) []models.AvailabilityEvent {
	events, err := c.runCycle(ctx)
	if err == nil {
		return events
	}

	if ctx.Err() != nil {
		logger.Info("Permit check interrupted: %v", err)
		return nil
	}

	c.reportCycleError(ctx, err)
	return nil
}

func (c *Checker) runCycle(ctx context.Context) (events []models.AvailabilityEvent, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewPanicError(r)
		}
	}()

	logger.Info("Starting permit check")
	start := time.Now()

	old := c.store.Load()

	current, failures := c.fetcher.FetchAll(ctx, c.sections)
	if len(c.sections) > 0 && len(failures) == len(c.sections) {
		errs := make([]error, len(failures))
		for i, f := range failures {
			errs[i] = f
		}
		return nil, fmt.Errorf("all %d sections failed: %w", len(failures), errors.Join(errs...))
	}
	if len(failures) > 0 {
		logger.Warn("%d of %d sections failed this cycle and were left out of the snapshot", len(failures), len(c.sections))
	}

	c.store.Save(current)

	events = monitor.Diff(old, current)
	if len(events) > 0 {
		logger.Info("Found %d canceled permits!", len(events))
		for _, e := range events {
			logger.Info("- %s", e)
		}
		c.notifier.Alert(ctx, events)
	} else {
		logger.Info("No cancellations detected.")
	}

	logger.Debug("Permit Availability Data:\n%s", monitor.RenderTable(current))
	logger.Info("Permit check completed in %v", time.Since(start))

	return events, nil
}

// reportCycleError sends the error notification matching err's class.
func (c *Checker) reportCycleError(ctx context.Context, err error) {
	class := Classify(err)

	var message string
	var cooldown time.Duration
	switch class {
	case ClassConnectivity:
		logger.Error("Network error: %v", err)
		message, cooldown = "Network error while checking permits", c.cooldowns.Connectivity
	case ClassDataFormat:
		logger.Error("Data format error: %v", err)
		message, cooldown = "API returned invalid data format", c.cooldowns.DataFormat
	default:
		logger.Error("Unexpected error during permit check: %v", err)
		message, cooldown = "Unexpected error during permit checking", c.cooldowns.Other
	}

	c.notifier.NotifyError(ctx, err, message, notify.SeverityError, cooldown)
}
