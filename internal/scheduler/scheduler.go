// Package scheduler drives check cycles at randomized intervals until shutdown.
package scheduler

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/owenriverk/recgov-permit-checker/internal/checker"
	"github.com/owenriverk/recgov-permit-checker/internal/logger"
	"github.com/owenriverk/recgov-permit-checker/internal/models"
	"github.com/owenriverk/recgov-permit-checker/internal/notify"
)

const loopErrorCooldown = 30 * time.Minute

// Cycle runs one check cycle.
type Cycle interface {
	Check(ctx context.Context) []models.AvailabilityEvent
}

// ErrorNotifier reports loop-level failures.
type ErrorNotifier interface {
	NotifyError(ctx context.Context, err error, message string, severity notify.Severity, cooldown time.Duration) bool
}

// Sleeper waits for d or until ctx is done, whichever comes first.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper.
type SleeperFunc func(ctx context.Context, d time.Duration) error

func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error {
	return f(ctx, d)
}

// TimerSleeper sleeps on a real timer.
var TimerSleeper Sleeper = SleeperFunc(func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
})

// Config bounds the randomized waits. Zero values take the defaults
// (40-80s between cycles, 5-7m after a loop failure).
type Config struct {
	IntervalMin time.Duration
	IntervalMax time.Duration
	BackoffMin  time.Duration
	BackoffMax  time.Duration
}

func (c Config) withDefaults() Config {
	if c.IntervalMin <= 0 {
		c.IntervalMin = 40 * time.Second
	}
	if c.IntervalMax < c.IntervalMin {
		c.IntervalMax = max(80*time.Second, c.IntervalMin)
	}
	if c.BackoffMin <= 0 {
		c.BackoffMin = 5 * time.Minute
	}
	if c.BackoffMax < c.BackoffMin {
		c.BackoffMax = max(7*time.Minute, c.BackoffMin)
	}
	return c
}

// Scheduler runs cycles back to back with a random pause in between.
type Scheduler struct {
	cycle    Cycle
	notifier ErrorNotifier
	cfg      Config
	sleeper  Sleeper
	rng      *rand.Rand

	cycles int
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithSleeper replaces the timer-based sleeper.
func WithSleeper(s Sleeper) Option {
	return func(sc *Scheduler) {
		if s != nil {
			sc.sleeper = s
		}
	}
}

// WithRand sets the random source for intervals and backoff.
func WithRand(r *rand.Rand) Option {
	return func(sc *Scheduler) {
		if r != nil {
			sc.rng = r
		}
	}
}

// New creates a Scheduler.
func New(cycle Cycle, notifier ErrorNotifier, cfg Config, opts ...Option) *Scheduler {
	s := &Scheduler{
		cycle:    cycle,
		notifier: notifier,
		cfg:      cfg.withDefaults(),
		sleeper:  TimerSleeper,
		rng:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cycles returns how many cycles have started.
func (s *Scheduler) Cycles() int {
	return s.cycles
}

// Run loops until ctx is cancelled and then returns nil.
func (s *Scheduler) Run(ctx context.Context) error {
	logger.Info("Starting permit checker (interval %v-%v)", s.cfg.IntervalMin, s.cfg.IntervalMax)

	for ctx.Err() == nil {
		s.cycles++
		logger.Info("Starting check #%d", s.cycles)

		wait := s.between(s.cfg.IntervalMin, s.cfg.IntervalMax)
		if err := s.runOnce(ctx); err != nil {
			logger.Error("Error in main loop: %v", err)
			s.notifier.NotifyError(ctx, err, "Error in main permit checking loop", notify.SeverityError, loopErrorCooldown)
			wait = s.between(s.cfg.BackoffMin, s.cfg.BackoffMax)
			logger.Info("Backing off for %v", wait.Round(time.Second))
		} else {
			logger.Debug("Waiting %v until next check", wait.Round(time.Second))
		}

		if err := s.sleeper.Sleep(ctx, wait); err != nil {
			break
		}
	}

	logger.Info("Permit checker stopped after %d checks", s.cycles)
	return nil
}

func (s *Scheduler) runOnce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = checker.NewPanicError(r)
		}
	}()
	s.cycle.Check(ctx)
	return nil
}

// between returns a uniform random duration in [lo, hi].
func (s *Scheduler) between(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(s.rng.Int64N(int64(hi-lo)+1))
}
