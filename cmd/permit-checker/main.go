package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/owenriverk/recgov-permit-checker/internal/checker"
	"github.com/owenriverk/recgov-permit-checker/internal/config"
	"github.com/owenriverk/recgov-permit-checker/internal/httpserver"
	"github.com/owenriverk/recgov-permit-checker/internal/logger"
	"github.com/owenriverk/recgov-permit-checker/internal/notify"
	"github.com/owenriverk/recgov-permit-checker/internal/preferences"
	"github.com/owenriverk/recgov-permit-checker/internal/recgov"
	"github.com/owenriverk/recgov-permit-checker/internal/scheduler"
	"github.com/owenriverk/recgov-permit-checker/internal/storage"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "permit-checker",
		Short:         "Watch recreation.gov river permits and email when cancellations open up",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(configPath)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runChecker(ctx, cfg)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file (defaults and environment only when empty)")

	root.AddCommand(newIntakeCmd(&configPath))
	root.AddCommand(newVersionCmd())

	return root
}

func newIntakeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "intake",
		Short: "Run only the preference intake HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(*configPath)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runIntake(ctx, cfg)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("permit-checker %s (commit=%s, built=%s)\n", Version, CommitSHA, BuildDate)
		},
	}
}

// setup loads and validates configuration and initializes logging.
func setup(configPath string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	if configPath != "" {
		logger.Info("Configuration loaded from %s", configPath)
	}
	return cfg, nil
}

// runChecker runs the check loop, plus the intake server when enabled, until
// ctx is cancelled.
func runChecker(ctx context.Context, cfg *config.Config) error {
	sender, err := buildSender(cfg)
	if err != nil {
		return err
	}

	cooldown := notify.NewCooldown(nil)
	notifier := notify.New(sender, cfg.Email.AlertRecipients, cfg.ErrorRecipients(), cooldown)

	store := storage.New(cfg.Storage.FilePath)
	client := recgov.NewClient(cfg.RecGov.BaseURL, cfg.RecGov.Timeout, recgov.ClientConfig{
		MaxRetries:          cfg.RecGov.MaxRetries,
		RetryDelayBase:      cfg.RecGov.RetryDelayBase,
		RequestSpacing:      cfg.RecGov.RequestSpacing,
		UserAgents:          cfg.RecGov.UserAgents,
		MaxIdleConns:        cfg.RecGov.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.RecGov.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.RecGov.IdleConnTimeout,
	})

	chk := checker.New(store, client, notifier, cfg.Sections, checker.Cooldowns{
		Connectivity: cfg.Cooldowns.Connectivity,
		DataFormat:   cfg.Cooldowns.DataFormat,
		Other:        cfg.Cooldowns.Other,
	})
	sched := scheduler.New(chk, notifier, scheduler.Config{
		IntervalMin: cfg.Scheduler.IntervalMin,
		IntervalMax: cfg.Scheduler.IntervalMax,
		BackoffMin:  cfg.Scheduler.BackoffMin,
		BackoffMax:  cfg.Scheduler.BackoffMax,
	})

	logger.Info("Watching %d sections, snapshot at %s", len(cfg.Sections), store.Path())
	for _, s := range cfg.Sections {
		logger.Debug("Section %s (permit %s, division %q, %s to %s)", s.Label(), s.Permit, s.Division, s.StartDate, s.EndDate)
	}

	if !cfg.Intake.Enabled {
		return sched.Run(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(gctx) })
	g.Go(func() error { return runIntake(gctx, cfg) })
	return g.Wait()
}

// runIntake serves the preference API until ctx is cancelled.
func runIntake(ctx context.Context, cfg *config.Config) error {
	repo, err := preferences.Open(cfg.Intake.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error("Failed to close preferences database: %v", err)
		}
	}()

	if err := repo.Migrate(ctx); err != nil {
		return err
	}

	srv := httpserver.New(cfg.Intake.ListenAddr, repo, cfg.SectionNames(), cfg.Intake.RequestTimeout)
	return srv.Run(ctx)
}

// buildSender assembles the enabled notification channels. It returns a nil
// Sender when none are enabled.
func buildSender(cfg *config.Config) (notify.Sender, error) {
	var channels []notify.NamedSender

	if cfg.Email.Enabled {
		channels = append(channels, notify.NamedSender{
			Name: "email",
			Sender: notify.NewSMTPSender(notify.SMTPConfig{
				Host:     cfg.Email.Host,
				Port:     cfg.Email.Port,
				Username: cfg.Email.Username,
				Password: cfg.Email.Password,
				From:     cfg.Email.From,
				Timeout:  cfg.Email.Timeout,
			}),
		})
		logger.Info("Email notifications enabled via %s:%d", cfg.Email.Host, cfg.Email.Port)
	} else {
		logger.Warn("Email notifications disabled")
	}

	if cfg.Telegram.Enabled {
		tg, err := notify.NewTelegramSender(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Telegram sender: %w", err)
		}
		channels = append(channels, notify.NamedSender{Name: "telegram", Sender: tg})
		logger.Info("Telegram mirror enabled")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	multi := notify.NewMultiSender(channels...)
	if multi.Len() == 0 {
		return nil, nil
	}
	return multi, nil
}
