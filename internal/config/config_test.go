package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAndValidate(t *testing.T) {
	path := writeConfig(t, `
recgov:
  base_url: "https://www.recreation.gov"
  timeout: 20s
  max_retries: 4
  request_spacing: 500ms

sections:
  - permit: "234622"
    division: "376"
    river: Salmon
    name: Main Salmon
    start_date: "2025-08-01T00:00:00.000Z"
    end_date: "2025-08-31T00:00:00.000Z"
  - permit: "250014"
    river: Yampa
    name: Yampa
    start_date: "2025-08-01T00:00:00.000Z"
    end_date: "2025-08-31T00:00:00.000Z"

scheduler:
  interval_min: 1m
  interval_max: 2m

email:
  enabled: true
  username: "checker@example.com"
  password: "secret"
  alert_recipients:
    - a@example.com
    - b@example.com

storage:
  file_path: "./data/test.json"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.RecGov.Timeout != 20*time.Second || cfg.RecGov.MaxRetries != 4 {
		t.Errorf("Unexpected recgov config: %+v", cfg.RecGov)
	}
	if cfg.RecGov.RequestSpacing != 500*time.Millisecond {
		t.Errorf("Unexpected request spacing %v", cfg.RecGov.RequestSpacing)
	}
	if len(cfg.Sections) != 2 || cfg.Sections[0].Division != "376" || cfg.Sections[1].Name != "Yampa" {
		t.Errorf("Unexpected sections: %+v", cfg.Sections)
	}
	if cfg.Scheduler.IntervalMin != time.Minute || cfg.Scheduler.BackoffMax != 7*time.Minute {
		t.Errorf("Unexpected scheduler config: %+v", cfg.Scheduler)
	}
	if cfg.Email.From != "checker@example.com" {
		t.Errorf("Expected From to default to username, got %q", cfg.Email.From)
	}
	if cfg.Email.Port != 587 || cfg.Email.Host != "smtp.gmail.com" {
		t.Errorf("Unexpected SMTP defaults %s:%d", cfg.Email.Host, cfg.Email.Port)
	}
	if len(cfg.Email.AlertRecipients) != 2 {
		t.Errorf("Expected 2 alert recipients, got %v", cfg.Email.AlertRecipients)
	}
	if cfg.Cooldowns.Connectivity != time.Hour || cfg.Cooldowns.DataFormat != 15*time.Minute || cfg.Cooldowns.Other != 10*time.Minute {
		t.Errorf("Unexpected cooldown defaults %+v", cfg.Cooldowns)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	names := cfg.SectionNames()
	expected := []string{"Yampa", "Gates of Ladore", "Middle Fork Salmon", "Main Salmon"}
	if strings.Join(names, ",") != strings.Join(expected, ",") {
		t.Errorf("Expected default sections %v, got %v", expected, names)
	}
	if cfg.RecGov.BaseURL != "https://www.recreation.gov" {
		t.Errorf("Unexpected base URL %s", cfg.RecGov.BaseURL)
	}
	if cfg.Scheduler.IntervalMin != 40*time.Second || cfg.Scheduler.IntervalMax != 80*time.Second {
		t.Errorf("Unexpected interval defaults %+v", cfg.Scheduler)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing config file")
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PERMIT_EMAIL", "legacy@example.com")
	t.Setenv("PERMIT_PASSWORD", "app-password")
	t.Setenv("PERMIT_CHECKER_LOGGING_LEVEL", "warn")
	t.Setenv("PERMIT_CHECKER_INTAKE_LISTEN_ADDR", ":9090")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Email.Username != "legacy@example.com" || cfg.Email.From != "legacy@example.com" {
		t.Errorf("Expected PERMIT_EMAIL to set username and from, got %q / %q", cfg.Email.Username, cfg.Email.From)
	}
	if cfg.Email.Password != "app-password" {
		t.Errorf("Expected PERMIT_PASSWORD to set password")
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Expected logging.level from env, got %q", cfg.Logging.Level)
	}
	if cfg.Intake.ListenAddr != ":9090" {
		t.Errorf("Expected intake.listen_addr from env, got %q", cfg.Intake.ListenAddr)
	}
	if got := cfg.ErrorRecipients(); len(got) != 1 || got[0] != "legacy@example.com" {
		t.Errorf("Expected error recipients to fall back to sender, got %v", got)
	}
}

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	cfg.Email.Username = "checker@example.com"
	cfg.Email.From = "checker@example.com"
	cfg.Email.AlertRecipients = []string{"river@example.com"}
	return cfg
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		errContains string
	}{
		{
			name:        "missing base url",
			mutate:      func(c *Config) { c.RecGov.BaseURL = "" },
			errContains: "recgov.base_url",
		},
		{
			name:        "zero retries",
			mutate:      func(c *Config) { c.RecGov.MaxRetries = 0 },
			errContains: "recgov.max_retries",
		},
		{
			name:        "no sections",
			mutate:      func(c *Config) { c.Sections = nil },
			errContains: "at least one section",
		},
		{
			name:        "duplicate section names",
			mutate:      func(c *Config) { c.Sections[1].Name = c.Sections[0].Name },
			errContains: "duplicate section name",
		},
		{
			name:        "section missing permit",
			mutate:      func(c *Config) { c.Sections[2].Permit = "" },
			errContains: "sections[2]",
		},
		{
			name:        "inverted interval",
			mutate:      func(c *Config) { c.Scheduler.IntervalMax = c.Scheduler.IntervalMin - time.Second },
			errContains: "scheduler.interval_max",
		},
		{
			name:        "inverted backoff",
			mutate:      func(c *Config) { c.Scheduler.BackoffMax = time.Minute },
			errContains: "scheduler.backoff_max",
		},
		{
			name:        "zero cooldown",
			mutate:      func(c *Config) { c.Cooldowns.DataFormat = 0 },
			errContains: "cooldowns",
		},
		{
			name:        "email without sender",
			mutate:      func(c *Config) { c.Email.From = "" },
			errContains: "email.from",
		},
		{
			name:        "email without recipients",
			mutate:      func(c *Config) { c.Email.AlertRecipients = nil },
			errContains: "email.alert_recipients",
		},
		{
			name:        "email with bad recipient",
			mutate:      func(c *Config) { c.Email.AlertRecipients = []string{"not-an-address"} },
			errContains: "invalid address",
		},
		{
			name: "telegram without token",
			mutate: func(c *Config) {
				c.Telegram.Enabled = true
				c.Telegram.ChatID = "123"
			},
			errContains: "telegram.bot_token",
		},
		{
			name: "intake without db path",
			mutate: func(c *Config) {
				c.Intake.Enabled = true
				c.Intake.DBPath = ""
			},
			errContains: "intake.db_path",
		},
		{
			name:        "bad log level",
			mutate:      func(c *Config) { c.Logging.Level = "verbose" },
			errContains: "logging.level",
		},
		{
			name:        "bad log format",
			mutate:      func(c *Config) { c.Logging.Format = "xml" },
			errContains: "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("Expected error containing %q, got %v", tt.errContains, err)
			}
		})
	}
}

func TestValidate_EmailDisabled(t *testing.T) {
	cfg := validConfig(t)
	cfg.Email.Enabled = false
	cfg.Email.From = ""
	cfg.Email.AlertRecipients = nil
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected disabled email to skip email checks, got %v", err)
	}
}
