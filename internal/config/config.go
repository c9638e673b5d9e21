package config

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/owenriverk/recgov-permit-checker/internal/models"
)

// Config represents the complete application configuration
type Config struct {
	RecGov    RecGovConfig     `mapstructure:"recgov"`
	Sections  []models.Section `mapstructure:"sections"`
	Scheduler SchedulerConfig  `mapstructure:"scheduler"`
	Cooldowns CooldownConfig   `mapstructure:"cooldowns"`
	Email     EmailConfig      `mapstructure:"email"`
	Telegram  TelegramConfig   `mapstructure:"telegram"`
	Storage   StorageConfig    `mapstructure:"storage"`
	Intake    IntakeConfig     `mapstructure:"intake"`
	Logging   LoggingConfig    `mapstructure:"logging"`
}

// RecGovConfig holds recreation.gov API client configuration
type RecGovConfig struct {
	BaseURL             string        `mapstructure:"base_url"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxRetries          int           `mapstructure:"max_retries"`
	RetryDelayBase      time.Duration `mapstructure:"retry_delay_base"`
	RequestSpacing      time.Duration `mapstructure:"request_spacing"`
	UserAgents          []string      `mapstructure:"user_agents"`
	MaxIdleConns        int           `mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `mapstructure:"idle_conn_timeout"`
}

// SchedulerConfig bounds the randomized wait between cycles and after loop failures
type SchedulerConfig struct {
	IntervalMin time.Duration `mapstructure:"interval_min"`
	IntervalMax time.Duration `mapstructure:"interval_max"`
	BackoffMin  time.Duration `mapstructure:"backoff_min"`
	BackoffMax  time.Duration `mapstructure:"backoff_max"`
}

// CooldownConfig holds the error notification cooldown per failure class
type CooldownConfig struct {
	Connectivity time.Duration `mapstructure:"connectivity"`
	DataFormat   time.Duration `mapstructure:"data_format"`
	Other        time.Duration `mapstructure:"other"`
}

// EmailConfig holds SMTP notification configuration
type EmailConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	From            string        `mapstructure:"from"`
	AlertRecipients []string      `mapstructure:"alert_recipients"`
	ErrorRecipients []string      `mapstructure:"error_recipients"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// TelegramConfig holds Telegram notification configuration
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// StorageConfig holds snapshot persistence configuration
type StorageConfig struct {
	FilePath string `mapstructure:"file_path"`
}

// IntakeConfig holds the preference intake service configuration
type IntakeConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	ListenAddr     string        `mapstructure:"listen_addr"`
	DBPath         string        `mapstructure:"db_path"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultSections returns the four river sections watched out of the box,
// covering July 2025.
func DefaultSections() []models.Section {
	const (
		start = "2025-07-01T00:00:00.000Z"
		end   = "2025-07-31T00:00:00.000Z"
	)
	return []models.Section{
		{Permit: "250014", Division: "371", River: "Yampa", Name: "Yampa", PutIn: "Deerlodge Park", TakeOut: "Split Mountain", StartDate: start, EndDate: end},
		{Permit: "250014", Division: "380", River: "Green", Name: "Gates of Ladore", PutIn: "Lodore", TakeOut: "Split Mountain", StartDate: start, EndDate: end},
		{Permit: "234623", Division: "377", River: "Salmon", Name: "Middle Fork Salmon", PutIn: "Boundary Creek", TakeOut: "Cache Bar", StartDate: start, EndDate: end},
		{Permit: "234622", Division: "376", River: "Salmon", Name: "Main Salmon", PutIn: "Corn Creek", TakeOut: "Vinegar Creek", StartDate: start, EndDate: end},
	}
}

// Load reads configuration from file and environment variables. An empty path
// skips the file and uses defaults plus environment.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Enable environment variable override
	v.SetEnvPrefix("PERMIT_CHECKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindLegacyEnv(v)

	// Read config file
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Unmarshal into Config struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Sections) == 0 {
		cfg.Sections = DefaultSections()
	}
	if cfg.Email.From == "" {
		cfg.Email.From = cfg.Email.Username
	}

	return &cfg, nil
}

// bindLegacyEnv maps PERMIT_EMAIL and PERMIT_PASSWORD onto the email settings.
// The prefixed names still take precedence.
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("email.username", "PERMIT_CHECKER_EMAIL_USERNAME", "PERMIT_EMAIL")
	_ = v.BindEnv("email.from", "PERMIT_CHECKER_EMAIL_FROM", "PERMIT_EMAIL")
	_ = v.BindEnv("email.password", "PERMIT_CHECKER_EMAIL_PASSWORD", "PERMIT_PASSWORD")
}

// setDefaults configures default values for all configuration options
func setDefaults(v *viper.Viper) {
	// recreation.gov defaults
	v.SetDefault("recgov.base_url", "https://www.recreation.gov")
	v.SetDefault("recgov.timeout", "30s")
	v.SetDefault("recgov.max_retries", 3)
	v.SetDefault("recgov.retry_delay_base", "2s")
	v.SetDefault("recgov.request_spacing", "1s")
	v.SetDefault("recgov.max_idle_conns", 10)
	v.SetDefault("recgov.max_idle_conns_per_host", 5)
	v.SetDefault("recgov.idle_conn_timeout", "90s")

	// Scheduler defaults
	v.SetDefault("scheduler.interval_min", "40s")
	v.SetDefault("scheduler.interval_max", "80s")
	v.SetDefault("scheduler.backoff_min", "5m")
	v.SetDefault("scheduler.backoff_max", "7m")

	// Cooldown defaults
	v.SetDefault("cooldowns.connectivity", "60m")
	v.SetDefault("cooldowns.data_format", "15m")
	v.SetDefault("cooldowns.other", "10m")

	// Email defaults
	v.SetDefault("email.enabled", true)
	v.SetDefault("email.host", "smtp.gmail.com")
	v.SetDefault("email.port", 587)
	v.SetDefault("email.username", "")
	v.SetDefault("email.password", "")
	v.SetDefault("email.from", "")
	v.SetDefault("email.alert_recipients", []string{})
	v.SetDefault("email.error_recipients", []string{})
	v.SetDefault("email.timeout", "30s")

	// Telegram defaults
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	// Storage defaults
	v.SetDefault("storage.file_path", "./data/previous_permits.json")

	// Intake defaults
	v.SetDefault("intake.enabled", false)
	v.SetDefault("intake.listen_addr", ":8000")
	v.SetDefault("intake.db_path", "./data/preferences.db")
	v.SetDefault("intake.request_timeout", "15s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	// Validate recreation.gov config
	if c.RecGov.BaseURL == "" {
		return fmt.Errorf("recgov.base_url is required")
	}
	if c.RecGov.Timeout <= 0 {
		return fmt.Errorf("recgov.timeout must be positive")
	}
	if c.RecGov.MaxRetries < 1 {
		return fmt.Errorf("recgov.max_retries must be at least 1")
	}
	if c.RecGov.RequestSpacing < 0 {
		return fmt.Errorf("recgov.request_spacing must not be negative")
	}

	// Validate sections
	if len(c.Sections) == 0 {
		return fmt.Errorf("sections must contain at least one section")
	}
	seen := make(map[string]bool, len(c.Sections))
	for i, s := range c.Sections {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("sections[%d]: %w", i, err)
		}
		if seen[s.Name] {
			return fmt.Errorf("sections[%d]: duplicate section name %q", i, s.Name)
		}
		seen[s.Name] = true
	}

	// Validate scheduler config
	if c.Scheduler.IntervalMin <= 0 {
		return fmt.Errorf("scheduler.interval_min must be positive")
	}
	if c.Scheduler.IntervalMax < c.Scheduler.IntervalMin {
		return fmt.Errorf("scheduler.interval_max must be at least scheduler.interval_min")
	}
	if c.Scheduler.BackoffMin <= 0 {
		return fmt.Errorf("scheduler.backoff_min must be positive")
	}
	if c.Scheduler.BackoffMax < c.Scheduler.BackoffMin {
		return fmt.Errorf("scheduler.backoff_max must be at least scheduler.backoff_min")
	}

	// Validate cooldowns
	if c.Cooldowns.Connectivity <= 0 || c.Cooldowns.DataFormat <= 0 || c.Cooldowns.Other <= 0 {
		return fmt.Errorf("cooldowns must all be positive")
	}

	// Validate Email config
	if c.Email.Enabled {
		if c.Email.Host == "" {
			return fmt.Errorf("email.host is required when email is enabled")
		}
		if c.Email.From == "" {
			return fmt.Errorf("email.from (or PERMIT_EMAIL) is required when email is enabled")
		}
		if len(c.Email.AlertRecipients) == 0 {
			return fmt.Errorf("email.alert_recipients must contain at least one address when email is enabled")
		}
		for _, addr := range append(append([]string{c.Email.From}, c.Email.AlertRecipients...), c.Email.ErrorRecipients...) {
			if _, err := mail.ParseAddress(addr); err != nil {
				return fmt.Errorf("email: invalid address %q: %w", addr, err)
			}
		}
	}

	// Validate Telegram config
	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	// Validate Storage config
	if c.Storage.FilePath == "" {
		return fmt.Errorf("storage.file_path is required")
	}

	// Validate Intake config
	if c.Intake.Enabled {
		if c.Intake.ListenAddr == "" {
			return fmt.Errorf("intake.listen_addr is required when intake is enabled")
		}
		if c.Intake.DBPath == "" {
			return fmt.Errorf("intake.db_path is required when intake is enabled")
		}
	}

	// Validate Logging config
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}

// ErrorRecipients returns the addresses error notifications go to, falling
// back to the sending account itself.
func (c *Config) ErrorRecipients() []string {
	if len(c.Email.ErrorRecipients) > 0 {
		return c.Email.ErrorRecipients
	}
	if c.Email.From != "" {
		return []string{c.Email.From}
	}
	return nil
}

// SectionNames returns the configured section names in order.
func (c *Config) SectionNames() []string {
	names := make([]string, len(c.Sections))
	for i, s := range c.Sections {
		names[i] = s.Name
	}
	return names
}
