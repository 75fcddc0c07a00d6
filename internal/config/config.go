// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nhsjobwatch/jobwatch/internal/jobs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Store    StoreConfig    `mapstructure:"store"`
	Notify   NotifyConfig   `mapstructure:"notify"`
}

// ServerConfig controls the ops HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// TelegramConfig holds the bot connection settings.
type TelegramConfig struct {
	Token              string `mapstructure:"token"`
	PollTimeoutSeconds int    `mapstructure:"poll_timeout_seconds"`
}

// ScraperConfig governs the listing fetch pipeline.
type ScraperConfig struct {
	BaseURL        string              `mapstructure:"base_url"`
	UserAgent      string              `mapstructure:"user_agent"`
	TimeoutSeconds int                 `mapstructure:"timeout_seconds"`
	DelayMs        int                 `mapstructure:"delay_ms"`
	MaxPages       int                 `mapstructure:"max_pages"`
	Queries        []map[string]string `mapstructure:"queries"`
	RelevantTerms  [][]string          `mapstructure:"relevant_terms"`
}

// StoreConfig selects and configures the backing tabular service.
type StoreConfig struct {
	Provider        string         `mapstructure:"provider"`
	CacheTTLSeconds int            `mapstructure:"cache_ttl_seconds"`
	Quota           QuotaConfig    `mapstructure:"quota"`
	Sheets          SheetsConfig   `mapstructure:"sheets"`
	Postgres        PostgresConfig `mapstructure:"postgres"`
}

// QuotaConfig bounds backing-service calls per window.
type QuotaConfig struct {
	Calls         int `mapstructure:"calls"`
	PeriodSeconds int `mapstructure:"period_seconds"`
}

// SheetsConfig identifies the Google Sheets tables.
type SheetsConfig struct {
	CredentialsFile         string `mapstructure:"credentials_file"`
	JobsSpreadsheetID       string `mapstructure:"jobs_spreadsheet_id"`
	RecipientsSpreadsheetID string `mapstructure:"recipients_spreadsheet_id"`
}

// PostgresConfig identifies the Postgres tables.
type PostgresConfig struct {
	DSN             string `mapstructure:"dsn"`
	JobsTable       string `mapstructure:"jobs_table"`
	RecipientsTable string `mapstructure:"recipients_table"`
}

// NotifyConfig controls the periodic cycle.
type NotifyConfig struct {
	IntervalMinutes     int `mapstructure:"interval_minutes"`
	InitialDelaySeconds int `mapstructure:"initial_delay_seconds"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JOBWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
	v.SetDefault("telegram.poll_timeout_seconds", 30)
	// Registered empty so AutomaticEnv can supply them without a config file.
	v.SetDefault("telegram.token", "")
	v.SetDefault("store.sheets.credentials_file", "")
	v.SetDefault("store.sheets.jobs_spreadsheet_id", "")
	v.SetDefault("store.sheets.recipients_spreadsheet_id", "")
	v.SetDefault("store.postgres.dsn", "")
	v.SetDefault("scraper.base_url", "https://www.jobs.nhs.uk/candidate/search/results")
	v.SetDefault("scraper.user_agent", "jobwatch-bot/0.1")
	v.SetDefault("scraper.timeout_seconds", 15)
	v.SetDefault("scraper.delay_ms", 500)
	v.SetDefault("scraper.max_pages", 100)
	v.SetDefault("scraper.queries", []map[string]string{{
		"keyword":  "Assistant Psychologist",
		"location": "London",
		"distance": "20",
		"language": "en",
	}})
	v.SetDefault("scraper.relevant_terms", [][]string{{"psychologist"}, {"therapist"}})
	v.SetDefault("store.provider", "sheets")
	v.SetDefault("store.cache_ttl_seconds", 300)
	v.SetDefault("store.quota.calls", 40)
	v.SetDefault("store.quota.period_seconds", 60)
	v.SetDefault("store.postgres.jobs_table", "jobs")
	v.SetDefault("store.postgres.recipients_table", "recipients")
	v.SetDefault("notify.interval_minutes", 5)
	v.SetDefault("notify.initial_delay_seconds", 10)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram.token must be set")
	}
	if c.Scraper.BaseURL == "" {
		return fmt.Errorf("scraper.base_url must be set")
	}
	if len(c.Scraper.Queries) == 0 {
		return fmt.Errorf("scraper.queries must not be empty")
	}
	if c.Store.Quota.Calls <= 0 || c.Store.Quota.PeriodSeconds <= 0 {
		return fmt.Errorf("store.quota.calls and store.quota.period_seconds must be > 0")
	}
	switch c.Store.Provider {
	case "sheets":
		if c.Store.Sheets.JobsSpreadsheetID == "" || c.Store.Sheets.RecipientsSpreadsheetID == "" {
			return fmt.Errorf("store.sheets spreadsheet ids must be set when provider is sheets")
		}
	case "postgres":
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("store.postgres.dsn must be set when provider is postgres")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store.provider %q", c.Store.Provider)
	}
	if c.Notify.IntervalMinutes <= 0 {
		return fmt.Errorf("notify.interval_minutes must be > 0")
	}
	return nil
}

// QuerySpecs converts the configured queries into the scraper's form.
func (c ScraperConfig) QuerySpecs() []jobs.QuerySpec {
	specs := make([]jobs.QuerySpec, len(c.Queries))
	for i, q := range c.Queries {
		spec := make(jobs.QuerySpec, len(q))
		for k, v := range q {
			spec[k] = v
		}
		specs[i] = spec
	}
	return specs
}

// RequestTimeout converts the scraper timeout into a duration.
func (c ScraperConfig) RequestTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Delay converts the per-request delay into a duration.
func (c ScraperConfig) Delay() time.Duration {
	return time.Duration(c.DelayMs) * time.Millisecond
}

// CacheTTL converts the cache window into a duration.
func (c StoreConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// QuotaPeriod converts the quota window into a duration.
func (c QuotaConfig) QuotaPeriod() time.Duration {
	return time.Duration(c.PeriodSeconds) * time.Second
}

// Interval converts the cycle period into a duration.
func (c NotifyConfig) Interval() time.Duration {
	return time.Duration(c.IntervalMinutes) * time.Minute
}

// InitialDelay converts the startup delay into a duration.
func (c NotifyConfig) InitialDelay() time.Duration {
	return time.Duration(c.InitialDelaySeconds) * time.Second
}

// PollTimeout converts the long-poll timeout into a duration.
func (c TelegramConfig) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutSeconds) * time.Second
}
