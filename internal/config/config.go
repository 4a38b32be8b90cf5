package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone  = "UTC"
	configPathEnv    = "DAILYBRIEF_CONFIG"
	databasePathEnv  = "DATABASE_PATH"
	openAIAPIKeyEnv  = "OPENAI_API_KEY"
	openAIModelEnv   = "OPENAI_MODEL"
	smtpHostEnv      = "SMTP_HOST"
	smtpPortEnv      = "SMTP_PORT"
	smtpUsernameEnv  = "SMTP_USERNAME"
	smtpPasswordEnv  = "SMTP_PASSWORD"
	smtpFromEmailEnv = "FROM_EMAIL"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	Logging   LoggingConfig   `yaml:"logging"`
	Sources   SourcesConfig   `yaml:"sources"`
}

// DatabaseConfig describes the SQLite database location.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SchedulerConfig defines when the daily pipeline should run.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// PipelineConfig tunes the batch pipeline.
type PipelineConfig struct {
	LookbackHours int  `yaml:"lookbackHours"`
	BackfillLimit int  `yaml:"backfillLimit"`
	HTMLEmail     bool `yaml:"htmlEmail"`
}

// Lookback returns the configured lookback window as a duration.
func (p PipelineConfig) Lookback() time.Duration {
	hours := p.LookbackHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// OpenAIConfig defines how to contact the summarization/ranking collaborator.
type OpenAIConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`
}

// SMTPConfig wires all data required to deliver digest emails.
type SMTPConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	FromEmail string `yaml:"fromEmail"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SourcesConfig lists the configured content origins.
type SourcesConfig struct {
	Articles []ArticleSourceConfig `yaml:"articles"`
	Channels []ChannelConfig       `yaml:"channels"`
}

// ArticleSourceConfig describes one logical article source. A source either
// names a single RSS feed or multiplexes several tagged feeds.
type ArticleSourceConfig struct {
	Name  string            `yaml:"name"`
	URL   string            `yaml:"url"`
	Type  string            `yaml:"type"`
	RSS   string            `yaml:"rss"`
	Feeds map[string]string `yaml:"feeds"`
}

// ChannelConfig describes a single video channel to follow.
type ChannelConfig struct {
	Identifier string `yaml:"identifier"`
	Name       string `yaml:"name"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv(openAIAPIKeyEnv); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv(openAIModelEnv); v != "" {
		c.OpenAI.Model = v
	}

	if v := os.Getenv(smtpHostEnv); v != "" {
		c.SMTP.Host = v
	}
	if v := os.Getenv(smtpPortEnv); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.SMTP.Port = port
		}
	}
	if v := os.Getenv(smtpUsernameEnv); v != "" {
		c.SMTP.Username = v
	}
	if v := os.Getenv(smtpPasswordEnv); v != "" {
		c.SMTP.Password = v
	}
	if v := os.Getenv(smtpFromEmailEnv); v != "" {
		c.SMTP.FromEmail = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Database.Path != "" {
		base.Database = override.Database
	}

	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Pipeline.LookbackHours != 0 {
		base.Pipeline.LookbackHours = override.Pipeline.LookbackHours
	}
	if override.Pipeline.BackfillLimit != 0 {
		base.Pipeline.BackfillLimit = override.Pipeline.BackfillLimit
	}
	if override.Pipeline.HTMLEmail {
		base.Pipeline.HTMLEmail = true
	}

	if override.OpenAI.Endpoint != "" {
		base.OpenAI.Endpoint = override.OpenAI.Endpoint
	}
	if override.OpenAI.Model != "" {
		base.OpenAI.Model = override.OpenAI.Model
	}
	if override.OpenAI.APIKey != "" {
		base.OpenAI.APIKey = override.OpenAI.APIKey
	}

	if override.SMTP.Host != "" {
		base.SMTP.Host = override.SMTP.Host
	}
	if override.SMTP.Port != 0 {
		base.SMTP.Port = override.SMTP.Port
	}
	if override.SMTP.Username != "" {
		base.SMTP.Username = override.SMTP.Username
	}
	if override.SMTP.Password != "" {
		base.SMTP.Password = override.SMTP.Password
	}
	if override.SMTP.FromEmail != "" {
		base.SMTP.FromEmail = override.SMTP.FromEmail
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if len(override.Sources.Articles) > 0 {
		base.Sources.Articles = override.Sources.Articles
	}
	if len(override.Sources.Channels) > 0 {
		base.Sources.Channels = override.Sources.Channels
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Database:  DatabaseConfig{Path: "dailybrief.db"},
		Scheduler: SchedulerConfig{CronExpression: "0 6 * * *", Timezone: defaultTimezone, location: tz},
		Pipeline:  PipelineConfig{LookbackHours: 24, BackfillLimit: 50, HTMLEmail: true},
		OpenAI: OpenAIConfig{
			Endpoint: "https://api.openai.com/v1/chat/completions",
			Model:    "gpt-4o-mini",
		},
		SMTP:    SMTPConfig{Host: "smtp.gmail.com", Port: 587},
		Logging: LoggingConfig{Level: "info"},
		Sources: SourcesConfig{
			Articles: []ArticleSourceConfig{
				{
					Name: "openai",
					URL:  "https://openai.com/news",
					Type: "rss",
					RSS:  "https://openai.com/news/rss",
				},
			},
		},
	}
}
