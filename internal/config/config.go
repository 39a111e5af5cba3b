package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/example/lingoloop/pkg/models"
)

// Config represents the configuration for the whole service
type Config struct {
	LogMode   string
	Language  string
	Database  DatabaseConfig
	OpenAI    OpenAIConfig
	Telegram  TelegramConfig
	Reminders ReminderConfig
	Selection SelectionConfig
}

type DatabaseConfig struct {
	// "sqlite3" or "postgres"
	Driver string
	// Empty DSN with sqlite3 means <DataDir>/lingoloop.db
	DSN     string
	DataDir string
}

type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxRetries  int
	Timeout     time.Duration
	Temperature float32
}

type TelegramConfig struct {
	Token string
}

// ReminderConfig controls the due-review reminder sweep
type ReminderConfig struct {
	// Reminders are only sent between these hours (inclusive)
	StartHour int
	EndHour   int
	// Time between sweeps
	Every time.Duration
	// Learners checked in parallel
	Concurrency int
}

// SelectionConfig holds defaults for story generation requests
type SelectionConfig struct {
	TargetWordCount       int
	NewWordFraction       float64
	PrioritizeReview      bool
	Level                 models.ProficiencyLevel
	MaxGenerationAttempts int
	// Zero seeds from the clock
	Seed int64
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		LogMode:  "dev",
		Language: "en",
		Database: DatabaseConfig{
			Driver:  "sqlite3",
			DataDir: "data",
		},
		OpenAI: OpenAIConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o-mini",
			MaxRetries:  3,
			Timeout:     30 * time.Second,
			Temperature: 0.8,
		},
		Reminders: ReminderConfig{
			StartHour:   8,
			EndHour:     22,
			Every:       time.Hour,
			Concurrency: 4,
		},
		Selection: SelectionConfig{
			TargetWordCount:       100,
			NewWordFraction:       0.05,
			PrioritizeReview:      true,
			Level:                 models.LevelA2,
			MaxGenerationAttempts: 3,
		},
	}
}

// Load reads optional .env files, then LINGOLOOP_* environment variables on
// top of the defaults. Missing .env files are ignored.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	v := newViper()
	def := DefaultConfig()

	cfg := &Config{
		LogMode:  v.GetString("log_mode"),
		Language: v.GetString("language"),
		Database: DatabaseConfig{
			Driver:  v.GetString("database.driver"),
			DSN:     v.GetString("database.dsn"),
			DataDir: v.GetString("database.data_dir"),
		},
		OpenAI: OpenAIConfig{
			APIKey:      v.GetString("openai.api_key"),
			BaseURL:     v.GetString("openai.base_url"),
			Model:       v.GetString("openai.model"),
			MaxRetries:  v.GetInt("openai.max_retries"),
			Timeout:     v.GetDuration("openai.timeout"),
			Temperature: float32(v.GetFloat64("openai.temperature")),
		},
		Telegram: TelegramConfig{
			Token: v.GetString("telegram.token"),
		},
		Reminders: ReminderConfig{
			StartHour:   v.GetInt("reminders.start_hour"),
			EndHour:     v.GetInt("reminders.end_hour"),
			Every:       v.GetDuration("reminders.every"),
			Concurrency: v.GetInt("reminders.concurrency"),
		},
		Selection: SelectionConfig{
			TargetWordCount:       v.GetInt("selection.target_word_count"),
			NewWordFraction:       v.GetFloat64("selection.new_word_fraction"),
			PrioritizeReview:      v.GetBool("selection.prioritize_review"),
			Level:                 models.ProficiencyLevel(strings.ToUpper(v.GetString("selection.level"))),
			MaxGenerationAttempts: v.GetInt("selection.max_generation_attempts"),
			Seed:                  v.GetInt64("selection.seed"),
		},
	}
	if cfg.Reminders.Every <= 0 {
		cfg.Reminders.Every = def.Reminders.Every
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newViper() *viper.Viper {
	def := DefaultConfig()
	v := viper.New()
	v.SetEnvPrefix("LINGOLOOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log_mode", def.LogMode)
	v.SetDefault("language", def.Language)
	v.SetDefault("database.driver", def.Database.Driver)
	v.SetDefault("database.dsn", def.Database.DSN)
	v.SetDefault("database.data_dir", def.Database.DataDir)
	v.SetDefault("openai.base_url", def.OpenAI.BaseURL)
	v.SetDefault("openai.model", def.OpenAI.Model)
	v.SetDefault("openai.max_retries", def.OpenAI.MaxRetries)
	v.SetDefault("openai.timeout", def.OpenAI.Timeout)
	v.SetDefault("openai.temperature", def.OpenAI.Temperature)
	v.SetDefault("reminders.start_hour", def.Reminders.StartHour)
	v.SetDefault("reminders.end_hour", def.Reminders.EndHour)
	v.SetDefault("reminders.every", def.Reminders.Every)
	v.SetDefault("reminders.concurrency", def.Reminders.Concurrency)
	v.SetDefault("selection.target_word_count", def.Selection.TargetWordCount)
	v.SetDefault("selection.new_word_fraction", def.Selection.NewWordFraction)
	v.SetDefault("selection.prioritize_review", def.Selection.PrioritizeReview)
	v.SetDefault("selection.level", string(def.Selection.Level))
	v.SetDefault("selection.max_generation_attempts", def.Selection.MaxGenerationAttempts)
	v.SetDefault("selection.seed", def.Selection.Seed)

	// Names used by earlier deployments.
	_ = v.BindEnv("openai.api_key", "LINGOLOOP_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("telegram.token", "LINGOLOOP_TELEGRAM_TOKEN", "TELEGRAM_BOT_TOKEN")
	_ = v.BindEnv("reminders.start_hour", "LINGOLOOP_REMINDERS_START_HOUR", "NOTIFICATION_START_HOUR")
	_ = v.BindEnv("reminders.end_hour", "LINGOLOOP_REMINDERS_END_HOUR", "NOTIFICATION_END_HOUR")
	_ = v.BindEnv("database.driver", "LINGOLOOP_DATABASE_DRIVER", "DB_TYPE")

	return v
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	case "sqlite":
		c.Database.Driver = "sqlite3"
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.Driver == "postgres" && c.Database.DSN == "" {
		return fmt.Errorf("database DSN is required for postgres")
	}
	if !validHour(c.Reminders.StartHour) || !validHour(c.Reminders.EndHour) {
		return fmt.Errorf("reminder hours must be within 0-23, got %d-%d", c.Reminders.StartHour, c.Reminders.EndHour)
	}
	if c.Reminders.StartHour > c.Reminders.EndHour {
		return fmt.Errorf("reminder start hour %d is after end hour %d", c.Reminders.StartHour, c.Reminders.EndHour)
	}
	if c.Reminders.Concurrency < 1 {
		return fmt.Errorf("reminder concurrency must be positive, got %d", c.Reminders.Concurrency)
	}
	params := models.GenerationParams{
		TargetWordCount: c.Selection.TargetWordCount,
		NewWordFraction: c.Selection.NewWordFraction,
		Level:           c.Selection.Level,
	}
	if err := params.Validate(); err != nil {
		return err
	}
	if c.Selection.MaxGenerationAttempts < 1 {
		return fmt.Errorf("max generation attempts must be positive, got %d", c.Selection.MaxGenerationAttempts)
	}
	return nil
}

func validHour(h int) bool {
	return h >= 0 && h <= 23
}
