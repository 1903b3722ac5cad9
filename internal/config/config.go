package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	Gym       GymConfig
	Messaging MessagingConfig
	Schedule  ScheduleConfig
}

type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	// URL is a postgres:// DSN or a SQLite file path
	URL           string
	SlowThreshold time.Duration
}

type RedisConfig struct {
	URL string
}

type JWTConfig struct {
	SecretKey []byte
}

type LogConfig struct {
	Level  string
	Format string
}

// GymConfig holds the defaults used when a settings row is missing.
type GymConfig struct {
	Name        string
	Currency    string
	MonthlyFee  string
	CountryCode string
}

// ReminderMode selects how reminders are rendered.
type ReminderMode string

const (
	ModeText     ReminderMode = "text"
	ModeTemplate ReminderMode = "template"
)

func (m ReminderMode) Valid() bool {
	return m == ModeText || m == ModeTemplate
}

type MessagingConfig struct {
	Token         string
	PhoneNumberID string
	APIBase       string
	APIVersion    string
	TemplateName  string
	TemplateLang  string
	SendTimeout   time.Duration
	// SendRate is the maximum sends per second, 0 for unlimited
	SendRate float64
	Mode     ReminderMode
}

type ScheduleConfig struct {
	Enabled    bool
	Hour       int
	Minute     int
	RunTimeout time.Duration
}

// Load returns application configuration loaded from environment variables
func Load() *Config {
	messaging := MessagingConfig{
		Token:         os.Getenv("WHATSAPP_TOKEN"),
		PhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
		APIBase:       getEnvWithDefault("WHATSAPP_API_BASE", "https://graph.facebook.com"),
		APIVersion:    getEnvWithDefault("WHATSAPP_API_VERSION", "v20.0"),
		TemplateName:  os.Getenv("WHATSAPP_TEMPLATE_FEE_REMINDER_NAME"),
		TemplateLang:  getEnvWithDefault("WHATSAPP_TEMPLATE_LANG", "en"),
		SendTimeout:   getDurationWithDefault("MESSAGING_SEND_TIMEOUT", 20*time.Second),
		SendRate:      getFloatWithDefault("MESSAGING_SEND_RATE", 0),
	}
	messaging.Mode = resolveMode(os.Getenv("REMINDER_MODE"), messaging.TemplateName)

	return &Config{
		Server: ServerConfig{
			Port:            getEnvWithDefault("PORT", "8000"),
			ShutdownTimeout: getDurationWithDefault("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Database: DatabaseConfig{
			URL:           getEnvWithDefault("DATABASE_URL", "gym.db"),
			SlowThreshold: getDurationWithDefault("DB_SLOW_THRESHOLD", 200*time.Millisecond),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		JWT: JWTConfig{
			SecretKey: []byte(os.Getenv("SECRET_KEY")),
		},
		Log: LogConfig{
			Level:  getEnvWithDefault("LOG_LEVEL", "info"),
			Format: getEnvWithDefault("LOG_FORMAT", "json"),
		},
		Gym: GymConfig{
			Name:        getEnvWithDefault("GYM_NAME", "Zaidan Fitness"),
			Currency:    getEnvWithDefault("CURRENCY_CODE", "USD"),
			MonthlyFee:  getEnvWithDefault("MONTHLY_PRICE", "8"),
			CountryCode: getEnvWithDefault("WHATSAPP_DEFAULT_COUNTRY_CODE", "92"),
		},
		Messaging: messaging,
		Schedule: ScheduleConfig{
			Enabled:    getBoolWithDefault("SCHEDULE_ENABLED", true),
			Hour:       getIntWithDefault("SCHEDULE_TIME_HH", 9),
			Minute:     getIntWithDefault("SCHEDULE_TIME_MM", 0),
			RunTimeout: getDurationWithDefault("SCHEDULE_RUN_TIMEOUT", 30*time.Minute),
		},
	}
}

// Validate checks values that cannot be defaulted sensibly.
func (c *Config) Validate() error {
	if c.Schedule.Hour < 0 || c.Schedule.Hour > 23 {
		return fmt.Errorf("SCHEDULE_TIME_HH must be 0-23, got %d", c.Schedule.Hour)
	}
	if c.Schedule.Minute < 0 || c.Schedule.Minute > 59 {
		return fmt.Errorf("SCHEDULE_TIME_MM must be 0-59, got %d", c.Schedule.Minute)
	}
	if !c.Messaging.Mode.Valid() {
		return fmt.Errorf("REMINDER_MODE must be %q or %q, got %q", ModeText, ModeTemplate, c.Messaging.Mode)
	}
	if c.Messaging.SendRate < 0 {
		return fmt.Errorf("MESSAGING_SEND_RATE must not be negative")
	}
	return nil
}

// resolveMode picks the reminder mode once at startup. An explicit mode
// wins; otherwise a configured template name selects template mode.
func resolveMode(explicit, templateName string) ReminderMode {
	if explicit != "" {
		return ReminderMode(strings.ToLower(strings.TrimSpace(explicit)))
	}
	if templateName != "" {
		return ModeTemplate
	}
	return ModeText
}

func getEnvWithDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getIntWithDefault(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatWithDefault(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolWithDefault(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return defaultValue
}
