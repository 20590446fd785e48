// Package config loads and validates watcher configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/homework-watcher/internal/homework"
	"github.com/JakeFAU/homework-watcher/internal/notifier/telegram"
)

// Storage and database backends.
const (
	BackendS3       = "s3"
	BackendGCS      = "gcs"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Practicum PracticumConfig `mapstructure:"practicum"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Storage   StorageConfig   `mapstructure:"storage"`
	DB        DBConfig        `mapstructure:"db"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                 int    `mapstructure:"port"`
	APIKey               string `mapstructure:"api_key"`
	InvokeTimeoutSeconds int    `mapstructure:"invoke_timeout_seconds"`
}

// PracticumConfig configures the review status API client.
type PracticumConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	Token          string `mapstructure:"token"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	Cursor         int64  `mapstructure:"cursor"`
}

// TelegramConfig configures the notification bot.
type TelegramConfig struct {
	Token string `mapstructure:"token"`
	// ChatID is a numeric chat id or a public "@channelusername".
	ChatID         string  `mapstructure:"chat_id"`
	APIURL         string  `mapstructure:"api_url"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RatePerSecond  float64 `mapstructure:"rate_per_second"`
	Burst          int     `mapstructure:"burst"`
}

// StorageConfig selects the object store holding the last error text.
type StorageConfig struct {
	Backend         string `mapstructure:"backend"`
	Bucket          string `mapstructure:"bucket"`
	Key             string `mapstructure:"key"`
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	Backend          string `mapstructure:"backend"`
	DSN              string `mapstructure:"dsn"`
	Path             string `mapstructure:"path"`
	Table            string `mapstructure:"table"`
	MaxConns         int32  `mapstructure:"max_conns"`
	MinConns         int32  `mapstructure:"min_conns"`
	EnsureSchema     bool   `mapstructure:"ensure_schema"`
	RetryMaxAttempts int    `mapstructure:"retry_max_attempts"`
	RetryBaseDelayMs int    `mapstructure:"retry_base_delay_ms"`
	RetryMaxDelayMs  int    `mapstructure:"retry_max_delay_ms"`
}

// PubSubConfig holds metadata for change event publishing. Publishing is off when
// TopicName is empty.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ScheduleConfig sets the cron expression used by the schedule command.
type ScheduleConfig struct {
	Spec string `mapstructure:"spec"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// envBindings maps config keys to the environment names the deployment already uses.
// The WATCHER_ prefixed form is accepted as well.
var envBindings = map[string]string{
	"practicum.token":           "PRACTICUM_TOKEN",
	"practicum.endpoint":        "YP_ENDPOINT",
	"telegram.token":            "TELEGRAM_TOKEN",
	"telegram.chat_id":          "TELEGRAM_CHAT_ID",
	"storage.access_key_id":     "AWS_ACCESS_KEY_ID",
	"storage.secret_access_key": "AWS_SECRET_ACCESS_KEY",
	"storage.endpoint":          "S3_ENDPOINT",
	"db.dsn":                    "DATABASE_URL",
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range envBindings {
		prefixed := "WATCHER_" + strings.ToUpper(strings.NewReplacer(".", "_").Replace(key))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

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
	v.SetDefault("server.invoke_timeout_seconds", 300)
	v.SetDefault("practicum.timeout_seconds", 15)
	v.SetDefault("practicum.cursor", 0)
	v.SetDefault("telegram.timeout_seconds", 10)
	v.SetDefault("telegram.rate_per_second", 1.0)
	v.SetDefault("telegram.burst", 3)
	v.SetDefault("storage.backend", BackendS3)
	v.SetDefault("storage.bucket", "test-bot")
	v.SetDefault("storage.key", "message")
	v.SetDefault("storage.region", "ru-central1")
	v.SetDefault("db.backend", BackendPostgres)
	v.SetDefault("db.table", "works")
	v.SetDefault("db.path", "watcher.db")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.ensure_schema", true)
	v.SetDefault("db.retry_max_attempts", 5)
	v.SetDefault("db.retry_base_delay_ms", 50)
	v.SetDefault("db.retry_max_delay_ms", 2000)
	v.SetDefault("schedule.spec", "@every 10m")
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits. A missing required
// setting is reported as a *homework.ConfigError naming its environment variable.
func (c Config) Validate() error {
	if err := c.checkRequired(); err != nil {
		return err
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.InvokeTimeoutSeconds <= 0 {
		return fmt.Errorf("server.invoke_timeout_seconds must be > 0")
	}
	if c.Practicum.TimeoutSeconds <= 0 {
		return fmt.Errorf("practicum.timeout_seconds must be > 0")
	}
	if c.Practicum.Cursor < 0 {
		return fmt.Errorf("practicum.cursor must be >= 0")
	}
	if !telegram.ValidChatID(strings.TrimSpace(c.Telegram.ChatID)) {
		return fmt.Errorf("telegram.chat_id must be a numeric id or @channelusername; got %q", c.Telegram.ChatID)
	}
	if c.Telegram.TimeoutSeconds <= 0 {
		return fmt.Errorf("telegram.timeout_seconds must be > 0")
	}
	if c.Telegram.RatePerSecond < 0 {
		return fmt.Errorf("telegram.rate_per_second must be >= 0")
	}
	switch c.Storage.Backend {
	case BackendS3, BackendGCS, BackendMemory:
	default:
		return fmt.Errorf("storage.backend must be one of s3, gcs, memory; got %q", c.Storage.Backend)
	}
	if c.Storage.Backend != BackendMemory && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket must be set")
	}
	switch c.DB.Backend {
	case BackendPostgres, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("db.backend must be one of postgres, sqlite, memory; got %q", c.DB.Backend)
	}
	if c.DB.Backend == BackendSQLite && c.DB.Path == "" {
		return fmt.Errorf("db.path must be set for the sqlite backend")
	}
	if c.DB.RetryMaxAttempts <= 0 {
		return fmt.Errorf("db.retry_max_attempts must be > 0")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

type requirement struct {
	env string
	ok  bool
}

// checkRequired reports the first missing required variable in the order the
// deployment documents them.
func (c Config) checkRequired() error {
	s3 := c.Storage.Backend == BackendS3
	required := []requirement{
		{"PRACTICUM_TOKEN", c.Practicum.Token != ""},
		{"TELEGRAM_TOKEN", c.Telegram.Token != ""},
		{"TELEGRAM_CHAT_ID", strings.TrimSpace(c.Telegram.ChatID) != ""},
		{"AWS_ACCESS_KEY_ID", !s3 || c.Storage.AccessKeyID != ""},
		{"AWS_SECRET_ACCESS_KEY", !s3 || c.Storage.SecretAccessKey != ""},
		{"YP_ENDPOINT", c.Practicum.Endpoint != ""},
		{"S3_ENDPOINT", !s3 || c.Storage.Endpoint != ""},
		{"DATABASE_URL", c.DB.Backend != BackendPostgres || c.DB.DSN != ""},
	}
	for _, r := range required {
		if !r.ok {
			return &homework.ConfigError{Variable: r.env}
		}
	}
	return nil
}

// FetchTimeout returns the API client timeout.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Practicum.TimeoutSeconds) * time.Second
}

// TelegramTimeout bounds one Bot API request.
func (c Config) TelegramTimeout() time.Duration {
	return time.Duration(c.Telegram.TimeoutSeconds) * time.Second
}

// InvokeTimeout bounds one invocation triggered over HTTP.
func (c Config) InvokeTimeout() time.Duration {
	return time.Duration(c.Server.InvokeTimeoutSeconds) * time.Second
}

// RetryBaseDelay returns the first backoff step for database conflicts.
func (c Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.DB.RetryBaseDelayMs) * time.Millisecond
}

// RetryMaxDelay caps backoff for database conflicts.
func (c Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.DB.RetryMaxDelayMs) * time.Millisecond
}
