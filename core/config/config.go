package config

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token string `yaml:"token" envconfig:"BOT_TOKEN"`
	// AdminIDsRaw is a comma separated list of privileged user ids.
	AdminIDsRaw string `yaml:"admin_ids" envconfig:"ADMIN_IDS"`
	// AdminIDs is populated by Normalize from AdminIDsRaw.
	AdminIDs []int64 `yaml:"-" ignored:"true"`
	// NotifyChat receives action notifications; numeric id or @channel.
	NotifyChat string `yaml:"notify_chat" envconfig:"LOG_CHAT_ID"`
	RunMode    string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
	// Workers bounds how many senders are processed concurrently.
	Workers int `yaml:"workers" envconfig:"TELEGRAM_WORKERS"`
	// SendRetries and HTTPRetries are opt-in; outbound calls are not retried by default.
	SendRetries int `yaml:"send_retries" envconfig:"TELEGRAM_SEND_RETRIES"`
	HTTPRetries int `yaml:"http_retries" envconfig:"TELEGRAM_HTTP_RETRIES"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
	// SecretToken is checked against X-Telegram-Bot-Api-Secret-Token when set.
	SecretToken string `yaml:"secret_token" envconfig:"WEBHOOK_SECRET_TOKEN"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format      string `yaml:"format" envconfig:"LOG_FORMAT"`
	KeysOrder   string `yaml:"keys_order"`
	DebugSample string `yaml:"debug_sample"`
	Dir         string `yaml:"dir" envconfig:"LOG_DIR"`
	BotFile     string `yaml:"bot_file" envconfig:"LOG_FILE"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
	// Debug mirrors the DEBUG switch of the original deployment scripts.
	Debug bool `yaml:"debug" envconfig:"DEBUG"`
}

// DatabaseConfig holds Postgres connection settings used by the postgres journal.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// StorageConfig selects where user submissions are journaled.
type StorageConfig struct {
	Driver     string `yaml:"driver" envconfig:"STORAGE_DRIVER"`
	JournalDir string `yaml:"journal_dir" envconfig:"JOURNAL_DIR"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// StorageFile appends submissions to one text file per category.
	StorageFile = "file"
	// StoragePostgres writes submissions into the submissions table.
	StoragePostgres = "postgres"

	defaultJournalDir = "logs"
	defaultWorkers    = 8
)

const (
	UpdateCallback    = "callback"
	UpdateMessage     = "message"
	UpdateInlineQuery = "inline_query"
)

// RateLimitConfig throttles updates per user. Update kinds listed in
// ExcludeUpdates (UpdateCallback, UpdateMessage, UpdateInlineQuery) bypass it.
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

// Config aggregates the whole bot configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Storage   StorageConfig   `yaml:"storage"`
	Database  DatabaseConfig  `yaml:"database"`

	// Warnings collects non-fatal problems found by Normalize; they are
	// logged once the logger is up.
	Warnings []string `yaml:"-" ignored:"true"`
}

// Load reads configuration from an optional YAML file, an optional .env
// file and environment variables, in that order of precedence (env wins).
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse YAML config: %w", err)
			}
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// .env never overrides variables already present in the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates cfg and fills defaults in place. Problems that
// should not stop the bot are appended to cfg.Warnings.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	for _, step := range []func(*Config) error{
		normalizeTelegram,
		normalizeRunMode,
		normalizeStorage,
		normalizeRateLimit,
	} {
		if err := step(cfg); err != nil {
			return err
		}
	}
	if cfg.Logging.Debug {
		cfg.Logging.Level = "debug"
		if cfg.Logging.Profile == "" {
			cfg.Logging.Profile = "debug"
		}
	}
	return nil
}

func normalizeTelegram(cfg *Config) error {
	tc := &cfg.Telegram
	if strings.TrimSpace(tc.Token) == "" {
		return errors.New("telegram token is required (BOT_TOKEN)")
	}
	ids, err := ParseAdminIDs(tc.AdminIDsRaw)
	if err != nil {
		cfg.Warnings = append(cfg.Warnings, fmt.Sprintf("invalid ADMIN_IDS ignored: %v", err))
		ids = nil
	}
	tc.AdminIDs = ids
	tc.NotifyChat = strings.TrimSpace(tc.NotifyChat)

	if tc.Workers <= 0 {
		tc.Workers = defaultWorkers
	}
	switch {
	case tc.SendRetries < 0:
		return errors.New("telegram.send_retries must be >= 0")
	case tc.HTTPRetries < 0:
		return errors.New("telegram.http_retries must be >= 0")
	case tc.LongPollTimeoutSeconds < 0:
		return errors.New("telegram.longpoll_timeout_seconds must be >= 0")
	}
	return nil
}

func normalizeRunMode(cfg *Config) error {
	mode := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	switch mode {
	case "", "polling", RunModeLongpoll:
		cfg.Telegram.RunMode = RunModeLongpoll
		return nil
	case RunModeWebhook:
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}

	wh := cfg.Webhook
	var missing []string
	if strings.TrimSpace(wh.URL) == "" {
		missing = append(missing, "webhook.url")
	}
	if strings.TrimSpace(wh.Listen) == "" {
		missing = append(missing, "webhook.listen")
	}
	if wh.Port <= 0 {
		missing = append(missing, "webhook.port")
	}
	if len(missing) > 0 {
		return fmt.Errorf("webhook mode requires %s", strings.Join(missing, ", "))
	}
	cfg.Telegram.RunMode = RunModeWebhook
	return nil
}

func normalizeStorage(cfg *Config) error {
	driver := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	switch driver {
	case "", StorageFile:
		driver = StorageFile
		if strings.TrimSpace(cfg.Storage.JournalDir) == "" {
			cfg.Storage.JournalDir = defaultJournalDir
		}
	case StoragePostgres:
		db := &cfg.Database
		if strings.TrimSpace(db.Host) == "" || strings.TrimSpace(db.Name) == "" {
			return errors.New("database.host and database.name are required for the postgres driver")
		}
		db.Port = cmp.Or(db.Port, "5432")
		db.SSLMode = cmp.Or(db.SSLMode, "disable")
		if db.MaxConnections <= 0 {
			db.MaxConnections = 5
		}
	default:
		return fmt.Errorf("invalid storage.driver %q; allowed: file, postgres", cfg.Storage.Driver)
	}
	cfg.Storage.Driver = driver
	return nil
}

// normalizeRateLimit lowercases exclusion names and rejects unknown ones.
func normalizeRateLimit(cfg *Config) error {
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		kind := strings.ToLower(strings.TrimSpace(v))
		switch kind {
		case "", UpdateCallback, UpdateMessage, UpdateInlineQuery:
			cfg.RateLimit.ExcludeUpdates[i] = kind
		default:
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q", v)
		}
	}
	return nil
}

// ParseAdminIDs parses a comma separated id list. Empty items are skipped;
// any malformed item fails the whole list.
func ParseAdminIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("admin id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
