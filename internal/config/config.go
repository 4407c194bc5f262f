package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"dispatch-service/internal/coordination"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds application configuration loaded from environment.
type Config struct {
	DB struct {
		Driver   string `env:"DB_DRIVER" envDefault:"postgres"`
		DSN      string `env:"DB_DSN"`
		SeedFile string `env:"DB_SEED_FILE"`
	}
	API struct {
		Port     string `env:"API_PORT" envDefault:":8080"`
		BasePath string `env:"API_BASE_PATH"`
	}
	Auth struct {
		JWTSecret string `env:"AUTH_JWT_SECRET"`
		JWTIssuer string `env:"AUTH_JWT_ISSUER"`
	}
	Logging struct {
		Dir        string `env:"LOG_DIR" envDefault:"logs"`
		Level      string `env:"LOG_LEVEL" envDefault:"info"`
		MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"50"`
		MaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`
		MaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"28"`
	}
	Kafka struct {
		Brokers    []string `env:"KAFKA_BROKERS" envSeparator:","`
		AlertTopic string   `env:"KAFKA_ALERT_TOPIC" envDefault:"sos.alerts"`
		EventTopic string   `env:"KAFKA_EVENT_TOPIC" envDefault:"sos.alert-events"`
		GroupID    string   `env:"KAFKA_GROUP_ID" envDefault:"dispatch-service"`
	}
	Notification struct {
		QueueSize  int `env:"QUEUE_SIZE" envDefault:"500"`
		MaxWorkers int `env:"MAX_WORKERS" envDefault:"10"`
	}
	Telegram struct {
		BotToken  string  `env:"TELEGRAM_BOT_TOKEN"`
		ChatID    string  `env:"TELEGRAM_CHAT_ID"`
		RateLimit float64 `env:"TELEGRAM_RATE_LIMIT" envDefault:"20"`
	}
	Coordination struct {
		RejectPolicy        string        `env:"REJECT_POLICY" envDefault:"last-responder"`
		AvailabilityRetries int           `env:"AVAILABILITY_MAX_ATTEMPTS" envDefault:"3"`
		AvailabilityBackoff time.Duration `env:"AVAILABILITY_RETRY_BASE" envDefault:"50ms"`
	}
}

// Load reads .env (if present) and the environment, validates required keys
// and returns a Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env file: %w", err)
	}
	return parse()
}

func parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}

	cfg.DB.Driver = strings.ToLower(strings.TrimSpace(cfg.DB.Driver))
	if cfg.DB.Driver == "" {
		cfg.DB.Driver = DriverPostgres
	}
	cfg.Kafka.Brokers = compact(cfg.Kafka.Brokers)

	// Validate required settings
	missing := []string{}
	if cfg.DB.Driver == DriverPostgres && cfg.DB.DSN == "" {
		missing = append(missing, "DB_DSN")
	}
	if cfg.Auth.JWTSecret == "" {
		missing = append(missing, "AUTH_JWT_SECRET")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}

	switch cfg.DB.Driver {
	case DriverPostgres, DriverMemory:
	default:
		return Config{}, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DB.Driver)
	}
	if cfg.DB.SeedFile != "" && cfg.DB.Driver != DriverMemory {
		return Config{}, fmt.Errorf("DB_SEED_FILE requires DB_DRIVER=memory")
	}
	if _, err := coordination.ParseRejectPolicy(cfg.Coordination.RejectPolicy); err != nil {
		return Config{}, fmt.Errorf("invalid REJECT_POLICY: %w", err)
	}
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID == "" {
		return Config{}, fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}

	// Apply defaults
	if cfg.API.Port == "" {
		cfg.API.Port = ":8080"
	} else if !strings.Contains(cfg.API.Port, ":") {
		cfg.API.Port = ":" + cfg.API.Port
	}
	cfg.API.BasePath = strings.TrimRight(cfg.API.BasePath, "/")
	if cfg.Notification.QueueSize <= 0 {
		cfg.Notification.QueueSize = 500
	}
	if cfg.Notification.MaxWorkers <= 0 {
		cfg.Notification.MaxWorkers = 10
	}
	if cfg.Coordination.AvailabilityRetries <= 0 {
		cfg.Coordination.AvailabilityRetries = 3
	}
	if cfg.Coordination.AvailabilityBackoff <= 0 {
		cfg.Coordination.AvailabilityBackoff = 50 * time.Millisecond
	}
	if cfg.Telegram.RateLimit <= 0 {
		cfg.Telegram.RateLimit = 20
	}

	return cfg, nil
}

func compact(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
