package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Email providers understood by the notification layer.
const (
	ProviderBrevo = "brevo"
	ProviderLog   = "log"
)

// Config contains runtime configuration required by the relay.
// It is built once at startup and never mutated afterwards.
type Config struct {
	Server    ServerConfig
	Email     EmailConfig
	TicketLog TicketLogConfig
	Database  DatabaseConfig
	Log       LogConfig
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            int           `env:"PORT"                    env-default:"9999"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
}

// EmailConfig holds the transactional email provider settings and the fixed
// sender/recipient identities.
type EmailConfig struct {
	Provider    string        `env:"EMAIL_PROVIDER" env-default:"brevo"`
	APIKey      string        `env:"BREVO_API_KEY"`
	BaseURL     string        `env:"BREVO_BASE_URL" env-default:"https://api.brevo.com/v3"`
	Timeout     time.Duration `env:"EMAIL_TIMEOUT"  env-default:"10s"`
	SenderName  string        `env:"SENDER_NAME"    env-default:"Ticket Loop"`
	SenderEmail string        `env:"SENDER_EMAIL"`
	AdminEmail  string        `env:"ADMIN_EMAIL"`
}

// TicketLogConfig points at the directory holding the daily ticket files.
type TicketLogConfig struct {
	Dir string `env:"LOGS_DIR" env-default:"logs"`
}

// DatabaseConfig enables the optional Postgres mirror of ticket log records.
type DatabaseConfig struct {
	URL     string        `env:"DB_URL"`
	Timeout time.Duration `env:"DB_TIMEOUT" env-default:"5s"`
}

// Enabled reports whether a database URL was configured.
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// LogConfig controls the operator diagnostic stream.
type LogConfig struct {
	Level  string `env:"LOG_LEVEL"  env-default:"info"`
	Format string `env:"LOG_FORMAT" env-default:"json"`
	Source bool   `env:"LOG_SOURCE" env-default:"false"`
}

// Load reads configuration from the environment.
// If CONFIG_PATH is set, that file is read first (a missing file is an error).
// Otherwise a ./.env file is used when present, mirroring dotenv-style setups.
func Load() (Config, error) {
	var cfg Config

	path := strings.TrimSpace(os.Getenv("CONFIG_PATH"))
	explicitPath := path != ""
	if !explicitPath {
		path = ".env"
	}

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicitPath {
		return Config{}, fmt.Errorf("config: file %s: %w", path, err)
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: read env: %w", err)
	}

	cfg.Email.Provider = strings.ToLower(strings.TrimSpace(cfg.Email.Provider))
	cfg.Email.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.Email.BaseURL), "/")

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: validate: %w", err)
	}

	return cfg, nil
}

// Validate checks values cleanenv cannot express with tags.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT must be in 1..65535 (got %d)", c.Server.Port)
	}
	if c.Email.Timeout <= 0 {
		return fmt.Errorf("EMAIL_TIMEOUT must be > 0 (got %s)", c.Email.Timeout)
	}

	switch c.Email.Provider {
	case ProviderBrevo:
		if c.Email.APIKey == "" {
			return errors.New("BREVO_API_KEY required")
		}
		if c.Email.BaseURL == "" {
			return errors.New("BREVO_BASE_URL required")
		}
	case ProviderLog:
	default:
		return fmt.Errorf("EMAIL_PROVIDER must be %q or %q (got %q)", ProviderBrevo, ProviderLog, c.Email.Provider)
	}

	if c.Email.SenderEmail == "" {
		return errors.New("SENDER_EMAIL required")
	}
	if c.Email.AdminEmail == "" {
		return errors.New("ADMIN_EMAIL required")
	}
	if strings.TrimSpace(c.TicketLog.Dir) == "" {
		return errors.New("LOGS_DIR required")
	}
	if c.Database.Enabled() && c.Database.Timeout <= 0 {
		return fmt.Errorf("DB_TIMEOUT must be > 0 (got %s)", c.Database.Timeout)
	}

	return nil
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}
