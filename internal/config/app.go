package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Драйверы хранилища
const (
	StoreDriverSQLite = "sqlite"
	StoreDriverFile   = "file"
)

type AppConfig struct {
	Questionnaire string `env:"QUIZ_QUESTIONNAIRE"`
	Store         StoreConfig
	Log           LogConfig
	Telegram      TelegramConfig
	Telemetry     TelemetryConfig
}

type StoreConfig struct {
	Driver       string        `env:"QUIZ_STORE_DRIVER" envDefault:"sqlite"`
	Path         string        `env:"QUIZ_STORE_PATH"`
	WriteTimeout time.Duration `env:"QUIZ_WRITE_TIMEOUT" envDefault:"15s"`
}

type LogConfig struct {
	Level string `env:"QUIZ_LOG_LEVEL" envDefault:"info"`
	File  string `env:"QUIZ_LOG_FILE"`
}

type TelegramConfig struct {
	Token      string        `env:"TELEGRAM_BOT_TOKEN"`
	APIURL     string        `env:"TELEGRAM_API_URL" envDefault:"https://api.telegram.org"`
	RateLimit  int           `env:"TELEGRAM_RATE_LIMIT" envDefault:"10"`
	SessionTTL time.Duration `env:"TELEGRAM_SESSION_TTL" envDefault:"24h"`
}

type TelemetryConfig struct {
	Endpoint string `env:"QUIZ_OTEL_ENDPOINT"`
	Enabled  bool   `env:"QUIZ_OTEL_ENABLED" envDefault:"true"`
}

// LoadDotEnv подгружает .env файлы, если они есть. Отсутствие файла не ошибка.
func LoadDotEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	for _, name := range filenames {
		if err := godotenv.Load(name); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", name, err)
		}
	}
	return nil
}

// LoadAppConfig читает конфигурацию приложения из переменных окружения
func LoadAppConfig() (*AppConfig, error) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.Store.Path == "" {
		cfg.Store.Path = defaultStorePath(cfg.Store.Driver)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate проверяет корректность конфигурации
func (c *AppConfig) Validate() error {
	switch c.Store.Driver {
	case StoreDriverSQLite, StoreDriverFile:
	default:
		return fmt.Errorf("QUIZ_STORE_DRIVER must be %q or %q, got %q", StoreDriverSQLite, StoreDriverFile, c.Store.Driver)
	}

	if strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("QUIZ_STORE_PATH is required")
	}

	if c.Store.WriteTimeout <= 0 {
		return fmt.Errorf("QUIZ_WRITE_TIMEOUT must be positive")
	}

	if c.Telegram.RateLimit <= 0 {
		return fmt.Errorf("TELEGRAM_RATE_LIMIT must be positive")
	}

	if c.Telegram.SessionTTL <= 0 {
		return fmt.Errorf("TELEGRAM_SESSION_TTL must be positive")
	}

	return nil
}

// ValidateTelegram проверяет настройки, нужные только боту
func (c *AppConfig) ValidateTelegram() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	if c.Telegram.APIURL == "" {
		return fmt.Errorf("TELEGRAM_API_URL is required")
	}
	return nil
}

func defaultStorePath(driver string) string {
	if driver == StoreDriverFile {
		return "data/results"
	}
	return "data/quiz.db"
}
