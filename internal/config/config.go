// Package config загружает настройки клиента: значения по умолчанию, YAML файл и переменные окружения.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iudanet/minesync/internal/crypto"
	"github.com/iudanet/minesync/internal/validation"
)

// Переменные окружения, перекрывающие файл конфигурации
const (
	EnvServer        = "MINESYNC_SERVER"
	EnvSigningSecret = "MINESYNC_SIGNING_SECRET"
	EnvDB            = "MINESYNC_DB"
)

// ErrInvalidConfig конфигурация не прошла проверку
var ErrInvalidConfig = errors.New("invalid config")

// RateLimit ограничение частоты операций на пользователя
type RateLimit struct {
	MaxOperationsPerMinute int           `yaml:"max_operations_per_minute"`
	Window                 time.Duration `yaml:"window"`
}

// Queue параметры офлайн очереди
type Queue struct {
	MaxSize          int `yaml:"max_size"`
	BatchSize        int `yaml:"batch_size"`
	MaxRetryAttempts int `yaml:"max_retry_attempts"`
}

// Limits границы допустимых операций
type Limits struct {
	MaxBalanceChange float64 `yaml:"max_balance_change"`
	MinStakeAmount   float64 `yaml:"min_stake_amount"`
	MaxStakeAmount   float64 `yaml:"max_stake_amount"`
	MaxStakeRate     float64 `yaml:"max_stake_rate"`
	MaxLockDays      int     `yaml:"max_lock_days"`
}

// Security пороги обнаружения подозрительной активности
type Security struct {
	SigningSecret               string        `yaml:"signing_secret"`
	SuspiciousWindow            time.Duration `yaml:"suspicious_window"`
	SuspiciousActivityThreshold int           `yaml:"suspicious_activity_threshold"`
	SigningEnabled              bool          `yaml:"signing_enabled"`
}

// Sync периодичность фоновых задач
type Sync struct {
	Interval          time.Duration `yaml:"interval"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval"`
	AutoSave          bool          `yaml:"auto_save"`
}

// Config настройки клиента
type Config struct {
	ServerURL string    `yaml:"server_url"`
	DBPath    string    `yaml:"db_path"`
	LogLevel  string    `yaml:"log_level"`
	Security  Security  `yaml:"security"`
	RateLimit RateLimit `yaml:"rate_limit"`
	Queue     Queue     `yaml:"queue"`
	Limits    Limits    `yaml:"limits"`
	Sync      Sync      `yaml:"sync"`
}

// Default возвращает конфигурацию по умолчанию
func Default() Config {
	limits := validation.DefaultLimits()

	return Config{
		ServerURL: "http://localhost:8080",
		DBPath:    "minesync-client.db",
		LogLevel:  "info",
		Security: Security{
			SigningEnabled:              true,
			SuspiciousActivityThreshold: 5,
			SuspiciousWindow:            time.Hour,
		},
		RateLimit: RateLimit{
			MaxOperationsPerMinute: 30,
			Window:                 time.Minute,
		},
		Queue: Queue{
			MaxSize:          100,
			BatchSize:        10,
			MaxRetryAttempts: 3,
		},
		Limits: Limits{
			MaxBalanceChange: limits.MaxBalanceChange,
			MinStakeAmount:   limits.MinStakeAmount,
			MaxStakeAmount:   limits.MaxStakeAmount,
			MaxStakeRate:     limits.MaxStakeRate,
			MaxLockDays:      limits.MaxLockDays,
		},
		Sync: Sync{
			Interval:          30 * time.Second,
			ReconcileInterval: 5 * time.Minute,
			AutoSave:          true,
		},
	}
}

// Load читает YAML файл поверх значений по умолчанию.
// Пустой path означает только значения по умолчанию.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// ApplyEnv перекрывает значения переменными окружения
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvServer); ok && v != "" {
		c.ServerURL = v
	}
	if v, ok := lookup(EnvSigningSecret); ok && v != "" {
		c.Security.SigningSecret = v
	}
	if v, ok := lookup(EnvDB); ok && v != "" {
		c.DBPath = v
	}
}

// Validate проверяет согласованность значений
func (c *Config) Validate() error {
	var errs []error

	if c.ServerURL == "" {
		errs = append(errs, errors.New("server_url is required"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("db_path is required"))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	if c.RateLimit.MaxOperationsPerMinute <= 0 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate_limit values must be positive"))
	}
	if c.Queue.MaxSize <= 0 || c.Queue.BatchSize <= 0 || c.Queue.MaxRetryAttempts <= 0 {
		errs = append(errs, errors.New("queue values must be positive"))
	}
	if c.Limits.MaxBalanceChange <= 0 {
		errs = append(errs, errors.New("limits.max_balance_change must be positive"))
	}
	if c.Limits.MinStakeAmount <= 0 || c.Limits.MaxStakeAmount < c.Limits.MinStakeAmount {
		errs = append(errs, errors.New("limits stake amount range is invalid"))
	}
	if c.Limits.MaxStakeRate <= 0 {
		errs = append(errs, errors.New("limits.max_stake_rate must be positive"))
	}
	if c.Security.SuspiciousActivityThreshold <= 0 || c.Security.SuspiciousWindow <= 0 {
		errs = append(errs, errors.New("security thresholds must be positive"))
	}
	if c.Sync.Interval <= 0 || c.Sync.ReconcileInterval <= 0 {
		errs = append(errs, errors.New("sync intervals must be positive"))
	}

	if c.Security.SigningEnabled && len(c.Security.SigningSecret) < crypto.MinSecretLen {
		errs = append(errs, fmt.Errorf("signing secret must be at least %d bytes (set %s)", crypto.MinSecretLen, EnvSigningSecret))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// ValidationLimits возвращает границы для проверки операций
func (c *Config) ValidationLimits() validation.Limits {
	return validation.Limits{
		MaxBalanceChange: c.Limits.MaxBalanceChange,
		MinStakeAmount:   c.Limits.MinStakeAmount,
		MaxStakeAmount:   c.Limits.MaxStakeAmount,
		MaxStakeRate:     c.Limits.MaxStakeRate,
		MaxLockDays:      c.Limits.MaxLockDays,
	}
}

// Signer создает подписчика операций.
// При выключенной подписи операции получают маркер disabled.
func (c *Config) Signer() (crypto.Signer, error) {
	if !c.Security.SigningEnabled {
		return crypto.DisabledSigner{}, nil
	}
	signer, err := crypto.NewHMACSigner([]byte(c.Security.SigningSecret))
	if err != nil {
		return nil, err
	}
	return signer, nil
}

// SlogLevel разбирает LogLevel
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return 0, fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return level, nil
}
