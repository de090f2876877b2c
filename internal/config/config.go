package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName        string        `env:"APP_NAME" env-default:"SimpleATM"`
	AppEnv         string        `env:"APP_ENV" env-default:"development"`
	LogLevel       string        `env:"LOG_LEVEL" env-default:"info"`
	LogFile        string        `env:"LOG_FILE"`
	DataDir        string        `env:"DATA_DIR" env-default:"."`
	RegistryFile   string        `env:"REGISTRY_FILE" env-default:"users.dat"`
	DatabaseURL    string        `env:"DATABASE_URL"`
	RedisURL       string        `env:"REDIS_URL"`
	AdminUsername  string        `env:"ADMIN_USERNAME" env-default:"admin"`
	AdminPassword  string        `env:"ADMIN_PASSWORD"`
	PasswordCost   int           `env:"PASSWORD_HASH_COST" env-default:"10"`
	CurrencySymbol string        `env:"CURRENCY_SYMBOL" env-default:"Rs"`
	ConnectTimeout time.Duration `env:"CONNECT_TIMEOUT" env-default:"5s"`
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if cfg.ConnectTimeout <= 0 {
		return Config{}, fmt.Errorf("CONNECT_TIMEOUT must be positive")
	}
	if cfg.AdminUsername == "" || strings.ContainsAny(cfg.AdminUsername, " \t") {
		return Config{}, fmt.Errorf("ADMIN_USERNAME must be a single non-empty word")
	}
	return cfg, nil
}

// RegistryPath returns the registry file location. Relative names resolve
// inside DataDir.
func (c Config) RegistryPath() string {
	if filepath.IsAbs(c.RegistryFile) {
		return c.RegistryFile
	}
	return filepath.Join(c.DataDir, c.RegistryFile)
}

// Usage describes the supported environment variables.
func Usage() (string, error) {
	var cfg Config
	return cleanenv.GetDescription(&cfg, nil)
}
