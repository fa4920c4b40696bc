package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	DefaultPort        = "8080"
	DefaultEnvironment = "development"
	DefaultMaxFileSize = 50 * 1024 * 1024 // 50MB
	DefaultLogLevel    = "info"

	MaxRootBits = 15
)

// VERSION gets set during build
var VERSION = "0.0.0"

// Config holds the application configuration
type Config struct {
	Port             string `toml:"port"`
	Environment      string `toml:"environment"`
	MaxFileSize      int64  `toml:"max_file_size"` // in bytes
	LogLevel         string `toml:"log_level"`
	LiteralRootBits  uint8  `toml:"literal_root_bits"`  // 0 keeps the decoder default
	DistanceRootBits uint8  `toml:"distance_root_bits"` // 0 keeps the decoder default
}

// Load loads configuration from .env, environment variables and defaults
func Load() (*Config, error) {
	// Attempt to load .env
	_ = godotenv.Load(".env")

	cfg := defaults()
	if err := applyEnv(cfg); err != nil {
		return nil, errors.Wrap(err, "error reading environment")
	}
	if err := Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "error validating config")
	}
	return cfg, nil
}

// LoadFile reads a TOML config file; environment variables still override
// what the file sets.
func LoadFile(file string) (*Config, error) {
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, "error reading file")
	}

	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "error parsing TOML config")
	}
	if err := applyEnv(cfg); err != nil {
		return nil, errors.Wrap(err, "error reading environment")
	}
	if err := Validate(cfg); err != nil {
		return nil, errors.Wrap(err, "error validating config")
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Port:        DefaultPort,
		Environment: DefaultEnvironment,
		MaxFileSize: DefaultMaxFileSize,
		LogLevel:    DefaultLogLevel,
	}
}

func applyEnv(cfg *Config) error {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.Environment = getEnv("GO_ENV", cfg.Environment)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	if v := os.Getenv("MAX_FILE_SIZE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errors.Wrap(err, "MAX_FILE_SIZE")
		}
		cfg.MaxFileSize = n
	}
	if v := os.Getenv("LIT_ROOT_BITS"); v != "" {
		n, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			return errors.Wrap(err, "LIT_ROOT_BITS")
		}
		cfg.LiteralRootBits = uint8(n)
	}
	if v := os.Getenv("DIST_ROOT_BITS"); v != "" {
		n, err := strconv.ParseUint(v, 10, 8)
		if err != nil {
			return errors.Wrap(err, "DIST_ROOT_BITS")
		}
		cfg.DistanceRootBits = uint8(n)
	}
	return nil
}

func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config cannot be nil")
	}

	if cfg.Port == "" {
		return errors.New("port cannot be empty")
	}

	if cfg.MaxFileSize <= 0 {
		return errors.Errorf("max_file_size must be positive, got %d", cfg.MaxFileSize)
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		return errors.Wrap(err, "log_level")
	}

	if cfg.LiteralRootBits > MaxRootBits {
		return errors.Errorf("literal_root_bits must be between 1 and %d", MaxRootBits)
	}

	if cfg.DistanceRootBits > MaxRootBits {
		return errors.Errorf("distance_root_bits must be between 1 and %d", MaxRootBits)
	}

	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
