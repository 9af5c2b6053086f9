package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"wheel-screener/models"
)

// Config holds the settings read from the environment
type Config struct {
	AlpacaAPIKey    string
	AlpacaSecretKey string
	AlpacaDataURL   string
	PolygonAPIKey   string

	QuoteCacheTTL time.Duration
	HVFallback    float64
	SyntheticSeed int64

	ServerAddr    string
	LogLevel      logrus.Level
	DefaultSource string
	CriteriaFile  string
}

// Load reads an optional .env file and then the environment
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg := &Config{
		AlpacaAPIKey:    os.Getenv("ALPACA_API_KEY"),
		AlpacaSecretKey: os.Getenv("ALPACA_SECRET_KEY"),
		AlpacaDataURL:   os.Getenv("ALPACA_DATA_URL"),
		PolygonAPIKey:   os.Getenv("POLYGON_API_KEY"),
		ServerAddr:      getEnv("SERVER_ADDR", ":8080"),
		DefaultSource:   getEnv("DEFAULT_SOURCE", "synthetic"),
		CriteriaFile:    os.Getenv("CRITERIA_FILE"),
	}

	var err error
	if cfg.QuoteCacheTTL, err = time.ParseDuration(getEnv("QUOTE_CACHE_TTL", "1h")); err != nil {
		return nil, fmt.Errorf("invalid QUOTE_CACHE_TTL: %w", err)
	}
	if cfg.HVFallback, err = strconv.ParseFloat(getEnv("HV_FALLBACK", "0.30"), 64); err != nil || cfg.HVFallback <= 0 {
		return nil, fmt.Errorf("invalid HV_FALLBACK %q", os.Getenv("HV_FALLBACK"))
	}
	if cfg.SyntheticSeed, err = strconv.ParseInt(getEnv("SYNTHETIC_SEED", "42"), 10, 64); err != nil {
		return nil, fmt.Errorf("invalid SYNTHETIC_SEED: %w", err)
	}
	if cfg.LogLevel, err = logrus.ParseLevel(getEnv("LOG_LEVEL", "info")); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	return cfg, nil
}

// AlpacaConfigured reports whether broker feed credentials are present
func (c *Config) AlpacaConfigured() bool {
	return c.AlpacaAPIKey != "" && c.AlpacaSecretKey != ""
}

// PolygonConfigured reports whether a live quotes key is present
func (c *Config) PolygonConfigured() bool {
	return c.PolygonAPIKey != ""
}

// LoadCriteria returns the default criteria, overlaid with the YAML file at
// path when one is given. Missing keys keep their defaults.
func LoadCriteria(path string) (models.ScreeningCriteria, error) {
	criteria := models.DefaultCriteria()
	if path == "" {
		return criteria, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return criteria, fmt.Errorf("failed to read criteria file: %w", err)
	}
	var overrides models.CriteriaOverrides
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return criteria, fmt.Errorf("failed to unmarshal criteria file: %w", err)
	}
	criteria = overrides.Apply(criteria)

	if err := criteria.Validate(); err != nil {
		return criteria, err
	}
	return criteria, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
