// Package config loads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/parking-console/internal/database"
	"github.com/Shivanand-hulikatti/parking-console/internal/model"
	"github.com/Shivanand-hulikatti/parking-console/internal/pricing"
	"github.com/joho/godotenv"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Recognition providers.
const (
	RecognitionNone        = "none"
	RecognitionGemini      = "gemini"
	RecognitionRekognition = "rekognition"
)

// Config holds every setting the console needs at startup.
type Config struct {
	Port     string
	LogLevel slog.Level

	TotalSpots int
	Location   *time.Location
	Rates      pricing.Table

	Store    string
	Database database.Config

	RecognitionProvider    string
	AWSRegion              string
	GeminiAPIKey           string
	GeminiModel            string
	ExternalTimeout        time.Duration
	LowConfidenceThreshold float64
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load .env file", "err", err)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config from an arbitrary variable source.
func FromLookup(lookup func(string) (string, bool)) (*Config, error) {
	env := func(key, fallback string) string {
		if v, ok := lookup(key); ok && v != "" {
			return v
		}
		return fallback
	}

	cfg := &Config{
		Port:                env("PORT", "8080"),
		Store:               strings.ToLower(env("STORE", "")),
		RecognitionProvider: strings.ToLower(env("RECOGNITION_PROVIDER", RecognitionNone)),
		AWSRegion:           env("AWS_REGION", "ap-southeast-1"),
		GeminiAPIKey:        env("GEMINI_API_KEY", ""),
		GeminiModel:         env("GEMINI_MODEL", "gemini-2.5-flash"),
		Database: database.Config{
			URL:      env("DATABASE_URL", ""),
			Host:     env("DB_HOST", "localhost"),
			Port:     env("DB_PORT", "5432"),
			User:     env("DB_USER", "postgres"),
			Password: env("DB_PASSWORD", "postgres"),
			DBName:   env("DB_NAME", "parking"),
			SSLMode:  env("DB_SSLMODE", "disable"),
		},
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(env("LOG_LEVEL", "INFO"))); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	var err error
	if cfg.TotalSpots, err = strconv.Atoi(env("TOTAL_SPOTS", "50")); err != nil {
		return nil, fmt.Errorf("TOTAL_SPOTS: %w", err)
	}
	if cfg.TotalSpots <= 0 {
		return nil, fmt.Errorf("TOTAL_SPOTS must be a positive integer")
	}

	if cfg.Location, err = time.LoadLocation(env("FACILITY_TIMEZONE", "Local")); err != nil {
		return nil, fmt.Errorf("FACILITY_TIMEZONE: %w", err)
	}

	if cfg.ExternalTimeout, err = time.ParseDuration(env("EXTERNAL_TIMEOUT", "20s")); err != nil {
		return nil, fmt.Errorf("EXTERNAL_TIMEOUT: %w", err)
	}

	if cfg.LowConfidenceThreshold, err = strconv.ParseFloat(env("LOW_CONFIDENCE_THRESHOLD", "0.6"), 64); err != nil {
		return nil, fmt.Errorf("LOW_CONFIDENCE_THRESHOLD: %w", err)
	}

	if cfg.Rates, err = loadRates(env); err != nil {
		return nil, err
	}

	// Postgres is picked automatically once a database is configured.
	if cfg.Store == "" {
		cfg.Store = StoreMemory
		if _, ok := lookup("DATABASE_URL"); ok {
			cfg.Store = StorePostgres
		} else if _, ok := lookup("DB_HOST"); ok {
			cfg.Store = StorePostgres
		}
	}
	switch cfg.Store {
	case StoreMemory, StorePostgres:
	default:
		return nil, fmt.Errorf("STORE: unknown backend %q", cfg.Store)
	}

	switch cfg.RecognitionProvider {
	case RecognitionNone, RecognitionGemini, RecognitionRekognition:
	default:
		return nil, fmt.Errorf("RECOGNITION_PROVIDER: unknown provider %q", cfg.RecognitionProvider)
	}

	return cfg, nil
}

// loadRates starts from the default table and applies RATE_<CLASS>_FIRST_HOUR
// and RATE_<CLASS>_HOURLY overrides.
func loadRates(env func(key, fallback string) string) (pricing.Table, error) {
	rates := pricing.DefaultTable().Rates()
	for _, c := range model.VehicleClasses {
		r := rates[c]
		first, err := strconv.ParseInt(env("RATE_"+string(c)+"_FIRST_HOUR", strconv.FormatInt(r.FirstHourFee, 10)), 10, 64)
		if err != nil {
			return pricing.Table{}, fmt.Errorf("RATE_%s_FIRST_HOUR: %w", c, err)
		}
		hourly, err := strconv.ParseInt(env("RATE_"+string(c)+"_HOURLY", strconv.FormatInt(r.HourlyFee, 10)), 10, 64)
		if err != nil {
			return pricing.Table{}, fmt.Errorf("RATE_%s_HOURLY: %w", c, err)
		}
		rates[c] = model.RateSchedule{FirstHourFee: first, HourlyFee: hourly}
	}
	return pricing.NewTable(rates)
}
