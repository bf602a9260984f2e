package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/parking-console/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestFromLookup_Defaults(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 50, cfg.TotalSpots)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, RecognitionNone, cfg.RecognitionProvider)
	assert.Equal(t, 20*time.Second, cfg.ExternalTimeout)
	assert.Equal(t, 0.6, cfg.LowConfidenceThreshold)
	assert.Equal(t, model.RateSchedule{FirstHourFee: 5000, HourlyFee: 3000}, cfg.Rates.RateFor(model.Car))
}

func TestFromLookup_Overrides(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(map[string]string{
		"PORT":                     "9000",
		"LOG_LEVEL":                "debug",
		"TOTAL_SPOTS":              "12",
		"FACILITY_TIMEZONE":        "Asia/Jakarta",
		"EXTERNAL_TIMEOUT":         "5s",
		"LOW_CONFIDENCE_THRESHOLD": "0.8",
		"RECOGNITION_PROVIDER":     "Rekognition",
		"RATE_TRUCK_FIRST_HOUR":    "12000",
		"RATE_MOTORCYCLE_HOURLY":   "1500",
	}))
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 12, cfg.TotalSpots)
	assert.Equal(t, "Asia/Jakarta", cfg.Location.String())
	assert.Equal(t, 5*time.Second, cfg.ExternalTimeout)
	assert.Equal(t, 0.8, cfg.LowConfidenceThreshold)
	assert.Equal(t, RecognitionRekognition, cfg.RecognitionProvider)
	assert.Equal(t, model.RateSchedule{FirstHourFee: 12000, HourlyFee: 5000}, cfg.Rates.RateFor(model.Truck))
	assert.Equal(t, model.RateSchedule{FirstHourFee: 2000, HourlyFee: 1500}, cfg.Rates.RateFor(model.Motorcycle))
}

func TestFromLookup_PicksPostgres(t *testing.T) {
	tests := []struct {
		name     string
		given    map[string]string
		expected string
	}{
		{"DATABASE_URL set", map[string]string{"DATABASE_URL": "postgres://x"}, StorePostgres},
		{"DB_HOST set", map[string]string{"DB_HOST": "db"}, StorePostgres},
		{"Explicit memory wins", map[string]string{"DB_HOST": "db", "STORE": "memory"}, StoreMemory},
		{"Nothing set", nil, StoreMemory},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg, err := FromLookup(lookupFrom(test.given))
			require.NoError(t, err)
			assert.Equal(t, test.expected, cfg.Store)
		})
	}
}

func TestFromLookup_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		given map[string]string
	}{
		{"Non-numeric spots", map[string]string{"TOTAL_SPOTS": "many"}},
		{"Zero spots", map[string]string{"TOTAL_SPOTS": "0"}},
		{"Unknown timezone", map[string]string{"FACILITY_TIMEZONE": "Mars/Olympus"}},
		{"Bad timeout", map[string]string{"EXTERNAL_TIMEOUT": "soon"}},
		{"Bad threshold", map[string]string{"LOW_CONFIDENCE_THRESHOLD": "high"}},
		{"Bad log level", map[string]string{"LOG_LEVEL": "loud"}},
		{"Unknown store", map[string]string{"STORE": "redis"}},
		{"Unknown provider", map[string]string{"RECOGNITION_PROVIDER": "openalpr"}},
		{"Bad rate", map[string]string{"RATE_CAR_HOURLY": "3k"}},
		{"Negative rate", map[string]string{"RATE_CAR_FIRST_HOUR": "-1"}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := FromLookup(lookupFrom(test.given))
			assert.Error(t, err)
		})
	}
}
