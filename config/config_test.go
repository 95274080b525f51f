package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

var configKeys = []string{
	"SERVER_PORT", "SERVER_SHUTDOWN_TIMEOUT_SEC", "GIN_MODE",
	"DB_DRIVER", "DB_PATH", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
	"DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME_MIN",
	"REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD", "REDIS_DB", "REDIS_ENABLED",
	"JWT_SECRET", "JWT_EXPIRY_HOURS", "ADMIN_USERNAME", "ADMIN_PASSWORD_HASH",
	"CORS_ALLOWED_ORIGINS", "LOG_LEVEL", "LOG_FORMAT", "LOG_FILE",
	"DATASET_SOURCE", "DATASET_SEED_IF_EMPTY", "DATASET_FETCH_TIMEOUT_SEC", "DATASET_FETCH_RETRIES",
	"SCORING_DENSITY_WEIGHT", "SCORING_GROWTH_WEIGHT", "SCORING_REGION_BIAS", "SCORING_MODEL_VERSION",
	"LOADER_INTERVAL_SEC", "METRICS_ADDR",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		os.Unsetenv(key)
	}
}

func TestGetDSN(t *testing.T) {
	db := DatabaseConfig{
		Driver:   DriverPostgres,
		Host:     "localhost",
		Port:     5432,
		User:     "housing",
		Password: "secret",
		Name:     "housing",
		SSLMode:  "disable",
	}
	dsn := db.GetDSN()

	expected := "host=localhost port=5432 user=housing password=secret dbname=housing sslmode=disable"
	if dsn != expected {
		t.Errorf("GetDSN() = %q, want %q", dsn, expected)
	}
}

func TestGetDSNSQLite(t *testing.T) {
	db := DatabaseConfig{Driver: DriverSQLite, Path: "/tmp/housing.db"}
	dsn := db.GetDSN()

	if !strings.HasPrefix(dsn, "/tmp/housing.db?") {
		t.Errorf("DSN should start with the database path, got: %s", dsn)
	}
	if !strings.Contains(dsn, "_journal_mode=WAL") {
		t.Errorf("DSN missing WAL journal mode, got: %s", dsn)
	}
}

func TestGetEnv(t *testing.T) {
	os.Unsetenv("TEST_CONFIG_VAR")
	if got := getEnv("TEST_CONFIG_VAR", "default"); got != "default" {
		t.Errorf("getEnv() = %q, want %q", got, "default")
	}

	os.Setenv("TEST_CONFIG_VAR", "custom")
	defer os.Unsetenv("TEST_CONFIG_VAR")
	if got := getEnv("TEST_CONFIG_VAR", "default"); got != "custom" {
		t.Errorf("getEnv() = %q, want %q", got, "custom")
	}
}

func TestGetIntEnv(t *testing.T) {
	t.Run("fallback when unset", func(t *testing.T) {
		os.Unsetenv("TEST_INT_VAR")
		got, err := getIntEnv("TEST_INT_VAR", 8080)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != 8080 {
			t.Errorf("getIntEnv() = %d, want %d", got, 8080)
		}
	})

	t.Run("parses valid int", func(t *testing.T) {
		os.Setenv("TEST_INT_VAR", "9090")
		defer os.Unsetenv("TEST_INT_VAR")
		got, err := getIntEnv("TEST_INT_VAR", 8080)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != 9090 {
			t.Errorf("getIntEnv() = %d, want %d", got, 9090)
		}
	})

	t.Run("error on invalid int", func(t *testing.T) {
		os.Setenv("TEST_INT_VAR", "not_int")
		defer os.Unsetenv("TEST_INT_VAR")
		_, err := getIntEnv("TEST_INT_VAR", 8080)
		if err == nil {
			t.Error("expected error for invalid int value")
		}
	})
}

func TestGetFloatAndBoolEnv(t *testing.T) {
	os.Setenv("TEST_FLOAT_VAR", "0.25")
	os.Setenv("TEST_BOOL_VAR", "false")
	defer os.Unsetenv("TEST_FLOAT_VAR")
	defer os.Unsetenv("TEST_BOOL_VAR")

	f, err := getFloatEnv("TEST_FLOAT_VAR", 1)
	if err != nil || f != 0.25 {
		t.Errorf("getFloatEnv() = %v, %v; want 0.25, nil", f, err)
	}
	b, err := getBoolEnv("TEST_BOOL_VAR", true)
	if err != nil || b {
		t.Errorf("getBoolEnv() = %v, %v; want false, nil", b, err)
	}

	os.Setenv("TEST_BOOL_VAR", "maybe")
	if _, err := getBoolEnv("TEST_BOOL_VAR", true); err == nil {
		t.Error("expected error for invalid bool value")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("Server.ShutdownTimeout = %s, want 10s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, DriverSQLite)
	}
	if cfg.Database.Path != "belgian_housing_full.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.JWT.ExpiryHours != 24 {
		t.Errorf("JWT.ExpiryHours = %d, want 24", cfg.JWT.ExpiryHours)
	}
	if cfg.Redis.Port != 6379 || !cfg.Redis.Enabled {
		t.Errorf("Redis = %+v, want port 6379 enabled", cfg.Redis)
	}
	if cfg.CORS.AllowedOrigins != "*" {
		t.Errorf("CORS.AllowedOrigins = %q, want %q", cfg.CORS.AllowedOrigins, "*")
	}
	if !cfg.Dataset.SeedIfEmpty {
		t.Error("Dataset.SeedIfEmpty should default to true")
	}
	if cfg.Scoring.DensityWeight != 0.55 || cfg.Scoring.RegionBias["Brussels"] != 15 {
		t.Errorf("Scoring = %+v, want defaults", cfg.Scoring)
	}
	if cfg.Loader.Interval != 0 {
		t.Errorf("Loader.Interval = %s, want 0 (run once)", cfg.Loader.Interval)
	}
}

func TestLoadConfigCustom(t *testing.T) {
	clearEnv(t)
	os.Setenv("SERVER_PORT", "3000")
	os.Setenv("DB_DRIVER", "Postgres")
	os.Setenv("DB_HOST", "db.prod")
	os.Setenv("DB_PORT", "5433")
	os.Setenv("JWT_EXPIRY_HOURS", "48")
	os.Setenv("SCORING_DENSITY_WEIGHT", "0.4")
	os.Setenv("SCORING_REGION_BIAS", "Brussels=20, Vlaanderen=2")
	os.Setenv("LOADER_INTERVAL_SEC", "3600")
	defer clearEnv(t)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Database.Driver != DriverPostgres {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, DriverPostgres)
	}
	if cfg.Database.Host != "db.prod" {
		t.Errorf("Database.Host = %q, want %q", cfg.Database.Host, "db.prod")
	}
	if cfg.Database.Port != 5433 {
		t.Errorf("Database.Port = %d, want 5433", cfg.Database.Port)
	}
	if cfg.JWT.ExpiryHours != 48 {
		t.Errorf("JWT.ExpiryHours = %d, want 48", cfg.JWT.ExpiryHours)
	}
	if cfg.Scoring.DensityWeight != 0.4 {
		t.Errorf("Scoring.DensityWeight = %v, want 0.4", cfg.Scoring.DensityWeight)
	}
	if len(cfg.Scoring.RegionBias) != 2 || cfg.Scoring.RegionBias["Brussels"] != 20 {
		t.Errorf("Scoring.RegionBias = %v", cfg.Scoring.RegionBias)
	}
	if cfg.Loader.Interval != time.Hour {
		t.Errorf("Loader.Interval = %s, want 1h", cfg.Loader.Interval)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	cases := map[string]string{
		"SERVER_PORT":           "invalid",
		"DB_DRIVER":             "mysql",
		"REDIS_ENABLED":         "sometimes",
		"SCORING_GROWTH_WEIGHT": "heavy",
		"SCORING_REGION_BIAS":   "Brussels",
		"DATASET_FETCH_RETRIES": "x",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			os.Setenv(key, value)
			defer os.Unsetenv(key)

			if _, err := LoadConfig(); err == nil {
				t.Errorf("expected error for %s=%q", key, value)
			}
		})
	}
}

func TestLoadConfigSecrets(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{"defaults without admin", map[string]string{}, false},
		{"admin with default secret", map[string]string{"ADMIN_PASSWORD_HASH": "$2a$10$x"}, true},
		{"admin with explicit default secret", map[string]string{"ADMIN_PASSWORD_HASH": "$2a$10$x", "JWT_SECRET": DefaultJWTSecret}, true},
		{"admin with real secret", map[string]string{"ADMIN_PASSWORD_HASH": "$2a$10$x", "JWT_SECRET": "0f1e2d3c4b5a"}, false},
		{"admin with default secret in debug", map[string]string{"ADMIN_PASSWORD_HASH": "$2a$10$x", "GIN_MODE": "debug"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				os.Setenv(k, v)
			}
			defer clearEnv(t)

			_, err := LoadConfig()
			if (err != nil) != tt.wantErr {
				t.Errorf("LoadConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseRegionBias(t *testing.T) {
	bias, err := parseRegionBias("Brussels=15,,Wallonië=-2.5")
	if err != nil {
		t.Fatalf("parseRegionBias() error: %v", err)
	}
	if bias["Brussels"] != 15 || bias["Wallonië"] != -2.5 {
		t.Errorf("parseRegionBias() = %v", bias)
	}

	if _, err := parseRegionBias("=3"); err == nil {
		t.Error("expected error for empty region name")
	}
}
