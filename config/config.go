package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Admin    AdminConfig
	CORS     CORSConfig
	Log      LogConfig
	Dataset  DatasetConfig
	Scoring  ScoringConfig
	Loader   LoaderConfig
}

type ServerConfig struct {
	Port            int
	Mode            string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Driver          string
	Path            string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func (d DatabaseConfig) GetDSN() string {
	if d.Driver == DriverSQLite {
		return d.Path + "?_journal_mode=WAL&_busy_timeout=5000"
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// DefaultJWTSecret is the development signing secret. Release builds with an
// admin credential refuse to start with it.
const DefaultJWTSecret = "change-me-in-production"

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Enabled  bool
}

type JWTConfig struct {
	Secret      string
	ExpiryHours int
}

type AdminConfig struct {
	Username     string
	PasswordHash string
}

type CORSConfig struct {
	AllowedOrigins string
}

type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type DatasetConfig struct {
	Source       string
	SeedIfEmpty  bool
	FetchTimeout time.Duration
	FetchRetries int
}

// ScoringConfig is the weight table of the demand score.
type ScoringConfig struct {
	DensityWeight       float64
	GrowthWeight        float64
	UrbanizationDivisor float64
	SizeDivisor         float64
	GrowthBoostPerPct   float64
	ConfidenceBase      float64
	RegionBias          map[string]float64
	ModelVersion        string
}

type LoaderConfig struct {
	Interval    time.Duration
	MetricsAddr string
}

func LoadConfig() (*Config, error) {
	serverPort, err := getIntEnv("SERVER_PORT", 5000)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}
	shutdownSec, err := getIntEnv("SERVER_SHUTDOWN_TIMEOUT_SEC", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT_SEC: %w", err)
	}

	dbPort, err := getIntEnv("DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}
	maxOpen, err := getIntEnv("DB_MAX_OPEN_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %w", err)
	}
	maxIdle, err := getIntEnv("DB_MAX_IDLE_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_IDLE_CONNS: %w", err)
	}
	connLifetimeMin, err := getIntEnv("DB_CONN_MAX_LIFETIME_MIN", 30)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME_MIN: %w", err)
	}
	driver := strings.ToLower(getEnv("DB_DRIVER", DriverSQLite))
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("invalid DB_DRIVER %q: must be %s or %s", driver, DriverSQLite, DriverPostgres)
	}

	redisPort, err := getIntEnv("REDIS_PORT", 6379)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}
	redisDB, err := getIntEnv("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	redisEnabled, err := getBoolEnv("REDIS_ENABLED", true)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_ENABLED: %w", err)
	}

	jwtExpiry, err := getIntEnv("JWT_EXPIRY_HOURS", 24)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRY_HOURS: %w", err)
	}

	logMaxSize, err := getIntEnv("LOG_MAX_SIZE_MB", 100)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_MAX_SIZE_MB: %w", err)
	}
	logMaxBackups, err := getIntEnv("LOG_MAX_BACKUPS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_MAX_BACKUPS: %w", err)
	}
	logMaxAge, err := getIntEnv("LOG_MAX_AGE_DAYS", 14)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_MAX_AGE_DAYS: %w", err)
	}

	seed, err := getBoolEnv("DATASET_SEED_IF_EMPTY", true)
	if err != nil {
		return nil, fmt.Errorf("invalid DATASET_SEED_IF_EMPTY: %w", err)
	}
	fetchTimeoutSec, err := getIntEnv("DATASET_FETCH_TIMEOUT_SEC", 60)
	if err != nil {
		return nil, fmt.Errorf("invalid DATASET_FETCH_TIMEOUT_SEC: %w", err)
	}
	fetchRetries, err := getIntEnv("DATASET_FETCH_RETRIES", 2)
	if err != nil {
		return nil, fmt.Errorf("invalid DATASET_FETCH_RETRIES: %w", err)
	}

	scoring, err := loadScoringConfig()
	if err != nil {
		return nil, err
	}

	loaderIntervalSec, err := getIntEnv("LOADER_INTERVAL_SEC", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid LOADER_INTERVAL_SEC: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            serverPort,
			Mode:            getEnv("GIN_MODE", "release"),
			ShutdownTimeout: time.Duration(shutdownSec) * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          driver,
			Path:            getEnv("DB_PATH", "belgian_housing_full.db"),
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            dbPort,
			User:            getEnv("DB_USER", "housing"),
			Password:        getEnv("DB_PASSWORD", "housing_dev_password"),
			Name:            getEnv("DB_NAME", "housing"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    maxOpen,
			MaxIdleConns:    maxIdle,
			ConnMaxLifetime: time.Duration(connLifetimeMin) * time.Minute,
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     redisPort,
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
			Enabled:  redisEnabled,
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", DefaultJWTSecret),
			ExpiryHours: jwtExpiry,
		},
		Admin: AdminConfig{
			Username:     getEnv("ADMIN_USERNAME", "admin"),
			PasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  logMaxSize,
			MaxBackups: logMaxBackups,
			MaxAgeDays: logMaxAge,
		},
		Dataset: DatasetConfig{
			Source:       getEnv("DATASET_SOURCE", ""),
			SeedIfEmpty:  seed,
			FetchTimeout: time.Duration(fetchTimeoutSec) * time.Second,
			FetchRetries: fetchRetries,
		},
		Scoring: scoring,
		Loader: LoaderConfig{
			Interval:    time.Duration(loaderIntervalSec) * time.Second,
			MetricsAddr: getEnv("METRICS_ADDR", ":8080"),
		},
	}

	if err := cfg.checkSecrets(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// checkSecrets rejects a release configuration that would sign admin tokens
// with the publicly known default secret.
func (c *Config) checkSecrets() error {
	if c.Server.Mode != "release" || c.Admin.PasswordHash == "" {
		return nil
	}
	if c.JWT.Secret == "" || c.JWT.Secret == DefaultJWTSecret {
		return fmt.Errorf("JWT_SECRET must be set to a non-default value when ADMIN_PASSWORD_HASH is configured in release mode")
	}
	return nil
}

func DefaultScoringConfig() ScoringConfig {
	return ScoringConfig{
		DensityWeight:       0.55,
		GrowthWeight:        0.30,
		UrbanizationDivisor: 50,
		SizeDivisor:         1000,
		GrowthBoostPerPct:   10,
		ConfidenceBase:      0.6,
		RegionBias: map[string]float64{
			"Brussels":   15,
			"Vlaanderen": 5,
			"Wallonië":   0,
		},
		ModelVersion: "weighted-v1",
	}
}

func loadScoringConfig() (ScoringConfig, error) {
	sc := DefaultScoringConfig()
	floats := []struct {
		key string
		dst *float64
	}{
		{"SCORING_DENSITY_WEIGHT", &sc.DensityWeight},
		{"SCORING_GROWTH_WEIGHT", &sc.GrowthWeight},
		{"SCORING_URBANIZATION_DIVISOR", &sc.UrbanizationDivisor},
		{"SCORING_SIZE_DIVISOR", &sc.SizeDivisor},
		{"SCORING_GROWTH_BOOST_PER_PCT", &sc.GrowthBoostPerPct},
		{"SCORING_CONFIDENCE_BASE", &sc.ConfidenceBase},
	}
	for _, f := range floats {
		v, err := getFloatEnv(f.key, *f.dst)
		if err != nil {
			return sc, fmt.Errorf("invalid %s: %w", f.key, err)
		}
		*f.dst = v
	}

	if raw := os.Getenv("SCORING_REGION_BIAS"); raw != "" {
		bias, err := parseRegionBias(raw)
		if err != nil {
			return sc, fmt.Errorf("invalid SCORING_REGION_BIAS: %w", err)
		}
		sc.RegionBias = bias
	}
	sc.ModelVersion = getEnv("SCORING_MODEL_VERSION", sc.ModelVersion)

	return sc, nil
}

// parseRegionBias reads "Brussels=15,Vlaanderen=5" into a map.
func parseRegionBias(raw string) (map[string]float64, error) {
	bias := make(map[string]float64)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		region, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(region) == "" {
			return nil, fmt.Errorf("entry %q is not region=value", pair)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", pair, err)
		}
		bias[strings.TrimSpace(region)] = f
	}
	return bias, nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getIntEnv(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}
	return parsed, nil
}

func getFloatEnv(key string, fallback float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(value, 64)
}

func getBoolEnv(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	return strconv.ParseBool(value)
}
