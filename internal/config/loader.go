package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "RECICLAJE_"

// FileEnv names the variable pointing at an optional YAML file.
const FileEnv = EnvPrefix + "CONFIG_FILE"

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Event publishers.
const (
	PublisherLog   = "log"
	PublisherRedis = "redis"
)

// Config captures configuration values for the coordinator service.
type Config struct {
	HTTPPort      int
	LogLevel      string
	StorageDriver string
	SQLiteDSN     string
	PostgresDSN   string

	PenaltyWindow         time.Duration
	DefaultMaxDistanceKm  float64
	InstitutionalCacheTTL time.Duration

	Publisher     string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string

	ClaimRatePerSecond float64
	ClaimRateBurst     int
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		HTTPPort:              8080,
		LogLevel:              "info",
		StorageDriver:         DriverSQLite,
		SQLiteDSN:             "file:reciclaje.db",
		PenaltyWindow:         3 * time.Hour,
		InstitutionalCacheTTL: 30 * time.Second,
		Publisher:             PublisherLog,
		RedisChannel:          "reciclaje:claims",
		ClaimRatePerSecond:    1,
		ClaimRateBurst:        5,
	}
}

// Load reads configuration from the optional YAML file named by
// RECICLAJE_CONFIG_FILE and then from RECICLAJE_* environment variables,
// which take precedence. Missing and invalid keys are reported together.
func Load() (Config, error) {
	values, err := readFile(strings.TrimSpace(os.Getenv(FileEnv)))
	if err != nil {
		return Config{}, err
	}
	for _, key := range keys {
		if v, ok := os.LookupEnv(envName(key)); ok && strings.TrimSpace(v) != "" {
			values[key] = strings.TrimSpace(v)
		}
	}
	return parse(values)
}

var keys = []string{
	"http_port",
	"log_level",
	"storage_driver",
	"sqlite_dsn",
	"postgres_dsn",
	"penalty_window",
	"default_max_km",
	"institutional_cache_ttl",
	"publisher",
	"redis_addr",
	"redis_password",
	"redis_db",
	"redis_channel",
	"claim_rate_per_second",
	"claim_rate_burst",
}

func envName(key string) string {
	return EnvPrefix + strings.ToUpper(key)
}

func readFile(path string) (map[string]string, error) {
	values := make(map[string]string, len(keys))
	if path == "" {
		return values, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("no se pudo leer el archivo de configuración %s: %w", path, err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("archivo de configuración inválido %s: %w", path, err)
	}
	for key, value := range raw {
		if value == nil {
			continue
		}
		values[strings.ToLower(key)] = strings.TrimSpace(fmt.Sprint(value))
	}
	return values, nil
}

func parse(values map[string]string) (Config, error) {
	cfg := Default()
	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 2)

	if v := values["http_port"]; v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, envName("http_port"))
		} else {
			cfg.HTTPPort = port
		}
	}
	if v := values["log_level"]; v != "" {
		cfg.LogLevel = v
	}

	if v := values["storage_driver"]; v != "" {
		cfg.StorageDriver = strings.ToLower(v)
	}
	if v := values["sqlite_dsn"]; v != "" {
		cfg.SQLiteDSN = v
	}
	cfg.PostgresDSN = values["postgres_dsn"]
	switch cfg.StorageDriver {
	case DriverSQLite:
	case DriverPostgres:
		if cfg.PostgresDSN == "" {
			missing = append(missing, envName("postgres_dsn"))
		}
	default:
		invalid = append(invalid, envName("storage_driver"))
	}

	if v := values["penalty_window"]; v != "" {
		window, err := time.ParseDuration(v)
		if err != nil || window <= 0 {
			invalid = append(invalid, envName("penalty_window"))
		} else {
			cfg.PenaltyWindow = window
		}
	}
	if v := values["default_max_km"]; v != "" {
		km, err := strconv.ParseFloat(v, 64)
		if err != nil || km < 0 {
			invalid = append(invalid, envName("default_max_km"))
		} else {
			cfg.DefaultMaxDistanceKm = km
		}
	}

	if v := values["institutional_cache_ttl"]; v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil || ttl < 0 {
			invalid = append(invalid, envName("institutional_cache_ttl"))
		} else {
			cfg.InstitutionalCacheTTL = ttl
		}
	}

	if v := values["publisher"]; v != "" {
		cfg.Publisher = strings.ToLower(v)
	}
	cfg.RedisAddr = values["redis_addr"]
	cfg.RedisPassword = values["redis_password"]
	if v := values["redis_channel"]; v != "" {
		cfg.RedisChannel = v
	}
	if v := values["redis_db"]; v != "" {
		db, err := strconv.Atoi(v)
		if err != nil || db < 0 {
			invalid = append(invalid, envName("redis_db"))
		} else {
			cfg.RedisDB = db
		}
	}
	switch cfg.Publisher {
	case PublisherLog:
	case PublisherRedis:
		if cfg.RedisAddr == "" {
			missing = append(missing, envName("redis_addr"))
		}
	default:
		invalid = append(invalid, envName("publisher"))
	}

	if v := values["claim_rate_per_second"]; v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil || rps < 0 {
			invalid = append(invalid, envName("claim_rate_per_second"))
		} else {
			cfg.ClaimRatePerSecond = rps
		}
	}
	if v := values["claim_rate_burst"]; v != "" {
		burst, err := strconv.Atoi(v)
		if err != nil || burst <= 0 {
			invalid = append(invalid, envName("claim_rate_burst"))
		} else {
			cfg.ClaimRateBurst = burst
		}
	}

	var errs []error
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("faltan variables de configuración obligatorias: %s", strings.Join(missing, ", ")))
	}
	if len(invalid) > 0 {
		errs = append(errs, fmt.Errorf("valores de configuración inválidos: %s", strings.Join(invalid, ", ")))
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	return cfg, nil
}
