package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "aegis.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "AEGIS_PORT")
	setString(&cfg.Server.CORSOrigin, "AEGIS_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "AEGIS_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "AEGIS_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "AEGIS_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "AEGIS_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "AEGIS_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Logging.Level, "AEGIS_LOG_LEVEL")
	setString(&cfg.Logging.Service, "AEGIS_LOG_SERVICE")

	// Cache
	setInt64(&cfg.Cache.L1MaxSizeMB, "AEGIS_CACHE_L1_SIZE_MB")
	setString(&cfg.Cache.L2Bucket, "AEGIS_CACHE_L2_BUCKET")
	setDuration(&cfg.Cache.TTL, "AEGIS_CACHE_TTL")

	// Telemetry
	setBool(&cfg.Telemetry.Enabled, "AEGIS_OTEL_ENABLED")
	setString(&cfg.Telemetry.OTLPEndpoint, "AEGIS_OTLP_ENDPOINT")

	// Engine
	setInt(&cfg.Engine.RiskBars.Low, "AEGIS_BAR_LOW")
	setInt(&cfg.Engine.RiskBars.Medium, "AEGIS_BAR_MEDIUM")
	setInt(&cfg.Engine.RiskBars.High, "AEGIS_BAR_HIGH")
	setInt(&cfg.Engine.RiskBars.Critical, "AEGIS_BAR_CRITICAL")
	setFloat64(&cfg.Engine.ConfidenceFloor, "AEGIS_CONFIDENCE_FLOOR")
	setDuration(&cfg.Engine.ApprovalTTL, "AEGIS_APPROVAL_TTL")
	setDuration(&cfg.Engine.SweepInterval, "AEGIS_SWEEP_INTERVAL")
	setDuration(&cfg.Engine.Retention, "AEGIS_RETENTION")
	setBool(&cfg.Engine.AllowNewCapabilities, "AEGIS_ALLOW_NEW_CAPABILITIES")
	setDuration(&cfg.Engine.AnalyzerWindow, "AEGIS_ANALYZER_WINDOW")
	setInt(&cfg.Engine.Watermarks.MinSamples, "AEGIS_ANALYZER_MIN_SAMPLES")
	setFloat64(&cfg.Engine.Watermarks.AcceptanceHigh, "AEGIS_ANALYZER_ACCEPTANCE_HIGH")
	setFloat64(&cfg.Engine.Watermarks.RejectionHigh, "AEGIS_ANALYZER_REJECTION_HIGH")

	// Schedule
	setString(&cfg.Schedule.Timezone, "AEGIS_SCHEDULE_TZ")
	setString(&cfg.Schedule.WorkStart, "AEGIS_WORK_START")
	setString(&cfg.Schedule.WorkEnd, "AEGIS_WORK_END")
	setString(&cfg.Schedule.FamilyStart, "AEGIS_FAMILY_START")
	setString(&cfg.Schedule.FamilyEnd, "AEGIS_FAMILY_END")
	setString(&cfg.Schedule.SleepStart, "AEGIS_SLEEP_START")
	setString(&cfg.Schedule.SleepEnd, "AEGIS_SLEEP_END")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	b := cfg.Engine.RiskBars
	if b.Low > b.Medium || b.Medium > b.High || b.High > b.Critical {
		return errors.New("engine.risk_bars must be monotonically increasing")
	}
	if cfg.Engine.ConfidenceFloor < 0 || cfg.Engine.ConfidenceFloor > 1 {
		return errors.New("engine.confidence_floor must be in [0,1]")
	}
	if cfg.Engine.ApprovalTTL <= 0 {
		return errors.New("engine.approval_ttl must be positive")
	}
	if cfg.Engine.SweepInterval <= 0 {
		return errors.New("engine.sweep_interval must be positive")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
