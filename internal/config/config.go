package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Environment string `toml:"-"`

	Host                  string `toml:"host"`
	Port                  int    `toml:"port"`
	PrometheusMetricsHost string `toml:"prometheus_metrics_host"`
	PrometheusMetricsPort string `toml:"prometheus_metrics_port"`

	// logging
	LogLevel      string `toml:"log_level"`
	LogsPath      string `toml:"logs_path"`
	LogToStdout   bool   `toml:"log_to_stdout"`
	LogFormatJSON bool   `toml:"log_format_json"`
	SentryEnabled bool   `toml:"sentry_enabled"`

	// web origins allowed on top of the built-in ones
	CorsAllowedOrigins []string `toml:"cors_allowed_origins"`

	// postgres
	PostgresHost   string `toml:"postgres_host"`
	PostgresPort   string `toml:"postgres_port"`
	PostgresDBName string `toml:"postgres_db_name"`
	PostgresUser   string `toml:"postgres_user"`

	// redis
	RedisHost string `toml:"redis_host"`
	RedisPort string `toml:"redis_port"`

	LoginRateLimitAllowedPerMin int `toml:"login_rate_limit_allowed_per_min"`
	ClaimRateLimitAllowedPerMin int `toml:"claim_rate_limit_allowed_per_min"`

	// external VII-FT token transfer gateway
	TransferGatewayURL string `toml:"transfer_gateway_url"`

	PerformanceCacheSizeMB     int `toml:"performance_cache_size_mb"`
	PerformanceCacheTTLSeconds int `toml:"performance_cache_ttl_seconds"`

	// goals evaluator job
	EvaluatorIntervalMinutes int `toml:"evaluator_interval_minutes"`
	// pending claims untouched for this long are resubmitted to the gateway
	ClaimResubmitAfterMinutes int `toml:"claim_resubmit_after_minutes"`

	Rewards     Rewards     `toml:"rewards"`
	Performance Performance `toml:"performance"`
}

// Rewards holds the VII-FT amounts paid per achieved goal metric.
type Rewards struct {
	WeightLoss       int64 `toml:"weight_loss"`
	MuscleGain       int64 `toml:"muscle_gain"`
	BodyFatReduction int64 `toml:"body_fat_reduction"`
}

// Performance holds the percent-complete status bands.
type Performance struct {
	WarningThreshold float64 `toml:"warning_threshold"`
	SuccessThreshold float64 `toml:"success_threshold"`
}

type Toml struct {
	Development *Config
	Production  *Config
}

func (t *Toml) Get(env string) (*Config, error) {
	var cfg *Config
	switch strings.ToLower(env) {
	case "dev", "development":
		cfg = t.Development
		env = "development"
	case "prod", "production":
		cfg = t.Production
		env = "production"
	default:
		return nil, fmt.Errorf("unknown env: %s", env)
	}

	if cfg == nil {
		return nil, fmt.Errorf("config for env [%s] missing", env)
	}
	cfg.Environment = env
	cfg.setDefaults()
	return cfg, nil
}

func Load(env, path string) (*Config, error) {
	var t Toml
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return nil, fmt.Errorf("decode toml config [%s]: %w", path, err)
	}

	cfg, err := t.Get(env)
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 9000
	}
	if c.PrometheusMetricsHost == "" {
		c.PrometheusMetricsHost = "localhost"
	}
	if c.PrometheusMetricsPort == "" {
		c.PrometheusMetricsPort = "2112"
	}
	if c.PostgresUser == "" {
		c.PostgresUser = "postgres"
	}
	if c.LoginRateLimitAllowedPerMin == 0 {
		c.LoginRateLimitAllowedPerMin = 10
	}
	if c.ClaimRateLimitAllowedPerMin == 0 {
		c.ClaimRateLimitAllowedPerMin = 3
	}
	if c.PerformanceCacheSizeMB == 0 {
		c.PerformanceCacheSizeMB = 10
	}
	if c.PerformanceCacheTTLSeconds == 0 {
		c.PerformanceCacheTTLSeconds = 60
	}
	if c.EvaluatorIntervalMinutes == 0 {
		c.EvaluatorIntervalMinutes = 60
	}
	if c.ClaimResubmitAfterMinutes == 0 {
		c.ClaimResubmitAfterMinutes = 15
	}

	if c.Rewards.WeightLoss == 0 {
		c.Rewards.WeightLoss = 10
	}
	if c.Rewards.MuscleGain == 0 {
		c.Rewards.MuscleGain = 15
	}
	if c.Rewards.BodyFatReduction == 0 {
		c.Rewards.BodyFatReduction = 12
	}

	if c.Performance.WarningThreshold == 0 {
		c.Performance.WarningThreshold = 90
	}
	if c.Performance.SuccessThreshold == 0 {
		c.Performance.SuccessThreshold = 100
	}
}

func (c *Config) Validate() error {
	if c.PostgresHost == "" || c.PostgresPort == "" || c.PostgresDBName == "" {
		return errors.New("postgres host, port and db name must be set")
	}
	if c.RedisHost == "" || c.RedisPort == "" {
		return errors.New("redis host and port must be set")
	}
	if c.Rewards.WeightLoss < 0 || c.Rewards.MuscleGain < 0 || c.Rewards.BodyFatReduction < 0 {
		return errors.New("reward amounts cannot be negative")
	}
	if c.Performance.WarningThreshold > c.Performance.SuccessThreshold {
		return fmt.Errorf(
			"warning threshold %.2f above success threshold %.2f",
			c.Performance.WarningThreshold, c.Performance.SuccessThreshold,
		)
	}
	return nil
}
