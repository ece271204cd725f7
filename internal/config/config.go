package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env         string            `mapstructure:"env"`
	Server      ServerConfig      `mapstructure:"server"`
	ERP         ERPConfig         `mapstructure:"erp"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
	Log         LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	Port           string  `mapstructure:"port"`
	ReadOnly       bool    `mapstructure:"read_only"`
	RateLimitQPS   float64 `mapstructure:"rate_limit_qps"` // 0 disables limiting
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

type ERPConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

type SchedulerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DatabaseConfig struct {
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// IdempotencyConfig applies to whichever store backs X-Idempotency-Key.
type IdempotencyConfig struct {
	TTL     time.Duration `mapstructure:"ttl"`      // how long a finished response is replayed
	LockTTL time.Duration `mapstructure:"lock_ttl"` // how long an unfinished request holds its key
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type TracingConfig struct {
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Load reads configuration from an optional .env file, an optional
// config.yaml and CHAINSYNC_* environment variables, in increasing precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	// e.g. CHAINSYNC_ERP_BASE_URL
	v.SetEnvPrefix("chainsync")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// legacy deployment variables
	_ = v.BindEnv("erp.base_url", "CHAINSYNC_ERP_BASE_URL", "ORACLE_BASE_URL")
	_ = v.BindEnv("erp.api_key", "CHAINSYNC_ERP_API_KEY", "ORACLE_API_KEY")

	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("server.port", "10000")
	v.SetDefault("server.read_only", false)
	v.SetDefault("server.rate_limit_qps", 0)
	v.SetDefault("server.rate_limit_burst", 20)
	v.SetDefault("erp.base_url", "https://api.placeholder.com")
	v.SetDefault("erp.api_key", "your_fallback_key")
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", 5*time.Minute)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("idempotency.ttl", 24*time.Hour)
	v.SetDefault("idempotency.lock_ttl", 5*time.Minute)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.service_name", "chainsync")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.ERP.BaseURL) == "" {
		return errors.New("config: erp.base_url is required")
	}
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return errors.New("config: scheduler.interval must be positive")
	}
	if c.Idempotency.TTL <= 0 || c.Idempotency.LockTTL <= 0 {
		return errors.New("config: idempotency.ttl and idempotency.lock_ttl must be positive")
	}
	if c.Server.RateLimitQPS < 0 {
		return errors.New("config: server.rate_limit_qps must not be negative")
	}
	return nil
}
