package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config is the application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	WorkerID        int64         `mapstructure:"worker_id"`
}

// DatabaseConfig selects the gorm dialector. Driver is one of mysql, postgres
// or sqlite. When DSN is empty it is built from the individual fields.
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogSQL       bool   `mapstructure:"log_sql"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	Entries     string `mapstructure:"entries"`
	Withdrawals string `mapstructure:"withdrawals"`
}

// BusinessConfig holds ledger limits. Decimal values are kept as strings so
// they survive YAML and environment overrides without float rounding.
type BusinessConfig struct {
	MaxPerOperation  string        `mapstructure:"max_per_operation"`
	PlatformFeeRate  string        `mapstructure:"platform_fee_rate"`
	FeeAccountID     string        `mapstructure:"fee_account_id"`
	CurrencySymbol   string        `mapstructure:"currency_symbol"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
	MaxRetryCount    int           `mapstructure:"max_retry_count"`
	ReconcileSpec    string        `mapstructure:"reconcile_spec"`
	LockTTL          time.Duration `mapstructure:"lock_ttl"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
}

type LogConfig struct {
	Env string `mapstructure:"env"`
}

// Limits is the parsed form of BusinessConfig used by the ledger services.
type Limits struct {
	MaxPerOperation  decimal.Decimal
	PlatformFeeRate  decimal.Decimal
	FeeAccountID     string
	CurrencySymbol   string
	OperationTimeout time.Duration
}

// Limits parses the decimal settings.
func (b BusinessConfig) Limits() (Limits, error) {
	maxPerOp, err := decimal.NewFromString(b.MaxPerOperation)
	if err != nil {
		return Limits{}, fmt.Errorf("business.max_per_operation: %w", err)
	}
	if !maxPerOp.IsPositive() {
		return Limits{}, errors.New("business.max_per_operation must be positive")
	}

	feeRate, err := decimal.NewFromString(b.PlatformFeeRate)
	if err != nil {
		return Limits{}, fmt.Errorf("business.platform_fee_rate: %w", err)
	}
	if feeRate.IsNegative() || feeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return Limits{}, fmt.Errorf("business.platform_fee_rate must be in [0, 1), got %s", feeRate)
	}

	return Limits{
		MaxPerOperation:  maxPerOp,
		PlatformFeeRate:  feeRate,
		FeeAccountID:     b.FeeAccountID,
		CurrencySymbol:   b.CurrencySymbol,
		OperationTimeout: b.OperationTimeout,
	}, nil
}

// LoadConfig reads the YAML file at path (optional) and applies defaults and
// environment overrides, e.g. DATABASE_DRIVER=postgres.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if _, err := cfg.Business.Limits(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.worker_id", 1)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "crowdfund")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "crowdfund")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"127.0.0.1:9092"})
	v.SetDefault("kafka.topic.entries", "ledger.entries")
	v.SetDefault("kafka.topic.withdrawals", "ledger.withdrawals")

	v.SetDefault("business.max_per_operation", "1000000.00")
	v.SetDefault("business.platform_fee_rate", "0.05")
	v.SetDefault("business.fee_account_id", "")
	v.SetDefault("business.currency_symbol", "₱")
	v.SetDefault("business.operation_timeout", 10*time.Second)
	v.SetDefault("business.max_retry_count", 5)
	v.SetDefault("business.reconcile_spec", "@every 1h")
	v.SetDefault("business.lock_ttl", 30*time.Second)

	v.SetDefault("jwt.ttl", 2*time.Hour)
	v.SetDefault("log.env", "development")
}
