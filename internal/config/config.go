package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/securequery/agent-api/internal/repository/postgres"
)

type Config struct {
	Environment string           `mapstructure:"environment" validate:"required,oneof=development staging production"`
	Server      ServerConfig     `mapstructure:"server"`
	Database    postgres.Config  `mapstructure:"database"`
	Warehouse   WarehouseConfig  `mapstructure:"warehouse"`
	Translator  TranslatorConfig `mapstructure:"translator"`
	Audit       AuditConfig      `mapstructure:"audit"`
	PHI         PHIConfig        `mapstructure:"phi"`
	RateLimit   RateLimitConfig  `mapstructure:"rate_limit"`
	Redis       RedisConfig      `mapstructure:"redis"`
	SMTP        SMTPConfig       `mapstructure:"smtp"`
	Logging     LoggingConfig    `mapstructure:"logging"`
	JWT         JWTConfig        `mapstructure:"jwt"`

	Secrets Secrets `mapstructure:"-"`
}

type ServerConfig struct {
	Port           int `mapstructure:"port" validate:"required,min=1,max=65535"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

type WarehouseConfig struct {
	Database       postgres.Config `mapstructure:"database"`
	MaxRows        int             `mapstructure:"max_rows"`
	TimeoutSeconds int             `mapstructure:"timeout_seconds"`
}

type TranslatorConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	BaseURL        string  `mapstructure:"base_url"`
	Model          string  `mapstructure:"model"`
	Temperature    float64 `mapstructure:"temperature"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

type AuditConfig struct {
	Enabled             bool   `mapstructure:"enabled"`
	RetentionDays       int    `mapstructure:"retention_days" validate:"min=1"`
	FallbackPath        string `mapstructure:"fallback_path"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds"`
	PurgeIntervalHours  int    `mapstructure:"purge_interval_hours"`
}

type PHIConfig struct {
	RulesFile         string `mapstructure:"rules_file"`
	EncryptionEnabled bool   `mapstructure:"encryption_enabled"`
}

type RateLimitConfig struct {
	QueriesPerMinute int `mapstructure:"queries_per_minute" validate:"min=1"`
}

type RedisConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

type SMTPConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	Username string   `mapstructure:"username"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type JWTConfig struct {
	ExpiryHours int    `mapstructure:"expiry_hours"`
	Issuer      string `mapstructure:"issuer"`
}

// Secrets never come from config files; they are injected through the
// environment only.
type Secrets struct {
	EncryptionPassphrase string `envconfig:"ENCRYPTION_PASSPHRASE" required:"true"`
	EncryptionSalt       string `envconfig:"ENCRYPTION_SALT" required:"true"`
	JWTSecret            string `envconfig:"JWT_SECRET" required:"true"`
	TranslatorAPIKey     string `envconfig:"TRANSLATOR_API_KEY"`
	SMTPPassword         string `envconfig:"SMTP_PASSWORD"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetDefault("environment", "development")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.timeout_seconds", 30)
	viper.SetDefault("warehouse.max_rows", 1000)
	viper.SetDefault("warehouse.timeout_seconds", 30)
	viper.SetDefault("audit.enabled", true)
	viper.SetDefault("audit.retention_days", 2555)
	viper.SetDefault("audit.write_timeout_seconds", 5)
	viper.SetDefault("audit.purge_interval_hours", 24)
	viper.SetDefault("phi.encryption_enabled", true)
	viper.SetDefault("rate_limit.queries_per_minute", 30)
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("jwt.expiry_hours", 8)
	viper.SetDefault("jwt.issuer", "agent-api")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("", &config.Secrets); err != nil {
		return nil, fmt.Errorf("failed to load secrets from environment: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects configurations that would silently weaken compliance
// guarantees. Production never runs with encryption or auditing off.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.Environment == "production" {
		if !c.Audit.Enabled {
			return fmt.Errorf("audit logging cannot be disabled in production")
		}
		if !c.PHI.EncryptionEnabled {
			return fmt.Errorf("PHI encryption cannot be disabled in production")
		}
	}

	return nil
}

func (c *Config) ServerTimeout() time.Duration {
	return time.Duration(c.Server.TimeoutSeconds) * time.Second
}
