package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration, loaded once at startup.
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	MySQL  MySQLConfig  `mapstructure:"mysql"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Kafka  KafkaConfig  `mapstructure:"kafka"`
	Ledger LedgerConfig `mapstructure:"ledger"`
	Auth   AuthConfig   `mapstructure:"auth"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	TransactionCompleted string `mapstructure:"transaction_completed"`
}

// LedgerConfig bounds the money-movement path: how often a conflicting
// optimistic update is retried, how long a store interaction may take, and
// when a pending transaction row counts as stuck.
type LedgerConfig struct {
	MaxConflictRetries   int `mapstructure:"max_conflict_retries"`
	StoreTimeoutSeconds  int `mapstructure:"store_timeout_seconds"`
	PendingExpiryMinutes int `mapstructure:"pending_expiry_minutes"`
	MaxOutboxRetries     int `mapstructure:"max_outbox_retries"`
}

type AuthConfig struct {
	SessionTTLHours int `mapstructure:"session_ttl_hours"`
}

func (c *LedgerConfig) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutSeconds) * time.Second
}

func (c *LedgerConfig) PendingExpiry() time.Duration {
	return time.Duration(c.PendingExpiryMinutes) * time.Minute
}

func (c *AuthConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

var GlobalConfig *Config

// LoadConfig reads and parses the YAML config file.
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("failed to read config file: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("failed to parse config file: %v", err)
	}

	GlobalConfig = config
	return config
}
