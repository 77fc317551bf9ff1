package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the service configuration, read from an optional YAML file with
// environment variables taking precedence over file values.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	NATS     struct {
		URL string `yaml:"url"`
	} `yaml:"nats"`
	Listener struct {
		FallbackIntervalSeconds int `yaml:"fallback_interval_seconds"`
		PingIntervalSeconds     int `yaml:"ping_interval_seconds"`
	} `yaml:"listener"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN builds the Postgres connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func loadConfig(path string) (*Config, error) {
	var config Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.Server.Port = getEnv("PORT", defaultString(config.Server.Port, "8080"))

	config.Database.Host = getEnv("DB_HOST", defaultString(config.Database.Host, "localhost"))
	config.Database.Port = getEnvAsInt("DB_PORT", defaultInt(config.Database.Port, 5432))
	config.Database.User = getEnv("DB_USER", defaultString(config.Database.User, "postgres"))
	config.Database.Password = getEnv("DB_PASSWORD", defaultString(config.Database.Password, "postgres"))
	config.Database.Database = getEnv("DB_NAME", defaultString(config.Database.Database, "familyhundred"))
	config.Database.SSLMode = getEnv("DB_SSLMODE", defaultString(config.Database.SSLMode, "disable"))

	config.NATS.URL = getEnv("NATS_URL", defaultString(config.NATS.URL, "nats://localhost:4222"))

	config.Listener.FallbackIntervalSeconds = getEnvAsInt("LISTENER_FALLBACK_INTERVAL_SECONDS",
		defaultInt(config.Listener.FallbackIntervalSeconds, 30))
	config.Listener.PingIntervalSeconds = getEnvAsInt("LISTENER_PING_INTERVAL_SECONDS",
		defaultInt(config.Listener.PingIntervalSeconds, 90))

	return &config, nil
}

func (c *Config) fallbackInterval() time.Duration {
	return time.Duration(c.Listener.FallbackIntervalSeconds) * time.Second
}

func (c *Config) pingInterval() time.Duration {
	return time.Duration(c.Listener.PingIntervalSeconds) * time.Second
}

func defaultString(current, fallback string) string {
	if current != "" {
		return current
	}
	return fallback
}

func defaultInt(current, fallback int) int {
	if current != 0 {
		return current
	}
	return fallback
}
