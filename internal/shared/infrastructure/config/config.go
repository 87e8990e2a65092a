package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/petcuddles/pet-cuddles/internal/shared/infrastructure/database"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig            `yaml:"server"`
	Database   database.PostgresConfig `yaml:"database"`
	Redis      database.RedisConfig    `yaml:"redis"`
	JWT        JWTConfig               `yaml:"jwt"`
	RabbitMQ   RabbitMQConfig          `yaml:"rabbitmq"`
	Inbox      InboxConfig             `yaml:"inbox"`
	Log        LogConfig               `yaml:"log"`
	Migrations MigrationsConfig        `yaml:"migrations"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           string `yaml:"port"`
	AllowedOrigins string `yaml:"allowed_origins"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// RabbitMQConfig holds the alert feed consumer configuration.
// An empty URL disables the consumer.
type RabbitMQConfig struct {
	URL        string `yaml:"url"`
	Queue      string `yaml:"queue"`
	RoutingKey string `yaml:"routing_key"`
}

// InboxConfig holds the notification aggregation settings
type InboxConfig struct {
	UpstreamURL  string        `yaml:"upstream_url"`
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// LogConfig selects the zap preset and level
type LogConfig struct {
	Env   string `yaml:"env"`
	Level string `yaml:"level"`
}

// MigrationsConfig controls schema migrations on start-up
type MigrationsConfig struct {
	Path string `yaml:"path"`
	Skip bool   `yaml:"skip"`
}

// Load reads the optional YAML file named by CONFIG_FILE and then applies
// environment variables on top. Environment always wins.
func Load() (Config, error) {
	var file Config
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		var err error
		file, err = LoadFile(path)
		if err != nil {
			return Config{}, err
		}
	}
	return fromEnv(file), nil
}

// LoadFile parses a YAML configuration file without applying defaults
func LoadFile(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

func fromEnv(file Config) Config {
	port := getEnv("PORT", or(file.Server.Port, "8080"))

	return Config{
		Server: ServerConfig{
			Port:           port,
			AllowedOrigins: getEnv("ALLOWED_ORIGINS", or(file.Server.AllowedOrigins, "http://localhost:3000")),
		},
		Database: database.PostgresConfig{
			Host:     getEnv("DB_HOST", or(file.Database.Host, "localhost")),
			Port:     getEnv("DB_PORT", or(file.Database.Port, "5432")),
			User:     getEnv("DB_USER", or(file.Database.User, "postgres")),
			Password: getEnv("DB_PASSWORD", file.Database.Password),
			DBName:   getEnv("DB_NAME", or(file.Database.DBName, "petcuddles")),
			SSLMode:  getEnv("DB_SSLMODE", or(file.Database.SSLMode, "disable")),
		},
		Redis: database.RedisConfig{
			Enabled:  parseBool(os.Getenv("REDIS_ENABLED"), file.Redis.Enabled),
			Host:     getEnv("REDIS_HOST", or(file.Redis.Host, "localhost")),
			Port:     getEnv("REDIS_PORT", or(file.Redis.Port, "6379")),
			Password: getEnv("REDIS_PASSWORD", file.Redis.Password),
			DB:       parseInt(os.Getenv("REDIS_DB"), file.Redis.DB),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", or(file.JWT.Secret, "default-dev-secret")),
			Expiry: parseDuration(os.Getenv("JWT_EXPIRATION"), orDuration(file.JWT.Expiry, 24*time.Hour)),
		},
		RabbitMQ: RabbitMQConfig{
			URL:        getEnv("RABBITMQ_URL", file.RabbitMQ.URL),
			Queue:      getEnv("RABBITMQ_QUEUE", or(file.RabbitMQ.Queue, "pet-cuddles.alerts")),
			RoutingKey: getEnv("RABBITMQ_ROUTING_KEY", or(file.RabbitMQ.RoutingKey, "alert.notification")),
		},
		Inbox: InboxConfig{
			UpstreamURL:  getEnv("INBOX_UPSTREAM_URL", or(file.Inbox.UpstreamURL, "http://localhost:"+port)),
			FetchTimeout: parseDuration(os.Getenv("INBOX_FETCH_TIMEOUT"), orDuration(file.Inbox.FetchTimeout, 10*time.Second)),
			PollInterval: parseDuration(os.Getenv("INBOX_POLL_INTERVAL"), file.Inbox.PollInterval),
		},
		Log: LogConfig{
			Env:   getEnv("LOG_ENV", or(file.Log.Env, "production")),
			Level: getEnv("LOG_LEVEL", or(file.Log.Level, "info")),
		},
		Migrations: MigrationsConfig{
			Path: getEnv("MIGRATIONS_PATH", or(file.Migrations.Path, "migrations")),
			Skip: parseBool(os.Getenv("SKIP_MIGRATIONS"), file.Migrations.Skip),
		},
	}
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func or(value, defaultValue string) string {
	if value != "" {
		return value
	}
	return defaultValue
}

func orDuration(value, defaultValue time.Duration) time.Duration {
	if value != 0 {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration string or returns a default value
func parseDuration(value string, defaultValue time.Duration) time.Duration {
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	return defaultValue
}

func parseBool(value string, defaultValue bool) bool {
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	return defaultValue
}

func parseInt(value string, defaultValue int) int {
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	return defaultValue
}
