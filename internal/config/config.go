// internal/config/config.go

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all application configuration
type Config struct {
	Environment  string
	Server       ServerConfig
	Database     DatabaseConfig
	NATS         NATSConfig
	Geo          GeoConfig
	Conversation ConversationConfig
	Log          LogConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	CorsOrigins     []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	SSLMode      string
}

// NATSConfig holds NATS configuration
type NATSConfig struct {
	URL            string
	MaxReconnects  int
	ReconnectWait  time.Duration
	ConnectTimeout time.Duration
}

// GeoConfig holds location and proximity configuration
type GeoConfig struct {
	DefaultRadius    float64
	MinRadius        float64
	MaxRadius        float64
	NeighborLimit    int
	LinkTimeout      time.Duration
	LinkMaxRedirects int
	CityFile         string
}

// ConversationConfig holds conversation manager configuration
type ConversationConfig struct {
	DirectTitle      string
	MaxMessageLength int
	CreateTimeout    time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Pretty bool
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present; real environment variables
// take precedence over it.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("Could not read .env file")
	}

	environment := getEnv("APP_ENV", "development")

	config := Config{
		Environment: environment,
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			CorsOrigins:     getEnvAsSlice("SERVER_CORS_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnvAsInt("DB_PORT", 5432),
			User:         getEnv("DB_USER", "postgres"),
			Password:     getEnv("DB_PASSWORD", "postgres"),
			Database:     getEnv("DB_NAME", "tadamon"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:  getEnvAsDuration("DB_MAX_LIFETIME", 5*time.Minute),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
		},
		NATS: NATSConfig{
			URL:            getEnv("NATS_URL", "nats://localhost:4222"),
			MaxReconnects:  getEnvAsInt("NATS_MAX_RECONNECTS", 10),
			ReconnectWait:  getEnvAsDuration("NATS_RECONNECT_WAIT", 1*time.Second),
			ConnectTimeout: getEnvAsDuration("NATS_CONNECT_TIMEOUT", 2*time.Second),
		},
		Geo: GeoConfig{
			DefaultRadius:    getEnvAsFloat("GEO_DEFAULT_RADIUS", 5.0),
			MinRadius:        getEnvAsFloat("GEO_MIN_RADIUS", 1.0),
			MaxRadius:        getEnvAsFloat("GEO_MAX_RADIUS", 50.0),
			NeighborLimit:    getEnvAsInt("GEO_NEIGHBOR_LIMIT", 200),
			LinkTimeout:      getEnvAsDuration("GEO_LINK_TIMEOUT", 10*time.Second),
			LinkMaxRedirects: getEnvAsInt("GEO_LINK_MAX_REDIRECTS", 10),
			CityFile:         getEnv("GEO_CITY_FILE", ""),
		},
		Conversation: ConversationConfig{
			DirectTitle:      getEnv("CONVERSATION_DIRECT_TITLE", "Direct Message"),
			MaxMessageLength: getEnvAsInt("CONVERSATION_MAX_MESSAGE_LENGTH", 1000),
			CreateTimeout:    getEnvAsDuration("CONVERSATION_CREATE_TIMEOUT", 15*time.Second),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Pretty: getEnvAsBool("LOG_PRETTY", environment == "development"),
		},
	}

	return config, validate(config)
}

// validate checks if config is valid
func validate(config Config) error {
	if config.Geo.MinRadius <= 0 || config.Geo.MaxRadius < config.Geo.MinRadius {
		return fmt.Errorf("invalid radius bounds [%v, %v]", config.Geo.MinRadius, config.Geo.MaxRadius)
	}

	if config.Geo.DefaultRadius < config.Geo.MinRadius || config.Geo.DefaultRadius > config.Geo.MaxRadius {
		return fmt.Errorf("default radius %v outside [%v, %v]", config.Geo.DefaultRadius, config.Geo.MinRadius, config.Geo.MaxRadius)
	}

	if config.Database.Password == "postgres" && config.Environment != "development" {
		return fmt.Errorf("database password must be set in non-development environments")
	}

	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
