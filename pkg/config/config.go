package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm/logger"
)

// RegistryDBConfig holds the connection settings for the central registry
// database. The registry is always on; per-plant databases are resolved
// separately through PlantDB/PlantGraph.
type RegistryDBConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogLevel        logger.LogLevel
}

// DSN returns the PostgreSQL connection string for the registry.
func (c *RegistryDBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// PlantDBParams holds the relational connection parameters resolved for one
// plant key. All fields are required; resolution fails closed if any is
// missing from the environment.
type PlantDBParams struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns the PostgreSQL connection string for a plant database.
func (p PlantDBParams) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// PlantGraphParams holds the graph connection parameters resolved for one
// plant key.
type PlantGraphParams struct {
	URI      string
	User     string
	Password string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SigningKey      string
	ExpirationHours int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Prefix string
}

// AIConfig holds the external AI agent endpoint configuration.
type AIConfig struct {
	URL     string
	Timeout time.Duration
}

// Config holds all configuration
type Config struct {
	ServiceName    string
	Registry       RegistryDBConfig
	Server         ServerConfig
	JWT            JWTConfig
	Log            LogConfig
	Metrics        MetricsConfig
	AI             AIConfig
	ConnectTimeout time.Duration
}

// Load loads configuration from environment variables.
func Load(serviceName string) (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		fmt.Printf("Warning: .env file not found, using environment variables\n")
	}

	config := &Config{
		ServiceName: serviceName,
		Registry: RegistryDBConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "password"),
			DBName:          getEnv("DB_NAME", serviceName),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 1*time.Hour),
			LogLevel:        getEnvAsLogLevel("DB_LOG_LEVEL", logger.Warn),
		},
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8004"),
			Env:  getEnv("APP_ENV", "development"),
		},
		JWT: JWTConfig{
			SigningKey:      getEnv("JWT_SIGNING_KEY", "defaultsecretkey"),
			ExpirationHours: getEnvAsInt("JWT_EXPIRATION_HOURS", 24),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Metrics: MetricsConfig{
			Prefix: getEnv("METRICS_PREFIX", serviceName),
		},
		AI: AIConfig{
			URL:     getEnv("AI_AGENT_URL", ""),
			Timeout: getEnvAsDuration("AI_AGENT_TIMEOUT", 120*time.Second),
		},
		ConnectTimeout: getEnvAsDuration("DB_CONNECT_TIMEOUT", 10*time.Second),
	}

	return config, nil
}

// PlantDB resolves the relational connection parameters for a plant key.
// The key from the plant record is concatenated with fixed suffixes to look
// up environment values, e.g. key "ACME" reads ACME_DB_HOST, ACME_DB_PORT,
// ACME_DB_USER, ACME_DB_PASSWORD and ACME_DB_NAME. Missing any required
// value fails closed, never a default.
func PlantDB(key string) (PlantDBParams, error) {
	params := PlantDBParams{
		Host:     os.Getenv(key + "_DB_HOST"),
		Port:     os.Getenv(key + "_DB_PORT"),
		User:     os.Getenv(key + "_DB_USER"),
		Password: os.Getenv(key + "_DB_PASSWORD"),
		DBName:   os.Getenv(key + "_DB_NAME"),
		SSLMode:  getEnv(key+"_DB_SSL_MODE", "disable"),
	}

	var missing []string
	for suffix, value := range map[string]string{
		"_DB_HOST":     params.Host,
		"_DB_PORT":     params.Port,
		"_DB_USER":     params.User,
		"_DB_PASSWORD": params.Password,
		"_DB_NAME":     params.DBName,
	} {
		if value == "" {
			missing = append(missing, key+suffix)
		}
	}
	if len(missing) > 0 {
		return PlantDBParams{}, fmt.Errorf("missing environment variables: %s", strings.Join(missing, ", "))
	}

	return params, nil
}

// PlantGraph resolves the graph connection parameters for a plant key, e.g.
// key "ACME" reads ACME_NEO4J_URI, ACME_NEO4J_USER and ACME_NEO4J_PASSWORD.
func PlantGraph(key string) (PlantGraphParams, error) {
	params := PlantGraphParams{
		URI:      os.Getenv(key + "_NEO4J_URI"),
		User:     os.Getenv(key + "_NEO4J_USER"),
		Password: os.Getenv(key + "_NEO4J_PASSWORD"),
	}

	var missing []string
	for suffix, value := range map[string]string{
		"_NEO4J_URI":      params.URI,
		"_NEO4J_USER":     params.User,
		"_NEO4J_PASSWORD": params.Password,
	} {
		if value == "" {
			missing = append(missing, key+suffix)
		}
	}
	if len(missing) > 0 {
		return PlantGraphParams{}, fmt.Errorf("missing environment variables: %s", strings.Join(missing, ", "))
	}

	return params, nil
}

// LogConfig returns the configuration as a zap logger-friendly format
func (c *Config) LogConfig() []zap.Field {
	return []zap.Field{
		zap.String("service", c.ServiceName),
		zap.String("environment", c.Server.Env),
		zap.String("registry_db_host", c.Registry.Host),
		zap.String("registry_db_name", c.Registry.DBName),
		zap.String("server_port", c.Server.Port),
		zap.String("ai_agent_url", c.AI.URL),
	}
}

// Helper function to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as integers
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as durations
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// Helper function to get environment variables as log levels
func getEnvAsLogLevel(key string, defaultValue logger.LogLevel) logger.LogLevel {
	valueStr := getEnv(key, "")
	switch valueStr {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return defaultValue
	}
}
