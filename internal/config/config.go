package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Bus      BusConfig
	Counter  CounterConfig
	Workflow WorkflowConfig
	Consumer ConsumerConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Host           string
	Port           string
	Name           string
	User           string
	Password       string
	ConnectTimeout time.Duration
	QueryTimeout   time.Duration
}

type BusConfig struct {
	URL            string
	Subject        string
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

type CounterConfig struct {
	FilePath string
}

type WorkflowConfig struct {
	// Mode selects the downstream workflow: "agent" calls the remote
	// agent service, "builtin" runs the deterministic eligibility check.
	Mode        string
	AgentURL    string
	Timeout     time.Duration
	Instruction string
}

type ConsumerConfig struct {
	MaxInFlight int
}

type LoggingConfig struct {
	Level string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using default values")
	}

	return &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "ledger-db"),
			Port:           getEnv("DB_PORT", "5432"),
			Name:           getEnv("POSTGRES_DB", "postgresdb"),
			User:           getEnv("POSTGRES_USER", "admin"),
			Password:       getEnv("POSTGRES_PASSWORD", "password"),
			ConnectTimeout: getDurationEnv("DB_CONNECT_TIMEOUT", 5*time.Second),
			QueryTimeout:   getDurationEnv("DB_QUERY_TIMEOUT", 3*time.Second),
		},
		Bus: BusConfig{
			URL:            getEnv("NATS_URL", "nats://my-nats:4222"),
			Subject:        getEnv("NATS_SUBJECT", "msg.transaction"),
			ConnectTimeout: getDurationEnv("NATS_CONNECT_TIMEOUT", 5*time.Second),
			PublishTimeout: getDurationEnv("NATS_PUBLISH_TIMEOUT", 5*time.Second),
		},
		Counter: CounterConfig{
			FilePath: getEnv("COUNT_FILE_PATH", "data/transaction_count.txt"),
		},
		Workflow: WorkflowConfig{
			Mode:        getEnv("WORKFLOW_MODE", "builtin"),
			AgentURL:    getEnv("AGENT_URL", "http://cs-agent:8080"),
			Timeout:     getDurationEnv("WORKFLOW_TIMEOUT", 10*time.Minute),
			Instruction: getEnv("WORKFLOW_INSTRUCTION", "Check whether all users who have promotions are eligible for them."),
		},
		Consumer: ConsumerConfig{
			MaxInFlight: getIntEnv("CONSUMER_MAX_IN_FLIGHT", 10),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}
}

// DSN renders the database config as a pgx connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", d.User, d.Password, d.Host, d.Port, d.Name)
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntEnv(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid value for %s: %s, using default: %d", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid duration for %s: %s, using default: %s", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}
