package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	BackendMemory    = "memory"
	BackendRedis     = "redis"
	BackendDatastore = "datastore"
	BackendDynamoDB  = "dynamodb"
)

// Config is everything a process needs to reach the counter store.
// Table is the store table reference: the DynamoDB table, the Datastore kind
// or the Redis key prefix depending on Backend.
type Config struct {
	Backend            string `validate:"required,oneof=memory redis datastore dynamodb"`
	Table              string `validate:"required_unless=Backend memory"`
	RedisAddr          string `validate:"required_if=Backend redis"`
	ProjectID          string `validate:"required_if=Backend datastore"`
	DatastoreNamespace string
	DynamoDBEndpoint   string `validate:"omitempty,url"`
	MaxAttempts        int    `validate:"min=1"`
	Port               string `validate:"required,numeric"`
	LogLevel           string `validate:"oneof=debug info warn error"`
}

// ConfigurationError means no invocation can succeed with this process.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration: %v", e.Err)
	}
	return fmt.Sprintf("configuration: %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

var validate = validator.New()

func env(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// Load reads .env (if any) and then the process environment.
func Load() (*Config, error) {
	godotenv.Load()

	maxAttempts, err := strconv.Atoi(env("COUNTER_MAX_ATTEMPTS", "1"))
	if err != nil {
		return nil, &ConfigurationError{Field: "COUNTER_MAX_ATTEMPTS", Err: err}
	}

	cfg := &Config{
		Backend:            strings.ToLower(env("COUNTER_BACKEND", BackendDynamoDB)),
		Table:              os.Getenv("TABLE_NAME"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		ProjectID:          os.Getenv("PROJECT_ID"),
		DatastoreNamespace: os.Getenv("DATASTORE_NAMESPACE"),
		DynamoDBEndpoint:   os.Getenv("DYNAMODB_ENDPOINT"),
		MaxAttempts:        maxAttempts,
		Port:               env("PORT", "8080"),
		LogLevel:           strings.ToLower(env("LOG_LEVEL", "info")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		fe := ve[0]
		return &ConfigurationError{
			Field: fe.Field(),
			Err:   fmt.Errorf("failed on %q (value=%v)", fe.Tag(), fe.Value()),
		}
	}

	return &ConfigurationError{Err: err}
}
