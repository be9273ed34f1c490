package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// This function will Load the ENVIORNMENT VARIABLES from .env if GO_ENV variable is not set
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		err := godotenv.Load()
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}

	return nil
}

type EnviornmentVariable struct {
	// All variables
	GO_ENV   string
	PORT     int
	LOG_FILE string
	// Storage
	STORE_DRIVER   string
	DB_USER_NAME   string
	DB_PASSWORD    string
	DB_NAME        string
	DB_HOST        string
	DB_PORT        string
	DB_SSL_MODE    string
	MONGO_URI      string
	MONGO_DATABASE string
	// Redis Configuration
	REDIS_URL string
	// Student directory
	STUDENT_SERVICE_URL     string
	STUDENT_SERVICE_TIMEOUT time.Duration
	// Enrollment
	ENROLLMENT_MAX_ATTEMPTS int
	ENROLLMENT_LOCK_TTL     time.Duration
	ENROLLMENT_LOCK_WAIT    time.Duration
	// Notifications
	NOTIFICATION_STREAM string
	NOTIFICATION_GROUP  string
	// Cron
	CRON_ENABLED               bool
	ENROLLMENT_FINISH_SCHEDULE string
	ENROLLMENT_FINISH_LEAD     time.Duration
	// Mailer
	SMTP_HOST     string
	SMTP_PORT     int
	SMTP_USERNAME string
	SMTP_PASSWORD string
	SMTP_FROM     string
	MAILER_PORT   int
	// HTTP
	ALLOWED_ORIGINS     string
	RATE_LIMIT_REQUESTS int
}

func Get() (*EnviornmentVariable, error) {
	var err error
	envVariables := &EnviornmentVariable{
		GO_ENV:   os.Getenv("GO_ENV"),
		LOG_FILE: os.Getenv("LOG_FILE"),
		// Storage
		STORE_DRIVER:   strings.ToLower(getEnv("STORE_DRIVER", "postgres")),
		DB_USER_NAME:   os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:    os.Getenv("DB_PASSWORD"),
		DB_NAME:        os.Getenv("DB_NAME"),
		DB_HOST:        getEnv("DB_HOST", "localhost"),
		DB_PORT:        getEnv("DB_PORT", "5432"),
		DB_SSL_MODE:    getEnv("DB_SSL_MODE", "disable"),
		MONGO_URI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MONGO_DATABASE: getEnv("MONGO_DATABASE", "courses"),
		// Redis
		REDIS_URL: os.Getenv("REDIS_URL"),
		// Student directory
		STUDENT_SERVICE_URL: strings.TrimRight(getEnv("STUDENT_SERVICE_URL", "http://localhost:8081"), "/"),
		// Notifications
		NOTIFICATION_STREAM: getEnv("NOTIFICATION_STREAM", "enroll_finish"),
		NOTIFICATION_GROUP:  getEnv("NOTIFICATION_GROUP", "mailer"),
		// Cron
		ENROLLMENT_FINISH_SCHEDULE: getEnv("ENROLLMENT_FINISH_SCHEDULE", "0 */5 * * * *"),
		// Mailer
		SMTP_HOST:     os.Getenv("SMTP_HOST"),
		SMTP_USERNAME: os.Getenv("SMTP_USERNAME"),
		SMTP_PASSWORD: os.Getenv("SMTP_PASSWORD"),
		SMTP_FROM:     os.Getenv("SMTP_FROM"),
		// HTTP
		ALLOWED_ORIGINS: os.Getenv("ALLOWED_ORIGINS"),
	}

	if envVariables.PORT, err = getInt("PORT", 8080); err != nil {
		return nil, err
	}
	if envVariables.MAILER_PORT, err = getInt("MAILER_PORT", 8082); err != nil {
		return nil, err
	}
	if envVariables.SMTP_PORT, err = getInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	if envVariables.RATE_LIMIT_REQUESTS, err = getInt("RATE_LIMIT_REQUESTS", 100); err != nil {
		return nil, err
	}
	if envVariables.ENROLLMENT_MAX_ATTEMPTS, err = getInt("ENROLLMENT_MAX_ATTEMPTS", 4); err != nil {
		return nil, err
	}
	if envVariables.ENROLLMENT_MAX_ATTEMPTS < 1 {
		return nil, fmt.Errorf("invalid ENROLLMENT_MAX_ATTEMPTS: must be at least 1")
	}

	if envVariables.STUDENT_SERVICE_TIMEOUT, err = getDuration("STUDENT_SERVICE_TIMEOUT", 3*time.Second); err != nil {
		return nil, err
	}
	if envVariables.ENROLLMENT_LOCK_TTL, err = getDuration("ENROLLMENT_LOCK_TTL", 10*time.Second); err != nil {
		return nil, err
	}
	if envVariables.ENROLLMENT_LOCK_WAIT, err = getDuration("ENROLLMENT_LOCK_WAIT", 5*time.Second); err != nil {
		return nil, err
	}
	if envVariables.ENROLLMENT_FINISH_LEAD, err = getDuration("ENROLLMENT_FINISH_LEAD", 24*time.Hour); err != nil {
		return nil, err
	}

	if envVariables.CRON_ENABLED, err = getBool("CRON_ENABLED", true); err != nil {
		return nil, err
	}

	return envVariables, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func getBool(key string, defaultValue bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
