package kagiline

import (
	"os"
	"strconv"

	"github.com/raykavin/kagiline/pkg/logger/zerolog"
)

const (
	defaultLogLevel      = "info"
	defaultLogTimeFormat = "2006-01-02 15:04:05"
	defaultLogColored    = "true"
	defaultLogJSON       = "false"
)

// Environment variable names
const (
	envLogLevel      = "KAGILINE_LOG_LEVEL"
	envLogTimeFormat = "KAGILINE_LOG_TIME_FORMAT"
	envLogColor      = "KAGILINE_LOG_COLOR"
	envLogJSON       = "KAGILINE_LOG_JSON"
)

func init() {
	// Initialize the logger with configuration from environment variables
	log, err := initLogger()
	if err != nil {
		panic(err)
	}
	DefaultLog = log
}

// initLogger creates a new logger instance configured from environment variables
func initLogger() (*zerolog.Adapter, error) {
	logColored, err := parseBoolEnv(envLogColor, defaultLogColored)
	if err != nil {
		return nil, err
	}
	logJSON, err := parseBoolEnv(envLogJSON, defaultLogJSON)
	if err != nil {
		return nil, err
	}

	return NewLogger(
		getEnvWithDefault(envLogLevel, defaultLogLevel),
		getEnvWithDefault(envLogTimeFormat, defaultLogTimeFormat),
		logColored,
		logJSON,
	)
}

// NewLogger builds the zerolog backed logger used across kagiline
func NewLogger(level, timeFormat string, colored, json bool) (*zerolog.Adapter, error) {
	log, err := zerolog.New(level, timeFormat, colored, json)
	if err != nil {
		return nil, err
	}
	return zerolog.NewAdapter(log), nil
}

// getEnvWithDefault returns the value of the environment variable or the default if not set
func getEnvWithDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// parseBoolEnv gets a boolean environment variable with a default value
func parseBoolEnv(key, defaultValue string) (bool, error) {
	return strconv.ParseBool(getEnvWithDefault(key, defaultValue))
}
