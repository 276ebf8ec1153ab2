package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/metrotime/metrotime/aggregator"
)

// Environment variable names.
const (
	EnvDatabaseURL    = "DB_URL"
	EnvMissingMinutes = "METROTIME_MISSING_MINUTES"
	EnvHTTPTimeout    = "METROTIME_HTTP_TIMEOUT"
	EnvLogFormat      = "METROTIME_LOG_FORMAT"
	EnvDebug          = "METROTIME_DEBUG"
)

const defaultHTTPTimeout = 30 * time.Second

// ErrInvalid wraps every configuration error.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the application configuration.
type Config struct {
	DatabaseURL    string        `validate:"required"`
	HTTPTimeout    time.Duration `validate:"gt=0"`
	MissingMinutes aggregator.MissingMinutesPolicy
	JSONLogs       bool
	Debug          bool
}

// Load reads an optional .env file, then the process environment.
// Variables already set in the environment win over the file.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: reading %s: %v", ErrInvalid, f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds and validates a Config from a lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		DatabaseURL: strings.TrimSpace(getenv(EnvDatabaseURL)),
		HTTPTimeout: defaultHTTPTimeout,
		JSONLogs:    strings.EqualFold(getenv(EnvLogFormat), "JSON"),
		Debug:       strings.EqualFold(getenv(EnvDebug), "YES"),
	}

	if raw := strings.TrimSpace(getenv(EnvHTTPTimeout)); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, EnvHTTPTimeout, err)
		}
		cfg.HTTPTimeout = d
	}

	policy, err := aggregator.ParseMissingMinutesPolicy(getenv(EnvMissingMinutes))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, EnvMissingMinutes, err)
	}
	cfg.MissingMinutes = policy

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, describe(err))
	}

	return cfg, nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	envNames := map[string]string{
		"DatabaseURL": EnvDatabaseURL,
		"HTTPTimeout": EnvHTTPTimeout,
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := envNames[fe.Field()]
		if name == "" {
			name = fe.Field()
		}
		if fe.Tag() == "required" {
			msgs = append(msgs, name+" is required")
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", name, fe.Tag()))
		}
	}
	return strings.Join(msgs, "; ")
}
