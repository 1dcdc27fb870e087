// Package config loads flightprobe settings from environment variables,
// applies fixed defaults, and validates the result.
//
// Search parameters (ORIGIN, DESTINATION, DEPART_DATE) are used verbatim when
// set. Driver and wait settings use FLIGHTPROBE_* variables. Artifact storage
// uses the AWS_* variables; when they are absent, failure artifacts are only
// logged.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kuitang/flightprobe/internal/field"
	"github.com/kuitang/flightprobe/internal/flightsearch"
	"github.com/kuitang/flightprobe/internal/logutil"
)

const (
	DefaultOrigin      = "Dublin"
	DefaultDestination = "London"
	DefaultDepartDate  = "2026-01-20"
	DefaultBaseURL     = "https://www.kayak.com"

	defaultS3Region = "auto"
	isoDate         = "2006-01-02"
)

// Config holds all flightprobe configuration.
type Config struct {
	// Search parameters
	Origin      string // ORIGIN
	Destination string // DESTINATION
	DepartDate  string // DEPART_DATE, YYYY-MM-DD

	// Target site and browser
	BaseURL  string
	Browser  string // chromium, firefox or webkit
	Headless bool
	Live     bool // FLIGHTPROBE_LIVE opts into tests against the real site

	// Bounded waits
	ResolveTimeout time.Duration
	ActionTimeout  time.Duration
	ConsentTimeout time.Duration
	ResultsTimeout time.Duration
	PollInterval   time.Duration
	TypeDelay      time.Duration

	// Artifact storage (optional)
	AWSEndpointS3      string // AWS_ENDPOINT_URL_S3
	AWSRegion          string // AWS_REGION
	AWSAccessKeyID     string // AWS_ACCESS_KEY_ID
	AWSSecretAccessKey string // AWS_SECRET_ACCESS_KEY
	AWSBucketName      string // BUCKET_NAME
	AWSPublicURL       string // S3_PUBLIC_URL
}

// ValidationError represents a configuration validation error with multiple issues.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// LoadConfig reads configuration from the environment and validates it.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	cfg.Origin = getEnvOrDefault("ORIGIN", DefaultOrigin)
	cfg.Destination = getEnvOrDefault("DESTINATION", DefaultDestination)
	cfg.DepartDate = getEnvOrDefault("DEPART_DATE", DefaultDepartDate)

	cfg.BaseURL = strings.TrimRight(getEnvOrDefault("FLIGHTPROBE_BASE_URL", DefaultBaseURL), "/")
	cfg.Browser = strings.ToLower(getEnvOrDefault("FLIGHTPROBE_BROWSER", "chromium"))
	cfg.Headless = parseBoolOrDefault("FLIGHTPROBE_HEADLESS", true)
	cfg.Live = parseBoolOrDefault("FLIGHTPROBE_LIVE", false)

	cfg.ResolveTimeout = parseDurationOrDefault("FLIGHTPROBE_RESOLVE_TIMEOUT", 10*time.Second)
	cfg.ActionTimeout = parseDurationOrDefault("FLIGHTPROBE_ACTION_TIMEOUT", 5*time.Second)
	cfg.ConsentTimeout = parseDurationOrDefault("FLIGHTPROBE_CONSENT_TIMEOUT", 8*time.Second)
	cfg.ResultsTimeout = parseDurationOrDefault("FLIGHTPROBE_RESULTS_TIMEOUT", 60*time.Second)
	cfg.PollInterval = parseDurationOrDefault("FLIGHTPROBE_POLL_INTERVAL", 100*time.Millisecond)
	cfg.TypeDelay = parseDurationOrDefault("FLIGHTPROBE_TYPE_DELAY", 40*time.Millisecond)

	cfg.AWSEndpointS3 = strings.TrimSpace(os.Getenv("AWS_ENDPOINT_URL_S3"))
	cfg.AWSRegion = getEnvOrDefault("AWS_REGION", defaultS3Region)
	cfg.AWSAccessKeyID = strings.TrimSpace(os.Getenv("AWS_ACCESS_KEY_ID"))
	cfg.AWSSecretAccessKey = strings.TrimSpace(os.Getenv("AWS_SECRET_ACCESS_KEY"))
	cfg.AWSBucketName = strings.TrimSpace(os.Getenv("BUCKET_NAME"))
	cfg.AWSPublicURL = strings.TrimSpace(os.Getenv("S3_PUBLIC_URL"))
	if cfg.AWSPublicURL == "" && cfg.AWSEndpointS3 != "" && cfg.AWSBucketName != "" {
		cfg.AWSPublicURL = strings.TrimRight(cfg.AWSEndpointS3, "/") + "/" + cfg.AWSBucketName
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every setting and reports all problems at once.
func (c *Config) Validate() error {
	var errs []string

	if strings.TrimSpace(c.Origin) == "" {
		errs = append(errs, "ORIGIN must not be blank")
	}
	if strings.TrimSpace(c.Destination) == "" {
		errs = append(errs, "DESTINATION must not be blank")
	}
	if _, err := time.Parse(isoDate, c.DepartDate); err != nil {
		errs = append(errs, fmt.Sprintf("DEPART_DATE must be YYYY-MM-DD, got %q", c.DepartDate))
	}

	if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Sprintf("FLIGHTPROBE_BASE_URL must be an http(s) URL, got %q", c.BaseURL))
	}
	switch c.Browser {
	case "chromium", "firefox", "webkit":
	default:
		errs = append(errs, fmt.Sprintf("FLIGHTPROBE_BROWSER must be chromium, firefox or webkit, got %q", c.Browser))
	}

	for _, d := range []struct {
		name  string
		value time.Duration
	}{
		{"FLIGHTPROBE_RESOLVE_TIMEOUT", c.ResolveTimeout},
		{"FLIGHTPROBE_ACTION_TIMEOUT", c.ActionTimeout},
		{"FLIGHTPROBE_CONSENT_TIMEOUT", c.ConsentTimeout},
		{"FLIGHTPROBE_RESULTS_TIMEOUT", c.ResultsTimeout},
		{"FLIGHTPROBE_POLL_INTERVAL", c.PollInterval},
	} {
		if d.value <= 0 {
			errs = append(errs, d.name+" must be positive")
		}
	}
	if c.PollInterval > 0 && c.ResolveTimeout > 0 && c.PollInterval >= c.ResolveTimeout {
		errs = append(errs, "FLIGHTPROBE_POLL_INTERVAL must be shorter than FLIGHTPROBE_RESOLVE_TIMEOUT")
	}
	if c.TypeDelay < 0 {
		errs = append(errs, "FLIGHTPROBE_TYPE_DELAY must not be negative")
	}

	// Artifact storage is all-or-nothing.
	if c.ArtifactsEnabled() || c.AWSAccessKeyID != "" || c.AWSSecretAccessKey != "" {
		if c.AWSEndpointS3 == "" {
			errs = append(errs, "AWS_ENDPOINT_URL_S3 is required when artifact storage is configured")
		}
		if c.AWSBucketName == "" {
			errs = append(errs, "BUCKET_NAME is required when artifact storage is configured")
		}
		if c.AWSAccessKeyID == "" {
			errs = append(errs, "AWS_ACCESS_KEY_ID is required when artifact storage is configured")
		}
		if c.AWSSecretAccessKey == "" {
			errs = append(errs, "AWS_SECRET_ACCESS_KEY is required when artifact storage is configured")
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// FieldOptions returns the field resolver settings.
func (c *Config) FieldOptions() field.Options {
	return field.Options{
		ResolveTimeout: c.ResolveTimeout,
		PollInterval:   c.PollInterval,
		TypeDelay:      c.TypeDelay,
		ActionTimeout:  c.ActionTimeout,
	}
}

// SearchOptions returns the page-object settings for BaseURL.
func (c *Config) SearchOptions() flightsearch.Options {
	return flightsearch.Options{
		BaseURL:        c.BaseURL,
		Field:          c.FieldOptions(),
		ConsentTimeout: c.ConsentTimeout,
		ResultsTimeout: c.ResultsTimeout,
	}
}

// LogValue reports the configuration with credentials redacted.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("origin", c.Origin),
		slog.String("destination", c.Destination),
		slog.String("depart_date", c.DepartDate),
		slog.String("base_url", c.BaseURL),
		slog.String("browser", c.Browser),
		slog.Bool("headless", c.Headless),
		slog.Bool("live", c.Live),
		slog.Duration("resolve_timeout", c.ResolveTimeout),
		slog.Duration("action_timeout", c.ActionTimeout),
		slog.String("s3_endpoint", c.AWSEndpointS3),
		slog.String("bucket", c.AWSBucketName),
		slog.String("aws_access_key_id", logutil.Redact("AWS_ACCESS_KEY_ID", c.AWSAccessKeyID)),
		slog.String("aws_secret_access_key", logutil.Redact("AWS_SECRET_ACCESS_KEY", c.AWSSecretAccessKey)),
	)
}

// ArtifactsEnabled reports whether failure artifacts should be uploaded.
func (c *Config) ArtifactsEnabled() bool {
	return c.AWSEndpointS3 != "" || c.AWSBucketName != ""
}

// LiveSite reports whether BaseURL points at the real flight-search site rather than a local fixture.
func (c *Config) LiveSite() bool {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return host != "localhost" && host != "127.0.0.1" && host != "::1"
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// MustLoadConfig loads configuration and panics if validation fails.
func MustLoadConfig() *Config {
	cfg, err := LoadConfig()
	if err != nil {
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			panic(fmt.Sprintf("Configuration validation failed:\n  - %s", strings.Join(validationErr.Errors, "\n  - ")))
		}
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}
	return cfg
}
