// Package config provides configuration loading and management for the channel console.
// It handles environment variable parsing and provides default values for all settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// init loads environment variables from .env files during package initialization.
// godotenv.Load() does not override already-set environment variables,
// so OS env takes precedence over .env and .env.local.
func init() {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env file: %v\n", err)
		}
	}

	// Local overrides, gitignored
	if _, err := os.Stat(".env.local"); err == nil {
		if err := godotenv.Load(".env.local"); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to load .env.local file: %v\n", err)
		}
	}
}

// Config captures environment-driven settings for the console service.
type Config struct {
	Env     string // Deployment environment (dev, staging, prod)
	Port    string // HTTP server port
	LogFile string // Optional rotating log file path; stdout when empty

	// Integration engine REST API
	EngineURL         string        // Base URL of the engine API, e.g. https://mirth:8443/api
	EngineUsername    string        // Basic auth username for the engine API
	EnginePassword    string        // Basic auth password for the engine API
	EngineTimeout     time.Duration // Per-request timeout for engine calls
	EngineInsecureTLS bool          // Skip TLS verification (self-signed engine certificates)

	DatabaseDSN string // Database connection string (PostgreSQL); memory store when empty
	NATSURL     string // NATS server URL; events disabled when empty
	S3Endpoint  string // S3-compatible storage endpoint
	S3Region    string // S3 region
	S3Bucket    string // Bucket for channel exports; exports disabled when empty
	S3AccessKey string // S3 access key
	S3SecretKey string // S3 secret key

	JWTIssuer   string // Expected issuer for JWT validation
	JWTAudience string // Expected audience for JWT validation
	JWKSURL     string // JWKS endpoint for console token verification

	// How often the workspace stream refreshes the channel list
	StreamRefreshInterval time.Duration

	// CORS configuration
	CORSAllowedOrigins []string // Allowed origins for CORS (empty means deny all)
}

// Default configuration values used when environment variables are not set
const (
	defaultPort          = "8080"      // Default HTTP server port
	defaultS3Region      = "us-east-1" // Default S3 region
	defaultEnv           = "dev"       // Default environment
	defaultEngineTimeout = 30 * time.Second
	defaultStreamRefresh = 15 * time.Second
)

// Load reads environment variables and produces a Config suitable for wiring the service.
// Returns an error if required parameters are missing or invalid.
func Load() (Config, error) {
	cfg := Config{
		Env:                   getEnv("CONSOLE_ENV", defaultEnv),
		Port:                  getEnv("CONSOLE_PORT", defaultPort),
		LogFile:               os.Getenv("CONSOLE_LOG_FILE"),
		EngineURL:             strings.TrimRight(os.Getenv("CONSOLE_ENGINE_URL"), "/"),
		EngineUsername:        os.Getenv("CONSOLE_ENGINE_USERNAME"),
		EnginePassword:        os.Getenv("CONSOLE_ENGINE_PASSWORD"),
		EngineTimeout:         defaultEngineTimeout,
		EngineInsecureTLS:     parseBool(os.Getenv("CONSOLE_ENGINE_INSECURE_TLS")),
		DatabaseDSN:           os.Getenv("CONSOLE_DB_DSN"),
		NATSURL:               os.Getenv("CONSOLE_NATS_URL"),
		S3Endpoint:            os.Getenv("CONSOLE_S3_ENDPOINT"),
		S3Region:              getEnv("CONSOLE_S3_REGION", defaultS3Region),
		S3Bucket:              os.Getenv("CONSOLE_S3_BUCKET"),
		S3AccessKey:           os.Getenv("CONSOLE_S3_ACCESS_KEY"),
		S3SecretKey:           os.Getenv("CONSOLE_S3_SECRET_KEY"),
		JWTIssuer:             os.Getenv("CONSOLE_JWT_ISSUER"),
		JWTAudience:           os.Getenv("CONSOLE_JWT_AUDIENCE"),
		JWKSURL:               os.Getenv("CONSOLE_JWKS_URL"),
		StreamRefreshInterval: defaultStreamRefresh,
	}

	if v, exists := os.LookupEnv("CONSOLE_ENGINE_TIMEOUT"); exists {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("CONSOLE_ENGINE_TIMEOUT: %w", err)
		}
		cfg.EngineTimeout = d
	}

	if v, exists := os.LookupEnv("CONSOLE_STREAM_REFRESH"); exists {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("CONSOLE_STREAM_REFRESH: %w", err)
		}
		cfg.StreamRefreshInterval = d
	}

	if corsOrigins, exists := os.LookupEnv("CONSOLE_CORS_ALLOWED_ORIGINS"); exists {
		cfg.CORSAllowedOrigins = splitList(corsOrigins)
	}

	// Validate required parameters
	if cfg.EngineURL == "" {
		return cfg, fmt.Errorf("CONSOLE_ENGINE_URL is required")
	}

	if cfg.JWTIssuer == "" {
		return cfg, fmt.Errorf("CONSOLE_JWT_ISSUER is required")
	}

	if cfg.JWTAudience == "" {
		return cfg, fmt.Errorf("CONSOLE_JWT_AUDIENCE is required")
	}

	return cfg, nil
}

// getEnv retrieves an environment variable value, returning a fallback if not set or empty
func getEnv(key, fallback string) string {
	if v, exists := os.LookupEnv(key); exists && v != "" {
		return v
	}
	return fallback
}

// parseBool converts a string to a boolean value, returning false if parsing fails
func parseBool(v string) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	return b
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
