package app

import (
	"os"
	"strconv"
	"time"

	"github.com/aussiebroadwan/oauthsdk/pkg/httpx"
)

type Config struct {
	Site         string // Authorization server base URL (e.g. https://auth.example.com)
	ClientID     string // Required for every grant
	ClientSecret string // Optional for public clients

	AuthorizeURL  string                // Optional: path or absolute URL (default: /oauth/authorize)
	TokenURL      string                // Optional: path or absolute URL (default: /oauth/token)
	TokenMethod   string                // GET or POST (default: POST)
	TokenEncoding string                // form or json (default: form)
	AuthScheme    string                // basic_auth, request_body, tls_client_auth, private_key_jwt (default: basic_auth)
	Timeout       time.Duration         // HTTP timeout (default: 30s)
	RateLimit     httpx.RateLimitConfig // Outbound token endpoint budget (RATELIMIT_TOKEN_*)

	Env       string // Environment (dev, staging, prod) (default: prod)
	LogLevel  string // Log level (debug, info, warn, error) (default: warn)
	LogFormat string // Log format (json, text) (default: text)
}

func LoadConfig() Config {
	return Config{
		Site:          os.Getenv("OAUTH_SITE"),
		ClientID:      os.Getenv("OAUTH_CLIENT_ID"),
		ClientSecret:  os.Getenv("OAUTH_CLIENT_SECRET"),
		AuthorizeURL:  getEnvOrDefault("OAUTH_AUTHORIZE_URL", "/oauth/authorize"),
		TokenURL:      getEnvOrDefault("OAUTH_TOKEN_URL", "/oauth/token"),
		TokenMethod:   getEnvOrDefault("OAUTH_TOKEN_METHOD", "POST"),
		TokenEncoding: getEnvOrDefault("OAUTH_TOKEN_ENCODING", "form"),
		AuthScheme:    getEnvOrDefault("OAUTH_AUTH_SCHEME", "basic_auth"),
		Timeout:       getEnvDurationOrDefault("OAUTH_TIMEOUT", 30*time.Second),
		RateLimit:     httpx.ParseRateLimitFromEnv("TOKEN", httpx.TokenEndpointLimit),
		Env:           getEnvOrDefault("ENV", "prod"),
		LogLevel:      getEnvOrDefault("LOG_LEVEL", "warn"),
		LogFormat:     getEnvOrDefault("LOG_FORMAT", "text"),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "10s", "1m")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Plain integers are seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
