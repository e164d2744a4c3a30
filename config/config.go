package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Scraper   ScraperConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Chromium process managed by the supervisor.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// LaunchAttempts is the maximum number of browser launch attempts
	// before startup is abandoned.
	LaunchAttempts int // default: 3

	// LaunchBackoff is the base delay between launch attempts. Attempt n
	// waits n * LaunchBackoff before retrying.
	LaunchBackoff time.Duration // default: 500ms

	// UserAgent identifies the service to scraped sites.
	UserAgent string
}

// ScraperConfig controls per-request scraping behavior.
type ScraperConfig struct {
	// DefaultTimeout is the per-request timeout.
	DefaultTimeout time.Duration // default: 30s

	// MaxTimeout is the maximum allowed timeout from the client.
	MaxTimeout time.Duration // default: 120s

	// PageLoadTimeout bounds navigation alone (until the DOM is parsed).
	PageLoadTimeout time.Duration // default: 15s

	// BlockResources toggles sub-resource filtering during navigation.
	BlockResources bool // default: true

	// BlockedResourceTypes lists resource types to abort when
	// BlockResources is on.
	// default: ["Image", "Stylesheet", "Font", "Media"]
	BlockedResourceTypes []string
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("DISTILL_HOST", "0.0.0.0"),
			Port: envIntOr("DISTILL_PORT", 8080),
			Mode: envOr("DISTILL_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:       envBoolOr("DISTILL_HEADLESS", true),
			BrowserBin:     os.Getenv("DISTILL_BROWSER_BIN"),
			LaunchAttempts: envIntOr("DISTILL_LAUNCH_ATTEMPTS", 3),
			LaunchBackoff:  envDurationOr("DISTILL_LAUNCH_BACKOFF", 500*time.Millisecond),
			UserAgent: envOr("DISTILL_USER_AGENT",
				"Mozilla/5.0 (compatible; distill/0.1; +https://github.com/use-agent/distill)"),
		},
		Scraper: ScraperConfig{
			DefaultTimeout:  envDurationOr("DISTILL_DEFAULT_TIMEOUT", 30*time.Second),
			MaxTimeout:      envDurationOr("DISTILL_MAX_TIMEOUT", 120*time.Second),
			PageLoadTimeout: envDurationOr("DISTILL_PAGE_TIMEOUT", 15*time.Second),
			BlockResources:  envBoolOr("DISTILL_BLOCK_RESOURCES", true),
			BlockedResourceTypes: envSliceOr("DISTILL_BLOCKED_RESOURCES", []string{
				"Image", "Stylesheet", "Font", "Media",
			}),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("DISTILL_AUTH_ENABLED", true),
			APIKeys: envSliceOr("DISTILL_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("DISTILL_RATE_RPS", 5.0),
			Burst:             envIntOr("DISTILL_RATE_BURST", 10),
		},
		Log: LogConfig{
			Level:  envOr("DISTILL_LOG_LEVEL", "info"),
			Format: envOr("DISTILL_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
