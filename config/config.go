package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Capture   CaptureConfig
	Runs      RunsConfig
	Analytics AnalyticsConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Webhook   WebhookConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 3000
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance launched for each run.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Proxy is the proxy URL for all browser traffic.
	Proxy string

	// Stealth injects anti-detection evasions into every tab.
	Stealth bool // default: true

	// BlockAds aborts requests to known ad and tracking hosts.
	BlockAds bool // default: false
}

// CaptureConfig controls the per-domain capture pipeline.
type CaptureConfig struct {
	// NavigationTimeout bounds a single page navigation.
	NavigationTimeout time.Duration // default: 9s

	// OperationTimeout bounds every page operation after navigation.
	OperationTimeout time.Duration // default: 12s

	// RetryDelay is the pause before trying the fallback URL scheme.
	RetryDelay time.Duration // default: 250ms

	// PricingPath is the well-known path visited on every domain.
	PricingPath string // default: "/pricing"

	// BodyPreviewChars bounds the body text inspected by the blocking detector.
	BodyPreviewChars int // default: 5000
}

// RunsConfig controls the run orchestrator.
type RunsConfig struct {
	// DomainDelay is the pause between two domains of the same run.
	DomainDelay time.Duration // default: 350ms

	// TTL is how long a terminal run stays resolvable.
	TTL time.Duration // default: 20m

	// MaxDomains is the cap on unique domains per run.
	MaxDomains int // default: 10
}

// AnalyticsConfig controls the analytics log.
type AnalyticsConfig struct {
	// Path is the newline-delimited JSON file holding analytics events.
	Path string // default: "data/analytics.ndjson"
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per identity.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per identity.
	Burst int // default: 10
}

// WebhookConfig controls run completion notifications.
type WebhookConfig struct {
	// URL receives a POST for every terminal run. Empty disables webhooks.
	URL string

	// Secret signs webhook bodies with HMAC-SHA256 when non-empty.
	Secret string
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
// A .env file in the working directory is loaded first when present;
// variables already set in the environment take precedence.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	return &Config{
		Server: ServerConfig{
			Host: envOr("PRICELENS_HOST", "0.0.0.0"),
			Port: envIntOr("PRICELENS_PORT", envIntOr("PORT", 3000)),
			Mode: envOr("PRICELENS_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:   envBoolOr("PRICELENS_HEADLESS", true),
			NoSandbox:  envBoolOr("PRICELENS_NO_SANDBOX", false),
			BrowserBin: os.Getenv("PRICELENS_BROWSER_BIN"),
			Proxy:      os.Getenv("PRICELENS_PROXY"),
			Stealth:    envBoolOr("PRICELENS_STEALTH", true),
			BlockAds:   envBoolOr("PRICELENS_BLOCK_ADS", false),
		},
		Capture: CaptureConfig{
			NavigationTimeout: envDurationOr("PRICELENS_NAV_TIMEOUT", 9*time.Second),
			OperationTimeout:  envDurationOr("PRICELENS_OP_TIMEOUT", 12*time.Second),
			RetryDelay:        envDurationOr("PRICELENS_RETRY_DELAY", 250*time.Millisecond),
			PricingPath:       envOr("PRICELENS_PRICING_PATH", "/pricing"),
			BodyPreviewChars:  envIntOr("PRICELENS_BODY_PREVIEW", 5000),
		},
		Runs: RunsConfig{
			DomainDelay: envDurationOr("PRICELENS_DOMAIN_DELAY", 350*time.Millisecond),
			TTL:         envDurationOr("PRICELENS_RUN_TTL", 20*time.Minute),
			MaxDomains:  envIntOr("PRICELENS_MAX_DOMAINS", 10),
		},
		Analytics: AnalyticsConfig{
			Path: envOr("PRICELENS_ANALYTICS_PATH", "data/analytics.ndjson"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("PRICELENS_AUTH_ENABLED", false),
			APIKeys: envSliceOr("PRICELENS_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("PRICELENS_RATE_RPS", 5.0),
			Burst:             envIntOr("PRICELENS_RATE_BURST", 10),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("PRICELENS_WEBHOOK_URL"),
			Secret: os.Getenv("PRICELENS_WEBHOOK_SECRET"),
		},
		Log: LogConfig{
			Level:  envOr("PRICELENS_LOG_LEVEL", "info"),
			Format: envOr("PRICELENS_LOG_FORMAT", "json"),
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
