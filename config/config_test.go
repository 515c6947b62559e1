package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PRICELENS_PORT", "")
	t.Setenv("PORT", "")

	cfg := Load()
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.True(t, cfg.Browser.Headless)
	assert.True(t, cfg.Browser.Stealth)
	assert.Equal(t, 9*time.Second, cfg.Capture.NavigationTimeout)
	assert.Equal(t, 12*time.Second, cfg.Capture.OperationTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Capture.RetryDelay)
	assert.Equal(t, "/pricing", cfg.Capture.PricingPath)
	assert.Equal(t, 350*time.Millisecond, cfg.Runs.DomainDelay)
	assert.Equal(t, 20*time.Minute, cfg.Runs.TTL)
	assert.Equal(t, 10, cfg.Runs.MaxDomains)
	assert.False(t, cfg.Auth.Enabled)
	assert.Empty(t, cfg.Webhook.URL)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PRICELENS_PORT", "8081")
	t.Setenv("PRICELENS_HEADLESS", "false")
	t.Setenv("PRICELENS_NAV_TIMEOUT", "15s")
	t.Setenv("PRICELENS_RATE_RPS", "2.5")
	t.Setenv("PRICELENS_API_KEYS", " k1, ,k2 ")
	t.Setenv("PRICELENS_RUN_TTL", "1h")

	cfg := Load()
	assert.Equal(t, 8081, cfg.Server.Port)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 15*time.Second, cfg.Capture.NavigationTimeout)
	assert.InDelta(t, 2.5, cfg.RateLimit.RequestsPerSecond, 1e-9)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Auth.APIKeys)
	assert.Equal(t, time.Hour, cfg.Runs.TTL)
}

func TestLoad_PortFallsBackToPORT(t *testing.T) {
	t.Setenv("PRICELENS_PORT", "")
	t.Setenv("PORT", "9000")
	assert.Equal(t, 9000, Load().Server.Port)
}

func TestLoad_MalformedValuesUseDefaults(t *testing.T) {
	t.Setenv("PRICELENS_MAX_DOMAINS", "ten")
	t.Setenv("PRICELENS_STEALTH", "maybe")
	t.Setenv("PRICELENS_DOMAIN_DELAY", "fast")

	cfg := Load()
	assert.Equal(t, 10, cfg.Runs.MaxDomains)
	assert.True(t, cfg.Browser.Stealth)
	assert.Equal(t, 350*time.Millisecond, cfg.Runs.DomainDelay)
}
