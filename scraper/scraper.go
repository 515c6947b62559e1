package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/use-agent/pricelens/capture"
	"github.com/use-agent/pricelens/config"
	"github.com/use-agent/pricelens/models"
)

// Launcher starts one headless Chromium per run. It implements capture.Launcher.
type Launcher struct {
	browserCfg config.BrowserConfig
	captureCfg config.CaptureConfig
}

// NewLauncher creates a Launcher from configuration.
func NewLauncher(browserCfg config.BrowserConfig, captureCfg config.CaptureConfig) *Launcher {
	return &Launcher{browserCfg: browserCfg, captureCfg: captureCfg}
}

// Launch starts a browser process and connects to it.
func (l *Launcher) Launch(ctx context.Context) (capture.Browser, error) {
	ln := launcher.New().
		Context(ctx).
		Headless(l.browserCfg.Headless).
		NoSandbox(l.browserCfg.NoSandbox)

	if l.browserCfg.BrowserBin != "" {
		ln = ln.Bin(l.browserCfg.BrowserBin)
	}
	if l.browserCfg.Proxy != "" {
		ln = ln.Proxy(l.browserCfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	ln.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	ln.Delete(flags.Flag("enable-automation"))
	ln.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	ln.Set(flags.Flag("disable-popup-blocking"))
	ln.Set(flags.Flag("disable-renderer-backgrounding"))
	ln.Set(flags.Flag("disable-background-timer-throttling"))
	ln.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	ln.Set(flags.Flag("disable-component-update"))
	ln.Set(flags.Flag("disable-default-apps"))
	ln.Set(flags.Flag("disable-dev-shm-usage"))
	ln.Set(flags.Flag("disable-extensions"))
	ln.Set(flags.Flag("hide-scrollbars"))
	ln.Set(flags.Flag("no-first-run"))

	controlURL, err := ln.Launch()
	if err != nil {
		return nil, models.NewCaptureError(models.ErrCodeUnknown, "failed to launch browser", err)
	}
	slog.Debug("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		ln.Kill()
		return nil, models.NewCaptureError(models.ErrCodeUnknown, "failed to connect to browser", err)
	}

	return &Browser{
		browser:    browser,
		launcher:   ln,
		browserCfg: l.browserCfg,
		navTimeout: l.captureCfg.NavigationTimeout,
		opTimeout:  l.captureCfg.OperationTimeout,
	}, nil
}

// Browser is a connected Chromium whose tabs each live in their own
// incognito browser context. It implements capture.Browser.
type Browser struct {
	browser    *rod.Browser
	launcher   *launcher.Launcher
	browserCfg config.BrowserConfig
	navTimeout time.Duration
	opTimeout  time.Duration
}

// Close closes the browser and waits for the process to exit.
// Call this when a run finishes to prevent zombie Chrome processes.
func (b *Browser) Close() error {
	err := b.browser.Close()
	b.launcher.Cleanup()
	slog.Debug("browser closed")
	return err
}
