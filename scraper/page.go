package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/pricelens/capture"
	"github.com/use-agent/pricelens/models"
	"github.com/ysmood/gson"
)

const acceptLanguage = "en-US,en;q=0.9"

// NewTab opens a page in a fresh incognito context configured for profile.
//
// Setup order (numbered steps match the inline comments):
//
//  1. Incognito context  – no cookies or storage shared with other tabs
//  2. Device emulation   – viewport, user agent, touch
//  3. Stealth injection  – must precede the first navigation
//  4. Hijack mount       – ad blocking, also before navigation
func (b *Browser) NewTab(ctx context.Context, profile capture.DeviceProfile) (capture.Tab, error) {
	// ── 1. Incognito context ──────────────────────────────────────────
	incognito, err := b.browser.Incognito()
	if err != nil {
		return nil, models.NewCaptureError(models.ErrCodeUnknown, "failed to create browser context", err)
	}
	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = incognito.Close()
		return nil, models.NewCaptureError(models.ErrCodeUnknown, "failed to create page", err)
	}

	t := &Tab{
		ctx:        ctx,
		incognito:  incognito,
		page:       page,
		navTimeout: b.navTimeout,
		opTimeout:  b.opTimeout,
	}

	// ── 2. Device emulation ───────────────────────────────────────────
	if err := t.emulate(profile); err != nil {
		_ = t.Close()
		return nil, models.NewCaptureError(models.ErrCodeUnknown, "failed to emulate "+string(profile.Name)+" device", err)
	}

	// ── 3. Stealth injection ──────────────────────────────────────────
	if b.browserCfg.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"profile", profile.Name, "error", evalErr)
		}
	}

	// ── 4. Hijack mount ───────────────────────────────────────────────
	t.router = setupHijack(page, b.browserCfg.BlockAds)

	return t, nil
}

// Tab is a rod page bound to its own incognito browser context.
// It implements capture.Tab.
type Tab struct {
	ctx        context.Context
	incognito  *rod.Browser
	page       *rod.Page
	router     *rod.HijackRouter
	navTimeout time.Duration
	opTimeout  time.Duration
}

func (t *Tab) emulate(profile capture.DeviceProfile) error {
	if err := t.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             profile.Width,
		Height:            profile.Height,
		DeviceScaleFactor: 1,
		Mobile:            profile.Mobile,
	}); err != nil {
		return err
	}
	if err := t.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      profile.UserAgent,
		AcceptLanguage: acceptLanguage,
	}); err != nil {
		return err
	}
	if profile.Touch {
		maxTouchPoints := 5
		if err := (proto.EmulationSetTouchEmulationEnabled{
			Enabled:        true,
			MaxTouchPoints: &maxTouchPoints,
		}).Call(t.page); err != nil {
			return err
		}
	}
	return nil
}

// Navigate loads target and waits for DOMContentLoaded. The returned status
// comes from the Navigation Timing entry of the main document.
func (t *Tab) Navigate(target string) (int, error) {
	if err := t.setHeaders(refererHeaders(target)); err != nil {
		return 0, navigationError(fmt.Errorf("set request headers: %w", err))
	}

	nav := t.page.Context(t.ctx).Timeout(t.navTimeout)
	defer nav.CancelTimeout()

	// The lifecycle listener must exist before Navigate or the event is missed.
	wait := nav.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := nav.Navigate(target); err != nil {
		return 0, navigationError(err)
	}
	wait()
	if err := nav.GetContext().Err(); err != nil {
		return 0, navigationError(err)
	}

	res, err := nav.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch(e) {}
		return 0;
	}`)
	if err != nil {
		return 0, navigationError(err)
	}
	return res.Value.Int(), nil
}

func (t *Tab) Title() (string, error) {
	return t.evalString(`() => document.title || ""`)
}

func (t *Tab) URL() (string, error) {
	return t.evalString(`() => window.location.href`)
}

func (t *Tab) BodyText(limit int) (string, error) {
	p := t.op()
	defer p.CancelTimeout()
	res, err := p.Eval(`(n) => (document.body ? document.body.innerText || "" : "").slice(0, n)`, limit)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

func (t *Tab) HTML() (string, error) {
	p := t.op()
	defer p.CancelTimeout()
	return p.HTML()
}

func (t *Tab) Screenshot(framing models.Framing) ([]byte, error) {
	p := t.op()
	defer p.CancelTimeout()
	return p.Screenshot(framing == models.FramingFullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
}

// Close stops the hijack router, closes the page and disposes the incognito
// context. It uses the unbound page so it succeeds after the run context
// has expired.
func (t *Tab) Close() error {
	var errs []error
	if t.router != nil {
		if err := t.router.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := t.page.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := t.incognito.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// op binds the run context and the operation timeout. Callers must
// CancelTimeout the returned page.
func (t *Tab) op() *rod.Page {
	return t.page.Context(t.ctx).Timeout(t.opTimeout)
}

// setHeaders installs extra request headers, bounded by the operation timeout.
func (t *Tab) setHeaders(headers map[string]string) error {
	if len(headers) == 0 {
		return nil
	}
	p := t.op()
	defer p.CancelTimeout()
	return proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(headers)}.Call(p)
}

// refererHeaders makes the visit look like it came from a search result.
func refererHeaders(target string) map[string]string {
	u, err := url.Parse(target)
	if err != nil || u.Hostname() == "" {
		return nil
	}
	return map[string]string{"Referer": "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname())}
}

func (t *Tab) evalString(js string) (string, error) {
	p := t.op()
	defer p.CancelTimeout()
	res, err := p.Eval(js)
	if err != nil {
		return "", err
	}
	return res.Value.Str(), nil
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// navigationError maps deadline expiry to TIMEOUT and leaves everything else
// to the capture classifier.
func navigationError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewCaptureError(models.ErrCodeTimeout, "navigation timed out", err)
	}
	return err
}
