package capture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/pricelens/models"
)

// Options tunes the capture pipeline.
type Options struct {
	// PricingPath is appended to every candidate origin. Default: "/pricing".
	PricingPath string

	// RetryDelay is the pause before the fallback candidate.
	RetryDelay time.Duration

	// BodyPreviewChars bounds the text the blocking detector inspects. Default: 5000.
	BodyPreviewChars int

	// Now is the clock used for result timestamps. Default: time.Now.
	Now func() time.Time
}

func (o *Options) defaults() {
	if o.PricingPath == "" {
		o.PricingPath = "/pricing"
	}
	if o.RetryDelay < 0 {
		o.RetryDelay = 0
	}
	if o.BodyPreviewChars <= 0 {
		o.BodyPreviewChars = 5000
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// outcome is the tagged result of one candidate attempt: either success or
// failure, never both.
type outcome interface{ isOutcome() }

type success struct {
	resolvedURLs map[models.Profile]string
	titles       map[models.Profile]string
	shots        models.Screenshots
}

type failure struct {
	code    string
	message string
}

func (success) isOutcome() {}
func (failure) isOutcome() {}

// profileCapture is what one device profile yields for a loaded page.
type profileCapture struct {
	resolvedURL string
	title       string
	viewport    []byte
	fullPage    []byte
}

// Pipeline captures the pricing page of a domain with every device profile.
// It is not safe for concurrent use by multiple goroutines sharing a run;
// each run drives its own pipeline sequentially.
type Pipeline struct {
	browser  Browser
	opts     Options
	detector *Detector
}

// NewPipeline creates a Pipeline that opens its tabs in browser.
func NewPipeline(browser Browser, opts Options) *Pipeline {
	opts.defaults()
	return &Pipeline{
		browser:  browser,
		opts:     opts,
		detector: NewDetector(opts.BodyPreviewChars),
	}
}

// Candidates returns the URLs tried for domain, in priority order.
func (p *Pipeline) Candidates(domain string) []string {
	return []string{
		"https://" + domain + p.opts.PricingPath,
		"http://" + domain + p.opts.PricingPath,
	}
}

// CaptureDomain captures domain and returns its result record. It never
// fails: every problem is reported through the record's status and code.
func (p *Pipeline) CaptureDomain(ctx context.Context, domain, timeZone string) models.DomainResult {
	candidates := p.Candidates(domain)
	log := slog.With("domain", domain)

	var last failure
	attempted := 0
	for i, target := range candidates {
		if i > 0 {
			if err := sleep(ctx, p.opts.RetryDelay); err != nil {
				last = failure{code: Classify(err), message: failureMessage(err)}
				break
			}
		}
		attempted = i

		switch o := p.attempt(ctx, target).(type) {
		case success:
			log.Info("domain captured", "url", target, "fallback", i > 0)
			return p.successResult(domain, target, timeZone, i > 0, o)
		case failure:
			last = o
			log.Info("candidate failed", "url", target, "code", o.code, "error", o.message)
		}
	}

	return models.DomainResult{
		Domain:           domain,
		Status:           models.ResultError,
		ErrorCode:        models.StringPtr(last.code),
		ErrorMessage:     models.StringPtr(last.message),
		TargetURL:        candidates[attempted],
		PageTitle:        domain,
		TimestampLocal:   FormatLocal(p.opts.Now(), timeZone),
		HTTPFallbackUsed: attempted > 0,
		Screenshots:      models.Screenshots{},
	}
}

func (p *Pipeline) successResult(domain, target, timeZone string, fallback bool, s success) models.DomainResult {
	desktopURL := s.resolvedURLs[models.ProfileDesktop]
	mobileURL := s.resolvedURLs[models.ProfileMobile]
	if desktopURL != "" && mobileURL != "" && desktopURL != mobileURL {
		// Mobile wins; both stay visible through ResolvedURLs.
		slog.Warn("device profiles resolved to different URLs",
			"domain", domain, "desktop", desktopURL, "mobile", mobileURL)
	}

	resolved := firstNonEmpty(mobileURL, desktopURL, target)
	title := firstNonEmpty(s.titles[models.ProfileDesktop], s.titles[models.ProfileMobile], domain)

	return models.DomainResult{
		Domain:           domain,
		Status:           models.ResultSuccess,
		TargetURL:        target,
		ResolvedURL:      models.StringPtr(resolved),
		ResolvedURLs:     s.resolvedURLs,
		PageTitle:        title,
		TimestampLocal:   FormatLocal(p.opts.Now(), timeZone),
		HTTPFallbackUsed: fallback,
		Screenshots:      s.shots,
	}
}

// attempt captures target with every device profile. A failure of any
// profile fails the whole candidate.
func (p *Pipeline) attempt(ctx context.Context, target string) outcome {
	s := success{
		resolvedURLs: make(map[models.Profile]string, len(DeviceProfiles)),
		titles:       make(map[models.Profile]string, len(DeviceProfiles)),
		shots:        models.Screenshots{},
	}
	for _, profile := range DeviceProfiles {
		pc, err := p.captureProfile(ctx, target, profile)
		if err != nil {
			return failure{code: Classify(err), message: failureMessage(err)}
		}
		s.resolvedURLs[profile.Name] = pc.resolvedURL
		s.titles[profile.Name] = pc.title
		s.shots.Set(profile.Name, models.FramingViewport, pc.viewport)
		s.shots.Set(profile.Name, models.FramingFullPage, pc.fullPage)
	}
	return s
}

// captureProfile loads target in a fresh isolated tab and takes both framings.
//
//  1. Open tab          – isolated browsing context for this profile only
//  2. DEFER: close      – on every exit path, panics included
//  3. Navigate          – bounded by the navigation timeout
//  4. Status check      – 4xx / 5xx / no response
//  5. Blocking check    – title, body text and challenge markup
//  6. Screenshots       – viewport, then full page
func (p *Pipeline) captureProfile(ctx context.Context, target string, profile DeviceProfile) (pc profileCapture, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = models.NewCaptureError(models.ErrCodeUnknown, fmt.Sprintf("capture panicked: %v", r), nil)
		}
	}()

	// ── 1. Open tab ───────────────────────────────────────────────────
	tab, err := p.browser.NewTab(ctx, profile)
	if err != nil {
		return pc, fmt.Errorf("open %s tab: %w", profile.Name, err)
	}

	// ── 2. Guaranteed cleanup ─────────────────────────────────────────
	defer func() {
		if closeErr := tab.Close(); closeErr != nil {
			slog.Warn("cleanup: failed to close tab",
				"profile", profile.Name, "url", target, "error", closeErr)
		}
	}()

	// ── 3. Navigate ───────────────────────────────────────────────────
	status, err := tab.Navigate(target)
	if err != nil {
		return pc, err
	}

	// ── 4. Status check ───────────────────────────────────────────────
	if err := statusError(status); err != nil {
		return pc, err
	}

	// ── 5. Blocking check ─────────────────────────────────────────────
	title, err := tab.Title()
	if err != nil {
		return pc, err
	}
	rawHTML, htmlErr := tab.HTML()
	if htmlErr != nil {
		slog.Debug("page HTML unavailable for challenge check", "url", target, "error", htmlErr)
		rawHTML = ""
	}
	body, err := tab.BodyText(p.opts.BodyPreviewChars)
	if err != nil {
		if rawHTML == "" {
			return pc, err
		}
		body = VisibleText(rawHTML, p.opts.BodyPreviewChars)
	}
	if blocked, signal := p.detector.Blocked(title, body, rawHTML); blocked {
		return pc, models.NewCaptureError(models.ErrCodeBlocked,
			fmt.Sprintf("anti-bot signal detected (%s)", signal), nil)
	}

	// ── 6. Screenshots ────────────────────────────────────────────────
	if pc.viewport, err = tab.Screenshot(models.FramingViewport); err != nil {
		return pc, err
	}
	if pc.fullPage, err = tab.Screenshot(models.FramingFullPage); err != nil {
		return pc, err
	}

	pc.title = title
	if pc.resolvedURL, err = tab.URL(); err != nil || pc.resolvedURL == "" {
		pc.resolvedURL = target
		err = nil
	}
	return pc, nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
