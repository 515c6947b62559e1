package capture

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/pricelens/models"
)

var fixedNow = time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)

func newTestPipeline(b *fakeBrowser) *Pipeline {
	return NewPipeline(b, Options{
		Now: func() time.Time { return fixedNow },
	})
}

func okPage(title string) fakePage {
	return fakePage{status: 200, title: title, body: "Starter $10 / month. Pro $30 / month."}
}

func TestCaptureDomain_Success(t *testing.T) {
	b := newFakeBrowser()
	b.serve("https://example-success.test/pricing", okPage("Pricing | Example"))
	b.serveProfile("https://example-success.test/pricing", models.ProfileMobile, fakePage{
		status: 200, title: "Pricing (mobile)", body: "plans", finalURL: "https://m.example-success.test/pricing",
	})

	r := newTestPipeline(b).CaptureDomain(context.Background(), "example-success.test", "Europe/Berlin")

	require.Equal(t, models.ResultSuccess, r.Status)
	assert.Nil(t, r.ErrorCode)
	assert.Equal(t, "https://example-success.test/pricing", r.TargetURL)
	require.NotNil(t, r.ResolvedURL)
	assert.Equal(t, "https://m.example-success.test/pricing", *r.ResolvedURL)
	assert.Equal(t, "https://example-success.test/pricing", r.ResolvedURLs[models.ProfileDesktop])
	assert.Equal(t, "Pricing | Example", r.PageTitle)
	assert.False(t, r.HTTPFallbackUsed)
	assert.Equal(t, "2026-03-01 13:30:00 CET", r.TimestampLocal)

	for _, p := range models.Profiles {
		for _, f := range models.Framings {
			assert.Equal(t, string(p)+"/"+string(f), string(r.Screenshots.Get(p, f)))
		}
	}
	assert.Equal(t, 2, b.opened)
	assert.Equal(t, b.opened, b.closed)
}

func TestCaptureDomain_EmbeddedRecaptchaIsNotBlocked(t *testing.T) {
	b := newFakeBrowser()
	b.serve("https://forms.test/pricing", fakePage{
		status: 200,
		title:  "Pricing",
		body:   "Pricing Starter $10 Contact sales",
		html: `<html><body><h1>Pricing</h1><form action="/contact">` +
			`<div class="g-recaptcha" data-sitekey="abc"></div></form></body></html>`,
	})

	r := newTestPipeline(b).CaptureDomain(context.Background(), "forms.test", "UTC")

	require.Equal(t, models.ResultSuccess, r.Status)
	assert.Nil(t, r.ErrorCode)
	assert.False(t, r.HTTPFallbackUsed)
}

func TestCaptureDomain_NotFoundOnBothSchemes(t *testing.T) {
	b := newFakeBrowser()
	b.serve("https://example-404.test/pricing", fakePage{status: 404})
	b.serve("http://example-404.test/pricing", fakePage{status: 404})

	r := newTestPipeline(b).CaptureDomain(context.Background(), "example-404.test", "UTC")

	require.Equal(t, models.ResultError, r.Status)
	assert.Equal(t, models.ErrCodeNotFound, r.Code())
	assert.Equal(t, "HTTP 404", r.Message())
	assert.True(t, r.HTTPFallbackUsed)
	assert.Equal(t, "http://example-404.test/pricing", r.TargetURL)
	assert.Nil(t, r.ResolvedURL)
	assert.Equal(t, "example-404.test", r.PageTitle)
	assert.Nil(t, r.Screenshots.Get(models.ProfileDesktop, models.FramingViewport))
	assert.Equal(t, b.opened, b.closed)
}

func TestCaptureDomain_FallbackScheme(t *testing.T) {
	b := newFakeBrowser()
	b.serve("https://legacy.test/pricing", fakePage{navErr: errors.New("navigation failed: net::ERR_SSL_PROTOCOL_ERROR")})
	b.serve("http://legacy.test/pricing", okPage("Legacy pricing"))

	r := newTestPipeline(b).CaptureDomain(context.Background(), "legacy.test", "")

	require.Equal(t, models.ResultSuccess, r.Status)
	assert.True(t, r.HTTPFallbackUsed)
	assert.Equal(t, "http://legacy.test/pricing", r.TargetURL)
	assert.Equal(t, "2026-03-01 12:30:00 UTC", r.TimestampLocal)
}

func TestCaptureDomain_FailureClassification(t *testing.T) {
	tests := []struct {
		name string
		page fakePage
		want string
	}{
		{"client error", fakePage{status: 403}, models.ErrCodeNotFound},
		{"server error", fakePage{status: 503}, models.ErrCodeUnknown},
		{"no response", fakePage{status: 0}, models.ErrCodeUnknown},
		{"navigation timeout", fakePage{navErr: context.DeadlineExceeded}, models.ErrCodeTimeout},
		{"dns", fakePage{navErr: errors.New("navigation failed: net::ERR_NAME_NOT_RESOLVED")}, models.ErrCodeDNS},
		{"blocked title", fakePage{status: 200, title: "Just a moment... | Cloudflare"}, models.ErrCodeBlocked},
		{"blocked body", fakePage{status: 200, title: "Pricing", body: "Please verify you are human"}, models.ErrCodeBlocked},
		{"challenge markup", fakePage{status: 200, title: "One moment", body: "Loading",
			html: `<html><body><div id="cf-challenge-running"></div></body></html>`}, models.ErrCodeBlocked},
		{"screenshot failure", fakePage{status: 200, title: "Pricing", shotErr: errors.New("Screenshot timed out")}, models.ErrCodeTimeout},
		{"panic", fakePage{status: 200, title: "Pricing", panicMsg: "boom"}, models.ErrCodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newFakeBrowser()
			b.serve("https://site.test/pricing", tt.page)
			b.serve("http://site.test/pricing", tt.page)

			r := newTestPipeline(b).CaptureDomain(context.Background(), "site.test", "UTC")

			assert.Equal(t, models.ResultError, r.Status)
			assert.Equal(t, tt.want, r.Code())
			assert.NotEmpty(t, r.Message())
			assert.Equal(t, b.opened, b.closed, "every tab must be closed")
		})
	}
}

func TestCaptureDomain_PartialProfileFailureFailsCandidate(t *testing.T) {
	b := newFakeBrowser()
	for _, u := range []string{"https://half.test/pricing", "http://half.test/pricing"} {
		b.serve(u, okPage("Pricing"))
		b.serveProfile(u, models.ProfileMobile, fakePage{status: 500})
	}

	r := newTestPipeline(b).CaptureDomain(context.Background(), "half.test", "UTC")

	require.Equal(t, models.ResultError, r.Status)
	assert.Equal(t, models.ErrCodeUnknown, r.Code())
	assert.Equal(t, "HTTP 500", r.Message())
	assert.Equal(t, []string{
		"https://half.test/pricing|desktop",
		"https://half.test/pricing|mobile",
		"http://half.test/pricing|desktop",
		"http://half.test/pricing|mobile",
	}, b.visits)
}

func TestCaptureDomain_BodyTextFallsBackToHTML(t *testing.T) {
	b := newFakeBrowser()
	page := fakePage{
		status:  200,
		title:   "Pricing",
		bodyErr: errors.New("eval failed"),
		html:    `<html><body><script>var x="captcha";</script><p>Verify you are human</p></body></html>`,
	}
	b.serve("https://site.test/pricing", page)
	b.serve("http://site.test/pricing", page)

	r := newTestPipeline(b).CaptureDomain(context.Background(), "site.test", "UTC")
	assert.Equal(t, models.ErrCodeBlocked, r.Code())
}

func TestCaptureDomain_TabOpenFailure(t *testing.T) {
	b := newFakeBrowser()
	b.newTabErr = errors.New("browser disconnected")

	r := newTestPipeline(b).CaptureDomain(context.Background(), "site.test", "UTC")

	assert.Equal(t, models.ResultError, r.Status)
	assert.Equal(t, models.ErrCodeUnknown, r.Code())
	assert.Contains(t, r.Message(), "open desktop tab")
}

func TestCandidates(t *testing.T) {
	p := NewPipeline(newFakeBrowser(), Options{PricingPath: "/plans"})
	assert.Equal(t, []string{"https://a.test/plans", "http://a.test/plans"}, p.Candidates("a.test"))
}
