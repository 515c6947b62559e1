package report

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/pricelens/models"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func successResult(t *testing.T, domain string) models.DomainResult {
	shots := models.Screenshots{}
	shots.Set(models.ProfileDesktop, models.FramingViewport, testPNG(t, 136, 76))
	shots.Set(models.ProfileDesktop, models.FramingFullPage, testPNG(t, 136, 400))
	shots.Set(models.ProfileMobile, models.FramingViewport, testPNG(t, 39, 84))
	shots.Set(models.ProfileMobile, models.FramingFullPage, testPNG(t, 39, 300))
	return models.DomainResult{
		Domain:         domain,
		Status:         models.ResultSuccess,
		TargetURL:      "https://" + domain + "/pricing",
		ResolvedURL:    models.StringPtr("https://" + domain + "/pricing"),
		PageTitle:      "Pricing",
		TimestampLocal: "2026-03-01 12:30:00 UTC",
		Screenshots:    shots,
	}
}

func errorResult(domain, code, msg string) models.DomainResult {
	return models.DomainResult{
		Domain:           domain,
		Status:           models.ResultError,
		ErrorCode:        models.StringPtr(code),
		ErrorMessage:     models.StringPtr(msg),
		TargetURL:        "http://" + domain + "/pricing",
		PageTitle:        domain,
		TimestampLocal:   "2026-03-01 12:30:00 UTC",
		HTTPFallbackUsed: true,
		Screenshots:      models.Screenshots{},
	}
}

func TestAssemble_OnePagePerResult(t *testing.T) {
	results := []models.DomainResult{
		successResult(t, "example-success.test"),
		errorResult("example-404.test", models.ErrCodeNotFound, "HTTP 404"),
		successResult(t, "bücher.example"),
	}

	doc, err := NewAssembler().Assemble(results)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(doc, []byte("%PDF-")))

	pages, err := PageCount(doc)
	require.NoError(t, err)
	assert.Equal(t, len(results), pages)
}

func TestAssemble_AllFailures(t *testing.T) {
	results := []models.DomainResult{
		errorResult("a.test", models.ErrCodeDNS, "navigation failed: net::ERR_NAME_NOT_RESOLVED"),
		errorResult("b.test", models.ErrCodeTimeout, "navigation timed out"),
	}
	doc, err := NewAssembler().Assemble(results)
	require.NoError(t, err)

	pages, err := PageCount(doc)
	require.NoError(t, err)
	assert.Equal(t, 2, pages)
}

func TestAssemble_BrokenImageUsesPlaceholder(t *testing.T) {
	r := successResult(t, "broken.test")
	r.Screenshots.Set(models.ProfileMobile, models.FramingFullPage, []byte("not a png"))
	delete(r.Screenshots, models.ShotKey{Profile: models.ProfileDesktop, Framing: models.FramingFullPage})

	doc, err := NewAssembler().Assemble([]models.DomainResult{r})
	require.NoError(t, err)

	pages, err := PageCount(doc)
	require.NoError(t, err)
	assert.Equal(t, 1, pages)
}

func TestAssemble_NoResults(t *testing.T) {
	_, err := NewAssembler().Assemble(nil)
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestPageCount_Garbage(t *testing.T) {
	_, err := PageCount([]byte("hello"))
	assert.Error(t, err)
}

func TestFit(t *testing.T) {
	w, h := fit(1366, 768, 267, 300)
	assert.InDelta(t, 267, w, 0.001)
	assert.InDelta(t, 768*267.0/1366, h, 0.001)

	w, h = fit(390, 4000, 267, 300)
	assert.InDelta(t, 300, h, 0.001)
	assert.InDelta(t, 390*300.0/4000, w, 0.001)

	w, h = fit(10, 10, 267, 300)
	assert.Equal(t, 10.0, w)
	assert.Equal(t, 10.0, h)
}

func TestClip(t *testing.T) {
	assert.Equal(t, "abc", clip("  abc ", 5))
	assert.Equal(t, "abcd…", clip("abcdefgh", 5))
}
