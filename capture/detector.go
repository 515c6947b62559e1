package capture

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// blockedPhrases are anti-automation signals looked for in the page title
// and the visible body text.
var blockedPhrases = regexp.MustCompile(`(?i)(captcha|verify you are human|cloudflare|access denied|bot detection|blocked request|are you a robot|unusual traffic|checking your browser)`)

// challengePage matches markup that only full-page interstitials carry.
// Embedded form widgets such as reCAPTCHA are not a block.
var challengePage = cascadia.MustCompile(`#challenge-form, #cf-challenge-running`)

// markupLimit bounds how much page HTML the challenge check parses.
const markupLimit = 64 << 10

// Detector decides whether a loaded page is an anti-automation interstitial
// rather than the page that was asked for.
type Detector struct {
	previewChars int
}

// NewDetector creates a Detector inspecting at most previewChars characters
// of body text.
func NewDetector(previewChars int) *Detector {
	if previewChars <= 0 {
		previewChars = 5000
	}
	return &Detector{previewChars: previewChars}
}

// Blocked reports whether the page looks blocked. The returned signal names
// what matched.
func (d *Detector) Blocked(title, bodyText, rawHTML string) (blocked bool, signal string) {
	probe := title + "\n" + truncate(bodyText, d.previewChars)
	if m := blockedPhrases.FindString(probe); m != "" {
		return true, strings.ToLower(m)
	}
	if rawHTML == "" {
		return false, ""
	}

	if len(rawHTML) > markupLimit {
		rawHTML = rawHTML[:markupLimit]
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil || len(doc.Nodes) == 0 {
		return false, ""
	}
	if cascadia.Query(doc.Nodes[0], challengePage) != nil {
		return true, "challenge page"
	}
	return false, ""
}

// VisibleText extracts up to limit characters of human-readable body text
// from rawHTML. It is used when the live page cannot report its innerText.
func VisibleText(rawHTML string, limit int) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript, template").Remove()
	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	return truncate(text, limit)
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
