package capture

import (
	"context"
	"errors"
	"sync"

	"github.com/use-agent/pricelens/models"
)

// fakePage describes how a fake tab behaves once navigated to a URL.
type fakePage struct {
	status   int
	navErr   error
	title    string
	body     string
	bodyErr  error
	html     string
	finalURL string
	shotErr  error
	panicMsg string
}

// fakeBrowser serves fakePages keyed by "url" or "url|profile".
type fakeBrowser struct {
	mu        sync.Mutex
	pages     map[string]fakePage
	newTabErr error
	opened    int
	closed    int
	visits    []string
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{pages: make(map[string]fakePage)}
}

func (b *fakeBrowser) serve(url string, p fakePage) {
	b.pages[url] = p
}

func (b *fakeBrowser) serveProfile(url string, profile models.Profile, p fakePage) {
	b.pages[url+"|"+string(profile)] = p
}

func (b *fakeBrowser) lookup(url string, profile models.Profile) (fakePage, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.pages[url+"|"+string(profile)]; ok {
		return p, true
	}
	p, ok := b.pages[url]
	return p, ok
}

func (b *fakeBrowser) NewTab(_ context.Context, profile DeviceProfile) (Tab, error) {
	if b.newTabErr != nil {
		return nil, b.newTabErr
	}
	b.mu.Lock()
	b.opened++
	b.mu.Unlock()
	return &fakeTab{browser: b, profile: profile.Name}, nil
}

func (b *fakeBrowser) Close() error { return nil }

type fakeTab struct {
	browser *fakeBrowser
	profile models.Profile
	page    fakePage
	url     string
}

func (t *fakeTab) Navigate(url string) (int, error) {
	t.browser.mu.Lock()
	t.browser.visits = append(t.browser.visits, url+"|"+string(t.profile))
	t.browser.mu.Unlock()

	p, ok := t.browser.lookup(url, t.profile)
	if !ok {
		return 0, errors.New("navigation failed: net::ERR_NAME_NOT_RESOLVED")
	}
	t.page = p
	t.url = url
	if p.navErr != nil {
		return 0, p.navErr
	}
	return p.status, nil
}

func (t *fakeTab) Title() (string, error) { return t.page.title, nil }

func (t *fakeTab) BodyText(limit int) (string, error) {
	if t.page.bodyErr != nil {
		return "", t.page.bodyErr
	}
	return truncate(t.page.body, limit), nil
}

func (t *fakeTab) HTML() (string, error) { return t.page.html, nil }

func (t *fakeTab) URL() (string, error) {
	if t.page.finalURL != "" {
		return t.page.finalURL, nil
	}
	return t.url, nil
}

func (t *fakeTab) Screenshot(framing models.Framing) ([]byte, error) {
	if t.page.panicMsg != "" {
		panic(t.page.panicMsg)
	}
	if t.page.shotErr != nil {
		return nil, t.page.shotErr
	}
	return []byte(string(t.profile) + "/" + string(framing)), nil
}

func (t *fakeTab) Close() error {
	t.browser.mu.Lock()
	t.browser.closed++
	t.browser.mu.Unlock()
	return nil
}
