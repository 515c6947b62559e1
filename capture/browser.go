package capture

import (
	"context"

	"github.com/use-agent/pricelens/models"
)

// DeviceProfile is a fixed viewport and agent configuration.
type DeviceProfile struct {
	Name      models.Profile
	Width     int
	Height    int
	UserAgent string
	Mobile    bool
	Touch     bool
}

var (
	Desktop = DeviceProfile{
		Name:      models.ProfileDesktop,
		Width:     1366,
		Height:    768,
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	}
	Mobile = DeviceProfile{
		Name:      models.ProfileMobile,
		Width:     390,
		Height:    844,
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1",
		Mobile:    true,
		Touch:     true,
	}
)

// DeviceProfiles lists the profiles every candidate URL is captured with, in order.
var DeviceProfiles = []DeviceProfile{Desktop, Mobile}

// Tab is a single page living in its own isolated browsing context.
// Navigation is bounded by the engine's navigation timeout and every other
// call by its operation timeout.
type Tab interface {
	// Navigate loads url and returns the HTTP status of the main document,
	// or 0 when no response was received.
	Navigate(url string) (status int, err error)
	Title() (string, error)
	// BodyText returns at most limit characters of the visible body text.
	BodyText(limit int) (string, error)
	HTML() (string, error)
	URL() (string, error)
	Screenshot(framing models.Framing) ([]byte, error)
	// Close destroys the browsing context. It must be safe to call after
	// the tab's context has expired.
	Close() error
}

// Browser opens isolated tabs.
type Browser interface {
	NewTab(ctx context.Context, profile DeviceProfile) (Tab, error)
	Close() error
}

// Launcher starts a Browser. A launch failure is fatal for the run that
// requested it.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}
