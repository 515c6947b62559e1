package capture

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/pricelens/models"
)

type fakeLauncher struct {
	browser *closingBrowser
	err     error
}

func (l *fakeLauncher) Launch(context.Context) (Browser, error) {
	if l.err != nil {
		return nil, l.err
	}
	return l.browser, nil
}

type closingBrowser struct {
	*fakeBrowser
	closes int
}

func (b *closingBrowser) Close() error {
	b.closes++
	return nil
}

func TestSessions_OpenCaptureClose(t *testing.T) {
	b := &closingBrowser{fakeBrowser: newFakeBrowser()}
	b.serve("https://example-success.test/pricing", okPage("Pricing"))

	s, err := NewSessions(&fakeLauncher{browser: b}, Options{}).Open(context.Background())
	require.NoError(t, err)

	r := s.CaptureDomain(context.Background(), "example-success.test", "UTC")
	assert.Equal(t, models.ResultSuccess, r.Status)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, b.closes)
}

func TestSessions_LaunchFailure(t *testing.T) {
	_, err := NewSessions(&fakeLauncher{err: errors.New("chrome not found")}, Options{}).Open(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "launch browser")
}
