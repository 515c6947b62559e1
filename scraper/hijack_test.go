package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAdDomain(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"doubleclick.net", true},
		{"stats.g.doubleclick.net", true},
		{"PAGEAD2.GoogleSyndication.com", true},
		{"www.google-analytics.com.", true},
		{"example.com", false},
		{"notdoubleclick.net", false},
		{"net", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, isAdDomain(tt.host), tt.host)
	}
}

func TestToHeadersMap(t *testing.T) {
	m := toHeadersMap(map[string]string{"Referer": "https://www.google.com/search?q=a.test"})
	assert.Len(t, m, 1)
	assert.Equal(t, "https://www.google.com/search?q=a.test", m["Referer"].Str())
}

func TestRefererHeaders(t *testing.T) {
	assert.Equal(t,
		map[string]string{"Referer": "https://www.google.com/search?q=stripe.com"},
		refererHeaders("https://stripe.com/pricing"))
	assert.Nil(t, refererHeaders("not a url"))
	assert.Nil(t, refererHeaders("::"))
}

func TestSetHeaders_NothingToSend(t *testing.T) {
	// No CDP call is made, so a tab without a page is fine.
	assert.NoError(t, (&Tab{}).setHeaders(nil))
}
