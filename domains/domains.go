// Package domains turns raw user input into the validated, deduplicated
// domain list a run is created from.
package domains

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/idna"
)

// MaxUniqueDomains is the default cap on unique domains per run.
const MaxUniqueDomains = 10

var (
	schemePrefix = regexp.MustCompile(`^https?://`)
	portSuffix   = regexp.MustCompile(`:\d+$`)
	hostname     = regexp.MustCompile(`^(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,63}$`)
	userIDChars  = regexp.MustCompile(`^[A-Za-z0-9._:@-]+$`)
)

// Parsed is the result of tokenizing a raw comma-separated domain string.
type Parsed struct {
	// Unique holds valid domains in first-seen order, without duplicates.
	Unique []string

	// Invalid holds the trimmed tokens that are not valid domains.
	Invalid []string

	// InputCount is the number of non-blank tokens submitted.
	InputCount int
}

// Parse splits raw on commas, normalises every token and sorts it into
// valid unique domains or invalid tokens.
func Parse(raw string) Parsed {
	parts := strings.Split(raw, ",")
	seen := make(map[string]struct{}, len(parts))
	out := Parsed{
		Unique:  []string{},
		Invalid: []string{},
	}

	for _, part := range parts {
		if strings.TrimSpace(part) != "" {
			out.InputCount++
		}
		normalized := Normalize(part)
		if normalized == "" {
			continue
		}
		if !Valid(normalized) {
			out.Invalid = append(out.Invalid, strings.TrimSpace(part))
			continue
		}
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		out.Unique = append(out.Unique, normalized)
	}
	return out
}

// Normalize lower-cases a token and strips scheme, path and port.
// Internationalised names are converted to their ASCII form; tokens that
// cannot be converted are returned lower-cased so validation rejects them.
func Normalize(token string) string {
	value := strings.ToLower(strings.TrimSpace(token))
	if value == "" {
		return ""
	}
	value = schemePrefix.ReplaceAllString(value, "")
	if i := strings.IndexByte(value, '/'); i >= 0 {
		value = value[:i]
	}
	value = portSuffix.ReplaceAllString(value, "")
	if value == "" {
		return ""
	}
	if ascii, err := idna.Lookup.ToASCII(value); err == nil {
		return ascii
	}
	return value
}

// Valid reports whether domain is a syntactically valid hostname with a
// public-looking TLD.
func Valid(domain string) bool {
	if domain == "" || len(domain) > 253 {
		return false
	}
	return hostname.MatchString(domain)
}

// ValidateSelection checks the unique domain count against max.
func ValidateSelection(unique []string, max int) error {
	if len(unique) == 0 {
		return fmt.Errorf("no valid domains found; enter domains separated by commas, for example: stripe.com, notion.so")
	}
	if len(unique) > max {
		return fmt.Errorf("too many unique domains: %d, maximum %d", len(unique), max)
	}
	return nil
}

// SanitizeUserID trims value and returns it when it is 1–128 characters of
// [A-Za-z0-9._:@-]. ok is false otherwise.
func SanitizeUserID(value string) (userID string, ok bool) {
	userID = strings.TrimSpace(value)
	if userID == "" || len(userID) > 128 {
		return "", false
	}
	if !userIDChars.MatchString(userID) {
		return "", false
	}
	return userID, true
}
