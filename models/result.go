package models

// Per-domain capture outcome.
const (
	ResultSuccess = "SUCCESS"
	ResultError   = "ERROR"
)

// Profile identifies a device profile used for a capture.
type Profile string

const (
	ProfileDesktop Profile = "desktop"
	ProfileMobile  Profile = "mobile"
)

// Profiles lists device profiles in capture order.
var Profiles = []Profile{ProfileDesktop, ProfileMobile}

// Framing selects what part of a loaded page an image covers.
type Framing string

const (
	FramingViewport Framing = "viewport"
	FramingFullPage Framing = "full_page"
)

// Framings lists framings in capture order.
var Framings = []Framing{FramingViewport, FramingFullPage}

// ShotKey addresses one image artifact of a domain capture.
type ShotKey struct {
	Profile Profile
	Framing Framing
}

// Screenshots holds the PNG images of one domain, keyed by profile and framing.
// A missing key means the image was not captured.
type Screenshots map[ShotKey][]byte

// Get returns the image for the profile and framing, or nil.
func (s Screenshots) Get(p Profile, f Framing) []byte {
	if s == nil {
		return nil
	}
	return s[ShotKey{Profile: p, Framing: f}]
}

// Set stores an image for the profile and framing.
func (s Screenshots) Set(p Profile, f Framing, png []byte) {
	s[ShotKey{Profile: p, Framing: f}] = png
}

// DomainResult is the outcome of capturing one domain. Exactly one of
// {Status=SUCCESS with ResolvedURL, Status=ERROR with ErrorCode} holds.
// Results are not modified after the pipeline returns them.
type DomainResult struct {
	Domain           string             `json:"domain"`
	Status           string             `json:"status"`
	ErrorCode        *string            `json:"error_code"`
	ErrorMessage     *string            `json:"error_message"`
	TargetURL        string             `json:"target_url"`
	ResolvedURL      *string            `json:"resolved_url"`
	ResolvedURLs     map[Profile]string `json:"resolved_urls,omitempty"`
	PageTitle        string             `json:"page_title"`
	TimestampLocal   string             `json:"timestamp_local"`
	HTTPFallbackUsed bool               `json:"http_fallback_used"`

	// Screenshots are carried in memory only, for report assembly.
	Screenshots Screenshots `json:"-"`
}

// Succeeded reports whether the domain was captured.
func (r *DomainResult) Succeeded() bool {
	return r.Status == ResultSuccess
}

// Code returns the error classification, or "" for a successful capture.
func (r *DomainResult) Code() string {
	if r.ErrorCode == nil {
		return ""
	}
	return *r.ErrorCode
}

// Message returns the error message, or "".
func (r *DomainResult) Message() string {
	if r.ErrorMessage == nil {
		return ""
	}
	return *r.ErrorMessage
}

// DisplayURL is the resolved URL when known, otherwise the target URL.
func (r *DomainResult) DisplayURL() string {
	if r.ResolvedURL != nil && *r.ResolvedURL != "" {
		return *r.ResolvedURL
	}
	return r.TargetURL
}

// Reduced returns a copy without image bytes, suitable for status
// projections and analytics events.
func (r DomainResult) Reduced() DomainResult {
	r.Screenshots = nil
	if r.ResolvedURLs != nil {
		urls := make(map[Profile]string, len(r.ResolvedURLs))
		for k, v := range r.ResolvedURLs {
			urls[k] = v
		}
		r.ResolvedURLs = urls
	}
	return r
}

// ReduceResults maps Reduced over a result list.
func ReduceResults(results []DomainResult) []DomainResult {
	out := make([]DomainResult, len(results))
	for i, r := range results {
		out[i] = r.Reduced()
	}
	return out
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
