package capture

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/use-agent/pricelens/models"
)

var (
	timeoutSignals = regexp.MustCompile(`timeout|timed_out|timed out|deadline exceeded`)
	dnsSignals     = regexp.MustCompile(`err_name_not_resolved|no such host|enotfound|\bdns\b`)
	blockedSignals = regexp.MustCompile(`access denied|forbidden|captcha|\bbot\b`)
)

// Classify maps an error raised while capturing a page to the failure
// taxonomy. Typed capture errors keep their own code.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	var ce *models.CaptureError
	if errors.As(err, &ce) {
		return ce.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.ErrCodeTimeout
	}

	text := strings.ToLower(err.Error())
	switch {
	case timeoutSignals.MatchString(text):
		return models.ErrCodeTimeout
	case dnsSignals.MatchString(text):
		return models.ErrCodeDNS
	case blockedSignals.MatchString(text):
		return models.ErrCodeBlocked
	default:
		return models.ErrCodeUnknown
	}
}

// statusError classifies the HTTP status of the main document.
// It returns nil when the page may be captured.
func statusError(status int) error {
	switch {
	case status == 0:
		return models.NewCaptureError(models.ErrCodeUnknown, "no response received for the page", nil)
	case status == 404, status >= 400 && status < 500:
		return models.NewCaptureError(models.ErrCodeNotFound, fmt.Sprintf("HTTP %d", status), nil)
	case status >= 500:
		return models.NewCaptureError(models.ErrCodeUnknown, fmt.Sprintf("HTTP %d", status), nil)
	default:
		return nil
	}
}

// failureMessage renders err for the result record, without the code prefix
// that CaptureError.Error adds.
func failureMessage(err error) string {
	var ce *models.CaptureError
	if errors.As(err, &ce) {
		if ce.Err != nil {
			return ce.Message + ": " + ce.Err.Error()
		}
		return ce.Message
	}
	return err.Error()
}
