package invoke

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"google.golang.org/genai"

	"github.com/mailsort/server/internal/classifier/model"
)

const (
	statusResourceExhausted = "RESOURCE_EXHAUSTED"
	statusNotFound          = "NOT_FOUND"
	maxDetailLen            = 300
)

var (
	textCode   = regexp.MustCompile(`(?i)\b(?:error|status(?: code)?|code)[:=]?\s*(\d{3})\b`)
	textStatus = regexp.MustCompile(`\bStatus: ([A-Z_]+)\b`)
)

// Classify maps an invocation error to a failure kind, the HTTP status the
// provider answered with (0 when none) and a short detail string.
func Classify(err error) (model.FailureKind, int, string) {
	if err == nil {
		return model.KindNone, 0, ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return model.KindOther, 0, "attempt timed out"
	}

	if apiErr, ok := asAPIError(err); ok {
		return classifyAPIError(apiErr.Code, apiErr.Status, apiErr.Message), apiErr.Code, truncate(apiErr.Message)
	}

	// The SDK error is not always reachable through wrapping layers; fall back
	// to its textual form.
	text := err.Error()
	code := 0
	if m := textCode.FindStringSubmatch(text); m != nil {
		code, _ = strconv.Atoi(m[1])
	}
	status := ""
	if m := textStatus.FindStringSubmatch(text); m != nil {
		status = m[1]
	}
	if code == 0 && status == "" {
		return model.KindOther, 0, truncate(text)
	}
	return classifyAPIError(code, status, text), code, truncate(text)
}

func classifyAPIError(code int, status, message string) model.FailureKind {
	switch {
	case code == http.StatusTooManyRequests || status == statusResourceExhausted:
		return model.KindQuota
	case code == http.StatusNotFound:
		// A structured Google error carries NOT_FOUND; a plain 404 page means
		// the path itself (the API version) does not exist.
		if status != statusNotFound || strings.Contains(strings.ToLower(message), "api version") {
			return model.KindNotFoundEndpoint
		}
		return model.KindNotFoundModel
	default:
		return model.KindOther
	}
}

func asAPIError(err error) (genai.APIError, bool) {
	var v genai.APIError
	if errors.As(err, &v) {
		return v, true
	}
	var p *genai.APIError
	if errors.As(err, &p) && p != nil {
		return *p, true
	}
	return genai.APIError{}, false
}

// outcomeOf splits failures into ones worth trying again later and ones that
// will keep failing for the same request.
func outcomeOf(kind model.FailureKind, status int) model.Outcome {
	switch kind {
	case model.KindNone:
		return model.OutcomeSuccess
	case model.KindQuota:
		return model.OutcomeTransientFailure
	case model.KindOther:
		if status == 0 || status >= http.StatusInternalServerError {
			return model.OutcomeTransientFailure
		}
	}
	return model.OutcomePermanentFailure
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxDetailLen {
		return s
	}
	return s[:maxDetailLen] + "..."
}
