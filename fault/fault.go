// Package fault defines the typed error taxonomy shared by every layer of the
// generation pipeline. Callers pattern-match on Kind instead of inspecting
// error strings; Classify converts raw provider failures into that taxonomy.
package fault

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/googleapi"
)

// Kind identifies the user-facing category of a pipeline failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindRateLimited
	KindInvalidCredential
	KindSafetyBlocked
	KindEmptyResponse
	KindTruncated
	KindMalformedOutput
	KindTimedOut
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindInvalidCredential:
		return "invalid_credential"
	case KindSafetyBlocked:
		return "safety_blocked"
	case KindEmptyResponse:
		return "empty_response"
	case KindTruncated:
		return "truncated"
	case KindMalformedOutput:
		return "malformed_output"
	case KindTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// ErrUnsupported is returned by providers that do not implement an optional
// operation such as image editing or asynchronous media generation.
var ErrUnsupported = errors.New("operation not supported by this provider")

// Error is the classified failure surfaced to callers. Message is meant to be
// shown verbatim; Categories is populated only for KindSafetyBlocked.
type Error struct {
	Kind       Kind
	Context    string // operation label, e.g. "Video Generation (Polling)"
	Message    string
	Categories []string
	cause      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// New builds a classified error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a classified error that keeps the original failure as its cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// SafetyBlocked builds a safety refusal carrying the flagged categories.
func SafetyBlocked(categories []string, format string, args ...any) *Error {
	return &Error{
		Kind:       KindSafetyBlocked,
		Message:    fmt.Sprintf(format, args...),
		Categories: categories,
	}
}

// KindOf reports the classified kind of err, or KindUnknown when err carries
// no classification.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindUnknown
}

// statusCoder is implemented by transport errors that expose an HTTP status.
// The classifier prefers this structured path over message matching.
type statusCoder interface {
	StatusCode() int
}

// rateLimitSignatures are matched against lower-cased error text as the
// compatibility fallback when no structured status code is available.
var rateLimitSignatures = []string{
	"429",
	"rate limit",
	"ratelimit",
	"quota",
	"resource_exhausted",
	"resource has been exhausted",
}

// Retryable reports whether err looks like a transient rate-limit or quota
// failure that the invoker may retry with backoff.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if KindOf(err) == KindRateLimited {
		return true
	}
	if code, ok := statusCode(err); ok && code == 429 {
		return true
	}
	text := strings.ToLower(err.Error())
	for _, sig := range rateLimitSignatures {
		if strings.Contains(text, sig) {
			return true
		}
	}
	return false
}

func statusCode(err error) (int, bool) {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code, true
	}
	var sc statusCoder
	if errors.As(err, &sc) {
		return sc.StatusCode(), true
	}
	return 0, false
}

// Classify maps a raw failure into the taxonomy. contextLabel names the
// operation for the user ("Funnel Generation", "Video Generation (Polling)").
// Already-classified errors pass through unchanged so interpreter failures
// are never re-wrapped.
func Classify(err error, contextLabel string) *Error {
	if err == nil {
		return nil
	}

	var fe *Error
	if errors.As(err, &fe) {
		if fe.Context == "" {
			fe.Context = contextLabel
		}
		return fe
	}

	if Retryable(err) {
		return &Error{
			Kind:    KindRateLimited,
			Context: contextLabel,
			Message: "You have exceeded your API request quota. Please check your plan and billing details, or try again later.",
			cause:   err,
		}
	}

	text := strings.ToLower(err.Error())
	switch {
	case strings.Contains(text, "api key not valid"):
		return &Error{
			Kind:    KindInvalidCredential,
			Context: contextLabel,
			Message: "The configured API key is not valid. Please re-select your credentials and try again.",
			cause:   err,
		}
	case strings.Contains(text, "requested entity was not found"):
		return &Error{
			Kind:    KindInvalidCredential,
			Context: contextLabel,
			Message: "The requested entity was not found. This usually indicates an invalid API key when generating media asynchronously; please re-select your credentials.",
			cause:   err,
		}
	}

	return &Error{
		Kind:    KindUnknown,
		Context: contextLabel,
		Message: fmt.Sprintf("An error occurred during %s: %v", contextLabel, err),
		cause:   err,
	}
}
