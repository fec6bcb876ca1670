package extract

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies extraction failures.
type Kind string

const (
	KindAPIKeyMissing            Kind = "api_key_missing"
	KindProviderAuth             Kind = "provider_auth"
	KindProviderRateLimited      Kind = "provider_rate_limited"
	KindProviderModelUnavailable Kind = "provider_model_unavailable"
	KindProviderServer           Kind = "provider_server"
	KindProviderRequest          Kind = "provider_request"
	KindMalformedModelOutput     Kind = "malformed_model_output"
	KindUnsupportedFileType      Kind = "unsupported_file_type"
	KindInvalidInput             Kind = "invalid_input"
	KindFileParse                Kind = "file_parse"
)

// Error is returned by every extraction failure. Status is the HTTP status
// the failure should be reported with.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, status int, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Status: status, Message: fmt.Sprintf(format, args...), Err: err}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// ProviderError classifies a failed provider call from its HTTP status and
// message. Status 0 means the call never produced a response.
func ProviderError(status int, message string, err error) *Error {
	switch {
	case status == http.StatusUnauthorized:
		return newError(KindProviderAuth, status, err, "AI provider rejected the API key")
	case status == http.StatusTooManyRequests:
		return newError(KindProviderRateLimited, status, err, "AI provider rate limit exceeded")
	case status == http.StatusNotFound && strings.Contains(strings.ToLower(message), "model"):
		return newError(KindProviderModelUnavailable, status, err, "AI model is not available")
	case status >= 500:
		return newError(KindProviderServer, status, err, "AI provider server error")
	case status >= 400:
		return newError(KindProviderRequest, status, err, "AI provider rejected the request")
	}
	return newError(KindProviderRequest, http.StatusBadGateway, err, "AI provider request failed")
}
