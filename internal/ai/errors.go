package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorKind is the category of a classified failure.
type ErrorKind string

const (
	KindConfiguration  ErrorKind = "configuration"
	KindAuthentication ErrorKind = "authentication"
	KindAuthorization  ErrorKind = "authorization"
	KindRateLimit      ErrorKind = "rate_limit"
	KindAPI            ErrorKind = "api"
	KindNetwork        ErrorKind = "network"
)

const (
	msgMissingKey    = "API key is not configured"
	msgUnauthorized  = "invalid API key, check your credentials"
	msgForbidden     = "access denied, the API key is not allowed to use this model"
	msgRateLimited   = "rate limit exceeded, wait a moment and try again"
	msgAPIFallback   = "the completion service returned an error"
	msgNetworkFailed = "could not reach the completion service"
)

// Error is a failure tagged with a kind from a closed taxonomy.
type Error struct {
	Kind       ErrorKind
	Message    string
	StatusCode int    // HTTP status, zero when no response was received
	RequestID  string // client request id sent with the call, if any
	Err        error  // underlying cause, if any
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a classified error, or "" if err is not one.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// IsKind reports whether err is a classified error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

func configError(msg string) *Error {
	return &Error{Kind: KindConfiguration, Message: msg}
}

// networkError wraps a transport failure. Errors that are already
// classified pass through unchanged.
func networkError(err error, requestID string) error {
	var ce *Error
	if errors.As(err, &ce) {
		return err
	}
	return &Error{Kind: KindNetwork, Message: msgNetworkFailed, RequestID: requestID, Err: err}
}

type errorEnvelope struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// providerMessage extracts error.message from a provider error body.
func providerMessage(body []byte) string {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Error == nil {
		return ""
	}
	return strings.TrimSpace(env.Error.Message)
}

// ClassifyStatus maps a non-2xx HTTP status and its body to a classified
// error.
func ClassifyStatus(status int, body []byte) *Error {
	detail := providerMessage(body)
	e := &Error{StatusCode: status}
	switch status {
	case http.StatusUnauthorized:
		e.Kind, e.Message = KindAuthentication, withDetail(msgUnauthorized, detail)
	case http.StatusForbidden:
		e.Kind, e.Message = KindAuthorization, withDetail(msgForbidden, detail)
	case http.StatusTooManyRequests:
		e.Kind, e.Message = KindRateLimit, withDetail(msgRateLimited, detail)
	default:
		e.Kind = KindAPI
		e.Message = detail
		if e.Message == "" {
			e.Message = msgAPIFallback
		}
	}
	return e
}

func withDetail(msg, detail string) string {
	if detail == "" {
		return msg
	}
	return msg + ": " + detail
}
