package google

import (
	"errors"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

var (
	// ErrNoRefreshToken means the grant cannot be renewed.
	ErrNoRefreshToken = errors.New("google: grant has no refresh token")

	// ErrBreakerOpen means recent Google API calls kept failing and calls are short-circuited.
	ErrBreakerOpen = errors.New("google: circuit open, too many recent failures")
)

// StatusCode returns the HTTP status of a Google API or OAuth error, or 0.
func StatusCode(err error) int {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.Response != nil {
		return rerr.Response.StatusCode
	}
	return 0
}

// IsNotFound reports a deleted or inaccessible spreadsheet.
func IsNotFound(err error) bool { return StatusCode(err) == http.StatusNotFound }

// IsRateLimited reports Google's quota / rate limiting answer.
func IsRateLimited(err error) bool { return StatusCode(err) == http.StatusTooManyRequests }

// IsTransient reports failures worth counting against the circuit breaker:
// rate limiting, server errors and transport errors without a status.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrBreakerOpen) || errors.Is(err, ErrNoRefreshToken) {
		return false
	}
	code := StatusCode(err)
	return code == 0 || code == http.StatusTooManyRequests || code >= 500
}

// Describe returns a short provider-facing detail for an API error.
func Describe(err error) string {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Message != "" {
			return http.StatusText(gerr.Code) + ": " + gerr.Message
		}
		return http.StatusText(gerr.Code)
	}
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) && rerr.ErrorCode != "" {
		if rerr.ErrorDescription != "" {
			return rerr.ErrorCode + ": " + rerr.ErrorDescription
		}
		return rerr.ErrorCode
	}
	return err.Error()
}
