package market

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is the typed outcome every collaborator HTTP failure is
// converted to at the boundary, so raw transport errors never cross into
// the decision pipeline.
type APIError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api %s: status %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// Transient reports whether the failure is worth retrying: rate limits and
// server-side errors are, validation failures are not.
func (e *APIError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsTransient classifies an error for retry purposes. Network-level
// failures (no HTTP status at all) count as transient.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	return err != nil
}
