// Package provider holds the failure taxonomy shared by the embedding and
// language-model clients. Callers branch on these with errors.Is; retry
// policy stays with the caller.
package provider

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnreachable covers transport failures, timeouts and 5xx responses.
	ErrUnreachable = errors.New("provider unreachable")

	// ErrRateLimited maps HTTP 429.
	ErrRateLimited = errors.New("provider rate limited")

	// ErrInvalidInput maps 4xx responses other than 429.
	ErrInvalidInput = errors.New("invalid provider input")
)

// ClassifyStatus maps a non-200 HTTP status to the taxonomy.
func ClassifyStatus(status int, body string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d: %s", ErrRateLimited, status, body)
	case status >= 400 && status < 500:
		return fmt.Errorf("%w: status %d: %s", ErrInvalidInput, status, body)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrUnreachable, status, body)
	}
}
