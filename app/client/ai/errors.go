package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
)

// ErrRateLimited is returned when the upstream API kept responding with
// 429 until the retry budget ran out.
var ErrRateLimited = errors.New("rate limited by upstream API")

// ErrUnavailable is returned when network-level failures exhausted the
// retry budget.
var ErrUnavailable = errors.New("upstream API unavailable")

// StatusError is a terminal upstream HTTP failure that is not retried.
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream API returned HTTP %d", e.Status)
}

// statusOf extracts the HTTP status code from go-openai errors.
func statusOf(err error) (int, bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode, true
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode, true
	}

	return 0, false
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}

	status, ok := statusOf(err)
	if !ok {
		// transport-level failure: timeout, connection refused, etc.
		return true
	}

	return status == http.StatusTooManyRequests || status == 0
}
