package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"

	"github.com/papercast-ai/papercast/internal/types"
)

// RateLimitedError carries the provider's retry-after hint alongside the
// transient classification.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

func (e *RateLimitedError) Unwrap() error { return types.ErrUpstreamTransient }

// classifyHTTPStatus maps an HTTP status code onto the upstream error taxonomy.
func classifyHTTPStatus(status int) error {
	switch {
	case status == http.StatusTooManyRequests:
		return &RateLimitedError{}
	case status >= 500:
		return types.ErrUpstreamTransient
	case status >= 400:
		return types.ErrUpstreamPermanent
	}
	return nil
}

// mapOpenAIError classifies an openai-go SDK error into the taxonomy.
// Network faults and 5xx/429 are transient; other 4xx are permanent.
func mapOpenAIError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if classified := classifyHTTPStatus(apiErr.StatusCode); classified != nil {
			return fmt.Errorf("%w: %v", classified, err)
		}
		return fmt.Errorf("%w: %v", types.ErrUpstreamTransient, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", types.ErrUpstreamTransient, err)
	}

	// Unknown SDK error, assume transport-level and retriable.
	return fmt.Errorf("%w: %v", types.ErrUpstreamTransient, err)
}

// IsTransient reports whether err should be retried at the transport level.
func IsTransient(err error) bool {
	return errors.Is(err, types.ErrUpstreamTransient)
}
