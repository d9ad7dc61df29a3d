package muxhandlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/vitalvas/edgenotes/mux"
)

// ErrInvalidTimeout is returned when TimeoutConfig.Duration is not greater
// than zero.
var ErrInvalidTimeout = errors.New("timeout: duration must be greater than zero")

// TimeoutConfig configures the Timeout middleware behaviour.
type TimeoutConfig struct {
	// Duration is the maximum time allowed for the rest of the chain.
	// Must be greater than zero.
	Duration time.Duration

	// Message is the response body returned when the chain times out.
	// Defaults to "Service Unavailable".
	Message string
}

// TimeoutMiddleware returns a middleware that bounds the rest of the chain
// with a context deadline. Handlers observe the deadline through the
// request context; when it has passed by the time they return, the result
// is discarded and 503 Service Unavailable is answered instead.
//
// It returns ErrInvalidTimeout if Duration is not greater than zero.
func TimeoutMiddleware(cfg TimeoutConfig) (mux.HandlerFunc, error) {
	if cfg.Duration <= 0 {
		return nil, ErrInvalidTimeout
	}

	message := cfg.Message
	if message == "" {
		message = http.StatusText(http.StatusServiceUnavailable)
	}

	return func(mc *mux.Context) (*mux.Response, error) {
		r := mc.Request()

		ctx, cancel := context.WithTimeout(r.Context(), cfg.Duration)
		defer cancel()

		res, err := mc.NextWith(r.WithContext(ctx))
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return mux.Text(http.StatusServiceUnavailable, message), nil
		}

		return res, err
	}, nil
}
