package muxhandlers

import (
	"errors"
	"net/http"

	"github.com/vitalvas/edgenotes/mux"
)

// ErrInvalidMaxSize is returned when RequestSizeLimitConfig.MaxBytes is not
// greater than zero.
var ErrInvalidMaxSize = errors.New("request size limit: max size must be greater than zero")

// RequestSizeLimitConfig configures the Request Size Limit middleware behaviour.
type RequestSizeLimitConfig struct {
	// MaxBytes is the maximum allowed request body size in bytes.
	// Must be greater than zero.
	MaxBytes int64
}

// RequestSizeLimitMiddleware returns a middleware that limits the size of
// incoming request bodies. Requests announcing a larger Content-Length are
// rejected up front. Otherwise the body is wrapped with http.MaxBytesReader
// and a handler that fails with *http.MaxBytesError while reading it is
// answered with 413 Request Entity Too Large.
//
// It returns ErrInvalidMaxSize if MaxBytes is not greater than zero.
func RequestSizeLimitMiddleware(cfg RequestSizeLimitConfig) (mux.HandlerFunc, error) {
	if cfg.MaxBytes <= 0 {
		return nil, ErrInvalidMaxSize
	}

	maxBytes := cfg.MaxBytes

	return func(mc *mux.Context) (*mux.Response, error) {
		r := mc.Request()
		if r.Body == nil || r.Body == http.NoBody {
			return mc.Next()
		}

		if r.ContentLength > maxBytes {
			return tooLarge(), nil
		}

		limited := r.Clone(r.Context())
		limited.Body = http.MaxBytesReader(nil, r.Body, maxBytes)

		res, err := mc.NextWith(limited)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return tooLarge(), nil
			}

			return nil, err
		}

		return res, nil
	}, nil
}

func tooLarge() *mux.Response {
	return mux.Text(http.StatusRequestEntityTooLarge, http.StatusText(http.StatusRequestEntityTooLarge))
}
