package muxhandlers

import (
	"net/http"

	"github.com/vitalvas/edgenotes/mux"
)

// RecoveryConfig configures the Recovery middleware behaviour.
type RecoveryConfig struct {
	// LogFunc is an optional callback invoked with the request and the
	// recovered value when a panic occurs. When nil, no logging is performed.
	LogFunc func(r *http.Request, err any)
}

// RecoveryMiddleware returns a middleware that recovers from panics in the
// rest of the chain. When a panic occurs it answers 500 Internal Server
// Error and optionally invokes LogFunc.
func RecoveryMiddleware(cfg RecoveryConfig) mux.HandlerFunc {
	return func(mc *mux.Context) (res *mux.Response, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				if cfg.LogFunc != nil {
					cfg.LogFunc(mc.Request(), rec)
				}

				res = mux.Text(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
				err = nil
			}
		}()

		return mc.Next()
	}
}
