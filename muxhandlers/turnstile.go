package muxhandlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/vitalvas/edgenotes/mux"
)

// TurnstileVerifier checks a challenge token issued to a client.
type TurnstileVerifier interface {
	Verify(ctx context.Context, token, remoteIP string) (bool, error)
}

// TurnstileConfig configures the Turnstile gate middleware.
type TurnstileConfig struct {
	// Verifier checks tokens. When nil the gate is disabled and every
	// request passes through.
	Verifier TurnstileVerifier

	// BypassSuffixes lists lower-case path suffixes that are never
	// checked. Defaults to ["/api/load"].
	BypassSuffixes []string

	// BypassHosts lists request hostnames that are never checked.
	// Defaults to ["localhost", "127.0.0.1"].
	BypassHosts []string

	// TokenField is the JSON body field carrying the token.
	// Defaults to "turnstileToken".
	TokenField string
}

// TurnstileMiddleware returns a middleware that requires a valid
// Turnstile token in the JSON body of POST requests. Requests without a
// token get 400 and rejected tokens get 403, both as JSON errors. The
// body is restored for downstream handlers.
//
// Verifier failures are propagated as errors. A body rejected by
// http.MaxBytesReader is propagated unchanged so an outer request size
// limit can answer it.
func TurnstileMiddleware(cfg TurnstileConfig) mux.HandlerFunc {
	suffixes := cfg.BypassSuffixes
	if suffixes == nil {
		suffixes = []string{"/api/load"}
	}

	hosts := cfg.BypassHosts
	if hosts == nil {
		hosts = []string{"localhost", "127.0.0.1"}
	}

	field := cfg.TokenField
	if field == "" {
		field = "turnstileToken"
	}

	return func(mc *mux.Context) (*mux.Response, error) {
		r := mc.Request()

		if cfg.Verifier == nil || r.Method != http.MethodPost {
			return mc.Next()
		}

		path := strings.ToLower(r.URL.Path)
		if slices.ContainsFunc(suffixes, func(s string) bool { return strings.HasSuffix(path, s) }) {
			return mc.Next()
		}

		if slices.Contains(hosts, requestHostname(r)) {
			return mc.Next()
		}

		var body []byte
		if r.Body != nil && r.Body != http.NoBody {
			data, err := io.ReadAll(r.Body)
			if err != nil {
				var maxErr *http.MaxBytesError
				if errors.As(err, &maxErr) {
					return nil, err
				}

				return nil, fmt.Errorf("turnstile: read body: %w", err)
			}
			body = data
		}

		token := tokenFromBody(body, field)
		if token == "" {
			return mux.JSON(http.StatusBadRequest, map[string]string{"error": "Missing Turnstile token"}), nil
		}

		ok, err := cfg.Verifier.Verify(r.Context(), token, remoteHost(r.RemoteAddr))
		if err != nil {
			return nil, fmt.Errorf("turnstile: verify: %w", err)
		}

		if !ok {
			return mux.JSON(http.StatusForbidden, map[string]string{"error": "Turnstile failed"}), nil
		}

		next := r.Clone(r.Context())
		next.Body = io.NopCloser(bytes.NewReader(body))
		next.ContentLength = int64(len(body))

		return mc.NextWith(next)
	}
}

// tokenFromBody returns the string value of field, or "" when the body is
// not a JSON object or the field is absent.
func tokenFromBody(body []byte, field string) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return ""
	}

	var token string
	if err := json.Unmarshal(fields[field], &token); err != nil {
		return ""
	}

	return token
}

func requestHostname(r *http.Request) string {
	host := r.Host
	if host == "" {
		host = r.URL.Host
	}

	return strings.ToLower(remoteHost(host))
}
