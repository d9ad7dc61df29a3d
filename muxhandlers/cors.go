package muxhandlers

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/vitalvas/edgenotes/mux"
)

// ErrWildcardCredentials is returned when AllowedOrigins contains "*" and
// AllowCredentials is true. Use AllowOriginFunc for dynamic origin checks
// with credentials.
var ErrWildcardCredentials = errors.New("wildcard origin \"*\" cannot be used with AllowCredentials; use AllowOriginFunc instead")

// ErrOriginPattern is returned when an origin pattern holds more than one
// wildcard.
var ErrOriginPattern = errors.New("cors: origin pattern contains multiple wildcards")

// CORSConfig configures the CORS middleware behaviour.
//
// References:
//   - CORS protocol: https://fetch.spec.whatwg.org/#http-cors-protocol
//   - Web Origin:    https://www.rfc-editor.org/rfc/rfc6454
//   - HTTP Vary:     https://www.rfc-editor.org/rfc/rfc9110#field.vary
type CORSConfig struct {
	// AllowedOrigins is a list of exact origin strings, "*" for wildcard,
	// or subdomain wildcard patterns like "https://*.example.com".
	AllowedOrigins []string

	// AllowOriginFunc is an optional dynamic callback invoked when the
	// origin does not match any entry in AllowedOrigins. Return true to allow.
	AllowOriginFunc func(origin string) bool

	// AllowedMethods overrides the set of methods advertised in preflight
	// and actual responses. When empty the middleware discovers the methods
	// of the routes in the table that match the request path.
	AllowedMethods []string

	// AllowedHeaders lists the headers the client may send in the actual
	// request. When empty the middleware reflects the Access-Control-Request-Headers
	// value from the preflight request. Use "*" to reflect all requested headers.
	AllowedHeaders []string

	// ExposeHeaders lists the headers the browser may expose to client code.
	ExposeHeaders []string

	// AllowCredentials sets Access-Control-Allow-Credentials: true.
	// Per the Fetch Standard, "*" cannot be used as Allow-Origin when
	// credentials are enabled; the middleware returns ErrWildcardCredentials.
	AllowCredentials bool

	// MaxAge is the duration in seconds a preflight result may be cached.
	// Positive values are sent as-is, negative values emit "0", zero omits the header.
	MaxAge int

	// OptionsStatusCode overrides the HTTP status code for preflight responses.
	// When zero (default) the middleware uses 204 No Content.
	OptionsStatusCode int

	// OptionsPassthrough, when true, sets CORS headers on preflight but
	// runs the rest of the chain instead of answering it directly.
	OptionsPassthrough bool

	// AllowPrivateNetwork, when true, responds to Access-Control-Request-Private-Network
	// preflight headers with Access-Control-Allow-Private-Network: true.
	// See https://wicg.github.io/private-network-access/
	AllowPrivateNetwork bool
}

// wildcardPattern represents a subdomain wildcard pattern split at the "*".
type wildcardPattern struct {
	prefix string
	suffix string
}

// cors is the compiled form of a CORSConfig shared by the middleware and
// the preflight handler.
type cors struct {
	cfg                CORSConfig
	exactOrigins       []string
	wildcardPatterns   []wildcardPattern
	hasSpecificOrigins bool
	headersWildcard    bool
	preflightStatus    int
}

func newCORS(cfg CORSConfig) (*cors, error) {
	if cfg.hasWildcardOrigin() && cfg.AllowCredentials {
		return nil, ErrWildcardCredentials
	}

	exact, patterns, err := parseOrigins(cfg.AllowedOrigins)
	if err != nil {
		return nil, err
	}

	status := cfg.OptionsStatusCode
	if status == 0 {
		status = http.StatusNoContent
	}

	return &cors{
		cfg:              cfg,
		exactOrigins:     exact,
		wildcardPatterns: patterns,
		hasSpecificOrigins: !cfg.hasWildcardOrigin() &&
			(len(exact) > 0 || len(patterns) > 0 || cfg.AllowOriginFunc != nil),
		headersWildcard: slices.Contains(cfg.AllowedHeaders, "*"),
		preflightStatus: status,
	}, nil
}

// hasWildcardOrigin reports whether AllowedOrigins contains "*".
func (c *CORSConfig) hasWildcardOrigin() bool {
	return slices.Contains(c.AllowedOrigins, "*")
}

func (c *cors) isAllowed(rawOrigin string) bool {
	if matchOrigin(strings.ToLower(rawOrigin), c.exactOrigins, c.wildcardPatterns) {
		return true
	}

	if c.cfg.AllowOriginFunc != nil {
		return c.cfg.AllowOriginFunc(rawOrigin)
	}

	return false
}

func isPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""
}

// setOriginHeaders sets Access-Control-Allow-Origin, Vary, and
// Access-Control-Allow-Credentials.
func (c *cors) setOriginHeaders(h http.Header, origin string) {
	if c.cfg.hasWildcardOrigin() && !c.cfg.AllowCredentials {
		h.Set("Access-Control-Allow-Origin", "*")
	} else {
		h.Set("Access-Control-Allow-Origin", origin)
		h.Add("Vary", "Origin")
	}

	if c.cfg.AllowCredentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
}

func (c *cors) methods(mc *mux.Context) []string {
	if len(c.cfg.AllowedMethods) > 0 {
		return c.cfg.AllowedMethods
	}

	return mc.Table().Methods(mc.Request().URL.EscapedPath())
}

func (c *cors) preflight(mc *mux.Context, origin string) *mux.Response {
	req := mc.Request()
	res := mux.Empty(c.preflightStatus)
	h := res.Header

	if origin != "" || c.cfg.hasWildcardOrigin() {
		c.setOriginHeaders(h, origin)
	}

	if methods := c.methods(mc); len(methods) > 0 {
		h.Set("Access-Control-Allow-Methods", strings.Join(methods, ", "))
	}

	if c.headersWildcard {
		if reqHeaders := req.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
			h.Set("Access-Control-Allow-Headers", reqHeaders)
		}
	} else if len(c.cfg.AllowedHeaders) > 0 {
		h.Set("Access-Control-Allow-Headers", strings.Join(c.cfg.AllowedHeaders, ", "))
	} else if reqHeaders := req.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
		h.Set("Access-Control-Allow-Headers", reqHeaders)
	}

	if c.cfg.MaxAge > 0 {
		h.Set("Access-Control-Max-Age", strconv.Itoa(c.cfg.MaxAge))
	} else if c.cfg.MaxAge < 0 {
		h.Set("Access-Control-Max-Age", "0")
	}

	if c.cfg.AllowPrivateNetwork && req.Header.Get("Access-Control-Request-Private-Network") == "true" {
		h.Set("Access-Control-Allow-Private-Network", "true")
		h.Add("Vary", "Access-Control-Request-Private-Network")
	}

	h.Add("Vary", "Access-Control-Request-Method")
	h.Add("Vary", "Access-Control-Request-Headers")

	return res
}

// parseOrigins normalizes AllowedOrigins to lowercase and splits them into
// exact matches and wildcard patterns. Returns an error if a pattern contains
// multiple wildcards.
func parseOrigins(origins []string) ([]string, []wildcardPattern, error) {
	var exact []string
	var patterns []wildcardPattern

	for _, o := range origins {
		if o == "*" {
			exact = append(exact, o)
			continue
		}

		lower := strings.ToLower(o)

		if strings.Contains(lower, "*") {
			parts := strings.SplitN(lower, "*", 2)
			if strings.Contains(parts[1], "*") {
				return nil, nil, fmt.Errorf("%w: %s", ErrOriginPattern, o)
			}

			patterns = append(patterns, wildcardPattern{
				prefix: parts[0],
				suffix: parts[1],
			})
		} else {
			exact = append(exact, lower)
		}
	}

	return exact, patterns, nil
}

// matchOrigin reports whether originLower matches any exact origin or wildcard pattern.
func matchOrigin(originLower string, exactOrigins []string, patterns []wildcardPattern) bool {
	for _, o := range exactOrigins {
		if o == "*" || o == originLower {
			return true
		}
	}

	for _, wp := range patterns {
		if len(originLower) >= len(wp.prefix)+len(wp.suffix) &&
			strings.HasPrefix(originLower, wp.prefix) &&
			strings.HasSuffix(originLower, wp.suffix) {
			return true
		}
	}

	return false
}

// CORSMiddleware returns a middleware that implements the CORS protocol
// per the Fetch Standard (https://fetch.spec.whatwg.org/#http-cors-protocol).
// It validates the Origin header (RFC 6454), answers preflight OPTIONS
// requests, and decorates every other response with the CORS headers.
//
// It returns an error if the configuration is invalid (e.g. wildcard origin
// combined with AllowCredentials).
func CORSMiddleware(cfg CORSConfig) (mux.HandlerFunc, error) {
	c, err := newCORS(cfg)
	if err != nil {
		return nil, err
	}

	return func(mc *mux.Context) (*mux.Response, error) {
		req := mc.Request()
		rawOrigin := req.Header.Get("Origin")

		if rawOrigin == "" || !c.isAllowed(rawOrigin) {
			res, err := mc.Next()
			if err != nil {
				return nil, err
			}

			// Vary on non-CORS requests with specific origins.
			if rawOrigin == "" && c.hasSpecificOrigins {
				res.Header.Add("Vary", "Origin")
			}

			return res, nil
		}

		if isPreflight(req) {
			pre := c.preflight(mc, rawOrigin)
			if !c.cfg.OptionsPassthrough {
				return pre, nil
			}

			res, err := mc.Next()
			if err != nil {
				return nil, err
			}

			mergeHeaders(res.Header, pre.Header)

			return res, nil
		}

		res, err := mc.Next()
		if err != nil {
			return nil, err
		}

		c.setOriginHeaders(res.Header, rawOrigin)

		if methods := c.methods(mc); len(methods) > 0 {
			res.Header.Set("Access-Control-Allow-Methods", strings.Join(methods, ", "))
		}

		if len(c.cfg.ExposeHeaders) > 0 {
			res.Header.Set("Access-Control-Expose-Headers", strings.Join(c.cfg.ExposeHeaders, ", "))
		}

		return res, nil
	}, nil
}

// CORSPreflightHandler returns a handler that answers every request with
// the preflight response, whether or not the request carries an Origin. It
// is meant for an OPTIONS route so that plain OPTIONS probes get the same
// answer as browser preflights.
func CORSPreflightHandler(cfg CORSConfig) (mux.HandlerFunc, error) {
	c, err := newCORS(cfg)
	if err != nil {
		return nil, err
	}

	return func(mc *mux.Context) (*mux.Response, error) {
		origin := mc.Request().Header.Get("Origin")
		if origin != "" && !c.isAllowed(origin) {
			return mux.Empty(c.preflightStatus), nil
		}

		return c.preflight(mc, origin), nil
	}, nil
}

// mergeHeaders copies src into dst. Vary values are appended, everything
// else replaces what dst holds.
func mergeHeaders(dst, src http.Header) {
	for k, v := range src {
		if k == "Vary" {
			dst[k] = append(dst[k], v...)
			continue
		}

		dst[k] = append([]string(nil), v...)
	}
}
