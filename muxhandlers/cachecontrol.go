package muxhandlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/vitalvas/edgenotes/mux"
)

// ErrNoCacheControlRules is returned when CacheControlConfig.Rules is empty.
var ErrNoCacheControlRules = errors.New("cache control: at least one rule is required")

// CacheControlRule maps a Content-Type prefix to Cache-Control and Expires
// header values.
type CacheControlRule struct {
	// ContentType is a content type prefix to match against the response
	// Content-Type (e.g. "image/", "application/json"). Matching is
	// case-insensitive via strings.HasPrefix on the lowercased value.
	ContentType string

	// Value is the Cache-Control header value to set when this rule
	// matches (e.g. "public, max-age=86400").
	Value string

	// Expires is the duration added to the current time to compute the
	// Expires header value (formatted as HTTP-date per RFC 7231). A zero
	// duration produces a date in the past (epoch), equivalent to
	// "already expired". A negative duration means no Expires header is
	// set for this rule. Positive values produce a future date
	// (e.g. 24*time.Hour sets Expires to 24 hours from now).
	Expires time.Duration
}

// CacheControlConfig configures the CacheControl middleware behaviour.
type CacheControlConfig struct {
	// Rules is the ordered list of content type rules. The first matching
	// rule wins. Required; at least one must be provided.
	Rules []CacheControlRule

	// DefaultValue is the Cache-Control header value for responses that
	// don't match any rule. When empty, no header is set for unmatched
	// types.
	DefaultValue string

	// DefaultExpires is the duration added to the current time to compute
	// the Expires header for responses that don't match any rule. A zero
	// duration produces a date in the past (epoch). A negative duration
	// means no Expires header is set for unmatched types.
	DefaultExpires time.Duration
}

// cacheControlRule is a pre-normalized copy of CacheControlRule used at
// runtime so that the lowercase conversion happens once at factory time.
type cacheControlRule struct {
	contentType string
	value       string
	expires     time.Duration
	hasExpires  bool
}

// CacheControlMiddleware returns a middleware that sets Cache-Control and
// Expires response headers based on the response Content-Type. Rules are
// evaluated in order; the first rule whose ContentType prefix matches wins.
// If no rule matches and DefaultValue/DefaultExpires is non-empty, it is
// used. When the rest of the chain already set a Cache-Control or Expires
// header, the middleware does not overwrite the respective header.
//
// It returns ErrNoCacheControlRules if Rules is empty.
func CacheControlMiddleware(cfg CacheControlConfig) (mux.HandlerFunc, error) {
	if len(cfg.Rules) == 0 {
		return nil, ErrNoCacheControlRules
	}

	rules := make([]cacheControlRule, len(cfg.Rules))
	for i, r := range cfg.Rules {
		rules[i] = cacheControlRule{
			contentType: strings.ToLower(r.ContentType),
			value:       r.Value,
			expires:     r.Expires,
			hasExpires:  r.Expires >= 0,
		}
	}

	cc := &cacheControl{
		rules:             rules,
		defaultValue:      cfg.DefaultValue,
		defaultExpires:    cfg.DefaultExpires,
		hasDefaultExpires: cfg.DefaultExpires >= 0,
	}

	return func(mc *mux.Context) (*mux.Response, error) {
		res, err := mc.Next()
		if err != nil {
			return nil, err
		}

		cc.apply(res.Header, time.Now())

		return res, nil
	}, nil
}

type cacheControl struct {
	rules             []cacheControlRule
	defaultValue      string
	defaultExpires    time.Duration
	hasDefaultExpires bool
}

func (cc *cacheControl) apply(h http.Header, now time.Time) {
	ccSet := h.Get("Cache-Control") != ""
	exSet := h.Get("Expires") != ""

	if ccSet && exSet {
		return
	}

	ct := strings.ToLower(h.Get("Content-Type"))

	value := cc.defaultValue
	expires := cc.defaultExpires
	setExpires := cc.hasDefaultExpires

	for _, rule := range cc.rules {
		if strings.HasPrefix(ct, rule.contentType) {
			value = rule.value
			expires = rule.expires
			setExpires = rule.hasExpires

			break
		}
	}

	if !ccSet && value != "" {
		h.Set("Cache-Control", value)
	}

	if !exSet && setExpires {
		h.Set("Expires", now.UTC().Add(expires).Format(http.TimeFormat))
	}
}
