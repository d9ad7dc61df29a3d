package muxhandlers

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/vitalvas/edgenotes/mux"
)

// ErrNoAllowedTypes is returned when ContentTypeCheckConfig.AllowedTypes is
// empty.
var ErrNoAllowedTypes = errors.New("content type check: at least one allowed content type is required")

// ContentTypeCheckConfig configures the Content-Type Check middleware behaviour.
type ContentTypeCheckConfig struct {
	// AllowedTypes is the set of acceptable Content-Type values.
	// Matching is case-insensitive and ignores parameters
	// (e.g. "application/json" matches "application/json; charset=utf-8").
	// Required; at least one must be provided.
	AllowedTypes []string

	// Methods is the set of HTTP methods that require Content-Type
	// validation. When nil, defaults to POST, PUT, PATCH.
	Methods []string

	// AllowEmptyBody lets requests that carry no body and no Content-Type
	// through unchecked.
	AllowEmptyBody bool
}

var defaultCheckedMethods = []string{
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
}

// ContentTypeCheckMiddleware returns a middleware that validates the
// Content-Type header on requests with matching methods. It answers 415
// Unsupported Media Type when the Content-Type is missing or does not match
// any of the allowed types.
//
// It returns ErrNoAllowedTypes if AllowedTypes is empty.
func ContentTypeCheckMiddleware(cfg ContentTypeCheckConfig) (mux.HandlerFunc, error) {
	if len(cfg.AllowedTypes) == 0 {
		return nil, ErrNoAllowedTypes
	}

	methods := cfg.Methods
	if methods == nil {
		methods = defaultCheckedMethods
	}

	methodSet := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		methodSet[m] = struct{}{}
	}

	allowedSet := make(map[string]struct{}, len(cfg.AllowedTypes))
	for _, t := range cfg.AllowedTypes {
		allowedSet[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}

	unsupported := func() *mux.Response {
		return mux.Text(http.StatusUnsupportedMediaType, http.StatusText(http.StatusUnsupportedMediaType))
	}

	return func(mc *mux.Context) (*mux.Response, error) {
		r := mc.Request()
		if _, check := methodSet[r.Method]; !check {
			return mc.Next()
		}

		ct := r.Header.Get("Content-Type")
		if ct == "" {
			if cfg.AllowEmptyBody && emptyBody(r) {
				return mc.Next()
			}

			return unsupported(), nil
		}

		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return unsupported(), nil
		}

		if _, ok := allowedSet[strings.ToLower(mediaType)]; !ok {
			return unsupported(), nil
		}

		return mc.Next()
	}, nil
}

// emptyBody reports whether r declares no body at all. Chunked requests have
// an unknown length and count as non-empty.
func emptyBody(r *http.Request) bool {
	return r.ContentLength == 0 && len(r.TransferEncoding) == 0
}
