package muxhandlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalvas/edgenotes/mux"
)

func contentTypeRouter(t testing.TB, cfg ContentTypeCheckConfig) *mux.Router {
	t.Helper()

	mw, err := ContentTypeCheckMiddleware(cfg)
	require.NoError(t, err)

	return newTestRouter(t, nil, mw)
}

func contentTypeRequest(method, ct string) *http.Request {
	req := httptest.NewRequest(method, "/any", nil)
	if ct != "" {
		req.Header.Set("Content-Type", ct)
	}

	return req
}

func TestContentTypeCheckMiddleware(t *testing.T) {
	t.Run("config validation", func(t *testing.T) {
		t.Run("empty allowed types", func(t *testing.T) {
			_, err := ContentTypeCheckMiddleware(ContentTypeCheckConfig{})
			assert.ErrorIs(t, err, ErrNoAllowedTypes)
		})

		t.Run("valid config", func(t *testing.T) {
			_, err := ContentTypeCheckMiddleware(ContentTypeCheckConfig{
				AllowedTypes: []string{"application/json"},
			})
			assert.NoError(t, err)
		})
	})

	jsonOnly := ContentTypeCheckConfig{AllowedTypes: []string{"application/json"}}

	tests := []struct {
		name        string
		config      ContentTypeCheckConfig
		method      string
		contentType string
		wantCode    int
	}{
		{"matching type passes through", jsonOnly, http.MethodPost, "application/json", http.StatusOK},
		{"matching type with charset params", jsonOnly, http.MethodPost, "application/json; charset=utf-8", http.StatusOK},
		{"non-matching type returns 415", jsonOnly, http.MethodPost, "text/plain", http.StatusUnsupportedMediaType},
		{"missing Content-Type returns 415", jsonOnly, http.MethodPost, "", http.StatusUnsupportedMediaType},
		{"malformed Content-Type returns 415", jsonOnly, http.MethodPost, "application/", http.StatusUnsupportedMediaType},
		{"GET request skips check", jsonOnly, http.MethodGet, "", http.StatusOK},
		{"PUT checked by default", jsonOnly, http.MethodPut, "", http.StatusUnsupportedMediaType},
		{"PATCH checked by default", jsonOnly, http.MethodPatch, "", http.StatusUnsupportedMediaType},
		{
			"case insensitive matching",
			ContentTypeCheckConfig{AllowedTypes: []string{"Application/JSON"}},
			http.MethodPost, "application/json", http.StatusOK,
		},
		{
			"second of multiple allowed types",
			ContentTypeCheckConfig{AllowedTypes: []string{"application/json", "multipart/form-data"}},
			http.MethodPost, "multipart/form-data; boundary=x", http.StatusOK,
		},
		{
			"POST skips check with custom methods",
			ContentTypeCheckConfig{AllowedTypes: []string{"application/json"}, Methods: []string{http.MethodDelete}},
			http.MethodPost, "", http.StatusOK,
		},
		{
			"DELETE requires Content-Type with custom methods",
			ContentTypeCheckConfig{AllowedTypes: []string{"application/json"}, Methods: []string{http.MethodDelete}},
			http.MethodDelete, "", http.StatusUnsupportedMediaType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(contentTypeRouter(t, tt.config), contentTypeRequest(tt.method, tt.contentType))
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}

	t.Run("allow empty body", func(t *testing.T) {
		rt := contentTypeRouter(t, ContentTypeCheckConfig{
			AllowedTypes:   []string{"application/json"},
			AllowEmptyBody: true,
		})

		t.Run("bodyless POST passes", func(t *testing.T) {
			w := do(rt, contentTypeRequest(http.MethodPost, ""))
			assert.Equal(t, http.StatusOK, w.Code)
		})

		t.Run("body without Content-Type returns 415", func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/any", strings.NewReader(`{"a":1}`))
			w := do(rt, req)
			assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
		})

		t.Run("chunked body without Content-Type returns 415", func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/any", strings.NewReader(`{"a":1}`))
			req.ContentLength = -1
			req.TransferEncoding = []string{"chunked"}
			w := do(rt, req)
			assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
		})

		t.Run("empty body with wrong Content-Type returns 415", func(t *testing.T) {
			w := do(rt, contentTypeRequest(http.MethodPost, "text/plain"))
			assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
		})
	})
}

func BenchmarkContentTypeCheckMiddleware(b *testing.B) {
	rt := contentTypeRouter(b, ContentTypeCheckConfig{AllowedTypes: []string{"application/json"}})
	req := contentTypeRequest(http.MethodPost, "application/json; charset=utf-8")

	for b.Loop() {
		rt.ServeHTTP(httptest.NewRecorder(), req)
	}
}
