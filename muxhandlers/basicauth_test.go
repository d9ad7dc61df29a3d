package muxhandlers

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalvas/edgenotes/mux"
)

func basicAuthHeader(username, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
}

func TestBasicAuth(t *testing.T) {
	t.Run("config error no auth source", func(t *testing.T) {
		_, err := BasicAuthMiddleware(BasicAuthConfig{})
		assert.ErrorIs(t, err, ErrNoAuthSource)
	})

	tests := []struct {
		name        string
		config      BasicAuthConfig
		authHeader  string
		wantCode    int
		wantWWWAuth string
	}{
		{
			name:       "valid credentials via ValidateFunc",
			config:     BasicAuthConfig{ValidateFunc: func(u, p string) bool { return u == "admin" && p == "secret" }},
			authHeader: basicAuthHeader("admin", "secret"),
			wantCode:   http.StatusOK,
		},
		{
			name:       "valid credentials via Credentials map",
			config:     BasicAuthConfig{Credentials: map[string]string{"admin": "secret"}},
			authHeader: basicAuthHeader("admin", "secret"),
			wantCode:   http.StatusOK,
		},
		{
			name:       "invalid password",
			config:     BasicAuthConfig{Credentials: map[string]string{"admin": "secret"}},
			authHeader: basicAuthHeader("admin", "wrong"),
			wantCode:   http.StatusUnauthorized,
		},
		{
			name:       "unknown username",
			config:     BasicAuthConfig{Credentials: map[string]string{"admin": "secret"}},
			authHeader: basicAuthHeader("unknown", "secret"),
			wantCode:   http.StatusUnauthorized,
		},
		{
			name:     "missing Authorization header",
			config:   BasicAuthConfig{Credentials: map[string]string{"admin": "secret"}},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:       "malformed header not Basic",
			config:     BasicAuthConfig{Credentials: map[string]string{"admin": "secret"}},
			authHeader: "Bearer some-token",
			wantCode:   http.StatusUnauthorized,
		},
		{
			name:       "malformed base64",
			config:     BasicAuthConfig{Credentials: map[string]string{"admin": "secret"}},
			authHeader: "Basic !!!invalid-base64!!!",
			wantCode:   http.StatusUnauthorized,
		},
		{
			name:       "malformed credentials no colon",
			config:     BasicAuthConfig{Credentials: map[string]string{"admin": "secret"}},
			authHeader: "Basic " + base64.StdEncoding.EncodeToString([]byte("nocolon")),
			wantCode:   http.StatusUnauthorized,
		},
		{
			name:       "password with colons",
			config:     BasicAuthConfig{Credentials: map[string]string{"admin": "pass:with:colons"}},
			authHeader: basicAuthHeader("admin", "pass:with:colons"),
			wantCode:   http.StatusOK,
		},
		{
			name: "ValidateFunc takes priority over Credentials",
			config: BasicAuthConfig{
				ValidateFunc: func(u, p string) bool { return u == "func-user" && p == "func-pass" },
				Credentials:  map[string]string{"map-user": "map-pass"},
			},
			authHeader: basicAuthHeader("func-user", "func-pass"),
			wantCode:   http.StatusOK,
		},
		{
			name:        "custom realm",
			config:      BasicAuthConfig{Realm: "My App", Credentials: map[string]string{"admin": "secret"}},
			wantCode:    http.StatusUnauthorized,
			wantWWWAuth: `Basic realm="My App"`,
		},
		{
			name:        "default realm",
			config:      BasicAuthConfig{Credentials: map[string]string{"admin": "secret"}},
			wantCode:    http.StatusUnauthorized,
			wantWWWAuth: `Basic realm="Restricted"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw, err := BasicAuthMiddleware(tt.config)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			w := do(newTestRouter(t, nil, mw), req)

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantWWWAuth != "" {
				assert.Equal(t, tt.wantWWWAuth, w.Header().Get("WWW-Authenticate"))
			}

			if tt.wantCode == http.StatusUnauthorized {
				assert.Empty(t, w.Body.String())
			}
		})
	}

	t.Run("guards a single route", func(t *testing.T) {
		var called bool

		mw, err := BasicAuthMiddleware(BasicAuthConfig{Credentials: map[string]string{"admin": "secret"}})
		require.NoError(t, err)

		upload := func(_ *mux.Context) (*mux.Response, error) {
			called = true
			return mux.Empty(http.StatusCreated), nil
		}

		rt := mux.NewRouter(mux.MustNewTable([]mux.Route{
			{Path: "/api/upload-logo", Method: http.MethodPost, Middlewares: []mux.HandlerFunc{mw}, Handlers: []mux.HandlerFunc{upload}},
			{Path: "/api/load", Method: http.MethodPost, Handlers: []mux.HandlerFunc{okHandler}},
		}))

		w := do(rt, httptest.NewRequest(http.MethodPost, "/api/upload-logo", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.False(t, called)

		w = do(rt, httptest.NewRequest(http.MethodPost, "/api/load", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func BenchmarkBasicAuth(b *testing.B) {
	mw, err := BasicAuthMiddleware(BasicAuthConfig{
		Credentials: map[string]string{"admin": "secret"},
	})
	if err != nil {
		b.Fatal(err)
	}

	rt := newTestRouter(b, nil, mw)

	for name, password := range map[string]string{"valid credentials": "secret", "invalid credentials": "wrong"} {
		b.Run(name, func(b *testing.B) {
			req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
			req.Header.Set("Authorization", basicAuthHeader("admin", password))

			for b.Loop() {
				rt.ServeHTTP(httptest.NewRecorder(), req)
			}
		})
	}
}
