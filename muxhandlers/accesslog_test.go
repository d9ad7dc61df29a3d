package muxhandlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalvas/edgenotes/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observedLogger() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return zap.New(core), logs
}

func TestAccessLogMiddleware(t *testing.T) {
	t.Run("requires logger", func(t *testing.T) {
		_, err := AccessLogMiddleware(AccessLogConfig{})
		assert.ErrorIs(t, err, ErrNoLogger)
	})

	t.Run("logs request fields", func(t *testing.T) {
		logger, logs := observedLogger()

		mw, err := AccessLogMiddleware(AccessLogConfig{Logger: logger})
		require.NoError(t, err)

		// Request ID runs first so the id reaches the log entry.
		rt := newTestRouter(t, nil, RequestIDMiddleware(RequestIDConfig{
			GenerateFunc: func(_ *http.Request) string { return "req-1" },
		}), mw)

		req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
		req.RemoteAddr = "203.0.113.5:4321"
		req.Header.Set("User-Agent", "notes-test")
		do(rt, req)

		require.Equal(t, 1, logs.Len())
		entry := logs.All()[0]
		fields := entry.ContextMap()

		assert.Equal(t, zapcore.InfoLevel, entry.Level)
		assert.Equal(t, "request", entry.Message)
		assert.Equal(t, "GET", fields["method"])
		assert.Equal(t, "/api/notes", fields["path"])
		assert.Equal(t, "/api/notes", fields["route"])
		assert.Equal(t, int64(200), fields["status"])
		assert.Equal(t, int64(2), fields["bytes"])
		assert.Equal(t, "203.0.113.5", fields["client_ip"])
		assert.Equal(t, "notes-test", fields["user_agent"])
		assert.Equal(t, "req-1", fields["request_id"])
	})

	t.Run("levels by status", func(t *testing.T) {
		tests := []struct {
			name   string
			status int
			want   zapcore.Level
		}{
			{"success", http.StatusOK, zapcore.InfoLevel},
			{"client error", http.StatusNotFound, zapcore.WarnLevel},
			{"server error", http.StatusBadGateway, zapcore.ErrorLevel},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				logger, logs := observedLogger()

				mw, err := AccessLogMiddleware(AccessLogConfig{Logger: logger})
				require.NoError(t, err)

				rt := newTestRouter(t, func(_ *mux.Context) (*mux.Response, error) {
					return mux.Empty(tt.status), nil
				}, mw)
				do(rt, httptest.NewRequest(http.MethodGet, "/api/notes", nil))

				require.Equal(t, 1, logs.Len())
				assert.Equal(t, tt.want, logs.All()[0].Level)
			})
		}
	})

	t.Run("unmatched requests have no route", func(t *testing.T) {
		logger, logs := observedLogger()

		mw, err := AccessLogMiddleware(AccessLogConfig{Logger: logger})
		require.NoError(t, err)

		do(newTestRouter(t, nil, mw), httptest.NewRequest(http.MethodGet, "/app.js", nil))

		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "", logs.All()[0].ContextMap()["route"])
		assert.Equal(t, int64(404), logs.All()[0].ContextMap()["status"])
	})

	t.Run("chain errors are logged and returned", func(t *testing.T) {
		logger, logs := observedLogger()
		boom := errors.New("boom")

		mw, err := AccessLogMiddleware(AccessLogConfig{Logger: logger})
		require.NoError(t, err)

		rt := newTestRouter(t, func(_ *mux.Context) (*mux.Response, error) {
			return nil, boom
		}, mw)

		_, err = rt.Serve(httptest.NewRequest(http.MethodGet, "/api/notes", nil))
		assert.ErrorIs(t, err, boom)

		require.Equal(t, 1, logs.Len())
		assert.Equal(t, zapcore.ErrorLevel, logs.All()[0].Level)
		assert.Equal(t, "boom", logs.All()[0].ContextMap()["error"])
	})

	t.Run("excluded paths", func(t *testing.T) {
		logger, logs := observedLogger()

		mw, err := AccessLogMiddleware(AccessLogConfig{
			Logger:          logger,
			ExcludePaths:    []string{"/api/notes"},
			ExcludePrefixes: []string{"/metrics"},
		})
		require.NoError(t, err)

		rt := newTestRouter(t, nil, mw)
		do(rt, httptest.NewRequest(http.MethodGet, "/api/notes", nil))
		do(rt, httptest.NewRequest(http.MethodGet, "/metrics/prometheus", nil))
		do(rt, httptest.NewRequest(http.MethodPost, "/any", nil))

		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "/any", logs.All()[0].ContextMap()["path"])
	})

	t.Run("errors only", func(t *testing.T) {
		logger, logs := observedLogger()

		mw, err := AccessLogMiddleware(AccessLogConfig{Logger: logger, ErrorsOnly: true})
		require.NoError(t, err)

		rt := newTestRouter(t, nil, mw)
		do(rt, httptest.NewRequest(http.MethodGet, "/api/notes", nil))
		do(rt, httptest.NewRequest(http.MethodGet, "/missing", nil))

		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "/missing", logs.All()[0].ContextMap()["path"])
	})

	t.Run("slow requests bypass errors only", func(t *testing.T) {
		logger, logs := observedLogger()

		mw, err := AccessLogMiddleware(AccessLogConfig{
			Logger:        logger,
			ErrorsOnly:    true,
			SlowThreshold: 10 * time.Millisecond,
		})
		require.NoError(t, err)

		rt := newTestRouter(t, func(mc *mux.Context) (*mux.Response, error) {
			time.Sleep(20 * time.Millisecond)
			return okHandler(mc)
		}, mw)
		do(rt, httptest.NewRequest(http.MethodGet, "/api/notes", nil))

		require.Equal(t, 1, logs.Len())
		assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)
		assert.Equal(t, true, logs.All()[0].ContextMap()["slow"])
	})
}
