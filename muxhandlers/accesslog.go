package muxhandlers

import (
	"errors"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/vitalvas/edgenotes/mux"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ErrNoLogger is returned when AccessLogConfig.Logger is nil.
var ErrNoLogger = errors.New("access log: logger must not be nil")

// AccessLogConfig configures the AccessLog middleware behaviour.
type AccessLogConfig struct {
	// Logger receives one entry per request. Required.
	Logger *zap.Logger

	// ExcludePaths lists exact request paths that are never logged.
	ExcludePaths []string

	// ExcludePrefixes lists path prefixes that are never logged.
	ExcludePrefixes []string

	// SlowThreshold marks requests that take at least this long. Slow
	// requests are logged at warn level even when ErrorsOnly is set.
	// Zero disables the check.
	SlowThreshold time.Duration

	// ErrorsOnly skips requests answered with a status below 400 unless
	// they are slow.
	ErrorsOnly bool
}

// AccessLogMiddleware returns a middleware that writes a structured log
// entry for every request after the rest of the chain has produced its
// response. Server errors are logged at error level, client errors and
// slow requests at warn level, everything else at info level.
//
// A chain error is logged with status 500 and returned unchanged.
//
// It returns ErrNoLogger if Logger is nil.
func AccessLogMiddleware(cfg AccessLogConfig) (mux.HandlerFunc, error) {
	if cfg.Logger == nil {
		return nil, ErrNoLogger
	}

	logger := cfg.Logger

	return func(mc *mux.Context) (*mux.Response, error) {
		path := mc.Request().URL.Path
		if slices.Contains(cfg.ExcludePaths, path) || hasAnyPrefix(path, cfg.ExcludePrefixes) {
			return mc.Next()
		}

		start := time.Now()
		res, err := mc.Next()
		elapsed := time.Since(start)

		// The rest of the chain may have replaced the request.
		r := mc.Request()

		status := http.StatusInternalServerError
		size := 0
		if err == nil {
			status = res.StatusCode
			size = len(res.Body)
		}

		slow := cfg.SlowThreshold > 0 && elapsed >= cfg.SlowThreshold
		if cfg.ErrorsOnly && status < http.StatusBadRequest && !slow {
			return res, err
		}

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", path),
			zap.String("route", mc.MatchedRoute()),
			zap.Int("status", status),
			zap.Int("bytes", size),
			zap.Duration("duration", elapsed),
			zap.String("client_ip", remoteHost(r.RemoteAddr)),
			zap.String("user_agent", r.UserAgent()),
		}

		if id := RequestIDFromContext(r.Context()); id != "" {
			fields = append(fields, zap.String("request_id", id))
		}

		if slow {
			fields = append(fields, zap.Bool("slow", true))
		}

		if err != nil {
			fields = append(fields, zap.Error(err))
		}

		logger.Log(accessLogLevel(status, slow), "request", fields...)

		return res, err
	}, nil
}

func accessLogLevel(status int, slow bool) zapcore.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zapcore.ErrorLevel
	case status >= http.StatusBadRequest, slow:
		return zapcore.WarnLevel
	default:
		return zapcore.InfoLevel
	}
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}

	return false
}

// remoteHost strips the port from a RemoteAddr value.
func remoteHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}

	return host
}
