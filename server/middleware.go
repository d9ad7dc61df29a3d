package server

import (
	"net/http"
	"time"

	"github.com/vitalvas/edgenotes/mux"
	"github.com/vitalvas/edgenotes/muxhandlers"
	"github.com/vitalvas/edgenotes/notes"
	"go.uber.org/zap"
)

var corsHeaders = []string{"Content-Type", "Authorization"}

// middleware builds the middleware levels of the route table.
func (s *Server) middleware() (notes.Middleware, error) {
	var mw notes.Middleware

	root, err := s.rootMiddleware()
	if err != nil {
		return mw, err
	}
	mw.Root = root

	corsCfg := muxhandlers.CORSConfig{
		AllowedOrigins: s.cfg.CORS.AllowedOrigins,
		AllowedHeaders: corsHeaders,
		MaxAge:         s.cfg.CORS.MaxAge,
	}

	cors, err := muxhandlers.CORSMiddleware(corsCfg)
	if err != nil {
		return mw, err
	}

	timeout, err := muxhandlers.TimeoutMiddleware(muxhandlers.TimeoutConfig{Duration: s.cfg.HTTP.RequestTimeout})
	if err != nil {
		return mw, err
	}
	mw.API = []mux.HandlerFunc{cors, timeout}

	// Preflight probes without an Origin header get the full method list.
	corsCfg.AllowedMethods = []string{
		http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
	}
	if mw.Preflight, err = muxhandlers.CORSPreflightHandler(corsCfg); err != nil {
		return mw, err
	}

	contentType, err := muxhandlers.ContentTypeCheckMiddleware(muxhandlers.ContentTypeCheckConfig{
		AllowedTypes:   []string{"application/json", "multipart/form-data"},
		AllowEmptyBody: true,
	})
	if err != nil {
		return mw, err
	}

	sizeLimit, err := muxhandlers.RequestSizeLimitMiddleware(muxhandlers.RequestSizeLimitConfig{MaxBytes: s.cfg.HTTP.MaxBodyBytes})
	if err != nil {
		return mw, err
	}

	mw.Post = []mux.HandlerFunc{contentType, sizeLimit}

	if len(s.cfg.Upload.Users) > 0 {
		auth, err := muxhandlers.BasicAuthMiddleware(muxhandlers.BasicAuthConfig{
			Realm:       "Edge Notes",
			Credentials: s.cfg.Upload.Users,
		})
		if err != nil {
			return mw, err
		}
		mw.Upload = []mux.HandlerFunc{auth}
	}

	if s.verifier != nil {
		bypass := []string{notes.APIPrefix + "/load"}
		// Without credentials the upload stays behind the token check.
		if len(mw.Upload) > 0 {
			bypass = append(bypass, notes.APIPrefix+"/upload-logo")
		}

		mw.Post = append(mw.Post, muxhandlers.TurnstileMiddleware(muxhandlers.TurnstileConfig{
			Verifier:       s.verifier,
			BypassSuffixes: bypass,
		}))
	}

	if s.cfg.Metrics.Enabled {
		mw.Metrics = muxhandlers.MetricsHandler(s.registry)
		mw.MetricsPath = s.cfg.Metrics.Path
	}

	return mw, nil
}

func (s *Server) rootMiddleware() ([]mux.HandlerFunc, error) {
	recovery := muxhandlers.RecoveryMiddleware(muxhandlers.RecoveryConfig{
		LogFunc: func(r *http.Request, err any) {
			s.logger.Error("panic recovered",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Any("panic", err),
				zap.String("request_id", muxhandlers.RequestIDFromContext(r.Context())),
			)
		},
	})

	requestID := muxhandlers.RequestIDMiddleware(muxhandlers.RequestIDConfig{
		GenerateFunc: muxhandlers.GenerateUUIDv7,
	})

	proxy, err := muxhandlers.ProxyHeadersMiddleware(muxhandlers.ProxyHeadersConfig{
		TrustedProxies:  s.cfg.Proxy.TrustedProxies,
		TrustCloudflare: s.cfg.Proxy.TrustCloudflare,
	})
	if err != nil {
		return nil, err
	}

	accessLog, err := muxhandlers.AccessLogMiddleware(muxhandlers.AccessLogConfig{
		Logger:        s.logger.Named("access"),
		ExcludePaths:  []string{s.cfg.Metrics.Path},
		SlowThreshold: 2 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	metrics, err := muxhandlers.MetricsMiddleware(muxhandlers.MetricsConfig{
		Registerer: s.registry,
		Namespace:  "edgenotes",
	})
	if err != nil {
		return nil, err
	}

	security, err := muxhandlers.SecurityHeadersMiddleware(muxhandlers.SecurityHeadersConfig{})
	if err != nil {
		return nil, err
	}

	hostname, err := muxhandlers.ServerMiddleware(muxhandlers.ServerConfig{
		Hostname:    s.cfg.Hostname,
		HostnameEnv: []string{"EDGENOTES_HOSTNAME", "HOSTNAME"},
		Product:     "edgenotes",
	})
	if err != nil {
		return nil, err
	}

	cache, err := muxhandlers.CacheControlMiddleware(muxhandlers.CacheControlConfig{
		Rules: []muxhandlers.CacheControlRule{
			{ContentType: "application/json", Value: "no-store", Expires: -1},
			{ContentType: "text/html", Value: "no-cache", Expires: -1},
			{ContentType: "text/css", Value: "public, max-age=3600", Expires: -1},
			{ContentType: "text/javascript", Value: "public, max-age=3600", Expires: -1},
			{ContentType: "application/javascript", Value: "public, max-age=3600", Expires: -1},
			{ContentType: "image/", Value: "public, max-age=86400", Expires: -1},
		},
		DefaultExpires: -1,
	})
	if err != nil {
		return nil, err
	}

	compression, err := muxhandlers.CompressionMiddleware(muxhandlers.CompressionConfig{MinLength: 512})
	if err != nil {
		return nil, err
	}

	return []mux.HandlerFunc{
		recovery, requestID, proxy, accessLog, metrics, security, hostname, cache, compression,
	}, nil
}
