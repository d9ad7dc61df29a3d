package muxhandlers

import (
	"os"

	"github.com/vitalvas/edgenotes/mux"
)

// ServerConfig configures the server identification headers.
type ServerConfig struct {
	// Hostname is sent as X-Server-Hostname. When empty, the first
	// non-empty variable of HostnameEnv is used, then os.Hostname.
	Hostname    string
	HostnameEnv []string

	// Product, when set, is sent as the Server header, e.g. "edgenotes/1.2.0".
	Product string
}

// ServerMiddleware returns a middleware that identifies the answering
// instance on every response. The hostname is resolved once.
func ServerMiddleware(cfg ServerConfig) (mux.HandlerFunc, error) {
	hostname, err := resolveHostname(cfg.Hostname, cfg.HostnameEnv)
	if err != nil {
		return nil, err
	}

	return func(mc *mux.Context) (*mux.Response, error) {
		res, err := mc.Next()
		if err != nil {
			return nil, err
		}

		res.Header.Set("X-Server-Hostname", hostname)
		if cfg.Product != "" {
			res.Header.Set("Server", cfg.Product)
		}

		return res, nil
	}, nil
}

func resolveHostname(name string, env []string) (string, error) {
	if name != "" {
		return name, nil
	}

	for _, key := range env {
		if v := os.Getenv(key); v != "" {
			return v, nil
		}
	}

	return os.Hostname()
}
