// Package server assembles the Edge Notes service and runs it over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/vitalvas/edgenotes/ai"
	"github.com/vitalvas/edgenotes/config"
	"github.com/vitalvas/edgenotes/images"
	"github.com/vitalvas/edgenotes/kv"
	"github.com/vitalvas/edgenotes/mux"
	"github.com/vitalvas/edgenotes/muxhandlers"
	"github.com/vitalvas/edgenotes/notes"
	"github.com/vitalvas/edgenotes/turnstile"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"
)

// Server is the assembled service.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	store    kv.Store
	images   notes.ImageStore
	runner   ai.Runner
	verifier muxhandlers.TurnstileVerifier
	registry *prometheus.Registry

	api    *notes.API
	router *mux.Router
	http   *http.Server

	closers []func() error
}

// Option overrides a dependency that would otherwise be built from the
// configuration.
type Option func(s *Server)

// WithStore sets the KV store.
func WithStore(store kv.Store) Option {
	return func(s *Server) { s.store = store }
}

// WithImages sets the image store.
func WithImages(store notes.ImageStore) Option {
	return func(s *Server) { s.images = store }
}

// WithRunner sets the AI runner.
func WithRunner(r ai.Runner) Option {
	return func(s *Server) { s.runner = r }
}

// WithVerifier sets the Turnstile verifier.
func WithVerifier(v muxhandlers.TurnstileVerifier) Option {
	return func(s *Server) { s.verifier = v }
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// New builds the service from a validated configuration.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*Server, error) {
	s := &Server{cfg: cfg, logger: logger}

	for _, opt := range opts {
		opt(s)
	}

	if err := s.init(ctx); err != nil {
		_ = s.close()
		return nil, err
	}

	return s, nil
}

func (s *Server) init(ctx context.Context) error {
	if err := s.openStores(); err != nil {
		return err
	}

	if err := s.initAI(ctx); err != nil {
		return err
	}

	if s.verifier == nil && s.cfg.Turnstile.Secret != "" {
		client, err := turnstile.New(turnstile.Config{Secret: s.cfg.Turnstile.Secret})
		if err != nil {
			return err
		}
		s.verifier = client
	}

	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	api, err := notes.New(notes.Config{
		Store:           s.store,
		Images:          s.images,
		AI:              s.runner,
		Model:           s.cfg.AI.Model,
		CacheAI:         s.cfg.AI.Cache,
		TurnstileSecret: s.verifier != nil,
		SiteKey:         s.cfg.Turnstile.SiteKey,
		Logger:          s.logger.Named("notes"),
	})
	if err != nil {
		return err
	}
	s.api = api

	mw, err := s.middleware()
	if err != nil {
		return fmt.Errorf("server: build middleware: %w", err)
	}

	table, err := api.Table(mw)
	if err != nil {
		return fmt.Errorf("server: build route table: %w", err)
	}

	s.router = mux.NewRouter(table)
	s.router.ErrorHandler = s.handleError

	if err := s.initFallback(); err != nil {
		return err
	}

	s.http = &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           h2c.NewHandler(s.router, &http2.Server{IdleTimeout: s.cfg.HTTP.IdleTimeout}),
		ReadHeaderTimeout: s.cfg.HTTP.ReadHeaderTimeout,
		IdleTimeout:       s.cfg.HTTP.IdleTimeout,
		ErrorLog:          zap.NewStdLog(s.logger.Named("http")),
	}

	return nil
}

func (s *Server) openStores() error {
	if s.store == nil {
		switch s.cfg.KV.Backend {
		case config.BackendRedis:
			client := redis.NewClient(&redis.Options{
				Addr:     s.cfg.KV.Addr,
				Password: s.cfg.KV.Password,
				DB:       s.cfg.KV.DB,
			})
			s.closers = append(s.closers, client.Close)
			s.store = kv.NewRedis(client, s.cfg.KV.Prefix)
		default:
			s.store = kv.NewMemory()
		}
	}

	if s.images == nil {
		db, err := images.Open(s.cfg.Images.Path)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, db.Close)
		s.images = db
	}

	return nil
}

func (s *Server) initAI(ctx context.Context) error {
	if s.runner != nil {
		return nil
	}

	switch s.cfg.AI.Provider {
	case config.ProviderWorkersAI:
		w, err := ai.NewWorkersAI(ai.WorkersAIConfig{
			AccountID: s.cfg.AI.AccountID,
			APIToken:  s.cfg.AI.APIToken,
			BaseURL:   s.cfg.AI.BaseURL,
		})
		if err != nil {
			return err
		}
		s.runner = w

	case config.ProviderGemini:
		g, err := ai.NewGemini(ctx, ai.GeminiConfig{
			APIKey:  s.cfg.AI.GeminiAPIKey,
			Model:   s.cfg.AI.GeminiModel,
			BaseURL: s.cfg.AI.BaseURL,
		})
		if err != nil {
			return err
		}
		s.runner = g
	}

	return nil
}

// initFallback serves static assets from the assets directory when it
// exists, otherwise forwards to the configured origin. With neither,
// unanswered requests get 404.
func (s *Server) initFallback() error {
	if dir := s.cfg.AssetsDir; dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			assets, err := muxhandlers.StaticFilesFetcher(muxhandlers.StaticFilesConfig{FS: os.DirFS(dir)})
			if err != nil {
				return fmt.Errorf("server: assets: %w", err)
			}
			s.router.Assets = assets

			return nil
		}

		s.logger.Warn("assets directory not found, static files disabled", zap.String("dir", dir))
	}

	if s.cfg.HTTP.Origin == "" {
		// Never forward to the host named by an absolute-form request.
		s.router.Origin = mux.FetcherFunc(func(*http.Request) (*mux.Response, error) {
			return nil, mux.ErrNoOrigin
		})

		return nil
	}

	target, err := url.Parse(s.cfg.HTTP.Origin)
	if err != nil {
		return fmt.Errorf("server: origin: %w", err)
	}
	s.router.Origin = mux.ClientFetcher{Target: target}

	return nil
}

// Router returns the request router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Handler returns the HTTP handler with h2c support.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("server: listen: %w", err)
	}

	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down
// gracefully: in-flight requests finish, background work drains and the
// stores are closed.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("listening", zap.String("addr", ln.Addr().String()))

		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: serve: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		return s.shutdown()
	})

	return g.Wait()
}

func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTP.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down")

	var errs []error

	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server: shutdown: %w", err))
	}

	if err := s.router.Drain(ctx); err != nil {
		errs = append(errs, fmt.Errorf("server: drain: %w", err))
	}

	if err := s.close(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Close releases the stores of a server that was never served.
func (s *Server) Close() error {
	return s.close()
}

func (s *Server) close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil

	return errors.Join(errs...)
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	if errors.Is(err, mux.ErrNoOrigin) {
		code = http.StatusNotFound
	} else {
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}

	if strings.HasPrefix(r.URL.Path, notes.APIPrefix+"/") {
		mux.JSON(code, map[string]string{"error": http.StatusText(code)}).Write(w) //nolint:errcheck
		return
	}

	http.Error(w, http.StatusText(code), code)
}
