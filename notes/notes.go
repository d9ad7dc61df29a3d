// Package notes implements the Edge Notes HTTP endpoints and their route
// table.
package notes

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/vitalvas/edgenotes/ai"
	"github.com/vitalvas/edgenotes/images"
	"github.com/vitalvas/edgenotes/kv"
	"github.com/vitalvas/edgenotes/mux"
	"go.uber.org/zap"
)

// ErrNoStore is returned by New when no KV store is configured.
var ErrNoStore = errors.New("notes: kv store is required")

// ErrAIUnavailable is reported when an AI endpoint is called without a
// configured runner.
var ErrAIUnavailable = errors.New("notes: ai runner is not configured")

// ImageStore holds binary images such as the logo.
type ImageStore interface {
	Get(ctx context.Context, id string) (*images.Image, error)
	Put(ctx context.Context, img *images.Image) error
	Ping(ctx context.Context) error
}

// Config configures the endpoints.
type Config struct {
	// Store holds notes, session pointers and cached AI results. Required.
	Store kv.Store

	// Images holds the logo. When nil the logo endpoints answer 404 and
	// 503.
	Images ImageStore

	// AI runs the text operations. When nil they answer 503.
	AI ai.Runner

	// Model defaults to ai.DefaultModel.
	Model string

	// CacheAI stores AI results in Store and serves repeats from it.
	CacheAI bool

	// TurnstileSecret and SiteKey are only reported by the health
	// endpoint.
	TurnstileSecret bool
	SiteKey         string

	// Logger defaults to a no-op logger.
	Logger *zap.Logger

	// NewKey generates note keys. Defaults to uuid.NewString.
	NewKey func() string

	// Now defaults to time.Now.
	Now func() time.Time
}

// API serves the Edge Notes endpoints.
type API struct {
	cfg Config
}

// New returns the endpoints for cfg.
func New(cfg Config) (*API, error) {
	if cfg.Store == nil {
		return nil, ErrNoStore
	}

	if cfg.Model == "" {
		cfg.Model = ai.DefaultModel
	}

	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	if cfg.NewKey == nil {
		cfg.NewKey = uuid.NewString
	}

	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &API{cfg: cfg}, nil
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func errorResponse(code int, msg string, details ...string) *mux.Response {
	body := errorBody{Error: msg}
	if len(details) > 0 {
		body.Details = details[0]
	}

	return mux.JSON(code, body)
}

// bind decodes the JSON body into v. Malformed bodies produce a 400
// response; a body over the size limit is returned as an error.
func bind(c *mux.Context, v any) (*mux.Response, error) {
	err := mux.BindJSON(c.Request(), v, true)
	if err == nil {
		return nil, nil
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return nil, err
	}

	return errorResponse(http.StatusBadRequest, "Invalid JSON", err.Error()), nil
}

// contentField returns the request's content when it is a non-empty string.
func contentField(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok && s != ""
}
