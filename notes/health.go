package notes

import (
	"context"
	"errors"
	"net/http"

	"github.com/vitalvas/edgenotes/kv"
	"github.com/vitalvas/edgenotes/mux"
	"golang.org/x/sync/errgroup"
)

const healthCheckKey = "__health_check__"

// Health is the body of the health endpoint.
type Health struct {
	OK              bool `json:"ok"`
	AI              bool `json:"ai"`
	KV              bool `json:"kv"`
	KVReadable      bool `json:"kvReadable"`
	Images          bool `json:"images"`
	ImagesReadable  bool `json:"imagesReadable"`
	TurnstileSecret bool `json:"turnstileSecret"`
	SiteKeyPresent  bool `json:"siteKeyPresent"`
}

// Health reports which bindings are configured and probes the stores
// concurrently. It never fails; probe errors show as unreadable stores.
func (a *API) Health(c *mux.Context) (*mux.Response, error) {
	return mux.JSON(http.StatusOK, a.CheckHealth(c.Context())), nil
}

// CheckHealth runs the store probes.
func (a *API) CheckHealth(ctx context.Context) Health {
	h := Health{
		OK:              true,
		AI:              a.cfg.AI != nil,
		KV:              a.cfg.Store != nil,
		Images:          a.cfg.Images != nil,
		TurnstileSecret: a.cfg.TurnstileSecret,
		SiteKeyPresent:  a.cfg.SiteKey != "",
	}

	var g errgroup.Group

	g.Go(func() error {
		_, err := a.cfg.Store.Get(ctx, healthCheckKey)
		h.KVReadable = err == nil || errors.Is(err, kv.ErrNotFound)

		return nil
	})

	if a.cfg.Images != nil {
		g.Go(func() error {
			h.ImagesReadable = a.cfg.Images.Ping(ctx) == nil
			return nil
		})
	}

	g.Wait() //nolint:errcheck

	return h
}
