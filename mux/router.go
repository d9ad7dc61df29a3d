package mux

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"
)

// Router dispatches requests over a routing table and runs the selected
// handlers as a chain.
//
// It implements the http.Handler interface, so it can be registered to serve
// requests:
//
//	table, err := mux.NewTable(routes)
//	r := mux.NewRouter(table)
//	r.Assets = assets
//	http.ListenAndServe(":8080", r)
type Router struct {
	// Assets serves requests that no handler answered. When nil, Origin is
	// used instead.
	Assets Fetcher

	// Origin is the last resort for unanswered requests when Assets is nil.
	// If nil, a ClientFetcher with http.DefaultClient is used.
	Origin Fetcher

	// Env holds host bindings exposed to handlers through Context.Env.
	Env map[string]any

	// ErrorHandler is called by ServeHTTP when the chain fails. If nil,
	// 404 Not Found is written for ErrNoOrigin and 500 Internal Server
	// Error for everything else.
	ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

	table      *Table
	background errgroup.Group
}

// NewRouter returns a router over table.
func NewRouter(table *Table) *Router {
	return &Router{
		table: table,
	}
}

// Table returns the routing table.
func (rt *Router) Table() *Table {
	return rt.table
}

// Serve runs the chain for r and returns the response. If a handler fails
// after one of its predecessors called PassThroughOnException, the static
// asset fallback is served for the in-flight request, including any
// rewrite made with NextWith or NextURL, instead of returning the error.
func (rt *Router) Serve(r *http.Request) (*Response, error) {
	ch := &chain{
		router:   rt,
		dispatch: rt.table.Dispatch(r.Method, cleanPath(requestURIPath(r.URL))),
		request:  r,
		data:     make(map[string]any),
	}

	res, err := ch.next()
	if err == nil {
		return res, nil
	}

	if !ch.passThrough {
		return nil, err
	}

	res, fallbackErr := rt.fallback(ch.request)
	if fallbackErr != nil {
		return nil, errors.Join(err, fallbackErr)
	}

	return res, nil
}

// ServeHTTP dispatches the request and writes the chain's response.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	res, err := rt.Serve(r)
	if err != nil {
		handler := rt.ErrorHandler
		if handler == nil {
			handler = defaultErrorHandler
		}

		handler(w, r, err)

		return
	}

	res.Write(w) //nolint:errcheck
}

// Drain waits for background work registered with Context.WaitUntil and
// returns the first error it produced.
func (rt *Router) Drain(ctx context.Context) error {
	done := make(chan error, 1)

	go func() {
		done <- rt.background.Wait()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (rt *Router) fallback(r *http.Request) (*Response, error) {
	var (
		res *Response
		err error
	)

	switch {
	case rt.Assets != nil:
		res, err = rt.Assets.Fetch(r)
	case rt.Origin != nil:
		res, err = rt.Origin.Fetch(r)
	default:
		res, err = ClientFetcher{}.Fetch(r)
	}

	if err != nil {
		return nil, err
	}

	if res == nil {
		return nil, fmt.Errorf("%w: fallback for %s", ErrNoResponse, r.URL.Path)
	}

	return res.normalize(), nil
}

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	if errors.Is(err, ErrNoOrigin) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
