package mux

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// HandlerFunc is the signature of middleware and route handlers.
//
// A handler may return a response directly, which ends the chain, or call
// Context.Next to run the rest of the chain first. A middleware that
// returns a nil response and nil error delegates to the rest of the chain.
// A route handler must always return a response.
type HandlerFunc func(c *Context) (*Response, error)

var (
	// ErrNoResponse is returned when a route handler returns neither a
	// response nor an error.
	ErrNoResponse = errors.New("mux: handler returned no response")

	// ErrInvalidData is returned by SetData when given a nil map.
	ErrInvalidData = errors.New("mux: context data must be a non-nil map")
)

// Context is the view of a request handed to one handler in the chain.
// A new Context is created for every step; the request, the data map and
// the pass-through flag are shared across the whole chain.
type Context struct {
	chain  *chain
	step   Step
	called bool
	res    *Response
	err    error
}

// Request returns the request as currently seen by the chain.
func (c *Context) Request() *http.Request {
	return c.chain.request
}

// Context returns the request context.
func (c *Context) Context() context.Context {
	return c.chain.request.Context()
}

// Params returns the parameters matched by the step's route pattern.
func (c *Context) Params() Params {
	return c.step.Params
}

// Param returns the first value of a route parameter.
func (c *Context) Param(name string) string {
	return c.step.Params.Get(name)
}

// FunctionPath returns the matched portion of the request path: the mount
// prefix for middleware and the route match for handlers.
func (c *Context) FunctionPath() string {
	return c.step.Path
}

// Route returns the declared route of the running handler.
func (c *Context) Route() Route {
	return c.step.Route()
}

// Env returns the host bindings configured on the router.
func (c *Context) Env() map[string]any {
	return c.chain.router.Env
}

// Data returns the map shared by every handler of the request.
func (c *Context) Data() map[string]any {
	return c.chain.data
}

// SetData replaces the shared data map.
func (c *Context) SetData(data map[string]any) error {
	if data == nil {
		return ErrInvalidData
	}

	c.chain.data = data

	return nil
}

// Table returns the routing table the request is dispatched over.
func (c *Context) Table() *Table {
	return c.chain.router.table
}

// MatchedRoute returns the pattern of the route whose handler produced the
// response, or an empty string if none ran. It is meaningful after Next
// returns.
func (c *Context) MatchedRoute() string {
	return c.chain.matchedRoute
}

// PassThroughOnException makes the router serve the static asset fallback
// instead of failing when a later handler returns an error.
func (c *Context) PassThroughOnException() {
	c.chain.passThrough = true
}

// WaitUntil runs fn in the background. The router waits for it on Drain.
// The context given to fn is not cancelled when the request ends.
func (c *Context) WaitUntil(fn func(ctx context.Context) error) {
	ctx := context.WithoutCancel(c.Context())
	c.chain.router.background.Go(func() error {
		return fn(ctx)
	})
}

// Next runs the rest of the chain and returns its response. Calling Next
// again returns the same result without running anything.
func (c *Context) Next() (*Response, error) {
	if c.called {
		return c.res, c.err
	}

	c.called = true
	c.res, c.err = c.chain.next()

	return c.res, c.err
}

// NextWith replaces the request for the rest of the chain and runs it.
func (c *Context) NextWith(r *http.Request) (*Response, error) {
	if !c.called {
		c.chain.request = r
	}

	return c.Next()
}

// NextURL rewrites the request URL, resolved against the current one, for
// the rest of the chain and runs it.
func (c *Context) NextURL(ref string) (*Response, error) {
	if c.called {
		return c.Next()
	}

	cur := c.chain.request

	u, err := cur.URL.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("mux: invalid url %q: %w", ref, err)
	}

	r := cur.Clone(cur.Context())
	r.URL = u
	r.RequestURI = u.RequestURI()

	if u.Host != "" {
		r.Host = u.Host
	}

	return c.NextWith(r)
}
