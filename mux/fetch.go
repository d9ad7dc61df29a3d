package mux

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// ErrNoOrigin is returned by ClientFetcher when a request has no absolute
// URL and no target is configured.
var ErrNoOrigin = errors.New("mux: request has no origin to fetch from")

// Fetcher produces a response for a request outside the route table, for
// example from a static asset store or an upstream origin.
type Fetcher interface {
	Fetch(r *http.Request) (*Response, error)
}

// FetcherFunc is an adapter to allow the use of ordinary functions as
// fetchers.
type FetcherFunc func(r *http.Request) (*Response, error)

// Fetch calls f(r).
func (f FetcherFunc) Fetch(r *http.Request) (*Response, error) {
	return f(r)
}

// HandlerFetcher returns a fetcher that records the output of a standard
// http.Handler.
func HandlerFetcher(h http.Handler) Fetcher {
	return FetcherFunc(func(r *http.Request) (*Response, error) {
		return record(h, r), nil
	})
}

// HTTPHandler adapts a standard http.Handler into a route handler. The
// handler sees the chain's current request, with the route context
// reachable through FromRequest.
func HTTPHandler(h http.Handler) HandlerFunc {
	return func(c *Context) (*Response, error) {
		r := c.Request()
		r = r.WithContext(context.WithValue(r.Context(), ctxKey, c))

		return record(h, r), nil
	}
}

// FromRequest returns the route context attached by HTTPHandler.
func FromRequest(r *http.Request) (*Context, bool) {
	c, ok := r.Context().Value(ctxKey).(*Context)
	return c, ok
}

type contextKey struct{}

var ctxKey = contextKey{}

// ClientFetcher forwards requests with an http.Client.
type ClientFetcher struct {
	// Client defaults to http.DefaultClient.
	Client *http.Client

	// Target, when set, replaces the scheme and host of every request.
	Target *url.URL
}

// Fetch sends r upstream and buffers the response.
func (f ClientFetcher) Fetch(r *http.Request) (*Response, error) {
	out := r.Clone(r.Context())
	out.RequestURI = ""

	if f.Target != nil {
		out.URL.Scheme = f.Target.Scheme
		out.URL.Host = f.Target.Host
		out.Host = f.Target.Host
	}

	if out.URL.Host == "" {
		return nil, ErrNoOrigin
	}

	if out.URL.Scheme == "" {
		out.URL.Scheme = "http"
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(out)
	if err != nil {
		return nil, fmt.Errorf("mux: fetch %s: %w", out.URL.Redacted(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("mux: read %s: %w", out.URL.Redacted(), err)
	}

	header := resp.Header.Clone()
	header.Del("Content-Length")

	return NewResponse(resp.StatusCode, header, body), nil
}

// responseRecorder captures what an http.Handler writes.
type responseRecorder struct {
	header      http.Header
	body        bytes.Buffer
	code        int
	wroteHeader bool
}

func (rec *responseRecorder) Header() http.Header {
	return rec.header
}

func (rec *responseRecorder) WriteHeader(code int) {
	if rec.wroteHeader {
		return
	}

	rec.code = code
	rec.wroteHeader = true
}

func (rec *responseRecorder) Write(b []byte) (int, error) {
	rec.WriteHeader(http.StatusOK)
	return rec.body.Write(b)
}

func record(h http.Handler, r *http.Request) *Response {
	rec := &responseRecorder{header: make(http.Header), code: http.StatusOK}
	h.ServeHTTP(rec, r)

	return NewResponse(rec.code, rec.header, rec.body.Bytes())
}
