// Package muxhandlers provides middleware and fetchers for the mux route
// table.
//
// Middleware are plain mux.HandlerFunc values attached to a route's
// Middlewares. They post-process the result of mc.Next(), rewrite the
// request with mc.NextWith, or answer directly to short-circuit the chain.
// Constructors that validate their configuration return an error.
//
// # CORS
//
// CORSMiddleware decorates every response on the routes it is attached to
// and answers preflight requests itself. When AllowedMethods is empty the
// methods are discovered from the route table. CORSPreflightHandler is the
// terminal form used on an OPTIONS route.
//
//	cors, err := muxhandlers.CORSMiddleware(muxhandlers.CORSConfig{
//	    AllowedOrigins: []string{"*"},
//	    AllowedHeaders: []string{"Content-Type", "Authorization"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	table := mux.MustNewTable([]mux.Route{
//	    {Path: "/api/save", Method: http.MethodPost, Handlers: []mux.HandlerFunc{save}},
//	    {Path: "/api", Middlewares: []mux.HandlerFunc{cors}},
//	})
//
// # Turnstile
//
// TurnstileMiddleware requires a verified challenge token in the JSON body
// of POST requests and restores the body for the handlers behind it.
//
// # Basic Auth
//
// BasicAuthMiddleware implements HTTP Basic Authentication per RFC 7617.
// Static credential comparison uses constant-time comparison.
//
// # Proxy Headers
//
// ProxyHeadersMiddleware populates request fields from reverse proxy
// headers when the peer is a trusted proxy. With TrustCloudflare set,
// CF-Connecting-IP takes priority for the client address.
//
// # Observability
//
// AccessLogMiddleware writes one zap entry per request and
// MetricsMiddleware records Prometheus request counters and latencies,
// both labelled with the route that answered.
//
// # Static Files
//
// StaticFilesFetcher serves an fs.FS as the router's Assets fetcher, the
// fallback for requests no route handler answers. Paths resolve the way a
// static site host does: "/about" finds about.html, directories serve
// their index.html, and a root 404.html answers missing assets.
package muxhandlers
