// Package mux implements a table-driven request router with ordered
// middleware dispatch and a static asset fallback.
//
// The package implements routing semantics based on:
//   - RFC 9110 (HTTP Semantics, successor to RFC 7231)
//   - RFC 3986 (URIs)
//
// # Route Table
//
// Routes are declared once, as data, and compiled into an immutable table:
//
//	table, err := mux.NewTable([]mux.Route{
//		{Path: "/api/save", Mount: "/api", Method: http.MethodPost, Handlers: []mux.HandlerFunc{save}},
//		{Path: "/api", Mount: "/api", Method: http.MethodPost, Middlewares: []mux.HandlerFunc{verify}},
//		{Path: "/", Middlewares: []mux.HandlerFunc{recovery, accessLog}},
//	})
//
// A malformed pattern makes NewTable fail, so a bad table never serves
// traffic.
//
// # Path Patterns
//
// Patterns use ":name" parameters, optional "{...}" groups, custom
// expressions in parentheses and the "?", "*" and "+" modifiers:
//
//	/api/notes/:id
//	/api/notes/:id(\d+)
//	/files/:path*
//	/book{s}?
//	/:from-:to
//
// Matching is case-insensitive and tolerates one trailing slash unless the
// Sensitive and Strict options are set. A "*" or "+" parameter yields one
// value per segment. Parameters are percent-decoded after matching.
//
// # Pattern Macros
//
// A custom expression that names a macro is replaced by the macro:
//
//	/api/notes/:id(uuid)
//	/archive/:day(date)
//
// Available macros:
//
//	uuid     - RFC 4122 UUID (e.g. 550e8400-e29b-41d4-a716-446655440000)
//	int      - unsigned integer (e.g. 42)
//	float    - decimal number (e.g. 3.14, 42, .5)
//	slug     - URL-safe slug (e.g. my-post-title)
//	alpha    - alphabetic characters (e.g. hello)
//	alphanum - alphanumeric characters (e.g. abc123)
//	date     - ISO 8601 date (e.g. 2024-01-15)
//	hex      - hexadecimal string (e.g. deadBEEF)
//
// # Dispatch Order
//
// For every request the table yields middleware first and route handlers
// last. Middleware is collected from every route whose pattern and mount
// both prefix-match the request path, walking the table from the last
// declared route to the first, so entries declared later wrap entries
// declared earlier. Route handlers come from the first declared route
// whose pattern matches the path exactly; later matches never run.
//
// # Handlers
//
// Middleware and route handlers share one signature:
//
//	func(c *mux.Context) (*mux.Response, error)
//
// A handler ends the chain by returning a response, or runs the rest of
// the chain with c.Next and decorates its result:
//
//	func cors(c *mux.Context) (*mux.Response, error) {
//		res, err := c.Next()
//		if err != nil {
//			return nil, err
//		}
//		res.Header.Set("Access-Control-Allow-Origin", "*")
//		return res, nil
//	}
//
// Middleware may return (nil, nil) to delegate to the rest of the chain.
// A route handler returning (nil, nil) fails with ErrNoResponse.
//
// When no handler is left, the router asks Router.Assets for the request,
// then Router.Origin. Responses with status 101, 204, 205 or 304 never
// carry a body.
package mux
