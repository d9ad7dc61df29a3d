package mux

import (
	"fmt"
	"slices"
	"strings"
)

// Route is one declared entry of a routing table.
type Route struct {
	// Path is the route pattern, for example "/api/notes/:id".
	Path string

	// Mount is the prefix the route is nested under. Defaults to "/".
	Mount string

	// Method restricts the route to one HTTP verb. An empty method matches
	// any verb.
	Method string

	// Middlewares run for every request whose path starts with both Path
	// and Mount.
	Middlewares []HandlerFunc

	// Handlers run for requests that match Path exactly. Only the first
	// matching route with handlers is used.
	Handlers []HandlerFunc
}

// clone returns a copy of r that shares no handler slices with it.
func (r Route) clone() Route {
	r.Middlewares = slices.Clone(r.Middlewares)
	r.Handlers = slices.Clone(r.Handlers)

	return r
}

// compiledRoute pairs a declared route with its matchers.
type compiledRoute struct {
	Route

	prefix *Matcher
	exact  *Matcher
	mount  *Matcher
}

func (r *compiledRoute) allowsMethod(method string) bool {
	return r.Method == "" || r.Method == method
}

// Table is an immutable, ordered set of compiled routes.
type Table struct {
	routes []compiledRoute
}

var (
	prefixMatchOptions = MatchOptions{Start: true, Decode: true}
	exactMatchOptions  = MatchOptions{Start: true, End: true, Decode: true}
)

// NewTable compiles every route pattern and mount prefix in declaration
// order. A malformed pattern aborts construction.
func NewTable(routes []Route) (*Table, error) {
	t := &Table{
		routes: make([]compiledRoute, 0, len(routes)),
	}

	for i, r := range routes {
		if r.Mount == "" {
			r.Mount = "/"
		}
		r.Method = strings.ToUpper(r.Method)

		cr := compiledRoute{Route: r.clone()}

		var err error
		if cr.prefix, err = Compile(r.Path, prefixMatchOptions); err != nil {
			return nil, fmt.Errorf("mux: route %d (%s %s): %w", i, methodLabel(r.Method), r.Path, err)
		}

		if cr.exact, err = Compile(r.Path, exactMatchOptions); err != nil {
			return nil, fmt.Errorf("mux: route %d (%s %s): %w", i, methodLabel(r.Method), r.Path, err)
		}

		if cr.mount, err = Compile(r.Mount, prefixMatchOptions); err != nil {
			return nil, fmt.Errorf("mux: route %d (%s %s): mount %q: %w", i, methodLabel(r.Method), r.Path, r.Mount, err)
		}

		t.routes = append(t.routes, cr)
	}

	return t, nil
}

// MustNewTable is like NewTable but panics on error.
func MustNewTable(routes []Route) *Table {
	t, err := NewTable(routes)
	if err != nil {
		panic(err)
	}

	return t
}

// Routes returns copies of the declared routes in declaration order, with
// defaults applied.
func (t *Table) Routes() []Route {
	out := make([]Route, len(t.routes))
	for i := range t.routes {
		out[i] = t.routes[i].clone()
	}

	return out
}

// Len returns the number of declared routes.
func (t *Table) Len() int {
	return len(t.routes)
}

// Methods returns the sorted verbs of routes with handlers whose pattern
// matches path exactly. Routes declared without a method are not listed.
func (t *Table) Methods(path string) []string {
	var methods []string

	for i := range t.routes {
		r := &t.routes[i]
		if r.Method == "" || len(r.Handlers) == 0 {
			continue
		}

		if !r.exact.MatchString(path) || !r.mount.MatchString(path) {
			continue
		}

		if !slices.Contains(methods, r.Method) {
			methods = append(methods, r.Method)
		}
	}

	slices.Sort(methods)

	return methods
}

// Dispatch starts a new lazy dispatch of method and path over the table.
func (t *Table) Dispatch(method, path string) *Dispatch {
	return &Dispatch{
		table:  t,
		method: method,
		path:   path,
		pos:    len(t.routes) - 1,
	}
}

func methodLabel(method string) string {
	if method == "" {
		return "*"
	}

	return method
}
