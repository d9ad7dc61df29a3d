package mux

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func named(name string) HandlerFunc {
	return func(_ *Context) (*Response, error) {
		return Text(http.StatusOK, name), nil
	}
}

func TestNewTable(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		table, err := NewTable([]Route{
			{Path: "/api/save", Method: "post", Handlers: []HandlerFunc{named("save")}},
			{Path: "/api", Mount: "/api", Middlewares: []HandlerFunc{named("cors")}},
		})
		require.NoError(t, err)

		routes := table.Routes()
		require.Len(t, routes, 2)
		assert.Equal(t, 2, table.Len())

		assert.Equal(t, "/", routes[0].Mount)
		assert.Equal(t, http.MethodPost, routes[0].Method)
		assert.Equal(t, "/api", routes[1].Mount)
		assert.Equal(t, "", routes[1].Method)
	})

	t.Run("keeps declaration order", func(t *testing.T) {
		paths := []string{"/api/bullets", "/api/format", "/api/health", "/api/load", "/api"}

		var declared []Route
		for _, p := range paths {
			declared = append(declared, Route{Path: p, Mount: "/api", Method: http.MethodPost, Handlers: []HandlerFunc{named(p)}})
		}

		table, err := NewTable(declared)
		require.NoError(t, err)

		var got []string
		for _, r := range table.Routes() {
			got = append(got, r.Path)
		}
		assert.Equal(t, paths, got)
	})

	t.Run("malformed route pattern names the route", func(t *testing.T) {
		_, err := NewTable([]Route{
			{Path: "/ok", Handlers: []HandlerFunc{named("ok")}},
			{Path: "/:a:b", Method: http.MethodGet, Handlers: []HandlerFunc{named("bad")}},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "route 1 (GET /:a:b)")
		assert.Contains(t, err.Error(), "must have text between two parameters")
	})

	t.Run("malformed mount pattern", func(t *testing.T) {
		_, err := NewTable([]Route{
			{Path: "/api/x", Mount: "/(", Handlers: []HandlerFunc{named("x")}},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), `mount "/("`)
	})

	t.Run("repeat without prefix fails", func(t *testing.T) {
		_, err := NewTable([]Route{{Path: ":rest*"}})
		assert.Error(t, err)
	})

	t.Run("empty table", func(t *testing.T) {
		table, err := NewTable(nil)
		require.NoError(t, err)
		assert.Empty(t, table.Routes())
	})

	t.Run("MustNewTable panics", func(t *testing.T) {
		assert.Panics(t, func() {
			MustNewTable([]Route{{Path: "/:a:b"}})
		})
	})
}

func TestTableMethods(t *testing.T) {
	table := MustNewTable([]Route{
		{Path: "/api/health", Mount: "/api", Method: http.MethodPost, Handlers: []HandlerFunc{named("a")}},
		{Path: "/api/health", Mount: "/api", Method: http.MethodGet, Handlers: []HandlerFunc{named("b")}},
		{Path: "/api/health", Mount: "/api", Method: http.MethodGet, Handlers: []HandlerFunc{named("c")}},
		{Path: "/api", Mount: "/api", Method: http.MethodDelete, Middlewares: []HandlerFunc{named("mw")}},
		{Path: "/api/:any", Mount: "/api", Handlers: []HandlerFunc{named("any")}},
	})

	assert.Equal(t, []string{http.MethodGet, http.MethodPost}, table.Methods("/api/health"))
	assert.Empty(t, table.Methods("/api"))
	assert.Empty(t, table.Methods("/other"))
}

func TestTableIsImmutable(t *testing.T) {
	declared := []Route{
		{Path: "/api/x", Middlewares: []HandlerFunc{named("mw")}, Handlers: []HandlerFunc{named("h")}},
	}
	table := MustNewTable(declared)

	declared[0].Handlers[0] = named("declared")

	routes := table.Routes()
	routes[0].Handlers[0] = named("listed")
	routes[0].Middlewares = append(routes[0].Middlewares, named("appended"))

	for step := range table.Dispatch(http.MethodGet, "/api/x").All() {
		r := step.Route()
		r.Handlers[0] = named("stepped")
		r.Middlewares[0] = named("stepped")
	}

	rt := NewRouter(MustNewTable([]Route{
		{Path: "/api/x", Handlers: []HandlerFunc{func(c *Context) (*Response, error) {
			r := c.Route()
			r.Handlers[0] = named("context")
			return Text(http.StatusOK, "ok"), nil
		}}},
	}))
	assert.Equal(t, "ok", serve(t, rt, http.MethodGet, "/api/x").Body.String())
	assert.Equal(t, "ok", serve(t, rt, http.MethodGet, "/api/x").Body.String())

	assert.Equal(t, []string{"mw", "h"}, stepNames(t, table.Dispatch(http.MethodGet, "/api/x")))
	assert.Len(t, table.Routes()[0].Middlewares, 1)
}

func TestStepRouteZeroValue(t *testing.T) {
	assert.Equal(t, Route{}, Step{}.Route())
}
