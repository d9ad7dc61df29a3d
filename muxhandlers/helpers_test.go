package muxhandlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vitalvas/edgenotes/mux"
)

func okHandler(_ *mux.Context) (*mux.Response, error) {
	return mux.Text(http.StatusOK, "ok"), nil
}

// newTestRouter builds a router with GET and POST handlers on /api/notes,
// a handler for every verb on /any and the given middleware declared on "/". Unmatched paths are answered
// by a 404 asset fetcher.
func newTestRouter(t testing.TB, handler mux.HandlerFunc, mws ...mux.HandlerFunc) *mux.Router {
	t.Helper()

	if handler == nil {
		handler = okHandler
	}

	table, err := mux.NewTable([]mux.Route{
		{Path: "/api/notes", Mount: "/api", Method: http.MethodGet, Handlers: []mux.HandlerFunc{handler}},
		{Path: "/api/notes", Mount: "/api", Method: http.MethodPost, Handlers: []mux.HandlerFunc{handler}},
		{Path: "/any", Handlers: []mux.HandlerFunc{handler}},
		{Path: "/", Middlewares: mws},
	})
	require.NoError(t, err)

	rt := mux.NewRouter(table)
	rt.Assets = mux.FetcherFunc(func(_ *http.Request) (*mux.Response, error) {
		return mux.Text(http.StatusNotFound, "asset not found"), nil
	})

	return rt
}

func do(rt http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	rt.ServeHTTP(w, r)

	return w
}
