package notes

import (
	"net/http"

	"github.com/vitalvas/edgenotes/mux"
)

// APIPrefix is the mount point of every endpoint.
const APIPrefix = "/api"

// Middleware groups the middleware attached at each level of the table.
// Levels run from the outermost to the innermost: Root, API, Post, then
// Upload on the logo upload route only.
type Middleware struct {
	// Root wraps every request, including static assets.
	Root []mux.HandlerFunc

	// API wraps every request under /api.
	API []mux.HandlerFunc

	// Post wraps POST requests under /api.
	Post []mux.HandlerFunc

	// Upload guards the logo upload.
	Upload []mux.HandlerFunc

	// Preflight answers OPTIONS requests under /api. Nil leaves them to
	// the static fallback.
	Preflight mux.HandlerFunc

	// Metrics serves MetricsPath when both are set.
	Metrics     mux.HandlerFunc
	MetricsPath string
}

// Routes returns the declared route table. Terminal routes come first;
// middleware routes follow from the innermost to the outermost level, as
// the middleware pass visits routes from the last declared to the first.
func (a *API) Routes(mw Middleware) []mux.Route {
	api := func(method, path string, h mux.HandlerFunc) mux.Route {
		return mux.Route{
			Path:     APIPrefix + path,
			Mount:    APIPrefix,
			Method:   method,
			Handlers: []mux.HandlerFunc{h},
		}
	}

	upload := api(http.MethodPost, "/upload-logo", a.UploadLogo)
	upload.Middlewares = mw.Upload

	routes := []mux.Route{
		api(http.MethodPost, "/bullets", a.Bullets),
		api(http.MethodPost, "/format", a.Format),
		api(http.MethodGet, "/health", a.Health),
		api(http.MethodPost, "/health", a.Health),
		api(http.MethodPost, "/load", a.Load),
		api(http.MethodGet, "/logo", a.Logo),
		api(http.MethodPost, "/rewrite", a.Rewrite),
		api(http.MethodPost, "/save", a.Save),
		api(http.MethodPost, "/style", a.Style),
		api(http.MethodGet, "/styles", a.ListStyles),
		api(http.MethodPost, "/summarize", a.Summarize),
		api(http.MethodPost, "/translate", a.Translate),
		upload,
	}

	if mw.Metrics != nil && mw.MetricsPath != "" {
		routes = append(routes, mux.Route{
			Path:     mw.MetricsPath,
			Method:   http.MethodGet,
			Handlers: []mux.HandlerFunc{mw.Metrics},
		})
	}

	if mw.Preflight != nil {
		routes = append(routes, mux.Route{
			Path:        APIPrefix,
			Mount:       APIPrefix,
			Method:      http.MethodOptions,
			Middlewares: []mux.HandlerFunc{mw.Preflight},
		})
	}

	routes = append(routes,
		mux.Route{Path: APIPrefix, Mount: APIPrefix, Method: http.MethodPost, Middlewares: mw.Post},
		mux.Route{Path: APIPrefix, Mount: APIPrefix, Middlewares: mw.API},
		mux.Route{Path: "/", Middlewares: mw.Root},
	)

	return routes
}

// Table compiles Routes into a route table.
func (a *API) Table(mw Middleware) (*mux.Table, error) {
	return mux.NewTable(a.Routes(mw))
}

// ListStyles returns the available styles grouped by category.
func (a *API) ListStyles(_ *mux.Context) (*mux.Response, error) {
	return mux.JSON(http.StatusOK, map[string]any{"default": DefaultStyle, "styles": Styles()}), nil
}
