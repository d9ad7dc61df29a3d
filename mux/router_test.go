package mux

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func text(body string) HandlerFunc {
	return func(_ *Context) (*Response, error) {
		return Text(http.StatusOK, body), nil
	}
}

func counting(counter *atomic.Int32, h HandlerFunc) HandlerFunc {
	return func(c *Context) (*Response, error) {
		counter.Add(1)
		return h(c)
	}
}

func countingFetcher(counter *atomic.Int32, body string) Fetcher {
	return FetcherFunc(func(_ *http.Request) (*Response, error) {
		counter.Add(1)
		return Text(http.StatusOK, body), nil
	})
}

func serve(t *testing.T, rt *Router, method, target string) *httptest.ResponseRecorder {
	t.Helper()

	w := httptest.NewRecorder()
	rt.ServeHTTP(w, httptest.NewRequest(method, target, nil))

	return w
}

func TestRouterServeHTTP(t *testing.T) {
	t.Run("terminal handler response is written", func(t *testing.T) {
		rt := NewRouter(MustNewTable([]Route{
			{Path: "/api/save", Mount: "/api", Method: http.MethodPost, Handlers: []HandlerFunc{
				func(_ *Context) (*Response, error) {
					return JSON(http.StatusOK, map[string]string{"key": "note:1"}), nil
				},
			}},
		}))

		w := serve(t, rt, http.MethodPost, "/api/save")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"key":"note:1"}`, w.Body.String())
	})

	t.Run("request path is cleaned before dispatch", func(t *testing.T) {
		rt := NewRouter(MustNewTable([]Route{
			{Path: "/api/x", Handlers: []HandlerFunc{text("x")}},
		}))

		w := serve(t, rt, http.MethodGet, "/api/../api/./x")
		assert.Equal(t, "x", w.Body.String())
	})

	t.Run("matching is case insensitive", func(t *testing.T) {
		rt := NewRouter(MustNewTable([]Route{
			{Path: "/api/x", Handlers: []HandlerFunc{text("x")}},
		}))

		w := serve(t, rt, http.MethodGet, "/API/X")
		assert.Equal(t, "x", w.Body.String())
	})

	t.Run("204 body is stripped", func(t *testing.T) {
		rt := NewRouter(MustNewTable([]Route{
			{Path: "/api", Method: http.MethodOptions, Handlers: []HandlerFunc{
				func(_ *Context) (*Response, error) {
					return Text(http.StatusNoContent, "should vanish"), nil
				},
			}},
		}))

		res, err := rt.Serve(httptest.NewRequest(http.MethodOptions, "/api", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, res.StatusCode)
		assert.Nil(t, res.Body)

		w := serve(t, rt, http.MethodOptions, "/api")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})

	t.Run("304 from assets is stripped", func(t *testing.T) {
		rt := NewRouter(MustNewTable(nil))
		rt.Assets = FetcherFunc(func(_ *http.Request) (*Response, error) {
			return Text(http.StatusNotModified, "cached"), nil
		})

		res, err := rt.Serve(httptest.NewRequest(http.MethodGet, "/index.html", nil))
		require.NoError(t, err)
		assert.Nil(t, res.Body)
	})
}

func TestRouterFallback(t *testing.T) {
	t.Run("no route serves exactly one asset fetch", func(t *testing.T) {
		var assets, origin, handler atomic.Int32

		rt := NewRouter(MustNewTable([]Route{
			{Path: "/api/save", Method: http.MethodPost, Handlers: []HandlerFunc{counting(&handler, text("save"))}},
		}))
		rt.Assets = countingFetcher(&assets, "asset")
		rt.Origin = countingFetcher(&origin, "origin")

		w := serve(t, rt, http.MethodGet, "/index.html")

		assert.Equal(t, "asset", w.Body.String())
		assert.Equal(t, int32(1), assets.Load())
		assert.Equal(t, int32(0), origin.Load())
		assert.Equal(t, int32(0), handler.Load())
	})

	t.Run("origin is used without assets", func(t *testing.T) {
		var origin atomic.Int32

		rt := NewRouter(MustNewTable(nil))
		rt.Origin = countingFetcher(&origin, "origin")

		w := serve(t, rt, http.MethodGet, "/anything")

		assert.Equal(t, "origin", w.Body.String())
		assert.Equal(t, int32(1), origin.Load())
	})

	t.Run("middleware runs around the fallback", func(t *testing.T) {
		var assets atomic.Int32

		rt := NewRouter(MustNewTable([]Route{
			{Path: "/", Middlewares: []HandlerFunc{
				func(c *Context) (*Response, error) {
					res, err := c.Next()
					if err != nil {
						return nil, err
					}
					res.Header.Set("X-Wrapped", "yes")
					return res, nil
				},
			}},
		}))
		rt.Assets = countingFetcher(&assets, "asset")

		w := serve(t, rt, http.MethodGet, "/style.css")

		assert.Equal(t, "yes", w.Header().Get("X-Wrapped"))
		assert.Equal(t, int32(1), assets.Load())
	})

	t.Run("default origin without absolute url is not found", func(t *testing.T) {
		rt := NewRouter(MustNewTable(nil))

		r := httptest.NewRequest(http.MethodGet, "/missing", nil)
		r.URL.Host = ""

		_, err := rt.Serve(r)
		require.ErrorIs(t, err, ErrNoOrigin)

		w := httptest.NewRecorder()
		rt.ServeHTTP(w, r)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("nil fallback response is a contract violation", func(t *testing.T) {
		rt := NewRouter(MustNewTable(nil))
		rt.Assets = FetcherFunc(func(_ *http.Request) (*Response, error) {
			return nil, nil
		})

		_, err := rt.Serve(httptest.NewRequest(http.MethodGet, "/", nil))
		assert.ErrorIs(t, err, ErrNoResponse)
	})
}

func TestRouterChain(t *testing.T) {
	t.Run("short circuit stops downstream handlers", func(t *testing.T) {
		var downstream, assets atomic.Int32

		rt := NewRouter(MustNewTable([]Route{
			{Path: "/api/x", Method: http.MethodPost, Middlewares: []HandlerFunc{
				func(_ *Context) (*Response, error) {
					return JSON(http.StatusBadRequest, map[string]string{"error": "Missing Turnstile token"}), nil
				},
				counting(&downstream, func(c *Context) (*Response, error) { return c.Next() }),
			}},
			{Path: "/api/x", Method: http.MethodPost, Handlers: []HandlerFunc{counting(&downstream, text("x"))}},
		}))
		rt.Assets = countingFetcher(&assets, "asset")

		w := serve(t, rt, http.MethodPost, "/api/x")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, int32(0), downstream.Load())
		assert.Equal(t, int32(0), assets.Load())
	})

	t.Run("nil middleware result delegates to the chain", func(t *testing.T) {
		var terminal atomic.Int32

		rt := NewRouter(MustNewTable([]Route{
			{Path: "/api", Mount: "/api", Middlewares: []HandlerFunc{
				func(_ *Context) (*Response, error) { return nil, nil },
			}},
			{Path: "/api/x", Handlers: []HandlerFunc{counting(&terminal, text("x"))}},
		}))

		w := serve(t, rt, http.MethodGet, "/api/x")

		assert.Equal(t, "x", w.Body.String())
		assert.Equal(t, int32(1), terminal.Load())
	})

	t.Run("nil result after Next reuses the continuation", func(t *testing.T) {
		var terminal atomic.Int32

		rt := NewRouter(MustNewTable([]Route{
			{Path: "/", Middlewares: []HandlerFunc{
				func(c *Context) (*Response, error) {
					if _, err := c.Next(); err != nil {
						return nil, err
					}
					again, err := c.Next()
					if err != nil {
						return nil, err
					}
					again.Header.Set("X-Seen", "1")
					return nil, nil
				},
			}},
			{Path: "/api/x", Handlers: []HandlerFunc{counting(&terminal, text("x"))}},
		}))

		w := serve(t, rt, http.MethodGet, "/api/x")

		assert.Equal(t, "x", w.Body.String())
		assert.Equal(t, "1", w.Header().Get("X-Seen"))
		assert.Equal(t, int32(1), terminal.Load())
	})

	t.Run("terminal handler without response fails", func(t *testing.T) {
		rt := NewRouter(MustNewTable([]Route{
			{Path: "/api/x", Method: http.MethodPost, Handlers: []HandlerFunc{
				func(_ *Context) (*Response, error) { return nil, nil },
			}},
		}))

		_, err := rt.Serve(httptest.NewRequest(http.MethodPost, "/api/x", nil))
		require.ErrorIs(t, err, ErrNoResponse)
		assert.Contains(t, err.Error(), "POST /api/x")

		w := serve(t, rt, http.MethodPost, "/api/x")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("terminal handler may delegate to the next handler of its route", func(t *testing.T) {
		rt := NewRouter(MustNewTable([]Route{
			{Path: "/api/x", Handlers: []HandlerFunc{
				func(c *Context) (*Response, error) {
					res, err := c.Next()
					if err != nil {
						return nil, err
					}
					res.Header.Set("X-First", "1")
					return res, nil
				},
				text("second"),
			}},
		}))

		w := serve(t, rt, http.MethodGet, "/api/x")

		assert.Equal(t, "second", w.Body.String())
		assert.Equal(t, "1", w.Header().Get("X-First"))
	})

	t.Run("middleware wraps in reverse declaration order", func(t *testing.T) {
		var trail []string

		tag := func(name string) HandlerFunc {
			return func(c *Context) (*Response, error) {
				trail = append(trail, name+">")
				res, err := c.Next()
				trail = append(trail, "<"+name)
				return res, err
			}
		}

		rt := NewRouter(MustNewTable([]Route{
			{Path: "/api/x", Method: http.MethodPost, Handlers: []HandlerFunc{
				func(_ *Context) (*Response, error) {
					trail = append(trail, "H")
					return Text(http.StatusOK, "ok"), nil
				},
			}},
			{Path: "/api", Mount: "/api", Method: http.MethodPost, Middlewares: []HandlerFunc{tag("turnstile")}},
			{Path: "/api", Mount: "/api", Middlewares: []HandlerFunc{tag("cors")}},
			{Path: "/", Middlewares: []HandlerFunc{tag("log")}},
		}))

		serve(t, rt, http.MethodPost, "/api/x")

		assert.Equal(t, []string{"log>", "cors>", "turnstile>", "H", "<turnstile", "<cors", "<log"}, trail)
	})

	t.Run("handler error propagates", func(t *testing.T) {
		boom := errors.New("boom")

		rt := NewRouter(MustNewTable([]Route{
			{Path: "/", Middlewares: []HandlerFunc{
				func(c *Context) (*Response, error) { return c.Next() },
			}},
			{Path: "/api/x", Handlers: []HandlerFunc{
				func(_ *Context) (*Response, error) { return nil, boom },
			}},
		}))

		_, err := rt.Serve(httptest.NewRequest(http.MethodGet, "/api/x", nil))
		assert.ErrorIs(t, err, boom)
	})

	t.Run("custom error handler", func(t *testing.T) {
		rt := NewRouter(MustNewTable([]Route{
			{Path: "/api/x", Handlers: []HandlerFunc{
				func(_ *Context) (*Response, error) { return nil, errors.New("boom") },
			}},
		}))
		rt.ErrorHandler = func(w http.ResponseWriter, _ *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadGateway)
		}

		w := serve(t, rt, http.MethodGet, "/api/x")

		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Contains(t, w.Body.String(), "boom")
	})
}

func TestRouterPassThroughOnException(t *testing.T) {
	failing := func(_ *Context) (*Response, error) {
		return nil, errors.New("ai backend unavailable")
	}

	t.Run("fails open to assets", func(t *testing.T) {
		var assets atomic.Int32

		rt := NewRouter(MustNewTable([]Route{
			{Path: "/", Middlewares: []HandlerFunc{
				func(c *Context) (*Response, error) {
					c.PassThroughOnException()
					return c.Next()
				},
			}},
			{Path: "/api/x", Handlers: []HandlerFunc{failing}},
		}))
		rt.Assets = countingFetcher(&assets, "fallback")

		w := serve(t, rt, http.MethodGet, "/api/x")

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "fallback", w.Body.String())
		assert.Equal(t, int32(1), assets.Load())
	})

	t.Run("fallback sees the rewritten request", func(t *testing.T) {
		var seen string

		rt := NewRouter(MustNewTable([]Route{
			{Path: "/", Middlewares: []HandlerFunc{
				func(c *Context) (*Response, error) {
					c.PassThroughOnException()
					return c.NextURL("/rewritten")
				},
			}},
			{Path: "/api/x", Handlers: []HandlerFunc{failing}},
		}))
		rt.Assets = FetcherFunc(func(r *http.Request) (*Response, error) {
			seen = r.URL.Path
			return Text(http.StatusOK, "fallback"), nil
		})

		w := serve(t, rt, http.MethodGet, "/api/x")
		assert.Equal(t, "fallback", w.Body.String())
		assert.Equal(t, "/rewritten", seen)
	})

	t.Run("without the flag the error propagates", func(t *testing.T) {
		var assets atomic.Int32

		rt := NewRouter(MustNewTable([]Route{
			{Path: "/api/x", Handlers: []HandlerFunc{failing}},
		}))
		rt.Assets = countingFetcher(&assets, "fallback")

		w := serve(t, rt, http.MethodGet, "/api/x")

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, int32(0), assets.Load())
	})

	t.Run("failing fallback joins both errors", func(t *testing.T) {
		assetErr := errors.New("assets down")

		rt := NewRouter(MustNewTable([]Route{
			{Path: "/", Middlewares: []HandlerFunc{
				func(c *Context) (*Response, error) {
					c.PassThroughOnException()
					return c.Next()
				},
			}},
			{Path: "/api/x", Handlers: []HandlerFunc{failing}},
		}))
		rt.Assets = FetcherFunc(func(_ *http.Request) (*Response, error) {
			return nil, assetErr
		})

		_, err := rt.Serve(httptest.NewRequest(http.MethodGet, "/api/x", nil))
		require.Error(t, err)
		assert.ErrorIs(t, err, assetErr)
		assert.Contains(t, err.Error(), "ai backend unavailable")
	})
}

func TestRouterDrain(t *testing.T) {
	t.Run("waits for background work", func(t *testing.T) {
		var done atomic.Bool

		rt := NewRouter(MustNewTable([]Route{
			{Path: "/api/x", Handlers: []HandlerFunc{
				func(c *Context) (*Response, error) {
					c.WaitUntil(func(ctx context.Context) error {
						time.Sleep(10 * time.Millisecond)
						done.Store(ctx.Err() == nil)
						return nil
					})
					return Text(http.StatusOK, "queued"), nil
				},
			}},
		}))

		ctx, cancel := context.WithCancel(context.Background())
		r := httptest.NewRequest(http.MethodGet, "/api/x", nil).WithContext(ctx)

		w := httptest.NewRecorder()
		rt.ServeHTTP(w, r)
		cancel()

		require.NoError(t, rt.Drain(context.Background()))
		assert.True(t, done.Load(), "background context must outlive the request")
	})

	t.Run("returns background error", func(t *testing.T) {
		bgErr := errors.New("cache write failed")

		rt := NewRouter(MustNewTable([]Route{
			{Path: "/api/x", Handlers: []HandlerFunc{
				func(c *Context) (*Response, error) {
					c.WaitUntil(func(_ context.Context) error { return bgErr })
					return Text(http.StatusOK, "ok"), nil
				},
			}},
		}))

		serve(t, rt, http.MethodGet, "/api/x")
		assert.ErrorIs(t, rt.Drain(context.Background()), bgErr)
	})

	t.Run("honours context deadline", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)

		rt := NewRouter(MustNewTable([]Route{
			{Path: "/api/x", Handlers: []HandlerFunc{
				func(c *Context) (*Response, error) {
					c.WaitUntil(func(_ context.Context) error {
						<-release
						return nil
					})
					return Text(http.StatusOK, "ok"), nil
				},
			}},
		}))

		serve(t, rt, http.MethodGet, "/api/x")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		assert.ErrorIs(t, rt.Drain(ctx), context.DeadlineExceeded)
	})

	t.Run("no background work", func(t *testing.T) {
		rt := NewRouter(MustNewTable(nil))
		assert.NoError(t, rt.Drain(context.Background()))
	})
}

func TestRouterTable(t *testing.T) {
	table := MustNewTable([]Route{{Path: "/x", Handlers: []HandlerFunc{text("x")}}})
	assert.Same(t, table, NewRouter(table).Table())
}

func BenchmarkRouterServe(b *testing.B) {
	rt := NewRouter(MustNewTable([]Route{
		{Path: "/api/x", Method: http.MethodPost, Handlers: []HandlerFunc{text("x")}},
		{Path: "/api", Mount: "/api", Middlewares: []HandlerFunc{func(c *Context) (*Response, error) { return c.Next() }}},
		{Path: "/", Middlewares: []HandlerFunc{func(c *Context) (*Response, error) { return c.Next() }}},
	}))

	r := httptest.NewRequest(http.MethodPost, "/api/x", strings.NewReader("{}"))

	b.ResetTimer()
	for b.Loop() {
		rt.Serve(r) //nolint:errcheck
	}
}
