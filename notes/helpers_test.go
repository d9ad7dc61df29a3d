package notes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vitalvas/edgenotes/ai"
	"github.com/vitalvas/edgenotes/images"
	"github.com/vitalvas/edgenotes/kv"
	"github.com/vitalvas/edgenotes/mux"
)

var fixedNow = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

// fakeRunner records runs and answers with a fixed output.
type fakeRunner struct {
	mu     sync.Mutex
	inputs []ai.Input
	models []string

	out *ai.Output
	err error
}

func (f *fakeRunner) Run(_ context.Context, model string, in ai.Input) (*ai.Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.inputs = append(f.inputs, in)
	f.models = append(f.models, model)

	if f.err != nil {
		return nil, f.err
	}

	return f.out, nil
}

func (f *fakeRunner) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.inputs)
}

// failingStore fails every operation.
type failingStore struct{}

var errStoreDown = errors.New("store down")

func (failingStore) Get(context.Context, string) (string, error) { return "", errStoreDown }
func (failingStore) Put(context.Context, string, string, kv.Metadata) error {
	return errStoreDown
}
func (failingStore) Metadata(context.Context, string) (kv.Metadata, error) { return nil, errStoreDown }

type testEnv struct {
	api    *API
	router *mux.Router
	store  *kv.Memory
	images *images.Store
	runner *fakeRunner
}

func newTestEnv(t *testing.T, mutate ...func(cfg *Config)) *testEnv {
	t.Helper()

	imgs, err := images.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { imgs.Close() })

	env := &testEnv{
		store:  kv.NewMemory(),
		images: imgs,
		runner: &fakeRunner{out: &ai.Output{Response: "generated"}},
	}

	cfg := Config{
		Store:   env.store,
		Images:  imgs,
		AI:      env.runner,
		CacheAI: true,
		NewKey:  func() string { return "key-1" },
		Now:     func() time.Time { return fixedNow },
	}

	for _, m := range mutate {
		m(&cfg)
	}

	env.api, err = New(cfg)
	require.NoError(t, err)

	table, err := env.api.Table(Middleware{})
	require.NoError(t, err)

	env.router = mux.NewRouter(table)
	env.router.Assets = mux.FetcherFunc(func(_ *http.Request) (*mux.Response, error) {
		return mux.Text(http.StatusNotFound, "asset not found"), nil
	})

	return env
}

func (e *testEnv) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	r := httptest.NewRequest(http.MethodPost, path, &buf)
	r.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)

	return w
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

	return w
}

func (e *testEnv) drain(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, e.router.Drain(ctx))
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))

	return out
}
