package muxhandlers

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/vitalvas/edgenotes/mux"
)

// ErrStaticFilesNoFS is returned when StaticFilesConfig.FS is nil.
var ErrStaticFilesNoFS = errors.New("static files: file system must not be nil")

// ErrStaticFilesNoIndexHTML is returned when SPAFallback is enabled
// but the file system does not contain an index.html at the root.
var ErrStaticFilesNoIndexHTML = errors.New("static files: index.html is required when SPA fallback is enabled")

// DefaultNotFoundPage is served with a 404 status for missing assets when
// it exists at the root of the file system.
const DefaultNotFoundPage = "404.html"

// StaticFilesConfig configures the static asset fetcher.
type StaticFilesConfig struct {
	// FS holds the assets. Required.
	FS fs.FS

	// NotFoundPage is served with status 404 when no asset matches.
	// Defaults to DefaultNotFoundPage; a missing page yields a plain 404.
	NotFoundPage string

	// SPAFallback serves the root index.html with status 200 for every
	// path that matches no asset.
	SPAFallback bool
}

type staticFiles struct {
	fsys     fs.FS
	notFound string
	spa      bool
}

// StaticFilesFetcher returns a fetcher that answers GET and HEAD requests
// from cfg.FS, meant for Router.Assets. A request path resolves, in order,
// to the file itself, the file with an ".html" extension, and the index.html
// of the directory, so "/about" serves about.html. Directories are never
// listed. Responses carry a content ETag and honour If-None-Match.
func StaticFilesFetcher(cfg StaticFilesConfig) (mux.Fetcher, error) {
	if cfg.FS == nil {
		return nil, ErrStaticFilesNoFS
	}

	if cfg.SPAFallback {
		if _, err := fs.Stat(cfg.FS, "index.html"); err != nil {
			return nil, ErrStaticFilesNoIndexHTML
		}
	}

	notFound := cfg.NotFoundPage
	if notFound == "" {
		notFound = DefaultNotFoundPage
	}

	sf := &staticFiles{fsys: cfg.FS, notFound: notFound, spa: cfg.SPAFallback}

	return mux.FetcherFunc(sf.fetch), nil
}

func (sf *staticFiles) fetch(r *http.Request) (*mux.Response, error) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		res := mux.Text(http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
		res.Header.Set("Allow", "GET, HEAD")

		return res, nil
	}

	for _, name := range assetCandidates(r.URL.Path) {
		data, err := sf.read(name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("static files: %s: %w", name, err)
		}

		return asset(r, http.StatusOK, name, data), nil
	}

	if sf.spa {
		if data, err := sf.read("index.html"); err == nil {
			return asset(r, http.StatusOK, "index.html", data), nil
		}
	}

	if data, err := sf.read(sf.notFound); err == nil {
		return asset(r, http.StatusNotFound, sf.notFound, data), nil
	}

	return mux.Text(http.StatusNotFound, http.StatusText(http.StatusNotFound)), nil
}

// read returns the contents of a regular file; directories read as missing.
func (sf *staticFiles) read(name string) ([]byte, error) {
	info, err := fs.Stat(sf.fsys, name)
	if err != nil {
		return nil, err
	}

	if info.IsDir() {
		return nil, fs.ErrNotExist
	}

	return fs.ReadFile(sf.fsys, name)
}

func assetCandidates(urlPath string) []string {
	name := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	if name == "" {
		return []string{"index.html"}
	}

	if !fs.ValidPath(name) {
		return nil
	}

	if strings.HasSuffix(urlPath, "/") {
		return []string{name + "/index.html"}
	}

	return []string{name, name + ".html", name + "/index.html"}
}

func asset(r *http.Request, code int, name string, data []byte) *mux.Response {
	sum := sha256.Sum256(data)
	etag := `"` + hex.EncodeToString(sum[:8]) + `"`

	if code == http.StatusOK && etagMatches(r.Header.Get("If-None-Match"), etag) {
		res := mux.Empty(http.StatusNotModified)
		res.Header.Set("ETag", etag)

		return res
	}

	ctype := mime.TypeByExtension(path.Ext(name))
	if ctype == "" {
		ctype = http.DetectContentType(data)
	}

	res := mux.Blob(code, ctype, data)
	res.Header.Set("ETag", etag)

	return res
}

func etagMatches(header, etag string) bool {
	for candidate := range strings.SplitSeq(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}

	return false
}
