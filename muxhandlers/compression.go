package muxhandlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"errors"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/vitalvas/edgenotes/mux"
)

// ErrInvalidCompressionLevel is returned when CompressionConfig.Level or
// CompressionConfig.BrotliLevel is outside the valid compression level range.
var ErrInvalidCompressionLevel = errors.New("compression: invalid compression level")

// CompressionConfig configures the Compression middleware behaviour.
type CompressionConfig struct {
	// Level is the compression level for both gzip and deflate. When zero,
	// flate.DefaultCompression is used. Must be in
	// [flate.HuffmanOnly, flate.BestCompression] or zero.
	Level int

	// BrotliLevel is the brotli quality. When zero, brotli.DefaultCompression
	// is used. Must be in [brotli.BestSpeed, brotli.BestCompression] or zero.
	BrotliLevel int

	// MinLength is the minimum response body size in bytes before compression
	// is applied. When zero, all non-empty responses are compressed.
	MinLength int
}

// compressor is the common interface implemented by gzip.Writer,
// flate.Writer and brotli.Writer.
type compressor interface {
	io.WriteCloser
	Reset(w io.Writer)
}

// CompressionMiddleware returns a middleware that compresses response bodies
// using brotli, gzip or deflate when the client advertises support via the
// Accept-Encoding header. The encoding with the highest quality wins; ties
// prefer br, then gzip, then deflate. A "*" entry enables gzip and deflate
// but never brotli. Writers are reused through sync.Pool instances.
//
// Compression is skipped when:
//   - The request does not accept any supported encoding
//   - The response already has a Content-Encoding header
//   - The response body is empty or shorter than MinLength
//   - The response Content-Type is an inherently compressed format
//     (image/*, video/*, audio/*, or common archive types)
//
// It returns ErrInvalidCompressionLevel if a level is outside the valid range.
func CompressionMiddleware(cfg CompressionConfig) (mux.HandlerFunc, error) {
	level := cfg.Level
	if level == 0 {
		level = flate.DefaultCompression
	}

	if level < flate.HuffmanOnly || level > flate.BestCompression {
		return nil, ErrInvalidCompressionLevel
	}

	brLevel := cfg.BrotliLevel
	if brLevel == 0 {
		brLevel = brotli.DefaultCompression
	}

	if brLevel < brotli.BestSpeed || brLevel > brotli.BestCompression {
		return nil, ErrInvalidCompressionLevel
	}

	minLength := max(cfg.MinLength, 1)

	pools := map[string]*sync.Pool{
		"br": {
			New: func() any {
				return brotli.NewWriterLevel(io.Discard, brLevel)
			},
		},
		"gzip": {
			New: func() any {
				w, _ := gzip.NewWriterLevel(io.Discard, level)
				return w
			},
		},
		"deflate": {
			New: func() any {
				w, _ := flate.NewWriter(io.Discard, level)
				return w
			},
		},
	}

	return func(mc *mux.Context) (*mux.Response, error) {
		encoding := selectEncoding(mc.Request())

		res, err := mc.Next()
		if err != nil || encoding == "" {
			return res, err
		}

		h := res.Header
		if len(res.Body) < minLength || h.Get("Content-Encoding") != "" || isCompressedContentType(h.Get("Content-Type")) {
			return res, nil
		}

		body, err := compress(pools[encoding], res.Body)
		if err != nil {
			return nil, err
		}

		res.Body = body
		h.Set("Content-Encoding", encoding)
		h.Del("Content-Length")

		if !slices.Contains(h.Values("Vary"), "Accept-Encoding") {
			h.Add("Vary", "Accept-Encoding")
		}

		return res, nil
	}, nil
}

func compress(pool *sync.Pool, data []byte) ([]byte, error) {
	w := pool.Get().(compressor)
	defer pool.Put(w)

	var buf bytes.Buffer
	w.Reset(&buf)

	if _, err := w.Write(data); err != nil {
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// selectEncoding returns the best supported encoding from the Accept-Encoding
// header: "br", "gzip", "deflate", or "" if none is accepted.
func selectEncoding(r *http.Request) string {
	var (
		brQ      float64 = -1
		gzipQ    float64 = -1
		deflateQ float64 = -1
		wildQ    float64 = -1
	)

	for part := range strings.SplitSeq(r.Header.Get("Accept-Encoding"), ",") {
		name, quality := parseEncoding(strings.TrimSpace(part))
		q := parseQuality(quality)

		switch strings.ToLower(name) {
		case "br":
			brQ = q
		case "gzip":
			gzipQ = q
		case "deflate":
			deflateQ = q
		case "*":
			wildQ = q
		}
	}

	// Apply wildcard to unspecified encodings.
	if gzipQ < 0 && wildQ >= 0 {
		gzipQ = wildQ
	}

	if deflateQ < 0 && wildQ >= 0 {
		deflateQ = wildQ
	}

	switch {
	case brQ > 0 && brQ >= gzipQ && brQ >= deflateQ:
		return "br"
	case gzipQ > 0 && gzipQ >= deflateQ:
		return "gzip"
	case deflateQ > 0:
		return "deflate"
	}

	return ""
}

// parseQuality converts a quality string to a float64.
// An empty string defaults to 1.0 (implicit full quality, RFC 9110).
func parseQuality(s string) float64 {
	if s == "" {
		return 1.0
	}

	q, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}

	return q
}

// parseEncoding splits an encoding token into the encoding name and quality
// value. For "gzip;q=0.8" it returns ("gzip", "0.8"). When no quality value
// is present it returns the encoding and an empty string.
func parseEncoding(s string) (encoding, quality string) {
	encoding, params, ok := strings.Cut(s, ";")
	if !ok {
		return strings.TrimSpace(encoding), ""
	}

	params = strings.TrimSpace(params)
	if key, val, found := strings.Cut(params, "="); found && strings.TrimSpace(key) == "q" {
		return strings.TrimSpace(encoding), strings.TrimSpace(val)
	}

	return strings.TrimSpace(encoding), ""
}

// compressedContentTypes contains content type prefixes and exact types that
// are already compressed and should not be double-compressed.
var compressedContentTypes = []string{
	"image/",
	"video/",
	"audio/",
	"application/zip",
	"application/gzip",
	"application/x-gzip",
	"application/x-bzip2",
	"application/x-xz",
	"application/zstd",
	"application/x-7z-compressed",
	"application/x-rar-compressed",
}

// isCompressedContentType reports whether the content type is an inherently
// compressed format.
func isCompressedContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))

	for _, prefix := range compressedContentTypes {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}

	return false
}
