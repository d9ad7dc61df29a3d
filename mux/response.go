package mux

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// Response is the result of a handler.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// NewResponse returns a response with the given status, headers and body.
// A nil header is replaced by an empty one.
func NewResponse(code int, header http.Header, body []byte) *Response {
	if header == nil {
		header = make(http.Header)
	}

	return &Response{
		StatusCode: code,
		Header:     header,
		Body:       body,
	}
}

// JSON encodes v as JSON with the given status code. The Content-Type
// header is set to "application/json". If encoding fails, a 500 Internal
// Server Error response is returned instead.
func JSON(code int, v any) *Response {
	body, err := json.Marshal(v)
	if err != nil {
		return Text(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}

	res := NewResponse(code, nil, append(body, '\n'))
	res.Header.Set("Content-Type", "application/json")

	return res
}

// Text returns a plain text response.
func Text(code int, s string) *Response {
	res := NewResponse(code, nil, []byte(s))
	res.Header.Set("Content-Type", "text/plain; charset=utf-8")

	return res
}

// Blob returns a response with an arbitrary content type.
func Blob(code int, contentType string, data []byte) *Response {
	res := NewResponse(code, nil, data)
	if contentType != "" {
		res.Header.Set("Content-Type", contentType)
	}

	return res
}

// Empty returns a response without a body.
func Empty(code int) *Response {
	return NewResponse(code, nil, nil)
}

// isNullBodyStatus reports whether a response with the status must not
// carry a body.
func isNullBodyStatus(code int) bool {
	switch code {
	case http.StatusSwitchingProtocols,
		http.StatusNoContent,
		http.StatusResetContent,
		http.StatusNotModified:
		return true
	}

	return false
}

// normalize fills in defaults and drops the body of null-body statuses.
func (r *Response) normalize() *Response {
	if r.StatusCode == 0 {
		r.StatusCode = http.StatusOK
	}

	if r.Header == nil {
		r.Header = make(http.Header)
	}

	if isNullBodyStatus(r.StatusCode) {
		r.Body = nil
		r.Header.Del("Content-Length")
	}

	return r
}

// Clone returns a deep copy of the response.
func (r *Response) Clone() *Response {
	return &Response{
		StatusCode: r.StatusCode,
		Header:     r.Header.Clone(),
		Body:       append([]byte(nil), r.Body...),
	}
}

// Write sends the response to w.
func (r *Response) Write(w http.ResponseWriter) error {
	r.normalize()

	h := w.Header()
	for k, v := range r.Header {
		h[k] = v
	}

	if len(r.Body) > 0 {
		h.Set("Content-Length", strconv.Itoa(len(r.Body)))
	}

	w.WriteHeader(r.StatusCode)

	if len(r.Body) == 0 {
		return nil
	}

	_, err := w.Write(r.Body)

	return err
}
