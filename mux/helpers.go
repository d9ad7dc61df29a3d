package mux

import (
	"net/url"
	"path"
)

// cleanPath returns the canonical path for p, eliminating . and .. elements
// per RFC 3986 Section 5.2.4 (remove dot segments).
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	np := path.Clean(p)
	// path.Clean removes trailing slash except for root;
	// put the trailing slash back if necessary.
	if p[len(p)-1] == '/' && np != "/" {
		np += "/"
	}
	return np
}

// requestURIPath returns the percent-encoded path of u per RFC 3986
// Section 2.1. Parameters are decoded after matching, so an encoded slash
// never splits a segment.
func requestURIPath(u *url.URL) string {
	return u.EscapedPath()
}
