package mux

import "sync"

type matcherKey struct {
	pattern string
	opts    MatchOptions
}

// matcherCache caches compiled matchers by pattern and options.
// The number of unique patterns is bounded by the number of registered
// routes, so the cache grows to a fixed size and stays there.
var matcherCache sync.Map

// compileCached returns a cached *Matcher for the given pattern and
// options, compiling and caching it on first use.
func compileCached(pattern string, opts MatchOptions) (*Matcher, error) {
	key := matcherKey{pattern: pattern, opts: opts}

	if v, ok := matcherCache.Load(key); ok {
		return v.(*Matcher), nil
	}

	m, err := newMatcher(pattern, opts)
	if err != nil {
		return nil, err
	}

	actual, _ := matcherCache.LoadOrStore(key, m)

	return actual.(*Matcher), nil
}
