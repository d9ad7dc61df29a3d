package mux

import (
	"fmt"
	"net/http"
)

// chain is the state of one request shared by every step.
type chain struct {
	router   *Router
	dispatch *Dispatch
	request  *http.Request
	data     map[string]any

	passThrough  bool
	matchedRoute string
}

// next runs the next step of the dispatch, or the fallback once the
// dispatch is exhausted.
func (ch *chain) next() (*Response, error) {
	step, ok := ch.dispatch.Next()
	if !ok {
		return ch.router.fallback(ch.request)
	}

	if step.Terminal {
		ch.matchedRoute = step.route.Path
	}

	c := &Context{
		chain: ch,
		step:  step,
	}

	res, err := step.Handler(c)
	if err != nil {
		return nil, err
	}

	if res == nil {
		if step.Terminal {
			return nil, fmt.Errorf("%w: %s %s", ErrNoResponse, methodLabel(step.route.Method), step.route.Path)
		}

		if res, err = c.Next(); err != nil {
			return nil, err
		}

		if res == nil {
			return nil, fmt.Errorf("%w: middleware on %s", ErrNoResponse, step.route.Path)
		}
	}

	return res.normalize(), nil
}
