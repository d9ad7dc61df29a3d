package mux

import "iter"

// Step is a single handler selected by a Dispatch.
type Step struct {
	Handler HandlerFunc

	// Params are extracted from the route pattern.
	Params Params

	// Path is the matched portion of the request path: the mount prefix
	// for middleware and the full route match for handlers.
	Path string

	route *compiledRoute

	// Terminal is true for route handlers and false for middleware.
	Terminal bool
}

// Route returns a copy of the declared route the handler belongs to.
func (s Step) Route() Route {
	if s.route == nil {
		return Route{}
	}

	return s.route.clone()
}

type dispatchPhase int

const (
	phaseMiddleware dispatchPhase = iota
	phaseTerminal
	phaseDone
)

// Dispatch lazily yields the handlers that apply to one request. It runs
// two passes over the table: middleware of every route whose pattern and
// mount prefix-match the path, visiting routes from last declared to first,
// then the handlers of the first declared route whose pattern matches the
// path exactly.
//
// A Dispatch is single use and must not be shared between goroutines.
type Dispatch struct {
	table  *Table
	method string
	path   string

	phase dispatchPhase
	pos   int
	queue []Step
}

// Next returns the next step, or false once the dispatch is exhausted.
func (d *Dispatch) Next() (Step, bool) {
	for {
		if len(d.queue) > 0 {
			s := d.queue[0]
			d.queue = d.queue[1:]

			return s, true
		}

		switch d.phase {
		case phaseMiddleware:
			if d.pos < 0 {
				d.phase = phaseTerminal
				d.pos = 0

				continue
			}

			r := &d.table.routes[d.pos]
			d.pos--
			d.queue = d.middlewareSteps(r)

		case phaseTerminal:
			if d.pos >= len(d.table.routes) {
				d.phase = phaseDone
				continue
			}

			r := &d.table.routes[d.pos]
			d.pos++

			if steps := d.terminalSteps(r); len(steps) > 0 {
				d.queue = steps
				d.phase = phaseDone
			}

		default:
			return Step{}, false
		}
	}
}

// All returns an iterator over the remaining steps.
func (d *Dispatch) All() iter.Seq[Step] {
	return func(yield func(Step) bool) {
		for {
			s, ok := d.Next()
			if !ok || !yield(s) {
				return
			}
		}
	}
}

func (d *Dispatch) middlewareSteps(r *compiledRoute) []Step {
	if len(r.Middlewares) == 0 || !r.allowsMethod(d.method) {
		return nil
	}

	match, ok := r.prefix.Match(d.path)
	if !ok {
		return nil
	}

	mount, ok := r.mount.Match(d.path)
	if !ok {
		return nil
	}

	steps := make([]Step, len(r.Middlewares))
	for i, h := range r.Middlewares {
		steps[i] = Step{
			Handler: h,
			Params:  match.Params,
			Path:    mount.Path,
			route:   r,
		}
	}

	return steps
}

func (d *Dispatch) terminalSteps(r *compiledRoute) []Step {
	if len(r.Handlers) == 0 || !r.allowsMethod(d.method) {
		return nil
	}

	match, ok := r.exact.Match(d.path)
	if !ok {
		return nil
	}

	if !r.mount.MatchString(d.path) {
		return nil
	}

	steps := make([]Step, len(r.Handlers))
	for i, h := range r.Handlers {
		steps[i] = Step{
			Handler:  h,
			Params:   match.Params,
			Path:     match.Path,
			route:    r,
			Terminal: true,
		}
	}

	return steps
}
