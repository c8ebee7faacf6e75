package ledgertest

import (
	"fmt"
	"regexp"

	"github.com/iov-one/idgov/ptb"
)

// CallHandler executes a contract function. It receives the resolved
// arguments and returns the function results.
type CallHandler func(ex *execution, call ptb.MoveCall, args []*value) ([]*value, error)

var isRoute = regexp.MustCompile(`^[a-z0-9_]+::[a-z0-9_]+$`).MatchString

// Router dispatches contract calls by their "module::function" path.
type Router struct {
	routes map[string]CallHandler
}

// NewRouter returns an empty router.
func NewRouter() *Router {
	return &Router{routes: make(map[string]CallHandler)}
}

// Handle registers a handler for a path. Registering a path twice or using an
// invalid path panics.
func (r *Router) Handle(path string, h CallHandler) {
	if !isRoute(path) {
		panic(fmt.Sprintf("invalid route %q: want module::function", path))
	}
	if _, ok := r.routes[path]; ok {
		panic(fmt.Sprintf("re-registering route: %s", path))
	}
	r.routes[path] = h
}

// Handler returns the handler of a path or nil.
func (r *Router) Handler(path string) CallHandler {
	return r.routes[path]
}
