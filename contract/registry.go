package contract

import (
	"sync"

	"github.com/iov-one/idgov"
	"github.com/iov-one/idgov/errors"
)

// Registry keeps track of the identity contract deployments. Each chain has
// a history of package ids, the last one being the current version. Objects
// created by an older version keep the type of the package that created
// them, so type checks accept every version in the history.
type Registry struct {
	mu      sync.RWMutex
	history map[string][]idgov.ObjectID
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{history: make(map[string][]idgov.ObjectID)}
}

// Register appends pkg to the history of chainID. Registering a package that
// is already known does not change the history.
func (r *Registry) Register(chainID string, pkg idgov.ObjectID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.history[chainID] {
		if p == pkg {
			return
		}
	}
	r.history[chainID] = append(r.history[chainID], pkg)
}

// Latest returns the current package of a chain.
func (r *Registry) Latest(chainID string) (idgov.ObjectID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h := r.history[chainID]
	if len(h) == 0 {
		return idgov.ZeroID, errors.ErrNotFound.Newf("no identity package for chain %q", chainID)
	}
	return h[len(h)-1], nil
}

// History returns all packages of a chain, oldest first.
func (r *Registry) History(chainID string) []idgov.ObjectID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]idgov.ObjectID(nil), r.history[chainID]...)
}

// Types returns a type for every package of a chain.
func (r *Registry) Types(chainID string, typeOf func(idgov.ObjectID) string) []string {
	h := r.History(chainID)
	types := make([]string, len(h))
	for i, pkg := range h {
		types[i] = typeOf(pkg)
	}
	return types
}
