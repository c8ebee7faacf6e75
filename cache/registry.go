package cache

import (
	"context"
	"runtime"
	"sync"
	"weak"

	"github.com/hashicorp/golang-lru/v2"
	"github.com/iov-one/idgov"
	"github.com/iov-one/idgov/errors"
	"golang.org/x/sync/singleflight"
)

// Registry maps object ids to handles. It holds a bounded number of handles,
// evicting the least recently used one. Concurrent requests for the same id
// share a single load.
//
// There is at most one live handle per id. A handle evicted from the cache
// but still referenced elsewhere is returned again by Get, so its locks keep
// guarding the object.
type Registry[T any] struct {
	handles *lru.Cache[idgov.ObjectID, *Handle[T]]
	loads   singleflight.Group
	load    func(context.Context, idgov.ObjectID) (T, error)

	mu   sync.Mutex
	live map[idgov.ObjectID]weak.Pointer[Handle[T]]
}

// NewRegistry returns a registry of at most size handles.
func NewRegistry[T any](size int, load func(context.Context, idgov.ObjectID) (T, error)) (*Registry[T], error) {
	handles, err := lru.New[idgov.ObjectID, *Handle[T]](size)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInput, err.Error())
	}
	return &Registry[T]{
		handles: handles,
		load:    load,
		live:    make(map[idgov.ObjectID]weak.Pointer[Handle[T]]),
	}, nil
}

// Get returns the handle of an object, loading it when no handle is live.
//
// The load is shared by all concurrent callers and does not stop when one of
// them gives up. Each caller only waits as long as its own ctx allows.
func (r *Registry[T]) Get(ctx context.Context, id idgov.ObjectID) (*Handle[T], error) {
	if h := r.lookup(id); h != nil {
		return h, nil
	}
	detached := context.WithoutCancel(ctx)
	ch := r.loads.DoChan(id.String(), func() (interface{}, error) {
		if h := r.lookup(id); h != nil {
			return h, nil
		}
		value, err := r.load(detached, id)
		if err != nil {
			return nil, err
		}
		h := NewHandle(value, func(ctx context.Context) (T, error) {
			return r.load(ctx, id)
		})
		r.track(id, h)
		return h, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Handle[T]), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// lookup returns the live handle of id, putting it back in the cache when
// it was evicted.
func (r *Registry[T]) lookup(id idgov.ObjectID) *Handle[T] {
	if h, ok := r.handles.Get(id); ok {
		return h
	}
	r.mu.Lock()
	p, ok := r.live[id]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	h := p.Value()
	if h == nil {
		return nil
	}
	r.handles.Add(id, h)
	return h
}

func (r *Registry[T]) track(id idgov.ObjectID, h *Handle[T]) {
	p := weak.Make(h)
	r.mu.Lock()
	r.live[id] = p
	r.mu.Unlock()
	r.handles.Add(id, h)

	runtime.AddCleanup(h, func(id idgov.ObjectID) {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.live[id] == p {
			delete(r.live, id)
		}
	}, id)
}

// Remove drops the handle of an object from the cache and marks it stale.
// Holders of the handle keep using it, and as long as it is referenced Get
// returns it again, reloaded on next access.
func (r *Registry[T]) Remove(id idgov.ObjectID) {
	if h, ok := r.handles.Peek(id); ok {
		h.Invalidate()
	}
	r.handles.Remove(id)
	r.mu.Lock()
	p, ok := r.live[id]
	r.mu.Unlock()
	if ok {
		if h := p.Value(); h != nil {
			h.Invalidate()
		}
	}
}

// Len returns the number of cached handles.
func (r *Registry[T]) Len() int {
	return r.handles.Len()
}
