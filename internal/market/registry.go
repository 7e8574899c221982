package market

import (
	"maps"
	"slices"
)

// Registry maps account ids to their live callback. Handles must be
// comparable (pointer types are).
type Registry struct {
	m map[string]Callback
}

func NewRegistry() *Registry {
	return &Registry{m: make(map[string]Callback)}
}

// Register stores cb under its id and returns the handle it replaced, if any.
func (r *Registry) Register(cb Callback) (old Callback) {
	id := cb.ID()
	old = r.m[id]
	r.m[id] = cb
	return old
}

// Unregister removes cb only if it is still the registered handle for its
// id, so a stale connection closing late cannot evict its replacement.
func (r *Registry) Unregister(cb Callback) bool {
	id := cb.ID()
	if cur, ok := r.m[id]; ok && cur == cb {
		delete(r.m, id)
		return true
	}
	return false
}

func (r *Registry) Get(id string) (Callback, bool) {
	cb, ok := r.m[id]
	return cb, ok
}

// All returns the callbacks ordered by id.
func (r *Registry) All() []Callback {
	ids := slices.Sorted(maps.Keys(r.m))
	out := make([]Callback, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.m[id])
	}
	return out
}

func (r *Registry) Len() int { return len(r.m) }
