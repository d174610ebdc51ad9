// Package presence tracks which human display names are connected.
package presence

import (
	"sort"

	"github.com/samber/lo"
)

// Registry is a set of connected display names.
//
// Membership is per name: two sessions bound to the same name count once,
// and a single Leave removes the name even if another session still uses it.
// Registry is not safe for concurrent use; the hub's control goroutine owns it.
type Registry struct {
	names map[string]struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

// Join adds name.
func (r *Registry) Join(name string) {
	r.names[name] = struct{}{}
}

// Leave removes name.
func (r *Registry) Leave(name string) {
	delete(r.names, name)
}

// Contains reports whether name is present.
func (r *Registry) Contains(name string) bool {
	_, ok := r.names[name]
	return ok
}

// Size is the number of distinct names present.
func (r *Registry) Size() int {
	return len(r.names)
}

// Names returns the present names in sorted order.
func (r *Registry) Names() []string {
	names := lo.Keys(r.names)
	sort.Strings(names)
	return names
}
