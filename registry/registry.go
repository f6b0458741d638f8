// Package registry holds the static catalog of agent personas addressable by
// the dispatch layer. Descriptors carry display metadata only; the reasoning
// behind each persona lives behind the execution capability.
package registry

// DefaultEmoji is applied to descriptors registered without one.
const DefaultEmoji = "🤖"

// Descriptor is the immutable display metadata for one agent persona.
type Descriptor struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	Color       string `json:"color"`
	Emoji       string `json:"emoji"`
}

// Registry is a read-only (after startup) catalog of descriptors preserving
// registration order. It needs no locking: build it fully before sharing.
type Registry struct {
	byID  map[string]Descriptor
	order []string
}

// New constructs an empty registry.
func New() *Registry {
	return &Registry{byID: map[string]Descriptor{}}
}

// Register adds a descriptor, applying DefaultEmoji if absent. Registering an
// already present id replaces the descriptor in place without changing order.
func (r *Registry) Register(d Descriptor) {
	if d.Emoji == "" {
		d.Emoji = DefaultEmoji
	}
	if _, exists := r.byID[d.ID]; !exists {
		r.order = append(r.order, d.ID)
	}
	r.byID[d.ID] = d
}

// Describe looks up a descriptor by id.
func (r *Registry) Describe(id string) (Descriptor, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// List returns all descriptors in registration order.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Len reports the number of registered descriptors.
func (r *Registry) Len() int { return len(r.order) }
