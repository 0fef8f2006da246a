package catalog

import (
	"errors"
	"fmt"
	"sort"
)

// ErrSourceNotFound is returned by Describe for an unregistered id.
var ErrSourceNotFound = errors.New("data source not registered")

// ConfigError reports invalid catalogue or profile configuration.
// It is always fatal at startup, before any I/O happens.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Reason
}

// Registry is the validated, read-only catalogue of data sources plus a
// derived capability index. It is safe for concurrent use after Load.
type Registry struct {
	byID    map[string]Descriptor
	ordered []string
	index   map[Capability][]Descriptor
}

// Load validates descriptors and builds the registry. Duplicate ids, empty
// capability sets, unknown capabilities, and blocked entries lacking a reason
// are configuration errors.
func Load(descriptors []Descriptor) (*Registry, error) {
	r := &Registry{
		byID:  make(map[string]Descriptor, len(descriptors)),
		index: make(map[Capability][]Descriptor),
	}
	for _, d := range descriptors {
		if err := d.validate(); err != nil {
			return nil, err
		}
		if _, dup := r.byID[d.ID]; dup {
			return nil, &ConfigError{Reason: fmt.Sprintf("duplicate source id %q", d.ID)}
		}
		r.byID[d.ID] = d
		r.ordered = append(r.ordered, d.ID)
	}
	r.rebuildIndex()
	return r, nil
}

// rebuildIndex derives the capability index from the descriptor map. Called
// only at load; the index is never mutated incrementally.
func (r *Registry) rebuildIndex() {
	r.index = make(map[Capability][]Descriptor)
	for _, id := range r.ordered {
		d := r.byID[id]
		for _, c := range d.Capabilities {
			r.index[c] = append(r.index[c], d)
		}
	}
	for c := range r.index {
		candidates := r.index[c]
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].Priority != candidates[j].Priority {
				return candidates[i].Priority < candidates[j].Priority
			}
			return candidates[i].ID < candidates[j].ID
		})
	}
}

// CandidatesFor returns the descriptors able to satisfy the capability,
// ordered by priority with ties broken by id. Unknown capabilities yield an
// empty slice so callers apply their own no-source policy.
func (r *Registry) CandidatesFor(c Capability) []Descriptor {
	candidates := r.index[c]
	out := make([]Descriptor, len(candidates))
	copy(out, candidates)
	return out
}

// Describe returns the descriptor for id or ErrSourceNotFound.
func (r *Registry) Describe(id string) (Descriptor, error) {
	d, ok := r.byID[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrSourceNotFound, id)
	}
	return d, nil
}

// List returns every descriptor in declaration order.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.ordered))
	for _, id := range r.ordered {
		out = append(out, r.byID[id])
	}
	return out
}

// Len returns the number of registered sources.
func (r *Registry) Len() int {
	return len(r.byID)
}
