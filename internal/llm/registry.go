package llm

import (
	"fmt"
	"sort"
)

// Registry resolves a provider by its kind tag.
type Registry struct {
	providers map[Kind]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[Kind]Provider, len(providers))}
	for _, p := range providers {
		if p != nil {
			r.providers[p.Kind()] = p
		}
	}
	return r
}

func (r *Registry) Get(kind Kind) (Provider, error) {
	p, ok := r.providers[kind]
	if !ok {
		return nil, fmt.Errorf("%s: %w", kind, ErrNoProvider)
	}
	return p, nil
}

func (r *Registry) Has(kind Kind) bool {
	_, ok := r.providers[kind]
	return ok
}

// Kinds lists registered kinds in stable order.
func (r *Registry) Kinds() []Kind {
	out := make([]Kind, 0, len(r.providers))
	for k := range r.providers {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
