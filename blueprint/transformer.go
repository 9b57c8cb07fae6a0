package blueprint

import (
	"fmt"
	"sync"

	"github.com/halcyon-automation/meridian/meta"
)

// Transformer is a pure function applied to a parent property's value
// before it reaches a TRANSFORMED child binding target.
type Transformer func(meta.Value) meta.Value

// TransformerRegistry resolves TransformerDescriptor names to the actual
// function, keeping Declaration (pure data) free of function values while
// still letting the hub apply transformed bindings. Explicit process-wide
// state passed by reference, per spec.md §9.
type TransformerRegistry struct {
	mu   sync.RWMutex
	fns  map[string]Transformer
}

// NewTransformerRegistry creates an empty registry.
func NewTransformerRegistry() *TransformerRegistry {
	return &TransformerRegistry{fns: make(map[string]Transformer)}
}

// Register adds or replaces the transformer registered under name.
func (r *TransformerRegistry) Register(name string, fn Transformer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns[name] = fn
}

// Resolve looks up a transformer by its descriptor's Name.
func (r *TransformerRegistry) Resolve(d TransformerDescriptor) (Transformer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.fns[d.Name]
	if !ok {
		return nil, fmt.Errorf("blueprint: no transformer registered under %q", d.Name)
	}
	return fn, nil
}
