package convert

import "fmt"

// BindingKey names an externally contributed, typed configuration payload
// attached to a property descriptor's Bindings map (e.g. "modbus" ->
// {unitId, register, type}). The set of recognized keys is open; adapters
// register their own key and payload shape with a BindingRegistry rather
// than the core hard-coding a closed union.
type BindingKey string

// BindingSpec describes a registered binding key: a human label and a
// validator for payloads submitted under that key.
type BindingSpec struct {
	Key       BindingKey
	Label     string
	Validate  func(payload any) error
}

// BindingRegistry tracks which binding keys this process recognizes. It is
// explicit, process-scoped state threaded through a Context, never an
// ambient global (spec.md §9).
type BindingRegistry struct {
	specs map[BindingKey]BindingSpec
}

// NewBindingRegistry creates an empty registry.
func NewBindingRegistry() *BindingRegistry {
	return &BindingRegistry{specs: make(map[BindingKey]BindingSpec)}
}

// Register adds or replaces a binding spec.
func (r *BindingRegistry) Register(spec BindingSpec) {
	r.specs[spec.Key] = spec
}

// Validate checks a property descriptor's binding payloads against any
// registered specs; unregistered keys pass through unchecked (the set of
// keys is open by design).
func (r *BindingRegistry) Validate(bindings map[string]any) error {
	for k, payload := range bindings {
		spec, ok := r.specs[BindingKey(k)]
		if !ok || spec.Validate == nil {
			continue
		}
		if err := spec.Validate(payload); err != nil {
			return fmt.Errorf("convert: binding %q invalid: %w", k, err)
		}
	}
	return nil
}
