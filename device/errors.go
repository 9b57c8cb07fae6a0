// Package device implements the composite-device instance runtime
// (spec.md §4.6): instantiating a device from an ExecutableBlueprint,
// wiring its reactive state graph, running its dual FSM, and executing
// property/action operations under lock, authorization, and validation.
// Grounded on the teacher's coreengine/kernel/kernel.go subsystem
// composition (a struct that owns a context-scoped set of goroutines and
// exposes a narrow lifecycle API to its owner).
package device

import "errors"

// Sentinel errors classifying runtime failures (spec.md §7's closed error
// taxonomy); hub wraps these into a SerializableDeviceFailure with the
// matching Kind via errors.Is.
var (
	ErrUnknownProperty      = errors.New("device: unknown property")
	ErrUnknownAction        = errors.New("device: unknown action")
	ErrNotReadable          = errors.New("device: property is not readable")
	ErrNotMutable           = errors.New("device: property is not mutable")
	ErrValidation           = errors.New("device: value failed validation")
	ErrPredicateNotSatisfied = errors.New("device: a required predicate did not hold")
	ErrLifecycleState       = errors.New("device: operation not valid in the current lifecycle state")
	ErrActionTimeout        = errors.New("device: action exceeded its timeout")
	ErrTaskBackedAction     = errors.New("device: action is task/plan-backed; invoke it through the orchestrator")
	ErrUnknownTask          = errors.New("device: unknown workspace task")
	ErrAlreadyAttached      = errors.New("device: already attached")
	ErrNotAttached          = errors.New("device: not attached")
)
