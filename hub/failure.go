// Package hub implements the composite-device control plane (spec.md
// §4.7): attach/detach/start/stop transactions, hierarchical addressing,
// lease-based locking, batch read/write, hot-swap, and child-property
// bindings, orchestrating device.Runtime instances. Grounded on the
// teacher's coreengine/kernel/{kernel,resources,services,rate_limiter,
// cleanup}.go subsystem-composition style.
package hub

import (
	"errors"
	"fmt"

	"github.com/halcyon-automation/meridian/device"
	"github.com/halcyon-automation/meridian/persistence"
	"github.com/halcyon-automation/meridian/security"
)

// Kind is the closed error-kind taxonomy of spec.md §7.
type Kind string

const (
	KindValidation     Kind = "VALIDATION"
	KindSecurity       Kind = "SECURITY"
	KindNotFound       Kind = "NOT_FOUND"
	KindTypeMismatch   Kind = "TYPE_MISMATCH"
	KindLifecycle      Kind = "LIFECYCLE"
	KindLock           Kind = "LOCK"
	KindTimeout        Kind = "TIMEOUT"
	KindPeerConnection Kind = "PEER_CONNECTION"
	KindTransaction    Kind = "TRANSACTION"
	KindMigration      Kind = "MIGRATION"
	KindInternal       Kind = "INTERNAL"
)

// Failure is the wire-level SerializableDeviceFailure every Hub boundary
// call returns on error, per spec.md §6/§7.
type Failure struct {
	Kind    Kind
	Message string
	Cause   error
	Fault   string
}

func (f *Failure) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", f.Kind, f.Message, f.Cause)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

func (f *Failure) Unwrap() error { return f.Cause }

// NewFailure constructs a Failure directly.
func NewFailure(kind Kind, message string, cause error) *Failure {
	return &Failure{Kind: kind, Message: message, Cause: cause}
}

// classify maps a device/persistence/security sentinel error to its
// spec.md §7 Kind, wrapping anything unrecognized as Internal.
func classify(err error) *Failure {
	if err == nil {
		return nil
	}
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	switch {
	case errors.Is(err, device.ErrValidation):
		return NewFailure(KindValidation, "validation failed", err)
	case errors.Is(err, security.ErrDenied):
		return NewFailure(KindSecurity, "permission denied", err)
	case errors.Is(err, device.ErrUnknownProperty),
		errors.Is(err, device.ErrUnknownAction),
		errors.Is(err, ErrDeviceNotFound),
		errors.Is(err, ErrBlueprintNotFound):
		return NewFailure(KindNotFound, "not found", err)
	case errors.Is(err, device.ErrNotReadable), errors.Is(err, device.ErrNotMutable):
		return NewFailure(KindTypeMismatch, "incompatible operation for property shape", err)
	case errors.Is(err, device.ErrLifecycleState), errors.Is(err, device.ErrPredicateNotSatisfied):
		return NewFailure(KindLifecycle, "operation invalid in current lifecycle/predicate state", err)
	case errors.Is(err, ErrLockContention), errors.Is(err, ErrLockExpired):
		return NewFailure(KindLock, "lock contention", err)
	case errors.Is(err, device.ErrActionTimeout):
		return NewFailure(KindTimeout, "operation timed out", err)
	case errors.Is(err, persistence.ErrNoMigrationChain):
		return NewFailure(KindMigration, "no migration chain", err)
	default:
		return NewFailure(KindInternal, "unclassified failure", err)
	}
}
