package convert

import "time"

// PropertyKind classifies how a property's value is produced.
type PropertyKind string

const (
	PropertyKindPhysical PropertyKind = "PHYSICAL"
	PropertyKindLogical  PropertyKind = "LOGICAL"
	PropertyKindDerived  PropertyKind = "DERIVED"
	PropertyKindPredicate PropertyKind = "PREDICATE"
)

// LockMode is the mode a ResourceLockSpec is acquired in.
type LockMode string

const (
	LockModeSharedRead     LockMode = "SHARED_READ"
	LockModeExclusiveWrite LockMode = "EXCLUSIVE_WRITE"
)

// Composes reports whether two lock modes can be held simultaneously by
// different holders on the same resource.
func (m LockMode) Composes(other LockMode) bool {
	return m == LockModeSharedRead && other == LockModeSharedRead
}

// ResourceLockSpec names a lock a property or action requires before use.
type ResourceLockSpec struct {
	Resource string
	Mode     LockMode
}

// ValidationRule is a serializable runtime-checkable constraint on a
// property's value.
type ValidationRule struct {
	Kind      ValidationKind
	Min, Max  float64 // Kind == ValidationRange
	Pattern   string  // Kind == ValidationRegex
	MinLength int     // Kind == ValidationMinLength
}

// ValidationKind tags which shape a ValidationRule carries.
type ValidationKind string

const (
	ValidationRange     ValidationKind = "RANGE"
	ValidationRegex     ValidationKind = "REGEX"
	ValidationMinLength ValidationKind = "MIN_LENGTH"
)

// Permission names an authorization check a property write or action
// invocation requires.
type Permission string

// CachePolicyScope enumerates the enumerated-options redesign of the
// original "dynamic named parameters" cache configuration (spec.md §9).
type CachePolicyScope string

const (
	CachePolicyPerDevice CachePolicyScope = "PER_DEVICE"
	CachePolicyPerHub    CachePolicyScope = "PER_HUB"
	CachePolicyPerCluster CachePolicyScope = "PER_CLUSTER"
)

// CachePolicy configures action-result caching.
type CachePolicy struct {
	TTL               time.Duration
	Scope             CachePolicyScope
	InvalidationEvents []string
}

// PropertyDescriptor is the pure-data contract for a single device property.
type PropertyDescriptor struct {
	Name          string
	Kind          PropertyKind
	ValueTypeName string
	Readable      bool
	Mutable       bool
	Unit          string
	Min, Max      *float64
	AllowedValues []string
	Permissions   []Permission
	Tags          []string
	Bindings      map[string]any
	MetricsHints  []string
	Labels        map[string]string
	Persistent    bool
	Transient     bool
	Validation    []ValidationRule
	RequiredLocks []ResourceLockSpec
}

// ActionDescriptor is the pure-data contract for a single device action.
type ActionDescriptor struct {
	Name                string
	DefaultTimeout      time.Duration
	ExecutionDeadline   time.Duration
	RequiredLocks       []ResourceLockSpec
	RequiredPredicates  []string
	CachePolicy         *CachePolicy
	Distributable       bool
	TriggerEvent        string
	OnSuccessEvent      string
	OnFailureEvent      string
	PossibleFaultTypes  []string
	TaskRef             string
	PlanRef             string
	Permissions         []Permission
}

// StreamDirection classifies the data flow direction of a stream.
type StreamDirection string

const (
	StreamDirectionIn            StreamDirection = "IN"
	StreamDirectionOut           StreamDirection = "OUT"
	StreamDirectionBidirectional StreamDirection = "BIDIRECTIONAL"
)

// DeliveryHint advises consumers how aggressively to keep up with a stream.
type DeliveryHint string

const (
	DeliveryHintBestEffort  DeliveryHint = "BEST_EFFORT"
	DeliveryHintReliable    DeliveryHint = "RELIABLE"
)

// StreamDescriptor is the pure-data contract for a binary/byte stream.
type StreamDescriptor struct {
	Name          string
	Direction     StreamDirection
	SuggestedRate float64 // Hz
	BufferSize    int
	Delivery      DeliveryHint
}
