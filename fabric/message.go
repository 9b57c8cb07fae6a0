// Package fabric is the device message and telemetry bus (spec.md §4.9),
// generalizing the teacher's commbus package: same Publish/Send/QuerySync
// protocol and middleware chain, carrying DeviceMessage events instead of
// Jeeves' agent/tool/pipeline events.
package fabric

import (
	"time"

	"github.com/halcyon-automation/meridian/meta"
)

// Category mirrors commbus' routing categories.
type Category string

const (
	// CategoryEvent is fire-and-forget, fan-out to every subscriber.
	CategoryEvent Category = "event"
	// CategoryQuery is request-response against a single registered handler.
	CategoryQuery Category = "query"
	// CategoryCommand is fire-and-forget against a single registered handler.
	CategoryCommand Category = "command"
)

// Message is the protocol every value published on the fabric implements.
type Message interface {
	// Category reports routing behavior: event, query, or command.
	Category() Category
	// Topic is the meta.Name subscribers match against (wildcards via
	// meta.Name.Match's "*"/"**" tokens).
	Topic() meta.Name
}

// TypedMessage lets a message report its own routing type name instead of
// falling back to a reflect-based type switch, mirroring commbus'
// TypedMessage escape hatch.
type TypedMessage interface {
	Message
	MessageType() string
}

// Query marks a Message as expecting a response via QuerySync.
type Query interface {
	Message
	IsQuery()
}

// MessageBase is embedded by every concrete DeviceMessage variant; it
// supplies Topic() and a wall-clock timestamp for audit/state logs.
type MessageBase struct {
	At      time.Time
	Address meta.Address
}

func (b MessageBase) Topic() meta.Name { return b.Address.Device }

// NewBase constructs a MessageBase; device/ and hub/ message constructors
// use this rather than setting the timestamp themselves, keeping clock
// access centralized.
func NewBase(addr meta.Address, at time.Time) MessageBase {
	return MessageBase{At: at, Address: addr}
}

// PropertyChanged reports a property's new value after a successful write
// or a reactive-logic update.
type PropertyChanged struct {
	MessageBase
	Property meta.Name
	Value    meta.Value
	Quality  string
}

func (PropertyChanged) Category() Category  { return CategoryEvent }
func (PropertyChanged) MessageType() string { return "PropertyChanged" }

// DescriptionChanged reports that a device's descriptor set changed shape,
// e.g. after a hot-swap.
type DescriptionChanged struct {
	MessageBase
}

func (DescriptionChanged) Category() Category  { return CategoryEvent }
func (DescriptionChanged) MessageType() string { return "DescriptionChanged" }

// LifecycleStateChanged reports a transition in a device's lifecycle FSM.
type LifecycleStateChanged struct {
	MessageBase
	From string
	To   string
}

func (LifecycleStateChanged) Category() Category  { return CategoryEvent }
func (LifecycleStateChanged) MessageType() string { return "LifecycleStateChanged" }

// DeviceError reports a non-fatal runtime fault surfaced by a device.
type DeviceError struct {
	MessageBase
	Err error
}

func (DeviceError) Category() Category  { return CategoryEvent }
func (DeviceError) MessageType() string { return "DeviceError" }

// PredicateChanged reports a change in one of a device's named predicates
// (used by AwaitPredicate plan steps and operational guards).
type PredicateChanged struct {
	MessageBase
	Predicate string
	Satisfied bool
}

func (PredicateChanged) Category() Category  { return CategoryEvent }
func (PredicateChanged) MessageType() string { return "PredicateChanged" }

// BinaryReadyNotification announces that a named binary stream has data
// available for a consumer to pull.
type BinaryReadyNotification struct {
	MessageBase
	Stream meta.Name
	Size   int
}

func (BinaryReadyNotification) Category() Category  { return CategoryEvent }
func (BinaryReadyNotification) MessageType() string { return "BinaryReadyNotification" }

// BinaryDataRequest is a command asking a device to push a chunk of a
// binary stream to the requester.
type BinaryDataRequest struct {
	MessageBase
	Stream meta.Name
}

func (BinaryDataRequest) Category() Category  { return CategoryCommand }
func (BinaryDataRequest) MessageType() string { return "BinaryDataRequest" }

// DeviceAttached reports successful attachment to the Hub's device table.
type DeviceAttached struct {
	MessageBase
	BlueprintID string
}

func (DeviceAttached) Category() Category  { return CategoryEvent }
func (DeviceAttached) MessageType() string { return "DeviceAttached" }

// DeviceDetached reports removal from the Hub's device table.
type DeviceDetached struct {
	MessageBase
}

func (DeviceDetached) Category() Category  { return CategoryEvent }
func (DeviceDetached) MessageType() string { return "DeviceDetached" }

// LockForceReleased is the audit trail entry published whenever an admin
// forcibly breaks another principal's lease (spec.md §4.7).
type LockForceReleased struct {
	MessageBase
	Resource    string
	Principal   string
	Reason      string
}

func (LockForceReleased) Category() Category  { return CategoryEvent }
func (LockForceReleased) MessageType() string { return "LockForceReleased" }

// WorkspaceSignal answers a pending AwaitSignal plan step (spec.md §4.8).
// It is keyed by a signal id rather than a device address, so it does not
// embed MessageBase and instead builds its own Topic from the id.
type WorkspaceSignal struct {
	At      time.Time
	ID      string
	Payload *meta.Tree
}

func (WorkspaceSignal) Category() Category    { return CategoryEvent }
func (s WorkspaceSignal) Topic() meta.Name    { return meta.NameOf("signal", s.ID) }
func (WorkspaceSignal) MessageType() string   { return "WorkspaceSignal" }
