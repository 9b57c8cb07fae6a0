package blueprint

import "github.com/halcyon-automation/meridian/meta"

// ChildBindingKind tags which variant of ChildBinding a value carries.
type ChildBindingKind string

const (
	ChildBindingConst       ChildBindingKind = "CONST"
	ChildBindingDirect      ChildBindingKind = "DIRECT"
	ChildBindingTransformed ChildBindingKind = "TRANSFORMED"
)

// TransformerDescriptor names a registered pure function applied to a
// parent property's value before it reaches a child binding target.
type TransformerDescriptor struct {
	Name string
}

// ChildBinding is a tagged variant wiring a child component property to a
// constant, a parent property, or a transform of a parent property.
type ChildBinding struct {
	Kind ChildBindingKind

	// Target is always populated: the child-local property name receiving
	// the bound value.
	Target string

	// Const
	ConstantValue meta.Value

	// Direct / Transformed
	SourceOnParent string

	// Transformed
	Transformer TransformerDescriptor
}

// ConstBinding creates a CONST child binding.
func ConstBinding(target string, value meta.Value) ChildBinding {
	return ChildBinding{Kind: ChildBindingConst, Target: target, ConstantValue: value}
}

// DirectBinding creates a DIRECT child binding: target <- parent.source.
func DirectBinding(target, sourceOnParent string) ChildBinding {
	return ChildBinding{Kind: ChildBindingDirect, Target: target, SourceOnParent: sourceOnParent}
}

// TransformedBinding creates a TRANSFORMED child binding:
// target <- transform(parent.source).
func TransformedBinding(target, sourceOnParent string, transformer TransformerDescriptor) ChildBinding {
	return ChildBinding{
		Kind:           ChildBindingTransformed,
		Target:         target,
		SourceOnParent: sourceOnParent,
		Transformer:    transformer,
	}
}

// ChildComponentKind tags which variant of ChildComponentConfig a value
// carries: a locally-attached child or a remote mirror over a peer
// connection.
type ChildComponentKind string

const (
	ChildComponentLocal  ChildComponentKind = "LOCAL"
	ChildComponentRemote ChildComponentKind = "REMOTE"
)

// ChildComponentConfig is a tagged variant describing one child component
// declared by a blueprint.
type ChildComponentConfig struct {
	Kind ChildComponentKind

	// Local
	BlueprintID        string
	Version            string
	LifecycleOverrides map[string]string
	MetaOverrides      *meta.Tree
	Bindings           []ChildBinding

	// Remote
	PeerConnectionName string
	RemoteDeviceName    string
}

// NewLocalChild builds a LOCAL child component config.
func NewLocalChild(blueprintID, version string) ChildComponentConfig {
	return ChildComponentConfig{
		Kind:        ChildComponentLocal,
		BlueprintID: blueprintID,
		Version:     version,
	}
}

// NewRemoteChild builds a REMOTE child component config.
func NewRemoteChild(peerConnectionName, remoteDeviceName, blueprintID, version string) ChildComponentConfig {
	return ChildComponentConfig{
		Kind:                ChildComponentRemote,
		PeerConnectionName:  peerConnectionName,
		RemoteDeviceName:    remoteDeviceName,
		BlueprintID:         blueprintID,
		Version:             version,
	}
}

// PeerConnectionConfig names a peer hub a blueprint's remote children or
// remote-mirror features may reference.
type PeerConnectionConfig struct {
	Name    string
	Address string
}
