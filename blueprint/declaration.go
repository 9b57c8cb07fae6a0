package blueprint

import (
	"fmt"

	"github.com/halcyon-automation/meridian/convert"
	"github.com/halcyon-automation/meridian/meta"
)

// Declaration is the immutable, serializable, platform-agnostic device
// contract: properties, actions, streams, children, peers, features, and
// default meta. It carries no behavior — see ExecutableBlueprint for that.
type Declaration struct {
	ID                   string
	Version              string
	SchemaVersion        int
	Tags                 []string
	DeviceContractFqName string

	Features map[string]Feature

	PublicProperties    map[string]convert.PropertyDescriptor
	NonPublicProperties map[string]convert.PropertyDescriptor
	PublicActions       map[string]convert.ActionDescriptor
	NonPublicActions    map[string]convert.ActionDescriptor
	Streams             map[string]convert.StreamDescriptor

	Children map[string]ChildComponentConfig
	Peers    map[string]PeerConnectionConfig

	DefaultMeta *meta.Tree
}

// Property looks up a property descriptor across both the public and
// non-public buckets.
func (d *Declaration) Property(name string) (convert.PropertyDescriptor, bool) {
	if p, ok := d.PublicProperties[name]; ok {
		return p, true
	}
	p, ok := d.NonPublicProperties[name]
	return p, ok
}

// Action looks up an action descriptor across both the public and
// non-public buckets.
func (d *Declaration) Action(name string) (convert.ActionDescriptor, bool) {
	if a, ok := d.PublicActions[name]; ok {
		return a, true
	}
	a, ok := d.NonPublicActions[name]
	return a, ok
}

// HasFeature reports whether the declaration advertises the named
// capability.
func (d *Declaration) HasFeature(kind FeatureKind) bool {
	_, ok := d.Features[string(kind)]
	return ok
}

var errNoDriver = fmt.Errorf("blueprint: driver is mandatory")
