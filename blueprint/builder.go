package blueprint

import (
	"fmt"

	"github.com/halcyon-automation/meridian/convert"
	"github.com/halcyon-automation/meridian/meta"
)

// Builder accumulates a blueprint's declarative contract and produces an
// immutable Declaration via Build. Build is a pure transformation: no
// network or disk access, no side effects beyond validating and freezing
// builder state.
type Builder struct {
	id                   string
	version              string
	schemaVersion        int
	tags                 []string
	deviceContractFqName string

	features map[string]Feature

	publicProperties    map[string]convert.PropertyDescriptor
	nonPublicProperties map[string]convert.PropertyDescriptor
	publicActions       map[string]convert.ActionDescriptor
	nonPublicActions    map[string]convert.ActionDescriptor
	streams             map[string]convert.StreamDescriptor

	children map[string]ChildComponentConfig
	peers    map[string]PeerConnectionConfig

	defaultMeta *meta.Tree

	operationalStates []string
	operationalGuards []string
}

// NewBuilder starts a builder for a blueprint identified by id/version.
func NewBuilder(id, version string) *Builder {
	return &Builder{
		id:                  id,
		version:             version,
		features:            make(map[string]Feature),
		publicProperties:    make(map[string]convert.PropertyDescriptor),
		nonPublicProperties: make(map[string]convert.PropertyDescriptor),
		publicActions:       make(map[string]convert.ActionDescriptor),
		nonPublicActions:    make(map[string]convert.ActionDescriptor),
		streams:             make(map[string]convert.StreamDescriptor),
		children:            make(map[string]ChildComponentConfig),
		peers:               make(map[string]PeerConnectionConfig),
	}
}

// SchemaVersion sets the persistent-state schema version restore compares
// snapshots against (spec.md §4.10/§8 invariant 10). Defaults to 1 if never
// called.
func (b *Builder) SchemaVersion(v int) *Builder {
	b.schemaVersion = v
	return b
}

// Tags sets the blueprint's semantic tags.
func (b *Builder) Tags(tags ...string) *Builder {
	b.tags = tags
	return b
}

// DeviceContractFqName sets the fully-qualified device contract name.
func (b *Builder) DeviceContractFqName(fq string) *Builder {
	b.deviceContractFqName = fq
	return b
}

// DefaultMeta sets the blueprint's default configuration meta.
func (b *Builder) DefaultMeta(m *meta.Tree) *Builder {
	b.defaultMeta = m
	return b
}

// Feature declares an additional capability.
func (b *Builder) Feature(f Feature) *Builder {
	b.features[string(f.Kind)] = f
	if f.Kind == FeatureOperationalFsm {
		b.operationalStates = f.States
	}
	if f.Kind == FeatureOperationalGuards {
		b.operationalGuards = f.Guards
	}
	return b
}

// PublicProperty declares a publicly addressable property.
func (b *Builder) PublicProperty(p convert.PropertyDescriptor) *Builder {
	b.publicProperties[p.Name] = p
	return b
}

// NonPublicProperty declares an internal-only property.
func (b *Builder) NonPublicProperty(p convert.PropertyDescriptor) *Builder {
	b.nonPublicProperties[p.Name] = p
	return b
}

// PublicAction declares a publicly invocable action.
func (b *Builder) PublicAction(a convert.ActionDescriptor) *Builder {
	b.publicActions[a.Name] = a
	return b
}

// NonPublicAction declares an internal-only action.
func (b *Builder) NonPublicAction(a convert.ActionDescriptor) *Builder {
	b.nonPublicActions[a.Name] = a
	return b
}

// Stream declares a byte stream.
func (b *Builder) Stream(s convert.StreamDescriptor) *Builder {
	b.streams[s.Name] = s
	return b
}

// Child declares a child component under the given local name.
func (b *Builder) Child(name string, cfg ChildComponentConfig) *Builder {
	b.children[name] = cfg
	return b
}

// Peer declares a peer hub connection under the given local name.
func (b *Builder) Peer(name string, cfg PeerConnectionConfig) *Builder {
	b.peers[name] = cfg
	return b
}

// Build validates accumulated state and produces an immutable Declaration.
// It auto-adds LifecycleFeature, and if an operational FSM or guards were
// declared, computes an OperationalFsmFeature whose event vocabulary is the
// union of events declared by actions (trigger/success/failure). Guard
// post-events are not part of that vocabulary: the builder only records
// guard names, and post-events live on the behavior facet.
func (b *Builder) Build() (*Declaration, error) {
	if err := b.checkNameCollisions(); err != nil {
		return nil, err
	}
	if err := b.checkPredicates(); err != nil {
		return nil, err
	}
	if err := b.checkRemoteChildrenReferencePeers(); err != nil {
		return nil, err
	}
	if b.schemaVersion < 0 {
		return nil, fmt.Errorf("blueprint %s: schema version must be non-negative, got %d", b.id, b.schemaVersion)
	}
	schemaVersion := b.schemaVersion
	if schemaVersion == 0 {
		schemaVersion = 1
	}

	b.Feature(Lifecycle())

	if len(b.operationalStates) > 0 || len(b.operationalGuards) > 0 {
		events := b.collectOperationalEvents()
		b.Feature(OperationalFsm(b.operationalStates, events))
	}

	d := &Declaration{
		ID:                   b.id,
		Version:              b.version,
		SchemaVersion:        schemaVersion,
		Tags:                 append([]string(nil), b.tags...),
		DeviceContractFqName: b.deviceContractFqName,
		Features:             cloneFeatures(b.features),
		PublicProperties:     clonePropertyMap(b.publicProperties),
		NonPublicProperties:  clonePropertyMap(b.nonPublicProperties),
		PublicActions:        cloneActionMap(b.publicActions),
		NonPublicActions:     cloneActionMap(b.nonPublicActions),
		Streams:              cloneStreamMap(b.streams),
		Children:             cloneChildMap(b.children),
		Peers:                clonePeerMap(b.peers),
		DefaultMeta:          b.defaultMeta,
	}
	if d.DefaultMeta != nil {
		d.DefaultMeta = d.DefaultMeta.Seal()
	}
	return d, nil
}

func (b *Builder) collectOperationalEvents() []string {
	seen := make(map[string]bool)
	var events []string
	add := func(e string) {
		if e == "" || seen[e] {
			return
		}
		seen[e] = true
		events = append(events, e)
	}
	for _, a := range b.publicActions {
		add(a.TriggerEvent)
		add(a.OnSuccessEvent)
		add(a.OnFailureEvent)
	}
	for _, a := range b.nonPublicActions {
		add(a.TriggerEvent)
		add(a.OnSuccessEvent)
		add(a.OnFailureEvent)
	}
	// Guard post-events are threaded through operationalGuards as
	// "guardName:postEvent" pairs resolved by the fsm package; here we only
	// need guard names already embedded in the declared feature, since the
	// concrete guard post-event is owned by the behavior facet, not the
	// declaration. No-op placeholder keeps this function's contract honest
	// about what a pure Declaration can know.
	return events
}

// checkNameCollisions enforces "within one blueprint, all property/action/
// stream/child/peer names are globally unique" (spec.md data model
// invariants).
func (b *Builder) checkNameCollisions() error {
	seen := make(map[string]string)
	claim := func(bucket, name string) error {
		if prior, ok := seen[name]; ok {
			return fmt.Errorf("blueprint %s: name %q declared in both %s and %s", b.id, name, prior, bucket)
		}
		seen[name] = bucket
		return nil
	}
	for name := range b.publicProperties {
		if err := claim("public property", name); err != nil {
			return err
		}
	}
	for name := range b.nonPublicProperties {
		if err := claim("non-public property", name); err != nil {
			return err
		}
	}
	for name := range b.publicActions {
		if err := claim("public action", name); err != nil {
			return err
		}
	}
	for name := range b.nonPublicActions {
		if err := claim("non-public action", name); err != nil {
			return err
		}
	}
	for name := range b.streams {
		if err := claim("stream", name); err != nil {
			return err
		}
	}
	for name := range b.children {
		if err := claim("child", name); err != nil {
			return err
		}
	}
	for name := range b.peers {
		if err := claim("peer", name); err != nil {
			return err
		}
	}
	return nil
}

// checkPredicates enforces "a PREDICATE property must be boolean-typed; any
// action requiredPredicates[i] must reference an existing PREDICATE".
func (b *Builder) checkPredicates() error {
	predicates := make(map[string]bool)
	checkOne := func(p convert.PropertyDescriptor) error {
		if p.Kind != convert.PropertyKindPredicate {
			return nil
		}
		if p.ValueTypeName != "bool" {
			return fmt.Errorf("blueprint %s: predicate property %q must be boolean-typed, got %q", b.id, p.Name, p.ValueTypeName)
		}
		predicates[p.Name] = true
		return nil
	}
	for _, p := range b.publicProperties {
		if err := checkOne(p); err != nil {
			return err
		}
	}
	for _, p := range b.nonPublicProperties {
		if err := checkOne(p); err != nil {
			return err
		}
	}
	checkAction := func(a convert.ActionDescriptor) error {
		for _, pred := range a.RequiredPredicates {
			if !predicates[pred] {
				return fmt.Errorf("blueprint %s: action %q references unknown predicate %q", b.id, a.Name, pred)
			}
		}
		return nil
	}
	for _, a := range b.publicActions {
		if err := checkAction(a); err != nil {
			return err
		}
	}
	for _, a := range b.nonPublicActions {
		if err := checkAction(a); err != nil {
			return err
		}
	}
	return nil
}

// checkRemoteChildrenReferencePeers enforces "remote-child configurations
// must reference a peer declared in the same blueprint".
func (b *Builder) checkRemoteChildrenReferencePeers() error {
	for name, c := range b.children {
		if c.Kind != ChildComponentRemote {
			continue
		}
		if _, ok := b.peers[c.PeerConnectionName]; !ok {
			return fmt.Errorf("blueprint %s: remote child %q references unknown peer %q", b.id, name, c.PeerConnectionName)
		}
	}
	return nil
}

func cloneFeatures(m map[string]Feature) map[string]Feature {
	out := make(map[string]Feature, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func clonePropertyMap(m map[string]convert.PropertyDescriptor) map[string]convert.PropertyDescriptor {
	out := make(map[string]convert.PropertyDescriptor, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneActionMap(m map[string]convert.ActionDescriptor) map[string]convert.ActionDescriptor {
	out := make(map[string]convert.ActionDescriptor, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneStreamMap(m map[string]convert.StreamDescriptor) map[string]convert.StreamDescriptor {
	out := make(map[string]convert.StreamDescriptor, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneChildMap(m map[string]ChildComponentConfig) map[string]ChildComponentConfig {
	out := make(map[string]ChildComponentConfig, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func clonePeerMap(m map[string]PeerConnectionConfig) map[string]PeerConnectionConfig {
	out := make(map[string]PeerConnectionConfig, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
