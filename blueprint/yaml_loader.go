package blueprint

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/halcyon-automation/meridian/convert"
)

// The authoring DSL itself is out of scope (spec.md §1 non-goals); this is
// the minimal flat YAML declaration format a registry needs to bootstrap
// from, analogous to the teacher's PipelineConfig JSON/YAML shape.

type yamlDecl struct {
	ID                   string                 `yaml:"id"`
	Version              string                 `yaml:"version"`
	Tags                 []string               `yaml:"tags"`
	DeviceContractFqName string                 `yaml:"deviceContractFqName"`
	Properties           []yamlProperty         `yaml:"properties"`
	NonPublicProperties  []yamlProperty         `yaml:"nonPublicProperties"`
	Actions              []yamlAction           `yaml:"actions"`
	NonPublicActions     []yamlAction           `yaml:"nonPublicActions"`
	Streams              []yamlStream           `yaml:"streams"`
	Children             []yamlChild            `yaml:"children"`
	Peers                []yamlPeer             `yaml:"peers"`
}

type yamlProperty struct {
	Name          string   `yaml:"name"`
	Kind          string   `yaml:"kind"`
	ValueType     string   `yaml:"valueType"`
	Readable      bool     `yaml:"readable"`
	Mutable       bool     `yaml:"mutable"`
	Unit          string   `yaml:"unit"`
	AllowedValues []string `yaml:"allowedValues"`
	Persistent    bool     `yaml:"persistent"`
	Transient     bool     `yaml:"transient"`
}

type yamlAction struct {
	Name                  string   `yaml:"name"`
	DefaultTimeoutSeconds int      `yaml:"defaultTimeoutSeconds"`
	ExecutionDeadlineSeconds int   `yaml:"executionDeadlineSeconds"`
	RequiredPredicates    []string `yaml:"requiredPredicates"`
	Distributable         bool     `yaml:"distributable"`
	TriggerEvent          string   `yaml:"triggerEvent"`
	OnSuccessEvent        string   `yaml:"onSuccessEvent"`
	OnFailureEvent        string   `yaml:"onFailureEvent"`
}

type yamlStream struct {
	Name       string `yaml:"name"`
	Direction  string `yaml:"direction"`
	BufferSize int    `yaml:"bufferSize"`
	Delivery   string `yaml:"delivery"`
}

type yamlChild struct {
	Name        string `yaml:"name"`
	Kind        string `yaml:"kind"` // LOCAL | REMOTE
	BlueprintID string `yaml:"blueprintId"`
	Version     string `yaml:"version"`
	Peer        string `yaml:"peer"`
	RemoteName  string `yaml:"remoteName"`
}

type yamlPeer struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
}

// LoadDeclarationYAML parses a single blueprint declaration from YAML text
// and builds it through Builder so the same name-collision and predicate
// invariants apply as to a programmatically constructed blueprint.
func LoadDeclarationYAML(data []byte) (*Declaration, error) {
	var doc yamlDecl
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("blueprint: parsing YAML declaration: %w", err)
	}
	if doc.ID == "" {
		return nil, fmt.Errorf("blueprint: YAML declaration missing id")
	}

	b := NewBuilder(doc.ID, doc.Version).
		Tags(doc.Tags...).
		DeviceContractFqName(doc.DeviceContractFqName)

	for _, p := range doc.Properties {
		b.PublicProperty(toPropertyDescriptor(p))
	}
	for _, p := range doc.NonPublicProperties {
		b.NonPublicProperty(toPropertyDescriptor(p))
	}
	for _, a := range doc.Actions {
		b.PublicAction(toActionDescriptor(a))
	}
	for _, a := range doc.NonPublicActions {
		b.NonPublicAction(toActionDescriptor(a))
	}
	for _, s := range doc.Streams {
		b.Stream(convert.StreamDescriptor{
			Name:       s.Name,
			Direction:  convert.StreamDirection(s.Direction),
			BufferSize: s.BufferSize,
			Delivery:   convert.DeliveryHint(s.Delivery),
		})
	}
	for _, p := range doc.Peers {
		b.Peer(p.Name, PeerConnectionConfig{Name: p.Name, Address: p.Address})
	}
	for _, c := range doc.Children {
		switch c.Kind {
		case "", "LOCAL":
			b.Child(c.Name, NewLocalChild(c.BlueprintID, c.Version))
		case "REMOTE":
			b.Child(c.Name, NewRemoteChild(c.Peer, c.RemoteName, c.BlueprintID, c.Version))
		default:
			return nil, fmt.Errorf("blueprint: child %q has unknown kind %q", c.Name, c.Kind)
		}
	}

	return b.Build()
}

func toPropertyDescriptor(p yamlProperty) convert.PropertyDescriptor {
	return convert.PropertyDescriptor{
		Name:          p.Name,
		Kind:          convert.PropertyKind(p.Kind),
		ValueTypeName: p.ValueType,
		Readable:      p.Readable,
		Mutable:       p.Mutable,
		Unit:          p.Unit,
		AllowedValues: p.AllowedValues,
		Persistent:    p.Persistent,
		Transient:     p.Transient,
	}
}

func toActionDescriptor(a yamlAction) convert.ActionDescriptor {
	return convert.ActionDescriptor{
		Name:               a.Name,
		DefaultTimeout:     time.Duration(a.DefaultTimeoutSeconds) * time.Second,
		ExecutionDeadline:  time.Duration(a.ExecutionDeadlineSeconds) * time.Second,
		RequiredPredicates: a.RequiredPredicates,
		Distributable:      a.Distributable,
		TriggerEvent:       a.TriggerEvent,
		OnSuccessEvent:     a.OnSuccessEvent,
		OnFailureEvent:     a.OnFailureEvent,
	}
}
