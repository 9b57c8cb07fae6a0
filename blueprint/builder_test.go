package blueprint

import (
	"testing"

	"github.com/halcyon-automation/meridian/convert"
)

func TestBuilderProducesLifecycleFeature(t *testing.T) {
	d, err := NewBuilder("com.example.thermostat", "1.0.0").
		PublicProperty(convert.PropertyDescriptor{Name: "temperature", Kind: convert.PropertyKindPhysical, ValueTypeName: "double", Readable: true}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !d.HasFeature(FeatureLifecycle) {
		t.Fatal("expected auto-added LIFECYCLE feature")
	}
	if _, ok := d.Property("temperature"); !ok {
		t.Fatal("expected temperature property to resolve")
	}
}

func TestBuilderRejectsNameCollisionAcrossBuckets(t *testing.T) {
	_, err := NewBuilder("com.example.x", "1.0.0").
		PublicProperty(convert.PropertyDescriptor{Name: "mode", Kind: convert.PropertyKindLogical, ValueTypeName: "string"}).
		PublicAction(convert.ActionDescriptor{Name: "mode"}).
		Build()
	if err == nil {
		t.Fatal("expected name collision error")
	}
}

func TestBuilderRejectsNonBooleanPredicate(t *testing.T) {
	_, err := NewBuilder("com.example.x", "1.0.0").
		PublicProperty(convert.PropertyDescriptor{Name: "ready", Kind: convert.PropertyKindPredicate, ValueTypeName: "string"}).
		Build()
	if err == nil {
		t.Fatal("expected predicate-must-be-boolean error")
	}
}

func TestBuilderRejectsUnknownRequiredPredicate(t *testing.T) {
	_, err := NewBuilder("com.example.x", "1.0.0").
		PublicAction(convert.ActionDescriptor{Name: "run", RequiredPredicates: []string{"ready"}}).
		Build()
	if err == nil {
		t.Fatal("expected unknown-predicate error")
	}
}

func TestBuilderAcceptsValidPredicateReference(t *testing.T) {
	_, err := NewBuilder("com.example.x", "1.0.0").
		PublicProperty(convert.PropertyDescriptor{Name: "ready", Kind: convert.PropertyKindPredicate, ValueTypeName: "bool"}).
		PublicAction(convert.ActionDescriptor{Name: "run", RequiredPredicates: []string{"ready"}}).
		Build()
	if err != nil {
		t.Fatalf("expected valid predicate reference to build cleanly: %v", err)
	}
}

func TestBuilderRejectsRemoteChildWithoutPeer(t *testing.T) {
	_, err := NewBuilder("com.example.x", "1.0.0").
		Child("fan", NewRemoteChild("missing-peer", "remoteFan", "com.example.fan", "1.0.0")).
		Build()
	if err == nil {
		t.Fatal("expected remote child without declared peer to fail")
	}
}

func TestBuilderAcceptsRemoteChildWithPeer(t *testing.T) {
	_, err := NewBuilder("com.example.x", "1.0.0").
		Peer("hub2", PeerConnectionConfig{Name: "hub2", Address: "hub2.local:9000"}).
		Child("fan", NewRemoteChild("hub2", "remoteFan", "com.example.fan", "1.0.0")).
		Build()
	if err != nil {
		t.Fatalf("expected valid remote child to build cleanly: %v", err)
	}
}

func TestBuilderComputesOperationalFsmEventUnion(t *testing.T) {
	d, err := NewBuilder("com.example.x", "1.0.0").
		Feature(OperationalFsm([]string{"Idle", "Active"}, nil)).
		PublicAction(convert.ActionDescriptor{Name: "run", TriggerEvent: "Started", OnSuccessEvent: "Done", OnFailureEvent: "Errored"}).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	f, ok := d.Features[string(FeatureOperationalFsm)]
	if !ok {
		t.Fatal("expected OPERATIONAL_FSM feature to be present")
	}
	want := map[string]bool{"Started": true, "Done": true, "Errored": true}
	if len(f.Events) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), f.Events)
	}
	for _, e := range f.Events {
		if !want[e] {
			t.Fatalf("unexpected event %q in union", e)
		}
	}
}
