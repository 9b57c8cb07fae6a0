package blueprint

import (
	"context"
	"testing"

	"github.com/halcyon-automation/meridian/meta"
)

func buildTestDeclaration(t *testing.T) *Declaration {
	t.Helper()
	d, err := NewBuilder("com.example.thermostat", "1.0.0").Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return d
}

func TestHydratorFusesDeclarationAndFacet(t *testing.T) {
	decls := NewRegistry()
	behaviors := NewBehaviorRegistry()

	d := buildTestDeclaration(t)
	if err := decls.Register(d); err != nil {
		t.Fatalf("Register declaration: %v", err)
	}
	facet := &BehaviorFacet{
		BlueprintID: d.ID,
		Driver: DriverFunc(func(ctx context.Context, cfg *meta.Tree) (any, error) {
			return struct{}{}, nil
		}),
	}
	if err := behaviors.Register(d.Version, facet); err != nil {
		t.Fatalf("Register facet: %v", err)
	}

	h := NewHydrator(decls, behaviors)
	exec, err := h.Hydrate(d.ID, d.Version)
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	if exec.Declaration != d {
		t.Fatal("expected hydrated declaration to be the registered one")
	}
	if exec.Facet.Driver == nil {
		t.Fatal("expected driver to be present")
	}

	exec2, err := h.Hydrate(d.ID, d.Version)
	if err != nil {
		t.Fatalf("second Hydrate: %v", err)
	}
	if exec2 != exec {
		t.Fatal("expected cached ExecutableBlueprint on second hydrate")
	}
}

func TestHydratorFailsWithoutDriver(t *testing.T) {
	decls := NewRegistry()
	behaviors := NewBehaviorRegistry()

	d := buildTestDeclaration(t)
	if err := decls.Register(d); err != nil {
		t.Fatalf("Register declaration: %v", err)
	}
	if err := behaviors.Register(d.Version, &BehaviorFacet{BlueprintID: d.ID}); err != nil {
		t.Fatalf("Register facet: %v", err)
	}

	h := NewHydrator(decls, behaviors)
	if _, err := h.Hydrate(d.ID, d.Version); err == nil {
		t.Fatal("expected missing-driver error")
	}
}

func TestHydratorFailsWithoutDeclaration(t *testing.T) {
	h := NewHydrator(NewRegistry(), NewBehaviorRegistry())
	if _, err := h.Hydrate("com.example.nonexistent", "1.0.0"); err == nil {
		t.Fatal("expected missing-declaration error")
	}
}

func TestRegistryFreezeRejectsFurtherRegistration(t *testing.T) {
	r := NewRegistry()
	d := buildTestDeclaration(t)
	r.Freeze()
	if err := r.Register(d); err == nil {
		t.Fatal("expected frozen registry to reject registration")
	}
}

func TestRegistryFindByIDResolvesLatestVersion(t *testing.T) {
	r := NewRegistry()
	v1, _ := NewBuilder("com.example.x", "1.0.0").Build()
	v2, _ := NewBuilder("com.example.x", "2.0.0").Build()
	_ = r.Register(v1)
	_ = r.Register(v2)

	got, ok := r.FindByID("com.example.x", "")
	if !ok {
		t.Fatal("expected latest version to resolve")
	}
	if got.Version != "2.0.0" {
		t.Fatalf("expected latest version 2.0.0, got %s", got.Version)
	}
}
