package device

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-automation/meridian/blueprint"
	"github.com/halcyon-automation/meridian/convert"
	"github.com/halcyon-automation/meridian/fsm"
	"github.com/halcyon-automation/meridian/meta"
	"github.com/halcyon-automation/meridian/security"
)

func securityPrincipal() security.Principal {
	return security.Principal{ID: "alice"}
}

func thermostatRuntime(t *testing.T) *Runtime {
	t.Helper()
	decls := blueprint.NewRegistry()
	behaviors := blueprint.NewBehaviorRegistry()

	d, err := blueprint.NewBuilder("com.example.thermostat", "1.0.0").
		PublicProperty(convert.PropertyDescriptor{
			Name: "setpoint", Kind: convert.PropertyKindPhysical,
			ValueTypeName: "double", Readable: true, Mutable: true,
		}).
		PublicProperty(convert.PropertyDescriptor{
			Name: "model", Kind: convert.PropertyKindPhysical,
			ValueTypeName: "string", Readable: true, Mutable: false,
		}).
		PublicAction(convert.ActionDescriptor{Name: "bump"}).
		Build()
	require.NoError(t, err)
	require.NoError(t, decls.Register(d))

	type instance struct{ setpoint float64 }

	facet := &blueprint.BehaviorFacet{
		BlueprintID: d.ID,
		Driver: blueprint.DriverFunc(func(ctx context.Context, cfg *meta.Tree) (any, error) {
			return &instance{setpoint: 20}, nil
		}),
		PropertyHandlers: map[string]blueprint.PropertyHandler{
			"setpoint": {
				Read: func(ctx context.Context, inst any) (meta.Value, error) {
					return meta.Double(inst.(*instance).setpoint), nil
				},
				Write: func(ctx context.Context, inst any, v meta.Value) error {
					f, _ := v.AsDouble()
					inst.(*instance).setpoint = f
					return nil
				},
			},
		},
		ActionHandlers: map[string]blueprint.ActionHandler{
			"bump": func(ctx context.Context, inst any, args *meta.Tree) (*meta.Tree, error) {
				inst.(*instance).setpoint++
				return nil, nil
			},
		},
	}
	require.NoError(t, behaviors.Register(d.Version, facet))

	hydrator := blueprint.NewHydrator(decls, behaviors)
	exec, err := hydrator.Hydrate(d.ID, d.Version)
	require.NoError(t, err)

	addr, err := meta.ParseAddress("hub::thermostat")
	require.NoError(t, err)

	rt := New(context.Background(), addr, exec, Dependencies{})
	require.NoError(t, rt.Attach(context.Background(), nil))
	t.Cleanup(func() {
		if rt.Lifecycle.State() == fsm.StateRunning {
			_ = rt.Stop(context.Background())
		}
		_ = rt.Detach(context.Background())
	})
	return rt
}

func TestRuntimeAttachLeavesLifecycleStopped(t *testing.T) {
	rt := thermostatRuntime(t)
	assert.Equal(t, "Stopped", string(rt.Lifecycle.State()))
}

func TestRuntimeStartReachesRunning(t *testing.T) {
	rt := thermostatRuntime(t)
	require.NoError(t, rt.Start(context.Background()))
	assert.Equal(t, "Running", string(rt.Lifecycle.State()))
}

func TestRuntimeStartRequiresStopped(t *testing.T) {
	rt := thermostatRuntime(t)
	require.NoError(t, rt.Start(context.Background()))

	err := rt.Start(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLifecycleState)
}

func TestReadPropertyReturnsUnknownPropertyError(t *testing.T) {
	rt := thermostatRuntime(t)
	_, _, err := rt.ReadProperty(context.Background(), securityPrincipal(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownProperty)
}

func TestWritePropertyRejectsNonMutableProperty(t *testing.T) {
	rt := thermostatRuntime(t)
	err := rt.WriteProperty(context.Background(), securityPrincipal(), "model", meta.String("x"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotMutable)
}

func TestWritePropertyUpdatesInstanceAndCell(t *testing.T) {
	rt := thermostatRuntime(t)
	require.NoError(t, rt.WriteProperty(context.Background(), securityPrincipal(), "setpoint", meta.Double(30)))

	v, _, err := rt.ReadProperty(context.Background(), securityPrincipal(), "setpoint")
	require.NoError(t, err)
	d, _ := v.AsDouble()
	assert.Equal(t, 30.0, d)
}

func TestExecuteActionRunsHandlerAndReturnsResult(t *testing.T) {
	rt := thermostatRuntime(t)
	_, err := rt.ExecuteAction(context.Background(), securityPrincipal(), "bump", nil)
	require.NoError(t, err)

	v, _, err := rt.ReadProperty(context.Background(), securityPrincipal(), "setpoint")
	require.NoError(t, err)
	d, _ := v.AsDouble()
	assert.Equal(t, 21.0, d)
}

func TestExecuteActionRejectsUnknownAction(t *testing.T) {
	rt := thermostatRuntime(t)
	_, err := rt.ExecuteAction(context.Background(), securityPrincipal(), "nonexistent", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownAction)
}
