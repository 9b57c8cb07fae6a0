package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-automation/meridian/blueprint"
	"github.com/halcyon-automation/meridian/config"
	"github.com/halcyon-automation/meridian/hub"
	"github.com/halcyon-automation/meridian/meta"
)

// widgetHub builds a Hub with a single no-op blueprint registered (no
// properties, no actions) so tests can attach devices and exercise Diff
// without pulling in a full behavior fixture.
func widgetHub(t *testing.T) *hub.Hub {
	t.Helper()
	decls := blueprint.NewRegistry()
	behaviors := blueprint.NewBehaviorRegistry()

	d, err := blueprint.NewBuilder("com.example.widget", "1.0.0").Build()
	require.NoError(t, err)
	require.NoError(t, decls.Register(d))

	facet := &blueprint.BehaviorFacet{
		BlueprintID: d.ID,
		Driver: blueprint.DriverFunc(func(ctx context.Context, cfg *meta.Tree) (any, error) {
			return struct{}{}, nil
		}),
	}
	require.NoError(t, behaviors.Register(d.Version, facet))

	cfg := config.DefaultHubConfig("hub")
	return hub.New(cfg, decls, behaviors, nil)
}

func widgetAddr(t *testing.T, name string) meta.Address {
	t.Helper()
	a, err := meta.ParseAddress("hub::" + name)
	require.NoError(t, err)
	return a
}

func configWithValue(name string, v meta.Value) *meta.Tree {
	tr := meta.NewTree()
	tr.Put(meta.NameOf(name), v)
	return tr
}

func TestDiffReportsDeviceMissing(t *testing.T) {
	h := widgetHub(t)
	r := NewReconciler(h)
	addr := widgetAddr(t, "alpha")

	diffs := r.Diff(DesiredState{
		addr.String(): {Address: addr, BlueprintID: "com.example.widget", Version: "1.0.0"},
	})

	require.Len(t, diffs, 1)
	assert.Equal(t, DiffDeviceMissing, diffs[0].Kind)
	assert.Equal(t, "com.example.widget", diffs[0].DesiredBlueprintID)
}

func TestDiffReportsDeviceExtra(t *testing.T) {
	h := widgetHub(t)
	addr := widgetAddr(t, "alpha")
	require.NoError(t, h.Attach(context.Background(), addr, "com.example.widget", "1.0.0", nil))

	r := NewReconciler(h)
	diffs := r.Diff(DesiredState{})

	require.Len(t, diffs, 1)
	assert.Equal(t, DiffDeviceExtra, diffs[0].Kind)
	assert.Equal(t, addr.String(), diffs[0].Address.String())
}

func TestDiffReportsBlueprintMismatchAndSkipsFurtherComparison(t *testing.T) {
	h := widgetHub(t)
	addr := widgetAddr(t, "alpha")
	require.NoError(t, h.Attach(context.Background(), addr, "com.example.widget", "1.0.0", nil))

	r := NewReconciler(h)
	diffs := r.Diff(DesiredState{
		addr.String(): {Address: addr, BlueprintID: "com.example.other", Version: "2.0.0"},
	})

	require.Len(t, diffs, 1)
	assert.Equal(t, DiffBlueprintMismatch, diffs[0].Kind)
	assert.Equal(t, "com.example.widget", diffs[0].ActualBlueprintID)
	assert.Equal(t, "com.example.other", diffs[0].DesiredBlueprintID)
}

func TestDiffReportsMetaMismatchOnChangedLeaf(t *testing.T) {
	h := widgetHub(t)
	addr := widgetAddr(t, "alpha")
	actualCfg := configWithValue("label", meta.String("old"))
	require.NoError(t, h.Attach(context.Background(), addr, "com.example.widget", "1.0.0", actualCfg))

	r := NewReconciler(h)
	desiredCfg := configWithValue("label", meta.String("new"))
	diffs := r.Diff(DesiredState{
		addr.String(): {Address: addr, BlueprintID: "com.example.widget", Version: "1.0.0", Config: desiredCfg},
	})

	require.Len(t, diffs, 1)
	assert.Equal(t, DiffMetaMismatch, diffs[0].Kind)
	v, ok := diffs[0].ChangedProperties["label"]
	require.True(t, ok)
	s, _ := v.AsString()
	assert.Equal(t, "new", s)
}

func TestDiffReportsNothingWhenDesiredMatchesActual(t *testing.T) {
	h := widgetHub(t)
	addr := widgetAddr(t, "alpha")
	require.NoError(t, h.Attach(context.Background(), addr, "com.example.widget", "1.0.0", nil))

	r := NewReconciler(h)
	diffs := r.Diff(DesiredState{
		addr.String(): {Address: addr, BlueprintID: "com.example.widget", Version: "1.0.0"},
	})

	assert.Empty(t, diffs)
}

func TestDiffReportsLifecycleStateMismatchWhenRunningDesired(t *testing.T) {
	h := widgetHub(t)
	addr := widgetAddr(t, "alpha")
	require.NoError(t, h.Attach(context.Background(), addr, "com.example.widget", "1.0.0", nil))

	r := NewReconciler(h)
	wantRunning := true
	diffs := r.Diff(DesiredState{
		addr.String(): {Address: addr, BlueprintID: "com.example.widget", Version: "1.0.0", Running: &wantRunning},
	})

	require.Len(t, diffs, 1)
	assert.Equal(t, DiffLifecycleStateMismatch, diffs[0].Kind)
	assert.True(t, diffs[0].DesiredRunning)
}

func TestSameChildSetIgnoresOrder(t *testing.T) {
	assert.True(t, sameChildSet([]string{"a", "b"}, []string{"b", "a"}))
	assert.False(t, sameChildSet([]string{"a", "b"}, []string{"a"}))
	assert.False(t, sameChildSet([]string{"a", "a"}, []string{"a", "b"}))
}
