// Package reconcile implements the Reconciler and Transaction Plan engine
// (spec.md §4.8): diffing a desired device topology against a Hub's actual
// attached state, compiling the difference into a TransactionPlan of typed
// ActionSpec steps, and executing that plan with reference hydration.
// Reconciler and PlanExecutor are meta-controllers driving a *hub.Hub, not
// collaborators the Hub itself depends on.
package reconcile

import (
	"github.com/halcyon-automation/meridian/hub"
	"github.com/halcyon-automation/meridian/meta"
)

// DesiredDevice describes one device a caller wants attached, with an
// optional lifecycle target. Running == nil means "don't care about
// running/stopped, just attached".
type DesiredDevice struct {
	Address     meta.Address
	BlueprintID string
	Version     string
	Config      *meta.Tree
	Running     *bool

	// Children is the set of child binding keys desired is expected to
	// produce once attached, checked against the actual bound children a
	// live attach reports. nil means "don't care" — most blueprints derive
	// their children deterministically from Config, so callers only need
	// to populate this when they want to catch a binding that silently
	// failed to apply.
	Children []string
}

// DesiredState is the full device topology a caller wants the hub to
// converge to, keyed by address string.
type DesiredState map[string]DesiredDevice

// DiffKind tags which variant of the StateDiff union a value carries.
type DiffKind string

const (
	DiffDeviceMissing         DiffKind = "DEVICE_MISSING"
	DiffDeviceExtra           DiffKind = "DEVICE_EXTRA"
	DiffBlueprintMismatch     DiffKind = "BLUEPRINT_MISMATCH"
	DiffMetaMismatch          DiffKind = "META_MISMATCH"
	DiffChildBindingsChanged  DiffKind = "CHILD_BINDINGS_CHANGED"
	DiffLifecycleStateMismatch DiffKind = "LIFECYCLE_STATE_MISMATCH"
)

// StateDiff is a discriminated union reporting one divergence between
// desired and actual hub state. Only the fields relevant to Kind are
// populated, matching blueprint.Feature's flat-struct union shape.
type StateDiff struct {
	Kind    DiffKind
	Address meta.Address

	// DeviceMissing / BlueprintMismatch / ChildBindingsChanged (the
	// blueprint/version/config to re-attach under)
	DesiredBlueprintID string
	DesiredVersion     string
	DesiredConfig      *meta.Tree

	// BlueprintMismatch
	ActualBlueprintID string
	ActualVersion     string

	// MetaMismatch: dotted meta.Name path -> desired value, for every leaf
	// that differs between desired and actual config.
	ChangedProperties map[string]meta.Value

	// ChildBindingsChanged
	DesiredChildren []string
	ActualChildren  []string

	// LifecycleStateMismatch
	DesiredRunning bool
	ActualState    string
}

// Reconciler compares a DesiredState against a Hub's currently attached
// devices and compiles the divergence into a TransactionPlan.
type Reconciler struct {
	Hub *hub.Hub
}

// NewReconciler builds a Reconciler driving h.
func NewReconciler(h *hub.Hub) *Reconciler {
	return &Reconciler{Hub: h}
}

// Diff compares desired against the hub's actual attached devices, per
// spec.md §4.8. Devices present in desired but not attached produce
// DeviceMissing; devices attached but absent from desired produce
// DeviceExtra; devices present in both are compared blueprint-by-blueprint,
// config-tree-by-config-tree, running-state-by-running-state.
func (r *Reconciler) Diff(desired DesiredState) []StateDiff {
	actual := make(map[string]hub.DeviceInfo)
	for _, info := range r.Hub.ListDevices() {
		actual[info.Address.String()] = info
	}

	var diffs []StateDiff
	for key, want := range desired {
		have, ok := actual[key]
		if !ok {
			diffs = append(diffs, StateDiff{
				Kind:               DiffDeviceMissing,
				Address:            want.Address,
				DesiredBlueprintID: want.BlueprintID,
				DesiredVersion:     want.Version,
				DesiredConfig:      want.Config,
			})
			continue
		}

		if have.BlueprintID != want.BlueprintID || have.Version != want.Version {
			diffs = append(diffs, StateDiff{
				Kind:               DiffBlueprintMismatch,
				Address:            want.Address,
				DesiredBlueprintID: want.BlueprintID,
				DesiredVersion:     want.Version,
				DesiredConfig:      want.Config,
				ActualBlueprintID:  have.BlueprintID,
				ActualVersion:      have.Version,
			})
			// A blueprint mismatch supersedes meta/lifecycle comparison for
			// this address: the replan attaches the new blueprint outright.
			continue
		}

		if changed := diffLeaves(want.Config, have.Config); len(changed) > 0 {
			diffs = append(diffs, StateDiff{
				Kind:              DiffMetaMismatch,
				Address:           want.Address,
				ChangedProperties: changed,
			})
		}

		if want.Children != nil && !sameChildSet(want.Children, have.Children) {
			diffs = append(diffs, StateDiff{
				Kind:            DiffChildBindingsChanged,
				Address:         want.Address,
				DesiredChildren: want.Children,
				ActualChildren:  have.Children,
				// Reconcile needs the current blueprint/version/config to
				// re-attach after tearing down the stale binding set.
				DesiredBlueprintID: have.BlueprintID,
				DesiredVersion:     have.Version,
				DesiredConfig:      want.Config,
			})
		}

		if want.Running != nil {
			wantRunning := *want.Running
			haveRunning := have.LifecycleState == "Running"
			if wantRunning != haveRunning {
				diffs = append(diffs, StateDiff{
					Kind:           DiffLifecycleStateMismatch,
					Address:        want.Address,
					DesiredRunning: wantRunning,
					ActualState:    have.LifecycleState,
				})
			}
		}
	}

	for key, have := range actual {
		if _, ok := desired[key]; !ok {
			diffs = append(diffs, StateDiff{Kind: DiffDeviceExtra, Address: have.Address})
		}
	}

	return diffs
}

// diffLeaves walks desired's leaf nodes and returns the subset (by dotted
// path) whose value differs from actual, or is absent from actual
// entirely. It does not report leaves present only in actual: a config
// write only ever needs to push desired's values forward.
func diffLeaves(desired, actual *meta.Tree) map[string]meta.Value {
	out := make(map[string]meta.Value)
	collectLeafDiffs(meta.NameOf(), desired, actual, out)
	return out
}

// sameChildSet reports whether want and have contain the same child keys,
// ignoring order.
func sameChildSet(want, have []string) bool {
	if len(want) != len(have) {
		return false
	}
	counts := make(map[string]int, len(want))
	for _, w := range want {
		counts[w]++
	}
	for _, h := range have {
		counts[h]--
		if counts[h] < 0 {
			return false
		}
	}
	return true
}

func collectLeafDiffs(prefix meta.Name, desired, actual *meta.Tree, out map[string]meta.Value) {
	if desired == nil {
		return
	}
	if v := desired.Value(); v != nil && len(desired.Keys()) == 0 {
		var actualValue *meta.Value
		if actual != nil {
			actualValue = actual.Value()
		}
		if actualValue == nil || !actualValue.Equal(*v) {
			out[prefix.String()] = *v
		}
		return
	}
	for _, key := range desired.Keys() {
		kids := desired.Children(key)
		var actualKids []*meta.Tree
		if actual != nil {
			actualKids = actual.Children(key)
		}
		for i, kid := range kids {
			tok := meta.Token{Body: key}
			if len(kids) > 1 {
				tok.HasIndex = true
				tok.Index = i
			}
			var actualKid *meta.Tree
			if i < len(actualKids) {
				actualKid = actualKids[i]
			}
			collectLeafDiffs(prefix.Append(tok), kid, actualKid, out)
		}
	}
}
