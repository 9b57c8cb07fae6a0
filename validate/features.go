package validate

import (
	"fmt"
	"strings"

	"github.com/halcyon-automation/meridian/blueprint"
)

// validateTaskExecutor enforces that a TASK_EXECUTOR feature names a
// non-empty, duplicate-free set of task ids — the set Hub.ExecuteTask
// later scans to route a bare RunWorkspaceTask taskID to this device.
func validateTaskExecutor(d *blueprint.Declaration, f blueprint.Feature) error {
	if len(f.TaskIDs) == 0 {
		return fmt.Errorf("TASK_EXECUTOR feature declares no task ids")
	}
	seen := make(map[string]bool, len(f.TaskIDs))
	for _, id := range f.TaskIDs {
		if id == "" {
			return fmt.Errorf("TASK_EXECUTOR feature declares an empty task id")
		}
		if seen[id] {
			return fmt.Errorf("TASK_EXECUTOR feature declares task id %q twice", id)
		}
		seen[id] = true
	}
	return nil
}

// validateRemoteMirror enforces that every mirrored entry names a property
// or action the Declaration actually declares; a REMOTE_MIRROR feature
// cannot mirror something that doesn't exist.
func validateRemoteMirror(d *blueprint.Declaration, f blueprint.Feature) error {
	for _, entry := range f.MirrorEntries {
		if entry.Name == "" {
			return fmt.Errorf("REMOTE_MIRROR feature declares an entry with no local name")
		}
		_, isProp := d.Property(entry.Name)
		_, isAction := d.Action(entry.Name)
		if !isProp && !isAction {
			return fmt.Errorf("REMOTE_MIRROR feature mirrors %q, which is neither a declared property nor action", entry.Name)
		}
		if entry.RemoteName == "" {
			return fmt.Errorf("REMOTE_MIRROR entry %q declares no remote name", entry.Name)
		}
	}
	return nil
}

// validateOperationalGuards enforces that a blueprint only declares guards
// alongside an operational FSM to attach them to, and that every named
// guard is non-empty.
func validateOperationalGuards(d *blueprint.Declaration, f blueprint.Feature) error {
	if len(f.Guards) == 0 {
		return fmt.Errorf("OPERATIONAL_GUARDS feature declares no guards")
	}
	if !d.HasFeature(blueprint.FeatureOperationalFsm) {
		return fmt.Errorf("OPERATIONAL_GUARDS feature requires an OPERATIONAL_FSM feature to guard")
	}
	for _, g := range f.Guards {
		if strings.TrimSpace(g) == "" {
			return fmt.Errorf("OPERATIONAL_GUARDS feature declares an empty guard name")
		}
	}
	return nil
}

// validateBinaryData enforces that a BINARY_DATA feature advertises at
// least one well-formed MIME type.
func validateBinaryData(d *blueprint.Declaration, f blueprint.Feature) error {
	if len(f.MimeTypes) == 0 {
		return fmt.Errorf("BINARY_DATA feature declares no mime types")
	}
	for _, mt := range f.MimeTypes {
		if !strings.Contains(mt, "/") {
			return fmt.Errorf("BINARY_DATA feature declares malformed mime type %q", mt)
		}
	}
	return nil
}

// validateDataSource enforces that a DATA_SOURCE feature names its source
// type.
func validateDataSource(d *blueprint.Declaration, f blueprint.Feature) error {
	if strings.TrimSpace(f.DataSourceType) == "" {
		return fmt.Errorf("DATA_SOURCE feature declares no source type")
	}
	return nil
}

// validateIntrospection enforces that a blueprint only promises FSM
// diagrams it can actually produce: ProvidesFsmDiagrams requires an
// OPERATIONAL_FSM feature to diagram.
func validateIntrospection(d *blueprint.Declaration, f blueprint.Feature) error {
	if f.ProvidesFsmDiagrams && !d.HasFeature(blueprint.FeatureOperationalFsm) {
		return fmt.Errorf("INTROSPECTION feature promises FSM diagrams but declares no OPERATIONAL_FSM feature")
	}
	return nil
}
