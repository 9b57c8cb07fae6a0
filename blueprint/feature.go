// Package blueprint implements the declarative device contract (Blueprint),
// its builder, and the Hydrator that fuses a declaration with behavior
// facets and a driver into an ExecutableBlueprint, per spec.md §4.4.
package blueprint

// FeatureKind tags which variant of the Feature union a value carries.
type FeatureKind string

const (
	FeatureLifecycle       FeatureKind = "LIFECYCLE"
	FeatureReconfigurable  FeatureKind = "RECONFIGURABLE"
	FeatureStateful        FeatureKind = "STATEFUL"
	FeatureDataSource      FeatureKind = "DATA_SOURCE"
	FeatureTaskExecutor    FeatureKind = "TASK_EXECUTOR"
	FeaturePlanExecutor    FeatureKind = "PLAN_EXECUTOR"
	FeatureOperationalFsm  FeatureKind = "OPERATIONAL_FSM"
	FeatureBinaryData      FeatureKind = "BINARY_DATA"
	FeatureIntrospection   FeatureKind = "INTROSPECTION"
	FeatureRemoteMirror    FeatureKind = "REMOTE_MIRROR"
	FeatureOperationalGuards FeatureKind = "OPERATIONAL_GUARDS"
)

// Feature is a discriminated union advertising one capability a blueprint
// declares. Only the fields relevant to Kind are populated; the rest are
// left at their zero value.
type Feature struct {
	Kind FeatureKind

	// DataSource
	DataSourceType string

	// TaskExecutor
	TaskIDs []string

	// OperationalFsm
	States []string
	Events []string

	// BinaryData
	MimeTypes []string

	// Introspection
	ProvidesFsmDiagrams bool

	// RemoteMirror
	MirrorEntries []RemoteMirrorEntry

	// OperationalGuards
	Guards []string
}

// RemoteMirrorEntry names a property or action mirrored from a remote peer.
type RemoteMirrorEntry struct {
	Name       string
	RemoteName string
}

// Lifecycle returns the always-present LIFECYCLE feature.
func Lifecycle() Feature { return Feature{Kind: FeatureLifecycle} }

// Reconfigurable returns the RECONFIGURABLE feature.
func Reconfigurable() Feature { return Feature{Kind: FeatureReconfigurable} }

// Stateful returns the STATEFUL feature.
func Stateful() Feature { return Feature{Kind: FeatureStateful} }

// DataSource returns a DATA_SOURCE feature advertising typeName.
func DataSource(typeName string) Feature {
	return Feature{Kind: FeatureDataSource, DataSourceType: typeName}
}

// TaskExecutor returns a TASK_EXECUTOR feature advertising taskIDs.
func TaskExecutor(taskIDs ...string) Feature {
	return Feature{Kind: FeatureTaskExecutor, TaskIDs: taskIDs}
}

// PlanExecutor returns the PLAN_EXECUTOR feature.
func PlanExecutor() Feature { return Feature{Kind: FeaturePlanExecutor} }

// OperationalFsm returns an OPERATIONAL_FSM feature advertising its state
// and event vocabulary.
func OperationalFsm(states, events []string) Feature {
	return Feature{Kind: FeatureOperationalFsm, States: states, Events: events}
}

// BinaryData returns a BINARY_DATA feature advertising supported mime types.
func BinaryData(mimeTypes ...string) Feature {
	return Feature{Kind: FeatureBinaryData, MimeTypes: mimeTypes}
}

// Introspection returns an INTROSPECTION feature.
func Introspection(providesFsmDiagrams bool) Feature {
	return Feature{Kind: FeatureIntrospection, ProvidesFsmDiagrams: providesFsmDiagrams}
}

// RemoteMirror returns a REMOTE_MIRROR feature advertising mirrored entries.
func RemoteMirror(entries ...RemoteMirrorEntry) Feature {
	return Feature{Kind: FeatureRemoteMirror, MirrorEntries: entries}
}

// OperationalGuards returns an OPERATIONAL_GUARDS feature naming the guards
// a blueprint installs on its operational FSM.
func OperationalGuards(guards ...string) Feature {
	return Feature{Kind: FeatureOperationalGuards, Guards: guards}
}
