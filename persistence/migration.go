package persistence

import (
	"fmt"
	"sync"
)

// StateMigrator transforms a Snapshot captured at FromVersion into its
// equivalent at ToVersion for one blueprint id. Chains of migrators are
// applied sequentially by MigratorRegistry.Migrate.
type StateMigrator interface {
	ID() string
	FromVersion() int
	ToVersion() int
	Migrate(Snapshot) (Snapshot, error)
}

// MigratorFunc adapts a plain function plus identity fields to StateMigrator.
type MigratorFunc struct {
	Name string
	From int
	To   int
	Fn   func(Snapshot) (Snapshot, error)
}

func (m MigratorFunc) ID() string          { return m.Name }
func (m MigratorFunc) FromVersion() int    { return m.From }
func (m MigratorFunc) ToVersion() int      { return m.To }
func (m MigratorFunc) Migrate(s Snapshot) (Snapshot, error) {
	return m.Fn(s)
}

// MigratorRegistry resolves chains of StateMigrator by blueprint id,
// explicit process-wide state passed by reference (spec.md §9's
// no-ambient-singletons rule), same init/mutate/freeze lifecycle as
// blueprint.Registry.
type MigratorRegistry struct {
	mu        sync.RWMutex
	migrators map[string][]StateMigrator // blueprintID -> all registered edges
	frozen    bool
}

// NewMigratorRegistry creates an empty migrator registry.
func NewMigratorRegistry() *MigratorRegistry {
	return &MigratorRegistry{migrators: make(map[string][]StateMigrator)}
}

// Register adds a migrator edge for blueprintID.
func (r *MigratorRegistry) Register(blueprintID string, m StateMigrator) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frozen {
		return fmt.Errorf("persistence: migrator registry is frozen, cannot register %s", m.ID())
	}
	r.migrators[blueprintID] = append(r.migrators[blueprintID], m)
	return nil
}

// Freeze prevents further registration.
func (r *MigratorRegistry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// ErrNoMigrationChain is returned when Migrate cannot find a connected
// sequence of edges from a snapshot's schema version to the target.
var ErrNoMigrationChain = fmt.Errorf("persistence: no migrator chain resolves the requested schema versions")

// Migrate walks a chain of registered edges for blueprintID from
// snap.SchemaVersion to target, applying each in order. Per spec.md §4.10 /
// §8 invariant 10, any chain connecting the same two endpoints yields the
// same result, so Migrate greedily follows, from each version, the edge last
// registered with that FromVersion, and fails closed (ErrNoMigrationChain) rather than guessing at a partial path.
func (r *MigratorRegistry) Migrate(blueprintID string, snap Snapshot, target int) (Snapshot, error) {
	if snap.SchemaVersion == target {
		return snap, nil
	}
	if snap.SchemaVersion > target {
		return Snapshot{}, fmt.Errorf("persistence: snapshot schema version %d is newer than target %d", snap.SchemaVersion, target)
	}

	r.mu.RLock()
	byFrom := make(map[int]StateMigrator, len(r.migrators[blueprintID]))
	for _, m := range r.migrators[blueprintID] {
		byFrom[m.FromVersion()] = m
	}
	r.mu.RUnlock()

	cur := snap
	for cur.SchemaVersion != target {
		m, ok := byFrom[cur.SchemaVersion]
		if !ok {
			return Snapshot{}, fmt.Errorf("%w: blueprint=%s from=%d to=%d", ErrNoMigrationChain, blueprintID, cur.SchemaVersion, target)
		}
		next, err := m.Migrate(cur)
		if err != nil {
			return Snapshot{}, fmt.Errorf("persistence: migrator %s failed: %w", m.ID(), err)
		}
		next.SchemaVersion = m.ToVersion()
		cur = next
	}
	return cur, nil
}

// BlobStore persists large binary artifacts alongside a Snapshot's meta
// state (spec.md §4.10 "large binary artifacts go through an auxiliary
// interface"). A durable implementation is an external collaborator per
// spec.md §1's non-goals; InMemoryBlobStore is the default for tests and
// single-node deployments.
type BlobStore interface {
	SnapshotBlobs(deviceID string, blobs map[string][]byte) error
	RestoreBlobs(deviceID string) (map[string][]byte, error)
}

// InMemoryBlobStore is a process-local BlobStore backed by a map.
type InMemoryBlobStore struct {
	mu    sync.RWMutex
	blobs map[string]map[string][]byte
}

// NewInMemoryBlobStore creates an empty in-memory blob store.
func NewInMemoryBlobStore() *InMemoryBlobStore {
	return &InMemoryBlobStore{blobs: make(map[string]map[string][]byte)}
}

// SnapshotBlobs replaces the stored blob set for deviceID.
func (s *InMemoryBlobStore) SnapshotBlobs(deviceID string, blobs map[string][]byte) error {
	cp := make(map[string][]byte, len(blobs))
	for k, v := range blobs {
		cp[k] = append([]byte(nil), v...)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[deviceID] = cp
	return nil
}

// RestoreBlobs returns a copy of the stored blob set for deviceID, or nil
// if none was ever stored.
func (s *InMemoryBlobStore) RestoreBlobs(deviceID string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.blobs[deviceID]
	if !ok {
		return nil, nil
	}
	cp := make(map[string][]byte, len(stored))
	for k, v := range stored {
		cp[k] = append([]byte(nil), v...)
	}
	return cp, nil
}
