// Package persistence implements device and blueprint snapshot/restore
// (spec.md §4.10): capturing every StatefulState cell into a versioned
// Snapshot and replaying it back through a schema migration chain.
// Grounded on state/stateful.go's narrow PersistenceElement surface, kept
// decoupled from the state package itself to avoid an import cycle.
package persistence

import (
	"fmt"
	"sync"
	"time"

	"github.com/halcyon-automation/meridian/meta"
	"github.com/halcyon-automation/meridian/state"
)

// Snapshot is the persisted image of one device's stateful cells at a
// point in time.
type Snapshot struct {
	DeviceID      string
	BlueprintID   string
	SchemaVersion int
	TakenAt       time.Time
	State         *meta.Tree
	Blobs         map[string][]byte
}

// SnapshotService captures and restores the PersistenceElement set a
// device.Runtime registers with it.
type SnapshotService struct {
	mu        sync.RWMutex
	elements  map[string]map[string]state.PersistenceElement
	migrators *MigratorRegistry
	blobs     BlobStore
}

// NewSnapshotService builds a SnapshotService backed by migrators (may be
// nil, meaning no schema migration support) and blobs (falls back to
// NewInMemoryBlobStore if nil).
func NewSnapshotService(migrators *MigratorRegistry, blobs BlobStore) *SnapshotService {
	if blobs == nil {
		blobs = NewInMemoryBlobStore()
	}
	return &SnapshotService{
		elements:  make(map[string]map[string]state.PersistenceElement),
		migrators: migrators,
		blobs:     blobs,
	}
}

// Register associates a PersistenceElement with deviceID, so future
// Snapshot/Restore calls for that device include it. Registering under an
// already-used element Name replaces the prior registration, letting
// hot-swap re-register surviving cells under a new blueprint revision.
func (s *SnapshotService) Register(deviceID string, el state.PersistenceElement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.elements[deviceID] == nil {
		s.elements[deviceID] = make(map[string]state.PersistenceElement)
	}
	s.elements[deviceID][el.Name()] = el
}

// Unregister removes a device's stateful cells from tracking entirely,
// called on detach.
func (s *SnapshotService) Unregister(deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.elements, deviceID)
}

// Snapshot captures every registered PersistenceElement for deviceID into a
// Snapshot tree keyed by element Name.
func (s *SnapshotService) Snapshot(deviceID, blueprintID string, schemaVersion int) (Snapshot, error) {
	s.mu.RLock()
	elements := s.elements[deviceID]
	els := make([]state.PersistenceElement, 0, len(elements))
	for _, el := range elements {
		els = append(els, el)
	}
	s.mu.RUnlock()

	tree := meta.NewTree()
	for _, el := range els {
		v, err := el.Snapshot()
		if err != nil {
			return Snapshot{}, fmt.Errorf("persistence: snapshotting %s/%s: %w", deviceID, el.Name(), err)
		}
		name, err := meta.ParseName(el.Name())
		if err != nil {
			return Snapshot{}, fmt.Errorf("persistence: element name %q is not a valid meta.Name: %w", el.Name(), err)
		}
		tree.Put(name, v)
	}

	blobs, err := s.blobs.RestoreBlobs(deviceID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("persistence: loading blobs for %s: %w", deviceID, err)
	}

	return Snapshot{
		DeviceID:      deviceID,
		BlueprintID:   blueprintID,
		SchemaVersion: schemaVersion,
		TakenAt:       time.Now(),
		State:         tree,
		Blobs:         blobs,
	}, nil
}

// SnapshotBlobs stashes blobs in the service's BlobStore under deviceID, to
// be returned by the next Snapshot call for that device.
func (s *SnapshotService) SnapshotBlobs(deviceID string, blobs map[string][]byte) error {
	return s.blobs.SnapshotBlobs(deviceID, blobs)
}

// Restore migrates snap to targetSchemaVersion (if a migrator chain for
// snap.BlueprintID resolves one) and pushes every stored value back into
// the matching registered PersistenceElement. Values with no registered
// element are silently skipped, since a blueprint revision may have
// dropped that property.
func (s *SnapshotService) Restore(snap Snapshot, targetSchemaVersion int) error {
	if s.migrators != nil && snap.SchemaVersion != targetSchemaVersion {
		migrated, err := s.migrators.Migrate(snap.BlueprintID, snap, targetSchemaVersion)
		if err != nil {
			return fmt.Errorf("persistence: migrating snapshot for %s: %w", snap.DeviceID, err)
		}
		snap = migrated
	}

	s.mu.RLock()
	elements := s.elements[snap.DeviceID]
	s.mu.RUnlock()

	for _, key := range snap.State.Keys() {
		name, err := meta.ParseName(key)
		if err != nil {
			continue
		}
		node, ok := snap.State.Get(name)
		if !ok || node.Value() == nil {
			continue
		}
		el, ok := elements[key]
		if !ok {
			continue
		}
		if err := el.Restore(*node.Value()); err != nil {
			return fmt.Errorf("persistence: restoring %s/%s: %w", snap.DeviceID, key, err)
		}
	}
	return nil
}
