package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigratorRegistryReturnsSnapshotUnchangedWhenAlreadyAtTarget(t *testing.T) {
	r := NewMigratorRegistry()
	snap := Snapshot{SchemaVersion: 3}

	out, err := r.Migrate("com.example.thermostat", snap, 3)
	require.NoError(t, err)
	assert.Equal(t, snap, out)
}

func TestMigratorRegistryWalksChainOfMultipleEdges(t *testing.T) {
	r := NewMigratorRegistry()
	require.NoError(t, r.Register("com.example.thermostat", MigratorFunc{
		Name: "v1-to-v2", From: 1, To: 2,
		Fn: func(s Snapshot) (Snapshot, error) { return s, nil },
	}))
	require.NoError(t, r.Register("com.example.thermostat", MigratorFunc{
		Name: "v2-to-v3", From: 2, To: 3,
		Fn: func(s Snapshot) (Snapshot, error) { return s, nil },
	}))

	out, err := r.Migrate("com.example.thermostat", Snapshot{SchemaVersion: 1}, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, out.SchemaVersion)
}

func TestMigratorRegistryFailsClosedWhenNoChainConnects(t *testing.T) {
	r := NewMigratorRegistry()
	require.NoError(t, r.Register("com.example.thermostat", MigratorFunc{
		Name: "v1-to-v2", From: 1, To: 2,
		Fn: func(s Snapshot) (Snapshot, error) { return s, nil },
	}))

	_, err := r.Migrate("com.example.thermostat", Snapshot{SchemaVersion: 1}, 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoMigrationChain)
}

func TestMigratorRegistryRejectsSnapshotNewerThanTarget(t *testing.T) {
	r := NewMigratorRegistry()
	_, err := r.Migrate("com.example.thermostat", Snapshot{SchemaVersion: 5}, 2)
	require.Error(t, err)
}

func TestMigratorRegistryRejectsRegistrationAfterFreeze(t *testing.T) {
	r := NewMigratorRegistry()
	r.Freeze()

	err := r.Register("com.example.thermostat", MigratorFunc{Name: "late", From: 1, To: 2})
	require.Error(t, err)
}

func TestInMemoryBlobStoreRoundTripsAndCopiesDefensively(t *testing.T) {
	s := NewInMemoryBlobStore()
	original := []byte{1, 2, 3}
	require.NoError(t, s.SnapshotBlobs("dev-1", map[string][]byte{"firmware": original}))

	original[0] = 99 // mutating caller's slice must not affect the store.

	got, err := s.RestoreBlobs("dev-1")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got["firmware"])
}

func TestInMemoryBlobStoreReturnsNilForUnknownDevice(t *testing.T) {
	s := NewInMemoryBlobStore()
	got, err := s.RestoreBlobs("missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}
