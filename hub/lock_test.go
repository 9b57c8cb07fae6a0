package hub

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-automation/meridian/config"
	"github.com/halcyon-automation/meridian/convert"
	"github.com/halcyon-automation/meridian/meta"
)

func TestMemoryLockTableAcquireNamedContendsOnExclusiveWrite(t *testing.T) {
	tbl := NewMemoryLockTable(time.Minute)
	ctx := context.Background()

	token, err := tbl.AcquireNamed(ctx, meta.Address{}, "compressor", convert.LockModeExclusiveWrite, 0)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	_, err = tbl.AcquireNamed(ctx, meta.Address{}, "compressor", convert.LockModeExclusiveWrite, 0)
	require.ErrorIs(t, err, ErrLockContention)
}

func TestMemoryLockTableSharedReadComposesWithItself(t *testing.T) {
	tbl := NewMemoryLockTable(time.Minute)
	ctx := context.Background()

	_, err := tbl.AcquireNamed(ctx, meta.Address{}, "sensor", convert.LockModeSharedRead, 0)
	require.NoError(t, err)

	_, err = tbl.AcquireNamed(ctx, meta.Address{}, "sensor", convert.LockModeSharedRead, 0)
	assert.NoError(t, err)
}

func TestMemoryLockTableReleaseFreesResourceForReacquire(t *testing.T) {
	tbl := NewMemoryLockTable(time.Minute)
	ctx := context.Background()

	token, err := tbl.AcquireNamed(ctx, meta.Address{}, "compressor", convert.LockModeExclusiveWrite, 0)
	require.NoError(t, err)
	require.NoError(t, tbl.Release(token))

	_, err = tbl.AcquireNamed(ctx, meta.Address{}, "compressor", convert.LockModeExclusiveWrite, 0)
	assert.NoError(t, err)
}

func TestMemoryLockTableForceReleaseDropsAllHolders(t *testing.T) {
	tbl := NewMemoryLockTable(time.Minute)
	ctx := context.Background()

	_, err := tbl.AcquireNamed(ctx, meta.Address{}, "compressor", convert.LockModeExclusiveWrite, 0)
	require.NoError(t, err)

	require.NoError(t, tbl.ForceRelease("compressor"))

	_, err = tbl.AcquireNamed(ctx, meta.Address{}, "compressor", convert.LockModeExclusiveWrite, 0)
	assert.NoError(t, err)
}

func TestMemoryLockTableAcquireComposesMultipleResourcesAtomically(t *testing.T) {
	tbl := NewMemoryLockTable(time.Minute)
	ctx := context.Background()

	_, err := tbl.AcquireNamed(ctx, meta.Address{}, "compressor", convert.LockModeExclusiveWrite, 0)
	require.NoError(t, err)

	release, err := tbl.Acquire(ctx, meta.Address{}, []convert.ResourceLockSpec{
		{Resource: "fan", Mode: convert.LockModeExclusiveWrite},
		{Resource: "compressor", Mode: convert.LockModeExclusiveWrite},
	})
	require.Error(t, err)
	assert.Nil(t, release)
}

func TestMemoryLockTableReleaseOfUnknownTokenIsNoop(t *testing.T) {
	tbl := NewMemoryLockTable(time.Minute)
	assert.NoError(t, tbl.Release("nonexistent"))
}

// redisTable spins up an in-memory miniredis instance and points a
// redisLockTable at it, the same wiring jordigilh-kubernaut's gateway
// dedup suite uses to exercise real redis.Client call paths without a
// live redis server.
func redisTable(t *testing.T) (*redisLockTable, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)

	tbl := &redisLockTable{
		client: redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		lease:  time.Minute,
	}
	return tbl, func() {
		tbl.client.Close()
		mr.Close()
	}
}

func TestRedisLockTableAcquireNamedContendsOnExclusiveWrite(t *testing.T) {
	tbl, cleanup := redisTable(t)
	defer cleanup()
	ctx := context.Background()

	token, err := tbl.AcquireNamed(ctx, meta.Address{}, "compressor", convert.LockModeExclusiveWrite, 0)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	_, err = tbl.AcquireNamed(ctx, meta.Address{}, "compressor", convert.LockModeExclusiveWrite, 0)
	require.ErrorIs(t, err, ErrLockContention)
}

func TestRedisLockTableReleaseFreesResourceForReacquire(t *testing.T) {
	tbl, cleanup := redisTable(t)
	defer cleanup()
	ctx := context.Background()

	token, err := tbl.AcquireNamed(ctx, meta.Address{}, "compressor", convert.LockModeExclusiveWrite, 0)
	require.NoError(t, err)
	require.NoError(t, tbl.Release(token))

	_, err = tbl.AcquireNamed(ctx, meta.Address{}, "compressor", convert.LockModeExclusiveWrite, 0)
	assert.NoError(t, err)
}

func TestRedisLockTableForceReleaseDeletesKeyOutright(t *testing.T) {
	tbl, cleanup := redisTable(t)
	defer cleanup()
	ctx := context.Background()

	_, err := tbl.AcquireNamed(ctx, meta.Address{}, "compressor", convert.LockModeExclusiveWrite, 0)
	require.NoError(t, err)

	require.NoError(t, tbl.ForceRelease("compressor"))

	_, err = tbl.AcquireNamed(ctx, meta.Address{}, "compressor", convert.LockModeExclusiveWrite, 0)
	assert.NoError(t, err)
}

func TestRedisLockTableAcquireReleasesEverythingOnContention(t *testing.T) {
	tbl, cleanup := redisTable(t)
	defer cleanup()
	ctx := context.Background()

	_, err := tbl.AcquireNamed(ctx, meta.Address{}, "compressor", convert.LockModeExclusiveWrite, 0)
	require.NoError(t, err)

	release, err := tbl.Acquire(ctx, meta.Address{}, []convert.ResourceLockSpec{
		{Resource: "fan", Mode: convert.LockModeExclusiveWrite},
		{Resource: "compressor", Mode: convert.LockModeExclusiveWrite},
	})
	require.Error(t, err)
	assert.Nil(t, release)

	// "fan" must have been rolled back by the failed Acquire's release().
	again, err := tbl.AcquireNamed(ctx, meta.Address{}, "fan", convert.LockModeExclusiveWrite, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, again)
}

func TestNewLockTableDefaultsToMemoryBackend(t *testing.T) {
	tbl := NewLockTable(config.DefaultHubConfig("hub"))
	_, ok := tbl.(*memoryLockTable)
	assert.True(t, ok)
}
