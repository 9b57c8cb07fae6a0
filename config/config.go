// Package config holds process-wide, infra-agnostic configuration structs.
// Following coreengine/config/core_config.go's philosophy, env/flag parsing
// lives only at the edge (cmd/meridiand); everything here is a pure struct
// with defaults.
package config

import "time"

// LockBackend selects the lease-lock storage backend a Hub uses.
type LockBackend string

const (
	// LockBackendMemory keeps lease state in the hub process only.
	LockBackendMemory LockBackend = "memory"
	// LockBackendRedis backs lease state with github.com/redis/go-redis/v9,
	// letting multiple hub processes share one lock table.
	LockBackendRedis LockBackend = "redis"
)

// HubConfig configures one Hub instance.
type HubConfig struct {
	// ID is this hub's route Name, used to answer meta.Address.Route
	// comparisons in findDevice.
	ID string

	// BatchParallelism bounds concurrent work inside Hub.BatchRead and
	// Hub.BatchWrite, via golang.org/x/sync/{errgroup,semaphore}. Attach
	// has no batch form and does not use it.
	BatchParallelism int

	// DefaultLockLease is used when acquireLock is called with a zero
	// duration.
	DefaultLockLease time.Duration

	// EventBufferSize bounds each subscriber's event channel.
	EventBufferSize int

	LockBackend  LockBackend
	RedisAddr    string
	RedisDB      int
}

// DefaultHubConfig returns the zero-value-safe default configuration.
func DefaultHubConfig(id string) HubConfig {
	return HubConfig{
		ID:               id,
		BatchParallelism: 8,
		DefaultLockLease: 30 * time.Second,
		EventBufferSize:  256,
		LockBackend:      LockBackendMemory,
	}
}
