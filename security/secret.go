package security

import (
	"context"
	"fmt"
	"sync"
)

// ErrSecretNotFound is returned by SecretProvider.Resolve when key is unset.
var ErrSecretNotFound = fmt.Errorf("security: secret not found")

// SecretProvider resolves the `secret:KEY` references used inside blueprint
// ComputableValue templates (spec.md §4.8), keeping credentials out of
// blueprint YAML and transaction plans.
type SecretProvider interface {
	Resolve(ctx context.Context, key string) (string, error)
}

// InMemorySecretProvider is a process-local SecretProvider, used in tests
// and single-node deployments in place of a vault integration.
type InMemorySecretProvider struct {
	mu      sync.RWMutex
	secrets map[string]string
}

// NewInMemorySecretProvider builds a provider seeded with initial.
func NewInMemorySecretProvider(initial map[string]string) *InMemorySecretProvider {
	p := &InMemorySecretProvider{secrets: make(map[string]string, len(initial))}
	for k, v := range initial {
		p.secrets[k] = v
	}
	return p
}

// Resolve implements SecretProvider.
func (p *InMemorySecretProvider) Resolve(_ context.Context, key string) (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.secrets[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	}
	return v, nil
}

// Set installs or overwrites a secret value.
func (p *InMemorySecretProvider) Set(key, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.secrets[key] = value
}
