package security

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemorySecretProviderResolvesSeededValue(t *testing.T) {
	p := NewInMemorySecretProvider(map[string]string{"db/password": "hunter2"})

	v, err := p.Resolve(context.Background(), "db/password")

	require.NoError(t, err)
	assert.Equal(t, "hunter2", v)
}

func TestInMemorySecretProviderReturnsErrSecretNotFound(t *testing.T) {
	p := NewInMemorySecretProvider(nil)

	_, err := p.Resolve(context.Background(), "missing")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSecretNotFound))
}

func TestInMemorySecretProviderSetOverwrites(t *testing.T) {
	p := NewInMemorySecretProvider(map[string]string{"k": "v1"})
	p.Set("k", "v2")

	v, err := p.Resolve(context.Background(), "k")

	require.NoError(t, err)
	assert.Equal(t, "v2", v)
}
