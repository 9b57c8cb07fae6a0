package security

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-automation/meridian/meta"
)

func addr(t *testing.T) meta.Address {
	t.Helper()
	a, err := meta.ParseAddress("hub::living_room/thermostat")
	require.NoError(t, err)
	return a
}

func TestNewRegoAuthorizationReturnsDefaultDenyForEmptyPolicy(t *testing.T) {
	svc, err := NewRegoAuthorization(context.Background(), "")
	require.NoError(t, err)

	err = svc.CheckPermission(context.Background(), Principal{ID: "alice"}, "device.write", addr(t))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDenied))
}

func TestDefaultDenyDeniesEveryRequest(t *testing.T) {
	svc := DefaultDeny()
	err := svc.CheckPermission(context.Background(), Principal{ID: "anyone"}, "device.read", addr(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDenied))
}

const allowOperatorsPolicy = `
package meridian.authz

default allow = false

allow {
	input.permission == "device.write"
	input.principal.roles[_] == "operator"
}
`

func TestRegoAuthorizationAllowsMatchingRole(t *testing.T) {
	svc, err := NewRegoAuthorization(context.Background(), allowOperatorsPolicy)
	require.NoError(t, err)

	err = svc.CheckPermission(context.Background(), Principal{ID: "alice", Roles: []string{"operator"}}, "device.write", addr(t))
	assert.NoError(t, err)
}

func TestRegoAuthorizationDeniesWrongRole(t *testing.T) {
	svc, err := NewRegoAuthorization(context.Background(), allowOperatorsPolicy)
	require.NoError(t, err)

	err = svc.CheckPermission(context.Background(), Principal{ID: "bob", Roles: []string{"viewer"}}, "device.write", addr(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDenied))
}

func TestRegoAuthorizationDeniesWrongPermission(t *testing.T) {
	svc, err := NewRegoAuthorization(context.Background(), allowOperatorsPolicy)
	require.NoError(t, err)

	err = svc.CheckPermission(context.Background(), Principal{ID: "alice", Roles: []string{"operator"}}, "device.read", addr(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDenied))
}

func TestNewRegoAuthorizationRejectsMalformedPolicy(t *testing.T) {
	_, err := NewRegoAuthorization(context.Background(), "not valid rego at all {{{")
	assert.Error(t, err)
}
