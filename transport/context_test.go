package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestPrincipalFromContextRequiresMetadata(t *testing.T) {
	_, err := principalFromContext(context.Background())
	require.Error(t, err)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestPrincipalFromContextRequiresPrincipalID(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-principal-role", "operator"))
	_, err := principalFromContext(ctx)
	require.Error(t, err)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestPrincipalFromContextExtractsIDAndRoles(t *testing.T) {
	md := metadata.Pairs("x-principal-id", "alice")
	md.Append("x-principal-role", "operator")
	md.Append("x-principal-role", "admin")
	ctx := metadata.NewIncomingContext(context.Background(), md)

	p, err := principalFromContext(ctx)

	require.NoError(t, err)
	assert.Equal(t, "alice", p.ID)
	assert.Equal(t, []string{"operator", "admin"}, p.Roles)
}

func TestInvalidArgumentFormatsFieldName(t *testing.T) {
	err := invalidArgument("blueprintId")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Contains(t, err.Error(), "blueprintId")
}

func TestInternalWrapsCause(t *testing.T) {
	err := internal("decode request", errors.New("truncated"))
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.Contains(t, err.Error(), "decode request")
	assert.Contains(t, err.Error(), "truncated")
}
