package transport

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/halcyon-automation/meridian/hub"
	"github.com/halcyon-automation/meridian/meta"
)

func TestEncodeDecodeTreeRoundTrips(t *testing.T) {
	in := meta.NewTree()
	in.Put(meta.NameOf("address"), meta.String("hub::living_room/thermostat"))
	in.Put(meta.NameOf("durationMs"), meta.Long(1500))

	wire, err := encodeTree(in)
	require.NoError(t, err)

	out, err := decodeTree(wire)
	require.NoError(t, err)

	assert.Equal(t, "hub::living_room/thermostat", getString(out, "address"))
}

func TestEncodeTreeDefaultsNilToEmpty(t *testing.T) {
	wire, err := encodeTree(nil)
	require.NoError(t, err)
	assert.Empty(t, wire.GetFields())
}

func TestGetAddressRejectsMissingAndMalformed(t *testing.T) {
	empty := meta.NewTree()
	_, err := getAddress(empty, "address")
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	malformed := meta.NewTree()
	malformed.Put(meta.NameOf("address"), meta.String("not-an-address!!"))
	_, err = getAddress(malformed, "address")
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestGetAddressParsesValidAddress(t *testing.T) {
	tr := meta.NewTree()
	tr.Put(meta.NameOf("address"), meta.String("hub::living_room/thermostat"))
	addr, err := getAddress(tr, "address")
	require.NoError(t, err)
	assert.Equal(t, "hub::living_room/thermostat", addr.String())
}

func TestStatusFromErrUnwrapsHubFailure(t *testing.T) {
	f := hub.NewFailure(hub.KindNotFound, "no such device", errors.New("boom"))
	err := statusFromErr(f)
	require.Error(t, err)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestStatusFromErrFallsBackToInternal(t *testing.T) {
	err := statusFromErr(errors.New("unclassified"))
	require.Error(t, err)
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestStatusFromErrNilIsNil(t *testing.T) {
	assert.NoError(t, statusFromErr(nil))
}

func TestKindToCodeCoversEveryKind(t *testing.T) {
	cases := map[hub.Kind]codes.Code{
		hub.KindValidation:     codes.InvalidArgument,
		hub.KindSecurity:       codes.PermissionDenied,
		hub.KindNotFound:       codes.NotFound,
		hub.KindTypeMismatch:   codes.FailedPrecondition,
		hub.KindLifecycle:      codes.FailedPrecondition,
		hub.KindLock:           codes.Aborted,
		hub.KindTimeout:        codes.DeadlineExceeded,
		hub.KindPeerConnection: codes.Unavailable,
		hub.KindTransaction:    codes.Aborted,
		hub.KindMigration:      codes.FailedPrecondition,
		hub.KindInternal:       codes.Internal,
	}
	for kind, want := range cases {
		assert.Equal(t, want, kindToCode(kind), "kind=%s", kind)
	}
}
