package transport

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/halcyon-automation/meridian/meta"
)

// fakeHubService is a full HubServiceServer stand-in driven by client_test
// to exercise Client's encode/dial/decode path without a real *hub.Hub.
type fakeHubService struct {
	HubServiceServer
	lastAddress   string
	lastPrincipal string
}

func (f *fakeHubService) Attach(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	t, err := decodeTree(req)
	if err != nil {
		return nil, err
	}
	f.lastAddress = getString(t, "address")
	return encodeTree(nil)
}

func (f *fakeHubService) ReadProperty(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := principalFromContext(ctx)
	if err != nil {
		return nil, err
	}
	f.lastPrincipal = p.ID
	out := meta.NewTree()
	out.Put(meta.NameOf("value"), meta.Double(21.5))
	return encodeTree(out)
}

func (f *fakeHubService) ListDevices(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	out := meta.NewTree()
	out.Put(meta.NameOf("count"), meta.Long(0))
	return encodeTree(out)
}

func dialFakeHub(t *testing.T, srv HubServiceServer) (*Client, func()) {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	s := grpc.NewServer()
	s.RegisterService(&HubServiceDesc, srv)
	go s.Serve(lis)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	return &Client{conn: conn}, func() {
		conn.Close()
		s.Stop()
	}
}

func TestClientAttachSendsEncodedAddress(t *testing.T) {
	fake := &fakeHubService{}
	c, cleanup := dialFakeHub(t, fake)
	defer cleanup()

	addr, err := meta.ParseAddress("hub::living_room/thermostat")
	require.NoError(t, err)

	err = c.Attach(context.Background(), addr, "thermostat", "1.0.0", nil)

	require.NoError(t, err)
	assert.Equal(t, "hub::living_room/thermostat", fake.lastAddress)
}

func TestClientReadPropertyPropagatesPrincipal(t *testing.T) {
	fake := &fakeHubService{}
	c, cleanup := dialFakeHub(t, fake)
	defer cleanup()

	addr, err := meta.ParseAddress("hub::living_room/thermostat")
	require.NoError(t, err)
	ctx := WithPrincipal(context.Background(), "alice", "operator")

	v, err := c.ReadProperty(ctx, addr, "currentTemp")

	require.NoError(t, err)
	d, ok := v.AsDouble()
	require.True(t, ok)
	assert.Equal(t, 21.5, d)
	assert.Equal(t, "alice", fake.lastPrincipal)
}

func TestClientListDevicesReturnsTree(t *testing.T) {
	fake := &fakeHubService{}
	c, cleanup := dialFakeHub(t, fake)
	defer cleanup()

	out, err := c.ListDevices(context.Background())

	require.NoError(t, err)
	v, ok := out.Get(meta.NameOf("count"))
	require.True(t, ok)
	n, _ := v.Value().AsLong()
	assert.Equal(t, int64(0), n)
}
