package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// stubHubService is a minimal HubServiceServer for exercising the
// hand-built grpc.ServiceDesc handlers without a real *hub.Hub.
type stubHubService struct {
	HubServiceServer
	attachCalled bool
	attachErr    error
}

func (s *stubHubService) Attach(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.attachCalled = true
	if s.attachErr != nil {
		return nil, s.attachErr
	}
	return &structpb.Struct{}, nil
}

func TestHubServiceDescListsEveryMethod(t *testing.T) {
	names := make(map[string]bool, len(HubServiceDesc.Methods))
	for _, m := range HubServiceDesc.Methods {
		names[m.MethodName] = true
	}
	for _, want := range []string{
		"Attach", "Detach", "Start", "Stop", "AcquireLock", "ReleaseLock",
		"ForceReleaseLock", "HotSwap", "ReadProperty", "Invoke", "ExecuteTask",
		"ListDevices", "Reconfigure", "BatchRead", "BatchWrite",
	} {
		assert.True(t, names[want], "missing method %s", want)
	}
	assert.Equal(t, "meridian.hub.HubService", HubServiceDesc.ServiceName)
}

func TestAttachHandlerDecodesAndDispatchesWithoutInterceptor(t *testing.T) {
	srv := &stubHubService{}
	dec := func(v any) error { return nil }

	resp, err := _HubService_Attach_Handler(srv, context.Background(), dec, nil)

	require.NoError(t, err)
	assert.NotNil(t, resp)
	assert.True(t, srv.attachCalled)
}

func TestAttachHandlerRunsThroughInterceptor(t *testing.T) {
	srv := &stubHubService{}
	dec := func(v any) error { return nil }
	var sawMethod string
	interceptor := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		sawMethod = info.FullMethod
		return handler(ctx, req)
	}

	_, err := _HubService_Attach_Handler(srv, context.Background(), dec, interceptor)

	require.NoError(t, err)
	assert.Equal(t, "/meridian.hub.HubService/Attach", sawMethod)
	assert.True(t, srv.attachCalled)
}

func TestAttachHandlerPropagatesHandlerError(t *testing.T) {
	wantErr := errors.New("attach failed")
	srv := &stubHubService{attachErr: wantErr}
	dec := func(v any) error { return nil }

	_, err := _HubService_Attach_Handler(srv, context.Background(), dec, nil)

	assert.Equal(t, wantErr, err)
}

func TestDecodeUnaryWrapsDecodeFailure(t *testing.T) {
	decErr := errors.New("truncated message")
	_, err := decodeUnary(func(v any) error { return decErr })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode request")
}
