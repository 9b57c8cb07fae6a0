package transport

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// HubServiceDesc is the hand-built grpc.ServiceDesc for the control-plane
// service — the same shape protoc-gen-go-grpc emits from a .proto file,
// built by hand here since no codegen pipeline runs in this tree. Every
// method takes and returns *structpb.Struct; HubServer's own methods do
// the meta.Tree <-> structpb.Struct translation.
var HubServiceDesc = grpc.ServiceDesc{
	ServiceName: "meridian.hub.HubService",
	HandlerType: (*HubServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Attach", Handler: _HubService_Attach_Handler},
		{MethodName: "Detach", Handler: _HubService_Detach_Handler},
		{MethodName: "Start", Handler: _HubService_Start_Handler},
		{MethodName: "Stop", Handler: _HubService_Stop_Handler},
		{MethodName: "AcquireLock", Handler: _HubService_AcquireLock_Handler},
		{MethodName: "ReleaseLock", Handler: _HubService_ReleaseLock_Handler},
		{MethodName: "ForceReleaseLock", Handler: _HubService_ForceReleaseLock_Handler},
		{MethodName: "HotSwap", Handler: _HubService_HotSwap_Handler},
		{MethodName: "ReadProperty", Handler: _HubService_ReadProperty_Handler},
		{MethodName: "Invoke", Handler: _HubService_Invoke_Handler},
		{MethodName: "ExecuteTask", Handler: _HubService_ExecuteTask_Handler},
		{MethodName: "ListDevices", Handler: _HubService_ListDevices_Handler},
		{MethodName: "Reconfigure", Handler: _HubService_Reconfigure_Handler},
		{MethodName: "BatchRead", Handler: _HubService_BatchRead_Handler},
		{MethodName: "BatchWrite", Handler: _HubService_BatchWrite_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "meridian/hub.proto",
}

func decodeUnary(dec func(any) error) (*structpb.Struct, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, internal("decode request", err)
	}
	return in, nil
}

func _HubService_Attach_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in, err := decodeUnary(dec)
	if err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HubServiceServer).Attach(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/meridian.hub.HubService/Attach"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(HubServiceServer).Attach(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _HubService_Detach_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in, err := decodeUnary(dec)
	if err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HubServiceServer).Detach(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/meridian.hub.HubService/Detach"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(HubServiceServer).Detach(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _HubService_Start_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in, err := decodeUnary(dec)
	if err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HubServiceServer).Start(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/meridian.hub.HubService/Start"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(HubServiceServer).Start(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _HubService_Stop_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in, err := decodeUnary(dec)
	if err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HubServiceServer).Stop(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/meridian.hub.HubService/Stop"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(HubServiceServer).Stop(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _HubService_AcquireLock_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in, err := decodeUnary(dec)
	if err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HubServiceServer).AcquireLock(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/meridian.hub.HubService/AcquireLock"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(HubServiceServer).AcquireLock(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _HubService_ReleaseLock_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in, err := decodeUnary(dec)
	if err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HubServiceServer).ReleaseLock(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/meridian.hub.HubService/ReleaseLock"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(HubServiceServer).ReleaseLock(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _HubService_ForceReleaseLock_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in, err := decodeUnary(dec)
	if err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HubServiceServer).ForceReleaseLock(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/meridian.hub.HubService/ForceReleaseLock"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(HubServiceServer).ForceReleaseLock(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _HubService_HotSwap_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in, err := decodeUnary(dec)
	if err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HubServiceServer).HotSwap(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/meridian.hub.HubService/HotSwap"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(HubServiceServer).HotSwap(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _HubService_ReadProperty_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in, err := decodeUnary(dec)
	if err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HubServiceServer).ReadProperty(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/meridian.hub.HubService/ReadProperty"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(HubServiceServer).ReadProperty(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _HubService_Invoke_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in, err := decodeUnary(dec)
	if err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HubServiceServer).Invoke(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/meridian.hub.HubService/Invoke"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(HubServiceServer).Invoke(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _HubService_ExecuteTask_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in, err := decodeUnary(dec)
	if err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HubServiceServer).ExecuteTask(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/meridian.hub.HubService/ExecuteTask"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(HubServiceServer).ExecuteTask(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _HubService_ListDevices_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in, err := decodeUnary(dec)
	if err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HubServiceServer).ListDevices(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/meridian.hub.HubService/ListDevices"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(HubServiceServer).ListDevices(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _HubService_Reconfigure_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in, err := decodeUnary(dec)
	if err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HubServiceServer).Reconfigure(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/meridian.hub.HubService/Reconfigure"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(HubServiceServer).Reconfigure(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _HubService_BatchRead_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in, err := decodeUnary(dec)
	if err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HubServiceServer).BatchRead(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/meridian.hub.HubService/BatchRead"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(HubServiceServer).BatchRead(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _HubService_BatchWrite_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in, err := decodeUnary(dec)
	if err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(HubServiceServer).BatchWrite(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/meridian.hub.HubService/BatchWrite"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(HubServiceServer).BatchWrite(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
