// Package transport implements the Hub control-plane API over gRPC
// (spec.md §6's external interface surface). No .proto/codegen pipeline
// runs in this tree, so the wire messages are google.protobuf.Struct
// (structpb) — a real well-known type that fully implements
// proto.Message — carrying meta.Tree values marshaled via
// meta.Tree.ToStruct/FromStruct. The service is registered through a
// hand-built grpc.ServiceDesc, the same mechanism protoc-gen-go-grpc
// emits, with one RPC method per Hub control-plane operation.
//
// Request-context extraction follows coreengine/grpc/validation.go's
// ExtractRequestContext pattern: the syscall-boundary validation and
// principal lookup happen here, before any Hub method runs, so Hub
// methods never see malformed input. The principal is looked up only for
// RPCs whose Hub method takes one; Attach, Detach, Start, Stop and
// ListDevices read no principal, so those calls are not authenticated.
package transport

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/halcyon-automation/meridian/security"
)

// principalFromContext extracts the calling security.Principal from
// incoming gRPC metadata ("x-principal-id", repeated "x-principal-role"),
// the standard auth pattern for RPCs that carry no such field in their own
// request body.
func principalFromContext(ctx context.Context) (security.Principal, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return security.Principal{}, status.Error(codes.Unauthenticated, "missing request metadata")
	}
	ids := md.Get("x-principal-id")
	if len(ids) == 0 || ids[0] == "" {
		return security.Principal{}, status.Error(codes.Unauthenticated, "x-principal-id required")
	}
	return security.Principal{ID: ids[0], Roles: md.Get("x-principal-role")}, nil
}

// invalidArgument mirrors coreengine/grpc/validation.go's InvalidArgument
// builder.
func invalidArgument(fieldName string) error {
	return status.Errorf(codes.InvalidArgument, "%s is required", fieldName)
}

func internal(operation string, cause error) error {
	return status.Errorf(codes.Internal, "%s failed: %v", operation, cause)
}
