package transport

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/halcyon-automation/meridian/hub"
	"github.com/halcyon-automation/meridian/meta"
)

// decodeTree is the inbound half of every handler: turn the wire
// structpb.Struct back into a *meta.Tree.
func decodeTree(s *structpb.Struct) (*meta.Tree, error) {
	t, err := meta.FromStruct(s)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "malformed request: %v", err)
	}
	return t, nil
}

// encodeTree is the outbound half: turn a *meta.Tree into the wire
// structpb.Struct, defaulting to an empty tree for nil (an RPC with no
// meaningful response body, e.g. Attach/Detach/Start/Stop).
func encodeTree(t *meta.Tree) (*structpb.Struct, error) {
	if t == nil {
		t = meta.NewTree()
	}
	s, err := t.ToStruct()
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return s, nil
}

func getString(t *meta.Tree, path string) string {
	v, ok := t.Get(meta.NameOf(path))
	if !ok || v.Value() == nil {
		return ""
	}
	s, _ := v.Value().AsString()
	return s
}

func getAddress(t *meta.Tree, path string) (meta.Address, error) {
	raw := getString(t, path)
	if raw == "" {
		return meta.Address{}, invalidArgument(path)
	}
	addr, err := meta.ParseAddress(raw)
	if err != nil {
		return meta.Address{}, status.Errorf(codes.InvalidArgument, "malformed address %q: %v", raw, err)
	}
	return addr, nil
}

func getTreeChild(t *meta.Tree, key string) *meta.Tree {
	kids := t.Children(key)
	if len(kids) == 0 {
		return nil
	}
	return kids[0]
}

// statusFromErr translates a Hub-boundary error into a gRPC status,
// unwrapping a *hub.Failure for its Kind when present and otherwise
// falling back to codes.Internal (every Hub method that can fail runs its
// error through hub's classify() already, so a bare non-Failure error
// reaching here means an invariant break, not a classified business
// failure).
func statusFromErr(err error) error {
	if err == nil {
		return nil
	}
	var f *hub.Failure
	if errors.As(err, &f) {
		return status.Error(kindToCode(f.Kind), f.Error())
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return err
	}
	return status.Error(codes.Internal, err.Error())
}

func kindToCode(k hub.Kind) codes.Code {
	switch k {
	case hub.KindValidation:
		return codes.InvalidArgument
	case hub.KindSecurity:
		return codes.PermissionDenied
	case hub.KindNotFound:
		return codes.NotFound
	case hub.KindTypeMismatch:
		return codes.FailedPrecondition
	case hub.KindLifecycle:
		return codes.FailedPrecondition
	case hub.KindLock:
		return codes.Aborted
	case hub.KindTimeout:
		return codes.DeadlineExceeded
	case hub.KindPeerConnection:
		return codes.Unavailable
	case hub.KindTransaction:
		return codes.Aborted
	case hub.KindMigration:
		return codes.FailedPrecondition
	default:
		return codes.Internal
	}
}
