package transport

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/halcyon-automation/meridian/convert"
	"github.com/halcyon-automation/meridian/corelog"
	"github.com/halcyon-automation/meridian/hub"
	"github.com/halcyon-automation/meridian/meta"
	"github.com/halcyon-automation/meridian/observability"
)

// HubServiceServer is the interface a hand-built grpc.ServiceDesc
// registers against; HubServer is its only implementation, but keeping
// the interface separate mirrors the Server/{Unimplemented}Server split
// protoc-gen-go-grpc generates, which servicedesc.go's method handlers
// type-assert against.
type HubServiceServer interface {
	Attach(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Detach(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Start(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Stop(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	AcquireLock(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ReleaseLock(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ForceReleaseLock(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	HotSwap(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ReadProperty(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Invoke(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ExecuteTask(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListDevices(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Reconfigure(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	BatchRead(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	BatchWrite(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// HubServer implements HubServiceServer over one *hub.Hub, per spec.md §6's
// control-plane external interface.
type HubServer struct {
	Hub *hub.Hub
	Log corelog.Logger
}

// NewHubServer builds a HubServer bound to h. log defaults to a no-op.
func NewHubServer(h *hub.Hub, log corelog.Logger) *HubServer {
	if log == nil {
		log = corelog.NewNoop()
	}
	return &HubServer{Hub: h, Log: log}
}

var _ HubServiceServer = (*HubServer)(nil)

func (s *HubServer) Attach(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	t, err := decodeTree(req)
	if err != nil {
		return nil, err
	}
	addr, err := getAddress(t, "address")
	if err != nil {
		return nil, err
	}
	blueprintID := getString(t, "blueprintId")
	if blueprintID == "" {
		return nil, invalidArgument("blueprintId")
	}
	cfg := getTreeChild(t, "config")
	if cfg == nil {
		cfg = meta.NewTree()
	}
	err = s.Hub.Attach(ctx, addr, blueprintID, getString(t, "version"), cfg)
	observability.RecordDeviceAttach(statusLabel(err), deltaFor(err, 1))
	if err != nil {
		return nil, statusFromErr(err)
	}
	return encodeTree(nil)
}

func (s *HubServer) Detach(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	t, err := decodeTree(req)
	if err != nil {
		return nil, err
	}
	addr, err := getAddress(t, "address")
	if err != nil {
		return nil, err
	}
	if err := s.Hub.Detach(ctx, addr); err != nil {
		return nil, statusFromErr(err)
	}
	observability.RecordDeviceAttach("detached", -1)
	return encodeTree(nil)
}

func (s *HubServer) Start(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	t, err := decodeTree(req)
	if err != nil {
		return nil, err
	}
	addr, err := getAddress(t, "address")
	if err != nil {
		return nil, err
	}
	if err := s.Hub.Start(ctx, addr); err != nil {
		return nil, statusFromErr(err)
	}
	return encodeTree(nil)
}

func (s *HubServer) Stop(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	t, err := decodeTree(req)
	if err != nil {
		return nil, err
	}
	addr, err := getAddress(t, "address")
	if err != nil {
		return nil, err
	}
	if err := s.Hub.Stop(ctx, addr); err != nil {
		return nil, statusFromErr(err)
	}
	return encodeTree(nil)
}

func (s *HubServer) AcquireLock(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	t, err := decodeTree(req)
	if err != nil {
		return nil, err
	}
	addr, err := getAddress(t, "address")
	if err != nil {
		return nil, err
	}
	resource := getString(t, "resource")
	if resource == "" {
		return nil, invalidArgument("resource")
	}
	principal, perr := principalFromContext(ctx)
	if perr != nil {
		return nil, perr
	}
	mode := convert.LockMode(getString(t, "mode"))
	if mode == "" {
		mode = convert.LockModeExclusiveWrite
	}
	dur := durationFromMillis(t, "durationMs")

	token, err := s.Hub.AcquireLock(ctx, principal, addr, resource, mode, dur)
	label := "granted"
	if err != nil {
		label = "contended"
	}
	observability.RecordLockAcquire(string(mode), label)
	if err != nil {
		return nil, statusFromErr(err)
	}
	out := meta.NewTree()
	out.Put(meta.NameOf("token"), meta.String(token))
	return encodeTree(out)
}

func (s *HubServer) ReleaseLock(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	t, err := decodeTree(req)
	if err != nil {
		return nil, err
	}
	token := getString(t, "token")
	if token == "" {
		return nil, invalidArgument("token")
	}
	if err := s.Hub.ReleaseLock(ctx, token); err != nil {
		return nil, statusFromErr(err)
	}
	return encodeTree(nil)
}

func (s *HubServer) ForceReleaseLock(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	t, err := decodeTree(req)
	if err != nil {
		return nil, err
	}
	addr, err := getAddress(t, "address")
	if err != nil {
		return nil, err
	}
	principal, perr := principalFromContext(ctx)
	if perr != nil {
		return nil, perr
	}
	resource := getString(t, "resource")
	if resource == "" {
		return nil, invalidArgument("resource")
	}
	if err := s.Hub.ForceReleaseLock(ctx, principal, addr, resource, getString(t, "reason")); err != nil {
		return nil, statusFromErr(err)
	}
	observability.RecordLockForceRelease()
	return encodeTree(nil)
}

func (s *HubServer) HotSwap(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	t, err := decodeTree(req)
	if err != nil {
		return nil, err
	}
	addr, err := getAddress(t, "address")
	if err != nil {
		return nil, err
	}
	principal, perr := principalFromContext(ctx)
	if perr != nil {
		return nil, perr
	}
	blueprintID := getString(t, "blueprintId")
	if blueprintID == "" {
		return nil, invalidArgument("blueprintId")
	}
	cfg := getTreeChild(t, "config")
	if cfg == nil {
		cfg = meta.NewTree()
	}
	if err := s.Hub.HotSwap(ctx, principal, addr, blueprintID, getString(t, "version"), cfg); err != nil {
		return nil, statusFromErr(err)
	}
	return encodeTree(nil)
}

func (s *HubServer) ReadProperty(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	t, err := decodeTree(req)
	if err != nil {
		return nil, err
	}
	addr, err := getAddress(t, "address")
	if err != nil {
		return nil, err
	}
	property := getString(t, "property")
	if property == "" {
		return nil, invalidArgument("property")
	}
	principal, perr := principalFromContext(ctx)
	if perr != nil {
		return nil, perr
	}
	v, err := s.Hub.ReadProperty(ctx, principal, addr, property)
	if err != nil {
		return nil, statusFromErr(err)
	}
	out := meta.NewTree()
	out.Put(meta.NameOf("value"), v)
	return encodeTree(out)
}

func (s *HubServer) Invoke(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	t, err := decodeTree(req)
	if err != nil {
		return nil, err
	}
	addr, err := getAddress(t, "address")
	if err != nil {
		return nil, err
	}
	action := getString(t, "action")
	if action == "" {
		return nil, invalidArgument("action")
	}
	principal, perr := principalFromContext(ctx)
	if perr != nil {
		return nil, perr
	}
	args := getTreeChild(t, "args")

	start := time.Now()
	out, err := s.Hub.Invoke(ctx, principal, addr, action, args)
	observability.RecordAction(addr.String(), action, statusLabel(err), time.Since(start).Seconds())
	if err != nil {
		return nil, statusFromErr(err)
	}
	return encodeTree(out)
}

func (s *HubServer) ExecuteTask(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	t, err := decodeTree(req)
	if err != nil {
		return nil, err
	}
	taskID := getString(t, "taskId")
	if taskID == "" {
		return nil, invalidArgument("taskId")
	}
	principal, perr := principalFromContext(ctx)
	if perr != nil {
		return nil, perr
	}
	args := getTreeChild(t, "args")
	out, err := s.Hub.ExecuteTask(ctx, principal, taskID, args)
	if err != nil {
		return nil, statusFromErr(err)
	}
	return encodeTree(out)
}

func (s *HubServer) ListDevices(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	infos := s.Hub.ListDevices()
	out := meta.NewTree()
	for _, info := range infos {
		d := meta.NewTree()
		d.Put(meta.NameOf("address"), meta.String(info.Address.String()))
		d.Put(meta.NameOf("blueprintId"), meta.String(info.BlueprintID))
		d.Put(meta.NameOf("version"), meta.String(info.Version))
		d.Put(meta.NameOf("lifecycleState"), meta.String(info.LifecycleState))
		for _, child := range info.Children {
			d.AddChild("children", meta.Leaf(meta.String(child)))
		}
		out.AddChild("devices", d)
	}
	return encodeTree(out)
}

func (s *HubServer) Reconfigure(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	t, err := decodeTree(req)
	if err != nil {
		return nil, err
	}
	addr, err := getAddress(t, "address")
	if err != nil {
		return nil, err
	}
	principal, perr := principalFromContext(ctx)
	if perr != nil {
		return nil, perr
	}
	valuesTree := getTreeChild(t, "values")
	values := make(map[string]meta.Value)
	if valuesTree != nil {
		for _, key := range valuesTree.Keys() {
			for _, child := range valuesTree.Children(key) {
				if child.Value() != nil {
					values[key] = *child.Value()
				}
			}
		}
	}
	if err := s.Hub.Reconfigure(ctx, principal, addr, values); err != nil {
		return nil, statusFromErr(err)
	}
	return encodeTree(nil)
}

func (s *HubServer) BatchRead(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	t, err := decodeTree(req)
	if err != nil {
		return nil, err
	}
	principal, perr := principalFromContext(ctx)
	if perr != nil {
		return nil, perr
	}
	var reqs []hub.PropertyRead
	for _, item := range t.Children("reads") {
		addr, aerr := getAddress(item, "address")
		if aerr != nil {
			return nil, aerr
		}
		reqs = append(reqs, hub.PropertyRead{Address: addr, Property: getString(item, "property")})
	}
	results := s.Hub.BatchRead(ctx, principal, reqs)
	out := meta.NewTree()
	for _, r := range results {
		item := meta.NewTree()
		item.Put(meta.NameOf("address"), meta.String(r.Address.String()))
		item.Put(meta.NameOf("property"), meta.String(r.Property))
		if r.Err != nil {
			item.Put(meta.NameOf("error"), meta.String(r.Err.Error()))
		} else {
			item.Put(meta.NameOf("value"), r.Value)
			item.Put(meta.NameOf("quality"), meta.String(string(r.Quality)))
		}
		out.AddChild("reads", item)
	}
	return encodeTree(out)
}

func (s *HubServer) BatchWrite(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	t, err := decodeTree(req)
	if err != nil {
		return nil, err
	}
	principal, perr := principalFromContext(ctx)
	if perr != nil {
		return nil, perr
	}
	var reqs []hub.PropertyWrite
	for _, item := range t.Children("writes") {
		addr, aerr := getAddress(item, "address")
		if aerr != nil {
			return nil, aerr
		}
		v, _ := item.Get(meta.NameOf("value"))
		var val meta.Value
		if v != nil && v.Value() != nil {
			val = *v.Value()
		}
		reqs = append(reqs, hub.PropertyWrite{Address: addr, Property: getString(item, "property"), Value: val})
	}
	errs := s.Hub.BatchWrite(ctx, principal, reqs)
	out := meta.NewTree()
	for i, werr := range errs {
		item := meta.NewTree()
		item.Put(meta.NameOf("address"), meta.String(reqs[i].Address.String()))
		item.Put(meta.NameOf("property"), meta.String(reqs[i].Property))
		if werr != nil {
			item.Put(meta.NameOf("error"), meta.String(werr.Error()))
		}
		out.AddChild("writes", item)
	}
	return encodeTree(out)
}

func durationFromMillis(t *meta.Tree, path string) time.Duration {
	v, ok := t.Get(meta.NameOf(path))
	if !ok || v.Value() == nil {
		return 0
	}
	if ms, ok := v.Value().AsLong(); ok {
		return time.Duration(ms) * time.Millisecond
	}
	if ms, ok := v.Value().AsInt(); ok {
		return time.Duration(ms) * time.Millisecond
	}
	return 0
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func deltaFor(err error, onSuccess int) int {
	if err != nil {
		return 0
	}
	return onSuccess
}

// grpcCode is the small helper LoggingInterceptor uses to label a call's
// outcome; an error that carries no gRPC status reports as Internal.
func grpcCode(err error) codes.Code {
	if st, ok := status.FromError(err); ok {
		return st.Code()
	}
	return codes.Internal
}
