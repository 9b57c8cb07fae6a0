package transport

import (
	"context"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/halcyon-automation/meridian/meta"
)

// WithPrincipal attaches the outgoing gRPC metadata principalFromContext
// expects server-side: an x-principal-id and zero or more x-principal-role
// entries.
func WithPrincipal(ctx context.Context, id string, roles ...string) context.Context {
	md := metadata.Pairs("x-principal-id", id)
	for _, role := range roles {
		md.Append("x-principal-role", role)
	}
	return metadata.NewOutgoingContext(ctx, md)
}

// Client is a thin HubService caller for meridianctl: it speaks the same
// hand-built method names as HubServiceDesc over a bare *grpc.ClientConn,
// since there is no generated stub package to import.
type Client struct {
	conn *grpc.ClientConn
}

// DialClient opens a HubService client connection. opts are forwarded to
// grpc.NewClient (callers supply transport credentials).
func DialClient(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append(opts, grpc.WithStatsHandler(otelgrpc.NewClientHandler()))
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) call(ctx context.Context, method string, req *meta.Tree) (*meta.Tree, error) {
	if req == nil {
		req = meta.NewTree()
	}
	in, err := req.ToStruct()
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/meridian.hub.HubService/"+method, in, out); err != nil {
		return nil, err
	}
	return meta.FromStruct(out)
}

func (c *Client) Attach(ctx context.Context, addr meta.Address, blueprintID, version string, cfg *meta.Tree) error {
	req := meta.NewTree()
	req.Put(meta.NameOf("address"), meta.String(addr.String()))
	req.Put(meta.NameOf("blueprintId"), meta.String(blueprintID))
	req.Put(meta.NameOf("version"), meta.String(version))
	if cfg != nil {
		req.AddChild("config", cfg)
	}
	_, err := c.call(ctx, "Attach", req)
	return err
}

func (c *Client) Detach(ctx context.Context, addr meta.Address) error {
	req := meta.NewTree()
	req.Put(meta.NameOf("address"), meta.String(addr.String()))
	_, err := c.call(ctx, "Detach", req)
	return err
}

func (c *Client) Start(ctx context.Context, addr meta.Address) error {
	req := meta.NewTree()
	req.Put(meta.NameOf("address"), meta.String(addr.String()))
	_, err := c.call(ctx, "Start", req)
	return err
}

func (c *Client) Stop(ctx context.Context, addr meta.Address) error {
	req := meta.NewTree()
	req.Put(meta.NameOf("address"), meta.String(addr.String()))
	_, err := c.call(ctx, "Stop", req)
	return err
}

func (c *Client) ReadProperty(ctx context.Context, addr meta.Address, property string) (meta.Value, error) {
	req := meta.NewTree()
	req.Put(meta.NameOf("address"), meta.String(addr.String()))
	req.Put(meta.NameOf("property"), meta.String(property))
	resp, err := c.call(ctx, "ReadProperty", req)
	if err != nil {
		return meta.Value{}, err
	}
	v, ok := resp.Get(meta.NameOf("value"))
	if !ok || v.Value() == nil {
		return meta.Value{}, nil
	}
	return *v.Value(), nil
}

func (c *Client) Invoke(ctx context.Context, addr meta.Address, action string, args *meta.Tree) (*meta.Tree, error) {
	req := meta.NewTree()
	req.Put(meta.NameOf("address"), meta.String(addr.String()))
	req.Put(meta.NameOf("action"), meta.String(action))
	if args != nil {
		req.AddChild("args", args)
	}
	return c.call(ctx, "Invoke", req)
}

func (c *Client) ExecuteTask(ctx context.Context, taskID string, args *meta.Tree) (*meta.Tree, error) {
	req := meta.NewTree()
	req.Put(meta.NameOf("taskId"), meta.String(taskID))
	if args != nil {
		req.AddChild("args", args)
	}
	return c.call(ctx, "ExecuteTask", req)
}

func (c *Client) ListDevices(ctx context.Context) (*meta.Tree, error) {
	return c.call(ctx, "ListDevices", nil)
}

func (c *Client) AcquireLock(ctx context.Context, addr meta.Address, resource, mode string, lease time.Duration) (string, error) {
	req := meta.NewTree()
	req.Put(meta.NameOf("address"), meta.String(addr.String()))
	req.Put(meta.NameOf("resource"), meta.String(resource))
	req.Put(meta.NameOf("mode"), meta.String(mode))
	req.Put(meta.NameOf("durationMs"), meta.Long(lease.Milliseconds()))
	resp, err := c.call(ctx, "AcquireLock", req)
	if err != nil {
		return "", err
	}
	v, ok := resp.Get(meta.NameOf("token"))
	if !ok || v.Value() == nil {
		return "", nil
	}
	token, _ := v.Value().AsString()
	return token, nil
}

func (c *Client) ReleaseLock(ctx context.Context, token string) error {
	req := meta.NewTree()
	req.Put(meta.NameOf("token"), meta.String(token))
	_, err := c.call(ctx, "ReleaseLock", req)
	return err
}
