// Package peer implements the direct hub-to-hub transport spec.md §6 names
// PeerConnection: a binary channel between hubs, configured per-blueprint
// with QoS and failover, used both for REMOTE child components and for
// Hub.FindDevice delegation across a hub topology (hub.RemoteHub).
//
// The transport substrate is the same hand-built gRPC service the
// transport package exposes for client-facing control-plane calls:
// meta.Tree values marshaled to google.protobuf.Struct and sent through a
// bare *grpc.ClientConn.Invoke call, since no .proto/codegen pipeline runs
// in this tree. Every call to a remote hub is wrapped in a
// sony/gobreaker.CircuitBreaker (one per peer) so a wedged peer trips open
// instead of stalling plan execution, grounded on
// jordigilh-kubernaut's gobreaker.Settings usage in
// test/integration/notification/suite_test.go.
package peer

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/halcyon-automation/meridian/corelog"
	"github.com/halcyon-automation/meridian/hub"
	"github.com/halcyon-automation/meridian/meta"
	"github.com/halcyon-automation/meridian/observability"
)

// QoS selects the delivery guarantee for PeerConnection.Send, per spec.md
// §6's "PeerConnection.send/receive(envelope, QoS, timeout)".
type QoS int

const (
	AtMostOnce QoS = iota
	AtLeastOnce
	ExactlyOnce
)

func (q QoS) String() string {
	switch q {
	case AtMostOnce:
		return "AT_MOST_ONCE"
	case AtLeastOnce:
		return "AT_LEAST_ONCE"
	case ExactlyOnce:
		return "EXACTLY_ONCE"
	default:
		return "UNKNOWN"
	}
}

// Envelope is the unit a PeerConnection exchanges with a remote hub: a
// named payload tree plus enough routing metadata for the receiving side
// to dispatch it (a device address for device-bound traffic, a bare Type
// for control messages like discovery pings).
type Envelope struct {
	ID      string
	Type    string
	Address meta.Address
	Payload *meta.Tree
}

func envelopeToTree(env Envelope) *meta.Tree {
	t := meta.NewTree()
	t.Put(meta.NameOf("id"), meta.String(env.ID))
	t.Put(meta.NameOf("type"), meta.String(env.Type))
	t.Put(meta.NameOf("address"), meta.String(env.Address.String()))
	if env.Payload != nil {
		t.AddChild("payload", env.Payload)
	} else {
		t.AddChild("payload", meta.NewTree())
	}
	return t
}

func treeToEnvelope(t *meta.Tree) (Envelope, error) {
	var env Envelope
	if v, ok := t.Get(meta.NameOf("id")); ok && v.Value() != nil {
		env.ID, _ = v.Value().AsString()
	}
	if v, ok := t.Get(meta.NameOf("type")); ok && v.Value() != nil {
		env.Type, _ = v.Value().AsString()
	}
	if v, ok := t.Get(meta.NameOf("address")); ok && v.Value() != nil {
		raw, _ := v.Value().AsString()
		if raw != "" {
			addr, err := meta.ParseAddress(raw)
			if err != nil {
				return Envelope{}, fmt.Errorf("peer: malformed envelope address %q: %w", raw, err)
			}
			env.Address = addr
		}
	}
	if children := t.Children("payload"); len(children) == 1 {
		env.Payload = children[0]
	}
	return env, nil
}

// PeerConnection is the direct binary channel between hubs spec.md §6
// names. FindDevice additionally satisfies hub.RemoteHub, letting a
// PeerConnection be registered with Hub.RegisterPeer directly.
type PeerConnection interface {
	Send(ctx context.Context, env Envelope, qos QoS, timeout time.Duration) error
	Receive(ctx context.Context, timeout time.Duration) (Envelope, error)
	FindDevice(ctx context.Context, addr meta.Address) (any, error)
	Close() error
}

// grpcConnection is the concrete gRPC-backed PeerConnection. One instance
// guards one remote hub; its breaker trips independently of every other
// registered peer.
type grpcConnection struct {
	name    string
	conn    *grpc.ClientConn
	breaker *gobreaker.CircuitBreaker
	log     corelog.Logger
}

var _ PeerConnection = (*grpcConnection)(nil)
var _ hub.RemoteHub = (*grpcConnection)(nil)

// Dial opens a gRPC channel to a remote hub's peer service and wraps it in
// a circuit breaker named after the peer. opts are forwarded to
// grpc.NewClient (callers supply transport credentials; insecure.NewCredentials()
// is appropriate only for trusted-network deployments).
func Dial(name, target string, log corelog.Logger, opts ...grpc.DialOption) (*grpcConnection, error) {
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, hub.NewFailure(hub.KindPeerConnection, fmt.Sprintf("dial peer %s", name), err)
	}
	if log == nil {
		log = corelog.NewNoop()
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(breakerName string, from, to gobreaker.State) {
			log.Info("peer circuit breaker state change", "peer", breakerName, "from", from.String(), "to", to.String())
			observability.RecordPeerCircuitState(breakerName, int(to))
		},
	})
	return &grpcConnection{name: name, conn: conn, breaker: breaker, log: log}, nil
}

// Close tears down the underlying gRPC channel.
func (c *grpcConnection) Close() error {
	return c.conn.Close()
}

// Send delivers env to the remote hub's peer service. qos is carried as
// envelope metadata for the receiver to interpret (ack/resend behavior for
// AT_LEAST_ONCE and dedup for EXACTLY_ONCE live on the receiving side,
// since this connection only implements the sending half of the
// contract); timeout bounds the call in addition to ctx's own deadline.
func (c *grpcConnection) Send(ctx context.Context, env Envelope, qos QoS, timeout time.Duration) error {
	callCtx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	reqTree := envelopeToTree(env)
	reqTree.Put(meta.NameOf("qos"), meta.String(qos.String()))
	req, err := reqTree.ToStruct()
	if err != nil {
		return hub.NewFailure(hub.KindPeerConnection, "encode envelope", err)
	}

	_, err = c.execute(callCtx, "/meridian.peer.PeerService/Send", req)
	if err != nil {
		return err
	}
	return nil
}

// Receive pulls the next envelope the remote hub has queued for this
// connection, blocking up to timeout.
func (c *grpcConnection) Receive(ctx context.Context, timeout time.Duration) (Envelope, error) {
	callCtx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	req, _ := meta.NewTree().ToStruct()
	resp, err := c.execute(callCtx, "/meridian.peer.PeerService/Receive", req)
	if err != nil {
		return Envelope{}, err
	}
	tree, err := meta.FromStruct(resp)
	if err != nil {
		return Envelope{}, hub.NewFailure(hub.KindPeerConnection, "decode envelope", err)
	}
	return treeToEnvelope(tree)
}

// FindDevice delegates a lookup to the remote hub, satisfying
// hub.RemoteHub so Hub.RegisterPeer can install this connection directly.
// It reports whether the remote hub has the device, not the device's own
// summary tree — callers needing to operate on a remote device must go
// through a peer-aware transport method instead, matching hub.FindDevice's
// own "use the peer transport, not FindDevice" contract.
func (c *grpcConnection) FindDevice(ctx context.Context, addr meta.Address) (any, error) {
	reqTree := meta.NewTree()
	reqTree.Put(meta.NameOf("address"), meta.String(addr.String()))
	req, err := reqTree.ToStruct()
	if err != nil {
		return nil, hub.NewFailure(hub.KindPeerConnection, "encode find-device request", err)
	}

	resp, err := c.execute(ctx, "/meridian.peer.PeerService/FindDevice", req)
	if err != nil {
		return nil, err
	}
	tree, err := meta.FromStruct(resp)
	if err != nil {
		return nil, hub.NewFailure(hub.KindPeerConnection, "decode find-device response", err)
	}
	if v, ok := tree.Get(meta.NameOf("found")); ok && v.Value() != nil {
		if found, _ := v.Value().AsBool(); !found {
			return nil, hub.NewFailure(hub.KindNotFound, fmt.Sprintf("peer %s has no device at %s", c.name, addr), nil)
		}
	}
	return tree, nil
}

// execute runs a unary gRPC call through the circuit breaker, translating
// both breaker rejection and transport failure into a KindPeerConnection
// Failure.
func (c *grpcConnection) execute(ctx context.Context, method string, req *structpb.Struct) (*structpb.Struct, error) {
	out, err := c.breaker.Execute(func() (any, error) {
		resp := new(structpb.Struct)
		if err := c.conn.Invoke(ctx, method, req, resp); err != nil {
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		observability.RecordPeerCall(c.name, method, "error")
		return nil, hub.NewFailure(hub.KindPeerConnection, fmt.Sprintf("peer %s call %s", c.name, method), err)
	}
	observability.RecordPeerCall(c.name, method, "success")
	return out.(*structpb.Struct), nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
