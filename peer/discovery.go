package peer

import (
	"context"
	"sync"
)

// HubEventKind discriminates a HubEvent as an appearance or disappearance,
// per spec.md §6's "HubDiscoveryService.discover() → stream of hub
// appear/disappear events".
type HubEventKind string

const (
	HubAppeared    HubEventKind = "APPEARED"
	HubDisappeared HubEventKind = "DISAPPEARED"
)

// HubEvent reports one hub joining or leaving the topology this
// HubDiscoveryService watches.
type HubEvent struct {
	Kind   HubEventKind
	Name   string
	Target string // dial target (host:port), empty on HubDisappeared
}

// HubDiscoveryService streams hub appear/disappear events. Discover
// follows the same context-scoped subscription shape fabric.Bus.Subscribe
// uses (caller-owned context controls lifetime, no separate
// unsubscribe-and-leak-a-goroutine API to misuse): the returned channel is
// closed once ctx is done or the service itself shuts down.
type HubDiscoveryService interface {
	Discover(ctx context.Context) (<-chan HubEvent, error)
}

// StaticDiscovery is a HubDiscoveryService over a fixed, operator-supplied
// peer list — the default for deployments that configure peers directly
// rather than running a discovery backend (consul, k8s endpoints, etc.),
// which spec.md §1 treats as an external collaborator, not something the
// core implements.
type StaticDiscovery struct {
	mu    sync.Mutex
	peers map[string]string // name -> dial target
	subs  []*discoverySub
}

// NewStaticDiscovery builds a StaticDiscovery seeded with an initial peer
// set; Update/Remove can change membership afterward.
func NewStaticDiscovery(initial map[string]string) *StaticDiscovery {
	peers := make(map[string]string, len(initial))
	for k, v := range initial {
		peers[k] = v
	}
	return &StaticDiscovery{peers: peers}
}

// Discover replays the current peer set as APPEARED events and returns the
// channel at once; until ctx is cancelled, the channel goes on receiving
// APPEARED/DISAPPEARED as Update/Remove are called concurrently.
func (d *StaticDiscovery) Discover(ctx context.Context) (<-chan HubEvent, error) {
	ch := make(chan HubEvent, 16)
	sub := &discoverySub{ch: ch}

	d.mu.Lock()
	for name, target := range d.peers {
		sub.ch <- HubEvent{Kind: HubAppeared, Name: name, Target: target}
	}
	d.subs = append(d.subs, sub)
	d.mu.Unlock()

	go func() {
		<-ctx.Done()
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, s := range d.subs {
			if s == sub {
				d.subs = append(d.subs[:i], d.subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()

	return ch, nil
}

type discoverySub struct {
	ch chan HubEvent
}

// Update adds or replaces a peer's dial target, notifying every active
// Discover subscriber.
func (d *StaticDiscovery) Update(name, target string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.peers[name] = target
	d.broadcast(HubEvent{Kind: HubAppeared, Name: name, Target: target})
}

// Remove drops a peer, notifying every active Discover subscriber.
func (d *StaticDiscovery) Remove(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.peers[name]; !ok {
		return
	}
	delete(d.peers, name)
	d.broadcast(HubEvent{Kind: HubDisappeared, Name: name})
}

// broadcast must be called with d.mu held.
func (d *StaticDiscovery) broadcast(ev HubEvent) {
	for _, s := range d.subs {
		select {
		case s.ch <- ev:
		default:
			// Slow subscriber; drop rather than block the mutation that
			// triggered this event.
		}
	}
}
