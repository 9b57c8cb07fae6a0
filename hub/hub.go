package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/halcyon-automation/meridian/blueprint"
	"github.com/halcyon-automation/meridian/config"
	"github.com/halcyon-automation/meridian/convert"
	"github.com/halcyon-automation/meridian/corelog"
	"github.com/halcyon-automation/meridian/device"
	"github.com/halcyon-automation/meridian/fabric"
	"github.com/halcyon-automation/meridian/meta"
	"github.com/halcyon-automation/meridian/persistence"
	"github.com/halcyon-automation/meridian/security"
	"github.com/halcyon-automation/meridian/validate"
)

// PermissionForceReleaseLock gates the admin-only forced-release operation;
// CheckPermission is evaluated against it before any lease is broken.
const PermissionForceReleaseLock security.Permission = "lock.force_release"

// ErrDeviceNotFound is returned when an address resolves to no attached
// device on this hub (and, for FindDevice, no peer hub either).
var ErrDeviceNotFound = fmt.Errorf("hub: device not found")

// ErrBlueprintNotFound mirrors blueprint.Hydrator's own not-found error,
// surfaced at the hub boundary so callers can classify it.
var ErrBlueprintNotFound = fmt.Errorf("hub: blueprint not found")

// RemoteHub is the narrow surface a peer connection exposes to FindDevice
// for delegating lookups across a hub topology. The concrete gobreaker-
// wrapped implementation lives in package peer; defined here to avoid
// hub depending on peer (peer depends on hub's Failure/Kind instead).
type RemoteHub interface {
	FindDevice(ctx context.Context, addr meta.Address) (convertSummary any, err error)
}

type deviceEntry struct {
	runtime     *device.Runtime
	parent      string // addr.String() of the parent, "" for roots
	children    []string
	bindingStop []func()

	blueprintID   string
	version       string
	schemaVersion int
	cfgTree       *meta.Tree
}

// Hub is the control-plane root over one address space of attached
// devices, per spec.md §4.7. It owns blueprint hydration, the lock table,
// the message bus, persistence, and the attach/detach/start/stop
// transaction surface; device.Runtime instances never reach these
// collaborators except through the narrow interfaces the Hub hands them.
type Hub struct {
	cfg config.HubConfig

	Declarations *blueprint.Registry
	Behaviors    *blueprint.BehaviorRegistry
	Hydrator     *blueprint.Hydrator
	Transformers *blueprint.TransformerRegistry

	Bus     *fabric.Bus
	Authz   security.AuthorizationService
	Locks   LockTable
	Persist *persistence.SnapshotService
	Log     corelog.Logger

	mu      sync.RWMutex
	devices map[string]*deviceEntry
	peers   map[string]RemoteHub
	aliases *aliasTable
}

// New builds a Hub from cfg and its collaborators. Any nil collaborator is
// defaulted: Bus gets a fresh fabric.Bus, Authz defaults to fail-closed,
// Locks is built per cfg.LockBackend, Persist gets a no-migration
// in-memory service, Log is a no-op.
func New(cfg config.HubConfig, declarations *blueprint.Registry, behaviors *blueprint.BehaviorRegistry, log corelog.Logger) *Hub {
	if log == nil {
		log = corelog.NewNoop()
	}
	declarations.Freeze()
	behaviors.Freeze()
	return &Hub{
		cfg:          cfg,
		Declarations: declarations,
		Behaviors:    behaviors,
		Hydrator:     blueprint.NewHydrator(declarations, behaviors),
		Transformers: blueprint.NewTransformerRegistry(),
		Bus:          fabric.NewBus(0, log),
		Authz:        security.DefaultDeny(),
		Locks:        NewLockTable(cfg),
		Persist:      persistence.NewSnapshotService(nil, nil),
		Log:          log,
		devices:      make(map[string]*deviceEntry),
		peers:        make(map[string]RemoteHub),
	}
}

// RegisterPeer makes a named remote hub reachable for FindDevice
// delegation and REMOTE child components.
func (h *Hub) RegisterPeer(name string, rh RemoteHub) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.peers[name] = rh
}

// systemPrincipal is used for hub-internal writes (child bindings,
// hot-swap state transfer) that bypass the per-call authorization check a
// user-initiated write would go through.
var systemPrincipal = security.Principal{ID: "system", Roles: []string{"system"}}

// Attach hydrates blueprintID/version, builds and attaches a Runtime at
// addr, recursively attaches its LOCAL children, wires child bindings, and
// registers everything under addr before returning. Per spec.md's resolved
// Open Question (a), the whole subtree is transactional: any failure tears
// down everything this call attached.
func (h *Hub) Attach(ctx context.Context, addr meta.Address, blueprintID, version string, cfgTree *meta.Tree) error {
	attached, err := h.attachSubtree(ctx, addr, blueprintID, version, cfgTree, "")
	if err != nil {
		for i := len(attached) - 1; i >= 0; i-- {
			h.detachOne(context.Background(), attached[i])
		}
		return classify(err)
	}
	return nil
}

// attachSubtree attaches addr and its LOCAL children depth-first, returning
// every address string it successfully attached (in attach order, for
// reverse-order rollback) up to and including the point of failure.
func (h *Hub) attachSubtree(ctx context.Context, addr meta.Address, blueprintID, version string, cfgTree *meta.Tree, parent string) ([]string, error) {
	exec, err := h.Hydrator.Hydrate(blueprintID, version)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBlueprintNotFound, err)
	}

	if err := validate.Default().ValidateDeclaration(exec.Declaration); err != nil {
		return nil, fmt.Errorf("hub: attaching %s: %w", addr, err)
	}
	if f, ok := exec.Declaration.Features[string(blueprint.FeatureTaskExecutor)]; ok {
		if err := validate.CheckTaskIDCollisions(h, addr.String(), f.TaskIDs); err != nil {
			return nil, fmt.Errorf("hub: attaching %s: %w", addr, err)
		}
	}

	rt := device.New(ctx, addr, exec, device.Dependencies{
		Bus:     h.Bus,
		Authz:   h.Authz,
		Locks:   h.Locks,
		Persist: h.Persist,
		Log:     h.Log,
	})
	if err := rt.Attach(ctx, cfgTree); err != nil {
		return nil, fmt.Errorf("hub: attaching %s: %w", addr, err)
	}

	key := addr.String()
	h.mu.Lock()
	h.devices[key] = &deviceEntry{
		runtime:       rt,
		parent:        parent,
		blueprintID:   blueprintID,
		version:       version,
		schemaVersion: exec.Declaration.SchemaVersion,
		cfgTree:       cfgTree,
	}
	h.mu.Unlock()

	attached := []string{key}

	if h.Bus != nil {
		_ = h.Bus.Publish(ctx, fabric.DeviceAttached{
			MessageBase: fabric.NewBase(addr, time.Now()),
			BlueprintID: exec.Declaration.ID,
		})
	}

	for childKey, child := range exec.Declaration.Children {
		switch child.Kind {
		case blueprint.ChildComponentLocal:
			childAddr := addr.WithDevice(addr.Device.Append(meta.Token{Body: childKey}))
			childAttached, err := h.attachSubtree(ctx, childAddr, child.BlueprintID, child.Version, child.MetaOverrides, key)
			attached = append(attached, childAttached...)
			if err != nil {
				return attached, err
			}
			h.mu.Lock()
			h.devices[key].children = append(h.devices[key].children, childAddr.String())
			h.mu.Unlock()
			if err := h.applyChildBindings(ctx, rt, childAddr.String(), child.Bindings); err != nil {
				return attached, err
			}
		case blueprint.ChildComponentRemote:
			h.mu.RLock()
			_, ok := h.peers[child.PeerConnectionName]
			h.mu.RUnlock()
			if !ok {
				return attached, fmt.Errorf("hub: child %q references unknown peer %q", childKey, child.PeerConnectionName)
			}
			// Remote mirror children are tracked by the peer connection, not
			// this hub's device map; nothing further to attach locally.
		}
	}

	return attached, nil
}

// applyChildBindings wires each of a child component's CONST/DIRECT/
// TRANSFORMED bindings, per spec.md §4.4. CONST and the initial value of
// DIRECT/TRANSFORMED are applied synchronously; DIRECT/TRANSFORMED then
// keep propagating on every subsequent parent change until the child is
// detached.
func (h *Hub) applyChildBindings(ctx context.Context, parent *device.Runtime, childKey string, bindings []blueprint.ChildBinding) error {
	h.mu.RLock()
	childEntry, ok := h.devices[childKey]
	h.mu.RUnlock()
	if !ok {
		return fmt.Errorf("hub: child %q vanished before bindings could be applied", childKey)
	}
	child := childEntry.runtime

	for _, b := range bindings {
		b := b
		switch b.Kind {
		case blueprint.ChildBindingConst:
			if err := child.WriteProperty(ctx, systemPrincipal, b.Target, b.ConstantValue); err != nil {
				return fmt.Errorf("hub: const binding %s: %w", b.Target, err)
			}
		case blueprint.ChildBindingDirect, blueprint.ChildBindingTransformed:
			cell, ok := parent.PropertyState(b.SourceOnParent)
			if !ok {
				return fmt.Errorf("hub: binding source %q not found on parent", b.SourceOnParent)
			}
			var transform blueprint.Transformer
			if b.Kind == blueprint.ChildBindingTransformed {
				fn, err := h.Transformers.Resolve(b.Transformer)
				if err != nil {
					return fmt.Errorf("hub: binding %s: %w", b.Target, err)
				}
				transform = fn
			}
			forward := func(v meta.Value) {
				if transform != nil {
					v = transform(v)
				}
				_ = child.WriteProperty(context.Background(), systemPrincipal, b.Target, v)
			}
			if cur := cell.Current(); cur.Value != nil {
				forward(*cur.Value)
			}
			ch, unsub := cell.Subscribe()
			stop := make(chan struct{})
			go func() {
				defer unsub()
				for {
					select {
					case <-stop:
						return
					case sv, ok := <-ch:
						if !ok {
							return
						}
						if sv.Value != nil {
							forward(*sv.Value)
						}
					}
				}
			}()
			h.mu.Lock()
			childEntry.bindingStop = append(childEntry.bindingStop, func() { close(stop) })
			h.mu.Unlock()
		}
	}
	return nil
}

// Start dispatches Start on the device at addr.
func (h *Hub) Start(ctx context.Context, addr meta.Address) error {
	rt, err := h.lookup(addr)
	if err != nil {
		return classify(err)
	}
	if err := rt.Start(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// Stop dispatches Stop on the device at addr.
func (h *Hub) Stop(ctx context.Context, addr meta.Address) error {
	rt, err := h.lookup(addr)
	if err != nil {
		return classify(err)
	}
	if err := rt.Stop(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// Detach tears down the device at addr and, recursively, all of its LOCAL
// children (children first, so a child's Detach always sees its parent
// still attached), per spec.md §4.4/§4.7.
func (h *Hub) Detach(ctx context.Context, addr meta.Address) error {
	key := addr.String()
	h.mu.RLock()
	entry, ok := h.devices[key]
	h.mu.RUnlock()
	if !ok {
		return classify(fmt.Errorf("%w: %s", ErrDeviceNotFound, addr))
	}
	for _, childKey := range append([]string{}, entry.children...) {
		childAddr, err := meta.ParseAddress(childKey)
		if err != nil {
			continue
		}
		if err := h.Detach(ctx, childAddr); err != nil {
			return err
		}
	}
	h.detachOne(ctx, key)
	return nil
}

func (h *Hub) detachOne(ctx context.Context, key string) {
	h.mu.Lock()
	entry, ok := h.devices[key]
	if ok {
		delete(h.devices, key)
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	for _, stop := range entry.bindingStop {
		stop()
	}
	if err := entry.runtime.Detach(ctx); err != nil {
		h.Log.Error(err, "detach failed", "address", key)
		return
	}
	if h.Bus != nil {
		_ = h.Bus.Publish(ctx, fabric.DeviceDetached{
			MessageBase: fabric.NewBase(entry.runtime.Address, time.Now()),
		})
	}
}

// FindDevice resolves addr to a locally-attached Runtime, or, if its route
// names a registered peer, delegates the lookup there.
func (h *Hub) FindDevice(ctx context.Context, addr meta.Address) (*device.Runtime, error) {
	h.mu.RLock()
	entry, ok := h.devices[addr.String()]
	peer, hasPeer := h.peers[addr.Route.String()]
	h.mu.RUnlock()
	if ok {
		return entry.runtime, nil
	}
	if hasPeer {
		if _, err := peer.FindDevice(ctx, addr); err != nil {
			return nil, classify(fmt.Errorf("%w: %v", ErrDeviceNotFound, err))
		}
		return nil, fmt.Errorf("hub: %s resolved on peer %s; use the peer transport, not FindDevice, to operate on it", addr, addr.Route)
	}
	return nil, classify(fmt.Errorf("%w: %s", ErrDeviceNotFound, addr))
}

func (h *Hub) lookup(addr meta.Address) (*device.Runtime, error) {
	h.mu.RLock()
	entry, ok := h.devices[addr.String()]
	h.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, addr)
	}
	return entry.runtime, nil
}

// AcquireLock grants a caller-held lease on resource at the mode given, for
// duration (or the table's default lease if duration is 0). The returned
// token must be presented to ReleaseLock to drop it before expiry.
func (h *Hub) AcquireLock(ctx context.Context, principal security.Principal, addr meta.Address, resource string, mode convert.LockMode, duration time.Duration) (string, error) {
	token, err := h.Locks.AcquireNamed(ctx, addr, resource, mode, duration)
	if err != nil {
		return "", classify(err)
	}
	return token, nil
}

// ReleaseLock drops a lease previously granted by AcquireLock.
func (h *Hub) ReleaseLock(ctx context.Context, token string) error {
	if err := h.Locks.Release(token); err != nil {
		return classify(err)
	}
	return nil
}

// ForceReleaseLock breaks every holder's lease on resource regardless of
// token. It requires PermissionForceReleaseLock and publishes a
// LockForceReleased audit event on success, per spec.md §4.7.
func (h *Hub) ForceReleaseLock(ctx context.Context, principal security.Principal, addr meta.Address, resource, reason string) error {
	if err := h.Authz.CheckPermission(ctx, principal, PermissionForceReleaseLock, addr); err != nil {
		return classify(err)
	}
	if err := h.Locks.ForceRelease(resource); err != nil {
		return classify(err)
	}
	if h.Bus != nil {
		_ = h.Bus.Publish(ctx, fabric.LockForceReleased{
			MessageBase: fabric.NewBase(addr, time.Now()),
			Resource:    resource,
			Principal:   principal.ID,
			Reason:      reason,
		})
	}
	h.Log.Info("lock force-released", "resource", resource, "principal", principal.ID, "reason", reason)
	return nil
}

// HotSwap replaces the device at addr with a new blueprint/version while
// carrying its persisted state across, per spec.md §4.10/§8 invariant 10.
// It stops, snapshots, detaches, attaches the new blueprint, restores the
// snapshot (migrating it through the new blueprint's registered migrators
// if schema versions differ), then starts. Any failure after the snapshot
// is taken rolls back to the prior blueprint/version/config, best-effort
// restoring the original snapshot so the device is left running again
// rather than stranded mid-swap.
func (h *Hub) HotSwap(ctx context.Context, principal security.Principal, addr meta.Address, newBlueprintID, newVersion string, cfgTree *meta.Tree) error {
	key := addr.String()
	h.mu.RLock()
	entry, ok := h.devices[key]
	h.mu.RUnlock()
	if !ok {
		return classify(fmt.Errorf("%w: %s", ErrDeviceNotFound, addr))
	}

	oldBlueprintID, oldVersion, oldCfg := entry.blueprintID, entry.version, entry.cfgTree
	oldSchemaVersion := entry.schemaVersion

	if err := entry.runtime.Stop(ctx); err != nil {
		return classify(fmt.Errorf("hub: hot-swap %s: stopping old device: %w", addr, err))
	}

	snap, err := h.Persist.Snapshot(key, oldBlueprintID, oldSchemaVersion)
	if err != nil {
		return classify(fmt.Errorf("hub: hot-swap %s: snapshotting old device: %w", addr, err))
	}

	if err := h.Detach(ctx, addr); err != nil {
		return classify(fmt.Errorf("hub: hot-swap %s: detaching old device: %w", addr, err))
	}

	if err := h.Attach(ctx, addr, newBlueprintID, newVersion, cfgTree); err != nil {
		// Best-effort rollback: re-attach the old blueprint, restore its
		// snapshot and start it, so the address isn't left stranded.
		if rerr := h.Attach(ctx, addr, oldBlueprintID, oldVersion, oldCfg); rerr != nil {
			return classify(fmt.Errorf("hub: hot-swap %s: attaching new blueprint failed (%v), rollback also failed: %w", addr, err, rerr))
		}
		_ = h.Persist.Restore(snap, oldSchemaVersion)
		_ = h.Start(ctx, addr)
		return classify(fmt.Errorf("hub: hot-swap %s: attaching new blueprint: %w; rolled back to %s@%s", addr, err, oldBlueprintID, oldVersion))
	}

	exec, hydrateErr := h.Hydrator.Hydrate(newBlueprintID, newVersion)
	newSchemaVersion := 1
	if hydrateErr == nil {
		newSchemaVersion = exec.Declaration.SchemaVersion
	}

	if err := h.Persist.Restore(snap, newSchemaVersion); err != nil {
		// Roll back fully: detach the new device, re-attach the old one,
		// and restore its original snapshot.
		_ = h.Detach(ctx, addr)
		if rerr := h.Attach(ctx, addr, oldBlueprintID, oldVersion, oldCfg); rerr != nil {
			return classify(fmt.Errorf("hub: hot-swap %s: restoring state failed (%v), rollback also failed: %w", addr, err, rerr))
		}
		_ = h.Persist.Restore(snap, oldSchemaVersion)
		_ = h.Start(ctx, addr)
		return classify(fmt.Errorf("hub: hot-swap %s: restoring migrated state: %w; rolled back to %s@%s", addr, err, oldBlueprintID, oldVersion))
	}

	if h.Bus != nil {
		_ = h.Bus.Publish(ctx, fabric.DescriptionChanged{MessageBase: fabric.NewBase(addr, time.Now())})
	}

	if err := h.Start(ctx, addr); err != nil {
		_ = h.Detach(ctx, addr)
		if rerr := h.Attach(ctx, addr, oldBlueprintID, oldVersion, oldCfg); rerr != nil {
			return classify(fmt.Errorf("hub: hot-swap %s: starting new device failed (%v), rollback also failed: %w", addr, err, rerr))
		}
		_ = h.Persist.Restore(snap, oldSchemaVersion)
		_ = h.Start(ctx, addr)
		return classify(fmt.Errorf("hub: hot-swap %s: starting new device: %w; rolled back to %s@%s", addr, err, oldBlueprintID, oldVersion))
	}
	return nil
}

// ReadProperty reads a single property on the device at addr, for the
// reconcile package's template resolution and for direct operator queries.
func (h *Hub) ReadProperty(ctx context.Context, principal security.Principal, addr meta.Address, name string) (meta.Value, error) {
	rt, err := h.lookup(addr)
	if err != nil {
		return meta.Value{}, classify(err)
	}
	v, _, err := rt.ReadProperty(ctx, principal, name)
	if err != nil {
		return meta.Value{}, classify(err)
	}
	return v, nil
}

// PredicateSatisfied reads a PREDICATE property on the device at addr and
// reports its boolean value, used by the reconcile package's AwaitPredicate
// plan step.
func (h *Hub) PredicateSatisfied(ctx context.Context, addr meta.Address, name string) (bool, error) {
	rt, err := h.lookup(addr)
	if err != nil {
		return false, classify(err)
	}
	ok, err := rt.PredicateSatisfied(ctx, name)
	if err != nil {
		return false, classify(err)
	}
	return ok, nil
}

// Invoke executes a non-task-backed action on the device at addr, for the
// reconcile package's Invoke plan step.
func (h *Hub) Invoke(ctx context.Context, principal security.Principal, addr meta.Address, action string, args *meta.Tree) (*meta.Tree, error) {
	rt, err := h.lookup(addr)
	if err != nil {
		return nil, classify(err)
	}
	out, err := rt.ExecuteAction(ctx, principal, action, args)
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// ExecuteTask resolves taskID to the device whose blueprint advertises it
// via FeatureTaskExecutor and runs it directly, bypassing the TaskRef/
// PlanRef guard normal action execution enforces. This is the routing the
// reconcile package's RunWorkspaceTask plan step needs: the step names a
// bare taskID with no device address (spec.md §4.8), so the hub must find
// the handling device itself rather than being told where to look.
func (h *Hub) ExecuteTask(ctx context.Context, principal security.Principal, taskID string, args *meta.Tree) (*meta.Tree, error) {
	rt, err := h.resolveTask(taskID)
	if err != nil {
		return nil, err
	}
	out, err := rt.ExecuteTask(ctx, principal, taskID, args)
	if err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// TaskIDOwners implements validate.TaskIDLister, mapping every currently-
// advertised task id to the address of the device that owns it.
func (h *Hub) TaskIDOwners() map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	owners := make(map[string]string)
	for key, entry := range h.devices {
		for _, id := range entry.runtime.TaskIDs() {
			owners[id] = key
		}
	}
	return owners
}

// resolveTask scans attached devices for the one advertising taskID among
// its FeatureTaskExecutor task ids. Ambiguous registration (two devices
// advertising the same taskID) is a configuration error callers should
// avoid; resolveTask returns the first match found.
func (h *Hub) resolveTask(taskID string) (*device.Runtime, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, entry := range h.devices {
		for _, id := range entry.runtime.TaskIDs() {
			if id == taskID {
				return entry.runtime, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: no device advertises task %q", device.ErrUnknownTask, taskID)
}

// DeviceInfo is a read-only snapshot of one attached device's identity and
// lifecycle state, exposed for the reconcile package's actual-state view
// (spec.md §4.8 diff input).
type DeviceInfo struct {
	Address       meta.Address
	BlueprintID   string
	Version       string
	LifecycleState string
	Config        *meta.Tree
	Children      []string
}

// ListDevices returns a snapshot of every currently-attached device. The
// returned Config trees are the trees Attach was called with (not copies)
// and must not be mutated.
func (h *Hub) ListDevices() []DeviceInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]DeviceInfo, 0, len(h.devices))
	for _, entry := range h.devices {
		state := ""
		if entry.runtime.Lifecycle != nil {
			state = string(entry.runtime.Lifecycle.State())
		}
		out = append(out, DeviceInfo{
			Address:        entry.runtime.Address,
			BlueprintID:    entry.blueprintID,
			Version:        entry.version,
			LifecycleState: state,
			Config:         entry.cfgTree,
			Children:       append([]string(nil), entry.children...),
		})
	}
	return out
}

// Reconfigure writes a batch of properties on the device at addr without
// tearing it down, used by the reconcile package's WriteProperty plan
// steps and by operator-initiated bulk reconfiguration.
func (h *Hub) Reconfigure(ctx context.Context, principal security.Principal, addr meta.Address, values map[string]meta.Value) error {
	rt, err := h.lookup(addr)
	if err != nil {
		return classify(err)
	}
	for name, v := range values {
		if err := rt.WriteProperty(ctx, principal, name, v); err != nil {
			return classify(fmt.Errorf("hub: reconfiguring %s.%s: %w", addr, name, err))
		}
	}
	return nil
}
