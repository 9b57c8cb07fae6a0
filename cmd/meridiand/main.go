// meridiand is the control-plane daemon: it loads blueprint declarations,
// builds a Hub, exposes it over gRPC (transport.HubServiceDesc), and
// optionally dials a fixed set of peer hubs (peer.StaticDiscovery).
//
// Usage:
//
//	meridiand serve --id hub-1 --addr :7700 --blueprint ./blueprints/thermostat.yaml
//	meridiand serve --id hub-1 --addr :7700 --peer hub-2=10.0.0.2:7700
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/halcyon-automation/meridian/blueprint"
	"github.com/halcyon-automation/meridian/config"
	"github.com/halcyon-automation/meridian/corelog"
	"github.com/halcyon-automation/meridian/hub"
	"github.com/halcyon-automation/meridian/observability"
	"github.com/halcyon-automation/meridian/peer"
	"github.com/halcyon-automation/meridian/security"
	"github.com/halcyon-automation/meridian/transport"
)

var (
	hubID            string
	listenAddr       string
	blueprintPaths   []string
	peerSpecs        []string
	policyFile       string
	otlpEndpoint     string
	redisAddr        string
	redisDB          int
	lockBackend      string
	batchParallelism int
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "meridiand",
		Short:         "composite device control-plane daemon",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd())
	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the Hub gRPC server",
		RunE:  runServe,
	}
	cmd.Flags().StringVar(&hubID, "id", "hub", "this hub's route name")
	cmd.Flags().StringVar(&listenAddr, "addr", ":7700", "gRPC listen address")
	cmd.Flags().StringArrayVar(&blueprintPaths, "blueprint", nil, "path to a blueprint YAML declaration (repeatable)")
	cmd.Flags().StringArrayVar(&peerSpecs, "peer", nil, "name=host:port of a remote hub to dial (repeatable)")
	cmd.Flags().StringVar(&policyFile, "policy", "", "path to a Rego authorization policy module")
	cmd.Flags().StringVar(&otlpEndpoint, "otlp-endpoint", "", "OTLP/gRPC collector endpoint (tracing disabled if empty)")
	cmd.Flags().StringVar(&redisAddr, "redis-addr", "", "redis address for the lock table (overrides --lock-backend)")
	cmd.Flags().IntVar(&redisDB, "redis-db", 0, "redis database index")
	cmd.Flags().StringVar(&lockBackend, "lock-backend", "memory", "lock table backend: memory|redis")
	cmd.Flags().IntVar(&batchParallelism, "batch-parallelism", 8, "concurrent workers for batch read/write")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	zl, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("meridiand: building logger: %w", err)
	}
	defer zl.Sync()
	log := corelog.NewZapLogger(zl).Bind("hub", hubID)

	if otlpEndpoint != "" {
		shutdown, err := observability.InitTracer("meridiand:"+hubID, otlpEndpoint)
		if err != nil {
			return fmt.Errorf("meridiand: init tracer: %w", err)
		}
		defer shutdown(context.Background())
	}

	declarations := blueprint.NewRegistry()
	for _, path := range blueprintPaths {
		if err := loadBlueprint(declarations, path); err != nil {
			return err
		}
	}
	behaviors := blueprint.NewBehaviorRegistry()

	cfg := config.DefaultHubConfig(hubID)
	cfg.BatchParallelism = batchParallelism
	if redisAddr != "" {
		cfg.LockBackend = config.LockBackendRedis
		cfg.RedisAddr = redisAddr
		cfg.RedisDB = redisDB
	} else if lockBackend == "redis" {
		cfg.LockBackend = config.LockBackendRedis
	}

	h := hub.New(cfg, declarations, behaviors, log)

	if policyFile != "" {
		module, err := os.ReadFile(policyFile)
		if err != nil {
			return fmt.Errorf("meridiand: reading policy file: %w", err)
		}
		authz, err := security.NewRegoAuthorization(context.Background(), string(module))
		if err != nil {
			return fmt.Errorf("meridiand: compiling policy: %w", err)
		}
		h.Authz = authz
	}

	peers := make(map[string]string, len(peerSpecs))
	for _, spec := range peerSpecs {
		name, target, err := splitPeerSpec(spec)
		if err != nil {
			return err
		}
		peers[name] = target
	}
	discovery := peer.NewStaticDiscovery(peers)
	if err := dialPeers(h, discovery, len(peers), log); err != nil {
		return err
	}

	lis, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("meridiand: listen on %s: %w", listenAddr, err)
	}

	server := grpc.NewServer(transport.ServerOptions(log)...)
	hubServer := transport.NewHubServer(h, log)
	server.RegisterService(&transport.HubServiceDesc, hubServer)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		log.Info("serving", "addr", listenAddr)
		errCh <- server.Serve(lis)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("meridiand: serve: %w", err)
		}
	case sig := <-sigCh:
		log.Info("shutdown signal received", "signal", sig.String())
		server.GracefulStop()
	}
	return nil
}

func loadBlueprint(reg *blueprint.Registry, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("meridiand: reading blueprint %s: %w", path, err)
	}
	decl, err := blueprint.LoadDeclarationYAML(data)
	if err != nil {
		return fmt.Errorf("meridiand: parsing blueprint %s: %w", path, err)
	}
	if err := reg.Register(decl); err != nil {
		return fmt.Errorf("meridiand: registering blueprint %s (%s): %w", filepath.Base(path), decl.ID, err)
	}
	return nil
}

func splitPeerSpec(spec string) (name, target string, err error) {
	for i := 0; i < len(spec); i++ {
		if spec[i] == '=' {
			return spec[:i], spec[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("meridiand: malformed --peer %q, want name=host:port", spec)
}

// dialPeers drains the initial batch of HubAppeared events StaticDiscovery
// emits synchronously for every peer it was constructed with and dials
// each one, registering the resulting connection with h. StaticDiscovery
// keeps the subscription open afterward for peers added later via
// Update/Remove, but meridiand only needs the startup snapshot.
func dialPeers(h *hub.Hub, discovery *peer.StaticDiscovery, count int, log corelog.Logger) error {
	if count == 0 {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, err := discovery.Discover(ctx)
	if err != nil {
		return fmt.Errorf("meridiand: starting peer discovery: %w", err)
	}
	for i := 0; i < count; i++ {
		ev := <-events
		if ev.Kind != peer.HubAppeared {
			continue
		}
		conn, err := peer.Dial(ev.Name, ev.Target, log.Bind("peer", ev.Name), grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return fmt.Errorf("meridiand: dialing peer %s: %w", ev.Name, err)
		}
		h.RegisterPeer(ev.Name, conn)
		log.Info("peer registered", "peer", ev.Name, "target", ev.Target)
	}
	return nil
}
