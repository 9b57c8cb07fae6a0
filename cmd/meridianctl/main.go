// meridianctl is a thin command-line client for a running meridiand's
// HubService gRPC endpoint.
//
// Usage:
//
//	meridianctl attach --addr hub::living_room/thermostat --blueprint thermostat --version 1.0.0
//	meridianctl read --addr hub::living_room/thermostat --property currentTemp
//	meridianctl invoke --addr hub::living_room/thermostat --action setSetpoint --arg value=21.5
//	meridianctl list
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/halcyon-automation/meridian/meta"
	"github.com/halcyon-automation/meridian/transport"
)

var (
	serverAddr  string
	principalID string
	timeout     time.Duration
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "meridianctl",
		Short:         "control-plane client for meridiand",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&serverAddr, "server", "127.0.0.1:7700", "meridiand gRPC address")
	root.PersistentFlags().StringVar(&principalID, "as", "meridianctl", "principal ID to present for authorization checks")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second, "RPC timeout")
	root.AddCommand(attachCmd(), detachCmd(), startCmd(), stopCmd(), readCmd(), invokeCmd(), listCmd())
	return root
}

func newClient() (*transport.Client, error) {
	return transport.DialClient(serverAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
}

func withCallCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(transport.WithPrincipal(context.Background(), principalID), timeout)
}

func attachCmd() *cobra.Command {
	var addr, blueprintID, version string
	cmd := &cobra.Command{
		Use:   "attach",
		Short: "attach a device at an address",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := meta.ParseAddress(addr)
			if err != nil {
				return err
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			defer c.Close()
			ctx, cancel := withCallCtx()
			defer cancel()
			return c.Attach(ctx, a, blueprintID, version, nil)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "device address (route::path)")
	cmd.Flags().StringVar(&blueprintID, "blueprint", "", "blueprint ID")
	cmd.Flags().StringVar(&version, "version", "", "blueprint version")
	cmd.MarkFlagRequired("addr")
	cmd.MarkFlagRequired("blueprint")
	return cmd
}

func detachCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "detach",
		Short: "detach a device",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := meta.ParseAddress(addr)
			if err != nil {
				return err
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			defer c.Close()
			ctx, cancel := withCallCtx()
			defer cancel()
			return c.Detach(ctx, a)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "device address")
	cmd.MarkFlagRequired("addr")
	return cmd
}

func startCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "start a device (lifecycle Start)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := meta.ParseAddress(addr)
			if err != nil {
				return err
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			defer c.Close()
			ctx, cancel := withCallCtx()
			defer cancel()
			return c.Start(ctx, a)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "device address")
	cmd.MarkFlagRequired("addr")
	return cmd
}

func stopCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "stop a device (lifecycle Stop)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := meta.ParseAddress(addr)
			if err != nil {
				return err
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			defer c.Close()
			ctx, cancel := withCallCtx()
			defer cancel()
			return c.Stop(ctx, a)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "device address")
	cmd.MarkFlagRequired("addr")
	return cmd
}

func readCmd() *cobra.Command {
	var addr, property string
	cmd := &cobra.Command{
		Use:   "read",
		Short: "read a public property",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := meta.ParseAddress(addr)
			if err != nil {
				return err
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			defer c.Close()
			ctx, cancel := withCallCtx()
			defer cancel()
			v, err := c.ReadProperty(ctx, a, property)
			if err != nil {
				return err
			}
			fmt.Println(v.String())
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "device address")
	cmd.Flags().StringVar(&property, "property", "", "property name")
	cmd.MarkFlagRequired("addr")
	cmd.MarkFlagRequired("property")
	return cmd
}

func invokeCmd() *cobra.Command {
	var addr, action string
	var rawArgs []string
	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "invoke a public action, printing its result tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := meta.ParseAddress(addr)
			if err != nil {
				return err
			}
			argTree, err := parseArgs(rawArgs)
			if err != nil {
				return err
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			defer c.Close()
			ctx, cancel := withCallCtx()
			defer cancel()
			out, err := c.Invoke(ctx, a, action, argTree)
			if err != nil {
				return err
			}
			printTree(out, 0)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "device address")
	cmd.Flags().StringVar(&action, "action", "", "action name")
	cmd.Flags().StringArrayVar(&rawArgs, "arg", nil, "name=value action argument (repeatable)")
	cmd.MarkFlagRequired("addr")
	cmd.MarkFlagRequired("action")
	return cmd
}

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list attached devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			defer c.Close()
			ctx, cancel := withCallCtx()
			defer cancel()
			out, err := c.ListDevices(ctx)
			if err != nil {
				return err
			}
			printTree(out, 0)
			return nil
		},
	}
}

// parseArgs turns repeated "name=value" flags into a flat *meta.Tree whose
// leaves are typed by inferValue (bool, long, double, otherwise string),
// which is sufficient for scalar action arguments; callers
// needing typed or nested arguments should script against transport.Client
// directly.
func parseArgs(raw []string) (*meta.Tree, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	t := meta.NewTree()
	for _, kv := range raw {
		idx := strings.IndexByte(kv, '=')
		if idx < 0 {
			return nil, fmt.Errorf("meridianctl: malformed --arg %q, want name=value", kv)
		}
		name, value := kv[:idx], kv[idx+1:]
		t.Put(meta.NameOf(name), inferValue(value))
	}
	return t, nil
}

func inferValue(raw string) meta.Value {
	if b, err := strconv.ParseBool(raw); err == nil {
		return meta.Bool(b)
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return meta.Long(i)
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return meta.Double(f)
	}
	return meta.String(raw)
}

func printTree(t *meta.Tree, depth int) {
	if t == nil {
		return
	}
	indent := strings.Repeat("  ", depth)
	if v := t.Value(); v != nil {
		fmt.Printf("%s%s\n", indent, v.String())
	}
	for _, key := range t.Keys() {
		for _, child := range t.Children(key) {
			fmt.Printf("%s%s:\n", indent, key)
			printTree(child, depth+1)
		}
	}
}
