package reconcile

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/halcyon-automation/meridian/meta"
)

// placeholderPattern matches a single "${...}" ComputableValue reference.
// No pack example repo carries a templating engine, so this stays on the
// standard library's regexp rather than adopting an unrelated dependency
// purely to parse a handful of placeholder forms.
var placeholderPattern = regexp.MustCompile(`\$\{([^}]*)\}`)

// resolveTree returns a deep copy of tree with every string leaf's
// "${...}" placeholders hydrated against pctx, per spec.md §4.8's
// "ComputableValues inside meta are hydrated lazily" description. Non-
// string leaves, and leaves with no placeholder, pass through unchanged.
func resolveTree(ctx context.Context, pctx *PlanExecutionContext, tree *meta.Tree) (*meta.Tree, error) {
	if tree == nil {
		return nil, nil
	}
	out := meta.NewTree()
	if v := tree.Value(); v != nil {
		resolved, err := resolveLeaf(ctx, pctx, *v)
		if err != nil {
			return nil, err
		}
		out.SetValue(resolved)
	}
	for _, key := range tree.Keys() {
		for _, child := range tree.Children(key) {
			resolvedChild, err := resolveTree(ctx, pctx, child)
			if err != nil {
				return nil, err
			}
			out.AddChild(key, resolvedChild)
		}
	}
	return out, nil
}

func resolveLeaf(ctx context.Context, pctx *PlanExecutionContext, v meta.Value) (meta.Value, error) {
	s, ok := v.AsString()
	if !ok {
		return v, nil
	}
	trimmed := strings.TrimSpace(s)
	if m := placeholderPattern.FindStringSubmatch(trimmed); m != nil && m[0] == trimmed {
		// The entire leaf is one placeholder: the resolved value's own
		// kind (bool, int, list, ...) replaces the string leaf outright,
		// rather than being stringified into it.
		return resolveExpr(ctx, pctx, m[1])
	}

	var resolveErr error
	replaced := placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		if resolveErr != nil {
			return match
		}
		expr := match[2 : len(match)-1]
		resolved, err := resolveExpr(ctx, pctx, expr)
		if err != nil {
			resolveErr = err
			return match
		}
		return resolved.String()
	})
	if resolveErr != nil {
		return meta.Value{}, resolveErr
	}
	return meta.String(replaced), nil
}

// resolveExpr resolves one placeholder body against pctx. Supported forms:
//
//	var:NAME              a plan variable bound by a prior step
//	property:ADDR#NAME    a live property read on the device at ADDR
//	secret:KEY            a value resolved through the plan's SecretProvider
//	result:KEY#PATH       a dotted PATH into the stored result of a prior
//	                      Invoke/RunWorkspaceTask step bound under KEY
func resolveExpr(ctx context.Context, pctx *PlanExecutionContext, expr string) (meta.Value, error) {
	scheme, rest, ok := strings.Cut(expr, ":")
	if !ok {
		return meta.Value{}, fmt.Errorf("reconcile: malformed template expression %q", expr)
	}
	switch scheme {
	case "var":
		v, ok := pctx.Variables[rest]
		if !ok {
			return meta.Value{}, fmt.Errorf("reconcile: undefined plan variable %q", rest)
		}
		return v, nil
	case "property":
		addrStr, propName, ok := strings.Cut(rest, "#")
		if !ok {
			return meta.Value{}, fmt.Errorf("reconcile: malformed property reference %q", rest)
		}
		addr, err := meta.ParseAddress(addrStr)
		if err != nil {
			return meta.Value{}, fmt.Errorf("reconcile: property reference %q: %w", rest, err)
		}
		return pctx.Resolver.ReadProperty(ctx, addr, propName)
	case "secret":
		s, err := pctx.Resolver.ResolveSecret(ctx, rest)
		if err != nil {
			return meta.Value{}, fmt.Errorf("reconcile: resolving secret %q: %w", rest, err)
		}
		return meta.String(s), nil
	case "result":
		key, path, ok := strings.Cut(rest, "#")
		tree, found := pctx.Results[key]
		if !found {
			return meta.Value{}, fmt.Errorf("reconcile: no stored result bound to %q", key)
		}
		if !ok || path == "" {
			if v := tree.Value(); v != nil {
				return *v, nil
			}
			return meta.Value{}, fmt.Errorf("reconcile: result %q has no scalar value at its root", key)
		}
		name, err := meta.ParseName(path)
		if err != nil {
			return meta.Value{}, fmt.Errorf("reconcile: result path %q: %w", path, err)
		}
		node, found := tree.Get(name)
		if !found || node.Value() == nil {
			return meta.Value{}, fmt.Errorf("reconcile: result %q has no value at %q", key, path)
		}
		return *node.Value(), nil
	default:
		return meta.Value{}, fmt.Errorf("reconcile: unknown template scheme %q", scheme)
	}
}
