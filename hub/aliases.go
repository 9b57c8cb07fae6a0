package hub

import (
	"strings"
	"sync"

	"github.com/halcyon-automation/meridian/meta"
)

// aliasTable maps short, caller-convenient aliases to the canonical Address
// they resolve to. Per the resolved Open Question (b), negotiation is
// best-effort and held on the Hub: it never renames the canonical device, and
// a losing proposal is simply dropped rather than erroring.
type aliasTable struct {
	mu      sync.RWMutex
	byAlias map[string]meta.Address
}

func newAliasTable() *aliasTable {
	return &aliasTable{byAlias: make(map[string]meta.Address)}
}

// NegotiateAliases proposes a short alias for addr's device Name: its
// trailing token, then each successively longer trailing suffix, stopping
// at the first one not already claimed by a different address. It returns
// the alias granted, or "" if every suffix (down to the full canonical
// name) was already taken by another device.
func (h *Hub) NegotiateAliases(addr meta.Address) string {
	tokens := addr.Device.Tokens()
	if h.aliases == nil {
		h.aliases = newAliasTable()
	}
	for n := 1; n <= len(tokens); n++ {
		candidate := joinTokens(tokens[len(tokens)-n:])
		h.aliases.mu.Lock()
		existing, taken := h.aliases.byAlias[candidate]
		if !taken || existing.Equal(addr) {
			h.aliases.byAlias[candidate] = addr
			h.aliases.mu.Unlock()
			return candidate
		}
		h.aliases.mu.Unlock()
	}
	return ""
}

// ResolveAlias looks up a previously negotiated alias, for use in
// FindDevice-style lookups that accept either a canonical Address string
// or a granted alias.
func (h *Hub) ResolveAlias(alias string) (meta.Address, bool) {
	if h.aliases == nil {
		return meta.Address{}, false
	}
	h.aliases.mu.RLock()
	defer h.aliases.mu.RUnlock()
	addr, ok := h.aliases.byAlias[alias]
	return addr, ok
}

func joinTokens(tokens []meta.Token) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = t.String()
	}
	return strings.Join(parts, ".")
}
