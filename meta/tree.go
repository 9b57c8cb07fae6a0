package meta

import "fmt"

// Tree is a recursive node in the universal meta value tree. A node may
// carry an optional scalar Value and an ordered map from token to a list
// of child Trees (a token can repeat, e.g. "axis[0]", "axis[1]").
//
// Trees are mutable until Seal is called; sealed trees are shared freely
// and all further edits happen on a Clone.
type Tree struct {
	value    *Value
	keys     []string
	children map[string][]*Tree
	sealed   bool
}

// NewTree creates an empty tree node with no value and no children.
func NewTree() *Tree {
	return &Tree{children: make(map[string][]*Tree)}
}

// Leaf creates a tree node carrying a scalar Value and no children.
func Leaf(v Value) *Tree {
	t := NewTree()
	t.value = &v
	return t
}

// Value returns the node's scalar value, or nil if it carries none.
func (t *Tree) Value() *Value { return t.value }

// SetValue sets the node's scalar value. Panics if the tree is sealed.
func (t *Tree) SetValue(v Value) {
	t.mustBeMutable()
	t.value = &v
}

// Keys returns the ordered list of child token keys.
func (t *Tree) Keys() []string {
	cp := make([]string, len(t.keys))
	copy(cp, t.keys)
	return cp
}

// Children returns the child nodes under the given key, in insertion order.
func (t *Tree) Children(key string) []*Tree {
	return t.children[key]
}

// AddChild appends a child under key, preserving insertion order of keys.
func (t *Tree) AddChild(key string, child *Tree) {
	t.mustBeMutable()
	if _, ok := t.children[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.children[key] = append(t.children[key], child)
}

// SetChildren replaces all children under key with the given list.
func (t *Tree) SetChildren(key string, children []*Tree) {
	t.mustBeMutable()
	if _, ok := t.children[key]; !ok {
		t.keys = append(t.keys, key)
	}
	t.children[key] = children
}

func (t *Tree) mustBeMutable() {
	if t.sealed {
		panic("meta: write to a sealed tree; Clone() first")
	}
}

// Seal freezes this node and all descendants against further mutation.
func (t *Tree) Seal() *Tree {
	if t.sealed {
		return t
	}
	t.sealed = true
	for _, key := range t.keys {
		for _, c := range t.children[key] {
			c.Seal()
		}
	}
	return t
}

// Sealed reports whether the node has been frozen.
func (t *Tree) Sealed() bool { return t.sealed }

// Clone returns a deep, unsealed copy of the tree.
func (t *Tree) Clone() *Tree {
	out := NewTree()
	if t.value != nil {
		v := *t.value
		out.value = &v
	}
	for _, key := range t.keys {
		for _, c := range t.children[key] {
			out.AddChild(key, c.Clone())
		}
	}
	return out
}

// Get resolves a path (Name) to the first matching node, walking indexed
// children by position when the token carries an index.
func (t *Tree) Get(path Name) (*Tree, bool) {
	cur := t
	for _, tok := range path.Tokens() {
		kids, ok := cur.children[tok.Body]
		if !ok || len(kids) == 0 {
			return nil, false
		}
		idx := 0
		if tok.HasIndex {
			idx = tok.Index
		}
		if idx < 0 || idx >= len(kids) {
			return nil, false
		}
		cur = kids[idx]
	}
	return cur, true
}

// Put sets the scalar Value at path, creating intermediate nodes (and
// growing indexed child lists) as needed. Panics if any node on the path
// is sealed.
func (t *Tree) Put(path Name, v Value) {
	cur := t
	for _, tok := range path.Tokens() {
		cur.mustBeMutable()
		idx := 0
		if tok.HasIndex {
			idx = tok.Index
		}
		kids := cur.children[tok.Body]
		for len(kids) <= idx {
			kids = append(kids, NewTree())
		}
		cur.children[tok.Body] = kids
		if _, ok := indexOf(cur.keys, tok.Body); !ok {
			cur.keys = append(cur.keys, tok.Body)
		}
		cur = kids[idx]
	}
	cur.SetValue(v)
}

func indexOf(keys []string, key string) (int, bool) {
	for i, k := range keys {
		if k == key {
			return i, true
		}
	}
	return -1, false
}

// Merge tree-merges overlay into a clone of base: node keys merge recursively,
// scalar writes from overlay overwrite base's value at matching nodes. Neither
// input is mutated; the result is unsealed.
func Merge(base, overlay *Tree) *Tree {
	if base == nil {
		if overlay == nil {
			return NewTree()
		}
		return overlay.Clone()
	}
	if overlay == nil {
		return base.Clone()
	}
	out := base.Clone()
	if overlay.value != nil {
		v := *overlay.value
		out.value = &v
	}
	for _, key := range overlay.keys {
		overlayKids := overlay.children[key]
		baseKids := out.children[key]
		merged := make([]*Tree, 0, len(overlayKids))
		for i, ok := range overlayKids {
			if i < len(baseKids) {
				merged = append(merged, Merge(baseKids[i], ok))
			} else {
				merged = append(merged, ok.Clone())
			}
		}
		// Any base children beyond overlay's length are preserved as-is.
		for i := len(overlayKids); i < len(baseKids); i++ {
			merged = append(merged, baseKids[i])
		}
		out.SetChildren(key, merged)
	}
	return out
}

// Equal reports deep structural equality, including child ordering.
func (t *Tree) Equal(o *Tree) bool {
	if t == nil || o == nil {
		return t == o
	}
	switch {
	case t.value == nil && o.value != nil, t.value != nil && o.value == nil:
		return false
	case t.value != nil && o.value != nil && !t.value.Equal(*o.value):
		return false
	}
	if len(t.keys) != len(o.keys) {
		return false
	}
	for i, key := range t.keys {
		if o.keys[i] != key {
			return false
		}
		tk, ok := t.children[key], o.children[key]
		if len(tk) != len(ok) {
			return false
		}
		for j := range tk {
			if !tk[j].Equal(ok[j]) {
				return false
			}
		}
	}
	return true
}

// String renders a compact debug form, not the wire format.
func (t *Tree) String() string {
	if t == nil {
		return "<nil>"
	}
	if t.value != nil && len(t.keys) == 0 {
		return t.value.String()
	}
	return fmt.Sprintf("{keys:%v}", t.keys)
}
