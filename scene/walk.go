package scene

import (
	"cmp"
	"slices"

	"github.com/gogpu/stage"
)

// Visit describes one node reached by Walk.
type Visit struct {
	ID      NodeID
	Content Content
	World   stage.Matrix
	Layer   int32
	Z       int32
	Blend   stage.BlendMode

	// ViewportRelative is true when the node or one of its ancestors is
	// anchored to the viewport.
	ViewportRelative bool
}

// Order returns the ids of visible nodes in draw order: roots sorted by
// (layer, z, insertion order), each subtree in preorder with siblings
// sorted by (z, insertion order). A hidden node hides its subtree.
func (a *Arena) Order() []NodeID {
	return a.appendOrder(make([]NodeID, 0, a.live))
}

func (a *Arena) appendOrder(out []NodeID) []NodeID {
	roots := a.sortedVisible(a.roots, true)
	stack := make([]NodeID, 0, len(roots))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, roots[i])
	}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n, ok := a.lookup(id)
		if !ok {
			continue
		}
		out = append(out, id)
		kids := a.sortedVisible(n.children, false)
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	return out
}

// sortedVisible returns the visible ids sorted into draw order.
func (a *Arena) sortedVisible(ids []NodeID, byLayer bool) []NodeID {
	out := make([]NodeID, 0, len(ids))
	for _, id := range ids {
		if n, ok := a.lookup(id); ok && n.visible {
			out = append(out, id)
		}
	}
	slices.SortStableFunc(out, func(x, y NodeID) int {
		nx, _ := a.lookup(x)
		ny, _ := a.lookup(y)
		if byLayer {
			if c := cmp.Compare(nx.layer, ny.layer); c != 0 {
				return c
			}
		}
		if c := cmp.Compare(nx.z, ny.z); c != 0 {
			return c
		}
		return cmp.Compare(nx.seq, ny.seq)
	})
	return out
}

// Walk calls fn for every visible node in draw order with its resolved
// world transform. Walk stops early when fn returns false.
//
// The order is computed before the first call. A node that goes stale
// while the walk is in progress (for example because fn removed it) is
// skipped.
func (a *Arena) Walk(fn func(Visit) bool) {
	for _, id := range a.Order() {
		n, ok := a.lookup(id)
		if !ok {
			continue
		}
		n = a.resolve(id.Index())
		v := Visit{
			ID:               id,
			Content:          n.content,
			World:            n.world,
			Layer:            n.layer,
			Z:                n.z,
			Blend:            n.blend,
			ViewportRelative: n.screen,
		}
		if !fn(v) {
			return
		}
	}
}
