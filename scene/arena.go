package scene

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/stage"
)

// NodeID encodes a 32-bit slot index in the lower bits and a 32-bit
// generation in the upper bits. Generations start at 1, so the zero
// NodeID never refers to a live node.
type NodeID uint64

// NoParent is passed to Insert and Reparent to make a node a root.
const NoParent NodeID = 0

func newNodeID(index, generation uint32) NodeID {
	return NodeID(uint64(generation)<<32 | uint64(index))
}

// Index returns the slot index.
func (id NodeID) Index() uint32 { return uint32(id) }

// Generation returns the generation the id was issued with.
func (id NodeID) Generation() uint32 { return uint32(id >> 32) }

// IsZero reports whether id is the zero NodeID.
func (id NodeID) IsZero() bool { return id == 0 }

// String returns a compact "index:generation" form.
func (id NodeID) String() string {
	return fmt.Sprintf("node(%d:%d)", id.Index(), id.Generation())
}

type node struct {
	parent   NodeID
	children []NodeID
	content  Content

	local  stage.Transform
	localM stage.Matrix
	anchor stage.Point

	layer   int32
	z       int32
	seq     uint64
	blend   stage.BlendMode
	visible bool
	// viewportRelative nodes are positioned relative to the viewport via
	// anchor and are drawn without the camera transform.
	viewportRelative bool

	world     stage.Matrix
	screen    bool
	worldVer  uint64
	parentVer uint64
	dirty     bool
	checked   uint64
}

type slot struct {
	gen   uint32
	alive bool
	node  node
}

// Arena owns every scene node.
type Arena struct {
	slots []slot
	free  []uint32
	roots []NodeID
	live  int

	seq      uint64
	epoch    uint64
	version  uint64
	viewport stage.Point

	// recomputed counts world transform recomputations.
	recomputed uint64
	scratch    []uint32
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{epoch: 1}
}

// Len returns the number of live nodes.
func (a *Arena) Len() int {
	return a.live
}

// Contains reports whether id refers to a live node.
func (a *Arena) Contains(id NodeID) bool {
	_, ok := a.lookup(id)
	return ok
}

func (a *Arena) lookup(id NodeID) (*node, bool) {
	idx := id.Index()
	if id.IsZero() || int(idx) >= len(a.slots) {
		return nil, false
	}
	s := &a.slots[idx]
	if !s.alive || s.gen != id.Generation() {
		return nil, false
	}
	return &s.node, true
}

func (a *Arena) get(id NodeID) (*node, error) {
	n, ok := a.lookup(id)
	if !ok {
		return nil, fmt.Errorf("scene: %v: %w", id, stage.ErrStaleReference)
	}
	return n, nil
}

// Insert adds a node with the given content under parent and returns its
// id. Pass NoParent to insert a root. The node starts visible, with an
// identity transform and its parent's layer.
//
// Insert fails with stage.ErrInvalidParent if parent is stale. A freshly
// inserted node has no descendants, so insertion cannot form a cycle.
func (a *Arena) Insert(parent NodeID, content Content) (NodeID, error) {
	var layer int32
	if parent != NoParent {
		p, ok := a.lookup(parent)
		if !ok {
			return 0, fmt.Errorf("scene: insert under %v: %w", parent, stage.ErrInvalidParent)
		}
		layer = p.layer
	}

	var idx uint32
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot{gen: 1})
	}

	s := &a.slots[idx]
	s.alive = true
	a.seq++
	s.node = node{
		parent:  parent,
		content: content,
		local:   stage.IdentityTransform(),
		localM:  stage.Identity(),
		layer:   layer,
		seq:     a.seq,
		visible: true,
		dirty:   true,
	}
	id := newNodeID(idx, s.gen)
	a.attach(id, parent)
	a.live++
	return id, nil
}

// Remove tombstones the node and bumps its slot generation. Its children
// are detached to its former parent, or become roots if it had none.
// See the package documentation for the full policy.
func (a *Arena) Remove(id NodeID) error {
	n, err := a.get(id)
	if err != nil {
		return err
	}
	parent := n.parent
	children := n.children
	n.children = nil

	a.detach(id, parent)
	for _, c := range children {
		cn, ok := a.lookup(c)
		if !ok {
			continue
		}
		cn.parent = parent
		cn.dirty = true
		a.attach(c, parent)
	}
	a.tombstone(id)

	stage.Logger().Debug("scene: node removed",
		slog.String("id", id.String()),
		slog.Int("reattached", len(children)))
	return nil
}

// RemoveSubtree removes the node and all of its descendants.
func (a *Arena) RemoveSubtree(id NodeID) error {
	n, err := a.get(id)
	if err != nil {
		return err
	}
	a.detach(id, n.parent)

	stack := []NodeID{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		cn, ok := a.lookup(cur)
		if !ok {
			continue
		}
		stack = append(stack, cn.children...)
		a.tombstone(cur)
	}
	return nil
}

func (a *Arena) tombstone(id NodeID) {
	s := &a.slots[id.Index()]
	s.alive = false
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	s.node = node{}
	a.free = append(a.free, id.Index())
	a.live--
	a.epoch++
}

func (a *Arena) attach(id, parent NodeID) {
	if parent == NoParent {
		a.roots = append(a.roots, id)
		return
	}
	p, _ := a.lookup(parent)
	p.children = append(p.children, id)
}

func (a *Arena) detach(id, parent NodeID) {
	if parent == NoParent {
		a.roots = removeID(a.roots, id)
		return
	}
	if p, ok := a.lookup(parent); ok {
		p.children = removeID(p.children, id)
	}
}

func removeID(ids []NodeID, id NodeID) []NodeID {
	for i, v := range ids {
		if v == id {
			copy(ids[i:], ids[i+1:])
			ids[len(ids)-1] = 0
			return ids[:len(ids)-1]
		}
	}
	return ids
}

// SetTransform replaces the node's local transform. Only the node's dirty
// bit is set; descendants are invalidated lazily.
func (a *Arena) SetTransform(id NodeID, t stage.Transform) error {
	n, err := a.get(id)
	if err != nil {
		return err
	}
	n.local = t
	n.localM = t.Matrix()
	n.dirty = true
	a.epoch++
	return nil
}

// Transform returns the node's local transform.
func (a *Arena) Transform(id NodeID) (stage.Transform, error) {
	n, err := a.get(id)
	if err != nil {
		return stage.Transform{}, err
	}
	return n.local, nil
}

// Reparent moves the node under newParent, or makes it a root when
// newParent is NoParent. The node keeps its local transform and is
// appended after the new parent's existing children.
//
// Reparent fails with stage.ErrInvalidParent if newParent is stale, is the
// node itself, or is one of its descendants.
func (a *Arena) Reparent(id, newParent NodeID) error {
	n, err := a.get(id)
	if err != nil {
		return err
	}
	if newParent != NoParent {
		if _, ok := a.lookup(newParent); !ok {
			return fmt.Errorf("scene: reparent %v under %v: %w", id, newParent, stage.ErrInvalidParent)
		}
		if newParent == id || a.isAncestor(id, newParent) {
			return fmt.Errorf("scene: reparent %v under its descendant %v: %w", id, newParent, stage.ErrInvalidParent)
		}
	}
	if n.parent == newParent {
		return nil
	}
	a.detach(id, n.parent)
	n.parent = newParent
	a.attach(id, newParent)
	n.dirty = true
	a.epoch++
	return nil
}

// isAncestor reports whether anc is a strict ancestor of id.
func (a *Arena) isAncestor(anc, id NodeID) bool {
	n, ok := a.lookup(id)
	for ok && n.parent != NoParent {
		if n.parent == anc {
			return true
		}
		n, ok = a.lookup(n.parent)
	}
	return false
}

// Parent returns the node's parent, NoParent for roots.
func (a *Arena) Parent(id NodeID) (NodeID, error) {
	n, err := a.get(id)
	if err != nil {
		return 0, err
	}
	return n.parent, nil
}

// Children returns a copy of the node's children in insertion order.
func (a *Arena) Children(id NodeID) ([]NodeID, error) {
	n, err := a.get(id)
	if err != nil {
		return nil, err
	}
	out := make([]NodeID, len(n.children))
	copy(out, n.children)
	return out, nil
}

// Roots returns a copy of the root ids in insertion order.
func (a *Arena) Roots() []NodeID {
	out := make([]NodeID, len(a.roots))
	copy(out, a.roots)
	return out
}

// WorldTransform returns the node's resolved world transform: its
// parent's world transform composed with its local transform. The result
// is cached until the node or one of its ancestors changes.
func (a *Arena) WorldTransform(id NodeID) (stage.Matrix, error) {
	if _, err := a.get(id); err != nil {
		return stage.Matrix{}, err
	}
	return a.resolve(id.Index()).world, nil
}

// resolve brings the world transform of the node at idx up to date.
// Ancestors validated in the current epoch stop the upward walk.
func (a *Arena) resolve(idx uint32) *node {
	stack := a.scratch[:0]
	for cur := idx; ; {
		n := &a.slots[cur].node
		if n.checked == a.epoch {
			break
		}
		stack = append(stack, cur)
		if n.parent == NoParent {
			break
		}
		cur = n.parent.Index()
	}

	for i := len(stack) - 1; i >= 0; i-- {
		n := &a.slots[stack[i]].node
		base := stage.Identity()
		var pv uint64
		var screen bool
		if n.parent != NoParent {
			p := &a.slots[n.parent.Index()].node
			base = p.world
			pv = p.worldVer
			screen = p.screen
		}
		if n.dirty || n.parentVer != pv {
			if n.viewportRelative {
				base = base.Multiply(stage.Translate(n.anchor.X*a.viewport.X, n.anchor.Y*a.viewport.Y))
			}
			n.world = base.Multiply(n.localM)
			n.screen = screen || n.viewportRelative
			a.version++
			n.worldVer = a.version
			n.parentVer = pv
			n.dirty = false
			a.recomputed++
		}
		n.checked = a.epoch
	}
	a.scratch = stack[:0]
	return &a.slots[idx].node
}

// SetContent replaces the node's content.
func (a *Arena) SetContent(id NodeID, c Content) error {
	n, err := a.get(id)
	if err != nil {
		return err
	}
	n.content = c
	return nil
}

// Content returns the node's content.
func (a *Arena) Content(id NodeID) (Content, error) {
	n, err := a.get(id)
	if err != nil {
		return nil, err
	}
	return n.content, nil
}

// SetLayer sets the node's layer. Roots are drawn in ascending layer
// order and the layer is part of the batch key. New children inherit
// their parent's layer at insertion.
func (a *Arena) SetLayer(id NodeID, layer int32) error {
	n, err := a.get(id)
	if err != nil {
		return err
	}
	n.layer = layer
	return nil
}

// SetZ sets the node's z-order among its siblings (and among roots of
// the same layer). Ties are broken by insertion order.
func (a *Arena) SetZ(id NodeID, z int32) error {
	n, err := a.get(id)
	if err != nil {
		return err
	}
	n.z = z
	return nil
}

// SetVisible shows or hides the node together with its subtree.
func (a *Arena) SetVisible(id NodeID, visible bool) error {
	n, err := a.get(id)
	if err != nil {
		return err
	}
	n.visible = visible
	return nil
}

// SetBlend sets the blend mode used to draw the node's content.
func (a *Arena) SetBlend(id NodeID, b stage.BlendMode) error {
	n, err := a.get(id)
	if err != nil {
		return err
	}
	n.blend = b
	return nil
}

// SetViewportRelative anchors the node to the viewport. The anchor is a
// fraction of the viewport size ((1, 1) is the bottom-right corner) that
// is applied before the node's local transform. Viewport-relative nodes
// ignore the camera.
func (a *Arena) SetViewportRelative(id NodeID, enabled bool, anchor stage.Point) error {
	n, err := a.get(id)
	if err != nil {
		return err
	}
	n.viewportRelative = enabled
	n.anchor = anchor
	n.dirty = true
	a.epoch++
	return nil
}

// SetViewport records the viewport size in pixels. A change invalidates
// every viewport-relative node.
func (a *Arena) SetViewport(width, height float64) {
	v := stage.Pt(width, height)
	if v == a.viewport {
		return
	}
	a.viewport = v
	a.InvalidateViewport()
}

// Viewport returns the viewport size set by SetViewport.
func (a *Arena) Viewport() stage.Point {
	return a.viewport
}

// InvalidateViewport marks every viewport-relative node dirty and returns
// how many were marked.
func (a *Arena) InvalidateViewport() int {
	count := 0
	for i := range a.slots {
		s := &a.slots[i]
		if s.alive && s.node.viewportRelative {
			s.node.dirty = true
			count++
		}
	}
	a.epoch++
	return count
}

// NodeInfo is a read-only snapshot of a node's properties.
type NodeInfo struct {
	ID               NodeID
	Parent           NodeID
	Content          Content
	Transform        stage.Transform
	Layer            int32
	Z                int32
	Blend            stage.BlendMode
	Visible          bool
	ViewportRelative bool
	Anchor           stage.Point
}

// Node returns a snapshot of the node's properties.
func (a *Arena) Node(id NodeID) (NodeInfo, error) {
	n, err := a.get(id)
	if err != nil {
		return NodeInfo{}, err
	}
	return NodeInfo{
		ID:               id,
		Parent:           n.parent,
		Content:          n.content,
		Transform:        n.local,
		Layer:            n.layer,
		Z:                n.z,
		Blend:            n.blend,
		Visible:          n.visible,
		ViewportRelative: n.viewportRelative,
		Anchor:           n.anchor,
	}, nil
}
