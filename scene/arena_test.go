package scene

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/gogpu/stage"
)

func mustInsert(t *testing.T, a *Arena, parent NodeID, c Content) NodeID {
	t.Helper()
	id, err := a.Insert(parent, c)
	if err != nil {
		t.Fatalf("Insert(%v) error = %v", parent, err)
	}
	return id
}

// bruteWorld recomputes the world transform by walking the parent chain.
func bruteWorld(t *testing.T, a *Arena, id NodeID) stage.Matrix {
	t.Helper()
	m := stage.Identity()
	for cur := id; cur != NoParent; {
		tr, err := a.Transform(cur)
		if err != nil {
			t.Fatalf("Transform(%v) error = %v", cur, err)
		}
		m = tr.Matrix().Multiply(m)
		p, err := a.Parent(cur)
		if err != nil {
			t.Fatalf("Parent(%v) error = %v", cur, err)
		}
		cur = p
	}
	return m
}

func TestNodeIDPacking(t *testing.T) {
	id := newNodeID(7, 3)
	if id.Index() != 7 || id.Generation() != 3 {
		t.Errorf("newNodeID(7, 3) = index %d gen %d", id.Index(), id.Generation())
	}
	if !NoParent.IsZero() {
		t.Error("NoParent should be zero")
	}
}

func TestInsertAndChildren(t *testing.T) {
	a := NewArena()
	root := mustInsert(t, a, NoParent, nil)
	c1 := mustInsert(t, a, root, Rectangle{Width: 1, Height: 1})
	c2 := mustInsert(t, a, root, nil)

	kids, err := a.Children(root)
	if err != nil {
		t.Fatalf("Children error = %v", err)
	}
	if len(kids) != 2 || kids[0] != c1 || kids[1] != c2 {
		t.Errorf("Children = %v, want [%v %v]", kids, c1, c2)
	}
	if a.Len() != 3 {
		t.Errorf("Len = %d, want 3", a.Len())
	}
	if got := a.Roots(); len(got) != 1 || got[0] != root {
		t.Errorf("Roots = %v, want [%v]", got, root)
	}
}

func TestInsertInheritsLayer(t *testing.T) {
	a := NewArena()
	root := mustInsert(t, a, NoParent, nil)
	if err := a.SetLayer(root, 4); err != nil {
		t.Fatal(err)
	}
	child := mustInsert(t, a, root, nil)
	info, _ := a.Node(child)
	if info.Layer != 4 {
		t.Errorf("child layer = %d, want 4", info.Layer)
	}
}

func TestInsertStaleParent(t *testing.T) {
	a := NewArena()
	p := mustInsert(t, a, NoParent, nil)
	if err := a.Remove(p); err != nil {
		t.Fatal(err)
	}
	_, err := a.Insert(p, nil)
	if !errors.Is(err, stage.ErrInvalidParent) {
		t.Errorf("Insert under removed parent error = %v, want ErrInvalidParent", err)
	}
	if _, err := a.Insert(newNodeID(99, 1), nil); !errors.Is(err, stage.ErrInvalidParent) {
		t.Errorf("Insert under unknown parent error = %v, want ErrInvalidParent", err)
	}
}

func TestReparentRejectsCycles(t *testing.T) {
	a := NewArena()
	root := mustInsert(t, a, NoParent, nil)
	mid := mustInsert(t, a, root, nil)
	leaf := mustInsert(t, a, mid, nil)

	tests := []struct {
		name      string
		id, under NodeID
	}{
		{"self", mid, mid},
		{"child", root, mid},
		{"grandchild", root, leaf},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.Reparent(tt.id, tt.under)
			if !errors.Is(err, stage.ErrInvalidParent) {
				t.Errorf("Reparent error = %v, want ErrInvalidParent", err)
			}
		})
	}

	if p, _ := a.Parent(mid); p != root {
		t.Errorf("failed reparent changed parent to %v", p)
	}
}

func TestReparentMovesSubtree(t *testing.T) {
	a := NewArena()
	r1 := mustInsert(t, a, NoParent, nil)
	r2 := mustInsert(t, a, NoParent, nil)
	n := mustInsert(t, a, r1, nil)
	leaf := mustInsert(t, a, n, nil)

	_ = a.SetTransform(r1, stage.TranslateBy(10, 0))
	_ = a.SetTransform(r2, stage.TranslateBy(0, 50))
	before, _ := a.WorldTransform(leaf)
	if before.Translation() != stage.Pt(10, 0) {
		t.Fatalf("before = %v", before.Translation())
	}

	if err := a.Reparent(n, r2); err != nil {
		t.Fatalf("Reparent error = %v", err)
	}
	after, _ := a.WorldTransform(leaf)
	if after.Translation() != stage.Pt(0, 50) {
		t.Errorf("after reparent = %v, want (0, 50)", after.Translation())
	}
	if kids, _ := a.Children(r1); len(kids) != 0 {
		t.Errorf("old parent still has children %v", kids)
	}

	if err := a.Reparent(n, NoParent); err != nil {
		t.Fatal(err)
	}
	if got := len(a.Roots()); got != 3 {
		t.Errorf("Roots after detaching = %d, want 3", got)
	}
}

func TestRemoveDetachesChildrenToGrandparent(t *testing.T) {
	a := NewArena()
	gp := mustInsert(t, a, NoParent, nil)
	p := mustInsert(t, a, gp, nil)
	c1 := mustInsert(t, a, p, nil)
	c2 := mustInsert(t, a, p, nil)

	_ = a.SetTransform(gp, stage.TranslateBy(1, 0))
	_ = a.SetTransform(p, stage.TranslateBy(100, 0))
	_ = a.SetTransform(c1, stage.TranslateBy(0, 5))

	if err := a.Remove(p); err != nil {
		t.Fatalf("Remove error = %v", err)
	}

	kids, _ := a.Children(gp)
	if len(kids) != 2 || kids[0] != c1 || kids[1] != c2 {
		t.Errorf("grandparent children = %v, want [%v %v]", kids, c1, c2)
	}
	w, _ := a.WorldTransform(c1)
	if w.Translation() != stage.Pt(1, 5) {
		t.Errorf("c1 world = %v, want (1, 5)", w.Translation())
	}
}

func TestRemoveRootPromotesChildren(t *testing.T) {
	a := NewArena()
	root := mustInsert(t, a, NoParent, nil)
	c := mustInsert(t, a, root, nil)
	if err := a.Remove(root); err != nil {
		t.Fatal(err)
	}
	if p, _ := a.Parent(c); p != NoParent {
		t.Errorf("child parent = %v, want NoParent", p)
	}
	if roots := a.Roots(); len(roots) != 1 || roots[0] != c {
		t.Errorf("Roots = %v, want [%v]", roots, c)
	}
}

func TestStaleIDAfterRemove(t *testing.T) {
	a := NewArena()
	id := mustInsert(t, a, NoParent, Rectangle{})
	if err := a.Remove(id); err != nil {
		t.Fatal(err)
	}
	// The slot is reused with a new generation.
	fresh := mustInsert(t, a, NoParent, nil)
	if fresh.Index() != id.Index() {
		t.Fatalf("slot not reused: %v vs %v", fresh, id)
	}
	if fresh.Generation() == id.Generation() {
		t.Fatal("generation not bumped")
	}

	ops := map[string]func() error{
		"Remove":         func() error { return a.Remove(id) },
		"SetTransform":   func() error { return a.SetTransform(id, stage.IdentityTransform()) },
		"Reparent":       func() error { return a.Reparent(id, NoParent) },
		"WorldTransform": func() error { _, err := a.WorldTransform(id); return err },
		"Children":       func() error { _, err := a.Children(id); return err },
		"Content":        func() error { _, err := a.Content(id); return err },
		"SetVisible":     func() error { return a.SetVisible(id, false) },
		"Node":           func() error { _, err := a.Node(id); return err },
	}
	for name, op := range ops {
		if err := op(); !errors.Is(err, stage.ErrStaleReference) {
			t.Errorf("%s with stale id error = %v, want ErrStaleReference", name, err)
		}
	}
	if a.Contains(id) {
		t.Error("Contains(stale) = true")
	}
	if !a.Contains(fresh) {
		t.Error("Contains(fresh) = false")
	}
}

func TestRemoveSubtree(t *testing.T) {
	a := NewArena()
	keep := mustInsert(t, a, NoParent, nil)
	root := mustInsert(t, a, NoParent, nil)
	c := mustInsert(t, a, root, nil)
	gc := mustInsert(t, a, c, nil)

	if err := a.RemoveSubtree(root); err != nil {
		t.Fatal(err)
	}
	for _, id := range []NodeID{root, c, gc} {
		if a.Contains(id) {
			t.Errorf("%v still live", id)
		}
	}
	if a.Len() != 1 || !a.Contains(keep) {
		t.Errorf("Len = %d, want only %v", a.Len(), keep)
	}
}

func TestChainOfThousandTranslatedRoot(t *testing.T) {
	a := NewArena()
	ids := make([]NodeID, 0, 1000)
	parent := NoParent
	for i := 0; i < 1000; i++ {
		id := mustInsert(t, a, parent, nil)
		ids = append(ids, id)
		parent = id
	}
	if err := a.SetTransform(ids[0], stage.TranslateBy(25, -40)); err != nil {
		t.Fatal(err)
	}
	for i, id := range ids {
		w, err := a.WorldTransform(id)
		if err != nil {
			t.Fatalf("WorldTransform(%d) error = %v", i, err)
		}
		if w.Translation() != stage.Pt(25, -40) {
			t.Fatalf("node %d world translation = %v, want (25, -40)", i, w.Translation())
		}
	}
}

func TestSetTransformIsLazy(t *testing.T) {
	a := NewArena()
	root := mustInsert(t, a, NoParent, nil)
	var leaf NodeID
	parent := root
	for i := 0; i < 10; i++ {
		leaf = mustInsert(t, a, parent, nil)
		parent = leaf
	}
	_, _ = a.WorldTransform(leaf)
	base := a.recomputed

	// Setting transforms recomputes nothing.
	for i := 0; i < 5; i++ {
		_ = a.SetTransform(root, stage.TranslateBy(float64(i), 0))
	}
	if a.recomputed != base {
		t.Errorf("SetTransform recomputed %d transforms eagerly", a.recomputed-base)
	}

	// One resolve of the leaf recomputes the chain once.
	_, _ = a.WorldTransform(leaf)
	if got := a.recomputed - base; got != 11 {
		t.Errorf("recomputed = %d, want 11", got)
	}

	// An unchanged chain resolves without recomputation.
	base = a.recomputed
	for i := 0; i < 3; i++ {
		_, _ = a.WorldTransform(leaf)
	}
	if a.recomputed != base {
		t.Errorf("unchanged chain recomputed %d times", a.recomputed-base)
	}
}

func TestWorldTransformMatchesAncestorProduct(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	a := NewArena()
	var live []NodeID

	randomTransform := func() stage.Transform {
		return stage.Transform{
			Translation: stage.Pt(rng.Float64()*100-50, rng.Float64()*100-50),
			Rotation:    rng.Float64() * math.Pi,
			Scale:       stage.Pt(0.5+rng.Float64(), 0.5+rng.Float64()),
		}
	}

	for step := 0; step < 2000; step++ {
		switch op := rng.Intn(10); {
		case op < 4 || len(live) == 0:
			parent := NoParent
			if len(live) > 0 && rng.Intn(4) != 0 {
				parent = live[rng.Intn(len(live))]
			}
			live = append(live, mustInsert(t, a, parent, nil))
		case op < 7:
			_ = a.SetTransform(live[rng.Intn(len(live))], randomTransform())
		case op < 9:
			id := live[rng.Intn(len(live))]
			under := live[rng.Intn(len(live))]
			err := a.Reparent(id, under)
			if err != nil && !errors.Is(err, stage.ErrInvalidParent) {
				t.Fatalf("Reparent error = %v", err)
			}
		default:
			i := rng.Intn(len(live))
			if err := a.Remove(live[i]); err != nil {
				t.Fatalf("Remove error = %v", err)
			}
			live = append(live[:i], live[i+1:]...)
		}

		if step%50 == 0 {
			for _, id := range live {
				got, err := a.WorldTransform(id)
				if err != nil {
					t.Fatalf("WorldTransform error = %v", err)
				}
				if want := bruteWorld(t, a, id); !got.ApproxEqual(want, 1e-6) {
					t.Fatalf("step %d: world(%v) = %+v, want %+v", step, id, got, want)
				}
			}
		}
	}
}

func TestViewportRelativeAnchor(t *testing.T) {
	a := NewArena()
	a.SetViewport(800, 600)
	hud := mustInsert(t, a, NoParent, nil)
	icon := mustInsert(t, a, hud, nil)
	if err := a.SetViewportRelative(hud, true, stage.Pt(1, 1)); err != nil {
		t.Fatal(err)
	}
	_ = a.SetTransform(hud, stage.TranslateBy(-10, -10))

	w, _ := a.WorldTransform(icon)
	if w.Translation() != stage.Pt(790, 590) {
		t.Errorf("icon world = %v, want (790, 590)", w.Translation())
	}

	a.SetViewport(1024, 768)
	w, _ = a.WorldTransform(icon)
	if w.Translation() != stage.Pt(1014, 758) {
		t.Errorf("icon world after resize = %v, want (1014, 758)", w.Translation())
	}
	if got := a.InvalidateViewport(); got != 1 {
		t.Errorf("InvalidateViewport = %d, want 1", got)
	}
}
