// Package scene stores the scene graph in a generational arena.
//
// Nodes are addressed by [NodeID], a (slot, generation) pair. Removing a
// node tombstones its slot and bumps the generation, so every id held by
// outside code fails with [stage.ErrStaleReference] instead of aliasing a
// reused slot.
//
// # Remove policy
//
// [Arena.Remove] never removes descendants. The removed node's children
// are detached to the removed node's parent, keeping their local
// transforms and appended after the parent's existing children. When the
// removed node was a root, its children become roots. Callers that want
// to delete a whole subtree use [Arena.RemoveSubtree].
//
// # World transforms
//
// World transforms resolve lazily. SetTransform only sets a dirty bit on
// the node; descendants notice on their next resolve because each node
// remembers the version of its parent's world transform it was built
// from. An arena-wide epoch lets nodes validated during the current epoch
// skip the ancestor walk, so resolving an unchanged scene is O(1) per
// node.
//
// An Arena is not safe for concurrent use. It is owned by the frame
// goroutine.
package scene
