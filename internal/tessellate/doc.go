// Package tessellate converts vector shapes into indexed triangle meshes.
//
// Curves are flattened with recursive subdivision against a distance
// tolerance. Fills follow the non-zero winding rule: a single simple
// contour is ear clipped (fanned when convex), while holes, overlapping
// subpaths and self-intersections go through a band sweep that emits one
// trapezoid per covered span. Strokes are expanded into quads with miter or
// bevel joins. Meshes are produced in the shape's local space, so a cached
// mesh stays valid while the node moves.
package tessellate
