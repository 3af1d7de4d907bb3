package scene

import "github.com/gogpu/stage"

// Camera maps scene space to the viewport. Origin is the scene point shown
// at the top-left corner of the viewport.
type Camera struct {
	Origin stage.Point
	// Zoom scales scene units; zero means 1.
	Zoom float64
}

// View returns the matrix applied to nodes that are not viewport-relative.
// scaleFactor is the display's physical pixels per logical pixel.
func (c Camera) View(scaleFactor float64) stage.Matrix {
	zoom := c.Zoom
	if zoom == 0 {
		zoom = 1
	}
	if scaleFactor <= 0 {
		scaleFactor = 1
	}
	s := zoom * scaleFactor
	return stage.Scale(s, s).Multiply(stage.Translate(-c.Origin.X, -c.Origin.Y))
}
