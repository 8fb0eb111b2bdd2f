package geom

import "math"

// ViewMode selects the projection applied when mapping world points onto
// the character or pixel grid.
type ViewMode string

const (
	ViewTop   ViewMode = "top"   // plan view, north up
	ViewSide  ViewMode = "side"  // viewer south of the vehicle looking north
	ViewFront ViewMode = "front" // viewer west of the vehicle looking east
	ViewIso   ViewMode = "iso"   // yaw/pitch rotated oblique view
)

// Camera describes the viewer for a single projection pass. It is a pure
// value; the view layer produces one per frame from its state.
type Camera struct {
	Mode     ViewMode
	Center   Vec2    // world point mapped to the grid centre
	RangeM   float64 // world half-extent (metres) mapped to the grid half-width at zoom 1
	Zoom     float64 // >1 narrows the visible extent
	YawRad   float64 // iso only
	PitchRad float64 // iso only
}

// visibleRange returns the half-extent in metres actually shown.
func (c Camera) visibleRange() float64 {
	r := c.RangeM
	if r <= 0 {
		r = 500
	}
	z := c.Zoom
	if z <= 0 {
		z = 1
	}
	return r / z
}

// ProjectPoint maps a world point to integer grid coordinates under the
// camera. It returns the cell (u, v), the depth of the point along the view
// axis (metres, larger = further from the viewer), and whether the cell
// falls inside the w×h grid. Callers must not draw when ok is false.
func ProjectPoint(p Vec3, cam Camera, w, h int) (u, v int, depth float64, ok bool) {
	if w <= 0 || h <= 0 {
		return 0, 0, 0, false
	}

	rel := Vec3{p.X - cam.Center.X, p.Y - cam.Center.Y, p.Z}

	var sx, sy float64 // view-plane coordinates, metres
	switch cam.Mode {
	case ViewSide:
		sx, sy = rel.X, rel.Z
		depth = rel.Y
	case ViewFront:
		sx, sy = rel.Y, rel.Z
		depth = rel.X
	case ViewIso:
		// Yaw about Z, then pitch about the view X axis.
		cy, sy0 := math.Cos(cam.YawRad), math.Sin(cam.YawRad)
		rx := rel.X*cy - rel.Y*sy0
		ry := rel.X*sy0 + rel.Y*cy
		cp, sp := math.Cos(cam.PitchRad), math.Sin(cam.PitchRad)
		sx = rx
		sy = ry*sp + rel.Z*cp
		depth = ry*cp - rel.Z*sp
	default: // ViewTop
		sx, sy = rel.X, rel.Y
		depth = -rel.Z
	}

	r := cam.visibleRange()
	halfW := float64(w) / 2
	halfH := float64(h) / 2
	u = int(math.Round(halfW + sx/r*(halfW-1)))
	v = int(math.Round(halfH - sy/r*(halfH-1)))

	// Normalise depth so density ramps are range-relative.
	depth += r

	if u < 0 || u >= w || v < 0 || v >= h {
		return u, v, depth, false
	}
	return u, v, depth, true
}
