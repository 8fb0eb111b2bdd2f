package render

import (
	"image"
	"image/color"
	"math"

	"github.com/driftline/sitscope/internal/geom"
	"github.com/driftline/sitscope/internal/policy"
	"github.com/driftline/sitscope/internal/scene"
	"github.com/driftline/sitscope/internal/view"
)

// Pixel palette for the bitmap backends, mirroring the character
// backend's truth/flag styling.
var (
	rgbOK       = color.RGBA{0x30, 0xd0, 0x58, 0xff}
	rgbFallback = color.RGBA{0xd8, 0xc0, 0x28, 0xff}
	rgbBad      = color.RGBA{0xd8, 0x40, 0x40, 0xff}
	rgbDim      = color.RGBA{0x58, 0x60, 0x68, 0xff}
	rgbFocus    = color.RGBA{0xff, 0xff, 0xff, 0xff}
	rgbBack     = color.RGBA{0x08, 0x0c, 0x10, 0xff}
)

func truthColor(truth scene.TruthState) color.RGBA {
	switch truth {
	case scene.TruthOK:
		return rgbOK
	case scene.TruthFallback:
		return rgbFallback
	default:
		return rgbBad
	}
}

// sceneMessage is the text shown instead of targets for a not-ok scene.
func sceneMessage(sc scene.RadarScene) string {
	if sc.TruthState == scene.TruthNoData {
		return "NO DATA: " + sc.Reason
	}
	return string(sc.TruthState) + ": " + sc.Reason
}

// rasterize draws an ok scene into an RGBA image. The image dimensions
// are the base size scaled by the plan's bitmap scale, which is how the
// degradation ladder trades resolution for frame time.
func rasterize(sc scene.RadarScene, vs view.RadarViewState, plan policy.Plan, baseW, baseH int) (*image.RGBA, RenderStats) {
	scale := plan.BitmapScale
	if scale <= 0 || scale > 1 {
		scale = 1
	}
	w := int(float64(baseW) * scale)
	h := int(float64(baseH) * scale)
	if w < 16 {
		w = 16
	}
	if h < 16 {
		h = 16
	}

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, rgbBack)
		}
	}

	var stats RenderStats
	cam := vs.Camera()
	r := visibleRange(cam)
	base := truthColor(sc.TruthState)
	focus := focusTrackID(vs.AlertFocusID)

	if plan.ShowTrails && vs.ShowTrails {
		for _, trail := range sc.Trails {
			for _, tp := range trail {
				x, y, _, ok := geom.ProjectPoint(tp.Pos, cam, w, h)
				if !ok {
					continue
				}
				img.SetRGBA(x, y, rgbDim)
				stats.TrailCells++
			}
		}
	}

	for _, p := range sc.Points {
		x, y, depth, ok := geom.ProjectPoint(p.Pos, cam, w, h)
		if !ok {
			stats.Clipped++
			continue
		}

		col := base
		switch {
		case p.HasFlag(scene.FlagConflict):
			col = rgbBad
		case p.HasFlag(scene.FlagLowSupport):
			col = rgbFallback
		}
		if focus != "" && p.ID == focus {
			col = rgbFocus
		}

		// Nearer targets draw as larger squares.
		half := 3
		if r > 0 {
			half = 4 - int(depth/(2*r)*4)
			if half < 1 {
				half = 1
			}
			if half > 4 {
				half = 4
			}
		}
		fillSquare(img, x, y, half, col)
		stats.PointsDrawn++
		stats.CellsWritten += (2*half + 1) * (2*half + 1)

		if plan.ShowVectors && vs.ShowVectors && p.HasVel {
			// Velocity segment, one second of travel, in screen space.
			tip := geom.Vec3{X: p.Pos.X + p.Vel.X, Y: p.Pos.Y + p.Vel.Y, Z: p.Pos.Z}
			tx, ty, _, tok := geom.ProjectPoint(tip, cam, w, h)
			if tok {
				drawLine(img, x, y, tx, ty, col)
				stats.VectorsDrawn++
			}
		}
	}

	return img, stats
}

func fillSquare(img *image.RGBA, cx, cy, half int, col color.RGBA) {
	b := img.Bounds()
	for y := cy - half; y <= cy+half; y++ {
		for x := cx - half; x <= cx+half; x++ {
			if x >= b.Min.X && x < b.Max.X && y >= b.Min.Y && y < b.Max.Y {
				img.SetRGBA(x, y, col)
			}
		}
	}
}

func drawLine(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	steps := int(math.Max(math.Abs(float64(x1-x0)), math.Abs(float64(y1-y0))))
	if steps == 0 {
		img.SetRGBA(x0, y0, col)
		return
	}
	b := img.Bounds()
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := x0 + int(math.Round(t*float64(x1-x0)))
		y := y0 + int(math.Round(t*float64(y1-y0)))
		if x >= b.Min.X && x < b.Max.X && y >= b.Min.Y && y < b.Max.Y {
			img.SetRGBA(x, y, col)
		}
	}
}
