package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/driftline/sitscope/internal/geom"
	"github.com/driftline/sitscope/internal/policy"
	"github.com/driftline/sitscope/internal/scene"
	"github.com/driftline/sitscope/internal/units"
	"github.com/driftline/sitscope/internal/view"
)

// Glyph density ramp, nearest first.
var depthRamp = []rune{'█', '▓', '▒', '░'}

var (
	styleOK       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	styleFallback = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	styleBad      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	styleDim      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleFocus    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Reverse(true)
)

// Unicode is the mandatory baseline backend: a fixed character grid with
// depth-ramped glyphs, velocity arrows and optional color. It has no
// terminal requirements and must never fail for a well-formed scene.
type Unicode struct {
	cols, rows int
	color      bool

	// SpeedUnits selects the display unit for full-detail speed labels.
	// Empty means m/s.
	SpeedUnits string
}

// NewUnicode builds the character backend. Non-positive dimensions fall
// back to an 80x24 grid.
func NewUnicode(cols, rows int, color bool) *Unicode {
	if cols <= 0 {
		cols = 80
	}
	if rows <= 0 {
		rows = 24
	}
	return &Unicode{cols: cols, rows: rows, color: color}
}

func (u *Unicode) Name() string { return "unicode" }

func (u *Unicode) Supported(_ TerminalInfo) bool { return true }

type cell struct {
	r  rune
	st *lipgloss.Style
}

type grid struct {
	cols, rows int
	cells      [][]cell
	written    int
}

func newGrid(cols, rows int) *grid {
	g := &grid{cols: cols, rows: rows, cells: make([][]cell, rows)}
	for y := range g.cells {
		row := make([]cell, cols)
		for x := range row {
			row[x] = cell{r: ' '}
		}
		g.cells[y] = row
	}
	return g
}

func (g *grid) set(x, y int, r rune, st *lipgloss.Style) {
	if x < 0 || x >= g.cols || y < 0 || y >= g.rows {
		return
	}
	if g.cells[y][x].r == ' ' {
		g.written++
	}
	g.cells[y][x] = cell{r: r, st: st}
}

// setIfEmpty paints only background cells, so trails never overwrite
// target glyphs.
func (g *grid) setIfEmpty(x, y int, r rune, st *lipgloss.Style) bool {
	if x < 0 || x >= g.cols || y < 0 || y >= g.rows || g.cells[y][x].r != ' ' {
		return false
	}
	g.cells[y][x] = cell{r: r, st: st}
	g.written++
	return true
}

func (g *grid) text(x, y int, s string, st *lipgloss.Style) {
	for i, r := range s {
		g.set(x+i, y, r, st)
	}
}

// lines renders the grid, coalescing runs of identically styled cells.
func (g *grid) lines(color bool) []string {
	out := make([]string, g.rows)
	for y, row := range g.cells {
		var b strings.Builder
		var run []rune
		var runStyle *lipgloss.Style
		flush := func() {
			if len(run) == 0 {
				return
			}
			if color && runStyle != nil {
				b.WriteString(runStyle.Render(string(run)))
			} else {
				b.WriteString(string(run))
			}
			run = run[:0]
		}
		for _, c := range row {
			if c.st != runStyle {
				flush()
				runStyle = c.st
			}
			run = append(run, c.r)
		}
		flush()
		out[y] = b.String()
	}
	return out
}

func truthStyle(truth scene.TruthState) *lipgloss.Style {
	switch truth {
	case scene.TruthOK:
		return &styleOK
	case scene.TruthFallback:
		return &styleFallback
	default:
		return &styleBad
	}
}

func visibleRange(cam geom.Camera) float64 {
	r := cam.RangeM
	if r <= 0 {
		r = 500
	}
	z := cam.Zoom
	if z <= 0 {
		z = 1
	}
	return r / z
}

// depthGlyph picks a glyph from the density ramp. depth is the
// range-normalised value ProjectPoint returns, spanning roughly
// [0, 2*visibleRange].
func depthGlyph(depth, r float64) rune {
	if r <= 0 {
		return depthRamp[0]
	}
	idx := int(depth / (2 * r) * float64(len(depthRamp)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(depthRamp) {
		idx = len(depthRamp) - 1
	}
	return depthRamp[idx]
}

// focusTrackID extracts the fused track id from a situation id of the
// form "TYPE:trackid".
func focusTrackID(alertID string) string {
	if i := strings.IndexByte(alertID, ':'); i >= 0 {
		return alertID[i+1:]
	}
	return ""
}

// Render draws the scene. A not-ok scene produces only a centred message
// naming the truth state and reason; no glyph is ever fabricated.
func (u *Unicode) Render(sc scene.RadarScene, vs view.RadarViewState, plan policy.Plan) (RenderOutput, error) {
	g := newGrid(u.cols, u.rows)
	out := RenderOutput{Backend: u.Name()}

	if !sc.OK {
		msg := string(sc.TruthState) + ": " + sc.Reason
		if sc.TruthState == scene.TruthNoData {
			msg = "NO DATA: " + sc.Reason
		}
		x := (u.cols - len(msg)) / 2
		if x < 0 {
			x = 0
		}
		g.text(x, u.rows/2, msg, truthStyle(sc.TruthState))
		out.Lines = g.lines(u.color)
		out.Stats.CellsWritten = g.written
		return out, nil
	}

	cam := vs.Camera()
	r := visibleRange(cam)
	base := truthStyle(sc.TruthState)
	focus := focusTrackID(vs.AlertFocusID)

	showTrails := plan.ShowTrails && vs.ShowTrails
	showVectors := plan.ShowVectors && vs.ShowVectors
	showLabels := plan.ShowLabels && vs.ShowLabels

	if showTrails {
		for _, trail := range sc.Trails {
			for _, tp := range trail {
				x, y, _, ok := geom.ProjectPoint(tp.Pos, cam, u.cols, u.rows)
				if !ok {
					continue
				}
				if g.setIfEmpty(x, y, '·', &styleDim) {
					out.Stats.TrailCells++
				}
			}
		}
	}

	for _, p := range sc.Points {
		x, y, depth, ok := geom.ProjectPoint(p.Pos, cam, u.cols, u.rows)
		if !ok {
			out.Stats.Clipped++
			continue
		}

		st := base
		switch {
		case p.HasFlag(scene.FlagConflict):
			st = &styleBad
		case p.HasFlag(scene.FlagLowSupport):
			st = &styleFallback
		}
		if focus != "" && p.ID == focus {
			st = &styleFocus
		}

		g.set(x, y, depthGlyph(depth, r), st)
		out.Stats.PointsDrawn++

		if showVectors && p.HasVel {
			rel := p.Pos.XY().Sub(cam.Center)
			closing := 0.0
			if d := rel.Norm(); d > 0 {
				closing = -rel.Dot(p.Vel) / d
			}
			arrow := '↑'
			if closing > 0 {
				arrow = '↓'
			}
			g.set(x+1, y, arrow, st)
			out.Stats.VectorsDrawn++
		}

		if showLabels {
			label := p.ID
			if plan.FullDetail {
				label = fmt.Sprintf("%s t=%.2f", p.ID, p.Trust)
				if p.HasVel {
					label += " " + units.FormatSpeed(p.Vel.Norm(), u.SpeedUnits)
				}
			}
			g.text(x+2, y, label, &styleDim)
			out.Stats.LabelsDrawn++
		}
	}

	out.Lines = g.lines(u.color)
	out.Stats.CellsWritten = g.written
	out.Lines = append(out.Lines, u.statusLine(sc, vs, plan))
	return out, nil
}

func (u *Unicode) statusLine(sc scene.RadarScene, vs view.RadarViewState, plan policy.Plan) string {
	line := fmt.Sprintf("mode=%s zoom=%.2f lvl=%d lod=%d trk=%d",
		vs.Mode, vs.Zoom, plan.Level, plan.LOD, len(sc.Points))
	if len(plan.Triggers) > 0 {
		line += " [" + strings.Join(plan.Triggers, ",") + "]"
	}
	if vs.AlertFocusID != "" {
		line += " focus=" + vs.AlertFocusID
	}
	if u.color {
		return styleDim.Render(line)
	}
	return line
}
