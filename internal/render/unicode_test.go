package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/sitscope/internal/geom"
	"github.com/driftline/sitscope/internal/policy"
	"github.com/driftline/sitscope/internal/scene"
	"github.com/driftline/sitscope/internal/view"
)

func fullPlan() policy.Plan {
	return policy.Plan{
		LOD:         3,
		ShowVectors: true,
		ShowLabels:  true,
		ShowTrails:  true,
		FullDetail:  false,
		BitmapScale: 1.0,
	}
}

func okScene(points ...scene.RadarPoint) scene.RadarScene {
	return scene.RadarScene{OK: true, TruthState: scene.TruthOK, Points: points}
}

func TestUnicodeNoDataFrame(t *testing.T) {
	u := NewUnicode(64, 20, false)
	out, err := u.Render(scene.NoData("sensor offline"), view.Default(), fullPlan())
	require.NoError(t, err)
	assert.Equal(t, "unicode", out.Backend)

	joined := strings.Join(out.Lines, "\n")
	assert.Contains(t, joined, "NO DATA: sensor offline")
	assert.Equal(t, 0, out.Stats.PointsDrawn)
	for _, g := range depthRamp {
		assert.NotContains(t, joined, string(g), "no target glyphs on a not-ok frame")
	}
}

func TestUnicodeDrawsCentredTarget(t *testing.T) {
	u := NewUnicode(64, 20, false)
	sc := okScene(scene.RadarPoint{ID: "fx-1", Pos: geom.Vec3{}, Trust: 0.9})
	out, err := u.Render(sc, view.Default(), fullPlan())
	require.NoError(t, err)
	require.Equal(t, 1, out.Stats.PointsDrawn)

	// Origin projects to the grid centre; the glyph there is the
	// densest in the ramp (nearest depth band at z=0 in top view is
	// mid-range, so just assert some ramp glyph is present).
	joined := strings.Join(out.Lines, "\n")
	found := false
	for _, g := range depthRamp {
		if strings.Contains(joined, string(g)) {
			found = true
		}
	}
	assert.True(t, found, "expected a target glyph in:\n%s", joined)
}

func TestUnicodeVelocityArrows(t *testing.T) {
	u := NewUnicode(64, 20, false)
	closing := scene.RadarPoint{
		ID: "fx-1", Pos: geom.Vec3{X: 100}, Vel: geom.Vec2{X: -10}, HasVel: true,
	}
	receding := scene.RadarPoint{
		ID: "fx-2", Pos: geom.Vec3{X: -100}, Vel: geom.Vec2{X: -10}, HasVel: true,
	}
	out, err := u.Render(okScene(closing, receding), view.Default(), fullPlan())
	require.NoError(t, err)
	assert.Equal(t, 2, out.Stats.VectorsDrawn)

	joined := strings.Join(out.Lines, "\n")
	assert.Contains(t, joined, "↓", "closing contact gets an inbound arrow")
	assert.Contains(t, joined, "↑", "receding contact gets an outbound arrow")
}

func TestUnicodeOverlaysRespectPlan(t *testing.T) {
	u := NewUnicode(64, 20, false)
	p := scene.RadarPoint{ID: "fx-1", Pos: geom.Vec3{X: 50}, Vel: geom.Vec2{X: 5}, HasVel: true}
	sc := okScene(p)
	sc.Trails = map[string][]scene.RadarPoint{
		"fx-1": {{ID: "fx-1", Pos: geom.Vec3{X: 60}}, {ID: "fx-1", Pos: geom.Vec3{X: 55}}},
	}

	plan := fullPlan()
	plan.ShowVectors = false
	plan.ShowLabels = false
	plan.ShowTrails = false

	out, err := u.Render(sc, view.Default(), plan)
	require.NoError(t, err)
	assert.Equal(t, 1, out.Stats.PointsDrawn)
	assert.Equal(t, 0, out.Stats.VectorsDrawn)
	assert.Equal(t, 0, out.Stats.LabelsDrawn)
	assert.Equal(t, 0, out.Stats.TrailCells)

	// The operator can also veto an overlay the plan allows.
	vs := view.Default()
	vs.ShowLabels = false
	out, err = u.Render(sc, vs, fullPlan())
	require.NoError(t, err)
	assert.Equal(t, 0, out.Stats.LabelsDrawn)
	assert.Equal(t, 1, out.Stats.VectorsDrawn)
	assert.NotZero(t, out.Stats.TrailCells)
}

func TestUnicodeLabelsAndFullDetail(t *testing.T) {
	u := NewUnicode(64, 20, false)
	sc := okScene(scene.RadarPoint{ID: "fx-9", Pos: geom.Vec3{X: -80}, Trust: 0.93})

	out, err := u.Render(sc, view.Default(), fullPlan())
	require.NoError(t, err)
	assert.Contains(t, strings.Join(out.Lines, "\n"), "fx-9")

	plan := fullPlan()
	plan.FullDetail = true
	out, err = u.Render(sc, view.Default(), plan)
	require.NoError(t, err)
	assert.Contains(t, strings.Join(out.Lines, "\n"), "t=0.93")

	// Full detail adds a speed label for velocity bearers, in the
	// configured display units.
	u.SpeedUnits = "kt"
	sc = okScene(scene.RadarPoint{
		ID:     "fx-9",
		Pos:    geom.Vec3{X: -80},
		Vel:    geom.Vec2{X: 10},
		HasVel: true,
		Trust:  0.93,
	})
	out, err = u.Render(sc, view.Default(), plan)
	require.NoError(t, err)
	assert.Contains(t, strings.Join(out.Lines, "\n"), "19.4kt")
}

func TestUnicodeClipsOffscreenTargets(t *testing.T) {
	u := NewUnicode(64, 20, false)
	sc := okScene(scene.RadarPoint{ID: "fx-1", Pos: geom.Vec3{X: 1e6}})
	out, err := u.Render(sc, view.Default(), fullPlan())
	require.NoError(t, err)
	assert.Equal(t, 0, out.Stats.PointsDrawn)
	assert.Equal(t, 1, out.Stats.Clipped)
}

func TestUnicodeStatusLine(t *testing.T) {
	u := NewUnicode(64, 20, false)
	plan := fullPlan()
	plan.Level = 2
	plan.Triggers = []string{policy.TriggerTargetOverload}

	out, err := u.Render(okScene(), view.Default(), plan)
	require.NoError(t, err)
	require.NotEmpty(t, out.Lines)
	status := out.Lines[len(out.Lines)-1]
	assert.Contains(t, status, "lvl=2")
	assert.Contains(t, status, policy.TriggerTargetOverload)
}

func TestFocusTrackID(t *testing.T) {
	assert.Equal(t, "fx-1", focusTrackID("CPA_RISK:fx-1"))
	assert.Equal(t, "radar:A1", focusTrackID("UNKNOWN_NEARBY:radar:A1"))
	assert.Equal(t, "", focusTrackID(""))
}
