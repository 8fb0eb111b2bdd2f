package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/sitscope/internal/geom"
	"github.com/driftline/sitscope/internal/policy"
	"github.com/driftline/sitscope/internal/render"
	"github.com/driftline/sitscope/internal/scene"
	"github.com/driftline/sitscope/internal/telemetry"
	"github.com/driftline/sitscope/internal/timeutil"
	"github.com/driftline/sitscope/internal/track"
	"github.com/driftline/sitscope/internal/view"
)

func newTestPipeline(t *testing.T, clock timeutil.Clock, sink telemetry.Sink) *Pipeline {
	t.Helper()
	p, err := New(Options{
		Backend: "unicode",
		Clock:   clock,
		Sink:    sink,
	})
	require.NoError(t, err)
	return p
}

func obs(source, key string, x float64, ts time.Time) track.Observation {
	return track.Observation{
		SourceID: source,
		TrackKey: key,
		T:        ts,
		Pos:      &geom.Vec2{X: x},
		Quality:  0.8,
	}
}

func okScene(points ...scene.RadarPoint) scene.RadarScene {
	return scene.RadarScene{OK: true, TruthState: scene.TruthOK, Points: points}
}

func TestTickConfirmsAndRenders(t *testing.T) {
	start := time.Unix(5000, 0)
	clock := timeutil.NewMockClock(start)
	sink := &telemetry.MemorySink{}
	p := newTestPipeline(t, clock, sink)

	var res TickResult
	var err error
	for i := 0; i < 3; i++ {
		clock.Set(start.Add(time.Duration(i) * 100 * time.Millisecond))
		now := clock.Now()
		res, err = p.Tick([]track.Observation{
			obs("radar", "A1", 100, now),
			obs("optical", "O7", 105, now),
		})
		require.NoError(t, err)
	}

	// Default confirm_frames is 3: the pair is active by now.
	require.True(t, res.Scene.OK, "scene: %+v", res.Scene)
	require.Len(t, res.Tracks, 1)
	assert.Contains(t, res.Tracks[0].FusedID, "fx-")
	assert.Equal(t, "unicode", res.Output.Backend)
	assert.False(t, res.Output.UsedRuntimeFallback)
	assert.NotEmpty(t, res.Output.Lines)

	ticks := sink.ByType("render_tick")
	require.Len(t, ticks, 3)
	assert.Equal(t, p.SessionID(), ticks[0].Payload["session"])
}

func TestTickNoObservations(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(5000, 0))
	p := newTestPipeline(t, clock, nil)

	res, err := p.Tick(nil)
	require.NoError(t, err)
	assert.False(t, res.Scene.OK)
	assert.Equal(t, scene.TruthNoData, res.Scene.TruthState)
	assert.NotEmpty(t, res.Output.Lines)
}

func TestTickAllRejected(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(5000, 0))
	p := newTestPipeline(t, clock, nil)

	res, err := p.Tick([]track.Observation{{SourceID: "", TrackKey: "A1"}})
	require.NoError(t, err)
	assert.False(t, res.Scene.OK)
	assert.Equal(t, scene.TruthInvalid, res.Scene.TruthState)
}

func TestDropoutBreaksConfirmStreak(t *testing.T) {
	start := time.Unix(5000, 0)
	clock := timeutil.NewMockClock(start)
	p := newTestPipeline(t, clock, nil)

	// Default confirm_frames is 3. Observations on ticks 1, 2 and 4
	// with an empty tick 3 in between are not consecutive: the empty
	// tick must advance the fusion frame counter and reset the streak.
	for i, feed := range []bool{true, true, false, true} {
		clock.Set(start.Add(time.Duration(i) * 100 * time.Millisecond))
		now := clock.Now()
		var in []track.Observation
		if feed {
			in = []track.Observation{
				obs("radar", "A1", 100, now),
				obs("optical", "O7", 105, now),
			}
		}
		res, err := p.Tick(in)
		require.NoError(t, err)
		assert.False(t, res.Scene.OK, "tick %d: %+v", i+1, res.Scene)
		assert.Empty(t, res.Tracks, "tick %d", i+1)
	}
}

func TestConfirmedTrackCoastsThroughDropout(t *testing.T) {
	start := time.Unix(5000, 0)
	clock := timeutil.NewMockClock(start)
	p := newTestPipeline(t, clock, nil)

	for i := 0; i < 3; i++ {
		clock.Set(start.Add(time.Duration(i) * 100 * time.Millisecond))
		now := clock.Now()
		_, err := p.Tick([]track.Observation{
			obs("radar", "A1", 100, now),
			obs("optical", "O7", 105, now),
		})
		require.NoError(t, err)
	}

	// An empty tick inside max_age keeps the confirmed track alive
	// with its last estimate instead of blanking the display.
	clock.Set(start.Add(300 * time.Millisecond))
	res, err := p.Tick(nil)
	require.NoError(t, err)
	require.True(t, res.Scene.OK, "scene: %+v", res.Scene)
	require.Len(t, res.Tracks, 1)
	assert.Contains(t, res.Tracks[0].FusedID, "fx-")
}

func TestNoDataFrameLeavesTrailsUntouched(t *testing.T) {
	start := time.Unix(5000, 0)
	clock := timeutil.NewMockClock(start)
	p := newTestPipeline(t, clock, nil)

	sc := okScene(scene.RadarPoint{ID: "fx-1", Pos: geom.Vec3{X: 50}, LastUpdate: start})
	_, err := p.TickScene(sc)
	require.NoError(t, err)
	before := p.trails.GetAll()
	require.NotEmpty(t, before)

	clock.Advance(100 * time.Millisecond)
	_, err = p.TickScene(scene.NoData("uplink lost"))
	require.NoError(t, err)
	assert.Equal(t, before, p.trails.GetAll(), "a data gap must not touch trail history")
}

type stubBackend struct {
	name string
	err  error
}

func (s stubBackend) Name() string { return s.name }

func (s stubBackend) Supported(render.TerminalInfo) bool { return true }

func (s stubBackend) Render(scene.RadarScene, view.RadarViewState, policy.Plan) (render.RenderOutput, error) {
	if s.err != nil {
		return render.RenderOutput{}, s.err
	}
	return render.RenderOutput{Backend: s.name, Lines: []string{"frame"}}, nil
}

func TestBitmapFailureFallsBackOnce(t *testing.T) {
	start := time.Unix(5000, 0)
	clock := timeutil.NewMockClock(start)
	sink := &telemetry.MemorySink{}
	p := newTestPipeline(t, clock, sink)
	p.backend = stubBackend{name: "kitty", err: errors.New("tty closed")}

	res, err := p.TickScene(okScene(scene.RadarPoint{ID: "fx-1", LastUpdate: start}))
	require.NoError(t, err)
	assert.Equal(t, "unicode", res.Output.Backend)
	assert.True(t, res.Output.UsedRuntimeFallback)
	require.NotEmpty(t, res.Output.Lines)
	assert.Equal(t, render.FallbackMarker, res.Output.Lines[0])
	assert.Len(t, sink.ByType("render_fallback"), 1)
}

func TestRuntimeFallbackRaisesLowCapability(t *testing.T) {
	start := time.Unix(5000, 0)
	clock := timeutil.NewMockClock(start)
	p := newTestPipeline(t, clock, nil)
	p.backend = stubBackend{name: "kitty", err: errors.New("tty closed")}

	res, err := p.TickScene(okScene(scene.RadarPoint{ID: "fx-1", LastUpdate: start}))
	require.NoError(t, err)
	require.True(t, res.Output.UsedRuntimeFallback)
	assert.Equal(t, "unicode", p.BackendName(), "a runtime fallback demotes the session")

	// Subsequent frames render on the baseline directly and carry the
	// low-capability trigger into the plan.
	clock.Advance(100 * time.Millisecond)
	res, err = p.TickScene(okScene(scene.RadarPoint{ID: "fx-1", LastUpdate: clock.Now()}))
	require.NoError(t, err)
	assert.False(t, res.Output.UsedRuntimeFallback)
	assert.Contains(t, res.Plan.Triggers, policy.TriggerLowCapabilityBackend)
}

func TestBaselineFailureIsFatal(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(5000, 0))
	p := newTestPipeline(t, clock, nil)
	p.backend = stubBackend{name: "unicode", err: errors.New("tty closed")}

	_, err := p.TickScene(okScene())
	require.Error(t, err)
}

func TestExplicitUnsupportedBackendFailsFast(t *testing.T) {
	_, err := New(Options{
		Backend:  "kitty",
		Terminal: render.TerminalInfo{Term: "xterm-256color"},
	})
	require.ErrorIs(t, err, render.ErrUnsupported)

	_, err = New(Options{Backend: "vt100-holograms"})
	require.Error(t, err)
}

func TestAutoBackendSelection(t *testing.T) {
	p, err := New(Options{
		Backend:  "auto",
		Terminal: render.TerminalInfo{Term: "xterm-kitty"},
	})
	require.NoError(t, err)
	assert.Equal(t, "kitty", p.BackendName())

	p, err = New(Options{
		Backend:  "auto",
		Terminal: render.TerminalInfo{Term: "xterm-kitty", SSH: true},
		Clock:    timeutil.NewMockClock(time.Unix(5000, 0)),
	})
	require.NoError(t, err)
	assert.Equal(t, "unicode", p.BackendName(), "ambiguous terminals settle on the baseline")

	// Auto wanted bitmap output but could not prove support: the
	// session counts as capability-degraded from the first frame.
	res, err := p.TickScene(okScene(scene.RadarPoint{ID: "fx-1"}))
	require.NoError(t, err)
	assert.Contains(t, res.Plan.Triggers, policy.TriggerLowCapabilityBackend)
}

func TestManualClutterLockReachesPlan(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(5000, 0))
	p := newTestPipeline(t, clock, nil)
	p.Apply(view.InputToggleClutterLock)

	res, err := p.TickScene(okScene(scene.RadarPoint{ID: "fx-1"}))
	require.NoError(t, err)
	assert.Contains(t, res.Plan.Triggers, policy.TriggerManualClutterLock)
}

func TestAlertFocusFollowsTopSituation(t *testing.T) {
	start := time.Unix(5000, 0)
	clock := timeutil.NewMockClock(start)
	p := newTestPipeline(t, clock, nil)

	inbound := scene.RadarPoint{
		ID:         "fx-7",
		Pos:        geom.Vec3{X: 300},
		Vel:        geom.Vec2{X: -20},
		HasVel:     true,
		Class:      "vessel",
		LastUpdate: start,
	}
	var res TickResult
	var err error
	for i := 0; i < 3; i++ {
		clock.Set(start.Add(time.Duration(i) * 100 * time.Millisecond))
		res, err = p.TickScene(okScene(inbound))
		require.NoError(t, err)
	}
	require.NotEmpty(t, res.Situations)
	assert.Equal(t, "CPA_RISK:fx-7", res.View.AlertFocusID)
}
