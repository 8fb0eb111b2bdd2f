// Package pipeline wires the processing chain together: ingestion,
// fusion, trail bookkeeping, render policy, situation analysis and
// backend rendering, one synchronous pass per tick. A Pipeline owns all
// cross-frame state; callers must treat it as a single writer.
package pipeline

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/driftline/sitscope/internal/fusion"
	"github.com/driftline/sitscope/internal/geom"
	"github.com/driftline/sitscope/internal/policy"
	"github.com/driftline/sitscope/internal/render"
	"github.com/driftline/sitscope/internal/scene"
	"github.com/driftline/sitscope/internal/situation"
	"github.com/driftline/sitscope/internal/telemetry"
	"github.com/driftline/sitscope/internal/timeutil"
	"github.com/driftline/sitscope/internal/track"
	"github.com/driftline/sitscope/internal/view"
)

// Options configures a Pipeline. Zero values select workable defaults;
// the embedding program fills them from its config loader.
type Options struct {
	Fusion    fusion.Config
	Policy    policy.Policy
	Situation situation.Config

	// Backend names the renderer: "unicode", "kitty", "sixel" or
	// "auto". An explicit bitmap request fails fast when the terminal
	// cannot support it; auto probes conservatively and settles on
	// Unicode when in doubt.
	Backend  string
	Terminal render.TerminalInfo
	Color    bool

	// SpeedUnits selects the display unit for full-detail speed
	// labels; empty means m/s.
	SpeedUnits string

	// TrailLen bounds per-track history; TrailMaxAge expires idle
	// tracks from the store.
	TrailLen    int
	TrailMaxAge time.Duration

	Clock timeutil.Clock
	Sink  telemetry.Sink

	// SessionID overrides the generated session id, so an external
	// recorder opened before construction can share it.
	SessionID string
}

// TickResult is everything one tick produced.
type TickResult struct {
	Scene      scene.RadarScene
	Tracks     fusion.FusedTrackSet
	Plan       policy.Plan
	Situations []situation.Situation
	View       view.RadarViewState
	Output     render.RenderOutput
	FrameMs    float64
}

// Pipeline runs the per-tick processing chain. Not safe for concurrent
// use: all mutable state is single-writer by contract.
type Pipeline struct {
	sessionID string
	clock     timeutil.Clock
	sink      telemetry.Sink

	ingestor    *track.Ingestor
	fusionEng   *fusion.Engine
	fusionState *fusion.StateStore

	trails      *scene.TrailStore
	trailMaxAge time.Duration

	policyEng *policy.Engine
	degState  policy.DegradationState

	sitEng *situation.Engine

	vs view.RadarViewState

	backend  render.Backend
	baseline render.Backend
	// capDegraded latches once a runtime fallback has demoted the
	// session to the baseline; it feeds LOW_CAPABILITY_BACKEND.
	capDegraded bool

	frame       int64
	lastFrameMs float64
}

// New builds a pipeline. It fails when an explicitly requested backend
// is unsupported on the given terminal.
func New(opts Options) (*Pipeline, error) {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Sink == nil {
		opts.Sink = telemetry.Discard
	}
	if opts.Fusion == (fusion.Config{}) {
		opts.Fusion = fusion.DefaultConfig()
	}
	if opts.Policy.BitmapScales == nil {
		opts.Policy = policy.Default()
	}
	if opts.Situation == (situation.Config{}) {
		opts.Situation = situation.DefaultConfig()
	}
	if opts.TrailLen <= 0 {
		opts.TrailLen = 32
	}
	if opts.TrailMaxAge <= 0 {
		opts.TrailMaxAge = 30 * time.Second
	}
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}

	baseline := render.NewUnicode(opts.Terminal.Cols, opts.Terminal.Rows, opts.Color)
	baseline.SpeedUnits = opts.SpeedUnits
	backend, capDegraded, err := selectBackend(opts.Backend, opts.Terminal, baseline)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		sessionID:   opts.SessionID,
		clock:       opts.Clock,
		sink:        opts.Sink,
		ingestor:    track.NewIngestor(opts.Sink),
		fusionEng:   fusion.NewEngine(opts.Fusion, opts.Sink),
		fusionState: fusion.NewStateStore(),
		trails:      scene.NewTrailStore(opts.TrailLen),
		trailMaxAge: opts.TrailMaxAge,
		policyEng:   policy.NewEngine(opts.Policy, opts.Sink),
		sitEng:      situation.NewEngine(opts.Situation, opts.Sink),
		vs:          view.Default(),
		backend:     backend,
		baseline:    baseline,
		capDegraded: capDegraded,
	}
	telemetry.Opsf("pipeline: session %s backend=%s", p.sessionID, backend.Name())
	return p, nil
}

// selectBackend resolves the backend request against the terminal. The
// capDegraded result marks an auto session that wanted bitmap output
// but could not prove support for it.
func selectBackend(name string, ti render.TerminalInfo, baseline render.Backend) (render.Backend, bool, error) {
	bitmaps := []render.Backend{
		render.NewKitty(0, 0),
		render.NewSixel(0, 0),
	}
	switch name {
	case "", "unicode":
		return baseline, false, nil
	case "auto":
		for _, b := range bitmaps {
			if b.Supported(ti) {
				return b, false, nil
			}
		}
		return baseline, true, nil
	default:
		for _, b := range bitmaps {
			if b.Name() != name {
				continue
			}
			if !b.Supported(ti) {
				return nil, false, fmt.Errorf("pipeline: backend %q unsupported on this terminal: %w", name, render.ErrUnsupported)
			}
			return b, false, nil
		}
		return nil, false, fmt.Errorf("pipeline: unknown backend %q", name)
	}
}

// SessionID identifies this pipeline instance in telemetry and
// recordings.
func (p *Pipeline) SessionID() string { return p.sessionID }

// BackendName reports the currently selected backend.
func (p *Pipeline) BackendName() string { return p.backend.Name() }

// ViewState returns the current view.
func (p *Pipeline) ViewState() view.RadarViewState { return p.vs }

// Apply routes one operator input through the view controller.
func (p *Pipeline) Apply(in view.Input) {
	p.vs = view.Apply(p.vs, in)
}

// Tick ingests raw observations, fuses them and runs the full frame.
// Fusion runs even on an empty frame: the identity machine's frame
// counter must advance so pending streaks break on gaps and confirmed
// tracks coast through dropouts until MaxAge.
func (p *Pipeline) Tick(obs []track.Observation) (TickResult, error) {
	start := p.clock.Now()

	res := p.ingestor.Ingest(obs)
	tracks := p.fusionEng.Process(p.fusionState, res.BySource, start)

	sc := sceneFromTracks(tracks)
	if !sc.OK && res.TrackCount() == 0 {
		if len(res.Dropped) > 0 {
			sc = scene.Invalid("all observations rejected")
		} else {
			sc = scene.NoData("no observations")
		}
	}
	return p.tick(sc, tracks, start)
}

// TickScene runs the frame from an externally fused scene, used by
// replay and by distributed sessions that receive scenes off the wire.
func (p *Pipeline) TickScene(sc scene.RadarScene) (TickResult, error) {
	return p.tick(sc, nil, p.clock.Now())
}

// sceneFromTracks builds the displayable picture from the fused set.
// The fused set is already deterministically ordered.
func sceneFromTracks(tracks fusion.FusedTrackSet) scene.RadarScene {
	if len(tracks) == 0 {
		return scene.NoData("no confirmed tracks")
	}
	sc := scene.RadarScene{OK: true, TruthState: scene.TruthOK}
	for _, ft := range tracks {
		pt := scene.RadarPoint{
			ID:         ft.FusedID,
			Pos:        geom.Vec3{X: ft.Pos.X, Y: ft.Pos.Y},
			Trust:      ft.Trust,
			Flags:      append([]string(nil), ft.Flags...),
			Class:      ft.Class,
			LastUpdate: ft.LastUpdate,
		}
		if ft.Vel != nil {
			pt.Vel = *ft.Vel
			pt.HasVel = true
		}
		sc.Points = append(sc.Points, pt)
	}
	return sc
}

func (p *Pipeline) tick(sc scene.RadarScene, tracks fusion.FusedTrackSet, start time.Time) (TickResult, error) {
	p.frame++

	// Trail bookkeeping. Extend is a no-op on a not-ok scene, so a
	// data gap never manufactures trail history.
	p.trails.Extend(sc, start, p.trailMaxAge)
	trails := p.trails.GetAll()
	if sc.OK {
		sc.Trails = trails
	}

	plan, nextDeg := p.policyEng.BuildPlan(policy.PlanInput{
		Zoom:              p.vs.Zoom,
		ManualClutterLock: p.vs.ManualClutterLock,
		TargetsCount:      len(sc.Points),
		FrameTimeMs:       p.lastFrameMs,
		BackendName:       p.backend.Name(),
		BackendDegraded:   p.capDegraded,
	}, p.degState, start)
	p.degState = nextDeg

	sits := p.sitEng.Evaluate(sc, trails, situation.FrameStats{
		DegradationLevel: plan.Level,
		FrameTimeMs:      p.lastFrameMs,
	}, start)
	p.vs = view.AutoAlertFocus(p.vs, sits)

	out, err := p.render(sc, plan)
	if err != nil {
		return TickResult{}, err
	}

	elapsed := p.clock.Since(start)
	ms := float64(elapsed) / float64(time.Millisecond)
	p.lastFrameMs = ms
	p.policyEng.RecordFrameTime(ms)
	out.Stats.Duration = elapsed

	p.sink.Emit(telemetry.Event{
		Subsystem:  "pipeline",
		EventType:  "render_tick",
		TruthState: string(sc.TruthState),
		Reason:     sc.Reason,
		Payload: map[string]interface{}{
			"session":       p.sessionID,
			"frame":         p.frame,
			"backend":       out.Backend,
			"fallback":      out.UsedRuntimeFallback,
			"points":        len(sc.Points),
			"situations":    len(sits),
			"level":         plan.Level,
			"lod":           plan.LOD,
			"frame_ms":      ms,
			"cells_written": out.Stats.CellsWritten,
		},
		TS: start,
	})

	return TickResult{
		Scene:      sc,
		Tracks:     tracks,
		Plan:       plan,
		Situations: sits,
		View:       p.vs,
		Output:     out,
		FrameMs:    ms,
	}, nil
}

// render runs the active backend with exactly one fallback hop: a
// failing bitmap backend demotes the session to Unicode and latches
// the capability flag; a Unicode failure is fatal.
func (p *Pipeline) render(sc scene.RadarScene, plan policy.Plan) (render.RenderOutput, error) {
	out, err := p.backend.Render(sc, p.vs, plan)
	if err == nil {
		return out, nil
	}
	if p.backend.Name() == p.baseline.Name() {
		return render.RenderOutput{}, fmt.Errorf("pipeline: baseline render failed: %w", err)
	}

	telemetry.Opsf("pipeline: backend %s failed, falling back to unicode: %v", p.backend.Name(), err)
	p.sink.Emit(telemetry.Event{
		Subsystem:  "pipeline",
		EventType:  "render_fallback",
		TruthState: string(scene.TruthFallback),
		Reason:     err.Error(),
		Payload: map[string]interface{}{
			"session": p.sessionID,
			"from":    p.backend.Name(),
			"to":      p.baseline.Name(),
		},
		TS: p.clock.Now(),
	})
	p.capDegraded = true
	p.backend = p.baseline // latch; LOW_CAPABILITY_BACKEND needs the baseline name

	out, err = p.baseline.Render(sc, p.vs, plan)
	if err != nil {
		return render.RenderOutput{}, fmt.Errorf("pipeline: baseline render failed after fallback: %w", err)
	}
	out.UsedRuntimeFallback = true
	out.Lines = append([]string{render.FallbackMarker}, out.Lines...)
	return out, nil
}
