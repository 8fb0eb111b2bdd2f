package policy

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/driftline/sitscope/internal/telemetry"
)

// Engine evaluates the render policy. It keeps a rolling window of measured
// frame times for telemetry; the authoritative cross-frame state is the
// DegradationState value threaded through BuildPlan by the caller.
type Engine struct {
	policy Policy
	sink   telemetry.Sink

	frameTimes []float64
}

// frameTimeWindow bounds the rolling stats window (~10 s at 12 fps).
const frameTimeWindow = 120

// NewEngine creates a policy engine. A nil sink disables telemetry.
func NewEngine(p Policy, sink telemetry.Sink) *Engine {
	if sink == nil {
		sink = telemetry.Discard
	}
	return &Engine{policy: p, sink: sink}
}

// Policy returns the engine's resolved policy.
func (e *Engine) Policy() Policy { return e.policy }

// BuildPlan computes the render plan for one frame and the successor
// degradation state. Escalation needs DegradeConfirmFrames consecutive
// violating frames and an elapsed cooldown; de-escalation needs
// RecoveryConfirmFrames clean frames and the same cooldown. The asymmetric
// hysteresis is what keeps the level from oscillating under noisy load.
func (e *Engine) BuildPlan(in PlanInput, state DegradationState, now time.Time) (Plan, DegradationState) {
	var triggers []string
	if e.policy.MaxTargets > 0 && in.TargetsCount > e.policy.MaxTargets {
		triggers = append(triggers, TriggerTargetOverload)
	}
	if e.policy.FrameBudgetMs > 0 && in.FrameTimeMs > e.policy.FrameBudgetMs {
		triggers = append(triggers, TriggerFrameBudgetExceeded)
	}
	if in.BackendDegraded && in.BackendName == "unicode" {
		triggers = append(triggers, TriggerLowCapabilityBackend)
	}
	if in.ManualClutterLock {
		triggers = append(triggers, TriggerManualClutterLock)
	}

	next := state
	if len(triggers) > 0 {
		next.ConsecViolations = state.ConsecViolations + 1
		next.ConsecOK = 0
	} else {
		next.ConsecOK = state.ConsecOK + 1
		next.ConsecViolations = 0
	}

	cooldownOver := next.LastChange.IsZero() ||
		now.Sub(next.LastChange) >= e.policy.DegradeCooldown

	switch {
	case len(triggers) > 0 &&
		next.ConsecViolations >= e.policy.DegradeConfirmFrames &&
		cooldownOver && next.Level < e.policy.MaxLevel():
		next.Level++
		next.LastChange = now
		next.ConsecViolations = 0
		e.emitLevelChange(next.Level, triggers, now)
	case len(triggers) == 0 &&
		next.ConsecOK >= e.policy.RecoveryConfirmFrames &&
		cooldownOver && next.Level > 0:
		next.Level--
		next.LastChange = now
		next.ConsecOK = 0
		e.emitLevelChange(next.Level, nil, now)
	}

	lod := e.policy.LODLevel(in.Zoom)
	plan := Plan{
		Level:       next.Level,
		LOD:         lod,
		ShowVectors: lod >= 1 && next.Level < 3,
		ShowLabels:  lod >= 2 && next.Level < 1,
		ShowTrails:  next.Level < 2,
		FullDetail:  lod >= 3 && next.Level == 0,
		BitmapScale: e.bitmapScale(next.Level),
		Triggers:    triggers,
	}
	return plan, next
}

func (e *Engine) bitmapScale(level int) float64 {
	if len(e.policy.BitmapScales) == 0 {
		return 1
	}
	if level >= len(e.policy.BitmapScales) {
		level = len(e.policy.BitmapScales) - 1
	}
	return e.policy.BitmapScales[level]
}

func (e *Engine) emitLevelChange(level int, triggers []string, now time.Time) {
	payload := map[string]interface{}{"level": level}
	if len(triggers) > 0 {
		payload["triggers"] = append([]string(nil), triggers...)
	}
	e.sink.Emit(telemetry.Event{
		Subsystem: "policy",
		EventType: "degradation_level_changed",
		TS:        now,
		Payload:   payload,
	})
	telemetry.Diagf("[policy] degradation level -> %d (triggers: %v)", level, triggers)
}

// RecordFrameTime feeds one measured frame time (milliseconds) into the
// rolling stats window.
func (e *Engine) RecordFrameTime(ms float64) {
	e.frameTimes = append(e.frameTimes, ms)
	if len(e.frameTimes) > frameTimeWindow {
		e.frameTimes = e.frameTimes[len(e.frameTimes)-frameTimeWindow:]
	}
}

// FrameTimeStats summarises the rolling frame-time window.
type FrameTimeStats struct {
	Samples int
	MeanMs  float64
	P95Ms   float64
}

// FrameTimeStats returns mean and 95th percentile over the window.
func (e *Engine) FrameTimeStats() FrameTimeStats {
	n := len(e.frameTimes)
	if n == 0 {
		return FrameTimeStats{}
	}
	sorted := append([]float64(nil), e.frameTimes...)
	sort.Float64s(sorted)
	return FrameTimeStats{
		Samples: n,
		MeanMs:  stat.Mean(sorted, nil),
		P95Ms:   stat.Quantile(0.95, stat.Empirical, sorted, nil),
	}
}
