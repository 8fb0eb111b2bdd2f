// Package policy decides what is safe and readable to draw under load. It
// maps zoom to level-of-detail tiers and runs the hysteretic degradation
// controller that trims overlays and bitmap resolution when the console
// falls behind.
package policy

import "time"

// Clutter trigger reasons reported in the render plan.
const (
	TriggerTargetOverload       = "TARGET_OVERLOAD"
	TriggerFrameBudgetExceeded  = "FRAME_BUDGET_EXCEEDED"
	TriggerLowCapabilityBackend = "LOW_CAPABILITY_BACKEND"
	TriggerManualClutterLock    = "MANUAL_CLUTTER_LOCK"
)

// Policy is the resolved render policy, supplied fully formed by the
// embedding program.
type Policy struct {
	// MaxTargets is the point count above which TARGET_OVERLOAD fires.
	MaxTargets int
	// FrameBudgetMs is the soft per-frame budget; measured frame time above
	// it fires FRAME_BUDGET_EXCEEDED.
	FrameBudgetMs float64
	// BitmapScales is the resolution ladder indexed by degradation level;
	// its length caps the maximum level.
	BitmapScales []float64
	// LODZoomTiers are the ascending zoom thresholds for tiers 1..3.
	LODZoomTiers [3]float64

	DegradeConfirmFrames  int
	RecoveryConfirmFrames int
	DegradeCooldown       time.Duration
}

// Default returns the policy used by the demo console.
func Default() Policy {
	return Policy{
		MaxTargets:            64,
		FrameBudgetMs:         33,
		BitmapScales:          []float64{1.0, 0.75, 0.5, 0.25},
		LODZoomTiers:          [3]float64{0.75, 1.5, 3.0},
		DegradeConfirmFrames:  3,
		RecoveryConfirmFrames: 5,
		DegradeCooldown:       500 * time.Millisecond,
	}
}

// MaxLevel returns the highest reachable degradation level.
func (p Policy) MaxLevel() int {
	if len(p.BitmapScales) == 0 {
		return 0
	}
	return len(p.BitmapScales) - 1
}

// LODLevel maps zoom to detail tiers 0–3: vectors are eligible from tier 1,
// labels from tier 2, full detail from tier 3.
func (p Policy) LODLevel(zoom float64) int {
	level := 0
	for _, threshold := range p.LODZoomTiers {
		if zoom >= threshold {
			level++
		}
	}
	return level
}

// DegradationState is the persistent controller state, owned by the render
// policy across frames. Transitions are pure: BuildPlan returns a new value.
type DegradationState struct {
	Level            int
	LastChange       time.Time
	ConsecViolations int
	ConsecOK         int
}

// PlanInput is the per-frame measurement set the plan is computed from.
type PlanInput struct {
	Zoom              float64
	ManualClutterLock bool
	TargetsCount      int
	FrameTimeMs       float64 // previous frame's measured time
	BackendName       string
	// BackendDegraded is set when the capability probe reports a limited
	// terminal; combined with the Unicode baseline it fires
	// LOW_CAPABILITY_BACKEND.
	BackendDegraded bool
}

// Plan is the per-frame render plan: a pure function of the policy, the
// prior DegradationState and the measured inputs.
type Plan struct {
	Level       int
	LOD         int
	ShowVectors bool
	ShowLabels  bool
	ShowTrails  bool
	FullDetail  bool
	BitmapScale float64
	Triggers    []string
}
