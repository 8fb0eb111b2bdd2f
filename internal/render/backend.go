// Package render draws fused radar scenes onto terminal backends. The
// Unicode character backend is the mandatory baseline; bitmap backends
// (Kitty graphics, SIXEL) are optional and must refuse to run rather
// than degrade silently when the terminal cannot display them.
package render

import (
	"errors"
	"time"

	"github.com/driftline/sitscope/internal/policy"
	"github.com/driftline/sitscope/internal/scene"
	"github.com/driftline/sitscope/internal/view"
)

// ErrUnsupported is returned by Render when the backend cannot produce
// output on the current terminal. The pipeline treats it like any other
// render error: one fallback hop to Unicode.
var ErrUnsupported = errors.New("render: backend unsupported on this terminal")

// FallbackMarker is the first line of any output produced by the runtime
// fallback path, so an operator can tell a degraded frame from a normal
// one.
const FallbackMarker = "!! BACKEND FALLBACK: unicode !!"

// RenderStats counts what one frame actually drew. The pipeline feeds
// these into telemetry and the degradation controller's frame log.
type RenderStats struct {
	PointsDrawn  int           `json:"points_drawn"`
	VectorsDrawn int           `json:"vectors_drawn"`
	LabelsDrawn  int           `json:"labels_drawn"`
	TrailCells   int           `json:"trail_cells"`
	CellsWritten int           `json:"cells_written"`
	Clipped      int           `json:"clipped"`
	Duration     time.Duration `json:"duration_ns"`
}

// RenderOutput is one rendered frame.
type RenderOutput struct {
	Backend             string      `json:"backend"`
	Lines               []string    `json:"lines"`
	UsedRuntimeFallback bool        `json:"used_runtime_fallback"`
	Stats               RenderStats `json:"stats"`
}

// Backend renders scenes for one terminal graphics protocol.
// Supported must be conservative: under an ambiguous terminal it answers
// false and lets the pipeline fall back to Unicode, because a wrong yes
// fills the screen with escape garbage.
type Backend interface {
	Name() string
	Supported(ti TerminalInfo) bool
	Render(sc scene.RadarScene, vs view.RadarViewState, plan policy.Plan) (RenderOutput, error)
}
