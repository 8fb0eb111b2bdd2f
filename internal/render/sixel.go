package render

import (
	"bytes"
	"fmt"

	"github.com/mattn/go-sixel"

	"github.com/driftline/sitscope/internal/policy"
	"github.com/driftline/sitscope/internal/scene"
	"github.com/driftline/sitscope/internal/view"
)

// Sixel renders scenes as DEC SIXEL graphics.
type Sixel struct {
	baseW, baseH int
}

// NewSixel builds the SIXEL backend with a base raster size in pixels.
func NewSixel(baseW, baseH int) *Sixel {
	if baseW <= 0 {
		baseW = 640
	}
	if baseH <= 0 {
		baseH = 400
	}
	return &Sixel{baseW: baseW, baseH: baseH}
}

func (s *Sixel) Name() string { return "sixel" }

func (s *Sixel) Supported(ti TerminalInfo) bool { return SixelSupported(ti) }

func (s *Sixel) Render(sc scene.RadarScene, vs view.RadarViewState, plan policy.Plan) (RenderOutput, error) {
	out := RenderOutput{Backend: s.Name()}

	if !sc.OK {
		out.Lines = []string{sceneMessage(sc)}
		return out, nil
	}

	img, stats := rasterize(sc, vs, plan, s.baseW, s.baseH)
	var buf bytes.Buffer
	if err := sixel.NewEncoder(&buf).Encode(img); err != nil {
		return RenderOutput{}, fmt.Errorf("sixel: encode frame: %w", err)
	}

	out.Lines = []string{buf.String()}
	out.Stats = stats
	return out, nil
}
