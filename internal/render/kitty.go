package render

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"

	"github.com/driftline/sitscope/internal/policy"
	"github.com/driftline/sitscope/internal/scene"
	"github.com/driftline/sitscope/internal/view"
)

// kittyChunk is the payload size per escape sequence; the protocol caps
// chunks at 4096 bytes of base64.
const kittyChunk = 4096

// Kitty renders scenes with the Kitty terminal graphics protocol
// (PNG transmitted inline as chunked base64 escape sequences).
type Kitty struct {
	baseW, baseH int
}

// NewKitty builds the Kitty backend with a base raster size in pixels.
func NewKitty(baseW, baseH int) *Kitty {
	if baseW <= 0 {
		baseW = 640
	}
	if baseH <= 0 {
		baseH = 400
	}
	return &Kitty{baseW: baseW, baseH: baseH}
}

func (k *Kitty) Name() string { return "kitty" }

func (k *Kitty) Supported(ti TerminalInfo) bool { return KittySupported(ti) }

func (k *Kitty) Render(sc scene.RadarScene, vs view.RadarViewState, plan policy.Plan) (RenderOutput, error) {
	out := RenderOutput{Backend: k.Name()}

	if !sc.OK {
		out.Lines = []string{sceneMessage(sc)}
		return out, nil
	}

	img, stats := rasterize(sc, vs, plan, k.baseW, k.baseH)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return RenderOutput{}, fmt.Errorf("kitty: encode frame: %w", err)
	}

	payload := base64.StdEncoding.EncodeToString(buf.Bytes())
	out.Lines = kittyEscape(payload)
	out.Stats = stats
	return out, nil
}

// kittyEscape splits a base64 payload into protocol chunks. The first
// chunk carries the transmit-and-display control data (f=100 for PNG);
// m=1 marks continuation, m=0 the final chunk.
func kittyEscape(payload string) []string {
	var lines []string
	first := true
	for len(payload) > 0 {
		n := kittyChunk
		if n > len(payload) {
			n = len(payload)
		}
		chunk := payload[:n]
		payload = payload[n:]

		m := 1
		if len(payload) == 0 {
			m = 0
		}
		if first {
			lines = append(lines, fmt.Sprintf("\x1b_Ga=T,f=100,m=%d;%s\x1b\\", m, chunk))
			first = false
		} else {
			lines = append(lines, fmt.Sprintf("\x1b_Gm=%d;%s\x1b\\", m, chunk))
		}
	}
	if len(lines) == 0 {
		lines = []string{"\x1b_Ga=T,f=100,m=0;\x1b\\"}
	}
	return lines
}
