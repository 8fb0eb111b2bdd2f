package view

import "github.com/driftline/sitscope/internal/geom"

// Input is one discrete operator action. The embedding program owns the
// mapping from key presses to Inputs; the controller only maps Inputs to
// state transitions.
type Input string

const (
	InputZoomIn  Input = "zoom_in"
	InputZoomOut Input = "zoom_out"

	InputPanLeft  Input = "pan_left"
	InputPanRight Input = "pan_right"
	InputPanUp    Input = "pan_up"
	InputPanDown  Input = "pan_down"

	InputCycleMode Input = "cycle_mode"
	InputYawLeft   Input = "yaw_left"
	InputYawRight  Input = "yaw_right"
	InputPitchUp   Input = "pitch_up"
	InputPitchDown Input = "pitch_down"

	InputToggleVectors     Input = "toggle_vectors"
	InputToggleLabels      Input = "toggle_labels"
	InputToggleTrails      Input = "toggle_trails"
	InputToggleClutterLock Input = "toggle_clutter_lock"

	InputClearAlertFocus Input = "clear_alert_focus"
	InputResetView       Input = "reset_view"
)

var modeOrder = []geom.ViewMode{geom.ViewTop, geom.ViewSide, geom.ViewFront, geom.ViewIso}

func nextMode(m geom.ViewMode) geom.ViewMode {
	for i, cur := range modeOrder {
		if cur == m {
			return modeOrder[(i+1)%len(modeOrder)]
		}
	}
	return geom.ViewTop
}

// panStep is the world distance one pan input moves the centre. It scales
// with the visible extent so panning feels uniform at any zoom.
func panStep(vs RadarViewState) float64 {
	r := vs.RangeM
	if r <= 0 {
		r = 500
	}
	z := vs.Zoom
	if z <= 0 {
		z = 1
	}
	return r / z * panFraction
}

// Apply maps one input to a new view state. Unknown inputs return the
// state unchanged; the controller never errors.
func Apply(vs RadarViewState, in Input) RadarViewState {
	switch in {
	case InputZoomIn:
		return vs.WithZoom(vs.Zoom * zoomStep)
	case InputZoomOut:
		return vs.WithZoom(vs.Zoom / zoomStep)

	case InputPanLeft:
		return vs.WithCenter(geom.Vec2{X: vs.Center.X - panStep(vs), Y: vs.Center.Y})
	case InputPanRight:
		return vs.WithCenter(geom.Vec2{X: vs.Center.X + panStep(vs), Y: vs.Center.Y})
	case InputPanUp:
		return vs.WithCenter(geom.Vec2{X: vs.Center.X, Y: vs.Center.Y + panStep(vs)})
	case InputPanDown:
		return vs.WithCenter(geom.Vec2{X: vs.Center.X, Y: vs.Center.Y - panStep(vs)})

	case InputCycleMode:
		return vs.WithMode(nextMode(vs.Mode))
	case InputYawLeft:
		vs.YawRad -= yawStep
		return vs
	case InputYawRight:
		vs.YawRad += yawStep
		return vs
	case InputPitchUp:
		vs.PitchRad += pitchStep
		if vs.PitchRad > maxPitch {
			vs.PitchRad = maxPitch
		}
		return vs
	case InputPitchDown:
		vs.PitchRad -= pitchStep
		if vs.PitchRad < minPitch {
			vs.PitchRad = minPitch
		}
		return vs

	case InputToggleVectors:
		vs.ShowVectors = !vs.ShowVectors
		return vs
	case InputToggleLabels:
		vs.ShowLabels = !vs.ShowLabels
		return vs
	case InputToggleTrails:
		vs.ShowTrails = !vs.ShowTrails
		return vs
	case InputToggleClutterLock:
		return vs.WithClutterLock(!vs.ManualClutterLock)

	case InputClearAlertFocus:
		return vs.WithAlertFocus("")
	case InputResetView:
		next := Default()
		next.ShowVectors = vs.ShowVectors
		next.ShowLabels = vs.ShowLabels
		next.ShowTrails = vs.ShowTrails
		return next
	}
	return vs
}
