// Package view holds the operator-facing camera and overlay state. State
// values are immutable; every transition produces a replacement value so
// frame-to-frame view changes stay auditable and replayable.
package view

import (
	"math"

	"github.com/driftline/sitscope/internal/geom"
	"github.com/driftline/sitscope/internal/situation"
)

const (
	MinZoom = 0.1
	MaxZoom = 16.0

	zoomStep  = 1.25
	yawStep   = 15 * math.Pi / 180
	pitchStep = 5 * math.Pi / 180
	minPitch  = 10 * math.Pi / 180
	maxPitch  = 80 * math.Pi / 180

	// panFraction of the visible range moved per pan input.
	panFraction = 0.1
)

// RadarViewState is the complete user-controlled view configuration for
// one frame. The overlay booleans express operator preference; the render
// plan may still drop an overlay the operator asked for.
type RadarViewState struct {
	Mode     geom.ViewMode
	Center   geom.Vec2
	RangeM   float64
	Zoom     float64
	YawRad   float64
	PitchRad float64

	ShowVectors bool
	ShowLabels  bool
	ShowTrails  bool

	ManualClutterLock bool
	AlertFocusID      string
}

// Default returns the initial view: top-down, 500 m half-extent, all
// overlays enabled.
func Default() RadarViewState {
	return RadarViewState{
		Mode:        geom.ViewTop,
		RangeM:      500,
		Zoom:        1.0,
		PitchRad:    35 * math.Pi / 180,
		ShowVectors: true,
		ShowLabels:  true,
		ShowTrails:  true,
	}
}

// Camera builds the projection camera for this state.
func (vs RadarViewState) Camera() geom.Camera {
	return geom.Camera{
		Mode:     vs.Mode,
		Center:   vs.Center,
		RangeM:   vs.RangeM,
		Zoom:     vs.Zoom,
		YawRad:   vs.YawRad,
		PitchRad: vs.PitchRad,
	}
}

func clampZoom(z float64) float64 {
	if z < MinZoom {
		return MinZoom
	}
	if z > MaxZoom {
		return MaxZoom
	}
	return z
}

// WithZoom returns a copy with the zoom clamped to the legal range.
func (vs RadarViewState) WithZoom(z float64) RadarViewState {
	vs.Zoom = clampZoom(z)
	return vs
}

// WithMode returns a copy looking through a different projection.
func (vs RadarViewState) WithMode(m geom.ViewMode) RadarViewState {
	vs.Mode = m
	return vs
}

// WithCenter returns a copy panned to a new world centre.
func (vs RadarViewState) WithCenter(c geom.Vec2) RadarViewState {
	vs.Center = c
	return vs
}

// WithAlertFocus returns a copy with the alert cursor set; an empty id
// clears it.
func (vs RadarViewState) WithAlertFocus(id string) RadarViewState {
	vs.AlertFocusID = id
	return vs
}

// WithClutterLock returns a copy with the manual degradation lock set.
func (vs RadarViewState) WithClutterLock(on bool) RadarViewState {
	vs.ManualClutterLock = on
	return vs
}

// AutoAlertFocus moves the alert cursor to the top-ranked open situation,
// or clears it when none is open. It never steals focus the operator has
// placed on a situation that is still open.
func AutoAlertFocus(vs RadarViewState, sits []situation.Situation) RadarViewState {
	if vs.AlertFocusID != "" {
		for _, s := range sits {
			if s.ID == vs.AlertFocusID && s.Status != situation.StatusResolved {
				return vs
			}
		}
	}
	top, ok := situation.TopAlert(sits)
	if !ok {
		return vs.WithAlertFocus("")
	}
	return vs.WithAlertFocus(top.ID)
}
