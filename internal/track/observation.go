// Package track normalises raw sensor observations into per-source track
// state. It is the validation boundary of the console: everything downstream
// may assume finite, identified, timestamped input.
package track

import (
	"time"

	"github.com/driftline/sitscope/internal/geom"
)

// Observation is one sensor's raw report of a contact at a timestamp.
// Created by external sensor adapters each tick and consumed once.
type Observation struct {
	SourceID string    `json:"source_id"`
	T        time.Time `json:"t"`
	TrackKey string    `json:"track_key"`
	// Pos is required; nil is rejected as MISSING_POSITION.
	Pos *geom.Vec2 `json:"pos"`
	// Vel is optional; nil means the source does not report velocity.
	Vel *geom.Vec2 `json:"vel,omitempty"`
	// Quality is the source's own confidence in [0,1]; values outside the
	// range are clamped on ingest.
	Quality float64 `json:"quality"`
	// ErrRadius is an optional 1-sigma position error estimate (metres).
	ErrRadius float64 `json:"err_radius,omitempty"`
	// Covariance is an optional row-major 2x2 position covariance.
	Covariance []float64 `json:"covariance,omitempty"`
	// Metadata carries free-form source annotations (e.g. "class").
	Metadata map[string]string `json:"metadata,omitempty"`
}

// SourceTrack is the normalised latest state for one (source, track_key)
// pair. Re-ingest replaces the whole record; there is no merging.
type SourceTrack struct {
	SourceID string
	TrackID  string
	Pos      geom.Vec2
	Vel      *geom.Vec2
	Quality  float64
	// Trust starts equal to Quality; the fusion engine adjusts it.
	Trust      float64
	LastUpdate time.Time
	ErrRadius  float64
	Metadata   map[string]string
}

// Key returns the canonical "source:track" identity used by fusion
// signatures and low-support fused IDs.
func (s SourceTrack) Key() string {
	return s.SourceID + ":" + s.TrackID
}

// Validation failure reasons.
const (
	ReasonMissingSourceID  = "MISSING_SOURCE_ID"
	ReasonMissingTrackKey  = "MISSING_TRACK_KEY"
	ReasonInvalidTimestamp = "INVALID_TIMESTAMP"
	ReasonMissingPosition  = "MISSING_POSITION"
	ReasonInvalidPosition  = "INVALID_POSITION"
	ReasonInvalidVelocity  = "INVALID_VELOCITY"
)

// Validate checks one observation. It returns false and a machine-readable
// reason when any required identifier is empty or any numeric field is
// non-finite. Validation never mutates the observation.
func Validate(o Observation) (bool, string) {
	if o.SourceID == "" {
		return false, ReasonMissingSourceID
	}
	if o.TrackKey == "" {
		return false, ReasonMissingTrackKey
	}
	if o.T.IsZero() {
		return false, ReasonInvalidTimestamp
	}
	if o.Pos == nil {
		return false, ReasonMissingPosition
	}
	if !o.Pos.IsFinite() || !geom.IsFinite(o.Quality) || !geom.IsFinite(o.ErrRadius) {
		return false, ReasonInvalidPosition
	}
	if o.Vel != nil && !o.Vel.IsFinite() {
		return false, ReasonInvalidVelocity
	}
	return true, ""
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// normalise maps a valid observation to its SourceTrack.
func normalise(o Observation) SourceTrack {
	q := clamp01(o.Quality)
	st := SourceTrack{
		SourceID:   o.SourceID,
		TrackID:    o.TrackKey,
		Pos:        *o.Pos,
		Quality:    q,
		Trust:      q,
		LastUpdate: o.T,
		ErrRadius:  o.ErrRadius,
		Metadata:   o.Metadata,
	}
	if o.Vel != nil {
		v := *o.Vel
		st.Vel = &v
	}
	return st
}
