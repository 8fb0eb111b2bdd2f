// Package scene defines the trusted target picture handed from fusion to
// the render and situation layers, together with the bounded trail history
// used for motion overlays.
package scene

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/driftline/sitscope/internal/geom"
)

// TruthState classifies the availability of the data behind a scene. It is
// never fabricated: a frame with no sensor input is NO_DATA, not an empty
// OK frame.
type TruthState string

const (
	TruthOK       TruthState = "OK"
	TruthNoData   TruthState = "NO_DATA"
	TruthFallback TruthState = "FALLBACK"
	TruthInvalid  TruthState = "INVALID"
)

// Track flags set by the fusion engine.
const (
	FlagLowSupport = "LOW_SUPPORT"
	FlagConflict   = "CONFLICT"
)

// RadarPoint is one displayable target in the fused picture.
type RadarPoint struct {
	ID     string
	Pos    geom.Vec3
	Vel    geom.Vec2
	HasVel bool
	Trust  float64
	Flags  []string
	// Class is the identity label carried through from sensor metadata;
	// empty means the contact is unidentified.
	Class string
	// LastUpdate is when the underlying fused track last saw a measurement.
	LastUpdate time.Time
}

// HasFlag reports whether the point carries the named fusion flag.
func (p RadarPoint) HasFlag(flag string) bool {
	for _, f := range p.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// RadarScene is the per-tick fused picture. Invariant: when OK is false,
// Points must be empty and no trail or situation state may be derived from
// the scene.
type RadarScene struct {
	OK         bool
	Reason     string
	TruthState TruthState
	IsFallback bool
	Points     []RadarPoint
	Trails     map[string][]RadarPoint
}

// NoData builds a truthful empty scene for a frame with no usable input.
func NoData(reason string) RadarScene {
	return RadarScene{OK: false, Reason: reason, TruthState: TruthNoData}
}

// Invalid builds a scene describing rejected input.
func Invalid(reason string) RadarScene {
	return RadarScene{OK: false, Reason: reason, TruthState: TruthInvalid}
}

// Signature returns a deterministic one-line digest of the scene used by
// replay comparisons and the recorder. Points are already ordered by the
// fusion engine; the signature preserves that order.
func (s RadarScene) Signature() string {
	if !s.OK {
		return fmt.Sprintf("!%s:%s", s.TruthState, s.Reason)
	}
	parts := make([]string, 0, len(s.Points))
	for _, p := range s.Points {
		parts = append(parts, fmt.Sprintf("%s@%.2f,%.2f~%.2f", p.ID, p.Pos.X, p.Pos.Y, p.Trust))
	}
	return strings.Join(parts, "|")
}

// TrailStore keeps a bounded recent-position history per track ID. It is
// owned by the pipeline; a not-ok scene never extends it.
type TrailStore struct {
	maxLen int
	trails map[string][]RadarPoint
}

// NewTrailStore creates a store keeping at most maxLen points per track.
func NewTrailStore(maxLen int) *TrailStore {
	if maxLen <= 0 {
		maxLen = 32
	}
	return &TrailStore{maxLen: maxLen, trails: make(map[string][]RadarPoint)}
}

// Extend appends the scene's points to their per-track trails and drops
// trails for tracks absent longer than maxAge. A not-ok scene is a no-op:
// trails must reflect only data that was really present.
func (t *TrailStore) Extend(s RadarScene, now time.Time, maxAge time.Duration) {
	if !s.OK {
		return
	}
	seen := make(map[string]bool, len(s.Points))
	for _, p := range s.Points {
		seen[p.ID] = true
		trail := append(t.trails[p.ID], p)
		if len(trail) > t.maxLen {
			trail = trail[len(trail)-t.maxLen:]
		}
		t.trails[p.ID] = trail
	}
	if maxAge <= 0 {
		return
	}
	for id, trail := range t.trails {
		if seen[id] {
			continue
		}
		last := trail[len(trail)-1]
		if now.Sub(last.LastUpdate) > maxAge {
			delete(t.trails, id)
		}
	}
}

// Get returns a copy of the trail for one track, oldest first.
func (t *TrailStore) Get(id string) []RadarPoint {
	trail := t.trails[id]
	if trail == nil {
		return nil
	}
	out := make([]RadarPoint, len(trail))
	copy(out, trail)
	return out
}

// GetAll returns a deep copy of every trail keyed by track ID.
func (t *TrailStore) GetAll() map[string][]RadarPoint {
	out := make(map[string][]RadarPoint, len(t.trails))
	for id, trail := range t.trails {
		cp := make([]RadarPoint, len(trail))
		copy(cp, trail)
		out[id] = cp
	}
	return out
}

// TrackIDs returns the tracked IDs in sorted order.
func (t *TrailStore) TrackIDs() []string {
	ids := make([]string, 0, len(t.trails))
	for id := range t.trails {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of tracks with a trail.
func (t *TrailStore) Len() int { return len(t.trails) }
