// Package fusion associates per-source tracks across sensors, fuses them
// into trust-weighted target estimates, and maintains stable track identity
// across frames through a confirm/cooldown state machine.
//
// Everything here is deterministic: identical observations applied to an
// identical prior state store always produce an identical fused track set.
// That property is load-bearing for replay and for the property tests.
package fusion

import (
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"

	"github.com/driftline/sitscope/internal/geom"
	"github.com/driftline/sitscope/internal/track"
)

// Config holds the fusion engine tuning. Values are supplied fully formed
// by the embedding program; the engine never reads ambient state.
type Config struct {
	GateDistM     float64       // position gate for same-target association (metres)
	GateVelMps    float64       // velocity gate when both sides report velocity (m/s)
	MinSupport    int           // contributors required for full-support fusion
	MaxAge        time.Duration // staleness cut for contributors and coasting tracks
	ConflictDistM float64       // contributor spread above which CONFLICT is flagged
	ConfirmFrames int           // consecutive frames before a new identity is confirmed
	Cooldown      time.Duration // re-creation suppression window after track loss
}

// DefaultConfig returns the tuning used by the demo console.
func DefaultConfig() Config {
	return Config{
		GateDistM:     50,
		GateVelMps:    20,
		MinSupport:    2,
		MaxAge:        3 * time.Second,
		ConflictDistM: 120,
		ConfirmFrames: 3,
		Cooldown:      5 * time.Second,
	}
}

// Contributor is one source's vote inside a cluster.
type Contributor struct {
	SourceID   string
	TrackID    string
	Pos        geom.Vec2
	Vel        *geom.Vec2
	Trust      float64
	LastUpdate time.Time
	Metadata   map[string]string
}

// Key returns the "source:track" identity of the contributor.
func (c Contributor) Key() string { return c.SourceID + ":" + c.TrackID }

func contributorFromSource(st track.SourceTrack) Contributor {
	return Contributor{
		SourceID:   st.SourceID,
		TrackID:    st.TrackID,
		Pos:        st.Pos,
		Vel:        st.Vel,
		Trust:      st.Trust,
		LastUpdate: st.LastUpdate,
		Metadata:   st.Metadata,
	}
}

// Cluster is an association group of contributors passing the spatial and
// velocity gates relative to its seed (the first, highest-trust entry).
type Cluster struct {
	Contributors []Contributor
	SupportOK    bool
	SpreadPos    float64 // max pairwise contributor distance
}

// Keys returns the sorted contributor keys of the cluster.
func (c Cluster) Keys() []string {
	keys := make([]string, 0, len(c.Contributors))
	for _, ctr := range c.Contributors {
		keys = append(keys, ctr.Key())
	}
	sort.Strings(keys)
	return keys
}

// Signature returns the deterministic identity of the association group:
// the sorted contributor keys joined by "+".
func (c Cluster) Signature() string {
	return strings.Join(c.Keys(), "+")
}

// Track flags. Mirrored in the scene layer for display.
const (
	FlagLowSupport = "LOW_SUPPORT"
	FlagConflict   = "CONFLICT"
)

// FusedTrack is the merged, trust-weighted target estimate.
type FusedTrack struct {
	FusedID      string
	Pos          geom.Vec2
	Vel          *geom.Vec2
	Trust        float64
	Flags        []string
	Contributors []Contributor // snapshot of the association at fuse time
	// Class is the identity label from the lead contributor's metadata;
	// empty means unidentified.
	Class      string
	LastUpdate time.Time
	signature  string
}

// Signature returns the contributor-key signature the track was fused from.
func (f FusedTrack) Signature() string { return f.signature }

// HasFlag reports whether the track carries the named flag.
func (f FusedTrack) HasFlag(flag string) bool {
	for _, fl := range f.Flags {
		if fl == flag {
			return true
		}
	}
	return false
}

// FusedTrackSet is the per-frame fused output, sorted by fused ID.
type FusedTrackSet []FusedTrack

// hashID derives the stable fused identity from a cluster signature.
func hashID(signature string) string {
	h := fnv.New64a()
	h.Write([]byte(signature))
	return fmt.Sprintf("fx-%016x", h.Sum64())
}
