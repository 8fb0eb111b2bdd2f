// Package situation derives threat and anomaly assessments from fused
// radar scenes. Each detected condition carries its own confirm, active,
// lost and resolved lifecycle so single-frame noise never raises or
// clears an alert.
package situation

import (
	"sort"
	"time"
)

// Situation types.
const (
	TypeCPARisk       = "CPA_RISK"
	TypeClosingFast   = "CLOSING_FAST"
	TypeUnknownNearby = "UNKNOWN_NEARBY"
)

// Severities, in ascending order of urgency.
const (
	SeverityInfo     = "INFO"
	SeverityWarn     = "WARN"
	SeverityCritical = "CRITICAL"
)

// Lifecycle states.
const (
	StatusActive   = "ACTIVE"
	StatusLost     = "LOST"
	StatusResolved = "RESOLVED"
)

// Situation is one detected condition tied to one or more fused tracks.
type Situation struct {
	ID           string             `json:"id"`
	Type         string             `json:"type"`
	Severity     string             `json:"severity"`
	Status       string             `json:"status"`
	Reason       string             `json:"reason"`
	TrackIDs     []string           `json:"track_ids"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
	CreatedTS    time.Time          `json:"created_ts"`
	LastUpdateTS time.Time          `json:"last_update_ts"`
}

// SameState reports whether the observable state of two situations is
// identical. Timestamps are excluded; an update event fires only when
// severity, status, reason, track membership or a metric actually
// changed, never on every frame a situation persists.
func (s Situation) SameState(other Situation) bool {
	if s.ID != other.ID || s.Type != other.Type {
		return false
	}
	if s.Severity != other.Severity || s.Status != other.Status || s.Reason != other.Reason {
		return false
	}
	if len(s.TrackIDs) != len(other.TrackIDs) {
		return false
	}
	for i := range s.TrackIDs {
		if s.TrackIDs[i] != other.TrackIDs[i] {
			return false
		}
	}
	if len(s.Metrics) != len(other.Metrics) {
		return false
	}
	for k, v := range s.Metrics {
		ov, ok := other.Metrics[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

func (s Situation) clone() Situation {
	out := s
	out.TrackIDs = append([]string(nil), s.TrackIDs...)
	if s.Metrics != nil {
		out.Metrics = make(map[string]float64, len(s.Metrics))
		for k, v := range s.Metrics {
			out.Metrics[k] = v
		}
	}
	return out
}

// Config holds the detection thresholds and lifecycle timing for the
// analysis engine.
type Config struct {
	// CPAWarnT is the time-to-CPA below which a closing contact
	// becomes a WARN situation.
	CPAWarnT time.Duration
	// CPACritT and CPACritDist must both be crossed for CRITICAL.
	CPACritT    time.Duration
	CPACritDist float64
	// ClosingSpeedThreshold is the radial speed, in m/s, above which a
	// contact qualifies as CLOSING_FAST.
	ClosingSpeedThreshold float64
	// NearDist and NearRecent bound the UNKNOWN_NEARBY detector.
	NearDist   float64
	NearRecent time.Duration
	// ConfirmFrames is the number of consecutive detections required
	// before a pending situation becomes ACTIVE. The same count sets
	// how many trail samples must show strictly decreasing distance
	// for CLOSING_FAST.
	ConfirmFrames int
	// LostContactWindow is how long an ACTIVE situation may go
	// undetected before it transitions to LOST.
	LostContactWindow time.Duration
	// AutoResolveAfterLost is how long a LOST situation lingers before
	// it is RESOLVED and removed.
	AutoResolveAfterLost time.Duration
	// Cooldown suppresses re-creation of a resolved situation id.
	Cooldown time.Duration
}

// DefaultConfig returns conservative thresholds suitable for a slow
// surface vehicle.
func DefaultConfig() Config {
	return Config{
		CPAWarnT:              30 * time.Second,
		CPACritT:              10 * time.Second,
		CPACritDist:           100,
		ClosingSpeedThreshold: 8,
		NearDist:              75,
		NearRecent:            5 * time.Second,
		ConfirmFrames:         3,
		LostContactWindow:     4 * time.Second,
		AutoResolveAfterLost:  10 * time.Second,
		Cooldown:              15 * time.Second,
	}
}

var severityRank = map[string]int{
	SeverityCritical: 3,
	SeverityWarn:     2,
	SeverityInfo:     1,
}

var statusRank = map[string]int{
	StatusActive:   3,
	StatusLost:     2,
	StatusResolved: 1,
}

// RankAlerts sorts situations for display: highest severity first, then
// most-live status, then id for a stable order.
func RankAlerts(sits []Situation) {
	sort.SliceStable(sits, func(i, j int) bool {
		si, sj := sits[i], sits[j]
		if severityRank[si.Severity] != severityRank[sj.Severity] {
			return severityRank[si.Severity] > severityRank[sj.Severity]
		}
		if statusRank[si.Status] != statusRank[sj.Status] {
			return statusRank[si.Status] > statusRank[sj.Status]
		}
		return si.ID < sj.ID
	})
}

// TopAlert returns the highest-ranked non-resolved situation, or false
// when none is open.
func TopAlert(sits []Situation) (Situation, bool) {
	ranked := make([]Situation, len(sits))
	copy(ranked, sits)
	RankAlerts(ranked)
	for _, s := range ranked {
		if s.Status != StatusResolved {
			return s, true
		}
	}
	return Situation{}, false
}
