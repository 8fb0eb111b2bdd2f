package situation

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/driftline/sitscope/internal/geom"
	"github.com/driftline/sitscope/internal/scene"
	"github.com/driftline/sitscope/internal/telemetry"
)

// Engine evaluates fused scenes frame by frame and maintains the
// situation lifecycle registry. One engine instance belongs to one
// pipeline; it is not safe for concurrent use.
type Engine struct {
	cfg  Config
	sink telemetry.Sink

	frame     int64
	lastStats FrameStats
	pending   map[string]*pendingSit
	active    map[string]*activeSit
	cooldown  map[string]time.Time
}

type pendingSit struct {
	hits      int
	lastFrame int64
}

type activeSit struct {
	sit         Situation
	lastContact time.Time
	lostSince   time.Time
}

func NewEngine(cfg Config, sink telemetry.Sink) *Engine {
	if sink == nil {
		sink = telemetry.Discard
	}
	return &Engine{
		cfg:      cfg,
		sink:     sink,
		pending:  map[string]*pendingSit{},
		active:   map[string]*activeSit{},
		cooldown: map[string]time.Time{},
	}
}

// ActiveCount reports how many situations are currently ACTIVE or LOST.
func (e *Engine) ActiveCount() int { return len(e.active) }

// closingSpeed returns the rate at which a contact approaches the
// origin, in m/s. Positive means closing.
func closingSpeed(pos geom.Vec2, vel geom.Vec2) float64 {
	d := pos.Norm()
	if d == 0 {
		return 0
	}
	return -pos.Dot(vel) / d
}

// detect produces this frame's candidate situations from an ok scene.
// Candidates are returned sorted by id so lifecycle bookkeeping is
// deterministic.
func (e *Engine) detect(sc scene.RadarScene, trails map[string][]scene.RadarPoint, now time.Time) []Situation {
	var out []Situation
	for _, p := range sc.Points {
		pos := p.Pos.XY()
		dist := pos.Norm()

		if p.HasVel {
			closing := closingSpeed(pos, p.Vel)
			if closing > 0 && dist > 0 {
				ttc := dist / closing
				if ttc < e.cfg.CPAWarnT.Seconds() {
					sev := SeverityWarn
					if ttc < e.cfg.CPACritT.Seconds() && dist < e.cfg.CPACritDist {
						sev = SeverityCritical
					}
					out = append(out, Situation{
						ID:       TypeCPARisk + ":" + p.ID,
						Type:     TypeCPARisk,
						Severity: sev,
						Reason:   fmt.Sprintf("time to CPA %.1fs at %.0fm", ttc, dist),
						TrackIDs: []string{p.ID},
						Metrics: map[string]float64{
							"distance_m":    round2(dist),
							"closing_mps":   round2(closing),
							"time_to_cpa_s": round2(ttc),
						},
					})
				}
			}
			if closing > e.cfg.ClosingSpeedThreshold && trailClosing(trails[p.ID], e.cfg.ConfirmFrames) {
				out = append(out, Situation{
					ID:       TypeClosingFast + ":" + p.ID,
					Type:     TypeClosingFast,
					Severity: SeverityWarn,
					Reason:   fmt.Sprintf("closing at %.1f m/s", closing),
					TrackIDs: []string{p.ID},
					Metrics: map[string]float64{
						"distance_m":  round2(dist),
						"closing_mps": round2(closing),
					},
				})
			}
		}

		if p.Class == "" && dist < e.cfg.NearDist && now.Sub(p.LastUpdate) <= e.cfg.NearRecent {
			out = append(out, Situation{
				ID:       TypeUnknownNearby + ":" + p.ID,
				Type:     TypeUnknownNearby,
				Severity: SeverityInfo,
				Reason:   fmt.Sprintf("unidentified contact at %.0fm", dist),
				TrackIDs: []string{p.ID},
				Metrics: map[string]float64{
					"distance_m": round2(dist),
				},
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// trailClosing reports whether the last n trail samples show strictly
// decreasing distance to the origin. Fewer than n samples never
// qualifies.
func trailClosing(trail []scene.RadarPoint, n int) bool {
	if n < 2 {
		n = 2
	}
	if len(trail) < n {
		return false
	}
	tail := trail[len(trail)-n:]
	for i := 1; i < len(tail); i++ {
		if tail[i].Pos.XY().Norm() >= tail[i-1].Pos.XY().Norm() {
			return false
		}
	}
	return true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// FrameStats carries render-plan context into the evaluation; it rides
// along in lifecycle telemetry so an exported event log can correlate
// alerts with load.
type FrameStats struct {
	DegradationLevel int
	FrameTimeMs      float64
}

// Evaluate processes one frame. A not-ok scene contributes no new
// candidates but still ages existing situations toward LOST and
// RESOLVED; this is the honesty rule applied to analysis. The returned
// slice holds every ACTIVE and LOST situation, ranked for display.
func (e *Engine) Evaluate(sc scene.RadarScene, trails map[string][]scene.RadarPoint, stats FrameStats, now time.Time) []Situation {
	e.frame++
	e.lastStats = stats

	var cands []Situation
	if sc.OK {
		cands = e.detect(sc, trails, now)
	}

	seen := map[string]bool{}
	for _, cand := range cands {
		seen[cand.ID] = true

		if entry, ok := e.active[cand.ID]; ok {
			entry.lastContact = now
			next := cand.clone()
			next.Status = StatusActive
			next.CreatedTS = entry.sit.CreatedTS
			next.LastUpdateTS = entry.sit.LastUpdateTS
			if !next.SameState(entry.sit) {
				next.LastUpdateTS = now
				entry.sit = next
				entry.lostSince = time.Time{}
				e.emit("situation_updated", entry.sit, sc)
			} else {
				entry.sit = next
			}
			continue
		}

		if lost, ok := e.cooldown[cand.ID]; ok && now.Sub(lost) < e.cfg.Cooldown {
			continue
		}

		p := e.pending[cand.ID]
		if p == nil || p.lastFrame != e.frame-1 {
			p = &pendingSit{}
			e.pending[cand.ID] = p
		}
		p.hits++
		p.lastFrame = e.frame
		if p.hits < e.cfg.ConfirmFrames {
			continue
		}
		delete(e.pending, cand.ID)
		sit := cand.clone()
		sit.Status = StatusActive
		sit.CreatedTS = now
		sit.LastUpdateTS = now
		e.active[cand.ID] = &activeSit{sit: sit, lastContact: now}
		e.emit("situation_created", sit, sc)
	}

	// Age undetected situations.
	ids := make([]string, 0, len(e.active))
	for id := range e.active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		entry := e.active[id]
		if seen[id] {
			continue
		}
		switch entry.sit.Status {
		case StatusActive:
			if now.Sub(entry.lastContact) >= e.cfg.LostContactWindow {
				entry.sit.Status = StatusLost
				entry.sit.LastUpdateTS = now
				entry.lostSince = now
				e.emit("situation_lost_contact", entry.sit, sc)
			}
		case StatusLost:
			if now.Sub(entry.lostSince) >= e.cfg.AutoResolveAfterLost {
				entry.sit.Status = StatusResolved
				entry.sit.LastUpdateTS = now
				e.emit("situation_resolved", entry.sit, sc)
				delete(e.active, id)
				e.cooldown[id] = now
			}
		}
	}

	// Drop pending streaks that broke this frame and expired cooldowns.
	for id, p := range e.pending {
		if p.lastFrame != e.frame {
			delete(e.pending, id)
		}
	}
	for id, lost := range e.cooldown {
		if now.Sub(lost) >= e.cfg.Cooldown {
			delete(e.cooldown, id)
		}
	}

	out := make([]Situation, 0, len(e.active))
	for _, entry := range e.active {
		out = append(out, entry.sit.clone())
	}
	RankAlerts(out)
	return out
}

func (e *Engine) emit(eventType string, sit Situation, sc scene.RadarScene) {
	telemetry.Diagf("situation %s: %s [%s/%s]", eventType, sit.ID, sit.Severity, sit.Status)
	e.sink.Emit(telemetry.Event{
		Subsystem:  "situation",
		EventType:  eventType,
		TruthState: string(sc.TruthState),
		Reason:     sit.Reason,
		Payload: map[string]interface{}{
			"id":                sit.ID,
			"type":              sit.Type,
			"severity":          sit.Severity,
			"status":            sit.Status,
			"track_ids":         append([]string(nil), sit.TrackIDs...),
			"metrics":           sit.Metrics,
			"degradation_level": e.lastStats.DegradationLevel,
		},
		TS: sit.LastUpdateTS,
	})
}
