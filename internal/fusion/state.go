package fusion

import (
	"sort"
	"time"

	"github.com/driftline/sitscope/internal/telemetry"
	"github.com/driftline/sitscope/internal/track"
)

// StateStore holds the cross-frame fusion identity state. It is owned
// exclusively by one pipeline instance and mutated only through
// Engine.UpdateState. The two-stage confirm/cooldown machine exists to stop
// single-frame noise from creating or destroying target identities.
type StateStore struct {
	frame    int64
	active   map[string]*activeEntry  // fused ID -> live track
	pending  map[string]*pendingEntry // signature -> confirmation progress
	cooldown map[string]time.Time     // signature -> loss time
}

type activeEntry struct {
	track     FusedTrack
	signature string
	lastSeen  time.Time
}

type pendingEntry struct {
	hits      int
	lastFrame int64
	candidate FusedTrack
}

// NewStateStore creates an empty store.
func NewStateStore() *StateStore {
	return &StateStore{
		active:   make(map[string]*activeEntry),
		pending:  make(map[string]*pendingEntry),
		cooldown: make(map[string]time.Time),
	}
}

// Clone returns a deep copy, used by replay tooling and determinism tests.
func (s *StateStore) Clone() *StateStore {
	c := NewStateStore()
	c.frame = s.frame
	for id, e := range s.active {
		cp := *e
		c.active[id] = &cp
	}
	for sig, p := range s.pending {
		cp := *p
		c.pending[sig] = &cp
	}
	for sig, t := range s.cooldown {
		c.cooldown[sig] = t
	}
	return c
}

// ActiveCount returns the number of confirmed live tracks.
func (s *StateStore) ActiveCount() int { return len(s.active) }

// PendingCount returns the number of unconfirmed candidate signatures.
func (s *StateStore) PendingCount() int { return len(s.pending) }

// keyOverlap returns |a ∩ b| / max(|a|, |b|) over contributor keys.
func keyOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, k := range a {
		set[k] = true
	}
	shared := 0
	for _, k := range b {
		if set[k] {
			shared++
		}
	}
	max := len(a)
	if len(b) > max {
		max = len(b)
	}
	return float64(shared) / float64(max)
}

// UpdateState advances the identity machine one frame with the fused
// candidates for that frame. Matching actives keep their fused ID; new
// signatures must survive ConfirmFrames consecutive frames before becoming
// active, and are suppressed entirely within a post-loss cooldown window.
// Unmatched actives coast until MaxAge, then move to cooldown.
//
// The returned set contains only active tracks (including coasting ones),
// sorted by fused ID.
func (e *Engine) UpdateState(st *StateStore, cands []FusedTrack, now time.Time) FusedTrackSet {
	st.frame++

	// Stable iteration order over actives for deterministic matching.
	activeIDs := make([]string, 0, len(st.active))
	for id := range st.active {
		activeIDs = append(activeIDs, id)
	}
	sort.Strings(activeIDs)

	matched := make(map[string]bool, len(st.active))

	for _, cand := range cands {
		candKeys := splitSignature(cand.Signature())

		matchID := ""
		for _, id := range activeIDs {
			if matched[id] {
				continue
			}
			entry := st.active[id]
			if keyOverlap(candKeys, splitSignature(entry.signature)) >= 0.5 ||
				cand.Pos.Dist(entry.track.Pos) <= e.cfg.GateDistM {
				matchID = id
				break
			}
		}

		if matchID != "" {
			kept := cand
			kept.FusedID = matchID // identity continuity wins over the hash
			st.active[matchID] = &activeEntry{track: kept, signature: cand.Signature(), lastSeen: now}
			matched[matchID] = true
			continue
		}

		sig := cand.Signature()
		if lost, ok := st.cooldown[sig]; ok {
			if now.Sub(lost) < e.cfg.Cooldown {
				telemetry.Tracef("[fusion] suppressed %s (cooldown %v remaining)",
					sig, e.cfg.Cooldown-now.Sub(lost))
				continue
			}
			delete(st.cooldown, sig)
		}

		p := st.pending[sig]
		if p == nil || p.lastFrame != st.frame-1 {
			p = &pendingEntry{}
			st.pending[sig] = p
		}
		p.hits++
		p.lastFrame = st.frame
		p.candidate = cand

		if p.hits >= e.cfg.ConfirmFrames {
			delete(st.pending, sig)
			if _, exists := st.active[cand.FusedID]; !exists {
				st.active[cand.FusedID] = &activeEntry{track: cand, signature: sig, lastSeen: now}
				matched[cand.FusedID] = true
				e.sink.Emit(telemetry.Event{
					Subsystem: "fusion",
					EventType: "track_confirmed",
					TS:        now,
					Payload: map[string]interface{}{
						"fused_id":  cand.FusedID,
						"signature": sig,
						"trust":     cand.Trust,
					},
				})
				telemetry.Diagf("[fusion] confirmed track %s after %d frames", cand.FusedID, p.hits)
			}
		}
	}

	// Age out unmatched actives; survivors coast with their last estimate.
	for _, id := range activeIDs {
		if matched[id] {
			continue
		}
		entry := st.active[id]
		if now.Sub(entry.lastSeen) > e.cfg.MaxAge {
			delete(st.active, id)
			st.cooldown[entry.signature] = now
			e.sink.Emit(telemetry.Event{
				Subsystem: "fusion",
				EventType: "track_lost",
				TS:        now,
				Payload:   map[string]interface{}{"fused_id": id, "signature": entry.signature},
			})
			telemetry.Diagf("[fusion] lost track %s, cooldown until %v",
				id, now.Add(e.cfg.Cooldown))
		}
	}

	// Pending entries not refreshed this frame lose their streak.
	for sig, p := range st.pending {
		if p.lastFrame != st.frame {
			delete(st.pending, sig)
		}
	}
	// Expired cooldowns are garbage; drop them so the map stays bounded.
	for sig, lost := range st.cooldown {
		if now.Sub(lost) >= e.cfg.Cooldown {
			delete(st.cooldown, sig)
		}
	}

	out := make(FusedTrackSet, 0, len(st.active))
	for _, entry := range st.active {
		out = append(out, entry.track)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FusedID < out[j].FusedID })
	return out
}

// Process runs the full associate → fuse → identity pass for one frame.
func (e *Engine) Process(st *StateStore, bySource map[string][]track.SourceTrack, now time.Time) FusedTrackSet {
	clusters := e.Associate(bySource, now)
	cands := e.Fuse(clusters)
	return e.UpdateState(st, cands, now)
}

func splitSignature(sig string) []string {
	if sig == "" {
		return nil
	}
	var keys []string
	start := 0
	for i := 0; i < len(sig); i++ {
		if sig[i] == '+' {
			keys = append(keys, sig[start:i])
			start = i + 1
		}
	}
	return append(keys, sig[start:])
}
