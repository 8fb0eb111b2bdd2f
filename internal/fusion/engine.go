package fusion

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/driftline/sitscope/internal/geom"
	"github.com/driftline/sitscope/internal/telemetry"
	"github.com/driftline/sitscope/internal/track"
)

// Engine performs association and fusion. It is stateless; cross-frame
// identity lives in the StateStore the caller owns.
type Engine struct {
	cfg  Config
	sink telemetry.Sink
}

// NewEngine creates a fusion engine. A nil sink disables telemetry.
func NewEngine(cfg Config, sink telemetry.Sink) *Engine {
	if sink == nil {
		sink = telemetry.Discard
	}
	return &Engine{cfg: cfg, sink: sink}
}

// Config returns the engine's tuning.
func (e *Engine) Config() Config { return e.cfg }

// Associate builds association clusters from the freshest per-source
// tracks. Contributors older than MaxAge are excluded (counted as stale and
// logged, never silently vanished). The result is deterministic: clusters
// are sorted by contributor-key signature.
func (e *Engine) Associate(bySource map[string][]track.SourceTrack, now time.Time) []Cluster {
	var contributors []Contributor
	stale := 0

	sourceIDs := make([]string, 0, len(bySource))
	for id := range bySource {
		sourceIDs = append(sourceIDs, id)
	}
	sort.Strings(sourceIDs)

	for _, sourceID := range sourceIDs {
		for _, st := range bySource[sourceID] {
			if now.Sub(st.LastUpdate) > e.cfg.MaxAge {
				stale++
				continue
			}
			contributors = append(contributors, contributorFromSource(st))
		}
	}
	if stale > 0 {
		telemetry.Diagf("[fusion] excluded %d stale contributors (max age %v)", stale, e.cfg.MaxAge)
	}

	// Deterministic seeding order: highest trust first, ties broken by
	// source then track identity.
	sort.Slice(contributors, func(i, j int) bool {
		a, b := contributors[i], contributors[j]
		if a.Trust != b.Trust {
			return a.Trust > b.Trust
		}
		if a.SourceID != b.SourceID {
			return a.SourceID < b.SourceID
		}
		return a.TrackID < b.TrackID
	})

	claimed := make([]bool, len(contributors))
	var clusters []Cluster

	for i, seed := range contributors {
		if claimed[i] {
			continue
		}
		claimed[i] = true
		members := []Contributor{seed}

		// One candidate per other source, nearest first, gated on position
		// and (when both sides report it) velocity.
		for _, sourceID := range sourceIDs {
			if sourceID == seed.SourceID {
				continue
			}
			best := -1
			bestDist := math.Inf(1)
			for j, cand := range contributors {
				if claimed[j] || cand.SourceID != sourceID {
					continue
				}
				d := cand.Pos.Dist(seed.Pos)
				if d > e.cfg.GateDistM {
					continue
				}
				if seed.Vel != nil && cand.Vel != nil {
					if seed.Vel.Sub(*cand.Vel).Norm() > e.cfg.GateVelMps {
						continue
					}
				}
				if d < bestDist {
					best, bestDist = j, d
				}
			}
			if best >= 0 {
				claimed[best] = true
				members = append(members, contributors[best])
			}
		}

		clusters = append(clusters, Cluster{
			Contributors: members,
			SupportOK:    len(members) >= e.cfg.MinSupport,
			SpreadPos:    maxPairwiseDist(members),
		})
	}

	sort.Slice(clusters, func(i, j int) bool {
		return clusters[i].Signature() < clusters[j].Signature()
	})
	return clusters
}

func maxPairwiseDist(members []Contributor) float64 {
	var max float64
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			if d := members[i].Pos.Dist(members[j].Pos); d > max {
				max = d
			}
		}
	}
	return max
}

// Fuse computes one fused track per cluster: trust-weighted position, a
// velocity only when at least two contributors report one, and the
// support/conflict trust arithmetic. Input order is preserved.
func (e *Engine) Fuse(clusters []Cluster) []FusedTrack {
	out := make([]FusedTrack, 0, len(clusters))
	for _, cl := range clusters {
		out = append(out, e.fuseCluster(cl))
	}
	return out
}

func (e *Engine) fuseCluster(cl Cluster) FusedTrack {
	n := len(cl.Contributors)
	xs := make([]float64, n)
	ys := make([]float64, n)
	trusts := make([]float64, n)
	totalTrust := 0.0
	for i, c := range cl.Contributors {
		xs[i] = c.Pos.X
		ys[i] = c.Pos.Y
		trusts[i] = c.Trust
		totalTrust += c.Trust
	}

	// Weighted mean degenerates when every trust is zero; fall back to the
	// plain mean rather than dividing by zero.
	weights := trusts
	if totalTrust == 0 {
		weights = nil
	}
	ft := FusedTrack{
		Pos:       geom.Vec2{X: stat.Mean(xs, weights), Y: stat.Mean(ys, weights)},
		signature: cl.Signature(),
	}

	// Velocity is fused only with corroboration: a single velocity-bearing
	// contributor is displayed per-source, never promoted to a fused vector.
	var vxs, vys, vws []float64
	for i, c := range cl.Contributors {
		if c.Vel == nil {
			continue
		}
		vxs = append(vxs, c.Vel.X)
		vys = append(vys, c.Vel.Y)
		vws = append(vws, trusts[i])
	}
	if len(vxs) >= 2 {
		vw := vws
		if floats.Sum(vws) == 0 {
			vw = nil
		}
		ft.Vel = &geom.Vec2{X: stat.Mean(vxs, vw), Y: stat.Mean(vys, vw)}
	}

	avgTrust := stat.Mean(trusts, nil)
	lead := cl.Contributors[0]
	if cl.SupportOK {
		ft.Trust = math.Min(1, avgTrust+0.1)
		ft.FusedID = hashID(ft.signature)
	} else {
		ft.Flags = append(ft.Flags, FlagLowSupport)
		ft.Trust = math.Min(avgTrust, 0.49)
		ft.FusedID = lead.Key()
	}

	if cl.SpreadPos > e.cfg.ConflictDistM {
		ft.Flags = append(ft.Flags, FlagConflict)
		ft.Trust *= 0.5
	}
	ft.Trust = math.Max(0, math.Min(1, ft.Trust))

	for _, c := range cl.Contributors {
		if class := c.Metadata["class"]; class != "" {
			ft.Class = class
			break
		}
	}
	for _, c := range cl.Contributors {
		if c.LastUpdate.After(ft.LastUpdate) {
			ft.LastUpdate = c.LastUpdate
		}
	}

	ft.Contributors = make([]Contributor, n)
	copy(ft.Contributors, cl.Contributors)
	return ft
}
