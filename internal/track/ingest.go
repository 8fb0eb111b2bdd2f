package track

import (
	"sort"

	"github.com/driftline/sitscope/internal/scene"
	"github.com/driftline/sitscope/internal/telemetry"
)

// Dropped records one rejected observation and why.
type Dropped struct {
	Observation Observation
	Reason      string
}

// IngestResult is the outcome of one ingestion pass.
type IngestResult struct {
	// BySource maps source ID to that source's normalised tracks, sorted
	// by track ID for deterministic downstream iteration.
	BySource map[string][]SourceTrack
	Dropped  []Dropped
}

// TrackCount returns the total number of normalised tracks.
func (r IngestResult) TrackCount() int {
	n := 0
	for _, ts := range r.BySource {
		n += len(ts)
	}
	return n
}

// Ingestor validates and normalises raw observations. It never returns an
// error: malformed input is dropped, reported as an INVALID truth event,
// and counted in the result.
type Ingestor struct {
	sink telemetry.Sink
}

// NewIngestor creates an ingestor emitting to the given sink. A nil sink
// disables telemetry.
func NewIngestor(sink telemetry.Sink) *Ingestor {
	if sink == nil {
		sink = telemetry.Discard
	}
	return &Ingestor{sink: sink}
}

// Ingest maps observations to per-source tracks. Within one call, a later
// observation for the same (source, track_key) replaces the earlier one
// entirely (last-write-wins, no merge).
func (in *Ingestor) Ingest(obs []Observation) IngestResult {
	latest := make(map[string]map[string]SourceTrack) // source -> track -> state
	var dropped []Dropped

	for _, o := range obs {
		ok, reason := Validate(o)
		if !ok {
			dropped = append(dropped, Dropped{Observation: o, Reason: reason})
			in.sink.Emit(telemetry.Event{
				Subsystem:  "ingest",
				EventType:  "observation_rejected",
				TruthState: string(scene.TruthInvalid),
				Reason:     reason,
				TS:         o.T,
				Payload: map[string]interface{}{
					"source_id": o.SourceID,
					"track_key": o.TrackKey,
				},
			})
			telemetry.Opsf("[ingest] dropped observation source=%q track=%q reason=%s",
				o.SourceID, o.TrackKey, reason)
			continue
		}

		st := normalise(o)
		bySource, ok := latest[st.SourceID]
		if !ok {
			bySource = make(map[string]SourceTrack)
			latest[st.SourceID] = bySource
		}
		bySource[st.TrackID] = st

		in.sink.Emit(telemetry.Event{
			Subsystem:  "ingest",
			EventType:  "track_updated",
			TruthState: string(scene.TruthOK),
			TS:         o.T,
			Payload: map[string]interface{}{
				"source_id": st.SourceID,
				"track_id":  st.TrackID,
				"quality":   st.Quality,
			},
		})
	}

	out := make(map[string][]SourceTrack, len(latest))
	for sourceID, byTrack := range latest {
		tracks := make([]SourceTrack, 0, len(byTrack))
		for _, st := range byTrack {
			tracks = append(tracks, st)
		}
		sort.Slice(tracks, func(i, j int) bool { return tracks[i].TrackID < tracks[j].TrackID })
		out[sourceID] = tracks
	}

	if len(dropped) > 0 {
		telemetry.Diagf("[ingest] %d observations accepted, %d dropped", len(obs)-len(dropped), len(dropped))
	}
	return IngestResult{BySource: out, Dropped: dropped}
}
