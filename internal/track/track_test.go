package track

import (
	"math"
	"testing"
	"time"

	"github.com/driftline/sitscope/internal/geom"
	"github.com/driftline/sitscope/internal/telemetry"
)

func validObs(source, key string, x, y float64) Observation {
	return Observation{
		SourceID: source,
		TrackKey: key,
		T:        time.Unix(1000, 0),
		Pos:      &geom.Vec2{X: x, Y: y},
		Quality:  0.8,
	}
}

func TestValidateReasons(t *testing.T) {
	nan := math.NaN()

	tests := []struct {
		name   string
		mutate func(*Observation)
		reason string
	}{
		{"missing source", func(o *Observation) { o.SourceID = "" }, ReasonMissingSourceID},
		{"missing track key", func(o *Observation) { o.TrackKey = "" }, ReasonMissingTrackKey},
		{"zero timestamp", func(o *Observation) { o.T = time.Time{} }, ReasonInvalidTimestamp},
		{"missing position", func(o *Observation) { o.Pos = nil }, ReasonMissingPosition},
		{"nan position", func(o *Observation) { o.Pos.X = nan }, ReasonInvalidPosition},
		{"inf position", func(o *Observation) { o.Pos.Y = math.Inf(1) }, ReasonInvalidPosition},
		{"nan quality", func(o *Observation) { o.Quality = nan }, ReasonInvalidPosition},
		{"nan velocity", func(o *Observation) { o.Vel = &geom.Vec2{X: nan} }, ReasonInvalidVelocity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := validObs("radar-1", "A1", 10, 20)
			tt.mutate(&o)
			ok, reason := Validate(o)
			if ok {
				t.Fatal("expected validation failure")
			}
			if reason != tt.reason {
				t.Errorf("reason = %s, want %s", reason, tt.reason)
			}
		})
	}

	if ok, reason := Validate(validObs("radar-1", "A1", 10, 20)); !ok {
		t.Errorf("valid observation rejected: %s", reason)
	}
}

func TestIngestDropsInvalid(t *testing.T) {
	sink := &telemetry.MemorySink{}
	in := NewIngestor(sink)

	bad := validObs("radar-1", "A2", 1, 1)
	bad.Pos.X = math.NaN()

	res := in.Ingest([]Observation{validObs("radar-1", "A1", 10, 20), bad})

	if got := res.TrackCount(); got != 1 {
		t.Fatalf("TrackCount() = %d, want 1", got)
	}
	if len(res.Dropped) != 1 || res.Dropped[0].Reason != ReasonInvalidPosition {
		t.Errorf("Dropped = %+v", res.Dropped)
	}

	rejected := sink.ByType("observation_rejected")
	if len(rejected) != 1 {
		t.Fatalf("expected 1 rejection event, got %d", len(rejected))
	}
	if rejected[0].TruthState != "INVALID" {
		t.Errorf("rejection truth state = %s, want INVALID", rejected[0].TruthState)
	}
}

func TestIngestLastWriteWins(t *testing.T) {
	in := NewIngestor(nil)

	first := validObs("radar-1", "A1", 10, 20)
	second := validObs("radar-1", "A1", 30, 40)
	second.Quality = 1.5 // clamps to 1
	second.Vel = &geom.Vec2{X: 5}

	res := in.Ingest([]Observation{first, second})

	tracks := res.BySource["radar-1"]
	if len(tracks) != 1 {
		t.Fatalf("tracks = %d, want 1", len(tracks))
	}
	st := tracks[0]
	if st.Pos.X != 30 || st.Pos.Y != 40 {
		t.Errorf("position not replaced: %+v", st.Pos)
	}
	if st.Quality != 1 || st.Trust != 1 {
		t.Errorf("quality/trust = %v/%v, want 1/1", st.Quality, st.Trust)
	}
	if st.Vel == nil || st.Vel.X != 5 {
		t.Errorf("velocity not carried: %+v", st.Vel)
	}
	if st.Key() != "radar-1:A1" {
		t.Errorf("Key() = %s", st.Key())
	}
}

func TestIngestSortsTracksPerSource(t *testing.T) {
	in := NewIngestor(nil)
	res := in.Ingest([]Observation{
		validObs("radar-1", "B", 1, 1),
		validObs("radar-1", "A", 2, 2),
		validObs("radar-1", "C", 3, 3),
	})

	tracks := res.BySource["radar-1"]
	if len(tracks) != 3 {
		t.Fatalf("tracks = %d, want 3", len(tracks))
	}
	for i, want := range []string{"A", "B", "C"} {
		if tracks[i].TrackID != want {
			t.Errorf("tracks[%d] = %s, want %s", i, tracks[i].TrackID, want)
		}
	}
}
