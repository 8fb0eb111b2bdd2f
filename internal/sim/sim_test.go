package sim

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/driftline/sitscope/internal/track"
)

func TestCrossingDeterministicPerSeed(t *testing.T) {
	start := time.Unix(7000, 0)
	a := Record(NewCrossing(42), start, 100*time.Millisecond, 20)
	b := Record(NewCrossing(42), start, 100*time.Millisecond, 20)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("same seed should replay identically (-a +b):\n%s", diff)
	}

	c := Record(NewCrossing(43), start, 100*time.Millisecond, 20)
	if diff := cmp.Diff(a, c); diff == "" {
		t.Error("different seeds should produce different noise")
	}
}

func TestCrossingObservationsValid(t *testing.T) {
	g := NewCrossing(1)
	obs := g.Observations(time.Unix(7000, 0), 0)
	if len(obs) != 2 {
		t.Fatalf("want one observation per sensor, got %d", len(obs))
	}
	for _, o := range obs {
		if ok, reason := track.Validate(o); !ok {
			t.Errorf("generated observation invalid: %s", reason)
		}
	}
}

func TestOrbitStaysUnidentified(t *testing.T) {
	g := NewOrbit(1)
	for _, o := range g.Observations(time.Unix(7000, 0), 5) {
		if o.Metadata["class"] != "" {
			t.Errorf("orbit contact should carry no class, got %q", o.Metadata["class"])
		}
	}
}

func TestDropoutWindow(t *testing.T) {
	g := Dropout{Inner: NewCrossing(1), From: 5, To: 8}
	now := time.Unix(7000, 0)
	for frame := 0; frame < 12; frame++ {
		obs := g.Observations(now, frame)
		gap := frame >= 5 && frame < 8
		if gap && len(obs) != 0 {
			t.Errorf("frame %d should be silent", frame)
		}
		if !gap && len(obs) == 0 {
			t.Errorf("frame %d should have observations", frame)
		}
	}
}

func TestLogRoundTrip(t *testing.T) {
	start := time.Unix(7000, 0)
	frames := Record(Multi{NewCrossing(9), NewOrbit(10)}, start, 100*time.Millisecond, 10)

	var buf bytes.Buffer
	if err := WriteLog(&buf, frames); err != nil {
		t.Fatal(err)
	}

	got, err := ReadLog(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(frames, got); diff != "" {
		t.Errorf("log round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestNamedScenarios(t *testing.T) {
	for _, name := range []string{"crossing", "orbit", "dropout", "busy"} {
		if _, err := Named(name, 1); err != nil {
			t.Errorf("Named(%q): %v", name, err)
		}
	}
	if _, err := Named("kraken", 1); err == nil {
		t.Error("unknown scenario should error")
	}
}
