// Package sim provides synthetic sensor adapters for demos, replay logs
// and tests. Generators are deterministic for a given seed so recorded
// runs replay byte-identically.
package sim

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/driftline/sitscope/internal/geom"
	"github.com/driftline/sitscope/internal/track"
)

// Generator produces the observations all simulated sensors report for
// one frame.
type Generator interface {
	Observations(now time.Time, frame int) []track.Observation
}

// Sensor is one simulated sensor's view of the scenario: its id, a
// quality level and gaussian position noise.
type Sensor struct {
	ID      string
	Quality float64
	NoiseM  float64
}

// DefaultSensors is a two-sensor suite that satisfies the default fusion
// support threshold.
func DefaultSensors() []Sensor {
	return []Sensor{
		{ID: "radar", Quality: 0.9, NoiseM: 4},
		{ID: "optical", Quality: 0.7, NoiseM: 8},
	}
}

// observe builds each sensor's reading of a true target state.
func observe(sensors []Sensor, rng *rand.Rand, key, class string, pos, vel geom.Vec2, now time.Time) []track.Observation {
	out := make([]track.Observation, 0, len(sensors))
	for _, s := range sensors {
		p := geom.Vec2{
			X: pos.X + rng.NormFloat64()*s.NoiseM,
			Y: pos.Y + rng.NormFloat64()*s.NoiseM,
		}
		v := vel
		o := track.Observation{
			SourceID: s.ID,
			T:        now,
			TrackKey: key,
			Pos:      &p,
			Vel:      &v,
			Quality:  s.Quality,
		}
		if class != "" {
			o.Metadata = map[string]string{"class": class}
		}
		out = append(out, o)
	}
	return out
}

// Crossing simulates a contact passing near the origin on a straight
// line, the classic CPA scenario.
type Crossing struct {
	Sensors []Sensor
	Start   geom.Vec2
	Vel     geom.Vec2
	Class   string
	Key     string
	DtS     float64

	rng *rand.Rand
}

// NewCrossing builds the scenario with a deterministic noise stream.
func NewCrossing(seed int64) *Crossing {
	return &Crossing{
		Sensors: DefaultSensors(),
		Start:   geom.Vec2{X: 600, Y: 40},
		Vel:     geom.Vec2{X: -18, Y: 0},
		Class:   "vessel",
		Key:     "T1",
		DtS:     0.1,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

func (c *Crossing) Observations(now time.Time, frame int) []track.Observation {
	t := float64(frame) * c.DtS
	pos := geom.Vec2{X: c.Start.X + c.Vel.X*t, Y: c.Start.Y + c.Vel.Y*t}
	return observe(c.Sensors, c.rng, c.Key, c.Class, pos, c.Vel, now)
}

// Orbit simulates an unidentified contact circling the vehicle; useful
// for exercising UNKNOWN_NEARBY and the trail overlays.
type Orbit struct {
	Sensors []Sensor
	RadiusM float64
	PeriodS float64
	Key     string
	DtS     float64

	rng *rand.Rand
}

func NewOrbit(seed int64) *Orbit {
	return &Orbit{
		Sensors: DefaultSensors(),
		RadiusM: 60,
		PeriodS: 45,
		Key:     "U1",
		DtS:     0.1,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

func (o *Orbit) Observations(now time.Time, frame int) []track.Observation {
	t := float64(frame) * o.DtS
	w := 2 * math.Pi / o.PeriodS
	pos := geom.Vec2{X: o.RadiusM * math.Cos(w*t), Y: o.RadiusM * math.Sin(w*t)}
	vel := geom.Vec2{X: -o.RadiusM * w * math.Sin(w*t), Y: o.RadiusM * w * math.Cos(w*t)}
	// No class metadata: the contact stays unidentified.
	return observe(o.Sensors, o.rng, o.Key, "", pos, vel, now)
}

// Dropout wraps a generator and silences every sensor during the frame
// window [From, To), simulating an uplink gap on the way to a NO_DATA
// scene.
type Dropout struct {
	Inner    Generator
	From, To int
}

func (d Dropout) Observations(now time.Time, frame int) []track.Observation {
	if frame >= d.From && frame < d.To {
		return nil
	}
	return d.Inner.Observations(now, frame)
}

// Multi merges several generators into one observation stream per frame.
type Multi []Generator

func (m Multi) Observations(now time.Time, frame int) []track.Observation {
	var out []track.Observation
	for _, g := range m {
		out = append(out, g.Observations(now, frame)...)
	}
	return out
}

// Named builds a generator by scenario name.
func Named(name string, seed int64) (Generator, error) {
	switch name {
	case "crossing":
		return NewCrossing(seed), nil
	case "orbit":
		return NewOrbit(seed), nil
	case "dropout":
		return Dropout{Inner: NewCrossing(seed), From: 40, To: 60}, nil
	case "busy":
		return Multi{NewCrossing(seed), NewOrbit(seed + 1)}, nil
	default:
		return nil, fmt.Errorf("sim: unknown scenario %q", name)
	}
}
