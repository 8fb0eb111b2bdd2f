// Command degradation-report replays an observation log through the
// pipeline under a deterministic clock and plots measured frame time
// against the degradation level the policy chose.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/driftline/sitscope/internal/pipeline"
	"github.com/driftline/sitscope/internal/sim"
	"github.com/driftline/sitscope/internal/timeutil"
)

func main() {
	input := flag.String("i", "sample.obslog", "JSONL observation log to replay")
	output := flag.String("o", "degradation.png", "output PNG path")
	flag.Parse()

	if err := run(*input, *output); err != nil {
		log.Fatal(err)
	}
}

type sample struct {
	frame   int
	frameMs float64
	level   int
}

func run(input, output string) error {
	f, err := os.Open(input)
	if err != nil {
		return err
	}
	defer f.Close()

	frames, err := sim.ReadLog(f)
	if err != nil {
		return err
	}
	if len(frames) == 0 {
		return fmt.Errorf("log %s is empty", input)
	}

	clock := timeutil.NewMockClock(frames[0].T)
	p, err := pipeline.New(pipeline.Options{
		Backend: "unicode",
		Clock:   clock,
	})
	if err != nil {
		return err
	}

	samples := make([]sample, 0, len(frames))
	for i, fr := range frames {
		clock.Set(fr.T)
		res, err := p.Tick(fr.Observations)
		if err != nil {
			return err
		}
		samples = append(samples, sample{frame: i, frameMs: res.FrameMs, level: res.Plan.Level})
	}

	if err := writePlot(samples, output); err != nil {
		return err
	}
	log.Printf("✓ Created: %s (%d frames)", output, len(samples))
	return nil
}

func writePlot(samples []sample, output string) error {
	pl := plot.New()
	pl.Title.Text = "Frame time and degradation level"
	pl.X.Label.Text = "frame"
	pl.Y.Label.Text = "ms / level"

	timePts := make(plotter.XYs, 0, len(samples))
	levelPts := make(plotter.XYs, 0, len(samples))
	for _, s := range samples {
		timePts = append(timePts, plotter.XY{X: float64(s.frame), Y: s.frameMs})
		levelPts = append(levelPts, plotter.XY{X: float64(s.frame), Y: float64(s.level)})
	}

	timeLine, err := plotter.NewLine(timePts)
	if err != nil {
		return err
	}
	timeLine.Width = vg.Points(1)
	timeLine.Color = color.RGBA{R: 40, G: 110, B: 220, A: 255}
	pl.Add(timeLine)
	pl.Legend.Add("frame ms", timeLine)

	levelLine, err := plotter.NewLine(levelPts)
	if err != nil {
		return err
	}
	levelLine.Width = vg.Points(1)
	levelLine.Color = color.RGBA{R: 220, G: 70, B: 40, A: 255}
	pl.Add(levelLine)
	pl.Legend.Add("level", levelLine)

	return pl.Save(14*vg.Inch, 6*vg.Inch, output)
}

