// Command gen-observations generates sample JSONL observation logs for
// replay testing.
package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/driftline/sitscope/internal/sim"
)

func main() {
	output := flag.String("o", "sample.obslog", "output path")
	scenario := flag.String("scenario", "crossing", "scenario: crossing|orbit|dropout|busy")
	frames := flag.Int("n", 200, "number of frames")
	hz := flag.Int("hz", 10, "frame rate of the recorded log")
	seed := flag.Int64("seed", 1, "noise seed")
	flag.Parse()

	gen, err := sim.Named(*scenario, *seed)
	if err != nil {
		log.Fatal(err)
	}

	dt := time.Second / time.Duration(*hz)
	log.Printf("recording %d frames of %q at %dHz", *frames, *scenario, *hz)
	recorded := sim.Record(gen, time.Now(), dt, *frames)

	f, err := os.Create(*output)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	if err := sim.WriteLog(f, recorded); err != nil {
		log.Fatal(err)
	}
	log.Printf("✓ Created: %s", *output)
}
