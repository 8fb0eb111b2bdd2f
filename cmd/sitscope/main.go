// Command sitscope runs the situational-awareness console against a
// simulated scenario or a recorded observation log.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/driftline/sitscope/internal/config"
	"github.com/driftline/sitscope/internal/pipeline"
	"github.com/driftline/sitscope/internal/render"
	"github.com/driftline/sitscope/internal/sim"
	"github.com/driftline/sitscope/internal/store"
	"github.com/driftline/sitscope/internal/telemetry"
	"github.com/driftline/sitscope/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to JSON config file")
	scenario := flag.String("scenario", "crossing", "simulated scenario: crossing|orbit|dropout|busy")
	replayPath := flag.String("replay", "", "replay a JSONL observation log instead of simulating")
	backendFlag := flag.String("backend", "", "render backend: unicode|kitty|sixel|auto (overrides config)")
	recordFlag := flag.String("record", "", "record telemetry to a SQLite file (overrides config)")
	seed := flag.Int64("seed", 1, "scenario noise seed")
	frames := flag.Int("frames", 0, "stop after N frames (0 = run until interrupted)")
	verbose := flag.Bool("v", false, "enable diagnostic logging")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if err := run(*configPath, *scenario, *replayPath, *backendFlag, *recordFlag, *seed, *frames, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "sitscope: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, scenario, replayPath, backendFlag, recordFlag string, seed int64, frames int, verbose bool) error {
	if verbose {
		telemetry.SetLogWriters(os.Stderr, os.Stderr, io.Discard)
	} else {
		telemetry.SetLogWriters(os.Stderr, io.Discard, io.Discard)
	}

	cfg := config.Empty()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	backend := cfg.GetBackend()
	if backendFlag != "" {
		backend = backendFlag
	}
	recordPath := cfg.GetRecordPath()
	if recordFlag != "" {
		recordPath = recordFlag
	}

	sessionID := uuid.NewString()
	var sink telemetry.Sink
	if recordPath != "" {
		rec, err := store.Open(recordPath, sessionID, "sitscope run")
		if err != nil {
			return err
		}
		defer rec.Close()
		sink = rec
	}

	p, err := pipeline.New(pipeline.Options{
		Fusion:      cfg.Fusion(),
		Policy:      cfg.Policy(),
		Situation:   cfg.Situation(),
		Backend:     backend,
		Terminal:    terminalInfo(),
		Color:       cfg.GetColor(),
		SpeedUnits:  cfg.GetSpeedUnits(),
		TrailLen:    cfg.GetTrailLen(),
		TrailMaxAge: cfg.GetTrailMaxAge(),
		Sink:        sink,
		SessionID:   sessionID,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if replayPath != "" {
		return runReplay(ctx, p, replayPath, frames)
	}
	return runScenario(ctx, p, scenario, seed, frames, cfg.GetTickRateHz())
}

// terminalInfo assembles the capability snapshot from the environment.
// This is the only place the program inspects the terminal; everything
// downstream receives the struct.
func terminalInfo() render.TerminalInfo {
	return render.TerminalInfo{
		Term:        os.Getenv("TERM"),
		TermProgram: os.Getenv("TERM_PROGRAM"),
		Multiplexed: os.Getenv("TMUX") != "" || strings.HasPrefix(os.Getenv("TERM"), "screen"),
		SSH:         os.Getenv("SSH_TTY") != "" || os.Getenv("SSH_CONNECTION") != "",
		ForceBitmap: os.Getenv("SITSCOPE_FORCE_BITMAP"),
	}
}

func present(out []string) {
	fmt.Print("\x1b[H\x1b[2J")
	for _, line := range out {
		fmt.Println(line)
	}
}

func runScenario(ctx context.Context, p *pipeline.Pipeline, name string, seed int64, frames, hz int) error {
	gen, err := sim.Named(name, seed)
	if err != nil {
		return err
	}

	limiter := rate.NewLimiter(rate.Limit(hz), 1)
	frame := 0
	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil // interrupted
		}
		res, err := p.Tick(gen.Observations(time.Now(), frame))
		if err != nil {
			return err
		}
		present(res.Output.Lines)
		frame++
		if frames > 0 && frame >= frames {
			return nil
		}
	}
}

func runReplay(ctx context.Context, p *pipeline.Pipeline, path string, frames int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	lr := sim.NewLogReader(f)
	var prev time.Time
	n := 0
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		fr, err := lr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		// Pace playback by the recorded timestamps.
		if !prev.IsZero() {
			if dt := fr.T.Sub(prev); dt > 0 && dt < time.Second {
				time.Sleep(dt)
			}
		}
		prev = fr.T

		res, err := p.Tick(fr.Observations)
		if err != nil {
			return err
		}
		present(res.Output.Lines)
		n++
		if frames > 0 && n >= frames {
			return nil
		}
	}
}
