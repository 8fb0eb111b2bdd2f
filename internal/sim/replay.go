package sim

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/driftline/sitscope/internal/track"
)

// Frame is one tick's worth of recorded observations. Logs are JSONL,
// one frame per line, so they stream and diff cleanly.
type Frame struct {
	T            time.Time           `json:"t"`
	Observations []track.Observation `json:"observations"`
}

// WriteLog encodes frames as JSONL.
func WriteLog(w io.Writer, frames []Frame) error {
	enc := json.NewEncoder(w)
	for i, f := range frames {
		if err := enc.Encode(f); err != nil {
			return fmt.Errorf("sim: encode frame %d: %w", i, err)
		}
	}
	return nil
}

// LogReader streams frames back out of a JSONL observation log.
type LogReader struct {
	sc   *bufio.Scanner
	line int
}

func NewLogReader(r io.Reader) *LogReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	return &LogReader{sc: sc}
}

// Next returns the next frame, or io.EOF when the log is exhausted.
func (lr *LogReader) Next() (Frame, error) {
	for lr.sc.Scan() {
		lr.line++
		raw := lr.sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			return Frame{}, fmt.Errorf("sim: log line %d: %w", lr.line, err)
		}
		return f, nil
	}
	if err := lr.sc.Err(); err != nil {
		return Frame{}, err
	}
	return Frame{}, io.EOF
}

// ReadLog slurps an entire observation log.
func ReadLog(r io.Reader) ([]Frame, error) {
	lr := NewLogReader(r)
	var out []Frame
	for {
		f, err := lr.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
}

// Record runs a generator for n frames at the given interval and
// collects the log.
func Record(g Generator, start time.Time, dt time.Duration, n int) []Frame {
	frames := make([]Frame, 0, n)
	for i := 0; i < n; i++ {
		now := start.Add(time.Duration(i) * dt)
		frames = append(frames, Frame{T: now, Observations: g.Observations(now, i)})
	}
	return frames
}
