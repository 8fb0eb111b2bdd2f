package telemetry

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestMemorySink(t *testing.T) {
	sink := &MemorySink{}
	sink.Emit(Event{Subsystem: "fusion", EventType: "track_confirmed", TS: time.Unix(1, 0)})
	sink.Emit(Event{Subsystem: "situation", EventType: "situation_created", TS: time.Unix(2, 0)})
	sink.Emit(Event{Subsystem: "situation", EventType: "situation_created", TS: time.Unix(3, 0)})

	if got := len(sink.Events()); got != 3 {
		t.Fatalf("Events() length = %d, want 3", got)
	}
	if got := len(sink.ByType("situation_created")); got != 2 {
		t.Errorf("ByType(situation_created) length = %d, want 2", got)
	}

	sink.Reset()
	if got := len(sink.Events()); got != 0 {
		t.Errorf("after Reset, Events() length = %d, want 0", got)
	}
}

func TestMultiSinkFansOut(t *testing.T) {
	a := &MemorySink{}
	b := &MemorySink{}
	m := MultiSink{a, nil, b}

	m.Emit(Event{EventType: "render_tick"})

	if len(a.Events()) != 1 || len(b.Events()) != 1 {
		t.Errorf("fan-out incomplete: a=%d b=%d", len(a.Events()), len(b.Events()))
	}
}

func TestLogStreams(t *testing.T) {
	var ops, diag, trace bytes.Buffer
	SetLogWriters(&ops, &diag, &trace)
	defer SetLegacyLogger(nil)

	Opsf("backend %s failed", "kitty")
	Diagf("degradation level %d", 2)
	Tracef("tick %d", 17)

	if !strings.Contains(ops.String(), "backend kitty failed") {
		t.Errorf("ops stream missing message: %q", ops.String())
	}
	if !strings.Contains(diag.String(), "degradation level 2") {
		t.Errorf("diag stream missing message: %q", diag.String())
	}
	if !strings.Contains(trace.String(), "tick 17") {
		t.Errorf("trace stream missing message: %q", trace.String())
	}
}

func TestDisabledStreamsDoNotPanic(t *testing.T) {
	SetLegacyLogger(nil)
	Opsf("dropped")
	Diagf("dropped")
	Tracef("dropped")
}
