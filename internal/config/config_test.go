package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sitscope.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadPartialConfig(t *testing.T) {
	path := writeConfig(t, `{
		"gate_dist_m": 80,
		"confirm_frames": 5,
		"cooldown": "2s",
		"backend": "unicode",
		"bitmap_scales": [1.0, 0.5]
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	fc := cfg.Fusion()
	if fc.GateDistM != 80 {
		t.Errorf("GateDistM = %v, want 80", fc.GateDistM)
	}
	if fc.ConfirmFrames != 5 {
		t.Errorf("ConfirmFrames = %v, want 5", fc.ConfirmFrames)
	}
	if fc.Cooldown != 2*time.Second {
		t.Errorf("Cooldown = %v, want 2s", fc.Cooldown)
	}
	// Unset fields keep their defaults.
	if fc.GateVelMps != 20 {
		t.Errorf("GateVelMps = %v, want default 20", fc.GateVelMps)
	}

	p := cfg.Policy()
	if len(p.BitmapScales) != 2 || p.BitmapScales[1] != 0.5 {
		t.Errorf("BitmapScales = %v", p.BitmapScales)
	}
	if cfg.GetBackend() != "unicode" {
		t.Errorf("GetBackend = %q", cfg.GetBackend())
	}
}

func TestEmptyConfigIsAllDefaults(t *testing.T) {
	cfg := Empty()
	fc := cfg.Fusion()
	if fc.GateDistM != 50 || fc.MinSupport != 2 || fc.ConfirmFrames != 3 {
		t.Errorf("unexpected fusion defaults: %+v", fc)
	}
	sc := cfg.Situation()
	if sc.CPAWarnT != 30*time.Second || sc.ConfirmFrames != 3 {
		t.Errorf("unexpected situation defaults: %+v", sc)
	}
	if cfg.GetBackend() != "auto" || !cfg.GetColor() || cfg.GetTickRateHz() != 10 {
		t.Error("unexpected console defaults")
	}
	if cfg.GetSpeedUnits() != "mps" {
		t.Errorf("GetSpeedUnits = %q, want mps", cfg.GetSpeedUnits())
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"negative gate", `{"gate_dist_m": -1}`},
		{"zero support", `{"min_support": 0}`},
		{"bad duration", `{"cooldown": "fast"}`},
		{"bad scale", `{"bitmap_scales": [1.5]}`},
		{"bad backend", `{"backend": "hologram"}`},
		{"bad tick rate", `{"tick_rate_hz": 0}`},
		{"bad speed units", `{"speed_units": "furlongs"}`},
		{"malformed json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.body)
			if _, err := Load(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadRejectsNonJSONPath(t *testing.T) {
	if _, err := Load("console.yaml"); err == nil {
		t.Error("expected extension error")
	}
}
