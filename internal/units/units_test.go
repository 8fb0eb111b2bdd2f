package units

import "testing"

func TestIsValid(t *testing.T) {
	for _, u := range ValidUnits {
		if !IsValid(u) {
			t.Errorf("IsValid(%q) = false, want true", u)
		}
	}
	for _, u := range []string{"", "knots", "MPS", "m/s"} {
		if IsValid(u) {
			t.Errorf("IsValid(%q) = true, want false", u)
		}
	}
}

func TestConvertSpeed(t *testing.T) {
	tests := []struct {
		unit string
		want float64
	}{
		{MPS, 10},
		{KPH, 36},
		{MPH, 22.3694},
		{KT, 19.4384},
		{"bogus", 10},
	}
	for _, tt := range tests {
		got := ConvertSpeed(10, tt.unit)
		if diff := got - tt.want; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("ConvertSpeed(10, %q) = %v, want %v", tt.unit, got, tt.want)
		}
	}
}

func TestFormatSpeed(t *testing.T) {
	if got := FormatSpeed(10, KT); got != "19.4kt" {
		t.Errorf("FormatSpeed = %q, want 19.4kt", got)
	}
	if got := FormatSpeed(10, MPS); got != "10.0m/s" {
		t.Errorf("FormatSpeed = %q, want 10.0m/s", got)
	}
}
