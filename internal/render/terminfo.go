package render

import "strings"

// TerminalInfo is a snapshot of the terminal environment, assembled by
// the embedding program (usually from environment variables) and passed
// in. Rendering code never inspects the environment itself, so probes
// stay pure and testable.
type TerminalInfo struct {
	// Term is the TERM value, e.g. "xterm-kitty".
	Term string
	// TermProgram is the TERM_PROGRAM value, e.g. "WezTerm".
	TermProgram string
	// Multiplexed is true under tmux or screen, which re-encode escape
	// sequences and usually break bitmap protocols.
	Multiplexed bool
	// SSH is true for remote sessions, where bitmap support of the far
	// end is unknowable.
	SSH bool
	// ForceBitmap overrides the conservative probe: the operator
	// asserts the named protocol ("kitty" or "sixel") works.
	ForceBitmap string
	// Cols and Rows are the character cell dimensions, zero if unknown.
	Cols int
	Rows int
}

// ambiguous reports whether the session re-encodes or hides terminal
// capabilities. Bitmap probes answer no under ambiguity unless forced.
func (ti TerminalInfo) ambiguous() bool {
	return ti.Multiplexed || ti.SSH
}

// KittySupported reports whether the Kitty graphics protocol can be used.
func KittySupported(ti TerminalInfo) bool {
	if strings.EqualFold(ti.ForceBitmap, "kitty") {
		return true
	}
	if ti.ambiguous() {
		return false
	}
	if strings.Contains(strings.ToLower(ti.Term), "kitty") {
		return true
	}
	switch strings.ToLower(ti.TermProgram) {
	case "kitty", "wezterm", "ghostty":
		return true
	}
	return false
}

// SixelSupported reports whether SIXEL output can be used. Only
// terminals that unambiguously advertise SIXEL qualify; xterm needs a
// compile-time option, so plain "xterm" does not.
func SixelSupported(ti TerminalInfo) bool {
	if strings.EqualFold(ti.ForceBitmap, "sixel") {
		return true
	}
	if ti.ambiguous() {
		return false
	}
	term := strings.ToLower(ti.Term)
	if strings.Contains(term, "sixel") {
		return true
	}
	switch {
	case strings.HasPrefix(term, "mlterm"),
		strings.HasPrefix(term, "yaft"),
		strings.HasPrefix(term, "foot"):
		return true
	}
	switch strings.ToLower(ti.TermProgram) {
	case "mintty", "wezterm":
		return true
	}
	return false
}
