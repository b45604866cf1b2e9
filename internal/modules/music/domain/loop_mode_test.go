package domain

import "testing"

func TestLoopMode_CycleReturnsToStart(t *testing.T) {
	mode := LoopModeOff
	seen := []LoopMode{mode}
	for range 3 {
		mode = mode.Cycle()
		seen = append(seen, mode)
	}

	want := []LoopMode{LoopModeOff, LoopModeTrack, LoopModeQueue, LoopModeOff}
	for i, m := range want {
		if seen[i] != m {
			t.Errorf("step %d: expected %v, got %v", i, m, seen[i])
		}
	}
}

func TestLoopMode_String(t *testing.T) {
	tests := []struct {
		mode LoopMode
		want string
	}{
		{LoopModeOff, "off"},
		{LoopModeTrack, "track"},
		{LoopModeQueue, "queue"},
	}

	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.want {
			t.Errorf("%v: expected %q, got %q", tt.mode, tt.want, got)
		}
	}
}

func TestParseLoopMode_RoundTrip(t *testing.T) {
	for _, mode := range []LoopMode{LoopModeOff, LoopModeTrack, LoopModeQueue} {
		if got := ParseLoopMode(mode.String()); got != mode {
			t.Errorf("expected %v, got %v", mode, got)
		}
	}
}
