package domain

import (
	"testing"
	"time"
)

func TestNewFingerprint_Deterministic(t *testing.T) {
	a := NewFingerprint("https://example.com/watch?v=abc", "Song")
	b := NewFingerprint("https://example.com/watch?v=abc", "Song")
	if a != b {
		t.Errorf("expected identical fingerprints, got %s and %s", a, b)
	}

	c := NewFingerprint("https://example.com/watch?v=abc", "Other Song")
	if a == c {
		t.Error("expected different fingerprints for different titles")
	}

	d := NewFingerprint("https://example.com/watch?v=xyz", "Song")
	if a == d {
		t.Error("expected different fingerprints for different links")
	}
}

func TestTrackMetadata_FormattedDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		want     string
	}{
		{0, "LIVE"},
		{42 * time.Second, "00:42"},
		{3*time.Minute + 5*time.Second, "03:05"},
		{time.Hour + 2*time.Minute + 3*time.Second, "01:02:03"},
	}

	for _, tt := range tests {
		meta := TrackMetadata{Duration: tt.duration}
		if got := meta.FormattedDuration(); got != tt.want {
			t.Errorf("%v: expected %q, got %q", tt.duration, tt.want, got)
		}
	}
}
