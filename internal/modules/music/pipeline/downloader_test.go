package pipeline

import (
	"strings"
	"testing"
	"time"

	"github.com/hhkim0505/aribot/internal/modules/music/domain"
)

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
		want  string
	}{
		{
			name:  "plain ascii survives",
			title: "NeverGonnaGiveYouUp",
			want:  "NeverGonnaGiveYouUp",
		},
		{
			name:  "spaces and dashes become underscores",
			title: "Rick Astley - Never Gonna",
			want:  "Rick_Astley___Never_Gonna",
		},
		{
			name:  "path separators and quotes are dropped",
			title: `a/b\c"d'e:f`,
			want:  "abcdef",
		},
		{
			name:  "fully unsafe title falls back",
			title: "日本語のタイトル",
			want:  "track",
		},
		{
			name:  "empty title falls back",
			title: "",
			want:  "track",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeTitle(tt.title); got != tt.want {
				t.Errorf("sanitizeTitle(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestSanitizeTitleBoundsLength(t *testing.T) {
	got := sanitizeTitle(strings.Repeat("a", 500))
	if len(got) > maxTitleInName {
		t.Errorf("sanitized title length = %d, want at most %d", len(got), maxTitleInName)
	}
}

func TestBaseFilenameUniquePerTrack(t *testing.T) {
	a := domain.NewTrackMetadata("Same Title", "up", "", "https://example.com/a", time.Minute)
	b := domain.NewTrackMetadata("Same Title", "up", "", "https://example.com/b", time.Minute)

	nameA, nameB := baseFilename(a), baseFilename(b)
	if nameA == nameB {
		t.Errorf("tracks with identical titles but different sources got the same filename %q", nameA)
	}
	if !strings.HasPrefix(nameA, string(a.Fingerprint)) {
		t.Errorf("filename %q does not start with fingerprint %q", nameA, a.Fingerprint)
	}
}

func TestBackoffGrowth(t *testing.T) {
	first := time.Duration(float64(fetchBackoffBase) * pow(fetchBackoffGrow, 0))
	second := time.Duration(float64(fetchBackoffBase) * pow(fetchBackoffGrow, 1))

	if first != time.Second {
		t.Errorf("first backoff = %v, want 1s", first)
	}
	if second != 1500*time.Millisecond {
		t.Errorf("second backoff = %v, want 1.5s", second)
	}
}

func TestIsLink(t *testing.T) {
	if !isLink("https://youtu.be/dQw4w9WgXcQ") {
		t.Error("https link not recognized")
	}
	if isLink("never gonna give you up") {
		t.Error("plain query misclassified as link")
	}
}
