package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

func testEntry(title string) QueueEntry {
	meta := NewTrackMetadata(title, "uploader", "", "https://example.com/watch?v="+title, 3*time.Minute)
	return NewQueueEntry(meta, snowflake.ID(123))
}

func titles(entries []QueueEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Metadata.Title
	}
	return out
}

func TestQueue_AppendRejectsWhenFull(t *testing.T) {
	q := NewQueue(2)

	if err := q.Append(testEntry("a")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.Append(testEntry("b")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := q.Append(testEntry("c"))
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	if q.Len() != 2 {
		t.Errorf("expected queue unchanged at 2 entries, got %d", q.Len())
	}
}

func TestQueue_PopFrontIsFIFO(t *testing.T) {
	q := NewQueue(0)
	for _, title := range []string{"a", "b", "c"} {
		if err := q.Append(testEntry(title)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	for _, want := range []string{"a", "b", "c"} {
		got := q.PopFront()
		if got == nil {
			t.Fatalf("expected entry %q, got nil", want)
		}
		if got.Metadata.Title != want {
			t.Errorf("expected %q, got %q", want, got.Metadata.Title)
		}
	}

	if q.PopFront() != nil {
		t.Error("expected nil from empty queue")
	}
}

func TestQueue_PushFrontBypassesBound(t *testing.T) {
	q := NewQueue(1)
	if err := q.Append(testEntry("a")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	q.PushFront(testEntry("front"))

	if q.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", q.Len())
	}
	if head := q.PeekFront(); head == nil || head.Metadata.Title != "front" {
		t.Errorf("expected head %q, got %+v", "front", head)
	}
}

func TestQueue_Move(t *testing.T) {
	tests := []struct {
		name      string
		from, to  int
		wantErr   error
		wantOrder []string
	}{
		{
			name: "third to front",
			from: 3, to: 1,
			wantOrder: []string{"c", "a", "b"},
		},
		{
			name: "front to back",
			from: 1, to: 3,
			wantOrder: []string{"b", "c", "a"},
		},
		{
			name: "same position",
			from: 2, to: 2,
			wantOrder: []string{"a", "b", "c"},
		},
		{
			name: "from out of range",
			from: 5, to: 1,
			wantErr:   ErrInvalidPosition,
			wantOrder: []string{"a", "b", "c"},
		},
		{
			name: "to out of range",
			from: 1, to: 4,
			wantErr:   ErrInvalidPosition,
			wantOrder: []string{"a", "b", "c"},
		},
		{
			name: "zero position",
			from: 0, to: 1,
			wantErr:   ErrInvalidPosition,
			wantOrder: []string{"a", "b", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewQueue(0)
			for _, title := range []string{"a", "b", "c"} {
				if err := q.Append(testEntry(title)); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			}

			_, err := q.Move(tt.from, tt.to)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}

			got := titles(q.List())
			for i, want := range tt.wantOrder {
				if got[i] != want {
					t.Errorf("position %d: expected %q, got %q (order %v)", i+1, want, got[i], got)
				}
			}
		})
	}
}

func TestQueue_RemoveAt(t *testing.T) {
	q := NewQueue(0)
	for _, title := range []string{"a", "b", "c"} {
		if err := q.Append(testEntry(title)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	removed, err := q.RemoveAt(2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed.Metadata.Title != "b" {
		t.Errorf("expected removed %q, got %q", "b", removed.Metadata.Title)
	}
	if q.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", q.Len())
	}

	if _, err := q.RemoveAt(3); !errors.Is(err, ErrInvalidPosition) {
		t.Errorf("expected ErrInvalidPosition, got %v", err)
	}
	if q.Len() != 2 {
		t.Errorf("expected queue unchanged at 2 entries, got %d", q.Len())
	}
}

func TestQueue_RemoveByFingerprint(t *testing.T) {
	q := NewQueue(0)
	dup := testEntry("dup")
	if err := q.Append(testEntry("a")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.Append(dup); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.Append(dup); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	removed := q.RemoveByFingerprint(dup.Metadata.Fingerprint)
	if removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}
	if q.Len() != 1 {
		t.Errorf("expected 1 entry left, got %d", q.Len())
	}
}

func TestQueue_ShuffleRequiresTwoEntries(t *testing.T) {
	q := NewQueue(0)
	if err := q.Shuffle(); !errors.Is(err, ErrNotEnoughTracks) {
		t.Errorf("expected ErrNotEnoughTracks on empty queue, got %v", err)
	}

	if err := q.Append(testEntry("a")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.Shuffle(); !errors.Is(err, ErrNotEnoughTracks) {
		t.Errorf("expected ErrNotEnoughTracks on single entry, got %v", err)
	}
}

func TestQueue_ShufflePreservesMultiset(t *testing.T) {
	q := NewQueue(0)
	want := map[Fingerprint]int{}
	for _, title := range []string{"a", "b", "c", "d", "e"} {
		entry := testEntry(title)
		want[entry.Metadata.Fingerprint]++
		if err := q.Append(entry); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if err := q.Shuffle(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := map[Fingerprint]int{}
	for _, entry := range q.List() {
		got[entry.Metadata.Fingerprint]++
	}

	if len(got) != len(want) {
		t.Fatalf("expected %d distinct entries, got %d", len(want), len(got))
	}
	for fp, n := range want {
		if got[fp] != n {
			t.Errorf("fingerprint %s: expected count %d, got %d", fp, n, got[fp])
		}
	}
}

func TestQueue_TotalDuration(t *testing.T) {
	q := NewQueue(0)
	for _, title := range []string{"a", "b"} {
		if err := q.Append(testEntry(title)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if got := q.TotalDuration(); got != 6*time.Minute {
		t.Errorf("expected total 6m, got %v", got)
	}
}
