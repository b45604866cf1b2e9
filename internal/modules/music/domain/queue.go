package domain

import (
	"math/rand/v2"
	"time"
)

// Queue is a bounded, ordered sequence of pending tracks. Playback order is
// FIFO except for explicit Move and Shuffle. The zero value is not usable;
// construct with NewQueue.
//
// Queue is not safe for concurrent use; the owning Player serializes access.
type Queue struct {
	entries []QueueEntry
	maxSize int
}

// NewQueue creates an empty queue holding at most maxSize entries.
// maxSize <= 0 means unbounded.
func NewQueue(maxSize int) Queue {
	return Queue{
		entries: make([]QueueEntry, 0),
		maxSize: maxSize,
	}
}

// Len returns the number of pending entries.
func (q *Queue) Len() int {
	return len(q.entries)
}

// IsEmpty returns true if no entries are pending.
func (q *Queue) IsEmpty() bool {
	return len(q.entries) == 0
}

// Append adds an entry to the end of the queue.
// Returns ErrQueueFull without mutating the queue when at capacity.
func (q *Queue) Append(entry QueueEntry) error {
	if q.maxSize > 0 && len(q.entries) >= q.maxSize {
		return ErrQueueFull
	}
	q.entries = append(q.entries, entry)
	return nil
}

// PushFront inserts an entry at the head of the queue, bypassing the
// capacity bound. Used for track-loop re-enqueueing, which never grows the
// queue beyond what was already admitted.
func (q *Queue) PushFront(entry QueueEntry) {
	q.entries = append([]QueueEntry{entry}, q.entries...)
}

// PeekFront returns a copy of the head entry without removing it, or nil if
// the queue is empty.
func (q *Queue) PeekFront() *QueueEntry {
	if len(q.entries) == 0 {
		return nil
	}
	entry := q.entries[0]
	return &entry
}

// PopFront removes and returns the head entry, or nil if the queue is empty.
func (q *Queue) PopFront() *QueueEntry {
	if len(q.entries) == 0 {
		return nil
	}
	entry := q.entries[0]
	q.entries = q.entries[1:]
	return &entry
}

// RemoveAt removes and returns the entry at the given 1-based position.
// Returns ErrInvalidPosition without mutating the queue for out-of-range
// positions.
func (q *Queue) RemoveAt(position int) (*QueueEntry, error) {
	idx := position - 1
	if idx < 0 || idx >= len(q.entries) {
		return nil, ErrInvalidPosition
	}
	entry := q.entries[idx]
	q.entries = append(q.entries[:idx], q.entries[idx+1:]...)
	return &entry, nil
}

// Move repositions the entry at 1-based position from to position to.
// Entries between the two positions shift by one. Returns
// ErrInvalidPosition without mutating the queue if either position is out
// of range.
func (q *Queue) Move(from, to int) (*QueueEntry, error) {
	src, dst := from-1, to-1
	if src < 0 || src >= len(q.entries) || dst < 0 || dst >= len(q.entries) {
		return nil, ErrInvalidPosition
	}
	entry := q.entries[src]
	q.entries = append(q.entries[:src], q.entries[src+1:]...)
	q.entries = append(q.entries[:dst], append([]QueueEntry{entry}, q.entries[dst:]...)...)
	return &entry, nil
}

// RemoveByFingerprint removes all entries referencing the given fingerprint
// and returns how many were removed. Used to purge tracks whose download
// failed terminally.
func (q *Queue) RemoveByFingerprint(fp Fingerprint) int {
	kept := q.entries[:0]
	removed := 0
	for _, entry := range q.entries {
		if entry.Metadata.Fingerprint == fp {
			removed++
			continue
		}
		kept = append(kept, entry)
	}
	q.entries = kept
	return removed
}

// Shuffle randomizes the order of pending entries in place.
// Returns ErrNotEnoughTracks if fewer than two entries are pending.
func (q *Queue) Shuffle() error {
	if len(q.entries) < 2 {
		return ErrNotEnoughTracks
	}
	rand.Shuffle(len(q.entries), func(i, j int) {
		q.entries[i], q.entries[j] = q.entries[j], q.entries[i]
	})
	return nil
}

// List returns a copy of all pending entries in order.
func (q *Queue) List() []QueueEntry {
	out := make([]QueueEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

// TotalDuration returns the summed duration of all pending entries.
// Entries with unknown duration contribute zero.
func (q *Queue) TotalDuration() time.Duration {
	var total time.Duration
	for _, entry := range q.entries {
		total += entry.Metadata.Duration
	}
	return total
}

// Clear removes all pending entries.
func (q *Queue) Clear() {
	q.entries = q.entries[:0]
}
