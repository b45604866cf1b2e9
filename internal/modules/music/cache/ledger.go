// Package cache tracks in-flight and completed track downloads by content
// fingerprint. One ledger serves the whole process: two guilds requesting
// the same track share a single download and backing file.
package cache

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/hhkim0505/aribot/internal/modules/music/domain"
)

// State is the download state of a ledger entry.
type State int

const (
	StatePending State = iota
	StateDownloading
	StateReady
	StateFailed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateDownloading:
		return "downloading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Entry is a ledger record for one fingerprint. Concurrent requesters for
// the same track hold the same *Entry and await its Done channel instead of
// starting a second download.
type Entry struct {
	meta      domain.TrackMetadata
	createdAt time.Time
	done      chan struct{}

	mu       sync.Mutex
	state    State
	path     string
	attempts int
	err      error
	refs     int
}

func newEntry(meta domain.TrackMetadata) *Entry {
	return &Entry{
		meta:      meta,
		createdAt: time.Now(),
		done:      make(chan struct{}),
		state:     StatePending,
	}
}

// Metadata returns the track metadata this entry was created with.
func (e *Entry) Metadata() domain.TrackMetadata {
	return e.meta
}

// Fingerprint returns the entry's cache key.
func (e *Entry) Fingerprint() domain.Fingerprint {
	return e.meta.Fingerprint
}

// Done is closed when the entry reaches a terminal state (ready or failed).
func (e *Entry) Done() <-chan struct{} {
	return e.done
}

// State returns the current download state.
func (e *Entry) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Path returns the local file path, empty until the download completes.
func (e *Entry) Path() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.path
}

// Err returns the terminal download error, if any.
func (e *Entry) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Attempts returns how many fetch attempts have been recorded.
func (e *Entry) Attempts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attempts
}

// StartAttempt transitions the entry to the downloading state and records
// one more fetch attempt.
func (e *Entry) StartAttempt() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = StateDownloading
	e.attempts++
}

// Acquire marks the entry as in use by a player. A referenced entry is never
// evicted, so the backing file outlives the playback that streams it.
func (e *Entry) Acquire() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refs++
}

// Release drops one playback reference.
func (e *Entry) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.refs > 0 {
		e.refs--
	}
}

// evictable reports whether the entry may be removed by eviction: terminal
// and not referenced by any player. Pending entries are protected too: the
// fetcher spawns the download goroutine as soon as the entry is created, so
// a pending entry already has waiters and a MarkReady on the way.
func (e *Entry) evictable() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return (e.state == StateReady || e.state == StateFailed) && e.refs == 0
}

// Ledger is the process-wide download ledger. All mutating operations
// serialize through a single mutex.
type Ledger struct {
	mu         sync.Mutex
	entries    map[domain.Fingerprint]*Entry
	maxEntries int
	ttl        time.Duration
}

// NewLedger creates a ledger bounded to maxEntries whose entries expire
// after ttl. maxEntries <= 0 means unbounded; ttl <= 0 disables expiry.
func NewLedger(maxEntries int, ttl time.Duration) *Ledger {
	return &Ledger{
		entries:    make(map[domain.Fingerprint]*Entry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

// Get returns the entry for the fingerprint, if present. Never blocks.
func (l *Ledger) Get(fp domain.Fingerprint) (*Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[fp]
	return entry, ok
}

// GetOrCreate returns the entry for the metadata's fingerprint, creating a
// pending one if absent. The second return value is true when the entry was
// created, in which case the caller must initiate the download; otherwise
// the caller awaits the existing entry's Done channel.
func (l *Ledger) GetOrCreate(meta domain.TrackMetadata) (*Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry, ok := l.entries[meta.Fingerprint]; ok {
		return entry, false
	}

	// Evict the single oldest evictable entry before growing past the
	// bound. If every entry is still in flight, allow temporary overflow
	// rather than corrupt an active download.
	if l.maxEntries > 0 && len(l.entries) >= l.maxEntries {
		if victim := l.oldestEvictableLocked(); victim != "" {
			l.removeLocked(victim)
		}
	}

	entry := newEntry(meta)
	l.entries[meta.Fingerprint] = entry
	return entry, true
}

// MarkReady records the completed download's file path and wakes all
// awaiting requesters.
func (l *Ledger) MarkReady(fp domain.Fingerprint, filePath string) {
	l.mu.Lock()
	entry, ok := l.entries[fp]
	l.mu.Unlock()
	if !ok {
		// The entry was removed while the download ran; unlink the file
		// so it does not linger on disk unowned.
		if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
			slog.Error("failed to remove unowned track file",
				"fingerprint", fp,
				"path", filePath,
				"error", err,
			)
		}
		return
	}

	entry.mu.Lock()
	entry.state = StateReady
	entry.path = filePath
	entry.mu.Unlock()
	close(entry.done)
}

// MarkFailed records a terminal download failure, wakes all awaiting
// requesters, and removes the entry so a later request can retry.
func (l *Ledger) MarkFailed(fp domain.Fingerprint, err error) {
	l.mu.Lock()
	entry, ok := l.entries[fp]
	if ok {
		delete(l.entries, fp)
	}
	l.mu.Unlock()
	if !ok {
		return
	}

	entry.mu.Lock()
	entry.state = StateFailed
	entry.err = err
	entry.mu.Unlock()
	close(entry.done)
}

// Remove deletes the entry's backing file and removes it from the ledger.
// An absent file or entry is not an error.
func (l *Ledger) Remove(fp domain.Fingerprint) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.removeLocked(fp)
}

// Len returns the number of ledger entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// EvictExpired removes entries older than the expiry window that are not
// downloading or referenced, deleting their backing files. Returns the
// number of evicted entries.
func (l *Ledger) EvictExpired() int {
	if l.ttl <= 0 {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().Add(-l.ttl)
	evicted := 0
	for fp, entry := range l.entries {
		if entry.createdAt.After(cutoff) || !entry.evictable() {
			continue
		}
		l.removeLocked(fp)
		evicted++
	}
	return evicted
}

// Run evicts expired entries on the given interval until ctx is cancelled.
// Errors in one pass are logged and do not stop subsequent passes.
func (l *Ledger) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.EvictExpired(); n > 0 {
				slog.Info("evicted expired cache entries", "count", n, "remaining", l.Len())
			}
		}
	}
}

// oldestEvictableLocked returns the fingerprint of the oldest entry that is
// safe to evict, or "" if none qualifies. Caller holds l.mu.
func (l *Ledger) oldestEvictableLocked() domain.Fingerprint {
	var victim domain.Fingerprint
	var oldest time.Time
	for fp, entry := range l.entries {
		if !entry.evictable() {
			continue
		}
		if victim == "" || entry.createdAt.Before(oldest) {
			victim = fp
			oldest = entry.createdAt
		}
	}
	return victim
}

// removeLocked unlinks the entry's backing file and drops it from the map.
// Caller holds l.mu.
func (l *Ledger) removeLocked(fp domain.Fingerprint) {
	entry, ok := l.entries[fp]
	if !ok {
		return
	}
	delete(l.entries, fp)

	path := entry.Path()
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		slog.Error("failed to remove cached track file",
			"fingerprint", fp,
			"path", path,
			"error", err,
		)
	}
}
