// Package player implements the per-guild playback state machine: a bounded
// queue, loop modes, volume, and an advance loop that streams cached tracks
// through a voice session until the queue drains or playback is stopped.
package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/hhkim0505/aribot/internal/modules/music/cache"
	"github.com/hhkim0505/aribot/internal/modules/music/domain"
)

// State is the lifecycle phase of a guild's player.
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePlaying
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StatePlaying:
		return "playing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Resolver turns a raw query into track metadata.
type Resolver interface {
	Resolve(ctx context.Context, query string) (domain.TrackMetadata, error)
}

// Fetcher hands out the cache entry for a track, starting a download when
// none is in flight.
type Fetcher interface {
	Fetch(ctx context.Context, meta domain.TrackMetadata) *cache.Entry
}

// VoiceSession is the guild's gateway voice connection and audio stream.
type VoiceSession interface {
	// Connect joins (or moves to) the given voice channel.
	Connect(ctx context.Context, channelID snowflake.ID) error
	// Play starts streaming the file at path. The returned channel delivers
	// exactly one value: nil when the track ends on its own, an error when
	// streaming fails. Interrupt() also completes the channel with nil.
	Play(path string, volume float64) (<-chan error, error)
	// Interrupt aborts the current stream, if any.
	Interrupt()
	Pause() error
	Resume() error
	SetVolume(volume float64) error
	Position() time.Duration
	Disconnect() error
	Connected() bool
	ChannelID() (snowflake.ID, bool)
}

// Notifier pushes player events back to the guild's text surface.
type Notifier interface {
	NowPlaying(guildID snowflake.ID, entry domain.QueueEntry, loop domain.LoopMode, volume float64)
	TrackFailed(guildID snowflake.ID, meta domain.TrackMetadata, err error)
	PlaybackHalted(guildID snowflake.ID, reason string)
	QueueDrained(guildID snowflake.ID)
}

const (
	// readyTimeout bounds how long the advance loop waits for a track's
	// download to complete before treating it as failed.
	readyTimeout = 30 * time.Second

	// errorThreshold consecutive-ish failures within errorWindow tear the
	// player down instead of grinding through a broken queue.
	errorThreshold = 3
	errorWindow    = 5 * time.Minute
)

// Options configures a new Player.
type Options struct {
	QueueSize        int
	MaxTrackDuration time.Duration
	DefaultVolume    float64
}

// Player owns one guild's playback. All exported methods are safe for
// concurrent use; the advance loop is the only goroutine that streams.
type Player struct {
	guildID  snowflake.ID
	resolver Resolver
	fetcher  Fetcher
	voice    VoiceSession
	notifier Notifier

	maxTrackDuration time.Duration
	defaultVolume    float64

	mu       sync.Mutex
	state    State
	queue    domain.Queue
	current  *domain.QueueEntry
	held     *cache.Entry
	loopMode domain.LoopMode
	volume   float64
	paused   bool
	errTimes []time.Time

	// skipCh is replaced for every track the advance loop picks; Skip
	// posts to it so a track can be abandoned while its download is still
	// pending.
	skipCh chan struct{}

	loopCtx    context.Context
	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

// New creates an idle player for guildID.
func New(guildID snowflake.ID, resolver Resolver, fetcher Fetcher, voice VoiceSession, notifier Notifier, opts Options) *Player {
	return &Player{
		guildID:          guildID,
		resolver:         resolver,
		fetcher:          fetcher,
		voice:            voice,
		notifier:         notifier,
		maxTrackDuration: opts.MaxTrackDuration,
		defaultVolume:    opts.DefaultVolume,
		queue:            domain.NewQueue(opts.QueueSize),
		volume:           opts.DefaultVolume,
	}
}

// EnqueueResult describes where a requested track landed.
type EnqueueResult struct {
	Entry    domain.QueueEntry
	Position int // 0 when the track starts immediately
}

// Enqueue resolves query, appends the track, and starts playback when the
// player is idle. The track's download begins immediately regardless of
// queue position.
func (p *Player) Enqueue(ctx context.Context, query string, requesterID, voiceChannelID snowflake.ID) (EnqueueResult, error) {
	meta, err := p.resolver.Resolve(ctx, query)
	if err != nil {
		return EnqueueResult{}, err
	}
	return p.EnqueueResolved(ctx, meta, requesterID, voiceChannelID)
}

// EnqueueResolved enqueues a track whose metadata is already known, e.g. a
// pick from search results.
func (p *Player) EnqueueResolved(ctx context.Context, meta domain.TrackMetadata, requesterID, voiceChannelID snowflake.ID) (EnqueueResult, error) {
	if p.maxTrackDuration > 0 && meta.Duration > p.maxTrackDuration {
		return EnqueueResult{}, fmt.Errorf("%w: %s exceeds %s", domain.ErrTrackTooLong, meta.FormattedDuration(), p.maxTrackDuration)
	}

	entry := domain.NewQueueEntry(meta, requesterID)

	p.mu.Lock()
	if err := p.queue.Append(entry); err != nil {
		p.mu.Unlock()
		return EnqueueResult{}, err
	}
	position := p.queue.Len()
	startLoop := p.state == StateIdle || p.state == StateStopped
	if startLoop {
		p.state = StateLoading
	}
	p.mu.Unlock()

	// Prefetch: the download must not wait for the track's turn.
	p.fetcher.Fetch(ctx, meta)

	if startLoop {
		if err := p.voice.Connect(ctx, voiceChannelID); err != nil {
			p.mu.Lock()
			p.state = StateIdle
			p.queue.RemoveByFingerprint(meta.Fingerprint)
			p.mu.Unlock()
			return EnqueueResult{}, fmt.Errorf("%w: %v", domain.ErrVoiceConnection, err)
		}
		p.startLoop()
		position = 0
	}

	return EnqueueResult{Entry: entry, Position: position}, nil
}

// startLoop launches the advance loop. Caller must have set state to Loading.
func (p *Player) startLoop() {
	p.mu.Lock()
	ctx, cancel := context.WithCancel(context.Background())
	p.loopCtx, p.loopCancel = ctx, cancel
	p.loopDone = make(chan struct{})
	done := p.loopDone
	p.mu.Unlock()

	go func() {
		defer close(done)
		p.run(ctx)
	}()
}

// run is the advance loop: pick the next track, wait for its file, stream
// it, repeat. It exits when the queue drains or the player is stopped.
func (p *Player) run(ctx context.Context) {
	for {
		p.mu.Lock()
		if p.state == StateStopped {
			p.mu.Unlock()
			return
		}

		var next domain.QueueEntry
		switch {
		case p.loopMode == domain.LoopModeTrack && p.current != nil:
			next = *p.current
		default:
			if p.loopMode == domain.LoopModeQueue && p.current != nil {
				// Recycle the finished track to the back. A full queue
				// drops it instead: pushing it to the front would replay
				// it immediately and starve everything else queued.
				if err := p.queue.Append(*p.current); err != nil {
					slog.Warn("queue loop dropped finished track",
						"guild_id", p.guildID,
						"title", p.current.Metadata.Title,
						"error", err)
				}
			}
			popped := p.queue.PopFront()
			if popped == nil {
				p.current = nil
				p.state = StateIdle
				p.mu.Unlock()
				p.releaseHeld()
				p.notifier.QueueDrained(p.guildID)
				return
			}
			next = *popped
		}
		p.current = &next
		p.state = StateLoading
		p.paused = false
		skip := make(chan struct{}, 1)
		p.skipCh = skip
		p.mu.Unlock()

		if err := p.playOne(ctx, next, skip); err != nil {
			if errors.Is(err, domain.ErrPlayerStopped) {
				return
			}
			slog.Error("track playback failed",
				"guild_id", p.guildID,
				"title", next.Metadata.Title,
				"error", err)
			p.notifier.TrackFailed(p.guildID, next.Metadata, err)
			if errors.Is(err, domain.ErrDownload) {
				// Queued duplicates would re-run the failing download
				// and burn another strike; drop them now.
				p.mu.Lock()
				removed := p.queue.RemoveByFingerprint(next.Metadata.Fingerprint)
				p.mu.Unlock()
				if removed > 0 {
					slog.Info("dropped queued duplicates of failed track",
						"guild_id", p.guildID,
						"title", next.Metadata.Title,
						"count", removed)
				}
			}
			if p.tripErrorBreaker() {
				p.notifier.PlaybackHalted(p.guildID, "too many playback errors")
				p.halt()
				return
			}
			// Loop modes must not replay a broken track forever.
			p.mu.Lock()
			p.current = nil
			p.mu.Unlock()
		}
	}
}

// playOne waits for the track's file and streams it to completion. A nil
// return means the track ended naturally or was skipped.
func (p *Player) playOne(ctx context.Context, entry domain.QueueEntry, skip <-chan struct{}) error {
	cached := p.fetcher.Fetch(ctx, entry.Metadata)
	select {
	case <-cached.Done():
	case <-skip:
		return nil
	case <-time.After(readyTimeout):
		return fmt.Errorf("%w: track not ready after %s", domain.ErrDownload, readyTimeout)
	case <-ctx.Done():
		return domain.ErrPlayerStopped
	}
	if err := cached.Err(); err != nil {
		return err
	}

	// Pin the file so cache eviction cannot delete it mid-stream.
	cached.Acquire()
	p.mu.Lock()
	p.held = cached
	volume := p.volume
	p.mu.Unlock()
	defer p.releaseHeld()

	stream, err := p.voice.Play(cached.Path(), volume)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPlayback, err)
	}

	p.mu.Lock()
	p.state = StatePlaying
	p.mu.Unlock()
	p.notifier.NowPlaying(p.guildID, entry, p.LoopMode(), volume)

	select {
	case err := <-stream:
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrPlayback, err)
		}
		return nil
	case <-skip:
		// Skip landed between the download finishing and the stream
		// starting; abort the stream instead of letting the track play.
		p.voice.Interrupt()
		<-stream
		return nil
	case <-ctx.Done():
		p.voice.Interrupt()
		<-stream
		return domain.ErrPlayerStopped
	}
}

func (p *Player) releaseHeld() {
	p.mu.Lock()
	held := p.held
	p.held = nil
	p.mu.Unlock()
	if held != nil {
		held.Release()
	}
}

// tripErrorBreaker records a failure and reports whether the error budget
// for the window is exhausted.
func (p *Player) tripErrorBreaker() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	kept := p.errTimes[:0]
	for _, t := range p.errTimes {
		if now.Sub(t) < errorWindow {
			kept = append(kept, t)
		}
	}
	p.errTimes = append(kept, now)
	return len(p.errTimes) >= errorThreshold
}

// Skip aborts the current track, whether it is already streaming or still
// waiting on its download; the advance loop picks the next one. Under track
// loop the same track starts over.
func (p *Player) Skip() (domain.QueueEntry, error) {
	p.mu.Lock()
	if (p.state != StatePlaying && p.state != StateLoading) || p.current == nil {
		p.mu.Unlock()
		return domain.QueueEntry{}, domain.ErrNotPlaying
	}
	skipped := *p.current
	skip := p.skipCh
	p.mu.Unlock()

	if skip != nil {
		select {
		case skip <- struct{}{}:
		default:
		}
	}
	p.voice.Interrupt()
	return skipped, nil
}

// Stop halts playback, clears the queue, and disconnects from voice. It
// returns once the advance loop has wound down.
func (p *Player) Stop() error {
	p.mu.Lock()
	if p.state == StateIdle || p.state == StateStopped {
		p.resetLocked()
		connected := p.voice.Connected()
		p.mu.Unlock()
		if !connected {
			return domain.ErrNotPlaying
		}
		return p.voice.Disconnect()
	}
	p.resetLocked()
	cancel := p.loopCancel
	done := p.loopDone
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	return p.voice.Disconnect()
}

// resetLocked puts the player back to its post-construction defaults,
// marking it stopped. Caller holds p.mu.
func (p *Player) resetLocked() {
	p.state = StateStopped
	p.queue.Clear()
	p.current = nil
	p.loopMode = domain.LoopModeOff
	p.volume = p.defaultVolume
	p.paused = false
}

// halt is Stop for use inside the advance loop itself: it tears the player
// down without waiting on the loop's own completion.
func (p *Player) halt() {
	p.mu.Lock()
	p.resetLocked()
	cancel := p.loopCancel
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if err := p.voice.Disconnect(); err != nil {
		slog.Warn("voice disconnect failed during halt", "guild_id", p.guildID, "error", err)
	}
}

// Pause suspends the current stream without losing position.
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StatePlaying {
		return domain.ErrNotPlaying
	}
	if p.paused {
		return domain.ErrAlreadyPaused
	}
	if err := p.voice.Pause(); err != nil {
		return err
	}
	p.paused = true
	return nil
}

// Resume continues a paused stream.
func (p *Player) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StatePlaying {
		return domain.ErrNotPlaying
	}
	if !p.paused {
		return domain.ErrNotPaused
	}
	if err := p.voice.Resume(); err != nil {
		return err
	}
	p.paused = false
	return nil
}

// TogglePause flips between paused and playing and reports the new paused
// state.
func (p *Player) TogglePause() (bool, error) {
	p.mu.Lock()
	paused := p.paused
	p.mu.Unlock()
	if paused {
		return false, p.Resume()
	}
	return true, p.Pause()
}

// SetVolume updates the playback volume, applying it to the live stream.
// Valid range is 0.0 through 2.0.
func (p *Player) SetVolume(volume float64) error {
	if volume < 0 || volume > 2 {
		return fmt.Errorf("%w: %.2f is not within [0, 2]", domain.ErrInvalidVolume, volume)
	}
	p.mu.Lock()
	p.volume = volume
	playing := p.state == StatePlaying
	p.mu.Unlock()
	if playing {
		return p.voice.SetVolume(volume)
	}
	return nil
}

// ToggleLoop advances the loop mode off -> track -> queue -> off and
// returns the new mode.
func (p *Player) ToggleLoop() domain.LoopMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loopMode = p.loopMode.Cycle()
	return p.loopMode
}

// ClearQueue drops all pending tracks, leaving the current one playing.
// Returns how many tracks were dropped.
func (p *Player) ClearQueue() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.queue.Len()
	p.queue.Clear()
	return n
}

// Shuffle randomizes the pending queue. The current track is unaffected.
func (p *Player) Shuffle() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.Shuffle()
}

// Move relocates the track at position from to position to (1-based).
func (p *Player) Move(from, to int) (domain.QueueEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, err := p.queue.Move(from, to)
	if err != nil {
		return domain.QueueEntry{}, err
	}
	return *entry, nil
}

// RemoveAt drops the track at the given 1-based queue position.
func (p *Player) RemoveAt(position int) (domain.QueueEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, err := p.queue.RemoveAt(position)
	if err != nil {
		return domain.QueueEntry{}, err
	}
	return *entry, nil
}

// Snapshot is a point-in-time view of the player for display.
type Snapshot struct {
	State         State
	Current       *domain.QueueEntry
	Position      time.Duration
	Queue         []domain.QueueEntry
	QueueDuration time.Duration
	LoopMode      domain.LoopMode
	Volume        float64
	Paused        bool
}

// Snapshot returns the player's current status and queue contents.
func (p *Player) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap := Snapshot{
		State:         p.state,
		Queue:         p.queue.List(),
		QueueDuration: p.queue.TotalDuration(),
		LoopMode:      p.loopMode,
		Volume:        p.volume,
		Paused:        p.paused,
	}
	if p.current != nil {
		current := *p.current
		snap.Current = &current
		if p.state == StatePlaying {
			snap.Position = p.voice.Position()
		}
	}
	return snap
}

// State reports the player's lifecycle phase.
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// LoopMode reports the active loop mode.
func (p *Player) LoopMode() domain.LoopMode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loopMode
}

// Connected reports whether the player holds a live voice connection.
func (p *Player) Connected() bool {
	return p.voice.Connected()
}

// VoiceChannel returns the channel the player is connected to, if any.
func (p *Player) VoiceChannel() (snowflake.ID, bool) {
	return p.voice.ChannelID()
}
