// Package voice owns the gateway voice connection for a guild and streams
// local audio files over it.
package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/jonas747/dca"

	"github.com/hhkim0505/aribot/internal/modules/music/domain"
)

const (
	connectAttempts = 3
	connectBackoff  = 500 * time.Millisecond
	encodeBitrate   = 96
)

// connectDelay grows the retry delay with each failed join attempt.
func connectDelay(attempt int) time.Duration {
	return connectBackoff * time.Duration(attempt)
}

// Session is one guild's voice connection plus the active audio stream.
// The player serializes Play calls; everything else may race with them.
type Session struct {
	discord *discordgo.Session
	guildID snowflake.ID

	mu          sync.Mutex
	vc          *discordgo.VoiceConnection
	channelID   snowflake.ID
	encode      *dca.EncodeSession
	stream      *dca.StreamingSession
	done        chan error
	out         chan error
	path        string
	volume      float64
	offset      time.Duration
	restartTo   time.Duration
	playing     bool
	interrupted bool
}

// NewSession creates a disconnected session for guildID.
func NewSession(discord *discordgo.Session, guildID snowflake.ID) *Session {
	return &Session{
		discord:   discord,
		guildID:   guildID,
		restartTo: -1,
	}
}

// Connect joins channelID, retrying transient gateway failures. Joining the
// channel the session is already in is a no-op; a different channel moves
// the connection.
func (s *Session) Connect(ctx context.Context, channelID snowflake.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vc != nil && s.channelID == channelID {
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		vc, err := s.discord.ChannelVoiceJoin(s.guildID.String(), channelID.String(), false, true)
		if err == nil {
			s.vc = vc
			s.channelID = channelID
			return nil
		}
		lastErr = err
		slog.Warn("voice join failed",
			"guild_id", s.guildID,
			"channel_id", channelID,
			"attempt", attempt,
			"error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(connectDelay(attempt)):
		}
	}
	return lastErr
}

// Play begins streaming the file at path. The returned channel delivers one
// value when the stream ends: nil for a natural finish or interrupt, an
// error for a stream fault. Volume restarts never complete the channel.
func (s *Session) Play(path string, volume float64) (<-chan error, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vc == nil {
		return nil, domain.ErrNotConnected
	}
	if s.playing {
		return nil, fmt.Errorf("a stream is already active")
	}

	s.path = path
	s.volume = volume
	s.offset = 0
	s.restartTo = -1
	s.interrupted = false
	if err := s.startEncodeLocked(); err != nil {
		return nil, err
	}
	out := make(chan error, 1)
	s.out = out
	s.playing = true
	go s.supervise()
	return out, nil
}

// startEncodeLocked spins up ffmpeg at the current offset/volume and wires
// the opus frames into the voice connection. Caller holds s.mu.
func (s *Session) startEncodeLocked() error {
	opts := *dca.StdEncodeOptions
	opts.RawOutput = true
	opts.Bitrate = encodeBitrate
	opts.Volume = dcaVolume(s.volume)
	opts.StartTime = int(s.offset.Seconds())

	encode, err := dca.EncodeFile(s.path, &opts)
	if err != nil {
		return fmt.Errorf("failed to start encoder: %w", err)
	}
	if err := s.vc.Speaking(true); err != nil {
		slog.Warn("failed to set speaking state", "guild_id", s.guildID, "error", err)
	}

	done := make(chan error, 1)
	s.encode = encode
	s.done = done
	s.stream = dca.NewStream(encode, s.vc, done)
	return nil
}

// supervise waits for the stream to end and either restarts it (volume
// change) or reports the outcome to the Play channel.
func (s *Session) supervise() {
	for {
		s.mu.Lock()
		done := s.done
		s.mu.Unlock()
		err := <-done

		s.mu.Lock()
		s.encode.Cleanup()
		if s.restartTo >= 0 && !s.interrupted {
			s.offset = s.restartTo
			s.restartTo = -1
			rerr := s.startEncodeLocked()
			if rerr == nil {
				s.mu.Unlock()
				continue
			}
			err = rerr
		}
		s.playing = false
		s.encode = nil
		s.stream = nil
		out := s.out
		interrupted := s.interrupted
		if s.vc != nil {
			if serr := s.vc.Speaking(false); serr != nil {
				slog.Debug("failed to clear speaking state", "guild_id", s.guildID, "error", serr)
			}
		}
		s.mu.Unlock()

		if interrupted || err == nil || errors.Is(err, io.EOF) {
			out <- nil
		} else {
			out <- err
		}
		return
	}
}

// Interrupt aborts the active stream. The Play channel completes with nil.
func (s *Session) Interrupt() {
	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		return
	}
	s.interrupted = true
	encode := s.encode
	s.mu.Unlock()
	if encode != nil {
		encode.Cleanup()
	}
}

// Pause suspends frame delivery, keeping the encoder alive.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return domain.ErrNotPlaying
	}
	s.stream.SetPaused(true)
	return nil
}

// Resume continues a paused stream.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return domain.ErrNotPlaying
	}
	s.stream.SetPaused(false)
	return nil
}

// SetVolume applies a new volume to the live stream. ffmpeg bakes volume
// into the encode, so the stream restarts from its current position.
func (s *Session) SetVolume(volume float64) error {
	s.mu.Lock()
	if !s.playing {
		s.volume = volume
		s.mu.Unlock()
		return nil
	}
	pos := s.offset
	if s.stream != nil {
		pos += s.stream.PlaybackPosition()
	}
	s.volume = volume
	s.restartTo = pos
	encode := s.encode
	s.mu.Unlock()
	if encode != nil {
		encode.Cleanup()
	}
	return nil
}

// Position reports how far into the current track the stream is.
func (s *Session) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos := s.offset
	if s.stream != nil {
		pos += s.stream.PlaybackPosition()
	}
	return pos
}

// Disconnect aborts any stream and leaves the voice channel.
func (s *Session) Disconnect() error {
	s.Interrupt()
	s.mu.Lock()
	vc := s.vc
	s.vc = nil
	s.channelID = 0
	s.mu.Unlock()
	if vc == nil {
		return nil
	}
	return vc.Disconnect()
}

// Connected reports whether the session holds a live voice connection.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vc != nil
}

// ChannelID returns the joined channel, if any.
func (s *Session) ChannelID() (snowflake.ID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.channelID, s.vc != nil
}

// dcaVolume maps the user-facing 0.0-2.0 scale onto dca's 0-512 range,
// where 256 is unity gain.
func dcaVolume(volume float64) int {
	v := int(volume * 256)
	if v < 0 {
		v = 0
	}
	if v > 512 {
		v = 512
	}
	return v
}
