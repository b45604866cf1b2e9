package player

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// OccupancyChecker reports whether the bot is alone in its voice channel.
type OccupancyChecker interface {
	Alone(guildID snowflake.ID) bool
}

// Factory builds a Player for a guild. The registry uses it so each guild
// gets its own voice session.
type Factory func(guildID snowflake.ID) *Player

// Registry hands out one Player per guild and tears idle ones down when the
// bot ends up alone in a voice channel.
type Registry struct {
	mu      sync.Mutex
	players map[snowflake.ID]*Player
	factory Factory
}

// NewRegistry creates an empty registry using factory for new guilds.
func NewRegistry(factory Factory) *Registry {
	return &Registry{
		players: make(map[snowflake.ID]*Player),
		factory: factory,
	}
}

// Get returns the guild's player, creating it on first use.
func (r *Registry) Get(guildID snowflake.ID) *Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[guildID]
	if !ok {
		p = r.factory(guildID)
		r.players[guildID] = p
	}
	return p
}

// Lookup returns the guild's player without creating one.
func (r *Registry) Lookup(guildID snowflake.ID) (*Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[guildID]
	return p, ok
}

// StopAll stops every player. Used during shutdown.
func (r *Registry) StopAll() {
	r.mu.Lock()
	players := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, p)
	}
	r.mu.Unlock()

	for _, p := range players {
		if err := p.Stop(); err != nil {
			slog.Debug("player already stopped", "error", err)
		}
	}
}

// connected returns the players that currently hold a voice connection.
func (r *Registry) connected() map[snowflake.ID]*Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[snowflake.ID]*Player)
	for id, p := range r.players {
		if p.Connected() {
			out[id] = p
		}
	}
	return out
}

// WatchOccupancy polls connected guilds every interval and stops playback
// where the bot is the channel's only occupant. Blocks until ctx is done.
func (r *Registry) WatchOccupancy(ctx context.Context, checker OccupancyChecker, interval time.Duration, notify func(guildID snowflake.ID)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for guildID, p := range r.connected() {
				if !checker.Alone(guildID) {
					continue
				}
				slog.Info("alone in voice channel, stopping playback", "guild_id", guildID)
				if err := p.Stop(); err != nil {
					slog.Warn("failed to stop abandoned player", "guild_id", guildID, "error", err)
					continue
				}
				if notify != nil {
					notify(guildID)
				}
			}
		}
	}
}
