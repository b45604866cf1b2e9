// Package music provides streaming music playback: per-guild queues, a
// shared download cache, and voice-channel lifecycle management.
package music

import (
	"context"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/caarlos0/env/v11"
	"github.com/disgoorg/snowflake/v2"

	"github.com/hhkim0505/aribot/internal/bot"
	"github.com/hhkim0505/aribot/internal/modules/music/cache"
	"github.com/hhkim0505/aribot/internal/modules/music/pipeline"
	"github.com/hhkim0505/aribot/internal/modules/music/player"
	"github.com/hhkim0505/aribot/internal/modules/music/presentation"
	"github.com/hhkim0505/aribot/internal/modules/music/voice"
)

func init() {
	bot.Register(&Module{})
}

// Compile-time interface checks.
var _ bot.ConfigurableModule = (*Module)(nil)

// Module provides music playback commands.
type Module struct {
	config   *Config
	ledger   *cache.Ledger
	registry *player.Registry
	notifier *presentation.DiscordNotifier
	handlers *presentation.Handlers

	// Background loops: cache sweeper and occupancy watcher.
	ctx    context.Context
	cancel context.CancelFunc
}

// Name returns the module name.
func (m *Module) Name() string {
	return "music"
}

// Commands returns the slash commands for this module.
func (m *Module) Commands() []*discordgo.ApplicationCommand {
	return presentation.Commands()
}

// CommandHandlers returns the command handlers for this module.
func (m *Module) CommandHandlers() map[string]bot.InteractionHandler {
	return map[string]bot.InteractionHandler{
		"play":       m.handlers.HandlePlay,
		"search":     m.handlers.HandleSearch,
		"skip":       m.handlers.HandleSkip,
		"stop":       m.handlers.HandleStop,
		"pause":      m.handlers.HandlePause,
		"resume":     m.handlers.HandleResume,
		"nowplaying": m.handlers.HandleNowPlaying,
		"loop":       m.handlers.HandleLoop,
		"volume":     m.handlers.HandleVolume,
		"queue":      m.handlers.HandleQueue,
	}
}

// EventHandlers returns the event handlers for this module.
func (m *Module) EventHandlers() []bot.EventHandler {
	return []bot.EventHandler{
		func(s *discordgo.Session, i *discordgo.InteractionCreate) {
			m.handleInteractionCreate(s, i)
		},
	}
}

// LoadConfig loads module-specific configuration from environment variables.
func (m *Module) LoadConfig() error {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return err
	}
	m.config = cfg
	return nil
}

// Init initializes the module.
func (m *Module) Init(deps bot.ModuleDependencies) error {
	if deps.Session == nil {
		slog.Warn("music module initialized without session, playback disabled")
		return nil
	}

	m.ctx, m.cancel = context.WithCancel(context.Background())

	downloader, err := pipeline.NewDownloader(m.config.CacheDir)
	if err != nil {
		return err
	}
	m.ledger = cache.NewLedger(m.config.CacheMaxEntries, m.config.CacheTTL)
	fetcher := pipeline.NewFetcher(m.ledger, downloader)
	resolver := pipeline.NewResolver(m.config.ResolveTimeout)

	m.notifier = presentation.NewDiscordNotifier(deps.Session)
	m.registry = player.NewRegistry(func(guildID snowflake.ID) *player.Player {
		return player.New(
			guildID,
			resolver,
			fetcher,
			voice.NewSession(deps.Session, guildID),
			m.notifier,
			player.Options{
				QueueSize:        m.config.QueueSize,
				MaxTrackDuration: m.config.MaxTrackDuration,
				DefaultVolume:    m.config.DefaultVolume,
			},
		)
	})
	m.handlers = presentation.NewHandlers(m.registry, resolver, m.notifier)

	occupancy := voice.NewOccupancy(deps.Session.State)
	go m.registry.WatchOccupancy(m.ctx, occupancy, m.config.OccupancyInterval, m.notifier.LeftAlone)
	go m.ledger.Run(m.ctx, m.config.CacheSweepInterval)

	slog.Info("music module initialized",
		"cache_dir", m.config.CacheDir,
		"cache_max_entries", m.config.CacheMaxEntries)

	return nil
}

// Shutdown stops all players and background loops.
func (m *Module) Shutdown() error {
	if m.cancel != nil {
		m.cancel()
	}
	if m.registry != nil {
		m.registry.StopAll()
	}
	return nil
}

// handleInteractionCreate routes component interactions (buttons and search
// menus) that the command dispatcher does not cover.
func (m *Module) handleInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if m.handlers == nil || i.Type != discordgo.InteractionMessageComponent {
		return
	}
	customID := i.MessageComponentData().CustomID
	if !presentation.OwnsComponent(customID) {
		return
	}

	responder := bot.NewDiscordResponder(s, i.Interaction)
	if err := m.handlers.HandleComponent(s, i, responder); err != nil {
		slog.Error("component interaction failed",
			"custom_id", customID,
			"error", err)
	}
}
