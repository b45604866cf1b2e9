package presentation

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"

	"github.com/hhkim0505/aribot/internal/modules/music/domain"
	"github.com/hhkim0505/aribot/internal/modules/music/player"
)

// DiscordNotifier posts player events to each guild's notification channel:
// the text channel the most recent play command came from.
type DiscordNotifier struct {
	session *discordgo.Session

	mu       sync.Mutex
	channels map[snowflake.ID]snowflake.ID
	messages map[snowflake.ID]string // guild -> last now-playing message ID
}

// NewDiscordNotifier creates a notifier posting through session.
func NewDiscordNotifier(session *discordgo.Session) *DiscordNotifier {
	return &DiscordNotifier{
		session:  session,
		channels: make(map[snowflake.ID]snowflake.ID),
		messages: make(map[snowflake.ID]string),
	}
}

// SetChannel records where the guild's notifications should go.
func (n *DiscordNotifier) SetChannel(guildID, channelID snowflake.ID) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.channels[guildID] = channelID
}

func (n *DiscordNotifier) channel(guildID snowflake.ID) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	channelID, ok := n.channels[guildID]
	return channelID.String(), ok
}

// NowPlaying replaces the guild's now-playing message with one for entry.
func (n *DiscordNotifier) NowPlaying(guildID snowflake.ID, entry domain.QueueEntry, loop domain.LoopMode, volume float64) {
	channelID, ok := n.channel(guildID)
	if !ok {
		return
	}

	n.ClearNowPlaying(guildID)

	embed := nowPlayingEmbed(entry, player.Snapshot{
		Current:  &entry,
		LoopMode: loop,
		Volume:   volume,
	})
	msg, err := n.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{embed},
		Components: controlButtons(false),
	})
	if err != nil {
		slog.Warn("failed to send now-playing message", "guild_id", guildID, "error", err)
		return
	}

	n.mu.Lock()
	n.messages[guildID] = msg.ID
	n.mu.Unlock()
}

// ClearNowPlaying deletes the guild's last now-playing message, if any.
func (n *DiscordNotifier) ClearNowPlaying(guildID snowflake.ID) {
	n.mu.Lock()
	messageID, ok := n.messages[guildID]
	delete(n.messages, guildID)
	n.mu.Unlock()
	if !ok {
		return
	}

	channelID, ok := n.channel(guildID)
	if !ok {
		return
	}
	if err := n.session.ChannelMessageDelete(channelID, messageID); err != nil {
		slog.Debug("failed to delete now-playing message", "guild_id", guildID, "error", err)
	}
}

// TrackFailed announces that a track was dropped.
func (n *DiscordNotifier) TrackFailed(guildID snowflake.ID, meta domain.TrackMetadata, err error) {
	n.send(guildID, fmt.Sprintf("Skipping **%s**: %s", meta.Title, err), colorError)
}

// PlaybackHalted announces that the player tore itself down.
func (n *DiscordNotifier) PlaybackHalted(guildID snowflake.ID, reason string) {
	n.ClearNowPlaying(guildID)
	n.send(guildID, "Playback halted: "+reason, colorError)
}

// QueueDrained announces that the queue ran out.
func (n *DiscordNotifier) QueueDrained(guildID snowflake.ID) {
	n.ClearNowPlaying(guildID)
	n.send(guildID, "Queue finished.", colorInfo)
}

// LeftAlone announces that the bot left an empty voice channel.
func (n *DiscordNotifier) LeftAlone(guildID snowflake.ID) {
	n.ClearNowPlaying(guildID)
	n.send(guildID, "Everyone left, so I stopped playing.", colorInfo)
}

func (n *DiscordNotifier) send(guildID snowflake.ID, message string, color int) {
	channelID, ok := n.channel(guildID)
	if !ok {
		return
	}
	_, err := n.session.ChannelMessageSendEmbed(channelID, &discordgo.MessageEmbed{
		Description: message,
		Color:       color,
	})
	if err != nil {
		slog.Warn("failed to send notification", "guild_id", guildID, "error", err)
	}
}
