// Package presentation translates Discord interactions into player
// operations and renders the results as embeds.
package presentation

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"

	"github.com/hhkim0505/aribot/internal/bot"
	"github.com/hhkim0505/aribot/internal/modules/music/domain"
	"github.com/hhkim0505/aribot/internal/modules/music/player"
)

// Embed colors.
const (
	colorSuccess = 0x08c404
	colorError   = 0xE74C3C
	colorInfo    = 0x3498DB
)

const queuePageSize = 10

// Searcher returns candidate tracks for a plain-text query.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]domain.TrackMetadata, error)
}

// Handlers holds all the command handlers for the music module.
type Handlers struct {
	registry *player.Registry
	searcher Searcher
	notifier *DiscordNotifier
	searches *pendingSearches
	limiter  *rateLimiter
}

// NewHandlers creates new Handlers.
func NewHandlers(registry *player.Registry, searcher Searcher, notifier *DiscordNotifier) *Handlers {
	return &Handlers{
		registry: registry,
		searcher: searcher,
		notifier: notifier,
		searches: newPendingSearches(),
		limiter:  newRateLimiter(),
	}
}

// interactionIDs are the snowflakes every guild command needs.
type interactionIDs struct {
	guildID   snowflake.ID
	userID    snowflake.ID
	channelID snowflake.ID
}

func parseIDs(i *discordgo.InteractionCreate) (interactionIDs, error) {
	if i.Member == nil || i.Member.User == nil {
		return interactionIDs{}, fmt.Errorf("interaction outside a guild")
	}
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return interactionIDs{}, fmt.Errorf("invalid guild id: %w", err)
	}
	userID, err := snowflake.Parse(i.Member.User.ID)
	if err != nil {
		return interactionIDs{}, fmt.Errorf("invalid user id: %w", err)
	}
	channelID, err := snowflake.Parse(i.ChannelID)
	if err != nil {
		return interactionIDs{}, fmt.Errorf("invalid channel id: %w", err)
	}
	return interactionIDs{guildID: guildID, userID: userID, channelID: channelID}, nil
}

// userVoiceChannel finds the voice channel the invoking user occupies, and
// enforces that it matches the bot's channel when the bot is connected.
func (h *Handlers) userVoiceChannel(s *discordgo.Session, ids interactionIDs) (snowflake.ID, error) {
	vs, err := s.State.VoiceState(ids.guildID.String(), ids.userID.String())
	if err != nil || vs == nil || vs.ChannelID == "" {
		return 0, domain.ErrUserNotInVoice
	}
	channelID, err := snowflake.Parse(vs.ChannelID)
	if err != nil {
		return 0, domain.ErrUserNotInVoice
	}
	if p, ok := h.registry.Lookup(ids.guildID); ok {
		if botChannel, connected := p.VoiceChannel(); connected && botChannel != channelID {
			return 0, domain.ErrUserNotInVoice
		}
	}
	return channelID, nil
}

// HandlePlay handles the /play command.
func (h *Handlers) HandlePlay(s *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder) error {
	ids, err := parseIDs(i)
	if err != nil {
		return respondError(r, "This command only works in a server.")
	}
	if !h.limiter.allow(ids.userID) {
		return respondError(r, "Slow down - at most 5 play requests per minute.")
	}

	voiceChannelID, err := h.userVoiceChannel(s, ids)
	if err != nil {
		return respondError(r, err.Error())
	}

	var query string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "query" {
			query = opt.StringValue()
		}
	}
	if strings.TrimSpace(query) == "" {
		return respondError(r, "Give me something to play.")
	}

	// Resolution can take several seconds; acknowledge first. The
	// confirmation is ephemeral so it does not pile up in the channel;
	// the persistent status lives on the now-playing message.
	if err := r.Defer(true); err != nil {
		return err
	}

	h.notifier.SetChannel(ids.guildID, ids.channelID)
	result, err := h.registry.Get(ids.guildID).Enqueue(context.Background(), query, ids.userID, voiceChannelID)
	if err != nil {
		return followupError(r, err.Error())
	}
	return followupEnqueued(r, result)
}

// HandleSearch handles the /search command: it presents the top results in
// a select menu and enqueues whichever the user picks.
func (h *Handlers) HandleSearch(s *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder) error {
	ids, err := parseIDs(i)
	if err != nil {
		return respondError(r, "This command only works in a server.")
	}

	voiceChannelID, err := h.userVoiceChannel(s, ids)
	if err != nil {
		return respondError(r, err.Error())
	}

	var query string
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "query" {
			query = opt.StringValue()
		}
	}
	if strings.TrimSpace(query) == "" {
		return respondError(r, "Give me something to search for.")
	}

	// The menu is usable only by the requester, so keep it ephemeral too.
	if err := r.Defer(true); err != nil {
		return err
	}

	results, err := h.searcher.Search(context.Background(), query, maxSearchResults)
	if err != nil {
		return followupError(r, err.Error())
	}

	token := h.searches.add(pendingSearch{
		results:        results,
		requesterID:    ids.userID,
		voiceChannelID: voiceChannelID,
		textChannelID:  ids.channelID,
	})
	return r.Followup(&discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{
			{
				Title:       "Search results",
				Description: fmt.Sprintf("Results for **%s** - pick one below.", query),
				Color:       colorInfo,
			},
		},
		Components: []discordgo.MessageComponent{searchMenu(token, results), searchCancelRow(token)},
		Flags:      discordgo.MessageFlagsEphemeral,
	})
}

// HandleSkip handles the /skip command.
func (h *Handlers) HandleSkip(s *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder) error {
	ids, err := parseIDs(i)
	if err != nil {
		return respondError(r, "This command only works in a server.")
	}
	if _, err := h.userVoiceChannel(s, ids); err != nil {
		return respondError(r, err.Error())
	}

	skipped, err := h.registry.Get(ids.guildID).Skip()
	if err != nil {
		return respondError(r, err.Error())
	}
	return respondEmbed(r, fmt.Sprintf("Skipped [%s](%s).", skipped.Metadata.Title, skipped.Metadata.SourceURL), colorSuccess)
}

// HandleStop handles the /stop command.
func (h *Handlers) HandleStop(s *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder) error {
	ids, err := parseIDs(i)
	if err != nil {
		return respondError(r, "This command only works in a server.")
	}
	if _, err := h.userVoiceChannel(s, ids); err != nil {
		return respondError(r, err.Error())
	}

	if err := h.registry.Get(ids.guildID).Stop(); err != nil {
		return respondError(r, err.Error())
	}
	h.notifier.ClearNowPlaying(ids.guildID)
	return respondEmbed(r, "Stopped playback and left the voice channel.", colorSuccess)
}

// HandlePause handles the /pause command.
func (h *Handlers) HandlePause(s *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder) error {
	ids, err := parseIDs(i)
	if err != nil {
		return respondError(r, "This command only works in a server.")
	}
	if _, err := h.userVoiceChannel(s, ids); err != nil {
		return respondError(r, err.Error())
	}

	if err := h.registry.Get(ids.guildID).Pause(); err != nil {
		return respondError(r, err.Error())
	}
	return respondEmbed(r, "Paused playback.", colorSuccess)
}

// HandleResume handles the /resume command.
func (h *Handlers) HandleResume(s *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder) error {
	ids, err := parseIDs(i)
	if err != nil {
		return respondError(r, "This command only works in a server.")
	}
	if _, err := h.userVoiceChannel(s, ids); err != nil {
		return respondError(r, err.Error())
	}

	if err := h.registry.Get(ids.guildID).Resume(); err != nil {
		return respondError(r, err.Error())
	}
	return respondEmbed(r, "Resumed playback.", colorSuccess)
}

// HandleNowPlaying handles the /nowplaying command.
func (h *Handlers) HandleNowPlaying(_ *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder) error {
	ids, err := parseIDs(i)
	if err != nil {
		return respondError(r, "This command only works in a server.")
	}

	p, ok := h.registry.Lookup(ids.guildID)
	if !ok {
		return respondError(r, domain.ErrNotPlaying.Error())
	}
	snap := p.Snapshot()
	if snap.Current == nil {
		return respondError(r, domain.ErrNotPlaying.Error())
	}
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds:     []*discordgo.MessageEmbed{nowPlayingEmbed(*snap.Current, snap)},
			Components: controlButtons(snap.Paused),
		},
	})
}

// HandleLoop handles the /loop command.
func (h *Handlers) HandleLoop(_ *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder) error {
	ids, err := parseIDs(i)
	if err != nil {
		return respondError(r, "This command only works in a server.")
	}
	mode := h.registry.Get(ids.guildID).ToggleLoop()
	return respondEmbed(r, loopModeMessage(mode), colorSuccess)
}

// HandleVolume handles the /volume command.
func (h *Handlers) HandleVolume(s *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder) error {
	ids, err := parseIDs(i)
	if err != nil {
		return respondError(r, "This command only works in a server.")
	}
	if _, err := h.userVoiceChannel(s, ids); err != nil {
		return respondError(r, err.Error())
	}

	var percent int64
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "percent" {
			percent = opt.IntValue()
		}
	}

	if err := h.registry.Get(ids.guildID).SetVolume(float64(percent) / 100); err != nil {
		return respondError(r, err.Error())
	}
	return respondEmbed(r, fmt.Sprintf("Volume set to %d%%.", percent), colorSuccess)
}

// HandleQueue handles the /queue command.
func (h *Handlers) HandleQueue(s *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder) error {
	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		return respondError(r, "Invalid subcommand")
	}

	subCmd := options[0]
	switch subCmd.Name {
	case "list":
		return h.handleQueueList(i, r, subCmd.Options)
	case "remove":
		return h.handleQueueRemove(s, i, r, subCmd.Options)
	case "move":
		return h.handleQueueMove(s, i, r, subCmd.Options)
	case "shuffle":
		return h.handleQueueShuffle(s, i, r)
	case "clear":
		return h.handleQueueClear(s, i, r)
	default:
		return respondError(r, "Unknown subcommand")
	}
}

func (h *Handlers) handleQueueList(i *discordgo.InteractionCreate, r bot.Responder, options []*discordgo.ApplicationCommandInteractionDataOption) error {
	ids, err := parseIDs(i)
	if err != nil {
		return respondError(r, "This command only works in a server.")
	}

	page := 1
	for _, opt := range options {
		if opt.Name == "page" {
			page = int(opt.IntValue())
		}
	}

	p, ok := h.registry.Lookup(ids.guildID)
	if !ok {
		return respondEmbed(r, "The queue is empty.", colorInfo)
	}
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{queueEmbed(p.Snapshot(), page)},
		},
	})
}

func (h *Handlers) handleQueueRemove(s *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder, options []*discordgo.ApplicationCommandInteractionDataOption) error {
	ids, err := parseIDs(i)
	if err != nil {
		return respondError(r, "This command only works in a server.")
	}
	if _, err := h.userVoiceChannel(s, ids); err != nil {
		return respondError(r, err.Error())
	}

	var position int
	for _, opt := range options {
		if opt.Name == "position" {
			position = int(opt.IntValue())
		}
	}

	removed, err := h.registry.Get(ids.guildID).RemoveAt(position)
	if err != nil {
		return respondError(r, err.Error())
	}
	return respondEmbed(r, fmt.Sprintf("Removed [%s](%s).", removed.Metadata.Title, removed.Metadata.SourceURL), colorSuccess)
}

func (h *Handlers) handleQueueMove(s *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder, options []*discordgo.ApplicationCommandInteractionDataOption) error {
	ids, err := parseIDs(i)
	if err != nil {
		return respondError(r, "This command only works in a server.")
	}
	if _, err := h.userVoiceChannel(s, ids); err != nil {
		return respondError(r, err.Error())
	}

	var from, to int
	for _, opt := range options {
		switch opt.Name {
		case "from":
			from = int(opt.IntValue())
		case "to":
			to = int(opt.IntValue())
		}
	}

	moved, err := h.registry.Get(ids.guildID).Move(from, to)
	if err != nil {
		return respondError(r, err.Error())
	}
	return respondEmbed(r, fmt.Sprintf("Moved **%s** to position %d.", moved.Metadata.Title, to), colorSuccess)
}

func (h *Handlers) handleQueueShuffle(s *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder) error {
	ids, err := parseIDs(i)
	if err != nil {
		return respondError(r, "This command only works in a server.")
	}
	if _, err := h.userVoiceChannel(s, ids); err != nil {
		return respondError(r, err.Error())
	}

	if err := h.registry.Get(ids.guildID).Shuffle(); err != nil {
		return respondError(r, err.Error())
	}
	return respondEmbed(r, "Shuffled the queue.", colorSuccess)
}

func (h *Handlers) handleQueueClear(s *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder) error {
	ids, err := parseIDs(i)
	if err != nil {
		return respondError(r, "This command only works in a server.")
	}
	if _, err := h.userVoiceChannel(s, ids); err != nil {
		return respondError(r, err.Error())
	}

	dropped := h.registry.Get(ids.guildID).ClearQueue()
	return respondEmbed(r, fmt.Sprintf("Cleared %d track(s) from the queue.", dropped), colorSuccess)
}

// Response helpers.

func respondEmbed(r bot.Responder, message string, color int) error {
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Description: message,
					Color:       color,
				},
			},
		},
	})
}

func respondError(r bot.Responder, message string) error {
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Title:       "Error",
					Description: message,
					Color:       colorError,
				},
			},
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
}

func followupError(r bot.Responder, message string) error {
	return r.Followup(&discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{
			{
				Title:       "Error",
				Description: message,
				Color:       colorError,
			},
		},
		Flags: discordgo.MessageFlagsEphemeral,
	})
}

func followupEnqueued(r bot.Responder, result player.EnqueueResult) error {
	meta := result.Entry.Metadata
	var description string
	if result.Position == 0 {
		description = fmt.Sprintf("Playing [%s](%s) now.", meta.Title, meta.SourceURL)
	} else {
		description = fmt.Sprintf("Added [%s](%s) to the queue at position %d.", meta.Title, meta.SourceURL, result.Position)
	}
	return r.Followup(&discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{
			{
				Description: description,
				Color:       colorSuccess,
				Footer: &discordgo.MessageEmbedFooter{
					Text: "Duration: " + meta.FormattedDuration(),
				},
			},
		},
		Flags: discordgo.MessageFlagsEphemeral,
	})
}

func loopModeMessage(mode domain.LoopMode) string {
	switch mode {
	case domain.LoopModeTrack:
		return "Now looping the current track."
	case domain.LoopModeQueue:
		return "Now looping the queue."
	default:
		return "Loop disabled."
	}
}

// nowPlayingEmbed renders the current track with its position and requester.
func nowPlayingEmbed(entry domain.QueueEntry, snap player.Snapshot) *discordgo.MessageEmbed {
	meta := entry.Metadata
	title := "Now Playing"
	switch snap.LoopMode {
	case domain.LoopModeTrack:
		title = "Now Playing \U0001F502"
	case domain.LoopModeQueue:
		title = "Now Playing \U0001F501"
	}
	if snap.Paused {
		title += " (paused)"
	}

	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: fmt.Sprintf("[%s](%s)\nby %s", meta.Title, meta.SourceURL, meta.Uploader),
		Color:       colorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Position",
				Value:  fmt.Sprintf("%s / %s", domain.FormatDuration(snap.Position), meta.FormattedDuration()),
				Inline: true,
			},
			{
				Name:   "Volume",
				Value:  fmt.Sprintf("%.0f%%", snap.Volume*100),
				Inline: true,
			},
			{
				Name:   "Requested by",
				Value:  fmt.Sprintf("<@%d>", entry.RequesterID),
				Inline: true,
			},
		},
	}
	if meta.ThumbnailURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: meta.ThumbnailURL}
	}
	return embed
}

// queueEmbed renders one page of the pending queue.
func queueEmbed(snap player.Snapshot, page int) *discordgo.MessageEmbed {
	title := "Queue"
	switch snap.LoopMode {
	case domain.LoopModeTrack:
		title = "Queue \U0001F502"
	case domain.LoopModeQueue:
		title = "Queue \U0001F501"
	}
	embed := &discordgo.MessageEmbed{Title: title, Color: colorInfo}

	var sb strings.Builder
	if snap.Current != nil {
		fmt.Fprintf(&sb, "### Now Playing\n[%s](%s) - %s\n",
			snap.Current.Metadata.Title, snap.Current.Metadata.SourceURL, snap.Current.Metadata.Uploader)
	}

	totalPages := (len(snap.Queue) + queuePageSize - 1) / queuePageSize
	if totalPages == 0 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	if len(snap.Queue) == 0 {
		sb.WriteString("The queue is empty.")
	} else {
		sb.WriteString("### Up Next\n")
		start := (page - 1) * queuePageSize
		end := min(start+queuePageSize, len(snap.Queue))
		for idx := start; idx < end; idx++ {
			track := snap.Queue[idx].Metadata
			// Escape the period so Discord does not render a markdown list.
			fmt.Fprintf(&sb, "%d\\. [%s](%s) - %s\n", idx+1, track.Title, track.SourceURL, track.FormattedDuration())
		}
	}
	embed.Description = sb.String()
	embed.Footer = &discordgo.MessageEmbedFooter{
		Text: fmt.Sprintf("Page %d/%d | %d track(s), %s total", page, totalPages, len(snap.Queue), domain.FormatDuration(snap.QueueDuration)),
	}
	return embed
}
