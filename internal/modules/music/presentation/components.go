package presentation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"

	"github.com/hhkim0505/aribot/internal/bot"
	"github.com/hhkim0505/aribot/internal/modules/music/domain"
)

// Component custom IDs. Search menus carry a per-interaction token.
const (
	componentPause     = "music:pause"
	componentSkip      = "music:skip"
	componentStop      = "music:stop"
	componentLoop      = "music:loop"
	componentShuffle   = "music:shuffle"
	searchPrefix       = "music:search:"
	searchCancelPrefix = "music:searchcancel:"
)

const (
	maxSearchResults = 5
	searchTTL        = 2 * time.Minute
)

// pendingSearch is an unanswered search menu.
type pendingSearch struct {
	results        []domain.TrackMetadata
	requesterID    snowflake.ID
	voiceChannelID snowflake.ID
	textChannelID  snowflake.ID
	createdAt      time.Time
}

// pendingSearches tracks open search menus by token, expiring stale ones.
type pendingSearches struct {
	mu      sync.Mutex
	pending map[string]pendingSearch
}

func newPendingSearches() *pendingSearches {
	return &pendingSearches{pending: make(map[string]pendingSearch)}
}

func (p *pendingSearches) add(search pendingSearch) string {
	search.createdAt = time.Now()
	token := uuid.NewString()

	p.mu.Lock()
	defer p.mu.Unlock()
	for key, old := range p.pending {
		if time.Since(old.createdAt) > searchTTL {
			delete(p.pending, key)
		}
	}
	p.pending[token] = search
	return token
}

// put returns a search taken by mistake, e.g. when a non-owner clicked.
func (p *pendingSearches) put(token string, search pendingSearch) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending[token] = search
}

func (p *pendingSearches) take(token string) (pendingSearch, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	search, ok := p.pending[token]
	if !ok {
		return pendingSearch{}, false
	}
	delete(p.pending, token)
	if time.Since(search.createdAt) > searchTTL {
		return pendingSearch{}, false
	}
	return search, true
}

// searchMenu builds the result picker for a search.
func searchMenu(token string, results []domain.TrackMetadata) discordgo.MessageComponent {
	options := make([]discordgo.SelectMenuOption, 0, len(results))
	for idx, meta := range results {
		label := meta.Title
		if len(label) > 100 {
			label = label[:97] + "..."
		}
		options = append(options, discordgo.SelectMenuOption{
			Label:       label,
			Value:       strconv.Itoa(idx),
			Description: fmt.Sprintf("%s | %s", meta.Uploader, meta.FormattedDuration()),
		})
	}
	return discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				CustomID:    searchPrefix + token,
				Placeholder: "Pick a track",
				Options:     options,
			},
		},
	}
}

// searchCancelRow builds the cancel button shown under a search menu.
func searchCancelRow(token string) discordgo.MessageComponent {
	return discordgo.ActionsRow{
		Components: []discordgo.MessageComponent{
			discordgo.Button{CustomID: searchCancelPrefix + token, Label: "Cancel", Style: discordgo.SecondaryButton},
		},
	}
}

// controlButtons builds the action row attached to now-playing messages.
func controlButtons(paused bool) []discordgo.MessageComponent {
	pauseLabel := "Pause"
	if paused {
		pauseLabel = "Resume"
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{CustomID: componentPause, Label: pauseLabel, Style: discordgo.PrimaryButton},
				discordgo.Button{CustomID: componentSkip, Label: "Skip", Style: discordgo.SecondaryButton},
				discordgo.Button{CustomID: componentStop, Label: "Stop", Style: discordgo.DangerButton},
				discordgo.Button{CustomID: componentLoop, Label: "Loop", Style: discordgo.SecondaryButton},
				discordgo.Button{CustomID: componentShuffle, Label: "Shuffle", Style: discordgo.SecondaryButton},
			},
		},
	}
}

// OwnsComponent reports whether a component custom ID belongs to this
// module.
func OwnsComponent(customID string) bool {
	return strings.HasPrefix(customID, "music:")
}

// HandleComponent dispatches button and select-menu interactions.
func (h *Handlers) HandleComponent(s *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder) error {
	customID := i.MessageComponentData().CustomID
	if token, ok := strings.CutPrefix(customID, searchCancelPrefix); ok {
		return h.handleSearchCancel(i, r, token)
	}
	if token, ok := strings.CutPrefix(customID, searchPrefix); ok {
		return h.handleSearchPick(i, r, token)
	}

	ids, err := parseIDs(i)
	if err != nil {
		return respondError(r, "This only works in a server.")
	}
	if _, err := h.userVoiceChannel(s, ids); err != nil {
		return respondError(r, err.Error())
	}
	p := h.registry.Get(ids.guildID)

	switch customID {
	case componentPause:
		paused, err := p.TogglePause()
		if err != nil {
			return respondError(r, err.Error())
		}
		if paused {
			return respondEphemeral(r, "Paused playback.")
		}
		return respondEphemeral(r, "Resumed playback.")
	case componentSkip:
		skipped, err := p.Skip()
		if err != nil {
			return respondError(r, err.Error())
		}
		return respondEphemeral(r, fmt.Sprintf("Skipped **%s**.", skipped.Metadata.Title))
	case componentStop:
		if err := p.Stop(); err != nil {
			return respondError(r, err.Error())
		}
		h.notifier.ClearNowPlaying(ids.guildID)
		return respondEphemeral(r, "Stopped playback.")
	case componentLoop:
		return respondEphemeral(r, loopModeMessage(p.ToggleLoop()))
	case componentShuffle:
		if err := p.Shuffle(); err != nil {
			return respondError(r, err.Error())
		}
		return respondEphemeral(r, "Shuffled the queue.")
	default:
		return respondError(r, "Unknown control.")
	}
}

// handleSearchPick enqueues the track the user chose from a search menu and
// collapses the menu into a confirmation.
func (h *Handlers) handleSearchPick(i *discordgo.InteractionCreate, r bot.Responder, token string) error {
	ids, err := parseIDs(i)
	if err != nil {
		return respondError(r, "This only works in a server.")
	}

	search, ok := h.searches.take(token)
	if !ok {
		return respondError(r, "This search has expired. Run /search again.")
	}
	if search.requesterID != ids.userID {
		// Hand the menu back so its owner can still use it.
		h.searches.put(token, search)
		return respondError(r, "Only the user who searched can pick a result.")
	}

	values := i.MessageComponentData().Values
	if len(values) == 0 {
		return respondError(r, "Nothing selected.")
	}
	idx, err := strconv.Atoi(values[0])
	if err != nil || idx < 0 || idx >= len(search.results) {
		return respondError(r, "Invalid selection.")
	}
	meta := search.results[idx]

	h.notifier.SetChannel(ids.guildID, search.textChannelID)
	result, err := h.registry.Get(ids.guildID).EnqueueResolved(context.Background(), meta, ids.userID, search.voiceChannelID)
	if err != nil {
		return respondError(r, err.Error())
	}

	var description string
	if result.Position == 0 {
		description = fmt.Sprintf("Playing [%s](%s) now.", meta.Title, meta.SourceURL)
	} else {
		description = fmt.Sprintf("Added [%s](%s) to the queue at position %d.", meta.Title, meta.SourceURL, result.Position)
	}
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Description: description,
					Color:       colorSuccess,
				},
			},
			Components: []discordgo.MessageComponent{},
		},
	})
}

// handleSearchCancel discards a pending search and collapses its menu.
func (h *Handlers) handleSearchCancel(i *discordgo.InteractionCreate, r bot.Responder, token string) error {
	ids, err := parseIDs(i)
	if err != nil {
		return respondError(r, "This only works in a server.")
	}

	search, ok := h.searches.take(token)
	if ok && search.requesterID != ids.userID {
		h.searches.put(token, search)
		return respondError(r, "Only the user who searched can cancel it.")
	}
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Description: "Search cancelled.",
					Color:       colorInfo,
				},
			},
			Components: []discordgo.MessageComponent{},
		},
	})
}

func respondEphemeral(r bot.Responder, message string) error {
	return r.Respond(&discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{
				{
					Description: message,
					Color:       colorSuccess,
				},
			},
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
}
