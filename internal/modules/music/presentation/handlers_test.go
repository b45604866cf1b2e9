package presentation

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"

	"github.com/hhkim0505/aribot/internal/bot"
	"github.com/hhkim0505/aribot/internal/modules/music/domain"
	"github.com/hhkim0505/aribot/internal/modules/music/player"
)

func guildInteraction(guildID, userID, channelID string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type:      discordgo.InteractionApplicationCommand,
			GuildID:   guildID,
			ChannelID: channelID,
			Member: &discordgo.Member{
				User: &discordgo.User{ID: userID},
			},
		},
	}
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs(guildInteraction("100", "200", "300"))
	if err != nil {
		t.Fatalf("parseIDs() error = %v", err)
	}
	if ids.guildID != snowflake.ID(100) || ids.userID != snowflake.ID(200) || ids.channelID != snowflake.ID(300) {
		t.Errorf("parseIDs() = %+v, want 100/200/300", ids)
	}
}

func TestParseIDsRejectsDMs(t *testing.T) {
	i := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type:      discordgo.InteractionApplicationCommand,
			ChannelID: "300",
			User:      &discordgo.User{ID: "200"},
		},
	}
	if _, err := parseIDs(i); err == nil {
		t.Error("parseIDs() accepted a DM interaction")
	}
}

func TestHandlePlayRequiresVoiceChannel(t *testing.T) {
	session := &discordgo.Session{State: discordgo.NewState()}
	if err := session.State.GuildAdd(&discordgo.Guild{ID: "100"}); err != nil {
		t.Fatalf("GuildAdd() error = %v", err)
	}

	registry := player.NewRegistry(func(snowflake.ID) *player.Player { return nil })
	handlers := NewHandlers(registry, nil, NewDiscordNotifier(session))

	i := guildInteraction("100", "200", "300")
	i.Interaction.Data = discordgo.ApplicationCommandInteractionData{
		Name: "play",
		Options: []*discordgo.ApplicationCommandInteractionDataOption{
			{Name: "query", Type: discordgo.ApplicationCommandOptionString, Value: "some song"},
		},
	}

	r := &bot.MockResponder{}
	if err := handlers.HandlePlay(session, i, r); err != nil {
		t.Fatalf("HandlePlay() error = %v", err)
	}
	if r.Deferred {
		t.Error("interaction was deferred before the voice check")
	}
	if r.LastResponse == nil || len(r.LastResponse.Data.Embeds) == 0 {
		t.Fatal("no error response recorded")
	}
	if got := r.LastResponse.Data.Embeds[0].Description; !strings.Contains(got, "voice channel") {
		t.Errorf("error description = %q, want a voice-channel rejection", got)
	}
}

func TestRateLimiterWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	limiter := newRateLimiter()
	limiter.now = func() time.Time { return now }
	user := snowflake.ID(7)

	for n := range rateLimitCalls {
		if !limiter.allow(user) {
			t.Fatalf("call %d blocked within the limit", n+1)
		}
	}
	if limiter.allow(user) {
		t.Error("call beyond the limit was allowed within the window")
	}
	if !limiter.allow(snowflake.ID(8)) {
		t.Error("another user was blocked by someone else's calls")
	}

	now = now.Add(rateLimitWindow + time.Second)
	if !limiter.allow(user) {
		t.Error("call after the window elapsed was blocked")
	}
}

func TestHandlePlayRateLimited(t *testing.T) {
	session := &discordgo.Session{State: discordgo.NewState()}
	if err := session.State.GuildAdd(&discordgo.Guild{ID: "100"}); err != nil {
		t.Fatalf("GuildAdd() error = %v", err)
	}

	registry := player.NewRegistry(func(snowflake.ID) *player.Player { return nil })
	handlers := NewHandlers(registry, nil, NewDiscordNotifier(session))

	i := guildInteraction("100", "200", "300")
	i.Interaction.Data = discordgo.ApplicationCommandInteractionData{
		Name: "play",
		Options: []*discordgo.ApplicationCommandInteractionDataOption{
			{Name: "query", Type: discordgo.ApplicationCommandOptionString, Value: "some song"},
		},
	}

	for range rateLimitCalls {
		if err := handlers.HandlePlay(session, i, &bot.MockResponder{}); err != nil {
			t.Fatalf("HandlePlay() error = %v", err)
		}
	}

	r := &bot.MockResponder{}
	if err := handlers.HandlePlay(session, i, r); err != nil {
		t.Fatalf("HandlePlay() error = %v", err)
	}
	if r.LastResponse == nil || len(r.LastResponse.Data.Embeds) == 0 {
		t.Fatal("no rate-limit response recorded")
	}
	if got := r.LastResponse.Data.Embeds[0].Description; !strings.Contains(got, "Slow down") {
		t.Errorf("error description = %q, want a rate-limit rejection", got)
	}
}

func TestFollowupEnqueuedIsEphemeral(t *testing.T) {
	meta := domain.NewTrackMetadata("track", "uploader", "", "https://example.com/1", 3*time.Minute)
	r := &bot.MockResponder{}
	if err := followupEnqueued(r, player.EnqueueResult{
		Entry:    domain.NewQueueEntry(meta, snowflake.ID(1)),
		Position: 2,
	}); err != nil {
		t.Fatalf("followupEnqueued() error = %v", err)
	}
	if r.LastFollowup == nil {
		t.Fatal("no followup recorded")
	}
	if r.LastFollowup.Flags&discordgo.MessageFlagsEphemeral == 0 {
		t.Error("enqueue confirmation is not ephemeral")
	}
}

func TestQueueEmbedPagination(t *testing.T) {
	entries := make([]domain.QueueEntry, 25)
	for idx := range entries {
		meta := domain.NewTrackMetadata(
			"track "+strconv.Itoa(idx+1),
			"uploader",
			"",
			"https://example.com/"+strconv.Itoa(idx+1),
			3*time.Minute,
		)
		entries[idx] = domain.NewQueueEntry(meta, snowflake.ID(1))
	}
	snap := player.Snapshot{
		Queue:         entries,
		QueueDuration: 75 * time.Minute,
	}

	embed := queueEmbed(snap, 2)
	if !strings.Contains(embed.Description, "[track 11]") || !strings.Contains(embed.Description, "[track 20]") {
		t.Errorf("page 2 missing expected tracks:\n%s", embed.Description)
	}
	if strings.Contains(embed.Description, "[track 10]") || strings.Contains(embed.Description, "[track 21]") {
		t.Errorf("page 2 leaked tracks from other pages:\n%s", embed.Description)
	}
	if !strings.Contains(embed.Footer.Text, "Page 2/3") {
		t.Errorf("footer = %q, want page 2/3", embed.Footer.Text)
	}
	if !strings.Contains(embed.Footer.Text, "01:15:00") {
		t.Errorf("footer = %q, want total duration 01:15:00", embed.Footer.Text)
	}
}

func TestQueueEmbedClampsPage(t *testing.T) {
	snap := player.Snapshot{}
	embed := queueEmbed(snap, 99)
	if !strings.Contains(embed.Description, "empty") {
		t.Errorf("empty queue description = %q", embed.Description)
	}
	if !strings.Contains(embed.Footer.Text, "Page 1/1") {
		t.Errorf("footer = %q, want page 1/1", embed.Footer.Text)
	}
}

func TestSearchMenuOptions(t *testing.T) {
	results := []domain.TrackMetadata{
		domain.NewTrackMetadata("first", "a", "", "https://example.com/1", time.Minute),
		domain.NewTrackMetadata(strings.Repeat("x", 150), "b", "", "https://example.com/2", time.Minute),
	}

	row, ok := searchMenu("token", results).(discordgo.ActionsRow)
	if !ok {
		t.Fatal("searchMenu() did not return an actions row")
	}
	menu, ok := row.Components[0].(discordgo.SelectMenu)
	if !ok {
		t.Fatal("actions row does not contain a select menu")
	}
	if menu.CustomID != searchPrefix+"token" {
		t.Errorf("CustomID = %q, want %q", menu.CustomID, searchPrefix+"token")
	}
	if len(menu.Options) != 2 {
		t.Fatalf("got %d options, want 2", len(menu.Options))
	}
	if menu.Options[0].Value != "0" || menu.Options[1].Value != "1" {
		t.Error("option values are not result indexes")
	}
	if len(menu.Options[1].Label) > 100 {
		t.Errorf("label length = %d, want at most 100", len(menu.Options[1].Label))
	}
}

func TestPendingSearchesTakeIsOneShot(t *testing.T) {
	searches := newPendingSearches()
	token := searches.add(pendingSearch{requesterID: snowflake.ID(1)})

	if _, ok := searches.take(token); !ok {
		t.Fatal("take() failed for a fresh token")
	}
	if _, ok := searches.take(token); ok {
		t.Error("take() succeeded twice for the same token")
	}
	if _, ok := searches.take("no-such-token"); ok {
		t.Error("take() succeeded for an unknown token")
	}
}

func TestPendingSearchesExpire(t *testing.T) {
	searches := newPendingSearches()
	token := searches.add(pendingSearch{requesterID: snowflake.ID(1)})

	searches.mu.Lock()
	stale := searches.pending[token]
	stale.createdAt = time.Now().Add(-2 * searchTTL)
	searches.pending[token] = stale
	searches.mu.Unlock()

	if _, ok := searches.take(token); ok {
		t.Error("take() returned an expired search")
	}
}

func TestOwnsComponent(t *testing.T) {
	if !OwnsComponent(componentSkip) || !OwnsComponent(searchPrefix+"abc") {
		t.Error("OwnsComponent() rejected this module's IDs")
	}
	if OwnsComponent("other:button") {
		t.Error("OwnsComponent() claimed a foreign ID")
	}
}

func TestLoopModeMessage(t *testing.T) {
	tests := []struct {
		mode domain.LoopMode
		want string
	}{
		{domain.LoopModeOff, "Loop disabled."},
		{domain.LoopModeTrack, "Now looping the current track."},
		{domain.LoopModeQueue, "Now looping the queue."},
	}
	for _, tt := range tests {
		if got := loopModeMessage(tt.mode); got != tt.want {
			t.Errorf("loopModeMessage(%v) = %q, want %q", tt.mode, got, tt.want)
		}
	}
}
