package voice

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
)

const (
	testGuildID   = "100"
	testChannelID = "200"
	botUserID     = "1"
)

func newTestState(t *testing.T, voiceStates []*discordgo.VoiceState, members []*discordgo.Member) *discordgo.State {
	t.Helper()
	state := discordgo.NewState()
	state.User = &discordgo.User{ID: botUserID, Bot: true}
	if err := state.GuildAdd(&discordgo.Guild{
		ID:          testGuildID,
		VoiceStates: voiceStates,
		Members:     members,
	}); err != nil {
		t.Fatalf("GuildAdd() error = %v", err)
	}
	return state
}

func TestAlone(t *testing.T) {
	guildID := snowflake.MustParse(testGuildID)

	tests := []struct {
		name        string
		voiceStates []*discordgo.VoiceState
		members     []*discordgo.Member
		want        bool
	}{
		{
			name: "bot alone in channel",
			voiceStates: []*discordgo.VoiceState{
				{UserID: botUserID, ChannelID: testChannelID, GuildID: testGuildID},
			},
			want: true,
		},
		{
			name: "human in same channel",
			voiceStates: []*discordgo.VoiceState{
				{UserID: botUserID, ChannelID: testChannelID, GuildID: testGuildID},
				{UserID: "2", ChannelID: testChannelID, GuildID: testGuildID},
			},
			members: []*discordgo.Member{
				{GuildID: testGuildID, User: &discordgo.User{ID: "2"}},
			},
			want: false,
		},
		{
			name: "human in a different channel",
			voiceStates: []*discordgo.VoiceState{
				{UserID: botUserID, ChannelID: testChannelID, GuildID: testGuildID},
				{UserID: "2", ChannelID: "999", GuildID: testGuildID},
			},
			members: []*discordgo.Member{
				{GuildID: testGuildID, User: &discordgo.User{ID: "2"}},
			},
			want: true,
		},
		{
			name: "only other bots in channel",
			voiceStates: []*discordgo.VoiceState{
				{UserID: botUserID, ChannelID: testChannelID, GuildID: testGuildID},
				{UserID: "3", ChannelID: testChannelID, GuildID: testGuildID},
			},
			members: []*discordgo.Member{
				{GuildID: testGuildID, User: &discordgo.User{ID: "3", Bot: true}},
			},
			want: true,
		},
		{
			name:        "bot not in voice at all",
			voiceStates: nil,
			want:        false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := newTestState(t, tt.voiceStates, tt.members)
			occ := NewOccupancy(state)
			if got := occ.Alone(guildID); got != tt.want {
				t.Errorf("Alone() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAloneUnknownGuild(t *testing.T) {
	state := discordgo.NewState()
	state.User = &discordgo.User{ID: botUserID, Bot: true}
	occ := NewOccupancy(state)
	if occ.Alone(snowflake.ID(42)) {
		t.Error("Alone() = true for unknown guild, want false")
	}
}

func TestConnectDelayGrowsPerAttempt(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 500 * time.Millisecond},
		{2, time.Second},
		{3, 1500 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := connectDelay(tt.attempt); got != tt.want {
			t.Errorf("connectDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestDCAVolumeMapping(t *testing.T) {
	tests := []struct {
		volume float64
		want   int
	}{
		{0, 0},
		{0.05, 12},
		{1.0, 256},
		{2.0, 512},
		{2.5, 512},
		{-1, 0},
	}
	for _, tt := range tests {
		if got := dcaVolume(tt.volume); got != tt.want {
			t.Errorf("dcaVolume(%v) = %d, want %d", tt.volume, got, tt.want)
		}
	}
}
