package voice

import (
	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
)

// Occupancy answers whether the bot is alone in its voice channel, using
// the gateway state cache.
type Occupancy struct {
	state *discordgo.State
}

// NewOccupancy creates an Occupancy reading from state.
func NewOccupancy(state *discordgo.State) *Occupancy {
	return &Occupancy{state: state}
}

// Alone reports whether no other non-bot user shares the bot's voice
// channel in guildID. An unknown guild or a bot without a voice state
// counts as not alone, so callers never tear down on missing data.
func (o *Occupancy) Alone(guildID snowflake.ID) bool {
	guild, err := o.state.Guild(guildID.String())
	if err != nil || o.state.User == nil {
		return false
	}
	botID := o.state.User.ID

	var botChannel string
	for _, vs := range guild.VoiceStates {
		if vs.UserID == botID {
			botChannel = vs.ChannelID
			break
		}
	}
	if botChannel == "" {
		return false
	}

	for _, vs := range guild.VoiceStates {
		if vs.UserID == botID || vs.ChannelID != botChannel {
			continue
		}
		member, err := o.state.Member(guild.ID, vs.UserID)
		if err != nil || member.User == nil || !member.User.Bot {
			// Unknown members are assumed human.
			return false
		}
	}
	return true
}
