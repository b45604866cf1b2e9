package presentation

import "github.com/bwmarrin/discordgo"

// Commands returns all slash commands for the music module.
func Commands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "play",
			Description: "Play a track from a link or search term",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "query",
					Description: "Link or search term",
					Required:    true,
				},
			},
		},
		{
			Name:        "search",
			Description: "Search for a track and pick from the results",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "query",
					Description: "Search term",
					Required:    true,
				},
			},
		},
		{
			Name:        "skip",
			Description: "Skip the current track",
		},
		{
			Name:        "stop",
			Description: "Stop playback, clear the queue, and leave the voice channel",
		},
		{
			Name:        "pause",
			Description: "Pause playback",
		},
		{
			Name:        "resume",
			Description: "Resume playback",
		},
		{
			Name:        "nowplaying",
			Description: "Show the current track",
		},
		{
			Name:        "loop",
			Description: "Cycle the loop mode (off, track, queue)",
		},
		{
			Name:        "volume",
			Description: "Set the playback volume",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "percent",
					Description: "Volume as a percentage (0-200)",
					Required:    true,
					MinValue:    floatPtr(0),
					MaxValue:    200,
				},
			},
		},
		{
			Name:        "queue",
			Description: "Manage the queue",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "Show the upcoming tracks",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "page",
							Description: "Page number",
							Required:    false,
							MinValue:    floatPtr(1),
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "remove",
					Description: "Remove a track from the queue",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "position",
							Description: "Position of the track to remove (1-indexed, as shown in queue list)",
							Required:    true,
							MinValue:    floatPtr(1),
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "move",
					Description: "Move a track to a different position",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "from",
							Description: "Current position of the track (1-indexed)",
							Required:    true,
							MinValue:    floatPtr(1),
						},
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "to",
							Description: "New position for the track (1-indexed)",
							Required:    true,
							MinValue:    floatPtr(1),
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "shuffle",
					Description: "Shuffle the upcoming tracks",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "clear",
					Description: "Drop all upcoming tracks, keeping the current one",
				},
			},
		},
	}
}

func floatPtr(f float64) *float64 {
	return &f
}
