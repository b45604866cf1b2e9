package bot

import (
	"github.com/caarlos0/env/v11"
)

// Config holds the bot configuration loaded from environment variables.
type Config struct {
	DiscordToken string `env:"DISCORD_TOKEN,notEmpty"`

	// CommandGuildID scopes slash-command registration to a single guild;
	// empty registers commands globally. Guild-scoped commands propagate
	// instantly, which helps while developing.
	CommandGuildID string `env:"DISCORD_COMMAND_GUILD_ID"`
}

// LoadConfig loads configuration from environment variables.
// Returns an error if required fields are missing.
func LoadConfig() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
