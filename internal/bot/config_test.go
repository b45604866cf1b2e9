package bot

import (
	"testing"
)

func TestLoadConfig_WithValidToken(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "test-token-123")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DiscordToken != "test-token-123" {
		t.Errorf("expected token %q, got %q", "test-token-123", cfg.DiscordToken)
	}
	if cfg.CommandGuildID != "" {
		t.Errorf("expected global command scope by default, got %q", cfg.CommandGuildID)
	}
}

func TestLoadConfig_WithCommandGuildScope(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "test-token-123")
	t.Setenv("DISCORD_COMMAND_GUILD_ID", "424242")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.CommandGuildID != "424242" {
		t.Errorf("expected guild scope %q, got %q", "424242", cfg.CommandGuildID)
	}
}

func TestLoadConfig_WithEmptyToken(t *testing.T) {
	// Clear the environment variable
	t.Setenv("DISCORD_TOKEN", "")

	_, err := LoadConfig()
	if err == nil {
		t.Error("expected error for missing token, got nil")
	}
}
