package ping

import (
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/hhkim0505/aribot/internal/bot"
)

func TestHandlePing_ReturnsPong(t *testing.T) {
	responder := &bot.MockResponder{}

	err := handlePing(nil, nil, responder)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if responder.LastResponse == nil {
		t.Fatal("expected response, got nil")
	}

	if responder.LastResponse.Type != discordgo.InteractionResponseChannelMessageWithSource {
		t.Errorf("expected response type %d, got %d",
			discordgo.InteractionResponseChannelMessageWithSource,
			responder.LastResponse.Type)
	}

	if responder.LastResponse.Data.Content != "Pong!" {
		t.Errorf("expected content %q, got %q", "Pong!", responder.LastResponse.Data.Content)
	}
}

func TestHandlePing_ResponderError(t *testing.T) {
	expectedErr := errors.New("responder failed")
	responder := &bot.MockResponder{Err: expectedErr}

	err := handlePing(nil, nil, responder)
	if !errors.Is(err, expectedErr) {
		t.Errorf("expected error %v, got %v", expectedErr, err)
	}
}
