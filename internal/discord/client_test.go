package discord

import (
	"errors"
	"io"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"discord_assistant_bot/internal/config"
)

func discardLogger() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func TestNewClientCreatesSession(t *testing.T) {
	origCreateSession := createSession
	defer func() { createSession = origCreateSession }()

	var gotToken string
	createSession = func(token string) (*discordgo.Session, error) {
		gotToken = token
		return discordgo.New("Bot " + token)
	}

	cfg := config.Config{DiscordToken: "token-123"}
	client, err := NewClient(cfg, discardLogger())
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	if client == nil || client.session == nil {
		t.Fatalf("expected client and session to be initialized")
	}

	if gotToken != cfg.DiscordToken {
		t.Fatalf("expected token %q, got %q", cfg.DiscordToken, gotToken)
	}

	wantIntents := discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent
	if client.session.Identify.Intents != wantIntents {
		t.Fatalf("expected intents %d, got %d", wantIntents, client.session.Identify.Intents)
	}
}

func TestNewClientRequiresToken(t *testing.T) {
	_, err := NewClient(config.Config{}, discardLogger())
	if err == nil {
		t.Fatal("expected an error for a missing token")
	}
}

func TestNewClientPropagatesSessionError(t *testing.T) {
	origCreateSession := createSession
	defer func() { createSession = origCreateSession }()

	expected := errors.New("boom")
	createSession = func(string) (*discordgo.Session, error) {
		return nil, expected
	}

	_, err := NewClient(config.Config{DiscordToken: "token"}, nil)
	if !errors.Is(err, expected) {
		t.Fatalf("expected error %v, got %v", expected, err)
	}
}

func TestConfigureAppliesOptionsAfterConstruction(t *testing.T) {
	origCreateSession := createSession
	defer func() { createSession = origCreateSession }()

	createSession = func(token string) (*discordgo.Session, error) {
		return discordgo.New("Bot " + token)
	}

	client, err := NewClient(config.Config{DiscordToken: "token"}, discardLogger())
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	if client.support != nil {
		t.Fatal("expected support to start unset")
	}

	client.Configure(WithSupport(nil))
	// Configure must not panic and must run every option; attach a real
	// option to observe the effect.
	client.Configure(WithResponder(nil))
}

func TestCommandDefinitionsCoverEveryHandler(t *testing.T) {
	want := []string{
		"balance", "transfer", "fine", "fines", "payfine",
		"setrolepay", "removerolepay", "ticketpanel",
		"addresponse", "removeresponse", "listresponses",
		"kick", "ban", "unban", "mute", "unmute", "clear",
	}

	defs := commandDefinitions()
	byName := make(map[string]bool, len(defs))
	for _, def := range defs {
		byName[def.Name] = true
	}

	for _, name := range want {
		if !byName[name] {
			t.Errorf("command %q is not registered", name)
		}
	}

	if len(defs) != len(want) {
		t.Errorf("expected %d commands, got %d", len(want), len(defs))
	}
}

func TestModerationCommandsRestrictedByDefault(t *testing.T) {
	restricted := map[string]bool{
		"kick": true, "ban": true, "unban": true,
		"mute": true, "unmute": true, "clear": true,
		"fine": true, "setrolepay": true, "removerolepay": true,
		"ticketpanel": true, "addresponse": true, "removeresponse": true,
	}

	for _, def := range commandDefinitions() {
		if restricted[def.Name] && def.DefaultMemberPermissions == nil {
			t.Errorf("command %q has no default permission restriction", def.Name)
		}
	}
}
