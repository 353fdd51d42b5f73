// Package discord hosts the Discord session, slash command routing, and the
// platform adapters consumed by the feature services.
package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"discord_assistant_bot/internal/config"
	"discord_assistant_bot/internal/feature/autoresponder"
	"discord_assistant_bot/internal/feature/economy"
	"discord_assistant_bot/internal/feature/support"
	"discord_assistant_bot/internal/logging"
	"discord_assistant_bot/internal/storage"
)

// handlerTimeout bounds every store operation triggered by an event so a
// wedged connection cannot pin a handler goroutine indefinitely.
const handlerTimeout = 30 * time.Second

// createSession is overridable for tests.
var createSession = func(token string) (*discordgo.Session, error) {
	return discordgo.New("Bot " + token)
}

// Client wraps the Discord session and the feature services it routes to.
type Client struct {
	session      *discordgo.Session
	logger       *logrus.Entry
	economy      *economy.Service
	support      *support.Service
	responder    *autoresponder.Responder
	rolePayments *storage.RolePaymentStore
}

// Option configures optional collaborators on the client.
type Option func(*Client)

// WithEconomy attaches the economy service.
func WithEconomy(svc *economy.Service) Option {
	return func(c *Client) { c.economy = svc }
}

// WithSupport attaches the support ticket service.
func WithSupport(svc *support.Service) Option {
	return func(c *Client) { c.support = svc }
}

// WithResponder attaches the auto-responder.
func WithResponder(r *autoresponder.Responder) Option {
	return func(c *Client) { c.responder = r }
}

// WithRolePayments attaches the role payment configuration store.
func WithRolePayments(store *storage.RolePaymentStore) Option {
	return func(c *Client) { c.rolePayments = store }
}

// NewClient initializes the Discord session with the gateway intents the
// handlers need and registers the event handlers.
func NewClient(cfg config.Config, logger *logrus.Entry, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.DiscordToken) == "" {
		return nil, errors.New("discord token is required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	session, err := createSession(cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("init discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent

	client := &Client{
		session: session,
		logger:  logger,
	}

	for _, opt := range opts {
		opt(client)
	}

	session.AddHandler(client.onReady)
	session.AddHandler(client.onMessageCreate)
	session.AddHandler(client.onInteractionCreate)
	session.AddHandler(client.onChannelDelete)

	return client, nil
}

// Session exposes the underlying session for the platform adapters.
func (c *Client) Session() *discordgo.Session {
	return c.session
}

// Configure applies options after construction. The support service is wired
// this way because its platform adapter needs the session the client owns.
func (c *Client) Configure(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Start opens the gateway connection and blocks until the context is
// canceled, then closes the session.
func (c *Client) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}

	c.logger.WithField("event", "discord_connected").Info("connected to discord gateway")

	if err := c.registerCommands(); err != nil {
		_ = c.session.Close()
		return err
	}

	<-ctx.Done()

	if err := c.session.Close(); err != nil {
		return fmt.Errorf("close discord gateway: %w", err)
	}

	c.logger.WithField("event", "discord_stopped").Info("discord session closed")
	return nil
}

func (c *Client) registerCommands() error {
	appID := c.session.State.User.ID
	if _, err := c.session.ApplicationCommandBulkOverwrite(appID, "", commandDefinitions()); err != nil {
		return fmt.Errorf("register slash commands: %w", err)
	}

	c.logger.WithFields(logging.Fields{
		"event":    "commands_registered",
		"commands": len(commandDefinitions()),
	}).Info("slash commands registered")

	return nil
}

func (c *Client) onReady(_ *discordgo.Session, ready *discordgo.Ready) {
	c.logger.WithFields(logging.Fields{
		"event":  "discord_ready",
		"user":   ready.User.Username,
		"guilds": len(ready.Guilds),
	}).Info("discord session ready")
}

// onMessageCreate serves keyword auto-responses. The full lowercased message
// content is the lookup key, matching how triggers are stored.
func (c *Client) onMessageCreate(s *discordgo.Session, msg *discordgo.MessageCreate) {
	if c.responder == nil || msg.Author == nil || msg.Author.Bot || msg.GuildID == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	reply, found, err := c.responder.Reply(ctx, msg.GuildID, msg.Content)
	if err != nil {
		c.logger.WithFields(logging.Fields{
			"event":    "auto_response_error",
			"guild_id": msg.GuildID,
		}).WithError(err).Warn("auto response lookup failed")
		return
	}
	if !found {
		return
	}

	if _, err := s.ChannelMessageSendReply(msg.ChannelID, reply, msg.Reference()); err != nil {
		c.logger.WithFields(logging.Fields{
			"event":      "auto_response_send_failed",
			"channel_id": msg.ChannelID,
		}).WithError(err).Warn("could not send auto response")
	}
}

// onChannelDelete keeps ticket records consistent when staff delete a ticket
// channel directly instead of closing it.
func (c *Client) onChannelDelete(_ *discordgo.Session, event *discordgo.ChannelDelete) {
	if c.support == nil || event.Channel == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	closed, err := c.support.Close(ctx, event.Channel.ID)
	if err != nil {
		c.logger.WithFields(logging.Fields{
			"event":      "ticket_close_failed",
			"channel_id": event.Channel.ID,
		}).WithError(err).Warn("could not close ticket for deleted channel")
		return
	}

	if closed {
		c.logger.WithFields(logging.Fields{
			"event":      "ticket_closed_on_delete",
			"channel_id": event.Channel.ID,
		}).Info("closed ticket for deleted channel")
	}
}
