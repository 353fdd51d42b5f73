package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"discord_assistant_bot/internal/logging"
)

const ticketCategorySelectID = "ticket_category_select"

// handleTicketPanel posts the category select menu in the current channel.
// The menu snapshots the categories at post time; the creation flow
// re-validates the selection against a live listing.
func (c *Client) handleTicketPanel(ctx context.Context, s *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if c.support == nil {
		c.respond(s, interaction, "Support tickets are not enabled.", true)
		return
	}

	adapter := NewPlatformAdapter(s, c.logger)
	categories, err := adapter.ListCategories(ctx, interaction.GuildID)
	if err != nil {
		c.respondError(s, interaction, err)
		return
	}

	if len(categories) == 0 {
		c.respond(s, interaction, "This server has no channel categories to open tickets under.", true)
		return
	}

	options := make([]discordgo.SelectMenuOption, 0, len(categories))
	for _, category := range categories {
		options = append(options, discordgo.SelectMenuOption{
			Label: category.Name,
			Value: category.ID,
		})
	}

	err = s.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: "Need help? Pick a category to open a private support ticket.",
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.SelectMenu{
							CustomID:    ticketCategorySelectID,
							Placeholder: "Select a category",
							Options:     options,
						},
					},
				},
			},
		},
	})
	if err != nil {
		c.logger.WithField("event", "panel_post_failed").WithError(err).Warn("could not post ticket panel")
	}
}

// handleTicketSelection runs the creation protocol for a panel selection.
func (c *Client) handleTicketSelection(s *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if c.support == nil {
		c.respond(s, interaction, "Support tickets are not enabled.", true)
		return
	}

	values := interaction.MessageComponentData().Values
	if len(values) == 0 {
		return
	}
	categoryID := values[0]
	userID := invokerID(interaction)

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	ticket, err := c.support.Create(ctx, interaction.GuildID, userID, categoryID)
	if err != nil {
		c.respondError(s, interaction, err)
		return
	}

	c.logger.WithFields(logging.Fields{
		"event":      "support_ticket_opened",
		"guild_id":   ticket.GuildID,
		"user_id":    ticket.UserID,
		"channel_id": ticket.ChannelID,
	}).Info("support ticket opened")

	c.respond(s, interaction, fmt.Sprintf("Your ticket is open: <#%s>", ticket.ChannelID), true)
}
