package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"discord_assistant_bot/internal/domain"
	"discord_assistant_bot/internal/logging"
)

func permissions(p int64) *int64 {
	return &p
}

func commandDefinitions() []*discordgo.ApplicationCommand {
	minAmount := float64(1)
	minIndex := float64(1)

	return []*discordgo.ApplicationCommand{
		{
			Name:        "balance",
			Description: "Show a user's balance",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to look up (defaults to you)"},
			},
		},
		{
			Name:        "transfer",
			Description: "Transfer coins to another user",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Recipient", Required: true},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "amount", Description: "Amount to transfer", Required: true, MinValue: &minAmount},
			},
		},
		{
			Name:                     "fine",
			Description:              "Issue a fine against a user",
			DefaultMemberPermissions: permissions(discordgo.PermissionModerateMembers),
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to fine", Required: true},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "amount", Description: "Fine amount", Required: true, MinValue: &minAmount},
			},
		},
		{
			Name:        "fines",
			Description: "List a user's outstanding fines",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User to look up (defaults to you)"},
			},
		},
		{
			Name:        "payfine",
			Description: "Pay one of your outstanding fines",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "number", Description: "Fine number as shown by /fines", Required: true, MinValue: &minIndex},
			},
		},
		{
			Name:                     "setrolepay",
			Description:              "Configure a recurring daily payment for a role",
			DefaultMemberPermissions: permissions(discordgo.PermissionManageServer),
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Role to pay", Required: true},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "amount", Description: "Amount per period", Required: true, MinValue: &minAmount},
			},
		},
		{
			Name:                     "removerolepay",
			Description:              "Remove the recurring payment for a role",
			DefaultMemberPermissions: permissions(discordgo.PermissionManageServer),
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "Role to stop paying", Required: true},
			},
		},
		{
			Name:                     "ticketpanel",
			Description:              "Post the support ticket panel in this channel",
			DefaultMemberPermissions: permissions(discordgo.PermissionManageServer),
		},
		{
			Name:                     "addresponse",
			Description:              "Add an auto-response trigger",
			DefaultMemberPermissions: permissions(discordgo.PermissionManageServer),
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "trigger", Description: "Message that triggers the reply", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "response", Description: "Reply to send", Required: true},
			},
		},
		{
			Name:                     "removeresponse",
			Description:              "Remove an auto-response trigger",
			DefaultMemberPermissions: permissions(discordgo.PermissionManageServer),
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "trigger", Description: "Trigger to remove", Required: true},
			},
		},
		{
			Name:                     "listresponses",
			Description:              "List the auto-response triggers",
			DefaultMemberPermissions: permissions(discordgo.PermissionManageServer),
		},
		{
			Name:                     "kick",
			Description:              "Kick a member from the server",
			DefaultMemberPermissions: permissions(discordgo.PermissionKickMembers),
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Member to kick", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Reason"},
			},
		},
		{
			Name:                     "ban",
			Description:              "Ban a member from the server",
			DefaultMemberPermissions: permissions(discordgo.PermissionBanMembers),
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Member to ban", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Reason"},
			},
		},
		{
			Name:                     "unban",
			Description:              "Unban a user by id",
			DefaultMemberPermissions: permissions(discordgo.PermissionBanMembers),
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "user_id", Description: "User id to unban", Required: true},
			},
		},
		{
			Name:                     "mute",
			Description:              "Mute a member with the Muted role",
			DefaultMemberPermissions: permissions(discordgo.PermissionManageRoles),
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Member to mute", Required: true},
			},
		},
		{
			Name:                     "unmute",
			Description:              "Remove the Muted role from a member",
			DefaultMemberPermissions: permissions(discordgo.PermissionManageRoles),
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Member to unmute", Required: true},
			},
		},
		{
			Name:                     "clear",
			Description:              "Delete recent messages in this channel",
			DefaultMemberPermissions: permissions(discordgo.PermissionManageMessages),
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "amount", Description: "Messages to delete (default 5)"},
			},
		},
	}
}

func (c *Client) onInteractionCreate(s *discordgo.Session, interaction *discordgo.InteractionCreate) {
	switch interaction.Type {
	case discordgo.InteractionApplicationCommand:
		c.dispatchCommand(s, interaction)
	case discordgo.InteractionMessageComponent:
		if interaction.MessageComponentData().CustomID == ticketCategorySelectID {
			c.handleTicketSelection(s, interaction)
		}
	}
}

func (c *Client) dispatchCommand(s *discordgo.Session, interaction *discordgo.InteractionCreate) {
	data := interaction.ApplicationCommandData()

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	switch data.Name {
	case "balance":
		c.handleBalance(ctx, s, interaction)
	case "transfer":
		c.handleTransfer(ctx, s, interaction)
	case "fine":
		c.handleFine(ctx, s, interaction)
	case "fines":
		c.handleFines(ctx, s, interaction)
	case "payfine":
		c.handlePayFine(ctx, s, interaction)
	case "setrolepay":
		c.handleSetRolePay(ctx, s, interaction)
	case "removerolepay":
		c.handleRemoveRolePay(ctx, s, interaction)
	case "ticketpanel":
		c.handleTicketPanel(ctx, s, interaction)
	case "addresponse":
		c.handleAddResponse(ctx, s, interaction)
	case "removeresponse":
		c.handleRemoveResponse(ctx, s, interaction)
	case "listresponses":
		c.handleListResponses(ctx, s, interaction)
	case "kick", "ban", "unban", "mute", "unmute", "clear":
		c.handleModeration(s, interaction, data.Name)
	default:
		c.logger.WithFields(logging.Fields{
			"event":   "unknown_command",
			"command": data.Name,
		}).Warn("received unregistered command")
	}
}

// optionMap flattens the interaction options for lookup by name.
func optionMap(data discordgo.ApplicationCommandInteractionData) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	options := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(data.Options))
	for _, opt := range data.Options {
		options[opt.Name] = opt
	}
	return options
}

func invokerID(interaction *discordgo.InteractionCreate) string {
	if interaction.Member != nil && interaction.Member.User != nil {
		return interaction.Member.User.ID
	}
	if interaction.User != nil {
		return interaction.User.ID
	}
	return ""
}

func (c *Client) respond(s *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	response := &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	}
	if ephemeral {
		response.Data.Flags = discordgo.MessageFlagsEphemeral
	}

	if err := s.InteractionRespond(interaction.Interaction, response); err != nil {
		c.logger.WithField("event", "interaction_respond_failed").WithError(err).Warn("could not answer interaction")
	}
}

// respondError renders an expected failure as a user-readable message and
// logs everything else without exposing driver detail to the channel.
func (c *Client) respondError(s *discordgo.Session, interaction *discordgo.InteractionCreate, err error) {
	var insufficient *domain.InsufficientFundsError
	var alreadyOpen *domain.AlreadyOpenError

	switch {
	case errors.As(err, &insufficient):
		c.respond(s, interaction, fmt.Sprintf("Not enough coins: you have %d and need %d more.", insufficient.Balance, insufficient.Shortfall()), true)
	case errors.As(err, &alreadyOpen):
		c.respond(s, interaction, "You already have an open support ticket: <#"+alreadyOpen.ChannelID+">.", true)
	case errors.Is(err, domain.ErrStaleReference):
		c.respond(s, interaction, "That fine no longer exists; it may already be paid. Run /fines for the current list.", true)
	case errors.Is(err, domain.ErrInvalidCategory):
		c.respond(s, interaction, "That category no longer exists. Ask an admin to repost the panel.", true)
	case errors.Is(err, domain.ErrNotConnected):
		c.respond(s, interaction, "The database is unavailable right now; please try again shortly.", true)
	default:
		c.logger.WithField("event", "command_error").WithError(err).Error("command failed")
		c.respond(s, interaction, "Something went wrong; please try again.", true)
	}
}

func (c *Client) handleBalance(ctx context.Context, s *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if c.economy == nil {
		c.respond(s, interaction, "The economy is not enabled.", true)
		return
	}

	data := interaction.ApplicationCommandData()
	targetID := invokerID(interaction)
	if opt, ok := optionMap(data)["user"]; ok {
		targetID = opt.UserValue(s).ID
	}

	balance, err := c.economy.Balance(ctx, targetID)
	if err != nil {
		c.respondError(s, interaction, err)
		return
	}

	c.respond(s, interaction, fmt.Sprintf("<@%s> has %d coins.", targetID, balance), false)
}

func (c *Client) handleTransfer(ctx context.Context, s *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if c.economy == nil {
		c.respond(s, interaction, "The economy is not enabled.", true)
		return
	}

	options := optionMap(interaction.ApplicationCommandData())
	recipient := options["user"].UserValue(s)
	amount := options["amount"].IntValue()
	senderID := invokerID(interaction)

	if err := c.economy.Transfer(ctx, senderID, recipient.ID, amount); err != nil {
		c.respondError(s, interaction, err)
		return
	}

	c.respond(s, interaction, fmt.Sprintf("Transferred %d coins to <@%s>.", amount, recipient.ID), false)
}

func (c *Client) handleFine(ctx context.Context, s *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if c.economy == nil {
		c.respond(s, interaction, "The economy is not enabled.", true)
		return
	}

	options := optionMap(interaction.ApplicationCommandData())
	target := options["user"].UserValue(s)
	amount := options["amount"].IntValue()

	if err := c.economy.IssueFine(ctx, target.ID, amount, invokerID(interaction)); err != nil {
		c.respondError(s, interaction, err)
		return
	}

	c.respond(s, interaction, fmt.Sprintf("Fined <@%s> %d coins.", target.ID, amount), false)
}

func (c *Client) handleFines(ctx context.Context, s *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if c.economy == nil {
		c.respond(s, interaction, "The economy is not enabled.", true)
		return
	}

	data := interaction.ApplicationCommandData()
	targetID := invokerID(interaction)
	if opt, ok := optionMap(data)["user"]; ok {
		targetID = opt.UserValue(s).ID
	}

	fines, err := c.economy.ListFines(ctx, targetID)
	if err != nil {
		c.respondError(s, interaction, err)
		return
	}

	if len(fines) == 0 {
		c.respond(s, interaction, fmt.Sprintf("<@%s> has no outstanding fines.", targetID), false)
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Outstanding fines for <@%s>:\n", targetID)
	for i, fine := range fines {
		fmt.Fprintf(&sb, "%d. %d coins (issued by <@%s>)\n", i+1, fine.Amount, fine.IssuerID)
	}

	c.respond(s, interaction, sb.String(), false)
}

func (c *Client) handlePayFine(ctx context.Context, s *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if c.economy == nil {
		c.respond(s, interaction, "The economy is not enabled.", true)
		return
	}

	options := optionMap(interaction.ApplicationCommandData())
	number := options["number"].IntValue()
	userID := invokerID(interaction)

	newBalance, err := c.economy.PayFine(ctx, userID, int(number)-1)
	if err != nil {
		c.respondError(s, interaction, err)
		return
	}

	c.respond(s, interaction, fmt.Sprintf("Fine paid. Your balance is now %d coins.", newBalance), false)
}

func (c *Client) handleSetRolePay(ctx context.Context, s *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if c.rolePayments == nil {
		c.respond(s, interaction, "Role payments are not enabled.", true)
		return
	}

	options := optionMap(interaction.ApplicationCommandData())
	role := options["role"].RoleValue(s, interaction.GuildID)
	amount := options["amount"].IntValue()

	if err := c.rolePayments.Configure(ctx, role.ID, amount); err != nil {
		c.respondError(s, interaction, err)
		return
	}

	c.respond(s, interaction, fmt.Sprintf("Members of <@&%s> will now receive %d coins per day.", role.ID, amount), false)
}

func (c *Client) handleRemoveRolePay(ctx context.Context, s *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if c.rolePayments == nil {
		c.respond(s, interaction, "Role payments are not enabled.", true)
		return
	}

	options := optionMap(interaction.ApplicationCommandData())
	role := options["role"].RoleValue(s, interaction.GuildID)

	if err := c.rolePayments.Remove(ctx, role.ID); err != nil {
		c.respondError(s, interaction, err)
		return
	}

	c.respond(s, interaction, fmt.Sprintf("Recurring payment for <@&%s> removed.", role.ID), false)
}

func (c *Client) handleAddResponse(ctx context.Context, s *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if c.responder == nil {
		c.respond(s, interaction, "Auto-responses are not enabled.", true)
		return
	}

	options := optionMap(interaction.ApplicationCommandData())
	trigger := options["trigger"].StringValue()
	reply := options["response"].StringValue()

	if err := c.responder.Set(ctx, interaction.GuildID, trigger, reply); err != nil {
		c.respondError(s, interaction, err)
		return
	}

	c.respond(s, interaction, fmt.Sprintf("Auto-response added: %q now replies %q.", trigger, reply), false)
}

func (c *Client) handleRemoveResponse(ctx context.Context, s *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if c.responder == nil {
		c.respond(s, interaction, "Auto-responses are not enabled.", true)
		return
	}

	options := optionMap(interaction.ApplicationCommandData())
	trigger := options["trigger"].StringValue()

	removed, err := c.responder.Remove(ctx, interaction.GuildID, trigger)
	if err != nil {
		c.respondError(s, interaction, err)
		return
	}

	if !removed {
		c.respond(s, interaction, fmt.Sprintf("No auto-response found for %q.", trigger), true)
		return
	}

	c.respond(s, interaction, fmt.Sprintf("Auto-response %q removed.", trigger), false)
}

func (c *Client) handleListResponses(ctx context.Context, s *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if c.responder == nil {
		c.respond(s, interaction, "Auto-responses are not enabled.", true)
		return
	}

	responses, err := c.responder.List(ctx, interaction.GuildID)
	if err != nil {
		c.respondError(s, interaction, err)
		return
	}

	if len(responses) == 0 {
		c.respond(s, interaction, "No auto-responses configured.", false)
		return
	}

	var sb strings.Builder
	sb.WriteString("Configured auto-responses:\n")
	for _, resp := range responses {
		fmt.Fprintf(&sb, "• %q → %q\n", resp.Trigger, resp.Response)
	}

	c.respond(s, interaction, sb.String(), false)
}
