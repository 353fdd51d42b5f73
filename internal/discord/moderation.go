package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"discord_assistant_bot/internal/logging"
)

const (
	mutedRoleName       = "Muted"
	defaultClearAmount  = 5
	maxBulkDeleteWindow = 100
)

// handleModeration dispatches the moderation shortcuts. These are thin
// delegations to the platform; permission checks are enforced by Discord's
// default member permissions on each command.
func (c *Client) handleModeration(s *discordgo.Session, interaction *discordgo.InteractionCreate, name string) {
	switch name {
	case "kick":
		c.handleKick(s, interaction)
	case "ban":
		c.handleBan(s, interaction)
	case "unban":
		c.handleUnban(s, interaction)
	case "mute":
		c.handleMute(s, interaction)
	case "unmute":
		c.handleUnmute(s, interaction)
	case "clear":
		c.handleClear(s, interaction)
	}
}

func (c *Client) handleKick(s *discordgo.Session, interaction *discordgo.InteractionCreate) {
	options := optionMap(interaction.ApplicationCommandData())
	target := options["user"].UserValue(s)

	reason := ""
	if opt, ok := options["reason"]; ok {
		reason = opt.StringValue()
	}

	if err := s.GuildMemberDeleteWithReason(interaction.GuildID, target.ID, reason); err != nil {
		c.moderationError(s, interaction, "kick", err)
		return
	}

	c.respond(s, interaction, fmt.Sprintf("<@%s> was kicked.", target.ID), false)
}

func (c *Client) handleBan(s *discordgo.Session, interaction *discordgo.InteractionCreate) {
	options := optionMap(interaction.ApplicationCommandData())
	target := options["user"].UserValue(s)

	reason := ""
	if opt, ok := options["reason"]; ok {
		reason = opt.StringValue()
	}

	if err := s.GuildBanCreateWithReason(interaction.GuildID, target.ID, reason, 0); err != nil {
		c.moderationError(s, interaction, "ban", err)
		return
	}

	c.respond(s, interaction, fmt.Sprintf("<@%s> was banned.", target.ID), false)
}

func (c *Client) handleUnban(s *discordgo.Session, interaction *discordgo.InteractionCreate) {
	options := optionMap(interaction.ApplicationCommandData())
	userID := options["user_id"].StringValue()

	if err := s.GuildBanDelete(interaction.GuildID, userID); err != nil {
		c.moderationError(s, interaction, "unban", err)
		return
	}

	c.respond(s, interaction, fmt.Sprintf("<@%s> was unbanned.", userID), false)
}

func (c *Client) handleMute(s *discordgo.Session, interaction *discordgo.InteractionCreate) {
	options := optionMap(interaction.ApplicationCommandData())
	target := options["user"].UserValue(s)

	roleID, err := c.ensureMutedRole(s, interaction.GuildID)
	if err != nil {
		c.moderationError(s, interaction, "mute", err)
		return
	}

	if err := s.GuildMemberRoleAdd(interaction.GuildID, target.ID, roleID); err != nil {
		c.moderationError(s, interaction, "mute", err)
		return
	}

	c.respond(s, interaction, fmt.Sprintf("<@%s> was muted.", target.ID), false)
}

func (c *Client) handleUnmute(s *discordgo.Session, interaction *discordgo.InteractionCreate) {
	options := optionMap(interaction.ApplicationCommandData())
	target := options["user"].UserValue(s)

	roleID := c.findMutedRole(s, interaction.GuildID)
	if roleID == "" {
		c.respond(s, interaction, "This server has no Muted role.", true)
		return
	}

	if err := s.GuildMemberRoleRemove(interaction.GuildID, target.ID, roleID); err != nil {
		c.moderationError(s, interaction, "unmute", err)
		return
	}

	c.respond(s, interaction, fmt.Sprintf("<@%s> was unmuted.", target.ID), false)
}

func (c *Client) handleClear(s *discordgo.Session, interaction *discordgo.InteractionCreate) {
	amount := int64(defaultClearAmount)
	if opt, ok := optionMap(interaction.ApplicationCommandData())["amount"]; ok {
		amount = opt.IntValue()
	}
	if amount < 1 {
		amount = defaultClearAmount
	}
	if amount > maxBulkDeleteWindow {
		amount = maxBulkDeleteWindow
	}

	messages, err := s.ChannelMessages(interaction.ChannelID, int(amount), "", "", "")
	if err != nil {
		c.moderationError(s, interaction, "clear", err)
		return
	}

	ids := make([]string, 0, len(messages))
	for _, message := range messages {
		ids = append(ids, message.ID)
	}

	if err := s.ChannelMessagesBulkDelete(interaction.ChannelID, ids); err != nil {
		c.moderationError(s, interaction, "clear", err)
		return
	}

	c.respond(s, interaction, fmt.Sprintf("Deleted %d messages.", len(ids)), true)
}

// ensureMutedRole returns the guild's Muted role, creating it with
// channel-wide deny overwrites when absent.
func (c *Client) ensureMutedRole(s *discordgo.Session, guildID string) (string, error) {
	if roleID := c.findMutedRole(s, guildID); roleID != "" {
		return roleID, nil
	}

	role, err := s.GuildRoleCreate(guildID, &discordgo.RoleParams{Name: mutedRoleName})
	if err != nil {
		return "", fmt.Errorf("create muted role: %w", err)
	}

	channels, err := s.GuildChannels(guildID)
	if err != nil {
		return "", fmt.Errorf("list channels for muted role: %w", err)
	}

	for _, channel := range channels {
		err := s.ChannelPermissionSet(channel.ID, role.ID, discordgo.PermissionOverwriteTypeRole,
			discordgo.PermissionViewChannel|discordgo.PermissionReadMessageHistory,
			discordgo.PermissionSendMessages|discordgo.PermissionVoiceSpeak,
		)
		if err != nil {
			c.logger.WithFields(logging.Fields{
				"event":      "muted_overwrite_failed",
				"channel_id": channel.ID,
			}).WithError(err).Warn("could not set muted overwrite on channel")
		}
	}

	return role.ID, nil
}

func (c *Client) findMutedRole(s *discordgo.Session, guildID string) string {
	guild, err := s.State.Guild(guildID)
	if err != nil {
		roles, err := s.GuildRoles(guildID)
		if err != nil {
			return ""
		}
		for _, role := range roles {
			if role.Name == mutedRoleName {
				return role.ID
			}
		}
		return ""
	}

	for _, role := range guild.Roles {
		if role.Name == mutedRoleName {
			return role.ID
		}
	}

	return ""
}

func (c *Client) moderationError(s *discordgo.Session, interaction *discordgo.InteractionCreate, action string, err error) {
	c.logger.WithFields(logging.Fields{
		"event":  "moderation_failed",
		"action": action,
	}).WithError(err).Warn("moderation action failed")

	c.respond(s, interaction, "Could not "+action+" that user; check the bot's permissions.", true)
}
