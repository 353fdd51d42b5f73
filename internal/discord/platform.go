package discord

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"

	"discord_assistant_bot/internal/feature/support"
	"discord_assistant_bot/internal/logging"
)

// memberPageSize is the gateway maximum for one member listing request.
const memberPageSize = 1000

// PlatformAdapter implements the platform collaborator interfaces consumed by
// the feature services on top of the Discord session. Every call can fail
// independently of store failures and is reported as such.
type PlatformAdapter struct {
	session *discordgo.Session
	logger  *logrus.Entry
}

// NewPlatformAdapter constructs a PlatformAdapter.
func NewPlatformAdapter(session *discordgo.Session, logger *logrus.Entry) *PlatformAdapter {
	if logger == nil {
		logger = logging.Logger()
	}

	return &PlatformAdapter{
		session: session,
		logger:  logger,
	}
}

// ListCategories returns the guild's current channel categories, sourced live
// rather than cached.
func (a *PlatformAdapter) ListCategories(ctx context.Context, guildID string) ([]support.Category, error) {
	if a == nil || a.session == nil {
		return nil, errors.New("platform adapter is not initialized")
	}

	channels, err := a.session.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("list guild channels: %w", err)
	}

	var categories []support.Category
	for _, channel := range channels {
		if channel.Type == discordgo.ChannelTypeGuildCategory {
			categories = append(categories, support.Category{ID: channel.ID, Name: channel.Name})
		}
	}

	return categories, nil
}

// CreateTicketChannel creates a private text channel under the category,
// visible only to the requesting user and the bot.
func (a *PlatformAdapter) CreateTicketChannel(ctx context.Context, guildID, categoryID, userID string) (string, error) {
	if a == nil || a.session == nil {
		return "", errors.New("platform adapter is not initialized")
	}

	overwrites := []*discordgo.PermissionOverwrite{
		{
			// The @everyone role shares the guild's id.
			ID:   guildID,
			Type: discordgo.PermissionOverwriteTypeRole,
			Deny: discordgo.PermissionViewChannel,
		},
		{
			ID:    userID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionReadMessageHistory,
		},
	}

	if a.session.State != nil && a.session.State.User != nil {
		overwrites = append(overwrites, &discordgo.PermissionOverwrite{
			ID:    a.session.State.User.ID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionReadMessageHistory,
		})
	}

	channel, err := a.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:                 "ticket-" + userID,
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             categoryID,
		PermissionOverwrites: overwrites,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("create ticket channel: %w", err)
	}

	return channel.ID, nil
}

// SendDirectMessage delivers a DM to the user.
func (a *PlatformAdapter) SendDirectMessage(ctx context.Context, userID, content string) error {
	if a == nil || a.session == nil {
		return errors.New("platform adapter is not initialized")
	}

	channel, err := a.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open dm channel: %w", err)
	}

	if _, err := a.session.ChannelMessageSend(channel.ID, content, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send dm: %w", err)
	}

	return nil
}

// ListRoleMembers enumerates the current holders of a role. The owning guild
// is resolved from the session state; membership is paged through the REST
// API so the listing is complete even when the member cache is not.
func (a *PlatformAdapter) ListRoleMembers(ctx context.Context, roleID string) ([]string, error) {
	if a == nil || a.session == nil {
		return nil, errors.New("platform adapter is not initialized")
	}

	guildID, err := a.guildForRole(roleID)
	if err != nil {
		return nil, err
	}

	var holders []string
	after := ""
	for {
		members, err := a.session.GuildMembers(guildID, after, memberPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("list guild members: %w", err)
		}
		if len(members) == 0 {
			break
		}

		for _, member := range members {
			if member.User == nil || member.User.Bot {
				continue
			}
			for _, memberRole := range member.Roles {
				if memberRole == roleID {
					holders = append(holders, member.User.ID)
					break
				}
			}
		}

		after = members[len(members)-1].User.ID
		if len(members) < memberPageSize {
			break
		}
	}

	return holders, nil
}

func (a *PlatformAdapter) guildForRole(roleID string) (string, error) {
	if a.session.State == nil {
		return "", errors.New("session state is unavailable")
	}

	for _, guild := range a.session.State.Guilds {
		stateGuild, err := a.session.State.Guild(guild.ID)
		if err != nil {
			continue
		}
		for _, role := range stateGuild.Roles {
			if role.ID == roleID {
				return guild.ID, nil
			}
		}
	}

	return "", fmt.Errorf("no guild holds role %s", roleID)
}
