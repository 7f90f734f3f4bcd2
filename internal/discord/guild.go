// Package discord adapts a discordgo session to the attribution engine's Guild.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/flor3z/invite-role-bot/internal/attribution"
	"github.com/flor3z/invite-role-bot/internal/invite"
)

// API is the subset of *discordgo.Session used by Guild
type API interface {
	GuildInvites(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Invite, error)
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
}

// Guild talks to one Discord server over REST
type Guild struct {
	api     API
	guildID string
}

// NewGuild creates a Guild for guildID
func NewGuild(api API, guildID string) *Guild {
	return &Guild{api: api, guildID: guildID}
}

// ListInvites returns the server's invites in the order Discord lists them
func (g *Guild) ListInvites(ctx context.Context) ([]invite.Record, error) {
	invites, err := g.api.GuildInvites(g.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	return toRecords(invites), nil
}

// FindRole resolves a role name to its ID
func (g *Guild) FindRole(ctx context.Context, name string) (string, error) {
	roles, err := g.api.GuildRoles(g.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to list roles: %w", err)
	}

	for _, r := range roles {
		if r != nil && r.Name == name {
			return r.ID, nil
		}
	}
	return "", fmt.Errorf("%w: @%s", attribution.ErrRoleNotFound, name)
}

// GrantRole adds a role to a member with an audit log reason
func (g *Guild) GrantRole(ctx context.Context, memberID, roleID, reason string) error {
	err := g.api.GuildMemberRoleAdd(g.guildID, memberID, roleID,
		discordgo.WithContext(ctx),
		discordgo.WithAuditLogReason(reason),
	)
	if err != nil {
		return fmt.Errorf("failed to add role: %w", err)
	}
	return nil
}

func toRecords(invites []*discordgo.Invite) []invite.Record {
	records := make([]invite.Record, 0, len(invites))
	for _, inv := range invites {
		if inv == nil || inv.Code == "" {
			continue
		}
		records = append(records, invite.Record{Code: inv.Code, Uses: inv.Uses})
	}
	return records
}
