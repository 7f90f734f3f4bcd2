package bot

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/flor3z/invite-role-bot/internal/invite"
	"github.com/flor3z/invite-role-bot/internal/role"
	"github.com/flor3z/invite-role-bot/internal/storage"
)

// buildRoleChoices creates the role category choices for slash commands
func (b *Bot) buildRoleChoices() []*discordgo.ApplicationCommandOptionChoice {
	defs := b.catalog.List()
	choices := make([]*discordgo.ApplicationCommandOptionChoice, len(defs))
	for i, def := range defs {
		choices[i] = &discordgo.ApplicationCommandOptionChoice{
			Name:  fmt.Sprintf("%s (@%s)", def.Category, def.RoleName),
			Value: string(def.Category),
		}
	}
	return choices
}

// Slash command definitions
func (b *Bot) getCommandDefinitions() []*discordgo.ApplicationCommand {
	manageRoles := int64(discordgo.PermissionManageRoles)

	return []*discordgo.ApplicationCommand{
		{
			Name:                     "bindings",
			Description:              "List invite links that grant roles",
			DefaultMemberPermissions: &manageRoles,
		},
		{
			Name:                     "bind",
			Description:              "Bind an invite link to a role (applies after restart)",
			DefaultMemberPermissions: &manageRoles,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "invite",
					Description: "Invite code or link (e.g., discord.gg/abc123)",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "role",
					Description: "Role category granted by the invite",
					Required:    true,
					Choices:     b.buildRoleChoices(),
				},
			},
		},
		{
			Name:                     "unbind",
			Description:              "Remove a stored invite binding (applies after restart)",
			DefaultMemberPermissions: &manageRoles,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "invite",
					Description: "Invite code or link",
					Required:    true,
				},
			},
		},
	}
}

// registerCommands registers all slash commands on the configured server
func (b *Bot) registerCommands() error {
	slog.Info("Registering slash commands")

	commandDefinitions := b.getCommandDefinitions()

	// Guild commands are upserted by name
	for _, cmd := range commandDefinitions {
		_, err := b.session.ApplicationCommandCreate(
			b.session.State.User.ID,
			b.config.GuildID,
			cmd,
		)
		if err != nil {
			return fmt.Errorf("failed to register command %s: %w", cmd.Name, err)
		}
		slog.Debug("Registered command", "name", cmd.Name)
	}

	slog.Info("Slash commands registered", "count", len(commandDefinitions))
	return nil
}

// handleInteraction processes slash command interactions
func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand || i.GuildID != b.config.GuildID {
		return
	}

	data := i.ApplicationCommandData()
	slog.Debug("Received command", "command", data.Name, "guild", i.GuildID)

	var content string
	switch data.Name {
	case "bindings":
		content = b.handleBindings()
	case "bind":
		opts := optionMap(data.Options)
		content = b.handleBind(opts["invite"], opts["role"], interactionUserID(i))
	case "unbind":
		opts := optionMap(data.Options)
		content = b.handleUnbind(opts["invite"])
	default:
		slog.Warn("Unknown command", "command", data.Name)
		return
	}

	respondWithMessage(s, i, content)
}

// handleBindings lists active bindings and stored changes waiting for a restart
func (b *Bot) handleBindings() string {
	stored, err := b.repo.ListBindings()
	if err != nil {
		slog.Error("Failed to list stored bindings", "error", err)
		stored = nil
	}

	var snapshot invite.Snapshot
	if b.engine != nil {
		snapshot = b.engine.Snapshot()
	}
	return formatBindings(b.bindings.List(), b.catalog, snapshot, stored)
}

// handleBind stores a binding after checking it cannot break the next startup
func (b *Bot) handleBind(token, category, userID string) string {
	code := invite.NormalizeCode(token)
	if code == "" {
		return "Please provide an invite code or link."
	}

	cat := role.Category(category)
	if !b.catalog.Has(cat) {
		return fmt.Sprintf("Unknown role category: `%s`.", category)
	}

	for _, eb := range b.envBindings {
		if eb.Code == code && eb.Category != cat {
			return fmt.Sprintf("Invite `%s` is already bound to **%s** in the environment configuration.", code, eb.Category)
		}
	}

	previous, err := b.repo.GetBinding(code)
	switch {
	case errors.Is(err, storage.ErrBindingNotFound):
		previous = nil
	case err != nil:
		slog.Error("Failed to load binding", "invite", code, "error", err)
		return "Failed to save binding. Please try again."
	case previous.Category == string(cat):
		return fmt.Sprintf("Invite `%s` is already stored for **%s**.", code, cat)
	}

	err = b.repo.UpsertBinding(&storage.InviteBinding{
		Code:      code,
		Category:  string(cat),
		CreatedBy: userID,
	})
	if err != nil {
		slog.Error("Failed to save binding", "invite", code, "error", err)
		return "Failed to save binding. Please try again."
	}

	if previous != nil {
		slog.Info("Updated invite binding", "invite", code, "from", previous.Category, "role", cat, "by", userID)
		return fmt.Sprintf("Updated: invite `%s` will grant **%s** instead of **%s** after the bot restarts.", code, cat, previous.Category)
	}

	slog.Info("Stored invite binding", "invite", code, "role", cat, "by", userID)
	return fmt.Sprintf("Saved: invite `%s` will grant **%s** after the bot restarts.", code, cat)
}

// handleUnbind removes a stored binding
func (b *Bot) handleUnbind(token string) string {
	code := invite.NormalizeCode(token)
	if code == "" {
		return "Please provide an invite code or link."
	}

	for _, eb := range b.envBindings {
		if eb.Code == code {
			return fmt.Sprintf("Invite `%s` is configured through the environment and cannot be removed here.", code)
		}
	}

	if err := b.repo.DeleteBinding(code); err != nil {
		if errors.Is(err, storage.ErrBindingNotFound) {
			return fmt.Sprintf("Invite `%s` has no stored binding.", code)
		}
		slog.Error("Failed to delete binding", "invite", code, "error", err)
		return "Failed to remove binding. Please try again."
	}

	slog.Info("Removed invite binding", "invite", code)
	return fmt.Sprintf("Removed: invite `%s` will stop granting roles after the bot restarts.", code)
}

func formatBindings(active []role.Binding, catalog *role.Catalog, snapshot invite.Snapshot, stored []*storage.InviteBinding) string {
	var sb strings.Builder
	sb.WriteString("**Active invite bindings:**\n\n")

	activeCodes := make(map[string]role.Category, len(active))
	for idx, binding := range active {
		activeCodes[binding.Code] = binding.Category
		roleName := "UNKNOWN"
		if def, err := catalog.Get(binding.Category); err == nil {
			roleName = def.RoleName
		}
		line := fmt.Sprintf("  %d. `%s` → %s → @%s", idx+1, binding.Code, binding.Category, roleName)
		if snapshot.Len() > 0 {
			if uses, ok := snapshot.Uses(binding.Code); ok {
				line += fmt.Sprintf(" (%d uses)", uses)
			} else {
				line += " (not listed on the server)"
			}
		}
		sb.WriteString(line + "\n")
	}

	var pending []string
	for _, sbnd := range stored {
		if cat, ok := activeCodes[sbnd.Code]; ok && string(cat) == sbnd.Category {
			continue
		}
		pending = append(pending, fmt.Sprintf("  `%s` → %s\n", sbnd.Code, sbnd.Category))
	}
	if len(pending) > 0 {
		sb.WriteString("\n**Pending restart:**\n")
		for _, line := range pending {
			sb.WriteString(line)
		}
	}

	return sb.String()
}

// Helper functions

func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]string {
	m := make(map[string]string, len(options))
	for _, opt := range options {
		if opt.Type == discordgo.ApplicationCommandOptionString {
			m[opt.Name] = opt.StringValue()
		}
	}
	return m
}

func interactionUserID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func respondWithMessage(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		slog.Error("Failed to respond to interaction", "error", err)
	}
}
