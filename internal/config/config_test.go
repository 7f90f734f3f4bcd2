package config

import (
	"testing"

	"github.com/flor3z/invite-role-bot/internal/role"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DISCORD_GUILD_ID", "1396918326868840538")
}

func TestParse_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := parse()
	require.NoError(t, err)

	assert.Equal(t, "token", cfg.DiscordToken)
	assert.Equal(t, "1396918326868840538", cfg.GuildID)
	assert.Equal(t, "./data/bot.db", cfg.DatabasePath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 64, cfg.EventQueueSize)
	assert.Equal(t, 0, cfg.ResyncIntervalSeconds)
	assert.True(t, cfg.TrackInviteEvents)
	assert.True(t, cfg.RegisterCommands)
	assert.Empty(t, cfg.MetricsAddr)
}

func TestParse_RequiredFields(t *testing.T) {
	t.Run("missing token", func(t *testing.T) {
		t.Setenv("DISCORD_TOKEN", "")
		t.Setenv("DISCORD_GUILD_ID", "1")

		_, err := parse()
		assert.ErrorContains(t, err, "DISCORD_TOKEN")
	})

	t.Run("missing guild", func(t *testing.T) {
		t.Setenv("DISCORD_TOKEN", "token")
		t.Setenv("DISCORD_GUILD_ID", "")

		_, err := parse()
		assert.ErrorContains(t, err, "DISCORD_GUILD_ID")
	})
}

func TestParse_InvalidValues(t *testing.T) {
	t.Run("queue size", func(t *testing.T) {
		setRequired(t)
		t.Setenv("EVENT_QUEUE_SIZE", "0")

		_, err := parse()
		assert.ErrorContains(t, err, "EVENT_QUEUE_SIZE")
	})

	t.Run("resync interval not a number", func(t *testing.T) {
		setRequired(t)
		t.Setenv("RESYNC_INTERVAL_SECONDS", "soon")

		_, err := parse()
		assert.Error(t, err)
	})
}

func TestInviteTokens(t *testing.T) {
	setRequired(t)
	t.Setenv("INVITE_MODERATOR", "abc123")
	t.Setenv("INVITE_JURY", "https://discord.gg/jury01")

	cfg, err := parse()
	require.NoError(t, err)

	tokens := cfg.InviteTokens()
	assert.Equal(t, "abc123", tokens[role.CategoryModerator])
	assert.Equal(t, "https://discord.gg/jury01", tokens[role.CategoryJury])
	assert.Empty(t, tokens[role.CategoryMentor])
}

func TestRoleCatalog(t *testing.T) {
	setRequired(t)
	t.Setenv("ROLE_MENTOR", "Coach")

	cfg, err := parse()
	require.NoError(t, err)

	catalog := cfg.RoleCatalog()
	mentor, err := catalog.Get(role.CategoryMentor)
	require.NoError(t, err)
	assert.Equal(t, "Coach", mentor.RoleName)

	moderator, err := catalog.Get(role.CategoryModerator)
	require.NoError(t, err)
	assert.Equal(t, "Moderator", moderator.RoleName)
	assert.Len(t, catalog.List(), 4)
}
