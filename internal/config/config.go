package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/flor3z/invite-role-bot/internal/role"
	"github.com/joho/godotenv"
)

// Config holds all configuration values for the bot
type Config struct {
	// Discord
	DiscordToken     string `env:"DISCORD_TOKEN"`
	GuildID          string `env:"DISCORD_GUILD_ID"`
	RegisterCommands bool   `env:"REGISTER_COMMANDS" envDefault:"true"`

	// Invite tokens, either a bare code or an invite URL
	InviteModerator   string `env:"INVITE_MODERATOR"`
	InviteContributor string `env:"INVITE_CONTRIBUTOR"`
	InviteMentor      string `env:"INVITE_MENTOR"`
	InviteJury        string `env:"INVITE_JURY"`

	// Server role names per category
	RoleModerator   string `env:"ROLE_MODERATOR"   envDefault:"Moderator"`
	RoleContributor string `env:"ROLE_CONTRIBUTOR" envDefault:"Contributor"`
	RoleMentor      string `env:"ROLE_MENTOR"      envDefault:"Mentor"`
	RoleJury        string `env:"ROLE_JURY"        envDefault:"Jury"`

	// Database
	DatabasePath string `env:"DATABASE_PATH" envDefault:"./data/bot.db"`

	// Event processing
	EventQueueSize        int  `env:"EVENT_QUEUE_SIZE"        envDefault:"64"`
	ResyncIntervalSeconds int  `env:"RESYNC_INTERVAL_SECONDS" envDefault:"0"`
	TrackInviteEvents     bool `env:"TRACK_INVITE_EVENTS"     envDefault:"true"`

	// Metrics, empty disables the endpoint
	MetricsAddr string `env:"METRICS_ADDR"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	return parse()
}

func parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	// Validate required fields
	if cfg.DiscordToken == "" {
		return nil, fmt.Errorf("DISCORD_TOKEN is required")
	}
	if cfg.GuildID == "" {
		return nil, fmt.Errorf("DISCORD_GUILD_ID is required")
	}
	if cfg.EventQueueSize < 1 {
		return nil, fmt.Errorf("invalid EVENT_QUEUE_SIZE: %d", cfg.EventQueueSize)
	}
	if cfg.ResyncIntervalSeconds < 0 {
		return nil, fmt.Errorf("invalid RESYNC_INTERVAL_SECONDS: %d", cfg.ResyncIntervalSeconds)
	}

	return cfg, nil
}

// InviteTokens returns the configured invite token per role category
func (c *Config) InviteTokens() map[role.Category]string {
	return map[role.Category]string{
		role.CategoryModerator:   c.InviteModerator,
		role.CategoryContributor: c.InviteContributor,
		role.CategoryMentor:      c.InviteMentor,
		role.CategoryJury:        c.InviteJury,
	}
}

// RoleCatalog returns the built-in categories with configured role names
func (c *Config) RoleCatalog() *role.Catalog {
	names := map[role.Category]string{
		role.CategoryModerator:   c.RoleModerator,
		role.CategoryContributor: c.RoleContributor,
		role.CategoryMentor:      c.RoleMentor,
		role.CategoryJury:        c.RoleJury,
	}

	catalog := role.NewCatalog()
	for _, def := range role.DefaultDefinitions() {
		if name := names[def.Category]; name != "" {
			def.RoleName = name
		}
		catalog.Register(def)
	}
	return catalog
}
