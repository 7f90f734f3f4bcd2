package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/flor3z/invite-role-bot/internal/attribution"
	"github.com/flor3z/invite-role-bot/internal/config"
	"github.com/flor3z/invite-role-bot/internal/discord"
	"github.com/flor3z/invite-role-bot/internal/dispatch"
	"github.com/flor3z/invite-role-bot/internal/invite"
	"github.com/flor3z/invite-role-bot/internal/metrics"
	"github.com/flor3z/invite-role-bot/internal/poller"
	"github.com/flor3z/invite-role-bot/internal/role"
	"github.com/flor3z/invite-role-bot/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

// Bot represents the Discord bot instance
type Bot struct {
	config      *config.Config
	session     *discordgo.Session
	repo        *storage.Repository
	catalog     *role.Catalog
	envBindings []role.Binding
	bindings    *role.BindingSet
	engine      *attribution.Engine
	dispatcher  *dispatch.Dispatcher
	poller      *poller.Poller
	registry    *prometheus.Registry
	metricsSrv  *http.Server
	metricsLn   net.Listener

	ctx   context.Context
	group errgroup.Group
	errs  chan error
}

// New creates a new Bot instance
func New(cfg *config.Config) (*Bot, error) {
	// Create Discord session
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	// Joins and invite counters need the members and invites intents
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildInvites

	// Initialize storage
	repo, err := storage.NewRepository(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	catalog := cfg.RoleCatalog()
	envBindings, bindings, err := loadBindings(repo, catalog, cfg.InviteTokens())
	if err != nil {
		repo.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	engine := attribution.New(
		discord.NewGuild(session, cfg.GuildID),
		invite.NewStore(),
		bindings,
		catalog,
		m,
	)
	dispatcher := dispatch.New(engine, cfg.EventQueueSize)

	b := &Bot{
		config:      cfg,
		session:     session,
		repo:        repo,
		catalog:     catalog,
		envBindings: envBindings,
		bindings:    bindings,
		engine:      engine,
		dispatcher:  dispatcher,
		poller:      poller.New(dispatcher, cfg.ResyncIntervalSeconds),
		registry:    registry,
		ctx:         context.Background(),
		errs:        make(chan error, 1),
	}

	// Register event handlers
	b.registerHandlers()

	return b, nil
}

// loadBindings builds the binding set from configured tokens and stored bindings
func loadBindings(repo *storage.Repository, catalog *role.Catalog, tokens map[role.Category]string) ([]role.Binding, *role.BindingSet, error) {
	envBindings, missing := role.FromTokens(catalog, tokens)
	for _, def := range missing {
		slog.Warn("Missing invite token, category will not be attributable",
			"envVar", def.EnvVar, "role", def.Category)
	}

	stored, err := repo.ListBindings()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load stored bindings: %w", err)
	}
	storedBindings := make([]role.Binding, 0, len(stored))
	for _, sb := range stored {
		storedBindings = append(storedBindings, role.Binding{Code: sb.Code, Category: role.Category(sb.Category)})
	}

	bindings, err := role.NewBindingSet(catalog, envBindings, storedBindings)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid invite bindings: %w", err)
	}

	slog.Info("Loaded invite bindings", "count", bindings.Len(), "stored", len(storedBindings))
	for _, binding := range bindings.List() {
		def, _ := catalog.Get(binding.Category)
		slog.Info("Invite binding", "invite", binding.Code, "role", binding.Category, "serverRole", "@"+def.RoleName)
	}

	return envBindings, bindings, nil
}

// Start opens the Discord connection and starts background tasks
func (b *Bot) Start(ctx context.Context) error {
	// The dispatcher runs before the session opens so the ready event is never lost
	if err := b.startBackground(ctx); err != nil {
		return err
	}

	// Open Discord connection
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	slog.Info("Connected to Discord", "user", b.session.State.User.Username)

	guild, err := b.session.Guild(b.config.GuildID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("server %s not found: %w", b.config.GuildID, err)
	}
	slog.Info("Server", "name", guild.Name, "guildID", guild.ID)

	if b.config.RegisterCommands {
		if err := b.registerCommands(); err != nil {
			return fmt.Errorf("failed to register commands: %w", err)
		}
	}

	return nil
}

// Errors delivers the first background task failure. Attribution keeps
// running after one; the caller decides whether to shut down.
func (b *Bot) Errors() <-chan error {
	return b.errs
}

// startBackground binds the metrics listener and launches the dispatcher,
// poller and metrics server. Only the listener bind can fail here.
func (b *Bot) startBackground(ctx context.Context) error {
	if b.config.MetricsAddr != "" {
		ln, err := net.Listen("tcp", b.config.MetricsAddr)
		if err != nil {
			return fmt.Errorf("failed to listen for metrics on %s: %w", b.config.MetricsAddr, err)
		}
		b.metricsLn = ln
		b.metricsSrv = metrics.NewServer(b.config.MetricsAddr, b.registry)
	}

	// Event handling uses the caller's context, never one a side task can cancel
	b.ctx = ctx

	b.group.Go(func() error {
		b.dispatcher.Run(ctx)
		return nil
	})

	b.group.Go(func() error {
		b.poller.Start(ctx)
		return nil
	})

	if b.metricsSrv != nil {
		srv, ln := b.metricsSrv, b.metricsLn
		b.group.Go(func() error {
			slog.Info("Serving metrics", "addr", ln.Addr().String())
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				err = fmt.Errorf("metrics server: %w", err)
				slog.Error("Metrics server failed", "error", err)
				b.reportFailure(err)
				return err
			}
			return nil
		})
	}

	return nil
}

func (b *Bot) reportFailure(err error) {
	select {
	case b.errs <- err:
	default:
	}
}

// Stop gracefully shuts down the bot
func (b *Bot) Stop() error {
	// Stop accepting gateway events first
	var sessionErr error
	if b.session != nil {
		sessionErr = b.session.Close()
	}

	b.poller.Stop()
	b.dispatcher.Stop()

	if b.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := b.metricsSrv.Shutdown(ctx); err != nil {
			slog.Error("Failed to stop metrics server", "error", err)
		}
	}

	if err := b.group.Wait(); err != nil {
		slog.Error("Background task failed", "error", err)
	}

	// Close storage
	if b.repo != nil {
		b.repo.Close()
	}

	return sessionErr
}

// registerHandlers sets up Discord event handlers
func (b *Bot) registerHandlers() {
	b.session.AddHandler(b.handleInteraction)
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMemberJoin)
	if b.config.TrackInviteEvents {
		b.session.AddHandler(b.onInviteCreate)
		b.session.AddHandler(b.onInviteDelete)
	}
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	slog.Info("Bot is ready", "guilds", len(r.Guilds))

	found := false
	for _, g := range r.Guilds {
		if g.ID == b.config.GuildID {
			found = true
			break
		}
	}
	if !found {
		slog.Error("Server not found in ready payload", "guildID", b.config.GuildID)
		return
	}

	b.submit(dispatch.Ready())
}

func (b *Bot) onMemberJoin(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.Member == nil || m.User == nil || m.GuildID != b.config.GuildID {
		return
	}

	b.submit(dispatch.Join(attribution.JoinEvent{
		MemberID:   m.User.ID,
		MemberName: m.User.Username,
	}))
}

func (b *Bot) onInviteCreate(s *discordgo.Session, i *discordgo.InviteCreate) {
	if i.Invite == nil || i.GuildID != b.config.GuildID {
		return
	}
	slog.Debug("Invite created", "invite", i.Code)
	b.submit(dispatch.Resync("invite created"))
}

func (b *Bot) onInviteDelete(s *discordgo.Session, i *discordgo.InviteDelete) {
	if i.GuildID != b.config.GuildID {
		return
	}
	slog.Debug("Invite deleted", "invite", i.Code)
	b.submit(dispatch.Resync("invite deleted"))
}

func (b *Bot) submit(ev dispatch.Event) {
	if err := b.dispatcher.Submit(b.ctx, ev); err != nil {
		slog.Warn("Dropped event", "type", ev.Type, "error", err)
	}
}
