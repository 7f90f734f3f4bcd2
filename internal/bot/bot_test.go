package bot

import (
	"context"
	"net"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/flor3z/invite-role-bot/internal/attribution"
	"github.com/flor3z/invite-role-bot/internal/config"
	"github.com/flor3z/invite-role-bot/internal/dispatch"
	"github.com/flor3z/invite-role-bot/internal/invite"
	"github.com/flor3z/invite-role-bot/internal/metrics"
	"github.com/flor3z/invite-role-bot/internal/poller"
	"github.com/flor3z/invite-role-bot/internal/role"
	"github.com/flor3z/invite-role-bot/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopHandler struct{}

func (nopHandler) Prime(ctx context.Context) error  { return nil }
func (nopHandler) Resync(ctx context.Context) error { return nil }
func (nopHandler) Attribute(ctx context.Context, ev attribution.JoinEvent) attribution.Outcome {
	return attribution.Outcome{}
}

// joinRecorder remembers which members reached the engine
type joinRecorder struct {
	nopHandler

	mu      sync.Mutex
	members []string
}

func (r *joinRecorder) Attribute(ctx context.Context, ev attribution.JoinEvent) attribution.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members = append(r.members, ev.MemberID)
	return attribution.Outcome{}
}

func (r *joinRecorder) handled() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.members...)
}

// staticGuild always lists the same invites
type staticGuild struct {
	records []invite.Record
}

func (g staticGuild) ListInvites(ctx context.Context) ([]invite.Record, error) {
	return g.records, nil
}

func (g staticGuild) FindRole(ctx context.Context, name string) (string, error) {
	return "", attribution.ErrRoleNotFound
}

func (g staticGuild) GrantRole(ctx context.Context, memberID, roleID, reason string) error {
	return nil
}

func newTestRepository(t *testing.T) *storage.Repository {
	t.Helper()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTestBot(t *testing.T) *Bot {
	t.Helper()
	return newTestBotWithHandler(t, nopHandler{})
}

func newTestBotWithHandler(t *testing.T, handler dispatch.Handler) *Bot {
	t.Helper()

	repo := newTestRepository(t)
	catalog := role.NewCatalog(role.DefaultDefinitions()...)
	envBindings := []role.Binding{{Code: "abc123", Category: role.CategoryModerator}}
	bindings, err := role.NewBindingSet(catalog, envBindings)
	require.NoError(t, err)

	dispatcher := dispatch.New(handler, 8)
	return &Bot{
		config:      &config.Config{GuildID: "g1"},
		repo:        repo,
		catalog:     catalog,
		envBindings: envBindings,
		bindings:    bindings,
		dispatcher:  dispatcher,
		poller:      poller.New(dispatcher, 0),
		registry:    prometheus.NewRegistry(),
		ctx:         context.Background(),
		errs:        make(chan error, 1),
	}
}

func TestLoadBindings(t *testing.T) {
	catalog := role.NewCatalog(role.DefaultDefinitions()...)

	t.Run("merges environment and stored bindings", func(t *testing.T) {
		repo := newTestRepository(t)
		require.NoError(t, repo.UpsertBinding(&storage.InviteBinding{Code: "jury01", Category: "jury"}))

		envBindings, set, err := loadBindings(repo, catalog, map[role.Category]string{
			role.CategoryModerator: "https://discord.gg/abc123",
		})
		require.NoError(t, err)

		assert.Equal(t, []role.Binding{{Code: "abc123", Category: role.CategoryModerator}}, envBindings)
		assert.Equal(t, 2, set.Len())
		category, ok := set.Lookup("jury01")
		assert.True(t, ok)
		assert.Equal(t, role.CategoryJury, category)
	})

	t.Run("conflicting stored binding fails startup", func(t *testing.T) {
		repo := newTestRepository(t)
		require.NoError(t, repo.UpsertBinding(&storage.InviteBinding{Code: "abc123", Category: "mentor"}))

		_, _, err := loadBindings(repo, catalog, map[role.Category]string{
			role.CategoryModerator: "abc123",
		})
		assert.ErrorIs(t, err, role.ErrDuplicateBinding)
	})

	t.Run("zero bindings fails startup", func(t *testing.T) {
		repo := newTestRepository(t)

		_, _, err := loadBindings(repo, catalog, map[role.Category]string{})
		assert.ErrorIs(t, err, role.ErrNoBindings)
	})
}

func TestOnMemberJoin(t *testing.T) {
	b := newTestBot(t)

	b.onMemberJoin(nil, &discordgo.GuildMemberAdd{Member: &discordgo.Member{
		GuildID: "other",
		User:    &discordgo.User{ID: "1", Username: "elsewhere"},
	}})
	b.onMemberJoin(nil, &discordgo.GuildMemberAdd{})
	assert.Equal(t, 0, b.dispatcher.Pending())

	b.onMemberJoin(nil, &discordgo.GuildMemberAdd{Member: &discordgo.Member{
		GuildID: "g1",
		User:    &discordgo.User{ID: "42", Username: "newbie"},
	}})
	assert.Equal(t, 1, b.dispatcher.Pending())
}

func TestOnReady(t *testing.T) {
	b := newTestBot(t)

	b.onReady(nil, &discordgo.Ready{Guilds: []*discordgo.Guild{{ID: "other"}}})
	assert.Equal(t, 0, b.dispatcher.Pending())

	b.onReady(nil, &discordgo.Ready{Guilds: []*discordgo.Guild{{ID: "g1"}}})
	assert.Equal(t, 1, b.dispatcher.Pending())
}

func TestOnInviteEvents(t *testing.T) {
	b := newTestBot(t)

	b.onInviteCreate(nil, &discordgo.InviteCreate{Invite: &discordgo.Invite{Code: "new"}, GuildID: "g1"})
	b.onInviteDelete(nil, &discordgo.InviteDelete{Code: "old", GuildID: "g1"})
	b.onInviteDelete(nil, &discordgo.InviteDelete{Code: "old", GuildID: "other"})

	assert.Equal(t, 2, b.dispatcher.Pending())
}

func TestStartBackground(t *testing.T) {
	t.Run("metrics address in use fails startup", func(t *testing.T) {
		taken, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		t.Cleanup(func() { taken.Close() })

		b := newTestBot(t)
		b.config.MetricsAddr = taken.Addr().String()

		err = b.startBackground(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to listen for metrics")
		assert.Nil(t, b.metricsSrv)
	})

	t.Run("metrics failure keeps attribution running", func(t *testing.T) {
		recorder := &joinRecorder{}
		b := newTestBotWithHandler(t, recorder)
		b.config.MetricsAddr = "127.0.0.1:0"

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		require.NoError(t, b.startBackground(ctx))

		// Break the metrics server after it started serving
		require.NoError(t, b.metricsLn.Close())

		select {
		case err := <-b.Errors():
			assert.Contains(t, err.Error(), "metrics server")
		case <-time.After(5 * time.Second):
			t.Fatal("metrics failure was not reported")
		}

		b.onMemberJoin(nil, &discordgo.GuildMemberAdd{Member: &discordgo.Member{
			GuildID: "g1",
			User:    &discordgo.User{ID: "42", Username: "newbie"},
		}})

		require.Eventually(t, func() bool {
			return len(recorder.handled()) == 1
		}, 5*time.Second, 10*time.Millisecond)
		assert.Equal(t, []string{"42"}, recorder.handled())

		assert.NoError(t, b.Stop())
	})

	t.Run("disabled metrics", func(t *testing.T) {
		b := newTestBot(t)

		require.NoError(t, b.startBackground(context.Background()))
		assert.Nil(t, b.metricsSrv)
		assert.NoError(t, b.Stop())
	})
}

func TestHandleBind(t *testing.T) {
	t.Run("stores binding", func(t *testing.T) {
		b := newTestBot(t)

		msg := b.handleBind("https://discord.gg/men7or", "mentor", "7")
		assert.Contains(t, msg, "Saved")

		stored, err := b.repo.GetBinding("men7or")
		require.NoError(t, err)
		assert.Equal(t, "mentor", stored.Category)
		assert.Equal(t, "7", stored.CreatedBy)
	})

	t.Run("reports replaced category", func(t *testing.T) {
		b := newTestBot(t)
		require.NoError(t, b.repo.UpsertBinding(&storage.InviteBinding{Code: "men7or", Category: "jury"}))

		msg := b.handleBind("men7or", "mentor", "7")
		assert.Contains(t, msg, "Updated")
		assert.Contains(t, msg, "instead of **jury**")

		stored, err := b.repo.GetBinding("men7or")
		require.NoError(t, err)
		assert.Equal(t, "mentor", stored.Category)
	})

	t.Run("unchanged binding is left alone", func(t *testing.T) {
		b := newTestBot(t)
		require.NoError(t, b.repo.UpsertBinding(&storage.InviteBinding{Code: "men7or", Category: "mentor", CreatedBy: "1"}))

		msg := b.handleBind("discord.gg/men7or", "mentor", "7")
		assert.Contains(t, msg, "already stored")

		stored, err := b.repo.GetBinding("men7or")
		require.NoError(t, err)
		assert.Equal(t, "1", stored.CreatedBy)
	})

	t.Run("rejects conflict with environment binding", func(t *testing.T) {
		b := newTestBot(t)

		msg := b.handleBind("abc123", "jury", "7")
		assert.Contains(t, msg, "already bound")

		_, err := b.repo.GetBinding("abc123")
		assert.ErrorIs(t, err, storage.ErrBindingNotFound)
	})

	t.Run("rejects unknown category", func(t *testing.T) {
		b := newTestBot(t)
		assert.Contains(t, b.handleBind("zzz", "janitor", "7"), "Unknown role category")
	})

	t.Run("rejects empty invite", func(t *testing.T) {
		b := newTestBot(t)
		assert.Contains(t, b.handleBind(" ", "mentor", "7"), "Please provide")
	})
}

func TestHandleUnbind(t *testing.T) {
	b := newTestBot(t)
	require.NoError(t, b.repo.UpsertBinding(&storage.InviteBinding{Code: "jury01", Category: "jury"}))

	assert.Contains(t, b.handleUnbind("abc123"), "environment")
	assert.Contains(t, b.handleUnbind("jury01"), "Removed")
	assert.Contains(t, b.handleUnbind("jury01"), "no stored binding")
}

func TestHandleBindings(t *testing.T) {
	b := newTestBot(t)
	require.NoError(t, b.repo.UpsertBinding(&storage.InviteBinding{Code: "abc123", Category: "moderator"}))
	require.NoError(t, b.repo.UpsertBinding(&storage.InviteBinding{Code: "jury01", Category: "jury"}))

	msg := b.handleBindings()

	assert.Contains(t, msg, "`abc123` → moderator → @Moderator")
	assert.Contains(t, msg, "Pending restart")
	assert.Contains(t, msg, "`jury01` → jury")
	assert.NotContains(t, msg, "`abc123` → moderator\n")
}

func TestHandleBindingsShowsInviteUses(t *testing.T) {
	b := newTestBot(t)
	b.engine = attribution.New(
		staticGuild{records: []invite.Record{{Code: "abc123", Uses: 5}}},
		invite.NewStore(),
		b.bindings,
		b.catalog,
		metrics.New(prometheus.NewRegistry()),
	)

	assert.NotContains(t, b.handleBindings(), "uses")

	require.NoError(t, b.engine.Prime(context.Background()))
	assert.Contains(t, b.handleBindings(), "`abc123` → moderator → @Moderator (5 uses)")
}
