// Package attribution infers which invite a joining member used and grants
// the role bound to it.
package attribution

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flor3z/invite-role-bot/internal/invite"
	"github.com/flor3z/invite-role-bot/internal/metrics"
	"github.com/flor3z/invite-role-bot/internal/role"
	"github.com/google/uuid"
)

// Guild is the remote server the engine reads invites from and grants roles on
type Guild interface {
	// ListInvites returns every active invite with its use counter
	ListInvites(ctx context.Context) ([]invite.Record, error)

	// FindRole resolves a role name to its ID, returning ErrRoleNotFound when absent
	FindRole(ctx context.Context, name string) (string, error)

	// GrantRole adds a role to a member; reason is recorded in the audit log
	GrantRole(ctx context.Context, memberID, roleID, reason string) error
}

// JoinEvent is a member joining the server
type JoinEvent struct {
	MemberID   string
	MemberName string
}

// Engine turns join events into role grants.
// Calls must be serialized by the caller; the store only protects its own snapshot.
type Engine struct {
	guild    Guild
	store    *invite.Store
	bindings *role.BindingSet
	catalog  *role.Catalog
	metrics  *metrics.Metrics
}

// New creates an Engine
func New(guild Guild, store *invite.Store, bindings *role.BindingSet, catalog *role.Catalog, m *metrics.Metrics) *Engine {
	return &Engine{
		guild:    guild,
		store:    store,
		bindings: bindings,
		catalog:  catalog,
		metrics:  m,
	}
}

// Prime populates the initial snapshot
func (e *Engine) Prime(ctx context.Context) error {
	records, err := e.fetch(ctx)
	if err != nil {
		return err
	}
	e.commit(records)
	slog.Info("Cached invites", "count", len(records))
	return nil
}

// Resync replaces the snapshot with a fresh listing without attributing anything
func (e *Engine) Resync(ctx context.Context) error {
	records, err := e.fetch(ctx)
	if err != nil {
		return err
	}
	e.commit(records)
	slog.Debug("Resynced invites", "count", len(records))
	return nil
}

// Snapshot returns the stored snapshot
func (e *Engine) Snapshot() invite.Snapshot {
	return e.store.Current()
}

// Attribute finds the invite used by a join and grants its bound role.
// Every failure is reported in the Outcome; nothing is retried.
func (e *Engine) Attribute(ctx context.Context, ev JoinEvent) Outcome {
	outcome := e.attribute(ctx, ev)
	outcome.log()
	e.metrics.Attributions.WithLabelValues(string(outcome.Kind)).Inc()
	return outcome
}

func (e *Engine) attribute(ctx context.Context, ev JoinEvent) Outcome {
	out := Outcome{
		AttemptID: uuid.NewString(),
		Member:    ev,
	}

	records, err := e.fetch(ctx)
	if err != nil {
		out.Kind = KindFetchError
		out.Err = err
		return out
	}

	// The fresh listing is committed whether or not a winner is found
	previous, current := e.commit(records)

	result, err := invite.Diff(previous, current)
	if err != nil {
		out.Kind = KindIndeterminate
		out.Err = err
		return out
	}
	if len(result.Candidates) > 1 {
		e.metrics.MultiCandidate.Inc()
		slog.Warn("Multiple invite counters increased",
			"attempt", out.AttemptID,
			"candidates", result.Candidates,
			"chosen", result.Winner,
		)
	}
	out.Code = result.Winner

	category, ok := e.bindings.Lookup(result.Winner)
	if !ok {
		out.Kind = KindUnbound
		out.Err = fmt.Errorf("%w: %s", ErrUnboundInvite, result.Winner)
		return out
	}
	out.Category = category

	def, err := e.catalog.Get(category)
	if err != nil {
		out.Kind = KindRoleNotFound
		out.Err = fmt.Errorf("%w: %w", ErrRoleNotFound, err)
		return out
	}

	roleID, err := e.guild.FindRole(ctx, def.RoleName)
	if err != nil {
		out.Kind = KindRoleNotFound
		if !errors.Is(err, ErrRoleNotFound) {
			err = fmt.Errorf("%w: @%s: %w", ErrRoleNotFound, def.RoleName, err)
		}
		out.Err = err
		return out
	}

	reason := fmt.Sprintf("Automatic role assignment via invite (%s)", category)
	if err := e.guild.GrantRole(ctx, ev.MemberID, roleID, reason); err != nil {
		out.Kind = KindGrantError
		out.Err = fmt.Errorf("%w: %w", ErrGrant, err)
		return out
	}

	out.Kind = KindGranted
	return out
}

func (e *Engine) fetch(ctx context.Context) ([]invite.Record, error) {
	start := time.Now()
	records, err := e.guild.ListInvites(ctx)
	e.metrics.FetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	return records, nil
}

func (e *Engine) commit(records []invite.Record) (previous, current invite.Snapshot) {
	previous, current = e.store.Replace(records)
	e.metrics.SnapshotInvites.Set(float64(current.Len()))
	return previous, current
}
