package attribution

import (
	"errors"
	"log/slog"

	"github.com/flor3z/invite-role-bot/internal/role"
)

var (
	ErrFetch         = errors.New("failed to list invites")
	ErrUnboundInvite = errors.New("invite has no role binding")
	ErrRoleNotFound  = errors.New("role not found on server")
	ErrGrant         = errors.New("failed to grant role")
)

// Kind is the result category of one attribution attempt
type Kind string

const (
	KindGranted       Kind = "granted"
	KindFetchError    Kind = "fetch_error"
	KindIndeterminate Kind = "indeterminate"
	KindUnbound       Kind = "unbound_invite"
	KindRoleNotFound  Kind = "role_not_found"
	KindGrantError    Kind = "grant_error"
)

// Outcome reports what happened to one join
type Outcome struct {
	AttemptID string
	Member    JoinEvent
	Code      string
	Category  role.Category
	Kind      Kind
	Err       error
}

// Attributed reports whether an invite was identified for the join
func (o Outcome) Attributed() bool {
	return o.Code != ""
}

func (o Outcome) log() {
	attrs := []any{
		"attempt", o.AttemptID,
		"member", o.Member.MemberName,
		"memberID", o.Member.MemberID,
		"outcome", o.Kind,
	}
	if o.Attributed() {
		attrs = append(attrs, "invite", o.Code)
	}
	if o.Category != "" {
		attrs = append(attrs, "role", o.Category)
	}
	if o.Err != nil {
		attrs = append(attrs, "error", o.Err)
	}

	switch o.Kind {
	case KindGranted:
		slog.Info("Role assigned", attrs...)
	case KindIndeterminate:
		slog.Warn("Could not determine invite", attrs...)
	case KindUnbound:
		slog.Warn("Invite not found in bindings", attrs...)
	default:
		slog.Error("Attribution failed", attrs...)
	}
}
