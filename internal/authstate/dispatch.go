package authstate

import (
	"context"
	"log/slog"

	"github.com/hitoshi/magicalmoments/internal/model"
)

// Destinations はロールごとのサインイン後の遷移先。
type Destinations struct {
	Admin     string
	Organizer string
	Default   string
}

// DefaultDestinations はデフォルトの遷移先を返す。
func DefaultDestinations() Destinations {
	return Destinations{
		Admin:     "/admin-dashboard",
		Organizer: "/organizer-panel",
		Default:   "/events",
	}
}

// For はロールに対応する遷移先を返す。
func (d Destinations) For(role model.Role) string {
	switch role {
	case model.RoleAdmin:
		return d.Admin
	case model.RoleOrganizer:
		return d.Organizer
	default:
		return d.Default
	}
}

// Dispatcher はサインイン直後の遷移先を決める。
// サインイン成功時にのみ呼び出し、サインアップやセッション復元では呼ばない。
type Dispatcher struct {
	resolver     *Resolver
	destinations Destinations
}

// NewDispatcher はDispatcherを生成する。
func NewDispatcher(resolver *Resolver, destinations Destinations) *Dispatcher {
	return &Dispatcher{resolver: resolver, destinations: destinations}
}

// Dispatch はサインインしたセッションのロールを解決し、遷移先を返す。
func (d *Dispatcher) Dispatch(ctx context.Context, session *model.Session) string {
	role, source := d.resolver.ResolveForSignIn(ctx, session.UserID, session.Metadata)
	dest := d.destinations.For(role)

	d.resolver.logger.Info("post sign-in dispatch",
		slog.String("user_id", session.UserID),
		slog.String("role", string(role)),
		slog.String("source", string(source)),
		slog.String("destination", dest),
	)
	return dest
}
