package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/kicksnairobi/footwear-backend/pkg/enums"
	pkgerrors "github.com/kicksnairobi/footwear-backend/pkg/errors"
)

type contextKey int

const (
	ctxActor contextKey = iota
	ctxAccessLog
)

// Actor is the authenticated caller attached to the request context.
type Actor struct {
	UserID string
	Role   enums.Role
}

// WithActor attaches the caller to ctx.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}

func actorFrom(ctx context.Context) Actor {
	if ctx == nil {
		return Actor{}
	}
	actor, _ := ctx.Value(ctxActor).(Actor)
	return actor
}

func UserIDFromContext(ctx context.Context) string {
	return actorFrom(ctx).UserID
}

func RoleFromContext(ctx context.Context) enums.Role {
	return actorFrom(ctx).Role
}

// ActorFromContext returns the authenticated caller as a typed id and role.
func ActorFromContext(ctx context.Context) (uuid.UUID, enums.Role, error) {
	actor := actorFrom(ctx)
	userID, err := uuid.Parse(actor.UserID)
	if err != nil {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing authenticated user")
	}
	if !actor.Role.IsValid() {
		return uuid.Nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "missing authenticated role")
	}
	return userID, actor.Role, nil
}
