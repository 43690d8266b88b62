package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/citylineapps/permitflow-backend/pkg/auth"
	"github.com/citylineapps/permitflow-backend/pkg/enums"
)

type contextKey string

const (
	ctxUserID contextKey = "user_id"
	ctxRole   contextKey = "actor_role"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func RoleFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxRole).(string); ok {
		return v
	}
	return ""
}

// ActorFromContext rebuilds the authenticated actor from the request context.
// The zero actor is returned when the auth middleware did not run.
func ActorFromContext(ctx context.Context) auth.Actor {
	id, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil {
		return auth.Actor{}
	}
	return auth.Actor{
		UserID: id,
		Role:   enums.ActorRole(RoleFromContext(ctx)),
	}
}

// WithActor injects the actor identity into the context.
func WithActor(ctx context.Context, actor auth.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUserID, actor.UserID.String())
	return context.WithValue(ctx, ctxRole, string(actor.Role))
}
