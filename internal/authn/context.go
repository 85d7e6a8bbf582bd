package authn

import (
	"context"
	"strings"
)

type actorContextKey struct{}

// ContextWithActor stores the authenticated user id.
func ContextWithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, strings.TrimSpace(userID))
}

// ActorFromContext returns the authenticated user id, if any.
func ActorFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(actorContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
