package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/parcelgrid/wallet-backend/pkg/logger"
)

type contextKey string

const ctxActor contextKey = "actor"

const actorHeader = "X-Actor-Id"

// ActorFromContext returns the caller identity attached by ActorContext, or
// empty when none was provided.
func ActorFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxActor).(string); ok {
		return v
	}
	return ""
}

// WithActor injects the caller identity into the context.
func WithActor(ctx context.Context, actor string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxActor, actor)
}

// ActorContext reads the X-Actor-Id header and attaches it to the request
// context and log fields. Audit events and idempotency scopes key off it.
func ActorContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := strings.TrimSpace(r.Header.Get(actorHeader))
			if actor == "" {
				actor = "anonymous"
			}

			ctx := WithActor(r.Context(), actor)
			if logg != nil {
				ctx = logg.WithActor(ctx, actor)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
