package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/boreallogic/delphi-app/pkg/models"
)

// Actor headers set by the upstream gateway after authentication.
const (
	HeaderActorType = "X-Actor-Type"
	HeaderActorID   = "X-Actor-ID"
)

// RequireActor returns middleware that resolves the calling actor from the
// X-Actor-Type and X-Actor-ID headers and stores it in the request context.
// Requests without a complete identity get 401; actor types outside allowed
// get 403. There is no fallback identity.
func RequireActor(logger *zap.Logger, allowed ...models.ActorType) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			actorType := models.ActorType(strings.ToUpper(strings.TrimSpace(r.Header.Get(HeaderActorType))))
			if actorType == "" {
				writeError(w, http.StatusUnauthorized, "missing_actor", "X-Actor-Type header is required", logger)
				return
			}

			// SYSTEM is reserved for work the engine does on its own behalf.
			if actorType == models.ActorSystem || !slices.Contains(allowed, actorType) {
				writeError(w, http.StatusForbidden, "actor_not_allowed", "Actor type "+string(actorType)+" may not call this endpoint", logger)
				return
			}

			id, err := uuid.Parse(strings.TrimSpace(r.Header.Get(HeaderActorID)))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid_actor", "X-Actor-ID header must be a UUID", logger)
				return
			}

			actor := models.Actor{Type: actorType, ID: id}
			if err := actor.Validate(); err != nil {
				writeError(w, http.StatusUnauthorized, "invalid_actor", err.Error(), logger)
				return
			}

			recordActor(r.Context(), actor)
			next(w, r.WithContext(models.WithActor(r.Context(), actor)))
		}
	}
}

// actorSinkKey lets RequestLogger see the actor resolved further down the chain.
type actorSinkKey struct{}

func withActorSink(ctx context.Context, sink *models.Actor) context.Context {
	return context.WithValue(ctx, actorSinkKey{}, sink)
}

func recordActor(ctx context.Context, actor models.Actor) {
	if sink, ok := ctx.Value(actorSinkKey{}).(*models.Actor); ok {
		*sink = actor
	}
}

func writeError(w http.ResponseWriter, statusCode int, errorCode, message string, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	err := json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   errorCode,
		"message": message,
	})
	if err != nil && logger != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}
