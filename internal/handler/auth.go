package handler

import (
	"net/http"
	"strings"

	"github.com/pavelanni/coursecore/internal/i18n"
	"github.com/pavelanni/coursecore/internal/model"
)

// Identity headers set by the gateway after it has authenticated the caller.
const (
	headerActorID   = "X-Actor-ID"
	headerActorRole = "X-Actor-Role"
)

// actorMiddleware stores the caller's identity in the request context.
// Roles are passed through unchecked; an unknown role is rejected where
// access is decided.
func actorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(headerActorID))
		role := strings.ToUpper(strings.TrimSpace(r.Header.Get(headerActorRole)))
		if id == "" || role == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: i18n.T(r.Context(), "ErrUnauthenticated")})
			return
		}
		ctx := model.ContextWithActor(r.Context(), model.Actor{ID: id, Role: model.UserRole(role)})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireRole returns middleware that checks the actor has one of the allowed roles.
func requireRole(allowed ...model.UserRole) func(http.Handler) http.Handler {
	names := make([]string, len(allowed))
	for i, role := range allowed {
		names[i] = string(role)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := model.ActorFromContext(r.Context())
			if !ok {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: i18n.T(r.Context(), "ErrUnauthenticated")})
				return
			}
			for _, role := range allowed {
				if actor.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeJSON(w, http.StatusForbidden, errorBody{
				Error: i18n.Td(r.Context(), "ErrRoleRequired", map[string]any{"Roles": strings.Join(names, ", ")}),
			})
		})
	}
}

func actorFrom(r *http.Request) model.Actor {
	actor, _ := model.ActorFromContext(r.Context())
	return actor
}
