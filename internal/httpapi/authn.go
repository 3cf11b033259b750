package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"civica.org/internal/audit"
	"civica.org/internal/authz"
	"civica.org/internal/identity"
	"civica.org/internal/obs"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

type actorKey struct{}

// withSession resolves the bearer token into an Actor with its project
// roles loaded. Requests without a token proceed as the anonymous actor;
// whether anonymous access suffices is the evaluator's call, not the
// middleware's. Only a present-but-invalid token is rejected here.
func (a *API) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get(authHeader))
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}

		tok, err := extractBearerToken(header)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}
		claims, err := a.d.Sessions.Verify(tok)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}

		id, err := a.d.Identities.FindByID(r.Context(), claims.Subject)
		if err != nil {
			if errors.Is(err, identity.ErrNotFound) {
				writeError(w, r, http.StatusUnauthorized, "invalid token")
				return
			}
			writeError(w, r, http.StatusInternalServerError, "authentication error")
			return
		}
		memberships, err := a.d.Members.ListByIdentity(r.Context(), id.ID)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "authentication error")
			return
		}

		actor := authz.NewActor(id, memberships)
		ctx := context.WithValue(r.Context(), actorKey{}, actor)
		ctx = audit.WithActor(ctx, id.ID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// actorFrom returns the request's actor; the zero Actor is anonymous.
func actorFrom(ctx context.Context) authz.Actor {
	actor, _ := ctx.Value(actorKey{}).(authz.Actor)
	return actor
}

func extractBearerToken(header string) (string, error) {
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

// ensure wraps the evaluator with the decision metric and writes the 403
// when access is denied. Handlers call it once per operation.
func (a *API) ensure(w http.ResponseWriter, r *http.Request, action authz.Action, res authz.Resource) bool {
	actor := actorFrom(r.Context())
	allowed := authz.CanPerform(actor, action, res)
	kind := "unknown"
	if res != nil {
		kind = res.ResourceKind()
	}
	obs.AuthzDecision(kind, string(action), allowed)
	if !allowed {
		forbidden(w, r)
		return false
	}
	return true
}
