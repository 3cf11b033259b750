package httpapi

import (
	"errors"
	"net/http"
	"time"

	"civica.org/internal/accesslog"
	"civica.org/internal/audit"
	"civica.org/internal/identity"
	"civica.org/internal/limiter"
	"civica.org/internal/notify"
	"civica.org/internal/obs"
	"civica.org/internal/token"
)

type loginRequest struct {
	Username string `json:"username" validate:"required,min=1,max=128"`
	Password string `json:"password" validate:"required,min=1,max=256"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type passwordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type passwordResetConfirmRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=10,max=256"`
}

type confirmRequest struct {
	Token string `json:"token" validate:"required"`
}

func (a *API) loginPolicy() limiter.Policy {
	return limiter.Policy{
		Name:   "login",
		Kinds:  []accesslog.Kind{accesslog.KindLogin},
		Window: a.d.Config.Limiter.Login.Window,
		Limit:  a.d.Config.Limiter.Login.Limit,
	}
}

func (a *API) passwordResetPolicy() limiter.Policy {
	return limiter.Policy{
		Name:   "password-reset",
		Kinds:  []accesslog.Kind{accesslog.KindPasswordResetRequest},
		Window: a.d.Config.Limiter.PasswordReset.Window,
		Limit:  a.d.Config.Limiter.PasswordReset.Limit,
	}
}

func (a *API) validationPolicy() limiter.Policy {
	return limiter.Policy{
		Name:   "validation",
		Kinds:  []accesslog.Kind{accesslog.KindValidationConfirm},
		Window: a.d.Config.Limiter.Validation.Window,
		Limit:  a.d.Config.Limiter.Validation.Limit,
	}
}

// checkAndRecord runs the limiter and appends the attempt to the access
// log. The attempt is recorded whether it was admitted or not, so repeated
// probing keeps extending the block.
func (a *API) checkAndRecord(w http.ResponseWriter, r *http.Request, p limiter.Policy, kind accesslog.Kind, username string) bool {
	ip := clientIP(r)
	allowed, err := a.d.Limiter.CheckAccess(r.Context(), p, ip, username)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return false
	}
	if recErr := a.d.Recorder.Record(r.Context(), kind, ip, username); recErr != nil {
		a.d.Logger.Error().Err(recErr).Str("kind", string(kind)).Msg("access log append failed")
	}
	if !allowed {
		obs.LimiterDenied(p.Name)
		writeError(w, r, http.StatusTooManyRequests, "too many attempts, try again later")
		return false
	}
	return true
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := checkRequest(req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if !a.checkAndRecord(w, r, a.loginPolicy(), accesslog.KindLogin, req.Username) {
		return
	}

	// One generic failure answer: credentials, unknown account and disabled
	// account are indistinguishable from outside.
	id, err := a.d.Identities.FindByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if !id.Usable() || identity.VerifyPassword(id.PasswordHash, req.Password) != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}

	roles := make([]string, 0, len(id.Roles))
	for _, role := range id.Roles {
		roles = append(roles, string(role))
	}
	signed, expiresAt, err := a.d.Sessions.Issue(id.ID, roles)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "session issue failed")
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.login", map[string]string{
		"identity_id": id.ID,
	})
	writeJSON(w, http.StatusOK, loginResponse{Token: signed, ExpiresAt: expiresAt})
}

func (a *API) handlePasswordResetRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req passwordResetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := checkRequest(req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if !a.checkAndRecord(w, r, a.passwordResetPolicy(), accesslog.KindPasswordResetRequest, req.Email) {
		return
	}

	// The response never reveals whether the address has an account.
	id, err := a.d.Identities.FindByEmail(r.Context(), req.Email)
	if err == nil && id.Usable() {
		value, _, issueErr := a.d.Tokens.Issue(r.Context(), id.ID, token.KindPasswordReset, "", a.d.Config.Tokens.PasswordResetTTL)
		if issueErr != nil {
			writeError(w, r, http.StatusInternalServerError, "internal error")
			return
		}
		if a.d.Notifier != nil {
			a.d.Notifier.Enqueue(notify.Message{
				Template:  notify.TemplatePasswordReset,
				Recipient: id.Email,
				Payload:   map[string]string{"token": value},
			})
		}
		_ = audit.LogEvent(r.Context(), "auth.password_reset.requested", map[string]string{
			"identity_id": id.ID,
		})
	} else if err != nil && !errors.Is(err, identity.ErrNotFound) {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
}

func (a *API) handlePasswordResetConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req passwordResetConfirmRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := checkRequest(req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if !a.checkAndRecord(w, r, a.validationPolicy(), accesslog.KindValidationConfirm, "") {
		return
	}

	effects, err := a.d.Tokens.Confirm(r.Context(), req.Token)
	a.runTokenEffects(r, effects, req.Password)
	if err != nil {
		obs.TokenOutcome("rejected")
		writeError(w, r, http.StatusNotFound, "token not found")
		return
	}
	obs.TokenOutcome("confirmed")
	writeJSON(w, http.StatusOK, map[string]any{"status": "password updated"})
}

// handleTokenConfirm consumes account-activation and email-change tokens.
func (a *API) handleTokenConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req confirmRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := checkRequest(req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if !a.checkAndRecord(w, r, a.validationPolicy(), accesslog.KindValidationConfirm, "") {
		return
	}

	effects, err := a.d.Tokens.Confirm(r.Context(), req.Token)
	a.runTokenEffects(r, effects, "")
	if err != nil {
		obs.TokenOutcome("rejected")
		writeError(w, r, http.StatusNotFound, "token not found")
		return
	}
	obs.TokenOutcome("confirmed")
	writeJSON(w, http.StatusOK, map[string]any{"status": "confirmed"})
}

// runTokenEffects applies the state changes a confirmation decided on.
// Effects arrive even alongside an error (the expired-cleanup path), so
// they are executed before the handler renders its response.
func (a *API) runTokenEffects(r *http.Request, effects []token.Effect, newPassword string) {
	ctx := r.Context()
	for _, e := range effects {
		switch e.Kind {
		case token.EffectConfirm:
			if err := a.applyConfirm(r, e, newPassword); err != nil {
				a.d.Logger.Error().Err(err).
					Str("token_kind", string(e.TokenKind)).
					Str("identity_id", e.IdentityID).
					Msg("token confirmation apply failed")
			}
		case token.EffectExpiredCleanup:
			obs.TokenOutcome("expired")
			_ = audit.LogEvent(ctx, "token.expired", map[string]string{
				"identity_id": e.IdentityID,
				"kind":        string(e.TokenKind),
			})
		}
	}
}

func (a *API) applyConfirm(r *http.Request, e token.Effect, newPassword string) error {
	ctx := r.Context()
	switch e.TokenKind {
	case token.KindAccountActivation:
		id, err := a.d.Identities.FindByID(ctx, e.IdentityID)
		if err != nil {
			return err
		}
		id.Validated = true
		id.Active = true
		if err := a.d.Identities.Update(ctx, id); err != nil {
			return err
		}
		return audit.LogEvent(ctx, "account.activated", map[string]string{"identity_id": id.ID})
	case token.KindEmailChange:
		id, err := a.d.Identities.FindByID(ctx, e.IdentityID)
		if err != nil {
			return err
		}
		id.Email = e.Payload
		if err := a.d.Identities.Update(ctx, id); err != nil {
			return err
		}
		return audit.LogEvent(ctx, "account.email_changed", map[string]string{"identity_id": id.ID})
	case token.KindPasswordReset:
		if newPassword == "" {
			// A password-reset token confirmed through the generic endpoint
			// is consumed without effect; the new password only travels with
			// the dedicated confirm request.
			return errors.New("password reset confirmed without a new password")
		}
		hash, err := identity.HashPassword(newPassword)
		if err != nil {
			return err
		}
		if err := a.d.Identities.SetPassword(ctx, e.IdentityID, hash); err != nil {
			return err
		}
		return audit.LogEvent(ctx, "account.password_reset", map[string]string{"identity_id": e.IdentityID})
	}
	return nil
}
