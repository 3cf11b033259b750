package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"civica.org/internal/audit"
	"civica.org/internal/authz"
	"civica.org/internal/identity"
	"civica.org/internal/notify"
	"civica.org/internal/token"
)

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=10,max=256"`
}

type updateAccountRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
}

type emailChangeRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func (a *API) handleAccountsCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := checkRequest(req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := identity.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	now := time.Now().UTC()
	id := &identity.Identity{
		Username:     strings.TrimSpace(req.Username),
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: hash,
		Roles:        []identity.Role{identity.RoleUser},
		// New accounts stay unusable until the activation token returns.
		Active:    false,
		Validated: false,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.d.Identities.Create(r.Context(), id); err != nil {
		handleDomainError(w, r, err)
		return
	}

	value, _, err := a.d.Tokens.Issue(r.Context(), id.ID, token.KindAccountActivation, "", a.d.Config.Tokens.ActivationTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if a.d.Notifier != nil {
		a.d.Notifier.Enqueue(notify.Message{
			Template:  notify.TemplateAccountActivation,
			Recipient: id.Email,
			Payload:   map[string]string{"token": value},
		})
	}
	_ = audit.LogEvent(r.Context(), "account.registered", map[string]string{
		"identity_id": id.ID,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/accounts/%s", id.ID))
	writeJSON(w, http.StatusCreated, id)
}

func (a *API) handleAccountResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/accounts/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	accountID := parts[0]
	switch {
	case len(parts) == 1:
		a.handleAccount(w, r, accountID)
	case len(parts) == 2 && parts[1] == "email":
		a.handleEmailChange(w, r, accountID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleAccount(w http.ResponseWriter, r *http.Request, accountID string) {
	id, err := a.d.Identities.FindByID(r.Context(), accountID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		if !a.ensure(w, r, authz.ActionRead, authz.AccountResource{Account: id}) {
			return
		}
		writeJSON(w, http.StatusOK, id)

	case http.MethodPut:
		if !a.ensure(w, r, authz.ActionEdit, authz.AccountResource{Account: id}) {
			return
		}
		var req updateAccountRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := checkRequest(req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		id.Username = strings.TrimSpace(req.Username)
		id.UpdatedAt = time.Now().UTC()
		if err := a.d.Identities.Update(r.Context(), id); err != nil {
			handleDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "account.updated", map[string]string{"identity_id": id.ID})
		writeJSON(w, http.StatusOK, id)

	case http.MethodDelete:
		anchored, err := a.d.Members.SoleCoordinatorWithWriters(r.Context(), id.ID)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "internal error")
			return
		}
		res := authz.AccountResource{Account: id, SoleCoordinatorWithWriters: anchored}
		if !a.ensure(w, r, authz.ActionDelete, res) {
			return
		}
		if err := a.d.Identities.SoftDelete(r.Context(), id.ID); err != nil {
			handleDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "account.deleted", map[string]string{"identity_id": id.ID})
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

// handleEmailChange starts the email-change workflow: the new address only
// takes effect once its token is confirmed.
func (a *API) handleEmailChange(w http.ResponseWriter, r *http.Request, accountID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	id, err := a.d.Identities.FindByID(r.Context(), accountID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if !a.ensure(w, r, authz.ActionEdit, authz.AccountResource{Account: id}) {
		return
	}
	var req emailChangeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := checkRequest(req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	newEmail := strings.TrimSpace(req.Email)
	value, _, err := a.d.Tokens.Issue(r.Context(), id.ID, token.KindEmailChange, newEmail, a.d.Config.Tokens.EmailChangeTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if a.d.Notifier != nil {
		// The token goes to the address being claimed, proving control of it.
		a.d.Notifier.Enqueue(notify.Message{
			Template:  notify.TemplateEmailChange,
			Recipient: newEmail,
			Payload:   map[string]string{"token": value},
		})
	}
	_ = audit.LogEvent(r.Context(), "account.email_change.requested", map[string]string{
		"identity_id": id.ID,
	})
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "accepted"})
}
