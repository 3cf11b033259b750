package httpapi

import (
	"net/http"
	"strings"

	"civica.org/internal/audit"
	"civica.org/internal/authz"
	"civica.org/internal/project"
)

type changeRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

type updateApplicationRequest struct {
	Motivation string `json:"motivation" validate:"max=2000"`
	Skills     string `json:"skills" validate:"max=2000"`
}

type updateTasksRequest struct {
	Tasks string `json:"tasks" validate:"max=2000"`
}

func (a *API) handleMemberResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/members/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	membershipID := parts[0]
	switch {
	case len(parts) == 1:
		a.handleMember(w, r, membershipID)
	case len(parts) == 2 && parts[1] == "role":
		a.handleMemberRole(w, r, membershipID)
	case len(parts) == 2 && parts[1] == "application":
		a.handleMemberApplication(w, r, membershipID)
	case len(parts) == 2 && parts[1] == "tasks":
		a.handleMemberTasks(w, r, membershipID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

// memberResource loads the membership together with the state the
// evaluator needs: the owning project and the current role counts, so the
// last-coordinator guard can run on the snapshot.
func (a *API) memberResource(r *http.Request, membershipID string) (*project.Membership, authz.MembershipResource, error) {
	m, err := a.d.Members.Find(r.Context(), membershipID)
	if err != nil {
		return nil, authz.MembershipResource{}, err
	}
	p, err := a.d.Projects.Find(r.Context(), m.ProjectID)
	if err != nil {
		return nil, authz.MembershipResource{}, err
	}
	coordinators, err := a.d.Members.CountByRole(r.Context(), p.ID, project.RoleCoordinator)
	if err != nil {
		return nil, authz.MembershipResource{}, err
	}
	writers, err := a.d.Members.CountByRole(r.Context(), p.ID, project.RoleWriter)
	if err != nil {
		return nil, authz.MembershipResource{}, err
	}
	return m, authz.MembershipResource{
		Membership:   m,
		Project:      p,
		Coordinators: coordinators,
		Writers:      writers,
	}, nil
}

func (a *API) handleMember(w http.ResponseWriter, r *http.Request, membershipID string) {
	m, res, err := a.memberResource(r, membershipID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		if !a.ensure(w, r, authz.ActionRead, res) {
			return
		}
		writeJSON(w, http.StatusOK, m)

	case http.MethodDelete:
		if !a.ensure(w, r, authz.ActionDelete, res) {
			return
		}
		// Self-removal needs no notification; removal by someone else does.
		self := actorFrom(r.Context()).Is(m.IdentityID)
		effects, err := a.d.Roles.Remove(r.Context(), m.ID, !self)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		a.notifyEffects(r.Context(), effects)
		_ = audit.LogEvent(r.Context(), "membership.removed", map[string]string{
			"membership_id": m.ID,
			"project_id":    m.ProjectID,
		})
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}

func (a *API) handleMemberRole(w http.ResponseWriter, r *http.Request, membershipID string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	m, res, err := a.memberResource(r, membershipID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if !a.ensure(w, r, authz.ActionGrant, res) {
		return
	}
	var req changeRoleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	newRole, err := project.ParseMemberRole(req.Role)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	effects, err := a.d.Roles.ChangeRole(r.Context(), m.ID, newRole)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.notifyEffects(r.Context(), effects)
	_ = audit.LogEvent(r.Context(), "membership.role_changed", map[string]string{
		"membership_id": m.ID,
		"project_id":    m.ProjectID,
		"new_role":      string(newRole),
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMemberApplication(w http.ResponseWriter, r *http.Request, membershipID string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	m, res, err := a.memberResource(r, membershipID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if !a.ensure(w, r, authz.ActionEdit, res) {
		return
	}
	var req updateApplicationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := checkRequest(req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.d.Roles.UpdateApplication(r.Context(), m.ID, req.Motivation, req.Skills); err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleMemberTasks(w http.ResponseWriter, r *http.Request, membershipID string) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w, r, http.MethodPut)
		return
	}
	m, res, err := a.memberResource(r, membershipID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if !a.ensure(w, r, authz.ActionEdit, res) {
		return
	}
	var req updateTasksRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := checkRequest(req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.d.Roles.UpdateTasks(r.Context(), m.ID, req.Tasks); err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
