package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"civica.org/internal/audit"
	"civica.org/internal/authz"
	"civica.org/internal/ids"
	"civica.org/internal/project"
)

type createProjectRequest struct {
	Name  string `json:"name" validate:"required,min=3,max=200"`
	State string `json:"state" validate:"omitempty,oneof=draft public private"`
}

type updateProjectRequest struct {
	Name   string `json:"name" validate:"required,min=3,max=200"`
	State  string `json:"state" validate:"required,oneof=draft public private"`
	Locked bool   `json:"locked"`
}

type applyRequest struct {
	// IdentityID is optional; coordinators pass it to invite someone else.
	IdentityID string `json:"identity_id" validate:"omitempty,max=64"`
	Motivation string `json:"motivation" validate:"max=2000"`
	Skills     string `json:"skills" validate:"max=2000"`
}

func (a *API) handleProjectsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.handleListProjects(w, r)
	case http.MethodPost:
		a.handleCreateProject(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleListProjects returns the projects the caller may read. The filter
// runs through the same evaluator as single reads.
func (a *API) handleListProjects(w http.ResponseWriter, r *http.Request) {
	all, err := a.d.Projects.List(r.Context())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	actor := actorFrom(r.Context())
	visible := make([]*project.Project, 0, len(all))
	for _, p := range all {
		if authz.CanPerform(actor, authz.ActionRead, authz.ProjectResource{Project: p}) {
			visible = append(visible, p)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": visible})
}

func (a *API) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	if !a.ensure(w, r, authz.ActionCreate, authz.ProjectResource{}) {
		return
	}
	var req createProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := checkRequest(req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	now := time.Now().UTC()
	state := project.StateDraft
	if req.State != "" {
		state = project.State(req.State)
	}
	p := &project.Project{
		ID:        ids.New(),
		Name:      strings.TrimSpace(req.Name),
		State:     state,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.d.Projects.Create(r.Context(), p); err != nil {
		handleDomainError(w, r, err)
		return
	}

	// The creator becomes the project's first coordinator.
	actor := actorFrom(r.Context())
	m := &project.Membership{
		ProjectID:  p.ID,
		IdentityID: actor.Identity.ID,
		Role:       project.RoleCoordinator,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := a.d.Members.Create(r.Context(), m); err != nil {
		handleDomainError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "project.created", map[string]string{
		"project_id": p.ID,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/projects/%s", p.ID))
	writeJSON(w, http.StatusCreated, p)
}

func (a *API) handleProjectResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/projects/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	projectID := parts[0]
	switch {
	case len(parts) == 1:
		a.handleProject(w, r, projectID)
	case len(parts) == 2 && parts[1] == "members":
		a.handleProjectMembers(w, r, projectID)
	case len(parts) == 2 && parts[1] == "content":
		a.handleProjectContent(w, r, projectID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleProject(w http.ResponseWriter, r *http.Request, projectID string) {
	p, err := a.d.Projects.Find(r.Context(), projectID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		if !a.ensure(w, r, authz.ActionRead, authz.ProjectResource{Project: p}) {
			return
		}
		writeJSON(w, http.StatusOK, p)

	case http.MethodPut:
		if !a.ensure(w, r, authz.ActionEdit, authz.ProjectResource{Project: p}) {
			return
		}
		var req updateProjectRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := checkRequest(req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		p.Name = strings.TrimSpace(req.Name)
		p.State = project.State(req.State)
		p.Locked = req.Locked
		p.UpdatedAt = time.Now().UTC()
		if err := a.d.Projects.Update(r.Context(), p); err != nil {
			handleDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "project.updated", map[string]string{"project_id": p.ID})
		writeJSON(w, http.StatusOK, p)

	case http.MethodDelete:
		if !a.ensure(w, r, authz.ActionDelete, authz.ProjectResource{Project: p}) {
			return
		}
		if err := a.d.Projects.SoftDelete(r.Context(), p.ID); err != nil {
			handleDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "project.deleted", map[string]string{"project_id": p.ID})
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) handleProjectMembers(w http.ResponseWriter, r *http.Request, projectID string) {
	p, err := a.d.Projects.Find(r.Context(), projectID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	switch r.Method {
	case http.MethodGet:
		if !a.ensure(w, r, authz.ActionRead, authz.ProjectResource{Project: p}) {
			return
		}
		members, err := a.d.Members.ListByProject(r.Context(), p.ID)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": members})

	case http.MethodPost:
		a.handleApply(w, r, p)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleApply files a membership application, or an invitation when a
// coordinator names someone else.
func (a *API) handleApply(w http.ResponseWriter, r *http.Request, p *project.Project) {
	var req applyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := checkRequest(req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	actor := actorFrom(r.Context())
	identityID := strings.TrimSpace(req.IdentityID)
	if identityID == "" {
		if actor.Identity == nil {
			forbidden(w, r)
			return
		}
		identityID = actor.Identity.ID
	}
	prospective := &project.Membership{
		ProjectID:  p.ID,
		IdentityID: identityID,
		Role:       project.RoleApplicant,
	}
	if !a.ensure(w, r, authz.ActionCreate, authz.MembershipResource{Membership: prospective, Project: p}) {
		return
	}
	if identityID != actor.Identity.ID {
		// Invitations target existing accounts only.
		if _, err := a.d.Identities.FindByID(r.Context(), identityID); err != nil {
			handleDomainError(w, r, err)
			return
		}
	}

	m, err := a.d.Roles.Apply(r.Context(), p.ID, identityID, req.Motivation, req.Skills)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "membership.applied", map[string]string{
		"project_id":  p.ID,
		"identity_id": identityID,
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/members/%s", m.ID))
	writeJSON(w, http.StatusCreated, m)
}

func (a *API) handleProjectContent(w http.ResponseWriter, r *http.Request, projectID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	p, err := a.d.Projects.Find(r.Context(), projectID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if !a.ensure(w, r, authz.ActionRead, authz.ProjectResource{Project: p}) {
		return
	}
	items, err := a.d.Content.ListByProject(r.Context(), p.ID)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	actor := actorFrom(r.Context())
	visible := make([]*project.ContentItem, 0, len(items))
	for _, item := range items {
		if authz.CanPerform(actor, authz.ActionRead, authz.ContentResource{Item: item, Project: p}) {
			visible = append(visible, item)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": visible})
}
