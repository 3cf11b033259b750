package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"civica.org/internal/audit"
	"civica.org/internal/authz"
	"civica.org/internal/ids"
	"civica.org/internal/project"
)

type createContentRequest struct {
	Kind string `json:"kind" validate:"required,oneof=argument counter-argument negation problem fraction-interest action-mandate"`
	Body string `json:"body" validate:"required,max=20000"`
	// Exactly one of ParentID and ProjectID anchors the item: a parent for
	// replies, the project itself for top-level problems.
	ParentID  string `json:"parent_id" validate:"omitempty,max=64"`
	ProjectID string `json:"project_id" validate:"omitempty,max=64"`
}

type updateContentRequest struct {
	Body string `json:"body" validate:"required,max=20000"`
	Used bool   `json:"used"`
}

func (a *API) handleContentCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req createContentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if err := checkRequest(req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if (req.ParentID == "") == (req.ProjectID == "") {
		writeError(w, r, http.StatusBadRequest, "exactly one of parent_id and project_id is required")
		return
	}

	actor := actorFrom(r.Context())
	if actor.Anonymous() {
		forbidden(w, r)
		return
	}

	// Resolve the owning project up front; the store re-resolves it from
	// the parent row inside the insert.
	projectID := req.ProjectID
	if req.ParentID != "" {
		parent, err := a.d.Content.Find(r.Context(), req.ParentID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		projectID = parent.ProjectID
	}

	item := &project.ContentItem{
		ID:       ids.New(),
		Kind:     project.ContentKind(req.Kind),
		ParentID: req.ParentID,
		AuthorID: actor.Identity.ID,
		Body:     req.Body,
	}

	var owner *project.Project
	if projectID != "" {
		p, err := a.d.Projects.Find(r.Context(), projectID)
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		owner = p
		item.ProjectID = p.ID
	}
	if !a.ensure(w, r, authz.ActionCreate, authz.ContentResource{Item: item, Project: owner}) {
		return
	}

	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	if err := a.d.Content.Create(r.Context(), item); err != nil {
		handleDomainError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "content.created", map[string]string{
		"content_id": item.ID,
		"project_id": item.ProjectID,
		"kind":       string(item.Kind),
	})
	w.Header().Set("Location", fmt.Sprintf("/v1/content/%s", item.ID))
	writeJSON(w, http.StatusCreated, item)
}

func (a *API) handleContentResource(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/content/"), "/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	item, err := a.d.Content.Find(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	var owner *project.Project
	if item.Attached() {
		owner, err = a.d.Projects.Find(r.Context(), item.ProjectID)
		if err != nil && !errors.Is(err, project.ErrNotFound) {
			writeError(w, r, http.StatusInternalServerError, "internal error")
			return
		}
	}
	res := authz.ContentResource{Item: item, Project: owner}

	switch r.Method {
	case http.MethodGet:
		if !a.ensure(w, r, authz.ActionRead, res) {
			return
		}
		writeJSON(w, http.StatusOK, item)

	case http.MethodPut:
		if !a.ensure(w, r, authz.ActionEdit, res) {
			return
		}
		var req updateContentRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if err := checkRequest(req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		item.Body = req.Body
		item.Used = req.Used
		item.UpdatedAt = time.Now().UTC()
		if err := a.d.Content.Update(r.Context(), item); err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, item)

	case http.MethodDelete:
		if !a.ensure(w, r, authz.ActionDelete, res) {
			return
		}
		if err := a.d.Content.SoftDelete(r.Context(), item.ID); err != nil {
			handleDomainError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "content.deleted", map[string]string{
			"content_id": item.ID,
			"project_id": item.ProjectID,
		})
		w.WriteHeader(http.StatusNoContent)

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPut, http.MethodDelete)
	}
}
