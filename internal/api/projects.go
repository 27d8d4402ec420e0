package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fenceline/botgate/internal/auth"
	"github.com/fenceline/botgate/internal/protect"
	"github.com/fenceline/botgate/internal/secrets"
	"github.com/fenceline/botgate/internal/storage"
)

// projectResponse is the owner-facing view of a project. The secret is
// always masked here; the plaintext exists only in the registration
// response and the explicit reveal endpoint.
type projectResponse struct {
	ProjectID    string   `json:"project_id"`
	Domain       string   `json:"domain"`
	ZoneID       string   `json:"zone_id"`
	Status       string   `json:"status"`
	Nameservers  []string `json:"nameservers"`
	BypassSecret string   `json:"bypass_secret"`
}

func maskedProject(p *storage.Project) projectResponse {
	return projectResponse{
		ProjectID:    p.ID,
		Domain:       p.Domain,
		ZoneID:       p.ZoneID,
		Status:       string(p.Status),
		Nameservers:  p.Nameservers,
		BypassSecret: secrets.Masked(),
	}
}

// HandleRegisterProject registers a new domain
// POST /api/projects
func (h *Handler) HandleRegisterProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Domain string `json:"domain"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}

	ownerID := auth.OwnerFromContext(r.Context())

	reg, err := h.machine.Register(r.Context(), ownerID, req.Domain)
	if err != nil {
		switch {
		case errors.Is(err, protect.ErrInvalidDomain):
			WriteError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "not a valid domain name")
		case errors.Is(err, storage.ErrDuplicate):
			WriteError(w, http.StatusConflict, ErrCodeInvalidRequest, "domain already registered")
		default:
			h.logger.Error("project registration failed", "domain", req.Domain, "error", err)
			WriteError(w, http.StatusBadGateway, ErrCodeCollaboratorError, "zone registration failed, retry later")
		}
		return
	}

	resp := maskedProject(reg.Project)
	resp.BypassSecret = reg.BypassSecret // shown in full exactly once
	writeJSON(w, http.StatusCreated, resp)
}

// HandleListProjects lists the owner's projects
// GET /api/projects
func (h *Handler) HandleListProjects(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerFromContext(r.Context())

	projects, err := h.machine.List(r.Context(), ownerID)
	if err != nil {
		h.logger.Error("failed to list projects", "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "could not list projects")
		return
	}

	resp := make([]projectResponse, 0, len(projects))
	for _, p := range projects {
		resp = append(resp, maskedProject(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": resp})
}

// HandleGetProject returns one project with a masked secret
// GET /api/projects/{id}
func (h *Handler) HandleGetProject(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerFromContext(r.Context())
	id := chi.URLParam(r, "id")

	project, err := h.machine.Get(r.Context(), ownerID, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			WriteError(w, http.StatusNotFound, ErrCodeNotFound, "project not found")
			return
		}
		h.logger.Error("failed to get project", "project_id", id, "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "could not load project")
		return
	}

	writeJSON(w, http.StatusOK, maskedProject(project))
}

// HandleVerifyProject runs the protection transition
// POST /api/projects/{id}/verify
func (h *Handler) HandleVerifyProject(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerFromContext(r.Context())
	id := chi.URLParam(r, "id")

	outcome, err := h.machine.Verify(r.Context(), ownerID, id)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			WriteError(w, http.StatusNotFound, ErrCodeNotFound, "project not found")
		case errors.Is(err, protect.ErrUnrecognizedStatus):
			WriteError(w, http.StatusBadGateway, ErrCodeUnrecognizedStatus, err.Error())
		default:
			h.logger.Error("project verification failed", "project_id", id, "error", err)
			WriteError(w, http.StatusBadGateway, ErrCodeCollaboratorError,
				"verification could not be completed, retry later")
		}
		return
	}

	if outcome.Pending {
		writeJSON(w, http.StatusOK, map[string]any{"status": "pending"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": string(outcome.Status), "protected": true})
}

// HandleRevealSecret returns the plaintext bypass secret
// GET /api/projects/{id}/secret
func (h *Handler) HandleRevealSecret(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerFromContext(r.Context())
	id := chi.URLParam(r, "id")

	secret, err := h.machine.RevealSecret(r.Context(), ownerID, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			WriteError(w, http.StatusNotFound, ErrCodeNotFound, "project not found")
			return
		}
		h.logger.Error("secret reveal failed", "project_id", id, "error", err)
		WriteError(w, http.StatusInternalServerError, ErrCodeInternalError, "could not reveal secret")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"bypass_secret": secret})
}
