package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/graemedakers/decision-jar/internal/api/dto"
	"github.com/graemedakers/decision-jar/internal/api/middleware"
	"github.com/graemedakers/decision-jar/internal/billing"
	"github.com/graemedakers/decision-jar/internal/jars"
	"github.com/graemedakers/decision-jar/internal/tasks"
)

type JarHandler struct {
	jarService  *jars.Service
	asynqClient *asynq.Client
}

func NewJarHandler(jarService *jars.Service, asynqClient *asynq.Client) *JarHandler {
	return &JarHandler{jarService: jarService, asynqClient: asynqClient}
}

// List handles GET /api/v1/jars
func (h *JarHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	list, err := h.jarService.ListForUser(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list jars"})
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// Create handles POST /api/v1/jars
func (h *JarHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	plan := middleware.GetUserPlan(r.Context())

	var req dto.CreateJarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	jar, err := h.jarService.Create(r.Context(), userID, jars.CreateInput{
		Name:        req.Name,
		Topic:       req.Topic,
		Location:    req.Location,
		IsCommunity: req.IsCommunity,
		InviteGated: req.InviteGated,
	}, billing.ForPlan(plan).MaxJars)
	if err != nil {
		if errors.Is(err, jars.ErrJarLimitReached) {
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Jar limit reached for your plan"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create jar"})
		return
	}

	writeJSON(w, http.StatusCreated, jar)
}

// Resolve handles GET /api/v1/jars/resolve/{code}
func (h *JarHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	jar, err := h.jarService.ResolveCode(r.Context(), code)
	if err != nil {
		if errors.Is(err, jars.ErrJarNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "No jar with that code"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to resolve code"})
		return
	}

	// A resolve is a preview for someone who may not be a member yet, so it
	// only exposes what the join screen needs.
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":         jar.Name,
		"topic":        jar.Topic,
		"ref_code":     jar.RefCode,
		"invite_gated": jar.InviteGated,
	})
}

// Join handles POST /api/v1/jars/join
func (h *JarHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req dto.JoinJarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	summary, err := h.jarService.Join(r.Context(), userID, req.Code, req.InviteToken)
	if err != nil {
		switch {
		case errors.Is(err, jars.ErrJarNotFound):
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "No jar with that code"})
		case errors.Is(err, jars.ErrInviteTokenInvalid):
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Invite token missing or invalid"})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to join jar"})
		}
		return
	}

	h.notifyJar(summary.ID, userID, "Someone joined your jar", "A new member just joined. Say hi!")

	writeJSON(w, http.StatusOK, summary)
}

// Leave handles POST /api/v1/jars/{id}/leave
func (h *JarHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	jarID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid jar ID"})
		return
	}

	if err := h.jarService.Leave(r.Context(), userID, jarID); err != nil {
		if errors.Is(err, jars.ErrMembershipNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "You are not a member of this jar"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to leave jar"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Left jar"})
}

// Delete handles DELETE /api/v1/jars/{id}
func (h *JarHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	jarID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid jar ID"})
		return
	}

	if err := h.jarService.Delete(r.Context(), userID, jarID); err != nil {
		switch {
		case errors.Is(err, jars.ErrJarNotFound):
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Jar not found"})
		case errors.Is(err, jars.ErrNotOwner):
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Only the owner can delete a jar"})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete jar"})
		}
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Jar deleted"})
}

// Get handles GET /api/v1/jars/{id}
func (h *JarHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	jarID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid jar ID"})
		return
	}

	summary, err := h.jarService.Summary(r.Context(), userID, jarID)
	if err != nil {
		h.writeMembershipError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// Members handles GET /api/v1/jars/{id}/members
func (h *JarHandler) Members(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	jarID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid jar ID"})
		return
	}

	members, _, err := h.jarService.Members(r.Context(), userID, jarID)
	if err != nil {
		h.writeMembershipError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, members)
}

// Activate handles POST /api/v1/jars/{id}/activate
func (h *JarHandler) Activate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	jarID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid jar ID"})
		return
	}

	if err := h.jarService.SwitchActive(r.Context(), userID, jarID); err != nil {
		h.writeMembershipError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Active jar updated"})
}

// ClearActive handles POST /api/v1/jars/active/clear
func (h *JarHandler) ClearActive(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	if err := h.jarService.ClearActive(r.Context(), userID); err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to clear active jar"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Active jar cleared"})
}

// RegenerateInviteToken handles POST /api/v1/invite-token/regenerate
func (h *JarHandler) RegenerateInviteToken(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	token, err := h.jarService.RegenerateInviteToken(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to regenerate invite token"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"invite_token": token})
}

func (h *JarHandler) writeMembershipError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, jars.ErrJarNotFound):
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Jar not found"})
	case errors.Is(err, jars.ErrNotMember):
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "You are not a member of this jar"})
	default:
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Request failed"})
	}
}

// notifyJar enqueues a best-effort push to the jar's other members.
func (h *JarHandler) notifyJar(jarID, actorID uuid.UUID, title, body string) {
	if h.asynqClient == nil {
		return
	}
	task, err := tasks.NewPushNotifyTask(tasks.PushNotifyPayload{
		JarID:   jarID,
		ActorID: actorID,
		Title:   title,
		Body:    body,
		Data:    map[string]string{"jar_id": jarID.String()},
	})
	if err != nil {
		return
	}
	_, _ = h.asynqClient.Enqueue(task, asynq.Queue("critical"))
}
