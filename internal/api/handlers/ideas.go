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
	"github.com/graemedakers/decision-jar/internal/auth"
	"github.com/graemedakers/decision-jar/internal/billing"
	"github.com/graemedakers/decision-jar/internal/ideas"
	"github.com/graemedakers/decision-jar/internal/tasks"
)

type IdeaHandler struct {
	ideaService *ideas.Service
	authService *auth.Service
	asynqClient *asynq.Client
}

func NewIdeaHandler(ideaService *ideas.Service, authService *auth.Service, asynqClient *asynq.Client) *IdeaHandler {
	return &IdeaHandler{
		ideaService: ideaService,
		authService: authService,
		asynqClient: asynqClient,
	}
}

// List handles GET /api/v1/jars/{id}/ideas
func (h *IdeaHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	jarID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid jar ID"})
		return
	}

	filter := ideas.ListFilter{
		Category:     r.URL.Query().Get("category"),
		UnpickedOnly: r.URL.Query().Get("unpicked") == "true",
	}

	list, err := h.ideaService.List(r.Context(), userID, jarID, filter)
	if err != nil {
		h.writeIdeaError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, list)
}

// Add handles POST /api/v1/jars/{id}/ideas
func (h *IdeaHandler) Add(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	jarID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid jar ID"})
		return
	}

	var req dto.AddIdeaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	idea, err := h.ideaService.Add(r.Context(), userID, jarID, ideas.AddInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		CostHint:    req.CostHint,
	})
	if err != nil {
		h.writeIdeaError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, idea)
}

// Update handles PUT /api/v1/ideas/{id}
func (h *IdeaHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	ideaID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid idea ID"})
		return
	}

	var req dto.UpdateIdeaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	idea, err := h.ideaService.Update(r.Context(), userID, ideaID, ideas.UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		CostHint:    req.CostHint,
	})
	if err != nil {
		h.writeIdeaError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, idea)
}

// Delete handles DELETE /api/v1/ideas/{id}
func (h *IdeaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	ideaID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid idea ID"})
		return
	}

	if err := h.ideaService.Delete(r.Context(), userID, ideaID); err != nil {
		h.writeIdeaError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Idea deleted"})
}

// Spin handles POST /api/v1/jars/{id}/spin
func (h *IdeaHandler) Spin(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	jarID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid jar ID"})
		return
	}

	// Spin meters against the caller's plan, so it needs the full user row.
	user, err := h.authService.GetUserByID(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Unauthorized"})
		return
	}

	picked, err := h.ideaService.Spin(r.Context(), user, jarID)
	if err != nil {
		switch {
		case errors.Is(err, ideas.ErrJarEmpty):
			writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "No unpicked ideas left in this jar"})
		case errors.Is(err, billing.ErrQuotaExceeded):
			writeJSON(w, http.StatusTooManyRequests, dto.ErrorResponse{Error: "Daily spin limit reached"})
		default:
			h.writeIdeaError(w, err)
		}
		return
	}

	h.notifyJar(jarID, userID, "The jar has spoken", picked.Title)

	writeJSON(w, http.StatusOK, picked)
}

// Suggest handles POST /api/v1/jars/{id}/suggest. Generation runs in the
// worker; the response only acknowledges the request.
func (h *IdeaHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	jarID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid jar ID"})
		return
	}

	var req dto.SuggestIdeasRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	// Only members may fill a jar.
	if _, err := h.ideaService.List(r.Context(), userID, jarID, ideas.ListFilter{UnpickedOnly: true}); err != nil {
		h.writeIdeaError(w, err)
		return
	}

	task, err := tasks.NewIdeaGenerateTask(tasks.IdeaGeneratePayload{
		JarID:  jarID,
		UserID: userID,
		Prompt: req.Prompt,
		Count:  req.Count,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create suggestion task"})
		return
	}

	if h.asynqClient != nil {
		if _, err := h.asynqClient.Enqueue(task); err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to enqueue suggestion task"})
			return
		}
	}

	writeJSON(w, http.StatusAccepted, dto.SuccessResponse{Message: "Ideas are being generated"})
}

func (h *IdeaHandler) writeIdeaError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ideas.ErrIdeaNotFound):
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Idea not found"})
	case errors.Is(err, ideas.ErrNotMember):
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "You are not a member of this jar"})
	case errors.Is(err, ideas.ErrNotAllowed):
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Not allowed to modify this idea"})
	default:
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Request failed"})
	}
}

func (h *IdeaHandler) notifyJar(jarID, actorID uuid.UUID, title, body string) {
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
