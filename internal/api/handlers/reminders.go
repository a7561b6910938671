package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/graemedakers/decision-jar/internal/api/dto"
	"github.com/graemedakers/decision-jar/internal/api/middleware"
	"github.com/graemedakers/decision-jar/internal/database/models"
	"github.com/graemedakers/decision-jar/internal/jars"
	"github.com/graemedakers/decision-jar/pkg/util"
	"gorm.io/gorm"
)

type ReminderHandler struct {
	db         *gorm.DB
	jarService *jars.Service
}

func NewReminderHandler(db *gorm.DB, jarService *jars.Service) *ReminderHandler {
	return &ReminderHandler{db: db, jarService: jarService}
}

// List handles GET /api/v1/jars/{id}/reminders
func (h *ReminderHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	jarID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid jar ID"})
		return
	}

	if !h.requireMember(w, r, userID, jarID) {
		return
	}

	var reminders []models.Reminder
	if err := h.db.WithContext(r.Context()).
		Where("jar_id = ?", jarID).
		Order("created_at ASC").
		Find(&reminders).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list reminders"})
		return
	}

	writeJSON(w, http.StatusOK, reminders)
}

// Create handles POST /api/v1/jars/{id}/reminders
func (h *ReminderHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	jarID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid jar ID"})
		return
	}

	var req dto.CreateReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	if !h.requireMember(w, r, userID, jarID) {
		return
	}

	next, err := util.NextCronTime(req.CronExpr, time.Now())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid cron expression"})
		return
	}

	reminder := models.Reminder{
		JarID:     jarID,
		CronExpr:  req.CronExpr,
		IsEnabled: true,
		NextRunAt: next.Unix(),
	}
	if err := h.db.WithContext(r.Context()).Create(&reminder).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create reminder"})
		return
	}

	writeJSON(w, http.StatusCreated, reminder)
}

// Update handles PUT /api/v1/reminders/{id}
func (h *ReminderHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	reminderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid reminder ID"})
		return
	}

	var req dto.UpdateReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	reminder, ok := h.loadForMember(w, r, userID, reminderID)
	if !ok {
		return
	}

	updates := map[string]interface{}{}
	if req.CronExpr != "" {
		next, err := util.NextCronTime(req.CronExpr, time.Now())
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid cron expression"})
			return
		}
		updates["cron_expr"] = req.CronExpr
		updates["next_run_at"] = next.Unix()
	}
	if req.IsEnabled != nil {
		updates["is_enabled"] = *req.IsEnabled
	}

	if len(updates) > 0 {
		if err := h.db.WithContext(r.Context()).Model(reminder).Updates(updates).Error; err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update reminder"})
			return
		}
	}

	writeJSON(w, http.StatusOK, reminder)
}

// Delete handles DELETE /api/v1/reminders/{id}
func (h *ReminderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	reminderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid reminder ID"})
		return
	}

	reminder, ok := h.loadForMember(w, r, userID, reminderID)
	if !ok {
		return
	}

	if err := h.db.WithContext(r.Context()).Delete(reminder).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete reminder"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Reminder deleted"})
}

func (h *ReminderHandler) requireMember(w http.ResponseWriter, r *http.Request, userID, jarID uuid.UUID) bool {
	if _, err := h.jarService.Summary(r.Context(), userID, jarID); err != nil {
		switch {
		case errors.Is(err, jars.ErrJarNotFound):
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Jar not found"})
		case errors.Is(err, jars.ErrNotMember):
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "You are not a member of this jar"})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Request failed"})
		}
		return false
	}
	return true
}

func (h *ReminderHandler) loadForMember(w http.ResponseWriter, r *http.Request, userID, reminderID uuid.UUID) (*models.Reminder, bool) {
	var reminder models.Reminder
	if err := h.db.WithContext(r.Context()).First(&reminder, reminderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Reminder not found"})
		} else {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load reminder"})
		}
		return nil, false
	}

	if !h.requireMember(w, r, userID, reminder.JarID) {
		return nil, false
	}
	return &reminder, true
}
