package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/graemedakers/decision-jar/internal/api/dto"
	"github.com/graemedakers/decision-jar/internal/api/middleware"
	"github.com/graemedakers/decision-jar/internal/auth"
	"github.com/graemedakers/decision-jar/internal/database/models"
	"github.com/graemedakers/decision-jar/pkg/crypto"
	"gorm.io/gorm"
)

type AccountHandler struct {
	db          *gorm.DB
	authService *auth.Service
	encryptor   *crypto.Encryptor
}

func NewAccountHandler(db *gorm.DB, authService *auth.Service, encryptor *crypto.Encryptor) *AccountHandler {
	return &AccountHandler{db: db, authService: authService, encryptor: encryptor}
}

// Me handles GET /api/v1/me
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	user, err := h.authService.GetUserByID(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "User not found"})
		return
	}

	writeJSON(w, http.StatusOK, userToDTO(user))
}

// SetLLMKey handles PUT /api/v1/me/llm-key. The key is encrypted at rest and
// only ever decrypted inside the worker when the planner runs.
func (h *AccountHandler) SetLLMKey(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req dto.SetLLMKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errors := req.Validate(); len(errors) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errors})
		return
	}

	encrypted, err := h.encryptor.EncryptString(req.APIKey)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to store key"})
		return
	}

	if err := h.db.WithContext(r.Context()).Model(&models.User{}).
		Where("id = ?", userID).
		Update("llm_api_key_enc", encrypted).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to store key"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "API key stored"})
}

// ClearLLMKey handles DELETE /api/v1/me/llm-key
func (h *AccountHandler) ClearLLMKey(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	if err := h.db.WithContext(r.Context()).Model(&models.User{}).
		Where("id = ?", userID).
		Update("llm_api_key_enc", "").Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to clear key"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "API key cleared"})
}
