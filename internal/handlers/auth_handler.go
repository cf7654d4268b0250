package handlers

import (
	"net/http"

	"companion-backend/internal/models"
	"companion-backend/internal/services"

	"go.uber.org/zap"
)

type AuthHandler struct {
	Accounts     *services.AccountService
	Logger       *zap.Logger
	MaxBodyBytes int64
}

func NewAuthHandler(accounts *services.AccountService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{Accounts: accounts, Logger: loggerOrNop(logger)}
}

type loginRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"user_pw"`
}

type loginResponse struct {
	envelope
	UserType string `json:"user_type"`
}

// Login checks a dependent or caregiver credential
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, h.MaxBodyBytes, &req, "user_id", "user_pw"); err != nil {
		writeError(w, h.Logger, err)
		return
	}

	userType, err := h.Accounts.Login(r.Context(), req.UserID, req.Password)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{envelope: ok("correct password"), UserType: userType})
}

// RegisterCaregiver creates a main_nok account
func (h *AuthHandler) RegisterCaregiver(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterCaregiverRequest
	err := decodeJSON(w, r, h.MaxBodyBytes, &req,
		"nok_id", "nok_pw", "name", "birthday", "gender", "address", "tell")
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}

	if err := h.Accounts.RegisterCaregiver(r.Context(), &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}

	writeJSON(w, http.StatusOK, ok("main nok register"))
}

// RegisterDependent creates a user account under an existing main_nok
func (h *AuthHandler) RegisterDependent(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterDependentRequest
	err := decodeJSON(w, r, h.MaxBodyBytes, &req,
		"nok_id", "user_id", "user_pw", "name", "birthday", "gender",
		"relation", "address", "blood_type", "chronic_illness")
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}

	if err := h.Accounts.RegisterDependent(r.Context(), &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}

	writeJSON(w, http.StatusOK, ok("user register"))
}

type idRequest struct {
	UserID string `json:"user_id"`
	NokID  string `json:"nok_id"`
}

// CheckIDDuplicate reports whether an id is free in both namespaces
func (h *AuthHandler) CheckIDDuplicate(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := decodeJSON(w, r, h.MaxBodyBytes, &req, "user_id"); err != nil {
		writeError(w, h.Logger, err)
		return
	}

	if err := h.Accounts.CheckIDAvailable(r.Context(), req.UserID); err != nil {
		writeError(w, h.Logger, err)
		return
	}

	writeJSON(w, http.StatusOK, ok(req.UserID+" id is available"))
}
