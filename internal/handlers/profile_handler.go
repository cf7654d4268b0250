package handlers

import (
	"net/http"

	"companion-backend/internal/models"
	"companion-backend/internal/services"

	"go.uber.org/zap"
)

type ProfileHandler struct {
	Accounts     *services.AccountService
	Profiles     *services.ProfileService
	Logger       *zap.Logger
	MaxBodyBytes int64
}

func NewProfileHandler(accounts *services.AccountService, profiles *services.ProfileService, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{Accounts: accounts, Profiles: profiles, Logger: loggerOrNop(logger)}
}

type dependentInfoResponse struct {
	envelope
	*models.DependentInfo
}

type dependentProfileResponse struct {
	envelope
	*models.DependentProfile
}

type caregiverProfileResponse struct {
	envelope
	*models.CaregiverProfile
}

type modifyResponse struct {
	envelope
	ModifyValue []string `json:"modify_value"`
}

// GetDependentInfo returns the basic dependent view with the caregiver contact
func (h *ProfileHandler) GetDependentInfo(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := decodeJSON(w, r, h.MaxBodyBytes, &req, "user_id"); err != nil {
		writeError(w, h.Logger, err)
		return
	}

	info, err := h.Profiles.GetDependentInfo(r.Context(), req.UserID)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dependentInfoResponse{ok("get user info"), info})
}

// GetDependentProfile returns every dependent attribute and collection
func (h *ProfileHandler) GetDependentProfile(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := decodeJSON(w, r, h.MaxBodyBytes, &req, "user_id"); err != nil {
		writeError(w, h.Logger, err)
		return
	}

	profile, err := h.Profiles.GetDependentProfile(r.Context(), req.UserID)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dependentProfileResponse{ok("get user info all"), profile})
}

// GetCaregiverProfile returns the caregiver and the ids of its dependents
func (h *ProfileHandler) GetCaregiverProfile(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := decodeJSON(w, r, h.MaxBodyBytes, &req, "nok_id"); err != nil {
		writeError(w, h.Logger, err)
		return
	}

	profile, err := h.Profiles.GetCaregiverProfile(r.Context(), req.NokID)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, caregiverProfileResponse{ok("get main nok info"), profile})
}

type modifyCaregiverRequest struct {
	NokID string `json:"nok_id"`
	models.CaregiverPatch
}

// ModifyCaregiver applies the supplied fields and lists the ones changed
func (h *ProfileHandler) ModifyCaregiver(w http.ResponseWriter, r *http.Request) {
	var req modifyCaregiverRequest
	if err := decodeJSON(w, r, h.MaxBodyBytes, &req, "nok_id"); err != nil {
		writeError(w, h.Logger, err)
		return
	}

	changed, err := h.Accounts.ModifyCaregiver(r.Context(), req.NokID, &req.CaregiverPatch)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, modifyResponse{ok("nok data modified"), changed})
}

type modifyDependentRequest struct {
	UserID string `json:"user_id"`
	models.DependentPatch
}

// ModifyDependent applies the supplied fields and replaces any supplied
// preference collection.
func (h *ProfileHandler) ModifyDependent(w http.ResponseWriter, r *http.Request) {
	var req modifyDependentRequest
	if err := decodeJSON(w, r, h.MaxBodyBytes, &req, "user_id"); err != nil {
		writeError(w, h.Logger, err)
		return
	}

	changed, err := h.Accounts.ModifyDependent(r.Context(), req.UserID, &req.DependentPatch)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, modifyResponse{ok("user data modified"), changed})
}

// DeleteAccount removes a dependent, or a caregiver with all its dependents
func (h *ProfileHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := decodeJSON(w, r, h.MaxBodyBytes, &req); err != nil {
		writeError(w, h.Logger, err)
		return
	}

	if err := h.Accounts.DeleteAccount(r.Context(), req.NokID, req.UserID); err != nil {
		writeError(w, h.Logger, err)
		return
	}

	msg := "user deleted"
	if req.NokID != "" {
		msg = "main_nok and user deleted"
	}
	writeJSON(w, http.StatusOK, ok(msg))
}

type firstFlagRequest struct {
	UserID string `json:"user_id"`
	Type   string `json:"type"`
}

// CheckFirst reads or clears the first-conversation flag
func (h *ProfileHandler) CheckFirst(w http.ResponseWriter, r *http.Request) {
	h.firstFlag(w, r, services.FirstConversation, "is_first")
}

// CheckExerciseFirst reads or clears the first-exercise flag
func (h *ProfileHandler) CheckExerciseFirst(w http.ResponseWriter, r *http.Request) {
	h.firstFlag(w, r, services.FirstExercise, "is_exercise_first")
}

func (h *ProfileHandler) firstFlag(w http.ResponseWriter, r *http.Request, flag services.FirstFlag, key string) {
	var req firstFlagRequest
	if err := decodeJSON(w, r, h.MaxBodyBytes, &req, "user_id", "type"); err != nil {
		writeError(w, h.Logger, err)
		return
	}

	var (
		msg   string
		first bool
		err   error
	)
	switch req.Type {
	case "get":
		msg = "get user first"
		first, err = h.Profiles.GetFirstFlag(r.Context(), req.UserID, flag)
	case "set":
		msg = "set user first"
		err = h.Profiles.ClearFirstFlag(r.Context(), req.UserID, flag)
	default:
		err = invalid("invaild type value")
	}
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}

	value := 0
	if first {
		value = 1
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"result":   resultSuccess,
		"msg":      msg,
		"err_code": CodeOK,
		key:        value,
	})
}
