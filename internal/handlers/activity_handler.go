package handlers

import (
	"net/http"

	"companion-backend/internal/models"
	"companion-backend/internal/services"

	"go.uber.org/zap"
)

// ActivityHandler serves the chat/quiz logs, the level test and the
// exercise log.
type ActivityHandler struct {
	Activity     *services.ActivityService
	Logger       *zap.Logger
	MaxBodyBytes int64
}

func NewActivityHandler(activity *services.ActivityService, logger *zap.Logger) *ActivityHandler {
	return &ActivityHandler{Activity: activity, Logger: loggerOrNop(logger)}
}

type logRequest struct {
	UserID string `json:"user_id"`
	Date   string `json:"date"`
}

type chatLogResponse struct {
	envelope
	*models.ChatLogView
}

type memoryTestResponse struct {
	envelope
	*models.MemoryTestView
}

type exerciseLogResponse struct {
	envelope
	*models.ExerciseLogView
}

type levelTestRequest struct {
	UserID    string  `json:"user_id"`
	UpLevel   flexInt `json:"up_level"`
	DownLevel flexInt `json:"down_level"`
}

type levelTestResponse struct {
	envelope
	UpLevel   int `json:"up_level"`
	DownLevel int `json:"down_level"`
}

type exerciseLogRequest struct {
	UserID   string  `json:"user_id"`
	PoseName string  `json:"pose_name"`
	Level    flexInt `json:"level"`
	Count    flexInt `json:"count"`
	Sec      flexInt `json:"sec"`
}

func (h *ActivityHandler) decodeLogRequest(w http.ResponseWriter, r *http.Request) (*logRequest, error) {
	var req logRequest
	if err := decodeJSON(w, r, h.MaxBodyBytes, &req, "user_id"); err != nil {
		return nil, err
	}
	return &req, nil
}

// ChatLog returns the dependent's chat turns, optionally for one day
func (h *ActivityHandler) ChatLog(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeLogRequest(w, r)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	day, err := services.ParseDay(req.Date)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}

	view, err := h.Activity.ChatLog(r.Context(), req.UserID, day)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, chatLogResponse{ok("get chat log"), view})
}

// MemoryResults returns the dependent's quiz scores, optionally for one day
func (h *ActivityHandler) MemoryResults(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeLogRequest(w, r)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	day, err := services.ParseDay(req.Date)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}

	view, err := h.Activity.MemoryResults(r.Context(), req.UserID, day)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, memoryTestResponse{ok("get test result"), view})
}

// SaveLevelTest stores the recommended upper/lower body levels
func (h *ActivityHandler) SaveLevelTest(w http.ResponseWriter, r *http.Request) {
	var req levelTestRequest
	if err := decodeJSON(w, r, h.MaxBodyBytes, &req, "user_id", "up_level", "down_level"); err != nil {
		writeError(w, h.Logger, err)
		return
	}

	if err := h.Activity.SaveLevelTest(r.Context(), req.UserID, int(req.UpLevel), int(req.DownLevel)); err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ok("save user level test"))
}

// GetLevelTest returns the stored levels, 0/0 when none was saved
func (h *ActivityHandler) GetLevelTest(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := decodeJSON(w, r, h.MaxBodyBytes, &req, "user_id"); err != nil {
		writeError(w, h.Logger, err)
		return
	}

	lt, err := h.Activity.GetLevelTest(r.Context(), req.UserID)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, levelTestResponse{
		envelope:  ok("get user level test result"),
		UpLevel:   lt.UpLevel,
		DownLevel: lt.DownLevel,
	})
}

// SaveExerciseLog appends one finished exercise set
func (h *ActivityHandler) SaveExerciseLog(w http.ResponseWriter, r *http.Request) {
	var req exerciseLogRequest
	if err := decodeJSON(w, r, h.MaxBodyBytes, &req, "user_id", "pose_name"); err != nil {
		writeError(w, h.Logger, err)
		return
	}

	err := h.Activity.SaveExerciseLog(r.Context(), req.UserID, &models.ExerciseLog{
		PoseName: req.PoseName,
		Level:    int(req.Level),
		Count:    int(req.Count),
		Seconds:  int(req.Sec),
	})
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, ok("save exercise log"))
}

// ExerciseLogs returns the dependent's exercise sets, optionally for one day
func (h *ActivityHandler) ExerciseLogs(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeLogRequest(w, r)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	day, err := services.ParseDay(req.Date)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}

	view, err := h.Activity.ExerciseLogs(r.Context(), req.UserID, day)
	if err != nil {
		writeError(w, h.Logger, err)
		return
	}
	writeJSON(w, http.StatusOK, exerciseLogResponse{ok("get exercise log"), view})
}
