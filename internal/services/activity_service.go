package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"companion-backend/internal/models"
	"companion-backend/internal/repositories"

	"go.uber.org/zap"
)

// ActivityService reads the chat and quiz logs and keeps the exercise
// level test and exercise log.
type ActivityService struct {
	Store  repositories.Store
	Logger *zap.Logger
	Now    func() time.Time
}

func NewActivityService(store repositories.Store, logger *zap.Logger) *ActivityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityService{Store: store, Logger: logger, Now: time.Now}
}

// ParseDay parses an optional YYYY-MM-DD filter. Empty means no filter.
func ParseDay(value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	day, err := models.ParseDate(value)
	if err != nil {
		return nil, newError(ErrInvalidValue, "date must be YYYY-MM-DD")
	}
	return &day, nil
}

// ChatLog returns the dependent's chat turns as parallel log/date arrays
func (s *ActivityService) ChatLog(ctx context.Context, userID string, day *time.Time) (*models.ChatLogView, error) {
	r := s.Store.Repos()
	d, err := loadDependent(ctx, r, s.Logger, "get_user_chat_log", userID)
	if err != nil {
		return nil, err
	}

	entries, err := r.ChatLogs.List(ctx, d.ID, day)
	if err != nil {
		return nil, readError(s.Logger, "get_user_chat_log", userID, err)
	}

	view := &models.ChatLogView{
		Log:  make([]map[string]string, 0, len(entries)),
		Date: make([]string, 0, len(entries)),
	}
	for _, e := range entries {
		view.Log = append(view.Log, map[string]string{e.Receiver: string(e.Text)})
		view.Date = append(view.Date, formatDate(e.Time))
	}
	return view, nil
}

// MemoryResults returns the dependent's quiz scores as parallel arrays
func (s *ActivityService) MemoryResults(ctx context.Context, userID string, day *time.Time) (*models.MemoryTestView, error) {
	r := s.Store.Repos()
	d, err := loadDependent(ctx, r, s.Logger, "get_user_test_result", userID)
	if err != nil {
		return nil, err
	}

	results, err := r.MemoryTests.List(ctx, d.ID, day)
	if err != nil {
		return nil, readError(s.Logger, "get_user_test_result", userID, err)
	}

	view := &models.MemoryTestView{
		Correct: make([]int, 0, len(results)),
		Total:   make([]int, 0, len(results)),
		Date:    make([]string, 0, len(results)),
	}
	for _, m := range results {
		view.Correct = append(view.Correct, m.Correct)
		view.Total = append(view.Total, m.Total)
		view.Date = append(view.Date, formatDate(m.Date))
	}
	return view, nil
}

// SaveLevelTest inserts or overwrites the dependent's level test. The first
// save also clears the first-exercise flag.
func (s *ActivityService) SaveLevelTest(ctx context.Context, userID string, upLevel, downLevel int) error {
	if !columnInts(upLevel, downLevel) {
		return newError(ErrInvalidValue, "levels must be between 0 and %d", math.MaxInt32)
	}

	return runTx(ctx, s.Store, s.Logger, "save_level_test", func(r repositories.Repos) error {
		d, err := loadDependent(ctx, r, s.Logger, "save_level_test", userID)
		if err != nil {
			return err
		}

		if _, err := r.LevelTests.Upsert(ctx, &models.LevelTest{
			DependentID: d.ID,
			UpLevel:     upLevel,
			DownLevel:   downLevel,
		}); err != nil {
			return err
		}

		if d.IsExerciseFirst {
			d.IsExerciseFirst = false
			return r.Dependents.Update(ctx, d)
		}
		return nil
	})
}

// GetLevelTest returns the saved levels, or 0/0 when none was saved
func (s *ActivityService) GetLevelTest(ctx context.Context, userID string) (*models.LevelTest, error) {
	r := s.Store.Repos()
	d, err := loadDependent(ctx, r, s.Logger, "get_level_test", userID)
	if err != nil {
		return nil, err
	}

	lt, err := r.LevelTests.Get(ctx, d.ID)
	if errors.Is(err, repositories.ErrNotFound) {
		return &models.LevelTest{DependentID: d.ID}, nil
	}
	if err != nil {
		return nil, readError(s.Logger, "get_level_test", userID, err)
	}
	return lt, nil
}

// SaveExerciseLog appends one finished exercise set
func (s *ActivityService) SaveExerciseLog(ctx context.Context, userID string, log *models.ExerciseLog) error {
	log.PoseName = strings.TrimSpace(log.PoseName)
	if log.PoseName == "" {
		return missingParameter("pose_name")
	}
	if err := checkLen("pose_name", log.PoseName, maxPoseNameLen); err != nil {
		return err
	}
	if !columnInts(log.Level, log.Count, log.Seconds) {
		return newError(ErrInvalidValue, "level, count and sec must be between 0 and %d", math.MaxInt32)
	}

	return runTx(ctx, s.Store, s.Logger, "save_exercise_log", func(r repositories.Repos) error {
		d, err := loadDependent(ctx, r, s.Logger, "save_exercise_log", userID)
		if err != nil {
			return err
		}
		log.DependentID = d.ID
		log.Time = s.Now().UTC()
		return r.ExerciseLogs.Append(ctx, log)
	})
}

// ExerciseLogs returns the dependent's exercise sets as parallel arrays
func (s *ActivityService) ExerciseLogs(ctx context.Context, userID string, day *time.Time) (*models.ExerciseLogView, error) {
	r := s.Store.Repos()
	d, err := loadDependent(ctx, r, s.Logger, "get_exercise_log", userID)
	if err != nil {
		return nil, err
	}

	logs, err := r.ExerciseLogs.List(ctx, d.ID, day)
	if err != nil {
		return nil, readError(s.Logger, "get_exercise_log", userID, err)
	}

	view := &models.ExerciseLogView{
		PoseName: make([]string, 0, len(logs)),
		Level:    make([]int, 0, len(logs)),
		Count:    make([]int, 0, len(logs)),
		Sec:      make([]int, 0, len(logs)),
		Date:     make([]string, 0, len(logs)),
	}
	for _, l := range logs {
		view.PoseName = append(view.PoseName, l.PoseName)
		view.Level = append(view.Level, l.Level)
		view.Count = append(view.Count, l.Count)
		view.Sec = append(view.Sec, l.Seconds)
		view.Date = append(view.Date, formatDate(l.Time))
	}
	return view, nil
}
