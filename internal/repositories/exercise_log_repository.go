package repositories

import (
	"context"
	"time"

	"companion-backend/internal/models"
)

type ExerciseLogRepository struct {
	DB DBTX
}

func NewExerciseLogRepository(db DBTX) *ExerciseLogRepository {
	return &ExerciseLogRepository{DB: db}
}

func (r *ExerciseLogRepository) Append(ctx context.Context, log *models.ExerciseLog) error {
	if log.Time.IsZero() {
		log.Time = time.Now().UTC()
	}

	query := `
		INSERT INTO exercise_logs(dependent_id, pose_name, level, count, sec, time)
		VALUES($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	return mapError(r.DB.QueryRow(ctx, query,
		log.DependentID,
		log.PoseName,
		log.Level,
		log.Count,
		log.Seconds,
		log.Time,
	).Scan(&log.ID))
}

func (r *ExerciseLogRepository) List(ctx context.Context, dependentID int, day *time.Time) ([]*models.ExerciseLog, error) {
	query := `SELECT id, dependent_id, pose_name, level, count, sec, time FROM exercise_logs WHERE dependent_id = $1`
	args := []any{dependentID}
	if day != nil {
		start, end := dayBounds(*day)
		query += ` AND time >= $2 AND time < $3`
		args = append(args, start, end)
	}
	query += ` ORDER BY time, id`

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var logs []*models.ExerciseLog
	for rows.Next() {
		l := &models.ExerciseLog{}
		if err := rows.Scan(&l.ID, &l.DependentID, &l.PoseName, &l.Level, &l.Count, &l.Seconds, &l.Time); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}

	return logs, rows.Err()
}

func (r *ExerciseLogRepository) DeleteAll(ctx context.Context, dependentID int) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM exercise_logs WHERE dependent_id = $1`, dependentID)
	return mapError(err)
}
