package repositories

import (
	"context"
	"time"

	"companion-backend/internal/models"
)

// MemoryTestRepository stores memory quiz results
type MemoryTestRepository struct {
	DB DBTX
}

func NewMemoryTestRepository(db DBTX) *MemoryTestRepository {
	return &MemoryTestRepository{DB: db}
}

func (r *MemoryTestRepository) Append(ctx context.Context, result *models.MemoryTestResult) error {
	if result.Date.IsZero() {
		result.Date = time.Now().UTC()
	}

	err := r.DB.QueryRow(ctx,
		`INSERT INTO memory_test_results(dependent_id, date, correct, total) VALUES($1, $2, $3, $4) RETURNING id`,
		result.DependentID, result.Date, result.Correct, result.Total,
	).Scan(&result.ID)
	return mapError(err)
}

func (r *MemoryTestRepository) List(ctx context.Context, dependentID int, day *time.Time) ([]*models.MemoryTestResult, error) {
	query := `SELECT id, dependent_id, date, correct, total FROM memory_test_results WHERE dependent_id = $1`
	args := []any{dependentID}
	if day != nil {
		start, end := dayBounds(*day)
		query += ` AND date >= $2 AND date < $3`
		args = append(args, start, end)
	}
	query += ` ORDER BY date, id`

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var results []*models.MemoryTestResult
	for rows.Next() {
		m := &models.MemoryTestResult{}
		if err := rows.Scan(&m.ID, &m.DependentID, &m.Date, &m.Correct, &m.Total); err != nil {
			return nil, err
		}
		results = append(results, m)
	}

	return results, rows.Err()
}

func (r *MemoryTestRepository) DeleteAll(ctx context.Context, dependentID int) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM memory_test_results WHERE dependent_id = $1`, dependentID)
	return mapError(err)
}
