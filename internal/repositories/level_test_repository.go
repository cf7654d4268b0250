package repositories

import (
	"context"

	"companion-backend/internal/models"
)

type LevelTestRepository struct {
	DB DBTX
}

func NewLevelTestRepository(db DBTX) *LevelTestRepository {
	return &LevelTestRepository{DB: db}
}

func (r *LevelTestRepository) Get(ctx context.Context, dependentID int) (*models.LevelTest, error) {
	var lt models.LevelTest
	err := r.DB.QueryRow(ctx,
		`SELECT id, dependent_id, up_level, down_level FROM level_tests WHERE dependent_id = $1`,
		dependentID,
	).Scan(&lt.ID, &lt.DependentID, &lt.UpLevel, &lt.DownLevel)
	if err != nil {
		return nil, mapError(err)
	}
	return &lt, nil
}

// Upsert relies on the unique dependent_id constraint; xmax = 0 only holds
// for a freshly inserted tuple.
func (r *LevelTestRepository) Upsert(ctx context.Context, lt *models.LevelTest) (bool, error) {
	query := `
		INSERT INTO level_tests(dependent_id, up_level, down_level)
		VALUES($1, $2, $3)
		ON CONFLICT (dependent_id)
		DO UPDATE SET up_level = EXCLUDED.up_level, down_level = EXCLUDED.down_level
		RETURNING id, (xmax = 0) AS inserted
	`

	var inserted bool
	err := r.DB.QueryRow(ctx, query, lt.DependentID, lt.UpLevel, lt.DownLevel).Scan(&lt.ID, &inserted)
	if err != nil {
		return false, mapError(err)
	}
	return inserted, nil
}

func (r *LevelTestRepository) Delete(ctx context.Context, dependentID int) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM level_tests WHERE dependent_id = $1`, dependentID)
	return mapError(err)
}
