package repositories

import (
	"context"
	"fmt"

	"companion-backend/internal/models"
)

// PreferenceRepository stores the five preference collections, one table
// per collection with a (dependent_id, value) row per item.
type PreferenceRepository struct {
	DB DBTX
}

func NewPreferenceRepository(db DBTX) *PreferenceRepository {
	return &PreferenceRepository{DB: db}
}

// preferenceTable maps a collection to its table. The kind set is closed, so
// the result is safe to splice into SQL.
func preferenceTable(kind models.PreferenceKind) (string, error) {
	switch kind {
	case models.PreferenceFood:
		return "favorite_foods", nil
	case models.PreferenceMusic:
		return "favorite_music", nil
	case models.PreferenceSeason:
		return "favorite_seasons", nil
	case models.PreferencePastJob:
		return "past_jobs", nil
	case models.PreferencePet:
		return "pets", nil
	}
	return "", fmt.Errorf("unknown preference kind %d", int(kind))
}

// List returns the collection in insertion order
func (r *PreferenceRepository) List(ctx context.Context, dependentID int, kind models.PreferenceKind) ([]string, error) {
	table, err := preferenceTable(kind)
	if err != nil {
		return nil, err
	}

	rows, err := r.DB.Query(ctx, `SELECT value FROM `+table+` WHERE dependent_id = $1 ORDER BY id`, dependentID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}

	return values, rows.Err()
}

// Replace deletes the whole collection and inserts values in order. Callers
// run it inside a transaction so the swap is atomic.
func (r *PreferenceRepository) Replace(ctx context.Context, dependentID int, kind models.PreferenceKind, values []string) error {
	table, err := preferenceTable(kind)
	if err != nil {
		return err
	}

	if _, err := r.DB.Exec(ctx, `DELETE FROM `+table+` WHERE dependent_id = $1`, dependentID); err != nil {
		return mapError(err)
	}

	for _, v := range values {
		if _, err := r.DB.Exec(ctx, `INSERT INTO `+table+`(dependent_id, value) VALUES($1, $2)`, dependentID, v); err != nil {
			return mapError(err)
		}
	}

	return nil
}

// DeleteAll empties every collection of the dependent
func (r *PreferenceRepository) DeleteAll(ctx context.Context, dependentID int) error {
	for _, kind := range models.PreferenceKinds {
		table, err := preferenceTable(kind)
		if err != nil {
			return err
		}
		if _, err := r.DB.Exec(ctx, `DELETE FROM `+table+` WHERE dependent_id = $1`, dependentID); err != nil {
			return mapError(err)
		}
	}
	return nil
}
