package repositories

import (
	"context"

	"companion-backend/internal/models"
)

type CaregiverRepository struct {
	DB DBTX
}

func NewCaregiverRepository(db DBTX) *CaregiverRepository {
	return &CaregiverRepository{DB: db}
}

const caregiverColumns = `id, nok_id, password_hash, name, birthday, gender, address, tell, created_at`

func scanCaregiver(row interface{ Scan(dest ...any) error }) (*models.Caregiver, error) {
	var c models.Caregiver
	err := row.Scan(
		&c.ID,
		&c.NokID,
		&c.PasswordHash,
		&c.Name,
		&c.Birthday,
		&c.Gender,
		&c.Address,
		&c.Tell,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return &c, nil
}

// GetByNokID looks up a caregiver by its login identifier (exact match)
func (r *CaregiverRepository) GetByNokID(ctx context.Context, nokID string) (*models.Caregiver, error) {
	query := `SELECT ` + caregiverColumns + ` FROM caregivers WHERE nok_id = $1`
	return scanCaregiver(r.DB.QueryRow(ctx, query, nokID))
}

// GetByID looks up a caregiver by primary key
func (r *CaregiverRepository) GetByID(ctx context.Context, id int) (*models.Caregiver, error) {
	query := `SELECT ` + caregiverColumns + ` FROM caregivers WHERE id = $1`
	return scanCaregiver(r.DB.QueryRow(ctx, query, id))
}

func (r *CaregiverRepository) ExistsByNokID(ctx context.Context, nokID string) (bool, error) {
	var exists bool
	err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM caregivers WHERE nok_id = $1)`, nokID).Scan(&exists)
	return exists, mapError(err)
}

// Create inserts a new caregiver and fills in the generated id
func (r *CaregiverRepository) Create(ctx context.Context, c *models.Caregiver) error {
	query := `
		INSERT INTO caregivers(nok_id, password_hash, name, birthday, gender, address, tell)
		VALUES($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.DB.QueryRow(ctx, query,
		c.NokID,
		c.PasswordHash,
		c.Name,
		c.Birthday,
		c.Gender,
		c.Address,
		c.Tell,
	).Scan(&c.ID, &c.CreatedAt)
	return mapError(err)
}

// Update writes every mutable column back
func (r *CaregiverRepository) Update(ctx context.Context, c *models.Caregiver) error {
	query := `
		UPDATE caregivers
		SET password_hash = $1, name = $2, birthday = $3, gender = $4, address = $5, tell = $6
		WHERE id = $7
	`

	tag, err := r.DB.Exec(ctx, query,
		c.PasswordHash,
		c.Name,
		c.Birthday,
		c.Gender,
		c.Address,
		c.Tell,
		c.ID,
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *CaregiverRepository) Delete(ctx context.Context, id int) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM caregivers WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
