package repositories

import (
	"context"

	"companion-backend/internal/models"
)

type DependentRepository struct {
	DB DBTX
}

func NewDependentRepository(db DBTX) *DependentRepository {
	return &DependentRepository{DB: db}
}

const dependentColumns = `
	id, caregiver_id, user_id, password_hash, name, birthday, gender, relation, address,
	blood_type, chronic_illness, hometown, details, last_chat_group, is_first, is_exercise_first, created_at
`

func scanDependent(row interface{ Scan(dest ...any) error }) (*models.Dependent, error) {
	var d models.Dependent
	err := row.Scan(
		&d.ID,
		&d.CaregiverID,
		&d.UserID,
		&d.PasswordHash,
		&d.Name,
		&d.Birthday,
		&d.Gender,
		&d.Relation,
		&d.Address,
		&d.BloodType,
		&d.ChronicIllness,
		&d.Hometown,
		&d.Details,
		&d.LastChatGroup,
		&d.IsFirst,
		&d.IsExerciseFirst,
		&d.CreatedAt,
	)
	if err != nil {
		return nil, mapError(err)
	}
	return &d, nil
}

// GetByUserID looks up a dependent by its login identifier (exact match)
func (r *DependentRepository) GetByUserID(ctx context.Context, userID string) (*models.Dependent, error) {
	query := `SELECT ` + dependentColumns + ` FROM dependents WHERE user_id = $1`
	return scanDependent(r.DB.QueryRow(ctx, query, userID))
}

func (r *DependentRepository) ExistsByUserID(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM dependents WHERE user_id = $1)`, userID).Scan(&exists)
	return exists, mapError(err)
}

// ListByCaregiver returns every dependent owned by a caregiver, oldest first
func (r *DependentRepository) ListByCaregiver(ctx context.Context, caregiverID int) ([]*models.Dependent, error) {
	query := `SELECT ` + dependentColumns + ` FROM dependents WHERE caregiver_id = $1 ORDER BY id`

	rows, err := r.DB.Query(ctx, query, caregiverID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var dependents []*models.Dependent
	for rows.Next() {
		d, err := scanDependent(rows)
		if err != nil {
			return nil, err
		}
		dependents = append(dependents, d)
	}

	return dependents, rows.Err()
}

// Create inserts a new dependent. The flags and chat group take their
// column defaults.
func (r *DependentRepository) Create(ctx context.Context, d *models.Dependent) error {
	query := `
		INSERT INTO dependents(caregiver_id, user_id, password_hash, name, birthday, gender, relation,
			address, blood_type, chronic_illness, hometown, details)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, last_chat_group, is_first, is_exercise_first, created_at
	`

	err := r.DB.QueryRow(ctx, query,
		d.CaregiverID,
		d.UserID,
		d.PasswordHash,
		d.Name,
		d.Birthday,
		d.Gender,
		d.Relation,
		d.Address,
		d.BloodType,
		d.ChronicIllness,
		d.Hometown,
		d.Details,
	).Scan(&d.ID, &d.LastChatGroup, &d.IsFirst, &d.IsExerciseFirst, &d.CreatedAt)
	return mapError(err)
}

// Update writes every mutable column back
func (r *DependentRepository) Update(ctx context.Context, d *models.Dependent) error {
	query := `
		UPDATE dependents
		SET password_hash = $1, name = $2, birthday = $3, gender = $4, relation = $5, address = $6,
			blood_type = $7, chronic_illness = $8, hometown = $9, details = $10,
			last_chat_group = $11, is_first = $12, is_exercise_first = $13
		WHERE id = $14
	`

	tag, err := r.DB.Exec(ctx, query,
		d.PasswordHash,
		d.Name,
		d.Birthday,
		d.Gender,
		d.Relation,
		d.Address,
		d.BloodType,
		d.ChronicIllness,
		d.Hometown,
		d.Details,
		d.LastChatGroup,
		d.IsFirst,
		d.IsExerciseFirst,
		d.ID,
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *DependentRepository) Delete(ctx context.Context, id int) error {
	tag, err := r.DB.Exec(ctx, `DELETE FROM dependents WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
