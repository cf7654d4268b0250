package repositories

import (
	"context"
	"time"

	"companion-backend/internal/models"
)

type ChatLogRepository struct {
	DB DBTX
}

func NewChatLogRepository(db DBTX) *ChatLogRepository {
	return &ChatLogRepository{DB: db}
}

// Append logs one chat turn. Time defaults to now when unset.
func (r *ChatLogRepository) Append(ctx context.Context, entry *models.ChatLogEntry) error {
	if entry.Time.IsZero() {
		entry.Time = time.Now().UTC()
	}

	query := `
		INSERT INTO chat_logs(dependent_id, receiver, chat_group_id, text, time)
		VALUES($1, $2, $3, $4, $5)
		RETURNING id
	`

	err := r.DB.QueryRow(ctx, query,
		entry.DependentID,
		entry.Receiver,
		entry.ChatGroupID,
		entry.Text,
		entry.Time,
	).Scan(&entry.ID)
	return mapError(err)
}

func (r *ChatLogRepository) List(ctx context.Context, dependentID int, day *time.Time) ([]*models.ChatLogEntry, error) {
	query := `
		SELECT id, dependent_id, receiver, chat_group_id, text, time
		FROM chat_logs
		WHERE dependent_id = $1
	`
	args := []any{dependentID}
	if day != nil {
		start, end := dayBounds(*day)
		query += ` AND time >= $2 AND time < $3`
		args = append(args, start, end)
	}
	query += ` ORDER BY time, id`

	return r.query(ctx, query, args...)
}

func (r *ChatLogRepository) Recent(ctx context.Context, dependentID, groupID, limit int) ([]*models.ChatLogEntry, error) {
	query := `
		SELECT id, dependent_id, receiver, chat_group_id, text, time FROM (
			SELECT id, dependent_id, receiver, chat_group_id, text, time
			FROM chat_logs
			WHERE dependent_id = $1 AND chat_group_id = $2
			ORDER BY time DESC, id DESC
			LIMIT $3
		) recent
		ORDER BY time, id
	`

	return r.query(ctx, query, dependentID, groupID, limit)
}

func (r *ChatLogRepository) DeleteAll(ctx context.Context, dependentID int) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM chat_logs WHERE dependent_id = $1`, dependentID)
	return mapError(err)
}

func (r *ChatLogRepository) query(ctx context.Context, query string, args ...any) ([]*models.ChatLogEntry, error) {
	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var entries []*models.ChatLogEntry
	for rows.Next() {
		e := &models.ChatLogEntry{}
		if err := rows.Scan(&e.ID, &e.DependentID, &e.Receiver, &e.ChatGroupID, &e.Text, &e.Time); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
