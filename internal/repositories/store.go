package repositories

import (
	"context"
	"errors"
	"time"

	"companion-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateKey is returned when an insert violates a unique constraint
	ErrDuplicateKey = errors.New("duplicate key")
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx so that every
// repository can run inside or outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type CaregiverStore interface {
	GetByNokID(ctx context.Context, nokID string) (*models.Caregiver, error)
	GetByID(ctx context.Context, id int) (*models.Caregiver, error)
	ExistsByNokID(ctx context.Context, nokID string) (bool, error)
	Create(ctx context.Context, c *models.Caregiver) error
	Update(ctx context.Context, c *models.Caregiver) error
	Delete(ctx context.Context, id int) error
}

type DependentStore interface {
	GetByUserID(ctx context.Context, userID string) (*models.Dependent, error)
	ExistsByUserID(ctx context.Context, userID string) (bool, error)
	ListByCaregiver(ctx context.Context, caregiverID int) ([]*models.Dependent, error)
	Create(ctx context.Context, d *models.Dependent) error
	Update(ctx context.Context, d *models.Dependent) error
	Delete(ctx context.Context, id int) error
}

type PreferenceStore interface {
	List(ctx context.Context, dependentID int, kind models.PreferenceKind) ([]string, error)
	Replace(ctx context.Context, dependentID int, kind models.PreferenceKind, values []string) error
	DeleteAll(ctx context.Context, dependentID int) error
}

type ChatLogStore interface {
	Append(ctx context.Context, entry *models.ChatLogEntry) error
	// List returns every entry of the dependent, or only those of day when
	// day is non-nil, oldest first.
	List(ctx context.Context, dependentID int, day *time.Time) ([]*models.ChatLogEntry, error)
	// Recent returns the last limit entries of a chat group, oldest first.
	Recent(ctx context.Context, dependentID, groupID, limit int) ([]*models.ChatLogEntry, error)
	DeleteAll(ctx context.Context, dependentID int) error
}

type MemoryTestStore interface {
	Append(ctx context.Context, result *models.MemoryTestResult) error
	List(ctx context.Context, dependentID int, day *time.Time) ([]*models.MemoryTestResult, error)
	DeleteAll(ctx context.Context, dependentID int) error
}

type LevelTestStore interface {
	Get(ctx context.Context, dependentID int) (*models.LevelTest, error)
	// Upsert inserts the row when absent and updates both levels otherwise.
	// It reports whether a row was inserted.
	Upsert(ctx context.Context, lt *models.LevelTest) (bool, error)
	Delete(ctx context.Context, dependentID int) error
}

type ExerciseLogStore interface {
	Append(ctx context.Context, log *models.ExerciseLog) error
	List(ctx context.Context, dependentID int, day *time.Time) ([]*models.ExerciseLog, error)
	DeleteAll(ctx context.Context, dependentID int) error
}

// Repos bundles the per-table stores bound to one connection or transaction.
type Repos struct {
	Caregivers   CaregiverStore
	Dependents   DependentStore
	Preferences  PreferenceStore
	ChatLogs     ChatLogStore
	MemoryTests  MemoryTestStore
	LevelTests   LevelTestStore
	ExerciseLogs ExerciseLogStore
}

// Store hands out repositories. Reads may use Repos directly; every write
// goes through WithTx so it commits all-or-nothing.
type Store interface {
	Repos() Repos
	// WithTx runs fn inside one transaction. The transaction is committed
	// when fn returns nil and rolled back otherwise.
	WithTx(ctx context.Context, fn func(r Repos) error) error
	Ping(ctx context.Context) error
}

func dayBounds(day time.Time) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}
