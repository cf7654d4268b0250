package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the pgx-backed Store
type PostgresStore struct {
	DB *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{DB: db}
}

func (s *PostgresStore) Repos() Repos {
	return reposFor(s.DB)
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(r Repos) error) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(reposFor(tx)); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.DB.Ping(ctx)
}

func reposFor(db DBTX) Repos {
	return Repos{
		Caregivers:   NewCaregiverRepository(db),
		Dependents:   NewDependentRepository(db),
		Preferences:  NewPreferenceRepository(db),
		ChatLogs:     NewChatLogRepository(db),
		MemoryTests:  NewMemoryTestRepository(db),
		LevelTests:   NewLevelTestRepository(db),
		ExerciseLogs: NewExerciseLogRepository(db),
	}
}

// mapError turns driver errors into the package sentinels
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, pgErr.ConstraintName)
	}
	return err
}
