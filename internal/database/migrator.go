package database

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Migrator applies the embedded SQL migrations in filename order and records
// each applied file in schema_migrations.
type Migrator struct {
	pool   *pgxpool.Pool
	fsys   fs.FS
	dir    string
	logger *zap.Logger
}

// NewMigrator creates a migration runner over fsys. dir is the directory
// inside fsys holding the *.sql files ("." for the migrations package FS).
func NewMigrator(pool *pgxpool.Pool, fsys fs.FS, dir string, logger *zap.Logger) *Migrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{
		pool:   pool,
		fsys:   fsys,
		dir:    dir,
		logger: logger,
	}
}

// RunMigrations executes all pending migrations. Files whose name contains
// "reset" are never run automatically. Each file runs in its own
// transaction together with its schema_migrations record.
func (m *Migrator) RunMigrations(ctx context.Context) error {
	m.logger.Info("starting database migrations")

	if err := m.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := m.getAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	files, err := pendingMigrations(m.fsys, m.dir, applied)
	if err != nil {
		return err
	}

	for _, filename := range files {
		content, err := fs.ReadFile(m.fsys, path.Join(m.dir, filename))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		statements := splitSQLStatements(string(content))
		m.logger.Info("running migration", zap.String("file", filename), zap.Int("statements", len(statements)))

		if err := m.apply(ctx, filename, statements); err != nil {
			return err
		}
	}

	if len(files) > 0 {
		m.logger.Info("migrations applied", zap.Int("count", len(files)))
	} else {
		m.logger.Info("database is up to date")
	}
	return nil
}

func (m *Migrator) apply(ctx context.Context, filename string, statements []string) error {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", filename, err)
	}
	defer tx.Rollback(ctx)

	for i, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration %s (statement %d): %w", filename, i+1, err)
		}
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO schema_migrations (filename) VALUES ($1) ON CONFLICT (filename) DO NOTHING`,
		filename,
	); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", filename, err)
	}

	return tx.Commit(ctx)
}

func (m *Migrator) createMigrationsTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id SERIAL PRIMARY KEY,
			filename VARCHAR(255) UNIQUE NOT NULL,
			applied_at TIMESTAMPTZ DEFAULT now()
		)
	`

	_, err := m.pool.Exec(ctx, query)
	return err
}

func (m *Migrator) getAppliedMigrations(ctx context.Context) (map[string]bool, error) {
	applied := make(map[string]bool)

	rows, err := m.pool.Query(ctx, "SELECT filename FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var filename string
		if err := rows.Scan(&filename); err != nil {
			return nil, err
		}
		applied[filename] = true
	}

	return applied, rows.Err()
}

// pendingMigrations lists the *.sql files of dir not yet applied, sorted.
func pendingMigrations(fsys fs.FS, dir string, applied map[string]bool) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		if strings.Contains(name, "reset") || applied[name] {
			continue
		}
		files = append(files, name)
	}
	sort.Strings(files)
	return files, nil
}

// splitSQLStatements splits SQL content into individual statements.
// Dollar-quoted blocks ($$ ... $$) are kept whole and comment-only
// fragments are dropped.
func splitSQLStatements(content string) []string {
	var statements []string
	var current strings.Builder
	dollarQuotes := 0

	flush := func() {
		stmt := strings.TrimSpace(current.String())
		current.Reset()
		if stmt == "" || stmt == ";" || isCommentOnly(stmt) {
			return
		}
		statements = append(statements, stmt)
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		dollarQuotes += strings.Count(line, "$$")

		if strings.TrimSpace(current.String()) == "" && (trimmed == "" || strings.HasPrefix(trimmed, "--")) {
			current.Reset()
			continue
		}

		current.WriteString(line)
		current.WriteString("\n")

		if dollarQuotes%2 == 0 && strings.HasSuffix(trimmed, ";") {
			flush()
		}
	}
	flush()

	return statements
}

func isCommentOnly(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}
