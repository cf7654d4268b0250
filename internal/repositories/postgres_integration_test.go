//go:build integration

package repositories

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"companion-backend/internal/database"
	"companion-backend/internal/models"
	"companion-backend/migrations"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// newPostgresStore connects to COMPANION_TEST_DATABASE_URL and applies the
// embedded migrations.
func newPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("COMPANION_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("COMPANION_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.NewMigrator(pool, migrations.FS, ".", zaptest.NewLogger(t)).RunMigrations(ctx))
	return NewPostgresStore(pool)
}

func seedDependent(t *testing.T, s *PostgresStore) (*models.Caregiver, *models.Dependent) {
	t.Helper()
	ctx := context.Background()
	suffix := uuid.NewString()[:8]

	c := &models.Caregiver{
		NokID:        "nok-" + suffix,
		PasswordHash: "hash",
		Name:         "보호자",
		Birthday:     time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC),
		Gender:       models.GenderFemale,
		Address:      "서울",
		Tell:         "010-0000-0000",
	}
	require.NoError(t, s.Repos().Caregivers.Create(ctx, c))

	d := &models.Dependent{
		CaregiverID:    c.ID,
		UserID:         "user-" + suffix,
		PasswordHash:   "hash",
		Name:           "어르신",
		Birthday:       time.Date(1940, 1, 1, 0, 0, 0, 0, time.UTC),
		Gender:         models.GenderMale,
		Relation:       "아버지",
		Address:        "서울",
		ChronicIllness: []byte("고혈압"),
	}
	require.NoError(t, s.Repos().Dependents.Create(ctx, d))
	return c, d
}

func TestPostgres_DependentDefaultsAndUnique(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()
	c, d := seedDependent(t, s)

	assert.True(t, d.IsFirst)
	assert.True(t, d.IsExerciseFirst)
	assert.Equal(t, 0, d.LastChatGroup)

	got, err := s.Repos().Dependents.GetByUserID(ctx, d.UserID)
	require.NoError(t, err)
	assert.Equal(t, "고혈압", *got.ChronicIllnessText())
	assert.Nil(t, got.Hometown)

	dup := *d
	err = s.Repos().Dependents.Create(ctx, &dup)
	assert.ErrorIs(t, err, ErrDuplicateKey)

	_, err = s.Repos().Caregivers.GetByNokID(ctx, "missing-"+c.NokID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgres_WithTxRollsBack(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()
	_, d := seedDependent(t, s)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(r Repos) error {
		require.NoError(t, r.Preferences.Replace(ctx, d.ID, models.PreferenceFood, []string{"잡채"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	values, err := s.Repos().Preferences.List(ctx, d.ID, models.PreferenceFood)
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestPostgres_PreferenceReplaceIsExact(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()
	_, d := seedDependent(t, s)
	r := s.Repos()

	require.NoError(t, r.Preferences.Replace(ctx, d.ID, models.PreferenceSeason, []string{"SP", "SU"}))
	require.NoError(t, r.Preferences.Replace(ctx, d.ID, models.PreferenceSeason, []string{"AU"}))
	require.NoError(t, r.Preferences.Replace(ctx, d.ID, models.PreferenceSeason, []string{"AU"}))

	values, err := r.Preferences.List(ctx, d.ID, models.PreferenceSeason)
	require.NoError(t, err)
	assert.Equal(t, []string{"AU"}, values)
}

func TestPostgres_ChatLogRecentAndDayFilter(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()
	_, d := seedDependent(t, s)
	r := s.Repos()

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, text := range []string{"a", "b", "c"} {
		require.NoError(t, r.ChatLogs.Append(ctx, &models.ChatLogEntry{
			DependentID: d.ID,
			Receiver:    models.RoleUser,
			ChatGroupID: 0,
			Text:        []byte(text),
			Time:        base.Add(time.Duration(i) * 24 * time.Hour),
		}))
	}

	recent, err := r.ChatLogs.Recent(ctx, d.ID, 0, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "b", string(recent[0].Text))
	assert.Equal(t, "c", string(recent[1].Text))

	day := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	onDay, err := r.ChatLogs.List(ctx, d.ID, &day)
	require.NoError(t, err)
	require.Len(t, onDay, 1)
	assert.Equal(t, "b", string(onDay[0].Text))
}

func TestPostgres_DeleteRespectsReferences(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()
	c, d := seedDependent(t, s)
	r := s.Repos()

	_, err := r.LevelTests.Upsert(ctx, &models.LevelTest{DependentID: d.ID, UpLevel: 1, DownLevel: 2})
	require.NoError(t, err)

	// the caregiver still owns a dependent
	assert.Error(t, r.Caregivers.Delete(ctx, c.ID))

	require.NoError(t, s.WithTx(ctx, func(r Repos) error {
		if err := r.LevelTests.Delete(ctx, d.ID); err != nil {
			return err
		}
		if err := r.Dependents.Delete(ctx, d.ID); err != nil {
			return err
		}
		return r.Caregivers.Delete(ctx, c.ID)
	}))

	_, err = r.Dependents.GetByUserID(ctx, d.UserID)
	assert.ErrorIs(t, err, ErrNotFound)
}
