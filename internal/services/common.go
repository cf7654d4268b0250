package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"companion-backend/internal/cache"
	"companion-backend/internal/models"
	"companion-backend/internal/repositories"

	"go.uber.org/zap"
)

// Column widths shared by registration and modification
const (
	maxIDLen        = 20
	maxNameLen      = 20
	maxAddressLen   = 100
	maxTellLen      = 20
	maxRelationLen  = 20
	maxBloodTypeLen = 3
	maxHometownLen  = 100
	maxDetailsLen   = 500
	maxPoseNameLen  = 50
)

// runTx executes fn in one transaction. Service errors returned by fn pass
// through untouched; anything else is logged and surfaced as a
// persistence failure.
func runTx(ctx context.Context, store repositories.Store, logger *zap.Logger, op string, fn func(r repositories.Repos) error) error {
	err := store.WithTx(ctx, fn)
	if err == nil {
		return nil
	}

	var se *Error
	if errors.As(err, &se) && !errors.Is(se.Kind, ErrPersistence) {
		return err
	}

	logger.Error("transaction failed", zap.String("op", op), zap.Error(err))
	if se != nil {
		return err
	}
	return persistenceError(err)
}

// readError converts a repository read failure into a service error
func readError(logger *zap.Logger, op, id string, err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return idNotFound(id)
	}
	logger.Error("read failed", zap.String("op", op), zap.String("id", id), zap.Error(err))
	return persistenceError(err)
}

func loadDependent(ctx context.Context, r repositories.Repos, logger *zap.Logger, op, userID string) (*models.Dependent, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, missingParameter("user_id")
	}
	d, err := r.Dependents.GetByUserID(ctx, userID)
	if err != nil {
		return nil, readError(logger, op, userID, err)
	}
	return d, nil
}

func loadCaregiver(ctx context.Context, r repositories.Repos, logger *zap.Logger, op, nokID string) (*models.Caregiver, error) {
	if strings.TrimSpace(nokID) == "" {
		return nil, missingParameter("nok_id")
	}
	c, err := r.Caregivers.GetByNokID(ctx, nokID)
	if err != nil {
		return nil, readError(logger, op, nokID, err)
	}
	return c, nil
}

// idTaken checks both account namespaces
func idTaken(ctx context.Context, r repositories.Repos, id string) (bool, error) {
	taken, err := r.Dependents.ExistsByUserID(ctx, id)
	if err != nil || taken {
		return taken, err
	}
	return r.Caregivers.ExistsByNokID(ctx, id)
}

func checkLen(field, value string, max int) error {
	if utf8.RuneCountInString(value) > max {
		return newError(ErrInvalidValue, "%s must be at most %d characters", field, max)
	}
	return nil
}

// columnInts reports whether every value fits a non-negative INTEGER column
func columnInts(values ...int) bool {
	for _, v := range values {
		if v < 0 || v > math.MaxInt32 {
			return false
		}
	}
	return true
}

func parseBirthday(value string) (time.Time, error) {
	t, err := models.ParseDate(value)
	if err != nil {
		return time.Time{}, newError(ErrInvalidValue, "birthday must be YYYY-MM-DD")
	}
	return t, nil
}

func formatDate(t time.Time) string {
	return t.UTC().Format(models.DateLayout)
}

// invalidate moves the cached views of the given account scopes to a new
// generation. The write has already committed, so a failure is logged and
// the scopes are bypassed until a later bump succeeds.
func invalidate(ctx context.Context, views *cache.Views, logger *zap.Logger, scopes ...string) {
	if err := views.Invalidate(ctx, scopes...); err != nil {
		logger.Warn("cache invalidation failed", zap.Strings("scopes", scopes), zap.Error(err))
	}
}
