package services

import (
	"context"
	"errors"

	"companion-backend/internal/cache"
	"companion-backend/internal/models"
	"companion-backend/internal/repositories"

	"go.uber.org/zap"
)

// FirstFlag selects one of the dependent's first-run flags
type FirstFlag int

const (
	FirstConversation FirstFlag = iota
	FirstExercise
)

// ProfileService serves the read views of both account types and the
// first-run flags. Views are cached until the next write to the account.
type ProfileService struct {
	Store  repositories.Store
	Views  *cache.Views
	Logger *zap.Logger
}

func NewProfileService(store repositories.Store, views *cache.Views, logger *zap.Logger) *ProfileService {
	if views == nil {
		views = cache.NewViews(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileService{Store: store, Views: views, Logger: logger}
}

// viewKey resolves the key before the database read. An empty key skips
// the cache for this request.
func (s *ProfileService) viewKey(ctx context.Context, scope, view string) string {
	key, err := s.Views.Key(ctx, scope, view)
	if err != nil {
		s.Logger.Warn("cache generation unavailable", zap.String("scope", scope), zap.Error(err))
		return ""
	}
	return key
}

func (s *ProfileService) cached(ctx context.Context, key string, dest any) bool {
	if key == "" {
		return false
	}
	hit, err := s.Views.Get(ctx, key, dest)
	if err != nil {
		s.Logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return hit
}

func (s *ProfileService) store(ctx context.Context, key string, value any) {
	if key == "" {
		return
	}
	if err := s.Views.Set(ctx, key, value); err != nil {
		s.Logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// GetDependentInfo returns the basic view with the owning caregiver's
// name and phone.
func (s *ProfileService) GetDependentInfo(ctx context.Context, userID string) (*models.DependentInfo, error) {
	key := s.viewKey(ctx, cache.DependentScope(userID), cache.ViewInfo)
	var info models.DependentInfo
	if s.cached(ctx, key, &info) {
		return &info, nil
	}

	r := s.Store.Repos()
	d, err := loadDependent(ctx, r, s.Logger, "get_user_info", userID)
	if err != nil {
		return nil, err
	}

	info = models.DependentInfo{
		UserID:    d.UserID,
		Name:      d.Name,
		Birthday:  formatDate(d.Birthday),
		Gender:    d.Gender,
		Address:   d.Address,
		BloodType: d.BloodType,
	}

	c, err := r.Caregivers.GetByID(ctx, d.CaregiverID)
	switch {
	case err == nil:
		info.MainNokName = c.Name
		info.MainNokTell = c.Tell
	case !errors.Is(err, repositories.ErrNotFound):
		return nil, readError(s.Logger, "get_user_info", userID, err)
	}

	s.store(ctx, key, &info)
	return &info, nil
}

// GetDependentProfile returns every scalar attribute and the five
// preference collections.
func (s *ProfileService) GetDependentProfile(ctx context.Context, userID string) (*models.DependentProfile, error) {
	key := s.viewKey(ctx, cache.DependentScope(userID), cache.ViewProfile)
	var profile models.DependentProfile
	if s.cached(ctx, key, &profile) {
		return &profile, nil
	}

	r := s.Store.Repos()
	d, err := loadDependent(ctx, r, s.Logger, "get_user_info_all", userID)
	if err != nil {
		return nil, err
	}

	profile = models.DependentProfile{
		UserID:         d.UserID,
		Name:           d.Name,
		Birthday:       formatDate(d.Birthday),
		Gender:         d.Gender,
		Relation:       d.Relation,
		Address:        d.Address,
		BloodType:      d.BloodType,
		ChronicIllness: d.ChronicIllnessText(),
		Hometown:       d.Hometown,
		Details:        d.Details,
	}

	if c, err := r.Caregivers.GetByID(ctx, d.CaregiverID); err == nil {
		profile.NokID = c.NokID
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, readError(s.Logger, "get_user_info_all", userID, err)
	}

	for _, kind := range models.PreferenceKinds {
		values, err := r.Preferences.List(ctx, d.ID, kind)
		if err != nil {
			return nil, readError(s.Logger, "get_user_info_all", userID, err)
		}
		profile.SetCollection(kind, values)
	}

	s.store(ctx, key, &profile)
	return &profile, nil
}

// GetCaregiverProfile returns the caregiver's attributes and the ids of the
// dependents it owns.
func (s *ProfileService) GetCaregiverProfile(ctx context.Context, nokID string) (*models.CaregiverProfile, error) {
	key := s.viewKey(ctx, cache.CaregiverScope(nokID), cache.ViewProfile)
	var profile models.CaregiverProfile
	if s.cached(ctx, key, &profile) {
		return &profile, nil
	}

	r := s.Store.Repos()
	c, err := loadCaregiver(ctx, r, s.Logger, "get_main_nok_info", nokID)
	if err != nil {
		return nil, err
	}

	dependents, err := r.Dependents.ListByCaregiver(ctx, c.ID)
	if err != nil {
		return nil, readError(s.Logger, "get_main_nok_info", nokID, err)
	}

	profile = models.CaregiverProfile{
		NokID:    c.NokID,
		Name:     c.Name,
		Birthday: formatDate(c.Birthday),
		Gender:   c.Gender,
		Address:  c.Address,
		Tell:     c.Tell,
		UserList: make([]string, 0, len(dependents)),
	}
	for _, d := range dependents {
		profile.UserList = append(profile.UserList, d.UserID)
	}

	s.store(ctx, key, &profile)
	return &profile, nil
}

// GetFirstFlag reports the current value of a first-run flag
func (s *ProfileService) GetFirstFlag(ctx context.Context, userID string, flag FirstFlag) (bool, error) {
	d, err := loadDependent(ctx, s.Store.Repos(), s.Logger, "get_first_flag", userID)
	if err != nil {
		return false, err
	}
	if flag == FirstExercise {
		return d.IsExerciseFirst, nil
	}
	return d.IsFirst, nil
}

// ClearFirstFlag marks the first conversation or exercise as done
func (s *ProfileService) ClearFirstFlag(ctx context.Context, userID string, flag FirstFlag) error {
	return runTx(ctx, s.Store, s.Logger, "set_first_flag", func(r repositories.Repos) error {
		d, err := loadDependent(ctx, r, s.Logger, "set_first_flag", userID)
		if err != nil {
			return err
		}
		if flag == FirstExercise {
			d.IsExerciseFirst = false
		} else {
			d.IsFirst = false
		}
		return r.Dependents.Update(ctx, d)
	})
}
