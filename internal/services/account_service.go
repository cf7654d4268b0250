package services

import (
	"context"
	"errors"
	"strings"

	"companion-backend/internal/cache"
	"companion-backend/internal/models"
	"companion-backend/internal/repositories"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Login user types
const (
	UserTypeDependent = "user"
	UserTypeCaregiver = "main_nok"
)

// AccountService owns registration, login, modification and cascading
// deletion of both account types.
type AccountService struct {
	Store  repositories.Store
	Hasher Hasher
	Views  *cache.Views
	Logger *zap.Logger
}

func NewAccountService(store repositories.Store, hasher Hasher, views *cache.Views, logger *zap.Logger) *AccountService {
	if views == nil {
		views = cache.NewViews(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{
		Store:  store,
		Hasher: hasher,
		Views:  views,
		Logger: logger,
	}
}

func (s *AccountService) hash(password string) (string, error) {
	hashed, err := s.Hasher.Hash(password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", newError(ErrInvalidValue, "password is too long")
	}
	if err != nil {
		return "", persistenceError(err)
	}
	return hashed, nil
}

// RegisterCaregiver creates a main_nok account
func (s *AccountService) RegisterCaregiver(ctx context.Context, req *models.RegisterCaregiverRequest) error {
	for _, f := range []struct{ name, value string }{
		{"nok_id", req.NokID},
		{"nok_pw", req.Password},
		{"name", req.Name},
		{"birthday", req.Birthday},
		{"gender", req.Gender},
		{"address", req.Address},
		{"tell", req.Tell},
	} {
		if strings.TrimSpace(f.value) == "" {
			return missingParameter(f.name)
		}
	}

	birthday, err := parseBirthday(req.Birthday)
	if err != nil {
		return err
	}
	for _, err := range []error{
		checkLen("nok_id", req.NokID, maxIDLen),
		checkLen("name", req.Name, maxNameLen),
		checkLen("address", req.Address, maxAddressLen),
		checkLen("tell", req.Tell, maxTellLen),
	} {
		if err != nil {
			return err
		}
	}

	hashed, err := s.hash(req.Password)
	if err != nil {
		return err
	}

	caregiver := &models.Caregiver{
		NokID:        req.NokID,
		PasswordHash: hashed,
		Name:         req.Name,
		Birthday:     birthday,
		Gender:       models.NormalizeGender(req.Gender),
		Address:      req.Address,
		Tell:         req.Tell,
	}

	err = runTx(ctx, s.Store, s.Logger, "register_caregiver", func(r repositories.Repos) error {
		taken, err := idTaken(ctx, r, req.NokID)
		if err != nil {
			return err
		}
		if taken {
			return newError(ErrDuplicateID, "%s id already exists", req.NokID)
		}
		if err := r.Caregivers.Create(ctx, caregiver); err != nil {
			if errors.Is(err, repositories.ErrDuplicateKey) {
				return newError(ErrDuplicateID, "%s id already exists", req.NokID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.Logger.Info("caregiver registered", zap.String("nok_id", req.NokID))
	return nil
}

// RegisterDependent creates a user account under an existing caregiver
func (s *AccountService) RegisterDependent(ctx context.Context, req *models.RegisterDependentRequest) error {
	for _, f := range []struct{ name, value string }{
		{"nok_id", req.NokID},
		{"user_id", req.UserID},
		{"user_pw", req.Password},
		{"name", req.Name},
		{"birthday", req.Birthday},
		{"gender", req.Gender},
		{"relation", req.Relation},
		{"address", req.Address},
		{"blood_type", req.BloodType},
		{"chronic_illness", req.ChronicIllness},
	} {
		if strings.TrimSpace(f.value) == "" {
			return missingParameter(f.name)
		}
	}

	birthday, err := parseBirthday(req.Birthday)
	if err != nil {
		return err
	}
	for _, err := range []error{
		checkLen("user_id", req.UserID, maxIDLen),
		checkLen("name", req.Name, maxNameLen),
		checkLen("relation", req.Relation, maxRelationLen),
		checkLen("address", req.Address, maxAddressLen),
		checkLen("blood_type", req.BloodType, maxBloodTypeLen),
	} {
		if err != nil {
			return err
		}
	}

	hashed, err := s.hash(req.Password)
	if err != nil {
		return err
	}

	bloodType := req.BloodType
	dependent := &models.Dependent{
		UserID:         req.UserID,
		PasswordHash:   hashed,
		Name:           req.Name,
		Birthday:       birthday,
		Gender:         models.NormalizeGender(req.Gender),
		Relation:       req.Relation,
		Address:        req.Address,
		BloodType:      &bloodType,
		ChronicIllness: []byte(req.ChronicIllness),
	}

	err = runTx(ctx, s.Store, s.Logger, "register_dependent", func(r repositories.Repos) error {
		caregiver, err := r.Caregivers.GetByNokID(ctx, req.NokID)
		if errors.Is(err, repositories.ErrNotFound) {
			return idNotFound(req.NokID)
		}
		if err != nil {
			return err
		}

		taken, err := idTaken(ctx, r, req.UserID)
		if err != nil {
			return err
		}
		if taken {
			return newError(ErrDuplicateID, "%s id already exists", req.UserID)
		}

		dependent.CaregiverID = caregiver.ID
		if err := r.Dependents.Create(ctx, dependent); err != nil {
			if errors.Is(err, repositories.ErrDuplicateKey) {
				return newError(ErrDuplicateID, "%s id already exists", req.UserID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	invalidate(ctx, s.Views, s.Logger, cache.CaregiverScope(req.NokID))
	s.Logger.Info("dependent registered", zap.String("user_id", req.UserID), zap.String("nok_id", req.NokID))
	return nil
}

// Login verifies a credential. The dependent namespace is searched first;
// the returned type is "user" or "main_nok".
func (s *AccountService) Login(ctx context.Context, id, password string) (string, error) {
	if id == "" {
		return "", missingParameter("user_id")
	}
	if password == "" {
		return "", missingParameter("user_pw")
	}

	r := s.Store.Repos()

	var hash, userType string
	d, err := r.Dependents.GetByUserID(ctx, id)
	switch {
	case err == nil:
		hash, userType = d.PasswordHash, UserTypeDependent
	case errors.Is(err, repositories.ErrNotFound):
		c, err := r.Caregivers.GetByNokID(ctx, id)
		if err != nil {
			return "", readError(s.Logger, "login", id, err)
		}
		hash, userType = c.PasswordHash, UserTypeCaregiver
	default:
		return "", readError(s.Logger, "login", id, err)
	}

	ok, err := s.Hasher.Verify(hash, password)
	if err != nil {
		s.Logger.Error("password verification failed", zap.String("id", id), zap.Error(err))
		return "", newError(ErrUnauthorized, "incorrect password")
	}
	if !ok {
		return "", newError(ErrUnauthorized, "incorrect password")
	}
	return userType, nil
}

// CheckIDAvailable fails with ErrDuplicateID when id is taken in either
// namespace.
func (s *AccountService) CheckIDAvailable(ctx context.Context, id string) error {
	if id == "" {
		return missingParameter("user_id")
	}
	taken, err := idTaken(ctx, s.Store.Repos(), id)
	if err != nil {
		s.Logger.Error("id check failed", zap.String("id", id), zap.Error(err))
		return persistenceError(err)
	}
	if taken {
		return newError(ErrDuplicateID, "%s id already exists", id)
	}
	return nil
}

// DeleteAccount removes exactly one account. Deleting a caregiver removes
// every dependent it owns first. Each dependent takes its preferences,
// logs and level test with it. Nothing is removed unless everything is.
func (s *AccountService) DeleteAccount(ctx context.Context, nokID, userID string) error {
	if nokID == "" && userID == "" {
		return missingParameter("nok_id or user_id")
	}
	if nokID != "" && userID != "" {
		return newError(ErrMissingParameter, "exactly one of nok_id or user_id is required")
	}

	var scopes []string
	err := runTx(ctx, s.Store, s.Logger, "delete_account", func(r repositories.Repos) error {
		scopes = scopes[:0]

		var dependents []*models.Dependent
		var caregiver *models.Caregiver
		if nokID != "" {
			c, err := r.Caregivers.GetByNokID(ctx, nokID)
			if errors.Is(err, repositories.ErrNotFound) {
				return idNotFound(nokID)
			}
			if err != nil {
				return err
			}
			caregiver = c
			if dependents, err = r.Dependents.ListByCaregiver(ctx, c.ID); err != nil {
				return err
			}
		} else {
			d, err := r.Dependents.GetByUserID(ctx, userID)
			if errors.Is(err, repositories.ErrNotFound) {
				return idNotFound(userID)
			}
			if err != nil {
				return err
			}
			dependents = []*models.Dependent{d}
			owner, err := r.Caregivers.GetByID(ctx, d.CaregiverID)
			if err != nil && !errors.Is(err, repositories.ErrNotFound) {
				return err
			}
			if owner != nil {
				scopes = append(scopes, cache.CaregiverScope(owner.NokID))
			}
		}

		for _, d := range dependents {
			if err := deleteDependent(ctx, r, d.ID); err != nil {
				return err
			}
			scopes = append(scopes, cache.DependentScope(d.UserID))
		}

		if caregiver != nil {
			if err := r.Caregivers.Delete(ctx, caregiver.ID); err != nil {
				return err
			}
			scopes = append(scopes, cache.CaregiverScope(caregiver.NokID))
		}
		return nil
	})
	if err != nil {
		return err
	}

	invalidate(ctx, s.Views, s.Logger, scopes...)
	s.Logger.Info("account deleted", zap.String("nok_id", nokID), zap.String("user_id", userID))
	return nil
}

func deleteDependent(ctx context.Context, r repositories.Repos, id int) error {
	if err := r.Preferences.DeleteAll(ctx, id); err != nil {
		return err
	}
	if err := r.ChatLogs.DeleteAll(ctx, id); err != nil {
		return err
	}
	if err := r.MemoryTests.DeleteAll(ctx, id); err != nil {
		return err
	}
	if err := r.ExerciseLogs.DeleteAll(ctx, id); err != nil {
		return err
	}
	if err := r.LevelTests.Delete(ctx, id); err != nil {
		return err
	}
	return r.Dependents.Delete(ctx, id)
}

// ModifyCaregiver applies the non-nil fields of patch and returns their
// names in a fixed order.
func (s *AccountService) ModifyCaregiver(ctx context.Context, nokID string, patch *models.CaregiverPatch) ([]string, error) {
	if nokID == "" {
		return nil, missingParameter("nok_id")
	}

	changed := []string{}
	apply := func(c *models.Caregiver) error {
		if patch.Name != nil {
			if err := checkLen("name", *patch.Name, maxNameLen); err != nil {
				return err
			}
			c.Name = *patch.Name
			changed = append(changed, "name")
		}
		if patch.Birthday != nil {
			t, err := parseBirthday(*patch.Birthday)
			if err != nil {
				return err
			}
			c.Birthday = t
			changed = append(changed, "birthday")
		}
		if patch.Gender != nil {
			c.Gender = models.NormalizeGender(*patch.Gender)
			changed = append(changed, "gender")
		}
		if patch.Address != nil {
			if err := checkLen("address", *patch.Address, maxAddressLen); err != nil {
				return err
			}
			c.Address = *patch.Address
			changed = append(changed, "address")
		}
		if patch.Tell != nil {
			if err := checkLen("tell", *patch.Tell, maxTellLen); err != nil {
				return err
			}
			c.Tell = *patch.Tell
			changed = append(changed, "tell")
		}
		if patch.Password != nil {
			if *patch.Password == "" {
				return newError(ErrInvalidValue, "nok_pw must not be empty")
			}
			hashed, err := s.hash(*patch.Password)
			if err != nil {
				return err
			}
			c.PasswordHash = hashed
			changed = append(changed, "nok_pw")
		}
		return nil
	}

	var scopes []string
	err := runTx(ctx, s.Store, s.Logger, "modify_caregiver", func(r repositories.Repos) error {
		changed = changed[:0]
		c, err := r.Caregivers.GetByNokID(ctx, nokID)
		if errors.Is(err, repositories.ErrNotFound) {
			return idNotFound(nokID)
		}
		if err != nil {
			return err
		}
		if err := apply(c); err != nil {
			return err
		}
		if err := r.Caregivers.Update(ctx, c); err != nil {
			return err
		}

		dependents, err := r.Dependents.ListByCaregiver(ctx, c.ID)
		if err != nil {
			return err
		}
		scopes = []string{cache.CaregiverScope(nokID)}
		for _, d := range dependents {
			scopes = append(scopes, cache.DependentScope(d.UserID))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	invalidate(ctx, s.Views, s.Logger, scopes...)
	return changed, nil
}

// ModifyDependent applies the non-nil scalar fields of patch and replaces
// every collection that is present. Returns the changed field names.
func (s *AccountService) ModifyDependent(ctx context.Context, userID string, patch *models.DependentPatch) ([]string, error) {
	if userID == "" {
		return nil, missingParameter("user_id")
	}

	collections, err := normalizeCollections(patch)
	if err != nil {
		return nil, err
	}

	changed := []string{}
	setString := func(field string, src *string, dst *string, max int) error {
		if src == nil {
			return nil
		}
		if err := checkLen(field, *src, max); err != nil {
			return err
		}
		*dst = *src
		changed = append(changed, field)
		return nil
	}
	setOptional := func(field string, src *string, dst **string, max int) error {
		if src == nil {
			return nil
		}
		if err := checkLen(field, *src, max); err != nil {
			return err
		}
		v := *src
		*dst = &v
		changed = append(changed, field)
		return nil
	}

	apply := func(d *models.Dependent) error {
		if err := setString("name", patch.Name, &d.Name, maxNameLen); err != nil {
			return err
		}
		if patch.Birthday != nil {
			t, err := parseBirthday(*patch.Birthday)
			if err != nil {
				return err
			}
			d.Birthday = t
			changed = append(changed, "birthday")
		}
		if patch.Gender != nil {
			d.Gender = models.NormalizeGender(*patch.Gender)
			changed = append(changed, "gender")
		}
		if err := setString("relation", patch.Relation, &d.Relation, maxRelationLen); err != nil {
			return err
		}
		if err := setString("address", patch.Address, &d.Address, maxAddressLen); err != nil {
			return err
		}
		if err := setOptional("blood_type", patch.BloodType, &d.BloodType, maxBloodTypeLen); err != nil {
			return err
		}
		if patch.ChronicIllness != nil {
			d.ChronicIllness = []byte(*patch.ChronicIllness)
			changed = append(changed, "chronic_illness")
		}
		if err := setOptional("hometown", patch.Hometown, &d.Hometown, maxHometownLen); err != nil {
			return err
		}
		if err := setOptional("details", patch.Details, &d.Details, maxDetailsLen); err != nil {
			return err
		}
		if patch.Password != nil {
			if *patch.Password == "" {
				return newError(ErrInvalidValue, "user_pw must not be empty")
			}
			hashed, err := s.hash(*patch.Password)
			if err != nil {
				return err
			}
			d.PasswordHash = hashed
			changed = append(changed, "user_pw")
		}
		return nil
	}

	var nokScope string
	err = runTx(ctx, s.Store, s.Logger, "modify_dependent", func(r repositories.Repos) error {
		changed = changed[:0]
		d, err := r.Dependents.GetByUserID(ctx, userID)
		if errors.Is(err, repositories.ErrNotFound) {
			return idNotFound(userID)
		}
		if err != nil {
			return err
		}

		if err := apply(d); err != nil {
			return err
		}
		if err := r.Dependents.Update(ctx, d); err != nil {
			return err
		}

		for _, kind := range models.PreferenceKinds {
			values, ok := collections[kind]
			if !ok {
				continue
			}
			if err := r.Preferences.Replace(ctx, d.ID, kind, values); err != nil {
				return err
			}
			changed = append(changed, kind.Field())
		}

		if owner, err := r.Caregivers.GetByID(ctx, d.CaregiverID); err == nil {
			nokScope = cache.CaregiverScope(owner.NokID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	scopes := []string{cache.DependentScope(userID)}
	if nokScope != "" {
		scopes = append(scopes, nokScope)
	}
	invalidate(ctx, s.Views, s.Logger, scopes...)
	return changed, nil
}

// normalizeCollections validates every supplied collection before any write.
// Season labels are mapped to their codes.
func normalizeCollections(patch *models.DependentPatch) (map[models.PreferenceKind][]string, error) {
	out := map[models.PreferenceKind][]string{}
	for _, kind := range models.PreferenceKinds {
		values := patch.Collection(kind)
		if values == nil {
			continue
		}

		normalized := make([]string, 0, len(values))
		for _, v := range values {
			v = strings.TrimSpace(v)
			if kind == models.PreferenceSeason {
				code, ok := models.NormalizeSeason(v)
				if !ok {
					return nil, newError(ErrInvalidValue, "invalid %s value %q", kind.Field(), v)
				}
				v = code
			}
			if v == "" {
				return nil, newError(ErrInvalidValue, "empty %s value", kind.Field())
			}
			if err := checkLen(kind.Field(), v, kind.MaxLen()); err != nil {
				return nil, err
			}
			normalized = append(normalized, v)
		}
		out[kind] = normalized
	}
	return out, nil
}
