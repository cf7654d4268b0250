package models

import "time"

// Dependent is the care-recipient account ("user"). It is the subject of
// profile, chat and exercise data and always belongs to one Caregiver.
type Dependent struct {
	ID              int       `json:"-"`
	CaregiverID     int       `json:"-"`
	UserID          string    `json:"user_id"`
	PasswordHash    string    `json:"-"`
	Name            string    `json:"name"`
	Birthday        time.Time `json:"birthday"`
	Gender          Gender    `json:"gender"`
	Relation        string    `json:"relation"` // relation to the caregiver, free text
	Address         string    `json:"address"`
	BloodType       *string   `json:"blood_type"`
	ChronicIllness  []byte    `json:"-"` // stored encoded; nil round-trips as null
	Hometown        *string   `json:"hometown"`
	Details         *string   `json:"details"`
	LastChatGroup   int       `json:"last_chat_group"`
	IsFirst         bool      `json:"is_first"`
	IsExerciseFirst bool      `json:"is_exercise_first"`
	CreatedAt       time.Time `json:"created_at"`
}

// ChronicIllnessText decodes the stored illness blob.
func (d *Dependent) ChronicIllnessText() *string {
	if d.ChronicIllness == nil {
		return nil
	}
	s := string(d.ChronicIllness)
	return &s
}

// RegisterDependentRequest is the body of /user_register
type RegisterDependentRequest struct {
	NokID          string `json:"nok_id"`
	UserID         string `json:"user_id"`
	Password       string `json:"user_pw"`
	Name           string `json:"name"`
	Birthday       string `json:"birthday"`
	Gender         string `json:"gender"`
	Relation       string `json:"relation"`
	Address        string `json:"address"`
	BloodType      string `json:"blood_type"`
	ChronicIllness string `json:"chronic_illness"`
}

// DependentPatch carries a partial update for a dependent. Scalar fields
// are applied when non-nil; a non-nil collection replaces the stored one.
type DependentPatch struct {
	Name           *string `json:"name"`
	Birthday       *string `json:"birthday"`
	Gender         *string `json:"gender"`
	Relation       *string `json:"relation"`
	Address        *string `json:"address"`
	BloodType      *string `json:"blood_type"`
	ChronicIllness *string `json:"chronic_illness"`
	Hometown       *string `json:"hometown"`
	Details        *string `json:"details"`
	Password       *string `json:"user_pw"`

	FavoriteFood   []string `json:"favorite_food"`
	FavoriteMusic  []string `json:"favorite_music"`
	FavoriteSeason []string `json:"favorite_season"`
	PastJob        []string `json:"past_job"`
	Pet            []string `json:"pet"`
}

// Collection returns the replacement list supplied for kind, or nil.
func (p *DependentPatch) Collection(kind PreferenceKind) []string {
	switch kind {
	case PreferenceFood:
		return p.FavoriteFood
	case PreferenceMusic:
		return p.FavoriteMusic
	case PreferenceSeason:
		return p.FavoriteSeason
	case PreferencePastJob:
		return p.PastJob
	case PreferencePet:
		return p.Pet
	}
	return nil
}

// DependentInfo is the basic view returned by /get_user_info
type DependentInfo struct {
	UserID      string  `json:"user_id"`
	Name        string  `json:"name"`
	Birthday    string  `json:"birthday"`
	Gender      Gender  `json:"gender"`
	Address     string  `json:"address"`
	BloodType   *string `json:"blood_type"`
	MainNokName string  `json:"main_nok_name"`
	MainNokTell string  `json:"main_nok_tell"`
}

// DependentProfile is the full view returned by /get_user_info_all
type DependentProfile struct {
	UserID         string   `json:"user_id"`
	NokID          string   `json:"nok_id"`
	Name           string   `json:"name"`
	Birthday       string   `json:"birthday"`
	Gender         Gender   `json:"gender"`
	Relation       string   `json:"relation"`
	Address        string   `json:"address"`
	BloodType      *string  `json:"blood_type"`
	ChronicIllness *string  `json:"chronic_illness"`
	Hometown       *string  `json:"hometown"`
	Details        *string  `json:"details"`
	FavoriteFood   []string `json:"favorite_food"`
	FavoriteMusic  []string `json:"favorite_music"`
	FavoriteSeason []string `json:"favorite_season"`
	PastJob        []string `json:"past_job"`
	Pet            []string `json:"pet"`
}

// SetCollection stores values for kind on the profile view.
func (p *DependentProfile) SetCollection(kind PreferenceKind, values []string) {
	if values == nil {
		values = []string{}
	}
	switch kind {
	case PreferenceFood:
		p.FavoriteFood = values
	case PreferenceMusic:
		p.FavoriteMusic = values
	case PreferenceSeason:
		p.FavoriteSeason = values
	case PreferencePastJob:
		p.PastJob = values
	case PreferencePet:
		p.Pet = values
	}
}
