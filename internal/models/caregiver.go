package models

import (
	"strings"
	"time"
)

// Caregiver is the primary guardian account ("main_nok"). A caregiver owns
// zero or more dependents.
type Caregiver struct {
	ID           int       `json:"-"`
	NokID        string    `json:"nok_id"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Birthday     time.Time `json:"birthday"`
	Gender       Gender    `json:"gender"`
	Address      string    `json:"address"`
	Tell         string    `json:"tell"`
	CreatedAt    time.Time `json:"created_at"`
}

// Gender is the 3-code gender enumeration stored on both account types.
type Gender string

const (
	GenderMale    Gender = "M"
	GenderFemale  Gender = "F"
	GenderPrivate Gender = "P"
)

var genderLabels = map[string]Gender{
	"m":      GenderMale,
	"male":   GenderMale,
	"man":    GenderMale,
	"남":      GenderMale,
	"남자":     GenderMale,
	"남성":     GenderMale,
	"f":      GenderFemale,
	"female": GenderFemale,
	"woman":  GenderFemale,
	"여":      GenderFemale,
	"여자":     GenderFemale,
	"여성":     GenderFemale,
	"p":      GenderPrivate,
}

// NormalizeGender maps a free-text label onto the code enumeration.
// Unrecognized labels fall through to GenderPrivate; this is not an error.
func NormalizeGender(label string) Gender {
	if g, ok := genderLabels[strings.ToLower(strings.TrimSpace(label))]; ok {
		return g
	}
	return GenderPrivate
}

// DateLayout is the wire format for birthdays and date filters.
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

// RegisterCaregiverRequest is the body of /nok_register
type RegisterCaregiverRequest struct {
	NokID    string `json:"nok_id"`
	Password string `json:"nok_pw"`
	Name     string `json:"name"`
	Birthday string `json:"birthday"`
	Gender   string `json:"gender"`
	Address  string `json:"address"`
	Tell     string `json:"tell"`
}

// CaregiverPatch carries a partial update for a caregiver. Nil fields are
// left untouched.
type CaregiverPatch struct {
	Name     *string `json:"name"`
	Birthday *string `json:"birthday"`
	Gender   *string `json:"gender"`
	Address  *string `json:"address"`
	Tell     *string `json:"tell"`
	Password *string `json:"nok_pw"`
}

// CaregiverProfile is the read view returned by /get_main_nok_info
type CaregiverProfile struct {
	NokID    string   `json:"nok_id"`
	Name     string   `json:"name"`
	Birthday string   `json:"birthday"`
	Gender   Gender   `json:"gender"`
	Address  string   `json:"address"`
	Tell     string   `json:"tell"`
	UserList []string `json:"user_list"`
}
