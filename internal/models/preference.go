package models

import (
	"fmt"
	"strings"
)

// PreferenceKind selects one of the five preference collections attached to
// a dependent.
type PreferenceKind int

const (
	PreferenceFood PreferenceKind = iota + 1
	PreferenceMusic
	PreferenceSeason
	PreferencePastJob
	PreferencePet
)

// PreferenceKinds lists every collection in response/changed-field order.
var PreferenceKinds = []PreferenceKind{
	PreferenceFood,
	PreferenceMusic,
	PreferenceSeason,
	PreferencePastJob,
	PreferencePet,
}

// Field returns the JSON field name of the collection.
func (k PreferenceKind) Field() string {
	switch k {
	case PreferenceFood:
		return "favorite_food"
	case PreferenceMusic:
		return "favorite_music"
	case PreferenceSeason:
		return "favorite_season"
	case PreferencePastJob:
		return "past_job"
	case PreferencePet:
		return "pet"
	}
	return fmt.Sprintf("preference(%d)", int(k))
}

// MaxLen is the column width of a single value in the collection.
func (k PreferenceKind) MaxLen() int {
	switch k {
	case PreferenceMusic:
		return 50
	case PreferenceSeason:
		return 2
	}
	return 20
}

// Season codes stored in the favorite season collection.
const (
	SeasonSpring = "SP"
	SeasonSummer = "SU"
	SeasonAutumn = "AU"
	SeasonWinter = "WI"
)

var seasonLabels = map[string]string{
	"봄":      SeasonSpring,
	"spring": SeasonSpring,
	"sp":     SeasonSpring,
	"여름":     SeasonSummer,
	"summer": SeasonSummer,
	"su":     SeasonSummer,
	"가을":     SeasonAutumn,
	"autumn": SeasonAutumn,
	"fall":   SeasonAutumn,
	"au":     SeasonAutumn,
	"겨울":     SeasonWinter,
	"winter": SeasonWinter,
	"wi":     SeasonWinter,
}

// NormalizeSeason maps a season label (Korean, English or code) to its code.
func NormalizeSeason(label string) (string, bool) {
	code, ok := seasonLabels[strings.ToLower(strings.TrimSpace(label))]
	return code, ok
}
