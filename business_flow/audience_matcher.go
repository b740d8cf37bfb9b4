package businessflow

import (
	"strings"
	"time"

	"github.com/amirphl/boostfeed/models"
)

// Audience match bonus points
const (
	locationMatchBonus  = 20
	genderMatchBonus    = 10
	ageMatchBonus       = 10
	interestBonusPerTag = 5
	interestBonusCap    = 20
)

// MatchBonus scores how well the viewer fits a boost's audience criteria.
// Each signal contributes at most once and missing viewer attributes contribute nothing.
func MatchBonus(viewer models.ViewerProfile, criteria models.AudienceCriteria, now time.Time) int {
	return newViewerSignals(viewer, now).match(criteria)
}

// viewerSignals holds the normalized viewer attributes so scoring many
// promotions for one viewer normalizes them once.
type viewerSignals struct {
	city      string
	gender    string
	age       int
	ageKnown  bool
	interests map[string]struct{}
}

func newViewerSignals(viewer models.ViewerProfile, now time.Time) viewerSignals {
	s := viewerSignals{
		city:   strings.ToLower(strings.TrimSpace(viewer.City)),
		gender: strings.ToUpper(strings.TrimSpace(viewer.Gender)),
	}
	s.age, s.ageKnown = ViewerAge(viewer.BirthDate, now)
	s.interests = tagSet(viewer.Interests)
	return s
}

func (s viewerSignals) match(criteria models.AudienceCriteria) int {
	bonus := 0

	if criteria.Location != nil && s.city != "" {
		location := strings.ToLower(strings.TrimSpace(*criteria.Location))
		if location != "" && strings.Contains(location, s.city) {
			bonus += locationMatchBonus
		}
	}

	if criteria.Gender != nil {
		gender := strings.ToUpper(strings.TrimSpace(*criteria.Gender))
		if gender != "" && gender != models.GenderAll && gender == s.gender {
			bonus += genderMatchBonus
		}
	}

	if s.ageKnown && (criteria.AgeMin != nil || criteria.AgeMax != nil) {
		inRange := true
		if criteria.AgeMin != nil && s.age < *criteria.AgeMin {
			inRange = false
		}
		if criteria.AgeMax != nil && s.age > *criteria.AgeMax {
			inRange = false
		}
		if inRange {
			bonus += ageMatchBonus
		}
	}

	if len(s.interests) > 0 && len(criteria.Interests) > 0 {
		common := 0
		for tag := range tagSet(criteria.Interests) {
			if _, ok := s.interests[tag]; ok {
				common++
			}
		}
		bonus += min(interestBonusCap, interestBonusPerTag*common)
	}

	return bonus
}

// ViewerAge returns the whole years elapsed since birthDate at now
func ViewerAge(birthDate *time.Time, now time.Time) (int, bool) {
	if birthDate == nil || birthDate.IsZero() {
		return 0, false
	}
	b := birthDate.UTC()
	n := now.UTC()
	age := n.Year() - b.Year()
	if n.Month() < b.Month() || (n.Month() == b.Month() && n.Day() < b.Day()) {
		age--
	}
	if age < 0 {
		return 0, false
	}
	return age, true
}

func tagSet(tags []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		set[t] = struct{}{}
	}
	return set
}
