package importer

import (
	"strings"

	"github.com/sitovia/briefs/model"
)

// Checked in order, first match wins.
var sectionKeywords = []struct {
	section  model.Section
	keywords []string
}{
	{model.SectionBudget, []string{"budget", "price", "cost"}},
	{model.SectionTimeline, []string{"deadline", "timeline", "date", "when"}},
	{model.SectionRequirements, []string{"requirement", "feature", "need"}},
	{model.SectionObjectives, []string{"objective", "goal", "target"}},
	{model.SectionOther, []string{"note", "comment", "additional"}},
}

// Unmatched questions up to this count land in the basic section.
const basicQuota = 3

// sectioner guesses a section from a question title. It is stateful: the
// first unmatched questions go to basic, later ones to other.
type sectioner struct {
	unmatched int
}

func (s *sectioner) next(title string) model.Section {
	if section, ok := SectionForTitle(title); ok {
		return section
	}
	s.unmatched++
	if s.unmatched <= basicQuota {
		return model.SectionBasic
	}
	return model.SectionOther
}

// SectionForTitle applies the keyword rules alone.
func SectionForTitle(title string) (model.Section, bool) {
	t := strings.ToLower(title)
	for _, rule := range sectionKeywords {
		for _, kw := range rule.keywords {
			if strings.Contains(t, kw) {
				return rule.section, true
			}
		}
	}
	return "", false
}
