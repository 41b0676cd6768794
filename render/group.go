package render

import "github.com/sitovia/briefs/model"

// Group is the run of fields belonging to one section.
type Group struct {
	Section model.Section
	Label   string
	Fields  []model.Field
}

// GroupBySection buckets fields by section in canonical section order. Field
// order inside a section follows the list; empty sections are left out.
func GroupBySection(fields []model.Field) []Group {
	sections := model.Sections()
	buckets := make([][]model.Field, len(sections))
	for _, f := range fields {
		i := model.SectionOrder(f.Section)
		if i < 0 {
			i = model.SectionOrder(model.SectionOther)
		}
		buckets[i] = append(buckets[i], f)
	}

	var groups []Group
	for i, s := range sections {
		if len(buckets[i]) == 0 {
			continue
		}
		groups = append(groups, Group{Section: s.ID, Label: s.Label, Fields: buckets[i]})
	}
	return groups
}
