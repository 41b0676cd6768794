package model

import (
	"fmt"
	"strings"
)

type TypeInfo struct {
	Type      FieldType `json:"type"`
	Label     string    `json:"label"`
	InputType string    `json:"inputType"`
}

type SectionInfo struct {
	ID    Section `json:"id"`
	Label string  `json:"label"`
}

var typeCatalog = []TypeInfo{
	{TypeText, "Short Text", "text"},
	{TypeTextarea, "Long Text", "textarea"},
	{TypeSelect, "Dropdown", "select"},
	{TypeRadio, "Multiple Choice", "radio"},
	{TypeCheckbox, "Checkboxes", "checkbox"},
	{TypeDate, "Date", "date"},
	{TypeTime, "Time", "time"},
	{TypeNumber, "Number", "number"},
	{TypeEmail, "Email", "email"},
	{TypePhone, "Phone", "tel"},
	{TypeURL, "Website URL", "url"},
	{TypeFile, "File Upload", "file"},
	{TypeRating, "Rating", "rating"},
}

// canonical order
var sectionCatalog = []SectionInfo{
	{SectionBasic, "Basic Information"},
	{SectionObjectives, "Project Objectives"},
	{SectionBudget, "Budget"},
	{SectionTimeline, "Timeline"},
	{SectionRequirements, "Requirements"},
	{SectionResearch, "Research & References"},
	{SectionOther, "Other"},
}

var (
	typeIndex    = map[FieldType]int{}
	sectionIndex = map[Section]int{}
)

func init() {
	for i, t := range typeCatalog {
		typeIndex[t.Type] = i
	}
	for i, s := range sectionCatalog {
		sectionIndex[s.ID] = i
	}
}

// Types lists every supported field type.
func Types() []TypeInfo {
	return append([]TypeInfo(nil), typeCatalog...)
}

// Sections lists every section in canonical order.
func Sections() []SectionInfo {
	return append([]SectionInfo(nil), sectionCatalog...)
}

func TypeLabel(t FieldType) string {
	if i, ok := typeIndex[t]; ok {
		return typeCatalog[i].Label
	}
	return string(t)
}

func InputType(t FieldType) string {
	if i, ok := typeIndex[t]; ok {
		return typeCatalog[i].InputType
	}
	return "text"
}

func SectionLabel(s Section) string {
	if i, ok := sectionIndex[s]; ok {
		return sectionCatalog[i].Label
	}
	return string(s)
}

// SectionOrder returns the canonical position of s, or -1.
func SectionOrder(s Section) int {
	if i, ok := sectionIndex[s]; ok {
		return i
	}
	return -1
}

func ParseType(raw string) (FieldType, error) {
	t := FieldType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", fmt.Errorf("%w %q", ErrUnknownType, raw)
	}
	return t, nil
}

// ParseSection maps an empty value to SectionBasic.
func ParseSection(raw string) (Section, error) {
	s := Section(strings.ToLower(strings.TrimSpace(raw)))
	if s == "" {
		return SectionBasic, nil
	}
	if !s.Valid() {
		return "", fmt.Errorf("%w %q", ErrUnknownSection, raw)
	}
	return s, nil
}
