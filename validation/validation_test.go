package validation_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/sitovia/briefs/model"
	"github.com/sitovia/briefs/validation"
)

var emailField = model.Field{ID: "email", Label: "Email", Type: model.TypeEmail, Section: model.SectionBasic, Attrs: model.TextAttrs{}}

func TestProperty_RequiredFieldWithoutValue(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	allTypes := make([]interface{}, 0, len(model.Types()))
	for _, info := range model.Types() {
		allTypes = append(allTypes, info.Type)
	}

	properties.Property("a required field with no value always reports an error", prop.ForAll(
		func(label string, typ model.FieldType) bool {
			f := model.Field{ID: "q", Label: label, Type: typ, Required: true, Section: model.SectionBasic, Attrs: model.DefaultAttrs(typ)}
			errs := validation.Validate([]model.Field{f}, map[string]any{})
			return errs["q"] == label+" is required"
		},
		gen.AlphaString(),
		gen.OneConstOf(allTypes...),
	))

	properties.TestingRun(t)
}

func TestProperty_EmailShape(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("local@domain.tld is accepted", prop.ForAll(
		func(local, domain, tld string) bool {
			errs := validation.Validate([]model.Field{emailField}, map[string]any{"email": local + "@" + domain + "." + tld})
			return errs.Valid()
		},
		gen.Identifier(),
		gen.Identifier(),
		gen.Identifier(),
	))

	properties.Property("strings without @ are rejected", prop.ForAll(
		func(s string) bool {
			errs := validation.Validate([]model.Field{emailField}, map[string]any{"email": s})
			return errs["email"] == "Please enter a valid email address"
		},
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
	))

	properties.Property("addresses without a dotted domain are rejected", prop.ForAll(
		func(local, domain string) bool {
			errs := validation.Validate([]model.Field{emailField}, map[string]any{"email": local + "@" + domain})
			return !errs.Valid()
		},
		gen.Identifier(),
		gen.Identifier(),
	))

	properties.TestingRun(t)
}

func TestValidate(t *testing.T) {
	fields := []model.Field{
		{ID: "name", Label: "Name", Type: model.TypeText, Required: true, Section: model.SectionBasic, Attrs: model.TextAttrs{}},
		{ID: "site", Label: "Website", Type: model.TypeURL, Section: model.SectionBasic, Attrs: model.TextAttrs{}},
		{ID: "tags", Label: "Services", Type: model.TypeCheckbox, Required: true, Section: model.SectionRequirements, Attrs: model.ChoiceAttrs{Options: []string{"a", "b"}}},
		{ID: "files", Label: "Files", Type: model.TypeFile, Required: true, Section: model.SectionResearch, Attrs: model.FileAttrs{MaxFiles: 1}},
		{ID: "budget", Label: "Budget", Type: model.TypeNumber, Required: true, Section: model.SectionBudget, Attrs: model.TextAttrs{}},
	}

	tests := []struct {
		name   string
		values map[string]any
		want   validation.Errors
	}{
		{
			name:   "everything missing",
			values: map[string]any{"tags": []string{}, "files": []model.FileRef{}},
			want: validation.Errors{
				"name":   "Name is required",
				"tags":   "Services is required",
				"files":  "Files is required",
				"budget": "Budget is required",
			},
		},
		{
			name: "bad url",
			values: map[string]any{
				"name": "Jo", "site": "not a url", "tags": []string{"a"},
				"files": []model.FileRef{{Name: "brief.pdf"}}, "budget": float64(0),
			},
			want: validation.Errors{"site": "Please enter a valid URL"},
		},
		{
			name: "valid",
			values: map[string]any{
				"name": "Jo", "site": "https://sitovia.com/about", "tags": []any{"b"},
				"files": []model.FileRef{{Name: "brief.pdf"}}, "budget": 1500,
			},
			want: validation.Errors{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, validation.Validate(fields, tt.values))
		})
	}
}

func TestErrorsOrdered(t *testing.T) {
	fields := []model.Field{
		{ID: "b", Label: "B", Type: model.TypeText, Required: true, Section: model.SectionBasic, Attrs: model.TextAttrs{}},
		{ID: "a", Label: "A", Type: model.TypeText, Required: true, Section: model.SectionBasic, Attrs: model.TextAttrs{}},
	}
	errs := validation.Validate(fields, nil)

	assert.Equal(t, []validation.FieldError{
		{FieldID: "b", Message: "B is required"},
		{FieldID: "a", Message: "A is required"},
	}, errs.Ordered(fields))
}

func TestValidateField_ClearsOnceFixed(t *testing.T) {
	msg, ok := validation.ValidateField(emailField, "jo@")
	assert.False(t, ok)
	assert.Equal(t, "Please enter a valid email address", msg)

	_, ok = validation.ValidateField(emailField, "jo@sitovia.com")
	assert.True(t, ok)

	_, ok = validation.ValidateField(emailField, "")
	assert.True(t, ok, "optional empty email is not checked")
}
