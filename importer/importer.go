// Package importer pulls questions out of a public external form and appends
// them to a builder. The only supported source is Google Forms, scraped from
// the JSON blob its pages embed; any markup change upstream breaks it.
package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/sitovia/briefs/builder"
	"github.com/sitovia/briefs/log"
	"github.com/sitovia/briefs/model"
)

var (
	ErrInvalidURL  = errors.New("could not find a form id in the URL")
	ErrUnreachable = errors.New("could not fetch the form, it may be private or unreachable")
	ErrParse       = errors.New("could not parse form structure")
)

// ImportedField is a foreign question before it becomes a model.Field.
type ImportedField struct {
	TypeCode int
	Title    string
	HelpText string
	Required bool
	Choices  []string
	Section  model.Section
}

// ExternalFormSource reads the questions of a foreign form.
type ExternalFormSource interface {
	FetchRawQuestions(ctx context.Context, url string) ([]ImportedField, error)
}

// phasedSource is implemented by sources that can report the end of the
// fetch phase separately from parsing.
type phasedSource interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
	Parse(body []byte) ([]ImportedField, error)
}

type State int

const (
	StateIdle State = iota
	StateFetching
	StateParsing
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateParsing:
		return "parsing"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Recorder receives the outcome of every import attempt.
type Recorder interface {
	ObserveImport(outcome string)
}

// Attempt describes one run of the import state machine.
type Attempt struct {
	URL    string
	States []State
	Added  int
	Err    error
}

type Importer struct {
	source   ExternalFormSource
	recorder Recorder
}

func New(source ExternalFormSource, recorder Recorder) *Importer {
	return &Importer{source: source, recorder: recorder}
}

// Import fetches the questions behind url and appends them to b. On failure
// b is left untouched and the attempt can be retried.
func (im *Importer) Import(ctx context.Context, url string, b *builder.Builder) Attempt {
	a := Attempt{URL: url, States: []State{StateIdle}}

	questions, err := im.run(ctx, &a)
	if err != nil {
		a.Err = err
		a.to(StateFailed)
	} else {
		fields := make([]model.Field, 0, len(questions))
		for _, q := range questions {
			if f, ok := ToField(q); ok {
				fields = append(fields, f)
			}
		}
		b.Append(fields...)
		a.Added = len(fields)
		a.to(StateSuccess)
	}
	a.to(StateIdle)

	if im.recorder != nil {
		im.recorder.ObserveImport(a.Outcome())
	}
	return a
}

func (im *Importer) run(ctx context.Context, a *Attempt) (questions []ImportedField, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("import.panic: %v", r)
			questions, err = nil, ErrParse
		}
	}()

	a.to(StateFetching)
	phased, ok := im.source.(phasedSource)
	if !ok {
		questions, err = im.source.FetchRawQuestions(ctx, a.URL)
		if err == nil {
			a.to(StateParsing)
		}
		return questions, err
	}

	body, err := phased.Fetch(ctx, a.URL)
	if err != nil {
		return nil, err
	}
	a.to(StateParsing)
	return phased.Parse(body)
}

func (a *Attempt) to(s State) {
	log.Debugf("import.%s: %s", s, a.URL)
	a.States = append(a.States, s)
}

// Outcome labels the attempt for metrics.
func (a Attempt) Outcome() string {
	switch {
	case a.Err == nil:
		return "success"
	case errors.Is(a.Err, ErrInvalidURL):
		return "invalid_url"
	case errors.Is(a.Err, ErrUnreachable):
		return "unreachable"
	case errors.Is(a.Err, ErrParse):
		return "parse_error"
	}
	return "error"
}

// ToField maps a foreign question onto the local field model. Questions
// without a title are skipped.
func ToField(q ImportedField) (model.Field, bool) {
	if q.Title == "" {
		return model.Field{}, false
	}

	typ := TypeForCode(q.TypeCode)
	if typ.HasOptions() && len(q.Choices) == 0 {
		typ = model.TypeText
	}

	section := q.Section
	if !section.Valid() {
		section = model.SectionBasic
	}

	f := model.Field{
		Label:    q.Title,
		Type:     typ,
		Required: q.Required,
		Section:  section,
	}
	switch {
	case typ.HasOptions():
		f.Attrs = model.ChoiceAttrs{Options: append([]string(nil), q.Choices...)}
	case typ == model.TypeRating:
		units := len(q.Choices)
		if units == 0 {
			units = model.DefaultRatingMax
		}
		units = clamp(units, model.MinRatingMax, model.MaxRatingMax)
		f.Attrs = model.RatingAttrs{Max: units}
	case typ == model.TypeFile:
		f.Attrs = model.FileAttrs{MaxFiles: model.DefaultMaxFiles}
	default:
		f.Attrs = model.TextAttrs{Placeholder: q.HelpText}
	}
	return f, true
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
