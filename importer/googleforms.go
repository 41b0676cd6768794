package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/sitovia/briefs/log"
	"github.com/sitovia/briefs/model"
)

// A relay answers with fewer bytes than this when it failed to reach the form.
const minBodyLen = 100

const maxBodyLen = 10 << 20

// DefaultRelays are public CORS relays. {url} is replaced by the escaped
// address of the form page.
var DefaultRelays = []string{
	"https://api.allorigins.win/raw?url={url}",
	"https://corsproxy.io/?{url}",
	"https://api.codetabs.com/v1/proxy?quest={url}",
}

var (
	reFormID   = regexp.MustCompile(`/forms/d/(e/)?([A-Za-z0-9_-]+)`)
	reLoadData = regexp.MustCompile(`(?ms)FB_PUBLIC_LOAD_DATA_\s*=\s*(.*?);\s*$`)
)

// Google Forms item type codes.
const (
	codeShortAnswer    = 0
	codeParagraph      = 1
	codeMultipleChoice = 2
	codeDropdown       = 3
	codeCheckboxes     = 4
	codeLinearScale    = 5
	codeDescription    = 6
	codeGrid           = 7
	codePageBreak      = 8
	codeDate           = 9
	codeTime           = 10
	codeImage          = 11
	codeVideo          = 12
	codeFileUpload     = 13
)

// TypeForCode maps a Google Forms item type to a local field type. Unknown
// codes become text.
func TypeForCode(code int) model.FieldType {
	switch code {
	case codeShortAnswer:
		return model.TypeText
	case codeParagraph:
		return model.TypeTextarea
	case codeMultipleChoice, codeDropdown:
		return model.TypeSelect
	case codeCheckboxes:
		return model.TypeCheckbox
	case codeLinearScale:
		return model.TypeRating
	case codeDate:
		return model.TypeDate
	case codeTime:
		return model.TypeTime
	case codeFileUpload:
		return model.TypeFile
	}
	return model.TypeText
}

func isLayoutItem(code int) bool {
	switch code {
	case codeDescription, codePageBreak, codeImage, codeVideo:
		return true
	}
	return false
}

func hasChoices(code int) bool {
	switch code {
	case codeMultipleChoice, codeDropdown, codeCheckboxes, codeLinearScale:
		return true
	}
	return false
}

// GoogleForms reads public Google Forms pages through a list of relays.
type GoogleForms struct {
	client *http.Client
	relays []string
}

func NewGoogleForms(client *http.Client, relays []string) *GoogleForms {
	if client == nil {
		client = http.DefaultClient
	}
	if len(relays) == 0 {
		relays = DefaultRelays
	}
	return &GoogleForms{client: client, relays: relays}
}

func (g *GoogleForms) FetchRawQuestions(ctx context.Context, rawURL string) ([]ImportedField, error) {
	body, err := g.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return g.Parse(body)
}

// ViewFormURL rebuilds the canonical viewform address from any URL that
// carries a form id.
func ViewFormURL(rawURL string) (string, error) {
	m := reFormID.FindStringSubmatch(rawURL)
	if m == nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return "https://docs.google.com/forms/d/" + m[1] + m[2] + "/viewform", nil
}

// Fetch tries every relay in order and returns the first usable page.
func (g *GoogleForms) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	target, err := ViewFormURL(rawURL)
	if err != nil {
		return nil, err
	}

	lastErr := errors.New("no relay configured")
	for _, relay := range g.relays {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
		relayURL := strings.ReplaceAll(relay, "{url}", url.QueryEscape(target))
		body, err := g.get(ctx, relayURL)
		if err != nil {
			log.Debugf("import.relay: %s: %s", relay, err)
			lastErr = err
			continue
		}
		if len(body) <= minBodyLen {
			log.Debugf("import.relay: %s: short body (%d bytes)", relay, len(body))
			lastErr = fmt.Errorf("%s: short body", relay)
			continue
		}
		return body, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnreachable, lastErr)
}

func (g *GoogleForms) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyLen))
}

// Parse extracts the questions from the FB_PUBLIC_LOAD_DATA_ script of a
// form page.
func (g *GoogleForms) Parse(body []byte) ([]ImportedField, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	var payload string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if m := reLoadData.FindStringSubmatch(s.Text()); m != nil {
			payload = m[1]
			return false
		}
		return true
	})
	if payload == "" {
		return nil, fmt.Errorf("%w: no form data in page", ErrParse)
	}

	var data []any
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	items, ok := at(data, 1, 1).([]any)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected form data shape", ErrParse)
	}

	var (
		questions []ImportedField
		sections  sectioner
	)
	for _, raw := range items {
		item, ok := raw.([]any)
		if !ok {
			continue
		}
		code, ok := at(item, 3).(float64)
		if !ok || isLayoutItem(int(code)) {
			continue
		}

		q := ImportedField{
			TypeCode: int(code),
			Title:    plainText(at(item, 1)),
			HelpText: plainText(at(item, 2)),
		}
		if req, ok := at(item, 4, 0, 2).(float64); ok {
			q.Required = req == 1
		}
		if hasChoices(q.TypeCode) {
			q.Choices = choices(at(item, 4, 0, 1))
		}
		q.Section = sections.next(q.Title)
		questions = append(questions, q)
	}
	return questions, nil
}

// at walks nested JSON arrays, returning nil when any step is missing.
func at(v any, path ...int) any {
	for _, i := range path {
		list, ok := v.([]any)
		if !ok || i < 0 || i >= len(list) {
			return nil
		}
		v = list[i]
	}
	return v
}

func choices(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, c := range list {
		if label := plainText(at(c, 0)); label != "" {
			out = append(out, label)
		}
	}
	return out
}

var (
	stripPolicyOnce sync.Once
	stripPolicy     *bluemonday.Policy
)

// plainText drops any markup from foreign text.
func plainText(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	stripPolicyOnce.Do(func() {
		stripPolicy = bluemonday.StrictPolicy()
	})
	return strings.TrimSpace(html.UnescapeString(stripPolicy.Sanitize(s)))
}
