package textfx

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"regexp"
	"strconv"
	"time"
)

const (
	report_submit_post_form = "submit.post-form"
)

// fieldSet is an ordered multipart field list, names may repeat.
type fieldSet struct {
	fields []Field
	names  map[string]struct{}
}

func newFieldSet() *fieldSet {
	return &fieldSet{names: map[string]struct{}{}}
}

func (s *fieldSet) add(name, value string) {
	s.fields = append(s.fields, Field{Name: name, Value: value})
	s.names[name] = struct{}{}
}

func (s *fieldSet) addIfAbsent(name, value string) {
	if s.has(name) {
		return
	}
	s.add(name, value)
}

func (s *fieldSet) has(name string) bool {
	_, ok := s.names[name]
	return ok
}

// Values returns every value submitted under `name` in order.
func (s *fieldSet) Values(name string) []string {
	var out []string
	for _, f := range s.fields {
		if f.Name == name {
			out = append(out, f.Value)
		}
	}
	return out
}

func (s *fieldSet) encode() ([]byte, string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, f := range s.fields {
		err := w.WriteField(f.Name, f.Value)
		if err != nil {
			return nil, "", err
		}
	}
	err := w.Close()
	if err != nil {
		return nil, "", err
	}
	return body.Bytes(), w.FormDataContentType(), nil
}

var fieldIndexRegex = regexp.MustCompile(`(\d+)\]?$`)

func fieldIndex(name string) (int, bool) {
	groups := fieldIndexRegex.FindStringSubmatch(name)
	if len(groups) < 2 {
		return 0, false
	}
	idx, err := strconv.Atoi(groups[1])
	if err != nil {
		return 0, false
	}
	return idx, true
}

// indexBase detects whether the numbered text fields of a form count from 0 or from 1.
func indexBase(fields []Field) int {
	lowest := -1
	for _, f := range fields {
		if f.Kind != FIELD_TEXT {
			continue
		}
		idx, ok := fieldIndex(f.Name)
		if !ok {
			continue
		}
		if lowest < 0 || idx < lowest {
			lowest = idx
		}
	}
	if lowest == 1 {
		return 1
	}
	return 0
}

// pickText chooses the caller text for an empty text field: by the numeric suffix of its name
// when present and in range, else by its position among the form's text fields, else the
// first text.
func pickText(name string, ordinal, base int, texts []string) string {
	if idx, ok := fieldIndex(name); ok {
		idx -= base
		if idx >= 0 && idx < len(texts) {
			return texts[idx]
		}
	}
	if ordinal < len(texts) {
		return texts[ordinal]
	}
	return texts[0]
}

// buildFields assembles the outbound field set for a submission.
func buildFields(analysis Analysis, texts []string, aliases []FieldAlias) *fieldSet {
	set := newFieldSet()
	base := indexBase(analysis.Form.Fields)

	ordinal := 0
	for _, field := range analysis.Form.Fields {
		value := field.Value
		if field.Kind == FIELD_TEXT {
			if value == "" {
				value = pickText(field.Name, ordinal, base, texts)
			}
			ordinal++
		}
		set.add(field.Name, value)
	}

	for _, field := range analysis.ExtraFields {
		set.addIfAbsent(field.Name, field.Value)
	}

	declared := func(name string) bool {
		_, ok := analysis.Form.Field(name)
		return ok
	}
	for i, text := range texts {
		for _, alias := range aliases {
			name := alias.name(i)
			if !alias.Repeated && declared(name) {
				continue
			}
			set.add(name, text)
		}
	}

	for _, control := range controlFields {
		value := control.value(analysis.Parameters)
		if value == "" {
			continue
		}
		set.addIfAbsent(control.name, value)
	}

	return set
}

// submit posts the generation form. Any status below 500 is a response worth analyzing,
// providers return error styled pages that still link to the result.
func (s *session) submit(ctx context.Context, analysis Analysis, texts []string, aliases []FieldAlias, timeout time.Duration) (page, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	destination := analysis.Form.Action
	if destination == nil {
		destination = s.target
	}

	body, contentType, err := buildFields(analysis, texts, aliases).encode()
	if err != nil {
		return page{}, fmt.Errorf("encode form: %w", err)
	}

	s.tel.ReportDebug(report_submit_post_form, destination.String(), len(body))

	res, err := s.request(ctx).
		SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
		SetHeader("Accept-Language", "en-US,en;q=0.5").
		SetHeader("Origin", s.originHeader()).
		SetHeader("Referer", s.target.String()).
		SetHeader("Content-Type", contentType).
		SetBody(body).
		Post(destination.String())
	if err != nil {
		s.tel.ReportBroken(report_submit_post_form, fmt.Errorf("post: %w", err), destination.String())
		return page{}, transportError(err)
	}
	s.updateCookies(res)

	if res.StatusCode() >= http.StatusInternalServerError {
		s.tel.ReportBroken(report_submit_post_form, "unexpected status", res.StatusCode(), destination.String())
		return page{}, statusError(res.StatusCode())
	}
	if res.StatusCode() >= http.StatusBadRequest {
		s.tel.ReportWarning(report_submit_post_form, "client error status, analyzing anyway", res.StatusCode())
	}

	response, err := newPage(res, destination)
	if err != nil {
		s.tel.ReportBroken(report_submit_post_form, err, destination.String())
		return page{}, err
	}
	return response, nil
}
