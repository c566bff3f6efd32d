package textfx

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"
	"golang.org/x/net/html"
)

var effectIdRegex = regexp.MustCompile(`(\d+)\.html?$`)

// EffectIdFromUrl extracts the effect id, the trailing numeric segment before ".html" in the
// path of an effect page url. The query string and fragment never influence the result.
func EffectIdFromUrl(target *url.URL) (string, error) {
	groups := effectIdRegex.FindStringSubmatch(target.Path)
	if len(groups) < 2 {
		return "", fmt.Errorf("%w: no effect id in path %q", ErrInvalidTargetUrl, target.Path)
	}
	return groups[1], nil
}

// fuzzyNameThreshold is the minimum Jaro-Winkler similarity for a hidden input name to be
// considered a misspelled/renamed processing server field ("buildserver", "build-server").
const fuzzyNameThreshold = 0.92

type formAnalyzer struct {
	doc    *goquery.Document
	target *url.URL
	origin *url.URL
}

// analyzePage finds the generation form of an effect page and the parameters that go with it.
func analyzePage(doc *goquery.Document, target *url.URL, effectId string) (Analysis, error) {
	a := formAnalyzer{
		doc:    doc,
		target: target,
		origin: &url.URL{Scheme: target.Scheme, Host: target.Host},
	}

	forms := doc.Find("form")
	analysis := Analysis{FormsFound: forms.Length()}

	selected, ok := a.selectForm(forms)
	if ok {
		analysis.Form = a.describeForm(selected)
		analysis.ExtraFields = a.hiddenOutside(selected, analysis.Form)
	} else {
		synthesized, ok := a.synthesizeForm()
		if !ok {
			return analysis, fmt.Errorf(
				"%w: %d form(s), none usable and no generation parameters in document",
				ErrFormDiscovery, analysis.FormsFound,
			)
		}
		analysis.Form = synthesized
		analysis.ExtraFields = a.hiddenOutside(nil, synthesized)
	}

	analysis.Parameters = a.parameters(analysis.Form, analysis.ExtraFields)
	analysis.Parameters.EffectId = effectId
	return analysis, nil
}

func (a formAnalyzer) selectForm(forms *goquery.Selection) (*goquery.Selection, bool) {
	var selected *goquery.Selection
	forms.EachWithBreak(func(_ int, form *goquery.Selection) bool {
		if isSearchAction(form.AttrOr("action", "")) {
			return true
		}

		fields := fieldsOf(form)
		hasTextField := slices.ContainsFunc(fields, isTextLike)
		hasSubmit := slices.ContainsFunc(fields, func(f Field) bool { return f.Kind == FIELD_SUBMIT }) ||
			form.Find(`button:not([type]), button[type="submit"], input[type="submit"], input[type="image"]`).Length() > 0
		isPost := strings.EqualFold(strings.TrimSpace(form.AttrOr("method", "")), "post")

		if hasTextField && (hasSubmit || isPost) {
			selected = form
			return false
		}
		return true
	})
	return selected, selected != nil
}

func (a formAnalyzer) describeForm(form *goquery.Selection) FormDescriptor {
	method := strings.ToUpper(strings.TrimSpace(form.AttrOr("method", "")))
	if method != "GET" {
		method = "POST"
	}
	return FormDescriptor{
		Action: resolveAction(form.AttrOr("action", ""), a.origin, a.target),
		Method: method,
		Fields: fieldsOf(form),
	}
}

// synthesizeForm builds a minimal descriptor out of document-wide generation parameters,
// for pages that place them outside of any recognizable form.
func (a formAnalyzer) synthesizeForm() (FormDescriptor, bool) {
	wanted := append(slices.Clone(processingServerNames), "token")

	var fields []Field
	for _, field := range fieldsOf(a.doc.Selection) {
		if slices.Contains(wanted, field.Name) {
			fields = append(fields, field)
		}
	}
	if token := a.metaToken(); token != "" && !slices.ContainsFunc(fields, hasName("_token")) {
		fields = append(fields, Field{Name: "_token", Value: token, Kind: FIELD_HIDDEN})
	}
	if len(fields) == 0 {
		return FormDescriptor{}, false
	}

	for _, field := range fieldsOf(a.doc.Selection) {
		if field.Kind == FIELD_TEXT && !slices.ContainsFunc(fields, hasName(field.Name)) {
			fields = append(fields, field)
		}
	}

	return FormDescriptor{
		Action:      cloneUrl(a.target),
		Method:      "POST",
		Fields:      fields,
		Synthesized: true,
	}, true
}

// hiddenOutside returns the hidden inputs of the document that are not descendants of
// `form` and not already declared by `desc`.
func (a formAnalyzer) hiddenOutside(form *goquery.Selection, desc FormDescriptor) []Field {
	var out []Field
	a.doc.Find("input").Each(func(_ int, input *goquery.Selection) {
		if !strings.EqualFold(strings.TrimSpace(input.AttrOr("type", "")), "hidden") {
			return
		}
		if form != nil && isDescendant(input.Nodes[0], form.Nodes[0]) {
			return
		}
		name := strings.TrimSpace(input.AttrOr("name", ""))
		if name == "" {
			return
		}
		if _, exists := desc.Field(name); exists || slices.ContainsFunc(out, hasName(name)) {
			return
		}
		out = append(out, Field{Name: name, Value: input.AttrOr("value", ""), Kind: FIELD_HIDDEN})
	})
	return out
}

func (a formAnalyzer) parameters(form FormDescriptor, extra []Field) GenerationParameters {
	all := append(slices.Clone(form.Fields), extra...)
	lookup := func(names []string) string {
		for _, name := range names {
			for _, field := range all {
				if field.Name == name && strings.TrimSpace(field.Value) != "" {
					return strings.TrimSpace(field.Value)
				}
			}
		}
		return ""
	}

	params := GenerationParameters{
		ExpectedTextSlots: len(form.textFields()),
	}

	params.ProcessingServerId = lookup(processingServerNames)
	if params.ProcessingServerId == "" {
		params.ProcessingServerId = strings.TrimSpace(a.doc.Find("#build_server").AttrOr("value", ""))
	}
	if params.ProcessingServerId == "" {
		params.ProcessingServerId = fuzzyProcessingServer(all)
	}

	params.AntiForgeryToken = a.metaToken()
	if params.AntiForgeryToken == "" {
		params.AntiForgeryToken = lookup(antiForgeryFieldNames)
	}

	return params
}

func (a formAnalyzer) metaToken() string {
	for _, name := range antiForgeryMetaNames {
		content := strings.TrimSpace(a.doc.Find(fmt.Sprintf(`meta[name="%s"]`, name)).AttrOr("content", ""))
		if content != "" {
			return content
		}
	}
	return ""
}

func fuzzyProcessingServer(fields []Field) string {
	var best float64
	var value string
	for _, field := range fields {
		if field.Kind != FIELD_HIDDEN || strings.TrimSpace(field.Value) == "" {
			continue
		}
		name := strings.ToLower(field.Name)
		for _, known := range processingServerNames {
			similarity := matchr.JaroWinkler(name, known, false)
			if similarity >= fuzzyNameThreshold && similarity > best {
				best = similarity
				value = strings.TrimSpace(field.Value)
			}
		}
	}
	return value
}

// fieldsOf extracts every named field under `sel` in declaration order.
func fieldsOf(sel *goquery.Selection) []Field {
	var fields []Field
	sel.Find("input, textarea, select, button").Each(func(_ int, s *goquery.Selection) {
		name := strings.TrimSpace(s.AttrOr("name", ""))
		if name == "" {
			return
		}

		switch goquery.NodeName(s) {
		case "textarea":
			fields = append(fields, Field{Name: name, Value: s.Text(), Kind: FIELD_TEXT})
		case "select":
			fields = append(fields, Field{Name: name, Value: selectValue(s), Kind: FIELD_OTHER})
		case "button":
			kind := FIELD_OTHER
			buttonType := strings.ToLower(s.AttrOr("type", "submit"))
			if buttonType == "submit" {
				kind = FIELD_SUBMIT
			}
			fields = append(fields, Field{Name: name, Value: s.AttrOr("value", ""), Kind: kind})
		case "input":
			value := s.AttrOr("value", "")
			switch strings.ToLower(strings.TrimSpace(s.AttrOr("type", "text"))) {
			case "text", "":
				fields = append(fields, Field{Name: name, Value: value, Kind: FIELD_TEXT})
			case "hidden":
				fields = append(fields, Field{Name: name, Value: value, Kind: FIELD_HIDDEN})
			case "submit", "image":
				fields = append(fields, Field{Name: name, Value: value, Kind: FIELD_SUBMIT})
			case "checkbox", "radio":
				// unchecked boxes are not submitted by browsers either
				if _, checked := s.Attr("checked"); checked {
					if value == "" {
						value = "on"
					}
					fields = append(fields, Field{Name: name, Value: value, Kind: FIELD_OTHER})
				}
			case "file", "reset", "button":
			default:
				fields = append(fields, Field{Name: name, Value: value, Kind: FIELD_OTHER})
			}
		}
	})
	return fields
}

func selectValue(s *goquery.Selection) string {
	option := s.Find("option[selected]").First()
	if option.Length() == 0 {
		option = s.Find("option").First()
	}
	if option.Length() == 0 {
		return ""
	}
	if value, ok := option.Attr("value"); ok {
		return value
	}
	return strings.TrimSpace(option.Text())
}

func isTextLike(f Field) bool {
	return f.Kind == FIELD_TEXT || (f.Kind != FIELD_HIDDEN && strings.Contains(strings.ToLower(f.Name), "text"))
}

// isSearchAction reports whether a form action points at a site search, these forms are
// decoys that also carry a text field and a submit button.
func isSearchAction(action string) bool {
	parsed, err := url.Parse(strings.TrimSpace(action))
	if err != nil {
		return strings.Contains(strings.ToLower(action), "search")
	}
	for _, segment := range strings.Split(parsed.Path, "/") {
		if strings.Contains(strings.ToLower(segment), "search") {
			return true
		}
	}
	return false
}

// resolveAction makes a form action absolute: absolute http(s) actions are kept, relative
// ones resolve against the provider origin and missing ones fall back to the effect page.
func resolveAction(action string, origin, target *url.URL) *url.URL {
	action = strings.TrimSpace(action)
	if action == "" || strings.HasPrefix(action, "#") {
		return cloneUrl(target)
	}
	parsed, err := url.Parse(action)
	if err != nil {
		return cloneUrl(target)
	}
	if parsed.IsAbs() {
		if parsed.Scheme != "http" && parsed.Scheme != "https" {
			return cloneUrl(target)
		}
		return parsed
	}
	return origin.ResolveReference(parsed)
}

func hasName(name string) func(Field) bool {
	return func(f Field) bool {
		return f.Name == name
	}
}

func cloneUrl(u *url.URL) *url.URL {
	clone := *u
	return &clone
}

func isDescendant(node, ancestor *html.Node) bool {
	for current := node.Parent; current != nil; current = current.Parent {
		if current == ancestor {
			return true
		}
	}
	return false
}
