package textfx

import (
	"fmt"
	"net/url"
	"strings"
)

// GenerationRequest is a single text effect generation, TargetPageUrl is the provider's
// effect page and Texts holds one value per input slot of that effect.
type GenerationRequest struct {
	TargetPageUrl string   `json:"target_page_url"`
	Texts         []string `json:"texts"`
}

// Validate checks that the request targets `providerHost` (or one of its subdomains)
// over http(s) and carries at least one text. The parsed target url is returned.
func (r GenerationRequest) Validate(providerHost string) (*url.URL, error) {
	if len(r.Texts) == 0 {
		return nil, fmt.Errorf("%w: at least one text is required", ErrInvalidTargetUrl)
	}

	target, err := url.Parse(strings.TrimSpace(r.TargetPageUrl))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTargetUrl, err.Error())
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidTargetUrl, target.Scheme)
	}
	if !matchesProvider(target.Hostname(), providerHost) {
		return nil, fmt.Errorf(
			"%w: host %q does not belong to provider %q",
			ErrInvalidTargetUrl, target.Hostname(), providerHost,
		)
	}
	return target, nil
}

func matchesProvider(host, providerHost string) bool {
	host = strings.ToLower(host)
	providerHost = strings.ToLower(providerHost)
	if host == "" || providerHost == "" {
		return false
	}
	return host == providerHost || strings.HasSuffix(host, "."+providerHost)
}

type FieldKind int

const (
	FIELD_OTHER FieldKind = iota
	FIELD_TEXT
	FIELD_HIDDEN
	FIELD_SUBMIT
)

func (k FieldKind) String() string {
	switch k {
	case FIELD_TEXT:
		return "text"
	case FIELD_HIDDEN:
		return "hidden"
	case FIELD_SUBMIT:
		return "submit"
	}
	return "other"
}

type Field struct {
	Name  string
	Value string
	Kind  FieldKind
}

// FormDescriptor is the generation form as discovered on the effect page. Action is always
// absolute and Fields keeps declaration order.
type FormDescriptor struct {
	Action *url.URL
	Method string
	Fields []Field
	// Synthesized is set when no form matched and the descriptor was assembled from
	// document-wide fields.
	Synthesized bool
}

// Field returns the first field with the given name.
func (f FormDescriptor) Field(name string) (Field, bool) {
	for _, field := range f.Fields {
		if field.Name == name {
			return field, true
		}
	}
	return Field{}, false
}

func (f FormDescriptor) textFields() []Field {
	var out []Field
	for _, field := range f.Fields {
		if field.Kind == FIELD_TEXT {
			out = append(out, field)
		}
	}
	return out
}

// GenerationParameters are values the provider expects alongside the form fields,
// some of which live outside the form element.
type GenerationParameters struct {
	ProcessingServerId string
	AntiForgeryToken   string
	EffectId           string
	ExpectedTextSlots  int
}

// Analysis is everything the Form Analyzer learned about an effect page.
type Analysis struct {
	Form       FormDescriptor
	Parameters GenerationParameters
	// ExtraFields are hidden inputs found outside of the selected form.
	ExtraFields []Field
	FormsFound  int
}

// candidate is an image url suspected to be the generated artifact.
type candidate struct {
	Url              string
	IsLikelyTemplate bool
	Score            int
}

// Diagnostics are counts gathered about the last analyzed document, they are attached to
// every terminal outcome so provider drift can be debugged after the fact.
type Diagnostics struct {
	ResponseBytes       int    `json:"response_bytes"`
	FormsFound          int    `json:"forms_found"`
	ImagesFound         int    `json:"images_found"`
	ProcessingMentioned bool   `json:"processing_mentioned"`
	FinalUrl            string `json:"final_url,omitempty"`
}

// GenerationResult is the terminal value of a pipeline run.
type GenerationResult struct {
	Succeeded         bool        `json:"succeeded"`
	ImageUrl          string      `json:"image_url,omitempty"`
	ContentType       string      `json:"content_type,omitempty"`
	ContentLength     int64       `json:"content_length,omitempty"`
	IsLikelyGenerated bool        `json:"is_likely_generated"`
	Strategy          string      `json:"strategy,omitempty"`
	FailureReason     string      `json:"failure_reason,omitempty"`
	Warnings          []string    `json:"warnings,omitempty"`
	Diagnostics       Diagnostics `json:"diagnostics"`
}
