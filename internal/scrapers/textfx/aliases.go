package textfx

import "fmt"

// FieldAlias is an alternate field name the provider is known to accept a text under.
// The accepted name cannot reliably be discovered from the markup, so every text is sent
// under every alias and the provider ignores the names it does not recognize.
type FieldAlias struct {
	// Format receives the zero based index of the text, unless Repeated is set in which
	// case it is used verbatim for every text (array style names like "text[]").
	Format   string `json:"format"`
	Repeated bool   `json:"repeated"`
}

func (a FieldAlias) name(index int) string {
	if a.Repeated {
		return a.Format
	}
	return fmt.Sprintf(a.Format, index)
}

func DefaultTextAliases() []FieldAlias {
	return []FieldAlias{
		{Format: "text_%d"},
		{Format: "text-%d"},
		{Format: "text[]", Repeated: true},
	}
}

// controlField is a field added to every submission when the form did not already
// declare it. value receives the effect parameters.
type controlField struct {
	name  string
	value func(params GenerationParameters) string
}

var controlFields = []controlField{
	{name: "submit", value: func(GenerationParameters) string { return "GO" }},
	{name: "build", value: func(GenerationParameters) string { return "1" }},
	{name: "id", value: func(p GenerationParameters) string { return p.EffectId }},
	{name: "effect_id", value: func(p GenerationParameters) string { return p.EffectId }},
	{name: "build_server", value: func(p GenerationParameters) string { return p.ProcessingServerId }},
	{name: "_token", value: func(p GenerationParameters) string { return p.AntiForgeryToken }},
}

// processingServerNames are the names the processing server id is known to be exposed under,
// in order of preference.
var processingServerNames = []string{"build_server", "build_server_id", "server"}

// antiForgeryFieldNames are input names carrying an anti-forgery token.
var antiForgeryFieldNames = []string{"_token", "token", "csrf_token", "authenticity_token"}

// antiForgeryMetaNames are <meta name=...> tags carrying an anti-forgery token.
var antiForgeryMetaNames = []string{"csrf-token", "_token", "csrf_token"}
