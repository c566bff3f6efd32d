package textfx

import (
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func parseDoc(t testing.TB, markup string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func mustParseUrl(t testing.TB, raw string) *url.URL {
	parsed, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	return parsed
}

func TestEffectIdFromUrl(t *testing.T) {
	variants := []string{
		"https://photooxy.com/logo-and-text-effects/neon-light-123.html",
		"https://photooxy.com/logo-and-text-effects/neon-light-123.html?utm_source=feed",
		"https://photooxy.com/logo-and-text-effects/neon-light-123.html#top",
		"https://photooxy.com/logo-and-text-effects/neon-light-123.html?a=1&b=456.html#x-789.html",
		"https://en.photooxy.com/logo-and-text-effects/neon-light-123.htm",
	}
	for _, variant := range variants {
		id, err := EffectIdFromUrl(mustParseUrl(t, variant))
		if err != nil {
			t.Fatal(err)
		}
		require.Equal(t, "123", id, variant)
	}

	_, err := EffectIdFromUrl(mustParseUrl(t, "https://photooxy.com/logo-and-text-effects/neon-light.html?id=123"))
	require.ErrorIs(t, err, ErrInvalidTargetUrl)
}

func TestRequestValidate(t *testing.T) {
	testCases := []struct {
		url   string
		texts []string
		ok    bool
	}{
		{url: "https://photooxy.com/a-1.html", texts: []string{"x"}, ok: true},
		{url: "https://en.photooxy.com/a-1.html", texts: []string{"x"}, ok: true},
		{url: "http://PHOTOOXY.com:8080/a-1.html", texts: []string{"x"}, ok: true},
		{url: "https://photooxy.com/a-1.html", texts: nil, ok: false},
		{url: "https://notphotooxy.com/a-1.html", texts: []string{"x"}, ok: false},
		{url: "https://photooxy.com.evil.io/a-1.html", texts: []string{"x"}, ok: false},
		{url: "ftp://photooxy.com/a-1.html", texts: []string{"x"}, ok: false},
		{url: "not a url", texts: []string{"x"}, ok: false},
	}

	for _, testCase := range testCases {
		_, err := GenerationRequest{TargetPageUrl: testCase.url, Texts: testCase.texts}.Validate("photooxy.com")
		if testCase.ok {
			require.NoError(t, err, testCase.url)
			continue
		}
		require.ErrorIs(t, err, ErrInvalidTargetUrl, testCase.url)
	}
}

func TestAnalyzeSkipsSearchForm(t *testing.T) {
	target := mustParseUrl(t, "https://photooxy.com/effects/neon-light-123.html?ref=home")

	analysis, err := analyzePage(parseDoc(t, effectPage), target, "123")
	if err != nil {
		t.Fatal(err)
	}

	require.Equal(t, 2, analysis.FormsFound)
	require.False(t, analysis.Form.Synthesized)
	require.Equal(t, "https://photooxy.com/effect/create-image", analysis.Form.Action.String())
	require.Equal(t, "POST", analysis.Form.Method)
	_, hasQuery := analysis.Form.Field("q")
	require.False(t, hasQuery)

	require.Equal(t, GenerationParameters{
		ProcessingServerId: "https://s3.photooxy.com",
		AntiForgeryToken:   "tok-123",
		EffectId:           "123",
		ExpectedTextSlots:  1,
	}, analysis.Parameters)
	require.Equal(t, []Field{
		{Name: "build_server", Value: "https://s3.photooxy.com", Kind: FIELD_HIDDEN},
	}, analysis.ExtraFields)
}

func TestAnalyzeOnlySearchForm(t *testing.T) {
	target := mustParseUrl(t, "https://photooxy.com/effects/neon-light-123.html")
	doc := parseDoc(t, `<html><body>
		<form action="/search/effects" method="post">
			<input type="text" name="q">
			<input type="submit" value="Search">
		</form>
	</body></html>`)

	_, err := analyzePage(doc, target, "123")
	require.ErrorIs(t, err, ErrFormDiscovery)
}

func TestAnalyzeFormRules(t *testing.T) {
	target := mustParseUrl(t, "https://photooxy.com/effects/neon-light-123.html")

	testCases := []struct {
		name   string
		markup string
		action string
		method string
	}{
		{
			name: "post form without submit control",
			markup: `<form action="https://photooxy.com/create" method="POST">
				<textarea name="text_1"></textarea>
			</form>`,
			action: "https://photooxy.com/create",
			method: "POST",
		},
		{
			name: "get form with default button",
			markup: `<form method="get">
				<input name="text-1">
				<button>Go</button>
			</form>`,
			action: "https://photooxy.com/effects/neon-light-123.html",
			method: "GET",
		},
		{
			name: "non http action falls back to the effect page",
			markup: `<form action="javascript:void(0)" method="post">
				<input type="text" name="text_0">
			</form>`,
			action: "https://photooxy.com/effects/neon-light-123.html",
			method: "POST",
		},
		{
			name: "form without text field is skipped",
			markup: `<form action="/newsletter" method="post">
				<input type="email" name="email">
				<input type="submit">
			</form>
			<form action="/effect/create-image" method="post">
				<input type="text" name="text_0">
			</form>`,
			action: "https://photooxy.com/effect/create-image",
			method: "POST",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			analysis, err := analyzePage(parseDoc(t, testCase.markup), target, "123")
			if err != nil {
				t.Fatal(err)
			}
			require.Equal(t, testCase.action, analysis.Form.Action.String())
			require.Equal(t, testCase.method, analysis.Form.Method)
		})
	}
}

func TestAnalyzeSynthesizesForm(t *testing.T) {
	target := mustParseUrl(t, "https://photooxy.com/effects/neon-light-123.html")
	doc := parseDoc(t, `<html><body>
		<div class="editor">
			<input type="text" name="text_1" placeholder="Your name">
			<input type="text" name="text_2" placeholder="Your slogan">
			<input type="hidden" name="build_server" value="https://s1.photooxy.com">
			<a class="btn" onclick="create()">Create</a>
		</div>
	</body></html>`)

	analysis, err := analyzePage(doc, target, "123")
	if err != nil {
		t.Fatal(err)
	}

	require.True(t, analysis.Form.Synthesized)
	require.Equal(t, 0, analysis.FormsFound)
	require.Equal(t, target.String(), analysis.Form.Action.String())
	require.Equal(t, "POST", analysis.Form.Method)
	require.Equal(t, []Field{
		{Name: "build_server", Value: "https://s1.photooxy.com", Kind: FIELD_HIDDEN},
		{Name: "text_1", Kind: FIELD_TEXT},
		{Name: "text_2", Kind: FIELD_TEXT},
	}, analysis.Form.Fields)
	require.Empty(t, analysis.ExtraFields)
	require.Equal(t, "https://s1.photooxy.com", analysis.Parameters.ProcessingServerId)
	require.Equal(t, 2, analysis.Parameters.ExpectedTextSlots)
}

func TestAnalyzeFuzzyProcessingServer(t *testing.T) {
	target := mustParseUrl(t, "https://photooxy.com/effects/neon-light-123.html")
	doc := parseDoc(t, `<form method="post">
		<input type="text" name="text_0">
		<input type="hidden" name="buildserver" value="https://s9.photooxy.com">
		<input type="hidden" name="token" value="abc">
	</form>`)

	analysis, err := analyzePage(doc, target, "123")
	if err != nil {
		t.Fatal(err)
	}
	require.Equal(t, "https://s9.photooxy.com", analysis.Parameters.ProcessingServerId)
	require.Equal(t, "abc", analysis.Parameters.AntiForgeryToken)
}

func TestFieldsOf(t *testing.T) {
	doc := parseDoc(t, `<form>
		<input type="text" name="text_0" value="a">
		<input type="checkbox" name="shadow" checked>
		<input type="checkbox" name="glow">
		<input type="file" name="upload">
		<input name="unnamed-type">
		<input type="text" value="no name">
		<select name="font">
			<option value="arial">Arial</option>
			<option value="impact" selected>Impact</option>
		</select>
		<button type="button" name="preview">Preview</button>
		<input type="submit" name="submit" value="GO">
	</form>`)

	require.Equal(t, []Field{
		{Name: "text_0", Value: "a", Kind: FIELD_TEXT},
		{Name: "shadow", Value: "on", Kind: FIELD_OTHER},
		{Name: "unnamed-type", Kind: FIELD_TEXT},
		{Name: "font", Value: "impact", Kind: FIELD_OTHER},
		{Name: "preview", Kind: FIELD_OTHER},
		{Name: "submit", Value: "GO", Kind: FIELD_SUBMIT},
	}, fieldsOf(doc.Selection))
}
