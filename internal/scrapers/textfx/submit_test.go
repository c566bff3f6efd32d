package textfx

import (
	"testing"

	"github.com/mazen160/go-random"
	"github.com/stretchr/testify/require"
)

func TestBuildFieldsAliases(t *testing.T) {
	analysis := Analysis{
		Form: FormDescriptor{
			Fields: []Field{
				{Name: "text_0", Kind: FIELD_TEXT},
				{Name: "submit", Value: "GO", Kind: FIELD_SUBMIT},
			},
		},
		Parameters: GenerationParameters{
			EffectId:           "123",
			ProcessingServerId: "https://s1.photooxy.com",
		},
	}

	set := buildFields(analysis, []string{"HELLO"}, DefaultTextAliases())

	var carrying []string
	for _, f := range set.fields {
		if f.Value == "HELLO" {
			carrying = append(carrying, f.Name)
		}
	}
	require.GreaterOrEqual(t, len(carrying), 3)
	require.ElementsMatch(t, []string{"text_0", "text-0", "text[]"}, carrying)

	require.Equal(t, []string{"GO"}, set.Values("submit"))
	require.Equal(t, []string{"1"}, set.Values("build"))
	require.Equal(t, []string{"123"}, set.Values("id"))
	require.Equal(t, []string{"123"}, set.Values("effect_id"))
	require.Equal(t, []string{"https://s1.photooxy.com"}, set.Values("build_server"))
	require.Empty(t, set.Values("_token"))
}

func TestBuildFieldsKeepsDeclaredValues(t *testing.T) {
	analysis := Analysis{
		Form: FormDescriptor{
			Fields: []Field{
				{Name: "text_1", Kind: FIELD_TEXT},
				{Name: "text_2", Value: "prefilled", Kind: FIELD_TEXT},
				{Name: "build_server", Value: "https://s2.photooxy.com", Kind: FIELD_HIDDEN},
			},
		},
		ExtraFields: []Field{
			{Name: "build_server", Value: "https://other.photooxy.com", Kind: FIELD_HIDDEN},
			{Name: "session_hint", Value: "x1", Kind: FIELD_HIDDEN},
		},
		Parameters: GenerationParameters{
			EffectId:           "77",
			ProcessingServerId: "https://s2.photooxy.com",
		},
	}

	set := buildFields(analysis, []string{"first", "second"}, DefaultTextAliases())

	require.Equal(t, []string{"first"}, set.Values("text_1"))
	require.Equal(t, []string{"prefilled"}, set.Values("text_2"))
	require.Equal(t, []string{"https://s2.photooxy.com"}, set.Values("build_server"))
	require.Equal(t, []string{"x1"}, set.Values("session_hint"))
	require.Equal(t, []string{"first", "second"}, set.Values("text[]"))
	require.Equal(t, []string{"first"}, set.Values("text_0"))
	require.Equal(t, []string{"second"}, set.Values("text-1"))
}

func TestBuildFieldsRandomTexts(t *testing.T) {
	texts := make([]string, 3)
	for i := range texts {
		text, err := random.String(16)
		if err != nil {
			t.Fatal(err)
		}
		texts[i] = text
	}

	analysis := Analysis{
		Form: FormDescriptor{
			Fields: []Field{
				{Name: "text[]", Kind: FIELD_TEXT},
				{Name: "text[]", Kind: FIELD_TEXT},
				{Name: "text[]", Kind: FIELD_TEXT},
			},
		},
	}
	set := buildFields(analysis, texts, DefaultTextAliases())

	// declared array fields plus the repeated alias
	require.Equal(t, append(append([]string{}, texts...), texts...), set.Values("text[]"))
	for i, text := range texts {
		require.Equal(t, []string{text}, set.Values(DefaultTextAliases()[0].name(i)))
	}

	body, contentType, err := set.encode()
	if err != nil {
		t.Fatal(err)
	}
	require.Contains(t, contentType, "multipart/form-data; boundary=")
	for _, text := range texts {
		require.Contains(t, string(body), text)
	}
}

func TestPickText(t *testing.T) {
	texts := []string{"a", "b"}
	testCases := []struct {
		name     string
		ordinal  int
		base     int
		expected string
	}{
		{name: "text_1", ordinal: 0, base: 1, expected: "a"},
		{name: "text_2", ordinal: 1, base: 1, expected: "b"},
		{name: "text_0", ordinal: 0, base: 0, expected: "a"},
		{name: "text[1]", ordinal: 0, base: 0, expected: "b"},
		{name: "text_5", ordinal: 1, base: 0, expected: "b"},
		{name: "text[]", ordinal: 1, base: 0, expected: "b"},
		{name: "headline", ordinal: 3, base: 0, expected: "a"},
	}
	for _, testCase := range testCases {
		require.Equal(t, testCase.expected, pickText(testCase.name, testCase.ordinal, testCase.base, texts), testCase.name)
	}
}

func TestIndexBase(t *testing.T) {
	require.Equal(t, 1, indexBase([]Field{
		{Name: "text_1", Kind: FIELD_TEXT},
		{Name: "text_2", Kind: FIELD_TEXT},
	}))
	require.Equal(t, 0, indexBase([]Field{
		{Name: "text_0", Kind: FIELD_TEXT},
		{Name: "text_1", Kind: FIELD_TEXT},
	}))
	require.Equal(t, 0, indexBase([]Field{
		{Name: "build_1", Kind: FIELD_HIDDEN},
		{Name: "headline", Kind: FIELD_TEXT},
	}))
}
