package tags

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name string
		text string
		want Tags
	}{
		{
			name: "Double-quoted status keeps emoji",
			text: `[status_message: "🧠 X..."]`,
			want: Tags{"status_message": "🧠 X..."},
		},
		{
			name: "Single-quoted value",
			text: `[intake_status: 'done']`,
			want: Tags{"intake_status": "done"},
		},
		{
			name: "Bare token",
			text: `[summary_status: finalized]`,
			want: Tags{"summary_status": "finalized"},
		},
		{
			name: "JSON array",
			text: `[tasks: ["A","B","C"]]`,
			want: Tags{"tasks": []any{"A", "B", "C"}},
		},
		{
			name: "JSON object",
			text: `[meta: {"court": "SC", "year": 2023}]`,
			want: Tags{"meta": map[string]any{"court": "SC", "year": float64(2023)}},
		},
		{
			name: "Numbers and booleans stay strings",
			text: `[count: 42] [ok: true]`,
			want: Tags{"count": "42", "ok": "true"},
		},
		{
			name: "Empty bare value",
			text: `[render_status:]`,
			want: Tags{"render_status": ""},
		},
		{
			name: "Last occurrence wins",
			text: `[status_message: "first"] text [status_message: "second"]`,
			want: Tags{"status_message": "second"},
		},
		{
			name: "Several pairs in one bracket",
			text: `[action: "web_search", query: "cyberlibel prescription period"]`,
			want: Tags{"action": "web_search", "query": "cyberlibel prescription period"},
		},
		{
			name: "Unbalanced array falls back to plain string",
			text: `[tasks: ["A", "B"]`,
			want: Tags{"tasks": `["A", "B"`},
		},
		{
			name: "Array with brackets inside strings",
			text: `[tasks: ["Check Art. 19 [par. 2]", "B"]]`,
			want: Tags{"tasks": []any{"Check Art. 19 [par. 2]", "B"}},
		},
		{
			name: "Stray brackets in legal prose are not tags",
			text: `Under Sec. 5 [a] of R.A. 10175 and [see note] the rule applies.`,
			want: Tags{},
		},
		{
			name: "Citation markers are not tags",
			text: `[[CITATION: G.R. No. 1 | A v. B | 2020 | En Banc | Held.]]`,
			want: Tags{},
		},
		{
			name: "Bare value spanning lines",
			text: "[status_message: working\non it]",
			want: Tags{"status_message": "working\non it"},
		},
		{
			name: "Quoted value spanning lines",
			text: "Scope [summary_status: \"finalized\nfor now\"] end",
			want: Tags{"summary_status": "finalized\nfor now"},
		},
		{
			name: "Identifier must touch the colon",
			text: `[status : "x"]`,
			want: Tags{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Parse(tc.text))
		})
	}
}

func TestParse_UnicodeEscapes(t *testing.T) {
	testCases := []struct {
		name string
		text string
		want string
	}{
		{name: "JSON string", text: `[k: "caf\u00e9"]`, want: "café"},
		{name: "Single-quoted", text: `[k: 'caf\u00e9']`, want: "café"},
		{name: "Bare token with surrogate pair", text: `[k: \ud83e\udde0 ok]`, want: "🧠 ok"},
		{name: "Quoted but invalid JSON", text: `[k: "C:\docs \u00f1"]`, want: `C:\docs ñ`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := Parse(tc.text).String("k")
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParse_CountsWellFormedTags(t *testing.T) {
	tagTexts := []string{
		`[status_message: "📋 Summarizing..."]`,
		`[tasks: ["A", "B"]]`,
		`[summary_status: finalized]`,
	}
	text := "Intro line.\n" + tagTexts[0] + "\nBody with (parentheses) and a list.\n" +
		tagTexts[1] + " trailing words " + tagTexts[2]

	parsed := Parse(text)
	assert.Len(t, parsed, len(tagTexts))

	stripped := Strip(text)
	for _, tt := range tagTexts {
		assert.NotContains(t, stripped, tt)
	}
	assert.True(t, strings.HasPrefix(stripped, "Intro line."))
	assert.Contains(t, stripped, "trailing words")
}

func TestStrip(t *testing.T) {
	testCases := []struct {
		name string
		text string
		want string
	}{
		{name: "Only tags", text: `  [a: "1"] [b: ["x"]]  [c: done] `, want: ""},
		{name: "No tags", text: "  plain text  ", want: "plain text"},
		{
			name: "Leading status then body",
			text: "[status_message: \"✅ ok\"]\n[validation_status: \"verified\"]\nG.R. No. 123 is correct.",
			want: "G.R. No. 123 is correct.",
		},
		{
			name: "Multi-line directives",
			text: "Scope [summary_status: \"finalized\nfor now\"] end [status_message: Analyzing\nthe facts]",
			want: "Scope  end",
		},
		{
			name: "Citation survives",
			text: `<p>x</p>[[CITATION: G.R. No. 1 | A | B | C | D]][render_status: "final"]`,
			want: `<p>x</p>[[CITATION: G.R. No. 1 | A | B | C | D]]`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Strip(tc.text))
		})
	}
}

func TestFormat(t *testing.T) {
	payload := map[string]any{
		"query":   "estafa <elements>",
		"results": []map[string]string{{"title": "T [1]", "url": "http://example.com/case1"}},
	}

	directive, err := Format("WEB_SEARCH_RESULTS", payload)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(directive, "[WEB_SEARCH_RESULTS: {"))
	assert.Contains(t, directive, "<elements>")

	parsed := Parse(directive)
	obj, ok := parsed["WEB_SEARCH_RESULTS"].(map[string]any)
	require.True(t, ok, "directive should parse back into an object")
	assert.Equal(t, "estafa <elements>", obj["query"])
	assert.Equal(t, "", Strip(directive))
}

func TestTagsAccessors(t *testing.T) {
	parsed := Parse(`[intake_status: " DONE "] [tasks: ["a"]]`)

	assert.True(t, parsed.Equal("intake_status", "done"))
	assert.False(t, parsed.Equal("tasks", "a"))
	assert.True(t, parsed.Has("tasks"))
	assert.False(t, parsed.Has("render_status"))

	list, ok := parsed.List("tasks")
	require.True(t, ok)
	assert.Equal(t, []any{"a"}, list)

	_, ok = parsed.String("tasks")
	assert.False(t, ok)
}
