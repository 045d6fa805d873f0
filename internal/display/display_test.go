package display

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"lawgpt/internal/ledger"
	"lawgpt/internal/metrics"
	"lawgpt/internal/pipeline"
)

const finalHTML = `<h2>🏛️ Holding</h2>
<p>Dismissal was valid. [[CITATION: G.R. No. 123 | Cruz v. People | 1 Jan 2020 | First Division | Dismissal upheld.]]</p>
<ul><li>Just cause</li><li><p>Due process</p></li></ul>`

func TestRenderBrief(t *testing.T) {
	out := RenderBrief(finalHTML + ` [render_status: "final"]`)

	assert.NotContains(t, out, "[[CITATION")
	assert.NotContains(t, out, "render_status")
	assert.Contains(t, out, `<p class="font-bold text-slate-900">G.R. No. 123</p>`)
}

func TestBriefText(t *testing.T) {
	out := BriefText(RenderBrief(finalHTML))

	assert.Contains(t, out, "Holding")
	assert.Contains(t, out, "Dismissal was valid.")
	assert.Contains(t, out, "G.R. No. 123")
	assert.Contains(t, out, "1 Jan 2020 | First Division")
	assert.Contains(t, out, "  • Just cause\n")
	assert.Equal(t, 1, strings.Count(out, "Due process"), "paragraphs inside list items are not repeated")
	assert.NotContains(t, out, "<p")
}

func TestBriefText_PlainFallback(t *testing.T) {
	assert.Equal(t, "just some text", BriefText("just  some\n text"))
}

func TestRenderFinal(t *testing.T) {
	t.Run("HTML", func(t *testing.T) {
		out := RenderFinal(finalHTML)
		assert.Contains(t, out, "Cruz v. People")
		assert.NotContains(t, out, "<h2>")
	})
	t.Run("Markdown", func(t *testing.T) {
		out := RenderFinal("# Brief\n\nSee [[CITATION: G.R. No. 9 | A v. B | 2020 | En Banc | Held.]]")
		assert.Contains(t, out, "G.R. No. 9")
		assert.NotContains(t, out, "[[CITATION")
	})
}

func TestDocument(t *testing.T) {
	doc := Document(`Cruz <v> "People"`, "<p>x</p>")
	assert.Contains(t, doc, "<title>Cruz &lt;v&gt; &#34;People&#34;</title>")
	assert.Contains(t, doc, "<p>x</p>")
}

func TestFormatEvent(t *testing.T) {
	testCases := []struct {
		name  string
		event pipeline.Event
		want  string
	}{
		{
			name:  "Status",
			event: pipeline.Event{Kind: pipeline.EventStatus, Text: "🔎 Researching task 1/2: A..."},
			want:  "🔎 Researching task 1/2: A...",
		},
		{
			name:  "Phase",
			event: pipeline.Event{Kind: pipeline.EventPhase, SessionID: "s1", Phase: pipeline.PhaseSummarizer},
			want:  "[s1] Requirements summary",
		},
		{
			name:  "Assistant reply",
			event: pipeline.Event{Kind: pipeline.EventMessage, Message: &ledger.Message{Role: ledger.RoleAssistant, Content: "Which court?"}},
			want:  "Which court?",
		},
		{
			name:  "Error",
			event: pipeline.Event{Kind: pipeline.EventError, Text: "boom"},
			want:  "Error: boom",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Contains(t, FormatEvent(tc.event), tc.want)
		})
	}

	assert.Empty(t, FormatEvent(pipeline.Event{Kind: pipeline.EventMessage, Message: &ledger.Message{Role: ledger.RoleUser, Content: "hi"}}))
	assert.Empty(t, FormatEvent(pipeline.Event{Kind: pipeline.EventMessage, Message: &ledger.Message{Role: ledger.RoleAssistant, IsFinalHTML: true}}))
}

func TestFormatEvent_TruncatesLongStatus(t *testing.T) {
	long := strings.Repeat("a", 500)
	out := FormatEvent(pipeline.Event{Kind: pipeline.EventStatus, Text: long})

	assert.Contains(t, out, "...")
	assert.NotContains(t, out, long)
}

func TestFormatSessionMetrics(t *testing.T) {
	t0 := time.Now()
	sm := &metrics.SessionMetrics{
		DurationMs: 1200,
		Searches:   1,
		Calls: []metrics.CallMetrics{
			{Phase: "intake", Start: t0, End: t0, Attempts: 1, Success: true},
			{Phase: "strategy", Attempts: 4, Success: false, Err: errors.New("AI communication failed").Error()},
		},
	}

	out := FormatSessionMetrics(sm)
	assert.Contains(t, out, "calls=2, attempts=5, searches=1")
	assert.Contains(t, out, "strategy failed after 4 attempt(s): AI communication failed")
	assert.Equal(t, "No metrics available.", FormatSessionMetrics(nil))
}

func TestFormatState(t *testing.T) {
	out := FormatState(pipeline.State{
		Phase:     pipeline.PhaseResearch,
		SubPhase:  pipeline.SubSendingToValidator,
		Tasks:     []string{"A", "B"},
		TaskIndex: 1,
		Status:    "⚖️ Validating",
	})
	assert.Contains(t, out, "Research (sending_research_to_validator, task 2/2)")
	assert.Contains(t, out, "  2. B")
}
