package citation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const brief = `<h2>Holding</h2>
<p>See [[CITATION: G.R. No. 123 | Cruz v. People | 1 Jan 2020 | First Division | Dismissal upheld.]] and
[[CITATION:G.R. No. 456|Santos v. NLRC|2 Feb 2021|En Banc|Back wages awarded.]]</p>`

func TestFind(t *testing.T) {
	got := Find(brief)
	require.Len(t, got, 2)

	assert.Equal(t, Citation{
		GRNo:       "G.R. No. 123",
		Petitioner: "Cruz v. People",
		Date:       "1 Jan 2020",
		Division:   "First Division",
		Syllabus:   "Dismissal upheld.",
	}, got[0])
	assert.Equal(t, "G.R. No. 456", got[1].GRNo)
	assert.Equal(t, "Back wages awarded.", got[1].Syllabus)
}

func TestFind_IgnoresIncompleteMarkers(t *testing.T) {
	assert.Empty(t, Find("[[CITATION: only | three | fields]]"))
	assert.Empty(t, Find("[CITATION: a | b | c | d | e]"))
}

func TestExpandHTML(t *testing.T) {
	out := ExpandHTML(brief)

	assert.NotContains(t, out, "[[CITATION")
	assert.Contains(t, out, `<p class="font-bold text-slate-900">G.R. No. 123</p>`)
	assert.Contains(t, out, `<p class="text-sm text-slate-600">2 Feb 2021 | En Banc</p>`)
	assert.True(t, strings.HasPrefix(out, "<h2>Holding</h2>"))
	assert.Equal(t, 2, strings.Count(out, "<hr class=\"my-2\">"))
}

func TestExpand_Idempotent(t *testing.T) {
	once := ExpandHTML(brief)
	assert.Equal(t, once, ExpandHTML(once))
}

func TestExpand_CustomRenderer(t *testing.T) {
	out := Expand("Per [[CITATION: A | B | C | D | <b>E</b>]].", func(c Citation) string {
		return c.GRNo + "/" + c.Syllabus
	})
	assert.Equal(t, "Per A/<b>E</b>.", out)
}
