// Package citation expands [[CITATION: ...]] markers in a finished brief.
package citation

import (
	"fmt"
	"regexp"
)

var markerRe = regexp.MustCompile(`\[\[CITATION:\s*(.+?)\s*\|\s*(.+?)\s*\|\s*(.+?)\s*\|\s*(.+?)\s*\|\s*(.+?)\]\]`)

type Citation struct {
	GRNo       string `json:"gr_no"`
	Petitioner string `json:"petitioner"`
	Date       string `json:"date"`
	Division   string `json:"division"`
	Syllabus   string `json:"syllabus"`
}

// Find returns the citations in text, in order of appearance.
func Find(text string) []Citation {
	var out []Citation
	for _, m := range markerRe.FindAllStringSubmatch(text, -1) {
		out = append(out, fromGroups(m))
	}
	return out
}

// Expand replaces every marker with render's output. Text outside markers
// is untouched.
func Expand(text string, render func(Citation) string) string {
	return markerRe.ReplaceAllStringFunc(text, func(marker string) string {
		return render(fromGroups(markerRe.FindStringSubmatch(marker)))
	})
}

// ExpandHTML replaces markers with the default citation card.
func ExpandHTML(text string) string {
	return Expand(text, Card)
}

// Card renders c as a styled block. Field values are inserted verbatim.
func Card(c Citation) string {
	return fmt.Sprintf(`
<div class="my-4 p-4 bg-slate-50 border-l-4 border-blue-700 rounded-r-md shadow-sm">
  <p class="font-bold text-slate-900">%s</p>
  <p class="italic text-slate-700">%s</p>
  <p class="text-sm text-slate-600">%s | %s</p>
  <hr class="my-2">
  <p class="text-slate-800 text-sm">%s</p>
</div>
`, c.GRNo, c.Petitioner, c.Date, c.Division, c.Syllabus)
}

func fromGroups(m []string) Citation {
	return Citation{GRNo: m[1], Petitioner: m[2], Date: m[3], Division: m[4], Syllabus: m[5]}
}
