package display

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/glamour"
	"golang.org/x/net/html"

	"lawgpt/internal/citation"
	"lawgpt/internal/logger"
	"lawgpt/internal/tags"
)

const wordWrap = 100

var (
	htmlTagRe  = regexp.MustCompile(`(?i)<(h[1-6]|p|ul|ol|li|div|strong|em|br|hr)\b`)
	spaceRunRe = regexp.MustCompile(`\s+`)
)

// RenderBrief expands citation markers into cards and removes leftover
// directives, giving the HTML fragment shown to the reader.
func RenderBrief(final string) string {
	return tags.Strip(citation.ExpandHTML(final))
}

// RenderFinal formats the final brief for a terminal. HTML is flattened to
// text; Markdown goes through glamour.
func RenderFinal(final string) string {
	if looksLikeHTML(final) {
		return BriefText(RenderBrief(final))
	}
	return RenderMarkdown(tags.Strip(citation.Expand(final, markdownCard)))
}

// RenderMarkdown renders md for the terminal, falling back to the raw text.
func RenderMarkdown(md string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log.Warnw("markdown render panicked", "panic", r)
			out = md
		}
	}()
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wordWrap),
	)
	if err != nil {
		return md
	}
	rendered, err := r.Render(md)
	if err != nil {
		return md
	}
	return rendered
}

// BriefText flattens an HTML fragment into readable plain text.
func BriefText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	var sb strings.Builder
	doc.Find("h1, h2, h3, h4, h5, h6, p, li").Each(func(_ int, sel *goquery.Selection) {
		name := goquery.NodeName(sel)
		if name == "p" && sel.ParentsFiltered("li").Length() > 0 {
			return
		}
		text := collapse(sel.Text())
		if text == "" {
			return
		}
		switch name {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			sb.WriteString(labelStyle.Render(text) + "\n\n")
		case "li":
			sb.WriteString("  • " + text + "\n")
		default:
			sb.WriteString(text + "\n\n")
		}
	})
	if sb.Len() == 0 {
		return collapse(doc.Text())
	}
	return strings.TrimRight(sb.String(), "\n") + "\n"
}

// Document wraps a brief fragment in a standalone HTML page.
func Document(title, body string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<script src="https://cdn.tailwindcss.com"></script>
</head>
<body class="max-w-3xl mx-auto p-8 prose">
%s
</body>
</html>
`, html.EscapeString(title), body)
}

func markdownCard(c citation.Citation) string {
	return fmt.Sprintf("\n\n> **%s**  \n> *%s*  \n> %s | %s  \n>  \n> %s\n\n",
		c.GRNo, c.Petitioner, c.Date, c.Division, c.Syllabus)
}

func looksLikeHTML(s string) bool {
	return htmlTagRe.MatchString(s)
}

func collapse(s string) string {
	return strings.TrimSpace(spaceRunRe.ReplaceAllString(s, " "))
}
