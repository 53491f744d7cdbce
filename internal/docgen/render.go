package docgen

import (
	"regexp"
	"strings"
)

var numberedRe = regexp.MustCompile(`^\d+\.\s+`)

// RenderDocument normalizes the model's markdown line by line under a single
// document title: headings up to four levels, numbered and bulleted lists,
// horizontal rules and plain paragraphs. Inline bold/italic/code spans pass
// through untouched. Blank lines collapse; list items stay adjacent while
// other blocks are separated by one empty line.
func RenderDocument(title, md string) string {
	var b strings.Builder
	b.WriteString("# " + strings.TrimSpace(title) + "\n")

	prevList := false
	for _, raw := range strings.Split(md, "\n") {
		line, isList := renderLine(raw)
		if line == "" {
			continue
		}
		if !(prevList && isList) {
			b.WriteString("\n")
		}
		b.WriteString(line + "\n")
		prevList = isList
	}
	return b.String()
}

// renderLine classifies one markdown line and returns its normalized form.
// The second result reports whether the line is a list item.
func renderLine(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	switch {
	case s == "":
		return "", false
	case s == "---":
		return "---", false
	case strings.HasPrefix(s, "#### "):
		return "#### " + strings.TrimSpace(s[5:]), false
	case strings.HasPrefix(s, "### "):
		return "### " + strings.TrimSpace(s[4:]), false
	case strings.HasPrefix(s, "## "):
		return "## " + strings.TrimSpace(s[3:]), false
	case strings.HasPrefix(s, "# "):
		// The document already has its title; demote stray top-level
		// headings one step.
		return "## " + strings.TrimSpace(s[2:]), false
	case numberedRe.MatchString(s):
		return s, true
	case strings.HasPrefix(s, "- "):
		return "- " + strings.TrimSpace(s[2:]), true
	case strings.HasPrefix(s, "* "):
		return "- " + strings.TrimSpace(s[2:]), true
	default:
		return s, false
	}
}
