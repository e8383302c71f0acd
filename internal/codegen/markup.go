package codegen

import (
	"regexp"
	"strings"
)

var (
	fenceRe     = regexp.MustCompile("(?s)```[a-zA-Z0-9_-]*[ \t]*\r?\n(.*?)```")
	openFenceRe = regexp.MustCompile("```[a-zA-Z0-9_-]*[ \t]*\r?\n")
	styleRe     = regexp.MustCompile(`(?is)<style[^>]*>(.*?)</style>`)
)

// CleanMarkup removes Markdown code fences that models wrap around their
// output. Multiple fenced blocks (e.g. html then css) are joined in order.
// A final fence that never closes, as when output stops at the token limit,
// contributes everything after it. Text without fences is returned trimmed.
func CleanMarkup(raw string) string {
	matches := fenceRe.FindAllStringSubmatchIndex(raw, -1)
	blocks := make([]string, 0, len(matches)+1)
	for _, m := range matches {
		if b := strings.TrimSpace(raw[m[2]:m[3]]); b != "" {
			blocks = append(blocks, b)
		}
	}

	rest := raw
	if len(matches) > 0 {
		rest = raw[matches[len(matches)-1][1]:]
	}
	if loc := openFenceRe.FindStringIndex(rest); loc != nil {
		if b := strings.TrimSpace(rest[loc[1]:]); b != "" {
			blocks = append(blocks, b)
		}
	} else if len(matches) == 0 {
		return strings.TrimSpace(raw)
	}
	return strings.Join(blocks, "\n\n")
}

// SplitStyles separates the contents of every <style> element from the rest
// of the markup.
func SplitStyles(markup string) (html, css string) {
	var styles []string
	for _, m := range styleRe.FindAllStringSubmatch(markup, -1) {
		if s := strings.TrimSpace(m[1]); s != "" {
			styles = append(styles, s)
		}
	}
	html = strings.TrimSpace(styleRe.ReplaceAllString(markup, ""))
	return html, strings.Join(styles, "\n\n")
}
