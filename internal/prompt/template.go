package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

var variablePattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Render replaces {{variable}} placeholders with values from vars. Every
// placeholder must have a value.
func Render(template string, vars map[string]string) (string, error) {
	if missing := missingVars(template, vars); len(missing) > 0 {
		return "", fmt.Errorf("missing template variables: %s", strings.Join(missing, ", "))
	}

	return variablePattern.ReplaceAllStringFunc(template, func(match string) string {
		return vars[match[2:len(match)-2]]
	}), nil
}

// Variables lists the distinct placeholder names in template, in order of
// first appearance.
func Variables(template string) []string {
	seen := make(map[string]bool)
	var names []string
	for _, m := range variablePattern.FindAllStringSubmatch(template, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

func missingVars(template string, vars map[string]string) []string {
	var missing []string
	for _, v := range Variables(template) {
		if _, ok := vars[v]; !ok {
			missing = append(missing, v)
		}
	}
	return missing
}
