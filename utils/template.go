package utils

import (
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)

// RenderTemplate replaces {{key}} placeholders with vars[key].
// Keys are matched lowercase; unknown keys render as the empty string.
func RenderTemplate(content string, vars map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(content, func(m string) string {
		key := placeholderRe.FindStringSubmatch(m)[1]
		return vars[strings.ToLower(key)]
	})
}
