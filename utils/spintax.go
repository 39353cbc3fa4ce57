package utils

import (
	"math/rand"
	"regexp"
	"strings"
)

var (
	variablePattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*\}\}`)
	spintaxPattern  = regexp.MustCompile(`\{([^{}]*)\}`)
)

// maxSpintaxDepth bounds resolution of nested groups so a malformed template
// cannot loop forever.
const maxSpintaxDepth = 32

// RenderTemplate substitutes {{key}} tokens from variables (missing keys render
// as empty strings) and then resolves {a|b|c} spintax groups innermost-first,
// picking a uniform-random alternative per occurrence.
func RenderTemplate(raw string, variables map[string]string) string {
	if raw == "" {
		return ""
	}

	result := variablePattern.ReplaceAllStringFunc(raw, func(match string) string {
		key := variablePattern.FindStringSubmatch(match)[1]
		return variables[key]
	})

	for i := 0; i < maxSpintaxDepth && spintaxPattern.MatchString(result); i++ {
		result = spintaxPattern.ReplaceAllStringFunc(result, func(match string) string {
			options := strings.Split(match[1:len(match)-1], "|")
			return options[rand.Intn(len(options))]
		})
	}

	return result
}
