package enrich

import (
	"regexp"
	"strings"
)

var (
	controlChars   = regexp.MustCompile(`[\x00-\x1f\x7f-\x9f]`)
	multiSpace     = regexp.MustCompile(`\s+`)
	missingComma   = regexp.MustCompile(`(":\s*"[^"]*")\s*("[\w_]+"\s*:)`)
	trailingComma  = regexp.MustCompile(`,\s*}`)
	trailingCommaA = regexp.MustCompile(`,\s*]`)
)

// ExtractJSON pulls the first complete JSON object out of a model response.
// Responses often wrap the object in markdown fences or prose, occasionally
// emit several objects, and sometimes drop a comma; the output is the first
// balanced object with the common formatting faults repaired.
func ExtractJSON(response string) string {
	response = stripFences(response)

	start := strings.IndexByte(response, '{')
	if start < 0 {
		return strings.TrimSpace(response)
	}

	depth := 0
	for i := start; i < len(response); i++ {
		switch response[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return fixFormatting(response[start : i+1])
			}
		}
	}

	// Unbalanced braces; fall back to the widest span between the first '{'
	// and the last '}'.
	if end := strings.LastIndexByte(response, '}'); end > start {
		return fixFormatting(response[start : end+1])
	}
	return strings.TrimSpace(response)
}

func stripFences(s string) string {
	for _, fence := range []string{"```json", "```"} {
		if idx := strings.Index(s, fence); idx >= 0 {
			start := idx + len(fence)
			if end := strings.Index(s[start:], "```"); end >= 0 {
				return strings.TrimSpace(s[start : start+end])
			}
		}
	}
	return s
}

// fixFormatting repairs the recurring faults seen in model output: control
// characters, a missing comma between two key/value pairs, and trailing
// commas before a closing brace or bracket.
func fixFormatting(s string) string {
	s = controlChars.ReplaceAllString(s, "")
	s = multiSpace.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = missingComma.ReplaceAllString(s, "$1,$2")
	s = trailingComma.ReplaceAllString(s, "}")
	s = trailingCommaA.ReplaceAllString(s, "]")
	return s
}
