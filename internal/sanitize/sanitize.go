// Package sanitize cleans raw backend text: terminal escape stripping,
// code-fence removal and embedded-JSON extraction.
package sanitize

import (
	"regexp"
	"strings"
)

// ansiPattern matches CSI sequences (colors, cursor movement) and lone
// two-character escapes emitted by the backend's agent runtime.
var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b[@-Z\\-_]`)

// StripANSI removes terminal control sequences from s.
func StripANSI(s string) string {
	if !strings.ContainsRune(s, '\x1b') {
		return s
	}
	return ansiPattern.ReplaceAllString(s, "")
}

// StripFences removes markdown code-fence markers while keeping the fenced
// body. Language tags on the opening fence are dropped with it.
func StripFences(s string) string {
	if !strings.Contains(s, "```") {
		return s
	}
	var b strings.Builder
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// ExtractJSON isolates the first top-level JSON object embedded in content,
// which may be surrounded by prose. Returns "" when no balanced object is
// found. Braces inside string literals do not confuse the scan.
func ExtractJSON(content string) string {
	start := strings.Index(content, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		c := content[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return content[start : i+1]
			}
		}
	}
	return ""
}

var spaceRuns = regexp.MustCompile(`[ \t]+`)

// NormalizeWhitespace collapses runs of spaces and tabs while preserving
// embedded newlines, and trims the result.
func NormalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRuns.ReplaceAllString(line, " "))
	}
	// Drop leading/trailing blank lines but keep interior ones.
	start, end := 0, len(lines)
	for start < end && lines[start] == "" {
		start++
	}
	for end > start && lines[end-1] == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}
