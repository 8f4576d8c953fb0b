package scope

import (
	"regexp"

	"golang.org/x/text/unicode/norm"

	"github.com/fernworks/docket/internal/todo"
)

// Marker patterns per detail category. Scanning is heuristic by design:
// the goal is catching obvious grain leaks (file paths, identifiers, line
// numbers, commands) in prose, not parsing code.
var markerPatterns = map[todo.DetailType][]*regexp.Regexp{
	todo.DetailFilePath: {
		// Bare file names with a code or config extension.
		regexp.MustCompile(`\b[\w./-]*\w+\.(?:go|ts|tsx|js|jsx|py|rs|rb|java|c|h|cpp|sql|proto|sh|md|json|yaml|yml|toml)\b`),
		// Slash paths rooted in conventional source directories.
		regexp.MustCompile(`\b(?:cmd|internal|pkg|src|lib|test|docs)/[\w./-]+`),
	},
	todo.DetailCodeIdentifier: {
		// Backtick-quoted code spans.
		regexp.MustCompile("`[^`\n]+`"),
		// Function or method call forms: Foo(), pkg.Bar().
		regexp.MustCompile(`\b\w+(?:\.\w+)*\(\)`),
		// snake_case identifiers of at least two words.
		regexp.MustCompile(`\b[a-z]+_[a-z0-9_]+\b`),
	},
	todo.DetailLineReference: {
		// file.go:42 style references.
		regexp.MustCompile(`\.\w+:\d+\b`),
		// "line 42" prose references.
		regexp.MustCompile(`(?i)\bline\s+\d+\b`),
	},
	todo.DetailShellCommand: {
		// "$ cmd" prompts.
		regexp.MustCompile(`(?m)(?:^|\s)\$\s+\S+`),
		// Common tool invocations.
		regexp.MustCompile(`\b(?:go|git|npm|make|docker)\s+(?:test|build|run|install|commit|push|apply)\b`),
	},
}

// finding is one raw marker hit before policy filtering.
type finding struct {
	detail  todo.DetailType
	offset  int
	excerpt string
}

// scanText returns every marker hit in the text, in category then offset
// order. Text is NFC-normalized first so decomposed Unicode in pasted
// paths cannot dodge the patterns.
func scanText(text string) []finding {
	text = norm.NFC.String(text)

	var findings []finding
	for _, dt := range todo.AllDetailTypes {
		for _, re := range markerPatterns[dt] {
			for _, loc := range re.FindAllStringIndex(text, -1) {
				findings = append(findings, finding{
					detail:  dt,
					offset:  loc[0],
					excerpt: text[loc[0]:loc[1]],
				})
			}
		}
	}
	return findings
}
