package engine

import (
	"fmt"
	"regexp"
	"strings"

	"matchpoint/internal/types"
)

// The analysis service returns suggestions as one opaque text blob. When it
// cooperates, the blob has numbered markdown headers; when it does not, we
// degrade to paragraph and then line splitting.
var suggestionHeaderRe = regexp.MustCompile(`(?m)^\s*\*\*(\d+)\.\s*(.+?)\*\*\s*$`)

var blankLineRe = regexp.MustCompile(`\n\s*\n`)

// Fixed heuristic weight per suggestion; the service gives no per-item
// scoring signal.
const suggestionPoints = 5

const autofixLabel = "Auto Fix"

// ParseSuggestions splits a raw suggestion blob into discrete actionable
// items. Fallback chain: numbered markdown headers, then blank-line
// paragraphs, then single lines. Empty or unparseable input yields an empty
// list, never an error.
func ParseSuggestions(raw string) []types.Suggestion {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	if matches := suggestionHeaderRe.FindAllStringSubmatchIndex(trimmed, -1); len(matches) > 0 {
		return parseHeaderSections(trimmed, matches)
	}

	segments := blankLineRe.Split(trimmed, -1)
	if len(nonEmpty(segments)) < 2 {
		segments = strings.Split(trimmed, "\n")
	}

	var suggestions []types.Suggestion
	for _, segment := range nonEmpty(segments) {
		suggestions = append(suggestions, types.Suggestion{
			Title:        fmt.Sprintf("Suggestion %d", len(suggestions)+1),
			Description:  segment,
			Points:       suggestionPoints,
			AutofixLabel: autofixLabel,
		})
	}
	return suggestions
}

// parseHeaderSections splits on `**N. Title**` headers; each section's body
// runs until the next header.
func parseHeaderSections(raw string, matches [][]int) []types.Suggestion {
	suggestions := make([]types.Suggestion, 0, len(matches))
	for i, m := range matches {
		title := strings.TrimSpace(raw[m[4]:m[5]])

		bodyStart := m[1]
		bodyEnd := len(raw)
		if i+1 < len(matches) {
			bodyEnd = matches[i+1][0]
		}
		body := strings.TrimSpace(raw[bodyStart:bodyEnd])
		if body == "" {
			// Header with no body still names an action.
			body = title
		}

		suggestions = append(suggestions, types.Suggestion{
			Title:        title,
			Description:  body,
			Points:       suggestionPoints,
			AutofixLabel: autofixLabel,
		})
	}
	return suggestions
}

func nonEmpty(segments []string) []string {
	result := segments[:0:0]
	for _, s := range segments {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
