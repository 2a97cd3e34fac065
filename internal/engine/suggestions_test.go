package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSuggestionsNumberedHeaders(t *testing.T) {
	raw := "**1. Add Skill**\nAdd Python to your skills section.\n\n" +
		"**2. Quantify Impact**\nUse numbers in your experience bullets.\n\n" +
		"**3. Tighten Summary**\nCut the summary to three lines."

	suggestions := ParseSuggestions(raw)

	assert.Len(t, suggestions, 3)
	assert.Equal(t, "Add Skill", suggestions[0].Title)
	assert.Equal(t, "Quantify Impact", suggestions[1].Title)
	assert.Equal(t, "Tighten Summary", suggestions[2].Title)
	assert.Equal(t, "Add Python to your skills section.", suggestions[0].Description)
	assert.Equal(t, "Cut the summary to three lines.", suggestions[2].Description)
}

func TestParseSuggestionsBlankLineFallback(t *testing.T) {
	raw := "Add Python to your skills section.\n\nQuantify your achievements with numbers."

	suggestions := ParseSuggestions(raw)

	assert.Len(t, suggestions, 2)
	assert.Equal(t, "Suggestion 1", suggestions[0].Title)
	assert.Equal(t, "Suggestion 2", suggestions[1].Title)
	assert.Equal(t, "Add Python to your skills section.", suggestions[0].Description)
}

func TestParseSuggestionsNewlineFallback(t *testing.T) {
	raw := "Add Python\nAdd Docker\nAdd Kubernetes"

	suggestions := ParseSuggestions(raw)

	assert.Len(t, suggestions, 3)
	assert.Equal(t, "Suggestion 1", suggestions[0].Title)
	assert.Equal(t, "Add Docker", suggestions[1].Description)
}

func TestParseSuggestionsSingleBlob(t *testing.T) {
	suggestions := ParseSuggestions("Just one suggestion with no structure")

	assert.Len(t, suggestions, 1)
	assert.Equal(t, "Suggestion 1", suggestions[0].Title)
	assert.Equal(t, "Just one suggestion with no structure", suggestions[0].Description)
}

func TestParseSuggestionsEmpty(t *testing.T) {
	assert.Empty(t, ParseSuggestions(""))
	assert.Empty(t, ParseSuggestions("   \n\n  "))
}

func TestParseSuggestionsHeaderWithoutBody(t *testing.T) {
	suggestions := ParseSuggestions("**1. Add Skill**")

	assert.Len(t, suggestions, 1)
	assert.Equal(t, "Add Skill", suggestions[0].Title)
	assert.Equal(t, "Add Skill", suggestions[0].Description)
}

func TestParseSuggestionsPreservesOrder(t *testing.T) {
	raw := "**1. First**\nbody one\n**2. Second**\nbody two"

	suggestions := ParseSuggestions(raw)

	assert.Len(t, suggestions, 2)
	assert.Equal(t, "First", suggestions[0].Title)
	assert.Equal(t, "Second", suggestions[1].Title)
}

func TestParseSuggestionsFixedMetadata(t *testing.T) {
	suggestions := ParseSuggestions("Add Python")
	assert.Equal(t, 5, suggestions[0].Points)
	assert.Equal(t, "Auto Fix", suggestions[0].AutofixLabel)
}
