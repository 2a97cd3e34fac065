package formatters

import (
	"encoding/json"
	"fmt"
	"strings"

	"matchpoint/internal/types"
)

// Formatter interface for different output formats
type Formatter interface {
	Format(data any) (string, error)
	SupportedType() string
}

// FormatterRegistry manages all available formatters
type FormatterRegistry struct {
	formatters map[string]map[string]Formatter // format -> type -> formatter
}

// NewFormatterRegistry creates a new formatter registry with default formatters
func NewFormatterRegistry() *FormatterRegistry {
	registry := &FormatterRegistry{
		formatters: make(map[string]map[string]Formatter),
	}

	// Register default formatters
	registry.RegisterFormatter("json", "any", &JSONFormatter{})
	registry.RegisterFormatter("text", "ResumeSnapshot", &SnapshotTextFormatter{})
	registry.RegisterFormatter("markdown", "ResumeSnapshot", &SnapshotMarkdownFormatter{})
	registry.RegisterFormatter("text", "JobMatchPage", &MatchPageTextFormatter{})
	registry.RegisterFormatter("markdown", "JobMatchPage", &MatchPageMarkdownFormatter{})
	registry.RegisterFormatter("text", "EffectiveMatch", &EffectiveTextFormatter{})
	registry.RegisterFormatter("markdown", "EffectiveMatch", &EffectiveMarkdownFormatter{})

	return registry
}

// RegisterFormatter registers a new formatter for a specific format and data type
func (fr *FormatterRegistry) RegisterFormatter(format, dataType string, formatter Formatter) {
	if fr.formatters[format] == nil {
		fr.formatters[format] = make(map[string]Formatter)
	}
	fr.formatters[format][dataType] = formatter
}

// Format formats data using the appropriate formatter
func (fr *FormatterRegistry) Format(data any, format string) (string, error) {
	dataType := getDataType(data)

	// Try specific formatter first
	if formatters, exists := fr.formatters[format]; exists {
		if formatter, exists := formatters[dataType]; exists {
			return formatter.Format(data)
		}
		// Fall back to generic formatter
		if formatter, exists := formatters["any"]; exists {
			return formatter.Format(data)
		}
	}

	return "", fmt.Errorf("no formatter found for format '%s' and type '%s'", format, dataType)
}

// GetSupportedFormats returns all supported formats
func (fr *FormatterRegistry) GetSupportedFormats() []string {
	formats := make([]string, 0, len(fr.formatters))
	for format := range fr.formatters {
		formats = append(formats, format)
	}
	return formats
}

func getDataType(data any) string {
	switch data.(type) {
	case types.ResumeSnapshot, *types.ResumeSnapshot:
		return "ResumeSnapshot"
	case types.JobMatchPage, *types.JobMatchPage:
		return "JobMatchPage"
	case types.EffectiveMatch, *types.EffectiveMatch:
		return "EffectiveMatch"
	default:
		return "any"
	}
}

func asSnapshot(data any) (types.ResumeSnapshot, bool) {
	switch v := data.(type) {
	case types.ResumeSnapshot:
		return v, true
	case *types.ResumeSnapshot:
		return *v, true
	}
	return types.ResumeSnapshot{}, false
}

func asMatchPage(data any) (types.JobMatchPage, bool) {
	switch v := data.(type) {
	case types.JobMatchPage:
		return v, true
	case *types.JobMatchPage:
		return *v, true
	}
	return types.JobMatchPage{}, false
}

func asEffective(data any) (types.EffectiveMatch, bool) {
	switch v := data.(type) {
	case types.EffectiveMatch:
		return v, true
	case *types.EffectiveMatch:
		return *v, true
	}
	return types.EffectiveMatch{}, false
}

// JSONFormatter handles JSON formatting for any data type
type JSONFormatter struct{}

func (jf *JSONFormatter) Format(data any) (string, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(jsonData), nil
}

func (jf *JSONFormatter) SupportedType() string {
	return "any"
}

// SnapshotTextFormatter handles text formatting for resume snapshots
type SnapshotTextFormatter struct{}

func (stf *SnapshotTextFormatter) Format(data any) (string, error) {
	result, ok := asSnapshot(data)
	if !ok {
		return "", fmt.Errorf("expected ResumeSnapshot, got %T", data)
	}

	var output strings.Builder

	output.WriteString("=== RESUME ANALYSIS ===\n\n")
	output.WriteString(fmt.Sprintf("Resume: %s (id %s)\n", result.ResumeFileName, result.ResumeID))
	output.WriteString(fmt.Sprintf("Uploaded: %s\n", result.UploadedAt.Format("2006-01-02 15:04:05")))
	output.WriteString("\n")

	if len(result.ExtractedSkills) > 0 {
		output.WriteString("=== EXTRACTED SKILLS ===\n")
		for _, skill := range result.ExtractedSkills {
			output.WriteString(fmt.Sprintf("- %s\n", skill))
		}
		output.WriteString("\n")
	}

	output.WriteString("=== JOB MATCHES ===\n")
	if len(result.JobMatches) == 0 {
		output.WriteString("No matching jobs found.\n")
		return output.String(), nil
	}
	for i, match := range result.JobMatches {
		output.WriteString(fmt.Sprintf("%d. %s at %s (%d%%)\n", i+1, match.JobTitle, match.CompanyName, match.MatchPercentage))
		output.WriteString(fmt.Sprintf("   Job key: %s\n", match.Key()))
		if len(match.MatchedSkills) > 0 {
			output.WriteString(fmt.Sprintf("   Matched skills: %s\n", strings.Join(match.MatchedSkills, ", ")))
		}
		if len(match.MissingSkills) > 0 {
			output.WriteString(fmt.Sprintf("   Missing skills: %s\n", strings.Join(match.MissingSkills, ", ")))
		}
		output.WriteString("\n")
	}

	return output.String(), nil
}

func (stf *SnapshotTextFormatter) SupportedType() string {
	return "ResumeSnapshot"
}

// SnapshotMarkdownFormatter handles markdown formatting for resume snapshots
type SnapshotMarkdownFormatter struct{}

func (smf *SnapshotMarkdownFormatter) Format(data any) (string, error) {
	result, ok := asSnapshot(data)
	if !ok {
		return "", fmt.Errorf("expected ResumeSnapshot, got %T", data)
	}

	var output strings.Builder

	output.WriteString("# Resume Analysis\n\n")
	output.WriteString(fmt.Sprintf("**Resume:** %s (id %s)\n\n", result.ResumeFileName, result.ResumeID))
	output.WriteString(fmt.Sprintf("**Uploaded:** %s\n\n", result.UploadedAt.Format("2006-01-02 15:04:05")))

	if len(result.ExtractedSkills) > 0 {
		output.WriteString("## Extracted Skills\n\n")
		for _, skill := range result.ExtractedSkills {
			output.WriteString(fmt.Sprintf("- %s\n", skill))
		}
		output.WriteString("\n")
	}

	output.WriteString("## Job Matches\n\n")
	if len(result.JobMatches) == 0 {
		output.WriteString("No matching jobs found.\n")
		return output.String(), nil
	}
	for i, match := range result.JobMatches {
		output.WriteString(fmt.Sprintf("### %d. %s at %s\n\n", i+1, match.JobTitle, match.CompanyName))
		output.WriteString(fmt.Sprintf("**Match:** %d%%\n\n", match.MatchPercentage))
		output.WriteString(fmt.Sprintf("**Job key:** `%s`\n\n", match.Key()))
		if len(match.MatchedSkills) > 0 {
			output.WriteString(fmt.Sprintf("**Matched skills:** %s\n\n", strings.Join(match.MatchedSkills, ", ")))
		}
		if len(match.MissingSkills) > 0 {
			output.WriteString(fmt.Sprintf("**Missing skills:** %s\n\n", strings.Join(match.MissingSkills, ", ")))
		}
	}

	return output.String(), nil
}

func (smf *SnapshotMarkdownFormatter) SupportedType() string {
	return "ResumeSnapshot"
}

// MatchPageTextFormatter handles text formatting for paginated match results
type MatchPageTextFormatter struct{}

func (mtf *MatchPageTextFormatter) Format(data any) (string, error) {
	result, ok := asMatchPage(data)
	if !ok {
		return "", fmt.Errorf("expected JobMatchPage, got %T", data)
	}

	var output strings.Builder

	output.WriteString("=== JOB MATCHES ===\n")
	output.WriteString(fmt.Sprintf("Page %d (size %d, %d total)\n\n", result.Page, result.Size, result.Total))

	if len(result.JobMatches) == 0 {
		output.WriteString("No matches on this page.\n")
		return output.String(), nil
	}

	for i, match := range result.JobMatches {
		output.WriteString(fmt.Sprintf("%d. %s at %s (%d%%)\n", i+1, match.JobTitle, match.CompanyName, match.MatchPercentage))
		output.WriteString(fmt.Sprintf("   Job key: %s\n", match.Key()))
		if len(match.MissingSkills) > 0 {
			output.WriteString(fmt.Sprintf("   Missing skills: %s\n", strings.Join(match.MissingSkills, ", ")))
		}
	}

	return output.String(), nil
}

func (mtf *MatchPageTextFormatter) SupportedType() string {
	return "JobMatchPage"
}

// MatchPageMarkdownFormatter handles markdown formatting for paginated match
// results
type MatchPageMarkdownFormatter struct{}

func (mmf *MatchPageMarkdownFormatter) Format(data any) (string, error) {
	result, ok := asMatchPage(data)
	if !ok {
		return "", fmt.Errorf("expected JobMatchPage, got %T", data)
	}

	var output strings.Builder

	output.WriteString("# Job Matches\n\n")
	output.WriteString(fmt.Sprintf("Page %d (size %d, %d total)\n\n", result.Page, result.Size, result.Total))

	if len(result.JobMatches) == 0 {
		output.WriteString("No matches on this page.\n")
		return output.String(), nil
	}

	output.WriteString("| # | Job | Company | Match | Job key |\n")
	output.WriteString("|---|-----|---------|-------|--------|\n")
	for i, match := range result.JobMatches {
		output.WriteString(fmt.Sprintf("| %d | %s | %s | %d%% | `%s` |\n",
			i+1, match.JobTitle, match.CompanyName, match.MatchPercentage, match.Key()))
	}

	return output.String(), nil
}

func (mmf *MatchPageMarkdownFormatter) SupportedType() string {
	return "JobMatchPage"
}

// EffectiveTextFormatter handles text formatting for effective match views
type EffectiveTextFormatter struct{}

func (etf *EffectiveTextFormatter) Format(data any) (string, error) {
	result, ok := asEffective(data)
	if !ok {
		return "", fmt.Errorf("expected EffectiveMatch, got %T", data)
	}

	var output strings.Builder

	output.WriteString("=== MATCH STATE ===\n\n")
	output.WriteString(fmt.Sprintf("Job: %s at %s\n", result.JobTitle, result.CompanyName))
	output.WriteString(fmt.Sprintf("Job key: %s\n", result.JobKey))
	output.WriteString(fmt.Sprintf("Match: %d%%\n", result.MatchPercentage))
	output.WriteString(fmt.Sprintf("Suggestions applied: %t\n", result.Applied))
	output.WriteString(fmt.Sprintf("Download unlocked: %t\n\n", result.CanDownload))

	if len(result.Suggestions) > 0 {
		output.WriteString("=== SUGGESTIONS ===\n\n")
		for i, suggestion := range result.Suggestions {
			output.WriteString(fmt.Sprintf("%d. %s", i+1, suggestion.Title))
			if suggestion.Points > 0 {
				output.WriteString(fmt.Sprintf(" (+%d%%)", suggestion.Points))
			}
			output.WriteString("\n")
			output.WriteString("   ")
			output.WriteString(suggestion.Description)
			output.WriteString("\n\n")
		}
	} else {
		output.WriteString("No remaining suggestions.\n\n")
	}

	output.WriteString("=== RESUME ===\n\n")
	output.WriteString(result.ResumeText)
	output.WriteString("\n")

	return output.String(), nil
}

func (etf *EffectiveTextFormatter) SupportedType() string {
	return "EffectiveMatch"
}

// EffectiveMarkdownFormatter handles markdown formatting for effective match
// views
type EffectiveMarkdownFormatter struct{}

func (emf *EffectiveMarkdownFormatter) Format(data any) (string, error) {
	result, ok := asEffective(data)
	if !ok {
		return "", fmt.Errorf("expected EffectiveMatch, got %T", data)
	}

	var output strings.Builder

	output.WriteString("# Match State\n\n")
	output.WriteString(fmt.Sprintf("**Job:** %s at %s\n\n", result.JobTitle, result.CompanyName))
	output.WriteString(fmt.Sprintf("**Job key:** `%s`\n\n", result.JobKey))
	output.WriteString(fmt.Sprintf("**Match:** %d%%\n\n", result.MatchPercentage))
	output.WriteString(fmt.Sprintf("**Suggestions applied:** %t\n\n", result.Applied))
	output.WriteString(fmt.Sprintf("**Download unlocked:** %t\n\n", result.CanDownload))

	if len(result.Suggestions) > 0 {
		output.WriteString("## Suggestions\n\n")
		for i, suggestion := range result.Suggestions {
			output.WriteString(fmt.Sprintf("### %d. %s\n\n", i+1, suggestion.Title))
			if suggestion.Points > 0 {
				output.WriteString(fmt.Sprintf("**Points:** +%d%%\n\n", suggestion.Points))
			}
			output.WriteString(suggestion.Description)
			output.WriteString("\n\n")
		}
	} else {
		output.WriteString("## No Remaining Suggestions\n\n")
	}

	output.WriteString("## Resume\n\n")
	output.WriteString(result.ResumeText)
	output.WriteString("\n")

	return output.String(), nil
}

func (emf *EffectiveMarkdownFormatter) SupportedType() string {
	return "EffectiveMatch"
}

// Global formatter registry
var GlobalRegistry = NewFormatterRegistry()
