package types

import "time"

// ResumeSnapshot is the durable record of the active resume for one job
// seeker. Exactly one snapshot is active per job-seeker identity at a time.
type ResumeSnapshot struct {
	JobSeekerID    string `json:"jobSeekerId"`
	ResumeID       string `json:"resumeId"`
	ResumeFileName string `json:"resumeFileName"`
	ResumeText     string `json:"resumeText"`
	// OriginalResumeText is captured once, immediately before the first
	// applied suggestion mutates ResumeText. Empty until then.
	OriginalResumeText string     `json:"originalResumeText,omitempty"`
	ExtractedSkills    []string   `json:"extractedSkills"`
	UploadedAt         time.Time  `json:"uploadedAt"`
	JobMatches         []JobMatch `json:"jobMatches"`
}

// HasOriginal reports whether the pre-first-apply resume text was captured.
func (s *ResumeSnapshot) HasOriginal() bool {
	return s != nil && s.OriginalResumeText != ""
}

// MatchFor returns the baseline JobMatch whose normalized key equals jobKey.
func (s *ResumeSnapshot) MatchFor(jobKey string) *JobMatch {
	if s == nil {
		return nil
	}
	for i := range s.JobMatches {
		if s.JobMatches[i].Key() == jobKey {
			return &s.JobMatches[i]
		}
	}
	return nil
}

// JobMatch is the baseline scoring of the resume against one job posting, as
// returned by the analysis service.
type JobMatch struct {
	JobID           string   `json:"jobId"`
	GoogleJobID     string   `json:"googleJobId"`
	JobTitle        string   `json:"jobTitle"`
	CompanyName     string   `json:"companyName"`
	MatchPercentage int      `json:"matchPercentage"`
	MatchedSkills   []string `json:"matchedSkills"`
	MissingSkills   []string `json:"missingSkills"`
	// AISuggestions is the raw suggestion blob from the analysis service,
	// parsed into discrete Suggestion items on demand.
	AISuggestions string `json:"aiSuggestions"`
}

// Key returns the normalized job identity. The analysis service and the job
// catalog use different identity spaces, so the effective key is resolved once
// with a fixed precedence (googleJobId, then jobId) instead of ad hoc per
// call site.
func (m *JobMatch) Key() string {
	if m.GoogleJobID != "" {
		return m.GoogleJobID
	}
	return m.JobID
}

// Suggestion is one actionable item parsed out of a JobMatch's raw suggestion
// text. Derived on demand, never persisted standalone.
type Suggestion struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	Points       int    `json:"points"`
	AutofixLabel string `json:"autofixLabel"`
}

// WorkingState is the session-local overlay for one job: the match state as
// edited by applied suggestions, layered over the JobMatch baseline. Absent
// until the first apply for that job.
type WorkingState struct {
	Suggestions     string `json:"suggestions"`
	MatchPercentage int    `json:"matchPercentage"`
	ResumeText      string `json:"resumeText"`
}

// AnalyzeResult is the response shape of the analysis service's full baseline
// analysis call.
type AnalyzeResult struct {
	ResumeID        string     `json:"resumeId"`
	ResumeFile      string     `json:"resumeFile"`
	ResumeText      string     `json:"resumeText"`
	JobSeekerID     string     `json:"jobSeekerId"`
	ExtractedSkills []string   `json:"extractedSkills"`
	JobMatches      []JobMatch `json:"jobMatches"`
}

// AutoImproveRequest asks the analysis service to rewrite the resume text to
// satisfy exactly one suggestion. ResumeText must be the current text
// including all prior applies; the service is stateless per call.
type AutoImproveRequest struct {
	Action      string `json:"action"`
	ResumeText  string `json:"resumeText"`
	GoogleJobID string `json:"googleJobId"`
	JobSeekerID string `json:"jobSeekerId"`
	Suggestion  string `json:"suggestion"`
}

// ActionApplySuggestion is the action verb the auto-improve endpoint expects.
const ActionApplySuggestion = "apply_suggestion"

// AutoImproveResult is the authoritative post-apply state returned by the
// analysis service. The match percentage is never recomputed locally.
type AutoImproveResult struct {
	ResumeText      string `json:"resumeText"`
	MatchPercentage int    `json:"matchPercentage"`
	Suggestions     string `json:"suggestions"`
}

// JobMatchPage is one page of a bulk re-analysis.
type JobMatchPage struct {
	JobMatches []JobMatch `json:"jobMatches"`
	Page       int        `json:"page"`
	Size       int        `json:"size"`
	Total      int        `json:"totalElements"`
}

// EffectiveMatch is the overlay-resolved view of one job: working state where
// present, baseline otherwise.
type EffectiveMatch struct {
	JobKey          string       `json:"jobKey"`
	JobTitle        string       `json:"jobTitle"`
	CompanyName     string       `json:"companyName"`
	MatchPercentage int          `json:"matchPercentage"`
	ResumeText      string       `json:"resumeText"`
	Suggestions     []Suggestion `json:"suggestions"`
	Applied         bool         `json:"applied"`
	CanDownload     bool         `json:"canDownload"`
}
