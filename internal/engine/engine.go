package engine

import (
	"context"
	"io"
	"sync"
	"time"

	"matchpoint/internal/analysis"
	"matchpoint/internal/cache"
	"matchpoint/internal/errors"
	"matchpoint/internal/session"
	"matchpoint/internal/types"
)

// Engine owns the suggestion reconciliation state machine. Per job the state
// moves Baseline -> Applying -> Applied, with Reverted dropping back to the
// baseline view. Applies for the same (jobSeekerID, job) pair are strictly
// serialized; applies across different jobs run concurrently, with the
// persisted resume text being last-writer-wins (each apply's payload carries
// the pre-apply text it started from, so no apply reads torn state — but the
// final persisted text reflects whichever apply completed last).
type Engine struct {
	cache   *cache.Store
	session *session.Store
	client  analysis.Client
	logger  *errors.Logger

	mu       sync.Mutex
	inFlight map[applyKey]struct{}
}

type applyKey struct {
	jobSeekerID string
	jobKey      string
}

// New creates an Engine over the given stores and analysis client
func New(cacheStore *cache.Store, sessionStore *session.Store, client analysis.Client, logger *errors.Logger) *Engine {
	return &Engine{
		cache:    cacheStore,
		session:  sessionStore,
		client:   client,
		logger:   logger,
		inFlight: make(map[applyKey]struct{}),
	}
}

// acquire marks an apply in flight for the job, failing when one already is
func (e *Engine) acquire(key applyKey) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.inFlight[key]; busy {
		return errors.NewApplyError(errors.ErrCodeApplyInFlight,
			"An apply is already in flight for this job", nil).
			WithContext("job_key", key.jobKey)
	}
	e.inFlight[key] = struct{}{}
	return nil
}

// release clears the in-flight flag. Must run regardless of outcome, or the
// job's apply control stays stuck.
func (e *Engine) release(key applyKey) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, key)
}

// Analyze runs the baseline analysis for an uploaded resume, persists the
// snapshot, and drops any session overlays from a previous upload.
func (e *Engine) Analyze(ctx context.Context, jobSeekerID, fileName string, file io.Reader) (*types.ResumeSnapshot, error) {
	result, err := e.client.Analyze(ctx, jobSeekerID, fileName, file)
	if err != nil {
		// No partial state: a failed analysis writes nothing.
		return nil, err
	}

	snap := &types.ResumeSnapshot{
		JobSeekerID:     jobSeekerID,
		ResumeID:        result.ResumeID,
		ResumeFileName:  fileName,
		ResumeText:      result.ResumeText,
		ExtractedSkills: result.ExtractedSkills,
		UploadedAt:      time.Now().UTC(),
		JobMatches:      result.JobMatches,
	}
	if result.ResumeFile != "" {
		snap.ResumeFileName = result.ResumeFile
	}

	if err := e.cache.SaveSnapshot(ctx, snap); err != nil {
		return nil, err
	}

	// A new upload invalidates every per-job overlay.
	e.session.ResetAll(jobSeekerID)

	e.logger.Info("Resume analyzed",
		"job_seeker_id", jobSeekerID,
		"resume_id", snap.ResumeID,
		"job_matches", len(snap.JobMatches))
	return snap, nil
}

// Snapshot returns the active snapshot for the identity, nil when absent
func (e *Engine) Snapshot(ctx context.Context, jobSeekerID string) (*types.ResumeSnapshot, error) {
	return e.cache.LoadSnapshot(ctx, jobSeekerID)
}

// ClearSnapshot removes the identity's snapshot and session overlays
func (e *Engine) ClearSnapshot(ctx context.Context, jobSeekerID string) error {
	if err := e.cache.Clear(ctx, jobSeekerID); err != nil {
		return err
	}
	e.session.ResetAll(jobSeekerID)
	return nil
}

// Matches returns one page of bulk re-analysis. Listing only; the apply flow
// always works from the cached snapshot.
func (e *Engine) Matches(ctx context.Context, jobSeekerID string, page, size int) (*types.JobMatchPage, error) {
	return e.client.PaginatedAnalyze(ctx, jobSeekerID, page, size)
}

// ExtractSkills extracts skills from free-form resume text
func (e *Engine) ExtractSkills(ctx context.Context, text string) ([]string, error) {
	return e.client.ExtractSkills(ctx, text)
}

// Effective returns the overlay-resolved view of one job: working state
// where present, baseline otherwise.
func (e *Engine) Effective(ctx context.Context, jobSeekerID, jobKey string) (*types.EffectiveMatch, error) {
	snap, err := e.cache.LoadSnapshot(ctx, jobSeekerID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, errors.NewValidationError(errors.ErrCodeSnapshotNotFound,
			"No active resume snapshot", nil).WithContext("job_seeker_id", jobSeekerID)
	}
	match := snap.MatchFor(jobKey)
	if match == nil {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"Unknown job for this snapshot", nil).WithContext("job_key", jobKey)
	}
	return e.effectiveFor(snap, match, jobSeekerID), nil
}

// effectiveFor overlays session working state onto the baseline JobMatch
func (e *Engine) effectiveFor(snap *types.ResumeSnapshot, match *types.JobMatch, jobSeekerID string) *types.EffectiveMatch {
	jobKey := match.Key()
	effective := &types.EffectiveMatch{
		JobKey:          jobKey,
		JobTitle:        match.JobTitle,
		CompanyName:     match.CompanyName,
		MatchPercentage: match.MatchPercentage,
		ResumeText:      snap.ResumeText,
		Suggestions:     ParseSuggestions(match.AISuggestions),
	}

	if working, ok := e.session.GetEffective(jobSeekerID, jobKey); ok {
		effective.MatchPercentage = working.MatchPercentage
		effective.ResumeText = working.ResumeText
		effective.Suggestions = ParseSuggestions(working.Suggestions)
		effective.Applied = true
	}

	effective.CanDownload = effective.MatchPercentage == 100
	return effective
}

// CanDownload reports whether the job's effective match is exactly 100
func (e *Engine) CanDownload(ctx context.Context, jobSeekerID, jobKey string) (bool, error) {
	effective, err := e.Effective(ctx, jobSeekerID, jobKey)
	if err != nil {
		return false, err
	}
	return effective.CanDownload, nil
}

// ApplyInput names one suggestion to apply to one job. Suggestion, when set,
// is the literal description sent to the service; otherwise
// SuggestionIndex selects from the job's current effective suggestion list.
type ApplyInput struct {
	JobSeekerID     string
	JobKey          string
	SuggestionIndex int
	Suggestion      string
}

// Apply runs one suggestion through the auto-improve flow:
//  1. reject when an apply is already in flight for the job,
//  2. resolve the current resume text (overlay over snapshot),
//  3. capture the original text once, before the first mutation,
//  4. call auto-improve with the current text,
//  5. merge the authoritative result into session and cache.
//
// On failure the previous Baseline/Applied state is left untouched and the
// in-flight flag is cleared either way.
func (e *Engine) Apply(ctx context.Context, in ApplyInput) (*types.EffectiveMatch, error) {
	key := applyKey{in.JobSeekerID, in.JobKey}
	if err := e.acquire(key); err != nil {
		return nil, err
	}
	defer e.release(key)

	snap, err := e.cache.LoadSnapshot(ctx, in.JobSeekerID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, errors.NewValidationError(errors.ErrCodeSnapshotNotFound,
			"No active resume snapshot", nil).WithContext("job_seeker_id", in.JobSeekerID)
	}
	match := snap.MatchFor(in.JobKey)
	if match == nil {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"Unknown job for this snapshot", nil).WithContext("job_key", in.JobKey)
	}

	// Resolve effective state: suggestions and resume text come from the
	// overlay when one exists, else from the baseline snapshot.
	suggestionsRaw := match.AISuggestions
	resumeText := snap.ResumeText
	if working, ok := e.session.GetEffective(in.JobSeekerID, in.JobKey); ok {
		suggestionsRaw = working.Suggestions
		resumeText = working.ResumeText
	}

	suggestionText := in.Suggestion
	if suggestionText == "" {
		suggestions := ParseSuggestions(suggestionsRaw)
		if in.SuggestionIndex < 0 || in.SuggestionIndex >= len(suggestions) {
			return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest,
				"Suggestion index out of range", nil).
				WithContext("index", in.SuggestionIndex).
				WithContext("available", len(suggestions))
		}
		suggestionText = suggestions[in.SuggestionIndex].Description
	}

	// One-time capture of the pre-first-apply text, global to the resume
	// (one physical document shared across all job views).
	captured, err := e.cache.CaptureOriginal(ctx, in.JobSeekerID)
	if err != nil {
		return nil, err
	}
	if captured {
		e.logger.Debug("Captured original resume text", "job_seeker_id", in.JobSeekerID)
	}

	externalJobID := match.GoogleJobID
	if externalJobID == "" {
		externalJobID = match.JobID
	}

	result, err := e.client.AutoImprove(ctx, types.AutoImproveRequest{
		Action:      types.ActionApplySuggestion,
		ResumeText:  resumeText,
		GoogleJobID: externalJobID,
		JobSeekerID: in.JobSeekerID,
		Suggestion:  suggestionText,
	})
	if err != nil {
		// Previous state stays untouched; the caller re-enables the control.
		return nil, err
	}

	// The returned state is authoritative: replace, never merge.
	e.session.SetEffective(in.JobSeekerID, in.JobKey, types.WorkingState{
		Suggestions:     result.Suggestions,
		MatchPercentage: result.MatchPercentage,
		ResumeText:      result.ResumeText,
	})

	// The session overlay is the source of truth for this job's view; a
	// cache write failure degrades durability, not correctness.
	if err := e.cache.UpdateResumeText(ctx, in.JobSeekerID, result.ResumeText); err != nil {
		e.logger.LogError(err, "Failed to persist post-apply resume text",
			"job_seeker_id", in.JobSeekerID, "job_key", in.JobKey)
	}

	e.logger.Info("Suggestion applied",
		"job_seeker_id", in.JobSeekerID,
		"job_key", in.JobKey,
		"match_percentage", result.MatchPercentage)

	snap.ResumeText = result.ResumeText
	return e.effectiveFor(snap, match, in.JobSeekerID), nil
}

// Revert restores the original resume text and the job's baseline view.
// When no original was ever captured it is a no-op returning the current
// effective state. Shares the per-job in-flight guard with Apply so a revert
// cannot race an apply for the same job.
func (e *Engine) Revert(ctx context.Context, jobSeekerID, jobKey string) (*types.EffectiveMatch, error) {
	key := applyKey{jobSeekerID, jobKey}
	if err := e.acquire(key); err != nil {
		return nil, err
	}
	defer e.release(key)

	snap, err := e.cache.LoadSnapshot(ctx, jobSeekerID)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, errors.NewValidationError(errors.ErrCodeSnapshotNotFound,
			"No active resume snapshot", nil).WithContext("job_seeker_id", jobSeekerID)
	}
	match := snap.MatchFor(jobKey)
	if match == nil {
		return nil, errors.NewValidationError(errors.ErrCodeInvalidRequest,
			"Unknown job for this snapshot", nil).WithContext("job_key", jobKey)
	}

	if !snap.HasOriginal() {
		// Nothing was ever applied for this resume.
		return e.effectiveFor(snap, match, jobSeekerID), nil
	}

	if err := e.cache.RestoreOriginal(ctx, jobSeekerID); err != nil {
		return nil, err
	}
	// Dropping the overlay re-displays the baseline match and suggestions.
	e.session.Reset(jobSeekerID, jobKey)

	e.logger.Info("Reverted to original resume",
		"job_seeker_id", jobSeekerID,
		"job_key", jobKey)

	snap.ResumeText = snap.OriginalResumeText
	snap.OriginalResumeText = ""
	return e.effectiveFor(snap, match, jobSeekerID), nil
}

// Stats reports live state counts for the stats endpoint
func (e *Engine) Stats() map[string]any {
	e.mu.Lock()
	inFlight := len(e.inFlight)
	e.mu.Unlock()
	return map[string]any{
		"applies_in_flight": inFlight,
		"session_overlays":  e.session.Len(),
	}
}
