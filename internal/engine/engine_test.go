package engine

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"matchpoint/internal/cache"
	"matchpoint/internal/errors"
	"matchpoint/internal/session"
	"matchpoint/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient scripts the analysis service for engine tests
type fakeClient struct {
	mu            sync.Mutex
	analyzeResult *types.AnalyzeResult
	improveFn     func(req types.AutoImproveRequest) (*types.AutoImproveResult, error)
	improveCalls  []types.AutoImproveRequest
}

func (f *fakeClient) Analyze(_ context.Context, jobSeekerID, _ string, _ io.Reader) (*types.AnalyzeResult, error) {
	result := *f.analyzeResult
	result.JobSeekerID = jobSeekerID
	return &result, nil
}

func (f *fakeClient) AutoImprove(_ context.Context, req types.AutoImproveRequest) (*types.AutoImproveResult, error) {
	f.mu.Lock()
	f.improveCalls = append(f.improveCalls, req)
	fn := f.improveFn
	f.mu.Unlock()
	return fn(req)
}

func (f *fakeClient) PaginatedAnalyze(_ context.Context, _ string, page, size int) (*types.JobMatchPage, error) {
	return &types.JobMatchPage{Page: page, Size: size}, nil
}

func (f *fakeClient) ExtractSkills(_ context.Context, _ string) ([]string, error) {
	return []string{"Go"}, nil
}

func (f *fakeClient) Stats() map[string]any { return map[string]any{} }
func (f *fakeClient) Close() error          { return nil }

func (f *fakeClient) calls() []types.AutoImproveRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.AutoImproveRequest(nil), f.improveCalls...)
}

func newTestEngine(t *testing.T, client *fakeClient) *Engine {
	t.Helper()
	logger, err := errors.New("error")
	require.NoError(t, err)
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store, session.NewStore(), client, logger)
}

func baselineAnalyzeResult() *types.AnalyzeResult {
	return &types.AnalyzeResult{
		ResumeID:        "r1",
		ResumeFile:      "resume.pdf",
		ResumeText:      "base resume",
		ExtractedSkills: []string{"Go"},
		JobMatches: []types.JobMatch{
			{GoogleJobID: "g1", JobTitle: "Backend Engineer", MatchPercentage: 60,
				AISuggestions: "**1. Add Skill**\nAdd Python"},
			{JobID: "j2", JobTitle: "SRE", MatchPercentage: 99,
				AISuggestions: "Add Terraform"},
		},
	}
}

func uploadBaseline(t *testing.T, e *Engine, client *fakeClient, jobSeekerID string) {
	t.Helper()
	client.analyzeResult = baselineAnalyzeResult()
	_, err := e.Analyze(context.Background(), jobSeekerID, "resume.pdf", strings.NewReader("base resume"))
	require.NoError(t, err)
}

func TestApplyScenario(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{
		improveFn: func(req types.AutoImproveRequest) (*types.AutoImproveResult, error) {
			return &types.AutoImproveResult{
				ResumeText:      req.ResumeText + " Python",
				MatchPercentage: 85,
				Suggestions:     "",
			}, nil
		},
	}
	e := newTestEngine(t, client)
	uploadBaseline(t, e, client, "seeker-1")

	effective, err := e.Apply(ctx, ApplyInput{JobSeekerID: "seeker-1", JobKey: "g1", SuggestionIndex: 0})
	require.NoError(t, err)

	assert.Equal(t, 85, effective.MatchPercentage)
	assert.True(t, effective.Applied)
	assert.False(t, effective.CanDownload, "85% must not unlock download")
	assert.Contains(t, effective.ResumeText, "Python")

	// The apply carried the current text and the suggestion description.
	calls := client.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "base resume", calls[0].ResumeText)
	assert.Equal(t, "Add Python", calls[0].Suggestion)
	assert.Equal(t, "g1", calls[0].GoogleJobID)
	assert.Equal(t, types.ActionApplySuggestion, calls[0].Action)

	// Cache persisted the post-apply text.
	snap, err := e.Snapshot(ctx, "seeker-1")
	require.NoError(t, err)
	assert.Contains(t, snap.ResumeText, "Python")
	assert.Equal(t, "base resume", snap.OriginalResumeText)
}

func TestSecondApplyCarriesStateForward(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{
		improveFn: func(req types.AutoImproveRequest) (*types.AutoImproveResult, error) {
			return &types.AutoImproveResult{
				ResumeText:      req.ResumeText + "+",
				MatchPercentage: 100,
				Suggestions:     "",
			}, nil
		},
	}
	e := newTestEngine(t, client)
	uploadBaseline(t, e, client, "seeker-1")

	_, err := e.Apply(ctx, ApplyInput{JobSeekerID: "seeker-1", JobKey: "g1", Suggestion: "first"})
	require.NoError(t, err)
	effective, err := e.Apply(ctx, ApplyInput{JobSeekerID: "seeker-1", JobKey: "g1", Suggestion: "second"})
	require.NoError(t, err)

	// Second call must start from the first call's output, not the original.
	calls := client.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "base resume", calls[0].ResumeText)
	assert.Equal(t, "base resume+", calls[1].ResumeText)

	assert.True(t, effective.CanDownload, "exactly 100 unlocks download")

	// Original capture is one-time: still the pre-first-apply text.
	snap, err := e.Snapshot(ctx, "seeker-1")
	require.NoError(t, err)
	assert.Equal(t, "base resume", snap.OriginalResumeText)
}

func TestSerializedAppliesPerJob(t *testing.T) {
	ctx := context.Background()
	block := make(chan struct{})
	started := make(chan struct{})
	var startedOnce sync.Once
	client := &fakeClient{
		improveFn: func(req types.AutoImproveRequest) (*types.AutoImproveResult, error) {
			startedOnce.Do(func() { close(started) })
			<-block
			return &types.AutoImproveResult{ResumeText: "done", MatchPercentage: 70}, nil
		},
	}
	e := newTestEngine(t, client)
	uploadBaseline(t, e, client, "seeker-1")

	firstDone := make(chan error, 1)
	go func() {
		_, err := e.Apply(ctx, ApplyInput{JobSeekerID: "seeker-1", JobKey: "g1", Suggestion: "s1"})
		firstDone <- err
	}()
	<-started

	// Second apply for the same job while the first is in flight is rejected.
	_, err := e.Apply(ctx, ApplyInput{JobSeekerID: "seeker-1", JobKey: "g1", Suggestion: "s2"})
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeApplyInFlight, appErr.Code)

	close(block)
	require.NoError(t, <-firstDone)

	// Once resolved, the flag is cleared and the next apply proceeds.
	_, err = e.Apply(ctx, ApplyInput{JobSeekerID: "seeker-1", JobKey: "g1", Suggestion: "s3"})
	require.NoError(t, err)
}

func TestAppliesToDifferentJobsRunConcurrently(t *testing.T) {
	ctx := context.Background()
	block := make(chan struct{})
	started := make(chan struct{})
	client := &fakeClient{
		improveFn: func(req types.AutoImproveRequest) (*types.AutoImproveResult, error) {
			if req.GoogleJobID == "g1" {
				close(started)
				<-block
			}
			return &types.AutoImproveResult{ResumeText: "via " + req.GoogleJobID, MatchPercentage: 70}, nil
		},
	}
	e := newTestEngine(t, client)
	uploadBaseline(t, e, client, "seeker-1")

	g1Done := make(chan error, 1)
	go func() {
		_, err := e.Apply(ctx, ApplyInput{JobSeekerID: "seeker-1", JobKey: "g1", Suggestion: "s1"})
		g1Done <- err
	}()
	<-started

	// A different job's apply is not blocked by g1's in-flight apply.
	_, err := e.Apply(ctx, ApplyInput{JobSeekerID: "seeker-1", JobKey: "j2", Suggestion: "s2"})
	require.NoError(t, err)

	close(block)
	require.NoError(t, <-g1Done)
}

func TestFailedApplyLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{
		improveFn: func(req types.AutoImproveRequest) (*types.AutoImproveResult, error) {
			return nil, errors.NewApplyError(errors.ErrCodeApplyFailed, "service down", nil)
		},
	}
	e := newTestEngine(t, client)
	uploadBaseline(t, e, client, "seeker-1")

	_, err := e.Apply(ctx, ApplyInput{JobSeekerID: "seeker-1", JobKey: "g1", SuggestionIndex: 0})
	require.Error(t, err)

	// Baseline view is intact: 60%, original suggestions, no overlay.
	effective, err := e.Effective(ctx, "seeker-1", "g1")
	require.NoError(t, err)
	assert.Equal(t, 60, effective.MatchPercentage)
	assert.False(t, effective.Applied)
	assert.Equal(t, "base resume", effective.ResumeText)

	// The in-flight flag was cleared: a retry goes through.
	client.improveFn = func(req types.AutoImproveRequest) (*types.AutoImproveResult, error) {
		return &types.AutoImproveResult{ResumeText: "ok", MatchPercentage: 70}, nil
	}
	_, err = e.Apply(ctx, ApplyInput{JobSeekerID: "seeker-1", JobKey: "g1", SuggestionIndex: 0})
	require.NoError(t, err)
}

func TestRevertWithoutApplyIsNoOp(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{}
	e := newTestEngine(t, client)
	uploadBaseline(t, e, client, "seeker-1")

	effective, err := e.Revert(ctx, "seeker-1", "g1")
	require.NoError(t, err)
	assert.Equal(t, 60, effective.MatchPercentage)
	assert.Equal(t, "base resume", effective.ResumeText)
	assert.False(t, effective.Applied)
}

func TestRevertAfterApplies(t *testing.T) {
	for _, n := range []int{1, 3} {
		t.Run(map[int]string{1: "one apply", 3: "three applies"}[n], func(t *testing.T) {
			ctx := context.Background()
			client := &fakeClient{
				improveFn: func(req types.AutoImproveRequest) (*types.AutoImproveResult, error) {
					return &types.AutoImproveResult{
						ResumeText:      req.ResumeText + "+",
						MatchPercentage: 85,
						Suggestions:     "leftover suggestion",
					}, nil
				},
			}
			e := newTestEngine(t, client)
			uploadBaseline(t, e, client, "seeker-1")

			for i := 0; i < n; i++ {
				_, err := e.Apply(ctx, ApplyInput{JobSeekerID: "seeker-1", JobKey: "g1", Suggestion: "s"})
				require.NoError(t, err)
			}

			effective, err := e.Revert(ctx, "seeker-1", "g1")
			require.NoError(t, err)

			// Pre-apply-#1 baseline is restored, not an intermediate state.
			assert.Equal(t, 60, effective.MatchPercentage)
			assert.Equal(t, "base resume", effective.ResumeText)
			assert.False(t, effective.Applied)
			require.NotEmpty(t, effective.Suggestions, "baseline suggestions must repopulate")
			assert.Equal(t, "Add Skill", effective.Suggestions[0].Title)

			snap, err := e.Snapshot(ctx, "seeker-1")
			require.NoError(t, err)
			assert.Equal(t, "base resume", snap.ResumeText)

			// Reverting again is a no-op.
			effective, err = e.Revert(ctx, "seeker-1", "g1")
			require.NoError(t, err)
			assert.Equal(t, "base resume", effective.ResumeText)
		})
	}
}

func TestDownloadGatingBoundary(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{}
	e := newTestEngine(t, client)
	uploadBaseline(t, e, client, "seeker-1")

	// j2's baseline sits at 99: not downloadable.
	can, err := e.CanDownload(ctx, "seeker-1", "j2")
	require.NoError(t, err)
	assert.False(t, can)

	client.improveFn = func(req types.AutoImproveRequest) (*types.AutoImproveResult, error) {
		return &types.AutoImproveResult{ResumeText: req.ResumeText, MatchPercentage: 100}, nil
	}
	_, err = e.Apply(ctx, ApplyInput{JobSeekerID: "seeker-1", JobKey: "j2", SuggestionIndex: 0})
	require.NoError(t, err)

	can, err = e.CanDownload(ctx, "seeker-1", "j2")
	require.NoError(t, err)
	assert.True(t, can, "exactly 100 unlocks download")
}

func TestFullScenarioApplyToHundredThenRevert(t *testing.T) {
	ctx := context.Background()
	step := 0
	client := &fakeClient{
		improveFn: func(req types.AutoImproveRequest) (*types.AutoImproveResult, error) {
			step++
			if step == 1 {
				return &types.AutoImproveResult{
					ResumeText:      "base resume Python",
					MatchPercentage: 85,
					Suggestions:     "**1. One More**\nAdd Docker",
				}, nil
			}
			return &types.AutoImproveResult{
				ResumeText:      "base resume Python Docker",
				MatchPercentage: 100,
				Suggestions:     "",
			}, nil
		},
	}
	e := newTestEngine(t, client)
	uploadBaseline(t, e, client, "seeker-1")

	effective, err := e.Apply(ctx, ApplyInput{JobSeekerID: "seeker-1", JobKey: "g1", SuggestionIndex: 0})
	require.NoError(t, err)
	assert.Equal(t, 85, effective.MatchPercentage)
	assert.False(t, effective.CanDownload)

	effective, err = e.Apply(ctx, ApplyInput{JobSeekerID: "seeker-1", JobKey: "g1", SuggestionIndex: 0})
	require.NoError(t, err)
	assert.Equal(t, 100, effective.MatchPercentage)
	assert.True(t, effective.CanDownload)

	effective, err = e.Revert(ctx, "seeker-1", "g1")
	require.NoError(t, err)
	assert.Equal(t, 60, effective.MatchPercentage)
	assert.Equal(t, "base resume", effective.ResumeText)
	require.NotEmpty(t, effective.Suggestions)
	assert.Equal(t, "Add Skill", effective.Suggestions[0].Title, "original suggestions restored")
	assert.False(t, effective.CanDownload)
}

func TestApplyRejectsUnknownJob(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{}
	e := newTestEngine(t, client)
	uploadBaseline(t, e, client, "seeker-1")

	_, err := e.Apply(ctx, ApplyInput{JobSeekerID: "seeker-1", JobKey: "nope", SuggestionIndex: 0})
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeInvalidRequest, appErr.Code)
}

func TestApplyWithoutSnapshot(t *testing.T) {
	client := &fakeClient{}
	e := newTestEngine(t, client)

	_, err := e.Apply(context.Background(), ApplyInput{JobSeekerID: "ghost", JobKey: "g1"})
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeSnapshotNotFound, appErr.Code)
}

func TestNewUploadResetsOverlays(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{
		improveFn: func(req types.AutoImproveRequest) (*types.AutoImproveResult, error) {
			return &types.AutoImproveResult{ResumeText: "improved", MatchPercentage: 90}, nil
		},
	}
	e := newTestEngine(t, client)
	uploadBaseline(t, e, client, "seeker-1")

	_, err := e.Apply(ctx, ApplyInput{JobSeekerID: "seeker-1", JobKey: "g1", SuggestionIndex: 0})
	require.NoError(t, err)

	// Re-upload: overlays must not survive the new snapshot.
	uploadBaseline(t, e, client, "seeker-1")
	effective, err := e.Effective(ctx, "seeker-1", "g1")
	require.NoError(t, err)
	assert.False(t, effective.Applied)
	assert.Equal(t, 60, effective.MatchPercentage)
}
