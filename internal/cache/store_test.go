package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"matchpoint/internal/errors"
	"matchpoint/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	logger, err := errors.New("error")
	require.NoError(t, err)
	store, err := Open(filepath.Join(t.TempDir(), "cache.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleSnapshot(jobSeekerID string) *types.ResumeSnapshot {
	return &types.ResumeSnapshot{
		JobSeekerID:     jobSeekerID,
		ResumeID:        "r1",
		ResumeFileName:  "resume.pdf",
		ResumeText:      "original text",
		ExtractedSkills: []string{"Go", "SQL"},
		UploadedAt:      time.Now().UTC().Truncate(time.Second),
		JobMatches: []types.JobMatch{
			{GoogleJobID: "g1", JobTitle: "Backend Engineer", MatchPercentage: 60, AISuggestions: "**1. Add Skill**\nAdd Python"},
		},
	}
}

func TestSaveAndLoadSnapshot(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSnapshot(ctx, sampleSnapshot("seeker-a")))

	got, err := store.LoadSnapshot(ctx, "seeker-a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "r1", got.ResumeID)
	assert.Equal(t, "original text", got.ResumeText)
	assert.Equal(t, []string{"Go", "SQL"}, got.ExtractedSkills)
	require.Len(t, got.JobMatches, 1)
	assert.Equal(t, "g1", got.JobMatches[0].Key())
	assert.False(t, got.HasOriginal())
}

func TestIdentityIsolation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSnapshot(ctx, sampleSnapshot("seeker-a")))

	// A different identity must never see seeker-a's data.
	got, err := store.LoadSnapshot(ctx, "seeker-b")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Writes for seeker-b do not leak seeker-a's fields.
	snapB := sampleSnapshot("seeker-b")
	snapB.ResumeText = "b text"
	require.NoError(t, store.SaveSnapshot(ctx, snapB))

	gotB, err := store.LoadSnapshot(ctx, "seeker-b")
	require.NoError(t, err)
	require.NotNil(t, gotB)
	assert.Equal(t, "b text", gotB.ResumeText)

	gotA, err := store.LoadSnapshot(ctx, "seeker-a")
	require.NoError(t, err)
	require.NotNil(t, gotA)
	assert.Equal(t, "original text", gotA.ResumeText)
}

func TestSaveReplacesPreviousSnapshot(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSnapshot(ctx, sampleSnapshot("seeker-a")))

	replacement := sampleSnapshot("seeker-a")
	replacement.ResumeID = "r2"
	replacement.ResumeText = "new upload"
	require.NoError(t, store.SaveSnapshot(ctx, replacement))

	got, err := store.LoadSnapshot(ctx, "seeker-a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "r2", got.ResumeID)
	assert.Equal(t, "new upload", got.ResumeText)
	assert.False(t, got.HasOriginal(), "replacing the snapshot resets the original marker")
}

func TestCaptureOriginalIsOneTime(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSnapshot(ctx, sampleSnapshot("seeker-a")))

	captured, err := store.CaptureOriginal(ctx, "seeker-a")
	require.NoError(t, err)
	assert.True(t, captured, "first capture must take effect")

	// Mutate the working text, then try capturing again.
	require.NoError(t, store.UpdateResumeText(ctx, "seeker-a", "mutated"))
	captured, err = store.CaptureOriginal(ctx, "seeker-a")
	require.NoError(t, err)
	assert.False(t, captured, "second capture must be a no-op")

	original, err := store.OriginalResumeText(ctx, "seeker-a")
	require.NoError(t, err)
	assert.Equal(t, "original text", original, "original must be the pre-first-apply text")
}

func TestRestoreOriginal(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSnapshot(ctx, sampleSnapshot("seeker-a")))

	t.Run("without capture is an error", func(t *testing.T) {
		err := store.RestoreOriginal(ctx, "seeker-a")
		require.Error(t, err)
		appErr, ok := err.(*errors.AppError)
		require.True(t, ok)
		assert.Equal(t, errors.ErrCodeNoOriginalCaptured, appErr.Code)
	})

	t.Run("after capture restores and clears marker", func(t *testing.T) {
		_, err := store.CaptureOriginal(ctx, "seeker-a")
		require.NoError(t, err)
		require.NoError(t, store.UpdateResumeText(ctx, "seeker-a", "improved text"))

		require.NoError(t, store.RestoreOriginal(ctx, "seeker-a"))

		got, err := store.LoadSnapshot(ctx, "seeker-a")
		require.NoError(t, err)
		assert.Equal(t, "original text", got.ResumeText)
		assert.False(t, got.HasOriginal(), "marker cleared so the next apply recaptures")
	})
}

func TestUpdateResumeTextWithoutSnapshot(t *testing.T) {
	store := openTestStore(t)

	err := store.UpdateResumeText(context.Background(), "ghost", "text")
	require.Error(t, err)
	appErr, ok := err.(*errors.AppError)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeSnapshotNotFound, appErr.Code)
}

func TestCorruptRowIsPurged(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSnapshot(ctx, sampleSnapshot("seeker-a")))

	// Corrupt the job_matches JSON behind the store's back.
	_, err := store.db.ExecContext(ctx,
		`UPDATE resume_snapshots SET job_matches = 'not json' WHERE job_seeker_id = ?`, "seeker-a")
	require.NoError(t, err)

	// Corrupt data reads as absent, never as an error.
	got, err := store.LoadSnapshot(ctx, "seeker-a")
	require.NoError(t, err)
	assert.Nil(t, got)

	// And the bad row is gone, so a fresh save works cleanly.
	require.NoError(t, store.SaveSnapshot(ctx, sampleSnapshot("seeker-a")))
	got, err = store.LoadSnapshot(ctx, "seeker-a")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestClear(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSnapshot(ctx, sampleSnapshot("seeker-a")))
	require.NoError(t, store.Clear(ctx, "seeker-a"))

	got, err := store.LoadSnapshot(ctx, "seeker-a")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Clearing an absent identity is not an error.
	require.NoError(t, store.Clear(ctx, "seeker-a"))
}

func TestSurvivesReopen(t *testing.T) {
	logger, err := errors.New("error")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	store, err := Open(path, logger)
	require.NoError(t, err)
	require.NoError(t, store.SaveSnapshot(ctx, sampleSnapshot("seeker-a")))
	require.NoError(t, store.Close())

	reopened, err := Open(path, logger)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	got, err := reopened.LoadSnapshot(ctx, "seeker-a")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "original text", got.ResumeText)
}
