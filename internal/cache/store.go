package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"matchpoint/internal/errors"
	"matchpoint/internal/types"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS resume_snapshots (
	job_seeker_id        TEXT PRIMARY KEY,
	resume_id            TEXT NOT NULL,
	resume_file_name     TEXT NOT NULL,
	resume_text          TEXT NOT NULL,
	original_resume_text TEXT NOT NULL DEFAULT '',
	extracted_skills     TEXT NOT NULL DEFAULT '[]',
	job_matches          TEXT NOT NULL DEFAULT '[]',
	uploaded_at          TIMESTAMP NOT NULL
);
`

// Store is the durable, identity-scoped resume cache. Exactly one snapshot
// is kept per job-seeker identity; it survives process restarts.
type Store struct {
	db     *sql.DB
	logger *errors.Logger
}

// Open opens (and creates if needed) the cache database. An empty path
// resolves to $HOME/.matchpoint/cache.db.
func Open(path string, logger *errors.Logger) (*Store, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.NewStorageError(errors.ErrCodeInvalidConfig,
				"Cannot resolve home directory for cache path", err)
		}
		path = filepath.Join(home, ".matchpoint", "cache.db")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.NewStorageError(errors.ErrCodeInvalidConfig,
			"Cannot create cache directory", err).WithContext("path", path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.NewStorageError(errors.ErrCodeCacheCorrupt,
			"Cannot open cache database", err).WithContext("path", path)
	}

	// modernc.org/sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent applies.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.NewStorageError(errors.ErrCodeCacheCorrupt,
			"Cannot initialize cache schema", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSnapshot stores the snapshot as the single active record for its
// job-seeker identity, replacing any previous one.
func (s *Store) SaveSnapshot(ctx context.Context, snap *types.ResumeSnapshot) error {
	if snap.JobSeekerID == "" {
		return errors.NewStorageError(errors.ErrCodeInvalidRequest,
			"Snapshot is missing job-seeker identity", nil)
	}

	skills, err := json.Marshal(snap.ExtractedSkills)
	if err != nil {
		return errors.NewStorageError(errors.ErrCodeCacheCorrupt, "Cannot encode skills", err)
	}
	matches, err := json.Marshal(snap.JobMatches)
	if err != nil {
		return errors.NewStorageError(errors.ErrCodeCacheCorrupt, "Cannot encode job matches", err)
	}

	uploadedAt := snap.UploadedAt
	if uploadedAt.IsZero() {
		uploadedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO resume_snapshots
			(job_seeker_id, resume_id, resume_file_name, resume_text, original_resume_text, extracted_skills, job_matches, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(job_seeker_id) DO UPDATE SET
			resume_id = excluded.resume_id,
			resume_file_name = excluded.resume_file_name,
			resume_text = excluded.resume_text,
			original_resume_text = excluded.original_resume_text,
			extracted_skills = excluded.extracted_skills,
			job_matches = excluded.job_matches,
			uploaded_at = excluded.uploaded_at`,
		snap.JobSeekerID, snap.ResumeID, snap.ResumeFileName, snap.ResumeText,
		snap.OriginalResumeText, string(skills), string(matches), uploadedAt)
	if err != nil {
		return errors.NewStorageError(errors.ErrCodeCacheCorrupt,
			"Cannot persist snapshot", err).WithContext("job_seeker_id", snap.JobSeekerID)
	}
	return nil
}

// LoadSnapshot returns the active snapshot for the identity, or nil when
// absent. Corrupt or foreign rows are purged and reported as absent; the
// cache heals itself rather than surfacing storage errors.
func (s *Store) LoadSnapshot(ctx context.Context, jobSeekerID string) (*types.ResumeSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT job_seeker_id, resume_id, resume_file_name, resume_text, original_resume_text, extracted_skills, job_matches, uploaded_at
		FROM resume_snapshots WHERE job_seeker_id = ?`, jobSeekerID)

	var snap types.ResumeSnapshot
	var skillsJSON, matchesJSON string
	err := row.Scan(&snap.JobSeekerID, &snap.ResumeID, &snap.ResumeFileName,
		&snap.ResumeText, &snap.OriginalResumeText, &skillsJSON, &matchesJSON, &snap.UploadedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewStorageError(errors.ErrCodeCacheCorrupt,
			"Cannot read snapshot", err).WithContext("job_seeker_id", jobSeekerID)
	}

	// A row keyed under one identity but recording another is stale; treat
	// it as a miss and purge, never surface it.
	if snap.JobSeekerID != jobSeekerID {
		s.logger.Warn("Discarding stale snapshot for mismatched identity",
			"requested", jobSeekerID, "stored", snap.JobSeekerID)
		_ = s.Clear(ctx, jobSeekerID)
		return nil, nil
	}

	if err := json.Unmarshal([]byte(skillsJSON), &snap.ExtractedSkills); err != nil {
		return s.purgeCorrupt(ctx, jobSeekerID, "extracted_skills", err)
	}
	if err := json.Unmarshal([]byte(matchesJSON), &snap.JobMatches); err != nil {
		return s.purgeCorrupt(ctx, jobSeekerID, "job_matches", err)
	}

	return &snap, nil
}

// purgeCorrupt drops an unreadable row and reports a cache miss
func (s *Store) purgeCorrupt(ctx context.Context, jobSeekerID, field string, cause error) (*types.ResumeSnapshot, error) {
	s.logger.Warn("Purging corrupt cache row",
		"job_seeker_id", jobSeekerID,
		"field", field,
		"error", cause.Error())
	_ = s.Clear(ctx, jobSeekerID)
	return nil, nil
}

// UpdateResumeText replaces the working resume text for the identity
func (s *Store) UpdateResumeText(ctx context.Context, jobSeekerID, text string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE resume_snapshots SET resume_text = ? WHERE job_seeker_id = ?`, text, jobSeekerID)
	if err != nil {
		return errors.NewStorageError(errors.ErrCodeCacheCorrupt,
			"Cannot update resume text", err).WithContext("job_seeker_id", jobSeekerID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewStorageError(errors.ErrCodeSnapshotNotFound,
			"No active snapshot for identity", nil).WithContext("job_seeker_id", jobSeekerID)
	}
	return nil
}

// CaptureOriginal records the current resume text as the original, only if
// no original was captured yet. Returns true when this call captured it.
func (s *Store) CaptureOriginal(ctx context.Context, jobSeekerID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE resume_snapshots SET original_resume_text = resume_text
		WHERE job_seeker_id = ? AND original_resume_text = ''`, jobSeekerID)
	if err != nil {
		return false, errors.NewStorageError(errors.ErrCodeCacheCorrupt,
			"Cannot capture original resume text", err).WithContext("job_seeker_id", jobSeekerID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.NewStorageError(errors.ErrCodeCacheCorrupt,
			"Cannot capture original resume text", err)
	}
	return n > 0, nil
}

// OriginalResumeText returns the captured pre-first-apply text, empty when
// none was captured.
func (s *Store) OriginalResumeText(ctx context.Context, jobSeekerID string) (string, error) {
	var text string
	err := s.db.QueryRowContext(ctx,
		`SELECT original_resume_text FROM resume_snapshots WHERE job_seeker_id = ?`, jobSeekerID).Scan(&text)
	if stderrors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", errors.NewStorageError(errors.ErrCodeCacheCorrupt,
			"Cannot read original resume text", err).WithContext("job_seeker_id", jobSeekerID)
	}
	return text, nil
}

// RestoreOriginal writes the captured original back as the working text and
// clears the capture marker, so the next apply recaptures it.
func (s *Store) RestoreOriginal(ctx context.Context, jobSeekerID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE resume_snapshots
		SET resume_text = original_resume_text, original_resume_text = ''
		WHERE job_seeker_id = ? AND original_resume_text != ''`, jobSeekerID)
	if err != nil {
		return errors.NewStorageError(errors.ErrCodeCacheCorrupt,
			"Cannot restore original resume text", err).WithContext("job_seeker_id", jobSeekerID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewStorageError(errors.ErrCodeNoOriginalCaptured,
			"No original resume text captured", nil).WithContext("job_seeker_id", jobSeekerID)
	}
	return nil
}

// Clear removes the identity's snapshot
func (s *Store) Clear(ctx context.Context, jobSeekerID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM resume_snapshots WHERE job_seeker_id = ?`, jobSeekerID)
	if err != nil {
		return errors.NewStorageError(errors.ErrCodeCacheCorrupt,
			"Cannot clear snapshot", err).WithContext("job_seeker_id", jobSeekerID)
	}
	return nil
}

// Stats reports row counts for the stats endpoint
func (s *Store) Stats(ctx context.Context) map[string]any {
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM resume_snapshots`).Scan(&count); err != nil {
		return map[string]any{"error": fmt.Sprintf("unavailable: %v", err)}
	}
	return map[string]any{"snapshots": count}
}
