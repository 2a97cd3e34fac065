package analysis

import (
	"context"
	"io"

	"matchpoint/internal/types"
)

// Client is the contract for the external resume-analysis service. The
// service is stateless per call; callers carry resume text state forward
// themselves (the engine does this).
type Client interface {
	// Analyze uploads a resume file and returns the full baseline analysis
	// with the job-match set.
	Analyze(ctx context.Context, jobSeekerID, fileName string, file io.Reader) (*types.AnalyzeResult, error)

	// AutoImprove applies exactly one suggestion to the supplied resume text.
	// Never invoke concurrently for the same (jobSeekerID, job) pair.
	AutoImprove(ctx context.Context, req types.AutoImproveRequest) (*types.AutoImproveResult, error)

	// PaginatedAnalyze returns one page of bulk re-analysis job matches.
	PaginatedAnalyze(ctx context.Context, jobSeekerID string, page, size int) (*types.JobMatchPage, error)

	// ExtractSkills extracts a skill list from free-form resume text.
	ExtractSkills(ctx context.Context, text string) ([]string, error)

	// Stats reports circuit breaker health for the stats endpoint.
	Stats() map[string]any

	Close() error
}
