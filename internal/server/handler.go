package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"matchpoint/internal/engine"
	"matchpoint/internal/observability"
	"matchpoint/internal/types"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// jobSeekerID extracts the job-seeker identity from the request
func jobSeekerID(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("jobSeekerId"))
}

// createAnalyzeHandler wraps the resume analysis handler with observability
func (s *Server) createAnalyzeHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tracer := om.Tracer("matchpoint.api")
		ctx, span := tracer.Start(ctx, "api.analyze")
		defer span.End()

		seekerID := jobSeekerID(r)
		if seekerID == "" {
			err := fmt.Errorf("missing job seeker id")
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "validation"))
			writeErrorResponse(w, "Missing job seeker id", "jobSeekerId query parameter is required", http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "validation"))
			writeErrorResponse(w, "Missing resume file", "multipart field 'file' is required", http.StatusBadRequest)
			return
		}
		defer func() {
			if err := file.Close(); err != nil {
				s.Logger.Warn("Failed to close uploaded file", "error", err)
			}
		}()

		span.SetAttributes(
			attribute.String("request.file_name", header.Filename),
			attribute.Int64("request.file_size", header.Size),
			attribute.String("operation", "analyze"),
		)

		metrics := om.GetMetrics()
		var snap *types.ResumeSnapshot
		err = metrics.TrackAnalysisOperation(ctx, "analyze", func(ctx context.Context) error {
			var opErr error
			snap, opErr = s.Engine.Analyze(ctx, seekerID, header.Filename, file)
			return opErr
		}, om)

		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "analysis"))
			metrics.RecordBusinessMetric(ctx, "resume_analyzed", false, om)
			s.writeEngineError(w, err, "Failed to analyze resume")
			return
		}

		metrics.RecordBusinessMetric(ctx, "resume_analyzed", true, om,
			attribute.Int("matches", len(snap.JobMatches)))

		span.SetAttributes(
			attribute.Bool("success", true),
			attribute.Int("response.job_matches", len(snap.JobMatches)),
		)

		writeJSONResponse(w, span, snap)
	}
}

// createSnapshotHandler returns the active resume snapshot for an identity
func (s *Server) createSnapshotHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tracer := om.Tracer("matchpoint.api")
		ctx, span := tracer.Start(ctx, "api.snapshot")
		defer span.End()

		seekerID := jobSeekerID(r)
		if seekerID == "" {
			writeErrorResponse(w, "Missing job seeker id", "jobSeekerId query parameter is required", http.StatusBadRequest)
			return
		}

		snap, err := s.Engine.Snapshot(ctx, seekerID)
		if err != nil {
			span.RecordError(err)
			s.writeEngineError(w, err, "Failed to load resume snapshot")
			return
		}
		if snap == nil {
			writeErrorResponse(w, "No active resume", "No resume snapshot exists for this job seeker", http.StatusNotFound)
			return
		}

		writeJSONResponse(w, span, snap)
	}
}

// createClearHandler removes the active snapshot and its session overlays
func (s *Server) createClearHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tracer := om.Tracer("matchpoint.api")
		ctx, span := tracer.Start(ctx, "api.clear")
		defer span.End()

		seekerID := jobSeekerID(r)
		if seekerID == "" {
			writeErrorResponse(w, "Missing job seeker id", "jobSeekerId query parameter is required", http.StatusBadRequest)
			return
		}

		if err := s.Engine.ClearSnapshot(ctx, seekerID); err != nil {
			span.RecordError(err)
			s.writeEngineError(w, err, "Failed to clear resume snapshot")
			return
		}

		span.SetAttributes(attribute.Bool("success", true))
		w.WriteHeader(http.StatusNoContent)
	}
}

// createMatchesHandler returns one page of bulk re-analysis results
func (s *Server) createMatchesHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tracer := om.Tracer("matchpoint.api")
		ctx, span := tracer.Start(ctx, "api.matches")
		defer span.End()

		seekerID := jobSeekerID(r)
		if seekerID == "" {
			writeErrorResponse(w, "Missing job seeker id", "jobSeekerId query parameter is required", http.StatusBadRequest)
			return
		}

		page := queryInt(r, "page", 0)
		size := queryInt(r, "size", 20)

		span.SetAttributes(
			attribute.Int("request.page", page),
			attribute.Int("request.size", size),
			attribute.String("operation", "matches"),
		)

		metrics := om.GetMetrics()
		var result *types.JobMatchPage
		err := metrics.TrackAnalysisOperation(ctx, "paginated_analyze", func(ctx context.Context) error {
			var opErr error
			result, opErr = s.Engine.Matches(ctx, seekerID, page, size)
			return opErr
		}, om)

		if err != nil {
			span.RecordError(err)
			s.writeEngineError(w, err, "Failed to list job matches")
			return
		}

		span.SetAttributes(
			attribute.Bool("success", true),
			attribute.Int("response.matches", len(result.JobMatches)),
		)

		writeJSONResponse(w, span, result)
	}
}

// createEffectiveHandler returns the overlay-resolved view of one job
func (s *Server) createEffectiveHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tracer := om.Tracer("matchpoint.api")
		ctx, span := tracer.Start(ctx, "api.effective")
		defer span.End()

		seekerID := jobSeekerID(r)
		if seekerID == "" {
			writeErrorResponse(w, "Missing job seeker id", "jobSeekerId query parameter is required", http.StatusBadRequest)
			return
		}
		jobKey := r.PathValue("jobId")

		span.SetAttributes(attribute.String("request.job_key", jobKey))

		effective, err := s.Engine.Effective(ctx, seekerID, jobKey)
		if err != nil {
			span.RecordError(err)
			s.writeEngineError(w, err, "Failed to resolve effective match")
			return
		}

		span.SetAttributes(
			attribute.Bool("success", true),
			attribute.Int("response.match_percentage", effective.MatchPercentage),
			attribute.Bool("response.applied", effective.Applied),
		)

		writeJSONResponse(w, span, effective)
	}
}

// createApplyHandler wraps the suggestion apply handler with observability
func (s *Server) createApplyHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tracer := om.Tracer("matchpoint.api")
		ctx, span := tracer.Start(ctx, "api.apply")
		defer span.End()

		seekerID := jobSeekerID(r)
		if seekerID == "" {
			writeErrorResponse(w, "Missing job seeker id", "jobSeekerId query parameter is required", http.StatusBadRequest)
			return
		}
		jobKey := r.PathValue("jobId")

		var req ApplyRequest
		if err := parseJSONRequest(r, &req); err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "validation"))
			writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
			return
		}

		span.SetAttributes(
			attribute.String("request.job_key", jobKey),
			attribute.Int("request.suggestion_index", req.SuggestionIndex),
			attribute.String("operation", "apply"),
		)

		metrics := om.GetMetrics()
		var effective *types.EffectiveMatch
		err := metrics.TrackAnalysisOperation(ctx, "auto_improve", func(ctx context.Context) error {
			var opErr error
			effective, opErr = s.Engine.Apply(ctx, engine.ApplyInput{
				JobSeekerID:     seekerID,
				JobKey:          jobKey,
				SuggestionIndex: req.SuggestionIndex,
				Suggestion:      req.Suggestion,
			})
			return opErr
		}, om)

		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "apply"))
			metrics.RecordBusinessMetric(ctx, "suggestion_applied", false, om,
				attribute.String("job_key", jobKey))
			s.writeEngineError(w, err, "Failed to apply suggestion")
			return
		}

		metrics.RecordBusinessMetric(ctx, "suggestion_applied", true, om,
			attribute.String("job_key", jobKey),
			attribute.Int("match_percentage", effective.MatchPercentage))

		span.SetAttributes(
			attribute.Bool("success", true),
			attribute.Int("response.match_percentage", effective.MatchPercentage),
			attribute.Bool("response.can_download", effective.CanDownload),
		)

		writeJSONResponse(w, span, effective)
	}
}

// createRevertHandler wraps the revert handler with observability
func (s *Server) createRevertHandler(om *observability.ObservabilityManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		tracer := om.Tracer("matchpoint.api")
		ctx, span := tracer.Start(ctx, "api.revert")
		defer span.End()

		seekerID := jobSeekerID(r)
		if seekerID == "" {
			writeErrorResponse(w, "Missing job seeker id", "jobSeekerId query parameter is required", http.StatusBadRequest)
			return
		}
		jobKey := r.PathValue("jobId")

		span.SetAttributes(
			attribute.String("request.job_key", jobKey),
			attribute.String("operation", "revert"),
		)

		metrics := om.GetMetrics()
		effective, err := s.Engine.Revert(ctx, seekerID, jobKey)
		if err != nil {
			span.RecordError(err)
			metrics.RecordBusinessMetric(ctx, "revert_performed", false, om,
				attribute.String("job_key", jobKey))
			s.writeEngineError(w, err, "Failed to revert resume")
			return
		}

		metrics.RecordBusinessMetric(ctx, "revert_performed", true, om,
			attribute.String("job_key", jobKey))

		span.SetAttributes(
			attribute.Bool("success", true),
			attribute.Int("response.match_percentage", effective.MatchPercentage),
		)

		writeJSONResponse(w, span, effective)
	}
}

// createRateLimitMiddleware adds observability to rate limiting
func (s *Server) createRateLimitMiddleware(om *observability.ObservabilityManager) func(http.HandlerFunc) http.HandlerFunc {
	originalMiddleware := s.rateLimitMiddleware()

	return func(next http.HandlerFunc) http.HandlerFunc {
		return originalMiddleware(func(w http.ResponseWriter, r *http.Request) {
			// Wrap the ResponseWriter to detect rate limit responses
			wrapper := &responseWrapper{ResponseWriter: w, statusCode: 200}

			next(wrapper, r)

			// If rate limited, record metric
			if wrapper.statusCode == http.StatusTooManyRequests {
				metrics := om.GetMetrics()
				metrics.RecordBusinessMetric(r.Context(), "rate_limit_hit", true, om,
					attribute.String("endpoint", r.URL.Path),
					attribute.String("method", r.Method))
			}
		})
	}
}

// responseWrapper wraps http.ResponseWriter to capture status code
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// queryInt parses an integer query parameter with a default
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

// writeJSONResponse encodes v as the JSON response body
func writeJSONResponse(w http.ResponseWriter, span oteltrace.Span, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		span.RecordError(err)
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}
