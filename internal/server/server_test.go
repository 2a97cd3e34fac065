package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"matchpoint/internal/analysis"
	"matchpoint/internal/cache"
	"matchpoint/internal/config"
	"matchpoint/internal/engine"
	"matchpoint/internal/errors"
	"matchpoint/internal/observability"
	"matchpoint/internal/session"
	"matchpoint/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClient scripts the analysis service for server tests
type fakeClient struct {
	analyzeResult *types.AnalyzeResult
	improveFn     func(req types.AutoImproveRequest) (*types.AutoImproveResult, error)
	healthy       bool
}

func (f *fakeClient) Analyze(_ context.Context, jobSeekerID, _ string, _ io.Reader) (*types.AnalyzeResult, error) {
	result := *f.analyzeResult
	result.JobSeekerID = jobSeekerID
	return &result, nil
}

func (f *fakeClient) AutoImprove(_ context.Context, req types.AutoImproveRequest) (*types.AutoImproveResult, error) {
	return f.improveFn(req)
}

func (f *fakeClient) PaginatedAnalyze(_ context.Context, _ string, page, size int) (*types.JobMatchPage, error) {
	return &types.JobMatchPage{
		JobMatches: f.analyzeResult.JobMatches,
		Page:       page,
		Size:       size,
		Total:      len(f.analyzeResult.JobMatches),
	}, nil
}

func (f *fakeClient) ExtractSkills(_ context.Context, _ string) ([]string, error) {
	return []string{"Go"}, nil
}

func (f *fakeClient) Stats() map[string]any {
	return map[string]any{"overall_healthy": f.healthy}
}

func (f *fakeClient) Close() error { return nil }

var _ analysis.Client = (*fakeClient)(nil)

type testServer struct {
	srv     *Server
	handler http.Handler
	client  *fakeClient
}

func newTestServer(t *testing.T, mutate func(*ServerConfig)) *testServer {
	t.Helper()

	logger, err := errors.New("error")
	require.NoError(t, err)

	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	client := &fakeClient{
		healthy: true,
		analyzeResult: &types.AnalyzeResult{
			ResumeID:        "r1",
			ResumeFile:      "resume.pdf",
			ResumeText:      "base resume",
			ExtractedSkills: []string{"Go"},
			JobMatches: []types.JobMatch{
				{GoogleJobID: "g1", JobTitle: "Backend Engineer", MatchPercentage: 60,
					AISuggestions: "**1. Add Skill**\nAdd Python"},
			},
		},
		improveFn: func(req types.AutoImproveRequest) (*types.AutoImproveResult, error) {
			return &types.AutoImproveResult{
				ResumeText:      req.ResumeText + " Python",
				MatchPercentage: 100,
			}, nil
		},
	}

	eng := engine.New(store, session.NewStore(), client, logger)

	cfg := ServerConfig{
		Host:           "localhost",
		Port:           "0",
		Version:        "test",
		MaxRequestSize: 1 << 20,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	appCfg := &config.Config{}
	srv := NewServer(appCfg, cfg, eng, client, store, logger)
	t.Cleanup(func() {
		if srv.RateLimiter != nil {
			srv.RateLimiter.Close()
		}
	})

	om, err := observability.NewObservabilityManager(observability.ObservabilityConfig{Enabled: false}, appCfg)
	require.NoError(t, err)

	return &testServer{srv: srv, handler: srv.setupRoutes(om), client: client}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) analyzeResume(t *testing.T, jobSeekerID string) {
	t.Helper()
	rec := ts.do(newAnalyzeRequest(t, jobSeekerID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func newAnalyzeRequest(t *testing.T, jobSeekerID string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "resume.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("base resume"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/v1/resumes/analyze?jobSeekerId="+jobSeekerID, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestAnalyzeEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(newAnalyzeRequest(t, "seeker-1"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	snap := decodeJSON[types.ResumeSnapshot](t, rec)
	assert.Equal(t, "seeker-1", snap.JobSeekerID)
	assert.Equal(t, "resume.pdf", snap.ResumeFileName)
	assert.Len(t, snap.JobMatches, 1)
}

func TestAnalyzeRequiresJobSeekerID(t *testing.T) {
	ts := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/resumes/analyze", nil)
	rec := ts.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSnapshotEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.analyzeResume(t, "seeker-1")

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/v1/resumes/current?jobSeekerId=seeker-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	snap := decodeJSON[types.ResumeSnapshot](t, rec)
	assert.Equal(t, "base resume", snap.ResumeText)
}

func TestSnapshotNotFound(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/v1/resumes/current?jobSeekerId=nobody", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClearEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.analyzeResume(t, "seeker-1")

	rec := ts.do(httptest.NewRequest(http.MethodDelete, "/v1/resumes/current?jobSeekerId=seeker-1", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(httptest.NewRequest(http.MethodGet, "/v1/resumes/current?jobSeekerId=seeker-1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMatchesEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.analyzeResume(t, "seeker-1")

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/v1/matches?jobSeekerId=seeker-1&page=2&size=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	page := decodeJSON[types.JobMatchPage](t, rec)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 5, page.Size)
	assert.Len(t, page.JobMatches, 1)
}

func TestEffectiveEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.analyzeResume(t, "seeker-1")

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/v1/matches/g1/effective?jobSeekerId=seeker-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	effective := decodeJSON[types.EffectiveMatch](t, rec)
	assert.Equal(t, 60, effective.MatchPercentage)
	assert.False(t, effective.Applied)
	assert.False(t, effective.CanDownload)
	require.Len(t, effective.Suggestions, 1)
	assert.Equal(t, "Add Skill", effective.Suggestions[0].Title)
}

func applyRequest(t *testing.T, jobKey, jobSeekerID string, body ApplyRequest) *http.Request {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost,
		"/v1/matches/"+jobKey+"/apply?jobSeekerId="+jobSeekerID, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestApplyEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.analyzeResume(t, "seeker-1")

	rec := ts.do(applyRequest(t, "g1", "seeker-1", ApplyRequest{SuggestionIndex: 0}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	effective := decodeJSON[types.EffectiveMatch](t, rec)
	assert.Equal(t, 100, effective.MatchPercentage)
	assert.True(t, effective.Applied)
	assert.True(t, effective.CanDownload)
}

func TestApplyUnknownJobIsBadRequest(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.analyzeResume(t, "seeker-1")

	rec := ts.do(applyRequest(t, "missing", "seeker-1", ApplyRequest{SuggestionIndex: 0}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApplyWithoutSnapshotIsNotFound(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(applyRequest(t, "g1", "nobody", ApplyRequest{SuggestionIndex: 0}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApplyInFlightIsConflict(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.analyzeResume(t, "seeker-1")

	started := make(chan struct{})
	release := make(chan struct{})
	ts.client.improveFn = func(req types.AutoImproveRequest) (*types.AutoImproveResult, error) {
		close(started)
		<-release
		return &types.AutoImproveResult{ResumeText: req.ResumeText, MatchPercentage: 85}, nil
	}

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- ts.do(applyRequest(t, "g1", "seeker-1", ApplyRequest{SuggestionIndex: 0}))
	}()
	<-started

	rec := ts.do(applyRequest(t, "g1", "seeker-1", ApplyRequest{SuggestionIndex: 0}))
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(release)
	first := <-done
	assert.Equal(t, http.StatusOK, first.Code)
}

func TestRevertEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.analyzeResume(t, "seeker-1")

	rec := ts.do(applyRequest(t, "g1", "seeker-1", ApplyRequest{SuggestionIndex: 0}))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(httptest.NewRequest(http.MethodPost, "/v1/matches/g1/revert?jobSeekerId=seeker-1", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	effective := decodeJSON[types.EffectiveMatch](t, rec)
	assert.Equal(t, 60, effective.MatchPercentage)
	assert.False(t, effective.Applied)
	assert.Equal(t, "base resume", effective.ResumeText)
}

func TestAuthMiddleware(t *testing.T) {
	ts := newTestServer(t, func(cfg *ServerConfig) {
		cfg.APIKeys = []string{"secret-key-12345"}
	})

	// Missing key
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/v1/resumes/current?jobSeekerId=seeker-1", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Wrong key
	req := httptest.NewRequest(http.MethodGet, "/v1/resumes/current?jobSeekerId=seeker-1", nil)
	req.Header.Set("X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, ts.do(req).Code)

	// Valid key via header
	req = httptest.NewRequest(http.MethodGet, "/v1/resumes/current?jobSeekerId=seeker-1", nil)
	req.Header.Set("X-API-Key", "secret-key-12345")
	assert.Equal(t, http.StatusNotFound, ts.do(req).Code, "auth passes, snapshot is absent")

	// Valid key via bearer token
	req = httptest.NewRequest(http.MethodGet, "/v1/resumes/current?jobSeekerId=seeker-1", nil)
	req.Header.Set("Authorization", "Bearer secret-key-12345")
	assert.Equal(t, http.StatusNotFound, ts.do(req).Code)

	// Health stays open
	assert.Equal(t, http.StatusOK, ts.do(httptest.NewRequest(http.MethodGet, "/health", nil)).Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	ts := newTestServer(t, func(cfg *ServerConfig) {
		cfg.RateLimit = &config.RateLimitConfig{
			Enabled:        true,
			RequestsPerMin: 1,
			BurstCapacity:  1,
			ByIP:           true,
		}
	})

	first := ts.do(httptest.NewRequest(http.MethodGet, "/v1/resumes/current?jobSeekerId=seeker-1", nil))
	assert.Equal(t, http.StatusNotFound, first.Code)

	second := ts.do(httptest.NewRequest(http.MethodGet, "/v1/resumes/current?jobSeekerId=seeker-1", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON[map[string]any](t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "matchpoint", body["service"])
}

func TestHealthDegradedWhenBreakersOpen(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.client.healthy = false

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	body := decodeJSON[map[string]any](t, rec)
	assert.Equal(t, "degraded", body["status"])
}

func TestStatsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.analyzeResume(t, "seeker-1")

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeJSON[map[string]any](t, rec)
	assert.Contains(t, body, "engine")
	assert.Contains(t, body, "cache")
	assert.Contains(t, body, "rate_limiting")
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "****", maskAPIKey("short"))
	assert.Equal(t, "12345678****", maskAPIKey("1234567890abcdef"))
}
