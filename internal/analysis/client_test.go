package analysis

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"matchpoint/internal/config"
	"matchpoint/internal/errors"
	"matchpoint/internal/types"
)

func testConfig(baseURL string) *config.Config {
	cfg := &config.Config{}
	cfg.Analysis.BaseURL = baseURL
	cfg.Analysis.Timeout = 5 * time.Second
	cfg.Analysis.MaxRetries = 1
	return cfg
}

func testLogger(t *testing.T) *errors.Logger {
	t.Helper()
	logger, err := errors.New("error")
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return logger
}

func TestAnalyzeUploadsMultipart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/resume-analysis/analyze" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("jobSeekerId"); got != "seeker-1" {
			t.Errorf("jobSeekerId = %q, want seeker-1", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("missing file part: %v", err)
		}
		defer func() { _ = file.Close() }()
		if header.Filename != "resume.pdf" {
			t.Errorf("filename = %q, want resume.pdf", header.Filename)
		}
		content, _ := io.ReadAll(file)
		if string(content) != "resume body" {
			t.Errorf("file content = %q", content)
		}

		_ = json.NewEncoder(w).Encode(types.AnalyzeResult{
			ResumeID:    "r1",
			JobSeekerID: "seeker-1",
			ResumeText:  "resume body",
			JobMatches: []types.JobMatch{
				{GoogleJobID: "g1", MatchPercentage: 60},
			},
		})
	}))
	defer server.Close()

	client := NewHTTPClient(testConfig(server.URL), testLogger(t))
	result, err := client.Analyze(context.Background(), "seeker-1", "resume.pdf", strings.NewReader("resume body"))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if result.ResumeID != "r1" {
		t.Errorf("ResumeID = %q, want r1", result.ResumeID)
	}
	if len(result.JobMatches) != 1 || result.JobMatches[0].Key() != "g1" {
		t.Errorf("unexpected job matches: %+v", result.JobMatches)
	}
}

func TestAnalyzeNon2xxReturnsUploadError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad file", http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	client := NewHTTPClient(testConfig(server.URL), testLogger(t))
	_, err := client.Analyze(context.Background(), "seeker-1", "resume.pdf", strings.NewReader("x"))
	if err == nil {
		t.Fatal("expected error for 422 response")
	}
	appErr, ok := err.(*errors.AppError)
	if !ok {
		t.Fatalf("expected *errors.AppError, got %T", err)
	}
	if appErr.Type != errors.ErrorTypeUpload {
		t.Errorf("error type = %s, want upload", appErr.Type)
	}
}

func TestAutoImproveRetriesTransientFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "flaky", http.StatusServiceUnavailable)
			return
		}
		var req types.AutoImproveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		if req.Action != types.ActionApplySuggestion {
			t.Errorf("action = %q, want %q", req.Action, types.ActionApplySuggestion)
		}
		_ = json.NewEncoder(w).Encode(types.AutoImproveResult{
			ResumeText:      req.ResumeText + " improved",
			MatchPercentage: 85,
		})
	}))
	defer server.Close()

	client := NewHTTPClient(testConfig(server.URL), testLogger(t))
	result, err := client.AutoImprove(context.Background(), types.AutoImproveRequest{
		ResumeText:  "base",
		GoogleJobID: "g1",
		JobSeekerID: "seeker-1",
		Suggestion:  "Add Python",
	})
	if err != nil {
		t.Fatalf("AutoImprove() error = %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls (1 failure + 1 retry), got %d", calls.Load())
	}
	if result.MatchPercentage != 85 {
		t.Errorf("MatchPercentage = %d, want 85", result.MatchPercentage)
	}
}

func TestAutoImproveDoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer server.Close()

	client := NewHTTPClient(testConfig(server.URL), testLogger(t))
	_, err := client.AutoImprove(context.Background(), types.AutoImproveRequest{
		GoogleJobID: "g1", JobSeekerID: "seeker-1", Suggestion: "x",
	})
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if calls.Load() != 1 {
		t.Errorf("400 must not be retried, got %d calls", calls.Load())
	}
}

func TestPaginatedAnalyze(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("page") != "2" || q.Get("size") != "10" {
			t.Errorf("unexpected pagination params: %v", q)
		}
		_ = json.NewEncoder(w).Encode(types.JobMatchPage{
			JobMatches: []types.JobMatch{{JobID: "j1"}, {JobID: "j2"}},
			Page:       2,
			Size:       10,
			Total:      42,
		})
	}))
	defer server.Close()

	client := NewHTTPClient(testConfig(server.URL), testLogger(t))
	page, err := client.PaginatedAnalyze(context.Background(), "seeker-1", 2, 10)
	if err != nil {
		t.Fatalf("PaginatedAnalyze() error = %v", err)
	}
	if page.Total != 42 || len(page.JobMatches) != 2 {
		t.Errorf("unexpected page: %+v", page)
	}
}

func TestExtractSkills(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["text"] == "" {
			t.Error("missing text in request")
		}
		_, _ = w.Write([]byte(`{"skills":["Go","SQL"]}`))
	}))
	defer server.Close()

	client := NewHTTPClient(testConfig(server.URL), testLogger(t))
	skills, err := client.ExtractSkills(context.Background(), "resume text")
	if err != nil {
		t.Fatalf("ExtractSkills() error = %v", err)
	}
	if len(skills) != 2 || skills[0] != "Go" {
		t.Errorf("skills = %v", skills)
	}
}

func TestStatsReportsDisabledBreakers(t *testing.T) {
	client := NewHTTPClient(testConfig("http://localhost:0"), testLogger(t))
	stats := client.Stats()
	if healthy, ok := stats["overall_healthy"].(bool); !ok || !healthy {
		t.Errorf("expected overall_healthy true with disabled breakers, got %v", stats["overall_healthy"])
	}
}
