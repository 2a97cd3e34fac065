package analysis

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"math"
	"math/big"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"matchpoint/internal/config"
	"matchpoint/internal/errors"
	"matchpoint/internal/types"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// HTTPClient talks to the external resume-analysis service. One instance is
// shared across the server and CLI; it is safe for concurrent use.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *errors.Logger

	analyzeCfg config.OperationConfig
	improveCfg config.OperationConfig
	bulkCfg    config.OperationConfig

	analyzeBreaker *CallBreaker
	improveBreaker *CallBreaker
	bulkBreaker    *CallBreaker
}

// Ensure HTTPClient implements Client
var _ Client = (*HTTPClient)(nil)

// NewHTTPClient creates an analysis-service client from configuration
func NewHTTPClient(cfg *config.Config, logger *errors.Logger) *HTTPClient {
	analyzeCfg := cfg.GetAnalyzeConfig()
	improveCfg := cfg.GetImproveConfig()
	bulkCfg := cfg.GetBulkConfig()

	return &HTTPClient{
		baseURL: cfg.Analysis.BaseURL,
		apiKey:  cfg.Analysis.APIKey,
		httpClient: &http.Client{
			// Per-call deadlines come from operation configs via context;
			// this is the hard ceiling.
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger:         logger,
		analyzeCfg:     analyzeCfg,
		improveCfg:     improveCfg,
		bulkCfg:        bulkCfg,
		analyzeBreaker: NewCallBreaker("analyze", &analyzeCfg, logger),
		improveBreaker: NewCallBreaker("improve", &improveCfg, logger),
		bulkBreaker:    NewCallBreaker("bulk", &bulkCfg, logger),
	}
}

// statusError is a non-2xx response from the analysis service
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("analysis service returned %d: %s", e.Code, e.Body)
}

// requestSpec describes one HTTP call; the body is held as bytes so the
// request can be rebuilt for each retry attempt.
type requestSpec struct {
	method      string
	url         string
	contentType string
	body        []byte
}

// doCall runs one analysis-service operation through its circuit breaker
// with retry, returning the response body.
func (c *HTTPClient) doCall(ctx context.Context, operation string, opCfg *config.OperationConfig, breaker *CallBreaker, spec requestSpec) ([]byte, error) {
	tracer := otel.Tracer("matchpoint.analysis")
	ctx, span := tracer.Start(ctx, "analysis."+operation)
	defer span.End()

	span.SetAttributes(
		attribute.String("analysis.operation", operation),
		attribute.String("http.method", spec.method),
	)

	body, err := breaker.Execute(func() ([]byte, error) {
		return c.executeWithRetry(ctx, operation, opCfg, spec)
	})
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("success", false))
		return nil, err
	}

	span.SetAttributes(attribute.Bool("success", true))
	return body, nil
}

// executeWithRetry executes an analysis call with retry logic and exponential backoff
func (c *HTTPClient) executeWithRetry(ctx context.Context, operation string, opCfg *config.OperationConfig, spec requestSpec) ([]byte, error) {
	var lastErr error
	maxRetries := *opCfg.MaxRetries

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			// Log retry attempt
			c.logger.Warn("Retrying analysis operation",
				"operation", operation,
				"attempt", attempt,
				"max_retries", maxRetries,
				"error", lastErr.Error())

			// Exponential backoff with jitter to prevent thundering herd
			baseDelay := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			// Use crypto/rand for secure random jitter
			jitterMax := big.NewInt(int64(float64(baseDelay) * 0.1))
			jitterBig, _ := rand.Int(rand.Reader, jitterMax)
			jitter := time.Duration(jitterBig.Int64())
			// Cap maximum backoff at 30 seconds
			backoff := min(baseDelay+jitter, 30*time.Second)

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		result, err := c.doRequest(ctx, opCfg, spec)
		if err == nil {
			if attempt > 0 {
				c.logger.Info("Analysis operation succeeded after retry",
					"operation", operation,
					"successful_attempt", attempt+1)
			}
			return result, nil
		}

		lastErr = err

		// Don't retry on certain errors (auth, invalid input, etc.)
		if !isRetryableError(err) {
			c.logger.Debug("Error is not retryable, stopping retry attempts",
				"operation", operation,
				"error", err.Error())
			break
		}
	}

	// Log final failure
	c.logger.LogError(lastErr, "Analysis operation failed after all retry attempts",
		"operation", operation,
		"total_attempts", maxRetries+1)

	return nil, fmt.Errorf("operation '%s' failed after %d retries: %w", operation, maxRetries, lastErr)
}

// doRequest performs a single HTTP round-trip within the operation's timeout
func (c *HTTPClient) doRequest(ctx context.Context, opCfg *config.OperationConfig, spec requestSpec) ([]byte, error) {
	callCtx, cancel := context.WithTimeout(ctx, *opCfg.Timeout)
	defer cancel()

	var bodyReader io.Reader
	if spec.body != nil {
		bodyReader = bytes.NewReader(spec.body)
	}

	req, err := http.NewRequestWithContext(callCtx, spec.method, spec.url, bodyReader)
	if err != nil {
		return nil, err
	}
	if spec.contentType != "" {
		req.Header.Set("Content-Type", spec.contentType)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{Code: resp.StatusCode, Body: truncateBody(respBody)}
	}

	return respBody, nil
}

// truncateBody keeps error payloads loggable
func truncateBody(body []byte) string {
	const limit = 512
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}

// isRetryableError determines if an error should trigger a retry
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Check for network errors (timeouts, connection issues)
	var netErr net.Error
	if stderrors.As(err, &netErr) {
		if netErr.Timeout() {
			return true // Retry on timeouts
		}
		// Consider other network errors retryable (e.g., connection refused)
		return true
	}

	// Check for HTTP status codes from the service
	var stErr *statusError
	if stderrors.As(err, &stErr) {
		switch stErr.Code {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
	}

	return false
}

// Analyze uploads a resume file and returns the baseline analysis
func (c *HTTPClient) Analyze(ctx context.Context, jobSeekerID, fileName string, file io.Reader) (*types.AnalyzeResult, error) {
	// Buffer the multipart body once so retries can replay it
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return nil, errors.NewUploadError(errors.ErrCodeAnalysisFailed, "Failed to build upload request", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, errors.NewUploadError(errors.ErrCodeAnalysisFailed, "Failed to read resume file", err)
	}
	if err := writer.Close(); err != nil {
		return nil, errors.NewUploadError(errors.ErrCodeAnalysisFailed, "Failed to build upload request", err)
	}

	endpoint := fmt.Sprintf("%s/resume-analysis/analyze?jobSeekerId=%s", c.baseURL, url.QueryEscape(jobSeekerID))
	body, err := c.doCall(ctx, "analyze", &c.analyzeCfg, c.analyzeBreaker, requestSpec{
		method:      http.MethodPost,
		url:         endpoint,
		contentType: writer.FormDataContentType(),
		body:        buf.Bytes(),
	})
	if err != nil {
		return nil, errors.NewUploadError(errors.ErrCodeAnalysisFailed,
			"Resume analysis failed", err).WithContext("job_seeker_id", jobSeekerID)
	}

	var result types.AnalyzeResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errors.NewUploadError(errors.ErrCodeAnalysisFailed,
			"Failed to parse analysis response", err)
	}
	return &result, nil
}

// AutoImprove applies exactly one suggestion to the supplied resume text
func (c *HTTPClient) AutoImprove(ctx context.Context, req types.AutoImproveRequest) (*types.AutoImproveResult, error) {
	if req.Action == "" {
		req.Action = types.ActionApplySuggestion
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, errors.NewApplyError(errors.ErrCodeApplyFailed, "Failed to encode auto-improve request", err)
	}

	body, err := c.doCall(ctx, "auto_improve", &c.improveCfg, c.improveBreaker, requestSpec{
		method:      http.MethodPost,
		url:         c.baseURL + "/resume-analysis/auto-improve",
		contentType: "application/json",
		body:        payload,
	})
	if err != nil {
		return nil, errors.NewApplyError(errors.ErrCodeApplyFailed,
			"Auto-improve failed", err).
			WithContext("job_seeker_id", req.JobSeekerID).
			WithContext("google_job_id", req.GoogleJobID)
	}

	var result types.AutoImproveResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errors.NewApplyError(errors.ErrCodeApplyFailed,
			"Failed to parse auto-improve response", err)
	}
	return &result, nil
}

// PaginatedAnalyze returns one page of bulk re-analysis job matches
func (c *HTTPClient) PaginatedAnalyze(ctx context.Context, jobSeekerID string, page, size int) (*types.JobMatchPage, error) {
	params := url.Values{}
	params.Set("jobSeekerId", jobSeekerID)
	params.Set("page", strconv.Itoa(page))
	params.Set("size", strconv.Itoa(size))

	body, err := c.doCall(ctx, "paginated_analyze", &c.bulkCfg, c.bulkBreaker, requestSpec{
		method: http.MethodGet,
		url:    c.baseURL + "/resume-analysis/matches?" + params.Encode(),
	})
	if err != nil {
		return nil, errors.NewNetworkError(errors.ErrCodeAnalysisFailed,
			"Paginated analysis failed", err).WithContext("page", page)
	}

	var result types.JobMatchPage
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errors.NewNetworkError(errors.ErrCodeAnalysisFailed,
			"Failed to parse paginated analysis response", err)
	}
	return &result, nil
}

// ExtractSkills extracts a skill list from free-form resume text
func (c *HTTPClient) ExtractSkills(ctx context.Context, text string) ([]string, error) {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, errors.NewNetworkError(errors.ErrCodeAnalysisFailed, "Failed to encode skill extraction request", err)
	}

	body, err := c.doCall(ctx, "extract_skills", &c.bulkCfg, c.bulkBreaker, requestSpec{
		method:      http.MethodPost,
		url:         c.baseURL + "/resume-analysis/extract-skills",
		contentType: "application/json",
		body:        payload,
	})
	if err != nil {
		return nil, errors.NewNetworkError(errors.ErrCodeAnalysisFailed,
			"Skill extraction failed", err)
	}

	var result struct {
		Skills []string `json:"skills"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, errors.NewNetworkError(errors.ErrCodeAnalysisFailed,
			"Failed to parse skill extraction response", err)
	}
	return result.Skills, nil
}

// Stats reports circuit breaker health for the stats endpoint
func (c *HTTPClient) Stats() map[string]any {
	stats := map[string]any{
		"analyze": c.analyzeBreaker.GetStats(),
		"improve": c.improveBreaker.GetStats(),
		"bulk":    c.bulkBreaker.GetStats(),
	}
	stats["overall_healthy"] = c.analyzeBreaker.IsHealthy() &&
		c.improveBreaker.IsHealthy() &&
		c.bulkBreaker.IsHealthy()
	return stats
}

// Close releases idle connections
func (c *HTTPClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
