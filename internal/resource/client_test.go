package resource

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"matchpoint/internal/config"
	"matchpoint/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type jobPosting struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Company string `json:"company"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client[jobPosting] {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger, err := errors.New("error")
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Analysis.BaseURL = srv.URL
	cfg.Analysis.APIKey = "test-key"

	client := NewClient[jobPosting](cfg, "jobs", logger)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestList(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/jobs", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		assert.Equal(t, "5", r.URL.Query().Get("size"))
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))

		_ = json.NewEncoder(w).Encode(Page[jobPosting]{
			Items: []jobPosting{{ID: "j1", Title: "Go Engineer", Company: "Acme"}},
			Page:  2,
			Size:  5,
			Total: 11,
		})
	})

	page, err := client.List(context.Background(), 2, 5)
	require.NoError(t, err)
	assert.Equal(t, 11, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Go Engineer", page.Items[0].Title)
}

func TestGet(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/jobs/j1", r.URL.Path)

		_ = json.NewEncoder(w).Encode(jobPosting{ID: "j1", Title: "Go Engineer"})
	})

	item, err := client.Get(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, "j1", item.ID)
}

func TestCreate(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var posted jobPosting
		require.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
		posted.ID = "j9"

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(posted)
	})

	created, err := client.Create(context.Background(), &jobPosting{Title: "SRE", Company: "Acme"})
	require.NoError(t, err)
	assert.Equal(t, "j9", created.ID)
	assert.Equal(t, "SRE", created.Title)
}

func TestUpdate(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/jobs/j1", r.URL.Path)

		var posted jobPosting
		require.NoError(t, json.NewDecoder(r.Body).Decode(&posted))
		_ = json.NewEncoder(w).Encode(posted)
	})

	updated, err := client.Update(context.Background(), "j1", &jobPosting{ID: "j1", Title: "Staff Engineer"})
	require.NoError(t, err)
	assert.Equal(t, "Staff Engineer", updated.Title)
}

func TestDelete(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/jobs/j1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.Delete(context.Background(), "j1"))
}

func TestErrorStatusSurfacesAsNetworkError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	})

	_, err := client.Get(context.Background(), "missing")
	require.Error(t, err)

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errors.ErrorTypeNetwork, appErr.Type)
	assert.Equal(t, http.StatusNotFound, appErr.Context["status"])
}

func TestIDIsPathEscaped(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/jobs/a%2Fb", r.URL.EscapedPath())
		_ = json.NewEncoder(w).Encode(jobPosting{ID: "a/b"})
	})

	item, err := client.Get(context.Background(), "a/b")
	require.NoError(t, err)
	assert.Equal(t, "a/b", item.ID)
}
