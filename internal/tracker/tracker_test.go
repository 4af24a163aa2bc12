package tracker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zero-day-ai/conductor/internal/types"
)

func TestHTTPClient_Create(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/items", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var item Item
		require.NoError(t, json.NewDecoder(r.Body).Decode(&item))
		item.ID = "TRK-1"
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(item)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "secret")
	created, err := client.Create(context.Background(), Item{Title: "port billing module"})
	require.NoError(t, err)
	assert.Equal(t, "TRK-1", created.ID)
	assert.Equal(t, "port billing module", created.Title)
}

func TestHTTPClient_UpdateAndComment(t *testing.T) {
	var gotPaths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPaths = append(gotPaths, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "")
	ctx := context.Background()

	require.NoError(t, client.Update(ctx, "TRK-1", map[string]any{"status": "in-progress"}))
	require.NoError(t, client.Comment(ctx, "TRK-1", "step 2 finished"))

	assert.Equal(t, []string{
		"PATCH /items/TRK-1",
		"POST /items/TRK-1/comments",
	}, gotPaths)
}

func TestHTTPClient_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "item not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "")
	err := client.Comment(context.Background(), "NOPE-1", "hello")
	require.Error(t, err)
	assert.Equal(t, types.TRACKER_CALL_FAILED, types.CodeOf(err))
	assert.Contains(t, err.Error(), "404")
}
