package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRerank(t *testing.T) {
	var gotReq rerankRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_, _ = w.Write([]byte(`{"results": [
			{"index": 2, "relevance_score": 0.92},
			{"index": 0, "relevance_score": 0.41}
		]}`))
	}))
	defer server.Close()

	client := NewJinaClient("test-key", server.URL, time.Second)
	indices, err := client.Rerank(context.Background(), "wall height", []string{"a", "b", "c"}, 2)
	require.NoError(t, err)

	assert.Equal(t, jinaModel, gotReq.Model)
	assert.Equal(t, "wall height", gotReq.Query)
	assert.Equal(t, []string{"a", "b", "c"}, gotReq.Documents)
	assert.Equal(t, 2, gotReq.TopN)
	assert.Equal(t, []int{2, 0}, indices)
}

func TestRerankClampsTopN(t *testing.T) {
	var gotReq rerankRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		_, _ = w.Write([]byte(`{"results": [{"index": 0, "relevance_score": 0.5}, {"index": 1, "relevance_score": 0.4}]}`))
	}))
	defer server.Close()

	client := NewJinaClient("test-key", server.URL, time.Second)
	_, err := client.Rerank(context.Background(), "q", []string{"a", "b"}, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, gotReq.TopN)
}

func TestRerankEmptyDocuments(t *testing.T) {
	client := NewJinaClient("test-key", "http://127.0.0.1:1", time.Second)
	indices, err := client.Rerank(context.Background(), "q", nil, 3)
	require.NoError(t, err)
	assert.Nil(t, indices)
}

func TestRerankSurfacesErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"detail": "quota exhausted"}`))
	}))
	defer server.Close()

	client := NewJinaClient("test-key", server.URL, time.Second)
	_, err := client.Rerank(context.Background(), "q", []string{"a"}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 402")
	assert.Contains(t, err.Error(), "quota exhausted")
}
