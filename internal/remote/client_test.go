package remote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/careline/medrag/internal/model"
	"github.com/careline/medrag/internal/pkg/errors"
)

func TestQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/rag/query", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req QueryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "dose de rifampicina", req.Text)
		json.NewEncoder(w).Encode(QueryResult{
			Answer:       "A dose mensal supervisionada é de 600mg.",
			Sources:      []string{"PCDT Hanseníase 2022"},
			QualityScore: 0.9,
		})
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL, APIKey: "secret"})
	result, err := client.Query(context.Background(), QueryRequest{Text: "dose de rifampicina", Persona: "dr_gasnelio"})
	require.NoError(t, err)
	require.Contains(t, result.Answer, "600mg")
	require.InDelta(t, 0.9, result.QualityScore, 1e-9)
	require.True(t, client.Available())
}

func TestQueryServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL})
	_, err := client.Query(context.Background(), QueryRequest{Text: "x"})
	require.ErrorIs(t, err, errors.ErrProviderUnavailable)
	require.False(t, client.Available(), "hard failure must trip the availability window")
}

func TestQueryMalformedBodyIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL})
	_, err := client.Query(context.Background(), QueryRequest{Text: "x"})
	require.ErrorIs(t, err, errors.ErrProviderUnavailable)
}

func TestQueryEmptyAnswerIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(QueryResult{Answer: "   "})
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL})
	_, err := client.Query(context.Background(), QueryRequest{Text: "x"})
	require.ErrorIs(t, err, errors.ErrProviderUnavailable)
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/rag/search", r.URL.Path)
		json.NewEncoder(w).Encode(searchResponse{Chunks: []model.ContextChunk{
			{DocumentID: "rifampicina-dosagem", Content: "600mg mensal", Similarity: 0.91},
		}})
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL})
	chunks, err := client.Search(context.Background(), "dose", model.SemanticFilters{})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	require.Equal(t, "rifampicina-dosagem", chunks[0].DocumentID)
}

func TestUnconfiguredClient(t *testing.T) {
	client := New(Config{})
	require.False(t, client.Available())
	_, err := client.Query(context.Background(), QueryRequest{Text: "x"})
	require.ErrorIs(t, err, errors.ErrProviderUnavailable)
}
