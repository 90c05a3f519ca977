package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestEmbeddingClient_Embed(t *testing.T) {
	var got EmbeddingRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, embeddingPath, r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		// 故意乱序返回
		w.Write([]byte(`{"output":{"embeddings":[
			{"text_index":1,"embedding":[0,1]},
			{"text_index":0,"embedding":[1,0]}
		]},"usage":{"total_tokens":4}}`))
	}))
	defer srv.Close()

	c := NewEmbeddingClient(EmbeddingOptions{APIKey: "key", BaseURL: srv.URL}, zap.NewNop())
	vectors, err := c.Embed(context.Background(), []string{"a", "b"}, TextTypeDocument)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 0}, {0, 1}}, vectors)
	assert.Equal(t, "text-embedding-v2", got.Model)
	assert.Equal(t, "document", got.Parameters["text_type"])
}

func TestEmbeddingClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"http error", http.StatusUnauthorized, `{"code":"InvalidApiKey"}`, ErrHTTPStatus},
		{"missing vector", http.StatusOK, `{"output":{"embeddings":[]}}`, ErrUnusableOutput},
		{"bad index", http.StatusOK, `{"output":{"embeddings":[{"text_index":5,"embedding":[1]}]}}`, ErrUnusableOutput},
		{"not json", http.StatusOK, `oops`, ErrUnusableOutput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewEmbeddingClient(EmbeddingOptions{BaseURL: srv.URL}, zap.NewNop())
			_, err := c.EmbedQuery(context.Background(), "q")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
