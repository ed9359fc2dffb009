package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/narrator/pkg/llm"
)

func TestNewEmbedderWithConfig_Defaults(t *testing.T) {
	emb, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{})
	require.NoError(t, err)

	assert.Equal(t, llm.DefaultEmbeddingModel, emb.Config().Model)
	assert.Equal(t, llm.DefaultOllamaURL, emb.Config().BaseURL)
}

func TestEmbedder_NoTexts(t *testing.T) {
	emb, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{BaseURL: "http://localhost:1"})
	require.NoError(t, err)

	_, err = emb.CreateEmbedding(context.Background(), nil)
	assert.Error(t, err)
}

func TestEmbedder_CreateEmbedding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embedding":  []float32{0.1, 0.2, 0.3},
			"embeddings": [][]float32{{0.1, 0.2, 0.3}},
		})
	}))
	defer srv.Close()

	emb, err := llm.NewEmbedderWithConfig(llm.EmbedderConfig{BaseURL: srv.URL})
	require.NoError(t, err)

	vectors, err := emb.CreateEmbedding(context.Background(), []string{"first"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vectors[0])
}
