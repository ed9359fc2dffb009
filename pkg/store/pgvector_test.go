package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/narrator/internal/models"
)

func TestSanitizeUTF8(t *testing.T) {
	assert.Equal(t, "abc", sanitizeUTF8("a\xffb\xfec"))
	assert.Equal(t, "grüße", sanitizeUTF8("grüße"))
}

func TestNewWithConfig_InvalidTable(t *testing.T) {
	_, err := NewWithConfig(context.Background(), VectorStoreConfig{TableName: "x; DROP TABLE y"})
	assert.Error(t, err)
}

func vector(dim int, hot int) []float32 {
	v := make([]float32, dim)
	v[hot] = 1
	return v
}

func TestVectorStore(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()

	table := fmt.Sprintf("test_analyses_%d", time.Now().UnixNano())
	s, err := NewWithConfig(ctx, VectorStoreConfig{ConnString: url, TableName: table, VectorDim: 3})
	require.NoError(t, err)
	defer s.Close()
	defer s.pool.Exec(ctx, "DROP TABLE IF EXISTS "+table)

	recs := []models.ArchiveRecord{
		{ID: uuid.NewString(), Source: "https://a.example", URL: "https://a.example/1", Category: "ai", Content: "about models"},
		{ID: uuid.NewString(), Source: "https://b.example", URL: "https://b.example", Category: "web", Content: "about browsers"},
	}
	require.NoError(t, s.Store(ctx, recs[0], vector(3, 0)))
	require.NoError(t, s.Store(ctx, recs[1], vector(3, 1)))

	assert.ErrorIs(t, s.Store(ctx, recs[0], vector(4, 0)), ErrDimension)

	results, err := s.Query(ctx, vector(3, 1), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, recs[1].ID, results[0].ID)
	assert.Equal(t, "web", results[0].Category)
	assert.InDelta(t, 0, results[0].Distance, 1e-6)

	results, err = s.Query(ctx, vector(3, 0), 0)
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, recs[0].ID, results[0].ID)
}
