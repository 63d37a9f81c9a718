package vectorstore

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMemoryStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	err := s.AddDocuments(context.Background(), []Document{
		{Content: "north", Metadata: map[string]interface{}{"source": "a", "page": 1}, Embedding: []float32{0, 1}},
		{Content: "east", Metadata: map[string]interface{}{"source": "b", "page": 2}, Embedding: []float32{1, 0}},
		{Content: "north-east", Metadata: map[string]interface{}{"source": "a", "page": 2}, Embedding: []float32{1, 1}},
	})
	require.NoError(t, err)
	return s
}

func TestMemoryStoreAssignsIDs(t *testing.T) {
	s := seedMemoryStore(t)
	require.Equal(t, 3, s.Len())

	docs, err := s.GetContentBySource(context.Background(), "a")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.NotEmpty(t, docs[0].ID)
	assert.NotEqual(t, docs[0].ID, docs[1].ID)
	assert.Nil(t, docs[0].Embedding)
}

func TestMemoryStoreSimilaritySearch(t *testing.T) {
	s := seedMemoryStore(t)

	results, err := s.SimilaritySearch(context.Background(), []float32{0, 1}, 2, "")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "north", results[0].Document.Content)
	assert.Equal(t, "north-east", results[1].Document.Content)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)

	filtered, err := s.SimilaritySearch(context.Background(), []float32{0, 1}, 5, "b")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "east", filtered[0].Document.Content)

	_, err = s.SimilaritySearch(context.Background(), []float32{0, 1}, 0, "")
	assert.Error(t, err)
}

func TestMemoryStoreRejectsMissingEmbedding(t *testing.T) {
	s := NewMemoryStore()
	err := s.AddDocuments(context.Background(), []Document{{Content: "x"}})
	assert.Error(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStoreAddIsAllOrNothing(t *testing.T) {
	s := seedMemoryStore(t)

	err := s.AddDocuments(context.Background(), []Document{
		{Content: "valid", Metadata: map[string]interface{}{"source": "c"}, Embedding: []float32{1, 1}},
		{Content: "missing"},
	})
	require.Error(t, err)
	assert.Equal(t, 3, s.Len())

	docs, err := s.GetContentBySource(context.Background(), "c")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMemoryStoreListValuedMetadata(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.AddDocuments(context.Background(), []Document{
		{Content: "tagged", Metadata: map[string]interface{}{"source": "a", "tags": []interface{}{"x", "y"}}, Embedding: []float32{1, 0}},
		{Content: "plain", Metadata: map[string]interface{}{"source": "b"}, Embedding: []float32{0, 1}},
	}))

	docs, err := s.GetContentByMetadata(context.Background(), map[string]interface{}{"tags": []interface{}{"x", "y"}})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "tagged", docs[0].Content)

	docs, err = s.GetContentByMetadata(context.Background(), map[string]interface{}{"tags": map[string]interface{}{"x": 1}})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMemoryStoreConcurrentUse(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.AddDocuments(ctx, []Document{
				{Content: fmt.Sprintf("doc-%d", i), Metadata: map[string]interface{}{"source": "s"}, Embedding: []float32{1, float32(i)}},
			}))
		}()
		go func() {
			defer wg.Done()
			_, err := s.SimilaritySearch(ctx, []float32{1, 0}, 3, "s")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, s.Len())
}

func TestMemoryStoreGetContentByMetadata(t *testing.T) {
	s := seedMemoryStore(t)

	tests := []struct {
		name   string
		filter map[string]interface{}
		want   []string
	}{
		{"empty matches all", map[string]interface{}{}, []string{"north", "east", "north-east"}},
		{"equality", map[string]interface{}{"page": 2.0}, []string{"east", "north-east"}},
		{"implicit and", map[string]interface{}{"source": "a", "page": 2}, []string{"north-east"}},
		{"or", map[string]interface{}{"$or": []interface{}{
			map[string]interface{}{"page": 1},
			map[string]interface{}{"source": "b"},
		}}, []string{"north", "east"}},
		{"not", map[string]interface{}{"$not": map[string]interface{}{"source": "a"}}, []string{"east"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := s.GetContentByMetadata(context.Background(), tt.filter)
			require.NoError(t, err)
			var got []string
			for _, d := range docs {
				got = append(got, d.Content)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := s.GetContentByMetadata(context.Background(), map[string]interface{}{"$or": "bad"})
	assert.Error(t, err)
}
