package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Backend. Documents accumulate for the life of
// the store; there is no eviction.
type MemoryStore struct {
	mu   sync.RWMutex
	docs []Document
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// AddDocuments appends documents, assigning each a fresh id. The batch is
// stored whole or not at all.
func (s *MemoryStore) AddDocuments(ctx context.Context, docs []Document) error {
	batch := make([]Document, 0, len(docs))
	for i, doc := range docs {
		if len(doc.Embedding) == 0 {
			return fmt.Errorf("document %d has no embedding", i)
		}
		batch = append(batch, Document{
			ID:        uuid.NewString(),
			Content:   doc.Content,
			Metadata:  copyMetadata(doc.Metadata),
			Embedding: append([]float32(nil), doc.Embedding...),
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, batch...)
	return nil
}

// SimilaritySearch ranks documents by cosine similarity. Ties keep insertion order.
func (s *MemoryStore) SimilaritySearch(ctx context.Context, queryEmbedding []float32, topK int, sourceFilter string) ([]SimilaritySearchResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]SimilaritySearchResult, 0, len(s.docs))
	for _, doc := range s.docs {
		if sourceFilter != "" && doc.Source() != sourceFilter {
			continue
		}
		results = append(results, SimilaritySearchResult{
			Document: withoutEmbedding(doc),
			Score:    cosineSimilarity(queryEmbedding, doc.Embedding),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// GetContentBySource returns every document for source in insertion order.
func (s *MemoryStore) GetContentBySource(ctx context.Context, source string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Document
	for _, doc := range s.docs {
		if doc.Source() == source {
			out = append(out, withoutEmbedding(doc))
		}
	}
	return out, nil
}

// GetContentByMetadata evaluates the same filter language as the pgvector store.
func (s *MemoryStore) GetContentByMetadata(ctx context.Context, filter map[string]interface{}) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Document
	for _, doc := range s.docs {
		ok, err := matchesFilter(doc.Metadata, filter)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, withoutEmbedding(doc))
		}
	}
	return out, nil
}

// Len reports how many documents are stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

func matchesFilter(metadata map[string]interface{}, filter map[string]interface{}) (bool, error) {
	for key, value := range filter {
		switch key {
		case "$and", "$or":
			list, ok := value.([]interface{})
			if !ok {
				return false, fmt.Errorf("value for %s must be a list of conditions", key)
			}
			if len(list) == 0 {
				continue
			}
			anyMatched := false
			allMatched := true
			for _, item := range list {
				sub, ok := item.(map[string]interface{})
				if !ok {
					return false, fmt.Errorf("item in %s list must be a JSON object", key)
				}
				matched, err := matchesFilter(metadata, sub)
				if err != nil {
					return false, err
				}
				anyMatched = anyMatched || matched
				allMatched = allMatched && matched
			}
			if (key == "$and" && !allMatched) || (key == "$or" && !anyMatched) {
				return false, nil
			}

		case "$not":
			sub, ok := value.(map[string]interface{})
			if !ok {
				return false, fmt.Errorf("value for $not must be a JSON object")
			}
			matched, err := matchesFilter(metadata, sub)
			if err != nil {
				return false, err
			}
			if matched {
				return false, nil
			}

		default:
			got, present := metadata[key]
			if !present || !jsonEqual(got, value) {
				return false, nil
			}
		}
	}
	return true, nil
}

// jsonEqual compares values by their JSON encoding so 2 and 2.0 match, as
// they do under jsonb containment.
func jsonEqual(a, b interface{}) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ab, bb)
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func copyMetadata(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func withoutEmbedding(doc Document) Document {
	doc.Embedding = nil
	doc.Metadata = copyMetadata(doc.Metadata)
	return doc
}
