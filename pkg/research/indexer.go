package research

import (
	"context"
	"fmt"

	"github.com/rthallapally/AI-Research-Agent/pkg/embeddings"
	"github.com/rthallapally/AI-Research-Agent/pkg/vectorstore"
)

// DefaultTopK is used when a query asks for k <= 0.
const DefaultTopK = 4

// Index embeds chunks into a vector backend and answers nearest-neighbour
// queries. Ids are always assigned by the backend.
type Index struct {
	embedder embeddings.Embedder
	backend  vectorstore.Backend
	topK     int
}

// NewIndex creates an index; topK <= 0 selects DefaultTopK.
func NewIndex(embedder embeddings.Embedder, backend vectorstore.Backend, topK int) *Index {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Index{embedder: embedder, backend: backend, topK: topK}
}

// Ingest embeds and stores chunks.
func (ix *Index) Ingest(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := ix.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	docs := make([]vectorstore.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = vectorstore.Document{
			Content:   c.Content,
			Metadata:  map[string]interface{}{"source": c.SourceID},
			Embedding: vectors[i],
		}
	}

	if err := ix.backend.AddDocuments(ctx, docs); err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}
	return nil
}

// Query returns up to k chunks nearest to text, in backend order.
func (ix *Index) Query(ctx context.Context, text string, k int) ([]Chunk, error) {
	if k <= 0 {
		k = ix.topK
	}

	vector, err := ix.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := ix.backend.SimilaritySearch(ctx, vector, k, "")
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	chunks := make([]Chunk, 0, len(results))
	for _, r := range results {
		chunks = append(chunks, Chunk{Content: r.Document.Content, SourceID: r.Document.Source()})
	}
	return chunks, nil
}

// ChunkRecords splits each record's content; every chunk inherits the record's SourceID.
func ChunkRecords(s Splitter, records []EvidenceRecord) ([]Chunk, error) {
	var chunks []Chunk
	for _, rec := range records {
		parts, err := s.SplitText(rec.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to split %s: %w", rec.SourceID, err)
		}
		for _, p := range parts {
			if p == "" {
				continue
			}
			chunks = append(chunks, Chunk{Content: p, SourceID: rec.SourceID})
		}
	}
	return chunks, nil
}
