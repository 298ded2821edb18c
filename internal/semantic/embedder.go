// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package semantic

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/meshintel/parts-engine/pkg/types"
)

// Embedder generates a dense query embedding. Implementations must be
// safe for concurrent use.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// OpenAIEmbedder implements Embedder over an OpenAI-compatible
// embeddings API via langchaingo.
type OpenAIEmbedder struct {
	embedder embeddings.Embedder
}

// NewOpenAIEmbedder builds the embedder from config. An empty API key
// becomes "none" for local services that skip authentication.
func NewOpenAIEmbedder(cfg types.SemanticConfig, apiKey string) (*OpenAIEmbedder, error) {
	if cfg.EmbeddingModel == "" {
		return nil, fmt.Errorf("embedding model is required")
	}
	if apiKey == "" {
		apiKey = "none"
	}
	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
	}
	if cfg.EmbeddingHost != "" {
		opts = append(opts, openai.WithBaseURL(cfg.EmbeddingHost))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating embeddings client: %w", err)
	}
	emb, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("wrapping embedder: %w", err)
	}
	return &OpenAIEmbedder{embedder: emb}, nil
}

// EmbedQuery generates the dense embedding for the query text.
func (e *OpenAIEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embedder.EmbedQuery(ctx, text)
}

// SparseVector is a keyword-weight vector in the index's sparse space.
type SparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

// SparseEncode builds a deterministic sparse vector from keywords:
// FNV-32 token hashing with normalized term frequencies. No external
// sparse-embedding service is involved.
func SparseEncode(keywords []string) SparseVector {
	if len(keywords) == 0 {
		return SparseVector{}
	}
	counts := make(map[uint32]float32)
	for _, kw := range keywords {
		h := fnv.New32a()
		h.Write([]byte(kw))
		counts[h.Sum32()]++
	}
	indices := make([]uint32, 0, len(counts))
	for idx := range counts {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	total := float32(len(keywords))
	values := make([]float32, len(indices))
	for i, idx := range indices {
		values[i] = counts[idx] / total
	}
	return SparseVector{Indices: indices, Values: values}
}
