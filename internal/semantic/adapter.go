// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package semantic queries a hybrid (dense + sparse) vector index of
// catalog chunks. Multiple chunks frequently describe the same logical
// part (one per diagram page); the adapter aggregates hits by part
// number instead of emitting duplicates.
package semantic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/meshintel/parts-engine/internal/httputil"
	"github.com/meshintel/parts-engine/internal/textutil"
	"github.com/meshintel/parts-engine/pkg/types"
)

const defaultTopK = 30

// Adapter queries a Pinecone-compatible vector index over HTTP.
type Adapter struct {
	client    *http.Client
	endpoint  string
	apiKey    string
	userAgent string
	embedder  Embedder
	topK      int
	warn      io.Writer
}

// New builds the adapter from tenant credentials. The endpoint is the
// index query URL; a tenant without vector credentials has no semantic
// adapter at all.
func New(creds *types.Credentials, cfg types.SemanticConfig, embedder Embedder, warn io.Writer) (*Adapter, error) {
	if creds == nil || creds.Endpoint == "" {
		return nil, fmt.Errorf("vector index endpoint is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	return &Adapter{
		client:    &http.Client{Timeout: cfg.Timeout},
		endpoint:  creds.Endpoint,
		apiKey:    creds.APIKey,
		userAgent: cfg.UserAgent,
		embedder:  embedder,
		topK:      topK,
		warn:      warn,
	}, nil
}

// Search embeds the query and runs the hybrid index query.
// expandedTerms join both sides of the hybrid: they enrich the
// embedded text and their keywords enter the sparse vector, so a chunk
// phrased with a synonym is still reachable. When the filtered query
// returns nothing and a namespace was used, it retries once with the
// namespace only: overly strict manufacturer/model metadata should not
// hide the whole namespace. A failed dense embedding yields an empty
// result, not an error.
func (a *Adapter) Search(ctx context.Context, queryText string, expandedTerms []string, mapping *types.CatalogMapping) ([]types.PartCandidate, error) {
	embedText := queryText
	if len(expandedTerms) > 0 {
		embedText = queryText + " " + strings.Join(expandedTerms, " ")
	}
	dense, err := a.embedder.EmbedQuery(ctx, embedText)
	if err != nil {
		fmt.Fprintf(a.warn, "warning: dense embedding failed: %v\n", err)
		return nil, nil
	}
	keywords := textutil.Keywords(queryText)
	for _, term := range expandedTerms {
		keywords = textutil.UnionStrings(keywords, textutil.Keywords(term))
	}
	sparse := SparseEncode(keywords)

	filter := mapping.Filter()
	namespace := ""
	if mapping != nil {
		namespace = mapping.Namespace
	}

	matches, err := a.query(ctx, dense, sparse, filter, namespace)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 && filter != nil && namespace != "" {
		matches, err = a.query(ctx, dense, sparse, nil, namespace)
		if err != nil {
			return nil, err
		}
	}
	return aggregate(matches), nil
}

// CloseIdleConnections drops the adapter's pooled keep-alive
// connections. The per-call release path calls this once the call's
// adapters are done.
func (a *Adapter) CloseIdleConnections() {
	a.client.CloseIdleConnections()
}

// queryRequest is the Pinecone-style hybrid query body.
type queryRequest struct {
	Vector          []float32                    `json:"vector"`
	SparseVector    *SparseVector                `json:"sparseVector,omitempty"`
	TopK            int                          `json:"topK"`
	IncludeMetadata bool                         `json:"includeMetadata"`
	Namespace       string                       `json:"namespace,omitempty"`
	Filter          map[string]map[string]string `json:"filter,omitempty"`
}

type queryResponse struct {
	Matches []match `json:"matches"`
}

type match struct {
	ID       string            `json:"id"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata"`
}

func (a *Adapter) query(ctx context.Context, dense []float32, sparse SparseVector, filter map[string]string, namespace string) ([]match, error) {
	reqBody := queryRequest{
		Vector:          dense,
		TopK:            a.topK,
		IncludeMetadata: true,
		Namespace:       namespace,
	}
	if len(sparse.Indices) > 0 {
		reqBody.SparseVector = &sparse
	}
	if filter != nil {
		reqBody.Filter = make(map[string]map[string]string, len(filter))
		for k, v := range filter {
			reqBody.Filter[k] = map[string]string{"$eq": v}
		}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encoding index query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint+"/query", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating index request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", a.userAgent)
	if a.apiKey != "" {
		req.Header.Set("Api-Key", a.apiKey)
	}

	resp, err := httputil.DoWithRetry(ctx, a.client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("vector index request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vector index returned HTTP %d", resp.StatusCode)
	}

	var qr queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return nil, fmt.Errorf("parsing index response: %w", err)
	}
	return qr.Matches, nil
}

// aggregate collapses matches that share a part number: the
// highest-scoring hit stays primary, the rest fold into its
// mergedEntries metadata.
func aggregate(matches []match) []types.PartCandidate {
	byPart := make(map[string]int)
	var out []types.PartCandidate

	for _, m := range matches {
		pn := m.Metadata["part_number"]
		if pn == "" {
			pn = m.ID
		}
		entry := types.MergedEntry{
			DiagramTitle: m.Metadata["diagram_title"],
			Quantity:     m.Metadata["quantity"],
			Remarks:      m.Metadata["remarks"],
			SourceURL:    m.Metadata["source_url"],
		}

		if idx, ok := byPart[pn]; ok {
			primary := &out[idx]
			score := toScore(m.Score)
			if score > primary.Score {
				// Later hit outranks the primary: promote its
				// fields, demote the old primary's page entry.
				old := types.MergedEntry{
					DiagramTitle: primary.Metadata.DiagramTitle,
					Quantity:     primary.Metadata.Quantity,
					Remarks:      primary.Metadata.Remarks,
					SourceURL:    primary.Metadata.SourceURL,
				}
				applyMetadata(primary, m)
				primary.Score = score
				primary.Metadata.MergedEntries = append(primary.Metadata.MergedEntries, old)
			} else {
				primary.Metadata.MergedEntries = append(primary.Metadata.MergedEntries, entry)
			}
			continue
		}

		c := types.PartCandidate{
			PartNumber: pn,
			Score:      toScore(m.Score),
			Source:     types.SourceSemantic,
		}
		applyMetadata(&c, m)
		byPart[pn] = len(out)
		out = append(out, c)
	}
	return out
}

func applyMetadata(c *types.PartCandidate, m match) {
	md := m.Metadata
	c.Description = md["description"]
	c.Category = md["category"]
	if v, err := strconv.ParseFloat(md["price"], 64); err == nil {
		c.Price = v
	}
	if v, err := strconv.Atoi(md["stock_quantity"]); err == nil {
		c.StockQuantity = v
	}
	c.Metadata.DiagramTitle = md["diagram_title"]
	c.Metadata.Quantity = md["quantity"]
	c.Metadata.Remarks = md["remarks"]
	c.Metadata.SourceURL = md["source_url"]
	if md["manufacturer"] != "" {
		c.Compatibility.Manufacturers = []string{md["manufacturer"]}
	}
	if md["model"] != "" {
		c.Compatibility.Models = []string{md["model"]}
	}
}

// toScore maps index similarity (0..1) onto the adapter-local 0-100
// scale.
func toScore(similarity float64) float64 {
	s := similarity * 100
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
