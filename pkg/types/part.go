// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the parts-engine search
// pipeline: adapter candidates, merged and enriched results, processed
// queries, vehicle scoping, and per-stage configuration.
package types

// SourceKind identifies the retrieval adapter that produced a candidate.
type SourceKind string

const (
	SourceStructured SourceKind = "structured"
	SourceSemantic   SourceKind = "semantic"
	SourceGraph      SourceKind = "graph"
	SourceWeb        SourceKind = "web"
)

// RelationEdge records one relationship between two parts found in the
// graph store (e.g. "supersedes", "compatible_with"). Edges are
// concatenated during merge, never deduplicated: multiplicity is
// informative.
type RelationEdge struct {
	PartNumber string `json:"part_number" yaml:"part_number"`
	Relation   string `json:"relation" yaml:"relation"`
}

// Compatibility holds the vehicle and catalog relationships known for a
// candidate. Array fields are unioned with order-preserving dedup when
// candidates merge; RelatedParts edges are concatenated.
type Compatibility struct {
	Models        []string       `json:"models,omitempty" yaml:"models,omitempty"`
	Manufacturers []string       `json:"manufacturers,omitempty" yaml:"manufacturers,omitempty"`
	SerialRanges  []string       `json:"serial_ranges,omitempty" yaml:"serial_ranges,omitempty"`
	Categories    []string       `json:"categories,omitempty" yaml:"categories,omitempty"`
	Domains       []string       `json:"domains,omitempty" yaml:"domains,omitempty"`
	RelatedParts  []RelationEdge `json:"related_parts,omitempty" yaml:"related_parts,omitempty"`
}

// MergedEntry is one underlying row that collapsed into a candidate
// during per-part aggregation (e.g. the same part appearing on several
// diagram pages).
type MergedEntry struct {
	DiagramTitle string `json:"diagram_title,omitempty" yaml:"diagram_title,omitempty"`
	Quantity     string `json:"quantity,omitempty" yaml:"quantity,omitempty"`
	Remarks      string `json:"remarks,omitempty" yaml:"remarks,omitempty"`
	SourceURL    string `json:"source_url,omitempty" yaml:"source_url,omitempty"`
}

// Metadata holds per-source extras attached to a candidate. Scalar
// fields keep the first non-empty value seen during merge; later values
// only fill gaps. Extra is an uninterpreted passthrough bag for
// adapter-specific fields the merge engine does not touch.
type Metadata struct {
	DiagramTitle  string            `json:"diagram_title,omitempty" yaml:"diagram_title,omitempty"`
	CategoryPath  string            `json:"category_path,omitempty" yaml:"category_path,omitempty"`
	SourceName    string            `json:"source_name,omitempty" yaml:"source_name,omitempty"`
	SourceURL     string            `json:"source_url,omitempty" yaml:"source_url,omitempty"`
	Quantity      string            `json:"quantity,omitempty" yaml:"quantity,omitempty"`
	Remarks       string            `json:"remarks,omitempty" yaml:"remarks,omitempty"`
	Snippet       string            `json:"snippet,omitempty" yaml:"snippet,omitempty"`
	MergedEntries []MergedEntry     `json:"merged_entries,omitempty" yaml:"merged_entries,omitempty"`
	Extra         map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// PartCandidate is one hit from one adapter. Candidates are immutable
// after the adapter returns them; the merge engine produces new values
// rather than mutating candidates in place.
type PartCandidate struct {
	// PartNumber is the natural identity key within a tenant.
	PartNumber string `json:"part_number" yaml:"part_number"`

	// Description is the human-readable part description.
	Description string `json:"description" yaml:"description"`

	// Price is the unit price, zero when unknown.
	Price float64 `json:"price,omitempty" yaml:"price,omitempty"`

	// StockQuantity is the on-hand stock count, zero when unknown.
	StockQuantity int `json:"stock_quantity,omitempty" yaml:"stock_quantity,omitempty"`

	// Category is the catalog category, when known.
	Category string `json:"category,omitempty" yaml:"category,omitempty"`

	// Score is the adapter-local relevance in [0,100].
	Score float64 `json:"score" yaml:"score"`

	// Source identifies which adapter produced this candidate.
	Source SourceKind `json:"source" yaml:"source"`

	Compatibility Compatibility `json:"compatibility,omitempty" yaml:"compatibility,omitempty"`
	Metadata      Metadata      `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// MergedResult is a PartCandidate deduplicated across adapters by part
// number. Sources lists the adapters that found it, in first-seen order.
// Score is the max of the contributing candidate scores.
type MergedResult struct {
	PartCandidate `yaml:",inline"`

	Sources []SourceKind `json:"sources" yaml:"sources"`
}

// EnrichedResult is a MergedResult with a final confidence score, the
// adapters that found it, and a human-readable reason. This is the unit
// passed to reranking and returned to callers.
type EnrichedResult struct {
	MergedResult `yaml:",inline"`

	// Confidence may exceed the adapter score via the multi-source
	// bonus, capped at 100.
	Confidence float64 `json:"confidence" yaml:"confidence"`

	// FoundBy copies Sources for the caller-facing payload.
	FoundBy []SourceKind `json:"found_by" yaml:"found_by"`

	// Reason explains the confidence in one deterministic sentence.
	Reason string `json:"reason" yaml:"reason"`
}
