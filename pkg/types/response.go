// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// SearchMetadata summarizes one search call.
type SearchMetadata struct {
	// SearchID uniquely identifies the call for log correlation.
	SearchID string `json:"search_id" yaml:"search_id"`

	TotalResults int   `json:"total_results" yaml:"total_results"`
	SearchTimeMs int64 `json:"search_time_ms" yaml:"search_time_ms"`

	// SourcesUsed lists the adapters that contributed at least one
	// candidate, in fan-out order.
	SourcesUsed []SourceKind `json:"sources_used" yaml:"sources_used"`

	QueryIntent      QueryIntent `json:"query_intent,omitempty" yaml:"query_intent,omitempty"`
	IsMultiPartQuery bool        `json:"is_multi_part_query,omitempty" yaml:"is_multi_part_query,omitempty"`
	PartCount        int         `json:"part_count,omitempty" yaml:"part_count,omitempty"`
}

// SearchResponse is the envelope returned by the orchestrator. A call
// that finds nothing is a success with empty result arrays and
// TotalResults zero.
type SearchResponse struct {
	Results    []EnrichedResult `json:"results" yaml:"results"`
	WebResults []EnrichedResult `json:"web_results,omitempty" yaml:"web_results,omitempty"`

	// PartGroups is present only for multi-part queries; Results then
	// holds the flat cross-group-deduplicated view.
	PartGroups []PartGroup `json:"part_groups,omitempty" yaml:"part_groups,omitempty"`

	SuggestedFilters []string `json:"suggested_filters,omitempty" yaml:"suggested_filters,omitempty"`
	RelatedQueries   []string `json:"related_queries,omitempty" yaml:"related_queries,omitempty"`

	Metadata SearchMetadata `json:"metadata" yaml:"metadata"`
}
