// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// QueryIntent classifies what the user is asking for.
type QueryIntent string

const (
	IntentExactPartNumber    QueryIntent = "exact_part_number"
	IntentPartDescription    QueryIntent = "part_description"
	IntentCompatibilityCheck QueryIntent = "compatibility_check"
	IntentAlternatives       QueryIntent = "alternatives"
	IntentGeneralQuestion    QueryIntent = "general_question"
)

// PartIntent is one distinct part request extracted from a multi-part
// query. ExpandedTerms is scoped to this intent only: synonym expansion
// for one part type never leaks into another intent.
type PartIntent struct {
	// Label names the intent for display (the part type or part number).
	Label string `json:"label" yaml:"label"`

	// Query is the text searched for this intent.
	Query string `json:"query" yaml:"query"`

	// PartType is set for intents derived from a detected part type.
	PartType string `json:"part_type,omitempty" yaml:"part_type,omitempty"`

	// PartNumber is set for intents derived from a detected part number.
	PartNumber string `json:"part_number,omitempty" yaml:"part_number,omitempty"`

	// ExpandedTerms holds synonyms for this intent's part type only.
	ExpandedTerms []string `json:"expanded_terms,omitempty" yaml:"expanded_terms,omitempty"`
}

// ProcessedQuery is the structured intent produced by query
// understanding. PartIntents is nil unless the query decomposes into
// two or more distinct part requests; a single detected part never
// produces the field.
type ProcessedQuery struct {
	OriginalQuery string      `json:"original_query" yaml:"original_query"`
	Intent        QueryIntent `json:"intent" yaml:"intent"`

	PartNumbers   []string `json:"part_numbers,omitempty" yaml:"part_numbers,omitempty"`
	PartTypes     []string `json:"part_types,omitempty" yaml:"part_types,omitempty"`
	ExpandedTerms []string `json:"expanded_terms,omitempty" yaml:"expanded_terms,omitempty"`
	Attributes    []string `json:"attributes,omitempty" yaml:"attributes,omitempty"`

	Urgent          bool `json:"urgent" yaml:"urgent"`
	ShouldSearchWeb bool `json:"should_search_web" yaml:"should_search_web"`

	PartIntents []PartIntent `json:"part_intents,omitempty" yaml:"part_intents,omitempty"`
}

// IsMultiPart reports whether the query decomposed into independent
// part requests.
func (q ProcessedQuery) IsMultiPart() bool {
	return len(q.PartIntents) >= 2
}

// PartGroup holds the results for one PartIntent in multi-part mode.
// Groups are independent views: the same part may appear, with
// different confidence, in two groups.
type PartGroup struct {
	Label       string           `json:"label" yaml:"label"`
	QueryUsed   string           `json:"query_used" yaml:"query_used"`
	Results     []EnrichedResult `json:"results" yaml:"results"`
	WebResults  []EnrichedResult `json:"web_results,omitempty" yaml:"web_results,omitempty"`
	ResultCount int              `json:"result_count" yaml:"result_count"`
}
