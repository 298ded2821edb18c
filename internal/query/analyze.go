// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package query turns free-text parts questions into a structured
// intent. A language model does the analysis when one is configured;
// a deterministic rule-based analyzer answers when the model is absent,
// slow, or broken. Analyze never fails the caller.
package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/meshintel/parts-engine/internal/llm"
	"github.com/meshintel/parts-engine/internal/textutil"
	"github.com/meshintel/parts-engine/pkg/types"
)

// DefaultTimeout bounds the model call before the rule-based analyzer
// wins the race.
const DefaultTimeout = 2 * time.Second

// Analyze converts queryText into a ProcessedQuery. When client is nil,
// or the model call errors or outlasts timeout, the rule-based analyzer
// answers instead; a late model reply is discarded, never merged into
// the already-returned result.
func Analyze(ctx context.Context, queryText string, vehicle *types.VehicleContext, client llm.Client, timeout time.Duration) types.ProcessedQuery {
	if client == nil {
		return RuleBased(queryText)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	type analysis struct {
		pq  types.ProcessedQuery
		err error
	}

	// Buffered so the losing model goroutine can complete and exit
	// after the timer has already won.
	ch := make(chan analysis, 1)
	mctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	go func() {
		pq, err := fromModel(mctx, queryText, vehicle, client)
		ch <- analysis{pq: pq, err: err}
	}()

	select {
	case a := <-ch:
		if a.err != nil {
			return RuleBased(queryText)
		}
		return a.pq
	case <-mctx.Done():
		return RuleBased(queryText)
	}
}

// modelAnalysis is the JSON shape requested from the model.
type modelAnalysis struct {
	Intent          string   `json:"intent"`
	PartNumbers     []string `json:"part_numbers"`
	PartTypes       []string `json:"part_types"`
	ExpandedTerms   []string `json:"expanded_terms"`
	Attributes      []string `json:"attributes"`
	Urgent          bool     `json:"urgent"`
	ShouldSearchWeb bool     `json:"should_search_web"`
}

var validIntents = map[string]types.QueryIntent{
	"exact_part_number":   types.IntentExactPartNumber,
	"part_description":    types.IntentPartDescription,
	"compatibility_check": types.IntentCompatibilityCheck,
	"alternatives":        types.IntentAlternatives,
	"general_question":    types.IntentGeneralQuestion,
}

func fromModel(ctx context.Context, queryText string, vehicle *types.VehicleContext, client llm.Client) (types.ProcessedQuery, error) {
	var ma modelAnalysis
	if err := client.GenerateStructured(ctx, analysisPrompt(queryText, vehicle), &ma); err != nil {
		return types.ProcessedQuery{}, err
	}

	intent, ok := validIntents[ma.Intent]
	if !ok {
		return types.ProcessedQuery{}, fmt.Errorf("model returned unknown intent %q", ma.Intent)
	}

	pq := types.ProcessedQuery{
		OriginalQuery:   queryText,
		Intent:          intent,
		PartNumbers:     ma.PartNumbers,
		PartTypes:       ma.PartTypes,
		ExpandedTerms:   ma.ExpandedTerms,
		Attributes:      ma.Attributes,
		Urgent:          ma.Urgent,
		ShouldSearchWeb: ma.ShouldSearchWeb,
	}

	// The model sometimes misses part-number-shaped tokens the regex
	// catches; a bare part number must also force web escalation since
	// it might not exist in the internal stores.
	pq.PartNumbers = textutil.UnionStrings(pq.PartNumbers, textutil.PartNumbers(queryText))
	if len(pq.PartNumbers) > 0 && len(pq.PartTypes) == 0 {
		pq.ShouldSearchWeb = true
	}

	pq.PartIntents = BuildPartIntents(pq.PartTypes, pq.PartNumbers)
	return pq, nil
}

func analysisPrompt(queryText string, vehicle *types.VehicleContext) string {
	var b strings.Builder
	b.WriteString("You analyze parts-lookup queries for heavy-equipment maintenance.\n")
	b.WriteString("Reply with a single JSON object, no prose:\n")
	b.WriteString(`{"intent":"exact_part_number|part_description|compatibility_check|alternatives|general_question",`)
	b.WriteString(`"part_numbers":[],"part_types":[],"expanded_terms":[],"attributes":[],"urgent":false,"should_search_web":false}` + "\n")
	b.WriteString("part_types are generic component names (e.g. \"fuel filter\"). ")
	b.WriteString("expanded_terms are synonyms for the detected part types. ")
	b.WriteString("Set should_search_web when the query asks about price, suppliers, or availability.\n")
	if vehicle != nil && (vehicle.Make != "" || vehicle.Model != "") {
		fmt.Fprintf(&b, "Vehicle context: %s %s\n", vehicle.Make, vehicle.Model)
	}
	fmt.Fprintf(&b, "Query: %s\n", queryText)
	return b.String()
}

// RuleBased is the deterministic fallback analyzer: regex part-number
// extraction, a part-type synonym dictionary, a fixed attribute
// vocabulary, and keyword urgency/web heuristics.
func RuleBased(queryText string) types.ProcessedQuery {
	lower := strings.ToLower(queryText)
	partNumbers := textutil.PartNumbers(queryText)
	partTypes := detectPartTypes(lower)

	var expanded []string
	for _, pt := range partTypes {
		expanded = textutil.UnionStrings(expanded, ExpandTerms(pt))
	}

	var attrs []string
	for _, a := range attributeVocab {
		if strings.Contains(lower, a) {
			attrs = append(attrs, a)
		}
	}

	urgent := containsAny(lower, urgentWords)
	commerce := containsAny(lower, commerceWords)

	// A bare part number might not exist internally; let the web
	// confirm it.
	barePartNumber := len(partNumbers) > 0 && len(partTypes) == 0 &&
		textutil.Phrase(textutil.StripPartNumbers(queryText)) == ""

	pq := types.ProcessedQuery{
		OriginalQuery:   queryText,
		Intent:          classify(lower, partNumbers, partTypes),
		PartNumbers:     partNumbers,
		PartTypes:       partTypes,
		ExpandedTerms:   expanded,
		Attributes:      attrs,
		Urgent:          urgent,
		ShouldSearchWeb: commerce || barePartNumber,
	}
	pq.PartIntents = BuildPartIntents(partTypes, partNumbers)
	return pq
}

// detectPartTypes returns canonical part types whose name or any
// synonym appears in the query, ordered by position of first match.
func detectPartTypes(lower string) []string {
	type hit struct {
		partType string
		pos      int
	}
	var hits []hit
	for partType, terms := range partSynonyms {
		best := -1
		for _, term := range terms {
			if idx := strings.Index(lower, term); idx >= 0 && (best < 0 || idx < best) {
				best = idx
			}
		}
		if best >= 0 {
			hits = append(hits, hit{partType, best})
		}
	}
	// Insertion sort by position, then name for a stable order.
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0; j-- {
			if hits[j].pos < hits[j-1].pos ||
				(hits[j].pos == hits[j-1].pos && hits[j].partType < hits[j-1].partType) {
				hits[j], hits[j-1] = hits[j-1], hits[j]
			} else {
				break
			}
		}
	}
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.partType)
	}
	return out
}

func classify(lower string, partNumbers, partTypes []string) types.QueryIntent {
	switch {
	case containsAny(lower, []string{"compatible", "fit ", "fits", "work with", "work on"}):
		return types.IntentCompatibilityCheck
	case containsAny(lower, []string{"alternative", "replacement for", "substitute", "instead of", "cross reference"}):
		return types.IntentAlternatives
	case len(partNumbers) > 0 && len(partTypes) == 0:
		return types.IntentExactPartNumber
	case len(partTypes) > 0 || len(partNumbers) > 0:
		return types.IntentPartDescription
	default:
		return types.IntentGeneralQuestion
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// BuildPartIntents emits one intent per part type and one per part
// number. It returns nil when the combined count is one or zero: a
// single detected part is not a multi-part query. Each part-type
// intent carries its own synonym expansion, scoped to that type only.
func BuildPartIntents(partTypes, partNumbers []string) []types.PartIntent {
	if len(partTypes)+len(partNumbers) <= 1 {
		return nil
	}
	intents := make([]types.PartIntent, 0, len(partTypes)+len(partNumbers))
	for _, pt := range partTypes {
		intents = append(intents, types.PartIntent{
			Label:         pt,
			Query:         pt,
			PartType:      pt,
			ExpandedTerms: ExpandTerms(pt),
		})
	}
	for _, pn := range partNumbers {
		intents = append(intents, types.PartIntent{
			Label:      pn,
			Query:      pn,
			PartNumber: pn,
		})
	}
	return intents
}
