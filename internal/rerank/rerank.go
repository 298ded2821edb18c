// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package rerank re-scores the top merged results with a language
// model. Degradation is graceful by contract: any model failure returns
// the pre-rerank order unchanged, and results the model never saw are
// preserved verbatim.
package rerank

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/meshintel/parts-engine/internal/llm"
	"github.com/meshintel/parts-engine/pkg/types"
)

const (
	// DefaultMaxCandidates is how many top results are sent to the
	// model.
	DefaultMaxCandidates = 30

	// dropBelow removes results the model considers noise.
	dropBelow = 20
)

// Output holds the reranked results and the model's suggestions.
type Output struct {
	Results          []types.EnrichedResult
	SuggestedFilters []string
	RelatedQueries   []string
}

type ranking struct {
	PartNumber      string  `json:"part_number"`
	MatchConfidence float64 `json:"match_confidence"`
	Reason          string  `json:"reason"`
}

type rerankReply struct {
	Rankings         []ranking `json:"rankings"`
	SuggestedFilters []string  `json:"suggested_filters"`
	RelatedQueries   []string  `json:"related_queries"`
}

// Rerank sends at most maxCandidates top results to the model. Results
// the model omits are dropped only if they were among those sent;
// results beyond the window keep their original confidence and are
// appended after the reranked set. A match_confidence below 20 drops
// the result. On any model failure the original order is returned with
// empty filters and related queries.
func Rerank(ctx context.Context, queryText string, pq types.ProcessedQuery, results []types.EnrichedResult, client llm.Client, vehicle *types.VehicleContext, maxCandidates int) Output {
	fallback := Output{Results: results}
	if client == nil || len(results) == 0 {
		return fallback
	}
	if maxCandidates <= 0 {
		maxCandidates = DefaultMaxCandidates
	}

	window := results
	var tail []types.EnrichedResult
	if len(results) > maxCandidates {
		window = results[:maxCandidates]
		tail = results[maxCandidates:]
	}

	var reply rerankReply
	if err := client.GenerateStructured(ctx, prompt(queryText, pq, window, vehicle), &reply); err != nil {
		return fallback
	}
	if len(reply.Rankings) == 0 {
		return fallback
	}

	byPart := make(map[string]ranking, len(reply.Rankings))
	for _, r := range reply.Rankings {
		byPart[r.PartNumber] = r
	}

	reranked := make([]types.EnrichedResult, 0, len(window))
	for _, res := range window {
		r, ok := byPart[res.PartNumber]
		if !ok {
			// Omitted from the reply: the model filtered it.
			continue
		}
		if r.MatchConfidence < dropBelow {
			continue
		}
		res.Confidence = r.MatchConfidence
		if r.Reason != "" {
			res.Reason = r.Reason
		}
		reranked = append(reranked, res)
	}
	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].Confidence > reranked[j].Confidence
	})

	// Long-tail results the model never saw ride along unchanged.
	reranked = append(reranked, tail...)

	return Output{
		Results:          reranked,
		SuggestedFilters: reply.SuggestedFilters,
		RelatedQueries:   reply.RelatedQueries,
	}
}

func prompt(queryText string, pq types.ProcessedQuery, window []types.EnrichedResult, vehicle *types.VehicleContext) string {
	var b strings.Builder
	b.WriteString("Rank these heavy-equipment part candidates for the query.\n")
	b.WriteString("Reply with JSON only:\n")
	b.WriteString(`{"rankings":[{"part_number":"","match_confidence":0,"reason":""}],`)
	b.WriteString(`"suggested_filters":[],"related_queries":[]}` + "\n")
	b.WriteString("match_confidence is 0-100. Omit candidates that do not fit the query at all.\n")
	fmt.Fprintf(&b, "Query: %s\n", queryText)
	if pq.Intent != "" {
		fmt.Fprintf(&b, "Intent: %s\n", pq.Intent)
	}
	if vehicle != nil && (vehicle.Make != "" || vehicle.Model != "") {
		fmt.Fprintf(&b, "Vehicle: %s %s\n", vehicle.Make, vehicle.Model)
	}
	b.WriteString("Candidates:\n")
	for _, res := range window {
		fmt.Fprintf(&b, "- %s | %s | confidence %.0f | sources %s\n",
			res.PartNumber, res.Description, res.Confidence, joinSources(res.FoundBy))
	}
	return b.String()
}

func joinSources(sources []types.SourceKind) string {
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}
