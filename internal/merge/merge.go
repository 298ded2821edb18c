// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package merge reconciles candidates from all adapters into one entity
// view per part number and computes the caller-facing confidence. Merge
// is associative: merging lists incrementally or all at once yields the
// same result set.
package merge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/meshintel/parts-engine/internal/textutil"
	"github.com/meshintel/parts-engine/pkg/types"
)

// Merged is the ordered merge output. Order follows first appearance of
// each part number in the candidate stream, which keeps the pipeline
// deterministic for equal-confidence results.
type Merged struct {
	results []types.MergedResult
	index   map[string]int
}

// NewMerged returns an empty merge accumulator.
func NewMerged() *Merged {
	return &Merged{index: make(map[string]int)}
}

// Add folds one adapter's candidates into the accumulator. The merge
// key is the part number, case-sensitive: tenant scoping happened
// upstream.
func (m *Merged) Add(candidates []types.PartCandidate) {
	for _, c := range candidates {
		idx, ok := m.index[c.PartNumber]
		if !ok {
			m.index[c.PartNumber] = len(m.results)
			m.results = append(m.results, types.MergedResult{
				PartCandidate: c,
				Sources:       []types.SourceKind{c.Source},
			})
			continue
		}
		combine(&m.results[idx], c)
	}
}

// Results returns the merged results in first-seen order.
func (m *Merged) Results() []types.MergedResult {
	return m.results
}

// combine merges src into dst: sources accumulate, score takes the max
// (never recomputed downward), array compatibility fields union with
// order-preserving dedup, relationship edges concatenate, and scalar
// metadata keeps the existing value unless it was empty.
func combine(dst *types.MergedResult, src types.PartCandidate) {
	if !hasSource(dst.Sources, src.Source) {
		dst.Sources = append(dst.Sources, src.Source)
	}
	if src.Score > dst.Score {
		dst.Score = src.Score
	}

	if dst.Description == "" {
		dst.Description = src.Description
	}
	if dst.Price == 0 {
		dst.Price = src.Price
	}
	if dst.StockQuantity == 0 {
		dst.StockQuantity = src.StockQuantity
	}
	if dst.Category == "" {
		dst.Category = src.Category
	}

	dc, sc := &dst.Compatibility, src.Compatibility
	dc.Models = textutil.UnionStrings(dc.Models, sc.Models)
	dc.Manufacturers = textutil.UnionStrings(dc.Manufacturers, sc.Manufacturers)
	dc.SerialRanges = textutil.UnionStrings(dc.SerialRanges, sc.SerialRanges)
	dc.Categories = textutil.UnionStrings(dc.Categories, sc.Categories)
	dc.Domains = textutil.UnionStrings(dc.Domains, sc.Domains)
	// Edge multiplicity is informative; concatenate without dedup.
	dc.RelatedParts = append(dc.RelatedParts, sc.RelatedParts...)

	dm, sm := &dst.Metadata, src.Metadata
	fillScalar(&dm.DiagramTitle, sm.DiagramTitle)
	fillScalar(&dm.CategoryPath, sm.CategoryPath)
	fillScalar(&dm.SourceName, sm.SourceName)
	fillScalar(&dm.SourceURL, sm.SourceURL)
	fillScalar(&dm.Quantity, sm.Quantity)
	fillScalar(&dm.Remarks, sm.Remarks)
	fillScalar(&dm.Snippet, sm.Snippet)
	dm.MergedEntries = append(dm.MergedEntries, sm.MergedEntries...)
	for k, v := range sm.Extra {
		if dm.Extra == nil {
			dm.Extra = make(map[string]string)
		}
		if dm.Extra[k] == "" {
			dm.Extra[k] = v
		}
	}
}

func fillScalar(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}

func hasSource(sources []types.SourceKind, s types.SourceKind) bool {
	for _, have := range sources {
		if have == s {
			return true
		}
	}
	return false
}

// Score computes the confidence and reason for each merged result and
// returns them sorted by confidence descending. The sort is stable:
// ties keep first-seen order. Confidence is min(100, score + 10 per
// agreeing source) when more than one adapter found the part, the bare
// score otherwise.
func Score(merged []types.MergedResult) []types.EnrichedResult {
	out := make([]types.EnrichedResult, 0, len(merged))
	for _, mr := range merged {
		confidence := mr.Score
		if len(mr.Sources) > 1 {
			confidence = mr.Score + 10*float64(len(mr.Sources))
			if confidence > 100 {
				confidence = 100
			}
		}
		out = append(out, types.EnrichedResult{
			MergedResult: mr,
			Confidence:   confidence,
			FoundBy:      append([]types.SourceKind(nil), mr.Sources...),
			Reason:       reason(mr),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

// reason renders the deterministic explanation string.
func reason(mr types.MergedResult) string {
	internal := 0
	for _, s := range mr.Sources {
		if s != types.SourceWeb {
			internal++
		}
	}
	switch {
	case internal >= 3:
		return "high confidence: found by keyword, semantic, and graph search"
	case len(mr.Sources) == 2:
		return fmt.Sprintf("found by %s and %s search", mr.Sources[0], mr.Sources[1])
	case mr.Score >= 80:
		return "exact or close part number match"
	case mr.Score >= 60:
		return "description match"
	default:
		return "partial match"
	}
}

// SourcesUsed lists the adapters that contributed candidates, in the
// order given.
func SourcesUsed(lists map[types.SourceKind][]types.PartCandidate, order []types.SourceKind) []types.SourceKind {
	var out []types.SourceKind
	for _, kind := range order {
		if len(lists[kind]) > 0 {
			out = append(out, kind)
		}
	}
	return out
}

// Describe summarizes sources for logs: "structured(12), semantic(3)".
func Describe(lists map[types.SourceKind][]types.PartCandidate, order []types.SourceKind) string {
	var parts []string
	for _, kind := range order {
		if n := len(lists[kind]); n > 0 {
			parts = append(parts, fmt.Sprintf("%s(%d)", kind, n))
		}
	}
	return strings.Join(parts, ", ")
}
