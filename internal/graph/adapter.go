// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package graph runs relationship-aware queries against the tenant's
// graph store (part, manufacturer, model, domain, diagram, serial
// range). When the primary vehicle-scoped traversal finds nothing it
// walks a ladder of progressively less-constrained fallback queries,
// stopping at the first tier that yields results.
package graph

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/meshintel/parts-engine/internal/textutil"
	"github.com/meshintel/parts-engine/pkg/types"
)

const (
	scopedLimit = 25
	globalLimit = 10

	// globalScore marks last-resort unscoped hits as low confidence.
	globalScore = 30
)

// Adapter searches the graph store for one call.
type Adapter struct {
	client *Client
	warn   io.Writer
}

// New builds the adapter from tenant credentials. A tenant without
// graph credentials has no graph adapter at all.
func New(creds *types.Credentials, cfg types.GraphConfig, warn io.Writer) (*Adapter, error) {
	if creds == nil || creds.Endpoint == "" {
		return nil, fmt.Errorf("graph store endpoint is required")
	}
	database := cfg.Database
	if database == "" {
		database = "neo4j"
	}
	return &Adapter{
		client: &Client{
			httpClient: &http.Client{Timeout: cfg.Timeout},
			endpoint:   creds.Endpoint,
			database:   database,
			username:   creds.Username,
			password:   creds.Password,
			userAgent:  cfg.UserAgent,
		},
		warn: warn,
	}, nil
}

// CloseIdleConnections drops the adapter's pooled keep-alive
// connections. The per-call release path calls this once the call's
// adapters are done.
func (a *Adapter) CloseIdleConnections() {
	a.client.httpClient.CloseIdleConnections()
}

// searchParams carries everything a ladder tier needs.
type searchParams struct {
	keywords    []string
	phrase      string
	partNumbers []string
	mapping     *types.CatalogMapping
}

// strategy is one ladder tier: a named query that either yields
// candidates or passes to the next tier.
type strategy struct {
	name string
	run  func(ctx context.Context, p searchParams) ([]types.PartCandidate, error)
}

// Search runs the scoped traversal when the mapping carries graph
// identifiers, then the fallback ladder while tiers come back empty.
// expandedTerms widen the keyword set every tier matches against, so a
// node titled with a synonym is still reachable. An unreachable or
// uninitialized graph store yields an empty result, never an error.
func (a *Adapter) Search(ctx context.Context, queryText string, expandedTerms []string, mapping *types.CatalogMapping) ([]types.PartCandidate, error) {
	keywords := textutil.Keywords(queryText)
	for _, term := range expandedTerms {
		keywords = textutil.UnionStrings(keywords, textutil.Keywords(term))
	}
	p := searchParams{
		keywords:    keywords,
		phrase:      textutil.Phrase(queryText),
		partNumbers: textutil.PartNumbers(queryText),
		mapping:     mapping,
	}
	if len(p.keywords) == 0 && len(p.partNumbers) == 0 {
		return nil, nil
	}

	var ladder []strategy
	if mapping.HasGraphScope() {
		ladder = append(ladder, strategy{"scoped", a.scoped})
		// Graph data direction is not guaranteed; retry the
		// traversal reversed before relaxing the scope.
		ladder = append(ladder, strategy{"scoped-reversed", a.scopedReversed})
	}
	if mapping != nil && mapping.Namespace != "" {
		ladder = append(ladder, strategy{"namespace-all", a.namespaceAll})
		ladder = append(ladder, strategy{"namespace-any", a.namespaceAny})
	}
	ladder = append(ladder, strategy{"global", a.global})

	for _, tier := range ladder {
		candidates, err := tier.run(ctx, p)
		if err != nil {
			if isUnavailable(err) {
				fmt.Fprintf(a.warn, "warning: graph store unavailable (%s): %v\n", tier.name, err)
				return nil, nil
			}
			return nil, fmt.Errorf("graph %s query: %w", tier.name, err)
		}
		if len(candidates) > 0 {
			return candidates, nil
		}
	}
	return nil, nil
}

// scopedQuery is the primary traversal: part → domain → model →
// manufacturer, with diagrams, categories, serial ranges, and
// related-part edges collected per part. The direction placeholder is
// swapped for the reversed retry.
var scopedQuery = `MATCH (p:Part)%s(d:Domain)-[:OF_MODEL]->(m:Model)-[:MADE_BY]->(mf:Manufacturer)
WHERE mf.id = $manufacturer AND m.id = $model
  AND (p.part_number IN $part_numbers
    OR ANY (kw IN $keywords WHERE toLower(p.part_number) CONTAINS kw)
    OR ANY (kw IN $keywords WHERE toLower(p.title) CONTAINS kw))
OPTIONAL MATCH (p)-[:SHOWN_IN]->(dg:Diagram)
OPTIONAL MATCH (p)-[:IN_CATEGORY]->(c:Category)
OPTIONAL MATCH (p)-[:FOR_SERIALS]->(sr:SerialRange)
OPTIONAL MATCH (p)-[rel]->(rp:Part)
RETURN p.part_number AS part_number, p.title AS title, p.price AS price,
       d.name AS domain, m.name AS model, mf.name AS manufacturer,
       collect(DISTINCT dg.title) AS diagrams,
       collect(DISTINCT c.name) AS categories,
       collect(DISTINCT sr.range) AS serial_ranges,
       [x IN collect(DISTINCT {part_number: rp.part_number, relation: type(rel)}) WHERE x.part_number IS NOT NULL] AS related
LIMIT ` + fmt.Sprint(scopedLimit)

func (a *Adapter) scoped(ctx context.Context, p searchParams) ([]types.PartCandidate, error) {
	return a.runScoped(ctx, p, "-[:IN_DOMAIN]->")
}

func (a *Adapter) scopedReversed(ctx context.Context, p searchParams) ([]types.PartCandidate, error) {
	return a.runScoped(ctx, p, "<-[:HAS_PART]-")
}

func (a *Adapter) runScoped(ctx context.Context, p searchParams, direction string) ([]types.PartCandidate, error) {
	records, err := a.client.Run(ctx, fmt.Sprintf(scopedQuery, direction), map[string]any{
		"manufacturer": p.mapping.GraphManufacturerID,
		"model":        p.mapping.GraphModelID,
		"part_numbers": upper(p.partNumbers),
		"keywords":     p.keywords,
	})
	if err != nil {
		return nil, err
	}
	out := make([]types.PartCandidate, 0, len(records))
	for _, rec := range records {
		out = append(out, a.toCandidate(rec, p, 0))
	}
	return out, nil
}

var namespaceQuery = `MATCH (p:Part {namespace: $namespace})
WHERE %s(kw IN $keywords WHERE toLower(p.title) CONTAINS kw)
RETURN p.part_number AS part_number, p.title AS title, p.price AS price,
       size([kw IN $keywords WHERE toLower(p.title) CONTAINS kw]) AS matches
LIMIT ` + fmt.Sprint(scopedLimit)

// namespaceAll requires every keyword to match the title.
func (a *Adapter) namespaceAll(ctx context.Context, p searchParams) ([]types.PartCandidate, error) {
	return a.runNamespace(ctx, p, "ALL", false)
}

// namespaceAny accepts any keyword match and scores by match count:
// 40 + 10 per matching keyword.
func (a *Adapter) namespaceAny(ctx context.Context, p searchParams) ([]types.PartCandidate, error) {
	return a.runNamespace(ctx, p, "ANY", true)
}

func (a *Adapter) runNamespace(ctx context.Context, p searchParams, quantifier string, scoreByMatches bool) ([]types.PartCandidate, error) {
	if len(p.keywords) == 0 {
		return nil, nil
	}
	records, err := a.client.Run(ctx, fmt.Sprintf(namespaceQuery, quantifier), map[string]any{
		"namespace": p.mapping.Namespace,
		"keywords":  p.keywords,
	})
	if err != nil {
		return nil, err
	}
	out := make([]types.PartCandidate, 0, len(records))
	for _, rec := range records {
		if scoreByMatches {
			out = append(out, a.toCandidate(rec, p, 40+10*rec.num("matches")))
		} else {
			out = append(out, a.toCandidate(rec, p, 0))
		}
	}
	return out, nil
}

var globalQuery = `MATCH (p:Part)
WHERE p.part_number IN $part_numbers
   OR ANY (kw IN $keywords WHERE toLower(p.title) CONTAINS kw)
RETURN p.part_number AS part_number, p.title AS title, p.price AS price
LIMIT ` + fmt.Sprint(globalLimit)

// global is the last resort: no vehicle scoping at all, few results,
// fixed low score.
func (a *Adapter) global(ctx context.Context, p searchParams) ([]types.PartCandidate, error) {
	records, err := a.client.Run(ctx, globalQuery, map[string]any{
		"part_numbers": upper(p.partNumbers),
		"keywords":     p.keywords,
	})
	if err != nil {
		return nil, err
	}
	out := make([]types.PartCandidate, 0, len(records))
	for _, rec := range records {
		c := a.toCandidate(rec, p, globalScore)
		// An exact part-number hit is trustworthy even unscoped.
		if matchesPartNumber(rec.str("part_number"), p.partNumbers) {
			c.Score = 100
		}
		out = append(out, c)
	}
	return out, nil
}

// toCandidate converts one record. fixedScore > 0 bypasses the tier
// scoring; otherwise: 100 exact part number, 85 part-number contains,
// 70 title contains the full phrase, 60 any keyword match, 40 default,
// +5 per related-part edge.
func (a *Adapter) toCandidate(rec record, p searchParams, fixedScore float64) types.PartCandidate {
	pn := rec.str("part_number")
	title := rec.str("title")
	related := rec.edges("related")

	score := fixedScore
	if score == 0 {
		titleLower := strings.ToLower(title)
		pnNorm := textutil.NormalizePartNumber(pn)
		switch {
		case matchesPartNumber(pn, p.partNumbers):
			score = 100
		case containsAnyNormalized(pnNorm, p.partNumbers):
			score = 85
		case p.phrase != "" && strings.Contains(titleLower, p.phrase):
			score = 70
		case anyKeyword(titleLower, p.keywords):
			score = 60
		default:
			score = 40
		}
		score += 5 * float64(len(related))
		if score > 100 {
			score = 100
		}
	}

	c := types.PartCandidate{
		PartNumber:  pn,
		Description: title,
		Price:       rec.num("price"),
		Score:       score,
		Source:      types.SourceGraph,
		Compatibility: types.Compatibility{
			SerialRanges: rec.strs("serial_ranges"),
			Categories:   rec.strs("categories"),
		},
	}
	if d := rec.str("domain"); d != "" {
		c.Compatibility.Domains = []string{d}
	}
	if m := rec.str("model"); m != "" {
		c.Compatibility.Models = []string{m}
	}
	if mf := rec.str("manufacturer"); mf != "" {
		c.Compatibility.Manufacturers = []string{mf}
	}
	for _, e := range related {
		c.Compatibility.RelatedParts = append(c.Compatibility.RelatedParts, types.RelationEdge{
			PartNumber: e.partNumber,
			Relation:   e.relation,
		})
	}
	if diagrams := rec.strs("diagrams"); len(diagrams) > 0 {
		c.Metadata.DiagramTitle = diagrams[0]
		for _, dg := range diagrams[1:] {
			c.Metadata.MergedEntries = append(c.Metadata.MergedEntries, types.MergedEntry{DiagramTitle: dg})
		}
	}
	return c
}

func matchesPartNumber(pn string, queryPartNumbers []string) bool {
	n := textutil.NormalizePartNumber(pn)
	for _, qpn := range queryPartNumbers {
		if n == textutil.NormalizePartNumber(qpn) {
			return true
		}
	}
	return false
}

func containsAnyNormalized(pnNorm string, queryPartNumbers []string) bool {
	for _, qpn := range queryPartNumbers {
		if q := textutil.NormalizePartNumber(qpn); q != "" && strings.Contains(pnNorm, q) {
			return true
		}
	}
	return false
}

func anyKeyword(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func upper(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToUpper(s)
	}
	return out
}
