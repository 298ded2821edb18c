// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline orchestrates a parts search: query understanding,
// concurrent fan-out over the configured internal adapters, merge and
// confidence scoring, conditional web escalation, and optional
// model-assisted reranking. Every call is request-scoped; adapter
// instances are constructed per call and share nothing across searches.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/meshintel/parts-engine/internal/llm"
	"github.com/meshintel/parts-engine/internal/merge"
	"github.com/meshintel/parts-engine/internal/query"
	"github.com/meshintel/parts-engine/internal/rerank"
	"github.com/meshintel/parts-engine/pkg/types"
)

const (
	defaultWebEscalationThreshold = 3
	defaultMaxPartIntents         = 5
)

// Directory resolves tenant collaborators: integration credentials,
// vehicle catalog mappings, and vehicle readiness.
type Directory interface {
	Credentials(ctx context.Context, tenantID string, kind types.IntegrationKind) (*types.Credentials, error)
	CredentialsWithFallback(ctx context.Context, tenantID string, kind types.IntegrationKind) (*types.Credentials, error)
	Mapping(ctx context.Context, vehicleID string) (*types.CatalogMapping, error)
	VehicleStatus(ctx context.Context, vehicleID string) (types.VehicleStatus, error)
}

// Adapter is one internal retrieval integration prepared for a single
// call. expandedTerms are the synonym expansion for the query's part
// type; adapters widen retrieval with them without letting them
// outrank direct matches. Implementations searching an unconfigured
// backend must return empty results, not errors.
type Adapter interface {
	Kind() types.SourceKind
	Search(ctx context.Context, queryText string, expandedTerms []string) ([]types.PartCandidate, error)
}

// WebSearcher is the web escalation path prepared for a single call.
type WebSearcher interface {
	Search(ctx context.Context, pq types.ProcessedQuery, vehicle *types.VehicleContext) ([]types.PartCandidate, error)
}

// AdapterBuilder constructs the per-call adapters for one tenant.
// A tenant lacking credentials for an integration yields no adapter for
// it: not configured is not an error. The returned release function is
// called once the call's adapters are done, on every path.
type AdapterBuilder interface {
	Internal(ctx context.Context, tenantID string, mapping *types.CatalogMapping, vehicle *types.VehicleContext) ([]Adapter, func(), error)
	Web(ctx context.Context, tenantID string) (WebSearcher, error)
}

// Engine runs searches. Construct once per process; Search is safe for
// concurrent use.
type Engine struct {
	directory Directory
	builder   AdapterBuilder
	model     llm.Client
	cfg       types.EngineConfig
	warn      io.Writer
	pool      *ants.Pool
}

// Option configures an Engine.
type Option func(*Engine)

// WithModel sets the language model client used by query understanding
// and reranking. Without one, both stages use their deterministic
// fallbacks.
func WithModel(client llm.Client) Option {
	return func(e *Engine) { e.model = client }
}

// WithWarnWriter sets the destination for degraded-but-non-fatal
// warnings. Default is io.Discard.
func WithWarnWriter(w io.Writer) Option {
	return func(e *Engine) { e.warn = w }
}

// New builds an Engine.
func New(directory Directory, builder AdapterBuilder, cfg types.EngineConfig, opts ...Option) (*Engine, error) {
	if directory == nil {
		return nil, fmt.Errorf("tenant directory is required")
	}
	if builder == nil {
		return nil, fmt.Errorf("adapter builder is required")
	}
	e := &Engine{
		directory: directory,
		builder:   builder,
		cfg:       cfg,
		warn:      io.Discard,
	}
	for _, opt := range opts {
		opt(e)
	}

	maxIntents := cfg.Pipeline.MaxPartIntents
	if maxIntents <= 0 {
		maxIntents = defaultMaxPartIntents
	}
	pool, err := ants.NewPool(maxIntents)
	if err != nil {
		return nil, fmt.Errorf("creating intent pool: %w", err)
	}
	e.pool = pool
	return e, nil
}

// Close releases the intent worker pool.
func (e *Engine) Close() error {
	e.pool.Release()
	return nil
}

// Search answers one parts-lookup query for one tenant. A query that
// finds nothing is a success with empty results; only malformed
// mandatory inputs produce an error.
func (e *Engine) Search(ctx context.Context, queryText, tenantID string, vehicle *types.VehicleContext) (*types.SearchResponse, error) {
	if queryText == "" {
		return nil, fmt.Errorf("query is empty")
	}
	if tenantID == "" {
		return nil, fmt.Errorf("tenant id is required")
	}
	start := time.Now()

	// Vehicle readiness gate: an unconfigured vehicle must not
	// silently return irrelevant internal matches, so everything but
	// the web path is skipped.
	webOnly := false
	var mapping *types.CatalogMapping
	if vehicle != nil && vehicle.ID != "" {
		status, err := e.directory.VehicleStatus(ctx, vehicle.ID)
		if err != nil {
			return nil, fmt.Errorf("resolving vehicle status: %w", err)
		}
		if status != types.StatusSearchReady {
			fmt.Fprintf(e.warn, "warning: vehicle %s not search-ready (%s), using web only\n", vehicle.ID, status)
			webOnly = true
		} else {
			mapping, err = e.directory.Mapping(ctx, vehicle.ID)
			if err != nil {
				fmt.Fprintf(e.warn, "warning: vehicle mapping lookup failed, searching unscoped: %v\n", err)
			}
		}
	}

	pq := e.analyze(ctx, queryText, vehicle)

	var resp *types.SearchResponse
	var err error
	if pq.IsMultiPart() && !webOnly {
		resp, err = e.searchMultiPart(ctx, pq, tenantID, vehicle, mapping)
	} else {
		resp, err = e.searchSingle(ctx, queryText, pq, tenantID, vehicle, mapping, webOnly)
	}
	if err != nil {
		return nil, err
	}

	resp.Metadata.SearchID = uuid.NewString()
	resp.Metadata.SearchTimeMs = time.Since(start).Milliseconds()
	resp.Metadata.QueryIntent = pq.Intent
	return resp, nil
}

func (e *Engine) searchSingle(ctx context.Context, queryText string, pq types.ProcessedQuery, tenantID string, vehicle *types.VehicleContext, mapping *types.CatalogMapping, webOnly bool) (*types.SearchResponse, error) {
	var enriched []types.EnrichedResult
	var sourcesUsed []types.SourceKind

	if !webOnly {
		lists, order, err := e.fanOut(ctx, queryText, pq.ExpandedTerms, tenantID, vehicle, mapping)
		if err != nil {
			return nil, err
		}
		merged := merge.NewMerged()
		for _, kind := range order {
			merged.Add(lists[kind])
		}
		enriched = merge.Score(merged.Results())
		sourcesUsed = merge.SourcesUsed(lists, order)
	}

	webResults, webRan := e.escalate(ctx, pq, tenantID, vehicle, len(enriched), webOnly)
	if webRan {
		sourcesUsed = append(sourcesUsed, types.SourceWeb)
	}

	resp := &types.SearchResponse{
		Results:    enriched,
		WebResults: webResults,
	}
	e.rerankInto(ctx, queryText, pq, vehicle, resp)

	resp.Metadata.TotalResults = len(resp.Results) + len(resp.WebResults)
	resp.Metadata.SourcesUsed = sourcesUsed
	return resp, nil
}

// fanOut launches all configured internal adapters concurrently and
// joins them with per-adapter isolation: one adapter's failure is a
// warning and zero candidates, never a cancelled sibling. Adapter
// connections are released before returning, on every path.
func (e *Engine) fanOut(ctx context.Context, queryText string, expandedTerms []string, tenantID string, vehicle *types.VehicleContext, mapping *types.CatalogMapping) (map[types.SourceKind][]types.PartCandidate, []types.SourceKind, error) {
	adapters, release, err := e.builder.Internal(ctx, tenantID, mapping, vehicle)
	if err != nil {
		return nil, nil, fmt.Errorf("building adapters: %w", err)
	}
	defer release()

	type outcome struct {
		kind       types.SourceKind
		candidates []types.PartCandidate
		err        error
	}

	ch := make(chan outcome, len(adapters))
	var wg sync.WaitGroup
	for _, a := range adapters {
		wg.Add(1)
		go func(a Adapter) {
			defer wg.Done()
			candidates, err := a.Search(ctx, queryText, expandedTerms)
			ch <- outcome{kind: a.Kind(), candidates: candidates, err: err}
		}(a)
	}
	go func() {
		wg.Wait()
		close(ch)
	}()

	lists := make(map[types.SourceKind][]types.PartCandidate, len(adapters))
	for o := range ch {
		if o.err != nil {
			fmt.Fprintf(e.warn, "warning: %s search failed: %v\n", o.kind, o.err)
			continue
		}
		lists[o.kind] = o.candidates
	}

	order := make([]types.SourceKind, 0, len(adapters))
	for _, a := range adapters {
		order = append(order, a.Kind())
	}
	return lists, order, nil
}

// escalate decides whether to call the web adapter and runs it. The
// policy knob: fewer internal results than the threshold, or query
// understanding flagged the query as web-oriented. Reports whether the
// web path contributed at least one result so metadata can list it.
func (e *Engine) escalate(ctx context.Context, pq types.ProcessedQuery, tenantID string, vehicle *types.VehicleContext, internalCount int, webOnly bool) ([]types.EnrichedResult, bool) {
	threshold := e.cfg.Pipeline.WebEscalationThreshold
	if threshold <= 0 {
		threshold = defaultWebEscalationThreshold
	}
	if !webOnly && internalCount >= threshold && !pq.ShouldSearchWeb {
		return nil, false
	}

	searcher, err := e.builder.Web(ctx, tenantID)
	if err != nil || searcher == nil {
		if err != nil {
			fmt.Fprintf(e.warn, "warning: web search unavailable: %v\n", err)
		}
		return nil, false
	}

	candidates, err := searcher.Search(ctx, pq, vehicle)
	if err != nil {
		fmt.Fprintf(e.warn, "warning: web search failed: %v\n", err)
		return nil, false
	}
	merged := merge.NewMerged()
	merged.Add(candidates)
	results := merge.Score(merged.Results())
	return results, len(results) > 0
}

// rerankInto applies model-assisted reranking when configured and at
// least one result list is non-empty. Failure keeps the merge-stage
// order.
func (e *Engine) rerankInto(ctx context.Context, queryText string, pq types.ProcessedQuery, vehicle *types.VehicleContext, resp *types.SearchResponse) {
	if e.model == nil || !e.cfg.Rerank.Enabled {
		return
	}
	if len(resp.Results) == 0 && len(resp.WebResults) == 0 {
		return
	}
	out := rerank.Rerank(ctx, queryText, pq, resp.Results, e.model, vehicle, e.cfg.Rerank.MaxCandidates)
	resp.Results = out.Results
	resp.SuggestedFilters = out.SuggestedFilters
	resp.RelatedQueries = out.RelatedQueries
}

// searchMultiPart runs the single-part pipeline once per intent on the
// bounded worker pool and assembles one group per intent, plus a flat
// cross-group view keeping each part number's best occurrence.
func (e *Engine) searchMultiPart(ctx context.Context, pq types.ProcessedQuery, tenantID string, vehicle *types.VehicleContext, mapping *types.CatalogMapping) (*types.SearchResponse, error) {
	maxIntents := e.cfg.Pipeline.MaxPartIntents
	if maxIntents <= 0 {
		maxIntents = defaultMaxPartIntents
	}
	intents := pq.PartIntents
	if len(intents) > maxIntents {
		fmt.Fprintf(e.warn, "warning: capping multi-part query at %d of %d intents\n", maxIntents, len(intents))
		intents = intents[:maxIntents]
	}

	groups := make([]types.PartGroup, len(intents))
	sourceSets := make([][]types.SourceKind, len(intents))

	var wg sync.WaitGroup
	for i, intent := range intents {
		wg.Add(1)
		run := func(i int, intent types.PartIntent) func() {
			return func() {
				defer wg.Done()
				groups[i], sourceSets[i] = e.searchGroup(ctx, pq, intent, tenantID, vehicle, mapping)
			}
		}(i, intent)
		if err := e.pool.Submit(run); err != nil {
			// Pool saturated or released; run inline rather than
			// dropping the intent.
			run()
		}
	}
	wg.Wait()

	resp := &types.SearchResponse{
		Results:    flatten(groups),
		PartGroups: groups,
	}
	resp.Metadata.IsMultiPartQuery = true
	resp.Metadata.PartCount = len(groups)
	resp.Metadata.SourcesUsed = unionSources(sourceSets)
	resp.Metadata.TotalResults = len(resp.Results)
	return resp, nil
}

// searchGroup is one intent's isolated pipeline run. The intent's own
// expanded terms scope the query; synonyms from sibling intents never
// bleed in.
func (e *Engine) searchGroup(ctx context.Context, pq types.ProcessedQuery, intent types.PartIntent, tenantID string, vehicle *types.VehicleContext, mapping *types.CatalogMapping) (types.PartGroup, []types.SourceKind) {
	group := types.PartGroup{Label: intent.Label, QueryUsed: intent.Query}

	intentPQ := types.ProcessedQuery{
		OriginalQuery:   intent.Query,
		Intent:          pq.Intent,
		Attributes:      pq.Attributes,
		Urgent:          pq.Urgent,
		ShouldSearchWeb: pq.ShouldSearchWeb,
		ExpandedTerms:   intent.ExpandedTerms,
	}
	if intent.PartNumber != "" {
		intentPQ.PartNumbers = []string{intent.PartNumber}
		intentPQ.Intent = types.IntentExactPartNumber
	}
	if intent.PartType != "" {
		intentPQ.PartTypes = []string{intent.PartType}
	}

	lists, order, err := e.fanOut(ctx, intent.Query, intent.ExpandedTerms, tenantID, vehicle, mapping)
	if err != nil {
		fmt.Fprintf(e.warn, "warning: intent %q fan-out failed: %v\n", intent.Label, err)
		return group, nil
	}
	merged := merge.NewMerged()
	for _, kind := range order {
		merged.Add(lists[kind])
	}
	enriched := merge.Score(merged.Results())
	sourcesUsed := merge.SourcesUsed(lists, order)

	webResults, webRan := e.escalate(ctx, intentPQ, tenantID, vehicle, len(enriched), false)
	if webRan {
		sourcesUsed = append(sourcesUsed, types.SourceWeb)
	}

	if e.model != nil && e.cfg.Rerank.Enabled && len(enriched) > 0 {
		out := rerank.Rerank(ctx, intent.Query, intentPQ, enriched, e.model, vehicle, e.cfg.Rerank.MaxCandidates)
		enriched = out.Results
	}

	group.Results = enriched
	group.WebResults = webResults
	group.ResultCount = len(enriched) + len(webResults)
	return group, sourcesUsed
}

// flatten produces the cross-group view: per part number, the
// highest-confidence occurrence across all groups, ordered by
// confidence descending with group order breaking ties.
func flatten(groups []types.PartGroup) []types.EnrichedResult {
	best := make(map[string]int)
	var flat []types.EnrichedResult
	for _, g := range groups {
		for _, r := range g.Results {
			if idx, ok := best[r.PartNumber]; ok {
				if r.Confidence > flat[idx].Confidence {
					flat[idx] = r
				}
				continue
			}
			best[r.PartNumber] = len(flat)
			flat = append(flat, r)
		}
	}
	sortByConfidence(flat)
	return flat
}

func sortByConfidence(results []types.EnrichedResult) {
	// Insertion sort keeps the stable tie order without another
	// dependency on sort.SliceStable's closure allocation; result
	// sets here are small.
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Confidence > results[j-1].Confidence; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}

func unionSources(sets [][]types.SourceKind) []types.SourceKind {
	var out []types.SourceKind
	seen := make(map[types.SourceKind]bool)
	for _, set := range sets {
		for _, s := range set {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}

func (e *Engine) analyze(ctx context.Context, queryText string, vehicle *types.VehicleContext) types.ProcessedQuery {
	return analyzeFn(ctx, queryText, vehicle, e.model, e.cfg.Query.Timeout)
}

// analyzeFn is swapped in tests to script query understanding.
var analyzeFn = query.Analyze
