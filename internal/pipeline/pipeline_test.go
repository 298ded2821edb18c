// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/meshintel/parts-engine/internal/llm"
	"github.com/meshintel/parts-engine/pkg/types"
)

type fakeDirectory struct {
	status     types.VehicleStatus
	statusErr  error
	mapping    *types.CatalogMapping
	mappingErr error
}

func (d *fakeDirectory) Credentials(context.Context, string, types.IntegrationKind) (*types.Credentials, error) {
	return nil, nil
}

func (d *fakeDirectory) CredentialsWithFallback(context.Context, string, types.IntegrationKind) (*types.Credentials, error) {
	return nil, nil
}

func (d *fakeDirectory) Mapping(context.Context, string) (*types.CatalogMapping, error) {
	return d.mapping, d.mappingErr
}

func (d *fakeDirectory) VehicleStatus(context.Context, string) (types.VehicleStatus, error) {
	if d.statusErr != nil {
		return types.StatusUnknown, d.statusErr
	}
	if d.status == "" {
		return types.StatusSearchReady, nil
	}
	return d.status, nil
}

type fakeAdapter struct {
	mu         sync.Mutex
	kind       types.SourceKind
	candidates []types.PartCandidate
	byQuery    map[string][]types.PartCandidate
	err        error
	gotTerms   map[string][]string
}

func (a *fakeAdapter) Kind() types.SourceKind { return a.kind }

func (a *fakeAdapter) Search(_ context.Context, queryText string, expandedTerms []string) ([]types.PartCandidate, error) {
	a.mu.Lock()
	if a.gotTerms == nil {
		a.gotTerms = make(map[string][]string)
	}
	a.gotTerms[queryText] = expandedTerms
	a.mu.Unlock()

	if a.err != nil {
		return nil, a.err
	}
	if a.byQuery != nil {
		return a.byQuery[queryText], nil
	}
	return a.candidates, nil
}

type fakeWeb struct {
	mu         sync.Mutex
	candidates []types.PartCandidate
	err        error
	calls      int
	lastPQ     types.ProcessedQuery
}

func (w *fakeWeb) Search(_ context.Context, pq types.ProcessedQuery, _ *types.VehicleContext) ([]types.PartCandidate, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	w.lastPQ = pq
	if w.err != nil {
		return nil, w.err
	}
	return w.candidates, nil
}

type fakeBuilder struct {
	mu            sync.Mutex
	adapters      []Adapter
	web           *fakeWeb
	webErr        error
	internalCalls int
	webCalls      int
	releaseCalls  int
	gotMappings   []*types.CatalogMapping
}

func (b *fakeBuilder) Internal(_ context.Context, _ string, mapping *types.CatalogMapping, _ *types.VehicleContext) ([]Adapter, func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.internalCalls++
	b.gotMappings = append(b.gotMappings, mapping)
	return b.adapters, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.releaseCalls++
	}, nil
}

func (b *fakeBuilder) Web(context.Context, string) (WebSearcher, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.webCalls++
	if b.webErr != nil {
		return nil, b.webErr
	}
	if b.web == nil {
		return nil, nil
	}
	return b.web, nil
}

func cand(pn string, kind types.SourceKind, score float64) types.PartCandidate {
	return types.PartCandidate{PartNumber: pn, Source: kind, Score: score}
}

// stubAnalyze pins query understanding to a scripted result so pipeline
// tests are independent of the analyzer.
func stubAnalyze(t *testing.T, pq types.ProcessedQuery) {
	t.Helper()
	orig := analyzeFn
	analyzeFn = func(_ context.Context, queryText string, _ *types.VehicleContext, _ llm.Client, _ time.Duration) types.ProcessedQuery {
		pq.OriginalQuery = queryText
		return pq
	}
	t.Cleanup(func() { analyzeFn = orig })
}

func newTestEngine(t *testing.T, dir Directory, builder AdapterBuilder, opts ...Option) (*Engine, *bytes.Buffer) {
	t.Helper()
	var warn bytes.Buffer
	opts = append(opts, WithWarnWriter(&warn))
	e, err := New(dir, builder, types.EngineConfig{}, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { e.Close() })
	return e, &warn
}

func TestNewValidates(t *testing.T) {
	if _, err := New(nil, &fakeBuilder{}, types.EngineConfig{}); err == nil {
		t.Error("expected error for nil directory")
	}
	if _, err := New(&fakeDirectory{}, nil, types.EngineConfig{}); err == nil {
		t.Error("expected error for nil builder")
	}
}

func TestSearchRequiresInput(t *testing.T) {
	e, _ := newTestEngine(t, &fakeDirectory{}, &fakeBuilder{})

	if _, err := e.Search(context.Background(), "", "t1", nil); err == nil {
		t.Error("expected error for empty query")
	}
	if _, err := e.Search(context.Background(), "fuel filter", "", nil); err == nil {
		t.Error("expected error for empty tenant")
	}
}

func TestSearchMergesAcrossAdapters(t *testing.T) {
	stubAnalyze(t, types.ProcessedQuery{Intent: types.IntentPartDescription})

	builder := &fakeBuilder{adapters: []Adapter{
		&fakeAdapter{kind: types.SourceStructured, candidates: []types.PartCandidate{
			cand("P1", types.SourceStructured, 80),
			cand("P2", types.SourceStructured, 60),
			cand("P3", types.SourceStructured, 50),
		}},
		&fakeAdapter{kind: types.SourceSemantic, candidates: []types.PartCandidate{
			cand("P1", types.SourceSemantic, 70),
		}},
	}}
	e, _ := newTestEngine(t, &fakeDirectory{}, builder)

	resp, err := e.Search(context.Background(), "fuel filter", "t1", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(resp.Results) != 3 {
		t.Fatalf("len(Results) = %d, want 3", len(resp.Results))
	}
	// P1 at 80 from two sources: 80 + 10*2 = 100.
	top := resp.Results[0]
	if top.PartNumber != "P1" || top.Confidence != 100 {
		t.Errorf("top = %s (%.0f), want P1 at 100", top.PartNumber, top.Confidence)
	}
	if len(top.FoundBy) != 2 {
		t.Errorf("FoundBy = %v, want both sources", top.FoundBy)
	}

	// Three internal results meet the escalation threshold.
	if builder.webCalls != 0 {
		t.Errorf("webCalls = %d, want 0", builder.webCalls)
	}

	md := resp.Metadata
	if md.SearchID == "" {
		t.Error("SearchID should be set")
	}
	if md.TotalResults != 3 {
		t.Errorf("TotalResults = %d, want 3", md.TotalResults)
	}
	if len(md.SourcesUsed) != 2 {
		t.Errorf("SourcesUsed = %v, want structured and semantic", md.SourcesUsed)
	}
	if md.QueryIntent != types.IntentPartDescription {
		t.Errorf("QueryIntent = %q", md.QueryIntent)
	}
}

func TestSearchAdapterFailureIsolated(t *testing.T) {
	stubAnalyze(t, types.ProcessedQuery{})

	builder := &fakeBuilder{adapters: []Adapter{
		&fakeAdapter{kind: types.SourceStructured, candidates: []types.PartCandidate{
			cand("P1", types.SourceStructured, 80),
			cand("P2", types.SourceStructured, 70),
			cand("P3", types.SourceStructured, 60),
		}},
		&fakeAdapter{kind: types.SourceSemantic, err: fmt.Errorf("index timeout")},
	}}
	e, warn := newTestEngine(t, &fakeDirectory{}, builder)

	resp, err := e.Search(context.Background(), "fuel filter", "t1", nil)
	if err != nil {
		t.Fatalf("one failing adapter must not fail the search: %v", err)
	}
	if len(resp.Results) != 3 {
		t.Errorf("len(Results) = %d, surviving adapters should answer", len(resp.Results))
	}
	if !strings.Contains(warn.String(), "semantic search failed") {
		t.Errorf("warning missing, got %q", warn.String())
	}
	if len(resp.Metadata.SourcesUsed) != 1 || resp.Metadata.SourcesUsed[0] != types.SourceStructured {
		t.Errorf("SourcesUsed = %v, want structured only", resp.Metadata.SourcesUsed)
	}
}

func TestSearchPassesExpandedTermsToAdapters(t *testing.T) {
	terms := []string{"fuel filter", "fuel element", "fuel strainer"}
	stubAnalyze(t, types.ProcessedQuery{ExpandedTerms: terms})

	adapter := &fakeAdapter{kind: types.SourceStructured, candidates: []types.PartCandidate{
		cand("P1", types.SourceStructured, 80),
		cand("P2", types.SourceStructured, 70),
		cand("P3", types.SourceStructured, 60),
	}}
	builder := &fakeBuilder{adapters: []Adapter{adapter}}
	e, _ := newTestEngine(t, &fakeDirectory{}, builder)

	if _, err := e.Search(context.Background(), "fuel filter", "t1", nil); err != nil {
		t.Fatalf("Search: %v", err)
	}

	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	if !reflect.DeepEqual(adapter.gotTerms["fuel filter"], terms) {
		t.Errorf("adapter saw terms %v, want %v", adapter.gotTerms["fuel filter"], terms)
	}
}

func TestSearchEscalatesOnThinResults(t *testing.T) {
	stubAnalyze(t, types.ProcessedQuery{})

	web := &fakeWeb{candidates: []types.PartCandidate{cand("W1", types.SourceWeb, 55)}}
	builder := &fakeBuilder{
		adapters: []Adapter{&fakeAdapter{kind: types.SourceStructured, candidates: []types.PartCandidate{
			cand("P1", types.SourceStructured, 80),
		}}},
		web: web,
	}
	e, _ := newTestEngine(t, &fakeDirectory{}, builder)

	resp, err := e.Search(context.Background(), "fuel filter", "t1", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if web.calls != 1 {
		t.Fatalf("web calls = %d, want 1 (below threshold)", web.calls)
	}
	if len(resp.WebResults) != 1 || resp.WebResults[0].PartNumber != "W1" {
		t.Errorf("WebResults = %v", resp.WebResults)
	}
	// Internal results stay separate from web results.
	if len(resp.Results) != 1 {
		t.Errorf("Results = %v", resp.Results)
	}
	if resp.Metadata.TotalResults != 2 {
		t.Errorf("TotalResults = %d, want 2", resp.Metadata.TotalResults)
	}
	last := resp.Metadata.SourcesUsed[len(resp.Metadata.SourcesUsed)-1]
	if last != types.SourceWeb {
		t.Errorf("SourcesUsed = %v, want web listed", resp.Metadata.SourcesUsed)
	}
}

func TestSearchEscalatesOnWebFlag(t *testing.T) {
	stubAnalyze(t, types.ProcessedQuery{ShouldSearchWeb: true})

	web := &fakeWeb{}
	builder := &fakeBuilder{
		adapters: []Adapter{&fakeAdapter{kind: types.SourceStructured, candidates: []types.PartCandidate{
			cand("P1", types.SourceStructured, 80),
			cand("P2", types.SourceStructured, 70),
			cand("P3", types.SourceStructured, 60),
		}}},
		web: web,
	}
	e, _ := newTestEngine(t, &fakeDirectory{}, builder)

	if _, err := e.Search(context.Background(), "AT-123456", "t1", nil); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if web.calls != 1 {
		t.Errorf("web calls = %d, want 1 despite enough internal results", web.calls)
	}
}

func TestSearchWebUnconfigured(t *testing.T) {
	stubAnalyze(t, types.ProcessedQuery{ShouldSearchWeb: true})

	builder := &fakeBuilder{}
	e, _ := newTestEngine(t, &fakeDirectory{}, builder)

	resp, err := e.Search(context.Background(), "fuel filter", "t1", nil)
	if err != nil {
		t.Fatalf("missing web credentials must not fail the search: %v", err)
	}
	if builder.webCalls != 1 {
		t.Errorf("builder.Web calls = %d, want 1", builder.webCalls)
	}
	if resp.WebResults != nil {
		t.Errorf("WebResults = %v, want nil", resp.WebResults)
	}
}

func TestSearchWebFailureNotListedAsSource(t *testing.T) {
	stubAnalyze(t, types.ProcessedQuery{ShouldSearchWeb: true})

	web := &fakeWeb{err: fmt.Errorf("provider quota exceeded")}
	builder := &fakeBuilder{
		adapters: []Adapter{&fakeAdapter{kind: types.SourceStructured, candidates: []types.PartCandidate{
			cand("P1", types.SourceStructured, 80),
		}}},
		web: web,
	}
	e, warn := newTestEngine(t, &fakeDirectory{}, builder)

	resp, err := e.Search(context.Background(), "fuel filter", "t1", nil)
	if err != nil {
		t.Fatalf("web failure must not fail the search: %v", err)
	}
	if web.calls != 1 {
		t.Fatalf("web calls = %d, want 1", web.calls)
	}
	if len(resp.WebResults) != 0 {
		t.Errorf("WebResults = %v, want none", resp.WebResults)
	}
	for _, s := range resp.Metadata.SourcesUsed {
		if s == types.SourceWeb {
			t.Errorf("SourcesUsed = %v, web contributed nothing", resp.Metadata.SourcesUsed)
		}
	}
	if !strings.Contains(warn.String(), "web search failed") {
		t.Errorf("warning missing, got %q", warn.String())
	}
}

func TestSearchWebEmptyNotListedAsSource(t *testing.T) {
	stubAnalyze(t, types.ProcessedQuery{})

	web := &fakeWeb{}
	builder := &fakeBuilder{
		adapters: []Adapter{&fakeAdapter{kind: types.SourceStructured, candidates: []types.PartCandidate{
			cand("P1", types.SourceStructured, 80),
		}}},
		web: web,
	}
	e, _ := newTestEngine(t, &fakeDirectory{}, builder)

	resp, err := e.Search(context.Background(), "fuel filter", "t1", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if web.calls != 1 {
		t.Fatalf("web calls = %d, want escalation on thin results", web.calls)
	}
	for _, s := range resp.Metadata.SourcesUsed {
		if s == types.SourceWeb {
			t.Errorf("SourcesUsed = %v, empty web answer should not be listed", resp.Metadata.SourcesUsed)
		}
	}
}

func TestSearchVehicleNotReady(t *testing.T) {
	stubAnalyze(t, types.ProcessedQuery{})

	web := &fakeWeb{candidates: []types.PartCandidate{cand("W1", types.SourceWeb, 50)}}
	builder := &fakeBuilder{
		adapters: []Adapter{&fakeAdapter{kind: types.SourceStructured, candidates: []types.PartCandidate{
			cand("P1", types.SourceStructured, 80),
		}}},
		web: web,
	}
	dir := &fakeDirectory{status: types.StatusPending}
	e, warn := newTestEngine(t, dir, builder)

	vehicle := &types.VehicleContext{ID: "v1", Make: "Komatsu"}
	resp, err := e.Search(context.Background(), "fuel filter", "t1", vehicle)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	// Internal stores are skipped entirely for a vehicle that is not
	// search-ready; the web path still answers.
	if builder.internalCalls != 0 {
		t.Errorf("internalCalls = %d, want 0", builder.internalCalls)
	}
	if len(resp.Results) != 0 || len(resp.WebResults) != 1 {
		t.Errorf("Results = %v, WebResults = %v", resp.Results, resp.WebResults)
	}
	if !strings.Contains(warn.String(), "not search-ready") {
		t.Errorf("warning missing, got %q", warn.String())
	}
}

func TestSearchVehicleStatusErrorFails(t *testing.T) {
	stubAnalyze(t, types.ProcessedQuery{})

	dir := &fakeDirectory{statusErr: fmt.Errorf("registry down")}
	e, _ := newTestEngine(t, dir, &fakeBuilder{})

	vehicle := &types.VehicleContext{ID: "v1"}
	if _, err := e.Search(context.Background(), "fuel filter", "t1", vehicle); err == nil {
		t.Error("status lookup failure should be a hard error")
	}
}

func TestSearchMappingErrorWarnsAndContinues(t *testing.T) {
	stubAnalyze(t, types.ProcessedQuery{})

	builder := &fakeBuilder{adapters: []Adapter{
		&fakeAdapter{kind: types.SourceStructured, candidates: []types.PartCandidate{
			cand("P1", types.SourceStructured, 80),
			cand("P2", types.SourceStructured, 70),
			cand("P3", types.SourceStructured, 60),
		}},
	}}
	dir := &fakeDirectory{mappingErr: fmt.Errorf("registry down")}
	e, warn := newTestEngine(t, dir, builder)

	vehicle := &types.VehicleContext{ID: "v1"}
	resp, err := e.Search(context.Background(), "fuel filter", "t1", vehicle)
	if err != nil {
		t.Fatalf("mapping failure should degrade to unscoped search: %v", err)
	}
	if len(resp.Results) != 3 {
		t.Errorf("len(Results) = %d, want 3", len(resp.Results))
	}
	if len(builder.gotMappings) != 1 || builder.gotMappings[0] != nil {
		t.Errorf("gotMappings = %v, want one unscoped call", builder.gotMappings)
	}
	if !strings.Contains(warn.String(), "mapping lookup failed") {
		t.Errorf("warning missing, got %q", warn.String())
	}
}

func TestSearchPassesMappingToBuilder(t *testing.T) {
	stubAnalyze(t, types.ProcessedQuery{})

	mapping := &types.CatalogMapping{VehicleID: "v1", ModelAlias: "D65"}
	builder := &fakeBuilder{}
	dir := &fakeDirectory{mapping: mapping}
	e, _ := newTestEngine(t, dir, builder)

	vehicle := &types.VehicleContext{ID: "v1"}
	if _, err := e.Search(context.Background(), "fuel filter", "t1", vehicle); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(builder.gotMappings) != 1 || builder.gotMappings[0] != mapping {
		t.Errorf("builder should receive the resolved mapping, got %v", builder.gotMappings)
	}
	if builder.releaseCalls != 1 {
		t.Errorf("releaseCalls = %d, want 1", builder.releaseCalls)
	}
}

func multiPartPQ() types.ProcessedQuery {
	return types.ProcessedQuery{
		Intent: types.IntentPartDescription,
		PartIntents: []types.PartIntent{
			{Label: "fuel filter", Query: "fuel filter", PartType: "fuel filter"},
			{Label: "hydraulic pump", Query: "hydraulic pump", PartType: "hydraulic pump"},
		},
	}
}

func TestSearchMultiPartGroups(t *testing.T) {
	stubAnalyze(t, multiPartPQ())

	builder := &fakeBuilder{adapters: []Adapter{
		&fakeAdapter{kind: types.SourceStructured, byQuery: map[string][]types.PartCandidate{
			"fuel filter":    {cand("P1", types.SourceStructured, 80)},
			"hydraulic pump": {cand("P2", types.SourceStructured, 70), cand("P1", types.SourceStructured, 60)},
		}},
	}}
	e, _ := newTestEngine(t, &fakeDirectory{}, builder)

	resp, err := e.Search(context.Background(), "fuel filter and hydraulic pump", "t1", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if len(resp.PartGroups) != 2 {
		t.Fatalf("len(PartGroups) = %d, want 2", len(resp.PartGroups))
	}
	if resp.PartGroups[0].Label != "fuel filter" || resp.PartGroups[1].Label != "hydraulic pump" {
		t.Errorf("group labels = %q, %q", resp.PartGroups[0].Label, resp.PartGroups[1].Label)
	}
	if len(resp.PartGroups[1].Results) != 2 {
		t.Errorf("pump group results = %v", resp.PartGroups[1].Results)
	}

	// Flat view keeps each part's best occurrence: P1 at 80 from the
	// filter group, not 60 from the pump group.
	if len(resp.Results) != 2 {
		t.Fatalf("flat view = %v, want 2 deduplicated parts", resp.Results)
	}
	if resp.Results[0].PartNumber != "P1" || resp.Results[0].Confidence != 80 {
		t.Errorf("flat[0] = %s (%.0f), want P1 at 80", resp.Results[0].PartNumber, resp.Results[0].Confidence)
	}
	if resp.Results[1].PartNumber != "P2" {
		t.Errorf("flat[1] = %s, want P2", resp.Results[1].PartNumber)
	}

	md := resp.Metadata
	if !md.IsMultiPartQuery || md.PartCount != 2 {
		t.Errorf("metadata = %+v", md)
	}
	if md.TotalResults != 2 {
		t.Errorf("TotalResults = %d, want flat count", md.TotalResults)
	}
	if builder.internalCalls != 2 {
		t.Errorf("internalCalls = %d, want one fan-out per intent", builder.internalCalls)
	}
}

func TestSearchMultiPartCapsIntents(t *testing.T) {
	pq := types.ProcessedQuery{}
	for i := 0; i < 7; i++ {
		pq.PartIntents = append(pq.PartIntents, types.PartIntent{
			Label: fmt.Sprintf("part %d", i),
			Query: fmt.Sprintf("part %d", i),
		})
	}
	stubAnalyze(t, pq)

	builder := &fakeBuilder{}
	e, warn := newTestEngine(t, &fakeDirectory{}, builder)

	resp, err := e.Search(context.Background(), "seven parts at once", "t1", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Metadata.PartCount != 5 {
		t.Errorf("PartCount = %d, want capped 5", resp.Metadata.PartCount)
	}
	if !strings.Contains(warn.String(), "capping multi-part query at 5 of 7") {
		t.Errorf("warning missing, got %q", warn.String())
	}
}

func TestSearchMultiPartIntentIsolation(t *testing.T) {
	pq := multiPartPQ()
	pq.PartIntents[0].ExpandedTerms = []string{"fuel element"}
	pq.PartIntents[1].PartNumber = "HP-200300"
	stubAnalyze(t, pq)

	web := &fakeWeb{}
	builder := &fakeBuilder{web: web}
	e, _ := newTestEngine(t, &fakeDirectory{}, builder)

	if _, err := e.Search(context.Background(), "fuel filter and HP-200300", "t1", nil); err != nil {
		t.Fatalf("Search: %v", err)
	}
	// Both groups escalate (zero internal results) and each carries only
	// its own intent's scope.
	if web.calls != 2 {
		t.Fatalf("web calls = %d, want 2", web.calls)
	}
	web.mu.Lock()
	defer web.mu.Unlock()
	if web.lastPQ.OriginalQuery == "fuel filter" {
		if len(web.lastPQ.PartNumbers) != 0 {
			t.Errorf("filter intent should not carry the pump's part number, got %v", web.lastPQ.PartNumbers)
		}
	} else {
		if len(web.lastPQ.PartNumbers) != 1 || web.lastPQ.PartNumbers[0] != "HP-200300" {
			t.Errorf("pump intent PartNumbers = %v", web.lastPQ.PartNumbers)
		}
		if web.lastPQ.Intent != types.IntentExactPartNumber {
			t.Errorf("pump intent = %q, want exact_part_number", web.lastPQ.Intent)
		}
	}
}

func TestSearchMultiPartTermsPerIntent(t *testing.T) {
	pq := multiPartPQ()
	pq.PartIntents[0].ExpandedTerms = []string{"fuel filter", "fuel element"}
	pq.PartIntents[1].ExpandedTerms = []string{"hydraulic pump", "hyd pump"}
	stubAnalyze(t, pq)

	adapter := &fakeAdapter{kind: types.SourceStructured}
	builder := &fakeBuilder{adapters: []Adapter{adapter}}
	e, _ := newTestEngine(t, &fakeDirectory{}, builder)

	if _, err := e.Search(context.Background(), "fuel filter and hydraulic pump", "t1", nil); err != nil {
		t.Fatalf("Search: %v", err)
	}

	// Each intent's fan-out carries only that intent's synonyms.
	adapter.mu.Lock()
	defer adapter.mu.Unlock()
	if !reflect.DeepEqual(adapter.gotTerms["fuel filter"], []string{"fuel filter", "fuel element"}) {
		t.Errorf("filter intent terms = %v", adapter.gotTerms["fuel filter"])
	}
	if !reflect.DeepEqual(adapter.gotTerms["hydraulic pump"], []string{"hydraulic pump", "hyd pump"}) {
		t.Errorf("pump intent terms = %v", adapter.gotTerms["hydraulic pump"])
	}
}

func TestSearchRerankApplied(t *testing.T) {
	stubAnalyze(t, types.ProcessedQuery{})

	builder := &fakeBuilder{adapters: []Adapter{
		&fakeAdapter{kind: types.SourceStructured, candidates: []types.PartCandidate{
			cand("P1", types.SourceStructured, 80),
			cand("P2", types.SourceStructured, 70),
			cand("P3", types.SourceStructured, 60),
		}},
	}}
	model := &llm.Scripted{Reply: `{"rankings": [
		{"part_number": "P3", "match_confidence": 95, "reason": "exact fit"},
		{"part_number": "P1", "match_confidence": 70},
		{"part_number": "P2", "match_confidence": 65}
	], "suggested_filters": ["oem"]}`}

	var warn bytes.Buffer
	cfg := types.EngineConfig{Rerank: types.RerankConfig{Enabled: true}}
	e, err := New(&fakeDirectory{}, builder, cfg, WithModel(model), WithWarnWriter(&warn))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { e.Close() })

	resp, err := e.Search(context.Background(), "fuel filter", "t1", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Results[0].PartNumber != "P3" || resp.Results[0].Confidence != 95 {
		t.Errorf("top = %s (%.0f), want reranked P3 at 95", resp.Results[0].PartNumber, resp.Results[0].Confidence)
	}
	if len(resp.SuggestedFilters) != 1 || resp.SuggestedFilters[0] != "oem" {
		t.Errorf("SuggestedFilters = %v", resp.SuggestedFilters)
	}
}

func TestSearchEmptyIsSuccess(t *testing.T) {
	stubAnalyze(t, types.ProcessedQuery{})

	e, _ := newTestEngine(t, &fakeDirectory{}, &fakeBuilder{})
	resp, err := e.Search(context.Background(), "unobtainium bracket", "t1", nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.Metadata.TotalResults != 0 || len(resp.Results) != 0 {
		t.Errorf("resp = %+v, want empty success", resp)
	}
}
