// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/meshintel/parts-engine/internal/llm"
	"github.com/meshintel/parts-engine/pkg/types"
)

func testCfg() types.WebConfig {
	return types.WebConfig{HTTPConfig: types.HTTPConfig{UserAgent: "test/0.1"}}
}

func newTestAdapter(t *testing.T, model llm.Client, warn *bytes.Buffer) *Adapter {
	t.Helper()
	if warn == nil {
		warn = &bytes.Buffer{}
	}
	a, err := New(&types.Credentials{APIKey: "serper-key"}, testCfg(), model, warn)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func withSearchServer(t *testing.T, handler http.HandlerFunc) {
	t.Helper()
	ts := httptest.NewServer(handler)
	orig := searchAPIBase
	searchAPIBase = ts.URL
	t.Cleanup(func() {
		searchAPIBase = orig
		ts.Close()
	})
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(nil, testCfg(), nil, nil); err == nil {
		t.Error("expected error for nil credentials")
	}
	if _, err := New(&types.Credentials{}, testCfg(), nil, nil); err == nil {
		t.Error("expected error for empty api key")
	}
}

func TestSearchRegexExtraction(t *testing.T) {
	var gotQuery string
	withSearchServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.Header.Get("X-API-KEY") != "serper-key" {
			t.Errorf("X-API-KEY = %q", r.Header.Get("X-API-KEY"))
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		gotQuery = body["q"]
		fmt.Fprint(w, `{"organic":[
			{"title":"Fuel Filter AT-123456 In Stock","link":"https://www.messicks.com/part/at123456","snippet":"Genuine filter, $28.99 each."},
			{"title":"Heavy equipment maintenance tips","link":"https://example.com/blog","snippet":"No part numbers here."}
		]}`)
	})

	a := newTestAdapter(t, nil, nil)
	pq := types.ProcessedQuery{OriginalQuery: "AT-123456", PartNumbers: []string{"AT-123456"}}
	vehicle := &types.VehicleContext{Make: "Komatsu", Model: "D65"}

	got, err := a.Search(context.Background(), pq, vehicle)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotQuery != "AT-123456 Komatsu D65 parts" {
		t.Errorf("provider query = %q", gotQuery)
	}
	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1 (blog snippet has no part number)", len(got))
	}

	c := got[0]
	if c.PartNumber != "AT-123456" || c.Source != types.SourceWeb {
		t.Errorf("candidate = %+v", c)
	}
	// Regex relevance 50 clamps to base 40, +20 for the matching part
	// number, +10 for a known supplier domain.
	if c.Score != 70 {
		t.Errorf("Score = %.0f, want 70", c.Score)
	}
	if c.Price != 28.99 {
		t.Errorf("Price = %.2f, want 28.99", c.Price)
	}
	if c.Metadata.SourceName != "messicks.com" {
		t.Errorf("SourceName = %q", c.Metadata.SourceName)
	}
}

func TestSearchModelExtraction(t *testing.T) {
	withSearchServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"organic":[{"title":"Filters","link":"https://example.com","snippet":"catalog"}]}`)
	})

	model := &llm.Scripted{Reply: `{"parts":[
		{"part_number":"RE504836","description":"Oil filter","price":12.5,
		 "source_name":"example.com","source_url":"https://example.com","relevance_score":90},
		{"part_number":"JUNK-1","description":"noise","relevance_score":10}
	]}`}
	a := newTestAdapter(t, model, nil)

	pq := types.ProcessedQuery{OriginalQuery: "oil filter"}
	got, err := a.Search(context.Background(), pq, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(got) = %d, want 1 (low relevance dropped)", len(got))
	}
	// 90 * 0.6 = 54, no bonuses.
	if got[0].Score != 54 {
		t.Errorf("Score = %.0f, want 54", got[0].Score)
	}
	if len(model.Prompts) != 1 || !strings.Contains(model.Prompts[0], "oil filter parts") {
		t.Errorf("extraction prompt should carry the provider query, got %v", model.Prompts)
	}
}

func TestSearchModelFailureFallsBackToRegex(t *testing.T) {
	withSearchServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"organic":[{"title":"Pump HP-200300","link":"https://example.com","snippet":"assembly"}]}`)
	})

	var warn bytes.Buffer
	a := newTestAdapter(t, &llm.Scripted{Err: fmt.Errorf("model down")}, &warn)

	got, err := a.Search(context.Background(), types.ProcessedQuery{OriginalQuery: "hydraulic pump"}, nil)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].PartNumber != "HP-200300" {
		t.Errorf("regex fallback should extract, got %v", got)
	}
	if !strings.Contains(warn.String(), "model extraction failed") {
		t.Errorf("warning missing, got %q", warn.String())
	}
}

func TestSearchProviderFailureDegrades(t *testing.T) {
	withSearchServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	var warn bytes.Buffer
	a := newTestAdapter(t, nil, &warn)

	got, err := a.Search(context.Background(), types.ProcessedQuery{OriginalQuery: "fuel filter"}, nil)
	if err != nil {
		t.Fatalf("web search is best-effort, got error: %v", err)
	}
	if got != nil {
		t.Errorf("got = %v, want nil", got)
	}
	if !strings.Contains(warn.String(), "web search failed") {
		t.Errorf("warning missing, got %q", warn.String())
	}
}

func TestSearchCapsSnippets(t *testing.T) {
	var organic []organicResult
	for i := 0; i < 12; i++ {
		organic = append(organic, organicResult{Title: fmt.Sprintf("result %d", i)})
	}
	withSearchServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(searchResponse{Organic: organic})
	})

	model := &llm.Scripted{Reply: `{"parts":[]}`}
	a := newTestAdapter(t, model, nil)

	if _, err := a.Search(context.Background(), types.ProcessedQuery{OriginalQuery: "fuel filter"}, nil); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if strings.Contains(model.Prompts[0], "result 8") {
		t.Error("prompt should only carry the first 8 snippets")
	}
}

func TestBuildProviderQuery(t *testing.T) {
	tests := []struct {
		name    string
		pq      types.ProcessedQuery
		vehicle *types.VehicleContext
		want    string
	}{
		{
			"part numbers win over phrase",
			types.ProcessedQuery{OriginalQuery: "need a filter", PartNumbers: []string{"AT-123456", "RE504836"}},
			nil,
			"AT-123456 RE504836 parts",
		},
		{
			"phrase fallback",
			types.ProcessedQuery{OriginalQuery: "the fuel filter for my machine"},
			nil,
			"fuel filter machine parts",
		},
		{
			"vehicle context appended",
			types.ProcessedQuery{OriginalQuery: "fuel filter"},
			&types.VehicleContext{Make: "Komatsu", Model: "D65"},
			"fuel filter Komatsu D65 parts",
		},
		{
			"nothing searchable",
			types.ProcessedQuery{OriginalQuery: "the of a"},
			nil,
			"",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildProviderQuery(tt.pq, tt.vehicle); got != tt.want {
				t.Errorf("buildProviderQuery = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestScoreBounds(t *testing.T) {
	tests := []struct {
		name string
		e    extract
		want float64
	}{
		{"floor", extract{PartNumber: "P1", RelevanceScore: 20, SourceURL: "https://example.com"}, 40},
		{"ceiling before bonuses", extract{PartNumber: "P1", RelevanceScore: 100, SourceURL: "https://example.com"}, 60},
		{"supplier bonus", extract{PartNumber: "P1", RelevanceScore: 100, SourceURL: "https://shop.deere.com/x"}, 70},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := score([]extract{tt.e}, nil)
			if len(out) != 1 || out[0].Score != tt.want {
				t.Errorf("score = %v, want %.0f", out, tt.want)
			}
		})
	}

	// Part number bonus normalizes both sides before comparing.
	out := score([]extract{{PartNumber: "at123456", RelevanceScore: 50, SourceURL: "https://example.com"}}, []string{"AT-123456"})
	if len(out) != 1 || out[0].Score != 60 {
		t.Errorf("normalized match = %v, want 60", out)
	}
	if out[0].PartNumber != "AT123456" {
		t.Errorf("PartNumber = %q, want uppercased", out[0].PartNumber)
	}

	if got := score([]extract{{RelevanceScore: 50}}, nil); got != nil {
		t.Errorf("extract without part number should be dropped, got %v", got)
	}
}
