// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package web escalates a parts query to an external search engine and
// extracts part candidates from the organic results. A language model
// does the extraction when available; a regex extractor answers
// otherwise. Web candidates are capped at score 70 so they can never
// outrank a verified internal match.
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/meshintel/parts-engine/internal/httputil"
	"github.com/meshintel/parts-engine/internal/llm"
	"github.com/meshintel/parts-engine/internal/textutil"
	"github.com/meshintel/parts-engine/pkg/types"
)

// searchAPIBase is the web search provider endpoint. Declared as a var
// so tests can substitute an httptest server.
var searchAPIBase = "https://google.serper.dev/search"

const (
	defaultMaxSnippets = 8

	// scoreCeiling is the hard cap for web-sourced candidates.
	scoreCeiling = 70

	// minRelevance filters extraction noise.
	minRelevance = 20
)

// knownSuppliers is the domain allowlist that earns the +10 source
// bonus.
var knownSuppliers = []string{
	"deere.com", "cat.com", "komatsu.com", "kubota.com",
	"agcopartsbooks.com", "partstree.com", "messicks.com",
	"tractorjoe.com", "greenpartstore.com", "ebay.com",
	"amazon.com", "alibaba.com",
}

// Adapter calls the web search provider for one tenant.
type Adapter struct {
	client      *http.Client
	apiKey      string
	userAgent   string
	maxSnippets int
	model       llm.Client
	warn        io.Writer
}

// New builds the adapter from tenant credentials. model may be nil; the
// regex extractor then handles all snippets.
func New(creds *types.Credentials, cfg types.WebConfig, model llm.Client, warn io.Writer) (*Adapter, error) {
	if creds == nil || creds.APIKey == "" {
		return nil, fmt.Errorf("web search api key is required")
	}
	maxSnippets := cfg.MaxSnippets
	if maxSnippets <= 0 {
		maxSnippets = defaultMaxSnippets
	}
	return &Adapter{
		client:      &http.Client{Timeout: cfg.Timeout},
		apiKey:      creds.APIKey,
		userAgent:   cfg.UserAgent,
		maxSnippets: maxSnippets,
		model:       model,
		warn:        warn,
	}, nil
}

// Search builds the provider query, fetches organic results, and
// extracts part candidates. Empty or failed responses yield an empty
// list, never an error: web search is best-effort by design.
func (a *Adapter) Search(ctx context.Context, pq types.ProcessedQuery, vehicle *types.VehicleContext) ([]types.PartCandidate, error) {
	providerQuery := buildProviderQuery(pq, vehicle)
	if providerQuery == "" {
		return nil, nil
	}

	organic, err := a.fetchOrganic(ctx, providerQuery)
	if err != nil {
		fmt.Fprintf(a.warn, "warning: web search failed: %v\n", err)
		return nil, nil
	}
	if len(organic) == 0 {
		return nil, nil
	}
	if len(organic) > a.maxSnippets {
		organic = organic[:a.maxSnippets]
	}

	var extracts []extract
	if a.model != nil {
		extracts, err = a.modelExtract(ctx, providerQuery, organic)
		if err != nil {
			fmt.Fprintf(a.warn, "warning: model extraction failed, using regex: %v\n", err)
			extracts = regexExtract(organic)
		}
	} else {
		extracts = regexExtract(organic)
	}

	return score(extracts, pq.PartNumbers), nil
}

// buildProviderQuery prioritizes detected part numbers, appends the
// vehicle make/model, and the literal word "parts".
func buildProviderQuery(pq types.ProcessedQuery, vehicle *types.VehicleContext) string {
	var terms []string
	if len(pq.PartNumbers) > 0 {
		terms = append(terms, pq.PartNumbers...)
	} else if phrase := textutil.Phrase(pq.OriginalQuery); phrase != "" {
		terms = append(terms, phrase)
	}
	if len(terms) == 0 {
		return ""
	}
	if vehicle != nil {
		if vehicle.Make != "" {
			terms = append(terms, vehicle.Make)
		}
		if vehicle.Model != "" {
			terms = append(terms, vehicle.Model)
		}
	}
	terms = append(terms, "parts")
	return strings.Join(terms, " ")
}

type organicResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

type searchResponse struct {
	Organic []organicResult `json:"organic"`
}

func (a *Adapter) fetchOrganic(ctx context.Context, providerQuery string) ([]organicResult, error) {
	payload, err := json.Marshal(map[string]string{"q": providerQuery})
	if err != nil {
		return nil, fmt.Errorf("encoding search request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, searchAPIBase, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("X-API-KEY", a.apiKey)

	resp, err := httputil.DoWithRetry(ctx, a.client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("search provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search provider returned HTTP %d", resp.StatusCode)
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("parsing search response: %w", err)
	}
	return sr.Organic, nil
}

// extract is one structured part candidate pulled from a snippet.
type extract struct {
	PartNumber     string  `json:"part_number"`
	Description    string  `json:"description"`
	Price          float64 `json:"price"`
	SourceName     string  `json:"source_name"`
	SourceURL      string  `json:"source_url"`
	Snippet        string  `json:"snippet"`
	RelevanceScore float64 `json:"relevance_score"`
}

type extractionReply struct {
	Parts []extract `json:"parts"`
}

func (a *Adapter) modelExtract(ctx context.Context, providerQuery string, organic []organicResult) ([]extract, error) {
	var b strings.Builder
	b.WriteString("Extract heavy-equipment part candidates from these search results.\n")
	b.WriteString("Reply with JSON only: {\"parts\":[{\"part_number\":\"\",\"description\":\"\",")
	b.WriteString("\"price\":0,\"source_name\":\"\",\"source_url\":\"\",\"snippet\":\"\",\"relevance_score\":0}]}\n")
	b.WriteString("relevance_score is 0-100 against the query. Skip results with no part.\n")
	fmt.Fprintf(&b, "Query: %s\n\nResults:\n", providerQuery)
	for i, r := range organic {
		fmt.Fprintf(&b, "%d. %s\n%s\n%s\n\n", i+1, r.Title, r.Link, r.Snippet)
	}

	var reply extractionReply
	if err := a.model.GenerateStructured(ctx, b.String(), &reply); err != nil {
		return nil, err
	}
	return reply.Parts, nil
}

var priceRe = regexp.MustCompile(`\$\s?(\d{1,6}(?:\.\d{2})?)`)

// regexExtract is the deterministic fallback: part-number-shaped
// tokens, $-prefixed prices, hostname as the source name.
func regexExtract(organic []organicResult) []extract {
	var out []extract
	for _, r := range organic {
		text := r.Title + " " + r.Snippet
		partNumbers := textutil.PartNumbers(text)
		if len(partNumbers) == 0 {
			continue
		}
		e := extract{
			PartNumber:     partNumbers[0],
			Description:    r.Title,
			SourceName:     hostname(r.Link),
			SourceURL:      r.Link,
			Snippet:        r.Snippet,
			RelevanceScore: 50,
		}
		if m := priceRe.FindStringSubmatch(text); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				e.Price = v
			}
		}
		out = append(out, e)
	}
	return out
}

func hostname(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(u.Host, "www.")
}

// score converts extracts into candidates: base is relevance×0.6
// clamped to [40,60], +20 for a part number matching the query, +10
// for a known supplier domain, all capped at the web ceiling.
func score(extracts []extract, queryPartNumbers []string) []types.PartCandidate {
	normalized := make(map[string]bool, len(queryPartNumbers))
	for _, pn := range queryPartNumbers {
		normalized[textutil.NormalizePartNumber(pn)] = true
	}

	var out []types.PartCandidate
	for _, e := range extracts {
		if e.RelevanceScore < minRelevance || e.PartNumber == "" {
			continue
		}
		s := e.RelevanceScore * 0.6
		if s < 40 {
			s = 40
		}
		if s > 60 {
			s = 60
		}
		if normalized[textutil.NormalizePartNumber(e.PartNumber)] {
			s += 20
		}
		if isKnownSupplier(e.SourceURL) {
			s += 10
		}
		if s > scoreCeiling {
			s = scoreCeiling
		}

		out = append(out, types.PartCandidate{
			PartNumber:  strings.ToUpper(e.PartNumber),
			Description: e.Description,
			Price:       e.Price,
			Score:       s,
			Source:      types.SourceWeb,
			Metadata: types.Metadata{
				SourceName: e.SourceName,
				SourceURL:  e.SourceURL,
				Snippet:    e.Snippet,
			},
		})
	}
	return out
}

func isKnownSupplier(link string) bool {
	host := hostname(link)
	if host == "" {
		return false
	}
	for _, domain := range knownSuppliers {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}
