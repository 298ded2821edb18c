// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/meshintel/parts-engine/internal/graph"
	"github.com/meshintel/parts-engine/internal/llm"
	"github.com/meshintel/parts-engine/internal/semantic"
	"github.com/meshintel/parts-engine/internal/structured"
	"github.com/meshintel/parts-engine/internal/web"
	"github.com/meshintel/parts-engine/pkg/types"
)

// Builder is the default AdapterBuilder: the structured catalog is
// engine-owned and always available, the semantic and graph adapters
// exist per call when the tenant holds credentials for them, and the
// web adapter falls back to the platform-shared key.
type Builder struct {
	directory Directory
	catalog   *structured.Adapter
	model     llm.Client
	cfg       types.EngineConfig
	warn      io.Writer
}

// NewBuilder wires the default adapter set. model may be nil.
func NewBuilder(directory Directory, catalog *structured.Adapter, model llm.Client, cfg types.EngineConfig, warn io.Writer) *Builder {
	if warn == nil {
		warn = io.Discard
	}
	return &Builder{
		directory: directory,
		catalog:   catalog,
		model:     model,
		cfg:       cfg,
		warn:      warn,
	}
}

// Internal prepares the per-call internal adapters. Missing credentials
// skip an adapter silently; a credential row that fails to produce a
// client is a warning. Both leave the remaining adapters running.
// The release function closes the per-call HTTP clients' idle
// connections; without it a long-running process accumulates keep-alive
// connections from every search.
func (b *Builder) Internal(ctx context.Context, tenantID string, mapping *types.CatalogMapping, vehicle *types.VehicleContext) ([]Adapter, func(), error) {
	var adapters []Adapter

	if b.catalog != nil {
		adapters = append(adapters, &structuredAdapter{
			catalog: b.catalog,
			tenant:  tenantID,
			vehicle: vehicle,
			mapping: mapping,
		})
	}

	if a := b.semanticAdapter(ctx, tenantID, mapping); a != nil {
		adapters = append(adapters, a)
	}
	if a := b.graphAdapter(ctx, tenantID, mapping); a != nil {
		adapters = append(adapters, a)
	}

	release := func() {
		for _, a := range adapters {
			if c, ok := a.(interface{ CloseIdleConnections() }); ok {
				c.CloseIdleConnections()
			}
		}
	}
	return adapters, release, nil
}

func (b *Builder) semanticAdapter(ctx context.Context, tenantID string, mapping *types.CatalogMapping) Adapter {
	creds, err := b.directory.Credentials(ctx, tenantID, types.IntegrationVector)
	if err != nil {
		fmt.Fprintf(b.warn, "warning: resolving vector credentials: %v\n", err)
		return nil
	}
	if creds == nil {
		return nil
	}

	embedKey := ""
	if llmCreds, err := b.directory.CredentialsWithFallback(ctx, tenantID, types.IntegrationLLM); err == nil && llmCreds != nil {
		embedKey = llmCreds.APIKey
	}
	embedder, err := semantic.NewOpenAIEmbedder(b.cfg.Semantic, embedKey)
	if err != nil {
		fmt.Fprintf(b.warn, "warning: semantic search disabled: %v\n", err)
		return nil
	}
	a, err := semantic.New(creds, b.cfg.Semantic, embedder, b.warn)
	if err != nil {
		fmt.Fprintf(b.warn, "warning: semantic search disabled: %v\n", err)
		return nil
	}
	return &semanticAdapter{adapter: a, mapping: mapping}
}

func (b *Builder) graphAdapter(ctx context.Context, tenantID string, mapping *types.CatalogMapping) Adapter {
	creds, err := b.directory.Credentials(ctx, tenantID, types.IntegrationGraph)
	if err != nil {
		fmt.Fprintf(b.warn, "warning: resolving graph credentials: %v\n", err)
		return nil
	}
	if creds == nil {
		return nil
	}
	a, err := graph.New(creds, b.cfg.Graph, b.warn)
	if err != nil {
		fmt.Fprintf(b.warn, "warning: graph search disabled: %v\n", err)
		return nil
	}
	return &graphAdapter{adapter: a, mapping: mapping}
}

// Web prepares the web escalation path, or nil when neither the tenant
// nor the platform holds a web search key.
func (b *Builder) Web(ctx context.Context, tenantID string) (WebSearcher, error) {
	creds, err := b.directory.CredentialsWithFallback(ctx, tenantID, types.IntegrationWeb)
	if err != nil {
		return nil, fmt.Errorf("resolving web credentials: %w", err)
	}
	if creds == nil {
		return nil, nil
	}
	a, err := web.New(creds, b.cfg.Web, b.model, b.warn)
	if err != nil {
		return nil, fmt.Errorf("building web adapter: %w", err)
	}
	return a, nil
}

// structuredAdapter binds the engine-owned catalog store to one call's
// tenant and vehicle scope.
type structuredAdapter struct {
	catalog *structured.Adapter
	tenant  string
	vehicle *types.VehicleContext
	mapping *types.CatalogMapping
}

func (s *structuredAdapter) Kind() types.SourceKind { return types.SourceStructured }

func (s *structuredAdapter) Search(ctx context.Context, queryText string, expandedTerms []string) ([]types.PartCandidate, error) {
	return s.catalog.Search(ctx, queryText, s.tenant, s.vehicle, s.mapping, expandedTerms)
}

type semanticAdapter struct {
	adapter *semantic.Adapter
	mapping *types.CatalogMapping
}

func (s *semanticAdapter) Kind() types.SourceKind { return types.SourceSemantic }

func (s *semanticAdapter) Search(ctx context.Context, queryText string, expandedTerms []string) ([]types.PartCandidate, error) {
	return s.adapter.Search(ctx, queryText, expandedTerms, s.mapping)
}

func (s *semanticAdapter) CloseIdleConnections() { s.adapter.CloseIdleConnections() }

type graphAdapter struct {
	adapter *graph.Adapter
	mapping *types.CatalogMapping
}

func (g *graphAdapter) Kind() types.SourceKind { return types.SourceGraph }

func (g *graphAdapter) Search(ctx context.Context, queryText string, expandedTerms []string) ([]types.PartCandidate, error) {
	return g.adapter.Search(ctx, queryText, expandedTerms, g.mapping)
}

func (g *graphAdapter) CloseIdleConnections() { g.adapter.CloseIdleConnections() }
