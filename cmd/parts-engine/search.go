// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/meshintel/parts-engine/internal/llm"
	"github.com/meshintel/parts-engine/internal/pipeline"
	"github.com/meshintel/parts-engine/internal/structured"
	"github.com/meshintel/parts-engine/internal/tenant"
	"github.com/meshintel/parts-engine/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the tenant's parts catalogs",
	Long: `Search runs one parts-lookup query through the full pipeline: query
understanding, fan-out over the tenant's configured adapters, merge with
confidence scoring, conditional web escalation, and reranking when a
language model is configured.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		queryText := strings.Join(args, " ")
		tenantID, _ := cmd.Flags().GetString("tenant")
		jsonOut, _ := cmd.Flags().GetBool("json")
		savePath, _ := cmd.Flags().GetString("save")

		cfg := engineConfig()

		store, err := tenant.Open(tenantDBPath())
		if err != nil {
			return err
		}
		defer store.Close()

		catalog, err := structured.Open(cfg.Structured)
		if err != nil {
			return err
		}
		defer catalog.Close()

		var model llm.Client
		if cfg.LLM.APIKey != "" {
			c, err := llm.NewOpenAIClient(cfg.LLM)
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: language model disabled: %v\n", err)
			} else {
				model = c
			}
		}

		builder := pipeline.NewBuilder(store, catalog, model, cfg, os.Stderr)
		engine, err := pipeline.New(store, builder, cfg,
			pipeline.WithModel(model),
			pipeline.WithWarnWriter(os.Stderr),
		)
		if err != nil {
			return err
		}
		defer engine.Close()

		resp, err := engine.Search(cmd.Context(), queryText, tenantID, vehicleFromFlags(cmd))
		if err != nil {
			return err
		}

		if savePath != "" {
			if err := saveResponse(savePath, queryText, tenantID, resp); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Saved results to %s\n", savePath)
		}

		if jsonOut {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}
		printResponse(resp)
		return nil
	},
}

func init() {
	searchCmd.Flags().String("tenant", "", "tenant identifier (required)")
	searchCmd.Flags().String("vehicle-id", "", "vehicle identifier to scope the search")
	searchCmd.Flags().String("make", "", "vehicle manufacturer")
	searchCmd.Flags().String("model", "", "vehicle model")
	searchCmd.Flags().String("serial", "", "vehicle serial number")
	searchCmd.Flags().Bool("json", false, "output the full response as JSON")
	searchCmd.Flags().String("save", "", "save the query and results to a YAML file")
	searchCmd.MarkFlagRequired("tenant")

	rootCmd.AddCommand(searchCmd)
}

func vehicleFromFlags(cmd *cobra.Command) *types.VehicleContext {
	id, _ := cmd.Flags().GetString("vehicle-id")
	mk, _ := cmd.Flags().GetString("make")
	mdl, _ := cmd.Flags().GetString("model")
	serial, _ := cmd.Flags().GetString("serial")
	if id == "" && mk == "" && mdl == "" && serial == "" {
		return nil
	}
	return &types.VehicleContext{ID: id, Make: mk, Model: mdl, SerialNumber: serial}
}

func printResponse(resp *types.SearchResponse) {
	if len(resp.PartGroups) > 0 {
		for _, g := range resp.PartGroups {
			fmt.Printf("== %s (%d results)\n", g.Label, g.ResultCount)
			printResults(g.Results)
			printWebResults(g.WebResults)
			fmt.Println()
		}
	} else {
		printResults(resp.Results)
		printWebResults(resp.WebResults)
	}

	if len(resp.SuggestedFilters) > 0 {
		fmt.Printf("Suggested filters: %s\n", strings.Join(resp.SuggestedFilters, ", "))
	}
	if len(resp.RelatedQueries) > 0 {
		fmt.Printf("Related queries:   %s\n", strings.Join(resp.RelatedQueries, ", "))
	}

	m := resp.Metadata
	sources := make([]string, len(m.SourcesUsed))
	for i, s := range m.SourcesUsed {
		sources[i] = string(s)
	}
	fmt.Printf("\n%d results in %d ms (sources: %s, search %s)\n",
		m.TotalResults, m.SearchTimeMs, strings.Join(sources, ","), m.SearchID)
}

func printResults(results []types.EnrichedResult) {
	if len(results) == 0 {
		fmt.Println("No catalog matches.")
		return
	}
	for _, r := range results {
		fmt.Printf("%-18s %5.0f  %-44s %s\n",
			r.PartNumber, r.Confidence, truncate(r.Description, 44), r.Reason)
	}
}

func printWebResults(results []types.EnrichedResult) {
	if len(results) == 0 {
		return
	}
	fmt.Println("Web results:")
	for _, r := range results {
		fmt.Printf("%-18s %5.0f  %-44s %s\n",
			r.PartNumber, r.Confidence, truncate(r.Description, 44), r.Metadata.SourceName)
	}
}

// truncate shortens s to n runes. Slicing runes, not bytes, keeps
// multi-byte descriptions intact.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

// savedSearch is the YAML document written by --save.
type savedSearch struct {
	Query    string               `yaml:"query"`
	TenantID string               `yaml:"tenant_id"`
	SavedAt  string               `yaml:"saved_at"`
	Response types.SearchResponse `yaml:"response"`
}

func saveResponse(path, queryText, tenantID string, resp *types.SearchResponse) error {
	doc := savedSearch{
		Query:    queryText,
		TenantID: tenantID,
		SavedAt:  time.Now().UTC().Format(time.RFC3339),
		Response: *resp,
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding saved search: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing saved search: %w", err)
	}
	return nil
}
