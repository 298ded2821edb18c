// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/meshintel/parts-engine/internal/structured"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Administer the relational parts catalog",
}

// seedPart is one catalog row in a seed file.
type seedPart struct {
	PartNumber    string   `yaml:"part_number"`
	Description   string   `yaml:"description"`
	Category      string   `yaml:"category"`
	Subcategory   string   `yaml:"subcategory"`
	Price         float64  `yaml:"price"`
	StockQuantity int      `yaml:"stock_quantity"`
	Active        *bool    `yaml:"active"`
	Manufacturers []string `yaml:"manufacturers"`
	Models        []string `yaml:"models"`
}

var catalogLoadCmd = &cobra.Command{
	Use:   "load <file.yaml>",
	Short: "Load catalog rows from a YAML seed file",
	Long: `Load reads a YAML list of parts and upserts each row into the tenant's
catalog. Rows default to active unless the file says otherwise.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID, _ := cmd.Flags().GetString("tenant")

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading seed file: %w", err)
		}
		var seeds []seedPart
		if err := yaml.Unmarshal(data, &seeds); err != nil {
			return fmt.Errorf("parsing seed file: %w", err)
		}

		catalog, err := structured.Open(engineConfig().Structured)
		if err != nil {
			return err
		}
		defer catalog.Close()

		for _, s := range seeds {
			active := true
			if s.Active != nil {
				active = *s.Active
			}
			p := structured.Part{
				TenantID:      tenantID,
				PartNumber:    s.PartNumber,
				Description:   s.Description,
				Category:      s.Category,
				Subcategory:   s.Subcategory,
				Price:         s.Price,
				StockQuantity: s.StockQuantity,
				Active:        active,
				Manufacturers: s.Manufacturers,
				Models:        s.Models,
			}
			if err := catalog.Upsert(cmd.Context(), p); err != nil {
				return err
			}
		}
		fmt.Printf("Loaded %d parts for tenant %s\n", len(seeds), tenantID)
		return nil
	},
}

func init() {
	catalogLoadCmd.Flags().String("tenant", "", "tenant identifier (required)")
	catalogLoadCmd.MarkFlagRequired("tenant")

	catalogCmd.AddCommand(catalogLoadCmd)
	rootCmd.AddCommand(catalogCmd)
}
