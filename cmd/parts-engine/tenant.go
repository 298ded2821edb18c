// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meshintel/parts-engine/internal/tenant"
	"github.com/meshintel/parts-engine/pkg/types"
)

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Administer tenant credentials, vehicle mappings, and readiness",
}

var tenantCredentialsCmd = &cobra.Command{
	Use:   "set-credentials",
	Short: "Store integration credentials for a tenant",
	Long: `set-credentials stores the connection material for one integration
(vector, graph, web, or llm). Pass --shared to store a platform-wide
row used as a fallback for tenants without their own credentials.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tenantID, _ := cmd.Flags().GetString("tenant")
		kind, _ := cmd.Flags().GetString("kind")
		shared, _ := cmd.Flags().GetBool("shared")
		if !shared && tenantID == "" {
			return fmt.Errorf("either --tenant or --shared is required")
		}
		if shared {
			tenantID = ""
		}
		switch types.IntegrationKind(kind) {
		case types.IntegrationVector, types.IntegrationGraph, types.IntegrationWeb, types.IntegrationLLM:
		default:
			return fmt.Errorf("unknown integration kind %q", kind)
		}

		store, err := tenant.Open(tenantDBPath())
		if err != nil {
			return err
		}
		defer store.Close()

		creds := types.Credentials{}
		creds.Endpoint, _ = cmd.Flags().GetString("endpoint")
		creds.APIKey, _ = cmd.Flags().GetString("api-key")
		creds.Username, _ = cmd.Flags().GetString("username")
		creds.Password, _ = cmd.Flags().GetString("password")
		creds.Model, _ = cmd.Flags().GetString("model")

		if err := store.PutCredentials(cmd.Context(), tenantID, types.IntegrationKind(kind), creds); err != nil {
			return err
		}
		fmt.Printf("Stored %s credentials\n", kind)
		return nil
	},
}

var tenantMappingCmd = &cobra.Command{
	Use:   "set-mapping",
	Short: "Store a vehicle's catalog mapping",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := tenant.Open(tenantDBPath())
		if err != nil {
			return err
		}
		defer store.Close()

		var m types.CatalogMapping
		m.VehicleID, _ = cmd.Flags().GetString("vehicle")
		m.ManufacturerAlias, _ = cmd.Flags().GetString("manufacturer")
		m.ModelAlias, _ = cmd.Flags().GetString("model")
		m.CategoryAlias, _ = cmd.Flags().GetString("category")
		m.Namespace, _ = cmd.Flags().GetString("namespace")
		m.GraphManufacturerID, _ = cmd.Flags().GetString("graph-manufacturer")
		m.GraphModelID, _ = cmd.Flags().GetString("graph-model")

		if err := store.PutMapping(cmd.Context(), m); err != nil {
			return err
		}
		fmt.Printf("Stored mapping for vehicle %s\n", m.VehicleID)
		return nil
	},
}

var tenantStatusCmd = &cobra.Command{
	Use:   "set-status",
	Short: "Set a vehicle's search-readiness status",
	RunE: func(cmd *cobra.Command, args []string) error {
		vehicleID, _ := cmd.Flags().GetString("vehicle")
		status, _ := cmd.Flags().GetString("status")
		switch types.VehicleStatus(status) {
		case types.StatusSearchReady, types.StatusPending, types.StatusFailed:
		default:
			return fmt.Errorf("unknown status %q", status)
		}

		store, err := tenant.Open(tenantDBPath())
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.PutVehicleStatus(cmd.Context(), vehicleID, types.VehicleStatus(status)); err != nil {
			return err
		}
		fmt.Printf("Vehicle %s is now %s\n", vehicleID, status)
		return nil
	},
}

func init() {
	tenantCredentialsCmd.Flags().String("tenant", "", "tenant identifier")
	tenantCredentialsCmd.Flags().String("kind", "", "integration kind: vector, graph, web, or llm (required)")
	tenantCredentialsCmd.Flags().Bool("shared", false, "store as a platform-shared fallback row")
	tenantCredentialsCmd.Flags().String("endpoint", "", "integration endpoint URL")
	tenantCredentialsCmd.Flags().String("api-key", "", "API key")
	tenantCredentialsCmd.Flags().String("username", "", "username (graph stores)")
	tenantCredentialsCmd.Flags().String("password", "", "password (graph stores)")
	tenantCredentialsCmd.Flags().String("model", "", "model identifier (llm)")
	tenantCredentialsCmd.MarkFlagRequired("kind")

	tenantMappingCmd.Flags().String("vehicle", "", "vehicle identifier (required)")
	tenantMappingCmd.Flags().String("manufacturer", "", "manufacturer alias for the structured and semantic stores")
	tenantMappingCmd.Flags().String("model", "", "model alias for the structured and semantic stores")
	tenantMappingCmd.Flags().String("category", "", "category alias for the structured store")
	tenantMappingCmd.Flags().String("namespace", "", "vector index namespace")
	tenantMappingCmd.Flags().String("graph-manufacturer", "", "graph store manufacturer node id")
	tenantMappingCmd.Flags().String("graph-model", "", "graph store model node id")
	tenantMappingCmd.MarkFlagRequired("vehicle")

	tenantStatusCmd.Flags().String("vehicle", "", "vehicle identifier (required)")
	tenantStatusCmd.Flags().String("status", "", "search_ready, pending, or failed (required)")
	tenantStatusCmd.MarkFlagRequired("vehicle")
	tenantStatusCmd.MarkFlagRequired("status")

	tenantCmd.AddCommand(tenantCredentialsCmd, tenantMappingCmd, tenantStatusCmd)
	rootCmd.AddCommand(tenantCmd)
}
