// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the parts-engine CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meshintel/parts-engine/internal/httputil"
	"github.com/meshintel/parts-engine/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns fallback when set, the secret value for key
// otherwise.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the parts-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "parts-engine",
	Short: "Multi-source parts lookup for heavy-equipment maintenance",
	Long: `parts-engine answers parts-lookup queries by fanning out over a tenant's
configured catalog stores: keyword search on the relational catalog, semantic
search on the vector index, and relationship search on the parts graph.
Results merge into one ranked list with per-result confidence; thin internal
results escalate to supplier web search.

Search is the main subcommand. catalog seeds the relational catalog and
tenant administers per-tenant integration credentials, vehicle mappings,
and vehicle readiness.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		httputil.Warn = os.Stderr
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./parts-engine.yaml or ~/.config/parts-engine/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("parts-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "parts-engine"))
		}
	}

	viper.SetEnvPrefix("PARTS_ENGINE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
