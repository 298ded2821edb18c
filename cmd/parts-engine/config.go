// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"time"

	"github.com/spf13/viper"

	"github.com/meshintel/parts-engine/pkg/types"
)

func init() {
	viper.SetDefault("structured.db_path", "data/catalog.db")
	viper.SetDefault("tenant.db_path", "data/tenants.db")

	viper.SetDefault("http.timeout", 15*time.Second)
	viper.SetDefault("http.user_agent", "parts-engine/"+version)

	viper.SetDefault("semantic.embedding_model", "text-embedding-3-small")
	viper.SetDefault("semantic.top_k", 30)
	viper.SetDefault("graph.database", "neo4j")
	viper.SetDefault("web.max_snippets", 8)

	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("query.timeout", 2*time.Second)
	viper.SetDefault("rerank.enabled", true)
	viper.SetDefault("rerank.max_candidates", 30)
	viper.SetDefault("pipeline.web_escalation_threshold", 3)
	viper.SetDefault("pipeline.max_part_intents", 5)
}

// engineConfig assembles the stage configuration from viper and loaded
// secrets. Call after cobra has initialized the config file.
func engineConfig() types.EngineConfig {
	httpCfg := types.HTTPConfig{
		Timeout:   viper.GetDuration("http.timeout"),
		UserAgent: viper.GetString("http.user_agent"),
	}
	return types.EngineConfig{
		Structured: types.StructuredConfig{
			DBPath:     viper.GetString("structured.db_path"),
			MaxResults: viper.GetInt("structured.max_results"),
			MaxRows:    viper.GetInt("structured.max_rows"),
		},
		Semantic: types.SemanticConfig{
			HTTPConfig:     httpCfg,
			EmbeddingHost:  viper.GetString("semantic.embedding_host"),
			EmbeddingModel: viper.GetString("semantic.embedding_model"),
			TopK:           viper.GetInt("semantic.top_k"),
		},
		Graph: types.GraphConfig{
			HTTPConfig: httpCfg,
			Database:   viper.GetString("graph.database"),
		},
		Web: types.WebConfig{
			HTTPConfig:  httpCfg,
			MaxSnippets: viper.GetInt("web.max_snippets"),
		},
		LLM: types.LLMConfig{
			Host:   viper.GetString("llm.host"),
			Model:  viper.GetString("llm.model"),
			APIKey: secretDefault("openai-api-key", viper.GetString("llm.api_key")),
		},
		Query: types.QueryConfig{
			Timeout: viper.GetDuration("query.timeout"),
		},
		Rerank: types.RerankConfig{
			Enabled:       viper.GetBool("rerank.enabled"),
			MaxCandidates: viper.GetInt("rerank.max_candidates"),
		},
		Pipeline: types.PipelineConfig{
			WebEscalationThreshold: viper.GetInt("pipeline.web_escalation_threshold"),
			MaxPartIntents:         viper.GetInt("pipeline.max_part_intents"),
		},
	}
}

func tenantDBPath() string {
	return viper.GetString("tenant.db_path")
}
