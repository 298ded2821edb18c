// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "parts-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// StructuredConfig holds settings for the keyword search adapter.
type StructuredConfig struct {
	// DBPath is the SQLite catalog database path.
	DBPath string `json:"db_path" yaml:"db_path"`

	// MaxResults caps the candidates returned after scoring (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`

	// MaxRows caps the raw rows fetched before scoring (default 100).
	MaxRows int `json:"max_rows" yaml:"max_rows"`
}

// SemanticConfig holds settings for the vector search adapter.
type SemanticConfig struct {
	HTTPConfig `yaml:",inline"`

	// EmbeddingHost is the OpenAI-compatible embeddings endpoint.
	EmbeddingHost string `json:"embedding_host" yaml:"embedding_host"`

	// EmbeddingModel is the dense embedding model identifier.
	EmbeddingModel string `json:"embedding_model" yaml:"embedding_model"`

	// TopK is the number of vector matches requested (default 30).
	TopK int `json:"top_k" yaml:"top_k"`
}

// GraphConfig holds settings for the graph search adapter.
type GraphConfig struct {
	HTTPConfig `yaml:",inline"`

	// Database is the graph database name (default "neo4j").
	Database string `json:"database" yaml:"database"`
}

// WebConfig holds settings for the web search adapter.
type WebConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxSnippets is how many organic results are offered for
	// extraction (default 8).
	MaxSnippets int `json:"max_snippets" yaml:"max_snippets"`
}

// LLMConfig holds settings for stages that call a language model.
type LLMConfig struct {
	// Host is the OpenAI-compatible chat completions endpoint.
	Host string `json:"host" yaml:"host"`

	// Model is the chat model identifier.
	Model string `json:"model" yaml:"model"`

	// APIKey authenticates against the endpoint.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
}

// QueryConfig holds settings for the query understanding stage.
type QueryConfig struct {
	// Timeout bounds the model call before the deterministic
	// fallback wins the race (default 2s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// RerankConfig holds settings for the smart reranker.
type RerankConfig struct {
	// Enabled turns model-assisted reranking on when a model client
	// is configured.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// MaxCandidates is how many top results are sent to the model
	// (default 30).
	MaxCandidates int `json:"max_candidates" yaml:"max_candidates"`
}

// PipelineConfig holds orchestration policy knobs.
type PipelineConfig struct {
	// WebEscalationThreshold triggers web search when fewer internal
	// results than this are found (default 3).
	WebEscalationThreshold int `json:"web_escalation_threshold" yaml:"web_escalation_threshold"`

	// MaxPartIntents bounds multi-part fan-out (default 5).
	MaxPartIntents int `json:"max_part_intents" yaml:"max_part_intents"`
}

// EngineConfig groups all stage configurations for the search engine.
type EngineConfig struct {
	Structured StructuredConfig `json:"structured" yaml:"structured"`
	Semantic   SemanticConfig   `json:"semantic" yaml:"semantic"`
	Graph      GraphConfig      `json:"graph" yaml:"graph"`
	Web        WebConfig        `json:"web" yaml:"web"`
	LLM        LLMConfig        `json:"llm" yaml:"llm"`
	Query      QueryConfig      `json:"query" yaml:"query"`
	Rerank     RerankConfig     `json:"rerank" yaml:"rerank"`
	Pipeline   PipelineConfig   `json:"pipeline" yaml:"pipeline"`
}
