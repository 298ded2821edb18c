// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package llm wraps an OpenAI-compatible chat API behind a single
// structured-output capability. Query understanding, web snippet
// extraction, and reranking all consume the same Client interface and
// treat it as a pure function that may be slow, absent, or wrong.
package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/meshintel/parts-engine/pkg/types"
)

// Client generates structured output from a prompt. GenerateStructured
// unmarshals the model's JSON reply into out. Implementations must be
// safe for concurrent use.
type Client interface {
	GenerateStructured(ctx context.Context, prompt string, out any) error
}

// OpenAIClient implements Client over langchaingo's OpenAI-compatible
// chat API.
type OpenAIClient struct {
	model llms.Model
}

// NewOpenAIClient builds a client from LLM credentials. Host may point
// at any OpenAI-compatible endpoint; an empty API key is replaced with
// "none" for local services that skip authentication.
func NewOpenAIClient(cfg types.LLMConfig) (*OpenAIClient, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm model is required")
	}
	token := cfg.APIKey
	if token == "" {
		token = "none"
	}
	opts := []openai.Option{
		openai.WithToken(token),
		openai.WithModel(cfg.Model),
	}
	if cfg.Host != "" {
		opts = append(opts, openai.WithBaseURL(cfg.Host))
	}
	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating chat client: %w", err)
	}
	return &OpenAIClient{model: model}, nil
}

// GenerateStructured sends the prompt and parses the reply as JSON into
// out. Markdown fences and leading prose around the JSON body are
// tolerated; common model formatting slips are repaired before the
// parse fails.
func (c *OpenAIClient) GenerateStructured(ctx context.Context, prompt string, out any) error {
	reply, err := llms.GenerateFromSinglePrompt(ctx, c.model, prompt,
		llms.WithTemperature(0),
	)
	if err != nil {
		return fmt.Errorf("chat completion: %w", err)
	}

	body := ExtractJSON(reply)
	if body == "" {
		return fmt.Errorf("no JSON object in model reply")
	}
	if err := json.Unmarshal([]byte(body), out); err != nil {
		repaired := RepairJSON(body)
		if err2 := json.Unmarshal([]byte(repaired), out); err2 != nil {
			return fmt.Errorf("parsing model reply: %w", err)
		}
	}
	return nil
}
