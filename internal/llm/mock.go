// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package llm

import (
	"context"
	"encoding/json"
	"time"
)

// Scripted is a Client for tests: it replies with a fixed JSON body, an
// error, or a per-call function, after an optional delay.
type Scripted struct {
	// Reply is the JSON body unmarshalled into out when Fn is nil.
	Reply string

	// Err is returned instead of a reply when set.
	Err error

	// Delay is slept (context-aware) before answering.
	Delay time.Duration

	// Fn, when set, overrides Reply/Err entirely.
	Fn func(ctx context.Context, prompt string, out any) error

	// Prompts records every prompt received.
	Prompts []string
}

func (s *Scripted) GenerateStructured(ctx context.Context, prompt string, out any) error {
	s.Prompts = append(s.Prompts, prompt)
	if s.Delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.Delay):
		}
	}
	if s.Fn != nil {
		return s.Fn(ctx, prompt, out)
	}
	if s.Err != nil {
		return s.Err
	}
	return json.Unmarshal([]byte(s.Reply), out)
}
