package ai

import "context"

// LLMProvider sends a system and user message to an LLM and returns the raw
// text response. Used by LLMAdvisor and LLMAlertWriter.
type LLMProvider interface {
	Complete(ctx context.Context, system, user string) (string, error)
}
