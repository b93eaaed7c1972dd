// Package llmprovider adapts concrete LLM backends to the single
// prompt-in/text-out shape LLM blocks consume (see internal/graph's
// LLMProvider interface).
package llmprovider

import "context"

// Provider is the common shape every backend in this package implements. It
// mirrors internal/graph.LLMProvider exactly so a *Anthropic (or any future
// backend) can be handed to graph.SetLLMProvider without an adapter.
type Provider interface {
	Chat(ctx context.Context, model string, prompt string) (string, error)
}
