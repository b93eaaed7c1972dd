package graph

import "context"

// ExecutionEnv is the adapter boundary consumed by Code blocks (spec §4.9).
// The engine treats it as a single opaque blocking call: format a program
// that binds inputs, run the user source, return the requested outputs.
//
// Cancellation is best-effort via ctx; implementations that cannot abort an
// in-flight run early should at least stop waiting on it once ctx is done.
type ExecutionEnv interface {
	Execute(ctx context.Context, source string, inputs map[string]any, outputNames []string) (map[string]any, error)
}

// LLMProvider is the opaque prompt-in/text-out collaborator consumed by LLM
// blocks (spec §4.6b).
type LLMProvider interface {
	Chat(ctx context.Context, model string, prompt string) (string, error)
}
