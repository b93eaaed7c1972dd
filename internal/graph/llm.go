package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// LLM calls a configured chat-completion provider from a resolved prompt
// and writes the text response to its "response" output. It follows the
// same read-inputs/write-outputs/push-values shape as Code, but delegates
// to an LLMProvider instead of an ExecutionEnv.
type LLM struct {
	*BaseBlock

	Model          string
	PromptTemplate string
}

// NewLLM constructs an LLM block with empty input/output ports for prompt
// resolution: inputs "prompt", "text", "context"; output "response".
func NewLLM(id, name, description string) *LLM {
	l := &LLM{BaseBlock: NewBaseBlock(id, name, description)}
	l.BindSelf(l)
	l.changesAffectReliability = true

	_, _, _ = l.inputs.addPort("prompt", nil)
	_, _, _ = l.inputs.addPort("text", nil)
	_, _, _ = l.inputs.addPort("context", nil)
	_, _, _ = l.outputs.addPort("response", nil)

	return l
}

func (l *LLM) Type() string { return "LLMBlock" }

func (l *LLM) resolvePrompt() string {
	for _, name := range []string{"prompt", "text"} {
		if p, ok := l.inputs.GetPort(name); ok {
			if s, ok := p.Value().(string); ok && s != "" {
				return s
			}
		}
	}
	return l.PromptTemplate
}

// Run resolves the prompt, appends any supplied context, calls the
// provider, and writes the text into "response". A provider error is
// recovered as ErrExecutionFailed.
func (l *LLM) Run(ctx context.Context) error {
	provider := l.provider()
	if provider == nil {
		slog.Warn("llm block has no provider configured", "block", l.qualname())
		return nil
	}

	prompt := l.resolvePrompt()
	if cp, ok := l.inputs.GetPort("context"); ok {
		if ctxText, ok := cp.Value().(string); ok && ctxText != "" {
			prompt = strings.TrimSpace(fmt.Sprintf("%s\n\n%s", prompt, ctxText))
		}
	}

	response, err := provider.Chat(ctx, l.Model, prompt)
	if err != nil {
		slog.Error("llm call failed", "block", l.qualname(), "error", err)
		if p, ok := l.outputs.GetPort("response"); ok {
			p.cell.MarkUnreliable()
		}
		return newExecutionFailedError(l.qualname(), err)
	}

	if p, ok := l.outputs.GetPort("response"); ok {
		p.setValue(response, true)
	}

	l.PushValues()
	return nil
}

func (l *LLM) provider() LLMProvider {
	if l.graph == nil {
		return nil
	}
	return l.graph.LLMProvider()
}
