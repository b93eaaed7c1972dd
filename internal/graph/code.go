package graph

import (
	"context"
	"log/slog"
)

// Code exposes two output ports: "source" (the text the user edits) and
// "result" (the value the sandbox computes from it). The original system
// conflated both into a single "code" port; this is the redesign recorded
// as an Open Question resolution in DESIGN.md.
type Code struct {
	*BaseBlock
}

// NewCode constructs a Code block whose source is seeded with a default
// greeting script, matching the original system's default, and whose result
// starts empty.
func NewCode(id, name, description string) *Code {
	c := &Code{BaseBlock: NewBaseBlock(id, name, description)}
	c.BindSelf(c)
	c.changesAffectReliability = true

	if _, _, err := c.outputs.addPort("source", nil); err == nil {
		if p, ok := c.outputs.GetPort("source"); ok {
			p.cell.Set(`console.log("Hello World!")`)
		}
	}
	if _, _, err := c.outputs.addPort("result", nil); err != nil {
		// result starts unavailable; nothing to seed.
		_ = err
	}

	return c
}

func (c *Code) Type() string { return "Code" }

// Source returns the block's current source text.
func (c *Code) Source() string {
	p, ok := c.outputs.GetPort("source")
	if !ok {
		return ""
	}
	s, _ := p.Value().(string)
	return s
}

// SetSource edits the source text and, per the conservative reliability
// rule, marks downstream outputs unreliable.
func (c *Code) SetSource(source string) {
	p, ok := c.outputs.GetPort("source")
	if !ok {
		_, p, _ = c.outputs.addPort("source", nil)
	}
	p.setValue(source, true)

	c.MarkOutputsUnreliable(make(map[string]bool))
	p.cell.MarkReliable()
}

// Run submits the current source, together with the block's live inputs and
// the single requested output name "result", to the graph's execution
// environment, then writes the returned value back and pushes it
// downstream. A sandbox error is recovered as ErrExecutionFailed: the
// result output is marked unreliable but the graph run continues.
func (c *Code) Run(ctx context.Context) error {
	env := c.execEnv()
	if env == nil {
		slog.Warn("code block has no execution environment", "block", c.qualname())
		return nil
	}

	inputBindings := make(map[string]any, len(c.inputs.order))
	for _, p := range c.inputs.Ports() {
		inputBindings[p.Name()] = p.Value()
	}

	out, err := env.Execute(ctx, c.Source(), inputBindings, []string{"result"})
	if err != nil {
		slog.Error("code execution failed", "block", c.qualname(), "error", err)
		if p, ok := c.outputs.GetPort("result"); ok {
			p.cell.MarkUnreliable()
		}
		return newExecutionFailedError(c.qualname(), err)
	}

	if p, ok := c.outputs.GetPort("result"); ok {
		p.setValue(out["result"], true)
	}

	c.PushValues()
	return nil
}

func (c *Code) execEnv() ExecutionEnv {
	if c.graph == nil {
		return nil
	}
	return c.graph.ExecEnv()
}
