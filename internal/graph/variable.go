package graph

import (
	"context"
	"log/slog"
)

// Variable seeds its output hub with one or more named values. Its
// changesAffectReliability flag is false, but the propagation protocol does
// not consult it: editing a value through EditVariableValue marks downstream
// outputs unreliable like any other output change — see the Open Question
// resolution in DESIGN.md.
type Variable struct {
	*BaseBlock
}

// NewVariable constructs a Variable block with a single default output
// "var1" holding 0, matching the original system's default seed.
func NewVariable(id, name, description string) *Variable {
	v := &Variable{BaseBlock: NewBaseBlock(id, name, description)}
	v.BindSelf(v)
	v.changesAffectReliability = false

	if _, _, err := v.outputs.addPort("var1", nil); err == nil {
		if p, ok := v.outputs.GetPort("var1"); ok {
			p.cell.Set(0)
		}
	}

	return v
}

func (v *Variable) Type() string { return "Variable" }

// Variables returns the current name→value mapping held by the output hub.
func (v *Variable) Variables() map[string]any {
	out := make(map[string]any, len(v.outputs.order))
	for _, p := range v.outputs.Ports() {
		out[p.Name()] = p.Value()
	}
	return out
}

// CreateVariable adds a new named output holding value. An empty name
// auto-generates "var{n}".
func (v *Variable) CreateVariable(name string, value any) (string, error) {
	finalName, p, err := v.outputs.addPort(name, nil)
	if err != nil {
		return "", err
	}
	p.cell.Set(value)
	return finalName, nil
}

// RenameVariable renames an output port while preserving its value.
func (v *Variable) RenameVariable(oldName, newName string) error {
	return v.outputs.renamePort(oldName, newName)
}

// DeleteVariable removes the named output port and its connections.
func (v *Variable) DeleteVariable(name string) error {
	return v.outputs.deletePort(name)
}

// GetVariable returns the current value of the named output.
func (v *Variable) GetVariable(name string) (any, error) {
	p, ok := v.outputs.GetPort(name)
	if !ok {
		return nil, ErrUnknownPortName
	}
	return p.Value(), nil
}

// ClearAllVariables removes every output port.
func (v *Variable) ClearAllVariables() {
	v.outputs.clearAllPorts()
}

// EditVariableValue writes a new value to an existing output and propagates
// it downstream (adopting the conservative reliability rule from the Open
// Question resolution: any edit, not only initial seeding, invalidates
// downstream outputs).
func (v *Variable) EditVariableValue(name string, value any) error {
	p, ok := v.outputs.GetPort(name)
	if !ok {
		return ErrUnknownPortName
	}
	p.setValue(value, true)
	return nil
}

// Run logs the variable's current values; Variable has no computation of
// its own beyond what EditVariableValue already pushed.
func (v *Variable) Run(ctx context.Context) error {
	slog.Debug("variable run", "block", v.qualname(), "variables", v.Variables())
	return nil
}
