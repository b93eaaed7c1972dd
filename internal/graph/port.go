package graph

import "reflect"

// HubKind tags the orientation of a Hub.
type HubKind int

const (
	HubInput HubKind = iota + 1
	HubOutput
	HubInternal
)

func (k HubKind) String() string {
	switch k {
	case HubInput:
		return "INPUT"
	case HubOutput:
		return "OUTPUT"
	case HubInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

// Port is a named slot on a block. It owns one value cell and a set of
// connections; its orientation (input vs. output) comes from its parent
// hub's kind, never from the port itself.
type Port struct {
	ID          string
	name        string
	cell        Value
	parentHub   *Hub
	connections map[string]*Connection
}

func newPort(id, name string, parentHub *Hub) *Port {
	return &Port{
		ID:          id,
		name:        name,
		parentHub:   parentHub,
		connections: make(map[string]*Connection),
	}
}

// Name returns the port's name as assigned by its hub.
func (p *Port) Name() string { return p.name }

// ParentHub returns the hub that owns this port.
func (p *Port) ParentHub() *Hub { return p.parentHub }

// IsInput reports whether this port belongs to an input hub.
func (p *Port) IsInput() bool {
	return p.parentHub != nil && p.parentHub.Kind == HubInput
}

// IsOutput reports whether this port belongs to an output hub.
func (p *Port) IsOutput() bool {
	return p.parentHub != nil && p.parentHub.Kind == HubOutput
}

// IsAvailable reports whether the port's cell has ever held a value.
func (p *Port) IsAvailable() bool { return p.cell.IsAvailable() }

// IsReliable reports whether the port's cell reflects the latest upstream
// computation.
func (p *Port) IsReliable() bool { return p.cell.IsReliable() }

// Value returns the port's current opaque value.
func (p *Port) Value() any { return p.cell.Get() }

// Connections returns the set of connections currently attached to this
// port, in no particular order.
func (p *Port) Connections() []*Connection {
	out := make([]*Connection, 0, len(p.connections))
	for _, c := range p.connections {
		out = append(out, c)
	}
	return out
}

// addConnection adds c to the connection set; a new inbound edge on an
// input port invalidates any prior computed value.
func (p *Port) addConnection(c *Connection) {
	p.connections[c.ID] = c
	if p.IsInput() {
		p.cell.MarkUnreliable()
	}
}

// removeConnection symmetrically removes c and, on an input port, marks the
// cell unreliable.
func (p *Port) removeConnection(c *Connection) {
	delete(p.connections, c.ID)
	if p.IsInput() {
		p.cell.MarkUnreliable()
	}
}

// setValue implements the propagation protocol of spec §4.2. A no-op write
// (value unchanged by equality) is skipped entirely so propagation does not
// fire on idempotent refreshes.
func (p *Port) setValue(v any, propagate bool) {
	if p.cell.available && reflect.DeepEqual(p.cell.value, v) {
		return
	}

	p.cell.Set(v)

	if !propagate {
		return
	}

	switch {
	case p.IsInput():
		if p.parentHub != nil && p.parentHub.parentBlock != nil {
			p.parentHub.parentBlock.MarkOutputsUnreliable(make(map[string]bool))
		}
	case p.IsOutput():
		for _, c := range p.connections {
			if c.toPort != nil {
				c.toPort.setValue(v, true)
			}
		}
	}
}

// SetValue is the exported entry point to setValue, used by blocks writing
// their own outputs and by callers driving a graph from the outside.
func (p *Port) SetValue(v any, propagate bool) {
	p.setValue(v, propagate)
}
