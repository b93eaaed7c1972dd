package graph

import "fmt"

// Hub is an ordered mapping from port name to port, tagged with an
// orientation. Insertion order over ports is preserved and is the canonical
// iteration order.
type Hub struct {
	ID          string
	Kind        HubKind
	parentBlock Block
	order       []string
	ports       map[string]*Port
	editable    bool
}

func newHub(kind HubKind, parentBlock Block) *Hub {
	return &Hub{
		ID:          randomIdentifier(DefaultIDLength),
		Kind:        kind,
		parentBlock: parentBlock,
		ports:       make(map[string]*Port),
		editable:    true,
	}
}

// ParentBlock returns the block that owns this hub.
func (h *Hub) ParentBlock() Block { return h.parentBlock }

// SetEditable freezes or unfreezes the hub against further addPort/deletePort
// calls.
func (h *Hub) SetEditable(editable bool) { h.editable = editable }

// Editable reports whether the hub currently accepts structural mutation.
func (h *Hub) Editable() bool { return h.editable }

// PortNames returns the ports' names in insertion order.
func (h *Hub) PortNames() []string {
	out := make([]string, len(h.order))
	copy(out, h.order)
	return out
}

// Ports returns the hub's ports in insertion order.
func (h *Hub) Ports() []*Port {
	out := make([]*Port, 0, len(h.order))
	for _, name := range h.order {
		out = append(out, h.ports[name])
	}
	return out
}

// GetPort looks up a port by name.
func (h *Hub) GetPort(name string) (*Port, bool) {
	p, ok := h.ports[name]
	return p, ok
}

// nextDefaultName generates "var{1+numPorts}", skipping any name already in
// use.
func (h *Hub) nextDefaultName() string {
	for i := len(h.ports) + 1; ; i++ {
		candidate := fmt.Sprintf("var%d", i)
		if _, exists := h.ports[candidate]; !exists {
			return candidate
		}
	}
}

// addPort creates a new port, optionally under an explicit name, optionally
// wiring it to an existing connection using the hub's orientation (the
// connection becomes the port's "to" side for an input hub, "from" side for
// an output hub). It returns the final assigned name.
func (h *Hub) addPort(name string, wire *Connection) (string, *Port, error) {
	if !h.editable {
		return "", nil, ErrHubNotEditable
	}

	if name == "" {
		name = h.nextDefaultName()
	} else if _, exists := h.ports[name]; exists {
		return "", nil, fmt.Errorf("%w: %q", ErrDuplicatePortName, name)
	}

	p := newPort(randomIdentifier(DefaultIDLength), name, h)
	h.ports[name] = p
	h.order = append(h.order, name)

	if wire != nil {
		switch h.Kind {
		case HubInput:
			wire.toPort = p
		case HubOutput:
			wire.fromPort = p
		}
		p.addConnection(wire)
	}

	return name, p, nil
}

// deletePort removes all connections from the named port, then drops it.
func (h *Hub) deletePort(name string) error {
	p, ok := h.ports[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPortName, name)
	}

	for _, c := range p.Connections() {
		c.remove()
	}

	delete(h.ports, name)
	for i, n := range h.order {
		if n == name {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}

	return nil
}

// renamePort preserves the port object's identity while changing the key it
// is indexed under.
func (h *Hub) renamePort(oldName, newName string) error {
	if _, exists := h.ports[newName]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicatePortName, newName)
	}
	p, ok := h.ports[oldName]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPortName, oldName)
	}

	p.name = newName
	delete(h.ports, oldName)
	h.ports[newName] = p
	for i, n := range h.order {
		if n == oldName {
			h.order[i] = newName
			break
		}
	}

	return nil
}

// clearAllPorts removes every port currently in the hub.
func (h *Hub) clearAllPorts() {
	for _, name := range h.PortNames() {
		_ = h.deletePort(name)
	}
}

// getConnections returns the union of every port's connection set.
func (h *Hub) getConnections() []*Connection {
	seen := make(map[string]*Connection)
	for _, p := range h.ports {
		for _, c := range p.connections {
			seen[c.ID] = c
		}
	}

	out := make([]*Connection, 0, len(seen))
	for _, c := range seen {
		out = append(out, c)
	}
	return out
}

// isEmpty reports whether no port in the hub holds any connection.
func (h *Hub) isEmpty() bool {
	for _, p := range h.ports {
		if len(p.connections) > 0 {
			return false
		}
	}
	return true
}
