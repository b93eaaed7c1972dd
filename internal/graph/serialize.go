package graph

// GraphView is the serialized form of a graph (spec §4.8): metadata plus
// maps of blocks and connections keyed by id.
type GraphView struct {
	Metadata    GraphMetadataView        `json:"metadata"`
	Blocks      map[string]BlockView     `json:"blocks"`
	Connections map[string]ConnectionView `json:"connections"`
}

// GraphMetadataView is the {id, name} pair carried at the top of a
// serialized graph.
type GraphMetadataView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BlockView is the serialized form of one block.
type BlockView struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Type        string  `json:"type"`
	Inputs      HubView `json:"inputs"`
	Outputs     HubView `json:"outputs"`
}

// HubView is the serialized form of one hub.
type HubView struct {
	ID    string             `json:"id"`
	Kind  string             `json:"kind"`
	Ports map[string]PortView `json:"ports"`
}

// PortView is the serialized form of one port: its current value and the
// ids of the connections attached to it.
type PortView struct {
	ID          string   `json:"id"`
	Value       any      `json:"value"`
	Connections []string `json:"connections"`
}

// ConnectionView is the serialized form of one connection. Either endpoint
// may be null if unresolved.
type ConnectionView struct {
	ID       string  `json:"id"`
	FromPort *string `json:"from_port"`
	ToPort   *string `json:"to_port"`
}

// Serialize walks the graph and produces its wire view.
func (g *Graph) Serialize() GraphView {
	view := GraphView{
		Metadata:    GraphMetadataView{ID: g.ID, Name: g.Name},
		Blocks:      make(map[string]BlockView, len(g.blocksByName)),
		Connections: make(map[string]ConnectionView, len(g.connections)),
	}

	for _, b := range g.blocksByName {
		view.Blocks[b.ID()] = serializeBlock(b)
	}
	for _, c := range g.connections {
		view.Connections[c.ID] = serializeConnection(c)
	}

	return view
}

func serializeBlock(b Block) BlockView {
	return BlockView{
		ID:          b.ID(),
		Name:        b.Name(),
		Description: b.Description(),
		Type:        b.Type(),
		Inputs:      serializeHub(b.Inputs()),
		Outputs:     serializeHub(b.Outputs()),
	}
}

func serializeHub(h *Hub) HubView {
	view := HubView{ID: h.ID, Kind: h.Kind.String(), Ports: make(map[string]PortView, len(h.order))}
	for _, p := range h.Ports() {
		connIDs := make([]string, 0, len(p.connections))
		for id := range p.connections {
			connIDs = append(connIDs, id)
		}
		view.Ports[p.Name()] = PortView{ID: p.ID, Value: p.Value(), Connections: connIDs}
	}
	return view
}

func serializeConnection(c *Connection) ConnectionView {
	view := ConnectionView{ID: c.ID}
	if c.fromPort != nil {
		id := c.fromPort.ID
		view.FromPort = &id
	}
	if c.toPort != nil {
		id := c.toPort.ID
		view.ToPort = &id
	}
	return view
}

// Deserialize rebuilds a graph from its wire view, running the mandatory
// two passes: first every connection object is constructed with unresolved
// endpoints, then every block (and, as each port is built, it is linked to
// its connection objects by id). A port referencing an unknown connection
// id fails DanglingConnection.
func Deserialize(view GraphView) (*Graph, error) {
	g := NewGraph(view.Metadata.ID, view.Metadata.Name)

	connections := make(map[string]*Connection, len(view.Connections))
	for id := range view.Connections {
		c := &Connection{ID: id}
		connections[id] = c
		g.connections[id] = c
	}

	portByID := make(map[string]*Port)

	for _, bv := range view.Blocks {
		factory, ok := GetBlockFactory(bv.Type)
		if !ok {
			factory, _ = GetBlockFactory("BaseBlock")
		}
		b := factory(bv.ID, bv.Name, bv.Description)
		base := blockBase(b)

		if err := deserializeHub(base.inputs, bv.Inputs, connections, portByID); err != nil {
			return nil, err
		}
		if err := deserializeHub(base.outputs, bv.Outputs, connections, portByID); err != nil {
			return nil, err
		}

		g.blocksByName[bv.Name] = b
		base.setGraph(g)
	}

	for id, c := range connections {
		cv := view.Connections[id]
		if cv.FromPort != nil {
			if p, ok := portByID[*cv.FromPort]; ok {
				c.fromPort = p
			}
		}
		if cv.ToPort != nil {
			if p, ok := portByID[*cv.ToPort]; ok {
				c.toPort = p
			}
		}
	}

	return g, nil
}

// deserializeHub rebuilds a hub's ports from its view, clearing the default
// ports a specialization constructor may have pre-seeded (serialized state
// is authoritative), and wiring each port's recorded connections by id.
func deserializeHub(h *Hub, view HubView, connections map[string]*Connection, portByID map[string]*Port) error {
	h.clearAllPorts()
	h.ID = view.ID

	for name, pv := range view.Ports {
		_, p, err := h.addPort(name, nil)
		if err != nil {
			return err
		}
		p.ID = pv.ID
		if pv.Value != nil {
			p.cell.Set(pv.Value)
		}
		portByID[pv.ID] = p

		for _, connID := range pv.Connections {
			c, ok := connections[connID]
			if !ok {
				return ErrDanglingConnection
			}
			p.connections[connID] = c
			switch h.Kind {
			case HubInput:
				c.toPort = p
			case HubOutput:
				c.fromPort = p
			}
		}
	}

	return nil
}

// blockBase extracts the *BaseBlock embedded in any concrete Block value so
// the deserializer can reach unexported fields (inputs/outputs/graph)
// uniformly regardless of specialization.
func blockBase(b Block) *BaseBlock {
	if withBase, ok := b.(interface{ base() *BaseBlock }); ok {
		return withBase.base()
	}
	if bb, ok := b.(*BaseBlock); ok {
		return bb
	}
	panic("graph: block value does not embed *BaseBlock")
}

func (b *BaseBlock) base() *BaseBlock { return b }
