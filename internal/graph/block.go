package graph

import (
	"context"
	"fmt"
	"log/slog"
)

// Block is a node of the graph: two hubs (inputs, outputs), identity,
// metadata, and a run() contract. Specializations (Variable, Code, LLM)
// embed *BaseBlock and override Run and Type.
type Block interface {
	ID() string
	Name() string
	Description() string
	Inputs() *Hub
	Outputs() *Hub
	Graph() *Graph
	ChangesAffectReliability() bool
	Type() string
	Run(ctx context.Context) error

	IncomingNeighbors() []Block
	OutgoingNeighbors() []Block
	AllNeighbors() []Block
	MarkOutputsUnreliable(visited map[string]bool)
	PushValues()
	ConnectVariableToVariable(other Block, fromName, toName string, createIfMissing bool) (*Connection, error)
}

// BaseBlock is the common implementation shared by every block
// specialization. Its two hubs are exclusively owned by the block; the
// back-pointer to the graph is a weak relation used for lookup/context only
// — the graph is the sole owner of the block.
type BaseBlock struct {
	id          string
	name        string
	description string
	inputs      *Hub
	outputs     *Hub
	graph       *Graph
	self        Block

	// ChangesAffectReliability records the block's declared stance, but the
	// engine's propagation path (Port.setValue) does not consult it — see
	// the Open Question resolution in DESIGN.md. It remains queryable for
	// callers that want to branch on it.
	changesAffectReliability bool
}

// NewBaseBlock constructs a block with a stable id (random when id is
// empty) and empty input/output hubs. The hubs' parentBlock back-reference
// is left unbound until BindSelf is called with the outermost specialized
// value (Go has no virtual dispatch through embedding, so specializations
// must register themselves explicitly once construction completes).
func NewBaseBlock(id, name, description string) *BaseBlock {
	if id == "" {
		id = randomIdentifier(DefaultIDLength)
	}

	b := &BaseBlock{
		id:          id,
		name:        name,
		description: description,
	}
	b.inputs = newHub(HubInput, nil)
	b.outputs = newHub(HubOutput, nil)

	return b
}

// BindSelf records self as the block value that owns this BaseBlock's hubs,
// so neighbor queries and run() calls made while walking the graph dispatch
// to the specialization's overridden methods rather than BaseBlock's own.
func (b *BaseBlock) BindSelf(self Block) {
	b.self = self
	b.inputs.parentBlock = self
	b.outputs.parentBlock = self
}

// NewBlock constructs a plain BaseBlock (wire type "BaseBlock") bound to
// itself.
func NewBlock(id, name, description string) Block {
	b := NewBaseBlock(id, name, description)
	b.BindSelf(b)
	return b
}

func (b *BaseBlock) ID() string          { return b.id }
func (b *BaseBlock) Name() string        { return b.name }
func (b *BaseBlock) Description() string { return b.description }
func (b *BaseBlock) Inputs() *Hub        { return b.inputs }
func (b *BaseBlock) Outputs() *Hub       { return b.outputs }
func (b *BaseBlock) Graph() *Graph       { return b.graph }
func (b *BaseBlock) ChangesAffectReliability() bool {
	return b.changesAffectReliability
}

// Type is the wire tag dispatched on during (de)serialization.
func (b *BaseBlock) Type() string { return "BaseBlock" }

func (b *BaseBlock) setGraph(g *Graph) { b.graph = g }

func (b *BaseBlock) setName(n string) { b.name = n }

// AddInputPort delegates to the input hub.
func (b *BaseBlock) AddInputPort(name string) (string, *Port, error) {
	return b.inputs.addPort(name, nil)
}

// AddOutputPort delegates to the output hub.
func (b *BaseBlock) AddOutputPort(name string) (string, *Port, error) {
	return b.outputs.addPort(name, nil)
}

// IncomingNeighbors returns the set of blocks with a connection into one of
// this block's input ports.
func (b *BaseBlock) IncomingNeighbors() []Block {
	seen := make(map[string]Block)
	for _, c := range b.inputs.getConnections() {
		if c.fromPort != nil && c.fromPort.parentHub != nil && c.fromPort.parentHub.parentBlock != nil {
			nb := c.fromPort.parentHub.parentBlock
			seen[nb.ID()] = nb
		}
	}
	return mapValues(seen)
}

// OutgoingNeighbors returns the set of blocks reached by a connection out of
// one of this block's output ports.
func (b *BaseBlock) OutgoingNeighbors() []Block {
	seen := make(map[string]Block)
	for _, c := range b.outputs.getConnections() {
		if c.toPort != nil && c.toPort.parentHub != nil && c.toPort.parentHub.parentBlock != nil {
			nb := c.toPort.parentHub.parentBlock
			seen[nb.ID()] = nb
		}
	}
	return mapValues(seen)
}

// AllNeighbors returns the union of incoming and outgoing neighbors.
func (b *BaseBlock) AllNeighbors() []Block {
	seen := make(map[string]Block)
	for _, nb := range b.IncomingNeighbors() {
		seen[nb.ID()] = nb
	}
	for _, nb := range b.OutgoingNeighbors() {
		seen[nb.ID()] = nb
	}
	return mapValues(seen)
}

// MarkOutputsUnreliable marks every output port's cell unreliable, then
// recurses into every downstream block reachable via outgoing connections.
// visited guards against revisiting a block reachable by more than one path.
func (b *BaseBlock) MarkOutputsUnreliable(visited map[string]bool) {
	if visited[b.id] {
		return
	}
	visited[b.id] = true

	for _, p := range b.outputs.Ports() {
		p.cell.MarkUnreliable()
	}

	for _, nb := range b.OutgoingNeighbors() {
		nb.MarkOutputsUnreliable(visited)
	}
}

// PushValues copies every output port's current value to the downstream
// input ports of each outgoing connection.
func (b *BaseBlock) PushValues() {
	for _, c := range b.outputs.getConnections() {
		if c.fromPort != nil && c.toPort != nil {
			c.toPort.setValue(c.fromPort.Value(), false)
		}
	}
}

// Run is the base no-op contract: it logs a trace of the block's current
// inputs and outputs. Specializations override this to do real work.
func (b *BaseBlock) Run(_ context.Context) error {
	slog.Debug("block run", "block", b.qualname(), "inputs", portTrace(b.inputs), "outputs", portTrace(b.outputs))
	return nil
}

func (b *BaseBlock) qualname() string {
	typ := b.Type()
	if b.self != nil {
		typ = b.self.Type()
	}
	return fmt.Sprintf("%s(%s)", typ, b.name)
}

func portTrace(h *Hub) map[string]any {
	out := make(map[string]any, len(h.order))
	for _, p := range h.Ports() {
		out[p.Name()] = p.Value()
	}
	return out
}

// ConnectVariableToVariable resolves (creating if requested) the named
// output port on the receiver and the named input port on other, then
// creates and returns the connection between them.
func (b *BaseBlock) ConnectVariableToVariable(other Block, fromName, toName string, createIfMissing bool) (*Connection, error) {
	fromPort, ok := b.outputs.GetPort(fromName)
	if !ok {
		if !createIfMissing {
			return nil, fmt.Errorf("%w: %q on %s", ErrUnknownPortName, fromName, b.qualname())
		}
		var err error
		_, fromPort, err = b.outputs.addPort(fromName, nil)
		if err != nil {
			return nil, err
		}
	}

	toHub := other.Inputs()
	toPort, ok := toHub.GetPort(toName)
	if !ok {
		if !createIfMissing {
			return nil, fmt.Errorf("%w: %q on %s", ErrUnknownPortName, toName, other.Name())
		}
		var err error
		_, toPort, err = toHub.addPort(toName, nil)
		if err != nil {
			return nil, err
		}
	}

	return newConnection(randomIdentifier(DefaultIDLength), fromPort, toPort), nil
}

func mapValues(m map[string]Block) []Block {
	out := make([]Block, 0, len(m))
	for _, b := range m {
		out = append(out, b)
	}
	return out
}
