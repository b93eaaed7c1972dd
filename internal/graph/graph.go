package graph

import (
	"context"
	"fmt"
)

// Graph owns a set of blocks and the connections between them. Each block
// name is unique within a graph; the graph is the sole owner of its blocks
// and connections (blocks hold only a weak back-reference to it).
type Graph struct {
	ID   string
	Name string

	blocksByName map[string]Block
	connections  map[string]*Connection

	execEnv     ExecutionEnv
	llmProvider LLMProvider
}

// NewGraph constructs an empty graph. An empty id is replaced with a fresh
// 32-character random identifier (spec §6).
func NewGraph(id, name string) *Graph {
	if id == "" {
		id = NewGraphID()
	}
	return &Graph{
		ID:           id,
		Name:         name,
		blocksByName: make(map[string]Block),
		connections:  make(map[string]*Connection),
	}
}

// SetExecEnv installs the execution environment used by Code blocks.
func (g *Graph) SetExecEnv(env ExecutionEnv) { g.execEnv = env }

// ExecEnv returns the graph's configured execution environment, or nil.
func (g *Graph) ExecEnv() ExecutionEnv { return g.execEnv }

// SetLLMProvider installs the chat-completion collaborator used by LLM
// blocks.
func (g *Graph) SetLLMProvider(p LLMProvider) { g.llmProvider = p }

// LLMProvider returns the graph's configured LLM collaborator, or nil.
func (g *Graph) LLMProvider() LLMProvider { return g.llmProvider }

// Blocks returns every block currently in the graph, in no particular
// order.
func (g *Graph) Blocks() []Block {
	out := make([]Block, 0, len(g.blocksByName))
	for _, b := range g.blocksByName {
		out = append(out, b)
	}
	return out
}

// Connections returns every connection currently recorded on the graph.
func (g *Graph) Connections() []*Connection {
	out := make([]*Connection, 0, len(g.connections))
	for _, c := range g.connections {
		out = append(out, c)
	}
	return out
}

// GetBlock looks up a block by name.
func (g *Graph) GetBlock(name string) (Block, bool) {
	b, ok := g.blocksByName[name]
	return b, ok
}

func (g *Graph) nextFreeBlockName() string {
	for i := 0; ; i++ {
		candidate := fmt.Sprintf("block_%d", i)
		if _, exists := g.blocksByName[candidate]; !exists {
			return candidate
		}
	}
}

type namer interface{ setName(string) }

// AddBlock adds b to the graph. A nil b auto-creates a plain BaseBlock
// under the first free "block_k" name. A non-nil b with an empty name is
// likewise assigned the first free "block_k" name; a non-nil b whose name
// already exists fails DuplicateBlockName.
func (g *Graph) AddBlock(b Block) (Block, error) {
	if b == nil {
		b = NewBlock("", "", "")
	}

	name := b.Name()
	if name == "" {
		name = g.nextFreeBlockName()
		if n, ok := b.(namer); ok {
			n.setName(name)
		}
	} else if _, exists := g.blocksByName[name]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateBlockName, name)
	}

	g.blocksByName[name] = b
	if bb, ok := b.(interface{ setGraph(*Graph) }); ok {
		bb.setGraph(g)
	}

	return b, nil
}

// RemoveBlock removes every connection incident to b, then drops it from
// the block map.
func (g *Graph) RemoveBlock(b Block) {
	for _, c := range append(b.Inputs().getConnections(), b.Outputs().getConnections()...) {
		c.remove()
		delete(g.connections, c.ID)
	}
	delete(g.blocksByName, b.Name())
}

// Resolve implements the "auto-retrieve" convenience contract (spec §9):
// blockOrName may be a Block, a string naming an existing block, or (when
// createIfMissing) a string naming a block to create.
func (g *Graph) Resolve(blockOrName any, createIfMissing bool) (Block, error) {
	switch v := blockOrName.(type) {
	case Block:
		return v, nil
	case string:
		if b, ok := g.blocksByName[v]; ok {
			return b, nil
		}
		if !createIfMissing {
			return nil, fmt.Errorf("%w: %q", ErrBlockNotFound, v)
		}
		return g.AddBlock(NewBlock("", v, ""))
	default:
		return nil, ErrInvalidEndpoint
	}
}

// ConnectBlocks resolves from/to (block reference or name) and optional
// port names, delegates to the block-level connect, and records the
// resulting connection on the graph.
func (g *Graph) ConnectBlocks(from, to any, fromVar, toVar string) (*Connection, error) {
	fromBlock, err := g.Resolve(from, false)
	if err != nil {
		return nil, err
	}
	toBlock, err := g.Resolve(to, false)
	if err != nil {
		return nil, err
	}

	c, err := fromBlock.ConnectVariableToVariable(toBlock, fromVar, toVar, true)
	if err != nil {
		return nil, err
	}

	g.connections[c.ID] = c
	return c, nil
}

// getAllBlocksFollowingBlock returns b and every block reachable from it by
// following outgoing connections (BFS, inclusive of b).
func (g *Graph) getAllBlocksFollowingBlock(start Block) map[string]Block {
	visited := map[string]Block{start.Name(): start}
	queue := []Block{start}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, nb := range cur.OutgoingNeighbors() {
			if _, seen := visited[nb.Name()]; !seen {
				visited[nb.Name()] = nb
				queue = append(queue, nb)
			}
		}
	}

	return visited
}

// GetAllBlocksFollowingBlock is the exported BFS query of the same name.
func (g *Graph) GetAllBlocksFollowingBlock(start Block) []Block {
	return mapValues(g.getAllBlocksFollowingBlock(start))
}

// GetAllBlocksConnectedToBlock returns b and every block reachable from it
// following connections in either direction (undirected BFS, inclusive).
func (g *Graph) GetAllBlocksConnectedToBlock(start Block) []Block {
	visited := map[string]Block{start.Name(): start}
	queue := []Block{start}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, nb := range cur.AllNeighbors() {
			if _, seen := visited[nb.Name()]; !seen {
				visited[nb.Name()] = nb
				queue = append(queue, nb)
			}
		}
	}

	return mapValues(visited)
}

// RunAllBlocks computes the evaluation order and invokes Run on each block
// sequentially in that order.
func (g *Graph) RunAllBlocks(ctx context.Context) error {
	return g.runFrom(ctx, nil)
}

// RunAllAfterBlock computes the evaluation order rooted at start and
// invokes Run on each block sequentially in that order.
func (g *Graph) RunAllAfterBlock(ctx context.Context, start Block) error {
	return g.runFrom(ctx, start)
}

func (g *Graph) runFrom(ctx context.Context, start Block) error {
	order, err := g.evaluationOrder(start)
	if err != nil {
		return err
	}

	for _, b := range order {
		if err := ctx.Err(); err != nil {
			b.MarkOutputsUnreliable(make(map[string]bool))
			return err
		}
		if err := b.Run(ctx); err != nil && !isRecoverable(err) {
			return err
		}
	}

	return nil
}

func isRecoverable(err error) bool {
	return isExecutionFailed(err)
}
