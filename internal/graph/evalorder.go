package graph

import (
	"errors"
	"fmt"
	"sort"

	"github.com/katalvlaran/lvlath/core"
	"github.com/katalvlaran/lvlath/dfs"
)

// evaluationOrder implements spec §4.7's level-based deterministic
// topological ordering, ported from the original system's
// getBlockEvaluationOrder. When start is non-nil the result is filtered to
// the subgraph reachable from start.
func (g *Graph) evaluationOrder(start Block) ([]Block, error) {
	level := make(map[string]int)
	blockByName := make(map[string]Block)
	visited := make(map[string]bool)

	var queue []Block
	for _, b := range g.blocksByName {
		blockByName[b.Name()] = b
		if len(b.IncomingNeighbors()) == 0 {
			level[b.Name()] = 0
			queue = append(queue, b)
		}
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for _, nb := range cur.OutgoingNeighbors() {
			candidate := level[cur.Name()] + 1
			if existing, seen := level[nb.Name()]; !seen || candidate > existing {
				level[nb.Name()] = candidate
			}
			if !visited[nb.Name()] {
				queue = append(queue, nb)
			}
		}

		visited[cur.Name()] = true
	}

	var allowed map[string]Block
	if start != nil {
		allowed = g.getAllBlocksFollowingBlock(start)
	}

	type leveled struct {
		block Block
		level int
	}

	leveledBlocks := make([]leveled, 0, len(level))
	for name, lvl := range level {
		if allowed != nil {
			if _, ok := allowed[name]; !ok {
				continue
			}
		}
		leveledBlocks = append(leveledBlocks, leveled{block: blockByName[name], level: lvl})
	}

	if len(level) != len(g.blocksByName) {
		return nil, ErrCyclicGraph
	}

	if err := g.crossCheckAcyclic(); err != nil {
		return nil, err
	}

	sort.Slice(leveledBlocks, func(i, j int) bool {
		if leveledBlocks[i].level != leveledBlocks[j].level {
			return leveledBlocks[i].level < leveledBlocks[j].level
		}
		return leveledBlocks[i].block.Name() < leveledBlocks[j].block.Name()
	})

	out := make([]Block, len(leveledBlocks))
	for i, lb := range leveledBlocks {
		out[i] = lb.block
	}

	return out, nil
}

// crossCheckAcyclic runs an independent three-color DFS cycle detector over
// the same adjacency as a second confirmation ahead of the CyclicGraph
// failure path, in case the level pass above missed a cycle reachable only
// through a block with at least one incoming edge from within the cycle
// itself.
func (g *Graph) crossCheckAcyclic() error {
	cg := core.NewGraph(core.WithDirected(true))

	for name := range g.blocksByName {
		if err := cg.AddVertex(name); err != nil {
			return fmt.Errorf("graph: cross-check vertex %q: %w", name, err)
		}
	}

	seenEdges := make(map[string]bool)
	for _, b := range g.blocksByName {
		for _, nb := range b.OutgoingNeighbors() {
			key := b.Name() + "\x00" + nb.Name()
			if seenEdges[key] {
				continue
			}
			seenEdges[key] = true
			if _, err := cg.AddEdge(b.Name(), nb.Name(), 0); err != nil {
				if errors.Is(err, core.ErrLoopNotAllowed) {
					// A self-loop is trivially a cycle.
					return fmt.Errorf("%w: %v", ErrCyclicGraph, err)
				}
				return fmt.Errorf("graph: cross-check edge %q->%q: %w", b.Name(), nb.Name(), err)
			}
		}
	}

	if _, err := dfs.TopologicalSort(cg); err != nil {
		return fmt.Errorf("%w: %v", ErrCyclicGraph, err)
	}

	return nil
}
