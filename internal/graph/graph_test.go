package graph

import (
	"context"
	"errors"
	"reflect"
	"sort"
	"testing"
)

func blockNames(blocks []Block) []string {
	out := make([]string, len(blocks))
	for i, b := range blocks {
		out[i] = b.Name()
	}
	return out
}

// buildCanonicalDAG wires the spec's canonical example:
//
//	A -> B -> D -> G
//	A -> C -> E -> G
//	     B -> E
//	     C -> F -> G
func buildCanonicalDAG(t *testing.T) (*Graph, map[string]Block) {
	t.Helper()

	g := NewGraph("", "canonical")
	blocks := make(map[string]Block)
	for _, name := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		b, err := g.AddBlock(NewBlock("", name, ""))
		if err != nil {
			t.Fatalf("AddBlock(%s): %v", name, err)
		}
		blocks[name] = b
	}

	edges := [][2]string{
		{"A", "B"}, {"A", "C"},
		{"B", "D"}, {"B", "E"},
		{"C", "E"}, {"C", "F"},
		{"D", "G"}, {"E", "G"}, {"F", "G"},
	}
	for _, e := range edges {
		if _, err := g.ConnectBlocks(blocks[e[0]], blocks[e[1]], "", ""); err != nil {
			t.Fatalf("ConnectBlocks(%s,%s): %v", e[0], e[1], err)
		}
	}

	return g, blocks
}

// Scenario 1 — canonical DAG evaluation order.
func TestEvaluationOrder_CanonicalDAG(t *testing.T) {
	g, _ := buildCanonicalDAG(t)

	order, err := g.evaluationOrder(nil)
	if err != nil {
		t.Fatalf("evaluationOrder: %v", err)
	}

	got := blockNames(order)
	want := []string{"A", "B", "C", "D", "E", "F", "G"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("evaluationOrder() = %v, want %v", got, want)
	}
}

// Scenario 2 — start-block subgraph: D is unreachable from C.
func TestEvaluationOrder_StartBlockSubgraph(t *testing.T) {
	g, blocks := buildCanonicalDAG(t)

	order, err := g.evaluationOrder(blocks["C"])
	if err != nil {
		t.Fatalf("evaluationOrder(C): %v", err)
	}

	got := blockNames(order)
	want := []string{"C", "E", "F", "G"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("evaluationOrder(C) = %v, want %v", got, want)
	}
}

// Invariant 3/4 — N distinct blocks iff acyclic, topological correctness.
func TestEvaluationOrder_CyclicGraphFails(t *testing.T) {
	g := NewGraph("", "cyclic")
	a, _ := g.AddBlock(NewBlock("", "A", ""))
	b, _ := g.AddBlock(NewBlock("", "B", ""))
	c, _ := g.AddBlock(NewBlock("", "C", ""))

	if _, err := g.ConnectBlocks(a, b, "", ""); err != nil {
		t.Fatalf("connect A->B: %v", err)
	}
	if _, err := g.ConnectBlocks(b, c, "", ""); err != nil {
		t.Fatalf("connect B->C: %v", err)
	}
	if _, err := g.ConnectBlocks(c, a, "", ""); err != nil {
		t.Fatalf("connect C->A: %v", err)
	}

	if _, err := g.evaluationOrder(nil); !errors.Is(err, ErrCyclicGraph) {
		t.Errorf("evaluationOrder() on cyclic graph = %v, want ErrCyclicGraph", err)
	}
}

func TestEvaluationOrder_AcyclicReturnsAllBlocks(t *testing.T) {
	g, blocks := buildCanonicalDAG(t)

	order, err := g.evaluationOrder(nil)
	if err != nil {
		t.Fatalf("evaluationOrder: %v", err)
	}
	if len(order) != len(blocks) {
		t.Errorf("len(order) = %d, want %d", len(order), len(blocks))
	}

	ancestorIndex := make(map[string]int, len(order))
	for i, b := range order {
		ancestorIndex[b.Name()] = i
	}
	for _, b := range order {
		for _, anc := range b.IncomingNeighbors() {
			if ancestorIndex[anc.Name()] >= ancestorIndex[b.Name()] {
				t.Errorf("block %s appears before its ancestor %s", b.Name(), anc.Name())
			}
		}
	}
}

// Invariant 5 — among blocks of equal level, names appear in ascending
// order. Build a graph with three level-0 roots (X, Y, Zroot), added out of
// alphabetical order, where only Zroot feeds a level-1 block M, so level
// sorts first and names order the blocks within level 0.
func TestEvaluationOrder_EqualLevelNameOrdering(t *testing.T) {
	g := NewGraph("", "levels")
	y, _ := g.AddBlock(NewBlock("", "Y", ""))
	x, _ := g.AddBlock(NewBlock("", "X", ""))
	zzz, _ := g.AddBlock(NewBlock("", "Zroot", ""))

	// Y and X are both level 0 (no incoming edges); Zroot feeds a level-1
	// block "M" so the level partition is non-trivial.
	m, _ := g.AddBlock(NewBlock("", "M", ""))
	if _, err := g.ConnectBlocks(zzz, m, "", ""); err != nil {
		t.Fatalf("connect Zroot->M: %v", err)
	}

	order, err := g.evaluationOrder(nil)
	if err != nil {
		t.Fatalf("evaluationOrder: %v", err)
	}

	got := blockNames(order)
	want := []string{"X", "Y", "Zroot", "M"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("evaluationOrder() = %v, want %v", got, want)
	}
	_ = x
	_ = y
}

// Invariant 1 — connect(A,x -> B,y) leaves a single shared connection
// object referenced from both ports.
func TestConnectBlocks_SharedConnection(t *testing.T) {
	g := NewGraph("", "g")
	a, _ := g.AddBlock(NewBlock("", "A", ""))
	b, _ := g.AddBlock(NewBlock("", "B", ""))

	c, err := g.ConnectBlocks(a, b, "out", "in")
	if err != nil {
		t.Fatalf("ConnectBlocks: %v", err)
	}

	fromPort, ok := a.Outputs().GetPort("out")
	if !ok {
		t.Fatalf("output port %q not found on A", "out")
	}
	toPort, ok := b.Inputs().GetPort("in")
	if !ok {
		t.Fatalf("input port %q not found on B", "in")
	}

	fromConns := fromPort.Connections()
	toConns := toPort.Connections()
	if len(fromConns) != 1 || fromConns[0].ID != c.ID {
		t.Errorf("A.outputs[out].connections = %v, want only %s", fromConns, c.ID)
	}
	if len(toConns) != 1 || toConns[0].ID != c.ID {
		t.Errorf("B.inputs[in].connections = %v, want only %s", toConns, c.ID)
	}
}

// Invariant 2 / Scenario 5 — setValue on an input marks downstream outputs
// unreliable and the propagated value lands in the input cell.
func TestSetValue_ReliabilityCascade(t *testing.T) {
	g := NewGraph("", "chain")
	a, _ := g.AddBlock(NewBlock("", "A", ""))
	b, _ := g.AddBlock(NewBlock("", "B", ""))
	c, _ := g.AddBlock(NewBlock("", "C", ""))

	if _, err := g.ConnectBlocks(a, b, "out", "in"); err != nil {
		t.Fatalf("connect A->B: %v", err)
	}
	if _, err := g.ConnectBlocks(b, c, "out", "in"); err != nil {
		t.Fatalf("connect B->C: %v", err)
	}

	aOut, _ := a.Outputs().GetPort("out")
	bOut, _ := b.Outputs().GetPort("out")
	cOut, _ := c.Outputs().GetPort("out")
	bIn, _ := b.Inputs().GetPort("in")

	aOut.SetValue(1, true)
	bOut.cell.MarkReliable()
	cOut.cell.MarkReliable()

	aOut.SetValue(42, true)

	if !bIn.IsAvailable() || bIn.Value() != 42 {
		t.Errorf("B.inputs[in] = (%v, available=%v), want (42, true)", bIn.Value(), bIn.IsAvailable())
	}
	if bOut.IsReliable() {
		t.Errorf("B's output is still marked reliable after upstream setValue")
	}
	if cOut.IsReliable() {
		t.Errorf("C's output is still marked reliable after upstream setValue")
	}
}

// Scenario 3 — auto-naming.
func TestAddBlock_AutoNaming(t *testing.T) {
	g := NewGraph("", "g")

	var got []string
	for i := 0; i < 3; i++ {
		b, err := g.AddBlock(nil)
		if err != nil {
			t.Fatalf("AddBlock(nil) #%d: %v", i, err)
		}
		got = append(got, b.Name())
	}

	sort.Strings(got)
	want := []string{"block_0", "block_1", "block_2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("auto-named blocks = %v, want %v", got, want)
	}
}

// Scenario 4 — name collision.
func TestAddBlock_DuplicateNameFails(t *testing.T) {
	g := NewGraph("", "g")

	if _, err := g.AddBlock(NewBlock("", "A", "")); err != nil {
		t.Fatalf("first AddBlock(A): %v", err)
	}

	_, err := g.AddBlock(NewBlock("", "A", ""))
	if !errors.Is(err, ErrDuplicateBlockName) {
		t.Errorf("second AddBlock(A) = %v, want ErrDuplicateBlockName", err)
	}
}

// Invariant 7 — removeBlock leaves zero connections referencing the
// removed block.
func TestRemoveBlock_NoDanglingConnections(t *testing.T) {
	g, blocks := buildCanonicalDAG(t)

	b := blocks["B"]
	g.RemoveBlock(b)

	for _, c := range g.Connections() {
		if (c.FromPort() != nil && c.FromPort().ParentHub().ParentBlock() == b) ||
			(c.ToPort() != nil && c.ToPort().ParentHub().ParentBlock() == b) {
			t.Errorf("connection %s still references removed block B", c.ID)
		}
	}

	for _, other := range blocks {
		if other == b {
			continue
		}
		for _, nb := range other.AllNeighbors() {
			if nb == b {
				t.Errorf("block %s still neighbors removed block B", other.Name())
			}
		}
	}
}

// Scenario 6 — serialize . deserialize = identity.
func TestSerializeDeserialize_RoundTrip(t *testing.T) {
	g := NewGraph("", "roundtrip")

	a, err := g.AddBlock(NewBlock("", "A", ""))
	if err != nil {
		t.Fatalf("AddBlock(A): %v", err)
	}
	bBlock, err := g.AddBlock(NewVariable("", "B", ""))
	if err != nil {
		t.Fatalf("AddBlock(B): %v", err)
	}

	conn, err := g.ConnectBlocks(a, bBlock, "out", "var1")
	if err != nil {
		t.Fatalf("ConnectBlocks(A,B): %v", err)
	}

	view := g.Serialize()

	g2, err := Deserialize(view)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}

	if g2.Name != g.Name {
		t.Errorf("round-tripped name = %q, want %q", g2.Name, g.Name)
	}

	wantBlockIDs := map[string]bool{a.ID(): true, bBlock.ID(): true}
	gotBlockIDs := make(map[string]bool)
	for _, b := range g2.Blocks() {
		gotBlockIDs[b.ID()] = true
	}
	if !reflect.DeepEqual(gotBlockIDs, wantBlockIDs) {
		t.Errorf("round-tripped block id set = %v, want %v", gotBlockIDs, wantBlockIDs)
	}

	wantConnIDs := map[string]bool{conn.ID: true}
	gotConnIDs := make(map[string]bool)
	for _, c := range g2.Connections() {
		gotConnIDs[c.ID] = true
	}
	if !reflect.DeepEqual(gotConnIDs, wantConnIDs) {
		t.Errorf("round-tripped connection id set = %v, want %v", gotConnIDs, wantConnIDs)
	}

	bView, ok := g2.GetBlock("B")
	if !ok {
		t.Fatalf("round-tripped graph missing block B")
	}
	if bView.Type() != "Variable" {
		t.Errorf("round-tripped B.Type() = %q, want Variable", bView.Type())
	}
}

func TestRunAllBlocks_StopsOnContextCancellation(t *testing.T) {
	g, _ := buildCanonicalDAG(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := g.RunAllBlocks(ctx); err == nil {
		t.Errorf("RunAllBlocks with a cancelled context returned nil error")
	}
}
