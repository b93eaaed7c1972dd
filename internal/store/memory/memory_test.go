package memory

import (
	"context"
	"testing"

	"github.com/rakunlabs/flowgraph/internal/auth"
)

func TestCreateGraph_OwnerHasFullPermissions(t *testing.T) {
	m := New()
	ctx := context.Background()

	id, err := m.CreateGraph(ctx, "alice")
	if err != nil {
		t.Fatalf("CreateGraph: %v", err)
	}
	if id == "" {
		t.Fatalf("CreateGraph returned an empty id")
	}

	owner, ok, err := m.GraphOwner(ctx, id)
	if err != nil || !ok || owner != "alice" {
		t.Errorf("GraphOwner(%s) = (%q, %v, %v), want (alice, true, nil)", id, owner, ok, err)
	}

	bits, ok, err := m.UserPermission(ctx, id, "alice")
	if err != nil || !ok {
		t.Fatalf("UserPermission(alice): ok=%v err=%v", ok, err)
	}
	for _, action := range []string{"view", "edit", "delete", "run"} {
		if !bits.Allows(action) {
			t.Errorf("owner's bitmap does not allow %s", action)
		}
	}
}

func TestGetSerializedGraph_UnknownGraph(t *testing.T) {
	m := New()
	ctx := context.Background()

	_, ok, err := m.GetSerializedGraph(ctx, "ghost")
	if err != nil || ok {
		t.Errorf("GetSerializedGraph(ghost) = (_, %v, %v), want (false, nil)", ok, err)
	}
}

func TestGetSerializedGraph_NeverEditedReturnsNotOK(t *testing.T) {
	m := New()
	ctx := context.Background()

	id, _ := m.CreateGraph(ctx, "alice")

	_, ok, err := m.GetSerializedGraph(ctx, id)
	if err != nil || ok {
		t.Errorf("GetSerializedGraph(freshly created) = (_, %v, %v), want (false, nil)", ok, err)
	}
}

func TestStoreAndGetSerializedGraph_RoundTrip(t *testing.T) {
	m := New()
	ctx := context.Background()

	id, _ := m.CreateGraph(ctx, "alice")

	ok, err := m.StoreSerializedGraph(ctx, id, `{"metadata":{"id":"g1"}}`)
	if err != nil || !ok {
		t.Fatalf("StoreSerializedGraph: ok=%v err=%v", ok, err)
	}

	got, ok, err := m.GetSerializedGraph(ctx, id)
	if err != nil || !ok || got != `{"metadata":{"id":"g1"}}` {
		t.Errorf("GetSerializedGraph = (%q, %v, %v), want the stored payload", got, ok, err)
	}
}

func TestStoreSerializedGraph_UnknownGraphFails(t *testing.T) {
	m := New()

	ok, err := m.StoreSerializedGraph(context.Background(), "ghost", "{}")
	if err != nil || ok {
		t.Errorf("StoreSerializedGraph(ghost) = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestDeleteGraph_RemovesFromEverySet(t *testing.T) {
	m := New()
	ctx := context.Background()

	id, _ := m.CreateGraph(ctx, "alice")

	ok, err := m.DeleteGraph(ctx, id)
	if err != nil || !ok {
		t.Fatalf("DeleteGraph: ok=%v err=%v", ok, err)
	}

	if _, ok, _ := m.GraphOwner(ctx, id); ok {
		t.Errorf("GraphOwner still resolves a deleted graph")
	}

	ids, err := m.ListGraphs(ctx, "alice")
	if err != nil {
		t.Fatalf("ListGraphs: %v", err)
	}
	for _, got := range ids {
		if got == id {
			t.Errorf("ListGraphs still lists a deleted graph")
		}
	}

	if _, ok, _ := m.UserPermission(ctx, id, "alice"); ok {
		t.Errorf("UserPermission still resolves for a deleted graph")
	}
}

func TestDeleteGraph_UnknownGraphFails(t *testing.T) {
	m := New()

	ok, err := m.DeleteGraph(context.Background(), "ghost")
	if err != nil || ok {
		t.Errorf("DeleteGraph(ghost) = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestListGraphs_OnlyOwnedGraphsForThatUser(t *testing.T) {
	m := New()
	ctx := context.Background()

	aliceGraph, _ := m.CreateGraph(ctx, "alice")
	_, _ = m.CreateGraph(ctx, "bob")

	ids, err := m.ListGraphs(ctx, "alice")
	if err != nil {
		t.Fatalf("ListGraphs: %v", err)
	}
	if len(ids) != 1 || ids[0] != aliceGraph {
		t.Errorf("ListGraphs(alice) = %v, want [%s]", ids, aliceGraph)
	}
}

func TestShareGraph_GrantsPermissionToTargetUser(t *testing.T) {
	m := New()
	ctx := context.Background()

	id, _ := m.CreateGraph(ctx, "alice")

	ok, err := m.ShareGraph(ctx, id, "bob", auth.BitView)
	if err != nil || !ok {
		t.Fatalf("ShareGraph: ok=%v err=%v", ok, err)
	}

	bits, ok, err := m.UserPermission(ctx, id, "bob")
	if err != nil || !ok {
		t.Fatalf("UserPermission(bob): ok=%v err=%v", ok, err)
	}
	if !bits.Allows("view") {
		t.Errorf("bob's bitmap does not allow view after ShareGraph")
	}
	if bits.Allows("edit") {
		t.Errorf("bob's bitmap allows edit, only view was granted")
	}
}

func TestShareGraph_UnknownGraphFails(t *testing.T) {
	m := New()

	ok, err := m.ShareGraph(context.Background(), "ghost", "bob", auth.BitView)
	if err != nil || ok {
		t.Errorf("ShareGraph(ghost) = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestUserPermission_UnknownUserNotOK(t *testing.T) {
	m := New()
	ctx := context.Background()

	id, _ := m.CreateGraph(ctx, "alice")

	_, ok, err := m.UserPermission(ctx, id, "stranger")
	if err != nil || ok {
		t.Errorf("UserPermission(stranger) = (_, %v, %v), want (false, nil)", ok, err)
	}
}
