package auth

import (
	"context"
	"testing"
)

func TestBits_Allows(t *testing.T) {
	cases := []struct {
		name   string
		bits   Bits
		action string
		want   bool
	}{
		{"view granted", BitView, "view", true},
		{"view denied", BitEditDelete, "view", false},
		{"edit granted", BitEditDelete, "edit", true},
		{"delete granted", BitEditDelete, "delete", true},
		{"run granted", BitRun, "run", true},
		{"run denied", BitView | BitEditDelete, "run", false},
		{"unknown action denied", BitView | BitEditDelete | BitRun, "share", false},
		{"all bits allow everything gated", BitView | BitEditDelete | BitRun, "view", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.bits.Allows(tc.action); got != tc.want {
				t.Errorf("Bits(%d).Allows(%q) = %v, want %v", tc.bits, tc.action, got, tc.want)
			}
		})
	}
}

func TestNewBits(t *testing.T) {
	b := NewBits(true, false, true)
	if !b.Allows("view") {
		t.Errorf("NewBits(true,false,true) does not allow view")
	}
	if b.Allows("edit") {
		t.Errorf("NewBits(true,false,true) allows edit")
	}
	if !b.Allows("run") {
		t.Errorf("NewBits(true,false,true) does not allow run")
	}

	withExtra := NewBits(false, false, false, true, false, true)
	if withExtra&Bits(8) == 0 {
		t.Errorf("first extra grant did not set bit 8")
	}
	if withExtra&Bits(16) != 0 {
		t.Errorf("second extra grant (false) unexpectedly set bit 16")
	}
	if withExtra&Bits(32) == 0 {
		t.Errorf("third extra grant did not set bit 32")
	}
}

func TestStaticAuthenticator(t *testing.T) {
	a := StaticAuthenticator{Tokens: map[string]string{"tok-alice": "alice"}}

	username, ok, err := a.Authenticate(context.Background(), "tok-alice")
	if err != nil || !ok || username != "alice" {
		t.Errorf("Authenticate(tok-alice) = (%q, %v, %v), want (alice, true, nil)", username, ok, err)
	}

	_, ok, err = a.Authenticate(context.Background(), "unknown-token")
	if err != nil || ok {
		t.Errorf("Authenticate(unknown-token) = (_, %v, %v), want (false, nil)", ok, err)
	}
}

// fakeOwnership is a minimal in-memory GraphOwnership used only to drive
// GraphAuthorizer's branching.
type fakeOwnership struct {
	owners      map[string]string
	permissions map[string]map[string]Bits
}

func newFakeOwnership() *fakeOwnership {
	return &fakeOwnership{
		owners:      make(map[string]string),
		permissions: make(map[string]map[string]Bits),
	}
}

func (f *fakeOwnership) GraphOwner(_ context.Context, graphID string) (string, bool, error) {
	owner, ok := f.owners[graphID]
	return owner, ok, nil
}

func (f *fakeOwnership) UserPermission(_ context.Context, graphID, username string) (Bits, bool, error) {
	byUser, ok := f.permissions[graphID]
	if !ok {
		return 0, false, nil
	}
	bits, ok := byUser[username]
	return bits, ok, nil
}

func TestGraphAuthorizer_UngatedActionsAlwaysAllowed(t *testing.T) {
	a := GraphAuthorizer{Store: newFakeOwnership()}

	for _, action := range []string{"create", "list"} {
		checked, allowed, err := a.Authorize(context.Background(), "anyone", action, "")
		if err != nil || !checked || !allowed {
			t.Errorf("Authorize(anyone, %s, \"\") = (%v, %v, %v), want (true, true, nil)", action, checked, allowed, err)
		}
	}
}

func TestGraphAuthorizer_MissingGraphIDFailsCheck(t *testing.T) {
	a := GraphAuthorizer{Store: newFakeOwnership()}

	checked, allowed, err := a.Authorize(context.Background(), "alice", "view", "")
	if err != nil || checked || allowed {
		t.Errorf("Authorize(alice, view, \"\") = (%v, %v, %v), want (false, false, nil)", checked, allowed, err)
	}
}

func TestGraphAuthorizer_UnknownGraphFailsCheck(t *testing.T) {
	a := GraphAuthorizer{Store: newFakeOwnership()}

	checked, allowed, err := a.Authorize(context.Background(), "alice", "view", "ghost")
	if err != nil || checked || allowed {
		t.Errorf("Authorize(alice, view, ghost) = (%v, %v, %v), want (false, false, nil)", checked, allowed, err)
	}
}

func TestGraphAuthorizer_OwnerAllowedEverythingGated(t *testing.T) {
	store := newFakeOwnership()
	store.owners["g1"] = "alice"
	a := GraphAuthorizer{Store: store}

	for _, action := range []string{"view", "edit", "delete", "run", "share"} {
		checked, allowed, err := a.Authorize(context.Background(), "alice", action, "g1")
		if err != nil || !checked || !allowed {
			t.Errorf("Authorize(alice(owner), %s, g1) = (%v, %v, %v), want (true, true, nil)", action, checked, allowed, err)
		}
	}
}

func TestGraphAuthorizer_ShareRequiresOwnership(t *testing.T) {
	store := newFakeOwnership()
	store.owners["g1"] = "alice"
	a := GraphAuthorizer{Store: store}

	checked, allowed, err := a.Authorize(context.Background(), "bob", "share", "g1")
	if err != nil || !checked || allowed {
		t.Errorf("Authorize(bob(non-owner), share, g1) = (%v, %v, %v), want (true, false, nil)", checked, allowed, err)
	}
}

func TestGraphAuthorizer_NonOwnerGatedByPermissionBitmap(t *testing.T) {
	store := newFakeOwnership()
	store.owners["g1"] = "alice"
	store.permissions["g1"] = map[string]Bits{"bob": BitView}
	a := GraphAuthorizer{Store: store}

	checked, allowed, err := a.Authorize(context.Background(), "bob", "view", "g1")
	if err != nil || !checked || !allowed {
		t.Errorf("Authorize(bob, view, g1) = (%v, %v, %v), want (true, true, nil)", checked, allowed, err)
	}

	checked, allowed, err = a.Authorize(context.Background(), "bob", "edit", "g1")
	if err != nil || !checked || allowed {
		t.Errorf("Authorize(bob, edit, g1) = (%v, %v, %v), want (true, false, nil)", checked, allowed, err)
	}
}

func TestGraphAuthorizer_NoPermissionRecordDenies(t *testing.T) {
	store := newFakeOwnership()
	store.owners["g1"] = "alice"
	a := GraphAuthorizer{Store: store}

	checked, allowed, err := a.Authorize(context.Background(), "stranger", "view", "g1")
	if err != nil || !checked || allowed {
		t.Errorf("Authorize(stranger, view, g1) = (%v, %v, %v), want (true, false, nil)", checked, allowed, err)
	}
}
