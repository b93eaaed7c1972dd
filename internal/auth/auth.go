// Package auth implements the gateway's authentication and authorization
// checks: who a request's token belongs to, and what that user may do to a
// given graph.
package auth

import "context"

// Bits is a permission bitmap: bit0 (1) view, bit1 (2) edit/delete, bit2 (4)
// run. It mirrors the original system's permissionsToInt/permission-check
// convention so stored values stay compatible.
type Bits int

const (
	BitView       Bits = 1 << 0
	BitEditDelete Bits = 1 << 1
	BitRun        Bits = 1 << 2
)

// NewBits builds a Bits value from the three named grants. Extra boolean
// grants fill higher bits in the order passed, the same way the original
// helper folded in arbitrary "other_permissions".
func NewBits(view, editDelete, run bool, other ...bool) Bits {
	var b Bits
	if view {
		b |= BitView
	}
	if editDelete {
		b |= BitEditDelete
	}
	if run {
		b |= BitRun
	}
	level := Bits(8)
	for _, grant := range other {
		if grant {
			b |= level
		}
		level *= 2
	}
	return b
}

// Allows reports whether this bitmap grants the named action. Actions that
// carry no per-graph permission bit (create, list, share, or any unknown
// action) return false here; GraphAuthorizer never consults Allows for them.
func (b Bits) Allows(action string) bool {
	switch action {
	case "view":
		return b&BitView != 0
	case "edit", "delete":
		return b&BitEditDelete != 0
	case "run":
		return b&BitRun != 0
	default:
		return false
	}
}

// Actions not gated by a per-graph permission bitmap: create always
// succeeds for any authenticated caller, and list returns only the graphs
// the caller owns rather than being denied outright.
var ungatedActions = map[string]bool{
	"create": true,
	"list":   true,
}

// GraphOwnership is the subset of the persistence layer Authorize needs: who
// owns a graph, and what bitmap a user holds on it. Kept narrow so auth
// doesn't import the full store package.
type GraphOwnership interface {
	GraphOwner(ctx context.Context, graphID string) (string, bool, error)
	UserPermission(ctx context.Context, graphID, username string) (Bits, bool, error)
}

// Authenticator resolves a bearer token to a username. A false ok means the
// token is unrecognized; the gateway answers that with 403.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (username string, ok bool, err error)
}

// StaticAuthenticator authenticates against a fixed token->username table,
// the same shape as the original system's in-memory USER_DATA map. Meant
// for development and for gateways that front their own login flow and
// mint opaque tokens this process only needs to recognize.
type StaticAuthenticator struct {
	Tokens map[string]string
}

func (a StaticAuthenticator) Authenticate(_ context.Context, token string) (string, bool, error) {
	username, ok := a.Tokens[token]
	return username, ok, nil
}

// Authorizer decides whether a user may perform action on a graph.
type Authorizer interface {
	// Authorize reports (checked, allowed, err). checked is false when a
	// graph-scoped action carries no graph id (a malformed request, answered
	// 400) or names a graph that does not exist (answered 404), rather than
	// 403.
	Authorize(ctx context.Context, username, action, graphID string) (checked bool, allowed bool, err error)
}

// GraphAuthorizer implements Authorizer against a GraphOwnership-backed
// store, grounded on the original system's AuthService.authorize rpc: create
// and list need no graph id, share requires ownership, and the remaining
// graph-scoped actions (view, edit, delete, run) are gated by the stored
// permission bitmap for that user.
type GraphAuthorizer struct {
	Store GraphOwnership
}

func (a GraphAuthorizer) Authorize(ctx context.Context, username, action, graphID string) (bool, bool, error) {
	if ungatedActions[action] {
		return true, true, nil
	}

	if graphID == "" {
		return false, false, nil
	}

	owner, ok, err := a.Store.GraphOwner(ctx, graphID)
	if err != nil {
		return false, false, err
	}
	if !ok {
		return false, false, nil
	}

	if action == "share" {
		return true, owner == username, nil
	}

	if owner == username {
		return true, true, nil
	}

	bits, ok, err := a.Store.UserPermission(ctx, graphID, username)
	if err != nil {
		return false, false, err
	}
	if !ok {
		return true, false, nil
	}

	return true, bits.Allows(action), nil
}
