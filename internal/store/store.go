// Package store persists graphs, their owners, and per-user permission
// bitmaps behind the keyspace described by the original system's Redis
// schema (graph:{id}, user:{username}:graphs, graph:{id}:permissions),
// reimplemented here against an in-memory map, Postgres, or SQLite.
package store

import (
	"context"

	"github.com/rakunlabs/flowgraph/internal/auth"
	"github.com/rakunlabs/flowgraph/internal/config"
	"github.com/rakunlabs/flowgraph/internal/crypto"
	"github.com/rakunlabs/flowgraph/internal/store/memory"
	"github.com/rakunlabs/flowgraph/internal/store/postgres"
	"github.com/rakunlabs/flowgraph/internal/store/sqlite"
)

// Store is the persistence boundary the gateway and the auth layer share.
// Every CRUD method reports (found, err) or (ok, err) rather than a
// sentinel not-found error, mirroring the original system's (status,
// message) RPC convention.
type Store interface {
	// CreateGraph registers a fresh graph id owned by owner and grants owner
	// full (view, edit/delete, run) permissions on it.
	CreateGraph(ctx context.Context, owner string) (graphID string, err error)

	GetSerializedGraph(ctx context.Context, graphID string) (serialized string, ok bool, err error)
	StoreSerializedGraph(ctx context.Context, graphID, serialized string) (ok bool, err error)
	DeleteGraph(ctx context.Context, graphID string) (ok bool, err error)
	ListGraphs(ctx context.Context, username string) (graphIDs []string, err error)
	ShareGraph(ctx context.Context, graphID, targetUser string, bits auth.Bits) (ok bool, err error)

	// GraphOwner and UserPermission implement auth.GraphOwnership.
	GraphOwner(ctx context.Context, graphID string) (owner string, ok bool, err error)
	UserPermission(ctx context.Context, graphID, username string) (bits auth.Bits, ok bool, err error)

	Close()
}

var _ auth.GraphOwnership = Store(nil)

// New builds the Store selected by cfg. Postgres is preferred over SQLite
// when both are configured; an unconfigured store falls back to Memory
// rather than failing, since a graph-engine gateway should still run
// without a database for local development.
func New(ctx context.Context, cfg config.Store) (Store, error) {
	var encKey []byte
	if cfg.EncryptionKey != "" {
		key, err := crypto.DeriveKey(cfg.EncryptionKey)
		if err != nil {
			return nil, err
		}
		encKey = key
	}

	switch {
	case cfg.Postgres != nil:
		return postgres.New(ctx, cfg.Postgres, encKey)
	case cfg.SQLite != nil:
		return sqlite.New(ctx, cfg.SQLite, encKey)
	default:
		return memory.New(), nil
	}
}
