// Package sqlite is the SQLite-backed Store implementation, for single-node
// deployments that don't want a separate Postgres instance.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rakunlabs/flowgraph/internal/auth"
	"github.com/rakunlabs/flowgraph/internal/config"
	flowcrypto "github.com/rakunlabs/flowgraph/internal/crypto"

	"github.com/oklog/ulid/v2"
	"github.com/worldline-go/types"

	_ "modernc.org/sqlite"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/doug-martin/goqu/v9/exp"
)

var DefaultTablePrefix = "flowgraph_"

// SQLite is a Store backed by a SQLite database, reached through
// database/sql (modernc.org/sqlite, pure Go, no cgo) and queried with goqu.
type SQLite struct {
	db   *sql.DB
	goqu *goqu.Database

	tableGraphs      exp.IdentifierExpression
	tablePermissions exp.IdentifierExpression

	// encKey, when non-nil, encrypts serialized_graph at rest.
	encKey []byte
}

func New(ctx context.Context, cfg *config.StoreSQLite, encKey []byte) (*SQLite, error) {
	if cfg == nil {
		return nil, errors.New("sqlite configuration is nil")
	}
	if cfg.Datasource == "" {
		return nil, errors.New("sqlite datasource is required")
	}

	tablePrefix := DefaultTablePrefix
	if cfg.TablePrefix != nil {
		tablePrefix = *cfg.TablePrefix
	}

	db, err := sql.Open("sqlite", cfg.Datasource)
	if err != nil {
		return nil, fmt.Errorf("open sqlite connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite only supports a single writer at a time.
	db.SetMaxOpenConns(1)

	migrate := cfg.Migrate
	if migrate.Values == nil {
		migrate.Values = make(map[string]string)
	}
	migrate.Values["TABLE_PREFIX"] = tablePrefix

	if err := MigrateDB(ctx, db, &migrate); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate store sqlite: %w", err)
	}

	slog.Info("connected to store sqlite", "datasource", cfg.Datasource)

	return &SQLite{
		db:               db,
		goqu:             goqu.New("sqlite3", db),
		tableGraphs:      goqu.T(tablePrefix + "graphs"),
		tablePermissions: goqu.T(tablePrefix + "graph_permissions"),
		encKey:           encKey,
	}, nil
}

func (s *SQLite) Close() {
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			slog.Error("close store sqlite connection", "error", err)
		}
	}
}

func (s *SQLite) CreateGraph(ctx context.Context, owner string) (string, error) {
	id := ulid.Make().String()
	now := types.NewTime(time.Now().UTC())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	insertGraph, _, err := s.goqu.Insert(s.tableGraphs).Rows(goqu.Record{
		"id": id, "owner": owner, "serialized_graph": nil, "created_at": now, "updated_at": now,
	}).ToSQL()
	if err != nil {
		return "", fmt.Errorf("build insert graph query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, insertGraph); err != nil {
		return "", fmt.Errorf("create graph: %w", err)
	}

	insertPerm, _, err := s.goqu.Insert(s.tablePermissions).Rows(goqu.Record{
		"graph_id": id, "username": owner, "bits": int(auth.NewBits(true, true, true)),
	}).ToSQL()
	if err != nil {
		return "", fmt.Errorf("build insert permission query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, insertPerm); err != nil {
		return "", fmt.Errorf("grant owner permission: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit transaction: %w", err)
	}

	return id, nil
}

func (s *SQLite) GetSerializedGraph(ctx context.Context, graphID string) (string, bool, error) {
	query, _, err := s.goqu.From(s.tableGraphs).
		Select("serialized_graph").
		Where(goqu.I("id").Eq(graphID)).
		ToSQL()
	if err != nil {
		return "", false, fmt.Errorf("build get query: %w", err)
	}

	var serialized sql.NullString
	err = s.db.QueryRowContext(ctx, query).Scan(&serialized)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get serialized graph %q: %w", graphID, err)
	}
	if !serialized.Valid {
		return "", false, nil
	}

	value := serialized.String
	if flowcrypto.IsEncrypted(value) && s.encKey != nil {
		decrypted, err := flowcrypto.Decrypt(value, s.encKey)
		if err != nil {
			return "", false, fmt.Errorf("decrypt serialized graph %q: %w", graphID, err)
		}
		value = decrypted
	}

	return value, true, nil
}

func (s *SQLite) StoreSerializedGraph(ctx context.Context, graphID, serialized string) (bool, error) {
	value := serialized
	if s.encKey != nil {
		encrypted, err := flowcrypto.Encrypt(value, s.encKey)
		if err != nil {
			return false, fmt.Errorf("encrypt serialized graph %q: %w", graphID, err)
		}
		value = encrypted
	}

	query, _, err := s.goqu.Update(s.tableGraphs).
		Set(goqu.Record{"serialized_graph": value, "updated_at": types.NewTime(time.Now().UTC())}).
		Where(goqu.I("id").Eq(graphID)).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build update query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return false, fmt.Errorf("store serialized graph %q: %w", graphID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	return affected > 0, nil
}

func (s *SQLite) DeleteGraph(ctx context.Context, graphID string) (bool, error) {
	query, _, err := s.goqu.Delete(s.tableGraphs).Where(goqu.I("id").Eq(graphID)).ToSQL()
	if err != nil {
		return false, fmt.Errorf("build delete query: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return false, fmt.Errorf("delete graph %q: %w", graphID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	permQuery, _, err := s.goqu.Delete(s.tablePermissions).Where(goqu.I("graph_id").Eq(graphID)).ToSQL()
	if err != nil {
		return false, fmt.Errorf("build delete permissions query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, permQuery); err != nil {
		return false, fmt.Errorf("delete permissions for graph %q: %w", graphID, err)
	}

	return true, nil
}

func (s *SQLite) ListGraphs(ctx context.Context, username string) ([]string, error) {
	query, _, err := s.goqu.From(s.tableGraphs).
		Select("id").
		Where(goqu.I("owner").Eq(username)).
		Order(goqu.I("id").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list graphs for %q: %w", username, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan graph id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func (s *SQLite) ShareGraph(ctx context.Context, graphID, targetUser string, bits auth.Bits) (bool, error) {
	_, ok, err := s.GraphOwner(ctx, graphID)
	if err != nil || !ok {
		return false, err
	}

	query, _, err := s.goqu.Insert(s.tablePermissions).
		Rows(goqu.Record{"graph_id": graphID, "username": targetUser, "bits": int(bits)}).
		OnConflict(goqu.DoUpdate("graph_id, username", goqu.Record{"bits": int(bits)})).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build share query: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return false, fmt.Errorf("share graph %q with %q: %w", graphID, targetUser, err)
	}

	return true, nil
}

func (s *SQLite) GraphOwner(ctx context.Context, graphID string) (string, bool, error) {
	query, _, err := s.goqu.From(s.tableGraphs).
		Select("owner").
		Where(goqu.I("id").Eq(graphID)).
		ToSQL()
	if err != nil {
		return "", false, fmt.Errorf("build owner query: %w", err)
	}

	var owner string
	err = s.db.QueryRowContext(ctx, query).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get owner of %q: %w", graphID, err)
	}

	return owner, true, nil
}

func (s *SQLite) UserPermission(ctx context.Context, graphID, username string) (auth.Bits, bool, error) {
	query, _, err := s.goqu.From(s.tablePermissions).
		Select("bits").
		Where(goqu.I("graph_id").Eq(graphID), goqu.I("username").Eq(username)).
		ToSQL()
	if err != nil {
		return 0, false, fmt.Errorf("build permission query: %w", err)
	}

	var bits int
	err = s.db.QueryRowContext(ctx, query).Scan(&bits)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get permission for %q on %q: %w", username, graphID, err)
	}

	return auth.Bits(bits), true, nil
}
