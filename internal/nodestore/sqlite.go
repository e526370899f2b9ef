package nodestore

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SQLite is a Store backed by a SQLite database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and applies the schema.
// Use ":memory:" for a throwaway store.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open node store: %w", err)
	}
	// single writer; also keeps ":memory:" on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		schemaSQL,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init node store: %w", err)
		}
	}
	return &SQLite{db: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Upsert(ctx context.Context, n *Node) (Change, error) {
	fields, err := json.Marshal(n.Fields)
	if err != nil {
		return Unchanged, fmt.Errorf("encode node %s: %w", n.ID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Unchanged, err
	}
	defer tx.Rollback()

	var prev string
	change := Updated
	switch err := tx.QueryRowContext(ctx, `SELECT digest FROM nodes WHERE id = ?`, n.ID).Scan(&prev); {
	case errors.Is(err, sql.ErrNoRows):
		change = Created
	case err != nil:
		return Unchanged, fmt.Errorf("upsert node %s: %w", n.ID, err)
	case prev == n.Digest:
		change = Unchanged
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO nodes (id, type, owner, digest, fields, touched_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			type = excluded.type, owner = excluded.owner, digest = excluded.digest,
			fields = excluded.fields, touched_at = excluded.touched_at`,
		n.ID, n.Type, n.Owner, n.Digest, string(fields), time.Now().UnixMilli())
	if err != nil {
		return Unchanged, fmt.Errorf("upsert node %s: %w", n.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return Unchanged, err
	}
	return change, nil
}

func (s *SQLite) Delete(ctx context.Context, id string) error {
	return s.affect(ctx, id, `DELETE FROM nodes WHERE id = ?`, id)
}

func (s *SQLite) Touch(ctx context.Context, id string) error {
	return s.affect(ctx, id, `UPDATE nodes SET touched_at = ? WHERE id = ?`, time.Now().UnixMilli(), id)
}

func (s *SQLite) affect(ctx context.Context, id, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("node %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) Get(ctx context.Context, id string) (*Node, error) {
	n := &Node{ID: id}
	var fields string
	err := s.db.QueryRowContext(ctx, `SELECT type, owner, digest, fields FROM nodes WHERE id = ?`, id).
		Scan(&n.Type, &n.Owner, &n.Digest, &fields)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get node %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(fields), &n.Fields); err != nil {
		return nil, fmt.Errorf("decode node %s: %w", id, err)
	}
	return n, nil
}

func (s *SQLite) ListOwnedIDs(ctx context.Context, owner string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM nodes WHERE owner = ? ORDER BY id`, owner)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLite) GenerateID(namespace string) string { return GenerateID(namespace) }
