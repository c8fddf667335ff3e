// Package sqlite is the embedded persistence for catalog items, aliases and
// label records, backed by modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"label-resolver/internal/order"
	"label-resolver/internal/resolve/model"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one writer; sqlite serializes anyway and this keeps busy errors away
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// ListActiveItems implements catalog.Reader.
func (s *Store) ListActiveItems(ctx context.Context, tenantID string) ([]model.CatalogItem, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT i.id, i.name, i.short_code, i.preferred_method, COALESCE(m.method, '')
        FROM items i
        LEFT JOIN item_methods m ON m.tenant_id = i.tenant_id AND m.item_id = i.id
        WHERE i.tenant_id = ? AND i.active = 1
        ORDER BY i.name, i.id, m.position, m.method`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var out []model.CatalogItem
	for rows.Next() {
		var it model.CatalogItem
		var method string
		if err := rows.Scan(&it.ID, &it.Name, &it.ShortCode, &it.PreferredMethod, &method); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		if n := len(out); n > 0 && out[n-1].ID == it.ID {
			if method != "" {
				out[n-1].EnabledMethods = append(out[n-1].EnabledMethods, method)
			}
			continue
		}
		if method != "" {
			it.EnabledMethods = []string{method}
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// SaveItems replaces the given items of a tenant (and their methods) in one transaction.
func (s *Store) SaveItems(ctx context.Context, tenantID string, items []model.CatalogItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, it := range items {
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO items (tenant_id, id, name, short_code, preferred_method, active, updated_at)
            VALUES (?, ?, ?, ?, ?, 1, ?)
            ON CONFLICT (tenant_id, id) DO UPDATE SET
                name = excluded.name,
                short_code = excluded.short_code,
                preferred_method = excluded.preferred_method,
                active = 1,
                updated_at = excluded.updated_at`,
			tenantID, it.ID, it.Name, it.ShortCode, it.PreferredMethod, now); err != nil {
			return fmt.Errorf("upsert item %s: %w", it.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM item_methods WHERE tenant_id = ? AND item_id = ?`, tenantID, it.ID); err != nil {
			return fmt.Errorf("clear methods %s: %w", it.ID, err)
		}
		for pos, m := range it.EnabledMethods {
			if _, err := tx.ExecContext(ctx, `
                INSERT INTO item_methods (tenant_id, item_id, method, position) VALUES (?, ?, ?, ?)
                ON CONFLICT DO NOTHING`, tenantID, it.ID, m, pos); err != nil {
				return fmt.Errorf("insert method %s/%s: %w", it.ID, m, err)
			}
		}
	}
	return tx.Commit()
}

// Find implements alias.Repository.
func (s *Store) Find(ctx context.Context, tenantID, phrase string) (string, bool, error) {
	var itemID string
	err := s.db.QueryRowContext(ctx,
		`SELECT item_id FROM aliases WHERE tenant_id = ? AND phrase = ?`, tenantID, phrase,
	).Scan(&itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("find alias: %w", err)
	}
	return itemID, true, nil
}

// UpsertIfAbsent implements alias.Repository; the first binding of a phrase wins.
func (s *Store) UpsertIfAbsent(ctx context.Context, tenantID, phrase, itemID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
        INSERT INTO aliases (tenant_id, phrase, item_id, created_at) VALUES (?, ?, ?, ?)
        ON CONFLICT (tenant_id, phrase) DO NOTHING`,
		tenantID, phrase, itemID, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return false, fmt.Errorf("insert alias: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert alias: %w", err)
	}
	return n > 0, nil
}

// Dispatch implements order.Dispatcher by recording the labels; the print
// worker picks them up from label_records.
func (s *Store) Dispatch(ctx context.Context, tenantID string, labels []order.LabelRequest) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, l := range labels {
		if _, err := tx.ExecContext(ctx, `
            INSERT INTO label_records (tenant_id, item_id, item_name, method, quantity, phrase, created_at)
            VALUES (?, ?, ?, ?, ?, ?, ?)`,
			tenantID, l.ItemID, l.ItemName, l.Method, l.Quantity, l.Phrase, now); err != nil {
			return fmt.Errorf("insert label record: %w", err)
		}
	}
	return tx.Commit()
}
