// Package postgres is the shared-database persistence for catalog items,
// aliases and label records, backed by a pgx pool.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"label-resolver/internal/order"
	"label-resolver/internal/resolve/model"
)

//go:embed schema.sql
var schemaSQL string

type Config struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

type Store struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// Open creates the pool, pings it and applies the schema.
func Open(ctx context.Context, cfg Config, logger zerolog.Logger) (*Store, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "label-resolver"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprint(cfg.StatementTimeout.Milliseconds())
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	logger.Info().Msg("connected to postgres")
	return &Store{pool: pool, log: logger.With().Str("component", "postgres").Logger()}, nil
}

func (s *Store) Close() error {
	s.log.Info().Msg("closing database connections")
	s.pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// ListActiveItems implements catalog.Reader.
func (s *Store) ListActiveItems(ctx context.Context, tenantID string) ([]model.CatalogItem, error) {
	rows, err := s.pool.Query(ctx, `
        SELECT i.id, i.name, i.short_code, i.preferred_method,
               COALESCE(array_agg(m.method ORDER BY m.position, m.method) FILTER (WHERE m.method IS NOT NULL), '{}')
        FROM items i
        LEFT JOIN item_methods m ON m.tenant_id = i.tenant_id AND m.item_id = i.id
        WHERE i.tenant_id = $1 AND i.active
        GROUP BY i.id, i.name, i.short_code, i.preferred_method
        ORDER BY i.name, i.id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var out []model.CatalogItem
	for rows.Next() {
		var it model.CatalogItem
		if err := rows.Scan(&it.ID, &it.Name, &it.ShortCode, &it.PreferredMethod, &it.EnabledMethods); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// SaveItems replaces the given items of a tenant (and their methods) in one transaction.
func (s *Store) SaveItems(ctx context.Context, tenantID string, items []model.CatalogItem) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		for _, it := range items {
			if _, err := tx.Exec(ctx, `
                INSERT INTO items (tenant_id, id, name, short_code, preferred_method, active, updated_at)
                VALUES ($1, $2, $3, $4, $5, TRUE, NOW())
                ON CONFLICT (tenant_id, id) DO UPDATE SET
                    name = EXCLUDED.name,
                    short_code = EXCLUDED.short_code,
                    preferred_method = EXCLUDED.preferred_method,
                    active = TRUE,
                    updated_at = NOW()`,
				tenantID, it.ID, it.Name, it.ShortCode, it.PreferredMethod); err != nil {
				return fmt.Errorf("upsert item %s: %w", it.ID, err)
			}
			if _, err := tx.Exec(ctx, `DELETE FROM item_methods WHERE tenant_id = $1 AND item_id = $2`, tenantID, it.ID); err != nil {
				return fmt.Errorf("clear methods %s: %w", it.ID, err)
			}
			for pos, m := range it.EnabledMethods {
				if _, err := tx.Exec(ctx, `
                    INSERT INTO item_methods (tenant_id, item_id, method, position) VALUES ($1, $2, $3, $4)
                    ON CONFLICT DO NOTHING`, tenantID, it.ID, m, pos); err != nil {
					return fmt.Errorf("insert method %s/%s: %w", it.ID, m, err)
				}
			}
		}
		return nil
	})
}

// Find implements alias.Repository.
func (s *Store) Find(ctx context.Context, tenantID, phrase string) (string, bool, error) {
	var itemID string
	err := s.pool.QueryRow(ctx,
		`SELECT item_id FROM aliases WHERE tenant_id = $1 AND phrase = $2`, tenantID, phrase,
	).Scan(&itemID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("find alias: %w", err)
	}
	return itemID, true, nil
}

// UpsertIfAbsent implements alias.Repository; the first binding of a phrase wins.
func (s *Store) UpsertIfAbsent(ctx context.Context, tenantID, phrase, itemID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
        INSERT INTO aliases (tenant_id, phrase, item_id, created_at) VALUES ($1, $2, $3, NOW())
        ON CONFLICT (tenant_id, phrase) DO NOTHING`, tenantID, phrase, itemID)
	if err != nil {
		return false, fmt.Errorf("insert alias: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Dispatch implements order.Dispatcher by recording the labels; the print
// worker picks them up from label_records.
func (s *Store) Dispatch(ctx context.Context, tenantID string, labels []order.LabelRequest) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, l := range labels {
			batch.Queue(`
                INSERT INTO label_records (tenant_id, item_id, item_name, method, quantity, phrase, created_at)
                VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
				tenantID, l.ItemID, l.ItemName, l.Method, l.Quantity, l.Phrase)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert label records: %w", err)
		}
		return nil
	})
}
