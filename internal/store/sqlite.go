// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure Go driver

	"github.com/metatree-dev/metatree/internal/model"
)

const catalogSchemaVersion = 1

// SQLiteConfig defines the SQLite operational parameters.
type SQLiteConfig struct {
	BusyTimeout  time.Duration
	MaxOpenConns int
}

// DefaultSQLiteConfig returns the recommended pool configuration.
func DefaultSQLiteConfig() SQLiteConfig {
	return SQLiteConfig{
		BusyTimeout:  5 * time.Second,
		MaxOpenConns: 25,
	}
}

// openSQLite initializes a connection pool with the mandatory PRAGMAs in
// the DSN so they apply to every connection: WAL journal, busy timeout,
// NORMAL sync and foreign keys.
func openSQLite(dbPath string, cfg SQLiteConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)",
		dbPath, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(1 * time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: sqlite ping: %w", err)
	}
	return db, nil
}

// Catalog is the queryable reaction index. The full record is kept as a
// JSON payload column; the indexed columns exist for lookups and listings.
type Catalog struct {
	db *sql.DB
}

// OpenCatalog opens the catalog database and applies the schema.
func OpenCatalog(dbPath string, cfg SQLiteConfig) (*Catalog, error) {
	db, err := openSQLite(dbPath, cfg)
	if err != nil {
		return nil, err
	}
	c := &Catalog{db: db}
	if err := c.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: catalog migration: %w", err)
	}
	return c, nil
}

func (c *Catalog) Close() error { return c.db.Close() }

func (c *Catalog) migrate() error {
	var currentVersion int
	if err := c.db.QueryRow("PRAGMA user_version").Scan(&currentVersion); err != nil {
		return err
	}
	if currentVersion >= catalogSchemaVersion {
		return nil
	}

	tx, err := c.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS reactions (
		uid TEXT PRIMARY KEY,
		dataset TEXT NOT NULL,
		name TEXT,
		canonical_smiles TEXT NOT NULL,
		template_uid TEXT,
		payload TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reactions_dataset ON reactions(dataset);
	CREATE INDEX IF NOT EXISTS idx_reactions_template ON reactions(template_uid);
	`
	if _, err := tx.Exec(schema); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", catalogSchemaVersion)); err != nil {
		return err
	}
	return tx.Commit()
}

// UpsertReaction inserts or replaces one reaction by UID.
func (c *Catalog) UpsertReaction(ctx context.Context, r *model.ChemicalReaction) error {
	if r.UID == "" {
		return fmt.Errorf("store: reaction %q has no UID", r.Name)
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("store: encode reaction %s: %w", r.UID, err)
	}
	var templateUID sql.NullString
	if r.Template != nil && r.Template.UID != "" {
		templateUID = sql.NullString{String: r.Template.UID, Valid: true}
	}
	query := `
	INSERT INTO reactions (uid, dataset, name, canonical_smiles, template_uid, payload, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(uid) DO UPDATE SET
		dataset = excluded.dataset,
		name = excluded.name,
		canonical_smiles = excluded.canonical_smiles,
		template_uid = excluded.template_uid,
		payload = excluded.payload,
		updated_at = excluded.updated_at
	`
	_, err = c.db.ExecContext(ctx, query,
		r.UID, r.Dataset, r.Name, r.CanonicalSmiles, templateUID, string(payload), time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// UpsertReactions upserts a batch inside one transaction.
func (c *Catalog) UpsertReactions(ctx context.Context, reactions []model.ChemicalReaction) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	query := `
	INSERT INTO reactions (uid, dataset, name, canonical_smiles, template_uid, payload, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(uid) DO UPDATE SET
		dataset = excluded.dataset,
		name = excluded.name,
		canonical_smiles = excluded.canonical_smiles,
		template_uid = excluded.template_uid,
		payload = excluded.payload,
		updated_at = excluded.updated_at
	`
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for i := range reactions {
		r := &reactions[i]
		if r.UID == "" {
			return fmt.Errorf("store: reaction %q has no UID", r.Name)
		}
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("store: encode reaction %s: %w", r.UID, err)
		}
		var templateUID sql.NullString
		if r.Template != nil && r.Template.UID != "" {
			templateUID = sql.NullString{String: r.Template.UID, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, r.UID, r.Dataset, r.Name, r.CanonicalSmiles, templateUID, string(payload), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetReaction loads one reaction by UID. Returns ErrNotFound for unknown UIDs.
func (c *Catalog) GetReaction(ctx context.Context, uid string) (*model.ChemicalReaction, error) {
	var payload string
	err := c.db.QueryRowContext(ctx, `SELECT payload FROM reactions WHERE uid = ?`, uid).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: reaction %s", ErrNotFound, uid)
	}
	if err != nil {
		return nil, err
	}
	var r model.ChemicalReaction
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, fmt.Errorf("store: decode reaction %s: %w", uid, err)
	}
	return &r, nil
}

// ListReactions returns the reactions of one dataset, or all datasets when
// dataset is empty, ordered by UID.
func (c *Catalog) ListReactions(ctx context.Context, dataset string) ([]model.ChemicalReaction, error) {
	query := `SELECT payload FROM reactions ORDER BY uid`
	args := []any{}
	if dataset != "" {
		query = `SELECT payload FROM reactions WHERE dataset = ? ORDER BY uid`
		args = append(args, dataset)
	}
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ChemicalReaction
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var r model.ChemicalReaction
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("store: decode reaction: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountReactions returns the catalog size.
func (c *Catalog) CountReactions(ctx context.Context) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reactions`).Scan(&n)
	return n, err
}
