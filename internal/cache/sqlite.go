package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite is the persistent Store backing incremental builds across
// compiler invocations.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the cache database at path and ensures
// the schema exists. ":memory:" works for throwaway stores.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}
	// The pure-Go driver returns SQLITE_BUSY under concurrent writers;
	// a single connection serializes commits from the worker pool.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache schema: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	schema := `
	PRAGMA journal_mode = WAL;

	CREATE TABLE IF NOT EXISTS units (
		unit_id     TEXT PRIMARY KEY,
		hash        TEXT NOT NULL,
		render_path TEXT NOT NULL DEFAULT '',
		style_path  TEXT NOT NULL DEFAULT '',
		deps        TEXT NOT NULL DEFAULT '[]',
		export      TEXT NOT NULL DEFAULT '{}',
		pass_id     TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLite) Load(ctx context.Context) (map[string]*Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT unit_id, hash, render_path, style_path, deps, export, pass_id, updated_at FROM units`)
	if err != nil {
		return nil, fmt.Errorf("load cache entries: %w", err)
	}
	defer rows.Close()

	out := map[string]*Entry{}
	for rows.Next() {
		var e Entry
		var deps, export, updatedAt string
		if err := rows.Scan(&e.UnitID, &e.Hash, &e.RenderPath, &e.StylePath, &deps, &export, &e.PassID, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		if err := json.Unmarshal([]byte(deps), &e.Deps); err != nil {
			return nil, fmt.Errorf("decode deps for %s: %w", e.UnitID, err)
		}
		if err := json.Unmarshal([]byte(export), &e.Export); err != nil {
			return nil, fmt.Errorf("decode export for %s: %w", e.UnitID, err)
		}
		when, err := time.Parse(time.RFC3339Nano, updatedAt)
		if err != nil {
			return nil, fmt.Errorf("decode updated_at for %s: %w", e.UnitID, err)
		}
		e.UpdatedAt = when
		out[e.UnitID] = &e
	}
	return out, rows.Err()
}

func (s *SQLite) Put(ctx context.Context, e *Entry) error {
	deps, err := json.Marshal(depsOrEmpty(e.Deps))
	if err != nil {
		return fmt.Errorf("encode deps for %s: %w", e.UnitID, err)
	}
	export, err := json.Marshal(e.Export)
	if err != nil {
		return fmt.Errorf("encode export for %s: %w", e.UnitID, err)
	}

	_, err = s.db.ExecContext(ctx, `
	INSERT INTO units (unit_id, hash, render_path, style_path, deps, export, pass_id, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(unit_id) DO UPDATE SET
		hash = excluded.hash,
		render_path = excluded.render_path,
		style_path = excluded.style_path,
		deps = excluded.deps,
		export = excluded.export,
		pass_id = excluded.pass_id,
		updated_at = excluded.updated_at`,
		e.UnitID, e.Hash, e.RenderPath, e.StylePath, string(deps), string(export),
		e.PassID, e.UpdatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("store cache entry for %s: %w", e.UnitID, err)
	}
	return nil
}

func (s *SQLite) Delete(ctx context.Context, unitIDs ...string) error {
	if len(unitIDs) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(unitIDs)), ", ")
	args := make([]any, len(unitIDs))
	for i, id := range unitIDs {
		args[i] = id
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM units WHERE unit_id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("delete cache entries: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func depsOrEmpty(deps []string) []string {
	if deps == nil {
		return []string{}
	}
	return deps
}
