package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"galnav/internal/graph"
)

const systemColumns = "address, name, x, y, z, updated_at"

// UpsertSystems inserts or updates systems in one transaction and returns
// how many rows changed. An existing row is only overwritten by a record
// that is at least as recent; systems with invalid coordinates are skipped.
func (d *DB) UpsertSystems(ctx context.Context, systems []graph.System) (int, error) {
	if len(systems) == 0 {
		return 0, nil
	}
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, d.rebind(`
		INSERT INTO systems (address, name, name_lower, x, y, z, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (address) DO UPDATE SET
			name = excluded.name,
			name_lower = excluded.name_lower,
			x = excluded.x,
			y = excluded.y,
			z = excluded.z,
			updated_at = excluded.updated_at
		WHERE excluded.updated_at >= systems.updated_at`))
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	changed := 0
	for _, s := range systems {
		if !s.Pos.Valid() {
			continue
		}
		res, err := stmt.ExecContext(ctx,
			s.Addr, s.Name, strings.ToLower(s.Name),
			s.Pos.X, s.Pos.Y, s.Pos.Z, unixTime(s.UpdatedAt))
		if err != nil {
			return 0, fmt.Errorf("upsert system %d: %w", s.Addr, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			changed += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return changed, nil
}

// GetSystem returns the system with the given address, or nil.
func (d *DB) GetSystem(ctx context.Context, address int64) (*graph.System, error) {
	row := d.sql.QueryRowContext(ctx, d.rebind("SELECT "+systemColumns+" FROM systems WHERE address = ?"), address)
	return scanOne(row)
}

// GetSystemByName resolves a name case-insensitively, or returns nil. When
// several systems share a name the lowest address wins.
func (d *DB) GetSystemByName(ctx context.Context, name string) (*graph.System, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, nil
	}
	row := d.sql.QueryRowContext(ctx,
		d.rebind("SELECT "+systemColumns+" FROM systems WHERE name_lower = ? ORDER BY address LIMIT 1"), key)
	return scanOne(row)
}

// SearchSystems returns up to limit systems whose name starts with prefix.
func (d *DB) SearchSystems(ctx context.Context, prefix string, limit int) ([]graph.System, error) {
	key := strings.ToLower(strings.TrimSpace(prefix))
	if key == "" || limit <= 0 {
		return nil, nil
	}
	// Range scan instead of LIKE so the name index is used and wildcards in
	// user input stay literal.
	rows, err := d.sql.QueryContext(ctx, d.rebind(
		"SELECT "+systemColumns+" FROM systems WHERE name_lower >= ? AND name_lower < ? ORDER BY name_lower, address LIMIT ?"),
		key, key+"\U0010FFFF", limit)
	if err != nil {
		return nil, err
	}
	return scanAll(rows)
}

// CountSystems returns the number of stored systems.
func (d *DB) CountSystems(ctx context.Context) (int, error) {
	var n int
	err := d.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM systems").Scan(&n)
	return n, err
}

// AllSystems loads the whole catalog, ordered by address.
func (d *DB) AllSystems(ctx context.Context) ([]graph.System, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT "+systemColumns+" FROM systems ORDER BY address")
	if err != nil {
		return nil, err
	}
	return scanAll(rows)
}

// Neighbors implements route.Oracle over the systems table: a bounding-box
// query narrowed to the exact sphere, ordered by address.
func (d *DB) Neighbors(ctx context.Context, center graph.Position, radius float64) ([]graph.System, error) {
	if radius < 0 {
		return nil, nil
	}
	rows, err := d.sql.QueryContext(ctx, d.rebind(
		"SELECT "+systemColumns+" FROM systems WHERE x BETWEEN ? AND ? AND y BETWEEN ? AND ? AND z BETWEEN ? AND ?"),
		center.X-radius, center.X+radius,
		center.Y-radius, center.Y+radius,
		center.Z-radius, center.Z+radius)
	if err != nil {
		return nil, err
	}
	box, err := scanAll(rows)
	if err != nil {
		return nil, err
	}
	out := box[:0]
	for _, s := range box {
		if s.Pos.DistanceTo(center) <= radius {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSystem(sc scanner) (graph.System, error) {
	var s graph.System
	var updated int64
	if err := sc.Scan(&s.Addr, &s.Name, &s.Pos.X, &s.Pos.Y, &s.Pos.Z, &updated); err != nil {
		return s, err
	}
	if updated > 0 {
		s.UpdatedAt = time.Unix(updated, 0).UTC()
	}
	return s, nil
}

func scanOne(row *sql.Row) (*graph.System, error) {
	s, err := scanSystem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanAll(rows *sql.Rows) ([]graph.System, error) {
	defer rows.Close()
	var out []graph.System
	for rows.Next() {
		s, err := scanSystem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func unixTime(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
