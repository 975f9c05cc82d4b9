package db

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"galnav/internal/config"
)

// LoadRouteConfig overlays the stored route preferences on defaults.
// Unreadable or malformed values keep the default.
func (d *DB) LoadRouteConfig(ctx context.Context, defaults config.RouteConfig) config.RouteConfig {
	cfg := defaults

	rows, err := d.sql.QueryContext(ctx, "SELECT key, value FROM config")
	if err != nil {
		log.Printf("[DB] LoadRouteConfig: %v", err)
		return cfg
	}
	defer rows.Close()

	m := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			continue
		}
		m[k] = v
	}
	if len(m) == 0 {
		return cfg
	}

	if v, ok := m["jump_range"]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.JumpRange = f
		}
	}
	if v, ok := m["heuristic_weight"]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.HeuristicWeight = f
		}
	}
	if v, ok := m["max_expansions"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxExpansions = n
		}
	}
	if v, ok := m["workers"]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}
	if v, ok := m["timeout"]; ok {
		if t, err := time.ParseDuration(v); err == nil {
			cfg.Timeout = t
		}
	}

	if err := cfg.Validate(); err != nil {
		log.Printf("[DB] Stored route config is invalid, using defaults: %v", err)
		return defaults
	}
	return cfg
}

// SaveRouteConfig writes the route preferences (upsert all fields).
func (d *DB) SaveRouteConfig(ctx context.Context, cfg config.RouteConfig) error {
	pairs := map[string]string{
		"jump_range":       strconv.FormatFloat(cfg.JumpRange, 'g', -1, 64),
		"heuristic_weight": strconv.FormatFloat(cfg.HeuristicWeight, 'g', -1, 64),
		"max_expansions":   strconv.Itoa(cfg.MaxExpansions),
		"workers":          strconv.Itoa(cfg.Workers),
		"timeout":          cfg.Timeout.String(),
	}

	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, d.rebind(
		"INSERT INTO config (key, value) VALUES (?, ?) ON CONFLICT (key) DO UPDATE SET value = excluded.value"))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for k, v := range pairs {
		if _, err := stmt.ExecContext(ctx, k, v); err != nil {
			return fmt.Errorf("save config %s: %w", k, err)
		}
	}
	return tx.Commit()
}
