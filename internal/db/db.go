package db

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"galnav/internal/logger"
)

const sqlitePragmas = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

// DB wraps the system catalog store. SQLite is the default; Postgres is
// supported for shared deployments.
type DB struct {
	sql    *sql.DB
	driver string
}

// Open opens (or creates) the database and runs migrations. For sqlite the
// dsn is a file path (or ":memory:"); for postgres it is a lib/pq
// connection string.
func Open(driver, dsn string) (*DB, error) {
	source := dsn
	switch driver {
	case "sqlite":
		if !strings.Contains(dsn, "?") {
			source = dsn + "?" + sqlitePragmas
		}
	case "postgres":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	sqlDB, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if driver == "sqlite" && strings.HasPrefix(dsn, ":memory:") {
		// Every connection would otherwise see its own empty database.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	d := &DB{sql: sqlDB, driver: driver}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	logger.Success("DB", fmt.Sprintf("Opened %s (%s)", redact(driver, dsn), driver))
	return d, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

// Driver returns the database/sql driver name.
func (d *DB) Driver() string { return d.driver }

func (d *DB) migrate() error {
	version := 0
	// Missing table on a fresh database leaves version at 0.
	d.sql.QueryRow("SELECT version FROM schema_version ORDER BY version DESC LIMIT 1").Scan(&version)

	if version < 1 {
		_, err := d.sql.Exec(`
			CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY);

			CREATE TABLE IF NOT EXISTS config (
				key   TEXT PRIMARY KEY,
				value TEXT NOT NULL
			);

			CREATE TABLE IF NOT EXISTS systems (
				address    BIGINT PRIMARY KEY,
				name       TEXT NOT NULL,
				name_lower TEXT NOT NULL,
				x          DOUBLE PRECISION NOT NULL,
				y          DOUBLE PRECISION NOT NULL,
				z          DOUBLE PRECISION NOT NULL,
				updated_at BIGINT NOT NULL DEFAULT 0
			);
			CREATE INDEX IF NOT EXISTS idx_systems_name ON systems(name_lower);

			INSERT INTO schema_version (version) VALUES (1) ON CONFLICT DO NOTHING;
		`)
		if err != nil {
			return fmt.Errorf("migration v1: %w", err)
		}
		logger.Info("DB", "Applied migration v1")
	}

	if version < 2 {
		_, err := d.sql.Exec(`
			CREATE INDEX IF NOT EXISTS idx_systems_xyz ON systems(x, y, z);

			INSERT INTO schema_version (version) VALUES (2) ON CONFLICT DO NOTHING;
		`)
		if err != nil {
			return fmt.Errorf("migration v2: %w", err)
		}
		logger.Info("DB", "Applied migration v2 (spatial index)")
	}

	return nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (d *DB) rebind(query string) string {
	if d.driver != "postgres" {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// redact hides credentials in a postgres connection string for logging.
func redact(driver, dsn string) string {
	if driver != "postgres" {
		return dsn
	}
	if at := strings.LastIndex(dsn, "@"); at >= 0 {
		if scheme := strings.Index(dsn, "://"); scheme >= 0 && scheme < at {
			return dsn[:scheme+3] + "***" + dsn[at:]
		}
	}
	return "postgres"
}
