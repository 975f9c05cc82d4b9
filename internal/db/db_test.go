package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"galnav/internal/config"
	"galnav/internal/graph"
	"galnav/internal/route"
)

// openTestDB opens an in-memory SQLite DB and runs migrations (for testing only).
func openTestDB(t *testing.T) *DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	d := &DB{sql: sqlDB, driver: "sqlite"}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		t.Fatalf("migrate: %v", err)
	}
	return d
}

var (
	day0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	sol      = graph.System{Addr: 10477373803, Name: "Sol", Pos: graph.Position{X: 0, Y: 0, Z: 0}, UpdatedAt: day0}
	alpha    = graph.System{Addr: 1458376315610, Name: "Alpha Centauri", Pos: graph.Position{X: 3.03125, Y: -0.09375, Z: 3.15625}, UpdatedAt: day0}
	barnard  = graph.System{Addr: 10477373804, Name: "Barnard's Star", Pos: graph.Position{X: -3.03125, Y: 1.375, Z: 4.9375}, UpdatedAt: day0}
	achenar  = graph.System{Addr: 164098653, Name: "Achenar", Pos: graph.Position{X: 67.5, Y: -119.46875, Z: 24.84375}, UpdatedAt: day0}
	solFake  = graph.System{Addr: 42, Name: "SOL", Pos: graph.Position{X: 1000, Y: 0, Z: 0}, UpdatedAt: day0}
	testSeed = []graph.System{sol, alpha, barnard, achenar}
)

func seed(t *testing.T, d *DB, systems ...graph.System) {
	t.Helper()
	if _, err := d.UpsertSystems(context.Background(), systems); err != nil {
		t.Fatalf("UpsertSystems: %v", err)
	}
}

func TestDB_MigrateIsIdempotent(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()

	if err := d.migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	var version int
	if err := d.sql.QueryRow("SELECT MAX(version) FROM schema_version").Scan(&version); err != nil {
		t.Fatal(err)
	}
	if version != 2 {
		t.Errorf("schema version = %d, want 2", version)
	}
}

func TestDB_UpsertAndGet(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()
	ctx := context.Background()

	n, err := d.UpsertSystems(ctx, testSeed)
	if err != nil {
		t.Fatalf("UpsertSystems: %v", err)
	}
	if n != len(testSeed) {
		t.Errorf("UpsertSystems changed = %d, want %d", n, len(testSeed))
	}
	count, err := d.CountSystems(ctx)
	if err != nil || count != 4 {
		t.Errorf("CountSystems = %d, %v; want 4, nil", count, err)
	}

	got, err := d.GetSystem(ctx, alpha.Addr)
	if err != nil {
		t.Fatalf("GetSystem: %v", err)
	}
	if got == nil {
		t.Fatal("GetSystem returned nil")
	}
	if got.Name != alpha.Name || got.Pos != alpha.Pos {
		t.Errorf("GetSystem = %+v, want %+v", *got, alpha)
	}
	if !got.UpdatedAt.Equal(day0) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, day0)
	}

	missing, err := d.GetSystem(ctx, 99999)
	if err != nil || missing != nil {
		t.Errorf("GetSystem(99999) = %v, %v; want nil, nil", missing, err)
	}
}

func TestDB_UpsertKeepsNewerRecord(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()
	ctx := context.Background()
	seed(t, d, sol)

	stale := sol
	stale.Pos = graph.Position{X: 9}
	stale.UpdatedAt = day0.Add(-time.Hour)
	n, err := d.UpsertSystems(ctx, []graph.System{stale})
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("stale upsert changed = %d, want 0", n)
	}
	got, _ := d.GetSystem(ctx, sol.Addr)
	if got.Pos != sol.Pos {
		t.Errorf("Pos after stale upsert = %v, want %v", got.Pos, sol.Pos)
	}

	fresh := sol
	fresh.Name = "Sol (corrected)"
	fresh.UpdatedAt = day0.Add(time.Hour)
	if _, err := d.UpsertSystems(ctx, []graph.System{fresh}); err != nil {
		t.Fatal(err)
	}
	got, _ = d.GetSystem(ctx, sol.Addr)
	if got.Name != fresh.Name {
		t.Errorf("Name after fresh upsert = %q, want %q", got.Name, fresh.Name)
	}
}

func TestDB_GetSystemByName(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()
	ctx := context.Background()
	seed(t, d, append(testSeed, solFake)...)

	got, err := d.GetSystemByName(ctx, "  sol ")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Addr != solFake.Addr {
		t.Errorf("GetSystemByName(sol) = %+v, want address %d (lowest)", got, solFake.Addr)
	}
	got, err = d.GetSystemByName(ctx, "Nowhere")
	if err != nil || got != nil {
		t.Errorf("GetSystemByName(Nowhere) = %v, %v; want nil, nil", got, err)
	}
}

func TestDB_SearchSystems(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()
	ctx := context.Background()
	seed(t, d, testSeed...)

	got, err := d.SearchSystems(ctx, "a", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Name != "Achenar" || got[1].Name != "Alpha Centauri" {
		t.Errorf("SearchSystems(a) = %v, want [Achenar, Alpha Centauri]", got)
	}
	got, _ = d.SearchSystems(ctx, "a", 1)
	if len(got) != 1 {
		t.Errorf("SearchSystems limit 1 len = %d", len(got))
	}
	got, _ = d.SearchSystems(ctx, "%", 10)
	if len(got) != 0 {
		t.Errorf("SearchSystems(%%) = %v, want none", got)
	}
}

func TestDB_NeighborsSphere(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()
	ctx := context.Background()
	seed(t, d, testSeed...)

	got, err := d.Neighbors(ctx, sol.Pos, 5)
	if err != nil {
		t.Fatal(err)
	}
	// Alpha Centauri is ~4.38 ly away; Barnard's Star ~5.96 ly sits inside
	// the bounding box but outside the sphere.
	if len(got) != 2 || got[0].Addr != sol.Addr || got[1].Addr != alpha.Addr {
		t.Errorf("Neighbors(Sol, 5) = %v, want [Sol, Alpha Centauri]", got)
	}

	got, _ = d.Neighbors(ctx, sol.Pos, 6)
	if len(got) != 3 {
		t.Errorf("Neighbors(Sol, 6) len = %d, want 3", len(got))
	}
}

func TestDB_DrivesFinder(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()
	seed(t, d, testSeed...)

	f := route.NewFinder[graph.System](d)
	r, found, err := f.RouteTo(context.Background(), alpha, barnard, 10)
	if err != nil || !found {
		t.Fatalf("RouteTo = found %v, err %v", found, err)
	}
	if r.Cost != 1 {
		t.Errorf("Cost = %v, want 1", r.Cost)
	}

	_, found, err = f.RouteTo(context.Background(), sol, achenar, 10)
	if err != nil || found {
		t.Errorf("RouteTo(Achenar) = found %v, err %v; want no route", found, err)
	}
}

func TestDB_RouteConfigRoundTrip(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()
	ctx := context.Background()

	defaults := config.Default().Route
	if got := d.LoadRouteConfig(ctx, defaults); got != defaults {
		t.Errorf("LoadRouteConfig on empty store = %+v, want defaults", got)
	}

	want := config.RouteConfig{
		JumpRange:       52.5,
		HeuristicWeight: 1.5,
		MaxExpansions:   5000,
		Workers:         4,
		Timeout:         2500 * time.Millisecond,
	}
	if err := d.SaveRouteConfig(ctx, want); err != nil {
		t.Fatalf("SaveRouteConfig: %v", err)
	}
	if got := d.LoadRouteConfig(ctx, defaults); got != want {
		t.Errorf("LoadRouteConfig = %+v, want %+v", got, want)
	}

	want.JumpRange = 60
	if err := d.SaveRouteConfig(ctx, want); err != nil {
		t.Fatalf("SaveRouteConfig overwrite: %v", err)
	}
	if got := d.LoadRouteConfig(ctx, defaults); got.JumpRange != 60 {
		t.Errorf("JumpRange after overwrite = %v, want 60", got.JumpRange)
	}
}

func TestDB_RouteConfigInvalidFallsBack(t *testing.T) {
	d := openTestDB(t)
	defer d.Close()
	ctx := context.Background()

	if _, err := d.sql.Exec("INSERT INTO config (key, value) VALUES ('jump_range', '-3')"); err != nil {
		t.Fatal(err)
	}
	defaults := config.Default().Route
	if got := d.LoadRouteConfig(ctx, defaults); got != defaults {
		t.Errorf("LoadRouteConfig with invalid stored range = %+v, want defaults", got)
	}
}

func TestRebind(t *testing.T) {
	pg := &DB{driver: "postgres"}
	got := pg.rebind("SELECT * FROM systems WHERE x BETWEEN ? AND ? LIMIT ?")
	want := "SELECT * FROM systems WHERE x BETWEEN $1 AND $2 LIMIT $3"
	if got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}
	lite := &DB{driver: "sqlite"}
	if q := "SELECT ?"; lite.rebind(q) != q {
		t.Errorf("sqlite rebind changed query")
	}
}

func TestOpen_RejectsUnknownDriver(t *testing.T) {
	if _, err := Open("mysql", "whatever"); err == nil {
		t.Error("Open(mysql) = nil error, want error")
	}
}

func TestOpen_SQLiteFile(t *testing.T) {
	path := t.TempDir() + "/galnav.db"
	d, err := Open("sqlite", path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	seed(t, d, sol)
	d.Close()

	d, err = Open("sqlite", path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer d.Close()
	if n, _ := d.CountSystems(context.Background()); n != 1 {
		t.Errorf("CountSystems after reopen = %d, want 1", n)
	}
}
