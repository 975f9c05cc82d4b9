package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault_Values(t *testing.T) {
	c := Default()
	if c == nil {
		t.Fatal("Default() returned nil")
	}
	if c.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want sqlite", c.Database.Driver)
	}
	if c.Route.JumpRange != 30 {
		t.Errorf("Route.JumpRange = %v, want 30", c.Route.JumpRange)
	}
	if c.Route.HeuristicWeight != 1 {
		t.Errorf("Route.HeuristicWeight = %v, want 1", c.Route.HeuristicWeight)
	}
	if c.Route.MaxExpansions != 100_000 {
		t.Errorf("Route.MaxExpansions = %v, want 100000", c.Route.MaxExpansions)
	}
	if c.Route.Workers != 1 {
		t.Errorf("Route.Workers = %v, want 1", c.Route.Workers)
	}
	if c.Oracle.Backend != "memory" {
		t.Errorf("Oracle.Backend = %q, want memory", c.Oracle.Backend)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v, want nil", err)
	}
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir) // keep a stray .env out of the test
	path := filepath.Join(dir, "galnav.yaml")
	yml := `
database:
  driver: postgres
  dsn: postgres://localhost/galnav?sslmode=disable
route:
  jump_range: 45.5
  timeout: 3s
oracle:
  backend: sql
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GALNAV_ROUTE_WORKERS", "4")
	t.Setenv("GALNAV_CORS_ORIGINS", "http://a.test, http://b.test")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Database.Driver != "postgres" {
		t.Errorf("Database.Driver = %q, want postgres", c.Database.Driver)
	}
	if c.Route.JumpRange != 45.5 {
		t.Errorf("Route.JumpRange = %v, want 45.5", c.Route.JumpRange)
	}
	if c.Route.Timeout != 3*time.Second {
		t.Errorf("Route.Timeout = %v, want 3s", c.Route.Timeout)
	}
	if c.Route.Workers != 4 {
		t.Errorf("Route.Workers = %v, want 4", c.Route.Workers)
	}
	if c.Route.HeuristicWeight != 1 {
		t.Errorf("Route.HeuristicWeight = %v, want default 1", c.Route.HeuristicWeight)
	}
	if len(c.Server.CORSOrigins) != 2 || c.Server.CORSOrigins[1] != "http://b.test" {
		t.Errorf("Server.CORSOrigins = %v, want [http://a.test http://b.test]", c.Server.CORSOrigins)
	}
}

func TestLoad_UnknownYAMLField(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("route:\n  jump_rnage: 10\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load with misspelled key: want error, got nil")
	}
}

func TestLoad_BadEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("GALNAV_ROUTE_JUMP_RANGE", "far")
	_, err := Load("")
	if err == nil || !strings.Contains(err.Error(), "GALNAV_ROUTE_JUMP_RANGE") {
		t.Errorf("Load with bad env = %v, want error naming the variable", err)
	}
}

func TestRouteConfig_Validate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*RouteConfig)
		ok   bool
	}{
		{name: "defaults", mod: func(*RouteConfig) {}, ok: true},
		{name: "zero range", mod: func(r *RouteConfig) { r.JumpRange = 0 }},
		{name: "negative range", mod: func(r *RouteConfig) { r.JumpRange = -1 }},
		{name: "negative weight", mod: func(r *RouteConfig) { r.HeuristicWeight = -0.5 }},
		{name: "zero weight", mod: func(r *RouteConfig) { r.HeuristicWeight = 0 }, ok: true},
		{name: "no workers", mod: func(r *RouteConfig) { r.Workers = 0 }},
		{name: "unbounded expansions", mod: func(r *RouteConfig) { r.MaxExpansions = 0 }, ok: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Default().Route
			tt.mod(&r)
			err := r.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestConfig_ValidateJoinsErrors(t *testing.T) {
	c := Default()
	c.Database.Driver = "mysql"
	c.Oracle.Backend = "redis"
	err := c.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want error")
	}
	for _, want := range []string{"database.driver", "oracle.backend"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate() = %q, want mention of %s", err, want)
		}
	}
}
