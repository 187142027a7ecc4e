package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate points every lookup Load performs at temporary locations.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_CACHE_HOME", filepath.Join(dir, "cache"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	for _, k := range []string{EnvAPIURL, EnvAPIToken, EnvRedisURL, EnvMongoURI, EnvAddr} {
		t.Setenv(k, "")
	}
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDefaultIsValid(t *testing.T) {
	isolate(t)
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestLoadMissingDefaultFile(t *testing.T) {
	dir := isolate(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") = %v", err)
	}
	if want := filepath.Join(dir, "cache", "maxreward"); cfg.Cache.Dir != want {
		t.Errorf("Cache.Dir = %q, want %q", cfg.Cache.Dir, want)
	}
	if want := filepath.Join(dir, "data", "maxreward", "snapshots.db"); cfg.Store.Path != want {
		t.Errorf("Store.Path = %q, want %q", cfg.Store.Path, want)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	dir := isolate(t)
	if _, err := Load(filepath.Join(dir, "nope.toml")); err == nil {
		t.Error("Load() of a missing explicit file should fail")
	}
}

func TestLoadTOML(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "maxreward.toml")
	writeFile(t, path, `
[api]
base_url = "https://api.maxreward.example"
token = "secret"
timeout = "3s"
rate_limit = 5.0
burst = 2

[cache]
backend = "none"

[server]
addr = ":9090"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.API.BaseURL != "https://api.maxreward.example" || cfg.API.Token != "secret" {
		t.Errorf("API = %+v", cfg.API)
	}
	if cfg.API.Timeout != 3*time.Second {
		t.Errorf("API.Timeout = %v, want 3s", cfg.API.Timeout)
	}
	if cfg.Cache.Backend != BackendNone {
		t.Errorf("Cache.Backend = %q", cfg.Cache.Backend)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	// untouched sections keep defaults
	if cfg.Store.Backend != BackendBolt || cfg.API.TreePath != "/api/member/referral-tree/{id}" {
		t.Errorf("defaults lost: store=%q tree_path=%q", cfg.Store.Backend, cfg.API.TreePath)
	}

	ac := cfg.APIClientConfig()
	if ac.RateLimit != 5 || ac.Burst != 2 || ac.CacheTTL != 10*time.Minute {
		t.Errorf("APIClientConfig() = %+v", ac)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "maxreward.yaml")
	writeFile(t, path, `
api:
  base_url: http://localhost:8000
  tree_path: /v2/tree/{id}
store:
  backend: mongo
  mongo_uri: mongodb://localhost:27017
cache:
  ttl: 90s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.API.TreePath != "/v2/tree/{id}" {
		t.Errorf("API.TreePath = %q", cfg.API.TreePath)
	}
	if cfg.Store.Backend != BackendMongo || cfg.Store.MongoDatabase != "maxreward" {
		t.Errorf("Store = %+v", cfg.Store)
	}
	if cfg.Cache.TTL != 90*time.Second {
		t.Errorf("Cache.TTL = %v", cfg.Cache.TTL)
	}
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "maxreward.ini")
	writeFile(t, path, "x=1")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported config format") {
		t.Errorf("Load() error = %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv(EnvAPIURL, "https://override.example")
	t.Setenv(EnvRedisURL, "redis://localhost:6379/0")
	t.Setenv(EnvMongoURI, "mongodb://localhost:27017")
	t.Setenv(EnvAddr, "127.0.0.1:7000")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.API.BaseURL != "https://override.example" {
		t.Errorf("API.BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.Cache.Backend != BackendRedis || cfg.Cache.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if cfg.Store.Backend != BackendMongo {
		t.Errorf("Store.Backend = %q", cfg.Store.Backend)
	}
	if cfg.Server.Addr != "127.0.0.1:7000" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := isolate(t)
	os.Unsetenv(EnvAPIToken)
	t.Cleanup(func() { os.Unsetenv(EnvAPIToken) })
	writeFile(t, filepath.Join(dir, ".env"), EnvAPIToken+"=from-dotenv\n")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.API.Token != "from-dotenv" {
		t.Errorf("API.Token = %q, want from-dotenv", cfg.API.Token)
	}
}

func TestValidateCollectsAllProblems(t *testing.T) {
	isolate(t)
	cfg := Default()
	cfg.API.BaseURL = "ftp://nope"
	cfg.API.TreePath = "/tree"
	cfg.Cache.Backend = "memcached"
	cfg.Store.Backend = BackendMongo
	cfg.Server.Addr = ""

	err := cfg.Validate()
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("Validate() = %v, want ErrInvalid", err)
	}
	var ve ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Validate() error type = %T", err)
	}

	fields := make(map[string]bool)
	for _, item := range ve.Items {
		fields[item.Field] = true
	}
	for _, f := range []string{"api.base_url", "api.tree_path", "cache.backend", "store.mongo_uri", "server.addr"} {
		if !fields[f] {
			t.Errorf("missing problem for %s in %v", f, ve.Items)
		}
	}
}
