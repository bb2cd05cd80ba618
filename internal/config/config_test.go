package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	yaml := `
server:
  addr: ":9090"
  read_timeout: 5s
store:
  uri: mongodb://db.internal:27017
  database: mukoko_test
auth:
  shared_secret: topsecret
limits:
  max_find_limit: 200
`
	cfg, err := Load(writeConfig(t, yaml))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Errorf("addr = %q, want %q", cfg.Server.Addr, ":9090")
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("read_timeout = %v, want 5s", cfg.Server.ReadTimeout)
	}
	if cfg.Store.URI != "mongodb://db.internal:27017" {
		t.Errorf("uri = %q", cfg.Store.URI)
	}
	if cfg.Auth.SharedSecret != "topsecret" {
		t.Errorf("shared_secret = %q", cfg.Auth.SharedSecret)
	}
	if cfg.Limits.MaxFindLimit != 200 {
		t.Errorf("max_find_limit = %d, want 200", cfg.Limits.MaxFindLimit)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load(writeConfig(t, "{}"))
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Store.MaxPoolSize != 1 {
		t.Errorf("max_pool_size = %d, want 1", cfg.Store.MaxPoolSize)
	}
	if cfg.Limits.MaxFindLimit != 1000 {
		t.Errorf("max_find_limit = %d, want 1000", cfg.Limits.MaxFindLimit)
	}
	if cfg.Limits.MaxBatchSize != 500 {
		t.Errorf("max_batch_size = %d, want 500", cfg.Limits.MaxBatchSize)
	}
	if len(cfg.Policy.AllowedCollections) != 10 {
		t.Errorf("allowed collections = %d, want 10", len(cfg.Policy.AllowedCollections))
	}
	if cfg.Cache.Enabled {
		t.Error("cache should default to disabled")
	}
	if cfg.Auth.SharedSecret != "" {
		t.Errorf("shared_secret should default empty, got %q", cfg.Auth.SharedSecret)
	}
}

func TestExpandEnv(t *testing.T) {
	// Cannot use t.Parallel() with t.Setenv
	t.Setenv("TEST_GATEWAY_SECRET", "from-env")

	yaml := `
auth:
  shared_secret: ${TEST_GATEWAY_SECRET}
`
	cfg, err := Load(writeConfig(t, yaml))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Auth.SharedSecret != "from-env" {
		t.Errorf("shared_secret = %q, want %q", cfg.Auth.SharedSecret, "from-env")
	}
}

func TestExpandEnvMissingVarKept(t *testing.T) {
	t.Parallel()

	yaml := `
auth:
  shared_secret: ${DEFINITELY_UNSET_VAR_42}
`
	cfg, err := Load(writeConfig(t, yaml))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Auth.SharedSecret != "${DEFINITELY_UNSET_VAR_42}" {
		t.Errorf("shared_secret = %q, want placeholder kept", cfg.Auth.SharedSecret)
	}
}

func TestLoadBadYAML(t *testing.T) {
	t.Parallel()

	if _, err := Load(writeConfig(t, "server: [not a map")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load("/nonexistent/gateway.yaml"); err == nil {
		t.Fatal("expected read error")
	}
}
