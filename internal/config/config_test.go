// SPDX-License-Identifier: MPL-2.0

package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"fibr-cli/internal/conftree"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config fixture: %v", err)
	}
	return path
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	SetConfigDirOverride(t.TempDir())
	defer SetConfigDirOverride("")

	cfg, err := Load(LoadOptions{})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PoolSize != 4 || cfg.Concurrency != 4 {
		t.Errorf("expected default pool/concurrency 4/4, got %d/%d", cfg.PoolSize, cfg.Concurrency)
	}
	if cfg.CheckTimeout != 10*time.Second {
		t.Errorf("expected default check timeout 10s, got %s", cfg.CheckTimeout)
	}
	if cfg.CacheTTL != 24*time.Hour {
		t.Errorf("expected default cache TTL 24h, got %s", cfg.CacheTTL)
	}
}

func TestLoad_ExplicitFile(t *testing.T) {
	t.Parallel()
	path := writeConfig(t, `
root: /srv/devenv
pool_size: 8
concurrency: 6
check_timeout: 3s
modules:
  db:
    enabled: false
    moduleConfig:
      migrate:
        enabled: true
`)

	cfg, err := Load(LoadOptions{ConfigFilePath: path})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Root != "/srv/devenv" {
		t.Errorf("root = %q", cfg.Root)
	}
	if cfg.PoolSize != 8 || cfg.Concurrency != 6 {
		t.Errorf("pool/concurrency = %d/%d", cfg.PoolSize, cfg.Concurrency)
	}
	if cfg.CheckTimeout != 3*time.Second {
		t.Errorf("check_timeout = %s", cfg.CheckTimeout)
	}

	ov, ok := cfg.Modules["db"]
	if !ok || ov.Enabled == nil || *ov.Enabled {
		t.Fatalf("expected db override enabled=false, got %+v", ov)
	}
}

func TestLoad_MissingExplicitFileIsFatal(t *testing.T) {
	t.Parallel()
	_, err := Load(LoadOptions{ConfigFilePath: filepath.Join(t.TempDir(), "nope.yaml")})
	if err == nil {
		t.Fatal("expected error for unreadable explicit config")
	}
}

func TestOverrideTree(t *testing.T) {
	t.Parallel()
	enabled := false
	cfg := &Config{Modules: map[string]ModuleOverride{
		"db": {
			Enabled: &enabled,
			ModuleConfig: map[string]any{
				"migrate": map[string]any{
					"enabled":      true,
					"moduleConfig": map[string]any{"seed": map[string]any{"enabled": false}},
				},
			},
		},
	}}

	fiber := cfg.OverrideTree([]string{"db"})
	if got := fiber["enabled"]; got != false {
		t.Errorf("fiber override enabled = %v, want false", got)
	}

	chain := cfg.OverrideTree([]string{"db", "migrate"})
	want := conftree.Tree{
		"enabled":      true,
		"moduleConfig": map[string]any{"seed": map[string]any{"enabled": false}},
	}
	if !reflect.DeepEqual(chain, want) {
		t.Errorf("chain override = %v, want %v", chain, want)
	}

	nested := cfg.OverrideTree([]string{"db", "migrate", "seed"})
	if got := nested["enabled"]; got != false {
		t.Errorf("nested override enabled = %v, want false", got)
	}

	if got := cfg.OverrideTree([]string{"cache"}); got != nil {
		t.Errorf("expected nil for un-overridden module, got %v", got)
	}
	if got := cfg.OverrideTree([]string{"db", "missing"}); got != nil {
		t.Errorf("expected nil for missing chain override, got %v", got)
	}
}
