package source

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"submux/internal/config/schema"
)

func TestDefaultSource(t *testing.T) {
	s := NewDefaultSource()
	if s.Name() != "defaults" || s.Priority() != PriorityDefaults {
		t.Fatalf("unexpected identity %s/%d", s.Name(), s.Priority())
	}

	cfg := &schema.Root{}
	if err := s.LoadInto(cfg); err != nil {
		t.Fatalf("LoadInto() error = %v", err)
	}
	if cfg.Broker.Type != schema.BrokerMemory {
		t.Errorf("Broker.Type = %q, want %q", cfg.Broker.Type, schema.BrokerMemory)
	}
	if cfg.Mux.ReadyTimeout != 10*time.Second {
		t.Errorf("Mux.ReadyTimeout = %v, want 10s", cfg.Mux.ReadyTimeout)
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want /metrics", cfg.Metrics.Path)
	}
}

func TestEnvSource_LoadInto(t *testing.T) {
	t.Setenv("SUBMUX_BROKER_TYPE", "redis")
	t.Setenv("SUBMUX_REDIS_ADDRS", "a:6379, b:6379,")
	t.Setenv("SUBMUX_REDIS_PASSWORD", "hunter22")
	t.Setenv("SUBMUX_REDIS_CLUSTER_MODE", "true")
	t.Setenv("SUBMUX_MUX_READY_TIMEOUT", "3s")
	t.Setenv("SUBMUX_MUX_WORKERS", "8")
	t.Setenv("SUBMUX_LOG_LEVEL", "debug")

	cfg := &schema.Root{}
	s := NewEnvSource("SUBMUX")
	if s.Name() != "env" || s.Priority() != PriorityEnv {
		t.Fatalf("unexpected identity %s/%d", s.Name(), s.Priority())
	}
	if err := s.LoadInto(cfg); err != nil {
		t.Fatalf("LoadInto() error = %v", err)
	}

	if cfg.Broker.Type != "redis" {
		t.Errorf("Broker.Type = %q, want redis", cfg.Broker.Type)
	}
	if len(cfg.Broker.Redis.Addrs) != 2 || cfg.Broker.Redis.Addrs[1] != "b:6379" {
		t.Errorf("Redis.Addrs = %v", cfg.Broker.Redis.Addrs)
	}
	if cfg.Broker.Redis.Password.Value() != "hunter22" {
		t.Errorf("Redis.Password not loaded")
	}
	if !cfg.Broker.Redis.ClusterMode {
		t.Error("Redis.ClusterMode should be true")
	}
	if cfg.Mux.ReadyTimeout != 3*time.Second {
		t.Errorf("Mux.ReadyTimeout = %v, want 3s", cfg.Mux.ReadyTimeout)
	}
	if cfg.Mux.Workers != 8 {
		t.Errorf("Mux.Workers = %d, want 8", cfg.Mux.Workers)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestEnvSource_InvalidValuesIgnored(t *testing.T) {
	t.Setenv("SUBMUX_MUX_WORKERS", "many")
	t.Setenv("SUBMUX_MUX_READY_TIMEOUT", "soon")

	cfg := &schema.Root{}
	cfg.Mux.Workers = 2
	cfg.Mux.ReadyTimeout = time.Second
	if err := NewEnvSource("SUBMUX").LoadInto(cfg); err != nil {
		t.Fatalf("LoadInto() error = %v", err)
	}
	if cfg.Mux.Workers != 2 || cfg.Mux.ReadyTimeout != time.Second {
		t.Errorf("invalid env values should keep previous values, got %d/%v", cfg.Mux.Workers, cfg.Mux.ReadyTimeout)
	}
}

func TestYAMLSource_LoadInto(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "submux.yaml")
	content := `
broker:
  type: embedded
  redis:
    password: secretpw
mux:
  lazy_start: true
  ready_timeout: 2s
metrics:
  enabled: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := &schema.Root{}
	if err := NewDefaultSource().LoadInto(cfg); err != nil {
		t.Fatal(err)
	}
	s := NewYAMLSource(path, filepath.Join(dir, "missing.yaml"))
	if err := s.LoadInto(cfg); err != nil {
		t.Fatalf("LoadInto() error = %v", err)
	}

	if cfg.Broker.Type != schema.BrokerEmbedded {
		t.Errorf("Broker.Type = %q, want embedded", cfg.Broker.Type)
	}
	if !cfg.Mux.LazyStart || cfg.Mux.ReadyTimeout != 2*time.Second {
		t.Errorf("Mux = %+v", cfg.Mux)
	}
	if cfg.Broker.Redis.Password.String() != "******" {
		t.Errorf("Password should be masked, got %q", cfg.Broker.Redis.Password.String())
	}
	if cfg.Broker.Redis.PoolSize != 10 {
		t.Errorf("defaults should survive YAML overlay, PoolSize = %d", cfg.Broker.Redis.PoolSize)
	}
	if !cfg.Metrics.Enabled {
		t.Error("Metrics.Enabled should be true")
	}
}

func TestYAMLSource_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("mux: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := NewYAMLSource(path).LoadInto(&schema.Root{}); err == nil {
		t.Error("LoadInto() should fail on malformed YAML")
	}
}

func TestFindConfigFile_Explicit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	if got := FindConfigFile(path); got != path {
		t.Errorf("FindConfigFile() = %q, want %q", got, path)
	}
}

func TestByPriority(t *testing.T) {
	sources := []Source{
		NewEnvSource("SUBMUX"),
		NewFuncSource("cli", PriorityCLI, func(*schema.Root) error { return nil }),
		NewDefaultSource(),
		NewYAMLSource(),
	}
	sort.Sort(ByPriority(sources))

	want := []string{"defaults", "yaml", "env", "cli"}
	for i, s := range sources {
		if s.Name() != want[i] {
			t.Errorf("sources[%d] = %s, want %s", i, s.Name(), want[i])
		}
	}
}
