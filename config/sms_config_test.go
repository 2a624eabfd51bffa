package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("FILTER_DEADLINE_MS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.StoreBackend != BackendRedis {
		t.Errorf("StoreBackend = %q, want redis", cfg.StoreBackend)
	}
	if cfg.FilterDeadline() != 500*time.Millisecond {
		t.Errorf("FilterDeadline() = %v, want 500ms", cfg.FilterDeadline())
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte("store_backend: memory\nfilter_deadline_ms: 200\nkey_prefix: fromfile\nport: \"9000\"\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("FILTER_DEADLINE_MS", "")
	t.Setenv("PORT", "7000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.StoreBackend != BackendMemory || cfg.KeyPrefix != "fromfile" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.FilterDeadline() != 200*time.Millisecond {
		t.Errorf("FilterDeadline() = %v, want 200ms", cfg.FilterDeadline())
	}
	if cfg.Port != "7000" {
		t.Errorf("Port = %q, env must win over file", cfg.Port)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown backend", map[string]string{"STORE_BACKEND": "etcd"}},
		{"sql without dsn", map[string]string{"STORE_BACKEND": "sql", "DATABASE_URL": ""}},
		{"missing file", map[string]string{"CONFIG_FILE": "/nonexistent/config.yaml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONFIG_FILE", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("Load() error = nil")
			}
		})
	}
}
