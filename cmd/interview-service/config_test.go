package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}
	return path
}

const minimalConfig = `
database:
  driver: sqlite
  dsn: "file:/tmp/assesy.db"
auth:
  jwtSecret: "secret"
  username: "admin"
  password: "admin"
`

func TestLoadAppConfigDefaults(t *testing.T) {
	cfg, err := loadAppConfig(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("load config failed: %v", err)
	}
	if cfg.Server.Addr != defaultHTTPAddr || cfg.Server.ShutdownTimeout != defaultShutdownTimeout {
		t.Fatalf("unexpected server defaults: %+v", cfg.Server)
	}
	if cfg.Workspace.ReviewTimeout != 30*time.Minute || cfg.Workspace.TeardownDelay != time.Second {
		t.Fatalf("unexpected workspace defaults: %+v", cfg.Workspace)
	}
	if cfg.Workspace.UID != 1000 || cfg.Workspace.GID != 1000 {
		t.Fatalf("expected workspace owner 1000:1000, got %d:%d", cfg.Workspace.UID, cfg.Workspace.GID)
	}
	if cfg.Lock.Backend != lockBackendMemory || cfg.Artifacts.Backend != storeBackendLocal {
		t.Fatalf("unexpected backends: lock=%s artifacts=%s", cfg.Lock.Backend, cfg.Artifacts.Backend)
	}
	if cfg.Artifacts.Dir != defaultSubmissionDir || cfg.Events.Topic != defaultEventsTopic {
		t.Fatalf("unexpected artifact/event defaults: %+v %+v", cfg.Artifacts, cfg.Events)
	}
}

func TestLoadAppConfigDurations(t *testing.T) {
	cfg, err := loadAppConfig(writeConfig(t, minimalConfig+`
workspace:
  reviewTimeout: 45m
  teardownDelay: 250ms
lock:
  backend: redis
  redis:
    addr: "127.0.0.1:6379"
  lease:
    ttl: 2m
`))
	if err != nil {
		t.Fatalf("load config failed: %v", err)
	}
	if cfg.Workspace.ReviewTimeout != 45*time.Minute || cfg.Workspace.TeardownDelay != 250*time.Millisecond {
		t.Fatalf("durations not parsed: %+v", cfg.Workspace)
	}
	if cfg.Lock.Lease.TTL != 2*time.Minute {
		t.Fatalf("lease ttl not parsed: %v", cfg.Lock.Lease.TTL)
	}
	if cfg.Lock.Redis.PoolSize == 0 {
		t.Fatalf("expected redis defaults to be applied")
	}
}

func TestLoadAppConfigValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{name: "missing dsn", content: "auth:\n  jwtSecret: s\n  username: a\n  password: p\n", want: "database dsn"},
		{name: "missing secret", content: "database:\n  dsn: x\nauth:\n  username: a\n  password: p\n", want: "jwtSecret"},
		{name: "missing password", content: "database:\n  dsn: x\nauth:\n  jwtSecret: s\n  username: a\n", want: "password"},
		{name: "redis without addr", content: minimalConfig + "lock:\n  backend: redis\n", want: "redis addr"},
		{name: "unknown lock backend", content: minimalConfig + "lock:\n  backend: etcd\n", want: "unsupported lock backend"},
		{name: "minio without bucket", content: minimalConfig + "artifacts:\n  backend: minio\n", want: "bucket"},
		{name: "events without brokers", content: minimalConfig + "events:\n  enabled: true\n", want: "brokers"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadAppConfig(writeConfig(t, tc.content))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadAppConfigMissingFile(t *testing.T) {
	if _, err := loadAppConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
