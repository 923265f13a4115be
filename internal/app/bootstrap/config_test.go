package bootstrap

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend != BackendMemory {
		t.Fatalf("default backend: %q", cfg.Backend)
	}
	if cfg.QueryPageSize != 100 || cfg.UpsertMaxAttempts != 5 || cfg.NotifyBuffer != 64 {
		t.Fatalf("defaults wrong: %+v", cfg)
	}
	if cfg.KafkaTopicProcessEvents != "process.instances" {
		t.Fatalf("default topic wrong: %q", cfg.KafkaTopicProcessEvents)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := writeConfig(t, `
service:
  id: procindex-test
storage:
  backend: postgres
  postgres_url: postgres://localhost:5432/index
  page_size: 25
events:
  kafka_brokers: ["broker-1:9092", "broker-2:9092"]
  topic_jobs: custom.jobs
  poll_seconds: 3
index:
  upsert_max_attempts: 7
  retry_initial_ms: 10
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ServiceID != "procindex-test" || cfg.Backend != BackendPostgres {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.QueryPageSize != 25 || cfg.UpsertMaxAttempts != 7 {
		t.Fatalf("numeric values not applied: %+v", cfg)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaTopicJobEvents != "custom.jobs" {
		t.Fatalf("kafka values not applied: %+v", cfg)
	}
	if cfg.ConsumerPollInterval != 3*time.Second {
		t.Fatalf("poll interval not applied: %v", cfg.ConsumerPollInterval)
	}
	if cfg.RetryInitialInterval != 10*time.Millisecond {
		t.Fatalf("retry interval not applied: %v", cfg.RetryInitialInterval)
	}
	// Unset topics keep defaults.
	if cfg.KafkaTopicProcessEvents != "process.instances" {
		t.Fatalf("default topic lost: %q", cfg.KafkaTopicProcessEvents)
	}
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
storage:
  backend: memory
index:
  retry_initial_ms: 100
  retry_max_ms: 4000
`)
	t.Setenv("STORAGE_BACKEND", "redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("QUERY_PAGE_SIZE", "42")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092 ,")
	t.Setenv("RETRY_INITIAL_MS", "25")
	t.Setenv("RETRY_MAX_MS", "1500")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend != BackendRedis || cfg.RedisURL != "redis://localhost:6379/0" {
		t.Fatalf("env override not applied: %+v", cfg)
	}
	if cfg.QueryPageSize != 42 {
		t.Fatalf("env int not applied: %d", cfg.QueryPageSize)
	}
	if len(cfg.KafkaBrokers) != 2 || cfg.KafkaBrokers[1] != "b:9092" {
		t.Fatalf("env csv not trimmed: %v", cfg.KafkaBrokers)
	}
	if cfg.RetryInitialInterval != 25*time.Millisecond || cfg.RetryMaxInterval != 1500*time.Millisecond {
		t.Fatalf("retry env overrides not applied: %v %v", cfg.RetryInitialInterval, cfg.RetryMaxInterval)
	}
}

func TestLoadConfigRejectsIncompleteBackends(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, "storage:\n  backend: postgres\n")); err == nil {
		t.Fatal("postgres without url should fail")
	}
	if _, err := LoadConfig(writeConfig(t, "storage:\n  backend: redis\n")); err == nil {
		t.Fatal("redis without url should fail")
	}
	if _, err := LoadConfig(writeConfig(t, "storage:\n  backend: sqlite\n")); err == nil {
		t.Fatal("unknown backend should fail")
	}
}

func TestLoadConfigRejectsMalformedYAML(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, "storage: [unclosed")); err == nil {
		t.Fatal("malformed yaml should fail")
	}
}
