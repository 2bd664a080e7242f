package config

import (
	"os"
	"testing"
	"time"

	"github.com/flakeproof/flakeproof/internal/core/domain"
	"github.com/flakeproof/flakeproof/internal/resilience/policy"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "config_*.yaml")
	if err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	if _, err := tmpFile.Write([]byte(content)); err != nil {
		t.Fatalf("Failed to write to temp file: %v", err)
	}
	tmpFile.Close()
	return tmpFile.Name()
}

func TestLoad_EnvSubstitution(t *testing.T) {
	os.Setenv("TEST_REDIS_URL", "redis://localhost:6380/1")
	defer os.Unsetenv("TEST_REDIS_URL")

	path := writeConfig(t, `
persistence:
  backend: redis
  redis:
    url: ${TEST_REDIS_URL}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Persistence.Redis.URL != "redis://localhost:6380/1" {
		t.Errorf("Expected URL redis://localhost:6380/1, got %s", cfg.Persistence.Redis.URL)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Persistence.Name != "default" {
		t.Errorf("Expected default snapshot name, got %s", cfg.Persistence.Name)
	}
	if cfg.Persistence.Backend != "" {
		t.Errorf("Expected in-memory backend, got %s", cfg.Persistence.Backend)
	}
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	path := writeConfig(t, `
persistence:
  backend: cassandra
`)

	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted unknown persistence backend")
	}
}

func TestToPolicy(t *testing.T) {
	path := writeConfig(t, `
policy:
  max_attempts: 5
  base_delay: 2s
  strategy: linear
  jitter: false
  no_retry: [timeout, network_error]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	p, err := cfg.Policy.ToPolicy()
	if err != nil {
		t.Fatalf("ToPolicy failed: %v", err)
	}

	if p.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", p.MaxAttempts)
	}
	if p.BaseDelay != 2*time.Second {
		t.Errorf("BaseDelay = %v, want 2s", p.BaseDelay)
	}
	if p.Strategy != policy.Linear {
		t.Errorf("Strategy = %v, want linear", p.Strategy)
	}
	if p.Jitter {
		t.Error("Jitter = true, want false from explicit config")
	}
	// Unset fields keep defaults.
	if p.Timeout != policy.Default().Timeout {
		t.Errorf("Timeout = %v, want default %v", p.Timeout, policy.Default().Timeout)
	}
	if !p.SelfHealing || !p.Learning {
		t.Error("unset toggles should default to enabled")
	}

	if p.Retryable(domain.KindTimeout) || p.Retryable(domain.KindNetworkError) {
		t.Error("no_retry kinds should not be retryable")
	}
	if !p.Retryable(domain.KindStaleElement) {
		t.Error("unlisted kinds should stay retryable")
	}
}

func TestToPolicy_RejectsUnknownNames(t *testing.T) {
	tests := []struct {
		name string
		cfg  PolicyConfig
	}{
		{"bad strategy", PolicyConfig{Strategy: "fibonacci"}},
		{"bad failure kind", PolicyConfig{NoRetry: []string{"gremlins"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.cfg.ToPolicy(); err == nil {
				t.Fatal("ToPolicy accepted invalid config")
			}
		})
	}
}
