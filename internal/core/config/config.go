package config

import (
	"fmt"
	"time"

	"github.com/flakeproof/flakeproof/internal/core/domain"
	redisclient "github.com/flakeproof/flakeproof/internal/infra/redis"
	"github.com/flakeproof/flakeproof/internal/infra/storage/postgres"
	"github.com/flakeproof/flakeproof/internal/resilience/policy"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server      ServerConfig      `yaml:"server"`
	Policy      PolicyConfig      `yaml:"policy"`
	Persistence PersistenceConfig `yaml:"persistence"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// PolicyConfig holds the static retry policy. Unset fields keep the
// built-in defaults; the booleans are pointers so that an explicit
// "false" can be told apart from absence.
type PolicyConfig struct {
	MaxAttempts       int           `yaml:"max_attempts"`
	BaseDelay         time.Duration `yaml:"base_delay"`
	MaxDelay          time.Duration `yaml:"max_delay"`
	Strategy          string        `yaml:"strategy"` // fixed, linear, exponential, adaptive
	Jitter            *bool         `yaml:"jitter"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	Timeout           time.Duration `yaml:"timeout"`
	SelfHealing       *bool         `yaml:"self_healing"`
	Learning          *bool         `yaml:"learning"`
	NoRetry           []string      `yaml:"no_retry"` // failure kinds never retried
}

// PersistenceConfig selects the optional snapshot backend. An empty
// backend keeps learning purely in memory.
type PersistenceConfig struct {
	Backend  string             `yaml:"backend"` // "", "redis", "postgres"
	Name     string             `yaml:"name"`    // snapshot name, defaults to "default"
	Redis    redisclient.Config `yaml:"redis"`
	Database postgres.Config    `yaml:"database"`
}

// ToPolicy materializes the configured static policy.
func (c PolicyConfig) ToPolicy() (policy.Policy, error) {
	p := policy.Default()

	if c.MaxAttempts > 0 {
		p.MaxAttempts = c.MaxAttempts
	}
	if c.BaseDelay > 0 {
		p.BaseDelay = c.BaseDelay
	}
	if c.MaxDelay > 0 {
		p.MaxDelay = c.MaxDelay
	}
	if c.BackoffMultiplier > 0 {
		p.BackoffMultiplier = c.BackoffMultiplier
	}
	if c.Timeout > 0 {
		p.Timeout = c.Timeout
	}
	if c.Strategy != "" {
		strategy, ok := policy.ParseStrategy(c.Strategy)
		if !ok {
			return policy.Policy{}, fmt.Errorf("unknown backoff strategy %q", c.Strategy)
		}
		p.Strategy = strategy
	}
	if c.Jitter != nil {
		p.Jitter = *c.Jitter
	}
	if c.SelfHealing != nil {
		p.SelfHealing = *c.SelfHealing
	}
	if c.Learning != nil {
		p.Learning = *c.Learning
	}

	var blocked []domain.FailureKind
	for _, name := range c.NoRetry {
		kind, ok := domain.ParseKind(name)
		if !ok {
			return policy.Policy{}, fmt.Errorf("unknown failure kind %q in no_retry", name)
		}
		blocked = append(blocked, kind)
	}
	if len(blocked) > 0 {
		p = p.WithoutRetryOn(blocked...)
	}

	return p, nil
}
