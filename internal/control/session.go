// Package control wires the resilience engine together: policy from
// config, the shared pattern store with optional durable persistence,
// the retry executor, the wait estimator and the health server.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flakeproof/flakeproof/internal/core/config"
	"github.com/flakeproof/flakeproof/internal/core/domain"
	"github.com/flakeproof/flakeproof/internal/health"
	redisclient "github.com/flakeproof/flakeproof/internal/infra/redis"
	"github.com/flakeproof/flakeproof/internal/infra/storage/postgres"
	"github.com/flakeproof/flakeproof/internal/resilience/heal"
	"github.com/flakeproof/flakeproof/internal/resilience/learn"
	"github.com/flakeproof/flakeproof/internal/resilience/retry"
	"github.com/flakeproof/flakeproof/internal/resilience/wait"
)

// snapshotStore is the persistence surface both backends satisfy.
type snapshotStore interface {
	SaveSnapshot(ctx context.Context, name string, snap learn.Snapshot) error
	LoadSnapshot(ctx context.Context, name string) (learn.Snapshot, bool, error)
}

// Session is the assembled engine with its lifecycle.
type Session struct {
	cfg *config.AppConfig

	store     *learn.Store
	executor  *retry.Executor
	estimator *wait.Estimator

	healthServer *health.Server
	snapshots    snapshotStore
	redisClient  *redisclient.Client
	db           *postgres.DB
	log          *slog.Logger
}

// NewSession creates a session from configuration. act may be nil, in
// which case self-healing is skipped even when the policy enables it.
func NewSession(ctx context.Context, cfg *config.AppConfig, act heal.Actuator) (*Session, error) {
	log := slog.Default()

	pol, err := cfg.Policy.ToPolicy()
	if err != nil {
		return nil, fmt.Errorf("invalid policy config: %w", err)
	}

	s := &Session{cfg: cfg, log: log}

	// 1. Persistence backend, if any.
	var sink learn.EventSink
	switch cfg.Persistence.Backend {
	case "redis":
		client, err := redisclient.NewClient(cfg.Persistence.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		s.redisClient = client
		s.snapshots = client
		log.Info("Using Redis snapshot persistence")
	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Persistence.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		repo := postgres.NewPatternRepo(db)
		s.db = db
		s.snapshots = repo
		sink = func(ev domain.FailureEvent) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := repo.InsertEvent(ctx, ev); err != nil {
				log.Warn("Failed to persist failure event", "error", err)
			}
		}
		log.Info("Using PostgreSQL snapshot persistence")
	default:
		log.Info("Using in-memory learning only")
	}

	// 2. Pattern store, warm-started from the last snapshot when one exists.
	opts := []learn.Option{}
	if sink != nil {
		opts = append(opts, learn.WithEventSink(sink))
	}
	s.store = learn.NewStore(opts...)

	if s.snapshots != nil {
		snap, found, err := s.snapshots.LoadSnapshot(ctx, cfg.Persistence.Name)
		if err != nil {
			log.Warn("Failed to load snapshot, starting cold", "error", err)
		} else if found {
			s.store.Restore(snap)
			log.Info("Restored learned patterns", "name", cfg.Persistence.Name,
				"targets", len(snap.Targets), "saved_at", snap.SavedAt)
		}
	}

	// 3. Engine components.
	execOpts := []retry.Option{retry.WithStore(s.store), retry.WithLogger(log)}
	if act != nil {
		execOpts = append(execOpts, retry.WithHealer(heal.NewHealer(act, log)))
	}
	s.executor = retry.NewExecutor(pol, execOpts...)
	s.estimator = wait.NewEstimator(wait.WithLogger(log))

	s.healthServer = health.NewServer(s.store, cfg.Server.Port)

	return s, nil
}

// Executor returns the session's retry executor.
func (s *Session) Executor() *retry.Executor { return s.executor }

// Estimator returns the session's wait estimator.
func (s *Session) Estimator() *wait.Estimator { return s.estimator }

// Store returns the shared pattern store.
func (s *Session) Store() *learn.Store { return s.store }

// Do runs op under the session's retry loop.
func (s *Session) Do(ctx context.Context, key domain.TargetKey, op retry.Operation) error {
	return s.executor.Do(ctx, key, op)
}

// Wait polls probe under the session's dynamic wait estimator. A zero
// timeout uses the learned estimate for key.
func (s *Session) Wait(ctx context.Context, key domain.TargetKey, probe wait.Probe, timeout time.Duration) error {
	return s.estimator.Wait(ctx, key, probe, timeout)
}

// Start starts the session's background components.
func (s *Session) Start(ctx context.Context) error {
	go func() {
		if err := s.healthServer.Start(); err != nil {
			s.log.Error("Health server failed", "error", err)
		}
	}()
	return nil
}

// SaveSnapshot persists the current learned patterns, when a backend is
// configured.
func (s *Session) SaveSnapshot(ctx context.Context) error {
	if s.snapshots == nil {
		return nil
	}
	snap := s.store.Snapshot()
	if err := s.snapshots.SaveSnapshot(ctx, s.cfg.Persistence.Name, snap); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	s.log.Info("Saved learned patterns", "name", s.cfg.Persistence.Name, "targets", len(snap.Targets))
	return nil
}

// Stop saves the final snapshot and shuts everything down.
func (s *Session) Stop(ctx context.Context) error {
	s.log.Info("Stopping session...")

	if err := s.SaveSnapshot(ctx); err != nil {
		s.log.Warn("Failed to save final snapshot", "error", err)
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Warn("Failed to close database", "error", err)
		}
	}

	return s.healthServer.Stop(ctx)
}
