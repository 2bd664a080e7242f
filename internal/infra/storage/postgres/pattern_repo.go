package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flakeproof/flakeproof/internal/core/domain"
	"github.com/flakeproof/flakeproof/internal/resilience/learn"
)

// PatternRepo persists failure events and pattern snapshots.
type PatternRepo struct {
	db *DB
}

// NewPatternRepo creates a new PostgreSQL pattern repository.
func NewPatternRepo(db *DB) *PatternRepo {
	return &PatternRepo{db: db}
}

// InsertEvent appends one failure event to the durable log.
func (r *PatternRepo) InsertEvent(ctx context.Context, ev domain.FailureEvent) error {
	var eventContext []byte
	if len(ev.Context) > 0 {
		var err error
		eventContext, err = json.Marshal(ev.Context)
		if err != nil {
			return fmt.Errorf("failed to encode event context: %w", err)
		}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO failure_events (id, kind, action, locator, attempt, occurred_at, context)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`,
		ev.ID, ev.Kind.String(), ev.Key.Action, ev.Key.Locator, ev.Attempt, ev.Timestamp, eventContext,
	)
	if err != nil {
		return fmt.Errorf("failed to insert failure event: %w", err)
	}
	return nil
}

// EventsSince returns failure events recorded at or after since, oldest
// first, for offline analysis.
func (r *PatternRepo) EventsSince(ctx context.Context, since time.Time) ([]domain.FailureEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, kind, action, locator, attempt, occurred_at, context
		FROM failure_events
		WHERE occurred_at >= $1
		ORDER BY occurred_at`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query failure events: %w", err)
	}
	defer rows.Close()

	var events []domain.FailureEvent
	for rows.Next() {
		var (
			ev           domain.FailureEvent
			kind         string
			eventContext []byte
		)
		if err := rows.Scan(&ev.ID, &kind, &ev.Key.Action, &ev.Key.Locator, &ev.Attempt, &ev.Timestamp, &eventContext); err != nil {
			return nil, fmt.Errorf("failed to scan failure event: %w", err)
		}
		k, ok := domain.ParseKind(kind)
		if !ok {
			k = domain.KindUnknown
		}
		ev.Kind = k
		if len(eventContext) > 0 {
			if err := json.Unmarshal(eventContext, &ev.Context); err != nil {
				return nil, fmt.Errorf("failed to decode event context: %w", err)
			}
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read failure events: %w", err)
	}
	return events, nil
}

// SaveSnapshot upserts snap under name.
func (r *PatternRepo) SaveSnapshot(ctx context.Context, name string, snap learn.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO pattern_snapshots (name, saved_at, snapshot)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE SET saved_at = EXCLUDED.saved_at, snapshot = EXCLUDED.snapshot`,
		name, snap.SavedAt, data,
	)
	if err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot fetches the snapshot stored under name. found is false
// when none exists.
func (r *PatternRepo) LoadSnapshot(ctx context.Context, name string) (snap learn.Snapshot, found bool, err error) {
	var data []byte
	err = r.db.QueryRowContext(ctx,
		`SELECT snapshot FROM pattern_snapshots WHERE name = $1`, name,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return learn.Snapshot{}, false, nil
	}
	if err != nil {
		return learn.Snapshot{}, false, fmt.Errorf("failed to fetch snapshot: %w", err)
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		return learn.Snapshot{}, false, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap, true, nil
}
