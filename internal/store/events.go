package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/veilmatch/internal/eventlog"
)

// AppendEvent writes an audit entry. Entries are never updated.
func (s *Store) AppendEvent(ctx context.Context, evt eventlog.Event) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO event_log (id, user_id, action, from_value, to_value, milestone_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		evt.ID, evt.UserID, string(evt.Action), evt.FromValue, evt.ToValue, evt.MilestoneID, evt.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListEvents returns a user's most recent events, newest first.
func (s *Store) ListEvents(ctx context.Context, userID string, limit int) ([]eventlog.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, action, from_value, to_value, milestone_id, created_at
		FROM event_log
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (eventlog.Event, error) {
		var e eventlog.Event
		var action string
		err := row.Scan(&e.ID, &e.UserID, &action, &e.FromValue, &e.ToValue, &e.MilestoneID, &e.Timestamp)
		e.Action = eventlog.Action(action)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan events: %w", err)
	}
	return events, nil
}
