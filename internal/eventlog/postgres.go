package eventlog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/domain"
)

// PostgresStore persists events in the sync_events table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Append(ctx context.Context, typ domain.EventType, subjectID *int64, payload []byte) (domain.Event, error) {
	if !typ.Valid() {
		return domain.Event{}, domain.ErrInvalidEventType
	}
	if len(payload) == 0 {
		payload = []byte(`{}`)
	}

	e := domain.Event{Type: typ, SubjectID: subjectID, Payload: payload}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO sync_events (type, subject_id, payload)
		VALUES ($1, $2, $3)
		RETURNING id, processed, created_at
	`, string(typ), subjectID, payload).Scan(&e.ID, &e.Processed, &e.CreatedAt)
	if err != nil {
		return domain.Event{}, fmt.Errorf("failed to append event: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) ListUnprocessed(ctx context.Context, limit int) ([]domain.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, type, subject_id, payload, processed, created_at
		FROM sync_events
		WHERE processed = false
		ORDER BY id ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	// processed = false guard keeps the flip monotonic.
	_, err := s.pool.Exec(ctx, `
		UPDATE sync_events
		SET processed = true
		WHERE id = ANY($1) AND processed = false
	`, ids)
	if err != nil {
		return fmt.Errorf("failed to mark events processed: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListSince(ctx context.Context, afterID int64, limit int) ([]domain.Event, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, type, subject_id, payload, processed, created_at
		FROM sync_events
		WHERE id > $1
		ORDER BY id ASC
		LIMIT $2
	`, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events since %d: %w", afterID, err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (s *PostgresStore) DeleteProcessedOlderThan(ctx context.Context, horizon time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM sync_events
		WHERE processed = true AND created_at < $1
	`, horizon)
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed events: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) List(ctx context.Context, filter domain.EventFilter) ([]domain.Event, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Processed != nil {
		args = append(args, *filter.Processed)
		conds = append(conds, fmt.Sprintf("processed = $%d", len(args)))
	}
	if filter.SubjectID != nil {
		args = append(args, *filter.SubjectID)
		conds = append(conds, fmt.Sprintf("subject_id = $%d", len(args)))
	}
	if filter.Type != nil {
		args = append(args, string(*filter.Type))
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}

	query := `SELECT id, type, subject_id, payload, processed, created_at FROM sync_events`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id ASC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanEvents(rows pgxRows) ([]domain.Event, error) {
	var events []domain.Event
	for rows.Next() {
		var (
			e   domain.Event
			typ string
		)
		if err := rows.Scan(&e.ID, &typ, &e.SubjectID, &e.Payload, &e.Processed, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Type = domain.EventType(typ)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read event rows: %w", err)
	}
	return events, nil
}
