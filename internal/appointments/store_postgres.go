package appointments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgxPool is the subset of pgxpool.Pool the store needs; pgxmock satisfies it
// in tests.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore persists appointments as JSONB documents keyed by token, with
// an indexed zoom_meeting_id column standing in for the secondary index the
// memory store keeps in a map. Update serializes concurrent mutation with a
// row lock.
type PostgresStore struct {
	db pgxPool
}

// NewPostgresStore wraps a pgx pool (or compatible mock).
func NewPostgresStore(db pgxPool) *PostgresStore {
	if db == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresStore{db: db}
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS appointments (
    token           TEXT PRIMARY KEY,
    id              TEXT NOT NULL UNIQUE,
    zoom_meeting_id TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL,
    record          JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS appointments_zoom_meeting_id_idx
    ON appointments (zoom_meeting_id) WHERE zoom_meeting_id <> ''`

// EnsureSchema creates the appointments table and meeting-id index.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("appointments: ensure schema: %w", err)
	}
	return nil
}

// Create inserts a new appointment row.
func (s *PostgresStore) Create(ctx context.Context, appt *Appointment) error {
	record, err := json.Marshal(appt)
	if err != nil {
		return fmt.Errorf("appointments: marshal record: %w", err)
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO appointments (token, id, zoom_meeting_id, created_at, record) VALUES ($1, $2, $3, $4, $5)`,
		appt.Token, appt.ID, appt.ZoomMeetingID, appt.CreatedAt, record,
	)
	if err != nil {
		return fmt.Errorf("appointments: insert: %w", err)
	}
	return nil
}

// GetByToken loads one appointment by its management token.
func (s *PostgresStore) GetByToken(ctx context.Context, token string) (*Appointment, error) {
	return s.getWhere(ctx, `SELECT record FROM appointments WHERE token = $1`, token)
}

// GetByMeetingID loads one appointment by its Zoom meeting id.
func (s *PostgresStore) GetByMeetingID(ctx context.Context, meetingID string) (*Appointment, error) {
	return s.getWhere(ctx, `SELECT record FROM appointments WHERE zoom_meeting_id = $1`, meetingID)
}

func (s *PostgresStore) getWhere(ctx context.Context, query, arg string) (*Appointment, error) {
	var record []byte
	if err := s.db.QueryRow(ctx, query, arg).Scan(&record); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: load: %w", err)
	}
	return unmarshalRecord(record)
}

// Update applies fn inside a transaction holding a row lock on the record.
func (s *PostgresStore) Update(ctx context.Context, token string, fn func(*Appointment) error) (*Appointment, error) {
	return s.updateWhere(ctx, `SELECT record FROM appointments WHERE token = $1 FOR UPDATE`, token, fn)
}

// UpdateByMeetingID is Update keyed by the zoom_meeting_id column.
func (s *PostgresStore) UpdateByMeetingID(ctx context.Context, meetingID string, fn func(*Appointment) error) (*Appointment, error) {
	return s.updateWhere(ctx, `SELECT record FROM appointments WHERE zoom_meeting_id = $1 FOR UPDATE`, meetingID, fn)
}

func (s *PostgresStore) updateWhere(ctx context.Context, query, arg string, fn func(*Appointment) error) (*Appointment, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("appointments: begin update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var record []byte
	if err := tx.QueryRow(ctx, query, arg).Scan(&record); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("appointments: lock record: %w", err)
	}
	appt, err := unmarshalRecord(record)
	if err != nil {
		return nil, err
	}
	if err := fn(appt); err != nil {
		return nil, err
	}
	updated, err := json.Marshal(appt)
	if err != nil {
		return nil, fmt.Errorf("appointments: marshal record: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE appointments SET zoom_meeting_id = $1, record = $2 WHERE token = $3`,
		appt.ZoomMeetingID, updated, appt.Token,
	); err != nil {
		return nil, fmt.Errorf("appointments: update: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("appointments: commit update: %w", err)
	}
	return appt, nil
}

// Delete removes an appointment row.
func (s *PostgresStore) Delete(ctx context.Context, token string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM appointments WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("appointments: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns all appointments, newest first.
func (s *PostgresStore) List(ctx context.Context) ([]*Appointment, error) {
	rows, err := s.db.Query(ctx, `SELECT record FROM appointments ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("appointments: list: %w", err)
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		var record []byte
		if err := rows.Scan(&record); err != nil {
			return nil, fmt.Errorf("appointments: scan record: %w", err)
		}
		appt, err := unmarshalRecord(record)
		if err != nil {
			return nil, err
		}
		out = append(out, appt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("appointments: iterate: %w", err)
	}
	return out, nil
}

func unmarshalRecord(record []byte) (*Appointment, error) {
	var appt Appointment
	if err := json.Unmarshal(record, &appt); err != nil {
		return nil, fmt.Errorf("appointments: unmarshal record: %w", err)
	}
	return &appt, nil
}
