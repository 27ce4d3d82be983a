package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/petrijr/packflow/pkg/api"
)

// SQLEventStore stores flow events in SQLite or PostgreSQL. The two
// dialects differ only in placeholders and the id column.
type SQLEventStore struct {
	db       *sql.DB
	postgres bool
}

var _ EventStore = (*SQLEventStore)(nil)

// NewSQLiteEventStore creates the flow_events table in a SQLite database.
func NewSQLiteEventStore(db *sql.DB) (*SQLEventStore, error) {
	s := &SQLEventStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewPostgresEventStore creates the flow_events table in a PostgreSQL database.
func NewPostgresEventStore(db *sql.DB) (*SQLEventStore, error) {
	s := &SQLEventStore{db: db, postgres: true}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLEventStore) initSchema() error {
	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.postgres {
		idColumn = "id BIGSERIAL PRIMARY KEY"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS flow_events (
			` + idColumn + `,
			instance_id TEXT NOT NULL,
			flow_id TEXT NOT NULL DEFAULT '',
			at BIGINT NOT NULL,
			type TEXT NOT NULL,
			operation TEXT NOT NULL DEFAULT '',
			from_state TEXT NOT NULL DEFAULT '',
			to_state TEXT NOT NULL DEFAULT '',
			actor TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_flow_events_instance_id ON flow_events(instance_id, id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLEventStore) AppendEvent(ctx context.Context, ev api.FlowEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	stmt := `
		INSERT INTO flow_events (instance_id, flow_id, at, type, operation, from_state, to_state, actor, role, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if s.postgres {
		stmt = `
		INSERT INTO flow_events (instance_id, flow_id, at, type, operation, from_state, to_state, actor, role, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	}
	_, err := s.db.ExecContext(ctx, stmt,
		ev.InstanceID,
		string(ev.FlowID),
		at.UnixNano(),
		string(ev.Type),
		ev.Operation,
		ev.From,
		ev.To,
		ev.Actor,
		string(ev.Role),
		ev.Detail,
	)
	return err
}

func (s *SQLEventStore) ListEvents(ctx context.Context, instanceID string) ([]api.FlowEvent, error) {
	query := `
		SELECT instance_id, flow_id, at, type, operation, from_state, to_state, actor, role, detail
		FROM flow_events
		WHERE instance_id = ?
		ORDER BY id ASC`
	if s.postgres {
		query = `
		SELECT instance_id, flow_id, at, type, operation, from_state, to_state, actor, role, detail
		FROM flow_events
		WHERE instance_id = $1
		ORDER BY id ASC`
	}
	rows, err := s.db.QueryContext(ctx, query, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.FlowEvent
	for rows.Next() {
		var (
			ev        api.FlowEvent
			flow, typ string
			role      string
			atN       int64
		)
		if err := rows.Scan(&ev.InstanceID, &flow, &atN, &typ, &ev.Operation, &ev.From, &ev.To, &ev.Actor, &role, &ev.Detail); err != nil {
			return nil, err
		}
		ev.FlowID = api.FlowID(flow)
		ev.At = time.Unix(0, atN).UTC()
		ev.Type = api.EventType(typ)
		ev.Role = api.Role(role)
		out = append(out, ev)
	}
	return out, rows.Err()
}
