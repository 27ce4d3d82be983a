package taskqueue

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresQueue is a persistent command queue backed by PostgreSQL. Several
// workers may dequeue concurrently: rows are claimed with
// FOR UPDATE SKIP LOCKED and deleted in the same statement.
type PostgresQueue struct {
	db           *sql.DB
	pollInterval time.Duration
}

// NewPostgresQueue creates the commands table if needed.
// db is expected to be opened with the pgx stdlib driver ("pgx").
func NewPostgresQueue(db *sql.DB) (*PostgresQueue, error) {
	q := &PostgresQueue{db: db, pollInterval: 50 * time.Millisecond}
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS queued_commands (
			id BIGSERIAL PRIMARY KEY,
			command_id TEXT NOT NULL,
			flow_id TEXT NOT NULL,
			operation TEXT NOT NULL,
			actor_role TEXT NOT NULL,
			actor_name TEXT NOT NULL,
			body BYTEA,
			enqueued_at BIGINT NOT NULL,
			not_before BIGINT NOT NULL,
			attempts INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS queued_commands_ready ON queued_commands (not_before, id);
	`)
	if err != nil {
		return nil, err
	}
	return q, nil
}

var _ Queue = (*PostgresQueue)(nil)

func (q *PostgresQueue) Enqueue(ctx context.Context, c Command) error {
	enqueuedAt, notBefore := queueTimes(c)
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO queued_commands (command_id, flow_id, operation, actor_role, actor_name, body, enqueued_at, not_before, attempts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, string(c.Flow), c.Operation, string(c.Actor.Role), c.Actor.Name, c.Body,
		enqueuedAt.UnixNano(), notBefore.UnixNano(), c.Attempts,
	)
	return err
}

func (q *PostgresQueue) Dequeue(ctx context.Context) (*Command, error) {
	for {
		row := q.db.QueryRowContext(ctx, `
			DELETE FROM queued_commands
			WHERE id = (
				SELECT id FROM queued_commands
				WHERE not_before <= $1
				ORDER BY not_before, id
				FOR UPDATE SKIP LOCKED
				LIMIT 1
			)
			RETURNING id, command_id, flow_id, operation, actor_role, actor_name, body, enqueued_at, not_before, attempts`,
			time.Now().UnixNano())
		_, c, err := scanCommand(row)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.pollInterval):
		}
	}
}

func (q *PostgresQueue) Len() int {
	var n int
	if err := q.db.QueryRow(`SELECT COUNT(*) FROM queued_commands`).Scan(&n); err != nil {
		return 0
	}
	return n
}
