package taskqueue

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/petrijr/packflow/pkg/api"
)

// SQLiteQueue is a persistent command queue backed by SQLite. Commands are
// claimed in (not_before, id) order; claiming deletes the row in the same
// transaction.
type SQLiteQueue struct {
	db           *sql.DB
	pollInterval time.Duration
}

// NewSQLiteQueue initializes the commands table in the given DB and returns a new queue.
func NewSQLiteQueue(db *sql.DB) (*SQLiteQueue, error) {
	q := &SQLiteQueue{
		db:           db,
		pollInterval: 20 * time.Millisecond,
	}
	if err := q.initSchema(); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *SQLiteQueue) initSchema() error {
	_, err := q.db.Exec(`
		CREATE TABLE IF NOT EXISTS queued_commands (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			command_id TEXT NOT NULL,
			flow_id TEXT NOT NULL,
			operation TEXT NOT NULL,
			actor_role TEXT NOT NULL,
			actor_name TEXT NOT NULL,
			body BLOB,
			enqueued_at INTEGER NOT NULL,
			not_before INTEGER NOT NULL,
			attempts INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS queued_commands_ready ON queued_commands (not_before, id);
	`)
	return err
}

// Ensure SQLiteQueue implements Queue.
var _ Queue = (*SQLiteQueue)(nil)

func (q *SQLiteQueue) Enqueue(ctx context.Context, c Command) error {
	enqueuedAt, notBefore := queueTimes(c)
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO queued_commands (command_id, flow_id, operation, actor_role, actor_name, body, enqueued_at, not_before, attempts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID,
		string(c.Flow),
		c.Operation,
		string(c.Actor.Role),
		c.Actor.Name,
		c.Body,
		enqueuedAt.UnixNano(),
		notBefore.UnixNano(),
		c.Attempts,
	)
	return err
}

func (q *SQLiteQueue) Dequeue(ctx context.Context) (*Command, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		c, err := q.claim(ctx)
		if err != nil {
			return nil, err
		}
		if c != nil {
			return c, nil
		}

		// Nothing available: sleep a bit and retry.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.pollInterval):
		}
	}
}

func (q *SQLiteQueue) claim(ctx context.Context) (*Command, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT id, command_id, flow_id, operation, actor_role, actor_name, body, enqueued_at, not_before, attempts
		FROM queued_commands
		WHERE not_before <= ?
		ORDER BY not_before, id
		LIMIT 1`, time.Now().UnixNano())
	id, c, err := scanCommand(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	// Delete the row we just claimed.
	if _, err := tx.ExecContext(ctx, `DELETE FROM queued_commands WHERE id = ?`, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return c, nil
}

func (q *SQLiteQueue) Len() int {
	var n int
	err := q.db.QueryRow(`SELECT COUNT(*) FROM queued_commands`).Scan(&n)
	if err != nil {
		return 0
	}
	return n
}

// queueTimes stamps the enqueue time and defaults NotBefore to it.
func queueTimes(c Command) (enqueuedAt, notBefore time.Time) {
	enqueuedAt = c.EnqueuedAt
	if enqueuedAt.IsZero() {
		enqueuedAt = time.Now()
	}
	notBefore = c.NotBefore
	if notBefore.IsZero() {
		notBefore = enqueuedAt
	}
	return enqueuedAt, notBefore
}

// scanCommand reads the column list shared by the SQL queues.
func scanCommand(row interface{ Scan(...any) error }) (int64, *Command, error) {
	var (
		id         int64
		c          Command
		flow, role string
		enqueued   int64
		notBefore  int64
	)
	err := row.Scan(&id, &c.ID, &flow, &c.Operation, &role, &c.Actor.Name, &c.Body, &enqueued, &notBefore, &c.Attempts)
	if err != nil {
		return 0, nil, err
	}
	c.Flow = api.FlowID(flow)
	c.Actor.Role = api.Role(role)
	c.EnqueuedAt = time.Unix(0, enqueued)
	c.NotBefore = time.Unix(0, notBefore)
	return id, &c, nil
}
