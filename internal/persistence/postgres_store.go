package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/petrijr/packflow/pkg/api"
)

// PostgresStore is a FlowStore backed by PostgreSQL.
//
// It expects an *sql.DB that uses a PostgreSQL driver (for example,
// "github.com/jackc/pgx/v5/stdlib").
//
// The caller is responsible for:
//   - importing the driver for its side effects, e.g.:
//     _ "github.com/jackc/pgx/v5/stdlib"
//   - providing a DSN via sql.Open.
type PostgresStore struct {
	db *sql.DB
}

var _ FlowStore = (*PostgresStore)(nil)

// NewPostgresStore initializes the required schema in the given database
// and returns a new PostgresStore.
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS flow_instances (
		id TEXT PRIMARY KEY,
		flow_id TEXT NOT NULL,
		state TEXT NOT NULL,
		revision BIGINT NOT NULL,
		created_at BIGINT NOT NULL,
		payload BYTEA NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_flow_instances_flow ON flow_instances(flow_id, created_at, id)`,
	`CREATE TABLE IF NOT EXISTS flow_store_meta (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		version BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`INSERT INTO flow_store_meta (id, version, updated_at) VALUES (1, 0, 0) ON CONFLICT (id) DO NOTHING`,
}

func (p *PostgresStore) initSchema() error {
	for _, stmt := range postgresSchema {
		if _, err := p.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, instanceID string) (api.Instance, error) {
	var payload []byte
	err := p.db.QueryRowContext(ctx, `SELECT payload FROM flow_instances WHERE id = $1`, instanceID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInstanceNotFound
		}
		return nil, err
	}
	return decodeInstance(payload)
}

func (p *PostgresStore) List(ctx context.Context, flow api.FlowID) ([]api.Instance, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if flow == "" {
		rows, err = p.db.QueryContext(ctx, `
			SELECT payload FROM flow_instances
			ORDER BY created_at ASC, id ASC`)
	} else {
		rows, err = p.db.QueryContext(ctx, `
			SELECT payload FROM flow_instances
			WHERE flow_id = $1
			ORDER BY created_at ASC, id ASC`, string(flow))
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPayloads(rows)
}

func (p *PostgresStore) Upsert(ctx context.Context, inst api.Instance) error {
	if err := checkInstance(inst); err != nil {
		return err
	}
	payload, err := encodeInstance(inst)
	if err != nil {
		return err
	}
	m := inst.Meta()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var res sql.Result
	if m.Revision == 1 {
		res, err = tx.ExecContext(ctx, `
			INSERT INTO flow_instances (id, flow_id, state, revision, created_at, payload)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING`,
			m.InstanceID,
			string(inst.Flow()),
			inst.StateName(),
			m.Revision,
			m.CreatedAt.UnixNano(),
			payload,
		)
	} else {
		res, err = tx.ExecContext(ctx, `
			UPDATE flow_instances
			SET state = $1, revision = $2, payload = $3
			WHERE id = $4 AND revision = $5`,
			inst.StateName(),
			m.Revision,
			payload,
			m.InstanceID,
			m.Revision-1,
		)
	}
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected != 1 {
		var stored int64
		err := tx.QueryRowContext(ctx, `SELECT revision FROM flow_instances WHERE id = $1`, m.InstanceID).Scan(&stored)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return conflict(m.InstanceID, stored, m.Revision)
	}

	if err := bumpSQLVersion(ctx, tx, `UPDATE flow_store_meta SET version = version + 1, updated_at = $1 WHERE id = 1`, writeTime(inst)); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) Delete(ctx context.Context, instanceID string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM flow_instances WHERE id = $1`, instanceID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrInstanceNotFound
	}
	if err := bumpSQLVersion(ctx, tx, `UPDATE flow_store_meta SET version = version + 1, updated_at = $1 WHERE id = 1`, time.Now().UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) Version(ctx context.Context) (api.StoreVersion, error) {
	var version, updatedN int64
	err := p.db.QueryRowContext(ctx, `SELECT version, updated_at FROM flow_store_meta WHERE id = 1`).Scan(&version, &updatedN)
	if err != nil {
		return api.StoreVersion{}, err
	}
	return storeVersion(version, updatedN), nil
}
