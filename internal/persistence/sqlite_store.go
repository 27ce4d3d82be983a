package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/petrijr/packflow/pkg/api"
)

// SQLiteStore is a FlowStore backed by SQLite.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing
// the driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteStore struct {
	db *sql.DB
}

var _ FlowStore = (*SQLiteStore)(nil)

// NewSQLiteStore initializes the required schema in the given database and
// returns a new SQLiteStore.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS flow_instances (
			id TEXT PRIMARY KEY,
			flow_id TEXT NOT NULL,
			state TEXT NOT NULL,
			revision INTEGER NOT NULL,
			created_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_flow_instances_flow ON flow_instances(flow_id, created_at, id);
		CREATE TABLE IF NOT EXISTS flow_store_meta (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			version INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);
		INSERT OR IGNORE INTO flow_store_meta (id, version, updated_at) VALUES (1, 0, 0);
	`)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, instanceID string) (api.Instance, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM flow_instances WHERE id = ?`, instanceID).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInstanceNotFound
		}
		return nil, err
	}
	return decodeInstance(payload)
}

func (s *SQLiteStore) List(ctx context.Context, flow api.FlowID) ([]api.Instance, error) {
	query := `SELECT payload FROM flow_instances`
	var args []any
	if flow != "" {
		query += ` WHERE flow_id = ?`
		args = append(args, string(flow))
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPayloads(rows)
}

func (s *SQLiteStore) Upsert(ctx context.Context, inst api.Instance) error {
	if err := checkInstance(inst); err != nil {
		return err
	}
	payload, err := encodeInstance(inst)
	if err != nil {
		return err
	}
	m := inst.Meta()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var res sql.Result
	if m.Revision == 1 {
		res, err = tx.ExecContext(ctx, `
			INSERT INTO flow_instances (id, flow_id, state, revision, created_at, payload)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING`,
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
			SET state = ?, revision = ?, payload = ?
			WHERE id = ? AND revision = ?`,
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
	if err := s.expectOneRow(ctx, tx, res, m); err != nil {
		return err
	}
	if err := bumpSQLVersion(ctx, tx, `UPDATE flow_store_meta SET version = version + 1, updated_at = ? WHERE id = 1`, writeTime(inst)); err != nil {
		return err
	}
	return tx.Commit()
}

// expectOneRow turns a write that matched nothing into a conflict carrying
// the revision actually stored.
func (s *SQLiteStore) expectOneRow(ctx context.Context, tx *sql.Tx, res sql.Result, m *api.Envelope) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 1 {
		return nil
	}
	var stored int64
	err = tx.QueryRowContext(ctx, `SELECT revision FROM flow_instances WHERE id = ?`, m.InstanceID).Scan(&stored)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	return conflict(m.InstanceID, stored, m.Revision)
}

func (s *SQLiteStore) Delete(ctx context.Context, instanceID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM flow_instances WHERE id = ?`, instanceID)
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
	if err := bumpSQLVersion(ctx, tx, `UPDATE flow_store_meta SET version = version + 1, updated_at = ? WHERE id = 1`, time.Now().UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) Version(ctx context.Context) (api.StoreVersion, error) {
	var version, updatedN int64
	err := s.db.QueryRowContext(ctx, `SELECT version, updated_at FROM flow_store_meta WHERE id = 1`).Scan(&version, &updatedN)
	if err != nil {
		return api.StoreVersion{}, err
	}
	return storeVersion(version, updatedN), nil
}

func bumpSQLVersion(ctx context.Context, tx *sql.Tx, stmt string, at time.Time) error {
	_, err := tx.ExecContext(ctx, stmt, at.UnixNano())
	return err
}

func storeVersion(version, updatedN int64) api.StoreVersion {
	v := api.StoreVersion{Version: version}
	if updatedN != 0 {
		v.UpdatedAt = time.Unix(0, updatedN).UTC()
	}
	return v
}

func scanPayloads(rows *sql.Rows) ([]api.Instance, error) {
	var out []api.Instance
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		inst, err := decodeInstance(payload)
		if err != nil {
			return nil, err
		}
		out = append(out, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
