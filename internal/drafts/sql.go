package drafts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SQLStore keeps drafts in the service database (see db.Open for the schema).
type SQLStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

func NewSQLStore(db *sql.DB, ttl time.Duration) *SQLStore {
	return &SQLStore{db: db, ttl: ttl, now: time.Now}
}

func (s *SQLStore) Save(ctx context.Context, d Draft) error {
	if err := validDraft(d); err != nil {
		return err
	}
	if d.UpdatedAt.IsZero() {
		d.UpdatedAt = s.now()
	}
	raw, err := json.Marshal(d.Snapshot)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	var expires int64
	if s.ttl > 0 {
		expires = d.UpdatedAt.Add(s.ttl).Unix()
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO drafts (session_id, owner, activity, instance_id, snapshot_json, updated_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (session_id) DO UPDATE SET owner=EXCLUDED.owner, activity=EXCLUDED.activity,
		  instance_id=EXCLUDED.instance_id, snapshot_json=EXCLUDED.snapshot_json,
		  updated_at=EXCLUDED.updated_at, expires_at=EXCLUDED.expires_at`,
		d.Snapshot.SessionID, d.Owner, string(d.Snapshot.Activity), d.Snapshot.InstanceID, string(raw),
		d.UpdatedAt.UnixMilli(), expires)
	return err
}

func (s *SQLStore) Load(ctx context.Context, id string) (Draft, error) {
	var d Draft
	var raw string
	var updated, expires int64
	err := s.db.QueryRowContext(ctx,
		`SELECT owner, snapshot_json, updated_at, expires_at FROM drafts WHERE session_id=$1`, id).
		Scan(&d.Owner, &raw, &updated, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return Draft{}, ErrNotFound
	}
	if err != nil {
		return Draft{}, err
	}
	if expires != 0 && s.now().Unix() > expires {
		_ = s.Delete(ctx, id)
		return Draft{}, ErrNotFound
	}
	if err := json.Unmarshal([]byte(raw), &d.Snapshot); err != nil {
		return Draft{}, fmt.Errorf("decode snapshot %s: %w", id, err)
	}
	d.UpdatedAt = time.UnixMilli(updated).UTC()
	return d, nil
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE session_id=$1`, id)
	return err
}

func (s *SQLStore) List(ctx context.Context, owner string) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT snapshot_json, updated_at FROM drafts
		 WHERE owner=$1 AND (expires_at=0 OR expires_at >= $2)
		 ORDER BY updated_at DESC LIMIT 200`, owner, s.now().Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var raw string
		var updated int64
		if err := rows.Scan(&raw, &updated); err != nil {
			return nil, err
		}
		d := Draft{Owner: owner, UpdatedAt: time.UnixMilli(updated).UTC()}
		if err := json.Unmarshal([]byte(raw), &d.Snapshot); err != nil {
			continue
		}
		out = append(out, d.summary())
	}
	return out, rows.Err()
}

// Purge removes expired drafts and reports how many were dropped.
func (s *SQLStore) Purge(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM drafts WHERE expires_at <> 0 AND expires_at < $1`, s.now().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
