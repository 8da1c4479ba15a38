package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the DDL for the ledger table. The primary key is the uniqueness
// constraint every claim relies on.
const Schema = `
CREATE TABLE IF NOT EXISTS notification_ledger (
	game_id      BIGINT      NOT NULL,
	recipient_id BIGINT      NOT NULL,
	kind         TEXT        NOT NULL CHECK (kind IN ('24hour', 'gameday', '24hour-push', 'gameday-push')),
	status       TEXT        NOT NULL CHECK (status IN ('pending', 'sending', 'sent')),
	created_at   TIMESTAMPTZ NOT NULL,
	sent_at      TIMESTAMPTZ,
	PRIMARY KEY (game_id, recipient_id, kind)
);
CREATE INDEX IF NOT EXISTS idx_notification_ledger_open
	ON notification_ledger (status, created_at)
	WHERE status <> 'sent';`

const uniqueViolation = "23505"

// DBTX is the subset of pgx used by the store. Satisfied by *pgxpool.Pool,
// *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore is the Postgres-backed Store.
type PGStore struct {
	db DBTX
}

// NewPGStore creates a store on top of a pool or connection.
func NewPGStore(db DBTX) *PGStore {
	return &PGStore{db: db}
}

// EnsureSchema creates the ledger table if it does not exist.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure ledger schema: %w", err)
	}
	return nil
}

// Insert claims the key. ON CONFLICT DO NOTHING keeps the statement from
// failing the surrounding transaction; zero rows affected means conflict.
func (s *PGStore) Insert(ctx context.Context, key Key, now time.Time) error {
	tag, err := s.db.Exec(ctx, `
		INSERT INTO notification_ledger (game_id, recipient_id, kind, status, created_at)
		VALUES ($1, $2, $3, 'pending', $4)
		ON CONFLICT (game_id, recipient_id, kind) DO NOTHING`,
		key.GameID, key.RecipientID, string(key.Kind), now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrConflict
		}
		return fmt.Errorf("insert ledger record %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// Get loads the record for key.
func (s *PGStore) Get(ctx context.Context, key Key) (Record, error) {
	var (
		status string
		rec    = Record{Key: key}
	)
	err := s.db.QueryRow(ctx, `
		SELECT status, created_at, sent_at
		FROM notification_ledger
		WHERE game_id = $1 AND recipient_id = $2 AND kind = $3`,
		key.GameID, key.RecipientID, string(key.Kind),
	).Scan(&status, &rec.CreatedAt, &rec.SentAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("get ledger record %s: %w", key, err)
	}
	rec.Status = Status(status)
	return rec, nil
}

// Reclaim resets a stale record to pending.
func (s *PGStore) Reclaim(ctx context.Context, key Key, from Status, staleBefore, now time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE notification_ledger
		SET status = 'pending', created_at = $5
		WHERE game_id = $1 AND recipient_id = $2 AND kind = $3
		  AND status = $4 AND created_at < $6`,
		key.GameID, key.RecipientID, string(key.Kind), string(from), now, staleBefore,
	)
	if err != nil {
		return false, fmt.Errorf("reclaim ledger record %s: %w", key, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Advance performs a conditional status transition.
func (s *PGStore) Advance(ctx context.Context, key Key, from, to Status, now time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE notification_ledger
		SET status = $5, created_at = $6
		WHERE game_id = $1 AND recipient_id = $2 AND kind = $3 AND status = $4`,
		key.GameID, key.RecipientID, string(key.Kind), string(from), string(to), now,
	)
	if err != nil {
		return false, fmt.Errorf("advance ledger record %s to %s: %w", key, to, err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkSent records a confirmed delivery.
func (s *PGStore) MarkSent(ctx context.Context, key Key, now time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE notification_ledger
		SET status = 'sent', sent_at = $4
		WHERE game_id = $1 AND recipient_id = $2 AND kind = $3`,
		key.GameID, key.RecipientID, string(key.Kind), now,
	)
	if err != nil {
		return false, fmt.Errorf("mark ledger record %s sent: %w", key, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Delete releases the key.
func (s *PGStore) Delete(ctx context.Context, key Key) error {
	_, err := s.db.Exec(ctx, `
		DELETE FROM notification_ledger
		WHERE game_id = $1 AND recipient_id = $2 AND kind = $3`,
		key.GameID, key.RecipientID, string(key.Kind),
	)
	if err != nil {
		return fmt.Errorf("delete ledger record %s: %w", key, err)
	}
	return nil
}

// Summary counts records per kind and status.
func (s *PGStore) Summary(ctx context.Context, staleBefore time.Time) ([]Count, error) {
	rows, err := s.db.Query(ctx, `
		SELECT kind, status, COUNT(*),
		       COUNT(*) FILTER (WHERE status <> 'sent' AND created_at < $1)
		FROM notification_ledger
		GROUP BY kind, status
		ORDER BY kind, status`, staleBefore)
	if err != nil {
		return nil, fmt.Errorf("ledger summary: %w", err)
	}
	defer rows.Close()

	var counts []Count
	for rows.Next() {
		var (
			kind, status string
			c            Count
		)
		if err := rows.Scan(&kind, &status, &c.Total, &c.Stale); err != nil {
			return nil, fmt.Errorf("scan ledger summary: %w", err)
		}
		c.Kind = Kind(kind)
		c.Status = Status(status)
		counts = append(counts, c)
	}
	return counts, rows.Err()
}
