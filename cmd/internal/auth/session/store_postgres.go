package session

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

const sessionColumns = `
	id, username,
	COALESCE(device_info, ''), COALESCE(ip_address, ''), COALESCE(user_agent, ''),
	active, created_at, expires_at, last_used_at`

// querier is satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using PostgreSQL (bakery.refresh_sessions).
type PostgresStore struct {
	db querier
}

// NewPostgresStore creates a Postgres-backed session store. The pool is owned by the caller.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: pool}
}

// withTx returns a store whose statements all run inside tx, on tx's connection.
func (s *PostgresStore) withTx(tx pgx.Tx) *PostgresStore {
	return &PostgresStore{db: tx}
}

// Create inserts a new session row.
func (s *PostgresStore) Create(ctx context.Context, in Session) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO bakery.refresh_sessions (
			id, username, device_info, ip_address, user_agent,
			active, created_at, expires_at, last_used_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, in.ID, in.Username, nullIfEmpty(in.DeviceInfo), nullIfEmpty(in.IPAddress), nullIfEmpty(in.UserAgent),
		in.Active, in.CreatedAt, in.ExpiresAt, in.LastUsedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrDuplicateSession
	}
	return storageErr("create", err)
}

// Get loads a session row by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (Session, error) {
	rows, err := s.db.Query(ctx, `SELECT `+sessionColumns+`
		FROM bakery.refresh_sessions
		WHERE id = $1
	`, id)
	if err != nil {
		return Session{}, storageErr("get", err)
	}

	out, err := pgx.CollectExactlyOneRow(rows, scanSession)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, storageErr("get", err)
	}
	return out, nil
}

// Touch updates last_used_at for a session.
func (s *PostgresStore) Touch(ctx context.Context, id string, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE bakery.refresh_sessions
		SET last_used_at = $2
		WHERE id = $1
	`, id, at)
	if err != nil {
		return storageErr("touch", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// Deactivate revokes a single session (idempotent).
func (s *PostgresStore) Deactivate(ctx context.Context, id string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE bakery.refresh_sessions
		SET active = FALSE
		WHERE id = $1 AND active
	`, id)
	if err != nil {
		return false, storageErr("deactivate", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	if err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM bakery.refresh_sessions WHERE id = $1)
	`, id).Scan(&exists); err != nil {
		return false, storageErr("deactivate", err)
	}
	if !exists {
		return false, ErrSessionNotFound
	}
	return false, nil
}

// Delete removes one session row.
func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM bakery.refresh_sessions WHERE id = $1`, id)
	if err != nil {
		return storageErr("delete", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// CountUsable counts active, unexpired sessions for a username.
func (s *PostgresStore) CountUsable(ctx context.Context, username string, now time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `
		SELECT count(*)
		FROM bakery.refresh_sessions
		WHERE username = $1 AND active AND expires_at > $2
	`, username, now).Scan(&n)
	if err != nil {
		return 0, storageErr("count_usable", err)
	}
	return n, nil
}

// OldestUsable returns the usable session with the earliest created_at other than excludeID.
func (s *PostgresStore) OldestUsable(ctx context.Context, username string, now time.Time, excludeID string) (Session, error) {
	list, err := s.list(ctx, "oldest_usable", `
		WHERE username = $1 AND active AND expires_at > $2 AND id <> $3
		ORDER BY created_at ASC, id ASC
		LIMIT 1
	`, username, now, excludeID)
	if err != nil {
		return Session{}, err
	}
	if len(list) == 0 {
		return Session{}, ErrSessionNotFound
	}
	return list[0], nil
}

func (s *PostgresStore) ListByUsername(ctx context.Context, username string) ([]Session, error) {
	return s.list(ctx, "list_by_username", `WHERE username = $1 ORDER BY created_at ASC, id ASC`, username)
}

func (s *PostgresStore) ListByDevice(ctx context.Context, deviceInfo string) ([]Session, error) {
	return s.list(ctx, "list_by_device", `WHERE COALESCE(device_info, '') = $1 ORDER BY created_at ASC, id ASC`, deviceInfo)
}

func (s *PostgresStore) ListByActive(ctx context.Context, active bool) ([]Session, error) {
	return s.list(ctx, "list_by_active", `WHERE active = $1 ORDER BY created_at ASC, id ASC`, active)
}

func (s *PostgresStore) ListExpired(ctx context.Context, threshold time.Time) ([]Session, error) {
	return s.list(ctx, "list_expired", `WHERE expires_at <= $1 ORDER BY created_at ASC, id ASC`, threshold)
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]Session, error) {
	return s.list(ctx, "list_all", `ORDER BY created_at ASC, id ASC`)
}

// DeactivateByUsername revokes all active sessions for a user.
func (s *PostgresStore) DeactivateByUsername(ctx context.Context, username string) (int, error) {
	return s.exec(ctx, "deactivate_by_username", `
		UPDATE bakery.refresh_sessions
		SET active = FALSE
		WHERE username = $1 AND active
	`, username)
}

// DeactivateByDevice revokes all active sessions for a device.
func (s *PostgresStore) DeactivateByDevice(ctx context.Context, deviceInfo string) (int, error) {
	return s.exec(ctx, "deactivate_by_device", `
		UPDATE bakery.refresh_sessions
		SET active = FALSE
		WHERE COALESCE(device_info, '') = $1 AND active
	`, deviceInfo)
}

// DeleteExpired removes sessions whose expires_at <= threshold, active or not.
func (s *PostgresStore) DeleteExpired(ctx context.Context, threshold time.Time) (int, error) {
	return s.exec(ctx, "delete_expired", `
		DELETE FROM bakery.refresh_sessions
		WHERE expires_at <= $1
	`, threshold)
}

// DeleteInactiveSince removes revoked sessions whose last activity is <= threshold.
func (s *PostgresStore) DeleteInactiveSince(ctx context.Context, threshold time.Time) (int, error) {
	return s.exec(ctx, "delete_inactive", `
		DELETE FROM bakery.refresh_sessions
		WHERE NOT active
		  AND GREATEST(created_at, COALESCE(last_used_at, created_at)) <= $1
	`, threshold)
}

func (s *PostgresStore) list(ctx context.Context, op string, where string, args ...any) ([]Session, error) {
	rows, err := s.db.Query(ctx, `SELECT `+sessionColumns+` FROM bakery.refresh_sessions `+where, args...)
	if err != nil {
		return nil, storageErr(op, err)
	}
	out, err := pgx.CollectRows(rows, scanSession)
	if err != nil {
		return nil, storageErr(op, err)
	}
	return out, nil
}

func (s *PostgresStore) exec(ctx context.Context, op string, sql string, args ...any) (int, error) {
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return 0, storageErr(op, err)
	}
	return int(tag.RowsAffected()), nil
}

func scanSession(row pgx.CollectableRow) (Session, error) {
	var out Session
	err := row.Scan(
		&out.ID,
		&out.Username,
		&out.DeviceInfo,
		&out.IPAddress,
		&out.UserAgent,
		&out.Active,
		&out.CreatedAt,
		&out.ExpiresAt,
		&out.LastUsedAt,
	)
	return out, err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
