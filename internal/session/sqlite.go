package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStorage persists values in a SQLite file, partitioned by session ID. Values
// written under one session are invisible to every other session.
type SQLiteStorage struct {
	db        *sql.DB
	sessionID string
}

// OpenSQLite opens (or creates) the database at path and binds it to sessionID.
func OpenSQLite(ctx context.Context, path, sessionID string) (*SQLiteStorage, error) {
	if sessionID == "" {
		return nil, errors.New("session id required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	db.SetMaxOpenConns(1)

	const schema = `CREATE TABLE IF NOT EXISTS session_storage (
		session_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, key)
	)`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init session schema: %w", err)
	}
	return &SQLiteStorage{db: db, sessionID: sessionID}, nil
}

// SessionID returns the session the storage is bound to.
func (s *SQLiteStorage) SessionID() string {
	return s.sessionID
}

// Get implements Storage.
func (s *SQLiteStorage) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM session_storage WHERE session_id = ? AND key = ?`,
		s.sessionID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set implements Storage.
func (s *SQLiteStorage) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO session_storage (session_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (session_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		s.sessionID, key, value, time.Now().Unix(),
	)
	return err
}

// Remove implements Storage.
func (s *SQLiteStorage) Remove(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM session_storage WHERE session_id = ? AND key = ?`,
		s.sessionID, key,
	)
	return err
}

// Purge deletes every value of the bound session.
func (s *SQLiteStorage) Purge(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session_storage WHERE session_id = ?`, s.sessionID)
	return err
}

// PurgeOlderThan removes values of any session not written since cutoff.
func (s *SQLiteStorage) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM session_storage WHERE updated_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Close releases the database handle.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
