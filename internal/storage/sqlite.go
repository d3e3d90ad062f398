package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"forumoauth/internal/tokens"
)

var ErrInvalidInput = errors.New("invalid input")

// ExpiringToken is a sweep candidate: a user whose stored expiry falls before
// the sweep cutoff.
type ExpiringToken struct {
	UserID          string
	ExpiresAt       int64
	HasRefreshToken bool
}

// SQLiteStorage persists per-user token records. It is the sole persistence
// mechanism for credentials; no cache sits in front of it.
type SQLiteStorage struct {
	db   *sql.DB
	box  *secretBox
	path string
}

// NewSQLiteStorage opens the database at path. Token values are sealed with
// the given 32-byte key before they are written.
func NewSQLiteStorage(path string, encryptionKey []byte) (*SQLiteStorage, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: database path cannot be empty", ErrInvalidInput)
	}
	box, err := newSecretBox(encryptionKey)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &SQLiteStorage{db: db, box: box, path: path}, nil
}

// Migrate creates the schema if it does not exist.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS user_tokens (
		user_id TEXT PRIMARY KEY,
		access_token TEXT NOT NULL DEFAULT '',
		refresh_token TEXT NOT NULL DEFAULT '',
		expires_at INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_user_tokens_expires_at ON user_tokens(expires_at);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// GetTokenRecord retrieves and unseals a user's token triple.
func (s *SQLiteStorage) GetTokenRecord(ctx context.Context, userID string) (tokens.Record, error) {
	if userID == "" {
		return tokens.Record{}, fmt.Errorf("%w: user ID cannot be empty", ErrInvalidInput)
	}

	var rec tokens.Record
	var access, refresh string
	err := s.db.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, expires_at FROM user_tokens WHERE user_id = ?`,
		userID).Scan(&access, &refresh, &rec.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return tokens.Record{}, fmt.Errorf("%w for user %s", tokens.ErrNoRecord, userID)
		}
		return tokens.Record{}, fmt.Errorf("failed to get token record: %w", err)
	}

	if rec.AccessToken, err = s.openValue(access); err != nil {
		return tokens.Record{}, fmt.Errorf("access token for user %s: %w", userID, err)
	}
	if rec.RefreshToken, err = s.openValue(refresh); err != nil {
		return tokens.Record{}, fmt.Errorf("refresh token for user %s: %w", userID, err)
	}
	return rec, nil
}

// SaveTokenRecord writes the full triple as a single statement, so a record
// can never be observed with fields from two different refreshes.
func (s *SQLiteStorage) SaveTokenRecord(ctx context.Context, userID string, rec tokens.Record) error {
	if userID == "" {
		return fmt.Errorf("%w: user ID cannot be empty", ErrInvalidInput)
	}

	access, err := s.sealValue(rec.AccessToken)
	if err != nil {
		return fmt.Errorf("sealing access token: %w", err)
	}
	refresh, err := s.sealValue(rec.RefreshToken)
	if err != nil {
		return fmt.Errorf("sealing refresh token: %w", err)
	}

	query := `
	INSERT INTO user_tokens (user_id, access_token, refresh_token, expires_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(user_id) DO UPDATE SET
		access_token = excluded.access_token,
		refresh_token = excluded.refresh_token,
		expires_at = excluded.expires_at,
		updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.ExecContext(ctx, query, userID, access, refresh, rec.ExpiresAt); err != nil {
		return fmt.Errorf("failed to save token record: %w", err)
	}
	return nil
}

// ListExpiringBefore returns users whose stored expiry is known and falls
// before the cutoff. Records with an unknown (zero) expiry are excluded; the
// on-demand path handles those.
func (s *SQLiteStorage) ListExpiringBefore(ctx context.Context, cutoff int64) ([]ExpiringToken, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, expires_at, refresh_token != '' FROM user_tokens
		 WHERE expires_at > 0 AND expires_at < ?
		 ORDER BY expires_at ASC`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query expiring tokens: %w", err)
	}
	defer rows.Close()

	var out []ExpiringToken
	for rows.Next() {
		var e ExpiringToken
		if err := rows.Scan(&e.UserID, &e.ExpiresAt, &e.HasRefreshToken); err != nil {
			return nil, fmt.Errorf("failed to scan expiring token: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expiring tokens: %w", err)
	}
	return out, nil
}

// DeleteTokenRecord removes a user's token record.
func (s *SQLiteStorage) DeleteTokenRecord(ctx context.Context, userID string) error {
	if userID == "" {
		return fmt.Errorf("%w: user ID cannot be empty", ErrInvalidInput)
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM user_tokens WHERE user_id = ?`, userID)
	return err
}

// Close closes the underlying database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// sealValue encrypts a token value. Empty values stay empty so the sweep
// query can distinguish absent refresh tokens.
func (s *SQLiteStorage) sealValue(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	return s.box.seal(plain)
}

func (s *SQLiteStorage) openValue(stored string) (string, error) {
	if stored == "" {
		return "", nil
	}
	return s.box.open(stored)
}
