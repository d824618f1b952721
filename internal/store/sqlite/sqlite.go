package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/vovakirdan/anonchat-server/internal/store"
)

// Schema creates the tables used by the store. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS identities (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	device_fingerprint TEXT NOT NULL UNIQUE,
	user_id            TEXT NOT NULL UNIQUE,
	created_at         DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS chat_events (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	room              TEXT NOT NULL,
	sender_id         TEXT NOT NULL,
	kind              TEXT NOT NULL,
	text              TEXT,
	image_ref         TEXT,
	audio_ref         TEXT,
	audio_duration_ms INTEGER,
	file_name         TEXT,
	created_at        DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chat_events_room ON chat_events(room, created_at DESC);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New opens the database at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply schema against an in-memory database.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection; it also keeps ":memory:" on one database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== IdentityStore implementation ====

// GetIdentityByFingerprint retrieves an identity by device fingerprint.
func (s *SQLiteStore) GetIdentityByFingerprint(ctx context.Context, fingerprint string) (*store.Identity, error) {
	query := `
		SELECT id, device_fingerprint, user_id, created_at
		FROM identities
		WHERE device_fingerprint = ?
	`
	var ident store.Identity
	err := s.db.QueryRowContext(ctx, query, fingerprint).Scan(
		&ident.ID,
		&ident.DeviceFingerprint,
		&ident.UserID,
		&ident.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query identity: %w", err)
	}

	return &ident, nil
}

// CreateIdentity inserts a new identity, keeping the first record on conflict.
func (s *SQLiteStore) CreateIdentity(ctx context.Context, fingerprint, userID string) (*store.Identity, error) {
	query := `
		INSERT INTO identities (device_fingerprint, user_id)
		VALUES (?, ?)
		ON CONFLICT(device_fingerprint) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, fingerprint, userID); err != nil {
		return nil, fmt.Errorf("insert identity: %w", err)
	}

	return s.GetIdentityByFingerprint(ctx, fingerprint)
}

// CountIdentities returns the number of registered identities.
func (s *SQLiteStore) CountIdentities(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM identities`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return n, nil
}

// ==== MessageStore implementation ====

// Append persists a chat event.
func (s *SQLiteStore) Append(ctx context.Context, ev *store.ChatEvent) error {
	query := `
		INSERT INTO chat_events (room, sender_id, kind, text, image_ref, audio_ref, audio_duration_ms, file_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		ev.Room,
		ev.SenderID,
		string(ev.Kind),
		nullString(ev.Text),
		nullString(ev.ImageRef),
		nullString(ev.AudioRef),
		nullInt(ev.AudioDurationMs, ev.Kind == store.EventKindAudio),
		nullString(ev.FileName),
		ev.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert chat event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	ev.ID = id
	return nil
}

// RecentByRoom retrieves the newest events of a room in chronological order.
func (s *SQLiteStore) RecentByRoom(ctx context.Context, room string, limit int) ([]*store.ChatEvent, error) {
	query := `
		SELECT id, room, sender_id, kind, text, image_ref, audio_ref, audio_duration_ms, file_name, created_at
		FROM chat_events
		WHERE room = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, room, limit)
	if err != nil {
		return nil, fmt.Errorf("query chat events: %w", err)
	}
	defer rows.Close()

	var events []*store.ChatEvent
	for rows.Next() {
		var (
			ev                       store.ChatEvent
			kind                     string
			text, image, audio, file sql.NullString
			duration                 sql.NullInt64
		)
		if err := rows.Scan(&ev.ID, &ev.Room, &ev.SenderID, &kind, &text, &image, &audio, &duration, &file, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat event: %w", err)
		}
		ev.Kind = store.EventKind(kind)
		ev.Text = text.String
		ev.ImageRef = image.String
		ev.AudioRef = audio.String
		ev.AudioDurationMs = duration.Int64
		ev.FileName = file.String
		events = append(events, &ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat events: %w", err)
	}

	// Reverse to get chronological order
	for i := range len(events) / 2 {
		events[i], events[len(events)-1-i] = events[len(events)-1-i], events[i]
	}

	return events, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n int64, valid bool) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: valid}
}
