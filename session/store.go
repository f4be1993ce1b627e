// Package session implements the Session Store: a durable mapping from
// session id to its ordered message log and last persisted Workflow State
// snapshot, backed by database/sql with a pluggable dialect selected from
// the DATABASE_URL scheme, exactly as the teacher's SQL session service
// supports sqlite/postgres/mysql side by side.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/medassist-ai/core/state"
)

// ErrSessionNotFound is returned when a session id has no matching row.
var ErrSessionNotFound = errors.New("session: session not found")

const (
	createSessionsTableSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id VARCHAR(255) PRIMARY KEY,
    user_id VARCHAR(255),
    state_snapshot BLOB,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);
`
	// seq is an internal, database-assigned ordering column. id is the
	// 36-char UUID primary key the rest of the system treats as the
	// message's identity (§6's persisted schema); seq exists only so
	// ListMessages can recover insertion order without relying on
	// created_at, whose second-level resolution can tie within one turn.
	createMessagesTableSQLite = `
CREATE TABLE IF NOT EXISTS session_messages (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id VARCHAR(36) NOT NULL UNIQUE,
    session_id VARCHAR(255) NOT NULL,
    role VARCHAR(20) NOT NULL,
    type VARCHAR(20) NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);
`
	createMessagesTablePostgres = `
CREATE TABLE IF NOT EXISTS session_messages (
    seq SERIAL PRIMARY KEY,
    id VARCHAR(36) NOT NULL UNIQUE,
    session_id VARCHAR(255) NOT NULL,
    role VARCHAR(20) NOT NULL,
    type VARCHAR(20) NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);
`
	createMessagesTableMySQL = `
CREATE TABLE IF NOT EXISTS session_messages (
    seq BIGINT PRIMARY KEY AUTO_INCREMENT,
    id VARCHAR(36) NOT NULL UNIQUE,
    session_id VARCHAR(255) NOT NULL,
    role VARCHAR(20) NOT NULL,
    type VARCHAR(20) NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);
`
	createMessagesIndexSQL = `
CREATE INDEX IF NOT EXISTS idx_session_messages_session_id ON session_messages(session_id, seq);
`
)

// Store is the SQL-backed Session Store.
type Store struct {
	db      *sql.DB
	dialect string

	// writeLocks serialises append-message per session, matching the
	// "only one active run per session" concurrency note: a DB transaction
	// alone isn't enough to keep the sequence gap-free under sqlite, which
	// has no row-level locking.
	writeLocks sync.Map // session id -> *sync.Mutex
}

// New opens (and, if necessary, creates) the database named by databaseURL,
// whose scheme selects the dialect: "sqlite://path", "postgres://...", or
// "mysql://...".
func New(ctx context.Context, databaseURL string) (*Store, error) {
	dialect, dsn, err := parseDatabaseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	driverName := dialect
	if dialect == "sqlite" {
		driverName = "sqlite3"
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("session: opening %s database: %w", dialect, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("session: pinging %s database: %w", dialect, err)
	}

	store := &Store{db: db, dialect: dialect}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// parseDatabaseURL splits a "<dialect>://rest" URL into its dialect and the
// driver-specific DSN. sqlite takes the remainder as a filesystem path;
// postgres/mysql pass the full URL through to their respective drivers
// (go-sql-driver/mysql additionally wants the scheme stripped).
func parseDatabaseURL(databaseURL string) (dialect, dsn string, err error) {
	parts := strings.SplitN(databaseURL, "://", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("session: malformed database url %q", databaseURL)
	}
	dialect, rest := parts[0], parts[1]

	switch dialect {
	case "sqlite":
		sep := "?"
		if strings.Contains(rest, "?") {
			sep = "&"
		}
		return dialect, rest + sep + "_foreign_keys=on", nil
	case "postgres":
		return dialect, databaseURL, nil
	case "mysql":
		return dialect, rest, nil
	default:
		return "", "", fmt.Errorf("session: unsupported database dialect %q", dialect)
	}
}

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createSessionsTableSQL); err != nil {
		return fmt.Errorf("session: creating sessions table: %w", err)
	}

	messagesSQL := createMessagesTableSQLite
	switch s.dialect {
	case "postgres":
		messagesSQL = createMessagesTablePostgres
	case "mysql":
		messagesSQL = createMessagesTableMySQL
	}
	if _, err := s.db.ExecContext(ctx, messagesSQL); err != nil {
		return fmt.Errorf("session: creating messages table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, createMessagesIndexSQL); err != nil {
		return fmt.Errorf("session: creating messages index: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// bindVar returns the positional placeholder for argument index n (1-based)
// in the store's dialect: postgres uses $n, sqlite/mysql use ?.
func (s *Store) bindVar(n int) string {
	if s.dialect == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// CreateSession creates a new session, generating its id if none is
// supplied.
func (s *Store) CreateSession(ctx context.Context, id, userID string) (state.Session, error) {
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()

	query := fmt.Sprintf(
		"INSERT INTO sessions (id, user_id, state_snapshot, created_at, updated_at) VALUES (%s, %s, NULL, %s, %s)",
		s.bindVar(1), s.bindVar(2), s.bindVar(3), s.bindVar(4),
	)
	if _, err := s.db.ExecContext(ctx, query, id, userID, now, now); err != nil {
		return state.Session{}, fmt.Errorf("session: creating session: %w", err)
	}

	return state.Session{ID: id, UserID: userID, CreatedAt: now, UpdatedAt: now}, nil
}

// GetSession retrieves a session by id.
func (s *Store) GetSession(ctx context.Context, id string) (state.Session, error) {
	query := fmt.Sprintf(
		"SELECT id, user_id, state_snapshot, created_at, updated_at FROM sessions WHERE id = %s",
		s.bindVar(1),
	)

	var sess state.Session
	var userID sql.NullString
	var snapshot []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(&sess.ID, &userID, &snapshot, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return state.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return state.Session{}, fmt.Errorf("session: getting session: %w", err)
	}

	sess.UserID = userID.String
	sess.State = snapshot
	return sess, nil
}

// UpdateState overwrites a session's persisted Workflow State snapshot.
func (s *Store) UpdateState(ctx context.Context, sessionID string, snapshot []byte) error {
	query := fmt.Sprintf(
		"UPDATE sessions SET state_snapshot = %s, updated_at = %s WHERE id = %s",
		s.bindVar(1), s.bindVar(2), s.bindVar(3),
	)
	res, err := s.db.ExecContext(ctx, query, snapshot, time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("session: updating state: %w", err)
	}
	return s.requireRowsAffected(res)
}

// AppendMessage appends a message to a session's log, serialised per session
// so concurrent appends (which should not happen under the one-run-per-
// session invariant, but may race during cancellation/retry) cannot
// interleave into the same log position.
func (s *Store) AppendMessage(ctx context.Context, sessionID string, role state.Role, typ state.MessageType, content string) (state.Message, error) {
	lockVal, _ := s.writeLocks.LoadOrStore(sessionID, &sync.Mutex{})
	lock := lockVal.(*sync.Mutex)
	lock.Lock()
	defer lock.Unlock()

	msg := state.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Type:      typ,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if !msg.Valid() {
		return state.Message{}, fmt.Errorf("session: invalid message role %q or type %q", role, typ)
	}

	query := fmt.Sprintf(
		"INSERT INTO session_messages (id, session_id, role, type, content, created_at) VALUES (%s, %s, %s, %s, %s, %s)",
		s.bindVar(1), s.bindVar(2), s.bindVar(3), s.bindVar(4), s.bindVar(5), s.bindVar(6),
	)
	if _, err := s.db.ExecContext(ctx, query, msg.ID, sessionID, string(msg.Role), string(msg.Type), msg.Content, msg.CreatedAt); err != nil {
		return state.Message{}, fmt.Errorf("session: appending message: %w", err)
	}

	touchQuery := fmt.Sprintf("UPDATE sessions SET updated_at = %s WHERE id = %s", s.bindVar(1), s.bindVar(2))
	if _, err := s.db.ExecContext(ctx, touchQuery, msg.CreatedAt, sessionID); err != nil {
		return state.Message{}, fmt.Errorf("session: touching session: %w", err)
	}

	return msg, nil
}

// ListMessages returns every message in a session, in insertion order.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]state.Message, error) {
	query := fmt.Sprintf(
		"SELECT id, session_id, role, type, content, created_at FROM session_messages WHERE session_id = %s ORDER BY seq ASC",
		s.bindVar(1),
	)
	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session: listing messages: %w", err)
	}
	defer rows.Close()

	var out []state.Message
	for rows.Next() {
		var m state.Message
		var role, typ string
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &typ, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("session: scanning message: %w", err)
		}
		m.Role = state.Role(role)
		m.Type = state.MessageType(typ)
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteSession removes a session. Its messages cascade-delete via the
// foreign key constraint.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	query := fmt.Sprintf("DELETE FROM sessions WHERE id = %s", s.bindVar(1))
	res, err := s.db.ExecContext(ctx, query, sessionID)
	if err != nil {
		return fmt.Errorf("session: deleting session: %w", err)
	}
	s.writeLocks.Delete(sessionID)
	return s.requireRowsAffected(res)
}

func (s *Store) requireRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return nil // driver doesn't support RowsAffected; treat as success
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ClientMessage is the wire shape messages are rehydrated into for client
// display: it drops storage-only fields and normalizes timestamps to
// RFC3339.
type ClientMessage struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Type      string `json:"type"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// FormatForClient converts stored messages into the client-facing shape
// used by final_session_state and session rehydration.
func FormatForClient(messages []state.Message) []ClientMessage {
	out := make([]ClientMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, ClientMessage{
			ID:        m.ID,
			Role:      string(m.Role),
			Type:      string(m.Type),
			Content:   m.Content,
			CreatedAt: m.CreatedAt.Format(time.RFC3339),
		})
	}
	return out
}
