package repo

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	_ "modernc.org/sqlite"

	"github.com/defi-rag-assistant/server/internal/agent/model"
	errx "github.com/defi-rag-assistant/server/internal/core/error"
	logx "github.com/defi-rag-assistant/server/pkg/logger"
)

// SQLiteMemoryStore keeps session memory in a single SQLite file.
// Rows older than ttl are ignored on read and pruned on write.
type SQLiteMemoryStore struct {
	db  *sql.DB
	ttl time.Duration
	mu  sync.Mutex // serializes writers to avoid SQLITE_BUSY
	now func() time.Time
}

func NewSQLiteMemoryStore(ctx context.Context, dbPath string, ttl time.Duration) (*SQLiteMemoryStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteMemoryStore{db: db, ttl: ttl, now: time.Now}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteMemoryStore) initSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS memory_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memory_session ON memory_messages(session_id, id);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteMemoryStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteMemoryStore) cutoff() int64 {
	if s.ttl <= 0 {
		return 0
	}
	return s.now().Add(-s.ttl).UnixNano()
}

func (s *SQLiteMemoryStore) Record(ctx context.Context, sessionID, input, output string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errx.WrapSQLite(err)
	}
	defer func() { _ = tx.Rollback() }()

	if cutoff := s.cutoff(); cutoff > 0 {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM memory_messages WHERE session_id = ? AND created_at < ?`, sessionID, cutoff); err != nil {
			logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to prune expired memory")
			return errx.WrapSQLite(err)
		}
	}

	ts := s.now().UnixNano()
	insert := `INSERT INTO memory_messages (session_id, role, content, created_at) VALUES (?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insert, sessionID, string(schema.User), input, ts); err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to insert input message")
		return errx.WrapSQLite(err)
	}
	if _, err := tx.ExecContext(ctx, insert, sessionID, string(schema.Assistant), output, ts); err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to insert output message")
		return errx.WrapSQLite(err)
	}

	if err := tx.Commit(); err != nil {
		return errx.WrapSQLite(err)
	}
	return nil
}

func (s *SQLiteMemoryStore) Load(ctx context.Context, sessionID string) (*model.MemoryHistory, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, content FROM memory_messages WHERE session_id = ? AND created_at >= ? ORDER BY id`,
		sessionID, s.cutoff())
	if err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to load memory from sqlite")
		return nil, errx.WrapSQLite(err)
	}
	defer rows.Close()

	msgs := []*schema.Message{}
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, errx.WrapSQLite(fmt.Errorf("scan memory row: %w", err))
		}
		msgs = append(msgs, &schema.Message{Role: schema.RoleType(role), Content: content})
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapSQLite(err)
	}
	return &model.MemoryHistory{SessionID: sessionID, Messages: msgs}, nil
}

func (s *SQLiteMemoryStore) Clear(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM memory_messages WHERE session_id = ?`, sessionID); err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to delete memory from sqlite")
		return errx.WrapSQLite(err)
	}
	return nil
}

func (s *SQLiteMemoryStore) Count(ctx context.Context, sessionID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM memory_messages WHERE session_id = ? AND created_at >= ?`,
		sessionID, s.cutoff()).Scan(&n)
	if err != nil {
		return 0, errx.WrapSQLite(err)
	}
	return n, nil
}

var _ model.MemoryStore = (*SQLiteMemoryStore)(nil)
