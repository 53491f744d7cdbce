package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	_ "github.com/mattn/go-sqlite3"

	"github.com/ideclab/asistente-mga/internal/models"
)

// DefaultDirPermissions is used when creating the database directory.
const DefaultDirPermissions = 0o755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists state in a local SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the SQLite database named by the
// DSN and applies the embedded migrations.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(cfg.DSN)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite ping failed: %w", err)
	}
	if _, err := db.Exec(sqliteMigrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLiteStore ready", "dsn", cfg.DSN)
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveSession(sess models.Session) error {
	responses, err := json.Marshal(sess.Responses)
	if err != nil {
		return fmt.Errorf("marshal responses for %s: %w", sess.ID, err)
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO sessions (id, current_step, mode, responses, resume_step, resume_from_chat, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.CurrentStep, string(sess.Mode), string(responses), sess.ResumeStep, sess.ResumeFromChat, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetSession(id string) (*models.Session, error) {
	row := s.db.QueryRow(`
		SELECT id, current_step, mode, responses, resume_step, resume_from_chat, created_at, updated_at
		FROM sessions WHERE id = ?`, id)

	var sess models.Session
	var mode, responses string
	err := row.Scan(&sess.ID, &sess.CurrentStep, &mode, &responses, &sess.ResumeStep, &sess.ResumeFromChat, &sess.CreatedAt, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	sess.Mode = models.SessionMode(mode)
	if err := json.Unmarshal([]byte(responses), &sess.Responses); err != nil {
		return nil, fmt.Errorf("unmarshal responses for %s: %w", id, err)
	}
	if sess.Responses == nil {
		sess.Responses = make(map[string]models.Answer)
	}
	return &sess, nil
}

func (s *SQLiteStore) DeleteSession(id string) error {
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) AddUpload(u models.UploadRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO uploads (session_id, category, filename, json_path, uploaded_at)
		VALUES (?, ?, ?, ?, ?)`,
		u.SessionID, string(u.Category), u.Filename, u.JSONPath, u.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to insert upload for %s: %w", u.SessionID, err)
	}
	return nil
}

func (s *SQLiteStore) GetUploads(sessionID string) ([]models.UploadRecord, error) {
	rows, err := s.db.Query(`
		SELECT session_id, category, filename, json_path, uploaded_at
		FROM uploads WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query uploads for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []models.UploadRecord
	for rows.Next() {
		var u models.UploadRecord
		var category string
		if err := rows.Scan(&u.SessionID, &category, &u.Filename, &u.JSONPath, &u.UploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan upload row: %w", err)
		}
		u.Category = models.TemplateCategory(category)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AddDocument(d models.DocumentRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO documents (session_id, filename, created_at)
		VALUES (?, ?, ?)`,
		d.SessionID, d.Filename, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert document for %s: %w", d.SessionID, err)
	}
	return nil
}

func (s *SQLiteStore) GetDocuments(sessionID string) ([]models.DocumentRecord, error) {
	rows, err := s.db.Query(`
		SELECT session_id, filename, created_at
		FROM documents WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var out []models.DocumentRecord
	for rows.Next() {
		var d models.DocumentRecord
		if err := rows.Scan(&d.SessionID, &d.Filename, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
