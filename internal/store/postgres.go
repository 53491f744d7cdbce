package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	_ "embed"

	_ "github.com/lib/pq"

	"github.com/ideclab/asistente-mga/internal/models"
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists state in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects with the configured DSN and applies the embedded
// migrations.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("PostgresStore ready")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) SaveSession(sess models.Session) error {
	responses, err := json.Marshal(sess.Responses)
	if err != nil {
		return fmt.Errorf("marshal responses for %s: %w", sess.ID, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO sessions (id, current_step, mode, responses, resume_step, resume_from_chat, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			current_step = EXCLUDED.current_step,
			mode = EXCLUDED.mode,
			responses = EXCLUDED.responses,
			resume_step = EXCLUDED.resume_step,
			resume_from_chat = EXCLUDED.resume_from_chat,
			updated_at = EXCLUDED.updated_at`,
		sess.ID, sess.CurrentStep, string(sess.Mode), string(responses), sess.ResumeStep, sess.ResumeFromChat, sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", sess.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetSession(id string) (*models.Session, error) {
	row := s.db.QueryRow(`
		SELECT id, current_step, mode, responses, resume_step, resume_from_chat, created_at, updated_at
		FROM sessions WHERE id = $1`, id)

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

func (s *PostgresStore) DeleteSession(id string) error {
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) AddUpload(u models.UploadRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO uploads (session_id, category, filename, json_path, uploaded_at)
		VALUES ($1, $2, $3, $4, $5)`,
		u.SessionID, string(u.Category), u.Filename, u.JSONPath, u.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to insert upload for %s: %w", u.SessionID, err)
	}
	return nil
}

func (s *PostgresStore) GetUploads(sessionID string) ([]models.UploadRecord, error) {
	rows, err := s.db.Query(`
		SELECT session_id, category, filename, json_path, uploaded_at
		FROM uploads WHERE session_id = $1 ORDER BY id`, sessionID)
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

func (s *PostgresStore) AddDocument(d models.DocumentRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO documents (session_id, filename, created_at)
		VALUES ($1, $2, $3)`,
		d.SessionID, d.Filename, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert document for %s: %w", d.SessionID, err)
	}
	return nil
}

func (s *PostgresStore) GetDocuments(sessionID string) ([]models.DocumentRecord, error) {
	rows, err := s.db.Query(`
		SELECT session_id, filename, created_at
		FROM documents WHERE session_id = $1 ORDER BY id`, sessionID)
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

func (s *PostgresStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
