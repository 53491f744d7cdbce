// Package store provides storage backends for sessions, template uploads and
// generated documents.
package store

import (
	"errors"
	"strings"

	"github.com/ideclab/asistente-mga/internal/models"
)

// ErrNotFound is returned when a session id has no stored state.
var ErrNotFound = errors.New("not found in store")

// Store is the persistence surface of the assistant.
type Store interface {
	SaveSession(s models.Session) error
	GetSession(id string) (*models.Session, error)
	DeleteSession(id string) error

	AddUpload(u models.UploadRecord) error
	GetUploads(sessionID string) ([]models.UploadRecord, error)

	AddDocument(d models.DocumentRecord) error
	GetDocuments(sessionID string) ([]models.DocumentRecord, error)

	Close() error
}

// Opts holds configuration applied through Option functions.
type Opts struct {
	DSN string
}

// Option configures a store backend.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DSN type names returned by DetectDSNType.
const (
	DSNTypeMemory   = "memory"
	DSNTypeSQLite   = "sqlite"
	DSNTypePostgres = "postgres"
)

// DetectDSNType classifies a DSN string. An empty DSN selects the in-memory
// backend; URL-style or key=value connection strings select Postgres;
// anything else is treated as a SQLite file path.
func DetectDSNType(dsn string) string {
	switch {
	case dsn == "":
		return DSNTypeMemory
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"),
		strings.Contains(dsn, "host="), strings.Contains(dsn, "dbname="):
		return DSNTypePostgres
	default:
		return DSNTypeSQLite
	}
}

// NewStore builds the backend matching the DSN.
func NewStore(dsn string) (Store, error) {
	switch DetectDSNType(dsn) {
	case DSNTypeMemory:
		return NewInMemoryStore(), nil
	case DSNTypePostgres:
		return NewPostgresStore(WithPostgresDSN(dsn))
	default:
		return NewSQLiteStore(WithSQLiteDSN(dsn))
	}
}
